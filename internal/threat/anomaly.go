package threat

import (
	"fmt"
	"time"

	"github.com/pulsar-sentinel/core/internal/storage"
)

// AnomalySweep periodically scans agent threat windows for patterns a
// single-event PTS bump would miss: a sudden burst of qualified events in a
// short sub-window, rather than a slow accumulation. It supplements the PTS
// scoring rather than replacing it.
type AnomalySweep struct {
	db     *storage.DB
	window *Window

	// BurstThreshold is the number of events of one kind within
	// BurstWindow that triggers an anomaly log entry.
	BurstThreshold int
	BurstWindow    time.Duration
}

// NewAnomalySweep builds a sweep with the reference thresholds: 5 events of
// one kind inside a 60-second window.
func NewAnomalySweep(db *storage.DB, window *Window) *AnomalySweep {
	return &AnomalySweep{
		db:             db,
		window:         window,
		BurstThreshold: 5,
		BurstWindow:    60 * time.Second,
	}
}

// Check inspects one agent's recent activity across all four factor kinds
// and logs an anomaly entry (action "auto_quarantine") for any kind that
// reaches BurstThreshold within BurstWindow. Returns the kinds that
// triggered. It only writes the log entry; it does not itself restrict the
// agent.
func (s *AnomalySweep) Check(agentID string) ([]Kind, error) {
	now := time.Now().UnixMilli()
	since := time.Now().Add(-s.BurstWindow).UnixMilli()

	var triggered []Kind
	for _, kind := range []Kind{KindQuantumRisk, KindAccessViolation, KindRateLimitHit, KindSignatureFailure} {
		n, err := s.db.CountThreatEvents(agentID, string(kind), since, now)
		if err != nil {
			return nil, fmt.Errorf("threat: anomaly count: %w", err)
		}
		if n < s.BurstThreshold {
			continue
		}
		evidence := fmt.Sprintf("%d %s events within %v", n, kind, s.BurstWindow)
		if err := s.db.LogAnomaly(agentID, string(kind), evidence, "auto_quarantine", now); err != nil {
			return nil, fmt.Errorf("threat: log anomaly: %w", err)
		}
		triggered = append(triggered, kind)
	}
	return triggered, nil
}
