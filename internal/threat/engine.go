package threat

import "github.com/pulsar-sentinel/core/internal/telemetry"

// Tier is the qualitative threat tier derived from PTS.
type Tier string

const (
	TierSafe     Tier = "Safe"
	TierCaution  Tier = "Caution"
	TierCritical Tier = "Critical"
)

const (
	quantumRiskWeight      = 50.0
	accessViolationWeight  = 0.3
	rateLimitHitWeight     = 0.2
	signatureFailureWeight = 0.1
	ptsMax                 = 1000.0
)

// PTS computes the Pulsar Threat Score from a factor snapshot:
// PTS = 50*q + 0.3*v + 0.2*r + 0.1*s, clamped to [0, 1000].
func PTS(c Counts) float64 {
	score := quantumRiskWeight*float64(c.QuantumRisk) +
		accessViolationWeight*float64(c.AccessViolations) +
		rateLimitHitWeight*float64(c.RateLimitHits) +
		signatureFailureWeight*float64(c.SignatureFails)
	if score < 0 {
		return 0
	}
	if score > ptsMax {
		return ptsMax
	}
	return score
}

// TierFor maps a PTS value to its qualitative tier.
func TierFor(pts float64) Tier {
	switch {
	case pts < 50:
		return TierSafe
	case pts < 150:
		return TierCaution
	default:
		return TierCritical
	}
}

// Engine ties the sliding window to score computation and tier-transition
// detection.
type Engine struct {
	window  *Window
	metrics *telemetry.Metrics
}

// NewEngine builds a threat engine over the given window.
func NewEngine(window *Window) *Engine {
	return &Engine{window: window}
}

// NewEngineWithMetrics is NewEngine plus a metrics sink for the PTS-by-tier
// gauge, incremented every time a score lands in a tier.
func NewEngineWithMetrics(window *Window, metrics *telemetry.Metrics) *Engine {
	return &Engine{window: window, metrics: metrics}
}

// Score returns the current PTS and tier for an agent.
func (e *Engine) Score(agentID string) (pts float64, tier Tier, err error) {
	counts, err := e.window.Snapshot(agentID)
	if err != nil {
		return 0, "", err
	}
	pts = PTS(counts)
	tier = TierFor(pts)
	if e.metrics != nil {
		e.metrics.PTSByTier.WithLabelValues(string(tier)).Inc()
	}
	return pts, tier, nil
}

// RecordAndScore records one factor occurrence, then returns the resulting
// score and whether the tier changed from before, so the caller can decide
// whether to emit a TierTransition record.
func (e *Engine) RecordAndScore(agentID string, kind Kind) (pts float64, tier Tier, tierChanged bool, err error) {
	beforeCounts, err := e.window.Snapshot(agentID)
	if err != nil {
		return 0, "", false, err
	}
	beforeTier := TierFor(PTS(beforeCounts))

	if err := e.window.Record(agentID, kind); err != nil {
		return 0, "", false, err
	}

	pts, tier, err = e.Score(agentID)
	if err != nil {
		return 0, "", false, err
	}
	return pts, tier, tier != beforeTier, nil
}
