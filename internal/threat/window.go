// Package threat implements the sliding-window threat scoring engine: per-
// agent factor counters, the PTS formula, tier transitions, and an anomaly
// sweep that generalizes the reference DHT's burst detector to agent
// behavior.
package threat

import (
	"fmt"
	"time"

	"github.com/pulsar-sentinel/core/internal/storage"
)

// Kind identifies a threat factor counted in the sliding window.
type Kind string

const (
	KindQuantumRisk      Kind = "quantum_risk"
	KindAccessViolation  Kind = "access_violation"
	KindRateLimitHit     Kind = "rate_limit_hit"
	KindSignatureFailure Kind = "signature_failure"
)

// DefaultWindow is the sliding window duration over which threat factors
// are counted.
const DefaultWindow = 24 * time.Hour

// Window tracks sliding-window threat factor counts for agents, backed by
// durable storage so counts survive process restarts.
type Window struct {
	db   *storage.DB
	span time.Duration
}

// NewWindow builds a threat window with the given span (0 selects the default).
func NewWindow(db *storage.DB, span time.Duration) *Window {
	if span <= 0 {
		span = DefaultWindow
	}
	return &Window{db: db, span: span}
}

// Record appends one occurrence of kind for agentID at the current time.
func (w *Window) Record(agentID string, kind Kind) error {
	if err := w.db.RecordThreatEvent(agentID, string(kind), time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("threat: record event: %w", err)
	}
	return nil
}

// Counts returns the current sliding-window counts for all four factors.
type Counts struct {
	QuantumRisk      int
	AccessViolations int
	RateLimitHits    int
	SignatureFails   int
}

// Snapshot computes the current window counts for an agent.
func (w *Window) Snapshot(agentID string) (Counts, error) {
	now := time.Now().UnixMilli()
	since := time.Now().Add(-w.span).UnixMilli()

	var c Counts
	var err error
	if c.QuantumRisk, err = w.db.CountThreatEvents(agentID, string(KindQuantumRisk), since, now); err != nil {
		return Counts{}, err
	}
	if c.AccessViolations, err = w.db.CountThreatEvents(agentID, string(KindAccessViolation), since, now); err != nil {
		return Counts{}, err
	}
	if c.RateLimitHits, err = w.db.CountThreatEvents(agentID, string(KindRateLimitHit), since, now); err != nil {
		return Counts{}, err
	}
	if c.SignatureFails, err = w.db.CountThreatEvents(agentID, string(KindSignatureFailure), since, now); err != nil {
		return Counts{}, err
	}
	return c, nil
}

// Prune deletes events that have aged out of every agent's window. Intended
// to be called periodically from a background worker.
func (w *Window) Prune() (int64, error) {
	cutoff := time.Now().Add(-w.span).UnixMilli()
	return w.db.PruneThreatEvents(cutoff)
}
