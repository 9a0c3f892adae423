package rules

import (
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/pulsar-sentinel/core/internal/asr"
	"github.com/pulsar-sentinel/core/internal/metadata"
	"github.com/pulsar-sentinel/core/internal/storage"
	"github.com/pulsar-sentinel/core/internal/telemetry"
	"github.com/pulsar-sentinel/core/internal/threat"
)

// Role is an agent's authorization role.
type Role string

const (
	RoleNone     Role = "None"
	RoleUser     Role = "User"
	RoleSentinel Role = "Sentinel"
	RoleAdmin    Role = "Admin"
)

// Operation describes one capability check request.
type Operation struct {
	Name         string
	RequiredRole Role
	ReadOnly     bool // exempt from the Critical-tier lock
}

// Decision is the outcome of a capability check.
type Decision struct {
	Allowed bool
	Reason  error
}

// Engine evaluates the five-step capability decision from the rule engine.
type Engine struct {
	db              *storage.DB
	quota           *Quota
	threat          *threat.Engine
	strikeThreshold int
	pipeline        *asr.Pipeline
	metrics         *telemetry.Metrics
}

// NewEngine builds an access control engine. strikeThreshold is the
// STRIKE_THRESHOLD config value; <= 0 falls back to DefaultStrikeThreshold.
// pipeline records the AccessViolation/RateLimitHit/Strike/Ban/TierTransition
// side effects RC-2.01 and the capability decision table require; metrics
// may be nil.
func NewEngine(db *storage.DB, quota *Quota, threatEngine *threat.Engine, strikeThreshold int, pipeline *asr.Pipeline, metrics *telemetry.Metrics) *Engine {
	return &Engine{db: db, quota: quota, threat: threatEngine, strikeThreshold: strikeThreshold, pipeline: pipeline, metrics: metrics}
}

// Strike implements RC-2.01 against this engine's configured threshold.
func (e *Engine) Strike(agentID string) (banned bool, err error) {
	return Strike(e.db, agentID, e.strikeThreshold)
}

// Check implements the capability decision:
//  1. banned -> deny (AccessViolation recorded)
//  2. required role not held -> deny (AccessViolation)
//  3. PTS tier Critical -> deny unless op is read-only (AccessViolation recorded)
//  4. rate quota exhausted -> deny (RateLimitHit)
//  5. else allow
func (e *Engine) Check(agentID string, op Operation) Decision {
	agent, err := e.db.GetAgent(agentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Decision{Allowed: false, Reason: ErrUnauthenticated}
		}
		return Decision{Allowed: false, Reason: fmt.Errorf("rules: get agent: %w", err)}
	}

	if IsBanned(agent, e.strikeThreshold) {
		e.submitASR(agentID, asr.ActionAccessViolation, asr.ThreatLevelWarning)
		return Decision{Allowed: false, Reason: ErrBanned}
	}

	if !roleSatisfies(Role(agent.Role), op.RequiredRole) {
		e.recordAccessViolation(agentID)
		return Decision{Allowed: false, Reason: ErrAccessViolation}
	}

	_, tier, err := e.threat.Score(agentID)
	if err != nil {
		return Decision{Allowed: false, Reason: fmt.Errorf("rules: score: %w", err)}
	}
	if tier == threat.TierCritical && !op.ReadOnly {
		e.submitASR(agentID, asr.ActionAccessViolation, asr.ThreatLevelWarning)
		return Decision{Allowed: false, Reason: ErrCriticalTierLocked}
	}

	ok, err := e.quota.Allow(agentID, Tier(agent.Tier))
	if err != nil {
		return Decision{Allowed: false, Reason: fmt.Errorf("rules: quota: %w", err)}
	}
	if !ok {
		e.recordRateLimitHit(agentID, agent.Tier)
		return Decision{Allowed: false, Reason: ErrRateLimited}
	}

	return Decision{Allowed: true}
}

// recordAccessViolation implements RC-2.01's side effects for a role-check
// denial: the violation contributes to the agent's threat score, is recorded
// on the audit trail, and counts toward the three-strike ban.
func (e *Engine) recordAccessViolation(agentID string) {
	pts, tier, changed, err := e.threat.RecordAndScore(agentID, threat.KindAccessViolation)
	if err != nil {
		log.Printf("rules: score access violation for %s: %v", agentID, err)
	}
	e.submitASR(agentID, asr.ActionAccessViolation, asr.ThreatLevelWarning)
	if changed && e.pipeline != nil {
		meta := metadata.Map(map[string]metadata.Value{
			"pts":  metadata.Int(int64(pts)),
			"tier": metadata.String(string(tier)),
		})
		if _, err := e.pipeline.Submit(agentID, asr.ActionTierTransition, asr.ThreatLevelNotice, asr.PQCStatusSafe, meta); err != nil {
			log.Printf("rules: record tier transition asr for %s: %v", agentID, err)
		}
	}

	banned, err := e.Strike(agentID)
	if err != nil {
		log.Printf("rules: strike %s: %v", agentID, err)
		return
	}
	e.submitASR(agentID, asr.ActionStrike, asr.ThreatLevelWarning)
	if banned {
		e.submitASR(agentID, asr.ActionBan, asr.ThreatLevelCritical)
	}
}

// recordRateLimitHit implements the capability table's "RateLimitHit
// recorded" side effect for an exhausted per-tier quota: the hit contributes
// to the agent's threat score and is recorded on the audit trail.
func (e *Engine) recordRateLimitHit(agentID, tier string) {
	pts, ptsTier, changed, err := e.threat.RecordAndScore(agentID, threat.KindRateLimitHit)
	if err != nil {
		log.Printf("rules: score rate limit hit for %s: %v", agentID, err)
	}
	e.submitASR(agentID, asr.ActionRateLimitHit, asr.ThreatLevelNotice)
	if changed && e.pipeline != nil {
		meta := metadata.Map(map[string]metadata.Value{
			"pts":  metadata.Int(int64(pts)),
			"tier": metadata.String(string(ptsTier)),
		})
		if _, err := e.pipeline.Submit(agentID, asr.ActionTierTransition, asr.ThreatLevelNotice, asr.PQCStatusSafe, meta); err != nil {
			log.Printf("rules: record tier transition asr for %s: %v", agentID, err)
		}
	}
	if e.metrics != nil {
		e.metrics.QuotaRejections.WithLabelValues(tier).Inc()
	}
}

func (e *Engine) submitASR(agentID string, action asr.Action, level asr.ThreatLevel) {
	if e.pipeline == nil {
		return
	}
	if _, err := e.pipeline.Submit(agentID, action, level, asr.PQCStatusSafe, metadata.Map(nil)); err != nil {
		log.Printf("rules: record %s asr for %s: %v", action, agentID, err)
	}
}

// roleSatisfies reports whether held meets or exceeds required, under the
// fixed hierarchy None < User < Sentinel < Admin.
func roleSatisfies(held, required Role) bool {
	rank := map[Role]int{RoleNone: 0, RoleUser: 1, RoleSentinel: 2, RoleAdmin: 3}
	return rank[held] >= rank[required]
}
