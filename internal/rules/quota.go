package rules

import (
	"fmt"
	"time"

	"github.com/pulsar-sentinel/core/internal/storage"
)

// Tier is an agent's subscription tier.
type Tier string

const (
	TierLegacyBuilder   Tier = "LegacyBuilder"
	TierSentinelCore    Tier = "SentinelCore"
	TierAutonomousGuild Tier = "AutonomousGuild"
)

// quotaPerMinute is the fixed-window per-minute request quota for each tier.
var quotaPerMinute = map[Tier]int{
	TierLegacyBuilder:   5,
	TierSentinelCore:    10,
	TierAutonomousGuild: 100,
}

// QuotaFor returns the per-minute quota for a tier, falling back to
// fallback (RATE_LIMIT_DEFAULT) for anything unrecognized rather than a
// hardcoded tier.
func QuotaFor(tier Tier, fallback int) int {
	if q, ok := quotaPerMinute[tier]; ok {
		return q
	}
	return fallback
}

// Quota enforces the fixed-window (agent, minute) counter described in the
// rule engine's capability decision step 4.
type Quota struct {
	db           *storage.DB
	defaultQuota int
}

// NewQuota builds a quota checker over db. rateLimitDefault is the
// RATE_LIMIT_DEFAULT fallback applied to tiers with no entry in
// quotaPerMinute.
func NewQuota(db *storage.DB, rateLimitDefault int) *Quota {
	return &Quota{db: db, defaultQuota: rateLimitDefault}
}

// Allow increments the counter for agentID's current minute bucket and
// reports whether the operation is within tier's quota.
func (q *Quota) Allow(agentID string, tier Tier) (bool, error) {
	bucket := time.Now().Unix() / 60
	count, err := q.db.IncrementRateWindow(agentID, bucket)
	if err != nil {
		return false, fmt.Errorf("rules: quota increment: %w", err)
	}
	return count <= QuotaFor(tier, q.defaultQuota), nil
}
