package admin

import (
	"fmt"

	"github.com/pulsar-sentinel/core/internal/storage"
)

// DecayRate is the multiplicative reputation decay applied per invocation.
// At hourly application this gives a half-life of about 138 hours (roughly
// 6 days).
const DecayRate = 0.995

// DecayFloor is the reputation value below which an operator is treated as
// effectively zero and clamped rather than allowed to asymptote forever.
const DecayFloor = 0.01

// DecayReputation applies DecayRate to every active operator's reputation.
// Returns the number of operators updated.
func DecayReputation(db *storage.DB) (int, error) {
	ops, err := db.ListActiveOperators()
	if err != nil {
		return 0, fmt.Errorf("admin: list active operators: %w", err)
	}

	decayed := 0
	for _, op := range ops {
		if op.Reputation <= 0 {
			continue
		}
		next := op.Reputation * DecayRate
		if next < DecayFloor {
			next = 0
		}
		if err := db.SetOperatorReputation(op.OperatorID, next); err != nil {
			return decayed, fmt.Errorf("admin: update reputation for %s: %w", op.OperatorID, err)
		}
		decayed++
	}
	return decayed, nil
}
