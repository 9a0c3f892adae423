package rules

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pulsar-sentinel/core/internal/pqcrypto"
	"github.com/pulsar-sentinel/core/internal/storage"
)

const (
	DefaultHeirInactivityDays = 90
	DefaultStrikeThreshold    = 3
)

// HeirClaimMessage renders the canonical "heir claim" message an heir must
// sign to trigger RC-1.02.
func HeirClaimMessage(agentID, heirAddress string) string {
	return fmt.Sprintf("pulsar-sentinel:heir-claim:%s:%s", agentID, heirAddress)
}

// TransferToHeir implements RC-1.02: if the agent has been inactive for at
// least inactivityDays and heirSig recovers to the agent's designated heir
// address, the heir becomes the agent of record and the original agent is
// revoked. Only identity moves: the heir's new record carries the original
// role and tier with a zero strike count; no key or other asset is
// reassigned.
func TransferToHeir(db *storage.DB, agentID string, inactivityDays int, heirSig []byte) (newAgentID string, err error) {
	if inactivityDays <= 0 {
		inactivityDays = DefaultHeirInactivityDays
	}

	agent, err := db.GetAgent(agentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrHeirClaimInvalid
		}
		return "", fmt.Errorf("rules: get agent: %w", err)
	}
	if agent.HeirAddress == "" {
		return "", ErrHeirClaimInvalid
	}

	inactiveFor := time.Since(time.UnixMilli(agent.LastActivity))
	if inactiveFor < time.Duration(inactivityDays)*24*time.Hour {
		return "", ErrNotEligible
	}

	claim := HeirClaimMessage(agentID, agent.HeirAddress)
	recovered, err := pqcrypto.RecoverAddress([]byte(claim), heirSig)
	if err != nil {
		return "", fmt.Errorf("rules: %w: %v", ErrHeirClaimInvalid, err)
	}
	if !pqcrypto.AddressesEqual(recovered, agent.HeirAddress) {
		return "", ErrHeirClaimInvalid
	}

	agent.Revoked = true
	if err := db.UpsertAgent(agent); err != nil {
		return "", fmt.Errorf("rules: revoke original agent: %w", err)
	}

	heir := &storage.AgentRecord{
		AgentID:      agent.HeirAddress,
		Role:         agent.Role,
		Tier:         agent.Tier,
		StrikeCount:  0,
		LastActivity: time.Now().UnixMilli(),
	}
	if err := db.UpsertAgent(heir); err != nil {
		return "", fmt.Errorf("rules: install heir agent: %w", err)
	}
	return heir.AgentID, nil
}

// Strike implements RC-2.01: increment the strike count and ban the agent
// once it reaches threshold (STRIKE_THRESHOLD). Callers passing threshold
// <= 0 get DefaultStrikeThreshold.
func Strike(db *storage.DB, agentID string, threshold int) (banned bool, err error) {
	if threshold <= 0 {
		threshold = DefaultStrikeThreshold
	}
	count, err := db.IncrementStrike(agentID)
	if err != nil {
		return false, fmt.Errorf("rules: increment strike: %w", err)
	}
	return count >= threshold, nil
}

// ResetStrikes clears an agent's strike count, reversing a ban. Callers
// must have already verified admin quorum before invoking this.
func ResetStrikes(db *storage.DB, agentID string) error {
	return db.ResetStrikes(agentID)
}

// IsBanned reports whether an agent has reached threshold. Callers passing
// threshold <= 0 get DefaultStrikeThreshold.
func IsBanned(agent *storage.AgentRecord, threshold int) bool {
	if threshold <= 0 {
		threshold = DefaultStrikeThreshold
	}
	return agent.StrikeCount >= threshold
}
