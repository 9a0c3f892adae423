// Package admin implements the Admin Quorum: an Ed25519 Web-of-Trust
// scheme, generalized from a peer-endorsement network to gate irreversible
// governance actions (outright bans pending review, disputed heir claims,
// reset_strikes overrides on an already-banned agent) behind multiple
// independent operator signatures.
package admin

import (
	"crypto/ed25519"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/pulsar-sentinel/core/internal/rules"
	"github.com/pulsar-sentinel/core/internal/storage"
)

var (
	ErrQuorumNotMet      = errors.New("admin: action does not have enough valid endorsements")
	ErrOperatorRevoked   = errors.New("admin: operator is revoked")
	ErrOperatorUnknown   = errors.New("admin: operator is not registered")
	ErrSignatureInvalid  = errors.New("admin: endorsement signature invalid")
	ErrAlreadyEndorsed   = errors.New("admin: operator already endorsed this action")
)

// ActionKind is the closed set of governance actions that require quorum.
type ActionKind string

const (
	ActionBanPendingReview ActionKind = "ban_pending_review"
	ActionHeirDispute      ActionKind = "heir_dispute"
	ActionResetStrikesBan  ActionKind = "reset_strikes_override"
)

// DefaultQuorumThreshold is the number of distinct operator endorsements
// required before a governance action applies.
const DefaultQuorumThreshold = 2

// Quorum evaluates and applies governance actions gated on operator
// endorsements.
type Quorum struct {
	db        *storage.DB
	threshold int
}

// NewQuorum builds a quorum evaluator with the given endorsement threshold
// (0 selects DefaultQuorumThreshold).
func NewQuorum(db *storage.DB, threshold int) *Quorum {
	if threshold <= 0 {
		threshold = DefaultQuorumThreshold
	}
	return &Quorum{db: db, threshold: threshold}
}

// actionMessage constructs the canonical message an operator signs to
// endorse a governance action.
func actionMessage(actionID, kind, payload string) []byte {
	return []byte("PULSAR-ADMIN-ACTION:" + actionID + ":" + kind + ":" + payload)
}

// OpenAction creates a new pending governance action.
func (q *Quorum) OpenAction(id string, kind ActionKind, payload string) error {
	return q.db.CreateAction(id, string(kind), payload, time.Now().UnixMilli())
}

// Endorse records one operator's signature over a pending action. If this
// endorsement brings the action to threshold, it is marked applied, the
// governed change is carried out through dispatch, and applied is reported
// true.
func (q *Quorum) Endorse(actionID, operatorID string, sig []byte) (applied bool, err error) {
	action, err := q.db.GetAction(actionID)
	if err != nil {
		return false, fmt.Errorf("admin: get action: %w", err)
	}
	if action.QuorumMet {
		return true, nil
	}

	op, err := q.db.GetOperator(operatorID)
	if err != nil {
		return false, ErrOperatorUnknown
	}
	if op.Revoked {
		return false, ErrOperatorRevoked
	}

	pub := ed25519.PublicKey(op.PublicKey)
	msg := actionMessage(action.ID, action.Kind, action.Payload)
	if !ed25519.Verify(pub, msg, sig) {
		return false, ErrSignatureInvalid
	}

	if err := q.db.AddEndorsement(actionID, operatorID, hex.EncodeToString(sig), time.Now().UnixMilli()); err != nil {
		return false, fmt.Errorf("admin: %w: %v", ErrAlreadyEndorsed, err)
	}

	count, err := q.db.CountEndorsements(actionID)
	if err != nil {
		return false, fmt.Errorf("admin: count endorsements: %w", err)
	}
	if count < q.threshold {
		return false, nil
	}

	if err := q.db.MarkActionApplied(actionID, time.Now().UnixMilli()); err != nil {
		return false, fmt.Errorf("admin: mark applied: %w", err)
	}
	if err := q.dispatch(action); err != nil {
		return true, fmt.Errorf("admin: dispatch %s: %w", action.Kind, err)
	}
	return true, nil
}

// dispatch carries out the governed change once an action has crossed
// quorum. ban_pending_review revokes the payload agent outright;
// reset_strikes_override clears an already-banned agent's strike count per
// RC-2.01. heir_dispute records no automatic state change: resolving a
// disputed claim is a manual follow-up left to the operators who endorsed
// it, so quorum only establishes that enough of them agreed a dispute
// exists.
func (q *Quorum) dispatch(action *storage.ActionRecord) error {
	switch ActionKind(action.Kind) {
	case ActionBanPendingReview:
		agent, err := q.db.GetAgent(action.Payload)
		if errors.Is(err, sql.ErrNoRows) {
			agent = &storage.AgentRecord{AgentID: action.Payload, Role: "None", Tier: string(rules.TierLegacyBuilder)}
		} else if err != nil {
			return fmt.Errorf("get agent %s: %w", action.Payload, err)
		}
		agent.Revoked = true
		return q.db.UpsertAgent(agent)
	case ActionResetStrikesBan:
		return rules.ResetStrikes(q.db, action.Payload)
	case ActionHeirDispute:
		return nil
	default:
		return nil
	}
}

// Sign produces an operator's endorsement signature for an action, for use
// by operator tooling.
func Sign(priv ed25519.PrivateKey, actionID string, kind ActionKind, payload string) []byte {
	return ed25519.Sign(priv, actionMessage(actionID, string(kind), payload))
}

// RegisterOperator adds a new operator to the quorum at reputation 1.0.
func (q *Quorum) RegisterOperator(operatorID string, pub ed25519.PublicKey, label string) error {
	return q.db.PutOperator(&storage.OperatorRecord{
		OperatorID: operatorID,
		PublicKey:  pub,
		Label:      label,
		Reputation: 1.0,
		CreatedAt:  time.Now().UnixMilli(),
	})
}

// RevokeOperator removes an operator from the trusted set.
func (q *Quorum) RevokeOperator(operatorID string) error {
	return q.db.RevokeOperator(operatorID)
}

// OperatorIDFromPublicKey derives a short operator id from an Ed25519
// public key: the first 8 bytes, hex-encoded.
func OperatorIDFromPublicKey(pub ed25519.PublicKey) string {
	return hex.EncodeToString(pub[:8])
}
