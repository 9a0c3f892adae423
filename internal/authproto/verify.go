package authproto

import (
	"fmt"
	"log"
	"time"

	"github.com/pulsar-sentinel/core/internal/asr"
	"github.com/pulsar-sentinel/core/internal/metadata"
	"github.com/pulsar-sentinel/core/internal/pqcrypto"
	"github.com/pulsar-sentinel/core/internal/storage"
	"github.com/pulsar-sentinel/core/internal/threat"
)

// Verifier ties nonce redemption, secp256k1 recovery, and session issuance
// into the auth protocol's verify(agent_id, signature, nonce) contract.
type Verifier struct {
	db         *storage.DB
	signingKey []byte
	lifetime   time.Duration
	window     *threat.Window
	pipeline   *asr.Pipeline
}

// NewVerifier builds a verifier bound to the session-signing key. window and
// pipeline may be nil, in which case a failed verification is not recorded
// anywhere beyond its returned error.
func NewVerifier(db *storage.DB, signingKey []byte, sessionLifetime time.Duration, window *threat.Window, pipeline *asr.Pipeline) *Verifier {
	return &Verifier{db: db, signingKey: signingKey, lifetime: sessionLifetime, window: window, pipeline: pipeline}
}

// VerifyResult is what a successful verify(...) call hands back.
type VerifyResult struct {
	Token     string
	ExpiresAt time.Time
}

// Verify re-renders the canonical message from stored nonce state, recovers
// the signer address from signature, and compares it against agentID. On
// success the nonce is consumed atomically and a session token is minted.
func (v *Verifier) Verify(agentID, nonce string, signature []byte, role, tier string) (*VerifyResult, error) {
	rec, err := v.db.GetNonce(nonce)
	if err != nil {
		return nil, fmt.Errorf("authproto: %w", ErrNonceUnknown)
	}
	if rec.Used {
		return nil, ErrNonceUsed
	}
	if time.Now().UnixMilli() > rec.ExpiresAt {
		return nil, ErrNonceExpired
	}
	if rec.AgentID != agentID {
		return nil, fmt.Errorf("authproto: %w", ErrNonceUnknown)
	}

	recovered, err := pqcrypto.RecoverAddress([]byte(rec.Message), signature)
	if err != nil {
		v.recordSignatureFailure(agentID)
		return nil, fmt.Errorf("authproto: %w", pqcrypto.ErrAuthenticationFailure)
	}
	if !pqcrypto.AddressesEqual(recovered, agentID) {
		v.recordSignatureFailure(agentID)
		return nil, pqcrypto.ErrAuthenticationFailure
	}

	consumed, err := v.db.ConsumeNonce(nonce)
	if err != nil {
		return nil, fmt.Errorf("authproto: consume nonce: %w", err)
	}
	if !consumed {
		return nil, ErrNonceUsed
	}

	token := Issue(v.signingKey, agentID, role, tier, v.lifetime)
	lifetime := v.lifetime
	if lifetime == 0 {
		lifetime = DefaultSessionLifetime
	}
	return &VerifyResult{Token: token, ExpiresAt: time.Now().Add(lifetime)}, nil
}

// recordSignatureFailure implements spec §4.6's "on failure,
// signature_failures increments": the failure counts toward the agent's
// threat window and is recorded on the audit trail.
func (v *Verifier) recordSignatureFailure(agentID string) {
	if v.window != nil {
		if err := v.window.Record(agentID, threat.KindSignatureFailure); err != nil {
			log.Printf("authproto: record signature failure for %s: %v", agentID, err)
		}
	}
	if v.pipeline != nil {
		if _, err := v.pipeline.Submit(agentID, asr.ActionSignatureFail, asr.ThreatLevelWarning, asr.PQCStatusSafe, metadata.Map(nil)); err != nil {
			log.Printf("authproto: record signature fail asr for %s: %v", agentID, err)
		}
	}
}
