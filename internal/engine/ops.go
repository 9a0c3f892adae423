package engine

import (
	"fmt"
	"log"
	"time"

	"github.com/pulsar-sentinel/core/internal/asr"
	"github.com/pulsar-sentinel/core/internal/authproto"
	"github.com/pulsar-sentinel/core/internal/hybrid"
	"github.com/pulsar-sentinel/core/internal/metadata"
	"github.com/pulsar-sentinel/core/internal/rules"
	"github.com/pulsar-sentinel/core/internal/threat"
)

// Encrypt runs the full capability chain for a hybrid PQC seal: Access.Check
// gates role, ban, tier lock, and quota before any ciphertext is produced,
// and for a registered agent the outcome lands on the audit trail whether it
// succeeds or is denied. An unregistered agent is refused with no record.
func (e *Engine) Encrypt(agentID, keyID string, plaintext []byte) ([]byte, error) {
	if dec := e.Access.Check(agentID, rules.Operation{Name: "encrypt", RequiredRole: rules.RoleUser}); !dec.Allowed {
		return nil, dec.Reason
	}

	envelope, err := e.timedHybridOp("encrypt", func() ([]byte, error) {
		return e.Hybrid.Encrypt(keyID, plaintext)
	})
	if err != nil {
		return nil, fmt.Errorf("engine: encrypt: %w", err)
	}

	e.recordCryptoOp(agentID, asr.ActionEncryptHybrid, asr.PQCStatusSafe, keyID)
	return envelope, nil
}

// Decrypt runs the same capability chain for unsealing a PSH1 envelope.
func (e *Engine) Decrypt(agentID, keyID string, envelope []byte) ([]byte, error) {
	if dec := e.Access.Check(agentID, rules.Operation{Name: "decrypt", RequiredRole: rules.RoleUser, ReadOnly: true}); !dec.Allowed {
		return nil, dec.Reason
	}

	plaintext, err := e.timedHybridOp("decrypt", func() ([]byte, error) {
		return e.Hybrid.Decrypt(keyID, envelope)
	})
	if err != nil {
		return nil, fmt.Errorf("engine: decrypt: %w", err)
	}

	e.recordCryptoOp(agentID, asr.ActionDecrypt, asr.PQCStatusSafe, keyID)
	return plaintext, nil
}

// EncryptClassical runs the classical-only AES fallback path behind the same
// capability chain. Every call counts toward the agent's quantum_risk factor
// per spec.md's "quantum_risk counts operations performed with non-PQC
// algorithms" — the hybrid path above never touches this counter.
func (e *Engine) EncryptClassical(agentID, password string, plaintext []byte) ([]byte, error) {
	if dec := e.Access.Check(agentID, rules.Operation{Name: "encrypt-classical", RequiredRole: rules.RoleUser}); !dec.Allowed {
		return nil, dec.Reason
	}

	envelope, err := e.timedHybridOp("encrypt_classical", func() ([]byte, error) {
		return hybrid.EncryptAES(password, plaintext)
	})
	if err != nil {
		return nil, fmt.Errorf("engine: encrypt classical: %w", err)
	}

	e.recordCryptoOp(agentID, asr.ActionEncryptAes, asr.PQCStatusWarning, "")
	if _, _, _, err := e.Threat.RecordAndScore(agentID, threat.KindQuantumRisk); err != nil {
		return envelope, fmt.Errorf("engine: record quantum risk: %w", err)
	}
	return envelope, nil
}

// DecryptClassical reverses EncryptClassical behind the same capability
// chain. Successful classical decryption is not itself a fresh non-PQC
// operation on top of the encryption that produced the envelope, so it does
// not add a second quantum_risk count.
func (e *Engine) DecryptClassical(agentID, password string, envelope []byte) ([]byte, error) {
	if dec := e.Access.Check(agentID, rules.Operation{Name: "decrypt-classical", RequiredRole: rules.RoleUser, ReadOnly: true}); !dec.Allowed {
		return nil, dec.Reason
	}

	plaintext, err := e.timedHybridOp("decrypt_classical", func() ([]byte, error) {
		return hybrid.DecryptAES(password, envelope)
	})
	if err != nil {
		return nil, fmt.Errorf("engine: decrypt classical: %w", err)
	}

	e.recordCryptoOp(agentID, asr.ActionDecrypt, asr.PQCStatusWarning, "")
	return plaintext, nil
}

// GenerateKeypair issues a fresh hybrid keypair behind an admin-role
// capability check and records the issuance on the audit trail.
func (e *Engine) GenerateKeypair(agentID string) (*hybrid.Keypair, error) {
	if dec := e.Access.Check(agentID, rules.Operation{Name: "key-generate", RequiredRole: rules.RoleAdmin}); !dec.Allowed {
		return nil, dec.Reason
	}
	kp, err := e.Hybrid.GenerateKeypair()
	if err != nil {
		return nil, fmt.Errorf("engine: generate keypair: %w", err)
	}
	e.recordCryptoOp(agentID, asr.ActionKeyGenerate, asr.PQCStatusSafe, kp.KeyID)
	return kp, nil
}

// RotateKeypair rotates a hybrid keypair behind an admin-role capability
// check and records the rotation on the audit trail.
func (e *Engine) RotateKeypair(agentID, oldKeyID string) (*hybrid.Keypair, error) {
	if dec := e.Access.Check(agentID, rules.Operation{Name: "key-rotate", RequiredRole: rules.RoleAdmin}); !dec.Allowed {
		return nil, dec.Reason
	}
	kp, err := e.Hybrid.Rotate(oldKeyID)
	if err != nil {
		return nil, fmt.Errorf("engine: rotate keypair: %w", err)
	}
	e.recordCryptoOp(agentID, asr.ActionKeyRotate, asr.PQCStatusSafe, kp.KeyID)
	return kp, nil
}

// Authenticate runs the wallet-signature auth protocol's verify step and
// records the outcome. On success, the ASR entry attests the session was
// minted under the recovered address; failure recording lives inside
// authproto.Verifier itself, since a rejected signature never reaches here
// with an agentID the caller can be trusted to have supplied honestly.
func (e *Engine) Authenticate(agentID, nonce string, signature []byte, role, tier string) (*authproto.VerifyResult, error) {
	result, err := e.Auth.Verify(agentID, nonce, signature, role, tier)
	if err != nil {
		return nil, err
	}
	if _, err := e.Pipeline.Submit(agentID, asr.ActionAuthenticate, asr.ThreatLevelInfo, asr.PQCStatusSafe, metadata.Map(nil)); err != nil {
		return result, fmt.Errorf("engine: record authenticate asr: %w", err)
	}
	return result, nil
}

// timedHybridOp runs a hybrid crypto operation while observing its latency
// under the given Prometheus label.
func (e *Engine) timedHybridOp(op string, fn func() ([]byte, error)) ([]byte, error) {
	start := time.Now()
	out, err := fn()
	e.Metrics.HybridOpLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	return out, err
}

func (e *Engine) recordCryptoOp(agentID string, action asr.Action, status asr.PQCStatus, keyID string) {
	meta := metadata.Map(nil)
	if keyID != "" {
		meta = metadata.Map(map[string]metadata.Value{"key_id": metadata.String(keyID)})
	}
	if _, err := e.Pipeline.Submit(agentID, action, asr.ThreatLevelInfo, status, meta); err != nil {
		log.Printf("engine: record %s asr for %s: %v", action, agentID, err)
	}
}
