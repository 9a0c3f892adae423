// Package hybrid implements the Hybrid PQC Engine: keypair lifecycle,
// envelope encoding, and the classical-only fallback path. It composes
// internal/pqcrypto and internal/keystore rather than touching any
// primitive directly.
package hybrid

import (
	"errors"
	"fmt"
	"time"

	"github.com/pulsar-sentinel/core/internal/keystore"
	"github.com/pulsar-sentinel/core/internal/pqcrypto"
)

var ErrKeyStale = errors.New("hybrid: key is stale, generate a fresh keypair")
var ErrKeyGraceExpired = errors.New("hybrid: key's post-rotation grace period has expired")

// Keypair is the caller-facing view of a hybrid PQC keypair. The private
// half never leaves the keystore in the clear; Store holds a SealedSecret.
type Keypair struct {
	KeyID     string
	Level     pqcrypto.Level
	PublicKey []byte
	CreatedAt time.Time
	Stale     bool
	RotatedTo string
	RotatedAt time.Time
}

// Engine is the top-level Hybrid PQC Engine contract: generate, rotate, and
// look up keypairs, backed by a keystore.Store.
type Engine struct {
	store          *keystore.Store
	rotationWindow time.Duration
	defaultLevel   pqcrypto.Level
	decryptGrace   time.Duration
}

// defaultDecryptGracePeriod bounds how long a stale key may still decapsulate
// once it has been rotated, when the caller does not set one explicitly.
const defaultDecryptGracePeriod = 30 * 24 * time.Hour

// NewEngine builds a hybrid engine bound to a keystore and a key rotation
// interval (spec.md's key_rotation_days, converted to a duration by the
// caller). The decryption grace period after rotation defaults to
// defaultDecryptGracePeriod; use NewEngineWithGrace to override it.
func NewEngine(store *keystore.Store, defaultLevel pqcrypto.Level, rotationWindow time.Duration) *Engine {
	return NewEngineWithGrace(store, defaultLevel, rotationWindow, defaultDecryptGracePeriod)
}

// NewEngineWithGrace is NewEngine with an explicit post-rotation decryption
// grace period (spec.md's Keypair invariant: even decapsulation stops after
// a configurable grace period).
func NewEngineWithGrace(store *keystore.Store, defaultLevel pqcrypto.Level, rotationWindow, decryptGrace time.Duration) *Engine {
	return &Engine{store: store, rotationWindow: rotationWindow, defaultLevel: defaultLevel, decryptGrace: decryptGrace}
}

// GenerateKeypair creates and seals a fresh keypair at the engine's default
// security level.
func (e *Engine) GenerateKeypair() (*Keypair, error) {
	pub, priv, err := pqcrypto.GenerateKEMKeypair(e.defaultLevel)
	if err != nil {
		return nil, fmt.Errorf("hybrid: generate keypair: %w", err)
	}
	pubBytes, err := pqcrypto.MarshalPublicKey(e.defaultLevel, pub)
	if err != nil {
		return nil, fmt.Errorf("hybrid: marshal public key: %w", err)
	}
	privBytes, err := pqcrypto.MarshalPrivateKey(e.defaultLevel, priv)
	if err != nil {
		return nil, fmt.Errorf("hybrid: marshal private key: %w", err)
	}
	keyID, err := pqcrypto.KeyID(e.defaultLevel, pub)
	if err != nil {
		return nil, fmt.Errorf("hybrid: derive key id: %w", err)
	}

	createdAt := time.Now()
	if err := e.store.PutKeypair(keyID, int(e.defaultLevel), pubBytes, privBytes, createdAt); err != nil {
		return nil, fmt.Errorf("hybrid: seal keypair: %w", err)
	}

	return &Keypair{
		KeyID:     keyID,
		Level:     e.defaultLevel,
		PublicKey: pubBytes,
		CreatedAt: createdAt,
	}, nil
}

// Lookup returns the public metadata for a key id, without touching the
// sealed private half.
func (e *Engine) Lookup(keyID string) (*Keypair, error) {
	rec, err := e.store.Describe(keyID)
	if err != nil {
		return nil, err
	}
	kp := &Keypair{
		KeyID:     rec.KeyID,
		Level:     pqcrypto.Level(rec.Level),
		PublicKey: rec.PublicKey,
		CreatedAt: time.UnixMilli(rec.CreatedAt),
		Stale:     rec.Stale,
		RotatedTo: rec.RotatedTo,
	}
	if rec.RotatedAt > 0 {
		kp.RotatedAt = time.UnixMilli(rec.RotatedAt)
	}
	return kp, nil
}

// IsStale reports whether a keypair has aged past the rotation window.
func (e *Engine) IsStale(kp *Keypair) bool {
	if kp.Stale {
		return true
	}
	return time.Since(kp.CreatedAt) >= e.rotationWindow
}

// Rotate generates a replacement keypair and marks the old one stale,
// pointing at its successor. Ciphertexts already sealed under the old key
// remain decryptable until the decrypt grace period lapses; new encryptions
// must use the fresh key.
func (e *Engine) Rotate(oldKeyID string) (*Keypair, error) {
	fresh, err := e.GenerateKeypair()
	if err != nil {
		return nil, fmt.Errorf("hybrid: rotate: %w", err)
	}
	if err := e.store.MarkStale(oldKeyID, fresh.KeyID); err != nil {
		return nil, fmt.Errorf("hybrid: rotate: mark stale: %w", err)
	}
	return fresh, nil
}

// Encrypt seals plaintext for the given key id. Refuses to encapsulate
// against a stale key; decapsulation of prior ciphertexts stays permitted
// separately through Decrypt.
func (e *Engine) Encrypt(keyID string, plaintext []byte) ([]byte, error) {
	kp, err := e.Lookup(keyID)
	if err != nil {
		return nil, err
	}
	if e.IsStale(kp) {
		return nil, ErrKeyStale
	}
	return EncryptHybrid(kp.Level, kp.KeyID, kp.PublicKey, plaintext)
}

// Decrypt unseals an envelope using the sealed private half of keyID. Stale
// keys remain usable for decryption so in-flight ciphertexts survive
// rotation, but only until decryptGrace has elapsed since the key was
// rotated; past that, the private half is refused even though it is still
// sealed in the store.
func (e *Engine) Decrypt(keyID string, envelope []byte) ([]byte, error) {
	kp, err := e.Lookup(keyID)
	if err != nil {
		return nil, err
	}
	if kp.Stale && !kp.RotatedAt.IsZero() && time.Since(kp.RotatedAt) > e.decryptGrace {
		return nil, ErrKeyGraceExpired
	}

	var plaintext []byte
	err = e.store.UsePrivateKey(keyID, func(raw []byte) error {
		out, err := DecryptHybrid(keyID, raw, envelope)
		if err != nil {
			return err
		}
		plaintext = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return plaintext, nil
}
