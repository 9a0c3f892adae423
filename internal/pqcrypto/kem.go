// Package pqcrypto is a thin adapter over the vetted primitives PULSAR
// SENTINEL is built on: ML-KEM key encapsulation, AES-256-GCM AEAD,
// HKDF-SHA256, PBKDF2-SHA256, Argon2id, SHA-256, and ECDSA-secp256k1
// recovery. It implements no cryptographic primitive itself.
package pqcrypto

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/cloudflare/circl/kem"
	"github.com/cloudflare/circl/kem/mlkem/mlkem1024"
	"github.com/cloudflare/circl/kem/mlkem/mlkem768"
)

// Level identifies an ML-KEM security level.
type Level int

const (
	Level768  Level = 768
	Level1024 Level = 1024
)

var ErrUnknownLevel = errors.New("pqcrypto: unknown ML-KEM security level")

// schemeFor returns the CIRCL KEM scheme for a security level.
func schemeFor(level Level) (kem.Scheme, error) {
	switch level {
	case Level768:
		return mlkem768.Scheme(), nil
	case Level1024:
		return mlkem1024.Scheme(), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownLevel, level)
	}
}

// GenerateKEMKeypair generates a fresh ML-KEM keypair at the given level
// using the system CSPRNG.
func GenerateKEMKeypair(level Level) (kem.PublicKey, kem.PrivateKey, error) {
	scheme, err := schemeFor(level)
	if err != nil {
		return nil, nil, err
	}
	pub, priv, err := scheme.GenerateKeyPair()
	if err != nil {
		return nil, nil, fmt.Errorf("pqcrypto: generate keypair: %w", err)
	}
	return pub, priv, nil
}

// MarshalPublicKey serializes a public key at the given level.
func MarshalPublicKey(level Level, pub kem.PublicKey) ([]byte, error) {
	return pub.MarshalBinary()
}

// UnmarshalPublicKey parses a public key at the given level.
func UnmarshalPublicKey(level Level, data []byte) (kem.PublicKey, error) {
	scheme, err := schemeFor(level)
	if err != nil {
		return nil, err
	}
	pub, err := scheme.UnmarshalBinaryPublicKey(data)
	if err != nil {
		return nil, fmt.Errorf("pqcrypto: unmarshal public key: %w", err)
	}
	return pub, nil
}

// MarshalPrivateKey serializes a private key at the given level.
func MarshalPrivateKey(level Level, priv kem.PrivateKey) ([]byte, error) {
	return priv.MarshalBinary()
}

// UnmarshalPrivateKey parses a private key at the given level.
func UnmarshalPrivateKey(level Level, data []byte) (kem.PrivateKey, error) {
	scheme, err := schemeFor(level)
	if err != nil {
		return nil, err
	}
	priv, err := scheme.UnmarshalBinaryPrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("pqcrypto: unmarshal private key: %w", err)
	}
	return priv, nil
}

// Encapsulate performs the KEM encapsulation step against a recipient public
// key, returning the encapsulated ciphertext and the shared secret.
func Encapsulate(level Level, pub kem.PublicKey) (ct, sharedSecret []byte, err error) {
	scheme, err := schemeFor(level)
	if err != nil {
		return nil, nil, err
	}
	ct, ss, err := scheme.Encapsulate(pub)
	if err != nil {
		return nil, nil, fmt.Errorf("pqcrypto: encapsulate: %w", err)
	}
	return ct, ss, nil
}

// Decapsulate reverses Encapsulate using the holder's private key.
func Decapsulate(level Level, priv kem.PrivateKey, ct []byte) (sharedSecret []byte, err error) {
	scheme, err := schemeFor(level)
	if err != nil {
		return nil, err
	}
	if len(ct) != scheme.CiphertextSize() {
		return nil, fmt.Errorf("pqcrypto: decapsulate: %w", ErrMalformed)
	}
	ss, err := scheme.Decapsulate(priv, ct)
	if err != nil {
		return nil, fmt.Errorf("pqcrypto: decapsulate: %w", err)
	}
	return ss, nil
}

// CiphertextSize returns the fixed KEM ciphertext size for a level.
func CiphertextSize(level Level) (int, error) {
	scheme, err := schemeFor(level)
	if err != nil {
		return 0, err
	}
	return scheme.CiphertextSize(), nil
}

// KeyID returns a content-derived identifier for a public key: the first 16
// bytes of SHA-256(marshaled public key), hex-encoded.
func KeyID(level Level, pub kem.PublicKey) (string, error) {
	raw, err := pub.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("pqcrypto: marshal public key: %w", err)
	}
	return keyIDFromBytes(raw), nil
}

// randomBytes reads n cryptographically secure random bytes.
func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("pqcrypto: read random bytes: %w", err)
	}
	return b, nil
}
