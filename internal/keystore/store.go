// Package keystore seals private key material at rest and mediates every
// access to it through a SealedSecret, so no other package ever holds a raw
// private key longer than a single callback.
package keystore

import (
	"fmt"
	"time"

	"github.com/pulsar-sentinel/core/internal/pqcrypto"
	"github.com/pulsar-sentinel/core/internal/storage"
)

// Store persists sealed keypairs in SQLite and unseals them on demand under
// an Argon2id-derived key-encryption key.
type Store struct {
	db  *storage.DB
	kek []byte // process-lifetime KEK derived once at startup from the master passphrase
}

// Open derives the store's key-encryption key from a passphrase and a
// per-installation salt, and binds it to the durable database.
func Open(db *storage.DB, passphrase string, kekSalt []byte) *Store {
	kek := pqcrypto.DeriveKEK(passphrase, kekSalt)
	return &Store{db: db, kek: kek}
}

// KeyDescriptor is the public-safe view of a stored key.
type KeyDescriptor struct {
	KeyID     string
	Level     int
	PublicKey []byte
	CreatedAt int64
	Stale     bool
	RotatedTo string
	RotatedAt int64
}

// PutKeypair seals a freshly generated private key under the store's KEK and
// persists both halves.
func (s *Store) PutKeypair(keyID string, level int, pubBytes, privBytes []byte, createdAt time.Time) error {
	salt, err := pqcrypto.GenerateSalt16()
	if err != nil {
		return fmt.Errorf("keystore: salt: %w", err)
	}
	nonce, err := pqcrypto.RandomNonce(pqcrypto.AESGCMNonceLen)
	if err != nil {
		return fmt.Errorf("keystore: nonce: %w", err)
	}
	sealed, err := pqcrypto.SealGCM(s.kek, nonce, privBytes)
	if err != nil {
		return fmt.Errorf("keystore: seal: %w", err)
	}
	// nonce travels with the sealed blob: nonce || ciphertext
	blob := append(append([]byte{}, nonce...), sealed...)

	return s.db.PutKey(&storage.KeyRecord{
		KeyID:        keyID,
		Level:        level,
		PublicKey:    pubBytes,
		SealedSecret: blob,
		KEKSalt:      salt,
		CreatedAt:    createdAt.UnixMilli(),
	})
}

// Describe returns the public metadata for a stored key, without unsealing
// the private half.
func (s *Store) Describe(keyID string) (*KeyDescriptor, error) {
	rec, err := s.db.GetKey(keyID)
	if err != nil {
		return nil, fmt.Errorf("keystore: %w: %v", ErrKeyNotFound, err)
	}
	return &KeyDescriptor{
		KeyID:     rec.KeyID,
		Level:     rec.Level,
		PublicKey: rec.PublicKey,
		CreatedAt: rec.CreatedAt,
		Stale:     rec.Stale,
		RotatedTo: rec.RotatedTo,
		RotatedAt: rec.RotatedAt,
	}, nil
}

// UsePrivateKey unseals a private key and hands its raw bytes to fn under a
// SealedSecret, releasing the buffer as soon as fn returns.
func (s *Store) UsePrivateKey(keyID string, fn func(raw []byte) error) error {
	rec, err := s.db.GetKey(keyID)
	if err != nil {
		return fmt.Errorf("keystore: %w: %v", ErrKeyNotFound, err)
	}
	if len(rec.SealedSecret) < pqcrypto.AESGCMNonceLen {
		return ErrKeyStoreCorrupted
	}
	nonce := rec.SealedSecret[:pqcrypto.AESGCMNonceLen]
	ciphertext := rec.SealedSecret[pqcrypto.AESGCMNonceLen:]

	raw, err := pqcrypto.OpenGCM(s.kek, nonce, ciphertext)
	if err != nil {
		return fmt.Errorf("keystore: unseal %s: %w", keyID, err)
	}

	sealed := Seal(raw)
	defer sealed.Release()
	return sealed.Use(fn)
}

// MarkStale flags a key as superseded by a successor key id, timestamping
// the rotation so the engine can bound how long decapsulation stays valid.
func (s *Store) MarkStale(keyID, rotatedTo string) error {
	return s.db.MarkKeyStale(keyID, rotatedTo, time.Now().UnixMilli())
}
