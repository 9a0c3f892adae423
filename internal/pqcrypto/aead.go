package pqcrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// AESGCMNonceLen is the standard 96-bit GCM nonce length used throughout.
const AESGCMNonceLen = 12

// DeriveAESKey derives a 32-byte AES-256 key from a KEM shared secret using
// HKDF-SHA256, salted with the fixed hybrid-domain string and keyed to the
// specific recipient key via the info parameter. This binds the derived key
// to both the protocol version and the exact key that was encapsulated
// against, so a key confusion across key_ids cannot reuse a derived key.
func DeriveAESKey(sharedSecret []byte, info string) ([]byte, error) {
	salt := []byte("PULSAR-HYBRID-v1")
	r := hkdf.New(sha256.New, sharedSecret, salt, []byte(info))
	key := make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("pqcrypto: hkdf expand: %w", err)
	}
	return key, nil
}

// RandomNonce returns n cryptographically random bytes for use as an AEAD nonce.
func RandomNonce(n int) ([]byte, error) {
	return randomBytes(n)
}

// SealGCM AES-256-GCM-encrypts plaintext with the given key and nonce, no AAD.
func SealGCM(key, nonce, plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("pqcrypto: %w: bad nonce length", ErrMalformed)
	}
	return gcm.Seal(nil, nonce, plaintext, nil), nil
}

// OpenGCM AES-256-GCM-decrypts ciphertext with the given key and nonce, no AAD.
// Any authentication failure is reported as ErrAuthenticationFailure without
// distinguishing it from a malformed ciphertext.
func OpenGCM(key, nonce, ciphertext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("%w: bad nonce length", ErrMalformed)
	}
	pt, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrAuthenticationFailure
	}
	return pt, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("%w: AES-256 key must be 32 bytes", ErrMalformed)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("pqcrypto: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("pqcrypto: new gcm: %w", err)
	}
	return gcm, nil
}

// GenerateSalt16 returns a 16-byte cryptographically random salt, as required
// for the AES-only envelope and the PBKDF2 KDF.
func GenerateSalt16() ([]byte, error) {
	return randomBytes(16)
}
