package hybrid

import (
	"crypto/rand"
	"fmt"

	"github.com/pulsar-sentinel/core/internal/pqcrypto"
)

const aesIVLen = 16

// EncryptAES implements the classical-only fallback: PBKDF2-derived
// cipher/MAC keys, AES-256-CBC, encrypt-then-MAC with HMAC-SHA256, assembled
// into the PSA1 envelope.
func EncryptAES(password string, plaintext []byte) ([]byte, error) {
	salt, err := pqcrypto.GenerateSalt16()
	if err != nil {
		return nil, fmt.Errorf("hybrid: salt: %w", err)
	}
	cipherKey, macKey := pqcrypto.DerivePBKDF2Key(password, salt)
	defer zero(cipherKey)
	defer zero(macKey)

	iv := make([]byte, aesIVLen)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("hybrid: iv: %w", err)
	}

	ct, err := pqcrypto.CBCEncrypt(cipherKey, iv, plaintext)
	if err != nil {
		return nil, fmt.Errorf("hybrid: cbc encrypt: %w", err)
	}

	mac := pqcrypto.HMACSHA256(macKey, append(append([]byte{}, iv...), ct...))
	return encodeAESEnvelope(salt, iv, mac, ct), nil
}

// DecryptAES reverses EncryptAES. The MAC is verified before any decryption
// is attempted (encrypt-then-MAC), in constant time.
func DecryptAES(password string, envelope []byte) ([]byte, error) {
	dec, err := decodeAESEnvelope(envelope)
	if err != nil {
		return nil, err
	}

	cipherKey, macKey := pqcrypto.DerivePBKDF2Key(password, dec.Salt)
	defer zero(cipherKey)
	defer zero(macKey)

	expectedMAC := pqcrypto.HMACSHA256(macKey, append(append([]byte{}, dec.IV...), dec.CT...))
	if !pqcrypto.ConstantTimeEqual(expectedMAC, dec.MAC) {
		return nil, pqcrypto.ErrAuthenticationFailure
	}

	plaintext, err := pqcrypto.CBCDecrypt(cipherKey, dec.IV, dec.CT)
	if err != nil {
		return nil, fmt.Errorf("hybrid: cbc decrypt: %w", err)
	}
	return plaintext, nil
}
