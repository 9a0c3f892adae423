package pqcrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2Iterations is the minimum iteration count spec.md mandates for the
// AES-only classical fallback's password KDF.
const PBKDF2Iterations = 600_000

// DerivePBKDF2Key derives a 32-byte AES-256 key and a 32-byte HMAC key
// (64 bytes total) from a password and salt via PBKDF2-HMAC-SHA256,
// encrypt-then-MAC style: the first 32 bytes are the cipher key, the
// remaining 32 the MAC key.
func DerivePBKDF2Key(password string, salt []byte) (cipherKey, macKey []byte) {
	derived := pbkdf2.Key([]byte(password), salt, PBKDF2Iterations, 64, sha256.New)
	return derived[:32], derived[32:]
}

// Argon2 parameters for the keystore's passphrase-derived KEK, matching the
// reference codebase's own hardening choice for password-derived keys.
const (
	argonTime    = 3
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
)

// DeriveKEK derives a 32-byte key-encrypting-key from a passphrase via
// Argon2id, for sealing private key material at rest.
func DeriveKEK(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}

// HMACSHA256 computes HMAC-SHA256(key, data).
func HMACSHA256(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

// ConstantTimeEqual reports whether a and b are equal, in time independent
// of where they first differ.
func ConstantTimeEqual(a, b []byte) bool {
	return hmac.Equal(a, b)
}

// SHA256Hex returns the lowercase hex SHA-256 digest of data.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SHA256 returns the raw SHA-256 digest of data.
func SHA256(data []byte) [32]byte {
	return sha256.Sum256(data)
}

func keyIDFromBytes(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:16])
}

// CBCEncrypt AES-256-CBC-encrypts plaintext (PKCS#7 padded) with the given
// key and 16-byte IV, for the AES-only envelope's cipher layer.
func CBCEncrypt(key, iv, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("pqcrypto: new cipher: %w", err)
	}
	padded := pkcs7Pad(plaintext, block.BlockSize())
	out := make([]byte, len(padded))
	mode := cipher.NewCBCEncrypter(block, iv)
	mode.CryptBlocks(out, padded)
	return out, nil
}

// CBCDecrypt AES-256-CBC-decrypts and unpads ciphertext.
func CBCDecrypt(key, iv, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("pqcrypto: new cipher: %w", err)
	}
	if len(ciphertext) == 0 || len(ciphertext)%block.BlockSize() != 0 {
		return nil, ErrMalformed
	}
	out := make([]byte, len(ciphertext))
	mode := cipher.NewCBCDecrypter(block, iv)
	mode.CryptBlocks(out, ciphertext)
	return pkcs7Unpad(out)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrMalformed
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > len(data) || padLen > aes.BlockSize {
		return nil, ErrMalformed
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, ErrMalformed
		}
	}
	return data[:len(data)-padLen], nil
}
