package pqcrypto

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"
)

// RecoverAddress recovers the Ethereum-style 0x-prefixed lowercase-hex
// address of the signer of msg from a 65-byte [R || S || V] compact
// recoverable signature, where V is 0/1 (or 27/28, both accepted).
func RecoverAddress(msg, sig []byte) (string, error) {
	if len(sig) != 65 {
		return "", fmt.Errorf("pqcrypto: %w: signature must be 65 bytes, got %d", ErrMalformed, len(sig))
	}

	recID := sig[64]
	if recID >= 27 {
		recID -= 27
	}
	if recID > 3 {
		return "", fmt.Errorf("pqcrypto: %w: invalid recovery id", ErrMalformed)
	}

	// dcrd's RecoverCompact expects the recovery byte first: [27+recID || R || S].
	compact := make([]byte, 65)
	compact[0] = 27 + recID
	copy(compact[1:], sig[:64])

	hash := Keccak256(msg)
	pub, _, err := ecdsa.RecoverCompact(compact, hash)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthenticationFailure, err)
	}

	return AddressFromPublicKey(pub), nil
}

// AddressFromPublicKey derives the 20-byte, 0x-prefixed lowercase-hex
// Ethereum-style address from an uncompressed secp256k1 public key:
// the low 20 bytes of Keccak256 of the uncompressed key with the leading
// 0x04 prefix byte stripped.
func AddressFromPublicKey(pub *secp256k1.PublicKey) string {
	uncompressed := pub.SerializeUncompressed() // 65 bytes: 0x04 || X || Y
	digest := Keccak256(uncompressed[1:])
	return "0x" + hex.EncodeToString(digest[12:])
}

// Keccak256 computes the Keccak-256 (pre-NIST-finalization SHA-3) digest,
// matching Ethereum's address and message-hash convention.
func Keccak256(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}

// NormalizeAddress lowercases and validates a 0x-prefixed 20-byte hex address.
func NormalizeAddress(addr string) (string, error) {
	lower := strings.ToLower(strings.TrimSpace(addr))
	if !strings.HasPrefix(lower, "0x") {
		return "", fmt.Errorf("%w: address must be 0x-prefixed", ErrMalformed)
	}
	raw, err := hex.DecodeString(lower[2:])
	if err != nil || len(raw) != 20 {
		return "", fmt.Errorf("%w: address must decode to 20 bytes", ErrMalformed)
	}
	return lower, nil
}

// AddressesEqual performs a constant-time, case-insensitive comparison of
// two 0x-prefixed hex addresses.
func AddressesEqual(a, b string) bool {
	a, b = strings.ToLower(a), strings.ToLower(b)
	if len(a) != len(b) {
		return false
	}
	return ConstantTimeEqual([]byte(a), []byte(b))
}
