package pqcrypto

import (
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

func TestRecoverAddress_MatchesSigner(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	pub := priv.PubKey()
	wantAddr := AddressFromPublicKey(pub)

	msg := []byte("nonce-challenge-message")
	hash := Keccak256(msg)
	compact := ecdsa.SignCompact(priv, hash, false)

	// Convert dcrd compact [recid+27 || R || S] into our wire format
	// [R || S || recid].
	sig := make([]byte, 65)
	copy(sig, compact[1:])
	sig[64] = compact[0] - 27

	gotAddr, err := RecoverAddress(msg, sig)
	if err != nil {
		t.Fatalf("RecoverAddress: %v", err)
	}
	if gotAddr != wantAddr {
		t.Fatalf("recovered address %s != signer address %s", gotAddr, wantAddr)
	}
}

func TestRecoverAddress_TamperedSignatureFails(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	msg := []byte("nonce-challenge-message")
	hash := Keccak256(msg)
	compact := ecdsa.SignCompact(priv, hash, false)
	sig := make([]byte, 65)
	copy(sig, compact[1:])
	sig[64] = compact[0] - 27

	otherAddr := AddressFromPublicKey(priv.PubKey())
	sig[10] ^= 0xFF // flip a bit in R

	gotAddr, err := RecoverAddress(msg, sig)
	if err == nil && gotAddr == otherAddr {
		t.Fatal("tampering with the signature should not recover the original address")
	}
}

func TestNormalizeAddress(t *testing.T) {
	addr, err := NormalizeAddress("0xABCDEF0123456789ABCDEF0123456789ABCDEF01")
	if err != nil {
		t.Fatalf("NormalizeAddress: %v", err)
	}
	want := "0xabcdef0123456789abcdef0123456789abcdef01"
	if addr != want {
		t.Fatalf("got %s, want %s", addr, want)
	}

	if _, err := NormalizeAddress("not-an-address"); err == nil {
		t.Fatal("expected error for malformed address")
	}
}
