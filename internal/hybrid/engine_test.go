package hybrid

import (
	"bytes"
	"testing"

	"github.com/pulsar-sentinel/core/internal/pqcrypto"
)

func TestEncryptDecryptHybrid_RoundTrip(t *testing.T) {
	pub, priv, err := pqcrypto.GenerateKEMKeypair(pqcrypto.Level768)
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}
	pubBytes, err := pqcrypto.MarshalPublicKey(pqcrypto.Level768, pub)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	privBytes, err := pqcrypto.MarshalPrivateKey(pqcrypto.Level768, priv)
	if err != nil {
		t.Fatalf("marshal private key: %v", err)
	}
	keyID, err := pqcrypto.KeyID(pqcrypto.Level768, pub)
	if err != nil {
		t.Fatalf("key id: %v", err)
	}

	plaintext := []byte("hello quantum")
	envelope, err := EncryptHybrid(pqcrypto.Level768, keyID, pubBytes, plaintext)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if !bytes.HasPrefix(envelope, []byte("PSH1\x01")) {
		t.Fatalf("expected PSH1\\x01 prefix, got %x", envelope[:5])
	}

	got, err := DecryptHybrid(keyID, privBytes, envelope)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("got %q, want %q", got, plaintext)
	}
}

func TestDecryptHybrid_TamperedEnvelopeFails(t *testing.T) {
	pub, priv, err := pqcrypto.GenerateKEMKeypair(pqcrypto.Level768)
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}
	pubBytes, _ := pqcrypto.MarshalPublicKey(pqcrypto.Level768, pub)
	privBytes, _ := pqcrypto.MarshalPrivateKey(pqcrypto.Level768, priv)
	keyID, _ := pqcrypto.KeyID(pqcrypto.Level768, pub)

	envelope, err := EncryptHybrid(pqcrypto.Level768, keyID, pubBytes, []byte("hello quantum"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	tampered := append([]byte{}, envelope...)
	tampered[len(tampered)-1] ^= 0xFF

	if _, err := DecryptHybrid(keyID, privBytes, tampered); err == nil {
		t.Fatal("expected error decrypting tampered envelope")
	}
}
