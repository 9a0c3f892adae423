package hybrid

import (
	"bytes"
	"testing"

	"github.com/pulsar-sentinel/core/internal/pqcrypto"
)

func TestHybridEnvelope_RoundTrip(t *testing.T) {
	kemCt := bytes.Repeat([]byte{0xAB}, 1088)
	nonce := bytes.Repeat([]byte{0x01}, pqcrypto.AESGCMNonceLen)
	aeadCt := bytes.Repeat([]byte{0xCD}, 32)

	raw, err := encodeHybridEnvelope(pqcrypto.Level768, kemCt, nonce, aeadCt)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.HasPrefix(raw, []byte("PSH1")) {
		t.Fatalf("expected PSH1 magic, got %x", raw[:4])
	}
	if raw[4] != algMlKem768 {
		t.Fatalf("expected algorithm byte 0x01, got 0x%02x", raw[4])
	}

	dec, err := decodeHybridEnvelope(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dec.Level != pqcrypto.Level768 {
		t.Fatalf("level mismatch: got %v", dec.Level)
	}
	if !bytes.Equal(dec.KemCt, kemCt) || !bytes.Equal(dec.Nonce, nonce) || !bytes.Equal(dec.AeadCt, aeadCt) {
		t.Fatal("field mismatch after round trip")
	}
}

func TestHybridEnvelope_TruncatedFails(t *testing.T) {
	kemCt := bytes.Repeat([]byte{0xAB}, 1088)
	nonce := bytes.Repeat([]byte{0x01}, pqcrypto.AESGCMNonceLen)
	aeadCt := bytes.Repeat([]byte{0xCD}, 32)

	raw, err := encodeHybridEnvelope(pqcrypto.Level768, kemCt, nonce, aeadCt)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	if _, err := decodeHybridEnvelope(raw[:len(raw)-1]); err == nil {
		t.Fatal("expected error decoding truncated envelope")
	}
}

func TestAESEnvelope_RoundTrip(t *testing.T) {
	salt := bytes.Repeat([]byte{0x01}, 16)
	iv := bytes.Repeat([]byte{0x02}, 16)
	mac := bytes.Repeat([]byte{0x03}, 32)
	ct := []byte("ciphertext-bytes")

	raw := encodeAESEnvelope(salt, iv, mac, ct)
	if !bytes.HasPrefix(raw, []byte("PSA1")) {
		t.Fatalf("expected PSA1 magic, got %x", raw[:4])
	}

	dec, err := decodeAESEnvelope(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(dec.Salt, salt) || !bytes.Equal(dec.IV, iv) || !bytes.Equal(dec.MAC, mac) || !bytes.Equal(dec.CT, ct) {
		t.Fatal("field mismatch after round trip")
	}
}
