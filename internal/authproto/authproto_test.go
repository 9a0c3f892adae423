package authproto

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/pulsar-sentinel/core/internal/pqcrypto"
	"github.com/pulsar-sentinel/core/internal/storage"
)

func openTestDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func signMessage(t *testing.T, priv *secp256k1.PrivateKey, msg string) []byte {
	t.Helper()
	hash := pqcrypto.Keccak256([]byte(msg))
	compact := ecdsa.SignCompact(priv, hash, false)
	// dcrd's compact format is [recid+27 || R || S]; this package's wire
	// format is [R || S || recid].
	recid := compact[0] - 27
	sig := make([]byte, 65)
	copy(sig, compact[1:])
	sig[64] = recid
	return sig
}

func TestVerifier_Verify_RoundTrip(t *testing.T) {
	db := openTestDB(t)

	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	agentID := pqcrypto.AddressFromPublicKey(priv.PubKey())

	issued, err := IssueNonce(db, agentID, 5*time.Minute)
	if err != nil {
		t.Fatalf("issue nonce: %v", err)
	}

	sig := signMessage(t, priv, issued.Message)

	verifier := NewVerifier(db, []byte("test-signing-key"), 24*time.Hour, nil, nil)
	result, err := verifier.Verify(agentID, issued.Nonce, sig, "User", "SentinelCore")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if result.Token == "" {
		t.Fatal("expected non-empty session token")
	}

	token, err := Verify([]byte("test-signing-key"), result.Token)
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	if token.AgentID != agentID {
		t.Fatalf("expected agent id %s, got %s", agentID, token.AgentID)
	}
}

func TestVerifier_Verify_RejectsReusedNonce(t *testing.T) {
	db := openTestDB(t)
	priv, _ := secp256k1.GeneratePrivateKey()
	agentID := pqcrypto.AddressFromPublicKey(priv.PubKey())

	issued, err := IssueNonce(db, agentID, 5*time.Minute)
	if err != nil {
		t.Fatalf("issue nonce: %v", err)
	}
	sig := signMessage(t, priv, issued.Message)

	verifier := NewVerifier(db, []byte("test-signing-key"), 24*time.Hour, nil, nil)
	if _, err := verifier.Verify(agentID, issued.Nonce, sig, "User", "SentinelCore"); err != nil {
		t.Fatalf("first verify: %v", err)
	}
	if _, err := verifier.Verify(agentID, issued.Nonce, sig, "User", "SentinelCore"); err != ErrNonceUsed {
		t.Fatalf("expected ErrNonceUsed on reuse, got %v", err)
	}
}

func TestSessionToken_ExpiredRejected(t *testing.T) {
	key := []byte("test-signing-key")
	tok := Issue(key, "0xagent", "User", "SentinelCore", -time.Hour)
	if _, err := Verify(key, tok); err != ErrTokenExpired {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestSessionToken_TamperedSignatureRejected(t *testing.T) {
	key := []byte("test-signing-key")
	tok := Issue(key, "0xagent", "User", "SentinelCore", time.Hour)
	tampered := tok[:len(tok)-1] + "x"
	if _, err := Verify(key, tampered); err != ErrTokenInvalid && err != ErrTokenMalformed {
		t.Fatalf("expected tampered token to be rejected, got %v", err)
	}
}
