package hybrid

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/pulsar-sentinel/core/internal/keystore"
	"github.com/pulsar-sentinel/core/internal/pqcrypto"
	"github.com/pulsar-sentinel/core/internal/storage"
)

func openTestStore(t *testing.T) *keystore.Store {
	t.Helper()
	db, err := storage.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return keystore.Open(db, "passphrase", []byte("0123456789abcdef"))
}

func TestEngine_EncryptDecrypt_RoundTrip(t *testing.T) {
	store := openTestStore(t)
	eng := NewEngine(store, pqcrypto.Level768, 90*24*time.Hour)

	kp, err := eng.GenerateKeypair()
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}

	envelope, err := eng.Encrypt(kp.KeyID, []byte("hello quantum"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	plaintext, err := eng.Decrypt(kp.KeyID, envelope)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(plaintext, []byte("hello quantum")) {
		t.Fatalf("got %q", plaintext)
	}
}

func TestEngine_Decrypt_StaleKeyWithinGraceStillWorks(t *testing.T) {
	store := openTestStore(t)
	eng := NewEngineWithGrace(store, pqcrypto.Level768, 90*24*time.Hour, time.Hour)

	kp, err := eng.GenerateKeypair()
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}
	envelope, err := eng.Encrypt(kp.KeyID, []byte("in flight"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	if _, err := eng.Rotate(kp.KeyID); err != nil {
		t.Fatalf("rotate: %v", err)
	}

	if _, err := eng.Decrypt(kp.KeyID, envelope); err != nil {
		t.Fatalf("expected stale key within grace period to still decrypt: %v", err)
	}
}

func TestEngine_Decrypt_StaleKeyPastGraceRefuses(t *testing.T) {
	store := openTestStore(t)
	eng := NewEngineWithGrace(store, pqcrypto.Level768, 90*24*time.Hour, -time.Second)

	kp, err := eng.GenerateKeypair()
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}
	envelope, err := eng.Encrypt(kp.KeyID, []byte("in flight"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	if _, err := eng.Rotate(kp.KeyID); err != nil {
		t.Fatalf("rotate: %v", err)
	}

	if _, err := eng.Decrypt(kp.KeyID, envelope); !errors.Is(err, ErrKeyGraceExpired) {
		t.Fatalf("expected ErrKeyGraceExpired, got %v", err)
	}
}
