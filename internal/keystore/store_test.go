package keystore

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

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

func TestPutAndUsePrivateKey_RoundTrip(t *testing.T) {
	db := openTestDB(t)
	store := Open(db, "correct horse battery staple", []byte("0123456789abcdef"))

	priv := []byte("super-secret-private-key-bytes")
	pub := []byte("public-key-bytes")
	if err := store.PutKeypair("kid-1", 768, pub, priv, time.Now()); err != nil {
		t.Fatalf("PutKeypair: %v", err)
	}

	var got []byte
	err := store.UsePrivateKey("kid-1", func(raw []byte) error {
		got = append([]byte{}, raw...)
		return nil
	})
	if err != nil {
		t.Fatalf("UsePrivateKey: %v", err)
	}
	if !bytes.Equal(got, priv) {
		t.Fatalf("got %q, want %q", got, priv)
	}
}

func TestUsePrivateKey_UnknownKeyFails(t *testing.T) {
	db := openTestDB(t)
	store := Open(db, "passphrase", []byte("0123456789abcdef"))

	err := store.UsePrivateKey("does-not-exist", func(raw []byte) error { return nil })
	if err == nil {
		t.Fatal("expected error for unknown key id")
	}
}

func TestDescribe_NeverExposesPrivateHalf(t *testing.T) {
	db := openTestDB(t)
	store := Open(db, "passphrase", []byte("0123456789abcdef"))

	pub := []byte("public-key-bytes")
	if err := store.PutKeypair("kid-2", 1024, pub, []byte("private"), time.Now()); err != nil {
		t.Fatalf("PutKeypair: %v", err)
	}

	desc, err := store.Describe("kid-2")
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if desc.Level != 1024 {
		t.Errorf("Level = %d, want 1024", desc.Level)
	}
	if !bytes.Equal(desc.PublicKey, pub) {
		t.Errorf("PublicKey mismatch")
	}
	if desc.Stale {
		t.Error("freshly created key should not be stale")
	}
}

func TestMarkStale_FlagsKeyAndRecordsSuccessor(t *testing.T) {
	db := openTestDB(t)
	store := Open(db, "passphrase", []byte("0123456789abcdef"))

	if err := store.PutKeypair("kid-old", 768, []byte("pub"), []byte("priv"), time.Now()); err != nil {
		t.Fatalf("PutKeypair: %v", err)
	}
	if err := store.MarkStale("kid-old", "kid-new"); err != nil {
		t.Fatalf("MarkStale: %v", err)
	}

	desc, err := store.Describe("kid-old")
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if !desc.Stale {
		t.Error("expected key to be marked stale")
	}
	if desc.RotatedTo != "kid-new" {
		t.Errorf("RotatedTo = %q, want kid-new", desc.RotatedTo)
	}
}

func TestSealedSecret_ReleaseZeroizesAndBlocksReuse(t *testing.T) {
	raw := []byte("sensitive")
	s := Seal(raw)

	if err := s.Use(func(b []byte) error { return nil }); err != nil {
		t.Fatalf("Use before release: %v", err)
	}
	s.Release()

	if err := s.Use(func(b []byte) error { return nil }); err != ErrSecretReleased {
		t.Fatalf("expected ErrSecretReleased, got %v", err)
	}
	for _, b := range raw {
		if b != 0 {
			t.Fatal("expected underlying bytes to be zeroized")
		}
	}
}
