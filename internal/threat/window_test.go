package threat

import (
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

func TestWindow_RecordAndSnapshot(t *testing.T) {
	db := openTestDB(t)
	w := NewWindow(db, time.Hour)

	if err := w.Record("0xagent", KindQuantumRisk); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := w.Record("0xagent", KindQuantumRisk); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := w.Record("0xagent", KindRateLimitHit); err != nil {
		t.Fatalf("record: %v", err)
	}

	c, err := w.Snapshot("0xagent")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if c.QuantumRisk != 2 {
		t.Fatalf("expected 2 quantum risk events, got %d", c.QuantumRisk)
	}
	if c.RateLimitHits != 1 {
		t.Fatalf("expected 1 rate limit hit, got %d", c.RateLimitHits)
	}
}

func TestEngine_RecordAndScore_DetectsTierTransition(t *testing.T) {
	db := openTestDB(t)
	e := NewEngine(NewWindow(db, time.Hour))

	pts, tier, changed, err := e.RecordAndScore("0xagent", KindQuantumRisk)
	if err != nil {
		t.Fatalf("record and score: %v", err)
	}
	if pts != 50 {
		t.Fatalf("expected pts=50, got %v", pts)
	}
	if tier != TierCaution {
		t.Fatalf("expected Caution, got %v", tier)
	}
	if !changed {
		t.Fatal("expected tier change from Safe to Caution")
	}
}
