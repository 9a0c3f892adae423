package asr

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/pulsar-sentinel/core/internal/metadata"
	"github.com/pulsar-sentinel/core/internal/storage"
)

func openTestDB(t *testing.T) *storage.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.NewDB(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPipeline_SubmitAssignsMonotonicTimestamps(t *testing.T) {
	db := openTestDB(t)
	p := NewPipeline(db, 50, 30*time.Second)

	id1, err := p.Submit("0xabc", ActionAuthenticate, ThreatLevelInfo, PQCStatusSafe, metadata.Map(nil))
	if err != nil {
		t.Fatalf("submit 1: %v", err)
	}
	id2, err := p.Submit("0xabc", ActionAuthenticate, ThreatLevelInfo, PQCStatusSafe, metadata.Map(nil))
	if err != nil {
		t.Fatalf("submit 2: %v", err)
	}
	if id1 == id2 {
		t.Fatal("expected distinct asr ids")
	}

	rows, err := p.RecordsFor("0xabc", time.Unix(0, 0), time.Now().Add(time.Hour), ThreatLevelInfo)
	if err != nil {
		t.Fatalf("records for: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 records, got %d", len(rows))
	}
	if rows[0].TimestampMs > rows[1].TimestampMs {
		t.Fatal("expected non-decreasing timestamps")
	}
}

func TestPipeline_BatchClosesAtMax(t *testing.T) {
	db := openTestDB(t)
	p := NewPipeline(db, 3, time.Hour)

	var lastID string
	for i := 0; i < 3; i++ {
		id, err := p.Submit("0xdef", ActionEncryptHybrid, ThreatLevelInfo, PQCStatusSafe, metadata.Map(nil))
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		lastID = id
	}

	batchID, _, _, err := db.GetProof(lastID)
	if err != nil {
		t.Fatalf("expected proof for last record in a closed batch: %v", err)
	}
	batch, err := db.GetBatch(batchID)
	if err != nil {
		t.Fatalf("get batch: %v", err)
	}
	if batch.RecordCount != 3 {
		t.Fatalf("expected 3 records in closed batch, got %d", batch.RecordCount)
	}
	if batch.Root == "" {
		t.Fatal("expected a non-empty root on closed batch")
	}
}

func TestPipeline_VerifyStored(t *testing.T) {
	db := openTestDB(t)
	p := NewPipeline(db, 5, time.Hour)

	for i := 0; i < 5; i++ {
		if _, err := p.Submit("0x111", ActionDecrypt, ThreatLevelInfo, PQCStatusSafe, metadata.Map(nil)); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	rows, err := p.RecordsFor("0x111", time.Unix(0, 0), time.Now().Add(time.Hour), ThreatLevelInfo)
	if err != nil {
		t.Fatalf("records for: %v", err)
	}
	for _, row := range rows {
		ok, err := VerifyStored(db, row.ASRID, row.Signature)
		if err != nil {
			t.Fatalf("verify stored %s: %v", row.ASRID, err)
		}
		if !ok {
			t.Fatalf("expected proof for %s to verify", row.ASRID)
		}
	}
}
