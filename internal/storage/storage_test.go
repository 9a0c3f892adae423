package storage

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestAgent_UpsertAndGet_RoundTrip(t *testing.T) {
	db := openTestDB(t)

	a := &AgentRecord{
		AgentID:      "0xabc",
		Role:         "operator",
		Tier:         "Safe",
		StrikeCount:  0,
		LastActivity: 1000,
		HeirAddress:  "0xheir",
	}
	if err := db.UpsertAgent(a); err != nil {
		t.Fatalf("UpsertAgent: %v", err)
	}

	got, err := db.GetAgent("0xabc")
	if err != nil {
		t.Fatalf("GetAgent: %v", err)
	}
	if got.Role != "operator" || got.HeirAddress != "0xheir" || got.Revoked {
		t.Fatalf("unexpected agent record: %+v", got)
	}
}

func TestAgent_GetUnknownReturnsNoRows(t *testing.T) {
	db := openTestDB(t)
	_, err := db.GetAgent("does-not-exist")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestAgent_IncrementStrikeAndReset(t *testing.T) {
	db := openTestDB(t)
	if err := db.UpsertAgent(&AgentRecord{AgentID: "agent-1", Role: "user", Tier: "Safe"}); err != nil {
		t.Fatalf("UpsertAgent: %v", err)
	}

	for i := 1; i <= 2; i++ {
		count, err := db.IncrementStrike("agent-1")
		if err != nil {
			t.Fatalf("IncrementStrike: %v", err)
		}
		if count != i {
			t.Fatalf("IncrementStrike = %d, want %d", count, i)
		}
	}

	if err := db.ResetStrikes("agent-1"); err != nil {
		t.Fatalf("ResetStrikes: %v", err)
	}
	got, err := db.GetAgent("agent-1")
	if err != nil {
		t.Fatalf("GetAgent: %v", err)
	}
	if got.StrikeCount != 0 {
		t.Fatalf("StrikeCount = %d, want 0", got.StrikeCount)
	}
}

func TestASR_InsertAndBatchLifecycle(t *testing.T) {
	db := openTestDB(t)

	if err := db.InsertASR(&ASRRow{
		ASRID: "asr-1", TimestampMs: 100, AgentID: "agent-1",
		Action: "Authenticate", ThreatLevel: 1, PQCStatus: "Safe",
		MetadataRaw: "null", Signature: "sig-1",
	}); err != nil {
		t.Fatalf("InsertASR: %v", err)
	}

	unbatched, err := db.UnbatchedRecords(10)
	if err != nil {
		t.Fatalf("UnbatchedRecords: %v", err)
	}
	if len(unbatched) != 1 {
		t.Fatalf("expected 1 unbatched record, got %d", len(unbatched))
	}

	if err := db.InsertBatch("batch-1", 100); err != nil {
		t.Fatalf("InsertBatch: %v", err)
	}
	if err := db.AssignBatch("batch-1", []string{"asr-1"}); err != nil {
		t.Fatalf("AssignBatch: %v", err)
	}
	if err := db.CloseBatch("batch-1", 200, "deadbeef", 1); err != nil {
		t.Fatalf("CloseBatch: %v", err)
	}

	pending, err := db.ListPendingAnchorBatches()
	if err != nil {
		t.Fatalf("ListPendingAnchorBatches: %v", err)
	}
	if len(pending) != 1 || pending[0] != "batch-1" {
		t.Fatalf("expected [batch-1], got %v", pending)
	}

	if err := db.UpdateAnchorState("batch-1", "submitted", "0xtx", 42, ""); err != nil {
		t.Fatalf("UpdateAnchorState: %v", err)
	}

	submitted, err := db.ListSubmittedAnchorBatches()
	if err != nil {
		t.Fatalf("ListSubmittedAnchorBatches: %v", err)
	}
	if len(submitted) != 1 || submitted[0].BatchID != "batch-1" {
		t.Fatalf("expected batch-1 in submitted list, got %v", submitted)
	}

	batch, err := db.GetBatch("batch-1")
	if err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
	if batch.Root != "deadbeef" || batch.AnchorState != "submitted" {
		t.Fatalf("unexpected batch state: %+v", batch)
	}
}

func TestNonce_ConsumeIsSingleUse(t *testing.T) {
	db := openTestDB(t)
	if err := db.PutNonce("nonce-1", "agent-1", "sign this", 100, 200); err != nil {
		t.Fatalf("PutNonce: %v", err)
	}

	ok, err := db.ConsumeNonce("nonce-1")
	if err != nil || !ok {
		t.Fatalf("first consume: ok=%v err=%v", ok, err)
	}
	ok, err = db.ConsumeNonce("nonce-1")
	if err != nil {
		t.Fatalf("second consume: %v", err)
	}
	if ok {
		t.Fatal("expected second consume to fail (nonce already used)")
	}
}
