package rules

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/pulsar-sentinel/core/internal/asr"
	"github.com/pulsar-sentinel/core/internal/storage"
	"github.com/pulsar-sentinel/core/internal/threat"
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

func TestQuota_BoundaryAt10PerMinute(t *testing.T) {
	db := openTestDB(t)
	q := NewQuota(db, 5)

	for i := 0; i < 10; i++ {
		ok, err := q.Allow("0xagent", TierSentinelCore)
		if err != nil {
			t.Fatalf("allow %d: %v", i, err)
		}
		if !ok {
			t.Fatalf("expected call %d to be allowed", i+1)
		}
	}
	ok, err := q.Allow("0xagent", TierSentinelCore)
	if err != nil {
		t.Fatalf("allow 11: %v", err)
	}
	if ok {
		t.Fatal("expected 11th call within the minute to be denied")
	}
}

func TestStrike_BansAtThreshold(t *testing.T) {
	db := openTestDB(t)
	agentID := "0xagent"
	if err := db.UpsertAgent(&storage.AgentRecord{AgentID: agentID, Role: "User", Tier: string(TierLegacyBuilder)}); err != nil {
		t.Fatalf("upsert agent: %v", err)
	}

	var banned bool
	var err error
	for i := 0; i < 3; i++ {
		banned, err = Strike(db, agentID, 3)
		if err != nil {
			t.Fatalf("strike %d: %v", i, err)
		}
	}
	if !banned {
		t.Fatal("expected ban after third strike")
	}

	agent, err := db.GetAgent(agentID)
	if err != nil {
		t.Fatalf("get agent: %v", err)
	}
	if !IsBanned(agent, 3) {
		t.Fatal("expected agent to be banned")
	}

	if err := ResetStrikes(db, agentID); err != nil {
		t.Fatalf("reset strikes: %v", err)
	}
	agent, err = db.GetAgent(agentID)
	if err != nil {
		t.Fatalf("get agent: %v", err)
	}
	if IsBanned(agent, 3) {
		t.Fatal("expected agent to no longer be banned after reset")
	}
}

func TestEngine_Check_DeniesBannedAgent(t *testing.T) {
	db := openTestDB(t)
	agentID := "0xagent"
	if err := db.UpsertAgent(&storage.AgentRecord{AgentID: agentID, Role: "User", Tier: string(TierLegacyBuilder), StrikeCount: 3}); err != nil {
		t.Fatalf("upsert agent: %v", err)
	}

	eng := NewEngine(db, NewQuota(db, 5), threat.NewEngine(threat.NewWindow(db, time.Hour)), 3, asr.NewPipeline(db, 50, time.Hour), nil)
	dec := eng.Check(agentID, Operation{Name: "encrypt", RequiredRole: RoleUser})
	if dec.Allowed {
		t.Fatal("expected banned agent to be denied")
	}
	if !errors.Is(dec.Reason, ErrBanned) {
		t.Fatalf("expected ErrBanned, got %v", dec.Reason)
	}
}

func TestEngine_Check_DeniesInsufficientRole(t *testing.T) {
	db := openTestDB(t)
	agentID := "0xagent"
	if err := db.UpsertAgent(&storage.AgentRecord{AgentID: agentID, Role: "User", Tier: string(TierLegacyBuilder)}); err != nil {
		t.Fatalf("upsert agent: %v", err)
	}

	eng := NewEngine(db, NewQuota(db, 5), threat.NewEngine(threat.NewWindow(db, time.Hour)), 3, asr.NewPipeline(db, 50, time.Hour), nil)
	dec := eng.Check(agentID, Operation{Name: "admin-op", RequiredRole: RoleAdmin})
	if dec.Allowed {
		t.Fatal("expected insufficient role to be denied")
	}
	if !errors.Is(dec.Reason, ErrAccessViolation) {
		t.Fatalf("expected ErrAccessViolation, got %v", dec.Reason)
	}
}

func TestEngine_Check_AllowsWithinQuotaAndRole(t *testing.T) {
	db := openTestDB(t)
	agentID := "0xagent"
	if err := db.UpsertAgent(&storage.AgentRecord{AgentID: agentID, Role: "User", Tier: string(TierAutonomousGuild)}); err != nil {
		t.Fatalf("upsert agent: %v", err)
	}

	eng := NewEngine(db, NewQuota(db, 5), threat.NewEngine(threat.NewWindow(db, time.Hour)), 3, asr.NewPipeline(db, 50, time.Hour), nil)
	dec := eng.Check(agentID, Operation{Name: "encrypt", RequiredRole: RoleUser})
	if !dec.Allowed {
		t.Fatalf("expected allow, got deny: %v", dec.Reason)
	}
}
