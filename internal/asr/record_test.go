package asr

import (
	"strings"
	"testing"
	"time"

	"github.com/pulsar-sentinel/core/internal/metadata"
)

func TestNew_SignatureVerifies(t *testing.T) {
	meta := metadata.Map(map[string]metadata.Value{"reason": metadata.String("test")})
	rec, err := New(time.Now(), "0xabc", ActionAuthenticate, ThreatLevelInfo, PQCStatusSafe, meta)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if !rec.Verify() {
		t.Fatal("expected freshly minted record to verify")
	}
	if !strings.HasPrefix(rec.ASRID, "asr_") {
		t.Fatalf("expected asr_ prefix, got %s", rec.ASRID)
	}
}

func TestRecord_SignatureStableAcrossRecomputation(t *testing.T) {
	rec, err := New(time.Now(), "0xabc", ActionEncryptHybrid, ThreatLevelWarning, PQCStatusWarning, metadata.Map(nil))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	original := rec.Signature
	recomputed := Sign(rec)
	if original != recomputed {
		t.Fatalf("signature not stable: %s != %s", original, recomputed)
	}
}

func TestRecord_TamperedFieldFailsVerify(t *testing.T) {
	rec, err := New(time.Now(), "0xabc", ActionAuthenticate, ThreatLevelInfo, PQCStatusSafe, metadata.Map(nil))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	rec.ThreatLevel = ThreatLevelCritical
	if rec.Verify() {
		t.Fatal("expected verification to fail after tampering with a field")
	}
}
