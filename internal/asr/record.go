// Package asr implements the Agent State Record pipeline: canonicalization,
// signing, Merkle batching, and inclusion proofs over the tamper-evident
// audit trail.
package asr

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/pulsar-sentinel/core/internal/metadata"
)

// Action is the closed enum of event kinds an ASR can record.
type Action string

const (
	ActionAuthenticate     Action = "Authenticate"
	ActionEncryptHybrid    Action = "EncryptHybrid"
	ActionEncryptAes       Action = "EncryptAes"
	ActionDecrypt          Action = "Decrypt"
	ActionKeyGenerate      Action = "KeyGenerate"
	ActionKeyRotate        Action = "KeyRotate"
	ActionSignatureFail    Action = "SignatureFail"
	ActionAccessViolation  Action = "AccessViolation"
	ActionRateLimitHit     Action = "RateLimitHit"
	ActionStrike           Action = "Strike"
	ActionBan              Action = "Ban"
	ActionHeirTransfer     Action = "HeirTransfer"
	ActionTierTransition   Action = "TierTransition"
	ActionAnomalyDetected  Action = "AnomalyDetected"
	ActionAnchorFailed     Action = "AnchorFailed"
)

// PQCStatus classifies the cryptographic posture of the operation the
// record describes.
type PQCStatus string

const (
	PQCStatusSafe     PQCStatus = "Safe"
	PQCStatusWarning  PQCStatus = "Warning"
	PQCStatusCritical PQCStatus = "Critical"
)

// ThreatLevel is an integer 1..5 (Info..Critical).
type ThreatLevel int

const (
	ThreatLevelInfo     ThreatLevel = 1
	ThreatLevelNotice   ThreatLevel = 2
	ThreatLevelWarning  ThreatLevel = 3
	ThreatLevelSevere   ThreatLevel = 4
	ThreatLevelCritical ThreatLevel = 5
)

// Record is one immutable Agent State Record.
type Record struct {
	ASRID       string
	Timestamp   time.Time
	AgentID     string
	Action      Action
	ThreatLevel ThreatLevel
	PQCStatus   PQCStatus
	Metadata    metadata.Value
	Signature   string
}

// newASRID mints a 16-byte random id, hex-encoded with the asr_ prefix.
func newASRID() (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("asr: generate id: %w", err)
	}
	return "asr_" + hex.EncodeToString(raw), nil
}

// New builds and signs a record. ts must already respect the caller's
// per-agent monotonicity requirement; New does not enforce it.
func New(ts time.Time, agentID string, action Action, level ThreatLevel, pqc PQCStatus, meta metadata.Value) (*Record, error) {
	id, err := newASRID()
	if err != nil {
		return nil, err
	}
	if meta.Kind() != metadata.KindMap {
		meta = metadata.Map(nil)
	}
	r := &Record{
		ASRID:       id,
		Timestamp:   ts.UTC(),
		AgentID:     agentID,
		Action:      action,
		ThreatLevel: level,
		PQCStatus:   pqc,
		Metadata:    meta,
	}
	r.Signature = Sign(r)
	return r, nil
}

// Verify recomputes the record's signature and compares it against the
// stored value.
func (r *Record) Verify() bool {
	return Sign(r) == r.Signature
}
