package asr

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/pulsar-sentinel/core/internal/metadata"
)

// canonicalBody renders a record's fixed field order with the signature
// field omitted, per the wire canonical form:
// asr_id, timestamp, agent_id, action, threat_level, pqc_status, metadata
func canonicalBody(r *Record) string {
	var sb strings.Builder
	sb.WriteString(metadata.String(r.ASRID).Canonical())
	sb.WriteByte(',')
	sb.WriteString(metadata.String(r.Timestamp.Format("2006-01-02T15:04:05.000Z")).Canonical())
	sb.WriteByte(',')
	sb.WriteString(metadata.String(r.AgentID).Canonical())
	sb.WriteByte(',')
	sb.WriteString(metadata.String(string(r.Action)).Canonical())
	sb.WriteByte(',')
	sb.WriteString(strconv.Itoa(int(r.ThreatLevel)))
	sb.WriteByte(',')
	sb.WriteString(metadata.String(string(r.PQCStatus)).Canonical())
	sb.WriteByte(',')
	sb.WriteString(r.Metadata.Canonical())
	return sb.String()
}

// Sign computes the record's signature: SHA-256 of the canonicalized body
// with signature omitted, hex-encoded.
func Sign(r *Record) string {
	sum := sha256.Sum256([]byte(canonicalBody(r)))
	return hex.EncodeToString(sum[:])
}

// CanonicalFull renders the transmitted wire form including signature, in
// the fixed field order the spec mandates.
func CanonicalFull(r *Record) string {
	return canonicalBody(r) + "," + metadata.String(r.Signature).Canonical()
}
