// Package engine is the composition root binding every PULSAR SENTINEL
// subsystem into one object graph, mirroring the reference codebase's
// Server type.
package engine

import (
	"log"
	"sync"
	"time"

	"github.com/pulsar-sentinel/core/internal/admin"
	"github.com/pulsar-sentinel/core/internal/anchor"
	"github.com/pulsar-sentinel/core/internal/archive"
	"github.com/pulsar-sentinel/core/internal/asr"
	"github.com/pulsar-sentinel/core/internal/authproto"
	"github.com/pulsar-sentinel/core/internal/config"
	"github.com/pulsar-sentinel/core/internal/hybrid"
	"github.com/pulsar-sentinel/core/internal/keystore"
	"github.com/pulsar-sentinel/core/internal/metadata"
	"github.com/pulsar-sentinel/core/internal/pqcrypto"
	"github.com/pulsar-sentinel/core/internal/rules"
	"github.com/pulsar-sentinel/core/internal/storage"
	"github.com/pulsar-sentinel/core/internal/telemetry"
	"github.com/pulsar-sentinel/core/internal/threat"
)

// Engine wires the ASR pipeline, threat engine, hybrid PQC engine, rule
// engine, admin quorum, and anchor sink through every call, as spec.md's
// component table describes.
type Engine struct {
	Config *config.Config
	DB     *storage.DB

	Keystore *keystore.Store
	Hybrid   *hybrid.Engine

	ThreatWindow *threat.Window
	Threat       *threat.Engine
	Anomaly      *threat.AnomalySweep

	Quota  *rules.Quota
	Access *rules.Engine

	Pipeline *asr.Pipeline

	Admin *admin.Quorum

	Auth *authproto.Verifier

	Anchor  anchor.AnchorSink
	Archive *archive.Store

	Metrics *telemetry.Metrics

	anchorRetryMu sync.Mutex
	anchorRetries map[string]*anchorRetryState
}

// anchorRetryState tracks exponential backoff for a batch whose anchor
// submission failed with a transient error.
type anchorRetryState struct {
	attempts    int
	nextAttempt time.Time
}

// New builds the full object graph from configuration and its collaborators.
// passphrase and kekSalt seed the keystore's key-encryption key; primary and
// secondary feed the RC-3.02 fallback sink.
func New(cfg *config.Config, db *storage.DB, passphrase string, kekSalt []byte, primary, secondary anchor.AnchorSink, archiveStore *archive.Store) *Engine {
	metrics := telemetry.New()

	ks := keystore.Open(db, passphrase, kekSalt)
	hybridEngine := hybrid.NewEngineWithGrace(ks, pqcrypto.Level(cfg.PQCSecurityLevel),
		time.Duration(cfg.KeyRotationDays)*24*time.Hour, time.Duration(cfg.KeyGracePeriodDays)*24*time.Hour)

	window := threat.NewWindow(db, threat.DefaultWindow)
	threatEngine := threat.NewEngineWithMetrics(window, metrics)
	anomaly := threat.NewAnomalySweep(db, window)

	pipeline := asr.NewPipelineWithMetrics(db, cfg.BatchMax, cfg.BatchMaxAge, metrics)

	quota := rules.NewQuota(db, cfg.RateLimitDefault)
	access := rules.NewEngine(db, quota, threatEngine, cfg.StrikeThreshold, pipeline, metrics)

	quorum := admin.NewQuorum(db, admin.DefaultQuorumThreshold)

	verifier := authproto.NewVerifier(db, cfg.SigningKey, cfg.SessionLifetime, window, pipeline)

	var sink anchor.AnchorSink = anchor.NewFallbackSink(primary, secondary)

	return &Engine{
		Config:        cfg,
		DB:            db,
		Keystore:      ks,
		Hybrid:        hybridEngine,
		ThreatWindow:  window,
		Threat:        threatEngine,
		Anomaly:       anomaly,
		Quota:         quota,
		Access:        access,
		Pipeline:      pipeline,
		Admin:         quorum,
		Auth:          verifier,
		Anchor:        sink,
		Archive:       archiveStore,
		Metrics:       metrics,
		anchorRetries: make(map[string]*anchorRetryState),
	}
}

// TransferToHeir implements RC-1.02 using this engine's configured
// HEIR_INACTIVITY_DAYS rather than rules.DefaultHeirInactivityDays.
func (e *Engine) TransferToHeir(agentID string, heirSig []byte) (newAgentID string, err error) {
	newAgentID, err = rules.TransferToHeir(e.DB, agentID, e.Config.HeirInactivityDays, heirSig)
	if err != nil {
		return "", err
	}
	meta := metadata.Map(map[string]metadata.Value{"heir_agent_id": metadata.String(newAgentID)})
	if _, err := e.Pipeline.Submit(agentID, asr.ActionHeirTransfer, asr.ThreatLevelNotice, asr.PQCStatusSafe, meta); err != nil {
		log.Printf("engine: record heir transfer asr for %s: %v", agentID, err)
	}
	return newAgentID, nil
}
