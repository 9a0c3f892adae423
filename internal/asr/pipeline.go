package asr

import (
	"fmt"
	"sync"
	"time"

	"github.com/pulsar-sentinel/core/internal/metadata"
	"github.com/pulsar-sentinel/core/internal/storage"
	"github.com/pulsar-sentinel/core/internal/telemetry"
)

const (
	DefaultBatchMax    = 50
	DefaultBatchMaxAge = 30 * time.Second
)

// Pipeline is the single writer of the ASR log: it enforces per-agent
// timestamp monotonicity, persists records, and drives batch open/close.
type Pipeline struct {
	db          *storage.DB
	batchMax    int
	batchMaxAge time.Duration
	metrics     *telemetry.Metrics

	agentLocks sync.Map // agent_id -> *sync.Mutex

	mu          sync.Mutex // guards the current open batch
	openBatchID string
	openedAt    time.Time
	pending     []Record
}

// NewPipeline builds an ASR pipeline backed by db.
func NewPipeline(db *storage.DB, batchMax int, batchMaxAge time.Duration) *Pipeline {
	return NewPipelineWithMetrics(db, batchMax, batchMaxAge, nil)
}

// NewPipelineWithMetrics is NewPipeline plus a metrics sink for ASR ingestion
// and batch-close counters.
func NewPipelineWithMetrics(db *storage.DB, batchMax int, batchMaxAge time.Duration, metrics *telemetry.Metrics) *Pipeline {
	if batchMax <= 0 {
		batchMax = DefaultBatchMax
	}
	if batchMaxAge <= 0 {
		batchMaxAge = DefaultBatchMaxAge
	}
	return &Pipeline{db: db, batchMax: batchMax, batchMaxAge: batchMaxAge, metrics: metrics}
}

func (p *Pipeline) lockFor(agentID string) *sync.Mutex {
	v, _ := p.agentLocks.LoadOrStore(agentID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// Submit appends one event to the log and returns its asr_id. Timestamps
// are bumped strictly past the agent's last recorded timestamp, so
// insertion order always equals observable timestamp order even when two
// calls land in the same millisecond.
func (p *Pipeline) Submit(agentID string, action Action, level ThreatLevel, pqc PQCStatus, meta metadata.Value) (string, error) {
	lock := p.lockFor(agentID)
	lock.Lock()
	defer lock.Unlock()

	lastMs, err := p.db.LastTimestampForAgent(agentID)
	if err != nil {
		return "", fmt.Errorf("asr: last timestamp: %w", err)
	}

	ts := time.Now().UTC()
	if ts.UnixMilli() <= lastMs {
		ts = time.UnixMilli(lastMs + 1).UTC()
	}

	rec, err := New(ts, agentID, action, level, pqc, meta)
	if err != nil {
		return "", err
	}

	if err := p.db.InsertASR(&storage.ASRRow{
		ASRID:       rec.ASRID,
		TimestampMs: rec.Timestamp.UnixMilli(),
		AgentID:     rec.AgentID,
		Action:      string(rec.Action),
		ThreatLevel: int(rec.ThreatLevel),
		PQCStatus:   string(rec.PQCStatus),
		MetadataRaw: rec.Metadata.Canonical(),
		Signature:   rec.Signature,
	}); err != nil {
		return "", fmt.Errorf("asr: insert: %w", err)
	}
	if p.metrics != nil {
		p.metrics.ASRIngested.WithLabelValues(string(rec.Action)).Inc()
	}

	if err := p.enqueue(*rec); err != nil {
		return "", err
	}
	return rec.ASRID, nil
}

// enqueue adds a record to the open batch, closing it if BATCH_MAX is reached.
func (p *Pipeline) enqueue(rec Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.openBatchID == "" {
		p.openBatchID = newBatchID()
		p.openedAt = time.Now()
		if err := p.db.InsertBatch(p.openBatchID, p.openedAt.UnixMilli()); err != nil {
			p.openBatchID = ""
			return fmt.Errorf("asr: open batch: %w", err)
		}
	}
	p.pending = append(p.pending, rec)

	if len(p.pending) >= p.batchMax {
		return p.closeOpenBatchLocked()
	}
	return nil
}

// SweepAge closes the open batch if it has exceeded BATCH_MAX_AGE. Intended
// to be called from a background worker on a short tick.
func (p *Pipeline) SweepAge() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.openBatchID == "" || len(p.pending) == 0 {
		return nil
	}
	if time.Since(p.openedAt) >= p.batchMaxAge {
		return p.closeOpenBatchLocked()
	}
	return nil
}

// closeOpenBatchLocked builds the Merkle tree over the pending records,
// persists the root and proofs, and resets pipeline state for the next
// batch. Caller must hold p.mu. The pipeline's in-memory batch state is
// already cleared by the time any of these calls can fail, so a failure here
// is reported to the caller rather than silently dropped, but it can no
// longer be retried against the same in-memory record set.
func (p *Pipeline) closeOpenBatchLocked() error {
	batchID := p.openBatchID
	records := p.pending
	p.openBatchID = ""
	p.pending = nil

	leaves := make([]string, len(records))
	ids := make([]string, len(records))
	for i, r := range records {
		leaves[i] = r.Signature
		ids[i] = r.ASRID
	}
	root, proofs := BuildTree(leaves)

	if err := p.db.AssignBatch(batchID, ids); err != nil {
		return fmt.Errorf("asr: assign batch %s: %w", batchID, err)
	}
	if err := p.db.CloseBatch(batchID, time.Now().UnixMilli(), root, len(records)); err != nil {
		return fmt.Errorf("asr: close batch %s: %w", batchID, err)
	}
	if p.metrics != nil {
		p.metrics.BatchesClosed.Inc()
	}

	for i, id := range ids {
		pathJSON := encodeProofPath(proofs[i])
		if err := p.db.PutProof(id, batchID, i, pathJSON); err != nil {
			return fmt.Errorf("asr: put proof %s: %w", id, err)
		}
	}
	return nil
}

// RecordsFor delegates to the storage layer's records_for(agent, filter) query.
func (p *Pipeline) RecordsFor(agentID string, from, to time.Time, minThreatLevel ThreatLevel) ([]storage.ASRRow, error) {
	return p.db.RecordsForAgent(agentID, from.UnixMilli(), to.UnixMilli(), int(minThreatLevel))
}

func newBatchID() string {
	id, err := newASRID()
	if err != nil {
		// entropy failure here is as fatal as anywhere else in the process;
		// fall back to a time-derived id rather than block record ingestion.
		return fmt.Sprintf("batch_%d", time.Now().UnixNano())
	}
	return "batch_" + id[len("asr_"):]
}
