package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/pulsar-sentinel/core/internal/admin"
	"github.com/pulsar-sentinel/core/internal/anchor"
	"github.com/pulsar-sentinel/core/internal/asr"
	"github.com/pulsar-sentinel/core/internal/metadata"
)

const (
	maxAnchorAttempts  = 6
	anchorBackoffBase  = 30 * time.Second
	anchorBackoffCeil  = 20 * time.Minute
)

// anchorErrorIsTransient reports whether err reflects a condition worth
// retrying (a flaky RPC endpoint or a stuck mempool) rather than one that
// will never resolve on its own. Unclassified errors are treated as
// transient so a sink bug does not permanently strand a batch; they still
// age out via maxAnchorAttempts.
func anchorErrorIsTransient(err error) bool {
	if errors.Is(err, anchor.ErrInsufficientFunds) || errors.Is(err, anchor.ErrPermanentRejection) {
		return false
	}
	return true
}

// StartWorkers launches every background goroutine, mirroring the reference
// codebase's Server.StartWorkers. Call with a cancellable context for
// graceful shutdown.
func (e *Engine) StartWorkers(ctx context.Context) {
	go e.runBatchAgeSweep(ctx)
	go e.runAnchorSubmission(ctx)
	go e.runAnchorConfirmation(ctx)
	go e.runThreatEventPruning(ctx)
	go e.runAdminReputationDecay(ctx)
	go e.runAnomalySweep(ctx)
	go e.runNonceAndQuotaPruning(ctx)
}

// runBatchAgeSweep closes any open ASR batch that has exceeded BATCH_MAX_AGE,
// checked every 5 seconds.
func (e *Engine) runBatchAgeSweep(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
			if err := e.Pipeline.SweepAge(); err != nil {
				log.Printf("[worker] sweep batch age: %v", err)
			}
		}
	}
}

// runAnchorSubmission periodically hands newly closed batches to the anchor
// sink, respecting spec.md's "local durability does not depend on anchor
// outcome" invariant: failure here never blocks ingestion.
func (e *Engine) runAnchorSubmission(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(10 * time.Second):
			e.submitPendingBatches(ctx)
		}
	}
}

func (e *Engine) submitPendingBatches(ctx context.Context) {
	batchIDs, err := e.DB.ListPendingAnchorBatches()
	if err != nil {
		log.Printf("[worker] list pending anchor batches: %v", err)
		return
	}
	now := time.Now()
	for _, batchID := range batchIDs {
		if !e.anchorRetryDue(batchID, now) {
			continue
		}

		batch, err := e.DB.GetBatch(batchID)
		if err != nil {
			log.Printf("[worker] get batch %s: %v", batchID, err)
			continue
		}

		submitCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		receipt, err := e.Anchor.Submit(submitCtx, batch.Root, batch.BatchID)
		cancel()
		if err != nil {
			e.handleAnchorSubmitError(batchID, err)
			continue
		}

		e.clearAnchorRetry(batchID)
		if err := e.DB.UpdateAnchorState(batchID, "submitted", receipt.TxHash, receipt.Height, ""); err != nil {
			log.Printf("[worker] mark batch %s submitted: %v", batchID, err)
		}
		e.Metrics.AnchorOutcomes.WithLabelValues("submitted").Inc()

		if e.Archive != nil {
			if err := e.Archive.ArchiveBatchSegment(batchID, []byte(batch.Root)); err != nil {
				log.Printf("[worker] archive batch %s: %v", batchID, err)
			}
		}
	}
}

// anchorRetryDue reports whether batchID is eligible for a submission
// attempt right now: either it has never failed, or its backoff window has
// elapsed.
func (e *Engine) anchorRetryDue(batchID string, now time.Time) bool {
	e.anchorRetryMu.Lock()
	defer e.anchorRetryMu.Unlock()
	st, ok := e.anchorRetries[batchID]
	if !ok {
		return true
	}
	return !now.Before(st.nextAttempt)
}

func (e *Engine) clearAnchorRetry(batchID string) {
	e.anchorRetryMu.Lock()
	delete(e.anchorRetries, batchID)
	e.anchorRetryMu.Unlock()
}

// handleAnchorSubmitError classifies a failed anchor submission and either
// schedules a backed-off retry or marks the batch terminally failed. Terminal
// failures are surfaced through a Strike-free administrative ASR event so
// the audit trail records the anchor outage without penalizing any agent.
func (e *Engine) handleAnchorSubmitError(batchID string, submitErr error) {
	log.Printf("[worker] anchor submit batch %s: %v", batchID, submitErr)

	if anchorErrorIsTransient(submitErr) {
		e.anchorRetryMu.Lock()
		st, ok := e.anchorRetries[batchID]
		if !ok {
			st = &anchorRetryState{}
			e.anchorRetries[batchID] = st
		}
		st.attempts++
		attempts := st.attempts
		if attempts < maxAnchorAttempts {
			delay := anchorBackoffBase * time.Duration(1<<uint(attempts-1))
			if delay > anchorBackoffCeil {
				delay = anchorBackoffCeil
			}
			st.nextAttempt = time.Now().Add(delay)
			e.anchorRetryMu.Unlock()
			log.Printf("[worker] batch %s submission failed (attempt %d/%d), retrying in %s", batchID, attempts, maxAnchorAttempts, delay)
			e.Metrics.AnchorOutcomes.WithLabelValues("retry").Inc()
			return
		}
		e.anchorRetryMu.Unlock()
		log.Printf("[worker] batch %s exhausted %d anchor retries", batchID, maxAnchorAttempts)
	}

	e.clearAnchorRetry(batchID)
	e.failAnchorBatch(batchID, submitErr)
}

// failAnchorBatch marks batchID terminally failed and records the failure as
// an administrative ASR event under the "system" agent, never through
// rules.Strike, so an anchor outage never costs a real agent a strike.
func (e *Engine) failAnchorBatch(batchID string, cause error) {
	if err := e.DB.UpdateAnchorState(batchID, "failed", "", 0, cause.Error()); err != nil {
		log.Printf("[worker] mark batch %s failed: %v", batchID, err)
	}
	e.Metrics.AnchorOutcomes.WithLabelValues("failed").Inc()

	meta := metadata.Map(map[string]metadata.Value{
		"batch_id": metadata.String(batchID),
		"reason":   metadata.String(cause.Error()),
	})
	if _, err := e.Pipeline.Submit("system", asr.ActionAnchorFailed, asr.ThreatLevelSevere, asr.PQCStatusSafe, meta); err != nil {
		log.Printf("[worker] record anchor failure ASR for batch %s: %v", batchID, err)
	}
}

// runAnchorConfirmation polls submitted batches for confirmation depth,
// every 30 seconds, and marks them Confirmed once the threshold is met.
func (e *Engine) runAnchorConfirmation(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(30 * time.Second):
			e.confirmSubmittedBatches(ctx)
		}
	}
}

func (e *Engine) confirmSubmittedBatches(ctx context.Context) {
	batches, err := e.DB.ListSubmittedAnchorBatches()
	if err != nil {
		log.Printf("[worker] list submitted anchor batches: %v", err)
		return
	}
	for _, batch := range batches {
		receipt := anchor.Receipt{TxHash: batch.AnchorTx, Height: batch.AnchorHeight}
		n, err := e.Anchor.Confirmations(ctx, receipt)
		if err != nil {
			log.Printf("[worker] confirmations for batch %s: %v", batch.BatchID, err)
			continue
		}
		if n < minAnchorConfirmations {
			continue
		}
		if err := e.DB.UpdateAnchorState(batch.BatchID, "confirmed", batch.AnchorTx, batch.AnchorHeight, ""); err != nil {
			log.Printf("[worker] mark batch %s confirmed: %v", batch.BatchID, err)
			continue
		}
		e.Metrics.AnchorOutcomes.WithLabelValues("confirmed").Inc()
	}
}

const minAnchorConfirmations = 2

// runThreatEventPruning drops threat-window events older than the window
// span, once an hour, keeping the sliding-window table bounded.
func (e *Engine) runThreatEventPruning(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(1 * time.Hour):
			n, err := e.ThreatWindow.Prune()
			if err != nil {
				log.Printf("[worker] prune threat events: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("[worker] pruned %d threat events", n)
			}
		}
	}
}

// runAdminReputationDecay applies multiplicative reputation decay to every
// active admin operator, once an hour.
func (e *Engine) runAdminReputationDecay(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(1 * time.Hour):
			n, err := admin.DecayReputation(e.DB)
			if err != nil {
				log.Printf("[worker] decay admin reputation: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("[worker] decayed reputation for %d operators", n)
			}
		}
	}
}

// runAnomalySweep checks every active agent's recent event burst rate,
// every minute, recording an AnomalyDetected ASR for each agent with a burst.
func (e *Engine) runAnomalySweep(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(1 * time.Minute):
			agentIDs, err := e.DB.ListActiveAgentIDs()
			if err != nil {
				log.Printf("[worker] list agents for anomaly sweep: %v", err)
				continue
			}
			for _, agentID := range agentIDs {
				kinds, err := e.Anomaly.Check(agentID)
				if err != nil {
					log.Printf("[worker] anomaly check %s: %v", agentID, err)
					continue
				}
				if len(kinds) > 0 {
					log.Printf("[worker] anomaly burst detected for %s: %v", agentID, kinds)
					meta := metadata.Map(map[string]metadata.Value{
						"kinds": metadata.String(fmt.Sprint(kinds)),
					})
					if _, err := e.Pipeline.Submit(agentID, asr.ActionAnomalyDetected, asr.ThreatLevelWarning, asr.PQCStatusSafe, meta); err != nil {
						log.Printf("[worker] record anomaly asr for %s: %v", agentID, err)
					}
				}
			}
		}
	}
}

// runNonceAndQuotaPruning drops expired nonces and stale rate-limit windows,
// every 10 minutes.
func (e *Engine) runNonceAndQuotaPruning(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(10 * time.Minute):
			now := time.Now()
			if _, err := e.DB.PruneNonces(now.UnixMilli()); err != nil {
				log.Printf("[worker] prune nonces: %v", err)
			}
			if _, err := e.DB.PruneRateWindows(now.Unix()/60 - 60); err != nil {
				log.Printf("[worker] prune rate windows: %v", err)
			}
		}
	}
}
