package anchor

import (
	"context"
	"testing"
	"time"
)

func TestNoopSink_SubmitAndConfirm(t *testing.T) {
	sink := NewNoopSink()
	ctx := context.Background()

	receipt, err := sink.Submit(ctx, "0xroot", "batch-1")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if receipt.TxHash == "" {
		t.Fatal("expected non-empty tx hash")
	}

	state, err := sink.AwaitConfirmation(ctx, receipt, 2, time.Second)
	if err != nil {
		t.Fatalf("await confirmation: %v", err)
	}
	if state != Confirmed {
		t.Fatalf("expected Confirmed, got %v", state)
	}
}

type failingSink struct {
	err error
}

func (f *failingSink) Submit(ctx context.Context, rootHash, batchID string) (Receipt, error) {
	return Receipt{}, f.err
}
func (f *failingSink) Confirmations(ctx context.Context, receipt Receipt) (int, error) {
	return 0, f.err
}
func (f *failingSink) AwaitConfirmation(ctx context.Context, receipt Receipt, min int, timeout time.Duration) (ConfirmState, error) {
	return TimedOut, f.err
}

func TestFallbackSink_UsesSecondaryOnPrimaryFailure(t *testing.T) {
	primary := &failingSink{err: ErrNetworkUnavailable}
	secondary := NewNoopSink()
	fb := NewFallbackSink(primary, secondary)

	receipt, err := fb.Submit(context.Background(), "0xroot", "batch-2")
	if err != nil {
		t.Fatalf("expected fallback to succeed via secondary, got %v", err)
	}
	if receipt.TxHash == "" {
		t.Fatal("expected non-empty tx hash from secondary")
	}
}

func TestFallbackSink_FailsWhenBothFail(t *testing.T) {
	primary := &failingSink{err: ErrNetworkUnavailable}
	secondary := &failingSink{err: ErrPermanentRejection}
	fb := NewFallbackSink(primary, secondary)

	_, err := fb.Submit(context.Background(), "0xroot", "batch-3")
	if err == nil {
		t.Fatal("expected error when both sinks fail")
	}
}
