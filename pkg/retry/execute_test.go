package retry

import (
	"context"
	"errors"
	"testing"

	"github.com/tidalsync/core/pkg/errs"
)

func TestExecuteSyncSucceedsFirstTry(t *testing.T) {
	calls := 0
	err := ExecuteSync(context.Background(), BackoffParams{}, BackoffPolicy{MaxAttempts: 3}, func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestExecuteSyncRetriesNetworkError(t *testing.T) {
	calls := 0
	err := ExecuteSync(context.Background(), BackoffParams{}, BackoffPolicy{MaxAttempts: 3, BaseMs: 1, MaxMs: 1}, func() error {
		calls++
		if calls < 3 {
			return errs.New(errs.Network, "push", "connection refused")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestExecuteSyncStopsOnNonRetriableError(t *testing.T) {
	calls := 0
	err := ExecuteSync(context.Background(), BackoffParams{}, BackoffPolicy{MaxAttempts: 5, BaseMs: 1, MaxMs: 1}, func() error {
		calls++
		return errs.New(errs.SyncStuck, "push", "no progress")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (should not retry SyncStuck)", calls)
	}
}

func TestExecuteSyncReturnsLastErrorAfterExhaustion(t *testing.T) {
	wantErr := errs.New(errs.Network, "push", "still failing")
	err := ExecuteSync(context.Background(), BackoffParams{}, BackoffPolicy{MaxAttempts: 2, BaseMs: 1, MaxMs: 1}, func() error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
}
