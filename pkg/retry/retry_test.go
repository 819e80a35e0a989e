package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errBusy = errors.New("busy")

func TestRetryable(t *testing.T) {
	if Retryable(nil) != nil {
		t.Error("Retryable(nil) should return nil")
	}

	err := Retryable(errBusy)
	if !IsRetryable(err) {
		t.Error("IsRetryable should return true for wrapped error")
	}
	if err.Error() != errBusy.Error() {
		t.Errorf("Error message should be preserved: %s", err.Error())
	}
	if !errors.Is(err, errBusy) {
		t.Error("wrapped error should unwrap to the cause")
	}
	if IsRetryable(errBusy) {
		t.Error("IsRetryable should return false for unwrapped error")
	}
}

func TestDo(t *testing.T) {
	ctx := context.Background()

	calls := 0
	err := Do(ctx, 3, time.Millisecond, func() error {
		calls++
		return nil
	})
	if err != nil || calls != 1 {
		t.Errorf("success: err=%v calls=%d", err, calls)
	}

	calls = 0
	err = Do(ctx, 3, time.Millisecond, func() error {
		calls++
		return errBusy
	})
	if err != errBusy || calls != 1 {
		t.Errorf("non-retryable: err=%v calls=%d", err, calls)
	}

	calls = 0
	err = Do(ctx, 3, time.Millisecond, func() error {
		calls++
		if calls < 2 {
			return Retryable(errBusy)
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Errorf("retry then succeed: err=%v calls=%d", err, calls)
	}

	calls = 0
	err = Do(ctx, 3, time.Millisecond, func() error {
		calls++
		return Retryable(errBusy)
	})
	if !errors.Is(err, errBusy) || calls != 3 {
		t.Errorf("exhausted: err=%v calls=%d", err, calls)
	}
}

func TestDoZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_ = Do(context.Background(), 0, time.Millisecond, func() error {
		calls++
		return nil
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDoContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, 3, time.Second, func() error {
		return Retryable(errBusy)
	})
	if err != context.Canceled {
		t.Errorf("Should return context error: %v", err)
	}
}
