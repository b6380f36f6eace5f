package retry

import (
	"context"
	"testing"
	"time"

	"github.com/seedprobe/seedprobe/pkg/errors"
)

// fastConfig keeps test backoffs in the microsecond range.
func fastConfig(attempts int) *Config {
	return &Config{
		MaxAttempts: attempts,
		BaseDelay:   time.Microsecond,
		MaxDelay:    10 * time.Microsecond,
		Multiplier:  2.0,
		Jitter:      false,
	}
}

func TestDo_FirstAttemptSucceeds(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3), func() error {
		calls++
		return nil
	})

	if err != nil {
		t.Fatalf("Do() unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("Do() made %d calls, want 1", calls)
	}
}

func TestDo_RetriesTransientFailure(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(5), func() error {
		calls++
		if calls < 3 {
			return errors.New(errors.ErrorTypeKafka, "publish", "broker unavailable")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Do() unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("Do() made %d calls, want 3", calls)
	}
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(5), func() error {
		calls++
		return errors.New(errors.ErrorTypeValidation, "insert", "bad row")
	})

	if err == nil {
		t.Fatal("Do() expected error, got nil")
	}
	if calls != 1 {
		t.Errorf("Do() made %d calls for a permanent error, want 1", calls)
	}
	if !errors.IsType(err, errors.ErrorTypeValidation) {
		t.Errorf("Do() error type changed: %v", err)
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3), func() error {
		calls++
		return errors.New(errors.ErrorTypeKafka, "publish", "broker unavailable")
	})

	if err == nil {
		t.Fatal("Do() expected error after exhausting attempts, got nil")
	}
	if calls != 3 {
		t.Errorf("Do() made %d calls, want 3", calls)
	}
	if !errors.IsType(err, errors.ErrorTypeInternal) {
		t.Errorf("Do() exhaustion error type = %v, want internal", err)
	}
	if got := errors.GetContext(err)["max_attempts"]; got != 3 {
		t.Errorf("Do() max_attempts context = %v, want 3", got)
	}
}

func TestDo_ContextCancelledBetweenAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, fastConfig(5), func() error {
		calls++
		return errors.New(errors.ErrorTypeKafka, "publish", "broker unavailable")
	})

	// The first attempt always runs; the cancelled context is seen before
	// the second.
	if calls != 1 {
		t.Errorf("Do() made %d calls, want 1", calls)
	}
	if err != context.Canceled {
		t.Errorf("Do() error = %v, want context.Canceled", err)
	}
}

func TestDo_NilConfigUsesDefaults(t *testing.T) {
	calls := 0
	err := Do(context.Background(), nil, func() error {
		calls++
		return nil
	})

	if err != nil {
		t.Fatalf("Do() unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("Do() made %d calls, want 1", calls)
	}
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	got, err := DoWithResult(context.Background(), fastConfig(3), func() (int, error) {
		calls++
		if calls < 2 {
			return 0, errors.New(errors.ErrorTypeKafka, "read", "connection reset")
		}
		return 42, nil
	})

	if err != nil {
		t.Fatalf("DoWithResult() unexpected error: %v", err)
	}
	if got != 42 {
		t.Errorf("DoWithResult() = %d, want 42", got)
	}
}

func TestDoWithResult_ZeroValueOnFailure(t *testing.T) {
	got, err := DoWithResult(context.Background(), fastConfig(2), func() (string, error) {
		return "partial", errors.New(errors.ErrorTypeValidation, "read", "bad payload")
	})

	if err == nil {
		t.Fatal("DoWithResult() expected error, got nil")
	}
	if got != "" {
		t.Errorf("DoWithResult() = %q on failure, want zero value", got)
	}
}

func TestBackoff(t *testing.T) {
	cfg := &Config{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   300 * time.Millisecond,
		Multiplier: 2.0,
		Jitter:     false,
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 300 * time.Millisecond}, // capped
		{5, 300 * time.Millisecond}, // capped
	}

	for _, tt := range tests {
		if got := cfg.backoff(tt.attempt); got != tt.want {
			t.Errorf("backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestBackoff_JitterBounds(t *testing.T) {
	cfg := &Config{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   time.Second,
		Multiplier: 2.0,
		Jitter:     true,
	}

	// Jitter randomizes the upper half of the wait.
	for i := 0; i < 100; i++ {
		got := cfg.backoff(1)
		if got < 100*time.Millisecond || got > 200*time.Millisecond {
			t.Fatalf("backoff(1) = %v, want within [100ms, 200ms]", got)
		}
	}
}
