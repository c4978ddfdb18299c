package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

func fastConfig() *Config {
	return &Config{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func serializationErr() error {
	return fmt.Errorf("failed to save column: %w", &pgconn.PgError{Code: SerializationFailure, Message: "could not serialize access"})
}

type declared struct{ retry bool }

func (d declared) Error() string     { return "declared" }
func (d declared) IsRetryable() bool { return d.retry }

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.MaxRetries != 3 {
		t.Errorf("expected MaxRetries=3, got %d", cfg.MaxRetries)
	}
	if cfg.InitialDelay != 50*time.Millisecond {
		t.Errorf("expected InitialDelay=50ms, got %v", cfg.InitialDelay)
	}
	if cfg.MaxDelay != time.Second {
		t.Errorf("expected MaxDelay=1s, got %v", cfg.MaxDelay)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"serialization failure", serializationErr(), true},
		{"deadlock", &pgconn.PgError{Code: DeadlockDetected}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"plain error", errors.New("deadlock in the message only"), false},
		{"declared retryable", fmt.Errorf("wrapped: %w", declared{retry: true}), true},
		{"declared permanent", declared{retry: false}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestDoIfRetryable_SuccessAfterSerializationFailures(t *testing.T) {
	callCount := 0
	err := DoIfRetryable(context.Background(), fastConfig(), func() error {
		callCount++
		if callCount < 3 {
			return serializationErr()
		}
		return nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("expected 3 calls, got %d", callCount)
	}
}

func TestDoIfRetryable_NonRetryableError(t *testing.T) {
	permanent := errors.New("duplicate_name: column name taken")
	callCount := 0
	err := DoIfRetryable(context.Background(), fastConfig(), func() error {
		callCount++
		return permanent
	})

	if !errors.Is(err, permanent) {
		t.Errorf("expected the permanent error, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
}

func TestDoIfRetryable_MaxRetriesExhausted(t *testing.T) {
	callCount := 0
	err := DoIfRetryable(context.Background(), fastConfig(), func() error {
		callCount++
		return serializationErr()
	})

	if !IsRetryable(err) {
		t.Errorf("expected the last serialization failure, got %v", err)
	}
	if callCount != 4 {
		t.Errorf("expected 4 calls (1 + 3 retries), got %d", callCount)
	}
}

func TestDoIfRetryable_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := &Config{MaxRetries: 5, InitialDelay: time.Second, MaxDelay: time.Second, Multiplier: 1}

	callCount := 0
	err := DoIfRetryable(ctx, cfg, func() error {
		callCount++
		cancel()
		return serializationErr()
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
}

func TestDo_RetriesAnyError(t *testing.T) {
	callCount := 0
	err := Do(context.Background(), fastConfig(), func() error {
		callCount++
		if callCount < 2 {
			return errors.New("connection refused")
		}
		return nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if callCount != 2 {
		t.Errorf("expected 2 calls, got %d", callCount)
	}
}

func TestDoWithResult(t *testing.T) {
	callCount := 0
	got, err := DoWithResult(context.Background(), fastConfig(), func() (string, error) {
		callCount++
		if callCount == 1 {
			return "", &pgconn.PgError{Code: DeadlockDetected}
		}
		return "committed", nil
	})

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got != "committed" {
		t.Errorf("expected committed, got %s", got)
	}
}

func TestDo_NilConfigUsesDefaults(t *testing.T) {
	err := Do(context.Background(), nil, func() error { return nil })
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestApplyJitter(t *testing.T) {
	delay := 100 * time.Millisecond
	if got := applyJitter(delay, 0); got != delay {
		t.Errorf("expected no jitter, got %v", got)
	}
	for i := 0; i < 50; i++ {
		got := applyJitter(delay, 0.2)
		if got < 80*time.Millisecond || got > 120*time.Millisecond {
			t.Fatalf("jitter out of range: %v", got)
		}
	}
}
