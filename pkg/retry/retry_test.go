package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testConfig() *Config {
	return &Config{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.MaxRetries != 3 {
		t.Errorf("expected MaxRetries=3, got %d", cfg.MaxRetries)
	}
	if cfg.InitialDelay != 200*time.Millisecond {
		t.Errorf("expected InitialDelay=200ms, got %v", cfg.InitialDelay)
	}
	if cfg.MaxDelay != 5*time.Second {
		t.Errorf("expected MaxDelay=5s, got %v", cfg.MaxDelay)
	}
	if cfg.Multiplier != 2.0 {
		t.Errorf("expected Multiplier=2.0, got %f", cfg.Multiplier)
	}
}

func TestDo_Success(t *testing.T) {
	callCount := 0
	err := Do(context.Background(), testConfig(), func() error {
		callCount++
		return nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
}

func TestDo_SuccessAfterRetries(t *testing.T) {
	callCount := 0
	err := Do(context.Background(), testConfig(), func() error {
		callCount++
		if callCount < 3 {
			return errors.New("connection refused")
		}
		return nil
	})

	if err != nil {
		t.Errorf("expected no error after retries, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("expected 3 calls, got %d", callCount)
	}
}

func TestDo_MaxRetriesExhausted(t *testing.T) {
	callCount := 0
	err := Do(context.Background(), testConfig(), func() error {
		callCount++
		return errors.New("timeout waiting for response")
	})

	if err == nil {
		t.Error("expected error after exhausting retries")
	}
	if callCount != 4 {
		t.Errorf("expected 4 calls (initial + 3 retries), got %d", callCount)
	}
}

func TestDo_PermanentErrorNotRetried(t *testing.T) {
	callCount := 0
	err := Do(context.Background(), testConfig(), func() error {
		callCount++
		return errors.New("syntax error at or near SELECT")
	})

	if err == nil {
		t.Error("expected error")
	}
	if callCount != 1 {
		t.Errorf("permanent error must not be retried, got %d calls", callCount)
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, testConfig(), func() error {
		return errors.New("connection refused")
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestDoWithResult(t *testing.T) {
	callCount := 0
	result, err := DoWithResult(context.Background(), testConfig(), func() (string, error) {
		callCount++
		if callCount < 2 {
			return "", errors.New("rate limit exceeded")
		}
		return "ok", nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if result != "ok" {
		t.Errorf("expected result 'ok', got %q", result)
	}
}

type declaredRetryable struct{ retryable bool }

func (e declaredRetryable) Error() string     { return "declared" }
func (e declaredRetryable) IsRetryable() bool { return e.retryable }

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"rate limited", errors.New("429 Too Many Requests"), true},
		{"service unavailable", errors.New("503 service unavailable"), true},
		{"warehouse suspended", errors.New("warehouse suspended; resume to proceed"), true},
		{"bad sql", errors.New("relation does not exist"), false},
		{"declared retryable", declaredRetryable{retryable: true}, true},
		{"declared permanent", declaredRetryable{retryable: false}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
