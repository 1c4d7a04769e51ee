package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/shubhsaxena/product-search/internal/config"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts: attempts,
		InitialWait: time.Millisecond,
		MaxWait:     5 * time.Millisecond,
		Multiplier:  2.0,
	}
}

func TestRetry_Attempts(t *testing.T) {
	tests := []struct {
		name         string
		maxAttempts  int
		failures     int
		wantAttempts int
		wantErr      bool
	}{
		{"first attempt succeeds", 3, 0, 1, false},
		{"succeeds on last attempt", 3, 2, 3, false},
		{"all attempts fail", 3, 10, 3, true},
		{"single attempt fails", 1, 1, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			err := Retry(context.Background(), fastRetry(tt.maxAttempts), func() error {
				attempts++
				if attempts <= tt.failures {
					return errors.New("engine timeout")
				}
				return nil
			})
			if (err != nil) != tt.wantErr {
				t.Errorf("Retry() error = %v, wantErr %v", err, tt.wantErr)
			}
			if attempts != tt.wantAttempts {
				t.Errorf("expected %d attempts, got %d", tt.wantAttempts, attempts)
			}
		})
	}
}

func TestRetry_WrapsLastError(t *testing.T) {
	last := errors.New("connection reset")
	err := Retry(context.Background(), fastRetry(2), func() error { return last })
	if !errors.Is(err, last) {
		t.Errorf("expected %v to wrap the last error", err)
	}
}

func TestRetry_ContextCancellation(t *testing.T) {
	cfg := RetryConfig{
		MaxAttempts: 10,
		InitialWait: 100 * time.Millisecond,
		MaxWait:     time.Second,
		Multiplier:  2.0,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	attempts := 0
	err := Retry(ctx, cfg, func() error {
		attempts++
		return errors.New("fail")
	})

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline error joined in, got %v", err)
	}
	if attempts >= 10 {
		t.Errorf("expected cancellation to cut attempts short, got %d", attempts)
	}
}

func TestRetry_CancelledBeforeFirstAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := Retry(ctx, fastRetry(3), func() error {
		called = true
		return nil
	})
	if called {
		t.Error("fn should not run on a cancelled context")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRetry_BackoffCapped(t *testing.T) {
	cfg := RetryConfig{
		MaxAttempts: 4,
		InitialWait: time.Millisecond,
		MaxWait:     5 * time.Millisecond,
		Multiplier:  10.0,
	}

	start := time.Now()
	_ = Retry(context.Background(), cfg, func() error { return errors.New("fail") })

	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("backoff seems uncapped, total time: %v", elapsed)
	}
}

func TestRetry_PermanentStopsImmediately(t *testing.T) {
	rejected := errors.New("no mapping found for field [colour]")
	attempts := 0
	err := Retry(context.Background(), fastRetry(5), func() error {
		attempts++
		return Permanent(rejected)
	})

	if attempts != 1 {
		t.Errorf("expected 1 attempt for permanent error, got %d", attempts)
	}
	if !errors.Is(err, rejected) {
		t.Error("expected permanent error to unwrap to the cause")
	}
	if !IsPermanent(err) {
		t.Error("expected error to stay marked permanent")
	}
}

func TestPermanent_Nil(t *testing.T) {
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
	if IsPermanent(errors.New("plain")) {
		t.Error("plain errors are not permanent")
	}
}

func TestRetryConfigFrom(t *testing.T) {
	rc := RetryConfigFrom(config.RetryConfig{MaxAttempts: 4, InitialWait: time.Millisecond, MaxWait: time.Second, Multiplier: 1.5})
	want := RetryConfig{MaxAttempts: 4, InitialWait: time.Millisecond, MaxWait: time.Second, Multiplier: 1.5}
	if rc != want {
		t.Errorf("RetryConfigFrom() = %+v, want %+v", rc, want)
	}
}

func breakerConfig(threshold uint32) config.CircuitBreakerConfig {
	return config.CircuitBreakerConfig{
		MaxRequests:      1,
		Interval:         10 * time.Second,
		Timeout:          10 * time.Second,
		FailureThreshold: threshold,
	}
}

func TestCircuitBreaker_Trips(t *testing.T) {
	tests := []struct {
		name      string
		threshold uint32
		failWith  error
		calls     int
		wantState gobreaker.State
	}{
		{"below threshold stays closed", 3, errors.New("timeout"), 2, gobreaker.StateClosed},
		{"threshold reached opens", 3, errors.New("timeout"), 3, gobreaker.StateOpen},
		{"permanent errors never trip", 2, Permanent(errors.New("bad filter")), 5, gobreaker.StateClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb := NewCircuitBreaker("search-engine", breakerConfig(tt.threshold), zap.NewNop())
			if cb.Name() != "search-engine" {
				t.Errorf("unexpected breaker name %q", cb.Name())
			}
			for i := 0; i < tt.calls; i++ {
				_, _ = cb.Execute(func() (any, error) { return nil, tt.failWith })
			}
			if got := cb.State(); got != tt.wantState {
				t.Errorf("state = %v, want %v", got, tt.wantState)
			}
		})
	}
}

func TestCircuitBreaker_RejectsWhenOpen(t *testing.T) {
	cb := NewCircuitBreaker("search-engine", breakerConfig(1), zap.NewNop())
	_, _ = cb.Execute(func() (any, error) { return nil, errors.New("timeout") })

	called := false
	_, err := cb.Execute(func() (any, error) {
		called = true
		return "ok", nil
	})
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("expected ErrOpenState, got %v", err)
	}
	if called {
		t.Error("open breaker should not call through")
	}
}

func TestStateValue(t *testing.T) {
	tests := []struct {
		state gobreaker.State
		want  float64
	}{
		{gobreaker.StateClosed, 0},
		{gobreaker.StateHalfOpen, 1},
		{gobreaker.StateOpen, 2},
	}
	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			if got := stateValue(tt.state); got != tt.want {
				t.Errorf("stateValue(%v) = %v, want %v", tt.state, got, tt.want)
			}
		})
	}
}
