package retry_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"trialscope/internal/retry"
)

func recordingPolicy(maxRetries int, slept *[]time.Duration) retry.Policy {
	return retry.Policy{
		MaxRetries:     maxRetries,
		InitialBackoff: time.Second,
		Sleep: func(_ context.Context, d time.Duration) error {
			*slept = append(*slept, d)
			return nil
		},
	}
}

func TestDoSucceedsAfterFailures(t *testing.T) {
	for n := 0; n <= 3; n++ {
		t.Run(fmt.Sprintf("fail_%d", n), func(t *testing.T) {
			var slept []time.Duration
			calls := 0
			got, err := retry.Do(context.Background(), recordingPolicy(3, &slept), func(context.Context) (string, error) {
				calls++
				if calls <= n {
					return "", fmt.Errorf("attempt %d failed", calls)
				}
				return "ok", nil
			})
			if err != nil {
				t.Fatalf("Do returned error: %v", err)
			}
			if got != "ok" {
				t.Fatalf("expected ok, got %q", got)
			}
			if calls != n+1 {
				t.Fatalf("expected %d attempts, got %d", n+1, calls)
			}
			if len(slept) != n {
				t.Fatalf("expected %d sleeps, got %v", n, slept)
			}
		})
	}
}

func TestDoExhaustsAndReturnsLastError(t *testing.T) {
	var slept []time.Duration
	calls := 0
	var last error
	_, err := retry.Do(context.Background(), recordingPolicy(3, &slept), func(context.Context) (int, error) {
		calls++
		last = fmt.Errorf("failure %d", calls)
		return 0, last
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 4 {
		t.Fatalf("expected 4 attempts, got %d", calls)
	}
	if !errors.Is(err, last) {
		t.Fatalf("expected last error to be wrapped, got %v", err)
	}
	var exhausted *retry.ExhaustedError
	if !errors.As(err, &exhausted) || exhausted.Attempts != 4 {
		t.Fatalf("expected ExhaustedError with 4 attempts, got %#v", err)
	}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	if len(slept) != len(want) {
		t.Fatalf("unexpected sleeps %v", slept)
	}
	for i := range want {
		if slept[i] != want[i] {
			t.Fatalf("sleep %d: got %v want %v", i, slept[i], want[i])
		}
	}
}

func TestDoZeroRetriesMakesSingleAttempt(t *testing.T) {
	var slept []time.Duration
	calls := 0
	_, err := retry.Do(context.Background(), recordingPolicy(0, &slept), func(context.Context) (int, error) {
		calls++
		return 0, errors.New("nope")
	})
	if err == nil || calls != 1 || len(slept) != 0 {
		t.Fatalf("expected one failed attempt without sleeping, got calls=%d slept=%v err=%v", calls, slept, err)
	}
}

func TestDoPermanentStopsImmediately(t *testing.T) {
	var slept []time.Duration
	base := errors.New("bad credentials")
	calls := 0
	_, err := retry.Do(context.Background(), recordingPolicy(5, &slept), func(context.Context) (int, error) {
		calls++
		return 0, retry.Permanent(base)
	})
	if calls != 1 {
		t.Fatalf("expected 1 attempt, got %d", calls)
	}
	if err != base {
		t.Fatalf("expected unwrapped permanent error, got %v", err)
	}
}

func TestDoStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	policy := retry.Policy{
		MaxRetries:     5,
		InitialBackoff: time.Second,
		Sleep: func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		},
	}
	_, err := retry.Do(ctx, policy, func(context.Context) (int, error) {
		calls++
		return 0, errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}

func TestDoOnRetryHook(t *testing.T) {
	var attempts []int
	policy := retry.Policy{
		MaxRetries: 2,
		OnRetry: func(attempt int, _ time.Duration, _ error) {
			attempts = append(attempts, attempt)
		},
	}
	_, _ = retry.Do(context.Background(), policy, func(context.Context) (int, error) {
		return 0, errors.New("x")
	})
	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Fatalf("unexpected retry hook attempts %v", attempts)
	}
}

func TestPolicyDelayCapsAndGrows(t *testing.T) {
	p := retry.Policy{InitialBackoff: time.Second, MaxBackoff: 5 * time.Second}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	for i, w := range want {
		if got := p.Delay(i + 1); got != w {
			t.Fatalf("Delay(%d) = %v, want %v", i+1, got, w)
		}
	}
	if got := (retry.Policy{}).Delay(3); got != 0 {
		t.Fatalf("expected zero delay without backoff, got %v", got)
	}
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := retry.Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
	if err := retry.Sleep(context.Background(), 0); err != nil {
		t.Fatalf("expected nil for zero delay, got %v", err)
	}
}

func TestExhaustedErrorMessage(t *testing.T) {
	cause := errors.New("boom")
	if got := (&retry.ExhaustedError{Attempts: 1, Err: cause}).Error(); got != "failed after 1 attempt: boom" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := (&retry.ExhaustedError{Attempts: 4, Err: cause}).Error(); got != "failed after 4 attempts: boom" {
		t.Fatalf("unexpected message %q", got)
	}
}
