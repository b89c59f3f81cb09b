package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const maxDelay = time.Duration(1<<63 - 1)

// Policy controls attempt count and delay growth.
type Policy struct {
	MaxRetries     int
	InitialBackoff time.Duration
	// MaxBackoff caps individual delays. Zero leaves them uncapped.
	MaxBackoff time.Duration

	// Sleep overrides how delays are spent (useful for tests). It must return
	// early with ctx.Err() when the context ends.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry is invoked after a failed attempt that will be retried.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// ExhaustedError reports that every allowed attempt failed.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	if e.Attempts == 1 {
		return fmt.Sprintf("failed after 1 attempt: %v", e.Err)
	}
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err so Do returns it without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Attempts returns the total number of attempts the policy allows.
func (p Policy) Attempts() int {
	if p.MaxRetries <= 0 {
		return 1
	}
	return p.MaxRetries + 1
}

// Delay returns the wait before retry number n (1-based).
func (p Policy) Delay(n int) time.Duration {
	base := p.InitialBackoff
	if base <= 0 {
		return 0
	}
	if n <= 0 {
		n = 1
	}
	// retry 1 -> base, retry 2 -> base*2, retry 3 -> base*4, ...
	delay := base
	for i := 1; i < n; i++ {
		if p.MaxBackoff > 0 && delay > p.MaxBackoff/2 {
			return p.MaxBackoff
		}
		if delay > maxDelay/2 {
			return maxDelay
		}
		delay *= 2
	}
	if p.MaxBackoff > 0 && delay > p.MaxBackoff {
		return p.MaxBackoff
	}
	return delay
}

// Do runs action until it succeeds or the policy is exhausted.
func Do[T any](ctx context.Context, p Policy, action func(context.Context) (T, error)) (T, error) {
	var zero T
	if ctx == nil {
		return zero, errors.New("retry: nil context")
	}
	attempts := p.Attempts()
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		result, err := action(ctx)
		if err == nil {
			return result, nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return zero, perm.err
		}
		if ctx.Err() != nil {
			return zero, err
		}
		lastErr = err
		if attempt == attempts {
			break
		}

		delay := p.Delay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}
		if err := p.sleep(ctx, delay); err != nil {
			return zero, err
		}
	}

	return zero, &ExhaustedError{Attempts: attempts, Err: lastErr}
}

func (p Policy) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	if p.Sleep != nil {
		return p.Sleep(ctx, delay)
	}
	return Sleep(ctx, delay)
}

// Sleep waits for d or until ctx ends, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
