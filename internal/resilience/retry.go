package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Policy controls retries with exponential backoff and jitter.
type Policy struct {
	// Attempts is the total number of tries including the first. Default: 3.
	Attempts int

	// BaseDelay is the wait before the first retry. Default: 1s.
	BaseDelay time.Duration

	// MaxDelay caps a single wait. Default: 10s.
	MaxDelay time.Duration

	// Factor multiplies the wait after each retry. Default: 2.
	Factor float64

	// Jitter spreads each wait by up to ±Jitter of itself. Default: 0.25.
	Jitter float64

	// Retryable decides whether err is worth another try. Nil means IsTransient.
	Retryable func(err error) bool

	// OnRetry runs before each wait.
	OnRetry func(attempt int, err error)
}

// DefaultPolicy returns the policy used for page fetches.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:  3,
		BaseDelay: time.Second,
		MaxDelay:  10 * time.Second,
		Factor:    2,
		Jitter:    0.25,
	}
}

// NewPolicy returns DefaultPolicy with any positive argument applied.
func NewPolicy(attempts int, base, maxDelay time.Duration) Policy {
	p := DefaultPolicy()
	if attempts > 0 {
		p.Attempts = attempts
	}
	if base > 0 {
		p.BaseDelay = base
	}
	if maxDelay > 0 {
		p.MaxDelay = maxDelay
	}
	return p
}

func (p Policy) normalized() Policy {
	d := DefaultPolicy()
	if p.Attempts <= 0 {
		p.Attempts = d.Attempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = d.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = d.MaxDelay
	}
	if p.Factor <= 0 {
		p.Factor = d.Factor
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	if p.Retryable == nil {
		p.Retryable = IsTransient
	}
	return p
}

// Backoff returns the wait after the given zero-based failed attempt.
func (p Policy) Backoff(attempt int) time.Duration {
	p = p.normalized()
	d := float64(p.BaseDelay) * math.Pow(p.Factor, float64(attempt))
	d = math.Min(d, float64(p.MaxDelay))
	if p.Jitter > 0 {
		d += (rand.Float64()*2 - 1) * d * p.Jitter
	}
	return time.Duration(math.Max(d, 0))
}

// Do runs fn until it succeeds, returns a non-retryable error, runs out of
// attempts, or ctx is done.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal is Do for functions that return a value.
func DoVal[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.normalized()

	var zero T
	var err error
	for attempt := 0; attempt < p.Attempts; attempt++ {
		var v T
		v, err = fn(ctx)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil || !p.Retryable(err) || attempt == p.Attempts-1 {
			return zero, err
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, err)
		}
		if Sleep(ctx, p.Backoff(attempt)) != nil {
			return zero, err
		}
	}
	return zero, err
}

// Sleep waits for d or until ctx is done, returning ctx.Err() in the
// latter case.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Jittered returns a random duration in [lo, hi].
func Jittered(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo+1)
}

// LogRetry returns an OnRetry callback that logs through zap.
func LogRetry(op, target string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("resilience: retrying",
			zap.String("op", op),
			zap.String("target", target),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
