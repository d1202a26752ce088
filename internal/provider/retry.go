package provider

import (
	"context"
	"time"

	"vibesafe/internal/vserrors"
)

// WithRetry wraps a Provider with exponential backoff on retryable
// failures (network, quota). No third-party backoff library appears
// anywhere in the pack, so this is a direct time.Sleep loop guarded by
// ctx cancellation.
type WithRetry struct {
	inner      Provider
	maxAttempt int
	base       time.Duration
	factor     float64
	sleep      func(context.Context, time.Duration) error
}

// NewWithRetry wraps inner with the default policy: base 500ms, factor 2,
// at most 3 attempts.
func NewWithRetry(inner Provider) *WithRetry {
	return &WithRetry{
		inner:      inner,
		maxAttempt: 3,
		base:       500 * time.Millisecond,
		factor:     2,
		sleep:      ctxSleep,
	}
}

func (r *WithRetry) Complete(ctx context.Context, req Request) (string, error) {
	var lastErr error
	delay := r.base

	for attempt := 1; attempt <= r.maxAttempt; attempt++ {
		out, err := r.inner.Complete(ctx, req)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if !isRetryable(err) || attempt == r.maxAttempt {
			return "", err
		}
		if sleepErr := r.sleep(ctx, delay); sleepErr != nil {
			return "", sleepErr
		}
		delay = time.Duration(float64(delay) * r.factor)
	}
	return "", lastErr
}

func isRetryable(err error) bool {
	pe, ok := err.(*vserrors.ProviderError)
	if !ok {
		return false
	}
	return pe.Retryable()
}

func ctxSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
