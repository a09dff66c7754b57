package checkout

import (
	"context"
	"time"
)

// Readiness polling defaults.
const (
	DefaultReadyAttempts = 50
	DefaultReadyInterval = 120 * time.Millisecond
)

// RetryPolicy bounds how long to wait for the provider. Backoff multiplies the interval
// after every attempt; 1 keeps it fixed.
type RetryPolicy struct {
	Attempts int
	Interval time.Duration
	Backoff  float64
}

// DefaultRetryPolicy polls every 120ms for about six seconds.
var DefaultRetryPolicy = RetryPolicy{
	Attempts: DefaultReadyAttempts,
	Interval: DefaultReadyInterval,
	Backoff:  1,
}

// WaitReady polls p until it reports ready. It returns a provider_unavailable
// PaymentError once the attempts are used up, or ctx's error if ctx ends first.
func WaitReady(ctx context.Context, p Provider, policy RetryPolicy) error {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}
	interval := policy.Interval
	backoff := policy.Backoff
	if backoff < 1 {
		backoff = 1
	}

	for attempt := 1; ; attempt++ {
		if p.IsReady() {
			return nil
		}
		if attempt >= attempts {
			return NewPaymentError(ErrCodeProviderUnavailable, "payment provider did not become ready", map[string]interface{}{
				"attempts": attempts,
			})
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		interval = time.Duration(float64(interval) * backoff)
	}
}
