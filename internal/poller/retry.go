package poller

import "time"

// RetryPolicy bounds the automatic retries made while a resource has no data.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy is shared by every resource: 1s doubling up to 30s, 10 attempts.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 10,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// Delay returns min(BaseDelay * 2^attempt, MaxDelay).
func (r RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	d := r.BaseDelay
	for i := 0; i < attempt; i++ {
		if r.MaxDelay > 0 && d >= r.MaxDelay {
			break
		}
		d *= 2
	}
	if r.MaxDelay > 0 && d > r.MaxDelay {
		return r.MaxDelay
	}
	return d
}

// CanRetry reports whether another retry may be scheduled after attempt
// retries have already been made.
func (r RetryPolicy) CanRetry(attempt int) bool {
	return attempt < r.MaxAttempts
}
