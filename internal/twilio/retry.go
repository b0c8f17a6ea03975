package twilio

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"time"
)

// DefaultMaxAttempts is how many times a request is tried before giving up.
const DefaultMaxAttempts = 3

// jitterFactor is the ±fraction of jitter applied to each delay.
const jitterFactor = 0.2

// Delays between attempts. Attempt 1 waits 250ms, attempt 2 waits 1s.
var defaultRetryDelays = []time.Duration{
	250 * time.Millisecond,
	1 * time.Second,
}

// nextRetryDelay returns the delay after the given failed attempt
// (0-indexed) with ±20% jitter. Attempts past the table reuse the last entry.
func nextRetryDelay(delays []time.Duration, attempt int) time.Duration {
	if len(delays) == 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= len(delays) {
		attempt = len(delays) - 1
	}

	base := delays[attempt]
	jitter := (rand.Float64()*2 - 1) * float64(base) * jitterFactor
	return time.Duration(float64(base) + jitter)
}

// retryable reports whether Twilio rejected the request without acting on
// it. Only 429 and 503 qualify; other failures may already have sent an SMS.
func retryable(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusTooManyRequests ||
		apiErr.StatusCode == http.StatusServiceUnavailable
}

// withRetry runs fn until it succeeds, fails permanently, attempts run out,
// or ctx is done.
func (c *Client) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if err = fn(); err == nil || !retryable(err) {
			return err
		}
		if attempt == c.maxAttempts-1 {
			break
		}

		timer := time.NewTimer(nextRetryDelay(c.retryDelays, attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(err, ctx.Err())
		case <-timer.C:
		}
	}
	return err
}
