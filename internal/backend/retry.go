package backend

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryPolicy bounds how often a background operation is re-attempted.
type RetryPolicy struct {
	MaxRetries uint64
	Delay      time.Duration
}

// DefaultRetryPolicy retries once after 500ms.
var DefaultRetryPolicy = RetryPolicy{MaxRetries: 1, Delay: 500 * time.Millisecond}

// Retryable reports whether a failure with this code may succeed on retry.
// Validation, duplicate, permission and not-found failures never do.
func Retryable(err error) bool {
	switch CodeOf(err) {
	case CodeNetwork, CodeServer:
		return true
	default:
		return false
	}
}

// Do runs fn under the policy. Non-retryable failures stop immediately.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	delay := p.Delay
	if delay <= 0 {
		delay = time.Millisecond
	}
	b := retry.WithMaxRetries(p.MaxRetries, retry.NewConstant(delay))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && Retryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}
