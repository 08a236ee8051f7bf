package order

import (
	"context"
	"errors"
	"time"

	"dapur-be/internal/db"

	"github.com/cenkalti/backoff/v4"
)

const (
	baseBackoff     = 50 * time.Millisecond
	maxBackoff      = 2 * time.Second
	readAttempts    = 3
	restoreAttempts = 5
)

// newBackOff doubles from baseBackoff up to maxBackoff with 50% jitter. The
// attempt count, not elapsed time, bounds a retry.
func newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = baseBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0.5
	b.MaxInterval = maxBackoff
	b.MaxElapsedTime = 0
	return b
}

// retry runs fn up to attempts times while retryable(err) holds. When ctx
// ends first the last error from fn is returned.
func retry(ctx context.Context, attempts int, newBackOff func() backoff.BackOff, retryable func(error) bool, fn func() error) error {
	var last error
	op := func() error {
		last = fn()
		if last != nil && !retryable(last) {
			return backoff.Permanent(last)
		}
		return last
	}

	b := backoff.WithContext(backoff.WithMaxRetries(newBackOff(), uint64(attempts-1)), ctx)
	err := backoff.Retry(op, b)
	if err != nil && last != nil && ctx.Err() != nil {
		return last
	}
	return err
}

func isTransient(err error) bool {
	return errors.Is(err, db.ErrStoreUnavailable) || db.IsTransient(err)
}
