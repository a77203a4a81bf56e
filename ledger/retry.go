package ledger

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/vocdoni/election-ledger/log"
)

// MaxAttempts is the number of times Retry runs an operation.
const MaxAttempts = 3

var (
	retryInitialInterval = 100 * time.Millisecond
	retryMaxInterval     = 2 * time.Second
)

// Retry runs op until it succeeds, fails with a non retryable error or
// MaxAttempts is reached. Only ErrChainConflict and ErrStorageUnavailable are
// retried, with exponential backoff between attempts.
func Retry(ctx context.Context, op func() error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = retryInitialInterval
	eb.MaxInterval = retryMaxInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, MaxAttempts-1), ctx)

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		log.Debugw("retrying ledger operation", "attempt", attempt, "error", err.Error())
		return err
	}, policy)
}
