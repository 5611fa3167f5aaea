package sync

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/forgevtt/forgesync/internal/datastore"
	"github.com/forgevtt/forgesync/internal/forgeapi"
)

const retryInterval = 500 * time.Millisecond

// withRetry runs op up to 1+budget times. Sentinel errors that encode an
// expected outcome (missing file, existing directory, bad name, rejected
// key) are never retried; retrying them can't change the answer.
func withRetry(ctx context.Context, budget int, op func() error) error {
	wrapped := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		err := op()
		if err == nil {
			return nil
		}
		if errors.Is(err, datastore.ErrNotFound) ||
			errors.Is(err, datastore.ErrExists) ||
			errors.Is(err, datastore.ErrInvalidName) ||
			errors.Is(err, forgeapi.ErrNotFound) ||
			errors.Is(err, forgeapi.ErrUnauthorized) ||
			errors.Is(err, forgeapi.ErrMissingKey) ||
			errors.Is(err, context.Canceled) {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(retryInterval), uint64(budget))
	return backoff.Retry(wrapped, backoff.WithContext(policy, ctx))
}
