package engine

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// DefaultRetryMaxTries bounds collaborator calls when nothing else is configured.
const DefaultRetryMaxTries = 3

// retry calls op until it succeeds, returns a permanent error, the context
// ends or the try budget runs out.
func retry[T any](ctx context.Context, q *Sequencer, what string, op func() (T, error)) (T, error) {
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(q.newBackOff()),
		backoff.WithMaxTries(q.retryMaxTries),
		backoff.WithNotify(func(err error, wait time.Duration) {
			q.logger.Warn("collaborator call failed, retrying",
				"call", what,
				"error", err,
				"wait", wait,
			)
		}),
	)
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	return b
}
