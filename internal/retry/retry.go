package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/vadim/gigfinder/internal/apperr"
)

// Policy controls how transient store failures are retried
type Policy struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultPolicy is used when no policy is configured
var DefaultPolicy = Policy{
	MaxTries:        4,
	InitialInterval: 100 * time.Millisecond,
	MaxInterval:     2 * time.Second,
}

// Do runs op until it succeeds, fails with a non-transient error,
// or the policy gives up. Only errors of kind apperr.ErrTransientIO are retried.
func Do(ctx context.Context, p Policy, op func() error) error {
	_, err := Value(ctx, p, func() (struct{}, error) {
		return struct{}{}, op()
	})
	return err
}

// Value is Do for operations that return a result
func Value[T any](ctx context.Context, p Policy, op func() (T, error)) (T, error) {
	if p.MaxTries == 0 {
		p = DefaultPolicy
	}

	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}

	return backoff.Retry(ctx, func() (T, error) {
		res, err := op()
		if err != nil && !apperr.IsTransient(err) {
			return res, backoff.Permanent(err)
		}
		return res, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(p.MaxTries))
}
