package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
)

// callPolicy bounds provider calls: per-call timeout, bounded retries
// with exponential backoff for transient failures, and an optional
// rate limit shared across workers.
type callPolicy struct {
	attempts int
	initial  time.Duration
	timeout  time.Duration
	limiter  *rate.Limiter
}

func newCallPolicy(attempts int, initial, timeout time.Duration, ratePerSecond float64) *callPolicy {
	if attempts <= 0 {
		attempts = 1
	}
	if initial <= 0 {
		initial = 500 * time.Millisecond
	}

	var limiter *rate.Limiter
	if ratePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(ratePerSecond), 1)
	}

	return &callPolicy{
		attempts: attempts,
		initial:  initial,
		timeout:  timeout,
		limiter:  limiter,
	}
}

// do runs fn under the policy. Only transient failures are retried;
// everything else aborts immediately. A context deadline hit inside fn
// surfaces as domain.ErrTimeout.
func (p *callPolicy) do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempt := func() error {
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}

		callCtx := ctx
		if p.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, p.timeout)
			defer cancel()
		}

		err := fn(callCtx)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("%w: %v", domain.ErrTimeout, err)
		}
		if !domain.Transient(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(p.initial),
		), uint64(p.attempts-1)),
		ctx,
	)

	return backoff.Retry(attempt, policy)
}
