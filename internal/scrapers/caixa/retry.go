package caixa

import (
	"context"
	"fmt"
	"time"

	"caixa-imoveis/internal/components/chrono"
	"caixa-imoveis/internal/components/telemetry"

	"github.com/cenkalti/backoff/v4"
)

const report_retry = "retry-policy.attempt"

// RetryPolicy retries transient failures and bot challenges with a capped
// exponential backoff: the delay before attempt k (k >= 2) is
// min(Cap, Multiplier * 2^(k-2)).
type RetryPolicy struct {
	MaxAttempts int
	Multiplier  time.Duration
	Cap         time.Duration

	clock chrono.API
	tel   telemetry.API
}

func NewRetryPolicy(cfg RetryConfig, clock chrono.API, tel telemetry.API) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: cfg.MaxAttempts,
		Multiplier:  seconds(cfg.MultiplierSeconds),
		Cap:         seconds(cfg.CapSeconds),
		clock:       clock,
		tel:         telemetry.NewScopedAPI("caixa_scraper", tel),
	}
}

// Delay returns the wait that precedes the given 1-based attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	shift := attempt - 2
	if shift >= 32 {
		return p.Cap
	}
	delay := p.Multiplier << shift
	if delay > p.Cap || delay <= 0 {
		return p.Cap
	}
	return delay
}

// scheduleBackOff feeds Delay to the backoff package, one call per retry.
type scheduleBackOff struct {
	policy  RetryPolicy
	retries int
}

func (b *scheduleBackOff) NextBackOff() time.Duration {
	b.retries++
	return b.policy.Delay(b.retries + 1)
}

func (b *scheduleBackOff) Reset() {
	b.retries = 0
}

func (p RetryPolicy) backOff() backoff.BackOff {
	return &scheduleBackOff{policy: p}
}

// Wrap retries `next` according to the policy. When an attempt was answered by
// a bot challenge, `onChallenge` (if non-nil) runs before the following attempt;
// if it fails the request is aborted with its error.
func (p RetryPolicy) Wrap(next RequestFunc, onChallenge func(ctx context.Context) error) RequestFunc {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	return func(ctx context.Context, req Request) (Response, error) {
		var (
			res          Response
			rc           RetryContext
			renewPending bool
		)

		operation := func() error {
			if renewPending && onChallenge != nil {
				renewPending = false
				err := onChallenge(ctx)
				if err != nil {
					return backoff.Permanent(err)
				}
			}

			rc.Attempt++
			out, err := next(ctx, req)
			rc.LastErrorKind = kindOf(err)
			if err == nil {
				res = out
				return nil
			}
			if !rc.LastErrorKind.retryable() {
				return backoff.Permanent(err)
			}
			renewPending = rc.LastErrorKind == KindChallenge
			return err
		}

		notify := func(err error, delay time.Duration) {
			rc.Delay = delay
			p.tel.ReportWarning(
				report_retry,
				fmt.Sprintf("%s %s", req.Method, req.Path),
				rc.Attempt,
				string(rc.LastErrorKind),
				delay.String(),
				err,
			)
		}

		b := backoff.WithContext(
			backoff.WithMaxRetries(p.backOff(), uint64(maxAttempts-1)),
			ctx,
		)
		timer := chrono.NewBackoffTimer(ctx, p.clock)
		err := backoff.RetryNotifyWithTimer(operation, b, notify, timer)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return Response{}, ctx.Err()
		}
		if rc.LastErrorKind.retryable() && rc.Attempt >= maxAttempts {
			return Response{}, fmt.Errorf(
				"%w: %s %s after %d attempts (%s): %w",
				ErrRequestFailed, req.Method, req.Path, rc.Attempt, rc.LastErrorKind, err,
			)
		}
		return Response{}, err
	}
}
