package retry

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/davsync/davsync/internal/daverr"
)

// Executor runs fallible operations under a backoff schedule.
// An Executor is safe for concurrent use.
type Executor struct {
	cfg   Config
	sleep func(ctx context.Context, d time.Duration) error
	rand  func() float64
}

type Option func(*Executor)

// WithSleep replaces the wait between attempts.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Executor) {
		e.sleep = fn
	}
}

// WithRand replaces the jitter source. fn must return values in [0, 1).
func WithRand(fn func() float64) Option {
	return func(e *Executor) {
		e.rand = fn
	}
}

func New(cfg Config, opts ...Option) *Executor {
	e := &Executor{
		cfg:   cfg,
		sleep: sleepCtx,
		rand:  rand.Float64,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the schedule of the executor.
func (e *Executor) Config() Config {
	return e.cfg
}

// NextDelay is the wait scheduled after attempt (zero based) failed with err.
func (e *Executor) NextDelay(err error, attempt int) time.Duration {
	return e.cfg.backoff(daverr.RetryDelay(err), attempt, e.rand())
}

// Do runs op until it succeeds, fails with a non-retryable error, or the attempt
// budget is spent. The last error is returned unchanged.
func Do[T any](ctx context.Context, e *Executor, op func(ctx context.Context) (T, error)) (T, error) {
	return DoWithProgress(ctx, e, op, nil)
}

// DoWithProgress is Do, reporting a Progress snapshot before the first attempt,
// after every failure and once the loop has finished.
func DoWithProgress[T any](ctx context.Context, e *Executor, op func(ctx context.Context) (T, error), report func(Progress)) (T, error) {
	var zero T
	maxAttempts := e.cfg.MaxAttempts()
	emit := func(p Progress) {
		if report != nil {
			p.MaxAttempts = maxAttempts
			report(p)
		}
	}

	emit(Progress{})

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			cancelErr := daverr.Wrap(daverr.KindCancelled, "retry aborted", err)
			emit(Progress{Attempt: attempt, LastErr: cancelErr})
			return zero, cancelErr
		}

		res, err := op(ctx)
		if err == nil {
			emit(Progress{Attempt: attempt + 1})
			return res, nil
		}
		lastErr = err

		if !daverr.IsRetryable(err) || attempt+1 >= maxAttempts {
			emit(Progress{Attempt: attempt + 1, LastErr: err})
			return zero, err
		}

		delay := e.NextDelay(err, attempt)
		slog.Warn("retry", "attempt", attempt+1, "max", maxAttempts, "delay", delay, "error", err)
		emit(Progress{Attempt: attempt + 1, LastErr: err, NextDelay: delay})

		if err := e.sleep(ctx, delay); err != nil {
			cancelErr := daverr.Wrap(daverr.KindCancelled, "retry aborted", err)
			emit(Progress{Attempt: attempt + 1, LastErr: cancelErr})
			return zero, cancelErr
		}
	}

	// unreachable, MaxAttempts is at least one
	return zero, daverr.MaxRetries(maxAttempts, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
