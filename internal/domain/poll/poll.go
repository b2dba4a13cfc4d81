// Package poll repeatedly fetches a value until a stop condition holds, with
// exponential backoff between attempts, a wall-clock budget and cooperative
// cancellation through the context.
package poll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/jonboulle/clockwork"
)

var (
	ErrTimeout   = errors.New("poll timed out")
	ErrFetch     = errors.New("poll fetch failed")
	ErrPredicate = errors.New("poll stop condition failed")
	ErrAborted   = errors.New("poll aborted")
)

// Error is returned for every unsuccessful poll. Kind is one of the
// sentinel errors above; Err is the underlying cause, if any.
type Error struct {
	Kind     error
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v after %d attempts", e.Kind, e.Attempts)
	}
	return fmt.Sprintf("%v on attempt %d: %v", e.Kind, e.Attempts, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

type Options struct {
	// Interval is the delay before the first retry. It doubles on every
	// further retry. Zero retries immediately.
	Interval time.Duration
	// Timeout is measured from the first attempt and checked before each
	// attempt after it.
	Timeout time.Duration
	Clock   clockwork.Clock
	Logger  *slog.Logger
	Name    string
}

// Backoff returns the delay scheduled after the given 1-indexed attempt:
// interval * 2^(attempt-1), saturating instead of overflowing.
func Backoff(interval time.Duration, attempt int) time.Duration {
	if interval <= 0 || attempt < 1 {
		return 0
	}
	shift := attempt - 1
	if shift >= 62 || interval > time.Duration(math.MaxInt64>>shift) {
		return time.Duration(math.MaxInt64)
	}
	return interval << shift
}

type result[T any] struct {
	value T
	err   error
}

// Until calls fetch until stop reports true for its result. Exactly one of
// the value or a *Error is returned, and no timer outlives the call.
//
// Cancelling ctx aborts promptly. A fetch already in flight keeps running on
// a context that is not cancelled with ctx, and its result is dropped.
func Until[T any](ctx context.Context, opts Options, fetch func(context.Context) (T, error), stop func(T) (bool, error)) (T, error) {
	var zero T
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	name := opts.Name
	if name == "" {
		name = "poll"
	}

	fetchCtx := context.WithoutCancel(ctx)
	start := clock.Now()

	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			logger.Debug("poll cancelled", "poll", name, "attempt", attempt)
			return zero, &Error{Kind: ErrAborted, Attempts: attempt - 1, Err: context.Cause(ctx)}
		}
		if elapsed := clock.Since(start); elapsed > opts.Timeout {
			logger.Warn("poll timed out", "poll", name, "attempts", attempt-1, "elapsed", elapsed)
			return zero, &Error{Kind: ErrTimeout, Attempts: attempt - 1}
		}

		ch := make(chan result[T], 1)
		go func() {
			v, err := fetch(fetchCtx)
			ch <- result[T]{value: v, err: err}
		}()

		var r result[T]
		select {
		case <-ctx.Done():
			logger.Debug("poll cancelled during fetch", "poll", name, "attempt", attempt)
			return zero, &Error{Kind: ErrAborted, Attempts: attempt, Err: context.Cause(ctx)}
		case r = <-ch:
		}
		if ctx.Err() != nil {
			return zero, &Error{Kind: ErrAborted, Attempts: attempt, Err: context.Cause(ctx)}
		}
		if r.err != nil {
			logger.Error("poll fetch failed", "poll", name, "attempt", attempt, "error", r.err)
			return zero, &Error{Kind: ErrFetch, Attempts: attempt, Err: r.err}
		}

		done, err := stop(r.value)
		if err != nil {
			logger.Error("poll stop condition failed", "poll", name, "attempt", attempt, "error", err)
			return zero, &Error{Kind: ErrPredicate, Attempts: attempt, Err: err}
		}
		if done {
			logger.Debug("poll confirmed", "poll", name, "attempts", attempt)
			return r.value, nil
		}

		delay := Backoff(opts.Interval, attempt)
		if delay == 0 {
			continue
		}
		timer := clock.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Debug("poll cancelled while waiting", "poll", name, "attempt", attempt)
			return zero, &Error{Kind: ErrAborted, Attempts: attempt, Err: context.Cause(ctx)}
		case <-timer.Chan():
		}
	}
}
