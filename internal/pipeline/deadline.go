package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AppleLamps/Grok-Imagine-FAL/internal/domain"
)

// WithDeadline runs fn under a timeout derived from ctx and returns as soon as
// either fn finishes or the deadline passes, whichever is first. On deadline
// onTimeout is called (if set) and an ErrStepTimeout error naming label is
// returned without waiting for fn. Cancellation of ctx itself yields
// ErrCancelled.
func WithDeadline[T any](ctx context.Context, label string, timeout time.Duration, onTimeout func(), fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, cancelled(label, err)
	}
	if timeout <= 0 {
		return fn(ctx)
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(runCtx)
		done <- result{v: v, err: err}
	}()

	timedOut := func() (T, error) {
		if onTimeout != nil {
			onTimeout()
		}
		return zero, fmt.Errorf("%w: %s timed out after %s", domain.ErrStepTimeout, label, timeout)
	}

	select {
	case r := <-done:
		if r.err == nil {
			return r.v, nil
		}
		if err := ctx.Err(); err != nil {
			return zero, cancelled(label, err)
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return timedOut()
		}
		return zero, r.err
	case <-runCtx.Done():
		select {
		case r := <-done:
			if r.err == nil {
				return r.v, nil
			}
		default:
		}
		if err := ctx.Err(); err != nil {
			return zero, cancelled(label, err)
		}
		return timedOut()
	}
}

func cancelled(label string, cause error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrCancelled, label, cause)
}
