package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultTimeout bounds a dispatched operation when Submit is given none.
const DefaultTimeout = 30 * time.Second

// RunWithTimeout runs op on its own goroutine with a deadline of d
// (DefaultTimeout when d is not positive) and returns as soon as op
// finishes or the deadline passes.
//
// An expired deadline yields ErrTimeout even if op is still running; op
// sees a cancelled context and its late result is dropped. Cancellation of
// ctx yields ctx.Err(). A panic in op is returned as an error.
func RunWithTimeout(ctx context.Context, d time.Duration, op func(context.Context) error) error {
	if d <= 0 {
		d = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("resilience: operation panicked: %v", r)
			}
		}()
		done <- op(ctx)
	}()

	select {
	case err := <-done:
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
			return ErrTimeout
		}
		return err
	case <-ctx.Done():
		return deadlineErr(ctx)
	}
}

// deadlineErr maps the bounded context's expiry to ErrTimeout.
func deadlineErr(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	return ctx.Err()
}
