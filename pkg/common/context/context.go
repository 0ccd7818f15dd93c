package context

import (
	"context"
	"errors"
	"time"
)

// WithOptionalTimeout derives a context that is canceled when the parent is
// canceled or when timeout elapses. A timeout of zero or less means the
// derived context only ends with the parent or the returned cancel.
func WithOptionalTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}

// WithCancelOn derives a context from parent that is also canceled when other
// is done. Values and deadline come from parent only.
func WithCancelOn(parent, other context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(other, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// IsCanceled returns true if the context has been canceled
func IsCanceled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// IsTimedOut reports whether err is or wraps context.DeadlineExceeded.
func IsTimedOut(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
