package concurrency

import (
	"context"
	"fmt"

	gferrors "github.com/vnykmshr/pacegate/pkg/common/errors"
)

// Acquire attempts to acquire one permit without blocking.
func (cl *concurrencyLimiter) Acquire() bool {
	return cl.AcquireN(1)
}

// AcquireN attempts to acquire n permits without blocking.
func (cl *concurrencyLimiter) AcquireN(n int) bool {
	if n <= 0 {
		return true
	}

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if len(cl.waiters) == 0 && cl.available >= n {
		cl.available -= n
		cl.inUse += n
		return true
	}
	return false
}

// Wait blocks until one permit is available.
func (cl *concurrencyLimiter) Wait(ctx context.Context) error {
	return cl.WaitN(ctx, 1)
}

// WaitN blocks until n permits are available.
func (cl *concurrencyLimiter) WaitN(ctx context.Context, n int) error {
	if n <= 0 {
		return nil
	}

	// Check if context is already canceled
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	cl.mu.Lock()

	if n > cl.capacity {
		cl.mu.Unlock()
		return gferrors.NewProtocolError("concurrency", "WaitN",
			fmt.Sprintf("requested %d permits, capacity is %d", n, cl.capacity))
	}

	// Fast path: permits available and nobody queued ahead of us
	if len(cl.waiters) == 0 && cl.available >= n {
		cl.available -= n
		cl.inUse += n
		cl.mu.Unlock()
		return nil
	}

	w := &waiter{n: n, ready: make(chan struct{})}
	cl.waiters = append(cl.waiters, w)
	cl.mu.Unlock()

	select {
	case <-w.ready:
		return nil
	case <-ctx.Done():
		cl.mu.Lock()
		select {
		case <-w.ready:
			// Permits were assigned while we were giving up; hand them back.
			cl.available += n
			cl.inUse -= n
		default:
			cl.removeWaiterLocked(w)
		}
		// Our departure may let the next waiter through.
		cl.notifyWaitersLocked()
		cl.mu.Unlock()
		return ctx.Err()
	}
}

// Release releases one permit back to the limiter.
func (cl *concurrencyLimiter) Release() error {
	return cl.ReleaseN(1)
}

// ReleaseN releases n permits back to the limiter.
func (cl *concurrencyLimiter) ReleaseN(n int) error {
	if n <= 0 {
		return nil
	}

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cl.inUse < n {
		return gferrors.NewProtocolError("concurrency", "ReleaseN",
			fmt.Sprintf("released %d permits with only %d in use", n, cl.inUse))
	}

	cl.available += n
	cl.inUse -= n

	cl.notifyWaitersLocked()
	return nil
}

// Capacity returns the maximum number of concurrent operations allowed.
func (cl *concurrencyLimiter) Capacity() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.capacity
}

// Available returns the number of permits currently available.
func (cl *concurrencyLimiter) Available() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.available
}

// InUse returns the number of permits currently in use.
func (cl *concurrencyLimiter) InUse() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.inUse
}

// Waiting returns the number of queued callers.
func (cl *concurrencyLimiter) Waiting() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return len(cl.waiters)
}

// notifyWaitersLocked assigns permits to waiters from the head of the queue.
// It stops at the first waiter it cannot satisfy so later, smaller requests
// never overtake it. Must be called with cl.mu held.
func (cl *concurrencyLimiter) notifyWaitersLocked() {
	served := 0
	for _, w := range cl.waiters {
		if cl.available < w.n {
			break
		}
		cl.available -= w.n
		cl.inUse += w.n
		close(w.ready)
		served++
	}
	if served == 0 {
		return
	}

	remaining := copy(cl.waiters, cl.waiters[served:])
	for i := remaining; i < len(cl.waiters); i++ {
		cl.waiters[i] = nil
	}
	cl.waiters = cl.waiters[:remaining]
}

// removeWaiterLocked drops w from the queue. Must be called with cl.mu held.
func (cl *concurrencyLimiter) removeWaiterLocked(w *waiter) {
	for i, other := range cl.waiters {
		if other == w {
			copy(cl.waiters[i:], cl.waiters[i+1:])
			cl.waiters[len(cl.waiters)-1] = nil
			cl.waiters = cl.waiters[:len(cl.waiters)-1]
			return
		}
	}
}
