/*
Package ratelimit groups the admission primitives of pacegate.

  - gate: at most N concurrent holders, and successive admissions no closer
    than a fixed interval on the monotonic clock
  - concurrency: counting semaphore with FIFO waiters, used by gate for its
    slots and usable on its own

A gate with an interval of zero is a plain concurrency limit. A gate with a
single slot is a paced mutex:

	lock, _ := gate.NewLock(200 * time.Millisecond)
	err := lock.Do(ctx, func(ctx context.Context) error {
		return callUpstream(ctx)
	})

All primitives are safe for concurrent use and honor context cancellation
while waiting.
*/
package ratelimit
