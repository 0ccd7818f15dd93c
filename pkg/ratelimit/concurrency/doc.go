/*
Package concurrency provides a counting semaphore for bounding concurrent
operations.

It is the admission stage of the paced gate in package gate, and is usable on
its own wherever "at most N at a time" is the only requirement.

Basic usage:

	limiter, err := concurrency.NewSafe(10) // Allow 10 concurrent operations
	if err != nil {
		log.Fatal(err)
	}

	if err := limiter.Wait(ctx); err != nil {
		return err // context canceled or deadline exceeded
	}
	defer limiter.Release()

Ordering:

Blocked callers are served in arrival order. A queued WaitN for several permits
holds back later requests even when enough permits for them are free, so large
requests cannot starve. Acquire and AcquireN never succeed while anyone is
queued.

Cancellation:

A Wait whose context ends first returns ctx.Err() and holds no permit. If the
permit was assigned in the same instant, it is handed back before returning.

Error Handling:

Constructors return a *errors.ValidationError for a non-positive capacity.
Releasing more permits than are in use returns a *errors.ProtocolError and
leaves the counts untouched. Requesting more permits than the capacity from
WaitN returns a *errors.ProtocolError immediately instead of blocking forever.

Thread Safety:

All operations are safe for concurrent use.
*/
package concurrency
