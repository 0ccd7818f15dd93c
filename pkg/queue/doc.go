/*
Package queue provides a FIFO queue with backpressure strategies and task
accounting, and RateLimited, a queue whose retrievals are paced by a gate.

Basic usage:

	q, err := queue.NewRateLimited[Job](0.5, 100) // one Get every 500ms, 100 items max
	if err != nil {
		log.Fatal(err)
	}

	go func() {
		for {
			job, err := q.Get(ctx) // paced
			if err != nil {
				return
			}
			process(job)
			q.TaskDone()
		}
	}()

	q.Put(ctx, job) // never paced
	q.Join(ctx)     // wait until every job is done

Backpressure:

A bounded queue handles Put on a full buffer according to its Strategy:
Block waits, Drop discards the new item, DropOldest discards the oldest one,
and Error fails with an error wrapping errors.ErrCapacityExceeded. A MaxSize of
zero or less makes the queue unbounded.

Pacing:

RateLimited.Get passes through a single-slot gate before reading the backing
queue, so successive retrievals are at least one interval apart no matter how
many consumers call Get. The admission is held while Get waits for an item.
TryGet admits only when no pacing wait is needed and never spends an
admission on an empty queue. Puts, Len, TaskDone, Join and Close behave
exactly as on the backing queue.

Closing:

Close wakes all blocked producers and consumers. Buffered items are still
delivered; afterwards Get returns an error wrapping errors.ErrClosed.
*/
package queue
