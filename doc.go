/*
Package pacegate provides paced admission primitives for concurrent Go programs:
at most N operations in flight, and no operation starting sooner than a fixed
interval after the previous one started.

Admission (pkg/ratelimit):
  - gate: the paced gate and its Permit handle
  - concurrency: FIFO counting semaphore

Consumers (pkg/queue, pkg/scheduling):
  - queue: bounded or unbounded queue with backpressure strategies, and a
    RateLimited adapter that paces retrievals
  - workerpool: task dispatch admitted through a gate
  - scheduler: cron-triggered dispatch admitted through a gate

Support:
  - config: YAML gate definitions with ${VAR} expansion and .env loading
  - metrics: Prometheus collectors for gates, queues, pools and schedules

Example usage:

	import (
		"github.com/vnykmshr/pacegate/pkg/queue"
		"github.com/vnykmshr/pacegate/pkg/ratelimit/gate"
	)

	g, err := gate.NewSafe(0.5, 2) // two holders, 500ms between starts
	if err != nil {
		return err
	}
	err = g.Do(ctx, func(ctx context.Context) error {
		return fetch(ctx)
	})

	q, _ := queue.NewRateLimited[string]("100ms", 0)
	item, err := q.Get(ctx) // returns no sooner than 100ms after the previous Get

Intervals accept a time.Duration, a duration string such as "500ms" or a
number of seconds. All waits are context-aware and cancellation never leaks
a slot or disturbs the pacing of other callers.
*/
package pacegate
