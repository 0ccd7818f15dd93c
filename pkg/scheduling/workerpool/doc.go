/*
Package workerpool provides a worker pool whose workers admit every task
through a gate before executing it.

The pool size decides how many tasks can be waiting on the gate or running;
the gate decides how many actually run at once and how quickly they start.
This is the usual shape for clients of rate-limited upstreams: a generous
pool for throughput, a gate matching the upstream's published limits.

Basic usage:

	g, err := gate.NewSafe(0.25, 2) // 2 in flight, starts 250ms apart
	if err != nil {
		log.Fatal(err)
	}

	pool, err := workerpool.New(g, 8, 100) // 8 workers, queue size 100
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Shutdown()

	err = pool.Submit(workerpool.TaskFunc(func(ctx context.Context) error {
		return fetch(ctx)
	}))

	result := <-pool.Results()
	if result.Error != nil {
		log.Printf("Task failed: %v", result.Error)
	}

Task Lifecycle:

A submitted task waits in the queue, is picked up by a free worker, waits for
admission through the gate, runs, and releases its permit. The Result carries
the admission instant and the time spent waiting for it alongside the usual
error and duration. A task whose context ends before admission is reported
with an error wrapping the context error and never runs.

Configuration Options:

	config := workerpool.Config{
		WorkerCount:     8,
		QueueSize:       1000,
		TaskTimeout:     30 * time.Second, // applies after admission
		BufferedResults: true,
		Name:            "github-client",
		Logger:          logger,
		Metrics:         metrics.Default(),
	}
	pool, err := workerpool.NewWithConfig(g, config)

Results:

Results are delivered on the Results channel. A worker waits briefly for a
reader and then drops the result, so pools whose results are never read do
not stall. Use OnTaskComplete to observe every result.

Shutdown:

Shutdown stops accepting tasks, lets workers finish the queue, then closes
Results. ShutdownWithTimeout additionally cancels running and queued tasks
once the timeout passes.

Error Handling:

Panics in tasks are recovered, logged at error level with the stack and
reported as the task's error. Submitting to a shut down pool returns an
error wrapping errors.ErrClosed.
*/
package workerpool
