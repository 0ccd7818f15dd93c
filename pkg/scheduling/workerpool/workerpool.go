package workerpool

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	pgcontext "github.com/vnykmshr/pacegate/pkg/common/context"
	gferrors "github.com/vnykmshr/pacegate/pkg/common/errors"
	"github.com/vnykmshr/pacegate/pkg/ratelimit/gate"
)

// Submit adds a task to the pool for execution.
// The task will be executed with context.Background().
// Use SubmitWithContext to provide a custom context.
func (p *workerPool) Submit(task Task) error {
	return p.SubmitWithContext(context.Background(), task)
}

// SubmitWithTimeout submits a task, giving up if it cannot be queued within timeout.
func (p *workerPool) SubmitWithTimeout(task Task, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Only queuing is bounded by the timeout; the task itself runs unbounded.
	return p.enqueue(ctx, submission{task: task, ctx: context.Background()})
}

// SubmitWithContext adds a task to the pool for execution with the given context.
// The context is passed to the task's Execute method, enabling timeout and
// cancellation propagation. If the pool has a TaskTimeout configured, the
// effective timeout will be the minimum of the context deadline and TaskTimeout.
func (p *workerPool) SubmitWithContext(ctx context.Context, task Task) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return p.enqueue(ctx, submission{task: task, ctx: ctx})
}

func (p *workerPool) enqueue(ctx context.Context, s submission) error {
	if s.task == nil {
		return gferrors.NewValidationError("workerpool", "task", nil, "cannot be nil")
	}

	// A pre-canceled context never queues, even if there is room.
	if err := ctx.Err(); err != nil {
		return gferrors.NewOperationError("workerpool", "Submit", err)
	}

	if err := p.tasks.Put(ctx, s); err != nil {
		return gferrors.NewOperationError("workerpool", "Submit", unwrapQueueError(err))
	}
	p.totalSubmitted.Add(1)
	return nil
}

// Results returns a channel of task results.
func (p *workerPool) Results() <-chan Result {
	return p.resultQueue
}

// Shutdown initiates a graceful shutdown of the pool.
func (p *workerPool) Shutdown() <-chan struct{} {
	p.shutdownOnce.Do(func() {
		_ = p.tasks.Close()

		go func() {
			p.workerWg.Wait()
			p.cancel()
			close(p.resultQueue)
			close(p.done)
		}()
	})

	return p.done
}

// ShutdownWithTimeout shuts down the pool, canceling outstanding work after timeout.
func (p *workerPool) ShutdownWithTimeout(timeout time.Duration) <-chan struct{} {
	done := p.Shutdown()

	go func() {
		timer := time.NewTimer(timeout)
		defer timer.Stop()

		select {
		case <-done:
		case <-timer.C:
			p.logger.Warn("shutdown timed out, canceling outstanding tasks",
				zap.Duration("timeout", timeout),
				zap.Int("queued", p.tasks.Len()))
			p.cancel()
		}
	}()

	return done
}

// Size returns the number of workers in the pool.
func (p *workerPool) Size() int {
	return p.config.WorkerCount
}

// QueueSize returns the current number of queued tasks waiting for execution.
func (p *workerPool) QueueSize() int {
	return p.tasks.Len()
}

// ActiveWorkers returns the number of workers currently executing tasks.
func (p *workerPool) ActiveWorkers() int {
	return int(p.activeWorkers.Load())
}

// TotalSubmitted returns the total number of tasks submitted to the pool.
func (p *workerPool) TotalSubmitted() int64 {
	return p.totalSubmitted.Load()
}

// TotalCompleted returns the total number of tasks completed by the pool.
func (p *workerPool) TotalCompleted() int64 {
	return p.totalCompleted.Load()
}

// Gate returns the gate that admits tasks.
func (p *workerPool) Gate() gate.Gate {
	return p.gate
}

// run is the main loop for a worker.
func (w *worker) run() {
	defer w.pool.workerWg.Done()

	for {
		// Fails once the queue is closed and drained, or on hard shutdown.
		s, err := w.pool.tasks.Get(w.pool.ctx)
		if err != nil {
			return
		}
		w.execute(s)
		_ = w.pool.tasks.TaskDone()
	}
}

// execute admits a task through the gate and runs it.
func (w *worker) execute(s submission) {
	p := w.pool

	// The task context also ends when the pool is force-stopped.
	ctx, cancel := pgcontext.WithCancelOn(s.ctx, p.ctx)
	defer cancel()

	result := Result{Task: s.task, WorkerID: w.id}

	permit, err := p.gate.Acquire(ctx)
	if err != nil {
		result.Error = gferrors.NewOperationError("workerpool", "Execute", err).WithContext("not admitted")
		p.logger.Debug("task not admitted", zap.Int("worker", w.id), zap.Error(err))
		w.finish(result)
		return
	}
	defer func() { _ = permit.Release() }()

	result.AdmittedAt = permit.AdmittedAt()
	result.Waited = permit.Waited()

	ctx, cancelTimeout := pgcontext.WithOptionalTimeout(ctx, p.config.TaskTimeout)
	defer cancelTimeout()

	p.activeWorkers.Add(1)
	w.observeActive()
	start := time.Now()
	result.Error = w.runTask(ctx, s.task)
	result.Duration = time.Since(start)
	p.activeWorkers.Add(-1)
	w.observeActive()

	w.finish(result)
}

// runTask executes task, converting a panic into an error.
func (w *worker) runTask(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			w.pool.logger.Error("task panicked",
				zap.Int("worker", w.id),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			if w.pool.config.PanicHandler != nil {
				w.pool.config.PanicHandler(task, r)
			}
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()

	return task.Execute(ctx)
}

func (w *worker) finish(result Result) {
	p := w.pool
	p.totalCompleted.Add(1)

	if p.metrics != nil {
		if result.Error != nil {
			p.metrics.TasksFailed.WithLabelValues(p.name).Inc()
		} else {
			p.metrics.TasksCompleted.WithLabelValues(p.name).Inc()
		}
		p.metrics.TaskDuration.WithLabelValues(p.name).Observe(result.Duration.Seconds())
	}
	if result.Error != nil {
		p.logger.Debug("task failed", zap.Int("worker", w.id), zap.Error(result.Error))
	}
	if p.config.OnTaskComplete != nil {
		p.config.OnTaskComplete(w.id, result)
	}

	w.sendResult(result)
}

// sendResult sends a task result to the result queue with appropriate handling.
func (w *worker) sendResult(result Result) {
	select {
	case w.pool.resultQueue <- result:
		return
	default:
	}

	timer := time.NewTimer(resultDeliveryTimeout)
	defer timer.Stop()

	select {
	case w.pool.resultQueue <- result:
	case <-w.pool.ctx.Done():
	case <-timer.C:
		// Nobody is reading results.
	}
}

func (w *worker) observeActive() {
	if m := w.pool.metrics; m != nil {
		m.WorkerPoolActive.WithLabelValues(w.pool.name).Set(float64(w.pool.activeWorkers.Load()))
	}
}

func unwrapQueueError(err error) error {
	switch {
	case errors.Is(err, gferrors.ErrClosed):
		return gferrors.ErrClosed
	case errors.Is(err, context.Canceled):
		return context.Canceled
	case pgcontext.IsTimedOut(err):
		return context.DeadlineExceeded
	default:
		return err
	}
}
