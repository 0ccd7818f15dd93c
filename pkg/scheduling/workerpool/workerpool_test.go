package workerpool

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vnykmshr/pacegate/internal/testutil"
	gferrors "github.com/vnykmshr/pacegate/pkg/common/errors"
	"github.com/vnykmshr/pacegate/pkg/metrics"
	"github.com/vnykmshr/pacegate/pkg/ratelimit/gate"
)

// TestTask is a simple task for testing.
type TestTask struct {
	ID          int
	Duration    time.Duration
	ShouldErr   bool
	ShouldPanic bool
	Executed    *int32 // Atomic counter
}

func (t *TestTask) Execute(ctx context.Context) error {
	atomic.AddInt32(t.Executed, 1)

	if t.ShouldPanic {
		panic("test panic")
	}

	if t.Duration > 0 {
		select {
		case <-time.After(t.Duration):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if t.ShouldErr {
		return errors.New("test error")
	}

	return nil
}

func newGate(t *testing.T, interval time.Duration, concurrency int) gate.Gate {
	t.Helper()
	g, err := gate.NewWithConfigSafe(gate.Config{Interval: interval, Concurrency: concurrency, ImmediateFirst: true})
	testutil.AssertNoError(t, err)
	return g
}

func newPool(t *testing.T, g gate.Gate, config Config) Pool {
	t.Helper()
	pool, err := NewWithConfig(g, config)
	testutil.AssertNoError(t, err)
	return pool
}

// shutdownAndDrain discards any remaining results and waits for the pool to stop.
func shutdownAndDrain(pool Pool) {
	go func() {
		for range pool.Results() {
		}
	}()
	<-pool.Shutdown()
}

func nextResult(t *testing.T, pool Pool) Result {
	t.Helper()
	select {
	case r := <-pool.Results():
		return r
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for result")
	}
	return Result{}
}

func TestNew(t *testing.T) {
	g := newGate(t, 0, 1)

	tests := []struct {
		name        string
		gate        gate.Gate
		workerCount int
		queueSize   int
		wantErr     bool
	}{
		{"valid params", g, 2, 10, false},
		{"unbounded queue", g, 3, 0, false},
		{"negative queue size is unbounded", g, 1, -1, false},
		{"nil gate", nil, 2, 10, true},
		{"zero workers", g, 0, 10, true},
		{"negative workers", g, -1, 10, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool, err := New(tt.gate, tt.workerCount, tt.queueSize)
			if tt.wantErr {
				testutil.AssertErrorIs(t, err, gferrors.ErrInvalidArgument)
				return
			}
			testutil.AssertNoError(t, err)
			testutil.AssertEqual(t, pool.Size(), tt.workerCount)
			testutil.AssertEqual(t, pool.Gate(), g)
			<-pool.Shutdown()
		})
	}
}

func TestBasicTaskExecution(t *testing.T) {
	pool := newPool(t, newGate(t, 0, 2), Config{WorkerCount: 2, QueueSize: 5})
	defer shutdownAndDrain(pool)

	var executed int32
	task := &TestTask{ID: 1, Duration: 10 * time.Millisecond, Executed: &executed}
	testutil.AssertNoError(t, pool.Submit(task))

	result := nextResult(t, pool)
	testutil.AssertNoError(t, result.Error)
	testutil.AssertEqual(t, result.Task, Task(task))
	testutil.AssertEqual(t, result.AdmittedAt.IsZero(), false)
	testutil.AssertAtLeast(t, result.Duration, 10*time.Millisecond)
	testutil.AssertEqual(t, atomic.LoadInt32(&executed), int32(1))
	testutil.AssertEqual(t, pool.TotalSubmitted(), int64(1))
}

func TestTasksArePaced(t *testing.T) {
	const interval = 20 * time.Millisecond
	pool := newPool(t, newGate(t, interval, 4), Config{WorkerCount: 4, QueueSize: 10})
	defer shutdownAndDrain(pool)

	for i := 0; i < 4; i++ {
		testutil.AssertNoError(t, pool.Submit(TaskFunc(func(context.Context) error { return nil })))
	}

	var admitted []time.Time
	for i := 0; i < 4; i++ {
		r := nextResult(t, pool)
		testutil.AssertNoError(t, r.Error)
		admitted = append(admitted, r.AdmittedAt)
	}

	sort.Slice(admitted, func(i, j int) bool { return admitted[i].Before(admitted[j]) })
	for i := 1; i < len(admitted); i++ {
		testutil.AssertAtLeast(t, admitted[i].Sub(admitted[i-1]), interval)
	}
}

func TestGateBoundsConcurrency(t *testing.T) {
	pool := newPool(t, newGate(t, 0, 2), Config{WorkerCount: 6, QueueSize: 20, BufferedResults: true})

	var current, peak int64
	var mu sync.Mutex
	for i := 0; i < 12; i++ {
		err := pool.Submit(TaskFunc(func(context.Context) error {
			n := atomic.AddInt64(&current, 1)
			mu.Lock()
			if n > peak {
				peak = n
			}
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt64(&current, -1)
			return nil
		}))
		testutil.AssertNoError(t, err)
	}

	for i := 0; i < 12; i++ {
		testutil.AssertNoError(t, nextResult(t, pool).Error)
	}
	shutdownAndDrain(pool)

	if peak > 2 {
		t.Errorf("peak concurrency %d exceeded gate limit 2", peak)
	}
}

func TestTaskErrorAndPanic(t *testing.T) {
	var handled atomic.Bool
	pool := newPool(t, newGate(t, 0, 1), Config{
		WorkerCount: 1,
		QueueSize:   5,
		PanicHandler: func(task Task, recovered interface{}) {
			handled.Store(true)
		},
	})
	defer shutdownAndDrain(pool)

	var executed int32
	testutil.AssertNoError(t, pool.Submit(&TestTask{ShouldErr: true, Executed: &executed}))
	testutil.AssertNoError(t, pool.Submit(&TestTask{ShouldPanic: true, Executed: &executed}))
	testutil.AssertNoError(t, pool.Submit(&TestTask{Executed: &executed}))

	r := nextResult(t, pool)
	testutil.AssertError(t, r.Error)

	r = nextResult(t, pool)
	testutil.AssertError(t, r.Error)
	if !strings.Contains(r.Error.Error(), "task panicked") {
		t.Errorf("unexpected panic error: %v", r.Error)
	}
	testutil.AssertEqual(t, handled.Load(), true)

	// The worker survived the panic and its permit was released.
	testutil.AssertNoError(t, nextResult(t, pool).Error)
	testutil.AssertEqual(t, pool.Gate().InUse(), 0)
	testutil.AssertEqual(t, atomic.LoadInt32(&executed), int32(3))
}

func TestTaskTimeout(t *testing.T) {
	pool := newPool(t, newGate(t, 0, 1), Config{WorkerCount: 1, TaskTimeout: 10 * time.Millisecond})
	defer shutdownAndDrain(pool)

	var executed int32
	testutil.AssertNoError(t, pool.Submit(&TestTask{Duration: time.Second, Executed: &executed}))

	r := nextResult(t, pool)
	testutil.AssertErrorIs(t, r.Error, context.DeadlineExceeded)
}

func TestSubmitValidation(t *testing.T) {
	pool := newPool(t, newGate(t, 0, 1), Config{WorkerCount: 1})

	testutil.AssertErrorIs(t, pool.Submit(nil), gferrors.ErrInvalidArgument)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var executed int32
	testutil.AssertErrorIs(t, pool.SubmitWithContext(ctx, &TestTask{Executed: &executed}), context.Canceled)

	<-pool.Shutdown()
	testutil.AssertErrorIs(t, pool.Submit(&TestTask{Executed: &executed}), gferrors.ErrClosed)
	testutil.AssertEqual(t, atomic.LoadInt32(&executed), int32(0))
}

func TestSubmitWithTimeoutOnFullQueue(t *testing.T) {
	g := newGate(t, 0, 1)
	holder, err := g.Acquire(context.Background())
	testutil.AssertNoError(t, err)

	pool := newPool(t, g, Config{WorkerCount: 1, QueueSize: 1, BufferedResults: true})
	noop := TaskFunc(func(context.Context) error { return nil })

	// The worker takes the first task and blocks on the gate; the second fills the queue.
	testutil.AssertNoError(t, pool.Submit(noop))
	testutil.Eventually(t, func() bool { return g.Waiting() == 1 }, time.Second, time.Millisecond)
	testutil.AssertNoError(t, pool.Submit(noop))
	testutil.AssertEqual(t, pool.QueueSize(), 1)

	err = pool.SubmitWithTimeout(noop, 10*time.Millisecond)
	testutil.AssertErrorIs(t, err, context.DeadlineExceeded)

	testutil.AssertNoError(t, holder.Release())
	shutdownAndDrain(pool)
	testutil.AssertEqual(t, pool.TotalCompleted(), int64(2))
}

func TestAdmissionCanceled(t *testing.T) {
	g := newGate(t, 0, 1)
	holder, err := g.Acquire(context.Background())
	testutil.AssertNoError(t, err)

	pool := newPool(t, g, Config{WorkerCount: 1})
	defer shutdownAndDrain(pool)

	ctx, cancel := context.WithCancel(context.Background())
	var executed int32
	testutil.AssertNoError(t, pool.SubmitWithContext(ctx, &TestTask{Executed: &executed}))
	testutil.Eventually(t, func() bool { return g.Waiting() == 1 }, time.Second, time.Millisecond)
	cancel()

	r := nextResult(t, pool)
	testutil.AssertErrorIs(t, r.Error, context.Canceled)
	testutil.AssertEqual(t, r.AdmittedAt.IsZero(), true)
	testutil.AssertEqual(t, atomic.LoadInt32(&executed), int32(0))
	testutil.AssertNoError(t, holder.Release())
}

func TestGracefulShutdownDrainsQueue(t *testing.T) {
	pool := newPool(t, newGate(t, 0, 1), Config{WorkerCount: 1, QueueSize: 10, BufferedResults: true})

	var executed int32
	for i := 0; i < 5; i++ {
		testutil.AssertNoError(t, pool.Submit(&TestTask{ID: i, Duration: time.Millisecond, Executed: &executed}))
	}

	done := pool.Shutdown()
	testutil.AssertEqual(t, pool.Shutdown(), done)

	count := 0
	for r := range pool.Results() {
		testutil.AssertNoError(t, r.Error)
		count++
	}
	<-done

	testutil.AssertEqual(t, count, 5)
	testutil.AssertEqual(t, atomic.LoadInt32(&executed), int32(5))
}

func TestShutdownWithTimeoutCancelsTasks(t *testing.T) {
	pool := newPool(t, newGate(t, 0, 1), Config{WorkerCount: 1, BufferedResults: true})

	started := make(chan struct{})
	err := pool.Submit(TaskFunc(func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}))
	testutil.AssertNoError(t, err)
	<-started

	select {
	case <-pool.ShutdownWithTimeout(20 * time.Millisecond):
	case <-time.After(time.Second):
		t.Fatal("shutdown did not complete")
	}

	r := <-pool.Results()
	testutil.AssertErrorIs(t, r.Error, context.Canceled)
}

func TestPoolMetrics(t *testing.T) {
	registry := metrics.NewRegistry(prometheus.NewRegistry())
	pool := newPool(t, newGate(t, 0, 1), Config{
		WorkerCount:     1,
		BufferedResults: true,
		Name:            "fetchers",
		Metrics:         registry,
	})

	var executed int32
	testutil.AssertNoError(t, pool.Submit(&TestTask{Executed: &executed}))
	testutil.AssertNoError(t, pool.Submit(&TestTask{ShouldErr: true, Executed: &executed}))
	nextResult(t, pool)
	nextResult(t, pool)
	shutdownAndDrain(pool)

	testutil.AssertEqual(t, promtestutil.ToFloat64(registry.TasksCompleted.WithLabelValues("fetchers")), 1.0)
	testutil.AssertEqual(t, promtestutil.ToFloat64(registry.TasksFailed.WithLabelValues("fetchers")), 1.0)
	testutil.AssertEqual(t, promtestutil.ToFloat64(registry.WorkerPoolActive.WithLabelValues("fetchers")), 0.0)
	testutil.AssertEqual(t, promtestutil.ToFloat64(registry.QueueDelivered.WithLabelValues("fetchers")), 2.0)
}

func TestOnTaskComplete(t *testing.T) {
	var calls atomic.Int32
	pool := newPool(t, newGate(t, 0, 1), Config{
		WorkerCount: 2,
		OnTaskComplete: func(workerID int, result Result) {
			calls.Add(1)
		},
	})

	var executed int32
	testutil.AssertNoError(t, pool.Submit(&TestTask{Executed: &executed}))
	nextResult(t, pool)
	shutdownAndDrain(pool)

	testutil.AssertEqual(t, calls.Load(), int32(1))
	testutil.AssertEqual(t, pool.ActiveWorkers(), 0)
}
