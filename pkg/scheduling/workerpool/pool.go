package workerpool

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vnykmshr/pacegate/pkg/common/validation"
	"github.com/vnykmshr/pacegate/pkg/metrics"
	"github.com/vnykmshr/pacegate/pkg/queue"
	"github.com/vnykmshr/pacegate/pkg/ratelimit/gate"
)

// Task represents a unit of work that can be executed by a worker.
type Task interface {
	// Execute runs the task with the given context.
	// It should respect context cancellation and return any error encountered.
	Execute(ctx context.Context) error
}

// TaskFunc is a function type that implements the Task interface.
type TaskFunc func(ctx context.Context) error

// Execute implements the Task interface for TaskFunc.
func (f TaskFunc) Execute(ctx context.Context) error {
	return f(ctx)
}

// Result represents the result of a task execution.
type Result struct {
	// Task is the original task that was executed
	Task Task

	// Error is any error that occurred during admission or execution
	Error error

	// AdmittedAt is when the gate admitted the task; zero if it never was
	AdmittedAt time.Time

	// Waited is how long the task waited for admission
	Waited time.Duration

	// Duration is how long the task took to execute
	Duration time.Duration

	// WorkerID identifies which worker executed the task
	WorkerID int
}

// Pool is a worker pool whose workers pass every task through a gate before
// executing it.
type Pool interface {
	// Submit adds a task to the pool for execution.
	// Returns an error if the pool is shut down or if the task cannot be queued.
	Submit(task Task) error

	// SubmitWithTimeout submits a task with a timeout for queuing.
	SubmitWithTimeout(task Task, timeout time.Duration) error

	// SubmitWithContext submits a task with a context. The context bounds
	// queuing, admission and execution of the task.
	SubmitWithContext(ctx context.Context, task Task) error

	// Results returns a channel of task results.
	// The channel is closed when the pool is shut down and all tasks are complete.
	Results() <-chan Result

	// Shutdown initiates a graceful shutdown of the pool.
	// No new tasks will be accepted, but queued tasks will be completed.
	// Returns a channel that closes when shutdown is complete.
	Shutdown() <-chan struct{}

	// ShutdownWithTimeout shuts down the pool gracefully, canceling in-flight
	// and queued tasks if that takes longer than timeout.
	ShutdownWithTimeout(timeout time.Duration) <-chan struct{}

	// Size returns the number of workers in the pool.
	Size() int

	// QueueSize returns the current number of queued tasks waiting for execution.
	QueueSize() int

	// ActiveWorkers returns the number of workers currently executing tasks.
	ActiveWorkers() int

	// TotalSubmitted returns the total number of tasks submitted to the pool.
	TotalSubmitted() int64

	// TotalCompleted returns the total number of tasks completed by the pool.
	TotalCompleted() int64

	// Gate returns the gate that admits tasks.
	Gate() gate.Gate
}

// Config holds configuration options for creating a worker pool.
type Config struct {
	// WorkerCount is the number of workers in the pool.
	// Must be greater than 0.
	WorkerCount int

	// QueueSize is the maximum number of tasks that can be queued.
	// Zero means an unbounded queue.
	QueueSize int

	// TaskTimeout bounds the execution of each task once admitted.
	// Zero means no timeout.
	TaskTimeout time.Duration

	// BufferedResults determines if results should be buffered.
	// Buffer size equals worker count.
	BufferedResults bool

	// PanicHandler is called when a task panics. The panic is always
	// recovered and reported as the task's error.
	PanicHandler func(task Task, recovered interface{})

	// OnTaskComplete is called after a task completes (success or failure).
	OnTaskComplete func(workerID int, result Result)

	// Name identifies the pool in logs and metrics. If empty, a random name is generated.
	Name string

	// Logger receives task failures and panics. If nil, logging is disabled.
	Logger *zap.Logger

	// Metrics, if set, receives task outcome counters and queue depth.
	Metrics *metrics.Registry
}

// resultDeliveryTimeout bounds how long a worker waits for a Results reader.
const resultDeliveryTimeout = 100 * time.Millisecond

type submission struct {
	task Task
	ctx  context.Context
}

// workerPool implements the Pool interface.
type workerPool struct {
	config  Config
	name    string
	gate    gate.Gate
	logger  *zap.Logger
	metrics *metrics.Registry

	tasks       queue.Queue[submission]
	resultQueue chan Result

	// ctx is canceled when a shutdown deadline passes.
	ctx    context.Context
	cancel context.CancelFunc

	shutdownOnce sync.Once
	done         chan struct{}

	activeWorkers  atomic.Int64
	totalSubmitted atomic.Int64
	totalCompleted atomic.Int64

	workerWg sync.WaitGroup
}

// worker represents a single worker in the pool.
type worker struct {
	id   int
	pool *workerPool
}

// New creates a pool of workerCount workers admitting tasks through g.
// A queueSize of zero makes the task queue unbounded.
func New(g gate.Gate, workerCount, queueSize int) (Pool, error) {
	return NewWithConfig(g, Config{
		WorkerCount: workerCount,
		QueueSize:   queueSize,
	})
}

// NewWithConfig creates a worker pool with the specified configuration.
func NewWithConfig(g gate.Gate, config Config) (Pool, error) {
	if err := validation.ValidateNotNil("workerpool", "gate", g); err != nil {
		return nil, err
	}
	if err := validation.ValidatePositive("workerpool", "worker_count", config.WorkerCount); err != nil {
		return nil, err
	}
	if config.QueueSize < 0 {
		config.QueueSize = 0
	}
	if config.Name == "" {
		config.Name = "pool-" + uuid.NewString()[:8]
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	logger := config.Logger.With(zap.String("pool", config.Name), zap.String("gate", g.Name()))

	tasks, err := queue.NewWithConfig[submission](queue.Config{
		MaxSize:  config.QueueSize,
		Strategy: queue.Block,
		Name:     config.Name,
		Logger:   logger,
		Metrics:  config.Metrics,
	})
	if err != nil {
		return nil, err
	}

	var resultQueue chan Result
	if config.BufferedResults {
		resultQueue = make(chan Result, config.WorkerCount)
	} else {
		resultQueue = make(chan Result)
	}

	ctx, cancel := context.WithCancel(context.Background())
	pool := &workerPool{
		config:      config,
		name:        config.Name,
		gate:        g,
		logger:      logger,
		metrics:     config.Metrics,
		tasks:       tasks,
		resultQueue: resultQueue,
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}

	for i := 0; i < config.WorkerCount; i++ {
		w := &worker{id: i, pool: pool}
		pool.workerWg.Add(1)
		go w.run()
	}

	return pool, nil
}
