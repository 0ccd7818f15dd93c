package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	gferrors "github.com/vnykmshr/pacegate/pkg/common/errors"
	"github.com/vnykmshr/pacegate/pkg/metrics"
)

// Strategy defines what Put does when a bounded queue is full.
type Strategy int

const (
	// Block makes the producer wait until space is available.
	Block Strategy = iota

	// Drop discards the new item.
	Drop

	// DropOldest discards the oldest buffered item to make room for the new one.
	DropOldest

	// Error fails the Put with an error wrapping errors.ErrCapacityExceeded.
	Error
)

func (s Strategy) String() string {
	switch s {
	case Block:
		return "block"
	case Drop:
		return "drop"
	case DropOldest:
		return "drop_oldest"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// Queue is a FIFO queue with context-aware blocking and task accounting.
type Queue[T any] interface {
	// Put adds an item. On a full bounded queue the behavior follows the
	// configured Strategy; with Block it waits until space frees up or ctx ends.
	Put(ctx context.Context, item T) error

	// TryPut adds an item without blocking. With the Block strategy a full
	// queue yields an error wrapping errors.ErrCapacityExceeded.
	TryPut(item T) error

	// Get removes and returns the oldest item, waiting until one is available.
	// After Close, buffered items are still delivered; once the queue is
	// drained Get fails with an error wrapping errors.ErrClosed.
	Get(ctx context.Context) (T, error)

	// TryGet removes the oldest item if one is available without blocking.
	TryGet() (T, bool, error)

	// TaskDone marks one previously put item as processed.
	TaskDone() error

	// Join blocks until every item put into the queue has been marked done.
	Join(ctx context.Context) error

	// Close stops the queue from accepting items and wakes blocked callers.
	Close() error

	// IsClosed returns true if the queue is closed.
	IsClosed() bool

	// Len returns the number of buffered items.
	Len() int

	// Cap returns the maximum size, or 0 for an unbounded queue.
	Cap() int

	// Empty reports whether no items are buffered.
	Empty() bool

	// Full reports whether a bounded queue is at capacity.
	Full() bool

	// Unfinished returns the number of items put but not yet marked done.
	Unfinished() int

	// Stats returns queue statistics.
	Stats() Stats

	// Name identifies the queue in logs and metrics.
	Name() string
}

// Stats holds counters about queue activity.
type Stats struct {
	// Put is the total number of items accepted.
	Put int64

	// Delivered is the total number of items handed out by Get or TryGet.
	Delivered int64

	// Dropped is the total number of items discarded by Drop or DropOldest.
	Dropped int64

	// BlockedPuts is the number of times a producer had to wait for space.
	BlockedPuts int64
}

// Config holds configuration for a Queue.
type Config struct {
	// MaxSize bounds the number of buffered items. Zero or negative means unbounded.
	MaxSize int

	// Strategy defines how a full bounded queue handles Put.
	Strategy Strategy

	// OnDrop is called, outside the queue lock, with every discarded item.
	OnDrop func(item any)

	// Name identifies the queue. If empty, a random name is generated.
	Name string

	// Logger receives debug output for dropped items. If nil, logging is disabled.
	Logger *zap.Logger

	// Metrics, if set, receives depth, delivery and drop counts.
	Metrics *metrics.Registry
}

// DefaultConfig returns an unbounded blocking queue configuration.
func DefaultConfig() Config {
	return Config{
		MaxSize:  0,
		Strategy: Block,
	}
}

const minUnboundedSize = 16

type queue[T any] struct {
	config  Config
	name    string
	logger  *zap.Logger
	metrics *metrics.Registry

	mu         sync.Mutex
	buf        []T
	head       int
	count      int
	closed     bool
	unfinished int
	stats      Stats

	// changed is closed and replaced on every state change; waiters select
	// on it together with their context.
	changed chan struct{}
}

// New creates a blocking queue holding at most maxSize items.
// A maxSize of zero or less makes the queue unbounded.
func New[T any](maxSize int) Queue[T] {
	config := DefaultConfig()
	config.MaxSize = maxSize
	q, _ := NewWithConfig[T](config)
	return q
}

// NewWithConfig creates a queue with the specified configuration.
func NewWithConfig[T any](config Config) (Queue[T], error) {
	if config.Strategy < Block || config.Strategy > Error {
		return nil, gferrors.NewValidationError("queue", "strategy", config.Strategy, "unknown strategy").
			WithHint("use Block, Drop, DropOldest or Error")
	}
	if config.MaxSize < 0 {
		config.MaxSize = 0
	}
	if config.Name == "" {
		config.Name = "queue-" + uuid.NewString()[:8]
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	size := config.MaxSize
	if size == 0 {
		size = minUnboundedSize
	}

	return &queue[T]{
		config:  config,
		name:    config.Name,
		logger:  config.Logger.With(zap.String("queue", config.Name)),
		metrics: config.Metrics,
		buf:     make([]T, size),
		changed: make(chan struct{}),
	}, nil
}

// Put implements Queue.Put.
func (q *queue[T]) Put(ctx context.Context, item T) error {
	return q.put(ctx, item, true)
}

// TryPut implements Queue.TryPut.
func (q *queue[T]) TryPut(item T) error {
	return q.put(context.Background(), item, false)
}

func (q *queue[T]) put(ctx context.Context, item T, block bool) error {
	op := "Put"
	if !block {
		op = "TryPut"
	}

	q.mu.Lock()
	for {
		if q.closed {
			q.mu.Unlock()
			return gferrors.NewOperationError("queue", op, gferrors.ErrClosed)
		}
		if !q.fullLocked() {
			q.pushLocked(item)
			q.mu.Unlock()
			return nil
		}

		switch q.config.Strategy {
		case Drop:
			q.stats.Dropped++
			q.mu.Unlock()
			q.dropped(item)
			return nil
		case DropOldest:
			old := q.popLocked()
			q.unfinished--
			q.stats.Dropped++
			q.pushLocked(item)
			q.mu.Unlock()
			q.dropped(old)
			return nil
		case Error:
			q.mu.Unlock()
			return q.fullError(op)
		}

		if !block {
			q.mu.Unlock()
			return q.fullError(op)
		}

		q.stats.BlockedPuts++
		wait := q.changed
		q.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
		q.mu.Lock()
	}
}

// Get implements Queue.Get.
func (q *queue[T]) Get(ctx context.Context) (T, error) {
	var zero T

	q.mu.Lock()
	for q.count == 0 {
		if q.closed {
			q.mu.Unlock()
			return zero, gferrors.NewOperationError("queue", "Get", gferrors.ErrClosed)
		}

		wait := q.changed
		q.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
		q.mu.Lock()
	}

	item := q.deliverLocked()
	q.mu.Unlock()
	return item, nil
}

// TryGet implements Queue.TryGet.
func (q *queue[T]) TryGet() (T, bool, error) {
	var zero T

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		if q.closed {
			return zero, false, gferrors.NewOperationError("queue", "TryGet", gferrors.ErrClosed)
		}
		return zero, false, nil
	}
	return q.deliverLocked(), true, nil
}

// TaskDone implements Queue.TaskDone.
func (q *queue[T]) TaskDone() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.unfinished <= 0 {
		return gferrors.NewProtocolError("queue", "TaskDone", "called more times than items were put")
	}
	q.unfinished--
	if q.unfinished == 0 {
		q.broadcastLocked()
	}
	return nil
}

// Join implements Queue.Join.
func (q *queue[T]) Join(ctx context.Context) error {
	q.mu.Lock()
	for q.unfinished > 0 {
		wait := q.changed
		q.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
		q.mu.Lock()
	}
	q.mu.Unlock()
	return nil
}

// Close implements Queue.Close.
func (q *queue[T]) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil // Already closed
	}
	q.closed = true
	q.broadcastLocked()
	return nil
}

// IsClosed implements Queue.IsClosed.
func (q *queue[T]) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len implements Queue.Len.
func (q *queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Cap implements Queue.Cap.
func (q *queue[T]) Cap() int {
	return q.config.MaxSize
}

// Empty implements Queue.Empty.
func (q *queue[T]) Empty() bool {
	return q.Len() == 0
}

// Full implements Queue.Full.
func (q *queue[T]) Full() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.fullLocked()
}

// Unfinished implements Queue.Unfinished.
func (q *queue[T]) Unfinished() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.unfinished
}

// Stats implements Queue.Stats.
func (q *queue[T]) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stats
}

// Name implements Queue.Name.
func (q *queue[T]) Name() string {
	return q.name
}

func (q *queue[T]) fullLocked() bool {
	return q.config.MaxSize > 0 && q.count >= q.config.MaxSize
}

// pushLocked appends item, growing the buffer of an unbounded queue.
func (q *queue[T]) pushLocked(item T) {
	if q.count == len(q.buf) {
		q.growLocked()
	}
	q.buf[(q.head+q.count)%len(q.buf)] = item
	q.count++
	q.unfinished++
	q.stats.Put++
	q.broadcastLocked()
	q.observeDepthLocked()
}

// popLocked removes the oldest item without signaling waiters.
func (q *queue[T]) popLocked() T {
	var zero T
	item := q.buf[q.head]
	q.buf[q.head] = zero // Clear reference
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	return item
}

func (q *queue[T]) deliverLocked() T {
	item := q.popLocked()
	q.stats.Delivered++
	q.broadcastLocked()
	q.observeDepthLocked()
	if q.metrics != nil {
		q.metrics.QueueDelivered.WithLabelValues(q.name).Inc()
	}
	return item
}

func (q *queue[T]) growLocked() {
	grown := make([]T, len(q.buf)*2)
	for i := 0; i < q.count; i++ {
		grown[i] = q.buf[(q.head+i)%len(q.buf)]
	}
	q.buf = grown
	q.head = 0
}

func (q *queue[T]) broadcastLocked() {
	close(q.changed)
	q.changed = make(chan struct{})
}

func (q *queue[T]) observeDepthLocked() {
	if q.metrics != nil {
		q.metrics.QueueDepth.WithLabelValues(q.name).Set(float64(q.count))
	}
}

// dropped reports a discarded item. Must be called without the lock.
func (q *queue[T]) dropped(item T) {
	q.logger.Debug("dropped item", zap.Stringer("strategy", q.config.Strategy))
	if q.metrics != nil {
		q.metrics.QueueDropped.WithLabelValues(q.name).Inc()
	}
	if q.config.OnDrop != nil {
		q.config.OnDrop(item)
	}
}

func (q *queue[T]) fullError(op string) error {
	return gferrors.NewOperationError("queue", op, gferrors.ErrCapacityExceeded).
		WithContext(fmt.Sprintf("max size %d", q.config.MaxSize))
}
