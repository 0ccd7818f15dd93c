package concurrency

import (
	"context"
	"sync"

	"github.com/vnykmshr/pacegate/pkg/common/validation"
)

// Limiter controls the number of concurrent operations that can happen
// at any given time. It acts as a counting semaphore whose blocked callers
// are served strictly in arrival order.
type Limiter interface {
	// Acquire attempts to acquire a permit for one operation.
	// It returns true if a permit was available, false otherwise.
	// This method does not block.
	Acquire() bool

	// AcquireN attempts to acquire n permits without blocking.
	// It fails while other callers are queued, so it never jumps the line.
	AcquireN(n int) bool

	// Wait blocks until a permit is available for one operation.
	// It returns the context error if the context is done first, in which
	// case no permit is held.
	Wait(ctx context.Context) error

	// WaitN blocks until n permits are available.
	WaitN(ctx context.Context, n int) error

	// Release releases one permit back to the limiter.
	// It returns a ProtocolError if no permit is held.
	Release() error

	// ReleaseN releases n permits back to the limiter.
	// It returns a ProtocolError if fewer than n permits are held.
	ReleaseN(n int) error

	// Capacity returns the maximum number of concurrent operations allowed.
	Capacity() int

	// Available returns the number of permits currently available.
	Available() int

	// InUse returns the number of permits currently in use.
	InUse() int

	// Waiting returns the number of callers blocked in Wait or WaitN.
	Waiting() int
}

// Config holds configuration options for creating a new concurrency Limiter.
type Config struct {
	// Capacity is the maximum number of concurrent operations allowed.
	Capacity int

	// InitialAvailable is the initial number of available permits.
	// If negative or greater than Capacity, defaults to Capacity.
	InitialAvailable int
}

// concurrencyLimiter implements the Limiter interface using a semaphore approach.
type concurrencyLimiter struct {
	mu        sync.Mutex
	capacity  int
	available int
	inUse     int
	waiters   []*waiter
}

// waiter represents a goroutine waiting for permits
type waiter struct {
	n     int           // number of permits needed
	ready chan struct{} // closed once the permits are assigned
}

// NewSafe creates a new concurrency limiter with validation that returns an error instead of panicking.
func NewSafe(capacity int) (Limiter, error) {
	return NewWithConfigSafe(Config{
		Capacity:         capacity,
		InitialAvailable: -1, // Use capacity as default
	})
}

// NewWithConfigSafe creates a new concurrency limiter with validation that returns an error instead of panicking.
func NewWithConfigSafe(config Config) (Limiter, error) {
	if err := validation.ValidatePositive("concurrency", "capacity", config.Capacity); err != nil {
		return nil, err
	}

	initialAvailable := config.InitialAvailable
	if config.InitialAvailable < 0 || config.InitialAvailable > config.Capacity {
		initialAvailable = config.Capacity
	}

	return &concurrencyLimiter{
		capacity:  config.Capacity,
		available: initialAvailable,
		inUse:     config.Capacity - initialAvailable,
	}, nil
}
