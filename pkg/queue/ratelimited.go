package queue

import (
	"context"

	"github.com/vnykmshr/pacegate/pkg/ratelimit/gate"
)

// RateLimited is a Queue whose retrievals are paced by a gate: successive
// Get calls return no sooner than one interval apart. Producers are not
// affected.
type RateLimited[T any] struct {
	Queue[T]
	gate gate.Gate
}

// NewRateLimited creates a paced queue. The interval accepts the same forms
// as gate.NewSafe; a maxSize of zero or less makes the queue unbounded.
func NewRateLimited[T any](interval any, maxSize int) (*RateLimited[T], error) {
	d, err := gate.ParseInterval(interval)
	if err != nil {
		return nil, err
	}

	gateConfig := gate.DefaultConfig()
	gateConfig.Interval = d

	queueConfig := DefaultConfig()
	queueConfig.MaxSize = maxSize

	return NewRateLimitedWithConfig[T](gateConfig, queueConfig)
}

// NewRateLimitedWithConfig creates a paced queue from explicit configurations.
// The gate always has a single slot, so retrievals are serialized.
func NewRateLimitedWithConfig[T any](gateConfig gate.Config, queueConfig Config) (*RateLimited[T], error) {
	q, err := NewWithConfig[T](queueConfig)
	if err != nil {
		return nil, err
	}

	gateConfig.Concurrency = 1
	if gateConfig.Name == "" {
		gateConfig.Name = q.Name()
	}
	g, err := gate.NewWithConfigSafe(gateConfig)
	if err != nil {
		return nil, err
	}
	return Wrap(q, g), nil
}

// Wrap paces retrievals from q through g. Use it to share a gate between
// queues or to pace with an instrumented gate.
func Wrap[T any](q Queue[T], g gate.Gate) *RateLimited[T] {
	return &RateLimited[T]{Queue: q, gate: g}
}

// Get waits for admission through the gate, then for an item. The admission
// is held while waiting for the item, so an idle queue does not accumulate
// a burst of ready retrievals.
func (r *RateLimited[T]) Get(ctx context.Context) (T, error) {
	var item T
	err := r.gate.Do(ctx, func(ctx context.Context) error {
		var err error
		item, err = r.Queue.Get(ctx)
		return err
	})
	return item, err
}

// TryGet returns an item only if one is buffered and the gate admits the
// caller without waiting. An empty queue does not consume an admission.
func (r *RateLimited[T]) TryGet() (T, bool, error) {
	var zero T
	if r.Queue.Empty() {
		return r.Queue.TryGet()
	}

	p, ok := r.gate.TryAcquire()
	if !ok {
		return zero, false, nil
	}
	defer p.Release()
	return r.Queue.TryGet()
}

// Gate returns the gate pacing retrievals.
func (r *RateLimited[T]) Gate() gate.Gate {
	return r.gate
}
