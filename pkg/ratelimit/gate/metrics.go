package gate

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	gferrors "github.com/vnykmshr/pacegate/pkg/common/errors"
	"github.com/vnykmshr/pacegate/pkg/metrics"
)

// MetricsGate wraps a Gate with Prometheus metrics collection.
type MetricsGate struct {
	gate     Gate
	name     string
	registry atomic.Pointer[metrics.Registry]
	enabled  atomic.Bool
}

var _ metrics.Instrumentable = (*MetricsGate)(nil)

// NewWithMetrics creates a gate whose metrics are registered on the default
// Prometheus registerer under the given name.
func NewWithMetrics(interval any, concurrency int, name string) (Gate, error) {
	d, err := ParseInterval(interval)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	config.Interval = d
	config.Concurrency = concurrency
	config.Name = name
	return NewWithConfigAndMetrics(config, metrics.DefaultConfig())
}

// NewWithConfigAndMetrics creates a gate with custom config and metrics.
// A metrics config with a nil Registry uses the shared default registry.
func NewWithConfigAndMetrics(config Config, metricsConfig metrics.Config) (Gate, error) {
	base, err := NewWithConfigSafe(config)
	if err != nil {
		return nil, err
	}

	if !metricsConfig.Enabled {
		return base, nil
	}

	return Instrument(base, registryFor(metricsConfig)), nil
}

// Instrument wraps g so that its activity is recorded in registry under g's name.
func Instrument(g Gate, registry *metrics.Registry) *MetricsGate {
	mg := &MetricsGate{
		gate: g,
		name: g.Name(),
	}
	mg.registry.Store(registry)
	mg.enabled.Store(true)
	mg.updateGauges()
	return mg
}

func registryFor(config metrics.Config) *metrics.Registry {
	if config.Registry == nil && (config.Namespace == "" || config.Namespace == metrics.DefaultNamespace) && config.Labels == nil {
		return metrics.Default()
	}
	return metrics.NewRegistryWithConfig(config)
}

// Acquire blocks until admission and records wait and pacing times.
func (mg *MetricsGate) Acquire(ctx context.Context) (*Permit, error) {
	reg := mg.activeRegistry()
	if reg != nil {
		reg.GateWaiting.WithLabelValues(mg.name).Inc()
	}

	p, err := mg.gate.Acquire(ctx)

	if reg != nil {
		reg.GateWaiting.WithLabelValues(mg.name).Dec()
	}
	if err != nil {
		if reg != nil {
			reg.GateAcquireFailures.WithLabelValues(mg.name, failureReason(err)).Inc()
		}
		return nil, err
	}

	p.owner = mg
	mg.observeAdmission(p)
	return p, nil
}

// TryAcquire admits the caller only if no waiting is needed.
func (mg *MetricsGate) TryAcquire() (*Permit, bool) {
	p, ok := mg.gate.TryAcquire()
	if !ok {
		return nil, false
	}
	p.owner = mg
	mg.observeAdmission(p)
	return p, true
}

// Release returns the slot held by p and counts rejected releases.
func (mg *MetricsGate) Release(p *Permit) error {
	err := mg.gate.Release(p)

	if reg := mg.activeRegistry(); reg != nil {
		if gferrors.IsProtocolError(err) {
			reg.GateProtocolErrors.WithLabelValues(mg.name).Inc()
		}
		reg.GateActive.WithLabelValues(mg.name).Set(float64(mg.gate.InUse()))
	}
	return err
}

// Do acquires, runs fn and releases, recording metrics for both ends.
func (mg *MetricsGate) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return do(ctx, mg, fn)
}

// Interval returns the minimum spacing between admissions.
func (mg *MetricsGate) Interval() time.Duration { return mg.gate.Interval() }

// Concurrency returns the maximum number of simultaneous holders.
func (mg *MetricsGate) Concurrency() int { return mg.gate.Concurrency() }

// InUse returns the number of outstanding permits.
func (mg *MetricsGate) InUse() int { return mg.gate.InUse() }

// Available returns the number of free slots.
func (mg *MetricsGate) Available() int { return mg.gate.Available() }

// Waiting returns the number of callers queued for a slot.
func (mg *MetricsGate) Waiting() int { return mg.gate.Waiting() }

// LastAdmitted returns the most recent admission instant.
func (mg *MetricsGate) LastAdmitted() time.Time { return mg.gate.LastAdmitted() }

// NextAdmission returns the earliest instant pacing allows another admission.
func (mg *MetricsGate) NextAdmission() time.Time { return mg.gate.NextAdmission() }

// Name returns the gate name.
func (mg *MetricsGate) Name() string { return mg.name }

// Unwrap returns the wrapped gate.
func (mg *MetricsGate) Unwrap() Gate { return mg.gate }

// EnableMetrics enables metrics collection.
func (mg *MetricsGate) EnableMetrics(config metrics.Config) error {
	if config.Registry != nil {
		mg.registry.Store(metrics.NewRegistryWithConfig(config))
	}
	mg.enabled.Store(config.Enabled)
	mg.updateGauges()
	return nil
}

// DisableMetrics disables metrics collection.
func (mg *MetricsGate) DisableMetrics() {
	mg.enabled.Store(false)
}

// MetricsEnabled returns true if metrics are currently enabled.
func (mg *MetricsGate) MetricsEnabled() bool {
	return mg.enabled.Load()
}

func (mg *MetricsGate) activeRegistry() *metrics.Registry {
	if !mg.enabled.Load() {
		return nil
	}
	return mg.registry.Load()
}

func (mg *MetricsGate) observeAdmission(p *Permit) {
	reg := mg.activeRegistry()
	if reg == nil {
		return
	}
	reg.GateAdmissions.WithLabelValues(mg.name).Inc()
	reg.GateWaitTime.WithLabelValues(mg.name).Observe(p.Waited().Seconds())
	reg.GatePacingDelay.WithLabelValues(mg.name).Observe(p.Paced().Seconds())
	reg.GateActive.WithLabelValues(mg.name).Set(float64(mg.gate.InUse()))
}

func (mg *MetricsGate) updateGauges() {
	reg := mg.activeRegistry()
	if reg == nil {
		return
	}
	reg.GateActive.WithLabelValues(mg.name).Set(float64(mg.gate.InUse()))
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline"
	default:
		return "error"
	}
}
