package gate

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vnykmshr/pacegate/pkg/common/clock"
	gferrors "github.com/vnykmshr/pacegate/pkg/common/errors"
	"github.com/vnykmshr/pacegate/pkg/common/validation"
	"github.com/vnykmshr/pacegate/pkg/ratelimit/concurrency"
)

// Gate admits at most Concurrency holders at once and spaces successive
// admissions at least Interval apart, globally across all callers.
type Gate interface {
	// Acquire blocks until a concurrency slot is free and the pacing interval
	// since the previous admission has elapsed. The returned Permit must be
	// released exactly once. If ctx ends first, Acquire returns ctx.Err()
	// and holds nothing.
	Acquire(ctx context.Context) (*Permit, error)

	// TryAcquire admits the caller only if that is possible right now
	// without any waiting. It does not block.
	TryAcquire() (*Permit, bool)

	// Release returns the slot held by p. Releasing twice, releasing nil, or
	// releasing a permit issued by another gate returns a ProtocolError.
	// Release never affects pacing.
	Release(p *Permit) error

	// Do acquires, runs fn, and releases on every exit path, including panics.
	Do(ctx context.Context, fn func(ctx context.Context) error) error

	// Interval returns the minimum spacing between admissions.
	Interval() time.Duration

	// Concurrency returns the maximum number of simultaneous holders.
	Concurrency() int

	// InUse returns the number of admitted, unreleased permits.
	InUse() int

	// Available returns the number of free concurrency slots.
	Available() int

	// Waiting returns the number of callers queued for a concurrency slot.
	Waiting() int

	// LastAdmitted returns the instant of the most recent admission, or the
	// construction time if nobody has been admitted yet.
	LastAdmitted() time.Time

	// NextAdmission returns the earliest instant pacing allows another admission.
	NextAdmission() time.Time

	// Name identifies the gate in logs and metrics.
	Name() string
}

// Config holds configuration options for creating a new Gate.
type Config struct {
	// Interval is the minimum time between two successive admissions.
	// Zero disables pacing, leaving a plain concurrency limit.
	Interval time.Duration

	// Concurrency is the maximum number of simultaneous holders. Must be >= 1.
	Concurrency int

	// ImmediateFirst lets the first admission after construction proceed
	// without waiting. By default the construction instant counts as the
	// previous admission.
	ImmediateFirst bool

	// Clock provides the current time and timers. If nil, clock.System is used.
	Clock clock.Clock

	// Logger receives debug output for pacing waits and warnings for
	// protocol errors. If nil, logging is disabled.
	Logger *zap.Logger

	// Name identifies the gate. If empty, a random name is generated.
	Name string
}

// DefaultConfig returns a configuration for a gate with a single slot and no
// pacing interval.
func DefaultConfig() Config {
	return Config{
		Concurrency: 1,
		Clock:       clock.System{},
	}
}

// pacedGate implements Gate by composing a counting semaphore for slots and
// a one-slot channel that serializes pacing decisions.
type pacedGate struct {
	name        string
	interval    time.Duration
	concurrency int
	clock       clock.Clock
	logger      *zap.Logger

	slots  concurrency.Limiter
	pacing chan struct{}

	// lastAdmitted is written only while pacing is held; mu lets
	// inspection methods read it without taking part in pacing.
	mu           sync.Mutex
	lastAdmitted time.Time

	seq atomic.Uint64
}

// NewSafe creates a gate from an interval and a concurrency limit.
// The interval may be a time.Duration, a duration string such as "500ms", or
// any Go integer or floating-point value counting seconds.
func NewSafe(interval any, concurrency int) (Gate, error) {
	d, err := ParseInterval(interval)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	config.Interval = d
	config.Concurrency = concurrency
	return NewWithConfigSafe(config)
}

// NewLock creates a gate with a single slot: a mutex whose successive
// acquisitions are spaced by interval.
func NewLock(interval any) (Gate, error) {
	return NewSafe(interval, 1)
}

// NewWithConfigSafe creates a gate with validation that returns an error instead of panicking.
func NewWithConfigSafe(config Config) (Gate, error) {
	if err := validation.ValidateNonNegativeDuration("gate", "interval", config.Interval); err != nil {
		return nil, err
	}
	if err := validation.ValidatePositive("gate", "concurrency", config.Concurrency); err != nil {
		return nil, err
	}
	if config.Clock == nil {
		config.Clock = clock.System{}
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.Name == "" {
		config.Name = "gate-" + uuid.NewString()[:8]
	}

	slots, err := concurrency.NewSafe(config.Concurrency)
	if err != nil {
		return nil, err
	}

	last := config.Clock.Now()
	if config.ImmediateFirst {
		last = last.Add(-config.Interval)
	}

	return &pacedGate{
		name:         config.Name,
		interval:     config.Interval,
		concurrency:  config.Concurrency,
		clock:        config.Clock,
		logger:       config.Logger.With(zap.String("gate", config.Name)),
		slots:        slots,
		pacing:       make(chan struct{}, 1),
		lastAdmitted: last,
	}, nil
}

// Permit is the handle for one admitted holder of a Gate.
type Permit struct {
	gate  *pacedGate
	owner Gate

	id         uint64
	admittedAt time.Time
	waited     time.Duration
	paced      time.Duration
	released   atomic.Bool
}

// ID returns the admission sequence number, starting at 1 for each gate.
func (p *Permit) ID() uint64 { return p.id }

// AdmittedAt returns the instant the holder passed the pacing check.
func (p *Permit) AdmittedAt() time.Time { return p.admittedAt }

// Waited returns the time from the Acquire call until admission.
func (p *Permit) Waited() time.Duration { return p.waited }

// Paced returns the part of Waited spent sleeping out the pacing interval.
func (p *Permit) Paced() time.Duration { return p.paced }

// Released reports whether the permit has been released.
func (p *Permit) Released() bool { return p.released.Load() }

// Release releases the permit through the gate that issued it.
func (p *Permit) Release() error {
	if p == nil || p.owner == nil {
		return gferrors.NewProtocolError("gate", "Release", "permit was not issued by a gate")
	}
	return p.owner.Release(p)
}
