package gate

import (
	"context"
	"time"

	"go.uber.org/zap"

	gferrors "github.com/vnykmshr/pacegate/pkg/common/errors"
)

// Acquire blocks until the caller is admitted or ctx ends.
func (g *pacedGate) Acquire(ctx context.Context) (*Permit, error) {
	start := g.clock.Now()

	if err := g.slots.Wait(ctx); err != nil {
		return nil, err
	}

	admittedAt, paced, err := g.pace(ctx)
	if err != nil {
		// Never admitted: the slot goes back untouched by pacing.
		g.returnSlot()
		return nil, err
	}

	return g.issue(admittedAt, admittedAt.Sub(start), paced), nil
}

// TryAcquire admits the caller only if no waiting is needed.
func (g *pacedGate) TryAcquire() (*Permit, bool) {
	if !g.slots.Acquire() {
		return nil, false
	}

	select {
	case g.pacing <- struct{}{}:
	default:
		// Someone else is mid-pacing, so an admission is imminent anyway.
		g.returnSlot()
		return nil, false
	}

	now := g.clock.Now()
	if now.Sub(g.lastAdmitted) < g.interval {
		<-g.pacing
		g.returnSlot()
		return nil, false
	}
	g.recordAdmission(now)
	<-g.pacing

	return g.issue(now, 0, 0), true
}

// Release returns the slot held by p.
func (g *pacedGate) Release(p *Permit) error {
	if p == nil {
		return g.protocolError("nil permit")
	}
	if p.gate != g {
		return g.protocolError("permit was not issued by this gate")
	}
	if !p.released.CompareAndSwap(false, true) {
		return g.protocolError("permit already released")
	}
	return g.slots.Release()
}

// Do acquires, runs fn and releases.
func (g *pacedGate) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return do(ctx, g, fn)
}

// Interval returns the minimum spacing between admissions.
func (g *pacedGate) Interval() time.Duration { return g.interval }

// Concurrency returns the maximum number of simultaneous holders.
func (g *pacedGate) Concurrency() int { return g.concurrency }

// InUse returns the number of outstanding permits.
func (g *pacedGate) InUse() int { return g.slots.InUse() }

// Available returns the number of free slots.
func (g *pacedGate) Available() int { return g.slots.Available() }

// Waiting returns the number of callers queued for a slot.
func (g *pacedGate) Waiting() int { return g.slots.Waiting() }

// Name returns the gate name.
func (g *pacedGate) Name() string { return g.name }

// LastAdmitted returns the most recent admission instant.
func (g *pacedGate) LastAdmitted() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastAdmitted
}

// NextAdmission returns the earliest instant pacing allows another admission.
func (g *pacedGate) NextAdmission() time.Time {
	return g.LastAdmitted().Add(g.interval)
}

// pace serializes the elapsed-time check and the pacing sleep. The exclusion
// is held across the sleep so that admissions are strictly one interval apart
// even when several slots are free.
func (g *pacedGate) pace(ctx context.Context) (time.Time, time.Duration, error) {
	select {
	case g.pacing <- struct{}{}:
	case <-ctx.Done():
		return time.Time{}, 0, ctx.Err()
	}
	defer func() { <-g.pacing }()

	// The send above may have won a race against cancellation.
	if err := ctx.Err(); err != nil {
		return time.Time{}, 0, err
	}

	var paced time.Duration
	before := g.clock.Now()
	if wait := g.interval - before.Sub(g.lastAdmitted); wait > 0 {
		g.logger.Debug("pacing admission", zap.Duration("wait", wait))

		timer := g.clock.NewTimer(wait)
		select {
		case <-timer.C():
		case <-ctx.Done():
			timer.Stop()
			return time.Time{}, 0, ctx.Err()
		}
		paced = g.clock.Now().Sub(before)
	}

	// Measured after the sleep, so spacing counts from the real admission
	// instant and scheduling delays do not accumulate.
	now := g.clock.Now()
	g.recordAdmission(now)
	return now, paced, nil
}

// recordAdmission moves lastAdmitted forward. Must be called with pacing held.
func (g *pacedGate) recordAdmission(now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if now.After(g.lastAdmitted) {
		g.lastAdmitted = now
	}
}

func (g *pacedGate) issue(admittedAt time.Time, waited, paced time.Duration) *Permit {
	return &Permit{
		gate:       g,
		owner:      g,
		id:         g.seq.Add(1),
		admittedAt: admittedAt,
		waited:     waited,
		paced:      paced,
	}
}

// returnSlot gives back a slot taken by an acquisition that did not complete.
func (g *pacedGate) returnSlot() {
	if err := g.slots.Release(); err != nil {
		g.logger.Error("returning unused slot", zap.Error(err))
	}
}

func (g *pacedGate) protocolError(reason string) error {
	g.logger.Warn("rejected release", zap.String("reason", reason))
	return gferrors.NewProtocolError("gate", "Release", reason)
}

// do implements scoped use on top of any Gate.
func do(ctx context.Context, g Gate, fn func(ctx context.Context) error) (err error) {
	p, err := g.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := g.Release(p); rerr != nil && err == nil {
			err = rerr
		}
	}()
	return fn(ctx)
}
