/*
Package gate provides a paced admission gate: at most N concurrent holders,
and no admission sooner than a fixed interval after the previous one.

A Gate combines two stages. A counting semaphore bounds how many callers may
hold the gate at once. A pacing exclusion, held by one caller at a time,
compares the current instant with the last admission and sleeps out the rest
of the interval before admitting. Spacing is global: with several free slots,
admissions still happen one interval apart.

Basic usage:

	g, err := gate.NewSafe(500*time.Millisecond, 2) // or 0.5, or "500ms"
	if err != nil {
		log.Fatal(err)
	}

	p, err := g.Acquire(ctx)
	if err != nil {
		return err // context canceled or deadline exceeded
	}
	defer p.Release()

Scoped usage, with release on every exit path including panics:

	err := g.Do(ctx, func(ctx context.Context) error {
		return callUpstream(ctx)
	})

Intervals:

NewSafe accepts a time.Duration, a duration string such as "250ms", or any Go
integer or floating-point value counting seconds. ParseInterval exposes the
same normalization. Negative, NaN, infinite and non-numeric values are
rejected with a *errors.ValidationError wrapping errors.ErrInvalidArgument. A
zero interval turns the gate into a plain concurrency limit.

The first admission:

The construction instant counts as the previous admission, so the first
Acquire waits one interval. Set Config.ImmediateFirst to admit the first
caller at once.

Releasing:

Release returns the slot and never touches pacing: spacing is measured from
admission to admission, not from release. Releasing a permit twice, releasing
nil, or releasing a permit from another gate returns a *errors.ProtocolError
and leaves the gate unchanged.

Cancellation:

Acquire returns ctx.Err() unwrapped if the context ends while waiting for a
slot, for the pacing exclusion, or during the pacing sleep. In every case the
caller holds nothing afterwards and the last admission instant is unchanged.

Testing:

Config.Clock accepts any clock.Clock. Pacing sleeps use the clock's timers,
so a fake clock makes pacing tests deterministic.

Metrics:

NewWithMetrics and Instrument wrap a gate in a MetricsGate that records
admissions, wait and pacing histograms, failures by reason and rejected
releases in a metrics.Registry.

Thread Safety:

All operations are safe for concurrent use.
*/
package gate
