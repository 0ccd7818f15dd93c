/*
Package scheduler runs tasks on cron schedules and admits every firing through
a gate.

Cron schedules tend to line up: many jobs written as "@hourly" or "0 0 * * *"
all fire on the same second. Routing the firings through a gate spreads them
by the gate's interval and caps how many run at once, without rewriting the
schedules.

Basic usage:

	g, err := gate.NewSafe(5*time.Second, 1)
	if err != nil {
		log.Fatal(err)
	}

	s, err := scheduler.New(g, scheduler.Config{Logger: logger})
	if err != nil {
		log.Fatal(err)
	}

	s.Schedule("cleanup", "0 0 * * * *", cleanupTask) // top of every hour
	s.Schedule("reindex", "@hourly", reindexTask)     // also top of every hour, 5s later
	s.Start()
	defer s.Stop(ctx)

Expressions:

Expressions use six fields with a leading seconds field:

	┌───────────── second (0-59)
	│ ┌───────────── minute (0-59)
	│ │ ┌───────────── hour (0-23)
	│ │ │ ┌───────────── day of month (1-31)
	│ │ │ │ ┌───────────── month (1-12)
	│ │ │ │ │ ┌───────────── day of week (0-6, SUN-SAT)
	│ │ │ │ │ │
	* * * * * *

Descriptors (@yearly, @monthly, @weekly, @daily, @hourly, @every <duration>)
are accepted too. Use ValidateExpression to check user input.

Admission:

Each firing waits for a gate permit and holds it while the task runs, so the
gate's concurrency limit bounds running tasks across all schedules. With
Config.SkipIfStillRunning, a firing is dropped while the previous firing of the
same task is still waiting or running.

Stopping:

Stop stops new firings, cancels firings still waiting for admission and waits
for running tasks until its context ends. Canceled firings are reported to
Config.OnError with the context error.

Metrics:

With Config.Metrics set, firings are counted by outcome: success, error,
panic and not_admitted.
*/
package scheduler
