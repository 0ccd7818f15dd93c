/*
Package scheduling dispatches work through a gate.

  - workerpool: workers take tasks from a queue and admit each one through
    the gate before running it
  - scheduler: cron expressions trigger tasks, and every firing is admitted
    through the gate, so schedules that fire together start one interval apart

Both take the gate as their first argument so several dispatchers can share
one pace:

	g, _ := gate.NewSafe(250*time.Millisecond, 4)
	pool, _ := workerpool.New(g, 8, 100)
	sched, _ := scheduler.New(g, scheduler.Config{})
*/
package scheduling
