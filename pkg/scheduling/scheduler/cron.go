package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	pgcontext "github.com/vnykmshr/pacegate/pkg/common/context"
)

// firing is the cron job registered for a scheduled task.
type firing struct {
	s  *cronScheduler
	st *scheduledTask
}

// Run executes the task. It is only reached once the gate has admitted the firing.
func (f *firing) Run() {
	s := f.s
	f.st.runs.Add(1)

	ctx, cancel := pgcontext.WithOptionalTimeout(context.Background(), s.config.TaskTimeout)
	defer cancel()

	start := time.Now()
	outcome, err := f.execute(ctx)
	s.record(outcome)

	if err != nil {
		s.logger.Warn("scheduled task failed",
			zap.String("id", f.st.id),
			zap.String("outcome", outcome),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		s.reportError(f.st.id, err)
		return
	}
	s.logger.Debug("scheduled task completed",
		zap.String("id", f.st.id),
		zap.Duration("duration", time.Since(start)))
}

func (f *firing) execute(ctx context.Context) (outcome string, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome, err = outcomePanic, fmt.Errorf("task panicked: %v", r)
		}
	}()

	if err := f.st.task.Execute(ctx); err != nil {
		return outcomeError, err
	}
	return outcomeSuccess, nil
}

// admit returns a cron.JobWrapper that holds a gate permit for the duration
// of each run. Firings that cannot be admitted before Stop are dropped.
func (s *cronScheduler) admit() cron.JobWrapper {
	return func(j cron.Job) cron.Job {
		return cron.FuncJob(func() {
			p, err := s.gate.Acquire(s.admissionContext())
			if err != nil {
				id := jobID(j)
				s.record(outcomeNotAdmitted)
				s.logger.Warn("firing not admitted", zap.String("id", id), zap.Error(err))
				s.reportError(id, err)
				return
			}
			defer func() { _ = p.Release() }()

			j.Run()
		})
	}
}

func (s *cronScheduler) reportError(id string, err error) {
	if s.config.OnError != nil {
		s.config.OnError(id, err)
	}
}

func jobID(j cron.Job) string {
	if f, ok := j.(*firing); ok {
		return f.st.id
	}
	return ""
}

// cronLogger adapts zap to cron.Logger. The runner's info messages are
// per-tick chatter, so they go to debug level.
type cronLogger struct {
	l *zap.SugaredLogger
}

var _ cron.Logger = cronLogger{}

func newCronLogger(l *zap.Logger) cronLogger {
	return cronLogger{l: l.Sugar()}
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
