package scheduler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	gferrors "github.com/vnykmshr/pacegate/pkg/common/errors"
	"github.com/vnykmshr/pacegate/pkg/common/validation"
	"github.com/vnykmshr/pacegate/pkg/metrics"
	"github.com/vnykmshr/pacegate/pkg/ratelimit/gate"
	"github.com/vnykmshr/pacegate/pkg/scheduling/workerpool"
)

// ErrNotFound is returned for operations on an ID that is not scheduled.
var ErrNotFound = errors.New("scheduled task not found")

// Scheduler runs tasks on cron schedules, admitting every firing through a gate.
type Scheduler interface {
	// Schedule registers task under id to run on the cron expression expr.
	// Expressions have a leading seconds field ("*/5 * * * * *") or are
	// descriptors such as "@hourly" and "@every 1m".
	Schedule(id, expr string, task workerpool.Task) error

	// Remove unschedules id. Firings already waiting for admission still run.
	Remove(id string) bool

	// Next returns the next firing time of id.
	Next(id string) (time.Time, error)

	// Entries returns all scheduled tasks ordered by ID.
	Entries() []Entry

	// Start begins firing schedules in the background.
	Start()

	// Stop stops firing schedules, cancels firings still waiting for
	// admission and waits for running tasks until ctx ends.
	Stop(ctx context.Context) error

	// ValidateExpression reports whether expr can be scheduled.
	ValidateExpression(expr string) error

	// Gate returns the gate admitting firings.
	Gate() gate.Gate
}

// Entry describes a scheduled task.
type Entry struct {
	ID         string
	Expression string
	Next       time.Time
	Prev       time.Time
	Runs       int64
}

// Config holds scheduler configuration.
type Config struct {
	// Location is the time zone for evaluating expressions. Defaults to time.Local.
	Location *time.Location

	// SkipIfStillRunning drops a firing while the previous run of the same
	// task is still admitted or waiting for admission.
	SkipIfStillRunning bool

	// TaskTimeout bounds each task run after admission. Zero means no timeout.
	TaskTimeout time.Duration

	// OnError is called when a task fails or is not admitted.
	OnError func(id string, err error)

	// Name identifies the scheduler in logs and metrics. If empty, a random name is generated.
	Name string

	// Logger receives scheduling events. If nil, logging is disabled.
	Logger *zap.Logger

	// Metrics, if set, counts firings by outcome.
	Metrics *metrics.Registry
}

// Firing outcomes recorded in metrics.
const (
	outcomeSuccess     = "success"
	outcomeError       = "error"
	outcomePanic       = "panic"
	outcomeNotAdmitted = "not_admitted"
)

type scheduledTask struct {
	id     string
	expr   string
	task   workerpool.Task
	cronID cron.EntryID
	runs   atomic.Int64
}

type cronScheduler struct {
	gate    gate.Gate
	config  Config
	name    string
	logger  *zap.Logger
	metrics *metrics.Registry
	parser  cron.Parser
	cron    *cron.Cron

	mu    sync.RWMutex
	tasks map[string]*scheduledTask

	// admitCtx is canceled by Stop so that firings blocked on the gate give up.
	admitCtx    context.Context
	cancelAdmit context.CancelFunc
}

// New creates a scheduler whose firings pass through g.
func New(g gate.Gate, config Config) (Scheduler, error) {
	if err := validation.ValidateNotNil("scheduler", "gate", g); err != nil {
		return nil, err
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.Name == "" {
		config.Name = "scheduler-" + uuid.NewString()[:8]
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	s := &cronScheduler{
		gate:    g,
		config:  config,
		name:    config.Name,
		logger:  config.Logger.With(zap.String("scheduler", config.Name), zap.String("gate", g.Name())),
		metrics: config.Metrics,
		// Seconds, minutes, hours, day of month, month, day of week
		parser: cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		tasks:  make(map[string]*scheduledTask),
	}
	s.admitCtx, s.cancelAdmit = context.WithCancel(context.Background())

	cronLog := newCronLogger(s.logger)
	wrappers := []cron.JobWrapper{cron.Recover(cronLog)}
	if config.SkipIfStillRunning {
		wrappers = append(wrappers, cron.SkipIfStillRunning(cronLog))
	}
	wrappers = append(wrappers, s.admit())

	s.cron = cron.New(
		cron.WithParser(s.parser),
		cron.WithLocation(config.Location),
		cron.WithLogger(cronLog),
		cron.WithChain(wrappers...),
	)
	return s, nil
}

// Schedule implements Scheduler.Schedule.
func (s *cronScheduler) Schedule(id, expr string, task workerpool.Task) error {
	if err := validation.ValidateNotEmpty("scheduler", "id", id); err != nil {
		return err
	}
	if err := validation.ValidateNotNil("scheduler", "task", task); err != nil {
		return err
	}
	schedule, err := s.parse(expr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[id]; exists {
		return gferrors.NewValidationError("scheduler", "id", id, "already scheduled").
			WithHint("remove the existing task first")
	}

	st := &scheduledTask{id: id, expr: expr, task: task}
	st.cronID = s.cron.Schedule(schedule, &firing{s: s, st: st})
	s.tasks[id] = st

	s.logger.Debug("scheduled task", zap.String("id", id), zap.String("expression", expr))
	return nil
}

// Remove implements Scheduler.Remove.
func (s *cronScheduler) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, exists := s.tasks[id]
	if !exists {
		return false
	}
	s.cron.Remove(st.cronID)
	delete(s.tasks, id)
	return true
}

// Next implements Scheduler.Next.
func (s *cronScheduler) Next(id string) (time.Time, error) {
	s.mu.RLock()
	st, exists := s.tasks[id]
	s.mu.RUnlock()
	if !exists {
		return time.Time{}, gferrors.NewOperationError("scheduler", "Next", ErrNotFound).WithContext(id)
	}
	return s.next(st), nil
}

// Entries implements Scheduler.Entries.
func (s *cronScheduler) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]Entry, 0, len(s.tasks))
	for _, st := range s.tasks {
		e := s.cron.Entry(st.cronID)
		entries = append(entries, Entry{
			ID:         st.id,
			Expression: st.expr,
			Next:       s.next(st),
			Prev:       e.Prev,
			Runs:       st.runs.Load(),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries
}

// Start implements Scheduler.Start.
func (s *cronScheduler) Start() {
	s.mu.Lock()
	if s.admitCtx.Err() != nil {
		s.admitCtx, s.cancelAdmit = context.WithCancel(context.Background())
	}
	s.mu.Unlock()

	s.cron.Start()
}

// Stop implements Scheduler.Stop.
func (s *cronScheduler) Stop(ctx context.Context) error {
	running := s.cron.Stop()

	s.mu.RLock()
	s.cancelAdmit()
	s.mu.RUnlock()

	select {
	case <-running.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ValidateExpression implements Scheduler.ValidateExpression.
func (s *cronScheduler) ValidateExpression(expr string) error {
	_, err := s.parse(expr)
	return err
}

// Gate implements Scheduler.Gate.
func (s *cronScheduler) Gate() gate.Gate {
	return s.gate
}

func (s *cronScheduler) parse(expr string) (cron.Schedule, error) {
	if err := validation.ValidateNotEmpty("scheduler", "expression", expr); err != nil {
		return nil, err
	}
	schedule, err := s.parser.Parse(expr)
	if err != nil {
		return nil, gferrors.NewValidationError("scheduler", "expression", expr, err.Error()).
			WithHint(`use six fields starting with seconds, e.g. "0 */5 * * * *", or a descriptor like "@hourly"`)
	}
	return schedule, nil
}

// next returns the scheduled firing time, computing it when the runner has
// not started yet.
func (s *cronScheduler) next(st *scheduledTask) time.Time {
	e := s.cron.Entry(st.cronID)
	if !e.Next.IsZero() || e.Schedule == nil {
		return e.Next
	}
	return e.Schedule.Next(time.Now().In(s.config.Location))
}

func (s *cronScheduler) admissionContext() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.admitCtx
}

func (s *cronScheduler) record(outcome string) {
	if s.metrics != nil {
		s.metrics.CronFirings.WithLabelValues(s.name, outcome).Inc()
	}
}
