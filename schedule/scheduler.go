// Package schedule runs configured scheduled tasks on cron expressions.
// Every run goes through a runner.Handler for retries and timeouts and ends
// in DispatchScheduleProcess.
package schedule

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	rcron "github.com/robfig/cron/v3"

	processors "github.com/goliatone/go-processors"
	"github.com/goliatone/go-processors/logger"
	"github.com/goliatone/go-processors/request"
	"github.com/goliatone/go-processors/response"
	"github.com/goliatone/go-processors/runner"
)

// Dispatcher runs a scheduled task.
type Dispatcher interface {
	DispatchScheduleProcess(ctx context.Context, req request.Request, task string) (response.Scheduled, error)
}

// Scheduler wraps robfig/cron.
type Scheduler struct {
	mu         sync.Mutex
	cron       *rcron.Cron
	dispatcher Dispatcher
	control    *runner.Switch
	tasks      map[string]*Task
	ctx        context.Context
	cancel     context.CancelFunc

	location      *time.Location
	logger        logger.Logger
	errorHandler  func(task string, err error)
	resultHandler func(task string, res response.Scheduled, err error)
	retryStrategy runner.RetryStrategy
	newRequest    func(task Definition, at time.Time) request.Request
}

// NewScheduler creates a scheduler dispatching to d.
func NewScheduler(d Dispatcher, opts ...Option) *Scheduler {
	s := &Scheduler{
		dispatcher:    d,
		control:       runner.NewSwitch(),
		tasks:         make(map[string]*Task),
		location:      time.Local,
		retryStrategy: runner.NoDelayStrategy{},
		newRequest:    NewRequest,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.logger = logger.Normalize(s.logger)
	if s.location == nil {
		s.location = time.Local
	}
	if s.errorHandler == nil {
		s.errorHandler = func(task string, err error) {
			s.logger.Error("scheduled task %s failed: %v", task, err)
		}
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.cron = rcron.New(s.build()...)
	return s
}

// NewRequest is the default request handed to scheduled handlers.
func NewRequest(task Definition, at time.Time) request.Request {
	return request.MustFromMap(map[string]any{
		"id":           uuid.NewString(),
		"type":         "schedule",
		"task":         task.Task,
		"expression":   task.Expression,
		"scheduled_at": at.UTC().Format(time.RFC3339),
	})
}

// Add registers a task. Task names are unique.
func (s *Scheduler) Add(def Definition) (*Task, error) {
	if err := def.Validate(); err != nil {
		return nil, processors.NewError(processors.ErrInvalidConfig, "invalid schedule "+def.Task, err, map[string]any{"task": def.Task})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[def.Task]; exists {
		return nil, processors.NewError(
			processors.ErrInvalidConfig,
			fmt.Sprintf("scheduled task %s is already registered", def.Task),
			nil,
			map[string]any{"task": def.Task},
		)
	}

	t := &Task{
		def:    def,
		status: StatusScheduled,
		runner: runner.NewHandler(
			runner.WithName(def.Task),
			runner.WithLogger(s.logger),
			runner.WithMaxRetries(def.Retries),
			runner.WithTimeout(def.TimeoutDuration()),
			runner.WithControl(s.control),
			runner.WithRetryStrategy(runner.SkipCodes{Strategy: s.retryStrategy, Codes: runner.PermanentCodes}),
			runner.WithErrorHandler(func(err error) {
				s.logger.Warn("scheduled task %s: %v", def.Task, err)
			}),
		),
	}

	entryID, err := s.cron.AddFunc(def.Expression, func() {
		s.run(s.ctx, t)
	})
	if err != nil {
		return nil, processors.NewError(processors.ErrInvalidConfig, "failed to add scheduled task "+def.Task, err, map[string]any{"task": def.Task})
	}
	t.entryID = int(entryID)
	s.tasks[def.Task] = t
	return t, nil
}

// Load replaces every registered task with defs. Nothing is replaced when a
// definition is invalid.
func (s *Scheduler) Load(defs []Definition) error {
	seen := map[string]bool{}
	for _, def := range defs {
		if err := def.Validate(); err != nil {
			return processors.NewError(processors.ErrInvalidConfig, "invalid schedule "+def.Task, err, map[string]any{"task": def.Task})
		}
		if seen[def.Task] {
			return processors.NewError(processors.ErrInvalidConfig, "duplicated scheduled task "+def.Task, nil, map[string]any{"task": def.Task})
		}
		seen[def.Task] = true
	}

	for _, name := range s.Tasks() {
		s.Remove(name)
	}
	for _, def := range defs {
		if _, err := s.Add(def); err != nil {
			return err
		}
	}
	return nil
}

// Remove unregisters a task. Running executions complete.
func (s *Scheduler) Remove(name string) bool {
	s.mu.Lock()
	t, ok := s.tasks[name]
	delete(s.tasks, name)
	s.mu.Unlock()

	if !ok {
		return false
	}
	s.cron.Remove(rcron.EntryID(t.entryID))
	t.removed()
	return true
}

// Task returns a registered task.
func (s *Scheduler) Task(name string) (*Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[name]
	return t, ok
}

// Tasks returns the registered task names in sorted order.
func (s *Scheduler) Tasks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Snapshots reports every task with its next activation.
func (s *Scheduler) Snapshots() []Snapshot {
	out := make([]Snapshot, 0)
	for _, name := range s.Tasks() {
		t, ok := s.Task(name)
		if !ok {
			continue
		}
		out = append(out, t.snapshot(s.cron.Entry(rcron.EntryID(t.entryID)).Next))
	}
	return out
}

// RunNow executes a registered task immediately, outside of its schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) (response.Scheduled, error) {
	t, ok := s.Task(name)
	if !ok {
		return response.Scheduled{}, processors.NewError(
			processors.ErrNotImplemented,
			fmt.Sprintf("scheduled task %s is not registered", name),
			nil,
			map[string]any{"task": name},
		)
	}
	return s.run(ctx, t)
}

// Pause holds new attempts until Resume. Running attempts complete.
func (s *Scheduler) Pause() {
	s.control.Pause()
}

func (s *Scheduler) Resume() {
	s.control.Resume()
}

func (s *Scheduler) Paused() bool {
	return s.control.Paused()
}

// Start begins executing scheduled jobs.
func (s *Scheduler) Start(_ context.Context) error {
	s.cron.Start()
	return nil
}

// Stop stops scheduling and waits for running jobs, or ctx. A stopped
// scheduler cannot be started again.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.control.Stop(context.Canceled)
	defer s.cancel()

	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) run(ctx context.Context, t *Task) (response.Scheduled, error) {
	at := time.Now().In(s.location)
	if !t.started(at) {
		return response.Scheduled{}, nil
	}

	req := s.newRequest(t.def, at)
	log := logger.WithFields(s.logger, map[string]any{"task": t.Name(), "request_id": req.ID()})
	log.Debug("Running scheduled task %s", t.Name())

	res, err := runner.Call(ctx, t.runner, func(ctx context.Context) (response.Scheduled, error) {
		if s.dispatcher == nil {
			return response.Scheduled{}, processors.NewError(processors.ErrNotImplemented, "scheduler has no dispatcher", nil, nil)
		}
		return s.dispatcher.DispatchScheduleProcess(ctx, req, t.Name())
	})

	t.finished(err)
	if err != nil {
		s.errorHandler(t.Name(), err)
	} else {
		log.Debug("Scheduled task %s finished with status %s", t.Name(), res.Status)
	}
	if s.resultHandler != nil {
		s.resultHandler(t.Name(), res, err)
	}
	return res, err
}

// build converts options to robfig/cron options.
func (s *Scheduler) build() []rcron.Option {
	cl := cronLogger{logger: s.logger}
	opts := []rcron.Option{
		rcron.WithLogger(cl),
		rcron.WithChain(
			rcron.Recover(panicReporter{cronLogger: cl, report: func(err error) {
				s.errorHandler("", err)
			}}),
			rcron.SkipIfStillRunning(cl),
		),
	}
	return append(opts, rcron.WithLocation(s.location))
}
