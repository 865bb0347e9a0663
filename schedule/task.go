package schedule

import (
	"sync"
	"time"

	"github.com/goliatone/go-processors/config"
	"github.com/goliatone/go-processors/runner"
)

// Definition is a configured scheduled task.
type Definition = config.Schedule

// Status reports a task state.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusRunning   Status = "running"
	StatusIdle      Status = "idle"
	StatusFailed    Status = "failed"
	StatusRemoved   Status = "removed"
)

// Task is a registered scheduled task.
type Task struct {
	def     Definition
	entryID int
	runner  *runner.Handler

	mu      sync.RWMutex
	status  Status
	err     error
	lastRun time.Time
	runs    int
}

// Snapshot is a point in time view of a Task.
type Snapshot struct {
	Task       string    `json:"task"`
	Expression string    `json:"expression"`
	Status     Status    `json:"status"`
	Runs       int       `json:"runs"`
	LastRun    time.Time `json:"last_run,omitempty"`
	Next       time.Time `json:"next,omitempty"`
	Error      string    `json:"error,omitempty"`
}

func (t *Task) Name() string {
	return t.def.Task
}

func (t *Task) Definition() Definition {
	return t.def
}

func (t *Task) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// Err is the error of the last run, if it failed.
func (t *Task) Err() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.err
}

func (t *Task) snapshot(next time.Time) Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s := Snapshot{
		Task:       t.def.Task,
		Expression: t.def.Expression,
		Status:     t.status,
		Runs:       t.runs,
		LastRun:    t.lastRun,
		Next:       next,
	}
	if t.err != nil {
		s.Error = t.err.Error()
	}
	return s
}

func (t *Task) started(at time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status == StatusRemoved {
		return false
	}
	t.status = StatusRunning
	t.lastRun = at
	return true
}

func (t *Task) finished(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.runs++
	t.err = err
	if t.status == StatusRemoved {
		return
	}
	if err != nil {
		t.status = StatusFailed
		return
	}
	t.status = StatusIdle
}

func (t *Task) removed() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = StatusRemoved
}
