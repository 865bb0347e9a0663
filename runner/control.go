package runner

import (
	"context"
	"sync"
)

// Control gates attempts. Wait blocks while runs are paused and fails once
// they are stopped.
type Control interface {
	Wait(ctx context.Context) error
}

// Switch is a Control toggled from outside the runs it gates.
type Switch struct {
	mu      sync.Mutex
	paused  bool
	resumed chan struct{}
	stopped chan struct{}
	cause   error
}

func NewSwitch() *Switch {
	return &Switch{stopped: make(chan struct{})}
}

// Pause holds new attempts until Resume or Stop.
func (s *Switch) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paused || s.cause != nil {
		return
	}
	s.paused = true
	s.resumed = make(chan struct{})
}

func (s *Switch) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.paused {
		return
	}
	s.paused = false
	close(s.resumed)
}

// Stop fails current and future waits with cause, or context.Canceled.
func (s *Switch) Stop(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cause != nil {
		return
	}
	if cause == nil {
		cause = context.Canceled
	}
	s.cause = cause
	close(s.stopped)
	if s.paused {
		s.paused = false
		close(s.resumed)
	}
}

func (s *Switch) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

func (s *Switch) Wait(ctx context.Context) error {
	for {
		s.mu.Lock()
		paused, resumed, cause := s.paused, s.resumed, s.cause
		s.mu.Unlock()

		if cause != nil {
			return cause
		}
		if !paused {
			return ctx.Err()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopped:
		case <-resumed:
		}
	}
}
