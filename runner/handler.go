// Package runner executes functions with retries, timeouts and run limits.
// Scheduled tasks go through a Handler so a flaky dependency is retried
// before the failure is reported.
package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	processors "github.com/goliatone/go-processors"
	"github.com/goliatone/go-processors/logger"
)

type Handler struct {
	mu sync.Mutex

	name          string
	logger        logger.Logger
	errorHandler  func(error)
	doneHandler   func(h *Handler)
	retryStrategy RetryStrategy
	control       Control

	runs           int
	successfulRuns int

	maxRuns    int
	maxRetries int
	timeout    time.Duration
	deadline   time.Time
	once       bool
}

// NewHandler constructs a Handler from options, applying defaults if unset.
func NewHandler(opts ...Option) *Handler {
	h := &Handler{
		name:          "runner",
		retryStrategy: NoDelayStrategy{},
	}
	for _, o := range opts {
		if o != nil {
			o(h)
		}
	}
	h.logger = logger.Normalize(h.logger)
	if h.errorHandler == nil {
		h.errorHandler = func(err error) {
			h.logger.Error("%s error: %v", h.name, err)
		}
	}
	if h.doneHandler == nil {
		h.doneHandler = func(h *Handler) {
			h.logger.Debug("%s done after %d runs", h.name, h.runs)
		}
	}
	return h
}

// Name returns the handler label.
func (h *Handler) Name() string {
	return h.name
}

// Stats returns the number of runs and successful runs.
func (h *Handler) Stats() (runs, successful int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.runs, h.successfulRuns
}

// Run calls fn until it succeeds or the retries are exhausted. A run skipped
// because of RunOnce or MaxRuns returns nil without calling fn.
func (h *Handler) Run(ctx context.Context, fn func(context.Context) error) error {
	h.mu.Lock()

	if h.once && h.successfulRuns >= 1 {
		h.mu.Unlock()
		return nil
	}

	if h.successfulRuns >= h.maxRuns && h.maxRuns > 0 {
		h.mu.Unlock()
		return nil
	}

	maxRetries := h.maxRetries
	strategy := h.retryStrategy
	h.mu.Unlock()

	ctx, cancel := h.contextWithSettings(ctx)
	defer cancel()

	var err error
	attempts := 0
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if h.control != nil {
			if err = h.control.Wait(ctx); err != nil {
				break
			}
		}

		attempts++
		err = fn(ctx)
		if err == nil || attempt == maxRetries {
			break
		}

		decision := DecideRetry(strategy, attempt, err)
		h.handleError(runFailed(
			fmt.Sprintf("%s failed, attempt %d of %d", h.name, attempt+1, maxRetries+1),
			err,
			map[string]any{"attempt": attempt + 1, "retry": decision.ShouldRetry},
		))
		if !decision.ShouldRetry {
			break
		}
		if sleepErr := sleep(ctx, decision.Delay); sleepErr != nil {
			err = sleepErr
			break
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.runs++

	if err == nil {
		h.successfulRuns++
	} else {
		err = runFailed(
			fmt.Sprintf("%s failed after %d attempts", h.name, attempts),
			err,
			map[string]any{"attempts": attempts},
		)
		h.handleError(err)
	}

	if h.maxRuns > 0 && h.successfulRuns >= h.maxRuns {
		h.doneHandler(h)
	}
	return err
}

// Call is Run for functions that produce a value. The value of the last
// attempt is returned.
func Call[R any](ctx context.Context, h *Handler, fn func(context.Context) (R, error)) (R, error) {
	var result R
	err := h.Run(ctx, func(ctx context.Context) error {
		var err error
		result, err = fn(ctx)
		return err
	})
	return result, err
}

func (h *Handler) handleError(err error) {
	h.errorHandler(err)
}

func (h *Handler) contextWithSettings(parent context.Context) (context.Context, context.CancelFunc) {
	switch {
	case h.timeout != 0 && !h.deadline.IsZero():
		ctx, cancelTimeout := context.WithTimeout(parent, h.timeout)
		ctxDeadline, cancelDeadline := context.WithDeadline(ctx, h.deadline)
		return ctxDeadline, func() {
			cancelDeadline()
			cancelTimeout()
		}
	case h.timeout != 0:
		return context.WithTimeout(parent, h.timeout)
	case !h.deadline.IsZero():
		return context.WithDeadline(parent, h.deadline)
	default:
		return parent, func() {}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func runFailed(msg string, source error, meta map[string]any) error {
	return processors.NewError(processors.ErrRunFailed, msg, source, meta)
}
