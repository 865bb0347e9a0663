package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	processors "github.com/goliatone/go-processors"
	"github.com/goliatone/go-processors/logger"
)

func TestHandler_NoError_NoRetries(t *testing.T) {
	h := NewHandler(quiet())

	cf := countingFunc{failUntil: 0}
	if err := h.Run(context.Background(), cf.fn); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cf.count() != 1 {
		t.Errorf("expected calls=1, got %d", cf.count())
	}

	runs, successful := h.Stats()
	if runs != 1 {
		t.Errorf("Handler.runs should be 1, got %d", runs)
	}
	if successful != 1 {
		t.Errorf("Handler.successfulRuns should be 1, got %d", successful)
	}
}

func TestHandler_SuccessOnSecondAttempt(t *testing.T) {
	h := NewHandler(quiet(), WithMaxRetries(3))

	cf := countingFunc{failUntil: 1}
	if err := h.Run(context.Background(), cf.fn); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cf.count() != 2 {
		t.Errorf("expected calls=2, got %d", cf.count())
	}
	if _, successful := h.Stats(); successful != 1 {
		t.Errorf("expected Handler successfulRuns=1, got %d", successful)
	}
}

func TestHandler_AllAttemptsFail(t *testing.T) {
	var reported []error
	h := NewHandler(
		WithName("refresh-token"),
		WithMaxRetries(2),
		WithErrorHandler(func(err error) { reported = append(reported, err) }),
	)

	cf := countingFunc{failUntil: 5}
	err := h.Run(context.Background(), cf.fn)

	if cf.count() != 3 {
		t.Errorf("expected calls=3 (1 initial + 2 retries), got %d", cf.count())
	}
	if !processors.HasCode(err, processors.ErrCodeRunFailed) {
		t.Fatalf("expected RUN_FAILED, got %v", err)
	}
	if !strings.Contains(err.Error(), "refresh-token failed after 3 attempts") {
		t.Errorf("unexpected message: %v", err)
	}
	if len(reported) != 3 {
		t.Errorf("expected 2 attempt errors and 1 final error, got %d", len(reported))
	}
	if _, successful := h.Stats(); successful != 0 {
		t.Errorf("Handler.successfulRuns should remain 0 for all fail, got %d", successful)
	}
}

func TestHandler_RunOnce(t *testing.T) {
	h := NewHandler(quiet(), WithRunOnce(true))

	cf := countingFunc{}

	h.Run(context.Background(), cf.fn)
	if cf.count() != 1 {
		t.Errorf("expected calls=1 after first run, got %d", cf.count())
	}

	h.Run(context.Background(), cf.fn)
	if cf.count() != 1 {
		t.Errorf("expected calls=1 after second run (skipped), got %d", cf.count())
	}
}

func TestHandler_MaxRuns(t *testing.T) {
	done := 0
	h := NewHandler(
		quiet(),
		WithMaxRuns(2),
		WithDoneHandler(func(*Handler) { done++ }),
	)

	cf := countingFunc{}
	for i := 0; i < 3; i++ {
		h.Run(context.Background(), cf.fn)
	}

	if cf.count() != 2 {
		t.Errorf("expected calls=2, got %d", cf.count())
	}
	if _, successful := h.Stats(); successful != 2 {
		t.Errorf("expected successfulRuns=2, got %d", successful)
	}
	if done != 1 {
		t.Errorf("expected the done handler once, got %d", done)
	}
}

func TestHandler_Timeout(t *testing.T) {
	h := NewHandler(quiet(), WithTimeout(50*time.Millisecond))

	start := time.Now()
	err := h.Run(context.Background(), func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
			return nil
		}
	})

	if time.Since(start) >= 500*time.Millisecond {
		t.Error("expected function to time out quickly, but took too long")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded in the chain, got %v", err)
	}
}

func TestHandler_Deadline(t *testing.T) {
	h := NewHandler(quiet(), WithDeadline(time.Now().Add(50*time.Millisecond)))

	start := time.Now()
	h.Run(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	if time.Since(start) >= 500*time.Millisecond {
		t.Error("expected function to stop at deadline, but took too long")
	}
	if _, successful := h.Stats(); successful != 0 {
		t.Errorf("expected 0 successful runs, got %d", successful)
	}
}

func TestHandler_SkipsPermanentErrors(t *testing.T) {
	h := NewHandler(
		quiet(),
		WithMaxRetries(5),
		WithRetryStrategy(SkipCodes{Strategy: NoDelayStrategy{}, Codes: PermanentCodes}),
	)

	calls := 0
	err := h.Run(context.Background(), func(context.Context) error {
		calls++
		return processors.NewError(processors.ErrNotImplemented, "no handler", nil, nil)
	})

	if calls != 1 {
		t.Errorf("expected a single attempt, got %d", calls)
	}
	if !processors.HasCode(err, processors.ErrCodeNotImplemented) {
		t.Errorf("expected the source code to survive wrapping, got %v", err)
	}
}

func TestHandler_Concurrency(t *testing.T) {
	h := NewHandler(quiet(), WithMaxRetries(1))
	wg := sync.WaitGroup{}
	const goroutines = 10

	cf := &countingFunc{failUntil: 1}

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.Run(context.Background(), cf.fn)
		}()
	}
	wg.Wait()

	runs, successful := h.Stats()
	if runs != goroutines {
		t.Errorf("expected Handler.runs=%d, got %d", goroutines, runs)
	}
	if successful != goroutines {
		t.Errorf("expected Handler.successfulRuns=%d, got %d", goroutines, successful)
	}
}

func TestHandler_Logger(t *testing.T) {
	var buf bytes.Buffer
	h := NewHandler(
		WithLogger(logger.NewFmtLogger(&buf)),
		WithMaxRetries(1),
	)

	cf := countingFunc{failUntil: 2}
	h.Run(context.Background(), cf.fn)

	if !strings.Contains(buf.String(), "runner error") {
		t.Errorf("expected error logs, got %q", buf.String())
	}
}

func TestCall(t *testing.T) {
	h := NewHandler(quiet(), WithMaxRetries(2))

	calls := 0
	res, err := Call(context.Background(), h, func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("forced failure")
		}
		return "Hello, World!", nil
	})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if res != "Hello, World!" {
		t.Errorf("expected result='Hello, World!', got '%s'", res)
	}
}

func TestSwitch(t *testing.T) {
	s := NewSwitch()
	h := NewHandler(quiet(), WithControl(s))

	s.Pause()
	if !s.Paused() {
		t.Fatal("expected switch to be paused")
	}

	started := make(chan struct{})
	finished := make(chan error, 1)
	var calls atomic.Int32
	go func() {
		close(started)
		finished <- h.Run(context.Background(), func(context.Context) error {
			calls.Add(1)
			return nil
		})
	}()

	<-started
	time.Sleep(20 * time.Millisecond)
	if calls.Load() != 0 {
		t.Fatal("run should wait while paused")
	}

	s.Resume()
	select {
	case err := <-finished:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("run did not resume")
	}

	s.Stop(nil)
	err := h.Run(context.Background(), func(context.Context) error {
		calls.Add(1)
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected canceled after stop, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected a single call, got %d", calls.Load())
	}
}

func TestRetryStrategies(t *testing.T) {
	backoff := ExponentialBackoffStrategy{Base: 10 * time.Millisecond, Factor: 2, Max: 100 * time.Millisecond}

	decision := DecideRetry(backoff, 2, nil)
	if !decision.ShouldRetry || decision.Delay != 40*time.Millisecond {
		t.Errorf("unexpected fallback decision: %+v", decision)
	}
	if d := backoff.SleepDuration(10, nil); d != 100*time.Millisecond {
		t.Errorf("expected delay capped at max, got %s", d)
	}

	skip := SkipCodes{Strategy: backoff, Codes: PermanentCodes}
	decision = skip.Decide(0, processors.NewError(processors.ErrInvalidRoute, "bad", nil, nil))
	if decision.ShouldRetry {
		t.Error("expected invalid routes not to be retried")
	}
	decision = skip.Decide(0, fmt.Errorf("transient"))
	if !decision.ShouldRetry || decision.Delay != 10*time.Millisecond {
		t.Errorf("unexpected decision for transient error: %+v", decision)
	}
}

func quiet() Option {
	return WithLogger(logger.NewFmtLogger(&bytes.Buffer{}))
}

type countingFunc struct {
	calls     atomic.Int32
	failUntil int32 // fail this many times, then succeed
}

func (cf *countingFunc) count() int32 {
	return cf.calls.Load()
}

func (cf *countingFunc) fn(_ context.Context) error {
	n := cf.calls.Add(1)
	if n <= cf.failUntil {
		return fmt.Errorf("forced error attempt %d", n)
	}
	return nil
}
