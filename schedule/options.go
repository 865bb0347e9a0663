package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-processors/logger"
	"github.com/goliatone/go-processors/request"
	"github.com/goliatone/go-processors/response"
	"github.com/goliatone/go-processors/runner"
)

// Option defines the functional option type for Scheduler
type Option func(*Scheduler)

// WithLocation sets the timezone location for the scheduler
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		s.location = loc
	}
}

func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		s.logger = l
	}
}

// WithErrorHandler receives failed runs and recovered panics.
func WithErrorHandler(fn func(task string, err error)) Option {
	return func(s *Scheduler) {
		s.errorHandler = fn
	}
}

// WithResultHandler receives every completed run.
func WithResultHandler(fn func(task string, res response.Scheduled, err error)) Option {
	return func(s *Scheduler) {
		s.resultHandler = fn
	}
}

// WithRetryStrategy sets the delay between attempts. Permanent routing and
// wiring errors are never retried.
func WithRetryStrategy(strategy runner.RetryStrategy) Option {
	return func(s *Scheduler) {
		s.retryStrategy = strategy
	}
}

// WithRequestFactory replaces the request built for each run.
func WithRequestFactory(fn func(task Definition, at time.Time) request.Request) Option {
	return func(s *Scheduler) {
		if fn != nil {
			s.newRequest = fn
		}
	}
}

// cronLogger adapts logger.Logger to robfig/cron's key/value logger.
type cronLogger struct {
	logger logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	logger.WithFields(l.logger, pairs(keysAndValues)).Debug("cron: %s", msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	logger.WithFields(l.logger, pairs(keysAndValues)).Error("cron: %s: %v", msg, err)
}

// panicReporter forwards recovered job panics to the error handler.
type panicReporter struct {
	cronLogger
	report func(error)
}

func (p panicReporter) Error(err error, msg string, keysAndValues ...any) {
	p.cronLogger.Error(err, msg, keysAndValues...)
	if p.report != nil {
		p.report(err)
	}
}

func pairs(keysAndValues []any) map[string]any {
	if len(keysAndValues) == 0 {
		return nil
	}
	fields := make(map[string]any, len(keysAndValues)/2+1)
	for i := 0; i < len(keysAndValues); i += 2 {
		key := strings.TrimSpace(fmt.Sprint(keysAndValues[i]))
		if i+1 >= len(keysAndValues) {
			fields["extra"] = key
			break
		}
		fields[key] = keysAndValues[i+1]
	}
	return fields
}
