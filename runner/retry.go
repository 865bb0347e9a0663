package runner

import (
	"math"
	"time"

	processors "github.com/goliatone/go-processors"
)

// RetryStrategy encapsulates the delay between retries.
type RetryStrategy interface {
	// SleepDuration returns how long to wait before the next retry attempt.
	// The attempt index starts at 0, incrementing after each failure.
	SleepDuration(attempt int, err error) time.Duration
}

// RetryDecider is implemented by strategies that can also veto a retry.
type RetryDecider interface {
	Decide(attempt int, err error) RetryDecision
}

// RetryDecision is the outcome of a retry evaluation.
type RetryDecision struct {
	ShouldRetry bool
	Delay       time.Duration
	Metadata    map[string]any
}

// DecideRetry asks s for a decision, falling back to SleepDuration.
func DecideRetry(s RetryStrategy, attempt int, err error) RetryDecision {
	if s == nil {
		return RetryDecision{ShouldRetry: true}
	}
	if d, ok := s.(RetryDecider); ok {
		return d.Decide(attempt, err)
	}
	return RetryDecision{ShouldRetry: true, Delay: s.SleepDuration(attempt, err)}
}

// NoDelayStrategy performs all retries immediately.
type NoDelayStrategy struct{}

func (NoDelayStrategy) SleepDuration(_ int, _ error) time.Duration {
	return 0
}

// ExponentialBackoffStrategy implements a backoff strategy.
// Usage example:
//
//	WithRetryStrategy(ExponentialBackoffStrategy{
//	    Base:   100 * time.Millisecond,
//	    Factor: 2,
//	    Max:    5 * time.Second,
//	})
type ExponentialBackoffStrategy struct {
	// Base is the starting delay (e.g., 100ms)
	Base time.Duration
	// Factor is multiplied each iteration (e.g., 2 => 100ms, 200ms, 400ms, ...)
	Factor float64
	// Max caps the exponential growth
	Max time.Duration
}

func (e ExponentialBackoffStrategy) SleepDuration(attempt int, _ error) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := float64(e.Base) * math.Pow(e.Factor, float64(attempt))
	if time.Duration(delay) > e.Max && e.Max > 0 {
		return e.Max
	}
	return time.Duration(delay)
}

// SkipCodes wraps a strategy and never retries errors carrying one of codes.
// Routing and wiring errors will not go away on a second attempt.
type SkipCodes struct {
	Strategy RetryStrategy
	Codes    []string
}

// PermanentCodes are the error codes a retry cannot fix.
var PermanentCodes = []string{
	processors.ErrCodeInvalidRoute,
	processors.ErrCodeNotImplemented,
	processors.ErrCodeInvalidHandler,
	processors.ErrCodeInvalidRequest,
}

func (s SkipCodes) SleepDuration(attempt int, err error) time.Duration {
	if s.Strategy == nil {
		return 0
	}
	return s.Strategy.SleepDuration(attempt, err)
}

func (s SkipCodes) Decide(attempt int, err error) RetryDecision {
	for _, code := range s.Codes {
		if processors.HasCode(err, code) {
			return RetryDecision{ShouldRetry: false, Metadata: map[string]any{"code": code}}
		}
	}
	return DecideRetry(s.Strategy, attempt, err)
}
