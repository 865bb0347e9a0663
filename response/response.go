// Package response holds the values handlers return for each event category.
package response

import "net/http"

// Status is the outcome of a handler invocation.
type Status string

const (
	StatusSuccess    Status = "success"
	StatusReschedule Status = "reschedule"
	StatusSkip       Status = "skip"
	StatusFail       Status = "fail"
)

// DefaultRescheduleCountdown is the countdown used when a handler cannot be
// bootstrapped.
const DefaultRescheduleCountdown = 3600

// Processing is returned by process handlers.
type Processing struct {
	Status    Status         `json:"status"`
	Countdown int            `json:"countdown,omitempty"`
	Output    string         `json:"output,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

func Done() Processing { return Processing{Status: StatusSuccess} }

// Reschedule asks the platform to retry after countdown seconds.
func Reschedule(countdown int) Processing {
	if countdown <= 0 {
		countdown = DefaultRescheduleCountdown
	}
	return Processing{Status: StatusReschedule, Countdown: countdown}
}

// Skip leaves the request untouched.
func Skip(output string) Processing {
	return Processing{Status: StatusSkip, Output: output}
}

func Fail(output string) Processing {
	return Processing{Status: StatusFail, Output: output}
}

// Validation is returned by validation handlers.
type Validation struct {
	Status Status         `json:"status"`
	Data   map[string]any `json:"data,omitempty"`
	Output string         `json:"output,omitempty"`
}

// ValidationDone passes the (possibly annotated) request document back.
func ValidationDone(data map[string]any) Validation {
	return Validation{Status: StatusSuccess, Data: data}
}

func ValidationFail(output string) Validation {
	return Validation{Status: StatusFail, Output: output}
}

// HTTP is returned by action and custom-event handlers, which answer
// external callers directly.
type HTTP struct {
	Status     Status            `json:"status"`
	HTTPStatus int               `json:"http_status"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       any               `json:"body,omitempty"`
}

// HTTPOption customizes an HTTP response.
type HTTPOption func(*HTTP)

func WithHeader(key, value string) HTTPOption {
	return func(h *HTTP) {
		if h.Headers == nil {
			h.Headers = map[string]string{}
		}
		h.Headers[key] = value
	}
}

func WithBody(body any) HTTPOption {
	return func(h *HTTP) {
		h.Body = body
	}
}

// HTTPDone builds a successful HTTP response with the given status code.
func HTTPDone(code int, opts ...HTTPOption) HTTP {
	h := HTTP{Status: StatusSuccess, HTTPStatus: code}
	for _, opt := range opts {
		if opt != nil {
			opt(&h)
		}
	}
	return h
}

// Redirect answers with 302 and a Location header.
func Redirect(location string) HTTP {
	return HTTPDone(http.StatusFound, WithHeader("Location", location))
}

// NotFound is the graceful answer for an unmapped action or custom event.
func NotFound() HTTP {
	return HTTPDone(http.StatusNotFound)
}

// InternalError is the answer for a handler that could not be bootstrapped.
func InternalError() HTTP {
	return HTTP{Status: StatusFail, HTTPStatus: http.StatusInternalServerError}
}

type (
	Action      = HTTP
	CustomEvent = HTTP
)

// Scheduled is returned by scheduled task handlers.
type Scheduled struct {
	Status Status `json:"status"`
	Output string `json:"output,omitempty"`
}

func ScheduledDone() Scheduled { return Scheduled{Status: StatusSuccess} }

func ScheduledFail(output string) Scheduled {
	return Scheduled{Status: StatusFail, Output: output}
}
