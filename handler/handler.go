// Package handler declares the capabilities a routed handler type can
// implement, the built-in not-found handlers and a name based catalog used
// to resolve handler types from configuration.
package handler

import (
	"context"
	"fmt"
	"reflect"

	processors "github.com/goliatone/go-processors"
	"github.com/goliatone/go-processors/logger"
	"github.com/goliatone/go-processors/request"
	"github.com/goliatone/go-processors/response"
)

// Type identifies a handler type the container can instantiate.
type Type = reflect.Type

// TypeOf returns the handler type of T, usually a struct pointer.
func TypeOf[T any]() Type {
	return reflect.TypeFor[T]()
}

// ProcessFlow handles fulfillment requests.
type ProcessFlow interface {
	Process(ctx context.Context, req request.Request) (response.Processing, error)
}

// ValidationFlow handles draft validation requests.
type ValidationFlow interface {
	Validate(ctx context.Context, req request.Request) (response.Validation, error)
}

// ActionFlow handles product actions reached from external callers.
type ActionFlow interface {
	HandleAction(ctx context.Context, req request.Request) (response.Action, error)
}

// CustomEventFlow handles product custom events reached from external callers.
type CustomEventFlow interface {
	HandleCustomEvent(ctx context.Context, req request.Request) (response.CustomEvent, error)
}

// ScheduledFlow handles scheduled tasks.
type ScheduledFlow interface {
	ExecuteScheduled(ctx context.Context, req request.Request) (response.Scheduled, error)
}

// LoggerBinder is implemented by handlers that want a logger bound to the
// request being dispatched. It runs after instantiation, before invocation.
type LoggerBinder interface {
	BindLogger(req request.Request)
}

// Initializer is implemented by handlers that read configuration or request
// parameters once their dependencies are injected. Wiring errors returned
// here are treated as bootstrap failures.
type Initializer interface {
	Init() error
}

// BoundLogger can be embedded to get LoggerBinder for free.
type BoundLogger struct {
	Logger logger.Logger `inject:"logger,optional"`
}

// BindLogger is a no-op on a nil receiver.
func (b *BoundLogger) BindLogger(req request.Request) {
	if b == nil {
		return
	}
	b.Logger = logger.BindRequest(b.Logger, req)
}

// Log returns the bound logger, or the fallback logger.
func (b *BoundLogger) Log() logger.Logger {
	if b == nil {
		return logger.Normalize(nil)
	}
	return logger.Normalize(b.Logger)
}

// NotImplemented is returned by the process, validate and schedule not-found
// handlers.
func NotImplemented(kind string, req request.Request) error {
	return processors.NewError(
		processors.ErrNotImplemented,
		fmt.Sprintf("%s handler not implemented for request type %q", kind, req.Type()),
		nil,
		map[string]any{"kind": kind, "request_id": req.ID()},
	)
}

type ProcessNotFound struct{}

func (ProcessNotFound) Process(_ context.Context, req request.Request) (response.Processing, error) {
	return response.Processing{}, NotImplemented("process", req)
}

type ValidationNotFound struct{}

func (ValidationNotFound) Validate(_ context.Context, req request.Request) (response.Validation, error) {
	return response.Validation{}, NotImplemented("validation", req)
}

type ActionNotFound struct{}

func (ActionNotFound) HandleAction(context.Context, request.Request) (response.Action, error) {
	return response.NotFound(), nil
}

type CustomEventNotFound struct{}

func (CustomEventNotFound) HandleCustomEvent(context.Context, request.Request) (response.CustomEvent, error) {
	return response.NotFound(), nil
}

type ScheduledNotFound struct{}

func (ScheduledNotFound) ExecuteScheduled(_ context.Context, req request.Request) (response.Scheduled, error) {
	return response.Scheduled{}, NotImplemented("scheduled", req)
}
