// Package dispatcher routes request documents to handlers.
//
// Every dispatch builds a route from the request, resolves the handler type
// through the router, instantiates it in a per-request container scope and
// invokes the entry method of its category. Handlers that cannot be
// bootstrapped produce the fallback response of their category instead of an
// error.
package dispatcher

import (
	"context"
	"fmt"
	"reflect"

	"github.com/google/uuid"

	processors "github.com/goliatone/go-processors"
	"github.com/goliatone/go-processors/container"
	"github.com/goliatone/go-processors/handler"
	"github.com/goliatone/go-processors/logger"
	"github.com/goliatone/go-processors/request"
	"github.com/goliatone/go-processors/response"
	"github.com/goliatone/go-processors/router"
)

// RequestBinding is the dependency name the dispatched request is bound to.
const RequestBinding = "request"

// Dispatcher is stateless across calls and safe for concurrent use.
type Dispatcher struct {
	router    *router.Router
	container *container.Container
	logger    logger.Logger
	countdown int
	newID     func() string
}

// Option defines the functional option signature.
type Option func(*Dispatcher)

// WithLogger sets the dispatcher logger.
func WithLogger(l logger.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// WithRescheduleCountdown sets the countdown, in seconds, used when a process
// handler cannot be bootstrapped.
func WithRescheduleCountdown(seconds int) Option {
	return func(d *Dispatcher) {
		if seconds > 0 {
			d.countdown = seconds
		}
	}
}

// WithIDGenerator replaces the dispatch id generator.
func WithIDGenerator(fn func() string) Option {
	return func(d *Dispatcher) {
		if fn != nil {
			d.newID = fn
		}
	}
}

// New builds a dispatcher. A nil container resolves handlers without any
// bindings besides the request.
func New(r *router.Router, c *container.Container, opts ...Option) *Dispatcher {
	if r == nil {
		r = router.New(nil, nil)
	}
	if c == nil {
		c = container.Deferred()
	}
	d := &Dispatcher{
		router:    r,
		container: c,
		countdown: response.DefaultRescheduleCountdown,
		newID:     newDispatchID,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	d.logger = logger.Normalize(d.logger)
	return d
}

func newDispatchID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.New().String()
}

// Router exposes the routing tables.
func (d *Dispatcher) Router() *router.Router {
	return d.router
}

// DispatchProcess handles a fulfillment request. A handler that cannot be
// bootstrapped yields a reschedule response with the configured countdown.
func (d *Dispatcher) DispatchProcess(ctx context.Context, req request.Request) (response.Processing, error) {
	return d.DispatchProcessWithCountdown(ctx, req, d.countdown)
}

// DispatchProcessWithCountdown is DispatchProcess with an explicit countdown.
func (d *Dispatcher) DispatchProcessWithCountdown(ctx context.Context, req request.Request, seconds int) (response.Processing, error) {
	route, err := RouteFor(CategoryProcess, req, "")
	if err != nil {
		return response.Processing{}, err
	}
	return dispatch(ctx, d, call[response.Processing]{
		category: CategoryProcess,
		req:      req,
		route:    route,
		fallback: func() response.Processing { return response.Reschedule(seconds) },
		missing: func() (response.Processing, error) {
			return response.Processing{}, notImplemented(route)
		},
		invoke: func(ctx context.Context, instance any, req request.Request) (response.Processing, error) {
			h, ok := instance.(handler.ProcessFlow)
			if !ok {
				return response.Processing{}, invalidHandler(instance, "ProcessFlow")
			}
			return h.Process(ctx, req)
		},
	})
}

// DispatchValidation handles a validation request. A handler that cannot be
// bootstrapped lets the request pass unchanged.
func (d *Dispatcher) DispatchValidation(ctx context.Context, req request.Request) (response.Validation, error) {
	route, err := RouteFor(CategoryValidation, req, "")
	if err != nil {
		return response.Validation{}, err
	}
	return dispatch(ctx, d, call[response.Validation]{
		category: CategoryValidation,
		req:      req,
		route:    route,
		fallback: func() response.Validation { return response.ValidationDone(req.Map()) },
		missing: func() (response.Validation, error) {
			return response.Validation{}, notImplemented(route)
		},
		invoke: func(ctx context.Context, instance any, req request.Request) (response.Validation, error) {
			h, ok := instance.(handler.ValidationFlow)
			if !ok {
				return response.Validation{}, invalidHandler(instance, "ValidationFlow")
			}
			return h.Validate(ctx, req)
		},
	})
}

// DispatchAction handles a product action. Unmapped actions answer 404 and
// handlers that cannot be bootstrapped answer 500.
func (d *Dispatcher) DispatchAction(ctx context.Context, req request.Request) (response.Action, error) {
	route, err := RouteFor(CategoryAction, req, "")
	if err != nil {
		return response.Action{}, err
	}
	return dispatch(ctx, d, call[response.Action]{
		category: CategoryAction,
		req:      req,
		route:    route,
		fallback: response.InternalError,
		missing:  func() (response.Action, error) { return response.NotFound(), nil },
		invoke: func(ctx context.Context, instance any, req request.Request) (response.Action, error) {
			h, ok := instance.(handler.ActionFlow)
			if !ok {
				return response.Action{}, invalidHandler(instance, "ActionFlow")
			}
			return h.HandleAction(ctx, req)
		},
	})
}

// DispatchCustomEvent handles a product custom event. Unmapped events answer
// 404 and handlers that cannot be bootstrapped answer 500.
func (d *Dispatcher) DispatchCustomEvent(ctx context.Context, req request.Request) (response.CustomEvent, error) {
	route, err := RouteFor(CategoryCustomEvent, req, "")
	if err != nil {
		return response.CustomEvent{}, err
	}
	return dispatch(ctx, d, call[response.CustomEvent]{
		category: CategoryCustomEvent,
		req:      req,
		route:    route,
		fallback: response.InternalError,
		missing:  func() (response.CustomEvent, error) { return response.NotFound(), nil },
		invoke: func(ctx context.Context, instance any, req request.Request) (response.CustomEvent, error) {
			h, ok := instance.(handler.CustomEventFlow)
			if !ok {
				return response.CustomEvent{}, invalidHandler(instance, "CustomEventFlow")
			}
			return h.HandleCustomEvent(ctx, req)
		},
	})
}

// DispatchScheduleProcess runs the scheduled task named task. A handler that
// cannot be bootstrapped completes as a no-op.
func (d *Dispatcher) DispatchScheduleProcess(ctx context.Context, req request.Request, task string) (response.Scheduled, error) {
	route, err := RouteFor(CategorySchedule, req, task)
	if err != nil {
		return response.Scheduled{}, err
	}
	return dispatch(ctx, d, call[response.Scheduled]{
		category: CategorySchedule,
		req:      req,
		route:    route,
		fallback: response.ScheduledDone,
		missing: func() (response.Scheduled, error) {
			return response.Scheduled{}, notImplemented(route)
		},
		invoke: func(ctx context.Context, instance any, req request.Request) (response.Scheduled, error) {
			h, ok := instance.(handler.ScheduledFlow)
			if !ok {
				return response.Scheduled{}, invalidHandler(instance, "ScheduledFlow")
			}
			return h.ExecuteScheduled(ctx, req)
		},
	})
}

// Dispatch routes req by category. task is only used by schedules.
func (d *Dispatcher) Dispatch(ctx context.Context, category Category, req request.Request, task string) (any, error) {
	switch category {
	case CategoryProcess:
		return d.DispatchProcess(ctx, req)
	case CategoryValidation:
		return d.DispatchValidation(ctx, req)
	case CategoryAction:
		return d.DispatchAction(ctx, req)
	case CategoryCustomEvent:
		return d.DispatchCustomEvent(ctx, req)
	case CategorySchedule:
		return d.DispatchScheduleProcess(ctx, req, task)
	default:
		return nil, unknownCategory(string(category))
	}
}

type call[R any] struct {
	category Category
	req      request.Request
	route    router.Route
	fallback func() R
	missing  func() (R, error)
	invoke   func(ctx context.Context, instance any, req request.Request) (R, error)
}

func dispatch[R any](ctx context.Context, d *Dispatcher, c call[R]) (R, error) {
	var zero R

	log := logger.WithFields(d.logger, map[string]any{
		"dispatch_id": d.newID(),
		"category":    string(c.category),
		"route":       c.route.Main(),
	}).WithContext(ctx)
	log.Debug("Processing %s: %s", c.category, c.req.ID())

	typ, ok := d.router.Route(c.route)
	if !ok {
		log.Debug("No handler for route %s.", c.route)
		return c.missing()
	}

	log.Debug("Loading %s handler.", typ)
	instance, err := d.instantiate(typ, c.req)
	if err != nil {
		if processors.IsBootstrapFailure(err) {
			log.Error("%s on bootstrapping handler %s due to %s", processors.ErrorKind(err), typ, err)
			return c.fallback(), nil
		}
		return zero, err
	}

	log.Debug("Dispatching %s using %s handler.", c.route, typ)
	return c.invoke(ctx, instance, c.req)
}

// instantiate builds typ in a scope holding the current request, so
// concurrent dispatches never share per-request bindings. Struct value types
// are built as pointers so pointer-receiver hooks apply.
func (d *Dispatcher) instantiate(typ handler.Type, req request.Request) (any, error) {
	if typ.Kind() == reflect.Struct {
		typ = reflect.PointerTo(typ)
	}
	scoped := d.container.Scope(container.NewDependencies().ToInstance(RequestBinding, req))
	instance, err := scoped.Get(typ)
	if err != nil {
		return nil, err
	}
	if b, ok := instance.(handler.LoggerBinder); ok {
		b.BindLogger(req)
	}
	if i, ok := instance.(handler.Initializer); ok {
		if err := i.Init(); err != nil {
			return nil, err
		}
	}
	return instance, nil
}

func notImplemented(route router.Route) error {
	return processors.NewError(
		processors.ErrNotImplemented,
		fmt.Sprintf("no handler implemented for route %s", route),
		nil,
		map[string]any{"route": route.Main()},
	)
}

func invalidHandler(instance any, capability string) error {
	return processors.NewError(
		processors.ErrInvalidHandler,
		fmt.Sprintf("handler %T does not implement %s", instance, capability),
		nil,
		map[string]any{"handler": fmt.Sprintf("%T", instance), "capability": capability},
	)
}
