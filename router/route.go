package router

import (
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	apperrors "github.com/goliatone/go-errors"
	processors "github.com/goliatone/go-processors"
)

// Scope is the model a route applies to.
type Scope string

const (
	ScopeAsset      Scope = "asset"
	ScopeTierConfig Scope = "tier-config"
	ScopeProduct    Scope = "product"
)

// Process is the event category a route applies to.
type Process string

const (
	ProcessProcess     Process = "process"
	ProcessValidate    Process = "validate"
	ProcessCustomEvent Process = "custom-event"
	ProcessAction      Process = "action"
	ProcessSchedule    Process = "schedule"
)

var (
	Scopes    = []Scope{ScopeAsset, ScopeTierConfig, ScopeProduct}
	Processes = []Process{ProcessProcess, ProcessValidate, ProcessCustomEvent, ProcessAction, ProcessSchedule}
)

// Route identifies a handler by scope, process and name.
type Route struct {
	Scope   Scope
	Process Process
	Name    string
}

// NewRoute validates and builds a route.
func NewRoute(scope Scope, process Process, name string) (Route, error) {
	r := Route{Scope: scope, Process: process, Name: name}
	if err := r.Validate(); err != nil {
		return Route{}, err
	}
	return r, nil
}

// MustRoute panics when the route is invalid.
func MustRoute(scope Scope, process Process, name string) Route {
	r, err := NewRoute(scope, process, name)
	if err != nil {
		panic(err)
	}
	return r
}

func ForProcess(scope Scope, name string) (Route, error) {
	return NewRoute(scope, ProcessProcess, name)
}

func ForValidate(scope Scope, name string) (Route, error) {
	return NewRoute(scope, ProcessValidate, name)
}

func ForCustomEvent(name string) (Route, error) {
	return NewRoute(ScopeProduct, ProcessCustomEvent, name)
}

func ForAction(name string) (Route, error) {
	return NewRoute(ScopeProduct, ProcessAction, name)
}

func ForSchedule(name string) (Route, error) {
	return NewRoute(ScopeProduct, ProcessSchedule, name)
}

// ParseKey parses a "{scope}.{process}.{name}" key. Names may contain dots.
func ParseKey(key string) (Route, error) {
	parts := strings.SplitN(key, ".", 3)
	if len(parts) != 3 {
		return Route{}, processors.NewError(
			processors.ErrInvalidRoute,
			fmt.Sprintf("Invalid route key %s.", key),
			nil,
			map[string]any{"key": key},
		)
	}
	return NewRoute(Scope(parts[0]), Process(parts[1]), parts[2])
}

// Validate checks scope, process and name.
func (r Route) Validate() error {
	err := validation.Errors{
		"scope": validation.Validate(r.Scope,
			validation.Required.Error(fmt.Sprintf("Invalid route scope value %s.", r.Scope)),
			validation.In(toAny(Scopes)...).Error(fmt.Sprintf("Invalid route scope value %s.", r.Scope)),
		),
		"process": validation.Validate(r.Process,
			validation.Required.Error(fmt.Sprintf("Invalid route process value %s.", r.Process)),
			validation.In(toAny(Processes)...).Error(fmt.Sprintf("Invalid route process value %s.", r.Process)),
		),
		"name": validation.Validate(r.Name, validation.By(noSpaces)),
	}.Filter()
	if err == nil {
		return nil
	}

	verr := apperrors.FromOzzoValidation(err, "Invalid route "+r.Main()+".")
	verr.TextCode = processors.ErrCodeInvalidRoute
	return verr.WithMetadata(map[string]any{
		"scope":   string(r.Scope),
		"process": string(r.Process),
		"name":    r.Name,
	})
}

// Main is the exact lookup key.
func (r Route) Main() string {
	return fmt.Sprintf("%s.%s.%s", r.Scope, r.Process, r.Name)
}

// NotFound is the category fallback key.
func (r Route) NotFound() string {
	return fmt.Sprintf("%s.%s", r.Scope, r.Process)
}

func (r Route) String() string {
	return r.Main()
}

func noSpaces(value any) error {
	if s, _ := value.(string); strings.Contains(s, " ") {
		return validation.NewError("validation_route_name", "Invalid route name, must not contains spaces.")
	}
	return nil
}

func toAny[T any](values []T) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
