// Package router resolves routes to handler types.
//
// A Router holds two read-only tables: routes, keyed by Route.Main, and a
// not-found table keyed by Route.NotFound. The not-found table is layered:
// the built-in defaults form the base and caller entries override them key by
// key when the router is built.
package router

import (
	"maps"
	"slices"

	"github.com/goliatone/go-processors/handler"
)

// Table maps route keys to handler types.
type Table map[string]handler.Type

var defaultNotFound = Table{
	"asset.process":        handler.TypeOf[*handler.ProcessNotFound](),
	"tier-config.process":  handler.TypeOf[*handler.ProcessNotFound](),
	"asset.validate":       handler.TypeOf[*handler.ValidationNotFound](),
	"product.custom-event": handler.TypeOf[*handler.CustomEventNotFound](),
	"product.action":       handler.TypeOf[*handler.ActionNotFound](),
	"product.schedule":     handler.TypeOf[*handler.ScheduledNotFound](),
}

// DefaultNotFound returns a copy of the built-in not-found table.
func DefaultNotFound() Table {
	return maps.Clone(defaultNotFound)
}

// Keys returns the table keys in sorted order.
func (t Table) Keys() []string {
	return slices.Sorted(maps.Keys(t))
}

// Router is safe for concurrent use; it is never mutated after New.
type Router struct {
	routes   Table
	notFound Table
}

// New builds a router from caller routes and not-found overrides.
func New(routes, notFound Table) *Router {
	r := &Router{
		routes:   make(Table, len(routes)),
		notFound: DefaultNotFound(),
	}
	for k, typ := range routes {
		if typ != nil {
			r.routes[k] = typ
		}
	}
	for k, typ := range notFound {
		if typ != nil {
			r.notFound[k] = typ
		}
	}
	return r
}

// Route resolves route to a handler type. An exact match wins over the
// not-found table; false means no handler is available.
func (r *Router) Route(route Route) (handler.Type, bool) {
	if typ, ok := r.routes[route.Main()]; ok {
		return typ, true
	}
	if typ, ok := r.notFound[route.NotFound()]; ok {
		return typ, true
	}
	return nil, false
}

// Routes returns a copy of the exact-match table.
func (r *Router) Routes() Table {
	return maps.Clone(r.routes)
}

// NotFoundRoutes returns a copy of the effective not-found table.
func (r *Router) NotFoundRoutes() Table {
	return maps.Clone(r.notFound)
}
