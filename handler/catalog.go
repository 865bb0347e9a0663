package handler

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"
	"sync"

	processors "github.com/goliatone/go-processors"
)

// Catalog maps configuration names to handler types.
type Catalog struct {
	mu    sync.RWMutex
	types map[string]Type
}

func NewCatalog() *Catalog {
	return &Catalog{types: make(map[string]Type)}
}

// Register adds a handler type under name. Names are unique and the type
// must be a struct or a struct pointer.
func (c *Catalog) Register(name string, typ Type) error {
	name = strings.TrimSpace(name)
	if name == "" || typ == nil {
		return processors.NewError(processors.ErrInvalidHandler, "handler name and type are required", nil, nil)
	}
	if st := typ; st.Kind() != reflect.Struct && (st.Kind() != reflect.Pointer || st.Elem().Kind() != reflect.Struct) {
		return processors.NewError(
			processors.ErrInvalidHandler,
			fmt.Sprintf("handler %q: %s is not a struct type", name, typ),
			nil,
			map[string]any{"name": name},
		)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.types[name]; ok {
		return processors.NewError(
			processors.ErrInvalidHandler,
			fmt.Sprintf("handler %q already registered as %s", name, existing),
			nil,
			map[string]any{"name": name},
		)
	}
	c.types[name] = typ
	return nil
}

// MustRegister panics on registration errors.
func (c *Catalog) MustRegister(name string, typ Type) *Catalog {
	if err := c.Register(name, typ); err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) Lookup(name string) (Type, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	typ, ok := c.types[name]
	return typ, ok
}

// Names returns registered names in sorted order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Sorted(maps.Keys(c.types))
}

// Builtins registers the not-found handlers under stable names so
// configuration can reference them.
func (c *Catalog) Builtins() *Catalog {
	for name, typ := range map[string]Type{
		"process-not-found":      TypeOf[*ProcessNotFound](),
		"validation-not-found":   TypeOf[*ValidationNotFound](),
		"action-not-found":       TypeOf[*ActionNotFound](),
		"custom-event-not-found": TypeOf[*CustomEventNotFound](),
		"scheduled-not-found":    TypeOf[*ScheduledNotFound](),
	} {
		c.mu.Lock()
		if _, ok := c.types[name]; !ok {
			c.types[name] = typ
		}
		c.mu.Unlock()
	}
	return c
}
