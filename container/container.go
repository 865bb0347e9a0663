// Package container is a small dependency container.
//
// Handler types declare their dependencies as exported struct fields tagged
// with `inject:"name"`; the container resolves each name against a binding
// table built from service providers. A container is either unbuilt, holding
// only its providers, or built, holding a resolved graph. Deferred containers
// move to built on Resolve or on the first Get.
package container

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"

	apperrors "github.com/goliatone/go-errors"
	processors "github.com/goliatone/go-processors"
	"github.com/golobby/cast"
)

// Resolver resolves types and named bindings.
type Resolver interface {
	Get(t reflect.Type) (any, error)
	Named(name string) (any, error)
}

type state int

const (
	stateUnbuilt state = iota
	stateBuilt
)

func (s state) String() string {
	if s == stateBuilt {
		return "built"
	}
	return "unbuilt"
}

// Container resolves handler types. A built container is safe for
// concurrent Get calls.
type Container struct {
	mu        sync.Mutex
	state     state
	providers []ServiceProvider
	parent    *Container
	graph     *graph
}

// New builds a container eagerly.
func New(providers ...ServiceProvider) (*Container, error) {
	c := Deferred(providers...)
	if err := c.Resolve(); err != nil {
		return nil, err
	}
	return c, nil
}

// MustNew panics when the bindings are invalid.
func MustNew(providers ...ServiceProvider) *Container {
	c, err := New(providers...)
	if err != nil {
		panic(err)
	}
	return c
}

// Deferred returns an unbuilt container.
func Deferred(providers ...ServiceProvider) *Container {
	return &Container{providers: slices.DeleteFunc(slices.Clone(providers), func(p ServiceProvider) bool {
		return p == nil
	})}
}

// Built reports whether the graph has been resolved.
func (c *Container) Built() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateBuilt
}

// Resolve runs the providers and validates the bindings. It is a no-op on a
// built container.
func (c *Container) Resolve() error {
	_, err := c.resolveGraph()
	return err
}

// Scope returns a deferred child container layering extra over the
// receiver's bindings. The receiver is never modified. Class and provider
// results memoized by the receiver are shared with the child unless extra
// rebinds one of the receiver's names, or the shared build itself needs a
// binding only the child has.
func (c *Container) Scope(extra ...ServiceProvider) *Container {
	child := Deferred(extra...)
	child.parent = c
	return child
}

// Get builds a new value of t. Struct pointer types yield a pointer.
func (c *Container) Get(t reflect.Type) (any, error) {
	g, err := c.resolveGraph()
	if err != nil {
		return nil, err
	}
	return g.construct(t, nil)
}

// Named resolves a binding by name.
func (c *Container) Named(name string) (any, error) {
	g, err := c.resolveGraph()
	if err != nil {
		return nil, err
	}
	return g.mustNamed(name, nil)
}

func (c *Container) resolveGraph() (*graph, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == stateBuilt {
		return c.graph, nil
	}

	deps := NewDependencies()
	var parent *graph
	if c.parent != nil {
		pg, err := c.parent.resolveGraph()
		if err != nil {
			return nil, err
		}
		deps.Merge(pg.deps)
		parent = pg
	}

	local := NewDependencies()
	for _, p := range c.providers {
		p.Register(local)
	}
	if parent != nil && shadows(parent.deps, local) {
		parent = nil
	}
	deps.Merge(local)
	if err := validateBindings(deps); err != nil {
		return nil, err
	}

	c.graph = &graph{deps: deps, local: local, parent: parent, cache: make(map[string]any)}
	c.state = stateBuilt
	return c.graph, nil
}

func shadows(base, overlay *Dependencies) bool {
	for _, name := range overlay.Names() {
		if _, ok := base.Lookup(name); ok {
			return true
		}
	}
	return false
}

// Get is a typed Container.Get.
func Get[T any](r Resolver) (T, error) {
	var zero T
	v, err := r.Get(reflect.TypeFor[T]())
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, invalidBindingType(fmt.Sprintf("resolved %T is not %s", v, reflect.TypeFor[T]()), nil)
	}
	return out, nil
}

// Lookup is a typed Named.
func Lookup[T any](r Resolver, name string) (T, error) {
	var zero T
	v, err := r.Named(name)
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, invalidBindingType(
			fmt.Sprintf("binding %q is %T, expected %s", name, v, reflect.TypeFor[T]()),
			map[string]any{"binding": name},
		)
	}
	return out, nil
}

// IsDependencyBuildingFailure reports whether err signals an unsatisfiable dependency.
func IsDependencyBuildingFailure(err error) bool {
	return processors.HasCode(err, processors.ErrCodeDependencyBuildingFailure)
}

// IsInvalidBindingType reports whether err signals a binding type mismatch.
func IsInvalidBindingType(err error) bool {
	return processors.HasCode(err, processors.ErrCodeInvalidBindingType)
}

func validateBindings(deps *Dependencies) error {
	for _, name := range deps.Names() {
		b, _ := deps.Lookup(name)
		switch b.kind {
		case instanceBinding:
		case classBinding:
			if _, err := structType(b.class); err != nil {
				return invalidBindingType(
					fmt.Sprintf("class binding %q: %s", name, err),
					map[string]any{"binding": name},
				)
			}
		case providerBinding:
			if b.provide == nil {
				return invalidBindingType(fmt.Sprintf("provider binding %q is nil", name), map[string]any{"binding": name})
			}
		default:
			return invalidBindingType(fmt.Sprintf("binding %q is empty", name), map[string]any{"binding": name})
		}
	}
	return nil
}

type graph struct {
	deps *Dependencies

	// parent is set on scoped graphs whose local bindings add names only.
	local  *Dependencies
	parent *graph

	mu    sync.Mutex
	cache map[string]any
}

type scopedResolver struct {
	g     *graph
	stack []string
}

func (r scopedResolver) Get(t reflect.Type) (any, error) { return r.g.construct(t, r.stack) }
func (r scopedResolver) Named(name string) (any, error)  { return r.g.mustNamed(name, r.stack) }

func (g *graph) mustNamed(name string, stack []string) (any, error) {
	v, found, err := g.named(name, stack)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, dependencyBuildingFailure(
			fmt.Sprintf("no binding for %q", name),
			nil,
			map[string]any{"binding": name},
		)
	}
	return v, nil
}

// named resolves a binding. Class and provider results are memoized for the
// lifetime of the graph.
func (g *graph) named(name string, stack []string) (any, bool, error) {
	if g.parent != nil {
		if _, own := g.local.Lookup(name); !own {
			v, found, err := g.parent.named(name, stack)
			if err == nil || !processors.IsBootstrapFailure(err) {
				return v, found, err
			}
			// the shared binding needs a scoped one; build it in this graph.
		}
	}

	b, ok := g.deps.Lookup(name)
	if !ok {
		return nil, false, nil
	}
	if b.kind == instanceBinding {
		return b.instance, true, nil
	}

	g.mu.Lock()
	v, cached := g.cache[name]
	g.mu.Unlock()
	if cached {
		return v, true, nil
	}

	key := "binding:" + name
	if slices.Contains(stack, key) {
		return nil, true, circular(append(stack, key))
	}
	stack = append(slices.Clone(stack), key)

	var err error
	switch b.kind {
	case classBinding:
		v, err = g.construct(b.class, stack)
	case providerBinding:
		v, err = b.provide(scopedResolver{g: g, stack: stack})
		if err != nil && !processors.IsBootstrapFailure(err) {
			err = dependencyBuildingFailure(
				fmt.Sprintf("provider for %q failed", name),
				err,
				map[string]any{"binding": name},
			)
		}
	}
	if err != nil {
		return nil, true, err
	}

	g.mu.Lock()
	if existing, ok := g.cache[name]; ok {
		v = existing
	} else {
		g.cache[name] = v
	}
	g.mu.Unlock()
	return v, true, nil
}

func (g *graph) construct(t reflect.Type, stack []string) (any, error) {
	st, err := structType(t)
	if err != nil {
		return nil, invalidBindingType(err.Error(), nil)
	}

	key := "type:" + st.String()
	if slices.Contains(stack, key) {
		return nil, circular(append(stack, key))
	}
	stack = append(slices.Clone(stack), key)

	v := reflect.New(st)
	if err := g.inject(v.Elem(), stack); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CategoryInternal, "building "+t.String())
	}
	if t.Kind() == reflect.Pointer {
		return v.Interface(), nil
	}
	return v.Elem().Interface(), nil
}

func (g *graph) inject(v reflect.Value, stack []string) error {
	st := v.Type()
	for i := 0; i < st.NumField(); i++ {
		field := st.Field(i)
		tag, tagged := field.Tag.Lookup("inject")
		if !tagged {
			if field.Anonymous && field.IsExported() {
				if err := g.injectEmbedded(v.Field(i), stack); err != nil {
					return err
				}
			}
			continue
		}

		meta := map[string]any{"type": st.String(), "field": field.Name}
		if !field.IsExported() {
			return invalidBindingType(fmt.Sprintf("field %s of %s is not exported", field.Name, st), meta)
		}

		name, opts, _ := strings.Cut(tag, ",")
		name = strings.TrimSpace(name)
		if name == "" {
			name = strings.ToLower(field.Name)
		}
		meta["binding"] = name

		value, found, err := g.named(name, stack)
		if err != nil {
			return err
		}
		if !found {
			if def, ok := field.Tag.Lookup("default"); ok {
				value, found = def, true
			}
		}
		if !found {
			if slices.Contains(strings.Split(opts, ","), "optional") {
				continue
			}
			return dependencyBuildingFailure(
				fmt.Sprintf("Unable to resolve %q for field %s of %s", name, field.Name, st),
				nil,
				meta,
			)
		}

		if err := assign(v.Field(i), value); err != nil {
			return invalidBindingType(
				fmt.Sprintf("binding %q cannot be assigned to field %s of %s: %s", name, field.Name, st, err),
				meta,
			)
		}
	}
	return nil
}

// injectEmbedded fills an embedded struct in place. A nil embedded struct
// pointer is allocated first.
func (g *graph) injectEmbedded(f reflect.Value, stack []string) error {
	switch {
	case f.Kind() == reflect.Struct:
		return g.inject(f, stack)
	case f.Kind() == reflect.Pointer && f.Type().Elem().Kind() == reflect.Struct:
		if !f.IsNil() {
			return g.inject(f.Elem(), stack)
		}
		key := "type:" + f.Type().Elem().String()
		if slices.Contains(stack, key) {
			return circular(append(stack, key))
		}
		ptr := reflect.New(f.Type().Elem())
		if err := g.inject(ptr.Elem(), append(slices.Clone(stack), key)); err != nil {
			return err
		}
		f.Set(ptr)
	}
	return nil
}

func assign(dst reflect.Value, value any) error {
	if value == nil {
		switch dst.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return nil
		}
		return fmt.Errorf("nil is not a valid %s", dst.Type())
	}

	rv := reflect.ValueOf(value)
	if rv.Type().AssignableTo(dst.Type()) {
		dst.Set(rv)
		return nil
	}

	if s, ok := value.(string); ok && isScalar(dst.Kind()) {
		converted, err := cast.FromType(s, dst.Type())
		if err != nil {
			return err
		}
		cv := reflect.ValueOf(converted)
		if !cv.Type().ConvertibleTo(dst.Type()) {
			return fmt.Errorf("%s is not convertible to %s", cv.Type(), dst.Type())
		}
		dst.Set(cv.Convert(dst.Type()))
		return nil
	}

	return fmt.Errorf("%s is not assignable to %s", rv.Type(), dst.Type())
}

func isScalar(k reflect.Kind) bool {
	switch k {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.String:
		return true
	}
	return false
}

func structType(t reflect.Type) (reflect.Type, error) {
	if t == nil {
		return nil, fmt.Errorf("type is nil")
	}
	st := t
	if st.Kind() == reflect.Pointer {
		st = st.Elem()
	}
	if st.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%s is not a struct type", t)
	}
	return st, nil
}

func circular(stack []string) error {
	return dependencyBuildingFailure(
		"circular dependency: "+strings.Join(stack, " -> "),
		nil,
		map[string]any{"stack": stack},
	)
}

func dependencyBuildingFailure(msg string, source error, meta map[string]any) error {
	return processors.NewError(processors.ErrDependencyBuildingFailure, msg, source, meta)
}

func invalidBindingType(msg string, meta map[string]any) error {
	return processors.NewError(processors.ErrInvalidBindingType, msg, nil, meta)
}
