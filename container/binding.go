package container

import (
	"maps"
	"reflect"
	"slices"
)

type bindingKind int

const (
	instanceBinding bindingKind = iota + 1
	classBinding
	providerBinding
)

func (k bindingKind) String() string {
	switch k {
	case instanceBinding:
		return "instance"
	case classBinding:
		return "class"
	case providerBinding:
		return "provider"
	default:
		return "unknown"
	}
}

// Binding is what a dependency name resolves to: a ready instance, a type to
// build, or a provider function.
type Binding struct {
	kind     bindingKind
	instance any
	class    reflect.Type
	provide  func(Resolver) (any, error)
}

// Instance binds a value that is injected as-is.
func Instance(v any) Binding {
	return Binding{kind: instanceBinding, instance: v}
}

// Class binds a struct (or struct pointer) type built on demand.
func Class(t reflect.Type) Binding {
	return Binding{kind: classBinding, class: t}
}

// ClassOf is Class for a static type.
func ClassOf[T any]() Binding {
	return Class(reflect.TypeFor[T]())
}

// Provider binds a zero-argument provider.
func Provider(fn func() (any, error)) Binding {
	if fn == nil {
		return Binding{kind: providerBinding}
	}
	return Binding{kind: providerBinding, provide: func(Resolver) (any, error) { return fn() }}
}

// ProviderWith binds a provider that can resolve other dependencies.
func ProviderWith(fn func(Resolver) (any, error)) Binding {
	return Binding{kind: providerBinding, provide: fn}
}

// ServiceProvider contributes bindings to a container.
type ServiceProvider interface {
	Register(deps *Dependencies)
}

// RegisterFunc adapts a function to ServiceProvider.
type RegisterFunc func(deps *Dependencies)

func (fn RegisterFunc) Register(deps *Dependencies) {
	if fn != nil {
		fn(deps)
	}
}

// Dependencies is a named binding table. It is not safe for concurrent
// mutation; build it before handing it to a container.
type Dependencies struct {
	bindings map[string]Binding
}

func NewDependencies() *Dependencies {
	return &Dependencies{bindings: make(map[string]Binding)}
}

// Bind sets name to b, replacing any previous binding.
func (d *Dependencies) Bind(name string, b Binding) *Dependencies {
	if d.bindings == nil {
		d.bindings = make(map[string]Binding)
	}
	d.bindings[name] = b
	return d
}

func (d *Dependencies) ToInstance(name string, v any) *Dependencies {
	return d.Bind(name, Instance(v))
}

func (d *Dependencies) ToClass(name string, t reflect.Type) *Dependencies {
	return d.Bind(name, Class(t))
}

func (d *Dependencies) ToProvider(name string, fn func(Resolver) (any, error)) *Dependencies {
	return d.Bind(name, ProviderWith(fn))
}

// Merge copies other's bindings over d's.
func (d *Dependencies) Merge(other *Dependencies) *Dependencies {
	if other == nil {
		return d
	}
	for name, b := range other.bindings {
		d.Bind(name, b)
	}
	return d
}

func (d *Dependencies) Clone() *Dependencies {
	return &Dependencies{bindings: maps.Clone(d.bindings)}
}

// Register makes a Dependencies table usable as a ServiceProvider.
func (d *Dependencies) Register(into *Dependencies) {
	into.Merge(d)
}

func (d *Dependencies) Lookup(name string) (Binding, bool) {
	b, ok := d.bindings[name]
	return b, ok
}

// Names returns bound names in sorted order.
func (d *Dependencies) Names() []string {
	return slices.Sorted(maps.Keys(d.bindings))
}

func (d *Dependencies) Len() int {
	return len(d.bindings)
}
