package container

import (
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	processors "github.com/goliatone/go-processors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	Zone string `inject:"zone"`
}

type service struct {
	Name    string `inject:"app_name"`
	Retries int    `inject:"retries"`
	Debug   bool   `inject:"debug" default:"true"`
	Clock   *clock `inject:"clock"`
	Token   string `inject:"token,optional"`
}

type needsMissing struct {
	Secret string `inject:"secret"`
}

type wrongType struct {
	Clock *clock `inject:"app_name"`
}

type embedded struct {
	Base
	Extra string `inject:"zone"`
}

type Base struct {
	Name string `inject:"app_name"`
}

type cycleA struct {
	B *cycleB `inject:"b"`
}

type cycleB struct {
	A *cycleA `inject:"a"`
}

func baseDeps() *Dependencies {
	return NewDependencies().
		ToInstance("app_name", "processors").
		ToInstance("retries", "3").
		ToInstance("zone", "UTC").
		Bind("clock", ClassOf[*clock]())
}

func TestGetResolvesBindings(t *testing.T) {
	c := MustNew(baseDeps())

	svc, err := Get[*service](c)
	require.NoError(t, err)

	assert.Equal(t, "processors", svc.Name)
	assert.Equal(t, 3, svc.Retries)
	assert.True(t, svc.Debug)
	require.NotNil(t, svc.Clock)
	assert.Equal(t, "UTC", svc.Clock.Zone)
	assert.Empty(t, svc.Token)
}

func TestClassBindingsAreMemoizedPerGraph(t *testing.T) {
	c := MustNew(baseDeps())

	a, err := Get[*service](c)
	require.NoError(t, err)
	b, err := Get[*service](c)
	require.NoError(t, err)

	assert.NotSame(t, a, b, "requested types are built per call")
	assert.Same(t, a.Clock, b.Clock, "class bindings are shared within a graph")
}

func TestStructValueType(t *testing.T) {
	c := MustNew(baseDeps())

	v, err := c.Get(reflect.TypeFor[clock]())
	require.NoError(t, err)
	assert.Equal(t, clock{Zone: "UTC"}, v)
}

func TestMissingBindingIsDependencyBuildingFailure(t *testing.T) {
	c := MustNew(baseDeps())

	_, err := Get[*needsMissing](c)
	require.Error(t, err)
	assert.True(t, IsDependencyBuildingFailure(err))
	assert.True(t, processors.IsBootstrapFailure(err))
	assert.Contains(t, err.Error(), "secret")
}

func TestIncompatibleBindingIsInvalidBindingType(t *testing.T) {
	c := MustNew(baseDeps())

	_, err := Get[*wrongType](c)
	require.Error(t, err)
	assert.True(t, IsInvalidBindingType(err))
	assert.False(t, IsDependencyBuildingFailure(err))

	bad := MustNew(baseDeps().ToInstance("retries", "many"))
	_, err = Get[*service](bad)
	assert.True(t, IsInvalidBindingType(err))
}

func TestInvalidClassBinding(t *testing.T) {
	_, err := New(NewDependencies().ToClass("n", reflect.TypeFor[int]()))
	require.Error(t, err)
	assert.True(t, IsInvalidBindingType(err))

	_, err = MustNew().Get(reflect.TypeFor[string]())
	assert.True(t, IsInvalidBindingType(err))
}

func TestEmbeddedStructsAreInjected(t *testing.T) {
	c := MustNew(baseDeps())

	v, err := Get[*embedded](c)
	require.NoError(t, err)
	assert.Equal(t, "processors", v.Name)
	assert.Equal(t, "UTC", v.Extra)
}

func TestCircularDependency(t *testing.T) {
	c := MustNew(NewDependencies().
		Bind("a", ClassOf[*cycleA]()).
		Bind("b", ClassOf[*cycleB]()))

	_, err := Get[*cycleA](c)
	require.Error(t, err)
	assert.True(t, IsDependencyBuildingFailure(err))
	assert.Contains(t, err.Error(), "circular")
}

func TestProviders(t *testing.T) {
	calls := 0
	deps := baseDeps().
		Bind("token", Provider(func() (any, error) {
			calls++
			return "t-1", nil
		})).
		ToProvider("greeting", func(r Resolver) (any, error) {
			name, err := Lookup[string](r, "app_name")
			if err != nil {
				return nil, err
			}
			return "hello " + name, nil
		})
	c := MustNew(deps)

	svc, err := Get[*service](c)
	require.NoError(t, err)
	assert.Equal(t, "t-1", svc.Token)

	_, err = Get[*service](c)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	greeting, err := Lookup[string](c, "greeting")
	require.NoError(t, err)
	assert.Equal(t, "hello processors", greeting)

	_, err = Lookup[int](c, "greeting")
	assert.True(t, IsInvalidBindingType(err))
}

func TestProviderFailure(t *testing.T) {
	boom := errors.New("boom")
	c := MustNew(baseDeps().Bind("token", Provider(func() (any, error) { return nil, boom })))

	_, err := Get[*service](c)
	require.Error(t, err)
	assert.True(t, IsDependencyBuildingFailure(err))
	assert.ErrorIs(t, err, boom)

	cfgErr := processors.NewError(processors.ErrMissingConfigurationParameter, "missing API_KEY", nil, nil)
	c = MustNew(baseDeps().Bind("token", Provider(func() (any, error) { return nil, cfgErr })))
	_, err = Get[*service](c)
	assert.True(t, processors.HasCode(err, processors.ErrCodeMissingConfigurationParameter))
}

func TestDeferredContainer(t *testing.T) {
	registered := 0
	c := Deferred(RegisterFunc(func(d *Dependencies) {
		registered++
		d.Merge(baseDeps())
	}))

	assert.False(t, c.Built())
	assert.Equal(t, 0, registered)

	require.NoError(t, c.Resolve())
	require.NoError(t, c.Resolve())
	assert.True(t, c.Built())
	assert.Equal(t, 1, registered)
}

func TestScopeDoesNotLeakBindings(t *testing.T) {
	parent := MustNew(baseDeps())

	first := parent.Scope(NewDependencies().ToInstance("secret", "s-1"))
	second := parent.Scope(NewDependencies().ToInstance("secret", "s-2"))

	a, err := Get[*needsMissing](first)
	require.NoError(t, err)
	b, err := Get[*needsMissing](second)
	require.NoError(t, err)

	assert.Equal(t, "s-1", a.Secret)
	assert.Equal(t, "s-2", b.Secret)

	_, err = Get[*needsMissing](parent)
	assert.True(t, IsDependencyBuildingFailure(err), "parent keeps its own bindings")
}

func TestConcurrentGet(t *testing.T) {
	c := MustNew(baseDeps())

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			scoped := c.Scope(NewDependencies().ToInstance("secret", "x"))
			if _, err := Get[*needsMissing](scoped); err != nil {
				errs <- err
			}
			if _, err := Get[*service](c); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("unexpected error: %v", err)
	}
}

type Zoned struct {
	Zone string `inject:"zone"`
}

type pointerEmbedded struct {
	*Zoned
	Name string `inject:"app_name"`
}

type SelfRef struct {
	*SelfRef
}

func TestPointerEmbeddedStructsAreAllocated(t *testing.T) {
	c := MustNew(baseDeps())

	v, err := Get[*pointerEmbedded](c)
	require.NoError(t, err)
	require.NotNil(t, v.Zoned)
	assert.Equal(t, "UTC", v.Zone)
	assert.Equal(t, "processors", v.Name)
}

func TestPointerEmbeddedCycle(t *testing.T) {
	_, err := Get[*SelfRef](MustNew())
	require.Error(t, err)
	assert.True(t, IsDependencyBuildingFailure(err))
	assert.Contains(t, err.Error(), "circular")
}

func TestScopeSharesParentBuilds(t *testing.T) {
	var calls atomic.Int32
	parent := MustNew(baseDeps().Bind("token", Provider(func() (any, error) {
		calls.Add(1)
		return "t-1", nil
	})))

	var clocks []*clock
	for i := 0; i < 5; i++ {
		scoped := parent.Scope(NewDependencies().ToInstance("secret", "s"))
		svc, err := Get[*service](scoped)
		require.NoError(t, err)
		assert.Equal(t, "t-1", svc.Token)
		clocks = append(clocks, svc.Clock)
	}

	assert.Equal(t, int32(1), calls.Load())
	for _, c := range clocks[1:] {
		assert.Same(t, clocks[0], c)
	}
}

func TestScopeBuildsBindingsThatNeedScopedValues(t *testing.T) {
	parent := MustNew(baseDeps().ToProvider("session", func(r Resolver) (any, error) {
		secret, err := Lookup[string](r, "secret")
		if err != nil {
			return nil, err
		}
		return "session-" + secret, nil
	}))

	for _, secret := range []string{"a", "b"} {
		scoped := parent.Scope(NewDependencies().ToInstance("secret", secret))
		session, err := Lookup[string](scoped, "session")
		require.NoError(t, err)
		assert.Equal(t, "session-"+secret, session)
	}

	_, err := Lookup[string](parent, "session")
	assert.True(t, IsDependencyBuildingFailure(err))
}

func TestScopeOverridesParentBindings(t *testing.T) {
	parent := MustNew(baseDeps())

	scoped := parent.Scope(NewDependencies().ToInstance("zone", "CET"))
	svc, err := Get[*service](scoped)
	require.NoError(t, err)
	assert.Equal(t, "CET", svc.Clock.Zone)

	svc, err = Get[*service](parent)
	require.NoError(t, err)
	assert.Equal(t, "UTC", svc.Clock.Zone)
}
