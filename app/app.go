// Package app wires an application file, a handler catalog and extension
// bindings into a dispatcher. The dispatcher is rebuilt and swapped
// atomically when the application file changes.
package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	processors "github.com/goliatone/go-processors"
	"github.com/goliatone/go-processors/config"
	"github.com/goliatone/go-processors/container"
	"github.com/goliatone/go-processors/dispatcher"
	"github.com/goliatone/go-processors/handler"
	"github.com/goliatone/go-processors/logger"
	"github.com/goliatone/go-processors/request"
	"github.com/goliatone/go-processors/response"
	"github.com/goliatone/go-processors/router"
	"github.com/goliatone/go-processors/schedule"
)

// Binding names registered for every application.
const (
	ConfigBinding = "config"
	LoggerBinding = "logger"
)

// App is safe for concurrent use. Dispatches always run against a complete
// snapshot of the configuration.
type App struct {
	catalog   *handler.Catalog
	logger    logger.Logger
	providers []container.ServiceProvider
	envPrefix string
	onReload  []func(config.File)

	current atomic.Pointer[state]

	mu        sync.Mutex
	scheduler *schedule.Scheduler
}

type state struct {
	file       config.File
	config     config.Config
	dispatcher *dispatcher.Dispatcher
}

// Option defines the functional option signature.
type Option func(*App)

func WithLogger(l logger.Logger) Option {
	return func(a *App) {
		a.logger = l
	}
}

// WithProviders adds extension bindings. Application bindings registered
// afterwards win on name clashes.
func WithProviders(providers ...container.ServiceProvider) Option {
	return func(a *App) {
		a.providers = append(a.providers, providers...)
	}
}

// WithEnvPrefix overlays PREFIX_KEY environment variables on file values.
func WithEnvPrefix(prefix string) Option {
	return func(a *App) {
		a.envPrefix = prefix
	}
}

// WithReloadHandler is called after every successful reload.
func WithReloadHandler(fn func(config.File)) Option {
	return func(a *App) {
		if fn != nil {
			a.onReload = append(a.onReload, fn)
		}
	}
}

// New builds an application from file. Route values name handlers in catalog.
func New(catalog *handler.Catalog, file config.File, opts ...Option) (*App, error) {
	if catalog == nil {
		catalog = handler.NewCatalog()
	}
	a := &App{catalog: catalog.Builtins()}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	a.logger = logger.Normalize(a.logger)

	s, err := a.build(file)
	if err != nil {
		return nil, err
	}
	a.current.Store(s)
	return a, nil
}

// Load reads path and builds an application from it.
func Load(catalog *handler.Catalog, path string, opts ...Option) (*App, error) {
	file, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return New(catalog, file, opts...)
}

// Bindings returns the instance bindings every application registers:
// config, logger and each configuration value under its lowercased key.
func Bindings(cfg config.Config, l logger.Logger) *container.Dependencies {
	deps := container.NewDependencies()
	deps.ToInstance(ConfigBinding, cfg)
	deps.ToInstance(LoggerBinding, l)
	for key, value := range cfg.Values() {
		deps.ToInstance(strings.ToLower(key), strings.TrimSpace(value))
	}
	return deps
}

// Routes resolves handler names of an application file through catalog.
func Routes(catalog *handler.Catalog, file config.File) (routes, notFound router.Table, err error) {
	routes = make(router.Table, len(file.Routes))
	for key, name := range file.Routes {
		route, err := router.ParseKey(key)
		if err != nil {
			return nil, nil, err
		}
		typ, err := lookup(catalog, key, name)
		if err != nil {
			return nil, nil, err
		}
		routes[route.Main()] = typ
	}

	notFound = make(router.Table, len(file.NotFound))
	for key, name := range file.NotFound {
		typ, err := lookup(catalog, key, name)
		if err != nil {
			return nil, nil, err
		}
		notFound[key] = typ
	}
	return routes, notFound, nil
}

func lookup(catalog *handler.Catalog, key, name string) (handler.Type, error) {
	typ, ok := catalog.Lookup(name)
	if !ok {
		return nil, processors.NewError(
			processors.ErrInvalidHandler,
			fmt.Sprintf("route %s references unknown handler %q", key, name),
			nil,
			map[string]any{"route": key, "handler": name},
		)
	}
	return typ, nil
}

func (a *App) build(file config.File) (*state, error) {
	if a.envPrefix != "" {
		file = file.WithEnv(a.envPrefix)
	}
	if err := file.Validate(); err != nil {
		return nil, err
	}

	routes, notFound, err := Routes(a.catalog, file)
	if err != nil {
		return nil, err
	}

	cfg := file.Config()
	providers := append([]container.ServiceProvider{}, a.providers...)
	providers = append(providers, Bindings(cfg, a.logger))

	c := container.Deferred(providers...)
	if err := c.Resolve(); err != nil {
		return nil, err
	}

	return &state{
		file:   file,
		config: cfg,
		dispatcher: dispatcher.New(
			router.New(routes, notFound),
			c,
			dispatcher.WithLogger(a.logger),
			dispatcher.WithRescheduleCountdown(file.RescheduleSeconds),
		),
	}, nil
}

// Reload rebuilds the dispatcher from file and swaps it in. The previous
// dispatcher stays active when file is invalid.
func (a *App) Reload(file config.File) error {
	s, err := a.build(file)
	if err != nil {
		a.logger.Error("application reload rejected: %v", err)
		return err
	}

	a.mu.Lock()
	sch := a.scheduler
	a.mu.Unlock()
	if sch != nil {
		if err := sch.Load(s.file.Schedules); err != nil {
			a.logger.Error("application reload rejected: %v", err)
			return err
		}
	}

	a.current.Store(s)
	a.logger.Info("application reloaded with %d routes", len(s.file.Routes))
	for _, fn := range a.onReload {
		fn(s.file)
	}
	return nil
}

// Watch reloads the application whenever path changes, until ctx is done.
func (a *App) Watch(ctx context.Context, path string, opts ...config.WatchOption) error {
	opts = append([]config.WatchOption{config.WithErrorHandler(func(err error) {
		a.logger.Error("application file watch: %v", err)
	})}, opts...)
	return config.Watch(ctx, path, func(f config.File) {
		_ = a.Reload(f)
	}, opts...)
}

// Scheduler returns the application scheduler, creating it with the file
// schedules on first use. Reloads replace its tasks.
func (a *App) Scheduler(opts ...schedule.Option) (*schedule.Scheduler, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.scheduler != nil {
		return a.scheduler, nil
	}

	sch := schedule.NewScheduler(a, append([]schedule.Option{schedule.WithLogger(a.logger)}, opts...)...)
	if err := sch.Load(a.File().Schedules); err != nil {
		return nil, err
	}
	a.scheduler = sch
	return sch, nil
}

func (a *App) Dispatcher() *dispatcher.Dispatcher {
	return a.current.Load().dispatcher
}

func (a *App) Config() config.Config {
	return a.current.Load().config
}

// File returns the active application file, environment overlay included.
func (a *App) File() config.File {
	return a.current.Load().file
}

func (a *App) Catalog() *handler.Catalog {
	return a.catalog
}

func (a *App) Logger() logger.Logger {
	return a.logger
}

func (a *App) DispatchProcess(ctx context.Context, req request.Request) (response.Processing, error) {
	return a.Dispatcher().DispatchProcess(ctx, req)
}

func (a *App) DispatchValidation(ctx context.Context, req request.Request) (response.Validation, error) {
	return a.Dispatcher().DispatchValidation(ctx, req)
}

func (a *App) DispatchAction(ctx context.Context, req request.Request) (response.Action, error) {
	return a.Dispatcher().DispatchAction(ctx, req)
}

func (a *App) DispatchCustomEvent(ctx context.Context, req request.Request) (response.CustomEvent, error) {
	return a.Dispatcher().DispatchCustomEvent(ctx, req)
}

func (a *App) DispatchScheduleProcess(ctx context.Context, req request.Request, task string) (response.Scheduled, error) {
	return a.Dispatcher().DispatchScheduleProcess(ctx, req, task)
}

func (a *App) Dispatch(ctx context.Context, category dispatcher.Category, req request.Request, task string) (any, error) {
	return a.Dispatcher().Dispatch(ctx, category, req, task)
}
