package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	processors "github.com/goliatone/go-processors"
	"github.com/goliatone/go-processors/app"
	"github.com/goliatone/go-processors/config"
	"github.com/goliatone/go-processors/dispatcher"
	"github.com/goliatone/go-processors/envelope"
	"github.com/goliatone/go-processors/internal/demo"
	"github.com/goliatone/go-processors/logger"
	"github.com/goliatone/go-processors/request"
	"github.com/goliatone/go-processors/router"
)

// Globals are shared by every command.
type Globals struct {
	Config    string `short:"c" type:"path" env:"PROCESSORS_CONFIG" help:"Application file (yaml, json or toml). Defaults to the bundled demo file."`
	EnvPrefix string `default:"PROCESSORS" help:"Prefix of environment variables overlaid on configuration values."`
	LogLevel  string `enum:",trace,debug,info,warn,error" help:"Log level. Defaults to the log_level of the application file, then info."`
	LogFormat string `default:"json" enum:"json,text" help:"Log format."`

	Stdout io.Writer `kong:"-"`
	Stdin  io.Reader `kong:"-"`
	Stderr io.Writer `kong:"-"`
}

type CLI struct {
	Globals

	Routes  routesCmd  `cmd:"" help:"List the route table."`
	Route   routeCmd   `cmd:"" help:"Resolve a route key to its handler."`
	Event   eventCmd   `cmd:"" help:"Dispatch a CloudEvent and print the reply event."`
	Tasks   tasksCmd   `cmd:"" help:"List scheduled tasks."`
	RunTask runTaskCmd `cmd:"" name:"run-task" help:"Run a scheduled task now."`
	Run     runCmd     `cmd:"" help:"Run the scheduler until interrupted."`
}

func newParser(ctx context.Context, cli *CLI, stdout io.Writer, stdin io.Reader, stderr io.Writer) (*kong.Kong, error) {
	cli.Stdout, cli.Stdin, cli.Stderr = stdout, stdin, stderr

	opts := []kong.Option{
		kong.Name("processors"),
		kong.Description("Dispatch requests to extension handlers."),
		kong.UsageOnError(),
		kong.Writers(stdout, stderr),
		kong.Bind(&cli.Globals),
		kong.BindTo(ctx, (*context.Context)(nil)),
	}
	opts = append(opts, dispatchCommands()...)
	return kong.New(cli, opts...)
}

// dispatchCommands registers one command per dispatch category.
func dispatchCommands() []kong.Option {
	opts := make([]kong.Option, 0, len(dispatcher.Categories))
	for _, category := range dispatcher.Categories {
		opts = append(opts, kong.DynamicCommand(
			string(category),
			fmt.Sprintf("Dispatch a %s request document.", category),
			"Dispatch",
			&dispatchCmd{category: category},
		))
	}
	return opts
}

// logger builds the command logger. The --log-level flag wins over the
// application file level.
func (g *Globals) logger(fileLevel string) logger.Logger {
	level := g.LogLevel
	if level == "" {
		level = fileLevel
	}
	if level == "" {
		level = "info"
	}
	if g.LogFormat == "text" {
		return logger.NewText(g.Stderr, level)
	}
	return logger.NewJSON(g.Stderr, level)
}

func (g *Globals) load() (*app.App, error) {
	file, err := g.file()
	if err != nil {
		return nil, err
	}
	return app.New(demo.Catalog(), file,
		app.WithLogger(g.logger(file.LogLevel)),
		app.WithEnvPrefix(g.EnvPrefix),
	)
}

func (g *Globals) file() (config.File, error) {
	if g.Config == "" {
		return demo.File()
	}
	return config.Load(g.Config)
}

func (g *Globals) read(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(g.Stdin)
	}
	return os.ReadFile(path)
}

func (g *Globals) print(v any) error {
	enc := json.NewEncoder(g.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type dispatchCmd struct {
	category dispatcher.Category

	Input string `arg:"" optional:"" default:"-" help:"Request document path, or - for stdin."`
	Task  string `help:"Scheduled task name. Defaults to the task field of the request."`
}

func (c *dispatchCmd) Run(ctx context.Context, g *Globals) error {
	a, err := g.load()
	if err != nil {
		return err
	}
	data, err := g.read(c.Input)
	if err != nil {
		return err
	}
	req, err := request.FromJSON(data)
	if err != nil {
		return err
	}

	task := c.Task
	if task == "" && c.category == dispatcher.CategorySchedule {
		task = req.GetString("task")
	}

	res, err := a.Dispatch(ctx, c.category, req, task)
	if err != nil {
		return err
	}
	return g.print(res)
}

type eventCmd struct {
	Input string `arg:"" optional:"" default:"-" help:"CloudEvent path in structured JSON mode, or - for stdin."`
}

func (c *eventCmd) Run(ctx context.Context, g *Globals) error {
	a, err := g.load()
	if err != nil {
		return err
	}
	data, err := g.read(c.Input)
	if err != nil {
		return err
	}

	var ev cloudevents.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return processors.NewError(processors.ErrInvalidEnvelope, "failed to decode cloud event", err, nil)
	}
	reply, err := envelope.Dispatch(ctx, a, ev)
	if err != nil {
		return err
	}
	return g.print(reply)
}

type routesCmd struct {
	NotFound bool `help:"Include the not-found fallback table."`
}

func (c *routesCmd) Run(g *Globals) error {
	a, err := g.load()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(g.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ROUTE\tHANDLER")
	routes := a.File().Routes
	keys := make([]string, 0, len(routes))
	for key := range routes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(w, "%s\t%s\n", key, routes[key])
	}

	if c.NotFound {
		fallbacks := a.Dispatcher().Router().NotFoundRoutes()
		for _, key := range fallbacks.Keys() {
			fmt.Fprintf(w, "%s.*\t%s\n", key, fallbacks[key])
		}
	}
	return w.Flush()
}

type routeCmd struct {
	Key string `arg:"" help:"Route key, {scope}.{process}.{name}."`
}

func (c *routeCmd) Run(g *Globals) error {
	a, err := g.load()
	if err != nil {
		return err
	}
	route, err := router.ParseKey(c.Key)
	if err != nil {
		return err
	}
	typ, ok := a.Dispatcher().Router().Route(route)
	if !ok {
		return processors.NewError(processors.ErrInvalidRoute, "no handler for route "+route.Main(), nil, map[string]any{"route": route.Main()})
	}
	_, err = fmt.Fprintf(g.Stdout, "%s\t%s\n", route.Main(), typ)
	return err
}

type tasksCmd struct{}

func (c *tasksCmd) Run(g *Globals) error {
	a, err := g.load()
	if err != nil {
		return err
	}
	sch, err := a.Scheduler()
	if err != nil {
		return err
	}
	return g.print(sch.Snapshots())
}

type runTaskCmd struct {
	Name string `arg:"" help:"Scheduled task name."`
}

func (c *runTaskCmd) Run(ctx context.Context, g *Globals) error {
	a, err := g.load()
	if err != nil {
		return err
	}
	sch, err := a.Scheduler()
	if err != nil {
		return err
	}
	res, err := sch.RunNow(ctx, c.Name)
	if err != nil {
		return err
	}
	return g.print(res)
}

type runCmd struct {
	Watch           bool          `default:"true" negatable:"" help:"Reload the application file when it changes."`
	ShutdownTimeout time.Duration `default:"30s" help:"How long to wait for running tasks on shutdown."`
}

func (c *runCmd) Run(ctx context.Context, g *Globals) error {
	a, err := g.load()
	if err != nil {
		return err
	}
	sch, err := a.Scheduler()
	if err != nil {
		return err
	}

	log := a.Logger()
	if err := sch.Start(ctx); err != nil {
		return err
	}
	log.Info("scheduler started with %d tasks", len(sch.Tasks()))

	if c.Watch && g.Config != "" {
		go func() {
			if err := a.Watch(ctx, g.Config); err != nil {
				log.Error("stopped watching %s: %v", g.Config, err)
			}
		}()
	}

	<-ctx.Done()
	log.Info("shutting down scheduler")

	stopCtx, cancel := context.WithTimeout(context.Background(), c.ShutdownTimeout)
	defer cancel()
	return sch.Stop(stopCtx)
}
