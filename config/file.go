package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	apperrors "github.com/goliatone/go-errors"
	processors "github.com/goliatone/go-processors"
	"github.com/goliatone/go-processors/router"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Schedule binds a scheduled task to a cron expression.
type Schedule struct {
	Task       string `yaml:"task" toml:"task" json:"task"`
	Expression string `yaml:"expression" toml:"expression" json:"expression"`
	Timeout    string `yaml:"timeout" toml:"timeout" json:"timeout"`
	Retries    int    `yaml:"retries" toml:"retries" json:"retries"`
}

// TimeoutDuration parses Timeout; empty means no timeout.
func (s Schedule) TimeoutDuration() time.Duration {
	if s.Timeout == "" {
		return 0
	}
	d, _ := time.ParseDuration(s.Timeout)
	return d
}

func (s Schedule) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Task, validation.Required, validation.By(noSpaces)),
		validation.Field(&s.Expression, validation.Required, validation.By(cronExpression)),
		validation.Field(&s.Timeout, validation.By(duration)),
		validation.Field(&s.Retries, validation.Min(0)),
	)
}

// File is the application file. Routes and NotFound map route keys to
// handler names registered in a catalog.
type File struct {
	Routes            map[string]string `yaml:"routes" toml:"routes" json:"routes"`
	NotFound          map[string]string `yaml:"not_found" toml:"not_found" json:"not_found"`
	RescheduleSeconds int               `yaml:"reschedule_seconds" toml:"reschedule_seconds" json:"reschedule_seconds"`
	Schedules         []Schedule        `yaml:"schedules" toml:"schedules" json:"schedules"`
	Values            map[string]string `yaml:"values" toml:"values" json:"values"`
	LogLevel          string            `yaml:"log_level" toml:"log_level" json:"log_level"`
}

// Validate checks route keys, schedules and the reschedule countdown.
func (f File) Validate() error {
	errs := validation.Errors{}
	for key := range f.Routes {
		if _, err := router.ParseKey(key); err != nil {
			errs["routes."+key] = err
		}
	}
	for key := range f.NotFound {
		scope, process, ok := strings.Cut(key, ".")
		if !ok {
			errs["not_found."+key] = fmt.Errorf("not found key must be scope.process")
			continue
		}
		if _, err := router.NewRoute(router.Scope(scope), router.Process(process), ""); err != nil {
			errs["not_found."+key] = err
		}
	}
	for i, s := range f.Schedules {
		if err := s.Validate(); err != nil {
			errs[fmt.Sprintf("schedules.%d", i)] = err
		}
	}
	if f.RescheduleSeconds < 0 {
		errs["reschedule_seconds"] = fmt.Errorf("must not be negative")
	}
	if err := errs.Filter(); err != nil {
		verr := apperrors.FromOzzoValidation(err, "invalid application file")
		verr.TextCode = processors.ErrCodeInvalidConfig
		return verr
	}
	return nil
}

// Config returns the accessor over Values.
func (f File) Config() Config {
	return New(f.Values)
}

// Format is a supported file format.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
)

// FormatFromPath picks the format from the file extension, defaulting to YAML.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML
	case ".json":
		return FormatJSON
	default:
		return FormatYAML
	}
}

// Parse decodes and validates an application file.
func Parse(data []byte, format Format) (File, error) {
	var f File
	var err error
	switch format {
	case FormatTOML:
		err = toml.Unmarshal(data, &f)
	default:
		// yaml can handle JSON too
		err = yaml.Unmarshal(data, &f)
	}
	if err != nil {
		return f, processors.NewError(processors.ErrInvalidConfig, "failed to decode application file", err, map[string]any{"format": string(format)})
	}
	return f, f.Validate()
}

// Load reads and parses path.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, processors.NewError(processors.ErrInvalidConfig, "failed to read application file", err, map[string]any{"path": path})
	}
	return Parse(data, FormatFromPath(path))
}

// EnvValues collects PREFIX_KEY=value pairs from environ, keyed by KEY.
func EnvValues(prefix string, environ []string) map[string]string {
	out := map[string]string{}
	if prefix == "" {
		return out
	}
	prefix = strings.TrimSuffix(prefix, "_") + "_"
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, prefix) || len(key) == len(prefix) {
			continue
		}
		out[strings.TrimPrefix(key, prefix)] = value
	}
	return out
}

// WithEnv overlays process environment values with prefix on f.Values.
func (f File) WithEnv(prefix string) File {
	return f.withValues(EnvValues(prefix, os.Environ()))
}

func (f File) withValues(overlay map[string]string) File {
	if len(overlay) == 0 {
		return f
	}
	values := make(map[string]string, len(f.Values)+len(overlay))
	for k, v := range f.Values {
		values[k] = v
	}
	for k, v := range overlay {
		values[k] = v
	}
	f.Values = values
	return f
}

func noSpaces(value any) error {
	if s, _ := value.(string); strings.ContainsAny(s, " \t\n") {
		return validation.NewError("validation_no_spaces", "must not contain spaces")
	}
	return nil
}

func cronExpression(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := cron.ParseStandard(s); err != nil {
		return validation.NewError("validation_cron", "invalid cron expression: "+err.Error())
	}
	return nil
}

func duration(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := time.ParseDuration(s); err != nil {
		return validation.NewError("validation_duration", "invalid duration")
	}
	return nil
}
