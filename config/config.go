// Package config loads the application file and exposes configuration
// values to handlers.
package config

import (
	"fmt"
	"maps"
	"slices"

	processors "github.com/goliatone/go-processors"
)

// Config is the read-only configuration accessor injected into handlers.
type Config struct {
	values map[string]string
}

func New(values map[string]string) Config {
	return Config{values: maps.Clone(values)}
}

// Get returns the value of key or a missing configuration parameter error.
func (c Config) Get(key string) (string, error) {
	v, ok := c.values[key]
	if !ok {
		return "", processors.NewError(
			processors.ErrMissingConfigurationParameter,
			fmt.Sprintf("Missing configuration parameter %s", key),
			nil,
			map[string]any{"key": key},
		)
	}
	return v, nil
}

func (c Config) Lookup(key string) (string, bool) {
	v, ok := c.values[key]
	return v, ok
}

// GetOr returns the value of key, or def when missing.
func (c Config) GetOr(key, def string) string {
	if v, ok := c.values[key]; ok {
		return v
	}
	return def
}

// With returns a config with overlay applied over c.
func (c Config) With(overlay map[string]string) Config {
	out := make(map[string]string, len(c.values)+len(overlay))
	maps.Copy(out, c.values)
	maps.Copy(out, overlay)
	return Config{values: out}
}

func (c Config) Values() map[string]string {
	return maps.Clone(c.values)
}

func (c Config) Keys() []string {
	return slices.Sorted(maps.Keys(c.values))
}

// IsMissingParameter reports whether err is a missing configuration parameter error.
func IsMissingParameter(err error) bool {
	return processors.HasCode(err, processors.ErrCodeMissingConfigurationParameter)
}
