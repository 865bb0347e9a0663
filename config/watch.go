package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	processors "github.com/goliatone/go-processors"
)

// DefaultWatchDebounce collapses bursts of write events into one reload.
const DefaultWatchDebounce = 100 * time.Millisecond

// WatchOption configures Watch.
type WatchOption func(*watchConfig)

type watchConfig struct {
	debounce time.Duration
	onError  func(error)
}

func WithDebounce(d time.Duration) WatchOption {
	return func(c *watchConfig) {
		c.debounce = d
	}
}

// WithErrorHandler receives load and watcher errors. Invalid files do not
// stop the watch.
func WithErrorHandler(fn func(error)) WatchOption {
	return func(c *watchConfig) {
		c.onError = fn
	}
}

// Watch reloads path whenever it changes and hands valid files to onChange.
// It blocks until ctx is done. The parent directory is watched so editors
// that replace the file by rename are handled.
func Watch(ctx context.Context, path string, onChange func(File), opts ...WatchOption) error {
	cfg := watchConfig{debounce: DefaultWatchDebounce, onError: func(error) {}}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return processors.NewError(processors.ErrInvalidConfig, "failed to resolve application file path", err, map[string]any{"path": path})
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return processors.NewError(processors.ErrInvalidConfig, "failed to create file watcher", err, nil)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(abs)); err != nil {
		return processors.NewError(processors.ErrInvalidConfig, "failed to watch application file", err, map[string]any{"path": abs})
	}

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(cfg.debounce)
			} else {
				timer.Reset(cfg.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			f, err := Load(abs)
			if err != nil {
				cfg.onError(err)
				continue
			}
			onChange(f)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			cfg.onError(err)
		}
	}
}
