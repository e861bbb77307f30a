package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 100 * time.Millisecond

// Watcher reloads a route table file when it changes.
//
// It watches the file's directory rather than the file itself: editors
// usually save by writing a new file and renaming it over the old one,
// which ends a watch placed on the file.
type Watcher struct {
	path     string
	logger   *slog.Logger
	watcher  *fsnotify.Watcher
	debounce *debouncer

	mu      sync.Mutex
	running bool
}

// NewWatcher creates a watcher for path. A zero interval uses DefaultDebounce.
func NewWatcher(path string, interval time.Duration, logger *slog.Logger) (*Watcher, error) {
	if interval <= 0 {
		interval = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: create watcher: %w", err)
	}
	return &Watcher{
		path:     abs,
		logger:   logger.With("component", "config-watcher"),
		watcher:  fw,
		debounce: newDebouncer(interval),
	}, nil
}

// Watch blocks until ctx is cancelled. After every burst of changes to the
// file it reloads it and calls onChange with the new table, or with the
// load error when the file is invalid. onChange runs on the debounce
// timer's goroutine, one call at a time.
func (w *Watcher) Watch(ctx context.Context, onChange func(*File, error)) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("config: watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.debounce.stop()
		w.watcher.Close()
	}()

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("config: watch %s: %w", filepath.Dir(w.path), err)
	}
	w.logger.Info("watching route table", "path", w.path)

	var reloadMu sync.Mutex
	reload := func() {
		reloadMu.Lock()
		defer reloadMu.Unlock()
		f, err := LoadFile(w.path)
		if err != nil {
			w.logger.Warn("route table reload failed", "error", err)
		} else {
			w.logger.Info("route table reloaded", "routes", len(f.Routes))
		}
		onChange(f, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("config: watcher events channel closed")
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("route table event", "path", event.Name, "op", event.Op.String())
			w.debounce.trigger(reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("config: watcher errors channel closed")
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	name, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	return name == w.path
}

// debouncer runs the last triggered callback once no trigger arrived for
// the interval.
type debouncer struct {
	interval time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

func newDebouncer(interval time.Duration) *debouncer {
	return &debouncer{interval: interval}
}

func (d *debouncer) trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, func() {
		d.mu.Lock()
		stopped := d.stopped
		d.mu.Unlock()
		if !stopped {
			fn()
		}
	})
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
