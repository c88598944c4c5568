// Package watch rebuilds source files when they change on disk.
package watch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period a file needs before it is rebuilt.
const DefaultDebounce = 500 * time.Millisecond

// BuildFunc rebuilds one file. Its error is logged, never fatal to the watch.
type BuildFunc func(path string) error

type Options struct {
	Debounce time.Duration
	// Match selects the files to rebuild. Nil matches everything.
	Match func(path string) bool
	// Initial builds every matching file once before waiting for events.
	Initial bool
	Logger  *slog.Logger
}

type Watcher struct {
	dir      string
	build    BuildFunc
	debounce time.Duration
	match    func(string) bool
	initial  bool
	logger   *slog.Logger
}

func New(dir string, build BuildFunc, opts Options) *Watcher {
	w := &Watcher{
		dir:      dir,
		build:    build,
		debounce: opts.Debounce,
		match:    opts.Match,
		initial:  opts.Initial,
		logger:   opts.Logger,
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}
	if w.match == nil {
		w.match = func(string) bool { return true }
	}
	if w.logger == nil {
		w.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return w
}

// Run watches until ctx is cancelled. Builds run one at a time on the
// calling goroutine.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch directory: %w", err)
	}
	w.logger.Info("watching for changes", "dir", w.dir, "debounce", w.debounce)

	if w.initial {
		if err := w.buildAll(); err != nil {
			return err
		}
	}

	ready := make(chan string)
	timers := make(map[string]*time.Timer)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("stopping watcher")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !w.match(event.Name) {
				continue
			}

			// restart the quiet period on every event for the file
			name := event.Name
			if t, exists := timers[name]; exists {
				t.Stop()
			}
			timers[name] = time.AfterFunc(w.debounce, func() {
				select {
				case ready <- name:
				case <-ctx.Done():
				}
			})

		case name := <-ready:
			delete(timers, name)
			w.rebuild(name)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) buildAll() error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", w.dir, err)
	}

	var paths []string
	for _, e := range entries {
		p := filepath.Join(w.dir, e.Name())
		if !e.IsDir() && w.match(p) {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)

	for _, p := range paths {
		w.rebuild(p)
	}
	return nil
}

func (w *Watcher) rebuild(path string) {
	start := time.Now()
	if err := w.build(path); err != nil {
		w.logger.Error("rebuild failed", "file", filepath.Base(path), "error", err)
		return
	}
	w.logger.Info("rebuilt", "file", filepath.Base(path), "took", time.Since(start))
}
