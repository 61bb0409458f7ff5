// Package watcher turns file system changes under the chart and shader roots into invalidation
// events. It never rebuilds anything itself: the frame loop drains the queue and invalidates.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/Carmen-Shannon/oxy-chart/common"
	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"
)

// Watcher feeds a Queue from file system notifications.
type Watcher interface {
	// Run pumps notifications into the queue until ctx is cancelled or the watcher is closed.
	//
	// Parameters:
	//   - ctx: cancels the pump
	//
	// Returns:
	//   - error: nil on cancellation or close
	Run(ctx context.Context) error

	// Queue returns the queue events are pushed into.
	Queue() *Queue

	// Close stops watching. Run returns once the notification channels close.
	Close() error
}

type watcher struct {
	fs        *fsnotify.Watcher
	queue     *Queue
	include   []glob.Glob
	exclude   []glob.Glob
	closeOnce *sync.Once
}

var _ Watcher = &watcher{}

// NewWatcher watches every directory under each root, including directories created later.
//
// Parameters:
//   - roots: directories to watch recursively
//   - opts: optional builder options
//
// Returns:
//   - Watcher: the watcher, not yet pumping
//   - error: error if a pattern is malformed or a root cannot be watched
func NewWatcher(roots []string, opts ...WatcherBuilderOption) (Watcher, error) {
	w := &watcher{
		queue:     NewQueue(),
		closeOnce: &sync.Once{},
	}
	for _, opt := range opts {
		if err := opt(w); err != nil {
			return nil, fmt.Errorf("watcher option: %w", err)
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	w.fs = fsw
	for _, root := range roots {
		if err := w.addRecursive(root); err != nil {
			fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *watcher) Queue() *Queue {
	return w.queue
}

func (w *watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handle(e)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			common.Logger().Warn("file watcher error", "err", err)
		}
	}
}

func (w *watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		err = w.fs.Close()
	})
	return err
}

func (w *watcher) handle(e fsnotify.Event) {
	if e.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(e.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(e.Name); err != nil {
				common.Logger().Warn("watch new directory", "dir", e.Name, "err", err)
			}
			return
		}
	}
	if e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return
	}

	path, err := filepath.Abs(e.Name)
	if err != nil {
		path = filepath.Clean(e.Name)
	}
	kind, ok := Classify(path)
	if !ok || !w.matches(path) {
		return
	}
	common.Logger().Debug("file changed", "path", path, "kind", kind)
	w.queue.Push(Event{Path: path, Kind: kind})
}

// matches applies the include and exclude patterns. No include patterns means everything is included.
func (w *watcher) matches(path string) bool {
	slashed := filepath.ToSlash(path)
	for _, g := range w.exclude {
		if g.Match(slashed) {
			return false
		}
	}
	if len(w.include) == 0 {
		return true
	}
	for _, g := range w.include {
		if g.Match(slashed) {
			return true
		}
	}
	return false
}

func (w *watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("watch %q: %w", path, err)
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fs.Add(path); err != nil {
			return fmt.Errorf("watch %q: %w", path, err)
		}
		return nil
	})
}
