// Package cachewatch backs the `kb plugins:watch` built-in (SPEC_FULL.md
// §C): watches every workspace package.json for changes and invokes a
// caller-supplied rescan callback, keeping the discovery Cache Store warm.
// A host housekeeping command, not one of the third-party watcher plugins
// spec.md §1 places out of scope.
package cachewatch

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Rescan is invoked once per detected change, debounced by the caller if
// desired; cachewatch itself forwards every fsnotify Write, Create, Remove
// and Rename event.
type Rescan func()

// Watcher watches a set of package.json paths and calls Rescan on change.
type Watcher struct {
	fsw    *fsnotify.Watcher
	logger *zap.SugaredLogger
}

// New constructs a Watcher over the given package root directories (each
// assumed to contain a package.json worth tracking).
func New(pkgRoots []string, logger *zap.SugaredLogger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, root := range pkgRoots {
		_ = fsw.Add(filepath.Join(root, "package.json"))
	}
	return &Watcher{fsw: fsw, logger: logger}, nil
}

// Run blocks, invoking rescan on every relevant fsnotify event, until stop
// is closed. Intended to run in the one legitimate never-returning handler
// spec.md §5 allows, terminated only via the shutdown hook registry.
func (w *Watcher) Run(stop <-chan struct{}, rescan Rescan) {
	for {
		select {
		case <-stop:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				rescan()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if w.logger != nil {
				w.logger.Warnw("cachewatch error", "error", err)
			}
		}
	}
}

// Close releases the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
