package watch

import (
	"github.com/fsnotify/fsnotify"
	"github.com/lodestone-mc/lodestone/pkg/errors"
	"github.com/lodestone-mc/lodestone/pkg/logging"
	"github.com/rs/zerolog"
)

// Registry owns the OS watch subscriptions and the path → target map.
// The map is a bijection: each watched path has exactly one semantic
// target at any instant.
//
// Registry methods are called only from the backend's control path and
// need no locking.
type Registry struct {
	watcher *fsnotify.Watcher
	targets map[string]Target
	log     zerolog.Logger
}

// NewRegistry creates a registry backed by an OS watcher.
func NewRegistry() (*Registry, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrWatchSetup, "creating filesystem watcher")
	}
	return &Registry{
		watcher: watcher,
		targets: make(map[string]Target),
		log:     logging.GetLogger("watch"),
	}, nil
}

// Watch subscribes to path and records its target. Watching an already
// registered path replaces its target.
func (r *Registry) Watch(path string, target Target) error {
	if err := r.watcher.Add(path); err != nil {
		return errors.Wrapf(err, errors.ErrWatchSetup, "watching %s", path)
	}
	r.targets[path] = target
	return nil
}

// Insert records a target for a path without touching the OS
// subscription. Used after a rename, where the existing watch follows
// the moved directory.
func (r *Registry) Insert(path string, target Target) {
	r.targets[path] = target
}

// Lookup resolves a path to its target.
func (r *Registry) Lookup(path string) (Target, bool) {
	target, ok := r.targets[path]
	return target, ok
}

// Remove forgets a path, returning the target it had. The OS
// subscription is dropped best-effort; on deletions the kernel has
// usually dropped it already.
func (r *Registry) Remove(path string) (Target, bool) {
	target, ok := r.targets[path]
	if !ok {
		return Target{}, false
	}
	delete(r.targets, path)
	if err := r.watcher.Remove(path); err != nil {
		r.log.Trace().Err(err).Str("path", path).Msg("Watch already gone")
	}
	return target, true
}

// RemoveMatching forgets every path whose target satisfies pred,
// returning the removed paths. Used to tear down all watches belonging
// to one instance.
func (r *Registry) RemoveMatching(pred func(Target) bool) []string {
	var removed []string
	for path, target := range r.targets {
		if !pred(target) {
			continue
		}
		delete(r.targets, path)
		if err := r.watcher.Remove(path); err != nil {
			r.log.Trace().Err(err).Str("path", path).Msg("Watch already gone")
		}
		removed = append(removed, path)
	}
	return removed
}

// Len returns the number of watched paths.
func (r *Registry) Len() int {
	return len(r.targets)
}

// Events exposes the raw OS notification stream.
func (r *Registry) Events() <-chan fsnotify.Event {
	return r.watcher.Events
}

// Errors exposes the OS watcher's error stream.
func (r *Registry) Errors() <-chan error {
	return r.watcher.Errors
}

// Close drops all subscriptions.
func (r *Registry) Close() error {
	return r.watcher.Close()
}
