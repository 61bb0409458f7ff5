package watcher

import (
	"github.com/gobwas/glob"
)

type WatcherBuilderOption func(*watcher) error

// WithInclude limits events to files matching at least one of the patterns. Patterns are
// matched against the slash-separated absolute path, so "**/*.wgsl" matches every WGSL file.
//
// Parameters:
//   - patterns: glob patterns
//
// Returns:
//   - WatcherBuilderOption: a function that compiles and adds the patterns
func WithInclude(patterns ...string) WatcherBuilderOption {
	return func(w *watcher) error {
		globs, err := compile(patterns)
		if err != nil {
			return err
		}
		w.include = append(w.include, globs...)
		return nil
	}
}

// WithExclude drops events for files matching any of the patterns, even if they are included.
//
// Parameters:
//   - patterns: glob patterns
//
// Returns:
//   - WatcherBuilderOption: a function that compiles and adds the patterns
func WithExclude(patterns ...string) WatcherBuilderOption {
	return func(w *watcher) error {
		globs, err := compile(patterns)
		if err != nil {
			return err
		}
		w.exclude = append(w.exclude, globs...)
		return nil
	}
}

// WithQueue makes the watcher push into q instead of a queue of its own.
//
// Parameters:
//   - q: the queue to push into
//
// Returns:
//   - WatcherBuilderOption: a function that sets the queue
func WithQueue(q *Queue) WatcherBuilderOption {
	return func(w *watcher) error {
		w.queue = q
		return nil
	}
}

func compile(patterns []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}
