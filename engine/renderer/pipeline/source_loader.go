package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-chart/common"
	"github.com/Carmen-Shannon/oxy-chart/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-chart/engine/renderer/shader"
)

// BuiltinPrefix marks a shader path served from memory instead of the filesystem.
const BuiltinPrefix = "builtin:"

// Source is the content of one shader file.
type Source struct {
	Path     string
	Text     string
	Hash     string
	Language shader.Language
}

// SourceLoader reads shader files once and serves their content until invalidated.
type SourceLoader interface {
	// Load returns the content of the file at path, reading it on the first request.
	//
	// Parameters:
	//   - path: the shader path, either a file path or a builtin: path
	//
	// Returns:
	//   - Source: the file content and its hash
	//   - error: an error if the file cannot be read or the builtin is unknown
	Load(path string) (Source, error)

	// Invalidate drops the cached content of path so the next Load reads it again.
	// Builtins are never dropped.
	//
	// Returns:
	//   - Source: the dropped content
	//   - bool: true if an entry was dropped
	Invalidate(path string) (Source, bool)

	// Register serves source under path without touching the filesystem.
	Register(path, source string)
}

type sourceLoader struct {
	mu       *sync.Mutex
	files    map[string]Source
	builtins map[string]Source
}

var _ SourceLoader = &sourceLoader{}

// NewSourceLoader creates a SourceLoader with the engine builtins registered.
func NewSourceLoader() SourceLoader {
	l := &sourceLoader{
		mu:       &sync.Mutex{},
		files:    make(map[string]Source),
		builtins: make(map[string]Source),
	}
	l.Register(gpu.MipBlitPath, gpu.MipBlitShaderSource)
	return l
}

// CanonicalPath is the form of a shader path the loader and the watcher agree on.
func CanonicalPath(path string) string {
	if strings.HasPrefix(path, BuiltinPrefix) {
		return path
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

func newSource(path, text string) Source {
	lang := shader.LanguageFromPath(path)
	return Source{Path: path, Text: text, Hash: shader.SourceHash(text, lang), Language: lang}
}

func (l *sourceLoader) Register(path, source string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.builtins[CanonicalPath(path)] = newSource(path, source)
}

func (l *sourceLoader) Load(path string) (Source, error) {
	path = CanonicalPath(path)

	l.mu.Lock()
	if s, ok := l.builtins[path]; ok {
		l.mu.Unlock()
		return s, nil
	}
	if s, ok := l.files[path]; ok {
		l.mu.Unlock()
		return s, nil
	}
	l.mu.Unlock()

	if strings.HasPrefix(path, BuiltinPrefix) {
		return Source{}, fmt.Errorf("unknown builtin shader %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Source{}, fmt.Errorf("read shader: %w", err)
	}
	s := newSource(path, string(data))

	l.mu.Lock()
	l.files[path] = s
	l.mu.Unlock()
	common.Logger().Debug("shader source loaded", "path", path, "hash", s.Hash[:12])
	return s, nil
}

func (l *sourceLoader) Invalidate(path string) (Source, bool) {
	path = CanonicalPath(path)
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.files[path]
	delete(l.files, path)
	return s, ok
}
