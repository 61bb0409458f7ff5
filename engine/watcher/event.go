package watcher

import (
	"path/filepath"
	"strings"
)

// Kind classifies a changed file by what it invalidates.
type Kind int

const (
	// KindShader invalidates cached pipelines built from the file.
	KindShader Kind = iota

	// KindChart reloads the active chart.
	KindChart
)

func (k Kind) String() string {
	if k == KindChart {
		return "chart"
	}
	return "shader"
}

// Event is one pending invalidation.
type Event struct {
	// Path is the absolute, cleaned path of the changed file.
	Path string
	Kind Kind
}

var kindByExt = map[string]Kind{
	".wgsl": KindShader,
	".glsl": KindShader,
	".vert": KindShader,
	".frag": KindShader,
	".comp": KindShader,
	".yaml": KindChart,
	".yml":  KindChart,
}

// Classify returns the kind of path by extension. Files that invalidate nothing report false.
//
// Parameters:
//   - path: the file path
//
// Returns:
//   - Kind: the event kind
//   - bool: whether the file is of a known kind
func Classify(path string) (Kind, bool) {
	k, ok := kindByExt[strings.ToLower(filepath.Ext(path))]
	return k, ok
}
