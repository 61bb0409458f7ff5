package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/oxy-chart/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-chart/engine/renderer/shader"
)

// Kind identifies whether a pipeline is a compute pipeline or a render pipeline.
type Kind int

const (
	// KindRender indicates a render pipeline with vertex and fragment shader entry points.
	KindRender Kind = iota

	// KindCompute indicates a compute pipeline with a single compute shader entry point.
	KindCompute
)

func (k Kind) String() string {
	if k == KindCompute {
		return "compute"
	}
	return "render"
}

// State is the fixed-function configuration of a render pipeline. Compute pipelines ignore it.
type State struct {
	ColorFormats []gpu.Format
	DepthFormat  gpu.Format
	DepthTest    bool
	DepthWrite   bool
	Blend        gpu.BlendMode

	// Label names the pipeline in logs and device objects. It does not take part in identity.
	Label string
}

// Key identifies a pipeline by its shader paths and fixed-function state.
type Key struct {
	Kind     Kind
	Vertex   string
	Fragment string
	Compute  string
	State    State
}

// String returns the canonical identity of the key. Two keys with equal strings share a cache entry.
func (k Key) String() string {
	if k.Kind == KindCompute {
		return "compute|" + k.Compute
	}
	formats := make([]string, len(k.State.ColorFormats))
	for i, f := range k.State.ColorFormats {
		formats[i] = f.String()
	}
	return fmt.Sprintf("render|%s|%s|%s|%s|%t|%t|%d",
		k.Vertex, k.Fragment, strings.Join(formats, ","), k.State.DepthFormat,
		k.State.DepthTest, k.State.DepthWrite, k.State.Blend)
}

// Label returns the state label, or a name derived from the shader files.
func (k Key) Label() string {
	if k.State.Label != "" {
		return k.State.Label
	}
	if k.Kind == KindCompute {
		return filepath.Base(k.Compute)
	}
	if k.Vertex == k.Fragment {
		return filepath.Base(k.Vertex)
	}
	return filepath.Base(k.Vertex) + "+" + filepath.Base(k.Fragment)
}

// Paths returns the distinct shader paths the key references.
func (k Key) Paths() []string {
	if k.Kind == KindCompute {
		return []string{k.Compute}
	}
	if k.Vertex == k.Fragment {
		return []string{k.Vertex}
	}
	return []string{k.Vertex, k.Fragment}
}

// Pipeline is one successfully built device program together with the schema it was built from.
// A Pipeline is immutable once returned. A rebuild produces a new Pipeline with a higher Generation.
type Pipeline struct {
	Key Key

	// Program is the device program. It is released by the cache when a newer build replaces it.
	Program gpu.ProgramHandle

	// Schema is the merged uniform schema of every stage.
	Schema *shader.Schema

	// Fingerprint is the content hash of the sources and state the program was built from.
	Fingerprint string

	// Generation starts at 1 and increments with every successful rebuild of the same key.
	Generation int
}

// Workgroups returns the dispatch size for a compute pipeline covering count invocations.
//
// Parameters:
//   - count: the number of items to process
//
// Returns:
//   - [3]uint32: the workgroup counts, using the declared workgroup size x or 64 when none is declared
func (p *Pipeline) Workgroups(count int) [3]uint32 {
	size := 64
	if p.Schema != nil && p.Schema.WorkgroupSize[0] > 1 {
		size = int(p.Schema.WorkgroupSize[0])
	}
	n := (count + size - 1) / size
	return [3]uint32{uint32(max(n, 1)), 1, 1}
}
