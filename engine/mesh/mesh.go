// Package mesh serves the vertex and index data that draw steps reference by file and name.
// Meshes are uploaded to the device once and the handle is reused by every later draw.
package mesh

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-chart/common"
	"github.com/Carmen-Shannon/oxy-chart/engine/renderer/gpu"
)

// Provider resolves a chart mesh reference to an uploaded device mesh.
type Provider interface {
	// Mesh returns the device handle of the named mesh, uploading it on first use.
	//
	// Parameters:
	//   - file: the mesh file, or chart.BuiltinMeshFile for a procedural mesh
	//   - name: the mesh name inside the file
	//
	// Returns:
	//   - gpu.MeshHandle: the uploaded mesh
	//   - error: an error wrapping common.ErrUnknownMesh when the provider does not serve the
	//     reference, any other error when serving it failed
	Mesh(file, name string) (gpu.MeshHandle, error)
}

type chain struct {
	providers []Provider
}

var _ Provider = &chain{}

// Chain returns a Provider that asks each provider in order and returns the first that serves
// the reference. A provider failing with anything other than common.ErrUnknownMesh stops the search.
//
// Parameters:
//   - providers: the providers to consult, in priority order
//
// Returns:
//   - Provider: the combined provider
func Chain(providers ...Provider) Provider {
	return &chain{providers: providers}
}

func (c *chain) Mesh(file, name string) (gpu.MeshHandle, error) {
	for _, p := range c.providers {
		h, err := p.Mesh(file, name)
		if err == nil {
			return h, nil
		}
		if !errors.Is(err, common.ErrUnknownMesh) {
			return gpu.InvalidHandle, err
		}
	}
	return gpu.InvalidHandle, unknownMesh(file, name)
}

func unknownMesh(file, name string) error {
	return fmt.Errorf("%s#%s: %w", file, name, common.ErrUnknownMesh)
}

// interleave packs positions, normals and texture coordinates into gpu.VertexStride floats per vertex.
func interleave(positions, normals [][3]float32, uvs [][2]float32) []float32 {
	out := make([]float32, 0, len(positions)*gpu.VertexStride)
	for i, p := range positions {
		var n [3]float32
		var uv [2]float32
		if i < len(normals) {
			n = normals[i]
		}
		if i < len(uvs) {
			uv = uvs[i]
		}
		out = append(out, p[0], p[1], p[2], n[0], n[1], n[2], uv[0], uv[1])
	}
	return out
}
