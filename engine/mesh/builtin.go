package mesh

import (
	"fmt"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-chart/engine/chart"
	"github.com/Carmen-Shannon/oxy-chart/engine/renderer/gpu"
)

const (
	// Fullscreen is a single triangle covering clip space.
	Fullscreen = "fullscreen"

	// Quad is a two-triangle square spanning [-1, 1] in x and y, facing +z.
	Quad = "quad"

	// Cube is a cube spanning [-1, 1] on every axis with per-face normals.
	Cube = "cube"
)

var builtinMeshes = map[string]func() gpu.MeshData{
	Fullscreen: fullscreenData,
	Quad:       quadData,
	Cube:       cubeData,
}

type builtin struct {
	mu *sync.Mutex

	device   gpu.Device
	uploaded map[string]gpu.MeshHandle
}

var _ Provider = &builtin{}

// NewBuiltin creates a Provider for the procedural meshes. It serves file chart.BuiltinMeshFile
// with a mesh name, or a file of the form "builtin:<name>".
//
// Parameters:
//   - device: the device the meshes are uploaded to
//
// Returns:
//   - Provider: the builtin mesh provider
func NewBuiltin(device gpu.Device) Provider {
	return &builtin{
		mu:       &sync.Mutex{},
		device:   device,
		uploaded: make(map[string]gpu.MeshHandle),
	}
}

func (b *builtin) Mesh(file, name string) (gpu.MeshHandle, error) {
	switch {
	case file == chart.BuiltinMeshFile:
	case strings.HasPrefix(file, chart.BuiltinPrefix) && name == "":
		name = strings.TrimPrefix(file, chart.BuiltinPrefix)
	default:
		return gpu.InvalidHandle, unknownMesh(file, name)
	}
	gen, ok := builtinMeshes[name]
	if !ok {
		return gpu.InvalidHandle, unknownMesh(file, name)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if h, ok := b.uploaded[name]; ok {
		return h, nil
	}
	h, err := b.device.CreateMesh(gen())
	if err != nil {
		return gpu.InvalidHandle, fmt.Errorf("upload builtin mesh %q: %w", name, err)
	}
	b.uploaded[name] = h
	return h, nil
}

func fullscreenData() gpu.MeshData {
	up := [3]float32{0, 0, 1}
	return gpu.MeshData{
		Label:    Fullscreen,
		Vertices: interleave([][3]float32{{-1, -1, 0}, {3, -1, 0}, {-1, 3, 0}}, [][3]float32{up, up, up}, [][2]float32{{0, 1}, {2, 1}, {0, -1}}),
		Indices:  []uint32{0, 1, 2},
	}
}

func quadData() gpu.MeshData {
	up := [3]float32{0, 0, 1}
	return gpu.MeshData{
		Label:    Quad,
		Vertices: interleave([][3]float32{{-1, -1, 0}, {1, -1, 0}, {1, 1, 0}, {-1, 1, 0}}, [][3]float32{up, up, up, up}, [][2]float32{{0, 1}, {1, 1}, {1, 0}, {0, 0}}),
		Indices:  []uint32{0, 1, 2, 0, 2, 3},
	}
}

// cubeData builds four vertices per face so each face carries its own normal.
func cubeData() gpu.MeshData {
	type face struct {
		normal, u, v [3]float32
	}
	faces := []face{
		{normal: [3]float32{1, 0, 0}, u: [3]float32{0, 0, -1}, v: [3]float32{0, 1, 0}},
		{normal: [3]float32{-1, 0, 0}, u: [3]float32{0, 0, 1}, v: [3]float32{0, 1, 0}},
		{normal: [3]float32{0, 1, 0}, u: [3]float32{1, 0, 0}, v: [3]float32{0, 0, -1}},
		{normal: [3]float32{0, -1, 0}, u: [3]float32{1, 0, 0}, v: [3]float32{0, 0, 1}},
		{normal: [3]float32{0, 0, 1}, u: [3]float32{1, 0, 0}, v: [3]float32{0, 1, 0}},
		{normal: [3]float32{0, 0, -1}, u: [3]float32{-1, 0, 0}, v: [3]float32{0, 1, 0}},
	}
	corners := [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}

	var positions, normals [][3]float32
	var uvs [][2]float32
	var indices []uint32
	for _, f := range faces {
		base := uint32(len(positions))
		for _, c := range corners {
			var p [3]float32
			for i := range p {
				p[i] = f.normal[i] + c[0]*f.u[i] + c[1]*f.v[i]
			}
			positions = append(positions, p)
			normals = append(normals, f.normal)
			uvs = append(uvs, [2]float32{(c[0] + 1) / 2, (1 - c[1]) / 2})
		}
		indices = append(indices, base, base+1, base+2, base, base+2, base+3)
	}
	return gpu.MeshData{Label: Cube, Vertices: interleave(positions, normals, uvs), Indices: indices}
}
