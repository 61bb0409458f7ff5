package mesh

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-chart/common"
	"github.com/Carmen-Shannon/oxy-chart/engine/renderer/gpu"
)

type gltfProvider struct {
	mu *sync.Mutex

	device   gpu.Device
	files    map[string]*gltfFile
	uploaded map[string]gpu.MeshHandle
}

var _ Provider = &gltfProvider{}

// NewGLTF creates a Provider for .gltf and .glb files. Every triangle primitive of the named
// mesh is merged into one device mesh. An empty name selects the first mesh in the file.
// Parsed files and uploads are cached by path and mesh name.
//
// Parameters:
//   - device: the device the meshes are uploaded to
//
// Returns:
//   - Provider: the glTF mesh provider
func NewGLTF(device gpu.Device) Provider {
	return &gltfProvider{
		mu:       &sync.Mutex{},
		device:   device,
		files:    make(map[string]*gltfFile),
		uploaded: make(map[string]gpu.MeshHandle),
	}
}

func (p *gltfProvider) Mesh(file, name string) (gpu.MeshHandle, error) {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".gltf", ".glb":
	default:
		return gpu.InvalidHandle, unknownMesh(file, name)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	key := file + "#" + name
	if h, ok := p.uploaded[key]; ok {
		return h, nil
	}

	f, ok := p.files[file]
	if !ok {
		var err error
		f, err = parseGLTFFile(file)
		if err != nil {
			return gpu.InvalidHandle, fmt.Errorf("load %s: %w", file, err)
		}
		p.files[file] = f
	}

	data, err := f.meshData(name)
	if err != nil {
		return gpu.InvalidHandle, fmt.Errorf("%s: %w", file, err)
	}
	data.Label = key
	h, err := p.device.CreateMesh(data)
	if err != nil {
		return gpu.InvalidHandle, err
	}
	common.Logger().Debug("uploaded glTF mesh", "file", file, "mesh", name, "vertices", len(data.Vertices)/gpu.VertexStride, "indices", len(data.Indices))
	p.uploaded[key] = h
	return h, nil
}

// meshData merges the triangle primitives of a mesh into interleaved vertex data.
func (f *gltfFile) meshData(name string) (gpu.MeshData, error) {
	doc := f.document
	var m *gltfMesh
	for i := range doc.Meshes {
		if name == "" || doc.Meshes[i].Name == name {
			m = &doc.Meshes[i]
			break
		}
	}
	if m == nil {
		return gpu.MeshData{}, fmt.Errorf("mesh %q: %w", name, common.ErrUnknownMesh)
	}

	var out gpu.MeshData
	for i, prim := range m.Primitives {
		if prim.Mode != nil && *prim.Mode != gltfPrimitiveModeTriangles {
			common.Logger().Warn("skipping non-triangle primitive", "mesh", m.Name, "primitive", i, "mode", *prim.Mode)
			continue
		}
		vertices, indices, err := f.primitiveData(prim)
		if err != nil {
			return gpu.MeshData{}, fmt.Errorf("mesh %q primitive %d: %w", m.Name, i, err)
		}
		base := uint32(len(out.Vertices) / gpu.VertexStride)
		for _, idx := range indices {
			out.Indices = append(out.Indices, base+idx)
		}
		out.Vertices = append(out.Vertices, vertices...)
	}
	if len(out.Vertices) == 0 {
		return gpu.MeshData{}, fmt.Errorf("mesh %q has no triangle primitives", m.Name)
	}
	return out, nil
}

func (f *gltfFile) primitiveData(prim gltfPrimitive) ([]float32, []uint32, error) {
	posIdx, ok := prim.Attributes["POSITION"]
	if !ok {
		return nil, nil, fmt.Errorf("missing POSITION attribute")
	}
	positions, err := f.readVec3(posIdx)
	if err != nil {
		return nil, nil, fmt.Errorf("positions: %w", err)
	}

	var indices []uint32
	if prim.Indices != nil {
		indices, err = f.readIndices(*prim.Indices)
		if err != nil {
			return nil, nil, fmt.Errorf("indices: %w", err)
		}
	} else {
		indices = make([]uint32, len(positions))
		for i := range indices {
			indices[i] = uint32(i)
		}
	}
	for _, idx := range indices {
		if int(idx) >= len(positions) {
			return nil, nil, fmt.Errorf("index %d out of range for %d vertices", idx, len(positions))
		}
	}

	var normals [][3]float32
	if idx, ok := prim.Attributes["NORMAL"]; ok {
		if normals, err = f.readVec3(idx); err != nil {
			return nil, nil, fmt.Errorf("normals: %w", err)
		}
	} else {
		normals = generateNormals(positions, indices)
	}

	var uvs [][2]float32
	if idx, ok := prim.Attributes["TEXCOORD_0"]; ok {
		if uvs, err = f.readVec2(idx); err != nil {
			return nil, nil, fmt.Errorf("texcoords: %w", err)
		}
	}
	return interleave(positions, normals, uvs), indices, nil
}

// generateNormals computes smooth vertex normals for geometry without a NORMAL attribute.
// Face normals are accumulated unnormalized, so larger triangles weigh more.
//
// Parameters:
//   - positions: the vertex positions
//   - indices: the triangle index list
//
// Returns:
//   - [][3]float32: one unit normal per vertex
func generateNormals(positions [][3]float32, indices []uint32) [][3]float32 {
	accum := make([]common.Vec3, len(positions))
	for i := 0; i+2 < len(indices); i += 3 {
		i0, i1, i2 := indices[i], indices[i+1], indices[i+2]
		p0, p1, p2 := common.Vec3(positions[i0]), common.Vec3(positions[i1]), common.Vec3(positions[i2])
		face := common.Cross(
			common.Vec3{p1[0] - p0[0], p1[1] - p0[1], p1[2] - p0[2]},
			common.Vec3{p2[0] - p0[0], p2[1] - p0[1], p2[2] - p0[2]},
		)
		for _, idx := range []uint32{i0, i1, i2} {
			for c := 0; c < 3; c++ {
				accum[idx][c] += face[c]
			}
		}
	}

	out := make([][3]float32, len(positions))
	for i, n := range accum {
		if common.Dot(n, n) < 1e-12 {
			out[i] = [3]float32{0, 1, 0}
			continue
		}
		out[i] = common.Normalize(n)
	}
	return out
}
