package chart

// BlendMode selects the color blend state of a material pass.
type BlendMode string

const (
	BlendNone     BlendMode = "none"
	BlendAlpha    BlendMode = "alpha"
	BlendAdditive BlendMode = "additive"
)

// Valid reports whether m is a known blend mode.
func (m BlendMode) Valid() bool {
	return m == BlendNone || m == BlendAlpha || m == BlendAdditive
}

// SamplerMode selects the address and compare state used to sample a texture.
type SamplerMode string

const (
	SamplerRepeat         SamplerMode = "repeat"
	SamplerClampToEdge    SamplerMode = "clamp_to_edge"
	SamplerMirroredRepeat SamplerMode = "mirrored_repeat"

	// SamplerEnvmap repeats horizontally and clamps vertically for spherical environment maps.
	SamplerEnvmap SamplerMode = "envmap"

	// SamplerShadow is a depth comparison sampler.
	SamplerShadow SamplerMode = "shadow"
)

// Valid reports whether m is a known sampler mode.
func (m SamplerMode) Valid() bool {
	switch m {
	case SamplerRepeat, SamplerClampToEdge, SamplerMirroredRepeat, SamplerEnvmap, SamplerShadow:
		return true
	}
	return false
}

// BufferRole selects which half of a double buffer is bound.
type BufferRole int

const (
	RoleCurrent BufferRole = iota
	RoleNext
)

// String returns "current" or "next".
func (r BufferRole) String() string {
	if r == RoleNext {
		return "next"
	}
	return "current"
}

// TextureBinding binds an image to a texture name declared in a shader.
type TextureBinding struct {
	Image   string
	Sampler SamplerMode
}

// BufferBinding binds one role of a double buffer to a storage buffer name declared in a shader.
type BufferBinding struct {
	Buffer string
	Role   BufferRole
}

// MaterialPass is the shader pair and depth/blend state used for one pass id.
type MaterialPass struct {
	Vertex     string
	Fragment   string
	DepthTest  bool
	DepthWrite bool
	Blend      BlendMode
}

// Material maps pass ids to shader state and names to resources.
type Material struct {
	Passes   map[string]MaterialPass
	Textures map[string]TextureBinding
	Buffers  map[string]BufferBinding
}

// Pass returns the material pass for the given pass id.
// Objects without an entry do not take part in that pass.
func (m Material) Pass(passID string) (MaterialPass, bool) {
	mp, ok := m.Passes[passID]
	return mp, ok
}

// PassIDs returns the pass ids in sorted order.
func (m Material) PassIDs() []string {
	return sortedKeys(m.Passes)
}

func (m Material) reads() []ResourceRef {
	var refs []ResourceRef
	for _, name := range sortedKeys(m.Textures) {
		refs = append(refs, ResourceRef{ID: m.Textures[name].Image, Level: AllLevels})
	}
	for _, name := range sortedKeys(m.Buffers) {
		refs = append(refs, ResourceRef{ID: m.Buffers[name].Buffer, Level: AllLevels})
	}
	return refs
}
