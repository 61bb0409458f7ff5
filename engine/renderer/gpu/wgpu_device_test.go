package gpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsGLSL(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"blur.glsl", true},
		{"shaders/blur.vert", true},
		{"shaders/blur.frag", true},
		{"particles.comp", true},
		{"LOUD.FRAG", true},
		{"blur.wgsl", false},
		{"builtin:mip_blit.wgsl", false},
		{"frag", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, IsGLSL(tt.path))
		})
	}
}

func TestShaderModuleDescriptorRejectsGLSL(t *testing.T) {
	for _, path := range []string{"a.glsl", "a.vert", "a.frag", "a.comp"} {
		desc, err := shaderModuleDescriptor(path, "void main() {}")
		assert.Error(t, err, path)
		assert.Nil(t, desc, path)
	}

	desc, err := shaderModuleDescriptor("a.wgsl", "@compute @workgroup_size(1) fn main() {}")
	require.NoError(t, err)
	assert.Equal(t, "a.wgsl", desc.Label)
	require.NotNil(t, desc.WGSLDescriptor)
	assert.Equal(t, "@compute @workgroup_size(1) fn main() {}", desc.WGSLDescriptor.Code)
}
