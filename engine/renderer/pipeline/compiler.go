package pipeline

import (
	"github.com/Carmen-Shannon/oxy-chart/engine/renderer/shader"
	"github.com/gogpu/naga"
)

// Compiler validates shader source before any device program is created from it.
type Compiler interface {
	// Validate compiles the source and discards the output.
	//
	// Parameters:
	//   - source: the shader source text
	//   - lang: the shading language of the source
	//
	// Returns:
	//   - error: the compiler diagnostic, nil if the source is valid
	Validate(source string, lang shader.Language) error
}

type nagaCompiler struct{}

var _ Compiler = &nagaCompiler{}

// NewNagaCompiler returns a Compiler that validates WGSL by compiling it to SPIR-V with naga.
// GLSL passes through unvalidated and is left to the device.
func NewNagaCompiler() Compiler {
	return &nagaCompiler{}
}

func (c *nagaCompiler) Validate(source string, lang shader.Language) error {
	if lang != shader.LanguageWGSL {
		return nil
	}
	_, err := naga.Compile(source)
	return err
}
