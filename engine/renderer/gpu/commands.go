package gpu

import (
	"github.com/Carmen-Shannon/oxy-chart/common"
)

// Command is one recorded GPU operation.
type Command interface {
	command()
}

// ColorAttachment is a color output of a render pass.
type ColorAttachment struct {
	Image ImageHandle
	Level int

	// Clear is the clear color, or nil to keep the existing contents.
	Clear *common.Color
}

// DepthAttachment is the depth output of a render pass.
type DepthAttachment struct {
	Image ImageHandle
	Level int
	Clear bool
}

// BeginRenderPass starts a render pass. Draws until the matching EndRenderPass render into its attachments.
type BeginRenderPass struct {
	Label  string
	Colors []ColorAttachment
	Depth  *DepthAttachment
}

// EndRenderPass ends the current render pass.
type EndRenderPass struct{}

// Binding is a resource bound to one slot of a program.
type Binding struct {
	Group   int
	Binding int
	Kind    BindingKind

	// Data is the contents of a uniform block binding.
	Data []byte

	Image ImageHandle

	// BaseLevel and LevelCount select the mip range a texture binding exposes. LevelCount 0 means all levels.
	BaseLevel  int
	LevelCount int

	Sampler SamplerMode
	Buffer  BufferHandle
}

// Draw issues an indexed draw inside a render pass.
type Draw struct {
	Program   ProgramHandle
	Mesh      MeshHandle
	Instances int
	Bindings  []Binding
}

// Dispatch runs a compute program.
type Dispatch struct {
	Label      string
	Program    ProgramHandle
	Workgroups [3]uint32

	// Invocations is the number of meaningful invocations. Reference devices run exactly this many.
	Invocations int

	Bindings []Binding
}

// Barrier orders reads after earlier writes of the named resources within a submission.
type Barrier struct {
	Resources []string
}

func (BeginRenderPass) command() {}
func (EndRenderPass) command()   {}
func (Draw) command()            {}
func (Dispatch) command()        {}
func (Barrier) command()         {}

// CommandList is an ordered recording of GPU work submitted as a unit.
type CommandList struct {
	commands []Command
}

// NewCommandList returns an empty list.
func NewCommandList() *CommandList {
	return &CommandList{}
}

// Record appends a command.
func (cl *CommandList) Record(c Command) {
	cl.commands = append(cl.commands, c)
}

// Append moves all commands of other to the end of cl.
func (cl *CommandList) Append(other *CommandList) {
	cl.commands = append(cl.commands, other.commands...)
	other.commands = nil
}

// Commands returns the recorded commands in order.
func (cl *CommandList) Commands() []Command {
	return cl.commands
}

// Len returns the number of recorded commands.
func (cl *CommandList) Len() int {
	return len(cl.commands)
}

// Reset clears the list for reuse.
func (cl *CommandList) Reset() {
	cl.commands = cl.commands[:0]
}
