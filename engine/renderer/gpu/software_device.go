package gpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-chart/common"
)

// FragmentKernel computes the outputs of one pixel for the software device.
type FragmentKernel func(in *FragmentInput) FragmentOutput

// ComputeKernel runs one compute invocation for the software device.
type ComputeKernel func(in *ComputeInput)

// FragmentOutput is written to the color attachments in order, and to depth when enabled.
type FragmentOutput struct {
	Colors  []common.Color
	Depth   float32
	Discard bool
}

// SoftwareDevice is a deterministic CPU implementation of Device. Render programs run a
// registered FragmentKernel for every pixel of the pass attachments, compute programs run a
// registered ComputeKernel once per invocation. Kernels are looked up by shader path.
type SoftwareDevice interface {
	Device
	Presenter

	// RegisterFragmentKernel binds a kernel to a fragment shader path.
	RegisterFragmentKernel(path string, k FragmentKernel)

	// RegisterComputeKernel binds a kernel to a compute shader path.
	RegisterComputeKernel(path string, k ComputeKernel)

	// ReadImage returns a copy of one mip level.
	ReadImage(h ImageHandle, level int) ([]common.Color, int, int, error)

	// ReadBuffer returns a copy of a buffer as float32 values.
	ReadBuffer(h BufferHandle) ([]float32, error)

	// ImageDescriptor returns the descriptor an image was created with.
	ImageDescriptor(h ImageHandle) (ImageDescriptor, bool)

	// Barriers returns every barrier seen by Submit, in order.
	Barriers() []Barrier

	// Submissions returns the number of Submit calls.
	Submissions() int

	// Presents returns the number of Present calls.
	Presents() int

	// LiveImages returns the number of images not yet destroyed, surface excluded.
	LiveImages() int

	// LivePrograms returns the number of programs not yet released.
	LivePrograms() int
}

type softLevel struct {
	width  int
	height int
	texels []common.Color
}

type softImage struct {
	desc   ImageDescriptor
	levels []softLevel
}

type softProgram struct {
	render   *RenderProgramDescriptor
	compute  *ComputeProgramDescriptor
	fragment FragmentKernel
	kernel   ComputeKernel
}

type softwareDevice struct {
	mu *sync.Mutex

	nextHandle uint64
	images     map[ImageHandle]*softImage
	buffers    map[BufferHandle][]float32
	meshes     map[MeshHandle]MeshData
	programs   map[ProgramHandle]*softProgram

	fragmentKernels  map[string]FragmentKernel
	computeKernels   map[string]ComputeKernel
	fallbackFragment FragmentKernel

	surface     ImageHandle
	limits      Limits
	barriers    []Barrier
	submissions int
	presents    int
}

var _ SoftwareDevice = &softwareDevice{}

// NewSoftwareDevice creates a software device with a presentation surface of the given size.
//
// Parameters:
//   - width, height: the surface size in pixels
//   - opts: optional configuration
//
// Returns:
//   - SoftwareDevice: the device
func NewSoftwareDevice(width, height int, opts ...SoftwareDeviceBuilderOption) SoftwareDevice {
	d := &softwareDevice{
		mu:              &sync.Mutex{},
		images:          make(map[ImageHandle]*softImage),
		buffers:         make(map[BufferHandle][]float32),
		meshes:          make(map[MeshHandle]MeshData),
		programs:        make(map[ProgramHandle]*softProgram),
		fragmentKernels: map[string]FragmentKernel{MipBlitPath: mipBlitKernel},
		computeKernels:  make(map[string]ComputeKernel),
		limits:          Limits{MaxImageDimension: 16384},
	}
	for _, opt := range opts {
		opt(d)
	}
	d.surface = d.allocImage(ImageDescriptor{Label: "surface", Width: width, Height: height, MipLevels: 1, Format: FormatBGRA8Unorm})
	return d
}

func (d *softwareDevice) handle() uint64 {
	d.nextHandle++
	return d.nextHandle
}

func newSoftImage(desc ImageDescriptor) *softImage {
	img := &softImage{desc: desc}
	levels := max(desc.MipLevels, 1)
	for l := 0; l < levels; l++ {
		w, h := common.MipExtent(desc.Width, l), common.MipExtent(desc.Height, l)
		img.levels = append(img.levels, softLevel{width: w, height: h, texels: make([]common.Color, w*h)})
	}
	return img
}

func (d *softwareDevice) allocImage(desc ImageDescriptor) ImageHandle {
	h := ImageHandle(d.handle())
	d.images[h] = newSoftImage(desc)
	return h
}

func (d *softwareDevice) CreateImage(desc ImageDescriptor) (ImageHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if desc.Width <= 0 || desc.Height <= 0 {
		return InvalidHandle, fmt.Errorf("image %q: invalid size %dx%d", desc.Label, desc.Width, desc.Height)
	}
	if desc.Width > d.limits.MaxImageDimension || desc.Height > d.limits.MaxImageDimension {
		return InvalidHandle, fmt.Errorf("image %q: %dx%d exceeds device limit %d", desc.Label, desc.Width, desc.Height, d.limits.MaxImageDimension)
	}
	return d.allocImage(desc), nil
}

func (d *softwareDevice) DestroyImage(h ImageHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if h == d.surface {
		return
	}
	delete(d.images, h)
}

func (d *softwareDevice) CreateBuffer(desc BufferDescriptor) (BufferHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if desc.Size == 0 || desc.Size%4 != 0 {
		return InvalidHandle, fmt.Errorf("buffer %q: size %d must be a positive multiple of 4", desc.Label, desc.Size)
	}
	h := BufferHandle(d.handle())
	d.buffers[h] = make([]float32, desc.Size/4)
	return h, nil
}

func (d *softwareDevice) DestroyBuffer(h BufferHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.buffers, h)
}

func (d *softwareDevice) WriteBuffer(h BufferHandle, offset uint64, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	buf, ok := d.buffers[h]
	if !ok {
		return fmt.Errorf("write buffer: unknown handle %d", h)
	}
	if offset%4 != 0 || len(data)%4 != 0 {
		return errors.New("write buffer: offset and length must be multiples of 4")
	}
	start := int(offset / 4)
	if start+len(data)/4 > len(buf) {
		return fmt.Errorf("write buffer: %d bytes at offset %d overflow buffer of %d bytes", len(data), offset, len(buf)*4)
	}
	for i := 0; i < len(data)/4; i++ {
		buf[start+i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return nil
}

func (d *softwareDevice) CreateMesh(data MeshData) (MeshHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(data.Vertices)%VertexStride != 0 {
		return InvalidHandle, fmt.Errorf("mesh %q: vertex data is not a multiple of the vertex stride", data.Label)
	}
	h := MeshHandle(d.handle())
	d.meshes[h] = data
	return h, nil
}

func (d *softwareDevice) CreateRenderProgram(desc RenderProgramDescriptor) (ProgramHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	k, ok := d.fragmentKernels[desc.FragmentPath]
	if !ok && d.fallbackFragment != nil {
		k, ok = d.fallbackFragment, true
	}
	if !ok {
		return InvalidHandle, fmt.Errorf("render program %q: no fragment kernel registered for %q", desc.Label, desc.FragmentPath)
	}
	h := ProgramHandle(d.handle())
	d.programs[h] = &softProgram{render: &desc, fragment: k}
	return h, nil
}

func (d *softwareDevice) CreateComputeProgram(desc ComputeProgramDescriptor) (ProgramHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	k, ok := d.computeKernels[desc.Path]
	if !ok {
		return InvalidHandle, fmt.Errorf("compute program %q: no compute kernel registered for %q", desc.Label, desc.Path)
	}
	h := ProgramHandle(d.handle())
	d.programs[h] = &softProgram{compute: &desc, kernel: k}
	return h, nil
}

func (d *softwareDevice) ReleaseProgram(h ProgramHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.programs, h)
}

func (d *softwareDevice) Surface() ImageHandle {
	return d.surface
}

func (d *softwareDevice) SurfaceFormat() Format {
	return FormatBGRA8Unorm
}

func (d *softwareDevice) Limits() Limits {
	return d.limits
}

func (d *softwareDevice) Present() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.presents++
}

func (d *softwareDevice) ConfigureSurface(width, height int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	desc := d.images[d.surface].desc
	desc.Width, desc.Height = width, height
	d.images[d.surface] = newSoftImage(desc)
}

func (d *softwareDevice) Presents() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.presents
}

func (d *softwareDevice) RegisterFragmentKernel(path string, k FragmentKernel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fragmentKernels[path] = k
}

func (d *softwareDevice) RegisterComputeKernel(path string, k ComputeKernel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.computeKernels[path] = k
}

func (d *softwareDevice) ReadImage(h ImageHandle, level int) ([]common.Color, int, int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	img, ok := d.images[h]
	if !ok {
		return nil, 0, 0, fmt.Errorf("read image: unknown handle %d", h)
	}
	if level < 0 || level >= len(img.levels) {
		return nil, 0, 0, fmt.Errorf("read image %q: level %d out of range", img.desc.Label, level)
	}
	lvl := img.levels[level]
	out := make([]common.Color, len(lvl.texels))
	copy(out, lvl.texels)
	return out, lvl.width, lvl.height, nil
}

func (d *softwareDevice) ReadBuffer(h BufferHandle) ([]float32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	buf, ok := d.buffers[h]
	if !ok {
		return nil, fmt.Errorf("read buffer: unknown handle %d", h)
	}
	out := make([]float32, len(buf))
	copy(out, buf)
	return out, nil
}

func (d *softwareDevice) ImageDescriptor(h ImageHandle) (ImageDescriptor, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	img, ok := d.images[h]
	if !ok {
		return ImageDescriptor{}, false
	}
	return img.desc, true
}

func (d *softwareDevice) Barriers() []Barrier {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Barrier, len(d.barriers))
	copy(out, d.barriers)
	return out
}

func (d *softwareDevice) Submissions() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.submissions
}

func (d *softwareDevice) LiveImages() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.images) - 1
}

func (d *softwareDevice) LivePrograms() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.programs)
}

// Submit runs the recorded commands. Commands are validated as they execute; the first
// invalid command stops execution and is returned as an error.
func (d *softwareDevice) Submit(cl *CommandList) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.submissions++
	var pass *softPass
	for i, c := range cl.Commands() {
		switch cmd := c.(type) {
		case BeginRenderPass:
			if pass != nil {
				return fmt.Errorf("command %d: render pass %q begun inside another pass", i, cmd.Label)
			}
			p, err := d.beginPass(cmd)
			if err != nil {
				return fmt.Errorf("command %d: %w", i, err)
			}
			pass = p
		case EndRenderPass:
			if pass == nil {
				return fmt.Errorf("command %d: end without render pass", i)
			}
			pass = nil
		case Draw:
			if pass == nil {
				return fmt.Errorf("command %d: draw outside render pass", i)
			}
			if err := d.draw(pass, cmd); err != nil {
				return fmt.Errorf("command %d: %w", i, err)
			}
		case Dispatch:
			if pass != nil {
				return fmt.Errorf("command %d: dispatch inside render pass", i)
			}
			if err := d.dispatch(cmd); err != nil {
				return fmt.Errorf("command %d: %w", i, err)
			}
		case Barrier:
			d.barriers = append(d.barriers, cmd)
		default:
			return fmt.Errorf("command %d: unsupported %T", i, c)
		}
	}
	if pass != nil {
		return errors.New("command list ends inside a render pass")
	}
	return nil
}
