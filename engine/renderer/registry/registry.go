package registry

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-chart/common"
	"github.com/Carmen-Shannon/oxy-chart/engine/chart"
	"github.com/Carmen-Shannon/oxy-chart/engine/renderer/gpu"
	"github.com/google/uuid"
)

// Image is an allocated image. The reserved screen image carries the surface handle.
type Image struct {
	ID     string
	Shape  ImageShape
	Handle gpu.ImageHandle
}

// ResourceSet is every device resource of one resolved chart.
type ResourceSet struct {
	// Generation identifies the set in logs and in deferred destruction bookkeeping.
	Generation uuid.UUID
	Canvas     common.Extent

	order   []string
	images  map[string]*Image
	buffers map[string]*DoubleBuffer
	screen  *Image
}

func newResourceSet(canvas common.Extent, surface gpu.ImageHandle, surfaceFormat gpu.Format) *ResourceSet {
	return &ResourceSet{
		Generation: uuid.New(),
		Canvas:     canvas,
		images:     make(map[string]*Image),
		buffers:    make(map[string]*DoubleBuffer),
		screen: &Image{
			ID:     chart.ScreenTarget,
			Shape:  ImageShape{ID: chart.ScreenTarget, Width: canvas.Width, Height: canvas.Height, MipLevels: 1, Format: surfaceFormat},
			Handle: surface,
		},
	}
}

// Image returns the image with the given id. The id "screen" names the presentation surface.
//
// Parameters:
//   - id: the declared image id
//
// Returns:
//   - *Image: the image
//   - error: common.ErrUnknownImage if no such image was resolved
func (s *ResourceSet) Image(id string) (*Image, error) {
	if id == chart.ScreenTarget {
		return s.screen, nil
	}
	img, ok := s.images[id]
	if !ok {
		return nil, fmt.Errorf("image %q: %w", id, common.ErrUnknownImage)
	}
	return img, nil
}

// DoubleBuffer returns the double buffer with the given id.
//
// Parameters:
//   - id: the declared buffer id
//
// Returns:
//   - *DoubleBuffer: the buffer pair
//   - error: common.ErrUnknownBuffer if no such buffer was resolved
func (s *ResourceSet) DoubleBuffer(id string) (*DoubleBuffer, error) {
	b, ok := s.buffers[id]
	if !ok {
		return nil, fmt.Errorf("buffer %q: %w", id, common.ErrUnknownBuffer)
	}
	return b, nil
}

// Images returns the allocated images in declaration order, without the screen.
func (s *ResourceSet) Images() []*Image {
	out := make([]*Image, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.images[id])
	}
	return out
}

// DoubleBuffers returns every double buffer of the set.
func (s *ResourceSet) DoubleBuffers() []*DoubleBuffer {
	out := make([]*DoubleBuffer, 0, len(s.buffers))
	for _, b := range s.buffers {
		out = append(out, b)
	}
	return out
}

// ResetBuffers puts every double buffer back to its initial roles.
func (s *ResourceSet) ResetBuffers() {
	for _, b := range s.buffers {
		b.Reset()
	}
}

// Registry resolves charts into resource sets and owns their lifetimes.
type Registry interface {
	// Resolve allocates every image and double buffer declared by c. Nothing is published unless
	// every allocation succeeds. On success the previous set is scheduled for destruction.
	//
	// Parameters:
	//   - c: the chart to resolve
	//
	// Returns:
	//   - *ResourceSet: the new set
	//   - error: a ClassFatal error wrapping the resolution failure
	Resolve(c *chart.Chart) (*ResourceSet, error)

	// Current returns the published set, nil before the first successful Resolve.
	Current() *ResourceSet

	// Canvas returns the canvas size the current set is resolved against.
	Canvas() common.Extent

	// ReallocateCanvasRelative resizes every image whose shape depends on the canvas. Images
	// whose shape is unchanged keep their handles. Calling it twice with the same size is a no-op.
	//
	// Parameters:
	//   - canvas: the new canvas size
	//
	// Returns:
	//   - error: a ClassTransient error when the new shapes cannot be allocated; the previous
	//     images stay in service
	ReallocateCanvasRelative(canvas common.Extent) error

	// BeginFrame tags resources replaced from now on with frameIndex.
	BeginFrame(frameIndex uint64)

	// RetireFrames destroys replaced resources whose last use was at or before completed.
	RetireFrames(completed uint64)

	// PendingDestruction returns the number of handles awaiting destruction.
	PendingDestruction() int

	// Release destroys every resource, pending or published.
	Release()
}

type retired struct {
	frame      uint64
	generation uuid.UUID
	image      gpu.ImageHandle
	buffer     gpu.BufferHandle
}

type registry struct {
	mu      *sync.Mutex
	device  gpu.Device
	limits  gpu.Limits
	canvas  common.Extent
	frame   uint64
	chart   *chart.Chart
	current *ResourceSet
	pending []retired
}

var _ Registry = &registry{}

// NewRegistry creates a Registry allocating on device.
//
// Parameters:
//   - device: the device images and buffers are created on
//   - opts: optional builder options
//
// Returns:
//   - Registry: the new registry
func NewRegistry(device gpu.Device, opts ...RegistryBuilderOption) Registry {
	r := &registry{
		mu:     &sync.Mutex{},
		device: device,
		limits: device.Limits(),
		canvas: common.Extent{Width: 1, Height: 1},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *registry) Resolve(c *chart.Chart) (*ResourceSet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	shapes, err := ComputeShapes(c, r.canvas, r.limits)
	if err != nil {
		return nil, common.Fatal("resolve", c.ID, err)
	}

	set := newResourceSet(r.canvas, r.device.Surface(), r.device.SurfaceFormat())
	if err := r.allocate(set, c, shapes); err != nil {
		r.destroySet(set)
		return nil, common.Fatal("resolve", c.ID, err)
	}

	if r.current != nil {
		r.retireSet(r.current)
	}
	r.current = set
	r.chart = c
	common.Logger().Info("resources resolved", "chart", c.ID, "generation", set.Generation,
		"images", len(set.images), "buffers", len(set.buffers), "canvas", fmt.Sprintf("%dx%d", r.canvas.Width, r.canvas.Height))
	return set, nil
}

func (r *registry) allocate(set *ResourceSet, c *chart.Chart, shapes []ImageShape) error {
	for _, shape := range shapes {
		h, err := r.createImage(shape)
		if err != nil {
			return err
		}
		set.images[shape.ID] = &Image{ID: shape.ID, Shape: shape, Handle: h}
		set.order = append(set.order, shape.ID)
	}
	for _, decl := range c.Buffers {
		desc := gpu.BufferDescriptor{Label: decl.ID, Size: decl.SizeInBytes()}
		a, err := r.device.CreateBuffer(desc)
		if err != nil {
			return fmt.Errorf("buffer %q: %w", decl.ID, err)
		}
		b, err := r.device.CreateBuffer(desc)
		if err != nil {
			r.device.DestroyBuffer(a)
			return fmt.Errorf("buffer %q: %w", decl.ID, err)
		}
		set.buffers[decl.ID] = newDoubleBuffer(decl, a, b)
	}
	return nil
}

func (r *registry) createImage(shape ImageShape) (gpu.ImageHandle, error) {
	h, err := r.device.CreateImage(gpu.ImageDescriptor{
		Label:     shape.ID,
		Width:     shape.Width,
		Height:    shape.Height,
		MipLevels: shape.MipLevels,
		Format:    shape.Format,
	})
	if err != nil {
		return gpu.InvalidHandle, fmt.Errorf("image %q: %w", shape.ID, err)
	}
	return h, nil
}

func (r *registry) Current() *ResourceSet {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

func (r *registry) Canvas() common.Extent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.canvas
}

func (r *registry) ReallocateCanvasRelative(canvas common.Extent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if canvas == r.canvas || !canvas.Valid() {
		return nil
	}
	if r.current == nil {
		r.canvas = canvas
		return nil
	}

	shapes, err := ComputeShapes(r.chart, canvas, r.limits)
	if err != nil {
		return common.Transient("reallocate", r.chart.ID, err)
	}

	replaced := make(map[string]*Image)
	for _, shape := range shapes {
		if old := r.current.images[shape.ID]; old != nil && old.Shape == shape {
			continue
		}
		h, err := r.createImage(shape)
		if err != nil {
			for _, img := range replaced {
				r.device.DestroyImage(img.Handle)
			}
			return common.Transient("reallocate", r.chart.ID, err)
		}
		replaced[shape.ID] = &Image{ID: shape.ID, Shape: shape, Handle: h}
	}

	for id, img := range replaced {
		if old := r.current.images[id]; old != nil {
			r.pending = append(r.pending, retired{frame: r.frame, generation: r.current.Generation, image: old.Handle})
		}
		r.current.images[id] = img
	}
	r.canvas = canvas
	r.current.Canvas = canvas
	r.current.screen.Shape.Width, r.current.screen.Shape.Height = canvas.Width, canvas.Height
	common.Logger().Info("canvas reallocated", "canvas", fmt.Sprintf("%dx%d", canvas.Width, canvas.Height), "images", len(replaced))
	return nil
}

func (r *registry) BeginFrame(frameIndex uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frame = frameIndex
}

func (r *registry) RetireFrames(completed uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	keep := r.pending[:0]
	for _, p := range r.pending {
		if p.frame > completed {
			keep = append(keep, p)
			continue
		}
		r.destroy(p)
		common.Logger().Debug("resource destroyed", "generation", p.generation, "frame", p.frame)
	}
	r.pending = keep
}

func (r *registry) PendingDestruction() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

func (r *registry) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.pending {
		r.destroy(p)
	}
	r.pending = nil
	if r.current != nil {
		r.destroySet(r.current)
		r.current = nil
	}
}

func (r *registry) destroy(p retired) {
	if p.image != gpu.InvalidHandle {
		r.device.DestroyImage(p.image)
	}
	if p.buffer != gpu.InvalidHandle {
		r.device.DestroyBuffer(p.buffer)
	}
}

func (r *registry) retireSet(set *ResourceSet) {
	for _, img := range set.images {
		r.pending = append(r.pending, retired{frame: r.frame, generation: set.Generation, image: img.Handle})
	}
	for _, b := range set.buffers {
		for _, h := range b.handles() {
			r.pending = append(r.pending, retired{frame: r.frame, generation: set.Generation, buffer: h})
		}
	}
}

func (r *registry) destroySet(set *ResourceSet) {
	for _, img := range set.images {
		r.device.DestroyImage(img.Handle)
	}
	for _, b := range set.buffers {
		for _, h := range b.handles() {
			r.device.DestroyBuffer(h)
		}
	}
}
