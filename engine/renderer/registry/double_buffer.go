package registry

import (
	"github.com/Carmen-Shannon/oxy-chart/common"
	"github.com/Carmen-Shannon/oxy-chart/engine/chart"
	"github.com/Carmen-Shannon/oxy-chart/engine/renderer/gpu"
)

// DoubleBuffer is a pair of equally sized storage buffers. One holds the current simulation
// state and the other receives the next. Swap exchanges the roles without copying.
type DoubleBuffer struct {
	ID             string
	ItemCount      int
	ItemSizeInVec4 int

	arena    [2]gpu.BufferHandle
	current  int
	next     int
	fraction float32
}

func newDoubleBuffer(decl chart.DoubleBuffer, a, b gpu.BufferHandle) *DoubleBuffer {
	return &DoubleBuffer{
		ID:             decl.ID,
		ItemCount:      decl.ItemCount,
		ItemSizeInVec4: decl.ItemSizeInVec4,
		arena:          [2]gpu.BufferHandle{a, b},
		current:        0,
		next:           1,
	}
}

// SizeInBytes returns the size of one of the two buffers.
func (b *DoubleBuffer) SizeInBytes() uint64 {
	return uint64(b.ItemCount) * uint64(b.ItemSizeInVec4) * 16
}

// Current returns the buffer holding the latest completed tick.
func (b *DoubleBuffer) Current() gpu.BufferHandle {
	return b.arena[b.current]
}

// Next returns the buffer the next tick writes into.
func (b *DoubleBuffer) Next() gpu.BufferHandle {
	return b.arena[b.next]
}

// Handle returns the buffer bound for role.
func (b *DoubleBuffer) Handle(role chart.BufferRole) gpu.BufferHandle {
	if role == chart.RoleNext {
		return b.Next()
	}
	return b.Current()
}

// Swap exchanges the current and next roles.
func (b *DoubleBuffer) Swap() {
	b.current, b.next = b.next, b.current
}

// InterpolationFraction returns how far presentation has advanced from current towards next.
func (b *DoubleBuffer) InterpolationFraction() float32 {
	return b.fraction
}

// SetInterpolationFraction stores f clamped to [0, 1].
func (b *DoubleBuffer) SetInterpolationFraction(f float32) {
	b.fraction = common.Clamp(f, 0, 1)
}

// Reset restores the initial role assignment and a zero fraction.
func (b *DoubleBuffer) Reset() {
	b.current, b.next = 0, 1
	b.fraction = 0
}

func (b *DoubleBuffer) handles() []gpu.BufferHandle {
	return b.arena[:]
}
