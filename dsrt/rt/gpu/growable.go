package gpu

import (
	"fmt"

	"github.com/Hengle/DeferredShading/dsrt/rt/core"
	"golang.org/x/exp/constraints"
)

// GrowCapacity doubles capacity until it strictly exceeds count.
func GrowCapacity[T constraints.Integer](capacity, count T) T {
	if capacity < 1 {
		capacity = 1
	}
	for count >= capacity {
		capacity *= 2
	}
	return capacity
}

// GrowableBuffer is a device buffer of fixed-stride records whose capacity
// always exceeds the logical count of the last synced snapshot.
type GrowableBuffer[T core.Record] struct {
	dev      Device
	label    string
	stride   int
	capacity int
	count    int
	buf      Generation[Buffer]
}

func NewGrowableBuffer[T core.Record](dev Device, label string, capacity int) (*GrowableBuffer[T], error) {
	var zero T
	b := &GrowableBuffer[T]{
		dev:      dev,
		label:    label,
		stride:   zero.Stride(),
		capacity: max(capacity, 1),
	}
	if err := b.allocate(b.capacity); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *GrowableBuffer[T]) allocate(capacity int) error {
	h, err := b.dev.CreateBuffer(b.label, capacity, b.stride)
	if err != nil {
		return fmt.Errorf("%s (%d x %d bytes): %w: %w", b.label, capacity, b.stride, ErrAllocation, err)
	}
	b.buf.Replace(h)
	b.capacity = capacity
	return nil
}

// Sync makes the device copy match items, growing first when needed. The
// old handle is released before the larger one is allocated and the whole
// snapshot is uploaded after every sync. A failed allocation leaves the
// capacity unchanged and the next Sync allocates again.
func (b *GrowableBuffer[T]) Sync(items []T) (bool, error) {
	n := len(items)
	resized := false
	if n >= b.capacity || !b.buf.Live() {
		b.buf.Release()
		if err := b.allocate(GrowCapacity(b.capacity, n)); err != nil {
			return false, err
		}
		resized = true
	}
	b.count = n
	if n > 0 {
		b.dev.WriteBuffer(b.buf.Handle(), core.EncodeRecords(items))
	}
	return resized, nil
}

// Handle returns the current device buffer. Callers must not keep it past
// the next Sync.
func (b *GrowableBuffer[T]) Handle() Buffer { return b.buf.Handle() }
func (b *GrowableBuffer[T]) Gen() uint64    { return b.buf.Gen() }
func (b *GrowableBuffer[T]) Capacity() int  { return b.capacity }
func (b *GrowableBuffer[T]) Count() int     { return b.count }
func (b *GrowableBuffer[T]) Stride() int    { return b.stride }
func (b *GrowableBuffer[T]) Label() string  { return b.label }

func (b *GrowableBuffer[T]) Release() {
	b.buf.Release()
	b.count = 0
}
