package progcache

import (
	"errors"
	"fmt"

	"q3backend/internal/device"
)

// Streaming buffer capacities, in elements.
const (
	BufferMaxVertexes = 0x10000
	BufferMaxIndexes  = 0x100000
)

var ErrNoBuffer = errors.New("progcache: buffer not created")

// Ring is a streaming device buffer written front to back. A write that
// would reach the end discards the whole buffer and restarts at element 0;
// every other write appends without touching data earlier draws still use.
type Ring struct {
	dev      device.Device
	buf      device.Buffer
	stride   int
	capacity int
	index    bool
	first    int
}

func NewRing(dev device.Device, stride, capacity int, index bool) *Ring {
	return &Ring{dev: dev, stride: stride, capacity: capacity, index: index}
}

// Create allocates the device buffer if it does not exist.
func (r *Ring) Create() error {
	if r.buf != nil {
		return nil
	}
	var err error
	size := r.stride * r.capacity
	if r.index {
		r.buf, err = r.dev.CreateIndexBuffer(size)
	} else {
		r.buf, err = r.dev.CreateVertexBuffer(size)
	}
	if err != nil {
		r.buf = nil
		return fmt.Errorf("creating %d byte stream buffer: %w", size, err)
	}
	r.first = 0
	return nil
}

func (r *Ring) Release() {
	if r.buf != nil {
		r.buf.Release()
		r.buf = nil
	}
	r.first = 0
}

// Buffer returns the device buffer, nil while released.
func (r *Ring) Buffer() device.Buffer { return r.buf }

func (r *Ring) Stride() int { return r.stride }

// First is the element the next write lands on.
func (r *Ring) First() int { return r.first }

// Write copies n elements of data at the cursor and returns the element
// they start at. The cursor does not move; call Advance once the draws
// that use the data have been issued.
func (r *Ring) Write(data []byte, n int) (first int, discarded bool, err error) {
	if r.buf == nil {
		return 0, false, ErrNoBuffer
	}
	if n > r.capacity {
		return 0, false, fmt.Errorf("progcache: %d elements exceed buffer capacity %d", n, r.capacity)
	}
	if r.first+n >= r.capacity {
		r.first = 0
		discarded = true
	}
	if err := r.dev.WriteBuffer(r.buf, r.first*r.stride, data[:n*r.stride], discarded); err != nil {
		return r.first, discarded, fmt.Errorf("writing stream buffer: %w", err)
	}
	return r.first, discarded, nil
}

// Advance moves the cursor past n written elements.
func (r *Ring) Advance(n int) {
	r.first += n
}
