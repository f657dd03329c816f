package tensor

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"
)

// Device represents the compute device for tensor operations.
type Device int

// Supported compute devices.
const (
	CPU Device = iota
	CUDA
	Vulkan
	Metal
	WebGPU
)

// String returns a human-readable device name.
func (d Device) String() string {
	switch d {
	case CPU:
		return "CPU"
	case CUDA:
		return "CUDA"
	case Vulkan:
		return "Vulkan"
	case Metal:
		return "Metal"
	case WebGPU:
		return "WebGPU"
	default:
		return "Unknown"
	}
}

// ID identifies a tensor for tracing. IDs are unique within the process and
// increase monotonically in allocation order.
type ID uint64

var nextID atomic.Uint64

// tensorBuffer is a reference-counted storage block.
// Release hooks run exactly once, when the last holder lets go.
type tensorBuffer struct {
	data     []byte
	refCount atomic.Int32

	mu    sync.Mutex
	hooks []func()
	freed bool
}

// newTensorBuffer creates a new reference-counted buffer with refCount = 1.
func newTensorBuffer(size int) *tensorBuffer {
	buf := &tensorBuffer{
		data: make([]byte, size),
	}
	buf.refCount.Store(1)
	return buf
}

func (tb *tensorBuffer) addRef() bool {
	for {
		n := tb.refCount.Load()
		if n <= 0 {
			return false
		}
		if tb.refCount.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// release decrements the reference count and frees the storage at zero.
// It reports whether the call dropped the last reference.
func (tb *tensorBuffer) release() bool {
	n := tb.refCount.Add(-1)
	if n > 0 {
		return false
	}
	if n < 0 {
		tb.refCount.Store(0)
		return false
	}

	tb.mu.Lock()
	hooks := tb.hooks
	tb.hooks = nil
	tb.data = nil
	tb.freed = true
	tb.mu.Unlock()

	for i := len(hooks) - 1; i >= 0; i-- {
		hooks[i]()
	}
	return true
}

// RawTensor is the low-level tensor handle.
//
// A RawTensor is immutable by contract once a kernel has returned it: the
// engine never writes into an input. Storage is reference counted through
// Retain and Release and may be shared by several holders, e.g. a caller and
// a recorded trace node.
type RawTensor struct {
	id     ID
	buffer *tensorBuffer
	shape  Shape
	stride []int
	dtype  DataType
	device Device
}

// NewRaw creates a new RawTensor with the given shape and type.
// Memory is allocated and zero-initialized. The returned handle holds one
// reference.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, InvalidArgumentf("invalid shape %v: %v", shape, err)
	}
	if !dtype.Valid() {
		return nil, InvalidArgumentf("invalid data type %d", int(dtype))
	}

	return &RawTensor{
		id:     ID(nextID.Add(1)),
		buffer: newTensorBuffer(shape.NumElements() * dtype.Size()),
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		dtype:  dtype,
		device: device,
	}, nil
}

// ID returns the tensor's process-unique identifier.
func (r *RawTensor) ID() ID {
	return r.id
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// Rank returns the number of dimensions.
func (r *RawTensor) Rank() int {
	return len(r.shape)
}

// Strides returns the tensor's memory strides.
func (r *RawTensor) Strides() []int {
	return r.stride
}

// DType returns the tensor's data type.
func (r *RawTensor) DType() DataType {
	return r.dtype
}

// Device returns the tensor's compute device.
func (r *RawTensor) Device() Device {
	return r.device
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return r.shape.NumElements()
}

// ByteSize returns the total memory size in bytes.
func (r *RawTensor) ByteSize() int {
	return r.NumElements() * r.dtype.Size()
}

// Data returns the raw byte slice.
// WARNING: Direct access to underlying memory. Use with caution.
func (r *RawTensor) Data() []byte {
	r.mustLive()
	return r.buffer.data
}

func (r *RawTensor) mustLive() {
	if r.IsReleased() {
		panic(fmt.Sprintf("tensor #%d used after it was released", r.id))
	}
}

func (r *RawTensor) view(dtype DataType) unsafe.Pointer {
	if r.dtype != dtype {
		panic(fmt.Sprintf("tensor dtype is %s, not %s", r.dtype, dtype))
	}
	r.mustLive()
	if len(r.buffer.data) == 0 {
		return nil
	}
	return unsafe.Pointer(&r.buffer.data[0])
}

// AsFloat32 interprets the data as []float32.
// Panics if the tensor's dtype is not Float32.
func (r *RawTensor) AsFloat32() []float32 {
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds checked by NumElements()
	return unsafe.Slice((*float32)(r.view(Float32)), r.NumElements())
}

// AsFloat64 interprets the data as []float64.
// Panics if the tensor's dtype is not Float64.
func (r *RawTensor) AsFloat64() []float64 {
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds checked by NumElements()
	return unsafe.Slice((*float64)(r.view(Float64)), r.NumElements())
}

// AsInt32 interprets the data as []int32.
// Panics if the tensor's dtype is not Int32.
func (r *RawTensor) AsInt32() []int32 {
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds checked by NumElements()
	return unsafe.Slice((*int32)(r.view(Int32)), r.NumElements())
}

// AsInt64 interprets the data as []int64.
// Panics if the tensor's dtype is not Int64.
func (r *RawTensor) AsInt64() []int64 {
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds checked by NumElements()
	return unsafe.Slice((*int64)(r.view(Int64)), r.NumElements())
}

// AsUint8 interprets the data as []uint8.
// Panics if the tensor's dtype is not Uint8.
func (r *RawTensor) AsUint8() []uint8 {
	r.view(Uint8)
	return r.buffer.data
}

// AsBool interprets the data as []bool.
// Panics if the tensor's dtype is not Bool.
func (r *RawTensor) AsBool() []bool {
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds checked by NumElements()
	return unsafe.Slice((*bool)(r.view(Bool)), r.NumElements())
}

// Retain adds a holder to the tensor's storage.
// Returns false if the storage was already freed.
func (r *RawTensor) Retain() bool {
	return r.buffer.addRef()
}

// Release drops one holder. When the last holder releases, the storage is
// freed and release hooks run. Extra releases are ignored.
// Returns true if this call freed the storage.
func (r *RawTensor) Release() bool {
	return r.buffer.release()
}

// RefCount returns the number of live holders.
func (r *RawTensor) RefCount() int {
	return int(r.buffer.refCount.Load())
}

// IsReleased reports whether the storage has been freed.
func (r *RawTensor) IsReleased() bool {
	r.buffer.mu.Lock()
	defer r.buffer.mu.Unlock()
	return r.buffer.freed
}

// OnRelease registers fn to run once when the storage is freed.
// Allocators use it to keep memory accounting in sync.
// If the storage is already freed, fn runs immediately.
func (r *RawTensor) OnRelease(fn func()) {
	r.buffer.mu.Lock()
	if r.buffer.freed {
		r.buffer.mu.Unlock()
		fn()
		return
	}
	r.buffer.hooks = append(r.buffer.hooks, fn)
	r.buffer.mu.Unlock()
}

// String returns a human-readable representation of the tensor.
func (r *RawTensor) String() string {
	return fmt.Sprintf("RawTensor#%d[%s]%v on %s", r.id, r.dtype, r.shape, r.device)
}
