package tensor

// Allocator hands out fresh tensor storage.
type Allocator interface {
	// Alloc returns a zero-initialized tensor holding one reference.
	Alloc(shape Shape, dtype DataType) (*RawTensor, error)
}

// Backend is the handle kernels receive for the compute provider they run on.
//
// Implementations:
//   - CPU: pure Go reference backend (internal/backend/cpu)
//
// Kernels are registered separately, per operation identity, in a
// kernel.Registry; the Backend itself only names the device and owns
// allocation.
type Backend interface {
	Allocator

	// Name is the registry key for this backend, e.g. "cpu".
	Name() string

	// Device returns the compute device tensors are allocated on.
	Device() Device
}
