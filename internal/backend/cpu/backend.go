// Package cpu implements the pure Go reference backend.
package cpu

import (
	"github.com/pkg/errors"

	"github.com/born-ml/dispatch/internal/kernel"
	"github.com/born-ml/dispatch/internal/parallel"
	"github.com/born-ml/dispatch/internal/tensor"
)

// Name is the registry key of the CPU backend.
const Name = "cpu"

// CPUBackend allocates host memory and runs kernels in pure Go.
type CPUBackend struct {
	device   tensor.Device
	parallel parallel.Config
}

// New creates a new CPU backend with default parallelism.
func New() *CPUBackend {
	return NewWithConfig(parallel.DefaultConfig())
}

// NewWithConfig creates a CPU backend that splits kernel work according to cfg.
func NewWithConfig(cfg parallel.Config) *CPUBackend {
	return &CPUBackend{
		device:   tensor.CPU,
		parallel: cfg,
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return Name
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Alloc returns zeroed host memory holding one reference.
func (cpu *CPUBackend) Alloc(shape tensor.Shape, dtype tensor.DataType) (*tensor.RawTensor, error) {
	return tensor.NewRaw(shape, dtype, cpu.device)
}

// RegisterKernels adds the CPU kernels to reg.
func (cpu *CPUBackend) RegisterKernels(reg *kernel.Registry) error {
	kernels := []kernel.Config{
		{OpID: kernel.Cumprod, Inputs: kernel.ScanInputNames, Func: kernel.Typed(cpu.cumprod)},
		{OpID: kernel.Cumsum, Inputs: kernel.ScanInputNames, Func: kernel.Typed(cpu.cumsum)},
	}
	for _, cfg := range kernels {
		cfg.Backend = cpu.Name()
		if err := reg.Register(cfg); err != nil {
			return errors.Wrap(err, "cpu")
		}
	}
	return nil
}
