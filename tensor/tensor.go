// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/dispatch/internal/tensor"
)

// DType is a constraint for tensor data types.
// Supported types: float32, float64, int32, int64, uint8, bool.
type DType = tensor.DType

// DataType represents the underlying data type of a tensor.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32 DataType = tensor.Float32
	Float64 DataType = tensor.Float64
	Int32   DataType = tensor.Int32
	Int64   DataType = tensor.Int64
	Uint8   DataType = tensor.Uint8
	Bool    DataType = tensor.Bool
)

// Device represents the device where tensor data resides.
type Device = tensor.Device

// Device constants.
const (
	CPU    Device = tensor.CPU
	CUDA   Device = tensor.CUDA
	Vulkan Device = tensor.Vulkan
	Metal  Device = tensor.Metal
	WebGPU Device = tensor.WebGPU
)

// Shape represents the dimensions of a tensor.
// Example: Shape{2, 3, 4} represents a 3D tensor with dimensions 2×3×4.
type Shape = tensor.Shape

// ID identifies a tensor in computation traces.
type ID = tensor.ID

// RawTensor is the engine-level tensor handle.
//
// Example:
//
//	raw, _ := tensor.NewRaw(tensor.Shape{2, 3}, tensor.Float32, tensor.CPU)
//	data := raw.AsFloat32()
//	defer raw.Release()
type RawTensor = tensor.RawTensor

// Tensor is a typed, read-only view over a RawTensor.
type Tensor[T DType] = tensor.Tensor[T]

// Backend is the handle kernels receive for their compute provider.
type Backend = tensor.Backend

// Allocator hands out fresh tensor storage.
type Allocator = tensor.Allocator

// ErrInvalidArgument marks malformed input such as ragged literals or
// out-of-range axes.
var ErrInvalidArgument = tensor.ErrInvalidArgument

// NewRaw allocates a zeroed RawTensor outside of any engine.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype, device)
}

// As re-types raw as a Tensor[T]; the dtype must match T.
func As[T DType](raw *RawTensor) (*Tensor[T], error) {
	return tensor.As[T](raw)
}

// MustAs is like As but panics on a dtype mismatch.
func MustAs[T DType](raw *RawTensor) *Tensor[T] {
	return tensor.MustAs[T](raw)
}

// Convert turns a tensor or tensor-like literal into a RawTensor, allocating
// literals through alloc.
func Convert(value any, argName, opName string, alloc Allocator) (*RawTensor, error) {
	return tensor.Convert(value, argName, opName, alloc)
}
