package tensor

import "fmt"

// Shape represents the dimensions of a tensor. A zero-length Shape is a scalar.
type Shape []int

// NumElements returns the total number of elements in the tensor.
func (s Shape) NumElements() int {
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Rank returns the number of dimensions.
func (s Shape) Rank() int {
	return len(s)
}

// Validate checks that no dimension is negative. Zero-sized dimensions are
// allowed and produce empty tensors.
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim < 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be >= 0)", i, dim)
		}
	}
	return nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// ComputeStrides calculates row-major strides for the shape.
// Strides define memory layout: stride[i] = product of all dimensions after i.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	if len(s) == 0 {
		return strides
	}

	strides[len(s)-1] = 1
	for i := len(s) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * s[i+1]
	}
	return strides
}

// NormalizeAxis maps a possibly negative axis into [0, rank).
// A scalar is treated as a rank-1 tensor of length 1, so axis 0 and -1 are
// accepted for it.
func (s Shape) NormalizeAxis(axis int) (int, error) {
	rank := max(len(s), 1)
	if axis < -rank || axis >= rank {
		return 0, InvalidArgumentf("axis %d is out of range for tensor of rank %d", axis, len(s))
	}
	if axis < 0 {
		axis += rank
	}
	return axis, nil
}
