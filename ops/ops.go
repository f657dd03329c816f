// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package ops provides the public tensor operations.
//
// Each operation takes the engine to run on, a tensor or tensor-like literal,
// and options overriding its documented defaults:
//
//	out, err := ops.Cumprod(eng, [][]int32{{1, 2}, {3, 4}}, ops.WithAxis(1))
package ops

import (
	"github.com/born-ml/dispatch/engine"
	internal "github.com/born-ml/dispatch/internal/ops"
	"github.com/born-ml/dispatch/tensor"
)

// ScanOption overrides one default of Cumprod or Cumsum.
type ScanOption = internal.ScanOption

// WithAxis sets the scan axis. Default 0; negative values count from the end.
func WithAxis(axis int) ScanOption {
	return internal.WithAxis(axis)
}

// Exclusive leaves each position's own value out of its aggregate. Default false.
func Exclusive(exclusive bool) ScanOption {
	return internal.Exclusive(exclusive)
}

// Reverse scans from the end of the axis. Default false.
func Reverse(reverse bool) ScanOption {
	return internal.Reverse(reverse)
}

// Cumprod computes the cumulative product of x along an axis.
// Defaults: axis 0, exclusive false, reverse false.
func Cumprod(e *engine.Engine, x any, opts ...ScanOption) (*tensor.RawTensor, error) {
	return internal.Cumprod(e, x, opts...)
}

// Cumsum computes the cumulative sum of x along an axis.
// Defaults: axis 0, exclusive false, reverse false.
func Cumsum(e *engine.Engine, x any, opts ...ScanOption) (*tensor.RawTensor, error) {
	return internal.Cumsum(e, x, opts...)
}

// Names returns the names of all declared operations.
func Names() []string {
	return internal.Names()
}
