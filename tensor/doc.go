// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public tensor types of the dispatch engine.
//
// # Overview
//
// A RawTensor is an immutable-by-contract handle to an n-dimensional array:
// a shape, a data type, a device and reference-counted storage owned by the
// backend that allocated it. Tensor[T] is a typed view for reading results.
//
// # Basic Usage
//
//	eng := engine.MustNew()
//	raw, err := ops.Cumprod(eng, [][]float32{{1, 2}, {3, 4}})
//	if err != nil { ... }
//	t := tensor.MustAs[float32](raw)
//	fmt.Println(t.Data()) // [1 2 3 8]
//
// # Supported Data Types
//
//   - float32, float64 (floating-point)
//   - int32, int64 (signed integers, Go int literals become int32)
//   - uint8 (unsigned integers)
//   - bool (accepted by conversion, rejected by arithmetic kernels)
//
// # Ownership
//
// Retain adds a holder and Release drops one; storage is freed when the last
// holder releases it. Operations run inside engine scopes release what they
// allocate unless it is returned or kept.
package tensor
