package cpu

import (
	"github.com/born-ml/dispatch/internal/kernel"
	"github.com/born-ml/dispatch/internal/parallel"
	"github.com/born-ml/dispatch/internal/tensor"
)

// cumprod computes the cumulative product of x along attrs.Axis.
//
// Example (axis 0):
//
//	x                      = [1, 2, 3, 4]
//	inclusive              = [1, 2, 6, 24]
//	exclusive              = [1, 1, 2, 6]
//	inclusive, reverse     = [24, 24, 12, 4]
func (cpu *CPUBackend) cumprod(ctx *kernel.Context, attrs kernel.CumprodAttrs) ([]*tensor.RawTensor, error) {
	return cpu.scan(ctx, attrs, scanProduct)
}

// cumsum computes the cumulative sum of x along attrs.Axis.
func (cpu *CPUBackend) cumsum(ctx *kernel.Context, attrs kernel.CumsumAttrs) ([]*tensor.RawTensor, error) {
	return cpu.scan(ctx, attrs, scanSum)
}

type scanKind int

const (
	scanProduct scanKind = iota
	scanSum
)

func (k scanKind) String() string {
	if k == scanProduct {
		return "cumprod"
	}
	return "cumsum"
}

func (cpu *CPUBackend) scan(ctx *kernel.Context, attrs kernel.ScanAttrs, kind scanKind) ([]*tensor.RawTensor, error) {
	x, err := ctx.Input("x")
	if err != nil {
		return nil, err
	}
	axis, err := x.Shape().NormalizeAxis(attrs.Axis)
	if err != nil {
		return nil, err
	}
	if !x.DType().IsNumeric() {
		return nil, tensor.InvalidArgumentf("%s: unsupported dtype %s", kind, x.DType())
	}

	out, err := ctx.Alloc(x.Shape(), x.DType())
	if err != nil {
		return nil, err
	}

	layout := newScanLayout(x.Shape(), axis)
	switch x.DType() {
	case tensor.Float32:
		scanTyped(x.AsFloat32(), out.AsFloat32(), layout, attrs, kind, cpu.parallel)
	case tensor.Float64:
		scanTyped(x.AsFloat64(), out.AsFloat64(), layout, attrs, kind, cpu.parallel)
	case tensor.Int32:
		scanTyped(x.AsInt32(), out.AsInt32(), layout, attrs, kind, cpu.parallel)
	case tensor.Int64:
		scanTyped(x.AsInt64(), out.AsInt64(), layout, attrs, kind, cpu.parallel)
	case tensor.Uint8:
		scanTyped(x.AsUint8(), out.AsUint8(), layout, attrs, kind, cpu.parallel)
	}
	return []*tensor.RawTensor{out}, nil
}

// scanLayout views a row-major tensor as outer × length × inner, where length
// is the size of the scanned axis. Each (outer, inner) pair is one slice.
type scanLayout struct {
	outer, length, inner int
}

func newScanLayout(shape tensor.Shape, axis int) scanLayout {
	if len(shape) == 0 {
		return scanLayout{outer: 1, length: 1, inner: 1}
	}
	l := scanLayout{outer: 1, length: shape[axis], inner: 1}
	for _, d := range shape[:axis] {
		l.outer *= d
	}
	for _, d := range shape[axis+1:] {
		l.inner *= d
	}
	return l
}

func (l scanLayout) numSlices() int {
	return l.outer * l.inner
}

// scanTyped scans every slice independently; slices are split across workers.
// Integer overflow wraps.
func scanTyped[T tensor.Numeric](in, out []T, l scanLayout, attrs kernel.ScanAttrs, kind scanKind, cfg parallel.Config) {
	parallel.For(l.numSlices(), func(s int) {
		base := (s/l.inner)*l.length*l.inner + s%l.inner
		scanSlice(in, out, base, l.length, l.inner, attrs, kind)
	}, cfg)
}

func scanSlice[T tensor.Numeric](in, out []T, base, n, stride int, attrs kernel.ScanAttrs, kind scanKind) {
	var acc T
	if kind == scanProduct {
		acc = 1
	}
	for k := 0; k < n; k++ {
		j := k
		if attrs.Reverse {
			j = n - 1 - k
		}
		idx := base + j*stride
		v := in[idx]
		if attrs.Exclusive {
			out[idx] = acc
		}
		if kind == scanProduct {
			acc *= v
		} else {
			acc += v
		}
		if !attrs.Exclusive {
			out[idx] = acc
		}
	}
}
