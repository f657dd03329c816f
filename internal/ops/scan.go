package ops

import (
	"github.com/born-ml/dispatch/internal/engine"
	"github.com/born-ml/dispatch/internal/kernel"
	"github.com/born-ml/dispatch/internal/tensor"
)

// ScanOption overrides one default of a scan operation.
type ScanOption func(*kernel.ScanAttrs)

// WithAxis sets the axis to scan along. Default 0. Negative values count from
// the last axis.
func WithAxis(axis int) ScanOption {
	return func(a *kernel.ScanAttrs) { a.Axis = axis }
}

// Exclusive sets whether each position's own value is left out of its
// aggregate. Default false.
func Exclusive(exclusive bool) ScanOption {
	return func(a *kernel.ScanAttrs) { a.Exclusive = exclusive }
}

// Reverse sets whether to scan from the end of the axis. Default false.
func Reverse(reverse bool) ScanOption {
	return func(a *kernel.ScanAttrs) { a.Reverse = reverse }
}

// DefaultScanAttrs returns the defaults of Cumprod and Cumsum:
// axis 0, inclusive, forward.
func DefaultScanAttrs() kernel.ScanAttrs {
	return kernel.ScanAttrs{Axis: 0, Exclusive: false, Reverse: false}
}

type scanArgs struct {
	x     any
	attrs kernel.ScanAttrs
}

func newScanArgs(x any, opts []ScanOption) scanArgs {
	attrs := DefaultScanAttrs()
	for _, opt := range opts {
		opt(&attrs)
	}
	return scanArgs{x: x, attrs: attrs}
}

func scanBody(op kernel.OpID, name string) Body[scanArgs] {
	return func(s *engine.Scope, args scanArgs) (*tensor.RawTensor, error) {
		x, err := s.Convert(args.x, "x", name)
		if err != nil {
			return nil, err
		}
		return s.RunKernel(op, kernel.ScanInputs{X: x}, args.attrs)
	}
}

var (
	cumprodOp = Op("cumprod", scanBody(kernel.Cumprod, "cumprod"))
	cumsumOp  = Op("cumsum", scanBody(kernel.Cumsum, "cumsum"))
)

// Cumprod computes the cumulative product of x along an axis.
//
// x is a tensor or a tensor-like literal (nested slices or a scalar).
// Defaults: axis 0, exclusive false, reverse false.
//
//	ops.Cumprod(eng, []float32{1, 2, 3, 4})                   // [1, 2, 6, 24]
//	ops.Cumprod(eng, []float32{1, 2, 3, 4}, ops.Exclusive(true)) // [1, 1, 2, 6]
//	ops.Cumprod(eng, []float32{1, 2, 3, 4}, ops.Reverse(true))   // [24, 24, 12, 4]
//
// With exclusive set, the first element along the axis (last, when reversed)
// is 1. The output has the shape and dtype of x; integer products wrap.
func Cumprod(e *engine.Engine, x any, opts ...ScanOption) (*tensor.RawTensor, error) {
	return cumprodOp.Call(e, newScanArgs(x, opts))
}

// Cumsum computes the cumulative sum of x along an axis, with the same
// defaults and options as Cumprod. The exclusive identity is 0.
func Cumsum(e *engine.Engine, x any, opts ...ScanOption) (*tensor.RawTensor, error) {
	return cumsumOp.Call(e, newScanArgs(x, opts))
}
