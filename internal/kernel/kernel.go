// Package kernel defines operation identities, the typed input/attribute
// records operations are dispatched with, and the registry that maps
// (operation, backend) pairs to executable kernels.
package kernel

import (
	"fmt"
	"maps"
	"slices"

	"github.com/born-ml/dispatch/internal/tensor"
)

// OpID names a kernel family, e.g. "Cumprod".
type OpID string

// NamedTensorMap maps logical input names (e.g. "x") to tensors.
type NamedTensorMap map[string]*tensor.RawTensor

// Keys returns the sorted input names.
func (m NamedTensorMap) Keys() []string {
	return slices.Sorted(maps.Keys(m))
}

// Named implements Inputs, so an already built map can be dispatched as is.
func (m NamedTensorMap) Named() NamedTensorMap {
	return m
}

// NamedAttrMap is the untyped view of an attribute record, used for tracing
// and diagnostics only. Kernels never read it.
type NamedAttrMap map[string]any

// Inputs is a typed input record of one operation, e.g. ScanInputs.
// The engine dispatches its Named view.
type Inputs interface {
	Named() NamedTensorMap
}

// Attrs is a typed attribute record of one operation. Attributes are static
// per call: scalars and flags, never tensors.
type Attrs interface {
	Named() NamedAttrMap
	Validate() error
}

// NoAttrs is the attribute record of operations without attributes.
type NoAttrs struct{}

// Named implements Attrs.
func (NoAttrs) Named() NamedAttrMap { return NamedAttrMap{} }

// Validate implements Attrs.
func (NoAttrs) Validate() error { return nil }

// Context is what a kernel body receives for one invocation.
type Context struct {
	OpID    OpID
	Inputs  NamedTensorMap
	Attrs   Attrs
	Backend tensor.Backend

	alloc tensor.Allocator
}

// NewContext builds a kernel context. Allocations made through the context go
// to alloc, which lets the engine track and release intermediates.
func NewContext(op OpID, inputs NamedTensorMap, attrs Attrs, backend tensor.Backend, alloc tensor.Allocator) *Context {
	if alloc == nil {
		alloc = backend
	}
	return &Context{OpID: op, Inputs: inputs, Attrs: attrs, Backend: backend, alloc: alloc}
}

// Alloc allocates a tensor on the kernel's backend.
func (c *Context) Alloc(shape tensor.Shape, dtype tensor.DataType) (*tensor.RawTensor, error) {
	return c.alloc.Alloc(shape, dtype)
}

// Input returns the named input, failing if it is absent.
func (c *Context) Input(name string) (*tensor.RawTensor, error) {
	t, ok := c.Inputs[name]
	if !ok || t == nil {
		return nil, &InvalidKernelInputError{OpID: c.OpID, Detail: fmt.Sprintf("missing input %q", name)}
	}
	return t, nil
}

// Func is a kernel body. It returns one or more freshly allocated outputs.
type Func func(ctx *Context) ([]*tensor.RawTensor, error)

// TypedFunc is a kernel body that receives its concrete attribute record.
type TypedFunc[A Attrs] func(ctx *Context, attrs A) ([]*tensor.RawTensor, error)

// Typed adapts fn to Func. The attribute type is checked once per call; a
// mismatch is reported as an InvalidKernelInputError instead of panicking.
func Typed[A Attrs](fn TypedFunc[A]) Func {
	return func(ctx *Context) ([]*tensor.RawTensor, error) {
		attrs, ok := ctx.Attrs.(A)
		if !ok {
			var want A
			return nil, &InvalidKernelInputError{
				OpID:   ctx.OpID,
				Detail: fmt.Sprintf("attributes have type %T, kernel expects %T", ctx.Attrs, want),
			}
		}
		return fn(ctx, attrs)
	}
}

// Config is one kernel registration record.
type Config struct {
	// OpID is the operation identity the kernel implements.
	OpID OpID
	// Backend is the name of the backend the kernel runs on.
	Backend string
	// Inputs is the exact set of input names the kernel consumes.
	Inputs []string
	// Func is the kernel body.
	Func Func
}

// CheckInputs verifies that inputs carries exactly the kernel's declared
// input names, all non-nil.
func (c *Config) CheckInputs(inputs NamedTensorMap) error {
	expected := slices.Sorted(slices.Values(c.Inputs))
	actual := inputs.Keys()
	if !slices.Equal(expected, actual) {
		return &InvalidKernelInputError{OpID: c.OpID, Expected: expected, Actual: actual}
	}
	for _, name := range actual {
		if inputs[name] == nil {
			return &InvalidKernelInputError{OpID: c.OpID, Expected: expected, Actual: actual,
				Detail: fmt.Sprintf("input %q is nil", name)}
		}
	}
	return nil
}
