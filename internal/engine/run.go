package engine

import (
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/dispatch/internal/kernel"
	"github.com/born-ml/dispatch/internal/tensor"
)

// RunKernel dispatches op to the active backend and returns its first output.
// See RunKernelMulti.
func (e *Engine) RunKernel(op kernel.OpID, inputs kernel.Inputs, attrs kernel.Attrs) (*tensor.RawTensor, error) {
	outputs, err := e.runKernel(nil, op, inputs, attrs)
	if err != nil {
		return nil, err
	}
	return outputs[0], nil
}

// RunKernelMulti dispatches op to the active backend. inputs is a typed
// record such as kernel.ScanInputs, or a kernel.NamedTensorMap.
//
// Steps:
//  1. Resolve the kernel for (op, active backend); *kernel.KernelNotFoundError if absent.
//  2. Check that inputs match the kernel schema exactly and that attrs validate.
//  3. Run the kernel inside a per-call scope: intermediates it allocates but
//     does not return are released, and on failure everything it allocated is.
//  4. Record a trace node, only on success.
//  5. Return the outputs; the innermost open scope on the stack, if any,
//     takes ownership. Scope.RunKernelMulti hands them to that scope instead.
//
// The call is synchronous: outputs are valid handles when it returns.
func (e *Engine) RunKernelMulti(op kernel.OpID, inputs kernel.Inputs, attrs kernel.Attrs) ([]*tensor.RawTensor, error) {
	return e.runKernel(nil, op, inputs, attrs)
}

func (e *Engine) runKernel(owner *Scope, op kernel.OpID, in kernel.Inputs, attrs kernel.Attrs) ([]*tensor.RawTensor, error) {
	if in == nil {
		return nil, &kernel.InvalidKernelInputError{OpID: op, Detail: "nil input record"}
	}
	inputs := in.Named()

	e.mu.Lock()
	backend, err := e.activeLocked()
	scope := owner
	if scope == nil {
		scope = e.currentLocked()
	}
	var scopePath string
	if scope != nil {
		scopePath = scope.Path()
	}
	e.mu.Unlock()
	if err != nil {
		return nil, errors.Wrapf(err, "running %s", op)
	}

	cfg, err := e.registry.Lookup(op, backend.Name())
	if err != nil {
		return nil, err
	}
	if err := cfg.CheckInputs(inputs); err != nil {
		return nil, err
	}
	for name, in := range inputs {
		if in.IsReleased() {
			return nil, tensor.InvalidArgumentf("input %q of %s refers to released tensor #%d", name, op, in.ID())
		}
	}
	if attrs == nil {
		attrs = kernel.NoAttrs{}
	}
	if err := attrs.Validate(); err != nil {
		return nil, err
	}

	klog.V(2).Infof("run %s on %s (scope %q, inputs %v)", op, backend.Name(), scopePath, inputs.Keys())
	ks := &kernelScope{engine: e, backend: backend}
	ctx := kernel.NewContext(op, inputs, attrs, backend, ks)

	var outputs []*tensor.RawTensor
	if p := exceptions.TryCatch[any](func() { outputs, err = cfg.Func(ctx) }); p != nil {
		err = errors.Wrapf(ErrKernelFailed, "%s on %s panicked: %v", op, backend.Name(), p)
	}
	if err == nil && len(outputs) == 0 {
		err = errors.Wrapf(ErrKernelFailed, "%s on %s returned no outputs", op, backend.Name())
	}
	if err == nil && slices.Contains(outputs, nil) {
		err = errors.Wrapf(ErrKernelFailed, "%s on %s returned a nil output", op, backend.Name())
	}
	if err != nil {
		ks.releaseAll()
		if errors.Is(err, tensor.ErrInvalidArgument) || errors.Is(err, kernel.ErrInvalidKernelInput) ||
			errors.Is(err, ErrKernelFailed) {
			return nil, err
		}
		return nil, errors.Wrapf(ErrKernelFailed, "%s on %s: %v", op, backend.Name(), err)
	}

	outputs = ks.finish(inputs, outputs)
	e.trace.record(op, backend.Name(), scopePath, inputs, outputs, attrs)
	for _, out := range outputs {
		e.adopt(owner, out)
	}
	return outputs, nil
}

// kernelScope is the per-call allocator handed to kernels. It is never shared
// between calls, so concurrent RunKernel calls do not interfere.
type kernelScope struct {
	engine    *Engine
	backend   Backend
	allocated []*tensor.RawTensor
}

// Alloc implements tensor.Allocator.
func (ks *kernelScope) Alloc(shape tensor.Shape, dtype tensor.DataType) (*tensor.RawTensor, error) {
	t, err := ks.backend.Alloc(shape, dtype)
	if err != nil {
		return nil, err
	}
	ks.engine.trackMemory(t)
	ks.allocated = append(ks.allocated, t)
	return t, nil
}

// finish releases intermediates and gives the caller one reference to every
// output. An output that aliases an input is retained so the caller owns a
// reference of its own.
func (ks *kernelScope) finish(inputs kernel.NamedTensorMap, outputs []*tensor.RawTensor) []*tensor.RawTensor {
	seen := make(map[*tensor.RawTensor]bool, len(outputs))
	result := make([]*tensor.RawTensor, len(outputs))
	for i, out := range outputs {
		owned := slices.Contains(ks.allocated, out) && !seen[out]
		aliased := false
		for _, in := range inputs {
			if in == out {
				aliased = true
				break
			}
		}
		switch {
		case owned:
		case aliased || seen[out]:
			out.Retain()
		default:
			// Allocated behind the engine's back; start accounting for it now.
			ks.engine.trackMemory(out)
		}
		seen[out] = true
		result[i] = out
	}

	for _, t := range ks.allocated {
		if !seen[t] {
			t.Release()
		}
	}
	ks.allocated = nil
	return result
}

func (ks *kernelScope) releaseAll() {
	for _, t := range ks.allocated {
		t.Release()
	}
	ks.allocated = nil
}
