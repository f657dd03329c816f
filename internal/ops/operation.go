// Package ops implements the public operations on top of the engine.
//
// Every operation is declared with Op, which wraps its body with the
// behavior shared by all operations: a named per-call scope (so literal
// inputs converted on the way in are released on the way out, and the name
// shows up in trace nodes), panic capture, and error messages prefixed with
// the operation name. Per-call scopes are independent of each other, so
// operations may run concurrently on one engine.
package ops

import (
	"slices"
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/dispatch/internal/engine"
	"github.com/born-ml/dispatch/internal/tensor"
)

// Body is the raw implementation of an operation: convert arguments, build
// the typed input/attribute records and run the kernel, all through s.
type Body[A any] func(s *engine.Scope, args A) (*tensor.RawTensor, error)

// Operation is an operation body decorated with the shared behavior.
type Operation[A any] struct {
	name string
	body Body[A]
}

var (
	namesMu sync.Mutex
	names   []string
)

// Op declares an operation. Names must be unique.
func Op[A any](name string, body Body[A]) *Operation[A] {
	namesMu.Lock()
	defer namesMu.Unlock()
	if slices.Contains(names, name) {
		panic("ops: operation " + name + " declared twice")
	}
	names = append(names, name)
	return &Operation[A]{name: name, body: body}
}

// Names returns the declared operation names, sorted.
func Names() []string {
	namesMu.Lock()
	defer namesMu.Unlock()
	return slices.Sorted(slices.Values(names))
}

// Name returns the operation name.
func (op *Operation[A]) Name() string {
	return op.name
}

// Call runs the operation on e.
func (op *Operation[A]) Call(e *engine.Engine, args A) (*tensor.RawTensor, error) {
	if e == nil {
		return nil, tensor.InvalidArgumentf("%s: nil engine", op.name)
	}

	var (
		out *tensor.RawTensor
		err error
	)
	s := e.OpenScope(op.name)
	p := exceptions.TryCatch[any](func() {
		out, err = op.body(s, args)
	})
	if p == nil && err == nil {
		err = e.CloseScope(s, out)
		if err == nil {
			return out, nil
		}
	} else if closeErr := e.CloseScope(s); closeErr != nil {
		klog.Warningf("%s: %v", op.name, closeErr)
	}
	if p != nil {
		return nil, errors.Wrapf(engine.ErrKernelFailed, "%s panicked: %v", op.name, p)
	}
	return nil, errors.WithMessage(err, op.name)
}
