package engine

import (
	"slices"
	"strings"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/dispatch/internal/kernel"
	"github.com/born-ml/dispatch/internal/tensor"
)

// Scope is a resource-tracking region. Tensors produced in a scope are owned
// by it and released when it ends, unless they are returned from the scope or
// kept.
//
// Scopes come in two kinds. StartScope pushes a scope on the engine's stack:
// it captures everything produced through the engine while it is innermost.
// OpenScope creates a per-call scope that is not on the stack: it only
// captures what is produced through its own Alloc, Convert and RunKernel
// methods, so concurrent calls on one engine never see each other's tensors.
//
// All fields are guarded by the owning engine's mutex.
type Scope struct {
	engine   *Engine
	name     string
	parent   *Scope
	tracked  []*tensor.RawTensor
	detached bool
	closed   bool
}

// Name returns the scope name.
func (s *Scope) Name() string {
	return s.name
}

// Path returns the slash-separated names from the outermost scope down.
func (s *Scope) Path() string {
	var names []string
	for cur := s; cur != nil; cur = cur.parent {
		names = append(names, cur.name)
	}
	var sb strings.Builder
	for i := len(names) - 1; i >= 0; i-- {
		sb.WriteString(names[i])
		if i > 0 {
			sb.WriteByte('/')
		}
	}
	return sb.String()
}

func (s *Scope) untrack(t *tensor.RawTensor) bool {
	for i, cur := range s.tracked {
		if cur == t {
			s.tracked = append(s.tracked[:i], s.tracked[i+1:]...)
			return true
		}
	}
	return false
}

// Alloc allocates a tensor on the active backend owned by s.
func (s *Scope) Alloc(shape tensor.Shape, dtype tensor.DataType) (*tensor.RawTensor, error) {
	return s.engine.alloc(s, shape, dtype)
}

// Convert normalizes a tensor or tensor-like literal; converted literals are
// owned by s.
func (s *Scope) Convert(value any, argName, opName string) (*tensor.RawTensor, error) {
	return tensor.Convert(value, argName, opName, s)
}

// RunKernel is Engine.RunKernel with the outputs owned by s.
func (s *Scope) RunKernel(op kernel.OpID, inputs kernel.Inputs, attrs kernel.Attrs) (*tensor.RawTensor, error) {
	outputs, err := s.engine.runKernel(s, op, inputs, attrs)
	if err != nil {
		return nil, err
	}
	return outputs[0], nil
}

// RunKernelMulti is Engine.RunKernelMulti with the outputs owned by s.
func (s *Scope) RunKernelMulti(op kernel.OpID, inputs kernel.Inputs, attrs kernel.Attrs) ([]*tensor.RawTensor, error) {
	return s.engine.runKernel(s, op, inputs, attrs)
}

// StartScope opens a nested scope on the engine's stack.
func (e *Engine) StartScope(name string) *Scope {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := &Scope{engine: e, name: name}
	if n := len(e.scopes); n > 0 {
		s.parent = e.scopes[n-1]
	}
	e.scopes = append(e.scopes, s)
	return s
}

// EndScope closes s, which must be the innermost open scope on the stack.
// Tensors tracked by s are released, except those listed in results: they move
// to the parent scope, or to the caller when s is the outermost scope.
func (e *Engine) EndScope(s *Scope, results ...*tensor.RawTensor) error {
	e.mu.Lock()
	n := len(e.scopes)
	if s.detached || n == 0 || e.scopes[n-1] != s {
		e.mu.Unlock()
		klog.Warningf("unbalanced scope: closing %q which is not the innermost scope", s.Path())
		return errors.Wrapf(ErrScope, "scope %q is not the innermost open scope", s.Path())
	}
	e.scopes = e.scopes[:n-1]
	release := closeLocked([]*Scope{s}, s.parent, results)
	e.mu.Unlock()

	releaseAll(release)
	return nil
}

// unwind closes s and every scope opened above it on the stack. Scopes left
// open by the body of a Tidy are closed with it; their results are kept.
func (e *Engine) unwind(s *Scope, results ...*tensor.RawTensor) error {
	e.mu.Lock()
	idx := slices.Index(e.scopes, s)
	if idx < 0 {
		e.mu.Unlock()
		return errors.Wrapf(ErrScope, "scope %q is not open", s.Path())
	}
	popped := slices.Clone(e.scopes[idx:])
	e.scopes = e.scopes[:idx]
	release := closeLocked(popped, s.parent, results)
	e.mu.Unlock()

	if len(popped) > 1 {
		klog.Warningf("scope %q closed with %d inner scopes still open", s.Path(), len(popped)-1)
	}
	releaseAll(release)
	return nil
}

// OpenScope creates a per-call scope that is not pushed on the engine's stack.
// Its parent, for naming and for receiving results, is the innermost stack
// scope at the time of the call. Close it with CloseScope.
func (e *Engine) OpenScope(name string) *Scope {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := &Scope{engine: e, name: name, detached: true}
	if n := len(e.scopes); n > 0 {
		s.parent = e.scopes[n-1]
	}
	e.detached[s] = struct{}{}
	return s
}

// CloseScope closes a scope created by OpenScope. Tracked tensors are
// released except results, which move to the parent scope if it is still
// open, or to the caller otherwise.
func (e *Engine) CloseScope(s *Scope, results ...*tensor.RawTensor) error {
	e.mu.Lock()
	if !s.detached || s.closed {
		e.mu.Unlock()
		return errors.Wrapf(ErrScope, "scope %q is not an open per-call scope", s.Path())
	}
	delete(e.detached, s)
	release := closeLocked([]*Scope{s}, s.parent, results)
	e.mu.Unlock()

	releaseAll(release)
	return nil
}

// closeLocked marks scopes closed and returns the tensors to release. Results
// tracked by any of them are handed to parent, unless it is closed too.
func closeLocked(scopes []*Scope, parent *Scope, results []*tensor.RawTensor) []*tensor.RawTensor {
	var release []*tensor.RawTensor
	for _, s := range scopes {
		for _, t := range s.tracked {
			if !slices.Contains(results, t) {
				release = append(release, t)
				continue
			}
			if parent != nil && !parent.closed && !slices.Contains(parent.tracked, t) {
				parent.tracked = append(parent.tracked, t)
			}
		}
		s.tracked = nil
		s.closed = true
	}
	return release
}

func releaseAll(ts []*tensor.RawTensor) {
	for _, t := range ts {
		t.Release()
	}
}

// Tidy runs fn inside a scope named name and releases every tensor produced
// in it except the ones fn returns. The scope, and any scope fn left open
// above it, is closed on every exit path, including errors and panics.
func (e *Engine) Tidy(name string, fn func() ([]*tensor.RawTensor, error)) (results []*tensor.RawTensor, err error) {
	s := e.StartScope(name)
	defer func() {
		if r := recover(); r != nil {
			_ = e.unwind(s)
			panic(r)
		}
	}()

	results, err = fn()
	if err != nil {
		if endErr := e.unwind(s); endErr != nil {
			klog.Warningf("closing scope %q after error: %v", name, endErr)
		}
		return nil, err
	}
	if err := e.unwind(s, results...); err != nil {
		return nil, err
	}
	return results, nil
}

// Keep exempts t from release by any open scope. The caller becomes
// responsible for releasing it.
func (e *Engine) Keep(t *tensor.RawTensor) *tensor.RawTensor {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range e.scopes {
		s.untrack(t)
	}
	for s := range e.detached {
		s.untrack(t)
	}
	return t
}

// CurrentScope returns the innermost open scope on the stack, or nil.
func (e *Engine) CurrentScope() *Scope {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentLocked()
}

func (e *Engine) currentLocked() *Scope {
	if n := len(e.scopes); n > 0 {
		return e.scopes[n-1]
	}
	return nil
}

// adopt hands t to s, or to the innermost stack scope when s is nil.
func (e *Engine) adopt(s *Scope, t *tensor.RawTensor) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s == nil {
		s = e.currentLocked()
	}
	if s != nil && !s.closed {
		s.tracked = append(s.tracked, t)
	}
}
