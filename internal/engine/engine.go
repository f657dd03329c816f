// Package engine implements kernel dispatch.
//
// An Engine owns the set of registered backends, the active backend, a stack
// of resource-tracking scopes and a computation trace. Operation wrappers
// call RunKernel with an operation identity, a named input map and a typed
// attribute record; the engine resolves the kernel for the active backend in
// its kernel.Registry, validates the inputs against the kernel schema, runs
// the kernel inside a per-call tracking scope, records a trace node and hands
// the outputs back to the caller.
//
// Architecture:
//   - Registry: explicit kernel.Registry, shared by reference, no globals
//   - Scopes: strictly nested, release every tracked tensor not returned or kept
//   - Trace: append-only, written only after a kernel succeeds
//
// Usage:
//
//	reg := kernel.NewRegistry()
//	eng := engine.New(reg)
//	if err := eng.RegisterBackend(cpu.New()); err != nil { ... }
//	out, err := eng.RunKernel(kernel.Cumprod, inputs, attrs)
package engine

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/dispatch/internal/kernel"
	"github.com/born-ml/dispatch/internal/tensor"
)

// Backend is a compute provider that can be plugged into an engine.
type Backend interface {
	tensor.Backend

	// RegisterKernels adds the backend's kernels to reg.
	RegisterKernels(reg *kernel.Registry) error
}

// Engine dispatches operations to kernels of the active backend.
//
// RunKernel and per-call scopes (OpenScope) may be used from several
// goroutines; operations in package ops run in per-call scopes. Scopes opened
// with StartScope belong to the engine as a whole and must be strictly
// nested, so goroutines that need their own stack should use separate engines
// sharing one registry.
type Engine struct {
	registry *kernel.Registry
	trace    *Trace

	mu       sync.Mutex
	backends map[string]Backend
	order    []string
	active   string
	scopes   []*Scope
	detached map[*Scope]struct{}

	numTensors atomic.Int64
	numBytes   atomic.Int64
}

// Option configures an Engine.
type Option func(*Engine)

// WithTrace makes the engine start with trace recording enabled.
func WithTrace(enabled bool) Option {
	return func(e *Engine) {
		if enabled {
			e.trace.StartRecording()
		}
	}
}

// New creates an engine dispatching through reg.
func New(reg *kernel.Registry, opts ...Option) *Engine {
	if reg == nil {
		reg = kernel.NewRegistry()
	}
	e := &Engine{
		registry: reg,
		trace:    NewTrace(),
		backends: make(map[string]Backend),
		detached: make(map[*Scope]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the kernel registry the engine dispatches through.
func (e *Engine) Registry() *kernel.Registry {
	return e.registry
}

// Trace returns the engine's computation trace.
func (e *Engine) Trace() *Trace {
	return e.trace
}

// RegisterBackend adds b and lets it register its kernels. The first
// registered backend becomes the active one.
//
// A backend name can only be registered once per engine. Kernels already in a
// shared registry for the same backend name are kept, so several engines can
// register equivalent backends against one registry.
func (e *Engine) RegisterBackend(b Backend) error {
	name := b.Name()
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.backends[name]; ok {
		return errors.Errorf("backend %q already registered", name)
	}
	if len(e.registry.Kernels(name)) == 0 {
		if err := b.RegisterKernels(e.registry); err != nil {
			return errors.Wrapf(err, "registering kernels of backend %q", name)
		}
	}

	e.backends[name] = b
	e.order = append(e.order, name)
	if e.active == "" {
		e.active = name
	}
	klog.V(1).Infof("backend %s registered on %s (%d kernels)", name, b.Device(), len(e.registry.Kernels(name)))
	return nil
}

// SetBackend selects the backend subsequent operations dispatch to.
func (e *Engine) SetBackend(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.backends[name]; !ok {
		return errors.Wrapf(ErrUnknownBackend, "%q (registered: %v)", name, e.order)
	}
	e.active = name
	klog.V(1).Infof("active backend set to %s", name)
	return nil
}

// Backend returns the active backend.
func (e *Engine) Backend() (Backend, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activeLocked()
}

func (e *Engine) activeLocked() (Backend, error) {
	if e.active == "" {
		return nil, ErrNoBackend
	}
	return e.backends[e.active], nil
}

// BackendName returns the name of the active backend, or "" if none.
func (e *Engine) BackendName() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Backends returns the registered backend names in registration order.
func (e *Engine) Backends() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.order)
}

// Alloc allocates a tensor on the active backend and tracks it in the
// innermost scope on the stack.
func (e *Engine) Alloc(shape tensor.Shape, dtype tensor.DataType) (*tensor.RawTensor, error) {
	return e.alloc(nil, shape, dtype)
}

func (e *Engine) alloc(s *Scope, shape tensor.Shape, dtype tensor.DataType) (*tensor.RawTensor, error) {
	b, err := e.Backend()
	if err != nil {
		return nil, err
	}
	t, err := b.Alloc(shape, dtype)
	if err != nil {
		return nil, err
	}
	e.trackMemory(t)
	e.adopt(s, t)
	return t, nil
}

// Convert normalizes a tensor or tensor-like literal through the engine's
// allocator. See tensor.Convert.
func (e *Engine) Convert(value any, argName, opName string) (*tensor.RawTensor, error) {
	return tensor.Convert(value, argName, opName, e)
}

// MemoryInfo is a snapshot of the storage the engine is accounting for.
type MemoryInfo struct {
	NumTensors int
	NumBytes   int
	NumScopes  int
}

// Memory returns the number of live tensors allocated through the engine.
func (e *Engine) Memory() MemoryInfo {
	e.mu.Lock()
	numScopes := len(e.scopes) + len(e.detached)
	e.mu.Unlock()
	return MemoryInfo{
		NumTensors: int(e.numTensors.Load()),
		NumBytes:   int(e.numBytes.Load()),
		NumScopes:  numScopes,
	}
}

// trackMemory accounts for t until its storage is freed.
func (e *Engine) trackMemory(t *tensor.RawTensor) {
	size := int64(t.ByteSize())
	e.numTensors.Add(1)
	e.numBytes.Add(size)
	t.OnRelease(func() {
		e.numTensors.Add(-1)
		e.numBytes.Add(-size)
	})
}
