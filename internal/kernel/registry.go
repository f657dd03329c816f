package kernel

import (
	"cmp"
	"slices"
	"sync"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

type registryKey struct {
	op      OpID
	backend string
}

// Registry maps (operation, backend) pairs to kernel configs.
//
// Backends populate it while they are being registered with an engine; after
// that it is only read. Lookups are safe for concurrent use, and one Registry
// may be shared by several engines.
type Registry struct {
	mu      sync.RWMutex
	kernels map[registryKey]*Config
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		kernels: make(map[registryKey]*Config),
	}
}

// Register adds a kernel. Exactly one kernel may exist per (operation,
// backend) pair, so a second registration fails with ErrDuplicateKernel.
func (r *Registry) Register(cfg Config) error {
	if cfg.OpID == "" || cfg.Backend == "" {
		return errors.Errorf("kernel registration needs an operation and a backend, got %q/%q", cfg.OpID, cfg.Backend)
	}
	if cfg.Func == nil {
		return errors.Errorf("kernel %q for backend %q has no body", cfg.OpID, cfg.Backend)
	}

	key := registryKey{op: cfg.OpID, backend: cfg.Backend}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.kernels[key]; ok {
		return errors.Wrapf(ErrDuplicateKernel, "kernel %q for backend %q", cfg.OpID, cfg.Backend)
	}
	cfg.Inputs = slices.Clone(cfg.Inputs)
	r.kernels[key] = &cfg
	klog.V(1).Infof("registered kernel %s for backend %s", cfg.OpID, cfg.Backend)
	return nil
}

// Unregister removes a kernel. It is meant for tests and backend teardown.
func (r *Registry) Unregister(op OpID, backend string) error {
	key := registryKey{op: op, backend: backend}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.kernels[key]; !ok {
		return &KernelNotFoundError{OpID: op, Backend: backend}
	}
	delete(r.kernels, key)
	return nil
}

// Lookup returns the kernel for op on backend.
// A missing kernel yields *KernelNotFoundError; there is no fallback to
// another backend.
func (r *Registry) Lookup(op OpID, backend string) (*Config, error) {
	r.mu.RLock()
	cfg, ok := r.kernels[registryKey{op: op, backend: backend}]
	r.mu.RUnlock()
	if !ok {
		return nil, &KernelNotFoundError{OpID: op, Backend: backend}
	}
	return cfg, nil
}

// Kernels returns the kernels registered for backend, sorted by operation.
func (r *Registry) Kernels(backend string) []*Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Config
	for key, cfg := range r.kernels {
		if key.backend == backend {
			out = append(out, cfg)
		}
	}
	slices.SortFunc(out, func(a, b *Config) int { return cmp.Compare(a.OpID, b.OpID) })
	return out
}

// SupportedOps returns the sorted operations available on backend.
func (r *Registry) SupportedOps(backend string) []OpID {
	kernels := r.Kernels(backend)
	ops := make([]OpID, 0, len(kernels))
	for _, cfg := range kernels {
		ops = append(ops, cfg.OpID)
	}
	return ops
}

// Len returns the total number of registered kernels.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.kernels)
}
