// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package engine provides the kernel-dispatch engine.
//
// Operations (see package ops) normalize their arguments into a named input
// map and a typed attribute record and hand them to Engine.RunKernel, which
// resolves the kernel registered for the active backend, runs it inside a
// resource-tracking scope and optionally records the call in a trace.
//
// Example:
//
//	eng := engine.MustNew()
//	eng.Trace().StartRecording()
//	out, err := ops.Cumprod(eng, []float32{1, 2, 3, 4})
package engine

import (
	"github.com/pkg/errors"

	internalcpu "github.com/born-ml/dispatch/internal/backend/cpu"
	"github.com/born-ml/dispatch/internal/config"
	internal "github.com/born-ml/dispatch/internal/engine"
	"github.com/born-ml/dispatch/internal/kernel"
)

// Engine dispatches operations to kernels of the active backend.
type Engine = internal.Engine

// Backend is a compute provider that can be plugged into an engine.
type Backend = internal.Backend

// Option configures an Engine.
type Option = internal.Option

// Scope is a resource-tracking region; see Engine.StartScope and Engine.Tidy.
type Scope = internal.Scope

// Trace is the append-only record of kernel invocations.
type Trace = internal.Trace

// TraceNode is one recorded kernel invocation.
type TraceNode = internal.TraceNode

// MemoryInfo is a snapshot of the storage an engine accounts for.
type MemoryInfo = internal.MemoryInfo

// Config holds engine settings loaded from YAML.
type Config = config.Config

// Registry maps (operation, backend) pairs to kernels.
type Registry = kernel.Registry

// OpID names a kernel family.
type OpID = kernel.OpID

// Errors reported by the engine. Use errors.Is to match them.
var (
	ErrNoBackend          = internal.ErrNoBackend
	ErrUnknownBackend     = internal.ErrUnknownBackend
	ErrKernelFailed       = internal.ErrKernelFailed
	ErrScope              = internal.ErrScope
	ErrKernelNotFound     = kernel.ErrKernelNotFound
	ErrInvalidKernelInput = kernel.ErrInvalidKernelInput
)

// KernelNotFoundError carries the operation and backend of a failed lookup.
type KernelNotFoundError = kernel.KernelNotFoundError

// InvalidKernelInputError carries the expected and actual input names.
type InvalidKernelInputError = kernel.InvalidKernelInputError

// WithTrace makes the engine start with trace recording enabled.
func WithTrace(enabled bool) Option {
	return internal.WithTrace(enabled)
}

// NewRegistry creates an empty kernel registry.
func NewRegistry() *Registry {
	return kernel.NewRegistry()
}

// NewWithRegistry creates an engine without backends, dispatching through reg.
// A nil reg gets a fresh registry.
func NewWithRegistry(reg *Registry, opts ...Option) *Engine {
	return internal.New(reg, opts...)
}

// New creates an engine with the CPU backend registered and active, using
// the default configuration.
func New() (*Engine, error) {
	return NewFromConfig(config.Default(), nil)
}

// MustNew is like New but panics on error.
func MustNew() *Engine {
	e, err := New()
	if err != nil {
		panic(err)
	}
	return e
}

// NewFromConfig creates an engine from cfg, registering the CPU backend
// and activating cfg.Backend. A nil reg gets a fresh registry; passing a
// shared one lets several engines reuse the same kernels.
func NewFromConfig(cfg Config, reg *Registry) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := internal.New(reg, internal.WithTrace(cfg.Trace))
	if err := e.RegisterBackend(internalcpu.NewWithConfig(cfg.Parallel)); err != nil {
		return nil, err
	}
	if err := e.SetBackend(cfg.Backend); err != nil {
		return nil, errors.WithMessage(err, "configured backend")
	}
	return e, nil
}

// DefaultConfig returns the settings New uses.
func DefaultConfig() Config {
	return config.Default()
}

// LoadConfig reads engine settings from a YAML file.
func LoadConfig(path string) (Config, error) {
	return config.Load(path)
}
