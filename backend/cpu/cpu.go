// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the pure Go reference backend.
package cpu

import (
	"github.com/born-ml/dispatch/engine"
	internalcpu "github.com/born-ml/dispatch/internal/backend/cpu"
	"github.com/born-ml/dispatch/internal/parallel"
)

// Backend represents the CPU backend implementation.
type Backend = internalcpu.CPUBackend

// Name is the registry key of the CPU backend.
const Name = internalcpu.Name

// Compile-time check that Backend can be plugged into an engine.
var _ engine.Backend = (*Backend)(nil)

// ParallelConfig controls how kernels split work across goroutines.
type ParallelConfig = parallel.Config

// New creates a new CPU backend.
//
// Example:
//
//	eng := engine.NewWithRegistry(nil)
//	if err := eng.RegisterBackend(cpu.New()); err != nil { ... }
func New() *Backend {
	return internalcpu.New()
}

// NewWithConfig creates a CPU backend with explicit parallelism settings.
func NewWithConfig(cfg ParallelConfig) *Backend {
	return internalcpu.NewWithConfig(cfg)
}
