// Package parallel splits independent index ranges across goroutines.
// Kernels use it to scan many slices of a tensor at once; every call returns
// only after all work is done, so callers stay synchronous.
package parallel

import (
	"runtime"
	"sync"

	"github.com/pkg/errors"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool `yaml:"enabled"`   // Whether parallel execution is enabled.
	NumWorkers   int  `yaml:"workers"`   // Number of worker goroutines to use.
	MinChunkSize int  `yaml:"min_chunk"` // Minimum items per goroutine to avoid overhead.
}

// DefaultConfig returns defaults based on CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 64,
	}
}

// Sequential returns a config that never spawns goroutines.
func Sequential() Config {
	return Config{Enabled: false, NumWorkers: 1, MinChunkSize: 1}
}

// Validate checks the config for values For cannot work with.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.NumWorkers < 1 {
		return errors.Errorf("parallel: workers must be >= 1, got %d", c.NumWorkers)
	}
	if c.MinChunkSize < 1 {
		return errors.Errorf("parallel: min_chunk must be >= 1, got %d", c.MinChunkSize)
	}
	return nil
}

// ForRange calls f(start, end) over disjoint ranges covering [0, n).
// Falls back to a single f(0, n) call if parallelism is disabled or n is too
// small to be worth splitting.
func ForRange(n int, f func(start, end int), cfg Config) {
	if n <= 0 {
		return
	}
	if !cfg.Enabled || cfg.NumWorkers <= 1 || n < 2*max(cfg.MinChunkSize, 1) {
		f(0, n)
		return
	}

	var wg sync.WaitGroup
	chunkSize := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize)
	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			f(s, e)
		}(start, end)
	}
	wg.Wait()
}

// For executes f(i) for i in [0, n) with optional parallelism.
func For(n int, f func(i int), cfg Config) {
	ForRange(n, func(start, end int) {
		for i := start; i < end; i++ {
			f(i)
		}
	}, cfg)
}
