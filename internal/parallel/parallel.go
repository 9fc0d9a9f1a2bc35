// Package parallel provides chunked parallel loops for the compute kernels.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Number of worker goroutines to use.
	MinChunkSize int  // Minimum items per goroutine to avoid overhead.
}

// DefaultConfig returns defaults based on CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 1,
	}
}

// Sequential returns a config that never spawns goroutines.
func Sequential() Config {
	return Config{Enabled: false, NumWorkers: 1, MinChunkSize: 1}
}

// Range splits [0, n) into contiguous chunks and calls f(lo, hi) for each.
// Every index is visited exactly once. Falls back to a single call when
// parallelism is disabled or n is too small to split.
func Range(n int, cfg Config, f func(lo, hi int)) {
	if n <= 0 {
		return
	}
	minChunk := max(cfg.MinChunkSize, 1)
	workers := max(cfg.NumWorkers, 1)
	if !cfg.Enabled || workers == 1 || n < 2*minChunk {
		f(0, n)
		return
	}

	chunkSize := max((n+workers-1)/workers, minChunk)

	var wg sync.WaitGroup
	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			f(lo, hi)
		}(start, end)
	}
	wg.Wait()
}

// For executes f(i) for i in [0, n).
func For(n int, cfg Config, f func(i int)) {
	Range(n, cfg, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			f(i)
		}
	})
}

// ForGrid executes f(a, b) over a rows x cols grid, parallelised over the
// flattened index. Common for (batch, row) and (filter, channel) loops.
func ForGrid(rows, cols int, cfg Config, f func(r, c int)) {
	if cols <= 0 {
		return
	}
	For(rows*cols, cfg, func(k int) {
		f(k/cols, k%cols)
	})
}
