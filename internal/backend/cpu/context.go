// Package cpu implements the CPU execution context and the Go compute
// kernels used by every layer.
package cpu

import (
	"fmt"
	"sync"

	"github.com/born-ml/dcgan/internal/parallel"
	"github.com/born-ml/dcgan/internal/tensor"
)

// Config configures a CPU context.
type Config struct {
	// MaxBytes caps live accelerated storage. Zero means unlimited.
	MaxBytes uint64

	// Parallel controls kernel parallelism. Zero value selects
	// parallel.DefaultConfig().
	Parallel parallel.Config
}

// Context is an execution context whose accelerated storage is a Go slice.
// Kernels run on goroutines started by the session.
type Context struct {
	cfg     Config
	kernels Kernels

	memoryStats struct {
		liveBytes   uint64
		peakBytes   uint64
		liveBuffers int64
		allocations uint64
		mu          sync.Mutex
	}
}

// New creates a CPU context.
func New(cfg Config) *Context {
	if cfg.Parallel.NumWorkers == 0 {
		cfg.Parallel = parallel.DefaultConfig()
	}
	return &Context{
		cfg:     cfg,
		kernels: Kernels{Parallel: cfg.Parallel},
	}
}

// Name returns the context name.
func (c *Context) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (c *Context) Device() tensor.Device {
	return tensor.CPU
}

// Kernels returns the kernel set configured for this context.
func (c *Context) Kernels() Kernels {
	return c.kernels
}

// Alloc acquires n float32 elements of accelerated storage.
func (c *Context) Alloc(n int) (tensor.Buffer, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: invalid element count %d", tensor.ErrAllocation, n)
	}
	size := uint64(n) * 4 //nolint:gosec // G115: n is positive

	c.memoryStats.mu.Lock()
	defer c.memoryStats.mu.Unlock()

	if c.cfg.MaxBytes > 0 && c.memoryStats.liveBytes+size > c.cfg.MaxBytes {
		return nil, fmt.Errorf("%w: %d bytes requested, %d of %d in use",
			tensor.ErrAllocation, size, c.memoryStats.liveBytes, c.cfg.MaxBytes)
	}

	c.memoryStats.liveBytes += size
	c.memoryStats.liveBuffers++
	c.memoryStats.allocations++
	if c.memoryStats.liveBytes > c.memoryStats.peakBytes {
		c.memoryStats.peakBytes = c.memoryStats.liveBytes
	}

	return &buffer{data: make([]float32, n), ctx: c}, nil
}

// Sync is a no-op: CPU kernels complete before their op returns.
func (c *Context) Sync() error {
	return nil
}

func (c *Context) trackRelease(size uint64) {
	c.memoryStats.mu.Lock()
	defer c.memoryStats.mu.Unlock()

	if c.memoryStats.liveBytes >= size {
		c.memoryStats.liveBytes -= size
	}
	c.memoryStats.liveBuffers--
}

// MemoryStats represents accelerated storage usage.
type MemoryStats struct {
	LiveBytes   uint64 // Bytes currently allocated
	PeakBytes   uint64 // Peak live bytes
	LiveBuffers int64  // Buffers not yet released
	Allocations uint64 // Total successful allocations
}

// MemoryStats returns current storage statistics.
func (c *Context) MemoryStats() MemoryStats {
	c.memoryStats.mu.Lock()
	defer c.memoryStats.mu.Unlock()

	return MemoryStats{
		LiveBytes:   c.memoryStats.liveBytes,
		PeakBytes:   c.memoryStats.peakBytes,
		LiveBuffers: c.memoryStats.liveBuffers,
		Allocations: c.memoryStats.allocations,
	}
}

// buffer is slice-backed accelerated storage.
type buffer struct {
	data []float32
	ctx  *Context
	once sync.Once
}

func (b *buffer) Len() int {
	return len(b.data)
}

func (b *buffer) Float32() []float32 {
	return b.data
}

func (b *buffer) Release() {
	b.once.Do(func() {
		b.ctx.trackRelease(uint64(len(b.data)) * 4) //nolint:gosec // G115: len is non-negative
		b.data = nil
	})
}

// KernelsFor returns the kernels configured by ctx, or defaults when ctx
// does not carry a kernel configuration.
func KernelsFor(ctx tensor.Context) Kernels {
	if k, ok := ctx.(interface{ Kernels() Kernels }); ok {
		return k.Kernels()
	}
	return Kernels{Parallel: parallel.DefaultConfig()}
}

// Kernels groups the Go compute kernels with their parallelism settings.
// All kernels operate on flat float32 slices in (n, h, w, c) order.
type Kernels struct {
	Parallel parallel.Config
}

func (k Kernels) forEach(n int, f func(i int)) {
	parallel.For(n, k.Parallel, f)
}

func (k Kernels) forRows(batch, rows int, f func(n, r int)) {
	parallel.ForGrid(batch, rows, k.Parallel, f)
}

func (k Kernels) chunks(n int, f func(lo, hi int)) {
	parallel.Range(n, k.Parallel, f)
}
