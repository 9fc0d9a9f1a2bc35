//go:build windows

// Package webgpu implements an execution context whose accelerated storage
// lives in GPU buffers.
// Uses go-webgpu (github.com/go-webgpu/webgpu) for zero-CGO WebGPU bindings.
//
// Every buffer keeps a host shadow. Go kernels read and write the shadow
// through Buffer.Float32; fills, copies and Adam updates run as WGSL
// compute shaders on the device. Each buffer tracks which side is newer and
// transfers lazily, so a pipeline of device kernels never round-trips
// through the host.
package webgpu

import (
	"fmt"
	"sync"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/born-ml/dcgan/internal/backend/cpu"
	"github.com/born-ml/dcgan/internal/parallel"
	"github.com/born-ml/dcgan/internal/tensor"
)

// Config configures a WebGPU context.
type Config struct {
	// MaxBytes caps live buffer storage. Zero means unlimited.
	MaxBytes uint64

	// MaxBatch flushes queued command buffers once this many are pending.
	// Zero queues until the next Sync or readback.
	MaxBatch int

	// Parallel controls the Go kernels run on host shadows.
	Parallel parallel.Config
}

// Context implements tensor.Context on a WebGPU device.
type Context struct {
	cfg Config

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	// Shader and pipeline cache
	shaders   map[string]*wgpu.ShaderModule
	pipelines map[string]*wgpu.ComputePipeline
	mu        sync.RWMutex

	pool *BufferPool

	// Command buffers are accumulated and submitted together. Staging
	// buffers feeding them are released after submission.
	pendingCommands []*wgpu.CommandBuffer
	pendingStaging  []*wgpu.Buffer
	pendingMu       sync.Mutex

	memoryStats struct {
		liveBytes   uint64
		peakBytes   uint64
		liveBuffers int64
		mu          sync.Mutex
	}
}

// Verify that Context implements the device kernel interfaces.
var (
	_ tensor.Context    = (*Context)(nil)
	_ tensor.FillKernel = (*Context)(nil)
	_ tensor.CopyKernel = (*Context)(nil)
	_ tensor.AdamKernel = (*Context)(nil)
)

// New creates a WebGPU context on the high-performance adapter.
// Returns an error if WebGPU is not available or initialization fails.
func New(cfg Config) (ctx *Context, err error) {
	// Recover from panic if wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			ctx = nil
			err = fmt.Errorf("webgpu: native library not available: %v", r)
		}
	}()

	if cfg.Parallel.NumWorkers == 0 {
		cfg.Parallel = parallel.DefaultConfig()
	}

	instance := wgpu.CreateInstance(nil)
	if instance == nil {
		return nil, fmt.Errorf("webgpu: failed to create instance")
	}

	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to request adapter: %w", err)
	}

	device, err := adapter.RequestDevice(nil)
	if err != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to request device: %w", err)
	}

	queue := device.GetQueue()
	if queue == nil {
		device.Release()
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to get queue")
	}

	return &Context{
		cfg:       cfg,
		instance:  instance,
		adapter:   adapter,
		device:    device,
		queue:     queue,
		shaders:   make(map[string]*wgpu.ShaderModule),
		pipelines: make(map[string]*wgpu.ComputePipeline),
		pool:      NewBufferPool(device),
	}, nil
}

// IsAvailable checks if WebGPU is available on this system.
func IsAvailable() (available bool) {
	defer func() {
		if r := recover(); r != nil {
			available = false
		}
	}()

	instance := wgpu.CreateInstance(nil)
	if instance == nil {
		return false
	}
	defer instance.Release()

	adapter, err := instance.RequestAdapter(nil)
	if err != nil {
		return false
	}
	adapter.Release()
	return true
}

// Name returns the context name.
func (c *Context) Name() string {
	return "WebGPU"
}

// Device returns the compute device.
func (c *Context) Device() tensor.Device {
	return tensor.WebGPU
}

// Kernels returns the Go kernel set used on host shadows.
func (c *Context) Kernels() cpu.Kernels {
	return cpu.Kernels{Parallel: c.cfg.Parallel}
}

// Alloc acquires a device buffer of n float32 elements with a zeroed host
// shadow. The shadow is authoritative until the first device kernel.
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

	buf := c.pool.Acquire(size, storageUsage)
	if buf == nil {
		return nil, fmt.Errorf("%w: device refused %d bytes", tensor.ErrAllocation, size)
	}

	c.memoryStats.liveBytes += size
	c.memoryStats.liveBuffers++
	c.memoryStats.peakBytes = max(c.memoryStats.peakBytes, c.memoryStats.liveBytes)

	return &gpuBuffer{
		ctx:    c,
		buf:    buf,
		size:   size,
		shadow: make([]float32, n),
		state:  hostNewer,
	}, nil
}

func (c *Context) free(b *gpuBuffer) {
	c.pool.Release(b.buf, b.size, storageUsage)

	c.memoryStats.mu.Lock()
	c.memoryStats.liveBytes -= b.size
	c.memoryStats.liveBuffers--
	c.memoryStats.mu.Unlock()
}

// Sync submits every queued command buffer and waits for the device to
// finish them.
func (c *Context) Sync() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("webgpu: sync: %v", r)
		}
	}()
	c.flushCommands()
	return c.wait()
}

// queueCommand adds a command buffer to the pending queue for batch submission.
func (c *Context) queueCommand(cmd *wgpu.CommandBuffer, staging ...*wgpu.Buffer) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	c.pendingCommands = append(c.pendingCommands, cmd)
	c.pendingStaging = append(c.pendingStaging, staging...)

	// Auto-flush if batch size limit is reached (0 = no limit)
	if c.cfg.MaxBatch > 0 && len(c.pendingCommands) >= c.cfg.MaxBatch {
		c.flushCommandsLocked()
	}
}

// flushCommands submits all pending command buffers to the GPU queue.
func (c *Context) flushCommands() {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	c.flushCommandsLocked()
}

func (c *Context) flushCommandsLocked() {
	if len(c.pendingCommands) == 0 {
		return
	}
	c.queue.Submit(c.pendingCommands...)
	c.pendingCommands = c.pendingCommands[:0]

	for _, b := range c.pendingStaging {
		b.Release()
	}
	c.pendingStaging = c.pendingStaging[:0]
}

// MemoryStats represents GPU memory usage statistics.
type MemoryStats struct {
	LiveBytes   uint64 // Bytes held by unreleased buffers
	PeakBytes   uint64 // Highest LiveBytes observed
	LiveBuffers int64  // Number of unreleased buffers

	// Buffer pool statistics
	PoolAllocated uint64
	PoolReleased  uint64
	PoolHits      uint64
	PoolMisses    uint64
	PooledBuffers int
}

// MemoryStats returns current GPU memory usage statistics.
func (c *Context) MemoryStats() MemoryStats {
	c.memoryStats.mu.Lock()
	stats := MemoryStats{
		LiveBytes:   c.memoryStats.liveBytes,
		PeakBytes:   c.memoryStats.peakBytes,
		LiveBuffers: c.memoryStats.liveBuffers,
	}
	c.memoryStats.mu.Unlock()

	stats.PoolAllocated, stats.PoolReleased, stats.PoolHits, stats.PoolMisses, stats.PooledBuffers = c.pool.Stats()
	return stats
}

// Release releases all WebGPU resources. Buffers allocated from the context
// must be released first.
func (c *Context) Release() {
	c.flushCommands()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pool != nil {
		c.pool.Clear()
	}
	for _, p := range c.pipelines {
		p.Release()
	}
	c.pipelines = nil
	for _, s := range c.shaders {
		s.Release()
	}
	c.shaders = nil

	if c.queue != nil {
		c.queue.Release()
		c.queue = nil
	}
	if c.device != nil {
		c.device.Release()
		c.device = nil
	}
	if c.adapter != nil {
		c.adapter.Release()
		c.adapter = nil
	}
	if c.instance != nil {
		c.instance.Release()
		c.instance = nil
	}
}
