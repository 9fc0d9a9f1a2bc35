//go:build windows

package webgpu

import (
	"sync"

	"github.com/go-webgpu/webgpu/wgpu"
)

// maxPoolSize is the number of idle buffers kept per byte size.
const maxPoolSize = 16

// BufferPool manages GPU buffer reuse to reduce allocation overhead.
//
// Layer tensors have fixed dimensions, so a network allocates the same few
// sizes over and over; idle buffers are keyed by exact byte size and usage.
type BufferPool struct {
	device *wgpu.Device

	idle map[poolKey][]*wgpu.Buffer
	mu   sync.Mutex

	// Statistics
	totalAllocated uint64
	totalReleased  uint64
	poolHits       uint64
	poolMisses     uint64
}

type poolKey struct {
	size  uint64
	usage wgpu.BufferUsage
}

// NewBufferPool creates a new buffer pool for the given device.
func NewBufferPool(device *wgpu.Device) *BufferPool {
	return &BufferPool{
		device: device,
		idle:   make(map[poolKey][]*wgpu.Buffer),
	}
}

// Acquire gets an idle buffer of exactly size bytes or creates a new one.
// Returns nil if the device cannot create the buffer.
func (p *BufferPool) Acquire(size uint64, usage wgpu.BufferUsage) *wgpu.Buffer {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := poolKey{size, usage}
	if bufs := p.idle[key]; len(bufs) > 0 {
		buf := bufs[len(bufs)-1]
		p.idle[key] = bufs[:len(bufs)-1]
		p.poolHits++
		return buf
	}

	p.poolMisses++
	buf := p.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: usage,
		Size:  size,
	})
	if buf != nil {
		p.totalAllocated++
	}
	return buf
}

// Release returns a buffer to the pool for reuse.
// If the pool for its size is full, the buffer is released immediately.
func (p *BufferPool) Release(buf *wgpu.Buffer, size uint64, usage wgpu.BufferUsage) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.totalReleased++
	key := poolKey{size, usage}
	if len(p.idle[key]) >= maxPoolSize {
		buf.Release()
		return
	}
	p.idle[key] = append(p.idle[key], buf)
}

// Clear releases all pooled buffers.
func (p *BufferPool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for key, bufs := range p.idle {
		for _, buf := range bufs {
			buf.Release()
		}
		delete(p.idle, key)
	}
}

// Stats returns statistics about buffer pool usage.
func (p *BufferPool) Stats() (allocated, released, hits, misses uint64, pooledCount int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, bufs := range p.idle {
		pooledCount += len(bufs)
	}
	return p.totalAllocated, p.totalReleased, p.poolHits, p.poolMisses, pooledCount
}
