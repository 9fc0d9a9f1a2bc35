//go:build windows

package webgpu

import (
	"fmt"
	"sync"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/born-ml/dcgan/internal/tensor"
)

const storageUsage = wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst

// coherence records which copy of a buffer holds the latest values.
type coherence int

const (
	inSync      coherence = iota
	hostNewer             // shadow written by Go kernels
	deviceNewer           // buffer written by a shader or copy
)

// gpuBuffer is a device storage buffer with a host shadow.
type gpuBuffer struct {
	ctx  *Context
	buf  *wgpu.Buffer
	size uint64 // bytes

	mu       sync.Mutex
	shadow   []float32
	state    coherence
	released bool
}

// Len returns the number of float32 elements.
func (b *gpuBuffer) Len() int {
	return len(b.shadow)
}

// Float32 returns the host shadow, reading the device buffer back first if
// a device kernel wrote it. The shadow is treated as modified afterwards.
func (b *gpuBuffer) Float32() []float32 {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == deviceNewer {
		if err := b.ctx.download(b.buf, b.shadow); err != nil {
			panic(fmt.Sprintf("webgpu: readback: %v", err))
		}
	}
	b.state = hostNewer
	return b.shadow
}

// device returns the device buffer, queueing an upload of the shadow first
// if Go kernels wrote it. Callers encode device work on the result and then
// call written.
func (b *gpuBuffer) device() *wgpu.Buffer {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == hostNewer {
		b.ctx.upload(b.buf, b.shadow)
		b.state = inSync
	}
	return b.buf
}

// written marks the device copy as newer than the shadow.
func (b *gpuBuffer) written() {
	b.mu.Lock()
	b.state = deviceNewer
	b.mu.Unlock()
}

// Release returns the device buffer to the context pool.
func (b *gpuBuffer) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return
	}
	b.released = true
	b.ctx.free(b)
	b.shadow = nil
}

// own checks that buf was allocated by c.
func (c *Context) own(op string, bufs ...tensor.Buffer) ([]*gpuBuffer, error) {
	out := make([]*gpuBuffer, len(bufs))
	for i, buf := range bufs {
		g, ok := buf.(*gpuBuffer)
		if !ok || g.ctx != c || g.released {
			return nil, fmt.Errorf("webgpu: %s: %w: buffer %d not owned by this context", op, tensor.ErrState, i)
		}
		out[i] = g
	}
	return out, nil
}
