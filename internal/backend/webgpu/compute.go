//go:build windows

package webgpu

import (
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"
)

// compileShader compiles WGSL shader code into a ShaderModule.
// Results are cached in the Context's shaders map.
func (c *Context) compileShader(name, code string) *wgpu.ShaderModule {
	c.mu.RLock()
	if shader, exists := c.shaders[name]; exists {
		c.mu.RUnlock()
		return shader
	}
	c.mu.RUnlock()

	shader := c.device.CreateShaderModuleWGSL(code)

	c.mu.Lock()
	c.shaders[name] = shader
	c.mu.Unlock()

	return shader
}

// getOrCreatePipeline returns a cached ComputePipeline or creates a new one.
func (c *Context) getOrCreatePipeline(name, code string) *wgpu.ComputePipeline {
	c.mu.RLock()
	if pipeline, exists := c.pipelines[name]; exists {
		c.mu.RUnlock()
		return pipeline
	}
	c.mu.RUnlock()

	shader := c.compileShader(name, code)

	// Create compute pipeline with auto layout (nil layout)
	pipeline := c.device.CreateComputePipelineSimple(nil, shader, "main")

	c.mu.Lock()
	c.pipelines[name] = pipeline
	c.mu.Unlock()

	return pipeline
}

// createBuffer creates a GPU buffer holding data.
func (c *Context) createBuffer(data []byte, usage wgpu.BufferUsage) *wgpu.Buffer {
	size := uint64(len(data))

	buffer := c.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            usage,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})

	mappedPtr := buffer.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	mappedSlice := unsafe.Slice((*byte)(mappedPtr), size)
	copy(mappedSlice, data)
	buffer.Unmap()

	return buffer
}

// createUniformBuffer creates a uniform buffer with proper alignment.
// Uniform buffers require 16-byte alignment for struct fields.
func (c *Context) createUniformBuffer(data []byte) *wgpu.Buffer {
	aligned := make([]byte, (len(data)+15)&^15)
	copy(aligned, data)
	return c.createBuffer(aligned, wgpu.BufferUsageUniform|wgpu.BufferUsageCopyDst)
}

// upload queues a copy of values into dst through a mapped staging buffer.
func (c *Context) upload(dst *wgpu.Buffer, values []float32) {
	size := uint64(len(values)) * 4 //nolint:gosec // G115: length is non-negative
	//nolint:gosec // unsafe.Slice reinterprets the float32 slice as bytes
	staging := c.createBuffer(unsafe.Slice((*byte)(unsafe.Pointer(&values[0])), size), wgpu.BufferUsageCopySrc)

	encoder := c.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(staging, 0, dst, 0, size)
	c.queueCommand(encoder.Finish(nil), staging)
}

// download flushes queued work and reads src into values.
func (c *Context) download(src *wgpu.Buffer, values []float32) error {
	c.flushCommands()

	size := uint64(len(values)) * 4 //nolint:gosec // G115: length is non-negative
	data, err := c.readBuffer(src, size)
	if err != nil {
		return err
	}
	for i := range values {
		values[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return nil
}

// readBuffer reads data back from a GPU buffer to CPU memory.
// Uses a staging buffer since storage buffers can't be mapped directly.
func (c *Context) readBuffer(srcBuffer *wgpu.Buffer, size uint64) ([]byte, error) {
	stagingBuffer := c.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		Size:  size,
	})
	defer stagingBuffer.Release()

	encoder := c.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(srcBuffer, 0, stagingBuffer, 0, size)
	c.queue.Submit(encoder.Finish(nil))

	// MapAsync returns once every prior submission has completed.
	if err := stagingBuffer.MapAsync(c.device, wgpu.MapModeRead, 0, size); err != nil {
		return nil, fmt.Errorf("failed to map staging buffer: %w", err)
	}

	mappedPtr := stagingBuffer.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	mappedSlice := unsafe.Slice((*byte)(mappedPtr), size)
	result := make([]byte, size)
	copy(result, mappedSlice)
	stagingBuffer.Unmap()

	return result, nil
}

// wait blocks until the queue has drained by mapping a 4-byte readback.
func (c *Context) wait() error {
	fence := c.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: storageUsage,
		Size:  4,
	})
	defer fence.Release()
	_, err := c.readBuffer(fence, 4)
	return err
}

// dispatch encodes one compute pass of shader over n invocations and queues
// it. bufs are bound to bindings 0..len(bufs)-1 and the uniform params to
// the next binding. Callers mark the buffers the shader writes.
func (c *Context) dispatch(name, code string, n int, params []byte, bufs ...*gpuBuffer) {
	pipeline := c.getOrCreatePipeline(name, code)
	uniform := c.createUniformBuffer(params)

	entries := make([]wgpu.BindGroupEntry, 0, len(bufs)+1)
	for i, b := range bufs {
		//nolint:gosec // G115: binding index is small
		entries = append(entries, wgpu.BufferBindingEntry(uint32(i), b.device(), 0, b.size))
	}
	//nolint:gosec // G115: binding index is small
	entries = append(entries, wgpu.BufferBindingEntry(uint32(len(bufs)), uniform, 0, uint64(len(params)+15)&^15))

	bindGroup := c.device.CreateBindGroupSimple(pipeline.GetBindGroupLayout(0), entries)
	defer bindGroup.Release()

	encoder := c.device.CreateCommandEncoder(nil)
	computePass := encoder.BeginComputePass(nil)
	computePass.SetPipeline(pipeline)
	computePass.SetBindGroup(0, bindGroup, nil)

	// Calculate workgroup count: ceil(n / workgroupSize)
	//nolint:gosec // G115: workgroup count is non-negative
	computePass.DispatchWorkgroups(uint32((n+workgroupSize-1)/workgroupSize), 1, 1)
	computePass.End()

	c.queueCommand(encoder.Finish(nil), uniform)
}

func putU32(buf []byte, i int, v uint32) {
	binary.LittleEndian.PutUint32(buf[i*4:], v)
}

func putF32(buf []byte, i int, v float32) {
	binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
}
