//go:build windows

// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package webgpu provides the WebGPU execution context for the dcgan engine.
//
// Accelerated storage lives in GPU buffers. Host staging copies are kept
// coherent lazily and Sync waits on a fence readback.
//
// Example:
//
//	import (
//	    "github.com/born-ml/dcgan/backend/cpu"
//	    "github.com/born-ml/dcgan/backend/webgpu"
//	    "github.com/born-ml/dcgan/tensor"
//	)
//
//	func main() {
//	    var ctx tensor.Context = cpu.New(cpu.Config{})
//	    if webgpu.IsAvailable() {
//	        gpu, err := webgpu.New(webgpu.Config{})
//	        if err != nil {
//	            log.Fatal(err)
//	        }
//	        defer gpu.Release()
//	        ctx = gpu
//	    }
//	}
package webgpu

import (
	internalwebgpu "github.com/born-ml/dcgan/internal/backend/webgpu"
	"github.com/born-ml/dcgan/tensor"
)

// Context is the WebGPU execution context.
type Context = internalwebgpu.Context

// Config configures a WebGPU context.
type Config = internalwebgpu.Config

// MemoryStats reports GPU storage held by a context.
type MemoryStats = internalwebgpu.MemoryStats

// Compile-time check that Context implements tensor.Context.
var _ tensor.Context = (*Context)(nil)

// New creates a WebGPU context. Call Release when done to free GPU
// resources.
//
// Returns an error if WebGPU initialization fails (e.g., no compatible GPU).
func New(cfg Config) (*Context, error) {
	return internalwebgpu.New(cfg)
}

// IsAvailable checks if WebGPU is available on the current system.
func IsAvailable() bool {
	return internalwebgpu.IsAvailable()
}
