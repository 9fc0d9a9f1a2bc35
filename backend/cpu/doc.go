// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides a pure Go execution context for the dcgan engine.
//
// # Overview
//
// The CPU context keeps accelerated storage in Go slices and runs kernels
// on goroutines:
//   - Pure Go implementation (no CGO)
//   - Row-parallel convolution, dense and batch-norm kernels
//   - Optional cap on live storage for memory-bounded training
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/dcgan/backend/cpu"
//	    "github.com/born-ml/dcgan/tensor"
//	)
//
//	func main() {
//	    ctx := cpu.New(cpu.Config{})
//	    x, err := tensor.New(ctx, tensor.Dims{N: 64, H: 28, W: 28, C: 1}, tensor.Zeroed)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer x.Release()
//	}
//
// # Memory
//
// MemoryStats reports live and peak storage. Every tensor and layer
// releases its storage explicitly, so LiveBuffers returns to its starting
// value once everything built on the context is released.
package cpu
