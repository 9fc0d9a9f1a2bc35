// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public tensor API of the dcgan engine.
//
// # Overview
//
// A Tensor is a 4-D float32 array with dimensions (N, H, W, C): batch,
// height, width and channel, with C varying fastest. Every tensor has two
// copies of its values:
//   - Host: staging storage the caller reads and writes directly
//   - Accel: storage owned by the Context that kernels operate on
//
// Work is submitted inside a Session. Operations marked as hazards wait
// for everything submitted before them; End waits for all work and returns
// the joined errors.
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
//
//	    x, err := tensor.New(ctx, tensor.Dims{N: 8, H: 28, W: 28, C: 1}, tensor.Zeroed)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer x.Release()
//
//	    s, _ := tensor.Begin(ctx)
//	    _ = tensor.Fill(s, x.All(tensor.Accel), 0.5)
//	    _ = tensor.Download(s, x)
//	    if err := s.End(); err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(x.At(0, 0, 0, 0)) // 0.5
//	}
//
// # Errors
//
// Shape violations wrap ErrShapeMismatch, out-of-sequence calls wrap
// ErrState and failed allocations wrap ErrAllocation. Use errors.Is to
// classify them.
package tensor
