// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the layers, losses and initializers of the dcgan
// engine.
//
// # Overview
//
// This package contains:
//   - Layers: Conv, ConvTranspose, Dense, Activation, BatchNorm, Reshape
//   - Composites: Sequential and the Coder block (conv, batch norm, activation)
//   - Losses: MSE and binary cross-entropy on probabilities or logits
//   - Initialization: Normal, Xavier, Constant
//
// Every layer has fixed input and output dimensions and owns its output
// and input-gradient tensors. Forward and Backward submit work to a
// session and return the owned tensor; the values are ready once the
// session ends.
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/dcgan/backend/cpu"
//	    "github.com/born-ml/dcgan/nn"
//	    "github.com/born-ml/dcgan/tensor"
//	)
//
//	func main() {
//	    ctx := cpu.New(cpu.Config{})
//	    rng := rand.New(rand.NewPCG(1, 2))
//
//	    d1, err := nn.NewCoder(ctx, nn.CoderConfig{
//	        Name:       "d1",
//	        In:         tensor.Dims{N: 64, H: 28, W: 28, C: 1},
//	        Channels:   64,
//	        Size:       4,
//	        Stride:     2,
//	        Activation: nn.LeakyReLU,
//	    }, nn.Normal(0.02), rng)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer d1.Release()
//	}
//
// # Passes
//
// Pass.Flags selects the batch-norm mode (UpdateStats) and whether a
// backward pass computes parameter gradients (NoUpdate clears it).
package nn
