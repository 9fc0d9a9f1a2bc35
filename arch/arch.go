// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package arch assembles layers into a trainable network.
//
// An Architecture owns its layers, runs forward and backward passes over
// them in a session, and applies its optimizer after each updating
// backward pass.
//
// Example:
//
//	net, err := arch.New(ctx, arch.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer net.Release()
//
//	if err := net.Attach(coder); err != nil {
//	    log.Fatal(err)
//	}
package arch

import (
	"github.com/born-ml/dcgan/internal/arch"
	"github.com/born-ml/dcgan/tensor"
)

// Architecture is an ordered chain of layers with an optimizer.
type Architecture = arch.Architecture

// Config holds the training state shared by every layer.
type Config = arch.Config

// BackwardOptions selects which layers are updated after a backward pass.
type BackwardOptions = arch.BackwardOptions

// DefaultConfig returns Adam with the adversarial defaults and momentum 0.9.
func DefaultConfig() Config {
	return arch.DefaultConfig()
}

// New creates an empty architecture on ctx.
func New(ctx tensor.Context, cfg Config) (*Architecture, error) {
	return arch.New(ctx, cfg)
}
