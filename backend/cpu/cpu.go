// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	internalcpu "github.com/born-ml/dcgan/internal/backend/cpu"
	"github.com/born-ml/dcgan/internal/parallel"
	"github.com/born-ml/dcgan/tensor"
)

// Context is the CPU execution context.
type Context = internalcpu.Context

// Config configures a CPU context.
type Config = internalcpu.Config

// ParallelConfig controls kernel parallelism.
type ParallelConfig = parallel.Config

// MemoryStats reports storage held by a context.
type MemoryStats = internalcpu.MemoryStats

// Compile-time check that Context implements tensor.Context.
var _ tensor.Context = (*Context)(nil)

// New creates a CPU context.
//
// Example:
//
//	ctx := cpu.New(cpu.Config{MaxBytes: 1 << 30})
func New(cfg Config) *Context {
	return internalcpu.New(cfg)
}

// DefaultParallel returns the parallelism used when Config.Parallel is zero.
func DefaultParallel() ParallelConfig {
	return parallel.DefaultConfig()
}
