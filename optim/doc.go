// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides the optimizers of the dcgan engine.
//
// # Overview
//
// This package contains:
//   - Adam: Adaptive Moment Estimation with incremental bias correction
//   - SGD: Stochastic Gradient Descent with momentum
//   - Optimizer interface for custom optimizers
//
// An optimizer applies one update per parameter inside a session. The
// architecture calls Advance once per updating backward pass, so every
// parameter of a network shares the same step.
//
// # Basic Usage
//
//	opt := optim.NewAdam(optim.Config{LR: 0.0002, Beta1: 0.5})
//	net, err := arch.New(ctx, arch.Config{Optimizer: opt})
package optim
