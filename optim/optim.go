// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package optim

import (
	"github.com/born-ml/dcgan/internal/optim"
)

// Optimizer updates parameters from their gradients.
type Optimizer = optim.Optimizer

// Adam

// Config holds Adam hyperparameters.
type Config = optim.Config

// State is the resumable part of an Adam optimizer.
type State = optim.State

// Adam implements the Adam optimizer.
type Adam = optim.Adam

// DefaultConfig returns lr 0.0002, beta1 0.5, beta2 0.999 and eps 1e-8.
func DefaultConfig() Config {
	return optim.DefaultConfig()
}

// NewAdam creates an Adam optimizer. Zero fields of cfg take defaults.
func NewAdam(cfg Config) *Adam {
	return optim.NewAdam(cfg)
}

// SGD

// SGD implements Stochastic Gradient Descent with optional momentum.
type SGD = optim.SGD

// SGDConfig holds configuration for the SGD optimizer.
type SGDConfig = optim.SGDConfig

// NewSGD creates an SGD optimizer.
//
// Example:
//
//	opt := optim.NewSGD(optim.SGDConfig{LR: 0.01, Momentum: 0.9})
func NewSGD(cfg SGDConfig) *SGD {
	return optim.NewSGD(cfg)
}
