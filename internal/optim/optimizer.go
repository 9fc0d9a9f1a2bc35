// Package optim implements the parameter update rules of the dcgan engine.
//
// This package provides:
//   - Optimizer interface: shared step counter plus per-parameter updates
//   - Adam: adaptive moments with incrementally maintained bias corrections
//   - SGD: gradient descent with optional momentum
//
// An optimizer never computes gradients. Layers write them during their
// backward pass; the architecture then advances the optimizer once and
// applies it to every parameter that should change:
//
//	opt.Advance()
//	for _, p := range params {
//	    if err := opt.Apply(s, p); err != nil {
//	        return err
//	    }
//	}
package optim

import (
	"fmt"

	"github.com/born-ml/dcgan/internal/nn"
	"github.com/born-ml/dcgan/internal/tensor"
)

// Optimizer is the interface shared by the update rules.
//
// The step counter is owned by the optimizer and shared by every parameter
// it updates. Advance increments it once per training step; Apply submits
// one update op for a parameter using the current step.
type Optimizer interface {
	// Advance starts a new step.
	Advance()

	// Apply submits the update of p to s. The op is a hazard: it runs after
	// every op already submitted, including the backward kernels that wrote
	// p's gradient.
	Apply(s *tensor.Session, p *nn.Parameter) error

	// Step returns the number of completed Advance calls.
	Step() int

	// LR returns the learning rate.
	LR() float32
}

func checkApply(name string, step int, s *tensor.Session, p *nn.Parameter) error {
	if step == 0 {
		return fmt.Errorf("%s: %w: apply before the first step", name, tensor.ErrState)
	}
	if s == nil || !s.Open() {
		return fmt.Errorf("%s: %w: session is not open", name, tensor.ErrState)
	}
	if p == nil || p.Tensor().Released() {
		return fmt.Errorf("%s: %w: parameter is nil or released", name, tensor.ErrState)
	}
	return nil
}
