package optim

import (
	"github.com/born-ml/dcgan/internal/backend/cpu"
	"github.com/born-ml/dcgan/internal/nn"
	"github.com/born-ml/dcgan/internal/tensor"
)

// SGD implements Stochastic Gradient Descent with optional momentum.
//
// Update rule:
//
//	velocity = momentum * velocity + gradient
//	param = param - lr * velocity
//
// The velocity lives in the parameter's first moment tensor, so a network
// can switch between SGD and Adam only from a fresh start.
//
// Example:
//
//	opt := optim.NewSGD(optim.SGDConfig{LR: 0.01, Momentum: 0.9})
type SGD struct {
	lr       float32
	momentum float32
	t        int
}

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	LR       float32 // Learning rate (default: 0.01)
	Momentum float32 // Momentum factor (default: 0.0, range: [0, 1))
}

// NewSGD creates a new SGD optimizer.
func NewSGD(config SGDConfig) *SGD {
	if config.LR == 0 {
		config.LR = 0.01
	}
	return &SGD{lr: config.LR, momentum: config.Momentum}
}

// LR returns the learning rate.
func (o *SGD) LR() float32 {
	return o.lr
}

// Step returns the step counter.
func (o *SGD) Step() int {
	return o.t
}

// Advance increments the step counter.
func (o *SGD) Advance() {
	o.t++
}

// Apply submits the SGD update of p.
func (o *SGD) Apply(s *tensor.Session, p *nn.Parameter) error {
	if err := checkApply("sgd", o.t, s, p); err != nil {
		return err
	}

	w, g := p.Tensor(), p.Grad()
	vel, _ := p.Moments()
	lr, momentum := o.lr, o.momentum

	return s.Submit(tensor.Op{
		Name:   p.Name() + ".sgd",
		Hazard: true,
		Run: func() error {
			cpu.KernelsFor(s.Context()).SGDUpdate(w.Data(), g.Data(), vel.Data(), lr, momentum)
			return nil
		},
	})
}
