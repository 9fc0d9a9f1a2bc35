package nn

import (
	"github.com/born-ml/dcgan/internal/backend/cpu"
	"github.com/born-ml/dcgan/internal/tensor"
)

// Activation selects an elementwise activation function.
type Activation = cpu.Activation

// Activation kinds.
const (
	Logistic  = cpu.Logistic  // 1/(1+exp(-x))
	LeakyReLU = cpu.LeakyReLU // x if x>0 else 0.01*x
	Linear    = cpu.Linear    // identity
	Tanh      = cpu.Tanh      // hyperbolic tangent
)

// ActivationLayer applies an activation function elementwise.
//
// The backward pass recomputes the derivative from the cached input.
//
// Example:
//
//	act, err := nn.NewActivation(ctx, "act0", dims, nn.LeakyReLU)
type ActivationLayer struct {
	layer
	kind Activation
}

// NewActivation creates an activation layer with identical input and output dims.
func NewActivation(ctx tensor.Context, name string, dims tensor.Dims, kind Activation) (*ActivationLayer, error) {
	if name == "" {
		name = kind.String()
	}

	b := newBuilder(ctx, name)
	if err := dims.Validate(); err != nil {
		b.fail(err)
	}
	if kind < Logistic || kind > Tanh {
		b.failf("unknown activation %d", int(kind))
	}

	a := &ActivationLayer{
		layer: layer{name: name, in: dims, out: dims},
		kind:  kind,
	}
	a.alloc(b)

	if err := b.finish(); err != nil {
		return nil, err
	}
	return a, nil
}

// Kind returns the activation function.
func (a *ActivationLayer) Kind() Activation {
	return a.kind
}

// Params returns nil; activations have no trainable parameters.
func (a *ActivationLayer) Params() []*Parameter {
	return nil
}

// Forward submits y = f(x).
func (a *ActivationLayer) Forward(s *tensor.Session, p Pass, x *tensor.Tensor) (*tensor.Tensor, error) {
	if err := a.forward(s, p, x); err != nil {
		return nil, err
	}

	y, n := a.y, p.Batch
	err := s.Submit(tensor.Op{
		Name:   a.name + ".forward",
		Hazard: true,
		Run: func() error {
			a.kern.ActivationForward(itemSpan(y, n), itemSpan(x, n), a.kind)
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return y, nil
}

// Backward submits dx = dy * f'(x).
func (a *ActivationLayer) Backward(s *tensor.Session, p Pass, dy *tensor.Tensor) (*tensor.Tensor, error) {
	if err := a.backward(s, p, dy); err != nil {
		return nil, err
	}

	x, dx, n := a.x, a.dx, p.Batch
	err := s.Submit(tensor.Op{
		Name:   a.name + ".backward",
		Hazard: true,
		Run: func() error {
			a.kern.ActivationBackward(itemSpan(dx, n), itemSpan(dy, n), itemSpan(x, n), a.kind)
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return dx, nil
}

// Release frees the scratch tensors.
func (a *ActivationLayer) Release() {
	a.release()
}
