package nn

import (
	"github.com/born-ml/dcgan/internal/tensor"
)

// Parameter represents a trainable tensor of a layer.
//
// Each parameter owns four tensors of identical dimensions: the value, its
// gradient for the current step, and the Adam first and second moments.
//
// Example:
//
//	for _, p := range layer.Params() {
//	    fmt.Println(p.Name(), p.Tensor().Dims())
//	}
type Parameter struct {
	name   string         // Parameter name (e.g., "conv0.weight")
	tensor *tensor.Tensor // The parameter value
	grad   *tensor.Tensor // Gradient written by the layer's backward pass
	m      *tensor.Tensor // Adam first moment
	v      *tensor.Tensor // Adam second moment
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// Tensor returns the parameter value.
func (p *Parameter) Tensor() *tensor.Tensor {
	return p.tensor
}

// Grad returns the gradient tensor.
func (p *Parameter) Grad() *tensor.Tensor {
	return p.grad
}

// Moments returns the Adam first and second moment tensors.
func (p *Parameter) Moments() (m, v *tensor.Tensor) {
	return p.m, p.v
}

// Len returns the number of scalar values.
func (p *Parameter) Len() int {
	return p.tensor.Dims().Len()
}

// NewParameter allocates a standalone zeroed parameter with its gradient and
// moment tensors. The caller owns it and must call Release.
func NewParameter(ctx tensor.Context, name string, dims tensor.Dims) (*Parameter, error) {
	b := newBuilder(ctx, name)
	if err := dims.Validate(); err != nil {
		b.fail(err)
	}
	p := &Parameter{name: name}
	p.tensor = b.tensor(dims)
	p.grad = b.tensor(dims)
	p.m = b.tensor(dims)
	p.v = b.tensor(dims)
	if err := b.finish(); err != nil {
		return nil, err
	}
	return p, nil
}

// Release frees the value, gradient and moment tensors.
func (p *Parameter) Release() {
	p.v.Release()
	p.m.Release()
	p.grad.Release()
	p.tensor.Release()
}
