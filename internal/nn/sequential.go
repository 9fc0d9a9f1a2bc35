package nn

import (
	"fmt"

	"github.com/born-ml/dcgan/internal/tensor"
)

// Sequential is a composite layer that owns an ordered list of children.
//
// Each child's output becomes the next child's input on the forward pass;
// the backward pass visits children in reverse. Releasing a Sequential
// releases its children in reverse order.
//
// Example:
//
//	block, err := nn.NewSequential("block", conv, bn, act)
//
// This is equivalent to:
//
//	h1, _ := conv.Forward(s, p, x)
//	h2, _ := bn.Forward(s, p, h1)
//	y, _ := act.Forward(s, p, h2)
type Sequential struct {
	name     string
	children []Layer
}

// NewSequential creates a composite from children whose dimensions chain.
// On error the children are not released; the caller still owns them.
func NewSequential(name string, children ...Layer) (*Sequential, error) {
	if len(children) == 0 {
		return nil, fmt.Errorf("%s: %w: no children", name, ErrConfig)
	}
	for i := 1; i < len(children); i++ {
		prev, next := children[i-1].Out(), children[i].In()
		if !prev.Equal(next) {
			return nil, tensor.Mismatch(fmt.Sprintf("%s: %s -> %s", name, children[i-1].Name(), children[i].Name()), prev, next)
		}
	}
	return &Sequential{name: name, children: children}, nil
}

// Name returns the composite name.
func (q *Sequential) Name() string { return q.name }

// In returns the first child's input dimensions.
func (q *Sequential) In() tensor.Dims { return q.children[0].In() }

// Out returns the last child's output dimensions.
func (q *Sequential) Out() tensor.Dims { return q.children[len(q.children)-1].Out() }

// Children returns the owned layers in forward order.
func (q *Sequential) Children() []Layer {
	return q.children
}

// Params returns the parameters of every child in forward order.
func (q *Sequential) Params() []*Parameter {
	var params []*Parameter
	for _, c := range q.children {
		params = append(params, c.Params()...)
	}
	return params
}

// Forward runs the children in order.
func (q *Sequential) Forward(s *tensor.Session, p Pass, x *tensor.Tensor) (*tensor.Tensor, error) {
	out := x
	for _, c := range q.children {
		var err error
		out, err = c.Forward(s, p, out)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", q.name, err)
		}
	}
	return out, nil
}

// Backward runs the children in reverse order.
func (q *Sequential) Backward(s *tensor.Session, p Pass, dy *tensor.Tensor) (*tensor.Tensor, error) {
	grad := dy
	for i := len(q.children) - 1; i >= 0; i-- {
		var err error
		grad, err = q.children[i].Backward(s, p, grad)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", q.name, err)
		}
	}
	return grad, nil
}

// Release releases the children in reverse order.
func (q *Sequential) Release() {
	for i := len(q.children) - 1; i >= 0; i-- {
		q.children[i].Release()
	}
}
