package nn

import (
	"fmt"

	"github.com/born-ml/dcgan/internal/tensor"
)

// Reshape relabels the spatial and channel extents of each batch item
// without moving data. The forward output and the backward gradient are
// views over the incoming tensors.
//
// Example:
//
//	// Flatten 4x4x8 feature maps for a Dense layer.
//	flat, err := nn.NewReshape("flatten", tensor.Dims{N: 64, H: 4, W: 4, C: 8},
//	    tensor.Dims{N: 64, H: 1, W: 1, C: 128})
type Reshape struct {
	name    string
	in, out tensor.Dims

	x, y  *tensor.Tensor // last input and its view
	batch int
}

// NewReshape creates a reshape layer. The batch counts must match and the
// per-item element counts must be equal.
func NewReshape(name string, in, out tensor.Dims) (*Reshape, error) {
	if name == "" {
		name = "reshape"
	}
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if in.N != out.N || in.ItemLen() != out.ItemLen() {
		return nil, &tensor.ShapeError{Op: name, Got: out, Detail: fmt.Sprintf("cannot reshape %v", in)}
	}
	return &Reshape{name: name, in: in, out: out}, nil
}

// Name returns the layer name.
func (r *Reshape) Name() string { return r.name }

// In returns the input dimensions.
func (r *Reshape) In() tensor.Dims { return r.in }

// Out returns the output dimensions.
func (r *Reshape) Out() tensor.Dims { return r.out }

// Params returns nil.
func (r *Reshape) Params() []*Parameter { return nil }

// Forward returns a view of x with the output dimensions.
func (r *Reshape) Forward(s *tensor.Session, p Pass, x *tensor.Tensor) (*tensor.Tensor, error) {
	op := r.name + ".forward"
	if s == nil || !s.Open() {
		return nil, fmt.Errorf("%s: %w: session is not open", op, tensor.ErrState)
	}
	if x == nil || x.Released() {
		return nil, fmt.Errorf("%s: %w: input is nil or released", op, tensor.ErrState)
	}
	if !x.Dims().Equal(r.in) {
		return nil, tensor.Mismatch(op, r.in, x.Dims())
	}
	if err := checkBatch(op, p, r.in); err != nil {
		return nil, err
	}

	if r.x != x {
		y, err := x.View(r.out)
		if err != nil {
			return nil, err
		}
		r.x, r.y = x, y
	}
	r.batch = p.Batch
	return r.y, nil
}

// Backward returns a view of dy with the input dimensions.
func (r *Reshape) Backward(s *tensor.Session, p Pass, dy *tensor.Tensor) (*tensor.Tensor, error) {
	op := r.name + ".backward"
	if s == nil || !s.Open() {
		return nil, fmt.Errorf("%s: %w: session is not open", op, tensor.ErrState)
	}
	if r.x == nil {
		return nil, fmt.Errorf("%s: %w: no matching forward pass", op, tensor.ErrState)
	}
	if p.Batch != r.batch {
		return nil, fmt.Errorf("%s: %w: batch %d, forward used %d", op, tensor.ErrState, p.Batch, r.batch)
	}
	if dy == nil || dy.Released() {
		return nil, fmt.Errorf("%s: %w: gradient is nil or released", op, tensor.ErrState)
	}
	if !dy.Dims().Equal(r.out) {
		return nil, tensor.Mismatch(op, r.out, dy.Dims())
	}
	return dy.View(r.in)
}

// Release drops the cached views; the viewed storage belongs to other layers.
func (r *Reshape) Release() {
	r.x, r.y = nil, nil
}
