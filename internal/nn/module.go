// Package nn implements the layer kinds of the dcgan engine.
//
// This package provides:
//   - Layer interface: forward and backward contract shared by every layer
//   - Parameter: trainable tensor with its gradient and Adam moments
//   - Conv, ConvTranspose, Dense: parameterised linear maps
//   - Activation, BatchNorm, Reshape: elementwise, normalising and relabelling layers
//   - Coder: convolution, optional batch-norm and activation as one layer
//   - Loss functions: MSE, BCE
//
// Every layer computes its gradients in closed form. Forward and backward
// passes submit kernel ops to a tensor.Session and return tensors owned by
// the layer; those tensors stay valid until the layer's next pass.
package nn

import (
	"github.com/born-ml/dcgan/internal/tensor"
)

// Flags modify a forward or backward pass.
type Flags uint8

const (
	// UpdateStats makes batch-norm layers normalise with batch statistics
	// and blend them into their running statistics. Without it they apply
	// the frozen running statistics.
	UpdateStats Flags = 1 << iota

	// NoUpdate marks a backward pass whose parameters will not be updated.
	// Layers skip parameter-gradient kernels but still return the input
	// gradient.
	NoUpdate
)

// Has reports whether all bits of f are set.
func (fl Flags) Has(f Flags) bool {
	return fl&f == f
}

// Pass describes one forward or backward call.
type Pass struct {
	// Batch is the number of leading batch items to process (1..In().N).
	Batch int

	// Flags select batch-norm and update behaviour.
	Flags Flags

	// Momentum is the batch-norm running statistics coefficient:
	// running = Momentum*running + (1-Momentum)*batch.
	Momentum float32
}

// Layer is the contract shared by every layer kind.
//
// A layer's input and output dimensions are fixed at construction; the
// batch dimension is the maximum batch a pass may process.
//
// Forward caches its input for the matching Backward. Backward before any
// Forward, or with a different batch size, fails with tensor.ErrState.
// Dimension mismatches fail with tensor.ErrShapeMismatch. Neither submits
// anything to the session.
type Layer interface {
	// Name returns a short identifier used in op names and checkpoints.
	Name() string

	// In returns the input dimensions.
	In() tensor.Dims

	// Out returns the output dimensions.
	Out() tensor.Dims

	// Forward submits the forward pass over x and returns the output tensor.
	Forward(s *tensor.Session, p Pass, x *tensor.Tensor) (*tensor.Tensor, error)

	// Backward submits the backward pass for the output gradient dy,
	// writing parameter gradients (unless p has NoUpdate) and returning the
	// gradient with respect to the input.
	Backward(s *tensor.Session, p Pass, dy *tensor.Tensor) (*tensor.Tensor, error)

	// Params returns the trainable parameters, or nil.
	Params() []*Parameter

	// Release frees every tensor the layer owns. Calling it twice is safe.
	Release()
}
