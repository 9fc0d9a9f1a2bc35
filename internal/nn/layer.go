package nn

import (
	"fmt"

	"github.com/born-ml/dcgan/internal/backend/cpu"
	"github.com/born-ml/dcgan/internal/tensor"
)

// layer holds the plumbing shared by every kernel-backed layer: fixed
// dimensions, owned output and input-gradient tensors, and the input cached
// by the last forward pass.
type layer struct {
	name    string
	in, out tensor.Dims
	kern    cpu.Kernels

	y  *tensor.Tensor // forward output
	dx *tensor.Tensor // input gradient

	x     *tensor.Tensor // input of the last forward pass
	batch int            // batch of the last forward pass
}

func (l *layer) Name() string { return l.name }
func (l *layer) In() tensor.Dims { return l.in }
func (l *layer) Out() tensor.Dims { return l.out }

// alloc allocates the output and input-gradient tensors.
func (l *layer) alloc(b *builder) {
	l.kern = cpu.KernelsFor(b.ctx)
	l.y = b.tensor(l.out)
	l.dx = b.tensor(l.in)
}

func checkBatch(op string, p Pass, dims tensor.Dims) error {
	if p.Batch <= 0 || p.Batch > dims.N {
		return &tensor.ShapeError{Op: op, Got: dims, Detail: fmt.Sprintf("batch %d outside [1,%d]", p.Batch, dims.N)}
	}
	return nil
}

// forward validates a forward call and caches its input.
func (l *layer) forward(s *tensor.Session, p Pass, x *tensor.Tensor) error {
	op := l.name + ".forward"
	if s == nil || !s.Open() {
		return fmt.Errorf("%s: %w: session is not open", op, tensor.ErrState)
	}
	if x == nil || x.Released() {
		return fmt.Errorf("%s: %w: input is nil or released", op, tensor.ErrState)
	}
	if !x.Dims().Equal(l.in) {
		return tensor.Mismatch(op, l.in, x.Dims())
	}
	if err := checkBatch(op, p, l.in); err != nil {
		return err
	}
	l.x = x
	l.batch = p.Batch
	return nil
}

// backward validates a backward call against the cached forward pass.
func (l *layer) backward(s *tensor.Session, p Pass, dy *tensor.Tensor) error {
	op := l.name + ".backward"
	if s == nil || !s.Open() {
		return fmt.Errorf("%s: %w: session is not open", op, tensor.ErrState)
	}
	if l.x == nil {
		return fmt.Errorf("%s: %w: no matching forward pass", op, tensor.ErrState)
	}
	if p.Batch != l.batch {
		return fmt.Errorf("%s: %w: batch %d, forward used %d", op, tensor.ErrState, p.Batch, l.batch)
	}
	if dy == nil || dy.Released() {
		return fmt.Errorf("%s: %w: gradient is nil or released", op, tensor.ErrState)
	}
	if !dy.Dims().Equal(l.out) {
		return tensor.Mismatch(op, l.out, dy.Dims())
	}
	return nil
}

// release frees the output and gradient tensors.
func (l *layer) release() {
	l.dx.Release()
	l.y.Release()
	l.x = nil
}

// itemSpan returns the leading n items of t's accelerated storage.
func itemSpan(t *tensor.Tensor, n int) []float32 {
	return t.Data()[:n*t.Dims().ItemLen()]
}
