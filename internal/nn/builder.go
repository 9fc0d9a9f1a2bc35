package nn

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/dcgan/internal/tensor"
)

// ErrConfig reports an invalid layer configuration.
var ErrConfig = errors.New("invalid layer configuration")

// builder accumulates the resources a constructor acquires. If construction
// fails, finish releases everything acquired so far in reverse order, so a
// partially built layer is never reachable.
//
// Typical use:
//
//	b := newBuilder(ctx, "dense")
//	w := b.param("weight", dims, init, rng, fanIn, fanOut)
//	y := b.tensor(outDims)
//	if err := b.finish(); err != nil {
//	    return nil, err
//	}
//
// After the first failure every acquisition is a no-op returning nil.
type builder struct {
	ctx     tensor.Context
	name    string
	release []func()
	staged  []*tensor.Tensor
	err     error
}

func newBuilder(ctx tensor.Context, name string) *builder {
	b := &builder{ctx: ctx, name: name}
	if ctx == nil {
		b.err = fmt.Errorf("%s: %w: nil context", name, tensor.ErrState)
	}
	return b
}

// fail records err unless an earlier failure is already recorded.
func (b *builder) fail(err error) {
	if b.err == nil && err != nil {
		b.err = fmt.Errorf("%s: %w", b.name, err)
	}
}

// failf records a configuration error.
func (b *builder) failf(format string, args ...any) {
	b.fail(fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...)))
}

// tensor allocates a zeroed tensor owned by the layer under construction.
func (b *builder) tensor(dims tensor.Dims) *tensor.Tensor {
	if b.err != nil {
		return nil
	}
	t, err := tensor.New(b.ctx, dims, tensor.Zeroed)
	if err != nil {
		b.fail(err)
		return nil
	}
	b.release = append(b.release, t.Release)
	return t
}

// param allocates a parameter with gradient and moment tensors and fills its
// value with init. A nil init leaves the value zeroed. rng may be nil for
// initializers that draw nothing.
func (b *builder) param(name string, dims tensor.Dims, init Initializer, rng *rand.Rand, fanIn, fanOut int) *Parameter {
	if b.err != nil {
		return nil
	}
	p := &Parameter{name: b.name + "." + name}
	p.tensor = b.tensor(dims)
	p.grad = b.tensor(dims)
	p.m = b.tensor(dims)
	p.v = b.tensor(dims)
	if b.err != nil {
		return nil
	}

	if init != nil {
		init(rng, p.tensor.Host(), fanIn, fanOut)
		b.staged = append(b.staged, p.tensor)
	}
	return p
}

// adopt takes ownership of a child layer built by another constructor.
func (b *builder) adopt(l Layer, err error) Layer {
	if b.err != nil {
		if err == nil {
			l.Release()
		}
		return nil
	}
	if err != nil {
		b.fail(err)
		return nil
	}
	b.release = append(b.release, l.Release)
	return l
}

// finish uploads initialized parameter values to accelerated storage. On
// any failure it releases every acquired resource in reverse order and
// returns the error.
func (b *builder) finish() error {
	if b.err == nil && len(b.staged) > 0 {
		b.fail(b.upload())
	}
	if b.err != nil {
		for i := len(b.release) - 1; i >= 0; i-- {
			b.release[i]()
		}
		b.release = nil
		return b.err
	}
	return nil
}

func (b *builder) upload() error {
	s, err := tensor.Begin(b.ctx)
	if err != nil {
		return err
	}
	for _, t := range b.staged {
		if err := tensor.Upload(s, t); err != nil {
			_ = s.End()
			return err
		}
	}
	return s.End()
}
