package nn

import (
	"sync"

	"github.com/born-ml/dcgan/internal/backend/cpu"
	"github.com/born-ml/dcgan/internal/tensor"
)

// BatchNorm normalises each channel over the batch and spatial positions,
// then applies a learned scale (gamma) and shift (beta):
//
//	y = gamma * (x - mean) / sqrt(var + 1e-5) + beta
//
// A forward pass with UpdateStats uses the statistics of the current batch
// and blends them into the running statistics with the pass momentum:
//
//	running = momentum*running + (1-momentum)*batch
//
// Without UpdateStats the running statistics are applied unchanged. The
// backward pass differentiates through whichever statistics the matching
// forward pass used.
//
// Running statistics are guarded by a mutex so a frozen pass never observes
// a half-written update.
type BatchNorm struct {
	layer
	gamma, beta *Parameter

	mu      sync.Mutex
	runMean []float32 // running mean, starts at 0
	runVar  []float32 // running variance, starts at 1

	mean, variance []float32 // statistics used by the last forward pass
	batchStats     bool      // whether the last forward pass used batch statistics
}

// NewBatchNorm creates a batch-normalisation layer over dims.
func NewBatchNorm(ctx tensor.Context, name string, dims tensor.Dims) (*BatchNorm, error) {
	if name == "" {
		name = "batchnorm"
	}

	b := newBuilder(ctx, name)
	if err := dims.Validate(); err != nil {
		b.fail(err)
	}

	c := max(dims.C, 0)
	bn := &BatchNorm{
		layer:    layer{name: name, in: dims, out: dims},
		runMean:  make([]float32, c),
		runVar:   make([]float32, c),
		mean:     make([]float32, c),
		variance: make([]float32, c),
	}
	for i := range bn.runVar {
		bn.runVar[i] = 1
	}

	chans := tensor.Dims{N: 1, H: 1, W: 1, C: c}
	bn.gamma = b.param("gamma", chans, Constant(1), nil, 0, 0)
	bn.beta = b.param("beta", chans, nil, nil, 0, 0)
	bn.alloc(b)

	if err := b.finish(); err != nil {
		return nil, err
	}
	return bn, nil
}

// Params returns gamma and beta.
func (bn *BatchNorm) Params() []*Parameter {
	return []*Parameter{bn.gamma, bn.beta}
}

// Running returns copies of the running mean and variance.
func (bn *BatchNorm) Running() (mean, variance []float32) {
	bn.mu.Lock()
	defer bn.mu.Unlock()
	return append([]float32(nil), bn.runMean...), append([]float32(nil), bn.runVar...)
}

// SetRunning replaces the running statistics, e.g. when loading a checkpoint.
func (bn *BatchNorm) SetRunning(mean, variance []float32) error {
	if len(mean) != len(bn.runMean) || len(variance) != len(bn.runVar) {
		return &tensor.ShapeError{Op: bn.name + ".running", Got: bn.in, Detail: "channel count mismatch"}
	}
	bn.mu.Lock()
	defer bn.mu.Unlock()
	copy(bn.runMean, mean)
	copy(bn.runVar, variance)
	return nil
}

// Forward submits the normalisation of x.
func (bn *BatchNorm) Forward(s *tensor.Session, p Pass, x *tensor.Tensor) (*tensor.Tensor, error) {
	if err := bn.forward(s, p, x); err != nil {
		return nil, err
	}

	y, n, c := bn.y, p.Batch, bn.in.C
	update := p.Flags.Has(UpdateStats)
	momentum := p.Momentum
	bn.batchStats = update

	err := s.Submit(tensor.Op{
		Name:   bn.name + ".forward",
		Hazard: true,
		Run: func() error {
			xs := itemSpan(x, n)
			bn.mu.Lock()
			if update {
				bn.kern.BatchNormStats(bn.mean, bn.variance, xs, c)
				cpu.BatchNormRunning(bn.runMean, bn.runVar, bn.mean, bn.variance, momentum)
			} else {
				copy(bn.mean, bn.runMean)
				copy(bn.variance, bn.runVar)
			}
			bn.mu.Unlock()

			bn.kern.BatchNormForward(itemSpan(y, n), xs, bn.mean, bn.variance,
				bn.gamma.Tensor().Data(), bn.beta.Tensor().Data(), c)
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return y, nil
}

// Backward submits the input, gamma and beta gradients.
//
// With NoUpdate the gamma and beta gradients are computed into scratch
// space and the parameter gradients are left untouched.
func (bn *BatchNorm) Backward(s *tensor.Session, p Pass, dy *tensor.Tensor) (*tensor.Tensor, error) {
	if err := bn.backward(s, p, dy); err != nil {
		return nil, err
	}

	x, dx, n, c := bn.x, bn.dx, p.Batch, bn.in.C
	batchStats := bn.batchStats
	update := !p.Flags.Has(NoUpdate)

	err := s.Submit(tensor.Op{
		Name:   bn.name + ".backward",
		Hazard: true,
		Run: func() error {
			var dgamma, dbeta []float32
			if update {
				dgamma, dbeta = bn.gamma.Grad().Data(), bn.beta.Grad().Data()
			} else {
				dgamma, dbeta = make([]float32, c), make([]float32, c)
			}
			bn.kern.BatchNormBackward(itemSpan(dx, n), dgamma, dbeta, itemSpan(dy, n), itemSpan(x, n),
				bn.mean, bn.variance, bn.gamma.Tensor().Data(), c, batchStats)
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return dx, nil
}

// Release frees the layer's parameters and scratch tensors.
func (bn *BatchNorm) Release() {
	bn.release()
	if bn.beta != nil {
		bn.beta.Release()
	}
	if bn.gamma != nil {
		bn.gamma.Release()
	}
}
