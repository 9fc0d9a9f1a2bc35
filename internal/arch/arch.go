// Package arch composes layers into a trainable pipeline.
//
// An Architecture is an ordered list of layers that share one optimizer and
// one batch-norm momentum. Forward runs the layers in attach order; Backward
// runs them in reverse and then updates every parameter that is not frozen,
// advancing the shared step counter once per call.
//
// Example:
//
//	net, err := arch.New(ctx, arch.DefaultConfig())
//	for _, l := range layers {
//	    if err := net.Attach(l); err != nil {
//	        return err
//	    }
//	}
//	s, _ := tensor.Begin(ctx)
//	y, err := net.Forward(s, nn.UpdateStats, batch, x)
//	dy, err := loss.Forward(s, batch, y, target)
//	_, err = net.Backward(s, arch.BackwardOptions{}, batch, dy)
//	err = s.End()
package arch

import (
	"fmt"
	"slices"

	"github.com/born-ml/dcgan/internal/nn"
	"github.com/born-ml/dcgan/internal/optim"
	"github.com/born-ml/dcgan/internal/tensor"
)

// Config holds the training state shared by every layer of an architecture.
type Config struct {
	// Adam configures the default optimizer. Zero fields take
	// optim.DefaultConfig values.
	Adam optim.Config `json:"adam"`

	// Momentum is the batch-norm running statistics coefficient
	// (default: 0.9).
	Momentum float32 `json:"momentum"`

	// Optimizer replaces Adam when set.
	Optimizer optim.Optimizer `json:"-"`
}

// DefaultConfig returns Adam with the adversarial defaults and momentum 0.9.
func DefaultConfig() Config {
	return Config{Adam: optim.DefaultConfig(), Momentum: 0.9}
}

// BackwardOptions selects which layers are updated after a backward pass.
type BackwardOptions struct {
	// NoUpdate routes gradients through every layer without updating any
	// parameter or advancing the step.
	NoUpdate bool

	// Frozen lists layer indices whose parameters stay unchanged.
	Frozen []int
}

// Architecture is an ordered pipeline of layers. It owns the attached
// layers and releases them in reverse order.
type Architecture struct {
	ctx      tensor.Context
	opt      optim.Optimizer
	momentum float32
	layers   []nn.Layer
}

// New creates an empty architecture on ctx.
func New(ctx tensor.Context, cfg Config) (*Architecture, error) {
	if ctx == nil {
		return nil, fmt.Errorf("arch: %w: nil context", tensor.ErrState)
	}
	if cfg.Momentum == 0 {
		cfg.Momentum = 0.9
	}
	if cfg.Momentum < 0 || cfg.Momentum >= 1 {
		return nil, fmt.Errorf("arch: %w: momentum %v outside [0,1)", nn.ErrConfig, cfg.Momentum)
	}
	opt := cfg.Optimizer
	if opt == nil {
		opt = optim.NewAdam(cfg.Adam)
	}
	return &Architecture{ctx: ctx, opt: opt, momentum: cfg.Momentum}, nil
}

// Attach appends l to the pipeline and takes ownership of it. l's input
// dimensions must equal the previous layer's output dimensions.
func (a *Architecture) Attach(l nn.Layer) error {
	if l == nil {
		return fmt.Errorf("arch: %w: nil layer", nn.ErrConfig)
	}
	if n := len(a.layers); n > 0 {
		prev := a.layers[n-1]
		if !prev.Out().Equal(l.In()) {
			return tensor.Mismatch(fmt.Sprintf("arch: attach %s after %s", l.Name(), prev.Name()), prev.Out(), l.In())
		}
	}
	a.layers = append(a.layers, l)
	return nil
}

// Context returns the context the architecture was created on.
func (a *Architecture) Context() tensor.Context {
	return a.ctx
}

// Layers returns the attached layers in forward order.
func (a *Architecture) Layers() []nn.Layer {
	return a.layers
}

// In returns the first layer's input dimensions.
func (a *Architecture) In() tensor.Dims {
	if len(a.layers) == 0 {
		return tensor.Dims{}
	}
	return a.layers[0].In()
}

// Out returns the last layer's output dimensions.
func (a *Architecture) Out() tensor.Dims {
	if len(a.layers) == 0 {
		return tensor.Dims{}
	}
	return a.layers[len(a.layers)-1].Out()
}

// Params returns every parameter in forward order.
func (a *Architecture) Params() []*nn.Parameter {
	var params []*nn.Parameter
	for _, l := range a.layers {
		params = append(params, l.Params()...)
	}
	return params
}

// Optimizer returns the shared optimizer.
func (a *Architecture) Optimizer() optim.Optimizer {
	return a.opt
}

// Step returns the shared step counter.
func (a *Architecture) Step() int {
	return a.opt.Step()
}

// Forward submits the layers in order over the leading batch items of x and
// returns the last layer's output. With nn.UpdateStats batch-norm layers
// use and record batch statistics.
func (a *Architecture) Forward(s *tensor.Session, flags nn.Flags, batch int, x *tensor.Tensor) (*tensor.Tensor, error) {
	if len(a.layers) == 0 {
		return nil, fmt.Errorf("arch: forward: %w: no layers attached", tensor.ErrState)
	}

	p := nn.Pass{Batch: batch, Flags: flags &^ nn.NoUpdate, Momentum: a.momentum}
	out := x
	for _, l := range a.layers {
		var err error
		out, err = l.Forward(s, p, out)
		if err != nil {
			return nil, fmt.Errorf("arch: forward: %w", err)
		}
	}
	return out, nil
}

// Backward submits the layers in reverse with output gradient dy and
// returns the gradient with respect to the pipeline input.
//
// Unless opts.NoUpdate is set, it then advances the optimizer once and
// submits an update for every parameter of every layer not listed in
// opts.Frozen. Frozen layers still propagate gradients and their parameter
// tensors are left bit-identical.
func (a *Architecture) Backward(s *tensor.Session, opts BackwardOptions, batch int, dy *tensor.Tensor) (*tensor.Tensor, error) {
	if len(a.layers) == 0 {
		return nil, fmt.Errorf("arch: backward: %w: no layers attached", tensor.ErrState)
	}
	for _, i := range opts.Frozen {
		if i < 0 || i >= len(a.layers) {
			return nil, fmt.Errorf("arch: backward: %w: frozen layer %d of %d", nn.ErrConfig, i, len(a.layers))
		}
	}

	update := make([]bool, len(a.layers))
	updating := false
	for i := range a.layers {
		update[i] = !opts.NoUpdate && !slices.Contains(opts.Frozen, i)
		updating = updating || update[i]
	}

	grad := dy
	for i := len(a.layers) - 1; i >= 0; i-- {
		p := nn.Pass{Batch: batch}
		if !update[i] {
			p.Flags = nn.NoUpdate
		}
		var err error
		grad, err = a.layers[i].Backward(s, p, grad)
		if err != nil {
			return nil, fmt.Errorf("arch: backward: %w", err)
		}
	}

	if !updating {
		return grad, nil
	}

	a.opt.Advance()
	for i, l := range a.layers {
		if !update[i] {
			continue
		}
		for _, p := range l.Params() {
			if err := a.opt.Apply(s, p); err != nil {
				return nil, fmt.Errorf("arch: update: %w", err)
			}
		}
	}
	return grad, nil
}

// Release releases the attached layers in reverse order.
func (a *Architecture) Release() {
	for i := len(a.layers) - 1; i >= 0; i-- {
		a.layers[i].Release()
	}
	a.layers = nil
}
