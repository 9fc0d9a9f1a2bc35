package nn

import (
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/dcgan/internal/tensor"
)

// CoderConfig declares one coder block: a convolution (standard or
// transposed), an optional batch normalisation, and an activation.
//
// Networks are written as short lists of these records:
//
//	[]nn.CoderConfig{
//	    {Channels: 64, Size: 4, Stride: 2, Activation: nn.LeakyReLU},
//	    {Channels: 128, Size: 4, Stride: 2, BatchNorm: true, Activation: nn.LeakyReLU},
//	}
type CoderConfig struct {
	Name       string      `json:"name,omitempty"`
	In         tensor.Dims `json:"in"`
	Channels   int         `json:"channels"`
	Size       int         `json:"size"`
	Stride     int         `json:"stride"`
	Boundary   Boundary    `json:"boundary"`
	Transpose  bool        `json:"transpose"`
	NoBias     bool        `json:"no_bias"`
	BatchNorm  bool        `json:"batch_norm"`
	Activation Activation  `json:"activation"`
}

// NewCoder builds a coder block from cfg. Every sub-layer built before a
// failure is released in reverse order before the error is returned.
func NewCoder(ctx tensor.Context, cfg CoderConfig, init Initializer, rng *rand.Rand) (*Sequential, error) {
	if cfg.Name == "" {
		cfg.Name = "coder"
	}

	b := newBuilder(ctx, cfg.Name)
	conv := ConvConfig{
		Name:     cfg.Name + ".conv",
		In:       cfg.In,
		Channels: cfg.Channels,
		Size:     cfg.Size,
		Stride:   cfg.Stride,
		Boundary: cfg.Boundary,
		NoBias:   cfg.NoBias,
		Init:     init,
		Rand:     rng,
	}

	var children []Layer
	add := func(l Layer) {
		if l != nil {
			children = append(children, l)
		}
	}

	if cfg.Transpose {
		conv.Name = cfg.Name + ".convt"
		add(b.adopt(NewConvTranspose(ctx, conv)))
	} else {
		add(b.adopt(NewConv(ctx, conv)))
	}

	dims := func() tensor.Dims {
		if len(children) == 0 {
			return tensor.Dims{}
		}
		return children[len(children)-1].Out()
	}
	if cfg.BatchNorm {
		add(b.adopt(NewBatchNorm(ctx, cfg.Name+".bn", dims())))
	}
	add(b.adopt(NewActivation(ctx, fmt.Sprintf("%s.%s", cfg.Name, cfg.Activation), dims(), cfg.Activation)))

	var seq *Sequential
	if b.err == nil {
		var err error
		seq, err = NewSequential(cfg.Name, children...)
		b.fail(err)
	}
	if err := b.finish(); err != nil {
		return nil, err
	}
	return seq, nil
}
