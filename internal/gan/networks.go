package gan

import (
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/dcgan/internal/arch"
	"github.com/born-ml/dcgan/internal/nn"
	"github.com/born-ml/dcgan/internal/tensor"
)

// GeneratorBlocks declares the generator's upsampling coders for cfg.
// The first block's input is the reshaped dense projection of the noise.
func GeneratorBlocks(cfg Config) []nn.CoderConfig {
	return []nn.CoderConfig{
		{Name: "g1", Channels: cfg.Features, Size: 4, Stride: 2, Boundary: nn.Zero, Transpose: true, BatchNorm: true, Activation: nn.LeakyReLU},
		{Name: "g2", Channels: cfg.Channels, Size: 4, Stride: 2, Boundary: nn.Zero, Transpose: true, Activation: nn.Tanh},
	}
}

// DiscriminatorBlocks declares the discriminator's downsampling coders
// for cfg.
func DiscriminatorBlocks(cfg Config) []nn.CoderConfig {
	return []nn.CoderConfig{
		{Name: "d1", Channels: cfg.Features, Size: 4, Stride: 2, Boundary: nn.Zero, Activation: nn.LeakyReLU},
		{Name: "d2", Channels: 2 * cfg.Features, Size: 4, Stride: 2, Boundary: nn.Zero, BatchNorm: true, Activation: nn.LeakyReLU},
	}
}

// network attaches layers to a fresh architecture and releases everything
// on the first failure.
type network struct {
	net *arch.Architecture
	err error
}

func (n *network) add(l nn.Layer, err error) {
	if n.err != nil {
		return
	}
	if err != nil {
		n.err = err
		return
	}
	if err := n.net.Attach(l); err != nil {
		l.Release()
		n.err = err
	}
}

func (n *network) coders(ctx tensor.Context, blocks []nn.CoderConfig, init nn.Initializer, rng *rand.Rand) {
	for _, b := range blocks {
		if n.err != nil {
			return
		}
		b.In = n.net.Out()
		n.add(nn.NewCoder(ctx, b, init, rng))
	}
}

func (n *network) finish(name string) (*arch.Architecture, error) {
	if n.err != nil {
		n.net.Release()
		return nil, fmt.Errorf("gan: %s: %w", name, n.err)
	}
	return n.net, nil
}

// NewGenerator builds noise (batch,1,1,latent) -> dense -> reshape to a
// quarter-size feature map -> batch-norm -> leaky -> upsampling coders ->
// image (batch,H,W,C) in [-1,1].
func NewGenerator(ctx tensor.Context, cfg Config, rng *rand.Rand) (*arch.Architecture, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	net, err := arch.New(ctx, cfg.Generator)
	if err != nil {
		return nil, err
	}

	init := nn.Normal(cfg.Init)
	n := &network{net: net}
	seed := tensor.Dims{N: cfg.Batch, H: cfg.Height / 4, W: cfg.Width / 4, C: 2 * cfg.Features}

	n.add(nn.NewDense(ctx, nn.DenseConfig{
		Name:  "g0.dense",
		In:    tensor.Dims{N: cfg.Batch, H: 1, W: 1, C: cfg.Latent},
		Units: seed.ItemLen(),
		Init:  init,
		Rand:  rng,
	}))
	if n.err == nil {
		n.add(nn.NewReshape("g0.reshape", net.Out(), seed))
	}
	if n.err == nil {
		n.add(nn.NewBatchNorm(ctx, "g0.bn", seed))
	}
	if n.err == nil {
		n.add(nn.NewActivation(ctx, "g0.leaky", seed, nn.LeakyReLU))
	}
	n.coders(ctx, GeneratorBlocks(cfg), init, rng)
	return n.finish("generator")
}

// NewDiscriminator builds image (batch,H,W,C) -> downsampling coders ->
// flatten -> dense -> score (batch,1,1,1). The score is a logit when
// cfg.Loss works on logits and a logistic probability otherwise.
func NewDiscriminator(ctx tensor.Context, cfg Config, rng *rand.Rand) (*arch.Architecture, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	net, err := arch.New(ctx, cfg.Discriminator)
	if err != nil {
		return nil, err
	}

	init := nn.Normal(cfg.Init)
	n := &network{net: net}
	blocks := DiscriminatorBlocks(cfg)
	blocks[0].In = tensor.Dims{N: cfg.Batch, H: cfg.Height, W: cfg.Width, C: cfg.Channels}
	n.add(nn.NewCoder(ctx, blocks[0], init, rng))
	n.coders(ctx, blocks[1:], init, rng)

	if n.err == nil {
		out := net.Out()
		n.add(nn.NewReshape("flatten", out, tensor.Dims{N: out.N, H: 1, W: 1, C: out.ItemLen()}))
	}
	if n.err == nil {
		n.add(nn.NewDense(ctx, nn.DenseConfig{Name: "d3.dense", In: net.Out(), Units: 1, Init: init, Rand: rng}))
	}
	if n.err == nil && !cfg.Loss.FromLogits() {
		n.add(nn.NewActivation(ctx, "d3.logistic", net.Out(), nn.Logistic))
	}
	return n.finish("discriminator")
}
