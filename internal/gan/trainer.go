package gan

import (
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/dcgan/internal/arch"
	"github.com/born-ml/dcgan/internal/dataset"
	"github.com/born-ml/dcgan/internal/metrics"
	"github.com/born-ml/dcgan/internal/nn"
	"github.com/born-ml/dcgan/internal/tensor"
)

// Network names reported to the metrics sink.
const (
	GeneratorName     = "generator"
	DiscriminatorName = "discriminator"
)

// Losses are the scalar losses of one training step.
type Losses struct {
	Step  int
	Real  float32 // discriminator on real images against ones
	Fake  float32 // discriminator on generated images against zeros
	Adver float32 // generator through the discriminator against ones
}

// Discriminator returns the mean of the real and fake losses.
func (l Losses) Discriminator() float32 {
	return (l.Real + l.Fake) / 2
}

// Trainer owns both networks and the tensors of one adversarial step.
type Trainer struct {
	cfg  Config
	ctx  tensor.Context
	g, d *arch.Architecture

	pcg     *rand.PCG
	rng     *rand.Rand
	sampler *dataset.Sampler
	sink    metrics.Sink

	real, noise, preview *tensor.Tensor
	ones, zeros          *tensor.Tensor

	realLoss, fakeLoss, advLoss nn.Loss

	step int
}

// NewTrainer builds both networks for cfg and a trainer sampling real
// images from src. The source's item dimensions must match the configured
// image. sink may be nil.
func NewTrainer(ctx tensor.Context, cfg Config, src *dataset.Source, sink metrics.Sink) (*Trainer, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	image := tensor.Dims{N: cfg.Batch, H: cfg.Height, W: cfg.Width, C: cfg.Channels}
	if src == nil {
		return nil, fmt.Errorf("gan: %w: nil source", tensor.ErrState)
	}
	if !src.Dims().EqualItem(image) {
		return nil, tensor.Mismatch("gan: source", image.WithBatch(src.Len()), src.Dims())
	}

	t := &Trainer{cfg: cfg, ctx: ctx, sink: sink, pcg: rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)}
	t.rng = rand.New(t.pcg)
	ok := false
	defer func() {
		if !ok {
			t.Release()
		}
	}()

	g, err := NewGenerator(ctx, cfg, t.rng)
	if err != nil {
		return nil, err
	}
	t.g = g
	d, err := NewDiscriminator(ctx, cfg, t.rng)
	if err != nil {
		return nil, err
	}
	t.d = d
	if t.sampler, err = dataset.NewSampler(src, t.rng); err != nil {
		return nil, err
	}

	label := tensor.Dims{N: cfg.Batch, H: 1, W: 1, C: 1}
	for _, a := range []struct {
		dst  **tensor.Tensor
		dims tensor.Dims
	}{
		{&t.real, image},
		{&t.noise, t.g.In()},
		{&t.preview, t.g.In()},
		{&t.ones, label},
		{&t.zeros, label},
	} {
		x, err := tensor.New(ctx, a.dims, tensor.Zeroed)
		if err != nil {
			return nil, fmt.Errorf("gan: %w", err)
		}
		*a.dst = x
	}
	for _, l := range []*nn.Loss{&t.realLoss, &t.fakeLoss, &t.advLoss} {
		loss, err := nn.NewLoss(ctx, cfg.Loss, t.d.Out())
		if err != nil {
			return nil, fmt.Errorf("gan: %w", err)
		}
		*l = loss
	}

	s, err := tensor.Begin(ctx)
	if err != nil {
		return nil, err
	}
	for i := range t.ones.Host() {
		t.ones.Host()[i] = 1
	}
	t.fillNoise(t.preview)
	for _, x := range []*tensor.Tensor{t.ones, t.zeros, t.preview} {
		if err := tensor.Upload(s, x); err != nil {
			_ = s.End()
			return nil, err
		}
	}
	if err := s.End(); err != nil {
		return nil, err
	}

	ok = true
	return t, nil
}

// Config returns the configuration with defaults applied.
func (t *Trainer) Config() Config {
	return t.cfg
}

// Generator returns the generator network.
func (t *Trainer) Generator() *arch.Architecture {
	return t.g
}

// Discriminator returns the discriminator network.
func (t *Trainer) Discriminator() *arch.Architecture {
	return t.d
}

// Steps returns the number of completed Step calls.
func (t *Trainer) Steps() int {
	return t.step
}

// SetSteps restores the step count, e.g. after loading a checkpoint.
func (t *Trainer) SetSteps(n int) {
	t.step = n
}

// RandomState returns the state of the source that draws noise and
// batches. Restoring it with SetRandomState after loading a checkpoint
// continues the run exactly where it stopped.
func (t *Trainer) RandomState() ([]byte, error) {
	return t.pcg.MarshalBinary()
}

// SetRandomState restores a state returned by RandomState.
func (t *Trainer) SetRandomState(state []byte) error {
	if err := t.pcg.UnmarshalBinary(state); err != nil {
		return fmt.Errorf("gan: random state: %w", err)
	}
	return nil
}

// fillNoise writes N(0,1) samples to the host copy of x.
func (t *Trainer) fillNoise(x *tensor.Tensor) {
	host := x.Host()
	for i := range host {
		host[i] = float32(t.rng.NormFloat64())
	}
}

// DiscriminatorStep submits the two discriminator updates: a real batch
// against ones and a freshly generated batch against zeros.
func (t *Trainer) DiscriminatorStep(s *tensor.Session) error {
	batch := t.cfg.Batch
	if err := t.sampler.Next(s, t.real, batch); err != nil {
		return err
	}
	if err := t.train(s, t.real, t.ones, t.realLoss); err != nil {
		return fmt.Errorf("gan: discriminator on real: %w", err)
	}

	t.fillNoise(t.noise)
	if err := tensor.Upload(s, t.noise); err != nil {
		return err
	}
	fake, err := t.g.Forward(s, nn.UpdateStats, batch, t.noise)
	if err != nil {
		return fmt.Errorf("gan: generate: %w", err)
	}
	if err := t.train(s, fake, t.zeros, t.fakeLoss); err != nil {
		return fmt.Errorf("gan: discriminator on fake: %w", err)
	}
	return nil
}

func (t *Trainer) train(s *tensor.Session, x, target *tensor.Tensor, loss nn.Loss) error {
	batch := t.cfg.Batch
	y, err := t.d.Forward(s, nn.UpdateStats, batch, x)
	if err != nil {
		return err
	}
	dy, err := loss.Forward(s, batch, y, target)
	if err != nil {
		return err
	}
	_, err = t.d.Backward(s, arch.BackwardOptions{}, batch, dy)
	return err
}

// GeneratorStep submits one generator update. Gradients flow through the
// discriminator, whose parameters and running statistics stay unchanged.
func (t *Trainer) GeneratorStep(s *tensor.Session) error {
	batch := t.cfg.Batch
	t.fillNoise(t.noise)
	if err := tensor.Upload(s, t.noise); err != nil {
		return err
	}
	fake, err := t.g.Forward(s, nn.UpdateStats, batch, t.noise)
	if err != nil {
		return fmt.Errorf("gan: generate: %w", err)
	}
	y, err := t.d.Forward(s, 0, batch, fake)
	if err != nil {
		return fmt.Errorf("gan: score: %w", err)
	}
	dy, err := t.advLoss.Forward(s, batch, y, t.ones)
	if err != nil {
		return fmt.Errorf("gan: score: %w", err)
	}
	dx, err := t.d.Backward(s, arch.BackwardOptions{NoUpdate: true}, batch, dy)
	if err != nil {
		return fmt.Errorf("gan: route gradient: %w", err)
	}
	if _, err := t.g.Backward(s, arch.BackwardOptions{}, batch, dx); err != nil {
		return fmt.Errorf("gan: generator update: %w", err)
	}
	return nil
}

// Step runs one adversarial step in its own session and reports the
// losses to the sink.
func (t *Trainer) Step() (Losses, error) {
	s, err := tensor.Begin(t.ctx)
	if err != nil {
		return Losses{}, err
	}
	if err := t.DiscriminatorStep(s); err != nil {
		_ = s.End()
		return Losses{}, err
	}
	if err := t.GeneratorStep(s); err != nil {
		_ = s.End()
		return Losses{}, err
	}
	if err := s.End(); err != nil {
		return Losses{}, fmt.Errorf("gan: step: %w", err)
	}

	t.step++
	l := Losses{Step: t.step, Real: t.realLoss.Value(), Fake: t.fakeLoss.Value(), Adver: t.advLoss.Value()}
	if t.sink != nil {
		if err := t.sink.Record(l.Step, DiscriminatorName, l.Discriminator()); err != nil {
			return l, err
		}
		if err := t.sink.Record(l.Step, GeneratorName, l.Adver); err != nil {
			return l, err
		}
	}
	return l, nil
}

// Preview runs the generator on a fixed noise batch, with frozen
// batch-norm statistics, and returns its output with the host copy
// populated. The tensor is owned by the generator and is overwritten by
// its next forward pass.
func (t *Trainer) Preview() (*tensor.Tensor, error) {
	s, err := tensor.Begin(t.ctx)
	if err != nil {
		return nil, err
	}
	out, err := t.g.Forward(s, 0, t.cfg.Batch, t.preview)
	if err == nil {
		err = tensor.Download(s, out)
	}
	if endErr := s.End(); err == nil {
		err = endErr
	}
	if err != nil {
		return nil, fmt.Errorf("gan: preview: %w", err)
	}
	return out, nil
}

// Release frees both networks and every tensor the trainer owns.
func (t *Trainer) Release() {
	for _, l := range []nn.Loss{t.advLoss, t.fakeLoss, t.realLoss} {
		if l != nil {
			l.Release()
		}
	}
	for _, x := range []*tensor.Tensor{t.zeros, t.ones, t.preview, t.noise, t.real} {
		x.Release()
	}
	if t.d != nil {
		t.d.Release()
	}
	if t.g != nil {
		t.g.Release()
	}
}
