// Package gan trains a generator and a discriminator adversarially.
//
// Both networks are arch.Architecture pipelines declared from coder
// blocks. One Trainer.Step runs, inside a single session:
//
//  1. the discriminator on a real batch against ones, then on a generated
//     batch against zeros, updating the discriminator after each;
//  2. the generator through the discriminator against ones. The
//     discriminator runs with frozen batch-norm statistics and a no-update
//     backward pass, so only the generator's parameters change.
package gan

import (
	"fmt"

	"github.com/born-ml/dcgan/internal/arch"
	"github.com/born-ml/dcgan/internal/nn"
)

// Config describes the two networks and the training step.
type Config struct {
	Height   int `json:"height"`   // image height, a multiple of 4 (default 28)
	Width    int `json:"width"`    // image width, a multiple of 4 (default 28)
	Channels int `json:"channels"` // image channels (default 1)

	Latent   int `json:"latent"`   // noise vector length (default 100)
	Batch    int `json:"batch"`    // batch size (default 64)
	Features int `json:"features"` // base channel count of both networks (default 64)

	// Init is the standard deviation of the N(0, std^2) weight
	// initializer (default 0.02).
	Init float32 `json:"init"`

	// Loss scores the discriminator output (default LogitCrossEntropy).
	// With a logit loss the discriminator ends at its dense layer;
	// otherwise it ends in a Logistic activation.
	Loss nn.LossKind `json:"loss"`

	// Generator and Discriminator configure each network's optimizer and
	// batch-norm momentum.
	Generator     arch.Config `json:"generator"`
	Discriminator arch.Config `json:"discriminator"`

	// Seed drives weight initialisation, noise and batch sampling.
	Seed uint64 `json:"seed"`
}

// DefaultConfig returns a configuration for 28x28 grayscale images.
func DefaultConfig() Config {
	return Config{
		Height:        28,
		Width:         28,
		Channels:      1,
		Latent:        100,
		Batch:         64,
		Features:      64,
		Init:          0.02,
		Loss:          nn.LogitCrossEntropy,
		Generator:     arch.DefaultConfig(),
		Discriminator: arch.DefaultConfig(),
		Seed:          1,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Height == 0 {
		c.Height = d.Height
	}
	if c.Width == 0 {
		c.Width = d.Width
	}
	if c.Channels == 0 {
		c.Channels = d.Channels
	}
	if c.Latent == 0 {
		c.Latent = d.Latent
	}
	if c.Batch == 0 {
		c.Batch = d.Batch
	}
	if c.Features == 0 {
		c.Features = d.Features
	}
	if c.Init == 0 {
		c.Init = d.Init
	}
	return c
}

// Validate reports a configuration the networks cannot be built from.
func (c Config) Validate() error {
	switch {
	case c.Height <= 0 || c.Width <= 0 || c.Height%4 != 0 || c.Width%4 != 0:
		return fmt.Errorf("gan: %w: image %dx%d must be a positive multiple of 4", nn.ErrConfig, c.Height, c.Width)
	case c.Channels <= 0 || c.Latent <= 0 || c.Batch <= 0 || c.Features <= 0:
		return fmt.Errorf("gan: %w: channels, latent, batch and features must be positive", nn.ErrConfig)
	case c.Init < 0:
		return fmt.Errorf("gan: %w: negative init std %v", nn.ErrConfig, c.Init)
	}
	return nil
}
