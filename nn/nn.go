// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"math/rand/v2"

	"github.com/born-ml/dcgan/internal/nn"
	"github.com/born-ml/dcgan/tensor"
)

// Layer is a building block with fixed input and output dimensions.
type Layer = nn.Layer

// Pass describes one forward or backward call.
type Pass = nn.Pass

// Flags modify a forward or backward pass.
type Flags = nn.Flags

// Pass flags.
const (
	UpdateStats Flags = nn.UpdateStats
	NoUpdate    Flags = nn.NoUpdate
)

// Parameter is a trainable tensor with its gradient and optimizer moments.
type Parameter = nn.Parameter

// ErrConfig reports an invalid layer configuration.
var ErrConfig = nn.ErrConfig

// Initializers

// Initializer fills a weight slice.
type Initializer = nn.Initializer

// Normal draws weights from N(0, std^2).
func Normal(std float32) Initializer { return nn.Normal(std) }

// Xavier draws weights uniformly with the Glorot bound.
func Xavier() Initializer { return nn.Xavier() }

// Constant sets every weight to v.
func Constant(v float32) Initializer { return nn.Constant(v) }

// Layers

// Boundary selects how a convolution treats taps outside the input.
type Boundary = nn.Boundary

// Boundary policies.
const (
	Clamp = nn.Clamp
	Zero  = nn.Zero
	Valid = nn.Valid
)

// ConvConfig configures a Conv or ConvTranspose layer.
type ConvConfig = nn.ConvConfig

// Conv is a 2D convolutional layer.
type Conv = nn.Conv

// ConvTranspose is a 2D transposed convolution layer.
type ConvTranspose = nn.ConvTranspose

// NewConv creates a convolutional layer.
func NewConv(ctx tensor.Context, cfg ConvConfig) (*Conv, error) {
	return nn.NewConv(ctx, cfg)
}

// NewConvTranspose creates a transposed convolution layer.
func NewConvTranspose(ctx tensor.Context, cfg ConvConfig) (*ConvTranspose, error) {
	return nn.NewConvTranspose(ctx, cfg)
}

// DenseConfig configures a Dense layer.
type DenseConfig = nn.DenseConfig

// Dense is a fully connected layer over flat (N, 1, 1, C) tensors.
type Dense = nn.Dense

// NewDense creates a fully connected layer.
//
// Example:
//
//	dense, err := nn.NewDense(ctx, nn.DenseConfig{
//	    In: tensor.Dims{N: 64, H: 1, W: 1, C: 100}, Units: 6272, Rand: rng,
//	})
func NewDense(ctx tensor.Context, cfg DenseConfig) (*Dense, error) {
	return nn.NewDense(ctx, cfg)
}

// Activation selects an elementwise activation function.
type Activation = nn.Activation

// Activation kinds.
const (
	Logistic  = nn.Logistic
	LeakyReLU = nn.LeakyReLU
	Linear    = nn.Linear
	Tanh      = nn.Tanh
)

// ActivationLayer applies an activation function elementwise.
type ActivationLayer = nn.ActivationLayer

// NewActivation creates an activation layer.
func NewActivation(ctx tensor.Context, name string, dims tensor.Dims, kind Activation) (*ActivationLayer, error) {
	return nn.NewActivation(ctx, name, dims, kind)
}

// BatchNorm normalises each channel over the batch and spatial positions.
type BatchNorm = nn.BatchNorm

// NewBatchNorm creates a batch-norm layer.
func NewBatchNorm(ctx tensor.Context, name string, dims tensor.Dims) (*BatchNorm, error) {
	return nn.NewBatchNorm(ctx, name, dims)
}

// Reshape reinterprets item dimensions without moving data.
type Reshape = nn.Reshape

// NewReshape creates a reshape layer between dims with equal item length.
func NewReshape(name string, in, out tensor.Dims) (*Reshape, error) {
	return nn.NewReshape(name, in, out)
}

// Sequential chains layers whose dimensions match end to end.
type Sequential = nn.Sequential

// NewSequential creates a sequential container.
func NewSequential(name string, children ...Layer) (*Sequential, error) {
	return nn.NewSequential(name, children...)
}

// CoderConfig configures a Coder block.
type CoderConfig = nn.CoderConfig

// NewCoder creates a convolution, optional batch norm and activation block.
func NewCoder(ctx tensor.Context, cfg CoderConfig, init Initializer, rng *rand.Rand) (*Sequential, error) {
	return nn.NewCoder(ctx, cfg, init, rng)
}

// Losses

// Loss turns predictions and targets into a scalar and a gradient.
type Loss = nn.Loss

// LossKind selects a loss function.
type LossKind = nn.LossKind

// Loss kinds.
const (
	MeanSquared        LossKind = nn.MeanSquared
	BinaryCrossEntropy LossKind = nn.BinaryCrossEntropy
	LogitCrossEntropy  LossKind = nn.LogitCrossEntropy
)

// MSE is the mean squared error loss.
type MSE = nn.MSE

// BCE is the binary cross-entropy loss.
type BCE = nn.BCE

// BCEWithLogits is binary cross-entropy computed from logits.
type BCEWithLogits = nn.BCEWithLogits

// NewLoss creates a loss of the given kind.
func NewLoss(ctx tensor.Context, kind LossKind, dims tensor.Dims) (Loss, error) {
	return nn.NewLoss(ctx, kind, dims)
}

// NewMSE creates a mean squared error loss.
func NewMSE(ctx tensor.Context, dims tensor.Dims) (*MSE, error) {
	return nn.NewMSE(ctx, dims)
}

// NewBCE creates a binary cross-entropy loss.
func NewBCE(ctx tensor.Context, dims tensor.Dims) (*BCE, error) {
	return nn.NewBCE(ctx, dims)
}

// NewBCEWithLogits creates a binary cross-entropy loss on logits.
func NewBCEWithLogits(ctx tensor.Context, dims tensor.Dims) (*BCEWithLogits, error) {
	return nn.NewBCEWithLogits(ctx, dims)
}
