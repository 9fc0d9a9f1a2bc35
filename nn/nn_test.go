// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn_test

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/dcgan/backend/cpu"
	"github.com/born-ml/dcgan/nn"
	"github.com/born-ml/dcgan/tensor"
)

func TestPublicAPI_Coder(t *testing.T) {
	ctx := cpu.New(cpu.Config{})
	coder, err := nn.NewCoder(ctx, nn.CoderConfig{
		Name:       "g1",
		In:         tensor.Dims{N: 2, H: 7, W: 7, C: 4},
		Channels:   2,
		Size:       4,
		Stride:     2,
		Boundary:   nn.Zero,
		Transpose:  true,
		BatchNorm:  true,
		Activation: nn.LeakyReLU,
	}, nn.Normal(0.02), rand.New(rand.NewPCG(1, 2)))
	require.NoError(t, err)
	defer coder.Release()

	assert.Equal(t, tensor.Dims{N: 2, H: 14, W: 14, C: 2}, coder.Out())
	assert.Equal(t, "g1.convt", coder.Children()[0].Name())
}

func TestPublicAPI_LossKind(t *testing.T) {
	ctx := cpu.New(cpu.Config{})
	_, err := nn.NewLoss(ctx, nn.LossKind(7), tensor.Dims{N: 1, H: 1, W: 1, C: 1})
	require.ErrorIs(t, err, nn.ErrConfig)
}
