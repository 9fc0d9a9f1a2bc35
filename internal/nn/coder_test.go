package nn_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"

	"github.com/born-ml/dcgan/internal/nn"
	"github.com/born-ml/dcgan/internal/tensor"
)

func TestCoder_Structure(t *testing.T) {
	ctx := newCtx()
	cfg := nn.CoderConfig{
		Name:       "d1",
		In:         tensor.Dims{N: 4, H: 8, W: 8, C: 3},
		Channels:   16,
		Size:       4,
		Stride:     2,
		BatchNorm:  true,
		Activation: nn.LeakyReLU,
	}

	coder, err := nn.NewCoder(ctx, cfg, nil, newRand())
	require.NoError(t, err)
	defer coder.Release()

	assert.Equal(t, tensor.Dims{N: 4, H: 4, W: 4, C: 16}, coder.Out())
	require.Len(t, coder.Children(), 3)
	assert.Equal(t, "d1.conv", coder.Children()[0].Name())
	assert.Equal(t, "d1.bn", coder.Children()[1].Name())
	assert.Equal(t, "d1.leaky", coder.Children()[2].Name())
	assert.Len(t, coder.Params(), 4)

	cfg.NoBias = true
	cfg.Transpose = true
	up, err := nn.NewCoder(ctx, cfg, nil, newRand())
	require.NoError(t, err)
	defer up.Release()

	assert.Equal(t, tensor.Dims{N: 4, H: 16, W: 16, C: 16}, up.Out())
	assert.Equal(t, "d1.convt", up.Children()[0].Name())
	assert.Len(t, up.Params(), 3)
}

func TestCoder_InvalidConfig(t *testing.T) {
	ctx := newCtx()
	_, err := nn.NewCoder(ctx, nn.CoderConfig{In: tensor.Dims{N: 1, H: 4, W: 4, C: 1}, Size: 3, Channels: 2, Activation: nn.Activation(9)}, nil, newRand())
	require.ErrorIs(t, err, nn.ErrConfig)
	assert.Zero(t, ctx.MemoryStats().LiveBuffers, "conv built before the failure is released")
}

func TestCoder_RollbackOnAllocationFailure(t *testing.T) {
	cfg := nn.CoderConfig{
		In:         tensor.Dims{N: 2, H: 4, W: 4, C: 2},
		Channels:   3,
		Size:       3,
		BatchNorm:  true,
		Activation: nn.Logistic,
	}

	var failures int
	for n := 0; n < 100; n++ {
		ctx := tensor.NewMockContext()
		ctx.FailAfter(n)

		coder, err := nn.NewCoder(ctx, cfg, nil, newRand())
		if err == nil {
			coder.Release()
			assert.Zero(t, ctx.Live())
			break
		}
		require.ErrorIs(t, err, tensor.ErrAllocation)
		require.Zero(t, ctx.Live(), "allocation %d failed, buffers leaked", n)
		failures++
	}
	// conv: 4 tensors per parameter, y, dx; bn: 8 param tensors, y, dx; act: y, dx.
	assert.Equal(t, 22, failures)
}

func TestCoder_GradientMatchesFiniteDifferences(t *testing.T) {
	ctx := newCtx()
	rng := newRand()
	coder, err := nn.NewCoder(ctx, nn.CoderConfig{
		In:         tensor.Dims{N: 2, H: 3, W: 3, C: 2},
		Channels:   2,
		Size:       3,
		Boundary:   nn.Zero,
		BatchNorm:  true,
		Activation: nn.Logistic,
	}, nn.Normal(0.5), rng)
	require.NoError(t, err)
	defer coder.Release()

	p := nn.Pass{Batch: 2, Flags: nn.UpdateStats, Momentum: 0.9}
	x := randValues(rng, coder.In().Len())
	r := randValues(rng, coder.Out().Len())

	// L(x) = sum(coder(x) * r), so dL/dy = r.
	loss := func(v []float64) float64 {
		in := make([]float32, len(v))
		for i := range v {
			in[i] = float32(v[i])
		}
		y := forward(t, ctx, coder, p, in)
		var sum float64
		for i := range y {
			sum += float64(y[i]) * float64(r[i])
		}
		return sum
	}

	x64 := make([]float64, len(x))
	for i := range x {
		x64[i] = float64(x[i])
	}
	want := fd.Gradient(nil, loss, x64, &fd.Settings{Formula: fd.Central, Step: 1e-2})

	got := gradients(t, ctx, coder, p, x, r)
	require.Len(t, got, len(want))
	for i := range want {
		assert.InDelta(t, want[i], got[i], 2e-3, "dx[%d]", i)
	}
}
