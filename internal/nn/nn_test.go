package nn_test

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/born-ml/dcgan/internal/backend/cpu"
	"github.com/born-ml/dcgan/internal/nn"
	"github.com/born-ml/dcgan/internal/tensor"
)

func newCtx() *cpu.Context {
	return cpu.New(cpu.Config{})
}

func newRand() *rand.Rand {
	return rand.New(rand.NewPCG(42, 7))
}

// hostTensor creates a tensor holding values in both residencies.
func hostTensor(t *testing.T, ctx tensor.Context, dims tensor.Dims, values []float32) *tensor.Tensor {
	t.Helper()
	x, err := tensor.New(ctx, dims, tensor.Zeroed)
	require.NoError(t, err)
	t.Cleanup(x.Release)

	copy(x.Host(), values)
	s, err := tensor.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tensor.Upload(s, x))
	require.NoError(t, s.End())
	return x
}

// download mirrors t to host storage and returns a copy of it.
func download(t *testing.T, ctx tensor.Context, x *tensor.Tensor) []float32 {
	t.Helper()
	s, err := tensor.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tensor.Download(s, x))
	require.NoError(t, s.End())
	return append([]float32(nil), x.Host()...)
}

// forward runs one forward pass and returns the output values.
func forward(t *testing.T, ctx tensor.Context, l nn.Layer, p nn.Pass, values []float32) []float32 {
	t.Helper()
	x := hostTensor(t, ctx, l.In(), values)

	s, err := tensor.Begin(ctx)
	require.NoError(t, err)
	y, err := l.Forward(s, p, x)
	require.NoError(t, err)
	require.NoError(t, tensor.Download(s, y))
	require.NoError(t, s.End())
	return append([]float32(nil), y.Host()...)
}

// gradients runs forward then backward with output gradient dy and returns
// the input gradient.
func gradients(t *testing.T, ctx tensor.Context, l nn.Layer, p nn.Pass, values, dy []float32) []float32 {
	t.Helper()
	x := hostTensor(t, ctx, l.In(), values)
	g := hostTensor(t, ctx, l.Out(), dy)

	s, err := tensor.Begin(ctx)
	require.NoError(t, err)
	_, err = l.Forward(s, p, x)
	require.NoError(t, err)
	dx, err := l.Backward(s, p, g)
	require.NoError(t, err)
	require.NoError(t, tensor.Download(s, dx))
	require.NoError(t, s.End())
	return append([]float32(nil), dx.Host()...)
}

func randValues(rng *rand.Rand, n int) []float32 {
	v := make([]float32, n)
	for i := range v {
		v[i] = float32(rng.NormFloat64())
	}
	return v
}

func paramValues(t *testing.T, ctx tensor.Context, params []*nn.Parameter) [][]float32 {
	t.Helper()
	out := make([][]float32, len(params))
	for i, p := range params {
		out[i] = download(t, ctx, p.Tensor())
	}
	return out
}
