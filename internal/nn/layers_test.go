package nn_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/dcgan/internal/nn"
	"github.com/born-ml/dcgan/internal/tensor"
)

func TestActivation_Values(t *testing.T) {
	ctx := newCtx()
	dims := tensor.Dims{N: 2, H: 1, W: 1, C: 1}

	tests := []struct {
		kind    nn.Activation
		x       float32
		y, dydx float32
	}{
		{nn.LeakyReLU, -2, -0.02, 0.01},
		{nn.LeakyReLU, 3, 3, 1},
		{nn.Logistic, 0, 0.5, 0.25},
		{nn.Linear, -4, -4, 1},
		{nn.Tanh, 0, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			act, err := nn.NewActivation(ctx, "", dims, tt.kind)
			require.NoError(t, err)
			defer act.Release()

			p := nn.Pass{Batch: 1}
			y := forward(t, ctx, act, p, []float32{tt.x, 100})
			assert.InDelta(t, tt.y, y[0], 1e-7)
			assert.Zero(t, y[1], "items past the batch are not computed")

			dx := gradients(t, ctx, act, p, []float32{tt.x, 0}, []float32{1, 1})
			assert.InDelta(t, tt.dydx, dx[0], 1e-7)
		})
	}
}

func TestActivation_UnknownKind(t *testing.T) {
	_, err := nn.NewActivation(newCtx(), "bad", tensor.Dims{N: 1, H: 1, W: 1, C: 1}, nn.Activation(42))
	require.ErrorIs(t, err, nn.ErrConfig)
}

func TestDense(t *testing.T) {
	ctx := newCtx()
	dense, err := nn.NewDense(ctx, nn.DenseConfig{
		In: tensor.Dims{N: 2, H: 1, W: 1, C: 3}, Units: 2, Init: nn.Constant(0.5), Rand: newRand(),
	})
	require.NoError(t, err)
	defer dense.Release()

	assert.Equal(t, tensor.Dims{N: 2, H: 1, W: 1, C: 2}, dense.Out())

	y := forward(t, ctx, dense, nn.Pass{Batch: 2}, []float32{1, 2, 3, 0, 0, 2})
	assert.Equal(t, []float32{3, 3, 1, 1}, y)

	dx := gradients(t, ctx, dense, nn.Pass{Batch: 2}, []float32{1, 2, 3, 0, 0, 2}, []float32{1, 1, 2, 0})
	assert.Equal(t, []float32{1, 1, 1, 1, 1, 1}, dx)
	assert.Equal(t, []float32{3, 1}, download(t, ctx, dense.Bias().Grad()))
	assert.Equal(t, []float32{1, 2, 7, 1, 2, 3}, download(t, ctx, dense.Weight().Grad()))
}

func TestDense_RequiresFlatInput(t *testing.T) {
	_, err := nn.NewDense(newCtx(), nn.DenseConfig{In: tensor.Dims{N: 1, H: 2, W: 2, C: 1}, Units: 2, Rand: newRand()})
	require.ErrorIs(t, err, tensor.ErrShapeMismatch)
}

func TestBatchNorm_Statistics(t *testing.T) {
	ctx := newCtx()
	dims := tensor.Dims{N: 4, H: 1, W: 1, C: 1}
	bn, err := nn.NewBatchNorm(ctx, "bn", dims)
	require.NoError(t, err)
	defer bn.Release()

	x := []float32{1, 3, 5, 7}

	// Frozen pass on fresh running stats (mean 0, var 1) is nearly identity.
	y := forward(t, ctx, bn, nn.Pass{Batch: 4, Momentum: 0.9}, x)
	for i := range x {
		assert.InDelta(t, x[i], y[i], 1e-4)
	}
	mean, variance := bn.Running()
	assert.Equal(t, []float32{0}, mean, "frozen pass leaves running stats untouched")
	assert.Equal(t, []float32{1}, variance)

	// Training pass normalises with batch stats and blends them in.
	y = forward(t, ctx, bn, nn.Pass{Batch: 4, Flags: nn.UpdateStats, Momentum: 0.9}, x)
	var sum float64
	for _, v := range y {
		sum += float64(v)
	}
	assert.InDelta(t, 0, sum, 1e-5)
	assert.InDelta(t, 3/math.Sqrt(5+1e-5), y[3], 1e-5)

	mean, variance = bn.Running()
	assert.InDelta(t, 0.4, mean[0], 1e-6)
	assert.InDelta(t, 0.9+0.1*5, variance[0], 1e-6)
}

func TestBatchNorm_SetRunning(t *testing.T) {
	bn, err := nn.NewBatchNorm(newCtx(), "bn", tensor.Dims{N: 1, H: 1, W: 1, C: 2})
	require.NoError(t, err)
	defer bn.Release()

	require.NoError(t, bn.SetRunning([]float32{1, 2}, []float32{3, 4}))
	mean, variance := bn.Running()
	assert.Equal(t, []float32{1, 2}, mean)
	assert.Equal(t, []float32{3, 4}, variance)

	require.ErrorIs(t, bn.SetRunning([]float32{1}, []float32{1}), tensor.ErrShapeMismatch)
}

func TestReshape(t *testing.T) {
	ctx := newCtx()
	in := tensor.Dims{N: 2, H: 2, W: 2, C: 3}
	out := tensor.Dims{N: 2, H: 1, W: 1, C: 12}

	r, err := nn.NewReshape("flatten", in, out)
	require.NoError(t, err)
	defer r.Release()

	values := make([]float32, in.Len())
	for i := range values {
		values[i] = float32(i)
	}

	y := forward(t, ctx, r, nn.Pass{Batch: 2}, values)
	assert.Equal(t, values, y, "element order is preserved")

	dx := gradients(t, ctx, r, nn.Pass{Batch: 2}, values, values)
	assert.Equal(t, values, dx)
}

func TestReshape_Mismatch(t *testing.T) {
	_, err := nn.NewReshape("bad", tensor.Dims{N: 2, H: 2, W: 2, C: 3}, tensor.Dims{N: 2, H: 1, W: 1, C: 10})
	require.ErrorIs(t, err, tensor.ErrShapeMismatch)

	_, err = nn.NewReshape("bad", tensor.Dims{N: 2, H: 2, W: 2, C: 3}, tensor.Dims{N: 1, H: 1, W: 1, C: 24})
	require.ErrorIs(t, err, tensor.ErrShapeMismatch)
}

func TestSequential_DimensionChain(t *testing.T) {
	ctx := newCtx()
	a, err := nn.NewActivation(ctx, "a", tensor.Dims{N: 1, H: 2, W: 2, C: 1}, nn.Linear)
	require.NoError(t, err)
	defer a.Release()
	b, err := nn.NewActivation(ctx, "b", tensor.Dims{N: 1, H: 2, W: 1, C: 2}, nn.Linear)
	require.NoError(t, err)
	defer b.Release()

	_, err = nn.NewSequential("chain", a, b)
	require.ErrorIs(t, err, tensor.ErrShapeMismatch)

	_, err = nn.NewSequential("empty")
	require.ErrorIs(t, err, nn.ErrConfig)
}

func TestLoss_MSE(t *testing.T) {
	ctx := newCtx()
	dims := tensor.Dims{N: 2, H: 1, W: 1, C: 2}
	mse, err := nn.NewMSE(ctx, dims)
	require.NoError(t, err)
	defer mse.Release()

	pred := hostTensor(t, ctx, dims, []float32{1, 2, 3, 4})
	target := hostTensor(t, ctx, dims, []float32{0, 2, 5, 4})

	s, err := tensor.Begin(ctx)
	require.NoError(t, err)
	dy, err := mse.Forward(s, 2, pred, target)
	require.NoError(t, err)
	require.NoError(t, tensor.Download(s, dy))
	require.NoError(t, s.End())

	assert.Equal(t, []float32{1, 0, -2, 0}, dy.Host())
	assert.InDelta(t, 5.0/4, mse.Value(), 1e-7)
}

func TestLoss_BCEThroughLogistic(t *testing.T) {
	ctx := newCtx()
	dims := tensor.Dims{N: 3, H: 1, W: 1, C: 1}

	act, err := nn.NewActivation(ctx, "sigmoid", dims, nn.Logistic)
	require.NoError(t, err)
	defer act.Release()
	bce, err := nn.NewBCE(ctx, dims)
	require.NoError(t, err)
	defer bce.Release()

	logits := []float32{0, 2, -1}
	x := hostTensor(t, ctx, dims, logits)
	target := hostTensor(t, ctx, dims, []float32{1, 0, 0})

	s, err := tensor.Begin(ctx)
	require.NoError(t, err)
	p := nn.Pass{Batch: 3}
	prob, err := act.Forward(s, p, x)
	require.NoError(t, err)
	dy, err := bce.Forward(s, 3, prob, target)
	require.NoError(t, err)
	dx, err := act.Backward(s, p, dy)
	require.NoError(t, err)
	require.NoError(t, tensor.Download(s, prob))
	require.NoError(t, tensor.Download(s, dx))
	require.NoError(t, s.End())

	targets := []float32{1, 0, 0}
	var want float64
	for i, l := range logits {
		q := 1 / (1 + math.Exp(-float64(l)))
		assert.InDelta(t, q-float64(targets[i]), dx.Host()[i], 1e-5, "pre-activation gradient is p - t")
		if targets[i] == 1 {
			want -= math.Log(q)
		} else {
			want -= math.Log(1 - q)
		}
	}
	assert.InDelta(t, want/3, bce.Value(), 1e-5)
}

func TestLoss_Mismatch(t *testing.T) {
	ctx := newCtx()
	dims := tensor.Dims{N: 2, H: 1, W: 1, C: 1}
	loss, err := nn.NewLoss(ctx, nn.MeanSquared, dims)
	require.NoError(t, err)
	defer loss.Release()

	pred := hostTensor(t, ctx, dims, nil)
	wrong := hostTensor(t, ctx, tensor.Dims{N: 2, H: 1, W: 1, C: 2}, nil)
	small := hostTensor(t, ctx, tensor.Dims{N: 1, H: 1, W: 1, C: 1}, nil)

	s, err := tensor.Begin(ctx)
	require.NoError(t, err)
	defer func() { require.NoError(t, s.End()) }()

	_, err = loss.Forward(s, 2, pred, wrong)
	require.ErrorIs(t, err, tensor.ErrShapeMismatch)
	_, err = loss.Forward(s, 2, pred, small)
	require.ErrorIs(t, err, tensor.ErrShapeMismatch, "target has fewer items than the batch")
}

func TestLoss_BCEWithLogitsSaturated(t *testing.T) {
	ctx := newCtx()
	dims := tensor.Dims{N: 4, H: 1, W: 1, C: 1}

	loss, err := nn.NewLoss(ctx, nn.LogitCrossEntropy, dims)
	require.NoError(t, err)
	defer loss.Release()
	assert.True(t, nn.LogitCrossEntropy.FromLogits())
	assert.Equal(t, "bce-logits", nn.LogitCrossEntropy.String())

	logits := hostTensor(t, ctx, dims, []float32{-20, -17, 17, 20})
	target := hostTensor(t, ctx, dims, []float32{1, 1, 0, 0})

	s, err := tensor.Begin(ctx)
	require.NoError(t, err)
	dy, err := loss.Forward(s, 4, logits, target)
	require.NoError(t, err)
	require.NoError(t, tensor.Download(s, dy))
	require.NoError(t, s.End())

	assert.InDeltaSlice(t, []float32{-1, -1, 1, 1}, dy.Host(), 1e-6)
	assert.InDelta(t, (20+17+17+20)/4.0, loss.Value(), 1e-5)
}

func TestLoss_BCEWithLogitsMatchesBCEThroughLogistic(t *testing.T) {
	ctx := newCtx()
	dims := tensor.Dims{N: 3, H: 1, W: 1, C: 1}

	act, err := nn.NewActivation(ctx, "sigmoid", dims, nn.Logistic)
	require.NoError(t, err)
	defer act.Release()
	bce, err := nn.NewBCE(ctx, dims)
	require.NoError(t, err)
	defer bce.Release()
	fused, err := nn.NewBCEWithLogits(ctx, dims)
	require.NoError(t, err)
	defer fused.Release()

	x := hostTensor(t, ctx, dims, []float32{0, 2, -1})
	target := hostTensor(t, ctx, dims, []float32{1, 0, 0})

	s, err := tensor.Begin(ctx)
	require.NoError(t, err)
	p := nn.Pass{Batch: 3}
	prob, err := act.Forward(s, p, x)
	require.NoError(t, err)
	dp, err := bce.Forward(s, 3, prob, target)
	require.NoError(t, err)
	dx, err := act.Backward(s, p, dp)
	require.NoError(t, err)
	dz, err := fused.Forward(s, 3, x, target)
	require.NoError(t, err)
	require.NoError(t, tensor.Download(s, dx))
	require.NoError(t, tensor.Download(s, dz))
	require.NoError(t, s.End())

	assert.InDeltaSlice(t, dx.Host(), dz.Host(), 1e-5)
	assert.InDelta(t, bce.Value(), fused.Value(), 1e-5)
}
