package serialization_test

import (
	"bytes"
	"encoding/binary"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/dcgan/internal/arch"
	"github.com/born-ml/dcgan/internal/backend/cpu"
	"github.com/born-ml/dcgan/internal/nn"
	"github.com/born-ml/dcgan/internal/optim"
	"github.com/born-ml/dcgan/internal/serialization"
	"github.com/born-ml/dcgan/internal/tensor"
)

const batch = 2

func newNet(t *testing.T, ctx tensor.Context, seed uint64) *arch.Architecture {
	t.Helper()
	rng := rand.New(rand.NewPCG(seed, 3))

	net, err := arch.New(ctx, arch.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(net.Release)

	coder, err := nn.NewCoder(ctx, nn.CoderConfig{
		Name: "c1", In: tensor.Dims{N: batch, H: 4, W: 4, C: 1}, Channels: 2, Size: 3, Stride: 2,
		Boundary: nn.Zero, BatchNorm: true, Activation: nn.LeakyReLU,
	}, nn.Normal(0.3), rng)
	require.NoError(t, err)
	require.NoError(t, net.Attach(coder))

	flat, err := nn.NewReshape("flatten", coder.Out(), tensor.Dims{N: batch, H: 1, W: 1, C: 8})
	require.NoError(t, err)
	require.NoError(t, net.Attach(flat))

	dense, err := nn.NewDense(ctx, nn.DenseConfig{In: flat.Out(), Units: 1, Rand: rng})
	require.NoError(t, err)
	require.NoError(t, net.Attach(dense))
	return net
}

// train runs one MSE step so moments and running statistics are non-trivial.
func train(t *testing.T, ctx tensor.Context, net *arch.Architecture) {
	t.Helper()
	x, err := tensor.New(ctx, net.In(), tensor.Zeroed)
	require.NoError(t, err)
	defer x.Release()
	target, err := tensor.New(ctx, net.Out(), tensor.Zeroed)
	require.NoError(t, err)
	defer target.Release()
	for i := range x.Host() {
		x.Host()[i] = float32(i%5) - 2
	}
	target.Host()[0] = 1

	mse, err := nn.NewMSE(ctx, net.Out())
	require.NoError(t, err)
	defer mse.Release()

	s, err := tensor.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tensor.Upload(s, x))
	require.NoError(t, tensor.Upload(s, target))
	y, err := net.Forward(s, nn.UpdateStats, batch, x)
	require.NoError(t, err)
	dy, err := mse.Forward(s, batch, y, target)
	require.NoError(t, err)
	_, err = net.Backward(s, arch.BackwardOptions{}, batch, dy)
	require.NoError(t, err)
	require.NoError(t, s.End())
}

type snapshot struct {
	values [][]float32
	mean   []float32
	state  optim.State
}

func take(t *testing.T, ctx tensor.Context, net *arch.Architecture) snapshot {
	t.Helper()
	s, err := tensor.Begin(ctx)
	require.NoError(t, err)
	var all []*tensor.Tensor
	for _, p := range net.Params() {
		m, v := p.Moments()
		all = append(all, p.Tensor(), m, v)
	}
	for _, x := range all {
		require.NoError(t, tensor.Download(s, x))
	}
	require.NoError(t, s.End())

	var snap snapshot
	for _, x := range all {
		snap.values = append(snap.values, append([]float32(nil), x.Host()...))
	}
	bn := net.Layers()[0].(*nn.Sequential).Children()[1].(*nn.BatchNorm)
	snap.mean, _ = bn.Running()
	snap.state = net.Optimizer().(*optim.Adam).State()
	return snap
}

func TestCheckpoint_RoundTrip(t *testing.T) {
	ctx := cpu.New(cpu.Config{})
	path := filepath.Join(t.TempDir(), "run.born")

	src := newNet(t, ctx, 1)
	train(t, ctx, src)
	want := take(t, ctx, src)
	require.Equal(t, 1, want.state.Step)
	require.NotEqual(t, []float32{0, 0}, want.mean)

	require.NoError(t, serialization.Save(path, []serialization.Network{{Name: "g", Net: src}}, map[string]string{"dataset": "synthetic"}))

	dst := newNet(t, ctx, 99)
	require.NotEqual(t, want.values, take(t, ctx, dst).values)

	h, err := serialization.Load(path, []serialization.Network{{Name: "g", Net: dst}})
	require.NoError(t, err)
	assert.Equal(t, "synthetic", h.Metadata["dataset"])
	assert.Equal(t, serialization.FormatVersionV2, h.FormatVersion)
	require.NotNil(t, h.Checkpoint)
	require.Len(t, h.Checkpoint.Networks, 1)
	assert.Equal(t, "adam", h.Checkpoint.Networks[0].Optimizer)
	assert.Equal(t, 1, h.Checkpoint.Networks[0].Step)

	got := take(t, ctx, dst)
	assert.Equal(t, want, got)
	assert.Equal(t, 1, dst.Step())
}

func TestCheckpoint_LayoutMismatch(t *testing.T) {
	ctx := cpu.New(cpu.Config{})
	path := filepath.Join(t.TempDir(), "run.born")

	require.NoError(t, serialization.Save(path, []serialization.Network{{Name: "g", Net: newNet(t, ctx, 1)}}, nil))

	_, err := serialization.Load(path, []serialization.Network{{Name: "d", Net: newNet(t, ctx, 1)}})
	require.ErrorIs(t, err, serialization.ErrTensorNotFound)
}

func encode(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	err := serialization.Write(&buf, serialization.Header{ModelType: "test"}, []serialization.Entry{
		{Name: "a", Dims: tensor.Dims{N: 1, H: 1, W: 1, C: 3}, Data: []float32{1, 2, 3}},
		{Name: "b", Dims: tensor.Dims{N: 2, H: 1, W: 1, C: 1}, Data: []float32{-1, 0.5}},
	})
	require.NoError(t, err)
	return buf.Bytes()
}

func TestWriteRead(t *testing.T) {
	raw := encode(t)
	require.Equal(t, "BORN", string(raw[:4]))

	headerSize := binary.LittleEndian.Uint64(raw[16:24])
	dataStart := serialization.FixedHeaderSizeV2 + int(headerSize)
	dataStart += (serialization.HeaderAlignment - dataStart%serialization.HeaderAlignment) % serialization.HeaderAlignment
	assert.Zero(t, dataStart%serialization.HeaderAlignment)
	assert.Len(t, raw, dataStart+5*4)

	f, err := serialization.Read(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, f.Names())

	values, dims, err := f.Tensor("b")
	require.NoError(t, err)
	assert.Equal(t, []float32{-1, 0.5}, values)
	assert.Equal(t, tensor.Dims{N: 2, H: 1, W: 1, C: 1}, dims)

	_, _, err = f.Tensor("missing")
	require.ErrorIs(t, err, serialization.ErrTensorNotFound)
}

func TestRead_Corruption(t *testing.T) {
	t.Run("checksum", func(t *testing.T) {
		raw := encode(t)
		raw[len(raw)-1] ^= 0xff
		_, err := serialization.Read(bytes.NewReader(raw))
		require.ErrorIs(t, err, serialization.ErrChecksumMismatch)

		_, err = serialization.ReadWithOptions(bytes.NewReader(raw), serialization.ReaderOptions{SkipChecksumValidation: true})
		require.NoError(t, err)
	})

	t.Run("magic", func(t *testing.T) {
		raw := encode(t)
		copy(raw, "NROB")
		_, err := serialization.Read(bytes.NewReader(raw))
		require.ErrorIs(t, err, serialization.ErrInvalidMagic)
	})

	t.Run("version", func(t *testing.T) {
		raw := encode(t)
		binary.LittleEndian.PutUint32(raw[4:8], 1)
		_, err := serialization.Read(bytes.NewReader(raw))
		require.ErrorIs(t, err, serialization.ErrUnsupportedVersion)
	})

	t.Run("truncated", func(t *testing.T) {
		raw := encode(t)
		_, err := serialization.Read(bytes.NewReader(raw[:len(raw)-3]))
		require.Error(t, err)
	})
}

func TestWrite_InvalidName(t *testing.T) {
	err := serialization.Write(&bytes.Buffer{}, serialization.Header{}, []serialization.Entry{
		{Name: "../escape", Dims: tensor.Dims{N: 1, H: 1, W: 1, C: 1}, Data: []float32{1}},
	})
	require.ErrorIs(t, err, serialization.ErrInvalidTensorName)

	err = serialization.Write(&bytes.Buffer{}, serialization.Header{}, []serialization.Entry{
		{Name: "short", Dims: tensor.Dims{N: 1, H: 1, W: 1, C: 2}, Data: []float32{1}},
	})
	require.ErrorIs(t, err, tensor.ErrShapeMismatch)
}

func TestValidateTensorOffsets(t *testing.T) {
	tests := []struct {
		name    string
		tensors []serialization.TensorMeta
		want    error
	}{
		{"ok", []serialization.TensorMeta{{Name: "a", Offset: 0, Size: 8}, {Name: "b", Offset: 8, Size: 8}}, nil},
		{"overlap", []serialization.TensorMeta{{Name: "a", Offset: 0, Size: 12}, {Name: "b", Offset: 8, Size: 8}}, serialization.ErrOffsetOverlap},
		{"out of bounds", []serialization.TensorMeta{{Name: "a", Offset: 12, Size: 8}}, serialization.ErrOutOfBounds},
		{"negative", []serialization.TensorMeta{{Name: "a", Offset: -4, Size: 4}}, serialization.ErrNegativeOffset},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := serialization.ValidateTensorOffsets(tt.tensors, 16)
			if tt.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestWriteFile_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.born")
	require.NoError(t, serialization.WriteFile(path, serialization.Header{}, []serialization.Entry{
		{Name: "a", Dims: tensor.Dims{N: 1, H: 1, W: 1, C: 1}, Data: []float32{4}},
	}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "x.born", entries[0].Name())

	f, err := serialization.ReadFile(path)
	require.NoError(t, err)
	v, _, err := f.Tensor("a")
	require.NoError(t, err)
	assert.Equal(t, []float32{4}, v)
}
