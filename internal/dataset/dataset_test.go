package dataset_test

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/dcgan/internal/backend/cpu"
	"github.com/born-ml/dcgan/internal/dataset"
	"github.com/born-ml/dcgan/internal/tensor"
)

func idxBytes(count, rows, cols int, fill func(n, i int) byte) []byte {
	var buf bytes.Buffer
	for _, v := range []uint32{0x803, uint32(count), uint32(rows), uint32(cols)} {
		_ = binary.Write(&buf, binary.BigEndian, v)
	}
	for n := range count {
		for i := range rows * cols {
			buf.WriteByte(fill(n, i))
		}
	}
	return buf.Bytes()
}

func TestReadIDX(t *testing.T) {
	raw := idxBytes(3, 2, 2, func(n, i int) byte { return byte(n*10 + i) })

	dims, pixels, err := dataset.ReadIDX(bytes.NewReader(raw), 0)
	require.NoError(t, err)
	assert.Equal(t, tensor.Dims{N: 3, H: 2, W: 2, C: 1}, dims)
	assert.Equal(t, []byte{0, 1, 2, 3, 10, 11, 12, 13, 20, 21, 22, 23}, pixels)

	dims, pixels, err = dataset.ReadIDX(bytes.NewReader(raw), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, dims.N)
	assert.Len(t, pixels, 8)
}

func TestReadIDX_Invalid(t *testing.T) {
	raw := idxBytes(1, 2, 2, func(int, int) byte { return 0 })

	bad := append([]byte(nil), raw...)
	bad[3] = 0x01 // label file magic
	_, _, err := dataset.ReadIDX(bytes.NewReader(bad), 0)
	require.ErrorIs(t, err, dataset.ErrFormat)

	_, _, err = dataset.ReadIDX(bytes.NewReader(raw[:len(raw)-1]), 0)
	require.ErrorIs(t, err, dataset.ErrFormat)

	_, _, err = dataset.ReadIDX(bytes.NewReader(raw[:6]), 0)
	require.ErrorIs(t, err, dataset.ErrFormat)
}

func TestLoadIDX_Gzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "images-idx3-ubyte.gz")
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(idxBytes(2, 1, 2, func(n, i int) byte { return byte(255 * ((n + i) % 2)) }))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	src, err := dataset.LoadIDX(cpu.New(cpu.Config{}), path, 0, -1, 1)
	require.NoError(t, err)
	defer src.Release()

	assert.Equal(t, 2, src.Len())
	assert.InDeltaSlice(t, []float32{-1, 1, 1, -1}, src.Tensor().Host(), 1e-6)
}

func TestReadCSV(t *testing.T) {
	in := "label,p0,p1,p2,p3\n5,0,255,0,255\n3,51,0,0,0\n"
	dims, pixels, err := dataset.ReadCSV(strings.NewReader(in), 0)
	require.NoError(t, err)
	assert.Equal(t, tensor.Dims{N: 2, H: 2, W: 2, C: 1}, dims)
	assert.Equal(t, []byte{0, 255, 0, 255, 51, 0, 0, 0}, pixels)

	_, _, err = dataset.ReadCSV(strings.NewReader("label,p0,p1\n1,0,0\n"), 0)
	require.ErrorIs(t, err, dataset.ErrFormat, "two pixels is not a square")

	_, _, err = dataset.ReadCSV(strings.NewReader("label,p0\n1,256\n"), 0)
	require.ErrorIs(t, err, dataset.ErrFormat)
}

func TestFromBytes(t *testing.T) {
	ctx := cpu.New(cpu.Config{})
	src, err := dataset.FromBytes(ctx, tensor.Dims{N: 1, H: 1, W: 3, C: 1}, []byte{0, 51, 255}, 0, 1)
	require.NoError(t, err)
	defer src.Release()
	assert.InDeltaSlice(t, []float32{0, 0.2, 1}, src.Tensor().Host(), 1e-6)

	lo, hi := src.Range()
	assert.Equal(t, float32(0), lo)
	assert.Equal(t, float32(1), hi)

	_, err = dataset.FromBytes(ctx, tensor.Dims{N: 2, H: 1, W: 3, C: 1}, []byte{0, 51, 255}, 0, 1)
	require.ErrorIs(t, err, tensor.ErrShapeMismatch)
}

func TestSynthetic(t *testing.T) {
	ctx := cpu.New(cpu.Config{})
	src, err := dataset.Synthetic(ctx, 4, 16, 16, rand.New(rand.NewPCG(1, 1)), -1, 1)
	require.NoError(t, err)
	defer src.Release()

	assert.Equal(t, tensor.Dims{N: 4, H: 16, W: 16, C: 1}, src.Dims())
	item := src.Tensor().Host()[:16*16]
	var on, off int
	for _, v := range item {
		require.GreaterOrEqual(t, v, float32(-1))
		require.LessOrEqual(t, v, float32(1))
		switch {
		case v > 0.99:
			on++
		case v < -0.99:
			off++
		}
	}
	assert.Positive(t, on, "disc interior")
	assert.Positive(t, off, "background")
}

func TestSampler(t *testing.T) {
	ctx := cpu.New(cpu.Config{})
	pixels := make([]byte, 10*2*2)
	for n := range 10 {
		for i := range 4 {
			pixels[n*4+i] = byte(n * 20)
		}
	}
	src, err := dataset.FromBytes(ctx, tensor.Dims{N: 10, H: 2, W: 2, C: 1}, pixels, 0, 255)
	require.NoError(t, err)
	defer src.Release()

	sm, err := dataset.NewSampler(src, rand.New(rand.NewPCG(3, 4)))
	require.NoError(t, err)

	dst, err := tensor.New(ctx, tensor.Dims{N: 4, H: 2, W: 2, C: 1}, tensor.Zeroed)
	require.NoError(t, err)
	defer dst.Release()

	s, err := tensor.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, sm.Next(s, dst, 3))
	require.NoError(t, tensor.Download(s, dst))
	require.NoError(t, s.End())

	idx := sm.Indices()
	require.Len(t, idx, 3)
	accel := dst.Host()
	for i, k := range idx {
		for j := range 4 {
			assert.Equal(t, float32(k*20), accel[i*4+j], "item %d comes from source %d", i, k)
		}
	}
	for j := 12; j < 16; j++ {
		assert.Zero(t, accel[j], "items past the batch are untouched")
	}
}

func TestSampler_Mismatch(t *testing.T) {
	ctx := cpu.New(cpu.Config{})
	src, err := dataset.FromBytes(ctx, tensor.Dims{N: 2, H: 2, W: 2, C: 1}, make([]byte, 8), 0, 1)
	require.NoError(t, err)
	defer src.Release()

	sm, err := dataset.NewSampler(src, rand.New(rand.NewPCG(1, 1)))
	require.NoError(t, err)

	wrong, err := tensor.New(ctx, tensor.Dims{N: 2, H: 2, W: 2, C: 3}, tensor.Zeroed)
	require.NoError(t, err)
	defer wrong.Release()

	s, err := tensor.Begin(ctx)
	require.NoError(t, err)
	defer func() { require.NoError(t, s.End()) }()

	require.ErrorIs(t, sm.Next(s, wrong, 2), tensor.ErrShapeMismatch)
	assert.Zero(t, s.Ops())

	_, err = dataset.NewSampler(src, nil)
	require.ErrorIs(t, err, tensor.ErrState)
}
