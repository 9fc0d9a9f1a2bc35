package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/dcgan/internal/tensor"
)

func TestContext_Alloc(t *testing.T) {
	ctx := New(Config{})

	assert.Equal(t, "CPU", ctx.Name())
	assert.Equal(t, tensor.CPU, ctx.Device())

	buf, err := ctx.Alloc(16)
	require.NoError(t, err)
	assert.Equal(t, 16, buf.Len())
	assert.Len(t, buf.Float32(), 16)

	stats := ctx.MemoryStats()
	assert.Equal(t, uint64(64), stats.LiveBytes)
	assert.Equal(t, int64(1), stats.LiveBuffers)

	buf.Release()
	buf.Release()

	stats = ctx.MemoryStats()
	assert.Equal(t, uint64(0), stats.LiveBytes)
	assert.Equal(t, int64(0), stats.LiveBuffers)
	assert.Equal(t, uint64(64), stats.PeakBytes)
	assert.Equal(t, uint64(1), stats.Allocations)
}

func TestContext_MaxBytes(t *testing.T) {
	ctx := New(Config{MaxBytes: 100})

	a, err := ctx.Alloc(20)
	require.NoError(t, err)

	_, err = ctx.Alloc(10)
	require.ErrorIs(t, err, tensor.ErrAllocation)

	a.Release()
	b, err := ctx.Alloc(25)
	require.NoError(t, err)
	b.Release()
}

func TestContext_InvalidAlloc(t *testing.T) {
	_, err := New(Config{}).Alloc(0)
	require.ErrorIs(t, err, tensor.ErrAllocation)
}

func TestKernelsFor(t *testing.T) {
	ctx := New(Config{})
	assert.Equal(t, ctx.Kernels(), KernelsFor(ctx))
}
