package tensor

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_HazardOrdersAfterPriorOps(t *testing.T) {
	s := begin(t, NewMockContext())

	var written atomic.Int32
	require.NoError(t, s.Submit(Op{Name: "slow.write", Run: func() error {
		time.Sleep(20 * time.Millisecond)
		written.Store(1)
		return nil
	}}))

	var seen int32
	require.NoError(t, s.Submit(Op{Name: "read", Hazard: true, Run: func() error {
		seen = written.Load()
		return nil
	}}))
	require.NoError(t, s.End())

	assert.Equal(t, int32(1), seen)
	assert.Equal(t, 2, s.Ops())
}

func TestSession_IndependentOpsOverlap(t *testing.T) {
	s := begin(t, NewMockContext())

	// Each op waits for the other to start; this only completes if they overlap.
	a, b := make(chan struct{}), make(chan struct{})
	require.NoError(t, s.Submit(Op{Name: "a", Run: func() error {
		close(a)
		<-b
		return nil
	}}))
	require.NoError(t, s.Submit(Op{Name: "b", Run: func() error {
		close(b)
		<-a
		return nil
	}}))
	require.NoError(t, s.End())
}

func TestSession_EndSyncsContext(t *testing.T) {
	ctx := NewMockContext()
	s := begin(t, ctx)
	require.NoError(t, s.End())

	assert.Equal(t, 1, ctx.Syncs())
	assert.False(t, s.Open())
}

func TestSession_ClosedSession(t *testing.T) {
	s := begin(t, NewMockContext())
	require.NoError(t, s.End())

	err := s.Submit(Op{Name: "late", Run: func() error { return nil }})
	require.ErrorIs(t, err, ErrState)

	require.ErrorIs(t, s.End(), ErrState)
}

func TestSession_FailureAbortsStep(t *testing.T) {
	s := begin(t, NewMockContext())
	boom := errors.New("boom")

	require.NoError(t, s.Submit(Op{Name: "bad", Run: func() error { return boom }}))

	var ran bool
	err := s.Submit(Op{Name: "after", Hazard: true, Run: func() error {
		ran = true
		return nil
	}})
	require.ErrorIs(t, err, boom)

	err = s.End()
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "bad")
	assert.False(t, ran)
}

func TestSession_PanicBecomesError(t *testing.T) {
	s := begin(t, NewMockContext())

	require.NoError(t, s.Submit(Op{Name: "kernel", Run: func() error {
		panic(Mismatch("kernel", Dims{N: 1, H: 1, W: 1, C: 1}, Dims{N: 1, H: 2, W: 1, C: 1}))
	}}))

	err := s.End()
	require.ErrorIs(t, err, ErrShapeMismatch)
}

func TestSession_NilRun(t *testing.T) {
	s := begin(t, NewMockContext())
	require.ErrorIs(t, s.Submit(Op{Name: "empty"}), ErrState)
	require.NoError(t, s.End())
}

func TestBegin_NilContext(t *testing.T) {
	_, err := Begin(nil)
	require.ErrorIs(t, err, ErrState)
}
