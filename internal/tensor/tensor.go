// Package tensor provides the 4-D tensor primitive, execution contexts and
// compute sessions for the dcgan engine.
package tensor

import (
	"fmt"
)

// Init selects how a new tensor's storage is initialized.
type Init int

const (
	// Zeroed fills both residencies with zeros.
	Zeroed Init = iota
	// Uninitialized leaves contents undefined until the first fill or copy.
	Uninitialized
)

// Residency selects one of a tensor's two storage copies.
type Residency int

const (
	// Host is directly readable and writable by the caller (staging).
	Host Residency = iota
	// Accel is used by kernels for batched arithmetic.
	Accel
)

// String returns the residency name.
func (r Residency) String() string {
	if r == Host {
		return "host"
	}
	return "accel"
}

// Tensor is a 4-D float32 array with host-visible and accelerated storage.
//
// Values are staged through the host copy (At, Set, Host) and moved to the
// accelerated copy with Copy inside a Session. Kernels read and write the
// accelerated copy via Data.
//
// Example:
//
//	ctx := cpu.New(cpu.Config{})
//	x, err := tensor.New(ctx, tensor.Dims{N: 8, H: 28, W: 28, C: 1}, tensor.Zeroed)
//	if err != nil {
//	    return err
//	}
//	defer x.Release()
//	x.Set(1.0, 0, 14, 14, 0)
type Tensor struct {
	dims  Dims
	host  []float32
	accel Buffer
	ctx   Context
	owner bool // false for views, which never release storage
	freed bool
}

// New creates a tensor with the given dimensions on ctx.
//
// Returns an error wrapping ErrShapeMismatch for invalid dimensions and
// ErrAllocation when the context cannot supply storage.
func New(ctx Context, dims Dims, init Init) (*Tensor, error) {
	if err := dims.Validate(); err != nil {
		return nil, err
	}

	accel, err := ctx.Alloc(dims.Len())
	if err != nil {
		return nil, fmt.Errorf("tensor %v: %w", dims, err)
	}

	t := &Tensor{
		dims:  dims,
		host:  make([]float32, dims.Len()),
		accel: accel,
		ctx:   ctx,
		owner: true,
	}

	if init == Zeroed {
		clear(accel.Float32())
	}

	return t, nil
}

// Dims returns the tensor dimensions.
func (t *Tensor) Dims() Dims {
	return t.dims
}

// Context returns the execution context that owns the accelerated storage.
func (t *Tensor) Context() Context {
	return t.ctx
}

// Released reports whether Release has been called.
func (t *Tensor) Released() bool {
	return t.freed
}

// Host returns the host-visible storage.
//
// WARNING: Modifications to the returned slice modify the tensor.
func (t *Tensor) Host() []float32 {
	return t.host
}

// Data returns the accelerated storage as seen by Go kernels.
// Only call it from inside a session op.
func (t *Tensor) Data() []float32 {
	return t.accel.Float32()[:t.dims.Len()]
}

// Buffer returns the accelerated storage.
func (t *Tensor) Buffer() Buffer {
	return t.accel
}

// At returns the host value at (n, i, j, k).
// Panics with a *ShapeError if the index is outside the extents.
func (t *Tensor) At(n, i, j, k int) float32 {
	if !t.dims.Contains(n, i, j, k) {
		panic(&ShapeError{Op: "at", Got: t.dims, Detail: fmt.Sprintf("index (%d,%d,%d,%d) out of bounds", n, i, j, k)})
	}
	return t.host[t.dims.Index(n, i, j, k)]
}

// Set stores value at host index (n, i, j, k).
// Panics with a *ShapeError if the index is outside the extents.
func (t *Tensor) Set(value float32, n, i, j, k int) {
	if !t.dims.Contains(n, i, j, k) {
		panic(&ShapeError{Op: "set", Got: t.dims, Detail: fmt.Sprintf("index (%d,%d,%d,%d) out of bounds", n, i, j, k)})
	}
	t.host[t.dims.Index(n, i, j, k)] = value
}

// View returns a tensor that relabels the same storage with new dimensions.
// The batch count must match and the per-item element count must be preserved.
// Releasing a view is a no-op; the original keeps ownership.
func (t *Tensor) View(dims Dims) (*Tensor, error) {
	if err := dims.Validate(); err != nil {
		return nil, err
	}
	if dims.N != t.dims.N || dims.ItemLen() != t.dims.ItemLen() {
		return nil, &ShapeError{Op: "view", Got: dims, Detail: fmt.Sprintf("incompatible with %v", t.dims)}
	}
	return &Tensor{
		dims:  dims,
		host:  t.host,
		accel: t.accel,
		ctx:   t.ctx,
		owner: false,
	}, nil
}

// Release frees both residencies. Calling Release twice is safe.
func (t *Tensor) Release() {
	if t == nil || t.freed {
		return
	}
	t.freed = true
	if t.owner {
		t.accel.Release()
	}
	t.host = nil
	t.accel = nil
}

// String returns a human-readable representation of the tensor.
func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor%v on %s", t.dims, t.ctx.Name())
}

func (t *Tensor) storage(r Residency) []float32 {
	if r == Host {
		return t.host
	}
	return t.Data()
}
