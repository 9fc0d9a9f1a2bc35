// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/dcgan/internal/tensor"
)

// Type aliases for public API

// Dims holds the (N, H, W, C) dimensions of a tensor.
type Dims = tensor.Dims

// Tensor is a 4-D float32 array with host and accelerated storage.
type Tensor = tensor.Tensor

// Init selects how new tensor storage is initialized.
type Init = tensor.Init

// Initialization modes.
const (
	Zeroed        Init = tensor.Zeroed
	Uninitialized Init = tensor.Uninitialized
)

// Residency selects the host or accelerated copy of a tensor.
type Residency = tensor.Residency

// Residencies.
const (
	Host  Residency = tensor.Host
	Accel Residency = tensor.Accel
)

// Device identifies where a context keeps accelerated storage.
type Device = tensor.Device

// Device constants.
const (
	CPU    Device = tensor.CPU
	WebGPU Device = tensor.WebGPU
)

// Context allocates accelerated storage and completes device work.
// Implementations live in backend/cpu and backend/webgpu.
type Context = tensor.Context

// Session groups submitted operations and joins them on End.
type Session = tensor.Session

// Op is one unit of work submitted to a Session.
type Op = tensor.Op

// Span is a contiguous run of items in one residency of a tensor.
type Span = tensor.Span

// ShapeError describes a dimension mismatch. It unwraps to ErrShapeMismatch.
type ShapeError = tensor.ShapeError

// Errors.
var (
	ErrShapeMismatch = tensor.ErrShapeMismatch
	ErrState         = tensor.ErrState
	ErrAllocation    = tensor.ErrAllocation
)

// New allocates a tensor with the given dims on ctx.
func New(ctx Context, dims Dims, init Init) (*Tensor, error) {
	return tensor.New(ctx, dims, init)
}

// Begin opens a session on ctx.
func Begin(ctx Context) (*Session, error) {
	return tensor.Begin(ctx)
}

// Fill submits an operation setting every value of dst to v.
func Fill(s *Session, dst Span, v float32) error {
	return tensor.Fill(s, dst, v)
}

// Copy submits an operation copying src into dst.
func Copy(s *Session, dst, src Span) error {
	return tensor.Copy(s, dst, src)
}

// Upload copies the host values of t to its accelerated storage.
func Upload(s *Session, t *Tensor) error {
	return tensor.Upload(s, t)
}

// Download copies the accelerated values of t to its host storage.
func Download(s *Session, t *Tensor) error {
	return tensor.Download(s, t)
}
