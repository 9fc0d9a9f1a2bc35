// Package dataset supplies training images as one fixed-shape tensor and
// samples batches from it.
//
// A Source holds every sample in the host residency of a single
// (count, H, W, C) tensor, normalised to a value range declared by the
// caller. A Sampler draws batches by index and stages them to accelerated
// storage inside a session.
package dataset

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/born-ml/dcgan/internal/tensor"
)

// ErrFormat is returned when input data cannot be decoded.
var ErrFormat = errors.New("dataset: invalid format")

// Source is a set of samples of identical shape.
type Source struct {
	t      *tensor.Tensor
	lo, hi float32
}

// FromBytes creates a source from 8-bit pixels laid out item by item in
// H, W, C order. Pixel 0 maps to lo and 255 to hi.
func FromBytes(ctx tensor.Context, dims tensor.Dims, pixels []byte, lo, hi float32) (*Source, error) {
	if err := dims.Validate(); err != nil {
		return nil, err
	}
	if len(pixels) != dims.Len() {
		return nil, &tensor.ShapeError{Op: "dataset", Want: dims, Detail: fmt.Sprintf("%d pixels", len(pixels))}
	}
	if !(lo < hi) {
		return nil, fmt.Errorf("%w: range [%v,%v] is empty", ErrFormat, lo, hi)
	}

	t, err := tensor.New(ctx, dims, tensor.Zeroed)
	if err != nil {
		return nil, fmt.Errorf("dataset: %w", err)
	}
	host := t.Host()
	for i, p := range pixels {
		host[i] = lo + (hi-lo)*float32(p)/255
	}
	return &Source{t: t, lo: lo, hi: hi}, nil
}

// Synthetic creates count single-channel h×w images of filled discs with
// random centres and radii, normalised to [lo,hi]. It is a stand-in for a
// real dataset when none is available.
func Synthetic(ctx tensor.Context, count, h, w int, rng *rand.Rand, lo, hi float32) (*Source, error) {
	if rng == nil {
		return nil, fmt.Errorf("dataset: %w: nil random source", tensor.ErrState)
	}
	dims := tensor.Dims{N: count, H: h, W: w, C: 1}
	if err := dims.Validate(); err != nil {
		return nil, err
	}

	pixels := make([]byte, dims.Len())
	minSide := float64(min(h, w))
	for n := range count {
		r := minSide * (0.15 + 0.2*rng.Float64())
		cy := r + (float64(h)-2*r)*rng.Float64()
		cx := r + (float64(w)-2*r)*rng.Float64()
		img := pixels[n*h*w : (n+1)*h*w]
		for i := range h {
			for j := range w {
				d := math.Hypot(float64(i)+0.5-cy, float64(j)+0.5-cx)
				// One pixel of anti-aliasing at the rim.
				v := math.Max(0, math.Min(1, r-d+0.5))
				img[i*w+j] = byte(math.Round(v * 255))
			}
		}
	}
	return FromBytes(ctx, dims, pixels, lo, hi)
}

// Tensor returns the sample tensor. Values live in the host residency.
func (s *Source) Tensor() *tensor.Tensor {
	return s.t
}

// Dims returns the (count, H, W, C) dimensions.
func (s *Source) Dims() tensor.Dims {
	return s.t.Dims()
}

// Len returns the number of samples.
func (s *Source) Len() int {
	return s.t.Dims().N
}

// Range returns the declared value range.
func (s *Source) Range() (lo, hi float32) {
	return s.lo, s.hi
}

// Release frees the sample tensor.
func (s *Source) Release() {
	s.t.Release()
}
