// Package export turns tensor contents into images.
//
// Every function reads the host residency only; callers download the
// tensor inside a session first.
package export

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"github.com/born-ml/dcgan/internal/tensor"
)

// Image returns one channel of one batch item as a grayscale image. Values
// are mapped linearly from [lo,hi] to [0,255] and clamped.
func Image(t *tensor.Tensor, item, channel int, lo, hi float32) (*image.Gray, error) {
	if err := check(t, item, channel, lo, hi); err != nil {
		return nil, err
	}
	d := t.Dims()
	img := image.NewGray(image.Rect(0, 0, d.W, d.H))
	for i := range d.H {
		for j := range d.W {
			img.Pix[i*img.Stride+j] = level(t.At(item, i, j, channel), lo, hi)
		}
	}
	return img, nil
}

// Color returns a three-channel batch item as an RGBA image.
func Color(t *tensor.Tensor, item int, lo, hi float32) (*image.RGBA, error) {
	if err := check(t, item, 0, lo, hi); err != nil {
		return nil, err
	}
	d := t.Dims()
	if d.C != 3 {
		return nil, &tensor.ShapeError{Op: "export", Got: d, Detail: "color export needs 3 channels"}
	}
	img := image.NewRGBA(image.Rect(0, 0, d.W, d.H))
	for i := range d.H {
		for j := range d.W {
			img.SetRGBA(j, i, color.RGBA{
				R: level(t.At(item, i, j, 0), lo, hi),
				G: level(t.At(item, i, j, 1), lo, hi),
				B: level(t.At(item, i, j, 2), lo, hi),
				A: 255,
			})
		}
	}
	return img, nil
}

// Grid tiles the first count items of one channel into a grid with cols
// columns and a one-pixel black border between tiles.
func Grid(t *tensor.Tensor, count, cols, channel int, lo, hi float32) (*image.Gray, error) {
	d := t.Dims()
	if count <= 0 || count > d.N || cols <= 0 {
		return nil, &tensor.ShapeError{Op: "export: grid", Got: d, Detail: fmt.Sprintf("%d items in %d columns", count, cols)}
	}
	rows := (count + cols - 1) / cols
	cols = min(cols, count)

	grid := image.NewGray(image.Rect(0, 0, cols*(d.W+1)-1, rows*(d.H+1)-1))
	for n := range count {
		tile, err := Image(t, n, channel, lo, hi)
		if err != nil {
			return nil, err
		}
		x0, y0 := (n%cols)*(d.W+1), (n/cols)*(d.H+1)
		for i := range d.H {
			copy(grid.Pix[(y0+i)*grid.Stride+x0:], tile.Pix[i*tile.Stride:i*tile.Stride+d.W])
		}
	}
	return grid, nil
}

// WritePNG encodes img to path.
func WritePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("export: encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return nil
}

func check(t *tensor.Tensor, item, channel int, lo, hi float32) error {
	if t == nil || t.Released() {
		return fmt.Errorf("export: %w: tensor is nil or released", tensor.ErrState)
	}
	d := t.Dims()
	if item < 0 || item >= d.N || channel < 0 || channel >= d.C {
		return &tensor.ShapeError{Op: "export", Got: d, Detail: fmt.Sprintf("item %d channel %d out of range", item, channel)}
	}
	if !(lo < hi) {
		return fmt.Errorf("export: %w: range [%v,%v] is empty", tensor.ErrState, lo, hi)
	}
	return nil
}

func level(v, lo, hi float32) uint8 {
	x := (v - lo) / (hi - lo) * 255
	switch {
	case x <= 0:
		return 0
	case x >= 255:
		return 255
	default:
		return uint8(x + 0.5)
	}
}
