package cpu

import (
	"github.com/born-ml/dcgan/internal/tensor"
)

// Boundary selects how a convolution treats filter taps that fall outside
// the input.
type Boundary int

const (
	// Clamp centres the filter and replicates edge values for taps outside
	// the input (clamp-to-edge). Weight and input gradients skip those taps.
	Clamp Boundary = iota
	// Zero centres the filter and skips taps outside the input.
	Zero
	// Valid does not centre the filter; every tap is inside the input.
	Valid
)

// String returns the boundary name.
func (b Boundary) String() string {
	switch b {
	case Clamp:
		return "clamp"
	case Zero:
		return "zero"
	case Valid:
		return "valid"
	default:
		return "unknown"
	}
}

// ConvGeom describes one convolution or transposed convolution.
//
// For a convolution X is the input and Y the (smaller) output. For a
// transposed convolution X is the (smaller) input and Y the output; the
// index mapping is the adjoint of the convolution's, and out-of-range taps
// are skipped for both Clamp and Zero.
//
// Weights are laid out W[f, fi, fj, xk] with f indexing Y channels and xk
// indexing X channels.
type ConvGeom struct {
	X, Y     tensor.Dims
	Size     int
	Stride   int
	Boundary Boundary
	Batch    int // items to process; at most X.N
}

// Offset returns the filter centring offset.
func (g ConvGeom) Offset() int {
	if g.Boundary == Valid {
		return 0
	}
	return g.Size / 2
}

// ConvOutput returns the output spatial size of a convolution over n inputs.
//
//	Clamp, Zero: ceil(n / stride)
//	Valid:       (n - size) / stride + 1
func ConvOutput(n, size, stride int, b Boundary) int {
	if b == Valid {
		return (n-size)/stride + 1
	}
	return (n + stride - 1) / stride
}

// ConvTransposeOutput returns the output spatial size of a transposed
// convolution over n inputs.
//
//	Clamp, Zero: n * stride
//	Valid:       (n - 1) * stride + size
func ConvTransposeOutput(n, size, stride int, b Boundary) int {
	if b == Valid {
		return (n-1)*stride + size
	}
	return n * stride
}

func (g ConvGeom) widx(f, fi, fj, xk int) int {
	return ((f*g.Size+fi)*g.Size+fj)*g.X.C + xk
}

func clampIndex(v, n int) int {
	if v < 0 {
		return 0
	}
	if v >= n {
		return n - 1
	}
	return v
}

// ConvForward computes
//
//	Y[n,yi,yj,f] = B[f] + sum X[n,xi,xj,xk] * W[f,fi,fj,xk]
//
// with xi = yi*stride + fi - offset (likewise xj). Out-of-range taps are
// clamped to the edge (Clamp) or skipped (Zero). b may be nil.
func (k Kernels) ConvForward(y, x, w, b []float32, g ConvGeom) {
	off := g.Offset()
	cin := g.X.C

	k.forRows(g.Batch, g.Y.H, func(n, yi int) {
		for yj := 0; yj < g.Y.W; yj++ {
			out := y[g.Y.Index(n, yi, yj, 0):]
			for f := 0; f < g.Y.C; f++ {
				var sum float32
				if b != nil {
					sum = b[f]
				}
				for fi := 0; fi < g.Size; fi++ {
					xi := yi*g.Stride + fi - off
					if xi < 0 || xi >= g.X.H {
						if g.Boundary != Clamp {
							continue
						}
						xi = clampIndex(xi, g.X.H)
					}
					for fj := 0; fj < g.Size; fj++ {
						xj := yj*g.Stride + fj - off
						if xj < 0 || xj >= g.X.W {
							if g.Boundary != Clamp {
								continue
							}
							xj = clampIndex(xj, g.X.W)
						}
						xs := x[g.X.Index(n, xi, xj, 0):][:cin]
						ws := w[g.widx(f, fi, fj, 0):][:cin]
						for xk, xv := range xs {
							sum += xv * ws[xk]
						}
					}
				}
				out[f] = sum
			}
		}
	})
}

// ConvBackwardWeights computes the filter and bias gradients of ConvForward.
//
//	dW[f,fi,fj,xk] = sum dY[n,yi,yj,f] * X[n,xi,xj,xk]   (in-range taps only)
//	dB[f]          = sum dY[n,yi,yj,f]
//
// Taps that ConvForward clamped are excluded: clamping is a forward-only
// boundary policy. db may be nil.
func (k Kernels) ConvBackwardWeights(dw, db, dy, x []float32, g ConvGeom) {
	off := g.Offset()
	cin := g.X.C
	perFilter := g.Size * g.Size * cin

	k.forEach(g.Y.C, func(f int) {
		dwf := dw[f*perFilter : (f+1)*perFilter]
		clear(dwf)
		var bias float32

		for n := 0; n < g.Batch; n++ {
			for yi := 0; yi < g.Y.H; yi++ {
				for yj := 0; yj < g.Y.W; yj++ {
					d := dy[g.Y.Index(n, yi, yj, f)]
					bias += d
					if d == 0 {
						continue
					}
					for fi := 0; fi < g.Size; fi++ {
						xi := yi*g.Stride + fi - off
						if xi < 0 || xi >= g.X.H {
							continue
						}
						for fj := 0; fj < g.Size; fj++ {
							xj := yj*g.Stride + fj - off
							if xj < 0 || xj >= g.X.W {
								continue
							}
							xs := x[g.X.Index(n, xi, xj, 0):][:cin]
							ws := dwf[(fi*g.Size+fj)*cin:][:cin]
							for xk, xv := range xs {
								ws[xk] += d * xv
							}
						}
					}
				}
			}
		}

		if db != nil {
			db[f] = bias
		}
	})
}

// ConvBackwardInput computes the input gradient of ConvForward:
//
//	dX[n,xi,xj,xk] = sum dY[n,yi,yj,f] * W[f,fi,fj,xk]
//
// over filters and offsets whose implied yi = (xi - fi + offset) / stride is
// an integer inside the output (likewise yj).
func (k Kernels) ConvBackwardInput(dx, dy, w []float32, g ConvGeom) {
	off := g.Offset()
	cin := g.X.C

	k.forRows(g.Batch, g.X.H, func(n, xi int) {
		for xj := 0; xj < g.X.W; xj++ {
			acc := dx[g.X.Index(n, xi, xj, 0):][:cin]
			clear(acc)
			for fi := 0; fi < g.Size; fi++ {
				yi, ok := strided(xi-fi+off, g.Stride, g.Y.H)
				if !ok {
					continue
				}
				for fj := 0; fj < g.Size; fj++ {
					yj, ok := strided(xj-fj+off, g.Stride, g.Y.W)
					if !ok {
						continue
					}
					ds := dy[g.Y.Index(n, yi, yj, 0):][:g.Y.C]
					for f, d := range ds {
						if d == 0 {
							continue
						}
						ws := w[g.widx(f, fi, fj, 0):][:cin]
						for xk := range acc {
							acc[xk] += d * ws[xk]
						}
					}
				}
			}
		}
	})
}

// ConvTransposeForward computes the adjoint mapping of ConvForward:
//
//	Y[n,yi,yj,f] = B[f] + sum X[n,xi,xj,xk] * W[f,fi,fj,xk]
//
// over input positions with fi = yi - xi*stride + offset in [0, size).
// b may be nil.
func (k Kernels) ConvTransposeForward(y, x, w, b []float32, g ConvGeom) {
	off := g.Offset()
	cin := g.X.C

	k.forRows(g.Batch, g.Y.H, func(n, yi int) {
		for yj := 0; yj < g.Y.W; yj++ {
			out := y[g.Y.Index(n, yi, yj, 0):][:g.Y.C]
			for f := range out {
				if b != nil {
					out[f] = b[f]
				} else {
					out[f] = 0
				}
			}
			for fi := 0; fi < g.Size; fi++ {
				xi, ok := strided(yi-fi+off, g.Stride, g.X.H)
				if !ok {
					continue
				}
				for fj := 0; fj < g.Size; fj++ {
					xj, ok := strided(yj-fj+off, g.Stride, g.X.W)
					if !ok {
						continue
					}
					xs := x[g.X.Index(n, xi, xj, 0):][:cin]
					for f := range out {
						ws := w[g.widx(f, fi, fj, 0):][:cin]
						var sum float32
						for xk, xv := range xs {
							sum += xv * ws[xk]
						}
						out[f] += sum
					}
				}
			}
		}
	})
}

// ConvTransposeBackwardWeights computes the filter and bias gradients of
// ConvTransposeForward:
//
//	dW[f,fi,fj,xk] = sum dY[n,xi*s+fi-off,xj*s+fj-off,f] * X[n,xi,xj,xk]
//	dB[f]          = sum dY[n,yi,yj,f]
//
// db may be nil.
func (k Kernels) ConvTransposeBackwardWeights(dw, db, dy, x []float32, g ConvGeom) {
	off := g.Offset()
	cin := g.X.C
	perFilter := g.Size * g.Size * cin

	k.forEach(g.Y.C, func(f int) {
		dwf := dw[f*perFilter : (f+1)*perFilter]
		clear(dwf)

		for n := 0; n < g.Batch; n++ {
			for xi := 0; xi < g.X.H; xi++ {
				for xj := 0; xj < g.X.W; xj++ {
					xs := x[g.X.Index(n, xi, xj, 0):][:cin]
					for fi := 0; fi < g.Size; fi++ {
						yi := xi*g.Stride + fi - off
						if yi < 0 || yi >= g.Y.H {
							continue
						}
						for fj := 0; fj < g.Size; fj++ {
							yj := xj*g.Stride + fj - off
							if yj < 0 || yj >= g.Y.W {
								continue
							}
							d := dy[g.Y.Index(n, yi, yj, f)]
							if d == 0 {
								continue
							}
							ws := dwf[(fi*g.Size+fj)*cin:][:cin]
							for xk, xv := range xs {
								ws[xk] += d * xv
							}
						}
					}
				}
			}
		}

		if db != nil {
			var bias float32
			for n := 0; n < g.Batch; n++ {
				for p := 0; p < g.Y.H*g.Y.W; p++ {
					bias += dy[(n*g.Y.H*g.Y.W+p)*g.Y.C+f]
				}
			}
			db[f] = bias
		}
	})
}

// ConvTransposeBackwardInput computes the input gradient of
// ConvTransposeForward:
//
//	dX[n,xi,xj,xk] = sum dY[n,xi*s+fi-off,xj*s+fj-off,f] * W[f,fi,fj,xk]
//
// over filters and offsets whose output coordinate is in range.
func (k Kernels) ConvTransposeBackwardInput(dx, dy, w []float32, g ConvGeom) {
	off := g.Offset()
	cin := g.X.C

	k.forRows(g.Batch, g.X.H, func(n, xi int) {
		for xj := 0; xj < g.X.W; xj++ {
			acc := dx[g.X.Index(n, xi, xj, 0):][:cin]
			clear(acc)
			for fi := 0; fi < g.Size; fi++ {
				yi := xi*g.Stride + fi - off
				if yi < 0 || yi >= g.Y.H {
					continue
				}
				for fj := 0; fj < g.Size; fj++ {
					yj := xj*g.Stride + fj - off
					if yj < 0 || yj >= g.Y.W {
						continue
					}
					ds := dy[g.Y.Index(n, yi, yj, 0):][:g.Y.C]
					for f, d := range ds {
						if d == 0 {
							continue
						}
						ws := w[g.widx(f, fi, fj, 0):][:cin]
						for xk := range acc {
							acc[xk] += d * ws[xk]
						}
					}
				}
			}
		}
	})
}

// strided maps a pre-division coordinate t to t/stride when t is a
// non-negative multiple of stride below limit.
func strided(t, stride, limit int) (int, bool) {
	if t < 0 || t%stride != 0 {
		return 0, false
	}
	v := t / stride
	return v, v < limit
}
