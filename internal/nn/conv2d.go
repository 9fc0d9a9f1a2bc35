package nn

import (
	"math/rand/v2"

	"github.com/born-ml/dcgan/internal/backend/cpu"
	"github.com/born-ml/dcgan/internal/tensor"
)

// Boundary selects how a convolution treats taps outside the input.
type Boundary = cpu.Boundary

// Boundary policies.
const (
	Clamp = cpu.Clamp // centred filter, clamp-to-edge (default)
	Zero  = cpu.Zero  // centred filter, out-of-range taps skipped
	Valid = cpu.Valid // uncentred filter, no taps outside the input
)

// ConvConfig configures a Conv or ConvTranspose layer.
type ConvConfig struct {
	Name     string      // Layer name (default "conv" or "convt")
	In       tensor.Dims // Input dimensions; N is the maximum batch
	Channels int         // Output channels (number of filters)
	Size     int         // Square filter size
	Stride   int         // Stride (default 1)
	Boundary Boundary    // Boundary policy (default Clamp)
	NoBias   bool        // Disable the bias term

	Init Initializer // Weight initializer (default Normal(0.02))
	Rand *rand.Rand  // Random source for Init; required
}

// Conv is a 2D convolutional layer over (n, h, w, c) tensors.
//
// Performs, per output element:
//
//	Y[n,yi,yj,f] = B[f] + sum X[n,xi,xj,xk] * W[f,fi,fj,xk]
//	xi = yi*stride + fi - size/2
//
// Weight dims: (Channels, Size, Size, In.C)
// Bias dims:   (1, 1, 1, Channels) or none
// Output dims: (In.N, ceil(H/stride), ceil(W/stride), Channels) for Clamp
// and Zero, ((H-size)/stride+1, ...) for Valid.
//
// Example:
//
//	conv, err := nn.NewConv(ctx, nn.ConvConfig{
//	    In: tensor.Dims{N: 64, H: 28, W: 28, C: 1}, Channels: 32,
//	    Size: 4, Stride: 2, Rand: rng,
//	})
type Conv struct {
	convolution
}

// ConvTranspose is a 2D transposed convolution (upsampling) layer.
//
// Its index mapping is the adjoint of Conv's:
//
//	Y[n,yi,yj,f] = B[f] + sum X[n,xi,xj,xk] * W[f,fi,fj,xk]
//	fi = yi - xi*stride + size/2
//
// Output dims: (In.N, H*stride, W*stride, Channels) for Clamp and Zero,
// ((H-1)*stride+size, ...) for Valid.
type ConvTranspose struct {
	convolution
}

type convolution struct {
	layer
	geom      cpu.ConvGeom
	transpose bool

	weight *Parameter
	bias   *Parameter // nil when NoBias
}

// NewConv creates a convolution layer.
//
// Returns an error wrapping ErrConfig for invalid geometry and
// tensor.ErrAllocation when storage cannot be acquired; nothing is left
// allocated on failure.
func NewConv(ctx tensor.Context, cfg ConvConfig) (*Conv, error) {
	c, err := newConvolution(ctx, cfg, false)
	if err != nil {
		return nil, err
	}
	return &Conv{c}, nil
}

// NewConvTranspose creates a transposed convolution layer.
func NewConvTranspose(ctx tensor.Context, cfg ConvConfig) (*ConvTranspose, error) {
	c, err := newConvolution(ctx, cfg, true)
	if err != nil {
		return nil, err
	}
	return &ConvTranspose{c}, nil
}

func newConvolution(ctx tensor.Context, cfg ConvConfig, transpose bool) (convolution, error) {
	if cfg.Name == "" {
		cfg.Name = "conv"
		if transpose {
			cfg.Name = "convt"
		}
	}
	if cfg.Stride == 0 {
		cfg.Stride = 1
	}
	if cfg.Init == nil {
		cfg.Init = Normal(0.02)
	}

	b := newBuilder(ctx, cfg.Name)
	in := cfg.In
	if err := in.Validate(); err != nil {
		b.fail(err)
	}
	if cfg.Channels <= 0 || cfg.Size <= 0 || cfg.Stride < 0 {
		b.failf("channels=%d size=%d stride=%d", cfg.Channels, cfg.Size, cfg.Stride)
	}
	if cfg.Rand == nil {
		b.failf("nil random source")
	}

	out := tensor.Dims{N: in.N, C: cfg.Channels}
	if transpose {
		out.H = cpu.ConvTransposeOutput(in.H, cfg.Size, cfg.Stride, cfg.Boundary)
		out.W = cpu.ConvTransposeOutput(in.W, cfg.Size, cfg.Stride, cfg.Boundary)
	} else {
		out.H = cpu.ConvOutput(in.H, cfg.Size, cfg.Stride, cfg.Boundary)
		out.W = cpu.ConvOutput(in.W, cfg.Size, cfg.Stride, cfg.Boundary)
	}
	if b.err == nil && (out.H <= 0 || out.W <= 0) {
		b.failf("filter %d does not fit input %v", cfg.Size, in)
	}

	c := convolution{
		layer: layer{name: cfg.Name, in: in, out: out},
		geom: cpu.ConvGeom{
			X: in, Y: out,
			Size: cfg.Size, Stride: cfg.Stride, Boundary: cfg.Boundary,
		},
		transpose: transpose,
	}

	// fan_in = in_channels * k * k, fan_out = out_channels * k * k
	area := cfg.Size * cfg.Size
	c.weight = b.param("weight", tensor.Dims{N: cfg.Channels, H: cfg.Size, W: cfg.Size, C: in.C},
		cfg.Init, cfg.Rand, in.C*area, cfg.Channels*area)
	if !cfg.NoBias {
		c.bias = b.param("bias", tensor.Dims{N: 1, H: 1, W: 1, C: cfg.Channels}, nil, nil, 0, 0)
	}
	c.alloc(b)

	if err := b.finish(); err != nil {
		return convolution{}, err
	}
	return c, nil
}

// Weight returns the filter parameter.
func (c *convolution) Weight() *Parameter {
	return c.weight
}

// Bias returns the bias parameter, or nil when the layer has none.
func (c *convolution) Bias() *Parameter {
	return c.bias
}

// Params returns the weight and, if present, the bias.
func (c *convolution) Params() []*Parameter {
	if c.bias == nil {
		return []*Parameter{c.weight}
	}
	return []*Parameter{c.weight, c.bias}
}

// Forward submits the convolution of x.
func (c *convolution) Forward(s *tensor.Session, p Pass, x *tensor.Tensor) (*tensor.Tensor, error) {
	if err := c.forward(s, p, x); err != nil {
		return nil, err
	}

	g := c.geom
	g.Batch = p.Batch
	y, w, bias := c.y, c.weight.Tensor(), c.bias

	err := s.Submit(tensor.Op{
		Name:   c.name + ".forward",
		Hazard: true,
		Run: func() error {
			var bd []float32
			if bias != nil {
				bd = bias.Tensor().Data()
			}
			if c.transpose {
				c.kern.ConvTransposeForward(y.Data(), x.Data(), w.Data(), bd, g)
			} else {
				c.kern.ConvForward(y.Data(), x.Data(), w.Data(), bd, g)
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return y, nil
}

// Backward submits the weight, bias and input gradients for dy.
//
// The weight-gradient op and the input-gradient op only read tensors
// completed before the pass, so they run concurrently.
func (c *convolution) Backward(s *tensor.Session, p Pass, dy *tensor.Tensor) (*tensor.Tensor, error) {
	if err := c.backward(s, p, dy); err != nil {
		return nil, err
	}

	g := c.geom
	g.Batch = p.Batch
	x, dx, w := c.x, c.dx, c.weight.Tensor()

	update := !p.Flags.Has(NoUpdate)
	if update {
		dw, bias := c.weight.Grad(), c.bias
		err := s.Submit(tensor.Op{
			Name:   c.name + ".backward.weights",
			Hazard: true,
			Run: func() error {
				var db []float32
				if bias != nil {
					db = bias.Grad().Data()
				}
				if c.transpose {
					c.kern.ConvTransposeBackwardWeights(dw.Data(), db, dy.Data(), x.Data(), g)
				} else {
					c.kern.ConvBackwardWeights(dw.Data(), db, dy.Data(), x.Data(), g)
				}
				return nil
			},
		})
		if err != nil {
			return nil, err
		}
	}

	err := s.Submit(tensor.Op{
		Name:   c.name + ".backward.input",
		Hazard: !update,
		Run: func() error {
			if c.transpose {
				c.kern.ConvTransposeBackwardInput(dx.Data(), dy.Data(), w.Data(), g)
			} else {
				c.kern.ConvBackwardInput(dx.Data(), dy.Data(), w.Data(), g)
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return dx, nil
}

// Release frees the layer's parameters and scratch tensors.
func (c *convolution) Release() {
	c.release()
	if c.bias != nil {
		c.bias.Release()
	}
	if c.weight != nil {
		c.weight.Release()
	}
}
