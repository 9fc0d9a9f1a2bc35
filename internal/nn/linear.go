package nn

import (
	"math/rand/v2"

	"github.com/born-ml/dcgan/internal/backend/cpu"
	"github.com/born-ml/dcgan/internal/tensor"
)

// DenseConfig configures a Dense layer.
type DenseConfig struct {
	Name   string      // Layer name (default "dense")
	In     tensor.Dims // Input dimensions; H and W must be 1
	Units  int         // Output channels
	NoBias bool        // Disable the bias term

	Init Initializer // Weight initializer (default Xavier())
	Rand *rand.Rand  // Random source for Init; required
}

// Dense implements a fully connected layer on tensors whose spatial dims are
// collapsed to 1x1.
//
// Performs the transformation:
//
//	Y[n,0,0,o] = sum_k X[n,0,0,k]*W[o,0,0,k] + B[o]
//
// where W has dims (Units, 1, 1, In.C) and B has dims (1, 1, 1, Units).
// Weights are initialized using Xavier/Glorot initialization unless another
// initializer is given. Biases are initialized to zeros.
//
// Use a Reshape layer to flatten or unflatten spatial tensors around it.
type Dense struct {
	layer
	geom   cpu.DenseGeom
	weight *Parameter
	bias   *Parameter
}

// NewDense creates a new Dense layer.
func NewDense(ctx tensor.Context, cfg DenseConfig) (*Dense, error) {
	if cfg.Name == "" {
		cfg.Name = "dense"
	}
	if cfg.Init == nil {
		cfg.Init = Xavier()
	}

	b := newBuilder(ctx, cfg.Name)
	if err := cfg.In.Validate(); err != nil {
		b.fail(err)
	}
	if cfg.In.H != 1 || cfg.In.W != 1 {
		b.fail(&tensor.ShapeError{Op: "dense", Got: cfg.In, Detail: "spatial dims must be 1x1"})
	}
	if cfg.Units <= 0 {
		b.failf("units=%d", cfg.Units)
	}
	if cfg.Rand == nil {
		b.failf("nil random source")
	}

	out := tensor.Dims{N: cfg.In.N, H: 1, W: 1, C: cfg.Units}
	d := &Dense{
		layer: layer{name: cfg.Name, in: cfg.In, out: out},
		geom:  cpu.DenseGeom{In: cfg.In.C, Out: cfg.Units},
	}

	d.weight = b.param("weight", tensor.Dims{N: cfg.Units, H: 1, W: 1, C: cfg.In.C},
		cfg.Init, cfg.Rand, cfg.In.C, cfg.Units)
	if !cfg.NoBias {
		d.bias = b.param("bias", tensor.Dims{N: 1, H: 1, W: 1, C: cfg.Units}, nil, nil, 0, 0)
	}
	d.alloc(b)

	if err := b.finish(); err != nil {
		return nil, err
	}
	return d, nil
}

// Weight returns the weight parameter.
func (d *Dense) Weight() *Parameter {
	return d.weight
}

// Bias returns the bias parameter, or nil.
func (d *Dense) Bias() *Parameter {
	return d.bias
}

// Params returns the weight and, if present, the bias.
func (d *Dense) Params() []*Parameter {
	if d.bias == nil {
		return []*Parameter{d.weight}
	}
	return []*Parameter{d.weight, d.bias}
}

// Forward submits Y = X*W^T + B.
func (d *Dense) Forward(s *tensor.Session, p Pass, x *tensor.Tensor) (*tensor.Tensor, error) {
	if err := d.forward(s, p, x); err != nil {
		return nil, err
	}

	g := d.geom
	g.Batch = p.Batch
	y, w, bias := d.y, d.weight.Tensor(), d.bias

	err := s.Submit(tensor.Op{
		Name:   d.name + ".forward",
		Hazard: true,
		Run: func() error {
			var bd []float32
			if bias != nil {
				bd = bias.Tensor().Data()
			}
			d.kern.DenseForward(y.Data(), x.Data(), w.Data(), bd, g)
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return y, nil
}

// Backward submits the weight, bias and input gradients.
func (d *Dense) Backward(s *tensor.Session, p Pass, dy *tensor.Tensor) (*tensor.Tensor, error) {
	if err := d.backward(s, p, dy); err != nil {
		return nil, err
	}

	g := d.geom
	g.Batch = p.Batch
	x, dx, w := d.x, d.dx, d.weight.Tensor()

	update := !p.Flags.Has(NoUpdate)
	if update {
		dw, bias := d.weight.Grad(), d.bias
		err := s.Submit(tensor.Op{
			Name:   d.name + ".backward.weights",
			Hazard: true,
			Run: func() error {
				var db []float32
				if bias != nil {
					db = bias.Grad().Data()
				}
				d.kern.DenseBackwardWeights(dw.Data(), db, dy.Data(), x.Data(), g)
				return nil
			},
		})
		if err != nil {
			return nil, err
		}
	}

	err := s.Submit(tensor.Op{
		Name:   d.name + ".backward.input",
		Hazard: !update,
		Run: func() error {
			d.kern.DenseBackwardInput(dx.Data(), dy.Data(), w.Data(), g)
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return dx, nil
}

// Release frees the layer's parameters and scratch tensors.
func (d *Dense) Release() {
	d.release()
	if d.bias != nil {
		d.bias.Release()
	}
	if d.weight != nil {
		d.weight.Release()
	}
}
