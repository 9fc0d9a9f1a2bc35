package nn

import (
	"fmt"

	"github.com/born-ml/dcgan/internal/backend/cpu"
	"github.com/born-ml/dcgan/internal/tensor"
)

// Loss turns predictions and targets into a scalar loss and the gradient
// that starts a backward pass.
type Loss interface {
	// Forward submits the loss over the leading batch items of pred against
	// target and returns the gradient with respect to pred. The gradient
	// tensor is owned by the loss.
	Forward(s *tensor.Session, batch int, pred, target *tensor.Tensor) (*tensor.Tensor, error)

	// Value returns the scalar loss of the last Forward. It is valid once
	// the session that ran the Forward has ended.
	Value() float32

	// Release frees the gradient tensor.
	Release()
}

// LossKind selects a loss function.
type LossKind int

// Loss kinds.
const (
	MeanSquared LossKind = iota
	BinaryCrossEntropy
	// LogitCrossEntropy is binary cross-entropy on raw logits. The
	// prediction must not pass through a Logistic layer.
	LogitCrossEntropy
)

// String returns the loss name.
func (k LossKind) String() string {
	switch k {
	case MeanSquared:
		return "mse"
	case BinaryCrossEntropy:
		return "bce"
	case LogitCrossEntropy:
		return "bce-logits"
	default:
		return fmt.Sprintf("loss(%d)", int(k))
	}
}

// FromLogits reports whether the loss applies the logistic function
// itself.
func (k LossKind) FromLogits() bool {
	return k == LogitCrossEntropy
}

// NewLoss creates a loss of the given kind for predictions with dims.
func NewLoss(ctx tensor.Context, kind LossKind, dims tensor.Dims) (Loss, error) {
	switch kind {
	case MeanSquared:
		mse, err := NewMSE(ctx, dims)
		if err != nil {
			return nil, err
		}
		return mse, nil
	case BinaryCrossEntropy:
		bce, err := NewBCE(ctx, dims)
		if err != nil {
			return nil, err
		}
		return bce, nil
	case LogitCrossEntropy:
		bce, err := NewBCEWithLogits(ctx, dims)
		if err != nil {
			return nil, err
		}
		return bce, nil
	default:
		return nil, fmt.Errorf("loss: %w: unknown kind %d", ErrConfig, int(kind))
	}
}

// lossBase holds the gradient tensor and cached value of a loss.
type lossBase struct {
	name  string
	dims  tensor.Dims
	kern  cpu.Kernels
	dy    *tensor.Tensor
	value float32
}

func newLossBase(ctx tensor.Context, name string, dims tensor.Dims) (lossBase, error) {
	b := newBuilder(ctx, name)
	if err := dims.Validate(); err != nil {
		b.fail(err)
	}
	l := lossBase{name: name, dims: dims, kern: cpu.KernelsFor(ctx)}
	l.dy = b.tensor(dims)
	if err := b.finish(); err != nil {
		return lossBase{}, err
	}
	return l, nil
}

func (l *lossBase) check(s *tensor.Session, batch int, pred, target *tensor.Tensor) error {
	op := l.name + ".forward"
	if s == nil || !s.Open() {
		return fmt.Errorf("%s: %w: session is not open", op, tensor.ErrState)
	}
	if pred == nil || target == nil || pred.Released() || target.Released() {
		return fmt.Errorf("%s: %w: tensor is nil or released", op, tensor.ErrState)
	}
	if !pred.Dims().Equal(l.dims) {
		return tensor.Mismatch(op, l.dims, pred.Dims())
	}
	if !target.Dims().EqualItem(l.dims) {
		return tensor.Mismatch(op, l.dims.WithBatch(target.Dims().N), target.Dims())
	}
	if batch <= 0 || batch > l.dims.N || batch > target.Dims().N {
		return &tensor.ShapeError{Op: op, Got: target.Dims(), Detail: fmt.Sprintf("batch %d out of range", batch)}
	}
	return nil
}

// submit runs f over the leading batch items and caches sum/count as the value.
func (l *lossBase) submit(s *tensor.Session, batch int, pred, target *tensor.Tensor,
	f func(dy, y, t []float32) float64,
) (*tensor.Tensor, error) {
	if err := l.check(s, batch, pred, target); err != nil {
		return nil, err
	}

	dy := l.dy
	count := batch * l.dims.ItemLen()
	err := s.Submit(tensor.Op{
		Name:   l.name + ".forward",
		Hazard: true,
		Run: func() error {
			sum := f(itemSpan(dy, batch), itemSpan(pred, batch), itemSpan(target, batch))
			l.value = float32(sum / float64(count))
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return dy, nil
}

// Value returns the cached loss.
func (l *lossBase) Value() float32 {
	return l.value
}

// Release frees the gradient tensor.
func (l *lossBase) Release() {
	l.dy.Release()
}

// MSE computes Mean Squared Error loss.
//
//	Loss  = mean((Y - Yt)^2) over batch items and elements
//	dL/dY = Y - Yt
//
// The gradient omits the constant factor 2/count; it is the conventional
// "prediction minus target" signal that drives the backward pass.
//
// Example:
//
//	mse, err := nn.NewMSE(ctx, net.Out())
//	dy, err := mse.Forward(s, batch, y, target)
type MSE struct {
	lossBase
}

// NewMSE creates a new MSE loss for predictions with dims.
func NewMSE(ctx tensor.Context, dims tensor.Dims) (*MSE, error) {
	base, err := newLossBase(ctx, "mse", dims)
	if err != nil {
		return nil, err
	}
	return &MSE{base}, nil
}

// Forward submits the loss and returns dL/dY.
func (m *MSE) Forward(s *tensor.Session, batch int, pred, target *tensor.Tensor) (*tensor.Tensor, error) {
	return m.submit(s, batch, pred, target, m.kern.MSE)
}

// BCE computes binary cross-entropy for probabilities produced by a
// logistic activation.
//
//	Loss  = -mean(t*log(p) + (1-t)*log(1-p))
//	dL/dp = (p - t) / (p*(1-p))
//
// Propagated through the logistic derivative p*(1-p), the gradient reaching
// the pre-activation is p - t. Probabilities are clamped to [1e-7, 1-1e-7],
// so once a logit passes about ±16 the gradient vanishes; BCEWithLogits
// has no such limit.
type BCE struct {
	lossBase
}

// NewBCE creates a new binary cross-entropy loss for predictions with dims.
func NewBCE(ctx tensor.Context, dims tensor.Dims) (*BCE, error) {
	base, err := newLossBase(ctx, "bce", dims)
	if err != nil {
		return nil, err
	}
	return &BCE{base}, nil
}

// Forward submits the loss and returns dL/dp.
func (b *BCE) Forward(s *tensor.Session, batch int, pred, target *tensor.Tensor) (*tensor.Tensor, error) {
	return b.submit(s, batch, pred, target, b.kern.BCE)
}

// BCEWithLogits computes binary cross-entropy from logits, fusing the
// logistic function into the loss.
//
//	Loss  = mean(max(x,0) - x*t + log(1+exp(-|x|)))
//	dL/dx = sigmoid(x) - t
//
// The gradient stays p - t for any logit, including saturated ones.
type BCEWithLogits struct {
	lossBase
}

// NewBCEWithLogits creates a logit cross-entropy loss for predictions with
// dims.
func NewBCEWithLogits(ctx tensor.Context, dims tensor.Dims) (*BCEWithLogits, error) {
	base, err := newLossBase(ctx, "bce-logits", dims)
	if err != nil {
		return nil, err
	}
	return &BCEWithLogits{base}, nil
}

// Forward submits the loss and returns dL/dx.
func (b *BCEWithLogits) Forward(s *tensor.Session, batch int, pred, target *tensor.Tensor) (*tensor.Tensor, error) {
	return b.submit(s, batch, pred, target, b.kern.BCELogits)
}
