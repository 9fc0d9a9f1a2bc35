package optim

import (
	"github.com/born-ml/dcgan/internal/backend/cpu"
	"github.com/born-ml/dcgan/internal/nn"
	"github.com/born-ml/dcgan/internal/tensor"
)

// Config holds Adam hyperparameters. Zero fields take the defaults of
// DefaultConfig.
type Config struct {
	LR    float32 `json:"lr"`    // Learning rate (default: 0.0002)
	Beta1 float32 `json:"beta1"` // First moment decay (default: 0.5)
	Beta2 float32 `json:"beta2"` // Second moment decay (default: 0.999)
	Eps   float32 `json:"eps"`   // Denominator term (default: 1e-8)
}

// DefaultConfig returns the hyperparameters used for both adversarial
// networks.
func DefaultConfig() Config {
	return Config{LR: 0.0002, Beta1: 0.5, Beta2: 0.999, Eps: 1e-8}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.LR == 0 {
		c.LR = d.LR
	}
	if c.Beta1 == 0 {
		c.Beta1 = d.Beta1
	}
	if c.Beta2 == 0 {
		c.Beta2 = d.Beta2
	}
	if c.Eps == 0 {
		c.Eps = d.Eps
	}
	return c
}

// State is the resumable part of an Adam optimizer.
type State struct {
	Step int     `json:"step"`
	Pow1 float64 `json:"pow1"` // beta1^step
	Pow2 float64 `json:"pow2"` // beta2^step
}

// Adam implements the Adam (Adaptive Moment Estimation) optimizer.
//
// Update rule, per element, with the shared step t:
//
//	m = beta1*m + (1-beta1)*g
//	v = beta2*v + (1-beta2)*g^2
//	m_hat = m / (1 - beta1^t)
//	v_hat = v / (1 - beta2^t)
//	w = w - lr * m_hat / (sqrt(v_hat) + eps)
//
// The powers beta1^t and beta2^t are multiplied in once per Advance rather
// than recomputed. The moments live in each parameter's M and V tensors.
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014)
//
// Example:
//
//	opt := optim.NewAdam(optim.Config{})
//	opt.Advance()
//	err := opt.Apply(s, layer.Params()[0])
type Adam struct {
	cfg        Config
	t          int
	pow1, pow2 float64 // beta1^t, beta2^t
}

// NewAdam creates a new Adam optimizer at step 0.
func NewAdam(cfg Config) *Adam {
	return &Adam{cfg: cfg.withDefaults(), pow1: 1, pow2: 1}
}

// Config returns the effective hyperparameters.
func (a *Adam) Config() Config {
	return a.cfg
}

// LR returns the learning rate.
func (a *Adam) LR() float32 {
	return a.cfg.LR
}

// Step returns the shared step counter.
func (a *Adam) Step() int {
	return a.t
}

// Advance increments the step and the bias-correction powers.
func (a *Adam) Advance() {
	a.t++
	a.pow1 *= float64(a.cfg.Beta1)
	a.pow2 *= float64(a.cfg.Beta2)
}

// State returns the step counter and bias-correction powers.
func (a *Adam) State() State {
	return State{Step: a.t, Pow1: a.pow1, Pow2: a.pow2}
}

// SetState restores a state returned by State.
func (a *Adam) SetState(st State) {
	a.t, a.pow1, a.pow2 = st.Step, st.Pow1, st.Pow2
}

// Apply submits the Adam update of p. Contexts implementing
// tensor.AdamKernel run it on the device; otherwise the Go kernel runs on
// the accelerated slices.
func (a *Adam) Apply(s *tensor.Session, p *nn.Parameter) error {
	if err := checkApply("adam", a.t, s, p); err != nil {
		return err
	}

	h := cpu.AdamStep{
		LR:    a.cfg.LR,
		Beta1: a.cfg.Beta1,
		Beta2: a.cfg.Beta2,
		Eps:   a.cfg.Eps,
		BC1:   float32(1 - a.pow1),
		BC2:   float32(1 - a.pow2),
	}
	w, g := p.Tensor(), p.Grad()
	m, v := p.Moments()

	run := func() error {
		cpu.KernelsFor(s.Context()).AdamUpdate(w.Data(), g.Data(), m.Data(), v.Data(), h)
		return nil
	}
	if k, ok := s.Context().(tensor.AdamKernel); ok {
		run = func() error {
			return k.AdamUpdate(w.Buffer(), g.Buffer(), m.Buffer(), v.Buffer(),
				h.LR, h.Beta1, h.Beta2, h.Eps, h.BC1, h.BC2)
		}
	}

	return s.Submit(tensor.Op{Name: p.Name() + ".adam", Hazard: true, Run: run})
}
