package dataset

import (
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/dcgan/internal/tensor"
)

// Sampler draws batches from a source by uniform random index, with
// replacement.
type Sampler struct {
	src *Source
	rng *rand.Rand
	idx []int
}

// NewSampler creates a sampler over src driven by rng.
func NewSampler(src *Source, rng *rand.Rand) (*Sampler, error) {
	if src == nil || rng == nil {
		return nil, fmt.Errorf("dataset: %w: nil source or random source", tensor.ErrState)
	}
	return &Sampler{src: src, rng: rng}, nil
}

// Next submits the copy of batch random samples into the leading items of
// dst: first into dst's host residency, then to its accelerated storage.
// dst must share the source's item dimensions.
func (sm *Sampler) Next(s *tensor.Session, dst *tensor.Tensor, batch int) error {
	src := sm.src.t
	if dst == nil || dst.Released() {
		return fmt.Errorf("dataset: sample: %w: destination is nil or released", tensor.ErrState)
	}
	if !dst.Dims().EqualItem(src.Dims()) {
		return tensor.Mismatch("dataset: sample", src.Dims().WithBatch(dst.Dims().N), dst.Dims())
	}
	if batch <= 0 || batch > dst.Dims().N {
		return &tensor.ShapeError{Op: "dataset: sample", Got: dst.Dims(), Detail: fmt.Sprintf("batch %d out of range", batch)}
	}

	sm.idx = sm.idx[:0]
	for i := range batch {
		k := sm.rng.IntN(sm.src.Len())
		sm.idx = append(sm.idx, k)
		if err := tensor.Copy(s, dst.Items(tensor.Host, i, 1), src.Items(tensor.Host, k, 1)); err != nil {
			return fmt.Errorf("dataset: sample: %w", err)
		}
	}
	if err := tensor.Copy(s, dst.Items(tensor.Accel, 0, batch), dst.Items(tensor.Host, 0, batch)); err != nil {
		return fmt.Errorf("dataset: sample: %w", err)
	}
	return nil
}

// Indices returns the source indices drawn by the last Next.
func (sm *Sampler) Indices() []int {
	return sm.idx
}
