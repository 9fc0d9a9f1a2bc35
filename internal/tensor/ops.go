package tensor

import "fmt"

// Span addresses a range of batch items in one residency of a tensor.
type Span struct {
	T     *Tensor
	Res   Residency
	Item  int // first batch item
	Count int // number of batch items
}

// All returns a span covering every batch item of t in residency r.
func (t *Tensor) All(r Residency) Span {
	return Span{T: t, Res: r, Item: 0, Count: t.dims.N}
}

// Items returns a span over count batch items starting at first.
func (t *Tensor) Items(r Residency, first, count int) Span {
	return Span{T: t, Res: r, Item: first, Count: count}
}

func (sp Span) check(op string) error {
	if sp.T == nil || sp.T.freed {
		return stateErrorf("%s: tensor is nil or released", op)
	}
	if sp.Item < 0 || sp.Count < 0 || sp.Item+sp.Count > sp.T.dims.N {
		return &ShapeError{Op: op, Got: sp.T.dims, Detail: fmt.Sprintf("items [%d,%d) out of range", sp.Item, sp.Item+sp.Count)}
	}
	return nil
}

func (sp Span) bounds() (int, int) {
	n := sp.T.dims.ItemLen()
	return sp.Item * n, sp.Count * n
}

// Fill submits an op that sets every element of dst to v.
// The range is validated before anything is submitted.
func Fill(s *Session, dst Span, v float32) error {
	if err := dst.check("fill"); err != nil {
		return err
	}
	off, n := dst.bounds()
	return s.Submit(Op{
		Name:   "fill",
		Hazard: true,
		Run: func() error {
			if dst.Res == Accel {
				if k, ok := s.ctx.(FillKernel); ok {
					return k.FillBuffer(dst.T.accel, off, n, v)
				}
			}
			data := dst.T.storage(dst.Res)[off : off+n]
			for i := range data {
				data[i] = v
			}
			return nil
		},
	})
}

// Copy submits an op that copies src into dst.
//
// Both spans must have the same item count and the tensors must agree on
// their non-batch dimensions; otherwise an error wrapping ErrShapeMismatch
// is returned and nothing is submitted. Copying between residencies is how
// values move between host staging and accelerated storage.
func Copy(s *Session, dst, src Span) error {
	if err := dst.check("copy"); err != nil {
		return err
	}
	if err := src.check("copy"); err != nil {
		return err
	}
	if !dst.T.dims.EqualItem(src.T.dims) {
		return Mismatch("copy", dst.T.dims.WithBatch(src.T.dims.N), src.T.dims)
	}
	if dst.Count != src.Count {
		return &ShapeError{Op: "copy", Got: src.T.dims, Detail: fmt.Sprintf("item count %d != %d", src.Count, dst.Count)}
	}

	dstOff, n := dst.bounds()
	srcOff, _ := src.bounds()
	return s.Submit(Op{
		Name:   "copy",
		Hazard: true,
		Run: func() error {
			if dst.Res == Accel && src.Res == Accel {
				if k, ok := s.ctx.(CopyKernel); ok {
					return k.CopyBuffer(dst.T.accel, dstOff, src.T.accel, srcOff, n)
				}
			}
			copy(dst.T.storage(dst.Res)[dstOff:dstOff+n], src.T.storage(src.Res)[srcOff:srcOff+n])
			return nil
		},
	})
}

// Upload stages the whole host copy of t into accelerated storage.
func Upload(s *Session, t *Tensor) error {
	return Copy(s, t.All(Accel), t.All(Host))
}

// Download mirrors the accelerated copy of t back to host storage.
func Download(s *Session, t *Tensor) error {
	return Copy(s, t.All(Host), t.All(Accel))
}
