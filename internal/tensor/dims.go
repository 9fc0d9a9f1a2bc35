package tensor

import "fmt"

// Dims describes a 4-D tensor laid out as (batch, height, width, channel).
//
// Storage is row-major with the channel index varying fastest:
//
//	offset(n, i, j, k) = ((n*H + i)*W + j)*C + k
type Dims struct {
	N int // batch count
	H int // height
	W int // width
	C int // channels (depth)
}

// Len returns the total number of elements.
func (d Dims) Len() int {
	return d.N * d.H * d.W * d.C
}

// ItemLen returns the number of elements in one batch item (H*W*C).
func (d Dims) ItemLen() int {
	return d.H * d.W * d.C
}

// Index returns the flat offset of element (n, i, j, k).
// It performs no bounds checking; see Tensor.At for the checked accessor.
func (d Dims) Index(n, i, j, k int) int {
	return ((n*d.H+i)*d.W+j)*d.C + k
}

// Contains reports whether (n, i, j, k) lies inside the extents.
func (d Dims) Contains(n, i, j, k int) bool {
	return n >= 0 && n < d.N &&
		i >= 0 && i < d.H &&
		j >= 0 && j < d.W &&
		k >= 0 && k < d.C
}

// Equal reports whether all four dimensions match.
func (d Dims) Equal(o Dims) bool {
	return d == o
}

// EqualItem reports whether the non-batch dimensions match.
// Batch counts may legitimately differ (a dataset and a mini-batch, for example).
func (d Dims) EqualItem(o Dims) bool {
	return d.H == o.H && d.W == o.W && d.C == o.C
}

// WithBatch returns a copy of d with the batch count replaced.
func (d Dims) WithBatch(n int) Dims {
	d.N = n
	return d
}

// Validate checks that every dimension is positive.
func (d Dims) Validate() error {
	if d.N <= 0 || d.H <= 0 || d.W <= 0 || d.C <= 0 {
		return &ShapeError{Op: "dims", Got: d, Detail: "all dimensions must be > 0"}
	}
	return nil
}

// String returns a compact representation, e.g. "(8,28,28,1)".
func (d Dims) String() string {
	return fmt.Sprintf("(%d,%d,%d,%d)", d.N, d.H, d.W, d.C)
}
