//go:build windows

package webgpu

import (
	"fmt"

	"github.com/born-ml/dcgan/internal/tensor"
)

// FillBuffer sets n elements of dst starting at off to v on the device.
func (c *Context) FillBuffer(dst tensor.Buffer, off, n int, v float32) error {
	bufs, err := c.own("fill", dst)
	if err != nil {
		return err
	}
	d := bufs[0]
	if off < 0 || n < 0 || off+n > d.Len() {
		return fmt.Errorf("webgpu: fill: %w: range [%d,%d) of %d", tensor.ErrShapeMismatch, off, off+n, d.Len())
	}
	if n == 0 {
		return nil
	}

	params := make([]byte, 12)
	putU32(params, 0, uint32(off)) //nolint:gosec // G115: checked above
	putU32(params, 1, uint32(n))   //nolint:gosec // G115: checked above
	putF32(params, 2, v)
	c.dispatch("fill", fillShader, n, params, d)
	d.written()
	return nil
}

// CopyBuffer copies n elements from src[srcOff:] to dst[dstOff:] on the device.
func (c *Context) CopyBuffer(dst tensor.Buffer, dstOff int, src tensor.Buffer, srcOff, n int) error {
	bufs, err := c.own("copy", dst, src)
	if err != nil {
		return err
	}
	d, s := bufs[0], bufs[1]
	if dstOff < 0 || srcOff < 0 || n < 0 || dstOff+n > d.Len() || srcOff+n > s.Len() {
		return fmt.Errorf("webgpu: copy: %w: %d elements from %d to %d", tensor.ErrShapeMismatch, n, srcOff, dstOff)
	}
	if n == 0 {
		return nil
	}
	if d == s {
		data := d.Float32()
		copy(data[dstOff:dstOff+n], data[srcOff:srcOff+n])
		return nil
	}

	srcBuf, dstBuf := s.device(), d.device()
	encoder := c.device.CreateCommandEncoder(nil)
	//nolint:gosec // G115: offsets checked above
	encoder.CopyBufferToBuffer(srcBuf, uint64(srcOff)*4, dstBuf, uint64(dstOff)*4, uint64(n)*4)
	c.queueCommand(encoder.Finish(nil))
	d.written()
	return nil
}

// AdamUpdate runs one Adam step over whole buffers on the device.
func (c *Context) AdamUpdate(w, g, m, v tensor.Buffer, lr, beta1, beta2, eps, bc1, bc2 float32) error {
	bufs, err := c.own("adam", w, g, m, v)
	if err != nil {
		return err
	}
	n := bufs[0].Len()
	for _, b := range bufs[1:] {
		if b.Len() != n {
			return fmt.Errorf("webgpu: adam: %w: buffer lengths differ", tensor.ErrShapeMismatch)
		}
	}

	params := make([]byte, 28)
	putU32(params, 0, uint32(n)) //nolint:gosec // G115: n is positive
	for i, f := range []float32{lr, beta1, beta2, eps, bc1, bc2} {
		putF32(params, i+1, f)
	}
	c.dispatch("adam", adamShader, n, params, bufs...)
	bufs[0].written()
	bufs[2].written()
	bufs[3].written()
	return nil
}
