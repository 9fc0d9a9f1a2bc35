package tensor

// Device identifies where a context keeps accelerated storage.
type Device int

// Supported compute devices.
const (
	CPU Device = iota
	WebGPU
)

// String returns a human-readable device name.
func (d Device) String() string {
	switch d {
	case CPU:
		return "CPU"
	case WebGPU:
		return "WebGPU"
	default:
		return "Unknown"
	}
}

// Context is the execution context supplied by the caller.
// It allocates accelerated storage and completes issued device work.
// The engine never creates or destroys contexts itself.
//
// Implementations:
//   - cpu.Context: accelerated storage is a Go slice; kernels run on goroutines
//   - webgpu.Context: accelerated storage is a GPU buffer (Windows)
type Context interface {
	// Name returns a human-readable context name.
	Name() string

	// Device returns the device holding accelerated storage.
	Device() Device

	// Alloc acquires accelerated storage for n float32 elements.
	// Returns an error wrapping ErrAllocation when storage is unavailable.
	Alloc(n int) (Buffer, error)

	// Sync blocks until all work issued to the device has completed.
	Sync() error
}

// Buffer is a block of accelerated storage.
type Buffer interface {
	// Len returns the number of float32 elements.
	Len() int

	// Float32 returns a view usable by Go kernels.
	// Device-backed buffers make the view coherent before returning it and
	// treat it as modified afterwards.
	Float32() []float32

	// Release returns the storage to the context.
	Release()
}

// FillKernel is implemented by contexts that fill buffer ranges on the device.
type FillKernel interface {
	FillBuffer(dst Buffer, off, n int, v float32) error
}

// CopyKernel is implemented by contexts that copy buffer ranges on the device.
type CopyKernel interface {
	CopyBuffer(dst Buffer, dstOff int, src Buffer, srcOff, n int) error
}

// AdamKernel is implemented by contexts that run the Adam update on the device.
//
// lr is the learning rate; bc1 and bc2 are the bias corrections
// 1-beta1^t and 1-beta2^t.
type AdamKernel interface {
	AdamUpdate(w, g, m, v Buffer, lr, beta1, beta2, eps, bc1, bc2 float32) error
}
