package serialization

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/born-ml/dcgan/internal/tensor"
)

// ReaderOptions configures Read.
type ReaderOptions struct {
	SkipChecksumValidation bool            // skip the SHA-256 check
	ValidationLevel        ValidationLevel // header validation strictness
}

// File is a decoded .born file held in memory.
type File struct {
	Header Header
	data   []byte
	index  map[string]TensorMeta
}

// Read decodes a .born file from r with strict validation.
func Read(r io.Reader) (*File, error) {
	return ReadWithOptions(r, ReaderOptions{ValidationLevel: ValidationStrict})
}

// ReadWithOptions decodes a .born file from r.
func ReadWithOptions(r io.Reader, opts ReaderOptions) (*File, error) {
	fixed := make([]byte, FixedHeaderSizeV2)
	if _, err := io.ReadFull(r, fixed); err != nil {
		return nil, fmt.Errorf("serialization: read fixed header: %w", err)
	}
	if string(fixed[0:4]) != MagicBytes {
		return nil, fmt.Errorf("serialization: %w: got %q, want %q", ErrInvalidMagic, fixed[0:4], MagicBytes)
	}
	if v := binary.LittleEndian.Uint32(fixed[4:8]); v != FormatVersionV2 {
		return nil, fmt.Errorf("serialization: %w: %d", ErrUnsupportedVersion, v)
	}

	headerSize := binary.LittleEndian.Uint64(fixed[16:24])
	dataSize := binary.LittleEndian.Uint64(fixed[24:32])
	if headerSize > MaxHeaderSize {
		return nil, fmt.Errorf("serialization: %w: %d > %d", ErrHeaderTooLarge, headerSize, MaxHeaderSize)
	}
	var stored [32]byte
	copy(stored[:], fixed[ChecksumOffsetV2:ChecksumOffsetV2+ChecksumSize])

	headerJSON := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return nil, fmt.Errorf("serialization: read header: %w", err)
	}
	var h Header
	if err := json.Unmarshal(headerJSON, &h); err != nil {
		return nil, fmt.Errorf("serialization: parse header: %w", err)
	}

	if _, err := io.CopyN(io.Discard, r, int64(padding(int(headerSize)))); err != nil {
		return nil, fmt.Errorf("serialization: read padding: %w", err)
	}

	// Stream the data section through the hash while buffering it.
	var buf bytes.Buffer
	sum, err := ComputeChecksumReader(io.TeeReader(io.LimitReader(r, int64(dataSize)), &buf))
	if err != nil {
		return nil, fmt.Errorf("serialization: read data: %w", err)
	}
	if uint64(buf.Len()) != dataSize {
		return nil, fmt.Errorf("serialization: read data: %w", io.ErrUnexpectedEOF)
	}
	if !opts.SkipChecksumValidation {
		if err := ValidateChecksum(sum, stored); err != nil {
			return nil, fmt.Errorf("serialization: %w", err)
		}
	}

	if err := ValidateHeader(&h, int64(dataSize), opts.ValidationLevel); err != nil {
		return nil, fmt.Errorf("serialization: validation failed: %w", err)
	}

	f := &File{Header: h, data: buf.Bytes(), index: make(map[string]TensorMeta, len(h.Tensors))}
	for _, t := range h.Tensors {
		f.index[t.Name] = t
	}
	return f, nil
}

// ReadFile decodes the .born file at path with strict validation.
func ReadFile(path string) (*File, error) {
	//nolint:gosec // G304: checkpoint path comes from the caller
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("serialization: open: %w", err)
	}
	defer file.Close() //nolint:errcheck // read-only

	return Read(bufio.NewReader(file))
}

// Names returns the tensor names in file order.
func (f *File) Names() []string {
	names := make([]string, len(f.Header.Tensors))
	for i, t := range f.Header.Tensors {
		names[i] = t.Name
	}
	return names
}

// Tensor decodes the named tensor.
func (f *File) Tensor(name string) ([]float32, tensor.Dims, error) {
	t, ok := f.index[name]
	if !ok {
		return nil, tensor.Dims{}, fmt.Errorf("serialization: %w: %q", ErrTensorNotFound, name)
	}
	if err := ValidateTensorShape(t); err != nil {
		return nil, tensor.Dims{}, err
	}
	if t.Offset < 0 || t.Offset+t.Size > int64(len(f.data)) {
		return nil, tensor.Dims{}, &ValidationError{Type: "out_of_bounds", Tensor: name, Details: "region outside data section"}
	}

	raw := f.data[t.Offset : t.Offset+t.Size]
	values := make([]float32, len(raw)/4)
	for i := range values {
		values[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return values, tensor.Dims{N: t.Shape[0], H: t.Shape[1], W: t.Shape[2], C: t.Shape[3]}, nil
}
