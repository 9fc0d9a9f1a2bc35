package serialization

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/born-ml/dcgan/internal/tensor"
)

// Entry is one named host tensor to write.
type Entry struct {
	Name string
	Dims tensor.Dims
	Data []float32
}

// Write encodes entries to w in format v2. The header's tensor list,
// format version and generator are filled in; the rest of h is written
// as given.
func Write(w io.Writer, h Header, entries []Entry) error {
	h.FormatVersion = FormatVersionV2
	h.Generator = generator
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}
	if h.Metadata == nil {
		h.Metadata = make(map[string]string)
	}

	// Lay out the data section and encode it so the checksum can go in the
	// fixed header.
	h.Tensors = make([]TensorMeta, 0, len(entries))
	var offset int64
	for _, e := range entries {
		if len(e.Data) != e.Dims.Len() {
			return &tensor.ShapeError{Op: "serialization: write " + e.Name, Want: e.Dims, Detail: fmt.Sprintf("%d values", len(e.Data))}
		}
		size := int64(len(e.Data)) * 4
		h.Tensors = append(h.Tensors, TensorMeta{
			Name:   e.Name,
			DType:  DTypeFloat32,
			Shape:  []int{e.Dims.N, e.Dims.H, e.Dims.W, e.Dims.C},
			Offset: offset,
			Size:   size,
		})
		offset += size
	}
	if err := ValidateHeader(&h, offset, ValidationStrict); err != nil {
		return fmt.Errorf("serialization: write: %w", err)
	}

	data := make([]byte, offset)
	pos := 0
	for _, e := range entries {
		for _, v := range e.Data {
			binary.LittleEndian.PutUint32(data[pos:], math.Float32bits(v))
			pos += 4
		}
	}
	checksum := ComputeChecksum(data)

	headerJSON, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("serialization: marshal header: %w", err)
	}

	fixed := make([]byte, FixedHeaderSizeV2)
	copy(fixed[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], uint32(FormatVersionV2))
	var flags uint32
	if h.Checkpoint != nil {
		flags |= FlagHasOptimizer
	}
	if len(h.Metadata) > 0 {
		flags |= FlagHasMetadata
	}
	binary.LittleEndian.PutUint32(fixed[8:12], flags)
	binary.LittleEndian.PutUint64(fixed[16:24], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixed[24:32], uint64(len(data)))
	copy(fixed[ChecksumOffsetV2:ChecksumOffsetV2+ChecksumSize], checksum[:])

	pad := padding(len(headerJSON))
	for _, chunk := range [][]byte{fixed, headerJSON, make([]byte, pad), data} {
		if _, err := w.Write(chunk); err != nil {
			return fmt.Errorf("serialization: write: %w", err)
		}
	}
	return nil
}

// WriteFile writes entries to path. The file is written next to path and
// renamed into place, so an interrupted save never leaves a truncated
// checkpoint behind.
func WriteFile(path string, h Header, entries []Entry) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("serialization: create: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

	bw := bufio.NewWriter(tmp)
	if err := Write(bw, h, entries); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("serialization: flush: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("serialization: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("serialization: rename: %w", err)
	}
	return nil
}

// padding returns the zero bytes needed after a JSON header of n bytes to
// align the data section to HeaderAlignment.
func padding(n int) int {
	pos := FixedHeaderSizeV2 + n
	return (HeaderAlignment - pos%HeaderAlignment) % HeaderAlignment
}
