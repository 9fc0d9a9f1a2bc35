package dataset

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/born-ml/dcgan/internal/tensor"
)

// idxImageMagic marks an IDX file of unsigned bytes with three dimensions.
const idxImageMagic = 0x00000803

// maxPixels bounds the size of a decoded image file.
const maxPixels = 1 << 31

// ReadIDX reads an image file in IDX format and returns its dimensions
// (count, rows, cols, 1) and pixel bytes. limit > 0 keeps at most limit
// images.
//
// IDX file format for images:
//
//	magic number: 0x00000803 (2051)
//	number of images: 4 bytes
//	number of rows: 4 bytes
//	number of cols: 4 bytes
//	pixel data: unsigned bytes (0-255)
func ReadIDX(r io.Reader, limit int) (tensor.Dims, []byte, error) {
	var hdr struct {
		Magic, Count, Rows, Cols uint32
	}
	if err := binary.Read(r, binary.BigEndian, &hdr); err != nil {
		return tensor.Dims{}, nil, fmt.Errorf("%w: read header: %v", ErrFormat, err)
	}
	if hdr.Magic != idxImageMagic {
		return tensor.Dims{}, nil, fmt.Errorf("%w: magic number %d, want %d", ErrFormat, hdr.Magic, idxImageMagic)
	}

	count := int(hdr.Count)
	if limit > 0 && count > limit {
		count = limit
	}
	dims := tensor.Dims{N: count, H: int(hdr.Rows), W: int(hdr.Cols), C: 1}
	if err := dims.Validate(); err != nil {
		return tensor.Dims{}, nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if int64(count)*int64(dims.ItemLen()) > maxPixels {
		return tensor.Dims{}, nil, fmt.Errorf("%w: %v is too large", ErrFormat, dims)
	}

	pixels := make([]byte, dims.Len())
	if _, err := io.ReadFull(r, pixels); err != nil {
		return tensor.Dims{}, nil, fmt.Errorf("%w: read pixels: %v", ErrFormat, err)
	}
	return dims, pixels, nil
}

// LoadIDX loads an IDX image file, optionally gzip-compressed (".gz"),
// into a source normalised to [lo,hi].
func LoadIDX(ctx tensor.Context, path string, limit int, lo, hi float32) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: %w", err)
	}
	defer f.Close()

	var r io.Reader = bufio.NewReader(f)
	if strings.HasSuffix(path, ".gz") {
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrFormat, path, err)
		}
		defer zr.Close()
		r = zr
	}

	dims, pixels, err := ReadIDX(r, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return FromBytes(ctx, dims, pixels, lo, hi)
}

// ReadCSV reads square single-channel images from Kaggle-style CSV:
//
//	label,pixel0,pixel1,...,pixelN
//	5,0,0,12,...,0
//
// The header row is skipped and labels are ignored. limit > 0 keeps at
// most limit images.
func ReadCSV(r io.Reader, limit int) (tensor.Dims, []byte, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	if _, err := cr.Read(); err != nil {
		return tensor.Dims{}, nil, fmt.Errorf("%w: read header: %v", ErrFormat, err)
	}

	var pixels []byte
	var side, count int
	for limit <= 0 || count < limit {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return tensor.Dims{}, nil, fmt.Errorf("%w: row %d: %v", ErrFormat, count+1, err)
		}
		if side == 0 {
			side = isqrt(len(rec) - 1)
			if side == 0 || side*side != len(rec)-1 {
				return tensor.Dims{}, nil, fmt.Errorf("%w: %d pixels per row is not a square image", ErrFormat, len(rec)-1)
			}
		}
		for j, field := range rec[1:] {
			v, err := strconv.Atoi(field)
			if err != nil || v < 0 || v > 255 {
				return tensor.Dims{}, nil, fmt.Errorf("%w: row %d, column %d: invalid pixel %q", ErrFormat, count+1, j+1, field)
			}
			pixels = append(pixels, byte(v))
		}
		count++
	}
	if count == 0 {
		return tensor.Dims{}, nil, fmt.Errorf("%w: no images", ErrFormat)
	}
	return tensor.Dims{N: count, H: side, W: side, C: 1}, pixels, nil
}

// LoadCSV loads a CSV image file into a source normalised to [lo,hi].
func LoadCSV(ctx tensor.Context, path string, limit int, lo, hi float32) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: %w", err)
	}
	defer f.Close()

	dims, pixels, err := ReadCSV(bufio.NewReader(f), limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return FromBytes(ctx, dims, pixels, lo, hi)
}

func isqrt(n int) int {
	if n <= 0 {
		return 0
	}
	r := 1
	for (r+1)*(r+1) <= n {
		r++
	}
	return r
}
