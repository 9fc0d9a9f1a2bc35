package serialization

import (
	"crypto/sha256"
	"fmt"
	"io"
)

// ComputeChecksum returns the SHA-256 of the encoded tensor data section.
func ComputeChecksum(data []byte) [ChecksumSize]byte {
	return sha256.Sum256(data)
}

// ComputeChecksumReader hashes everything r yields. The reader path hashes
// the data section while it is being read, so a checkpoint is only decoded
// once.
func ComputeChecksumReader(r io.Reader) ([ChecksumSize]byte, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return [ChecksumSize]byte{}, err
	}
	var sum [ChecksumSize]byte
	h.Sum(sum[:0])
	return sum, nil
}

// ValidateChecksum compares the hash of the data section with the one stored
// in the fixed header.
func ValidateChecksum(computed, stored [ChecksumSize]byte) error {
	if computed != stored {
		return fmt.Errorf("%w: stored %x, computed %x", ErrChecksumMismatch, stored[:8], computed[:8])
	}
	return nil
}
