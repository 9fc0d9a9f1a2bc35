// Package serialization saves and restores training checkpoints in the
// .born format.
//
// A .born file is a fixed binary header, a JSON header describing every
// tensor, and the raw little-endian float32 tensor data:
//
//	Format Structure:
//	  [0x00-0x03: Magic "BORN"]
//	  [0x04-0x07: Version (uint32 LE, 2)]
//	  [0x08-0x0B: Flags (uint32 LE)]
//	  [0x0C-0x0F: Reserved]
//	  [0x10-0x17: Header Size (uint64 LE)]
//	  [0x18-0x1F: Data Size (uint64 LE)]
//	  [0x20-0x3F: SHA-256 of the data section]
//	  [Header: JSON metadata]
//	  [Padding to a 64-byte boundary]
//	  [Tensor data]
//
// A checkpoint stores, for every network, each parameter's values and
// Adam moments, the running statistics of each batch-norm layer, and the
// optimizer step and bias-correction state. Loading a checkpoint into a
// freshly built network with the same layout resumes training exactly.
//
// Example usage:
//
//	nets := []serialization.Network{{Name: "generator", Net: g}, {Name: "discriminator", Net: d}}
//	if err := serialization.Save("run.born", nets, map[string]string{"dataset": "mnist"}); err != nil {
//	    log.Fatal(err)
//	}
//
//	header, err := serialization.Load("run.born", nets)
package serialization
