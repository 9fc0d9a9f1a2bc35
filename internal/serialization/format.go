package serialization

import (
	"time"

	"github.com/born-ml/dcgan/internal/optim"
)

// Format constants.
const (
	MagicBytes        = "BORN"
	FormatVersionV2   = 2    // v2: with SHA-256 checksum
	HeaderAlignment   = 64   // tensor data starts on a 64-byte boundary
	FixedHeaderSizeV2 = 64   // v2 fixed header size (0x40 bytes)
	ChecksumSize      = 32   // SHA-256 checksum size (32 bytes)
	ChecksumOffsetV2  = 0x20 // checksum offset in the v2 fixed header
)

// DTypeFloat32 is the only element type the engine stores.
const DTypeFloat32 = "float32"

// Flags for the .born format.
const (
	FlagHasOptimizer uint32 = 1 << 1 // bit 1: optimizer state included
	FlagHasMetadata  uint32 = 1 << 2 // bit 2: custom metadata included
)

// generator identifies the writer in every header.
const generator = "dcgan"

// Header represents the JSON header in a .born file.
type Header struct {
	FormatVersion int               `json:"format_version"`       // version of the .born format
	Generator     string            `json:"generator"`            // program that wrote the file
	ModelType     string            `json:"model_type"`           // e.g. "dcgan"
	CreatedAt     time.Time         `json:"created_at"`           // when the file was written
	Tensors       []TensorMeta      `json:"tensors"`              // tensor metadata
	Metadata      map[string]string `json:"metadata"`             // custom metadata
	Checkpoint    *CheckpointMeta   `json:"checkpoint,omitempty"` // training state (optional)
}

// CheckpointMeta contains the training state of every saved network.
type CheckpointMeta struct {
	Networks []NetworkMeta `json:"networks"`
}

// NetworkMeta is the optimizer state of one network.
type NetworkMeta struct {
	Name      string        `json:"name"`
	Step      int           `json:"step"`
	Optimizer string        `json:"optimizer"` // "adam" or "sgd"
	LR        float32       `json:"lr"`
	Adam      *optim.Config `json:"adam_config,omitempty"`
	State     *optim.State  `json:"adam_state,omitempty"`
}

// TensorMeta describes a tensor in the .born file.
type TensorMeta struct {
	Name   string `json:"name"`   // e.g. "generator.g1.convt.weight.m"
	DType  string `json:"dtype"`  // always "float32"
	Shape  []int  `json:"shape"`  // [N, H, W, C]
	Offset int64  `json:"offset"` // bytes from the start of the data section
	Size   int64  `json:"size"`   // size in bytes
}

// network returns the metadata for name, or nil.
func (c *CheckpointMeta) network(name string) *NetworkMeta {
	if c == nil {
		return nil
	}
	for i := range c.Networks {
		if c.Networks[i].Name == name {
			return &c.Networks[i]
		}
	}
	return nil
}
