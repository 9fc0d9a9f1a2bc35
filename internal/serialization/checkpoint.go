package serialization

import (
	"fmt"

	"github.com/born-ml/dcgan/internal/arch"
	"github.com/born-ml/dcgan/internal/nn"
	"github.com/born-ml/dcgan/internal/optim"
	"github.com/born-ml/dcgan/internal/tensor"
)

// Network names one architecture inside a checkpoint. Its tensors are
// stored as Name + "." + tensor name.
type Network struct {
	Name string
	Net  *arch.Architecture
}

// Tensor name suffixes.
const (
	suffixM       = ".m"
	suffixV       = ".v"
	suffixRunMean = ".running_mean"
	suffixRunVar  = ".running_var"
)

// Save writes every network's parameters, Adam moments, batch-norm running
// statistics and optimizer state to path.
func Save(path string, nets []Network, metadata map[string]string) error {
	h := Header{ModelType: "dcgan", Metadata: metadata, Checkpoint: &CheckpointMeta{}}

	var entries []Entry
	for _, n := range nets {
		e, err := networkEntries(n)
		if err != nil {
			return err
		}
		entries = append(entries, e...)
		h.Checkpoint.Networks = append(h.Checkpoint.Networks, networkMeta(n))
	}
	return WriteFile(path, h, entries)
}

// Load restores every network from the checkpoint at path. Each network
// must have been built with the same layout as when it was saved.
func Load(path string, nets []Network) (Header, error) {
	f, err := ReadFile(path)
	if err != nil {
		return Header{}, err
	}
	for _, n := range nets {
		if err := restoreNetwork(f, n); err != nil {
			return Header{}, err
		}
	}
	return f.Header, nil
}

func networkMeta(n Network) NetworkMeta {
	opt := n.Net.Optimizer()
	meta := NetworkMeta{Name: n.Name, Step: opt.Step(), LR: opt.LR()}
	switch o := opt.(type) {
	case *optim.Adam:
		cfg, st := o.Config(), o.State()
		meta.Optimizer = "adam"
		meta.Adam, meta.State = &cfg, &st
	case *optim.SGD:
		meta.Optimizer = "sgd"
	}
	return meta
}

// networkEntries downloads every tensor of n to host and returns copies.
func networkEntries(n Network) ([]Entry, error) {
	s, err := tensor.Begin(n.Net.Context())
	if err != nil {
		return nil, err
	}

	params := n.Net.Params()
	for _, p := range params {
		m, v := p.Moments()
		for _, t := range []*tensor.Tensor{p.Tensor(), m, v} {
			if err := tensor.Download(s, t); err != nil {
				_ = s.End()
				return nil, fmt.Errorf("serialization: save %s: %w", p.Name(), err)
			}
		}
	}
	if err := s.End(); err != nil {
		return nil, fmt.Errorf("serialization: save %s: %w", n.Name, err)
	}

	var entries []Entry
	for _, p := range params {
		m, v := p.Moments()
		name := n.Name + "." + p.Name()
		entries = append(entries,
			hostEntry(name, p.Tensor()),
			hostEntry(name+suffixM, m),
			hostEntry(name+suffixV, v),
		)
	}
	for _, bn := range batchNorms(n.Net.Layers()) {
		mean, variance := bn.Running()
		dims := tensor.Dims{N: 1, H: 1, W: 1, C: len(mean)}
		name := n.Name + "." + bn.Name()
		entries = append(entries,
			Entry{Name: name + suffixRunMean, Dims: dims, Data: mean},
			Entry{Name: name + suffixRunVar, Dims: dims, Data: variance},
		)
	}
	return entries, nil
}

func hostEntry(name string, t *tensor.Tensor) Entry {
	return Entry{Name: name, Dims: t.Dims(), Data: append([]float32(nil), t.Host()...)}
}

// restoreNetwork copies the tensors of n from f and uploads them.
func restoreNetwork(f *File, n Network) error {
	s, err := tensor.Begin(n.Net.Context())
	if err != nil {
		return err
	}
	for _, p := range n.Net.Params() {
		m, v := p.Moments()
		name := n.Name + "." + p.Name()
		for _, r := range []struct {
			name string
			t    *tensor.Tensor
		}{{name, p.Tensor()}, {name + suffixM, m}, {name + suffixV, v}} {
			if err := restoreTensor(s, f, r.name, r.t); err != nil {
				_ = s.End()
				return err
			}
		}
	}
	if err := s.End(); err != nil {
		return fmt.Errorf("serialization: load %s: %w", n.Name, err)
	}

	for _, bn := range batchNorms(n.Net.Layers()) {
		name := n.Name + "." + bn.Name()
		mean, _, err := f.Tensor(name + suffixRunMean)
		if err != nil {
			return err
		}
		variance, _, err := f.Tensor(name + suffixRunVar)
		if err != nil {
			return err
		}
		if err := bn.SetRunning(mean, variance); err != nil {
			return fmt.Errorf("serialization: load %s: %w", name, err)
		}
	}

	meta := f.Header.Checkpoint.network(n.Name)
	if meta == nil {
		return fmt.Errorf("serialization: load: %w: no optimizer state for %q", ErrTensorNotFound, n.Name)
	}
	if adam, ok := n.Net.Optimizer().(*optim.Adam); ok && meta.State != nil {
		adam.SetState(*meta.State)
	}
	return nil
}

func restoreTensor(s *tensor.Session, f *File, name string, t *tensor.Tensor) error {
	values, dims, err := f.Tensor(name)
	if err != nil {
		return err
	}
	if !dims.Equal(t.Dims()) {
		return tensor.Mismatch("serialization: load "+name, t.Dims(), dims)
	}
	copy(t.Host(), values)
	return tensor.Upload(s, t)
}

// batchNorms returns every batch-norm layer in layers, descending into
// composite layers.
func batchNorms(layers []nn.Layer) []*nn.BatchNorm {
	var out []*nn.BatchNorm
	for _, l := range layers {
		switch l := l.(type) {
		case *nn.BatchNorm:
			out = append(out, l)
		case interface{ Children() []nn.Layer }:
			out = append(out, batchNorms(l.Children())...)
		}
	}
	return out
}
