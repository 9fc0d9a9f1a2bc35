//go:build !windows

package main

import (
	"fmt"

	"github.com/born-ml/dcgan/internal/backend/cpu"
	"github.com/born-ml/dcgan/internal/tensor"
)

func openDevice(name string, cfg cpu.Config) (tensor.Context, func(), error) {
	if name != "cpu" {
		return nil, nil, fmt.Errorf("device %q is not available on this platform", name)
	}
	return cpu.New(cfg), func() {}, nil
}
