//go:build windows

package main

import (
	"fmt"

	"github.com/born-ml/dcgan/internal/backend/cpu"
	"github.com/born-ml/dcgan/internal/backend/webgpu"
	"github.com/born-ml/dcgan/internal/tensor"
)

func openDevice(name string, cfg cpu.Config) (tensor.Context, func(), error) {
	switch name {
	case "cpu":
		return cpu.New(cfg), func() {}, nil
	case "webgpu":
		if !webgpu.IsAvailable() {
			return nil, nil, fmt.Errorf("webgpu: not available; ensure wgpu-native is installed")
		}
		ctx, err := webgpu.New(webgpu.Config{Parallel: cfg.Parallel})
		if err != nil {
			return nil, nil, err
		}
		return ctx, ctx.Release, nil
	default:
		return nil, nil, fmt.Errorf("unknown device %q", name)
	}
}
