// Copyright 2025 MACE Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the dense float64 tensors exchanged between data
// sources, models and loss functions.
package tensor

import "github.com/bgzastrow/mace/internal/tensor"

// Tensor is a dense, row-major tensor tagged with a device.
type Tensor = tensor.Tensor

// Shape is the size of each dimension.
type Shape = tensor.Shape

// Device identifies where a tensor lives.
type Device = tensor.Device

// Devices.
const (
	CPU    = tensor.CPU
	WebGPU = tensor.WebGPU
)

// ErrUnknownDevice is returned by ParseDevice for unrecognized names.
var ErrUnknownDevice = tensor.ErrUnknownDevice

// New creates a tensor over data with the given shape.
func New(data []float64, shape Shape) (*Tensor, error) {
	return tensor.New(data, shape)
}

// MustNew is New that panics on error.
func MustNew(data []float64, shape Shape) *Tensor {
	return tensor.MustNew(data, shape)
}

// Zeros creates a zero-filled tensor.
func Zeros(shape Shape) *Tensor {
	return tensor.Zeros(shape)
}

// Full creates a tensor filled with value.
func Full(shape Shape, value float64) *Tensor {
	return tensor.Full(shape, value)
}

// ParseDevice maps "cpu", "webgpu" or "gpu" to a Device.
func ParseDevice(name string) (Device, error) {
	return tensor.ParseDevice(name)
}
