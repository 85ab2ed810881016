package tensor

import (
	"errors"
	"fmt"
	"strings"
)

// Device represents the compute device a tensor lives on.
type Device int

// Supported compute devices.
const (
	CPU Device = iota
	WebGPU
)

// ErrUnknownDevice is returned by ParseDevice for unrecognized names.
var ErrUnknownDevice = errors.New("tensor: unknown device")

// String returns a human-readable device name.
func (d Device) String() string {
	switch d {
	case CPU:
		return "CPU"
	case WebGPU:
		return "WebGPU"
	default:
		return "Unknown"
	}
}

// ParseDevice maps a device name ("cpu", "webgpu") to a Device.
// Matching is case-insensitive.
func ParseDevice(name string) (Device, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "cpu":
		return CPU, nil
	case "webgpu", "gpu":
		return WebGPU, nil
	default:
		return CPU, fmt.Errorf("%w: %q", ErrUnknownDevice, name)
	}
}
