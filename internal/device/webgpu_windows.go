//go:build windows

package device

import (
	"github.com/go-webgpu/webgpu/wgpu"
)

// IsAvailable checks if a WebGPU adapter can be acquired on this system.
func IsAvailable() (available bool) {
	// Recover from panic if the native library is not found.
	defer func() {
		if r := recover(); r != nil {
			available = false
		}
	}()

	if err := wgpu.Init(); err != nil {
		return false
	}
	instance, err := wgpu.CreateInstance(nil)
	if err != nil {
		return false
	}
	defer instance.Release()

	adapter, err := instance.RequestAdapter(nil)
	if err != nil {
		return false
	}
	adapter.Release()

	return true
}
