//go:build !windows

package device

// IsAvailable reports false: the WebGPU bindings are only wired on Windows.
func IsAvailable() bool {
	return false
}
