// Package device resolves the compute device a run is placed on and
// describes the host it runs on.
package device

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/bgzastrow/mace/internal/tensor"
	"github.com/klauspost/cpuid/v2"
)

// Auto selects WebGPU when an adapter is available and CPU otherwise.
const Auto = "auto"

// Resolve maps a device name to a tensor.Device. "auto" probes for a
// WebGPU adapter. An explicit "webgpu" request on a host without one is
// an error.
func Resolve(name string) (tensor.Device, error) {
	if n := strings.ToLower(strings.TrimSpace(name)); n == "" || n == Auto {
		if IsAvailable() {
			return tensor.WebGPU, nil
		}
		return tensor.CPU, nil
	}

	d, err := tensor.ParseDevice(name)
	if err != nil {
		return tensor.CPU, err
	}
	if d == tensor.WebGPU && !IsAvailable() {
		return tensor.CPU, fmt.Errorf("device: webgpu requested but no adapter is available")
	}
	return d, nil
}

// Info describes the host CPU.
type Info struct {
	Device        tensor.Device
	Brand         string
	PhysicalCores int
	LogicalCores  int
	AVX2          bool
	AVX512        bool
}

// Describe reports the host CPU features alongside d.
func Describe(d tensor.Device) Info {
	return Info{
		Device:        d,
		Brand:         cpuid.CPU.BrandName,
		PhysicalCores: cpuid.CPU.PhysicalCores,
		LogicalCores:  cpuid.CPU.LogicalCores,
		AVX2:          cpuid.CPU.Supports(cpuid.AVX2),
		AVX512:        cpuid.CPU.Supports(cpuid.AVX512F, cpuid.AVX512DQ),
	}
}

// LogValue implements slog.LogValuer.
func (i Info) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("device", i.Device.String()),
		slog.String("cpu", i.Brand),
		slog.Int("physical_cores", i.PhysicalCores),
		slog.Int("logical_cores", i.LogicalCores),
		slog.Bool("avx2", i.AVX2),
		slog.Bool("avx512", i.AVX512),
	)
}
