package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// Device acquisition errors.
var (
	// ErrNoAdapter is returned when no compute-capable adapter is present.
	ErrNoAdapter = errors.New("gpu: no compute-capable adapter found")

	// ErrNoDevice is returned when the adapter refuses to open a device.
	ErrNoDevice = errors.New("gpu: failed to open logical device")

	// ErrForeignProvider is returned when a gpucontext.DeviceProvider does
	// not expose wgpu device and queue handles.
	ErrForeignProvider = errors.New("gpu: device provider does not expose wgpu handles")
)

// AcquireOptions selects the adapter used by Acquire.
type AcquireOptions struct {
	// Backends restricts adapter enumeration. Zero means all registered backends.
	Backends gputypes.Backends

	// PowerPreference is forwarded to adapter selection.
	PowerPreference gputypes.PowerPreference

	// ForceFallbackAdapter requests the fallback adapter. Acquire still
	// rejects it when it cannot run compute kernels.
	ForceFallbackAdapter bool

	// Label names the logical device in backend diagnostics.
	Label string
}

// adapterType maps a device type to the gpucontext adapter classification.
func adapterType(t gputypes.DeviceType) gpucontext.AdapterType {
	switch t {
	case gputypes.DeviceTypeDiscreteGPU:
		return gpucontext.AdapterTypeDiscrete
	case gputypes.DeviceTypeIntegratedGPU:
		return gpucontext.AdapterTypeIntegrated
	case gputypes.DeviceTypeCPU:
		return gpucontext.AdapterTypeSoftware
	default:
		return gpucontext.AdapterTypeUnknown
	}
}

// checkComputeCapable rejects CPU and software adapters. The software HAL
// accepts WGSL pipelines but skips their dispatches, leaving the output
// buffer zeroed.
func checkComputeCapable(info gputypes.AdapterInfo) error {
	if info.Backend == gputypes.BackendEmpty || info.DeviceType == gputypes.DeviceTypeCPU {
		return fmt.Errorf("%w: %q is a %s adapter on the %s backend",
			ErrNoAdapter, info.Name, info.DeviceType, info.Backend)
	}
	return nil
}
