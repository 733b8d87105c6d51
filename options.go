package gpublur

import (
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpublur/internal/gpu"
)

// Option configures Open and BlurFile.
//
// Example:
//
//	d, err := gpublur.Open(ctx,
//	    gpublur.WithBackends(gputypes.BackendsVulkan),
//	    gpublur.WithMapTimeout(5*time.Second),
//	)
type Option func(*options)

type options struct {
	intensity  float64
	template   string
	backends   gputypes.Backends
	power      gputypes.PowerPreference
	mapTimeout time.Duration
	verify     bool
	provider   gpucontext.DeviceProvider

	// device and queue bypass adapter selection. Tests only.
	device gpu.Device
	queue  gpu.Queue
}

func defaultOptions() options {
	return options{
		intensity: DefaultIntensity,
		template:  gpu.GaussianBlurTemplate(),
		backends:  gputypes.BackendsAll,
		power:     gputypes.PowerPreferenceHighPerformance,
	}
}

// WithIntensity sets the blur standard deviation used by BlurFile.
// The value must lie in [MinIntensity, MaxIntensity]; see ClampIntensity.
func WithIntensity(v float64) Option {
	return func(o *options) {
		o.intensity = v
	}
}

// WithKernelTemplate replaces the built-in WGSL kernel. The template must
// contain the {{WIDTH}}, {{HEIGHT}} and {{INTENSITY}} placeholders and
// keep the entry point and binding layout of the built-in kernel.
func WithKernelTemplate(src string) Option {
	return func(o *options) {
		if src != "" {
			o.template = src
		}
	}
}

// WithBackends restricts which graphics APIs are enumerated.
func WithBackends(b gputypes.Backends) Option {
	return func(o *options) {
		o.backends = b
	}
}

// WithPowerPreference selects between integrated and discrete adapters.
func WithPowerPreference(p gputypes.PowerPreference) Option {
	return func(o *options) {
		o.power = p
	}
}

// WithMapTimeout bounds the wait for the readback mapping. Zero waits
// indefinitely. Expiry fails the run with ErrMapTimeout.
func WithMapTimeout(d time.Duration) Option {
	return func(o *options) {
		o.mapTimeout = d
	}
}

// WithVerify recomputes every result on the CPU and fails with
// ErrVerifyFailed when any channel differs by more than VerifyTolerance.
func WithVerify(on bool) Option {
	return func(o *options) {
		o.verify = on
	}
}

// WithDeviceProvider runs on a device owned by another gogpu component
// instead of acquiring one. Close leaves that device open.
func WithDeviceProvider(p gpucontext.DeviceProvider) Option {
	return func(o *options) {
		o.provider = p
	}
}

func withDevice(dev gpu.Device, q gpu.Queue) Option {
	return func(o *options) {
		o.device, o.queue = dev, q
	}
}
