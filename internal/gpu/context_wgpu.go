//go:build !nogpu

package gpu

import (
	"context"
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu"

	// Register every HAL backend available on this platform.
	_ "github.com/gogpu/wgpu/hal/allbackends"
)

// Context owns the device and queue of one blur run.
//
// Context implements gpucontext.DeviceProvider so the same device can be
// handed to other gogpu libraries. It has no surface; SurfaceFormat
// reports TextureFormatUndefined.
type Context struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	info gputypes.AdapterInfo

	dev Device
	q   Queue

	// external is set when the device came from a DeviceProvider and
	// must not be released here.
	external bool
	closed   bool
}

var _ gpucontext.DeviceProvider = (*Context)(nil)

// Acquire opens a compute-capable device and its queue.
//
// Failure to find an adapter yields ErrNoAdapter, as does an adapter that
// cannot execute compute kernels (a CPU or software adapter). Failure to
// open a device yields ErrNoDevice. Neither is retried.
func Acquire(ctx context.Context, opts AcquireOptions) (*Context, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	backends := opts.Backends
	if backends == 0 {
		backends = wgpu.BackendsAll
	}
	instance, err := wgpu.CreateInstance(&wgpu.InstanceDescriptor{Backends: backends})
	if err != nil {
		return nil, fmt.Errorf("%w: create instance: %w", ErrNoAdapter, err)
	}

	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference:      opts.PowerPreference,
		ForceFallbackAdapter: opts.ForceFallbackAdapter,
	})
	if err != nil {
		instance.Release()
		return nil, fmt.Errorf("%w: %w", ErrNoAdapter, err)
	}
	info := adapter.Info()
	logAdapter(info)
	if err := checkComputeCapable(info); err != nil {
		adapter.Release()
		instance.Release()
		return nil, err
	}

	label := opts.Label
	if label == "" {
		label = "gpublur-device"
	}
	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label:          label,
		RequiredLimits: adapter.Limits(),
	})
	if err != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("%w: %s: %w", ErrNoDevice, info.Name, err)
	}

	c := &Context{
		instance: instance,
		adapter:  adapter,
		device:   device,
		queue:    device.Queue(),
		info:     info,
	}
	c.dev = NewWGPUDevice(c.device)
	c.q = NewWGPUQueue(c.queue)
	return c, nil
}

// FromProvider wraps a device owned by another gogpu component. The
// provider's Device and Queue must be *wgpu.Device and *wgpu.Queue.
// Close on the returned Context leaves the provider's device open.
func FromProvider(p gpucontext.DeviceProvider) (*Context, error) {
	if p == nil {
		return nil, ErrForeignProvider
	}
	device, ok := p.Device().(*wgpu.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: device is %T", ErrForeignProvider, p.Device())
	}
	queue, ok := p.Queue().(*wgpu.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: queue is %T", ErrForeignProvider, p.Queue())
	}
	c := &Context{
		device:   device,
		queue:    queue,
		external: true,
		info:     gputypes.AdapterInfo{Name: p.AdapterInfo().Name},
	}
	if a, ok := p.Adapter().(*wgpu.Adapter); ok && a != nil {
		c.adapter = a
		c.info = a.Info()
		if err := checkComputeCapable(c.info); err != nil {
			return nil, err
		}
	}
	c.dev = NewWGPUDevice(device)
	c.q = NewWGPUQueue(queue)
	slogger().Info("gpu: using shared device", "adapter", c.info.Name)
	return c, nil
}

// Compute returns the pipeline-facing device and queue.
func (c *Context) Compute() (Device, Queue) { return c.dev, c.q }

// Info returns the adapter description reported by the backend.
func (c *Context) Info() gputypes.AdapterInfo { return c.info }

// Device implements gpucontext.DeviceProvider. It returns *wgpu.Device.
func (c *Context) Device() gpucontext.Device { return c.device }

// Queue implements gpucontext.DeviceProvider. It returns *wgpu.Queue.
func (c *Context) Queue() gpucontext.Queue { return c.queue }

// Adapter implements gpucontext.DeviceProvider. It returns *wgpu.Adapter,
// or nil for a provider-backed context without one.
func (c *Context) Adapter() gpucontext.Adapter {
	if c.adapter == nil {
		return nil
	}
	return c.adapter
}

// SurfaceFormat implements gpucontext.DeviceProvider. A compute-only
// context has no surface.
func (c *Context) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatUndefined
}

// AdapterInfo implements gpucontext.DeviceProvider.
func (c *Context) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{Name: c.info.Name, Type: adapterType(c.info.DeviceType)}
}

// Close releases device, adapter and instance in reverse order of creation.
// Calling Close more than once is a no-op.
func (c *Context) Close() error {
	if c == nil || c.closed {
		return nil
	}
	c.closed = true
	if c.external {
		return nil
	}
	// Drain outstanding work so deferred destruction runs before the
	// device goes away.
	var errs []error
	if err := c.device.WaitIdle(); err != nil && !errors.Is(err, wgpu.ErrReleased) {
		errs = append(errs, fmt.Errorf("wait idle: %w", err))
	}
	c.device.Release()
	c.adapter.Release()
	c.instance.Release()
	return errors.Join(errs...)
}

func logAdapter(info gputypes.AdapterInfo) {
	log := slogger()
	log.Info("gpu: adapter selected",
		"name", info.Name,
		"vendor", info.Vendor,
		"backend", info.Backend.String(),
		"type", info.DeviceType.String(),
		"driver", info.Driver)
	if info.DeviceType == gputypes.DeviceTypeCPU || info.Backend == gputypes.BackendEmpty {
		log.Warn("gpu: adapter cannot execute compute kernels, rejecting it", "name", info.Name)
	}
}
