package gpublur

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpublur/internal/filter"
	"github.com/gogpu/gpublur/internal/gpu"
	"github.com/gogpu/gpublur/internal/image"
)

// VerifyTolerance is the largest per-channel difference between the GPU
// result and the CPU reference that WithVerify accepts.
const VerifyTolerance = 2

// Image is a non-premultiplied RGBA8 raster.
type Image = image.Image

// DispatchGrid is the number of 8×8 workgroups launched along each axis.
type DispatchGrid = gpu.DispatchGrid

// Result describes one completed blur.
type Result struct {
	Output    string // path written by BlurFile, empty for Blur
	Width     uint32
	Height    uint32
	Intensity float64
	Grid      DispatchGrid
	Adapter   string
	Elapsed   time.Duration

	// MaxDeviation is the largest channel difference from the CPU
	// reference, or -1 when verification was off.
	MaxDeviation int
}

// Device runs blurs on one compute device. Runs on the same Device are
// serialized.
type Device struct {
	opts  options
	gctx  *gpu.Context // nil when the device was injected
	dev   gpu.Device
	queue gpu.Queue
	info  gputypes.AdapterInfo

	mu     sync.Mutex
	closed bool
}

// Open acquires a compute device according to opts.
//
// Without WithDeviceProvider a new adapter and device are requested over
// the configured backends; ErrNoAdapter or ErrNoDevice is returned when
// that fails.
func Open(ctx context.Context, opts ...Option) (*Device, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	d := &Device{opts: o}
	switch {
	case o.device != nil:
		d.dev, d.queue = o.device, o.queue
		d.info = gputypes.AdapterInfo{Name: "host", DeviceType: gputypes.DeviceTypeOther}
		return d, nil
	case o.provider != nil:
		c, err := gpu.FromProvider(o.provider)
		if err != nil {
			return nil, err
		}
		d.gctx = c
	default:
		c, err := gpu.Acquire(ctx, gpu.AcquireOptions{
			Backends:        o.backends,
			PowerPreference: o.power,
			Label:           "gpublur",
		})
		if err != nil {
			return nil, err
		}
		d.gctx = c
	}
	d.dev, d.queue = d.gctx.Compute()
	d.info = d.gctx.Info()
	return d, nil
}

// Info describes the adapter the device was opened on.
func (d *Device) Info() gputypes.AdapterInfo { return d.info }

// Provider exposes the underlying device to other gogpu libraries. It is
// nil for a device that was not acquired through wgpu.
func (d *Device) Provider() gpucontext.DeviceProvider {
	if d.gctx == nil {
		return nil
	}
	return d.gctx
}

// Close releases the device. Calling Close more than once is a no-op.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	if d.gctx != nil {
		return d.gctx.Close()
	}
	return nil
}

// Blur returns src blurred with a Gaussian of standard deviation
// intensity. src is not modified. intensity must lie in
// [MinIntensity, MaxIntensity].
func (d *Device) Blur(ctx context.Context, src *Image, intensity float64) (*Image, error) {
	out, _, err := d.run(ctx, src, intensity)
	return out, err
}

// run executes buffer setup, kernel compile, binding, dispatch and
// readback in order. Every device object it creates is released before
// it returns.
func (d *Device) run(ctx context.Context, src *Image, intensity float64) (*Image, Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	res := Result{Intensity: intensity, Adapter: d.info.Name, MaxDeviation: -1}
	if d.closed {
		return nil, res, ErrClosed
	}
	if err := src.Validate(); err != nil {
		return nil, res, err
	}
	w, h := src.Width, src.Height
	res.Width, res.Height = w, h
	start := time.Now()

	buffers, err := gpu.CreateBuffers(d.dev, w, h, src.Pix)
	if err != nil {
		return nil, res, err
	}
	defer buffers.Release()

	kernel, err := gpu.Compile(d.dev, d.opts.template, gpu.KernelParameters{Width: w, Height: h, Intensity: intensity})
	if err != nil {
		return nil, res, err
	}
	defer kernel.Release()

	pipeline, err := gpu.BuildPipeline(d.dev, kernel, gpu.EntryPoint)
	if err != nil {
		return nil, res, err
	}
	defer pipeline.Release()

	bindings, err := gpu.Bind(d.dev, pipeline, buffers.Input, buffers.Output)
	if err != nil {
		return nil, res, err
	}
	defer bindings.Release()

	batch, err := gpu.Dispatch(d.dev, d.queue, bindings, buffers.Staging, w, h)
	if err != nil {
		return nil, res, err
	}
	res.Grid = batch.Grid

	readCtx := ctx
	if d.opts.mapTimeout > 0 {
		var cancel context.CancelFunc
		readCtx, cancel = context.WithTimeout(ctx, d.opts.mapTimeout)
		defer cancel()
	}
	pix, err := gpu.Read(readCtx, d.dev, buffers.Staging)
	if err != nil {
		return nil, res, err
	}
	res.Elapsed = time.Since(start)
	out := &Image{Width: w, Height: h, Pix: pix}

	if d.opts.verify {
		worst, err := verify(src, out, intensity)
		res.MaxDeviation = worst
		if err != nil {
			return nil, res, err
		}
	}

	Logger().Debug("gpublur: blur complete",
		"width", w, "height", h, "intensity", intensity,
		"grid_x", res.Grid.X, "grid_y", res.Grid.Y, "elapsed", res.Elapsed)
	return out, res, nil
}

// verify compares out with the CPU reference blur of src.
func verify(src, out *Image, intensity float64) (int, error) {
	want, err := filter.Blur(src.Pix, int(src.Width), int(src.Height), intensity)
	if err != nil {
		return -1, fmt.Errorf("verify: %w", err)
	}
	worst := filter.MaxDeviation(out.Pix, want)
	Logger().Info("gpublur: verified against CPU reference", "max_deviation", worst)
	if worst < 0 || worst > VerifyTolerance {
		return worst, fmt.Errorf("%w: max channel deviation %d, tolerance %d", ErrVerifyFailed, worst, VerifyTolerance)
	}
	return worst, nil
}

// BlurFile loads in, blurs it with the intensity set by WithIntensity and
// writes the result to out. The output format follows out's extension.
// The input is decoded before any device is acquired, and nothing is
// written unless the whole run succeeds.
func BlurFile(ctx context.Context, in, out string, opts ...Option) (*Result, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if _, err := image.FormatFromPath(out); err != nil {
		return nil, err
	}

	src, err := image.Load(in)
	if err != nil {
		return nil, err
	}

	d, err := Open(ctx, opts...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = d.Close() }()

	blurred, res, err := d.run(ctx, src, o.intensity)
	if err != nil {
		return nil, err
	}
	if err := image.Save(out, blurred); err != nil {
		return nil, err
	}
	res.Output = out
	Logger().Info("gpublur: wrote output",
		"path", out, "width", res.Width, "height", res.Height, "adapter", res.Adapter)
	return &res, nil
}
