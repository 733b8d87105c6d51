//go:build nogpu

package gpu

import (
	"context"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// Context is a placeholder in nogpu builds. Acquire never returns one.
type Context struct {
	dev Device
	q   Queue
}

// Acquire always fails in nogpu builds.
func Acquire(context.Context, AcquireOptions) (*Context, error) {
	return nil, ErrNoAdapter
}

// FromProvider always fails in nogpu builds.
func FromProvider(gpucontext.DeviceProvider) (*Context, error) {
	return nil, ErrNoAdapter
}

func (c *Context) Compute() (Device, Queue) {
	return c.dev, c.q
}

func (c *Context) Info() gputypes.AdapterInfo {
	return gputypes.AdapterInfo{}
}

func (c *Context) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{Type: adapterType(gputypes.DeviceTypeOther)}
}

func (c *Context) Close() error {
	return nil
}

func (c *Context) Device() gpucontext.Device {
	return nil
}

func (c *Context) Queue() gpucontext.Queue {
	return nil
}

func (c *Context) Adapter() gpucontext.Adapter {
	return nil
}

func (c *Context) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatUndefined
}
