//go:build !nogpu

package gpu

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu"
)

// wgpuDevice adapts *wgpu.Device to Device.
//
// wgpu exposes MapAsync as a pending handle; wgpuDevice keeps the handles
// with their callbacks and resolves them on Poll, which gives callers the
// callback-and-poll model of the Device interface.
type wgpuDevice struct {
	dev *wgpu.Device

	mu      sync.Mutex
	pending []pendingMap
}

type pendingMap struct {
	handle   *wgpu.MapPending
	callback func(BufferMapAsyncStatus)
}

// NewWGPUDevice wraps an open wgpu device. The caller keeps ownership of
// dev; releasing the wrapper does not release the device.
func NewWGPUDevice(dev *wgpu.Device) Device {
	return &wgpuDevice{dev: dev}
}

// wgpuQueue adapts *wgpu.Queue to Queue.
type wgpuQueue struct {
	q *wgpu.Queue
}

// NewWGPUQueue wraps a wgpu queue.
func NewWGPUQueue(q *wgpu.Queue) Queue {
	return wgpuQueue{q: q}
}

func (q wgpuQueue) Submit(buffers ...CommandBuffer) (uint64, error) {
	raw := make([]*wgpu.CommandBuffer, 0, len(buffers))
	for _, b := range buffers {
		cb, ok := b.(wgpuCommandBuffer)
		if !ok {
			return 0, fmt.Errorf("gpu: foreign command buffer %T", b)
		}
		raw = append(raw, cb.cb)
	}
	return q.q.Submit(raw...)
}

func (d *wgpuDevice) Limits() gputypes.Limits { return d.dev.Limits() }

func (d *wgpuDevice) CreateBuffer(desc *BufferDescriptor) (Buffer, error) {
	buf, err := d.dev.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            desc.Label,
		Size:             desc.Size,
		Usage:            desc.Usage,
		MappedAtCreation: desc.MappedAtCreation,
	})
	if err != nil {
		return nil, err
	}
	return &wgpuBuffer{buf: buf, dev: d}, nil
}

func (d *wgpuDevice) CreateShaderModule(label, source string) (ShaderModule, error) {
	m, err := d.dev.CreateShaderModule(&wgpu.ShaderModuleDescriptor{Label: label, WGSL: source})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (d *wgpuDevice) CreateBindGroupLayout(label string, entries []gputypes.BindGroupLayoutEntry) (BindGroupLayout, error) {
	l, err := d.dev.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{Label: label, Entries: entries})
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (d *wgpuDevice) CreatePipelineLayout(label string, layouts ...BindGroupLayout) (PipelineLayout, error) {
	raw := make([]*wgpu.BindGroupLayout, 0, len(layouts))
	for _, l := range layouts {
		bgl, ok := l.(*wgpu.BindGroupLayout)
		if !ok {
			return nil, fmt.Errorf("gpu: foreign bind group layout %T", l)
		}
		raw = append(raw, bgl)
	}
	pl, err := d.dev.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{Label: label, BindGroupLayouts: raw})
	if err != nil {
		return nil, err
	}
	return pl, nil
}

func (d *wgpuDevice) CreateComputePipeline(desc *ComputePipelineDescriptor) (ComputePipeline, error) {
	layout, ok := desc.Layout.(*wgpu.PipelineLayout)
	if !ok {
		return nil, fmt.Errorf("gpu: foreign pipeline layout %T", desc.Layout)
	}
	module, ok := desc.Module.(*wgpu.ShaderModule)
	if !ok {
		return nil, fmt.Errorf("gpu: foreign shader module %T", desc.Module)
	}
	p, err := d.dev.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:      desc.Label,
		Layout:     layout,
		Module:     module,
		EntryPoint: desc.EntryPoint,
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (d *wgpuDevice) CreateBindGroup(desc *BindGroupDescriptor) (BindGroup, error) {
	layout, ok := desc.Layout.(*wgpu.BindGroupLayout)
	if !ok {
		return nil, fmt.Errorf("gpu: foreign bind group layout %T", desc.Layout)
	}
	entries := make([]wgpu.BindGroupEntry, 0, len(desc.Entries))
	for _, e := range desc.Entries {
		buf, err := rawBuffer(e.Buffer)
		if err != nil {
			return nil, err
		}
		entries = append(entries, wgpu.BindGroupEntry{
			Binding: e.Binding,
			Buffer:  buf,
			Offset:  e.Offset,
			Size:    e.Size,
		})
	}
	bg, err := d.dev.CreateBindGroup(&wgpu.BindGroupDescriptor{Label: desc.Label, Layout: layout, Entries: entries})
	if err != nil {
		return nil, err
	}
	return bg, nil
}

func (d *wgpuDevice) CreateCommandEncoder(label string) (CommandEncoder, error) {
	enc, err := d.dev.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, err
	}
	return &wgpuEncoder{enc: enc}, nil
}

func (d *wgpuDevice) Poll(wait bool) bool {
	mode := wgpu.PollPoll
	if wait {
		mode = wgpu.PollWait
	}
	d.dev.Poll(mode)

	type fired struct {
		cb     func(BufferMapAsyncStatus)
		status BufferMapAsyncStatus
	}
	var done []fired

	d.mu.Lock()
	kept := d.pending[:0]
	for _, p := range d.pending {
		ready, err := p.handle.Status()
		if !ready {
			kept = append(kept, p)
			continue
		}
		done = append(done, fired{cb: p.callback, status: mapStatus(err)})
	}
	d.pending = kept
	d.mu.Unlock()

	// Callbacks run outside the lock so they may call back into the device.
	for _, f := range done {
		f.cb(f.status)
	}
	return len(done) > 0
}

func (d *wgpuDevice) track(h *wgpu.MapPending, cb func(BufferMapAsyncStatus)) {
	d.mu.Lock()
	d.pending = append(d.pending, pendingMap{handle: h, callback: cb})
	d.mu.Unlock()
}

func mapStatus(err error) BufferMapAsyncStatus {
	switch {
	case err == nil:
		return BufferMapAsyncStatusSuccess
	case errors.Is(err, wgpu.ErrMapAlignment), errors.Is(err, wgpu.ErrMapInvalidMode),
		errors.Is(err, wgpu.ErrMapAlreadyMapped), errors.Is(err, wgpu.ErrMapAlreadyPending):
		return BufferMapAsyncStatusValidationError
	case errors.Is(err, wgpu.ErrDeviceLost), errors.Is(err, wgpu.ErrMapDeviceLost):
		return BufferMapAsyncStatusDeviceLost
	case errors.Is(err, wgpu.ErrReleased), errors.Is(err, wgpu.ErrBufferDestroyed):
		return BufferMapAsyncStatusDestroyedBeforeCallback
	case errors.Is(err, wgpu.ErrMapCanceled):
		return BufferMapAsyncStatusUnmappedBeforeCallback
	default:
		return BufferMapAsyncStatusUnknown
	}
}

// wgpuBuffer adapts *wgpu.Buffer to Buffer.
type wgpuBuffer struct {
	buf    *wgpu.Buffer
	dev    *wgpuDevice
	ranges []*wgpu.MappedRange
}

func (b *wgpuBuffer) Label() string               { return b.buf.Label() }
func (b *wgpuBuffer) Size() uint64                { return b.buf.Size() }
func (b *wgpuBuffer) Usage() gputypes.BufferUsage { return b.buf.Usage() }

func (b *wgpuBuffer) MapAsync(mode gputypes.MapMode, offset, size uint64, callback func(BufferMapAsyncStatus)) error {
	var m wgpu.MapMode
	switch mode {
	case gputypes.MapModeRead:
		m = wgpu.MapModeRead
	case gputypes.MapModeWrite:
		m = wgpu.MapModeWrite
	default:
		return fmt.Errorf("gpu: invalid map mode %d", mode)
	}
	h, err := b.buf.MapAsync(m, offset, size)
	if err != nil {
		return err
	}
	b.dev.track(h, callback)
	return nil
}

func (b *wgpuBuffer) MappedRange(offset, size uint64) ([]byte, error) {
	r, err := b.buf.MappedRange(offset, size)
	if err != nil {
		return nil, err
	}
	b.ranges = append(b.ranges, r)
	return r.Bytes(), nil
}

func (b *wgpuBuffer) Unmap() error {
	for _, r := range b.ranges {
		r.Release()
	}
	b.ranges = nil
	return b.buf.Unmap()
}

func (b *wgpuBuffer) Release() { b.buf.Release() }

func rawBuffer(buf Buffer) (*wgpu.Buffer, error) {
	wb, ok := buf.(*wgpuBuffer)
	if !ok || wb == nil {
		return nil, fmt.Errorf("gpu: foreign buffer %T", buf)
	}
	return wb.buf, nil
}

// wgpuEncoder adapts *wgpu.CommandEncoder to CommandEncoder.
type wgpuEncoder struct {
	enc *wgpu.CommandEncoder
	err error
}

func (e *wgpuEncoder) BeginComputePass(label string) (ComputePass, error) {
	p, err := e.enc.BeginComputePass(&wgpu.ComputePassDescriptor{Label: label})
	if err != nil {
		return nil, err
	}
	return wgpuComputePass{p: p}, nil
}

func (e *wgpuEncoder) CopyBufferToBuffer(src Buffer, srcOffset uint64, dst Buffer, dstOffset, size uint64) {
	s, err := rawBuffer(src)
	if err != nil {
		e.err = err
		return
	}
	d, err := rawBuffer(dst)
	if err != nil {
		e.err = err
		return
	}
	e.enc.CopyBufferToBuffer(s, srcOffset, d, dstOffset, size)
}

func (e *wgpuEncoder) Finish() (CommandBuffer, error) {
	if e.err != nil {
		e.enc.DiscardEncoding()
		return nil, e.err
	}
	cb, err := e.enc.Finish()
	if err != nil {
		return nil, err
	}
	return wgpuCommandBuffer{cb: cb}, nil
}

func (e *wgpuEncoder) Discard() { e.enc.DiscardEncoding() }

type wgpuCommandBuffer struct {
	cb *wgpu.CommandBuffer
}

func (c wgpuCommandBuffer) Release() { c.cb.Release() }

// wgpuComputePass adapts *wgpu.ComputePassEncoder to ComputePass.
type wgpuComputePass struct {
	p *wgpu.ComputePassEncoder
}

func (c wgpuComputePass) SetPipeline(pipeline ComputePipeline) {
	if p, ok := pipeline.(*wgpu.ComputePipeline); ok {
		c.p.SetPipeline(p)
	}
}

func (c wgpuComputePass) SetBindGroup(index uint32, group BindGroup) {
	if bg, ok := group.(*wgpu.BindGroup); ok {
		c.p.SetBindGroup(index, bg, nil)
	}
}

func (c wgpuComputePass) Dispatch(x, y, z uint32) { c.p.Dispatch(x, y, z) }
func (c wgpuComputePass) End() error              { return c.p.End() }
