// Package gputest provides a host-memory implementation of the gpu device
// interfaces for tests.
//
// The fake executes the blur kernel with the filter package's reference
// blur, reading width, height and sigma back out of the substituted kernel
// source, and writes only the pixels covered by the dispatched grid.
package gputest

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpublur/internal/filter"
	"github.com/gogpu/gpublur/internal/gpu"
)

// Device is a fake gpu.Device. The exported fields configure failure
// injection and must be set before use.
type Device struct {
	// MapStatus is delivered to map callbacks. Zero is success.
	MapStatus gpu.BufferMapAsyncStatus

	// StallMaps keeps map callbacks pending forever.
	StallMaps bool

	// ShaderError, if set, is returned by CreateShaderModule.
	ShaderError error

	// DeviceLimits is returned by Limits. Zero value means DefaultLimits.
	DeviceLimits *gputypes.Limits

	// FinishError, if set, is returned by CommandEncoder.Finish.
	FinishError error

	mu          sync.Mutex
	pending     []pendingMap
	live        int
	submissions uint64
	grids       []gpu.DispatchGrid
	polls       int
	discards    int
}

type pendingMap struct {
	buf *Buffer
	cb  func(gpu.BufferMapAsyncStatus)
}

// NewDevice returns a fake device and its queue.
func NewDevice() (*Device, *Queue) {
	d := &Device{}
	return d, &Queue{dev: d}
}

// Live reports the number of created and not yet released objects.
func (d *Device) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live
}

// Grids returns every grid dispatched so far.
func (d *Device) Grids() []gpu.DispatchGrid {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]gpu.DispatchGrid(nil), d.grids...)
}

// Submissions returns the number of Submit calls that succeeded.
func (d *Device) Submissions() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.submissions
}

// Polls returns the number of Poll calls.
func (d *Device) Polls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.polls
}

// Discards returns the number of command encoders discarded.
func (d *Device) Discards() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.discards
}

func (d *Device) track() {
	d.mu.Lock()
	d.live++
	d.mu.Unlock()
}

func (d *Device) untrack() {
	d.mu.Lock()
	d.live--
	d.mu.Unlock()
}

// Limits implements gpu.Device.
func (d *Device) Limits() gputypes.Limits {
	if d.DeviceLimits != nil {
		return *d.DeviceLimits
	}
	return gputypes.DefaultLimits()
}

// CreateBuffer implements gpu.Device.
func (d *Device) CreateBuffer(desc *gpu.BufferDescriptor) (gpu.Buffer, error) {
	if desc.Size == 0 {
		return nil, errors.New("fake: zero-sized buffer")
	}
	b := &Buffer{
		dev:   d,
		label: desc.Label,
		usage: desc.Usage,
		data:  make([]byte, desc.Size),
	}
	if desc.MappedAtCreation {
		b.state = stateMapped
	}
	d.track()
	return b, nil
}

// CreateShaderModule implements gpu.Device.
func (d *Device) CreateShaderModule(label, source string) (gpu.ShaderModule, error) {
	if d.ShaderError != nil {
		return nil, d.ShaderError
	}
	d.track()
	return &object{dev: d, label: label, source: source}, nil
}

// CreateBindGroupLayout implements gpu.Device.
func (d *Device) CreateBindGroupLayout(label string, entries []gputypes.BindGroupLayoutEntry) (gpu.BindGroupLayout, error) {
	d.track()
	return &object{dev: d, label: label, layout: entries}, nil
}

// CreatePipelineLayout implements gpu.Device.
func (d *Device) CreatePipelineLayout(label string, layouts ...gpu.BindGroupLayout) (gpu.PipelineLayout, error) {
	d.track()
	return &object{dev: d, label: label}, nil
}

// CreateComputePipeline implements gpu.Device.
func (d *Device) CreateComputePipeline(desc *gpu.ComputePipelineDescriptor) (gpu.ComputePipeline, error) {
	m, ok := desc.Module.(*object)
	if !ok {
		return nil, fmt.Errorf("fake: foreign shader module %T", desc.Module)
	}
	if !strings.Contains(m.source, "fn "+desc.EntryPoint+"(") {
		return nil, fmt.Errorf("fake: entry point %q not found", desc.EntryPoint)
	}
	d.track()
	return &object{dev: d, label: desc.Label, source: m.source}, nil
}

// CreateBindGroup implements gpu.Device.
func (d *Device) CreateBindGroup(desc *gpu.BindGroupDescriptor) (gpu.BindGroup, error) {
	layout, ok := desc.Layout.(*object)
	if !ok {
		return nil, fmt.Errorf("fake: foreign bind group layout %T", desc.Layout)
	}
	g := &object{dev: d, label: desc.Label, buffers: map[uint32]*Buffer{}}
	for _, e := range desc.Entries {
		b, ok := e.Buffer.(*Buffer)
		if !ok {
			return nil, fmt.Errorf("fake: foreign buffer %T", e.Buffer)
		}
		if !layoutHas(layout.layout, e.Binding) {
			return nil, fmt.Errorf("fake: binding %d not in layout", e.Binding)
		}
		g.buffers[e.Binding] = b
	}
	d.track()
	return g, nil
}

func layoutHas(entries []gputypes.BindGroupLayoutEntry, binding uint32) bool {
	for _, e := range entries {
		if e.Binding == binding {
			return true
		}
	}
	return false
}

// CreateCommandEncoder implements gpu.Device.
func (d *Device) CreateCommandEncoder(string) (gpu.CommandEncoder, error) {
	return &encoder{dev: d}, nil
}

// Poll implements gpu.Device. Work runs synchronously on Submit, so every
// pending map resolves on the first poll unless StallMaps is set.
func (d *Device) Poll(bool) bool {
	d.mu.Lock()
	d.polls++
	if d.StallMaps || len(d.pending) == 0 {
		d.mu.Unlock()
		return false
	}
	pending := d.pending
	d.pending = nil
	status := d.MapStatus
	d.mu.Unlock()

	for _, p := range pending {
		if status == gpu.BufferMapAsyncStatusSuccess {
			p.buf.state = stateMapped
		} else {
			p.buf.state = stateUnmapped
		}
		p.cb(status)
	}
	return true
}

// Queue is a fake gpu.Queue.
type Queue struct {
	dev *Device
}

// Submit implements gpu.Queue by executing every recorded command in order.
func (q *Queue) Submit(buffers ...gpu.CommandBuffer) (uint64, error) {
	for _, cb := range buffers {
		c, ok := cb.(*commandBuffer)
		if !ok {
			return 0, fmt.Errorf("fake: foreign command buffer %T", cb)
		}
		for _, run := range c.cmds {
			if err := run(); err != nil {
				return 0, err
			}
		}
	}
	q.dev.mu.Lock()
	defer q.dev.mu.Unlock()
	q.dev.submissions++
	return q.dev.submissions, nil
}

type mapState int

const (
	stateUnmapped mapState = iota
	statePending
	stateMapped
)

// Buffer is a fake gpu.Buffer backed by a byte slice.
type Buffer struct {
	dev      *Device
	label    string
	usage    gputypes.BufferUsage
	data     []byte
	state    mapState
	released bool
}

// Bytes exposes the buffer contents for assertions.
func (b *Buffer) Bytes() []byte { return b.data }

func (b *Buffer) Label() string               { return b.label }
func (b *Buffer) Size() uint64                { return uint64(len(b.data)) }
func (b *Buffer) Usage() gputypes.BufferUsage { return b.usage }

func (b *Buffer) MapAsync(mode gputypes.MapMode, offset, size uint64, cb func(gpu.BufferMapAsyncStatus)) error {
	if b.state != stateUnmapped {
		return errors.New("fake: buffer already mapped")
	}
	if mode == gputypes.MapModeRead && !b.usage.Contains(gputypes.BufferUsageMapRead) {
		return errors.New("fake: buffer lacks MapRead usage")
	}
	if offset+size > b.Size() {
		return errors.New("fake: map range out of bounds")
	}
	b.state = statePending
	b.dev.mu.Lock()
	b.dev.pending = append(b.dev.pending, pendingMap{buf: b, cb: cb})
	b.dev.mu.Unlock()
	return nil
}

func (b *Buffer) MappedRange(offset, size uint64) ([]byte, error) {
	if b.state != stateMapped {
		return nil, errors.New("fake: buffer not mapped")
	}
	if offset+size > b.Size() {
		return nil, errors.New("fake: range out of bounds")
	}
	return b.data[offset : offset+size], nil
}

func (b *Buffer) Unmap() error {
	b.state = stateUnmapped
	return nil
}

func (b *Buffer) Release() {
	if !b.released {
		b.released = true
		b.dev.untrack()
	}
}

// object backs every opaque fake resource.
type object struct {
	dev      *Device
	label    string
	source   string
	layout   []gputypes.BindGroupLayoutEntry
	buffers  map[uint32]*Buffer
	released bool
}

func (o *object) Release() {
	if !o.released {
		o.released = true
		o.dev.untrack()
	}
}

type encoder struct {
	dev  *Device
	cmds []func() error
}

func (e *encoder) BeginComputePass(string) (gpu.ComputePass, error) {
	return &pass{enc: e}, nil
}

func (e *encoder) CopyBufferToBuffer(src gpu.Buffer, srcOffset uint64, dst gpu.Buffer, dstOffset, size uint64) {
	e.cmds = append(e.cmds, func() error {
		s, ok1 := src.(*Buffer)
		d, ok2 := dst.(*Buffer)
		if !ok1 || !ok2 {
			return errors.New("fake: foreign buffer in copy")
		}
		if !s.usage.Contains(gputypes.BufferUsageCopySrc) || !d.usage.Contains(gputypes.BufferUsageCopyDst) {
			return errors.New("fake: copy usage mismatch")
		}
		copy(d.data[dstOffset:dstOffset+size], s.data[srcOffset:srcOffset+size])
		return nil
	})
}

func (e *encoder) Finish() (gpu.CommandBuffer, error) {
	if e.dev.FinishError != nil {
		return nil, e.dev.FinishError
	}
	return &commandBuffer{cmds: e.cmds}, nil
}

func (e *encoder) Discard() {
	e.cmds = nil
	e.dev.mu.Lock()
	e.dev.discards++
	e.dev.mu.Unlock()
}

type commandBuffer struct {
	cmds []func() error
}

func (*commandBuffer) Release() {}

type pass struct {
	enc      *encoder
	pipeline *object
	group    *object
}

func (p *pass) SetPipeline(pl gpu.ComputePipeline)     { p.pipeline, _ = pl.(*object) }
func (p *pass) SetBindGroup(_ uint32, g gpu.BindGroup) { p.group, _ = g.(*object) }

func (p *pass) Dispatch(x, y, z uint32) {
	pipeline, group := p.pipeline, p.group
	grid := gpu.DispatchGrid{X: x, Y: y, Z: z}
	dev := p.enc.dev
	p.enc.cmds = append(p.enc.cmds, func() error {
		if pipeline == nil || group == nil {
			return errors.New("fake: dispatch without pipeline or bind group")
		}
		dev.mu.Lock()
		dev.grids = append(dev.grids, grid)
		dev.mu.Unlock()
		return runBlur(pipeline.source, group, grid)
	})
}

func (p *pass) End() error { return nil }

var (
	widthRe  = regexp.MustCompile(`const WIDTH: u32 = (\d+)u;`)
	heightRe = regexp.MustCompile(`const HEIGHT: u32 = (\d+)u;`)
	sigmaRe  = regexp.MustCompile(`const SIGMA: f32 = ([0-9.eE+-]+);`)
)

// runBlur reads the baked parameters out of src and writes the reference
// blur of binding 0 into binding 1 for every pixel the grid covers.
func runBlur(src string, group *object, grid gpu.DispatchGrid) error {
	w, err := matchUint(widthRe, src)
	if err != nil {
		return err
	}
	h, err := matchUint(heightRe, src)
	if err != nil {
		return err
	}
	m := sigmaRe.FindStringSubmatch(src)
	if m == nil {
		return errors.New("fake: kernel has no SIGMA constant")
	}
	sigma, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return fmt.Errorf("fake: SIGMA: %w", err)
	}

	in, out := group.buffers[gpu.InputBinding], group.buffers[gpu.OutputBinding]
	if in == nil || out == nil {
		return errors.New("fake: bind group missing input or output")
	}
	blurred, err := filter.Blur(in.data, w, h, sigma)
	if err != nil {
		return err
	}

	coverX, coverY := grid.Invocations()
	for y := 0; y < h && uint64(y) < coverY; y++ {
		for x := 0; x < w && uint64(x) < coverX; x++ {
			i := (y*w + x) * 4
			copy(out.data[i:i+4], blurred[i:i+4])
		}
	}
	return nil
}

func matchUint(re *regexp.Regexp, src string) (int, error) {
	m := re.FindStringSubmatch(src)
	if m == nil {
		return 0, fmt.Errorf("fake: kernel does not match %s", re)
	}
	return strconv.Atoi(m[1])
}
