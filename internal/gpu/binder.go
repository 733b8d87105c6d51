package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
)

// ErrBindingSizeMismatch is returned when a bound buffer is not exactly
// width*height*4 bytes.
var ErrBindingSizeMismatch = errors.New("gpu: bound buffer size does not match image size")

// Binding layout of the blur kernel.
const (
	// EntryPoint is the kernel function name.
	EntryPoint = "gaussian_blur"

	// InputBinding is the read-only storage slot of the source pixels.
	InputBinding uint32 = 0

	// OutputBinding is the read-write storage slot of the result pixels.
	OutputBinding uint32 = 1
)

// blurLayoutEntries is the fixed group 0 layout of the blur kernel.
var blurLayoutEntries = []gputypes.BindGroupLayoutEntry{
	{
		Binding:    InputBinding,
		Visibility: gputypes.ShaderStageCompute,
		Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage},
	},
	{
		Binding:    OutputBinding,
		Visibility: gputypes.ShaderStageCompute,
		Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage},
	},
}

// Pipeline is a compiled compute pipeline with its explicit layouts.
// It is immutable once built.
type Pipeline struct {
	Compute    ComputePipeline
	BindLayout BindGroupLayout
	PipeLayout PipelineLayout
	EntryPoint string

	width, height uint32
}

// ExpectedSize is the byte size every bound buffer must have.
func (p *Pipeline) ExpectedSize() uint64 {
	return uint64(p.width) * uint64(p.height) * BytesPerPixel
}

// Release releases the pipeline and its layouts.
func (p *Pipeline) Release() {
	if p == nil {
		return
	}
	release(p.BindLayout, p.PipeLayout, p.Compute)
	p.Compute, p.BindLayout, p.PipeLayout = nil, nil, nil
}

// BindingSet is the bind group for one pipeline and buffer pair.
type BindingSet struct {
	Group    BindGroup
	Pipeline *Pipeline
	Input    Buffer
	Output   Buffer
}

// Release releases the bind group. The buffers are owned by the caller.
func (b *BindingSet) Release() {
	if b != nil && b.Group != nil {
		b.Group.Release()
		b.Group = nil
	}
}

// BuildPipeline creates the bind group layout, pipeline layout and compute
// pipeline for kernel at entryPoint.
func BuildPipeline(dev Device, kernel *CompiledKernel, entryPoint string) (*Pipeline, error) {
	if kernel == nil || kernel.Module == nil {
		return nil, fmt.Errorf("build pipeline: %w: kernel not compiled", ErrKernelCompile)
	}
	if entryPoint == "" {
		entryPoint = EntryPoint
	}

	p := &Pipeline{
		EntryPoint: entryPoint,
		width:      kernel.Params.Width,
		height:     kernel.Params.Height,
	}
	var err error
	p.BindLayout, err = dev.CreateBindGroupLayout("gaussian_blur_bind_layout", blurLayoutEntries)
	if err != nil {
		return nil, fmt.Errorf("create bind group layout: %w", err)
	}
	p.PipeLayout, err = dev.CreatePipelineLayout("gaussian_blur_pipe_layout", p.BindLayout)
	if err != nil {
		p.Release()
		return nil, fmt.Errorf("create pipeline layout: %w", err)
	}
	p.Compute, err = dev.CreateComputePipeline(&ComputePipelineDescriptor{
		Label:      "gaussian_blur_pipeline",
		Layout:     p.PipeLayout,
		Module:     kernel.Module,
		EntryPoint: entryPoint,
	})
	if err != nil {
		p.Release()
		return nil, fmt.Errorf("create compute pipeline %q: %w", entryPoint, err)
	}
	return p, nil
}

// Bind checks both buffers against the pipeline and creates the bind group.
// A size mismatch fails here, before anything is dispatched.
func Bind(dev Device, p *Pipeline, input, output Buffer) (*BindingSet, error) {
	want := p.ExpectedSize()
	for _, b := range []struct {
		name string
		buf  Buffer
	}{{"input", input}, {"output", output}} {
		if err := requireUsage(b.buf, gputypes.BufferUsageStorage, "bind "+b.name); err != nil {
			return nil, err
		}
		if got := b.buf.Size(); got != want {
			return nil, fmt.Errorf("bind %s: %w: %d bytes, want %d (%dx%dx4)",
				b.name, ErrBindingSizeMismatch, got, want, p.width, p.height)
		}
	}

	group, err := dev.CreateBindGroup(&BindGroupDescriptor{
		Label:  "gaussian_blur_bind_group",
		Layout: p.BindLayout,
		Entries: []BindGroupEntry{
			{Binding: InputBinding, Buffer: input, Size: want},
			{Binding: OutputBinding, Buffer: output, Size: want},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create bind group: %w", err)
	}
	return &BindingSet{Group: group, Pipeline: p, Input: input, Output: output}, nil
}
