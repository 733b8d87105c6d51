package gpu

import "github.com/gogpu/gputypes"

// Device is the subset of a logical GPU device used by the blur pipeline.
//
// The production implementation wraps *wgpu.Device (see NewWGPUDevice).
// Resources returned by a Device belong to it and must be released before
// the device itself.
type Device interface {
	CreateBuffer(desc *BufferDescriptor) (Buffer, error)
	CreateShaderModule(label, wgsl string) (ShaderModule, error)
	CreateBindGroupLayout(label string, entries []gputypes.BindGroupLayoutEntry) (BindGroupLayout, error)
	CreatePipelineLayout(label string, layouts ...BindGroupLayout) (PipelineLayout, error)
	CreateComputePipeline(desc *ComputePipelineDescriptor) (ComputePipeline, error)
	CreateBindGroup(desc *BindGroupDescriptor) (BindGroup, error)
	CreateCommandEncoder(label string) (CommandEncoder, error)

	// Poll delivers completed map callbacks. With wait set it first blocks
	// until all submitted work is done. It reports whether any pending map
	// was resolved.
	Poll(wait bool) bool

	Limits() gputypes.Limits
}

// Queue submits recorded command buffers for execution.
type Queue interface {
	// Submit enqueues the command buffers in order and returns the
	// submission index. A nil error does not mean the work has finished.
	Submit(buffers ...CommandBuffer) (uint64, error)
}

// Buffer is a linear block of device memory.
type Buffer interface {
	Label() string
	Size() uint64
	Usage() gputypes.BufferUsage

	// MapAsync starts mapping [offset, offset+size) for host access. The
	// callback fires from a later Device.Poll with the final status.
	MapAsync(mode gputypes.MapMode, offset, size uint64, callback func(BufferMapAsyncStatus)) error

	// MappedRange returns a view of a mapped region. The slice is only
	// valid until Unmap.
	MappedRange(offset, size uint64) ([]byte, error)
	Unmap() error
	Release()
}

// BufferDescriptor describes a buffer to create.
type BufferDescriptor struct {
	// Label is an optional debug name.
	Label string

	// Size is the buffer size in bytes.
	Size uint64

	// Usage specifies how the buffer will be used.
	Usage gputypes.BufferUsage

	// MappedAtCreation creates the buffer pre-mapped for writing.
	MappedAtCreation bool
}

// ComputePipelineDescriptor describes a compute pipeline to create.
type ComputePipelineDescriptor struct {
	Label      string
	Layout     PipelineLayout
	Module     ShaderModule
	EntryPoint string
}

// BindGroupDescriptor describes a bind group to create.
type BindGroupDescriptor struct {
	Label   string
	Layout  BindGroupLayout
	Entries []BindGroupEntry
}

// BindGroupEntry binds a buffer range to a slot. Size 0 binds the rest of
// the buffer.
type BindGroupEntry struct {
	Binding uint32
	Buffer  Buffer
	Offset  uint64
	Size    uint64
}

// CommandEncoder records commands into a CommandBuffer.
type CommandEncoder interface {
	BeginComputePass(label string) (ComputePass, error)
	CopyBufferToBuffer(src Buffer, srcOffset uint64, dst Buffer, dstOffset, size uint64)
	Finish() (CommandBuffer, error)
	// Discard abandons the recorded commands. The encoder is unusable
	// afterwards.
	Discard()
}

// ComputePass records dispatches inside a compute pass.
type ComputePass interface {
	SetPipeline(pipeline ComputePipeline)
	SetBindGroup(index uint32, group BindGroup)
	Dispatch(x, y, z uint32)
	End() error
}

// Releaser is implemented by every device-owned object.
type Releaser interface {
	Release()
}

// ShaderModule is a compiled kernel.
type ShaderModule interface{ Releaser }

// BindGroupLayout describes the slots of a bind group.
type BindGroupLayout interface{ Releaser }

// PipelineLayout is an ordered list of bind group layouts.
type PipelineLayout interface{ Releaser }

// ComputePipeline is a kernel entry point bound to a pipeline layout.
type ComputePipeline interface{ Releaser }

// BindGroup is a concrete set of resources for a BindGroupLayout.
type BindGroup interface{ Releaser }

// CommandBuffer is a finished, submittable list of commands.
type CommandBuffer interface{ Releaser }

// release calls Release on every non-nil resource in reverse order.
func release(rs ...Releaser) {
	for i := len(rs) - 1; i >= 0; i-- {
		if rs[i] != nil {
			rs[i].Release()
		}
	}
}
