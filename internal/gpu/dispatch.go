package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
)

// WorkgroupSize is the edge length of the kernel's square workgroup.
const WorkgroupSize = 8

// ErrGridTooLarge is returned when the dispatch grid exceeds the device's
// per-dimension workgroup limit.
var ErrGridTooLarge = errors.New("gpu: dispatch grid exceeds device limit")

// DispatchGrid is the number of workgroups along each axis.
type DispatchGrid struct {
	X, Y, Z uint32
}

// Invocations is the total number of kernel invocations the grid launches
// along x and y.
func (g DispatchGrid) Invocations() (x, y uint64) {
	return uint64(g.X) * WorkgroupSize, uint64(g.Y) * WorkgroupSize
}

// GridFor returns (ceil(w/8), ceil(h/8), 1), the smallest grid covering
// every pixel of a w×h image.
func GridFor(w, h uint32) DispatchGrid {
	return DispatchGrid{
		X: ceilDiv(w, WorkgroupSize),
		Y: ceilDiv(h, WorkgroupSize),
		Z: 1,
	}
}

func ceilDiv(n, d uint32) uint32 {
	// (n+d-1)/d would overflow for n near MaxUint32.
	q := n / d
	if n%d != 0 {
		q++
	}
	return q
}

// CommandBatch records what one Dispatch submitted.
type CommandBatch struct {
	Grid       DispatchGrid
	Submission uint64
}

// Dispatch records the compute pass and the output-to-staging copy into a
// single command buffer and submits it once. It does not wait for the GPU.
func Dispatch(dev Device, queue Queue, bindings *BindingSet, staging Buffer, w, h uint32) (*CommandBatch, error) {
	if bindings == nil || bindings.Pipeline == nil {
		return nil, errors.New("dispatch: nil bindings")
	}
	p := bindings.Pipeline
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("dispatch: %w: %dx%d", ErrZeroDimension, w, h)
	}
	if w != p.width || h != p.height {
		return nil, fmt.Errorf("dispatch: %w: grid for %dx%d, kernel built for %dx%d",
			ErrBindingSizeMismatch, w, h, p.width, p.height)
	}
	size := p.ExpectedSize()
	if err := requireUsage(bindings.Output, gputypes.BufferUsageCopySrc, "dispatch"); err != nil {
		return nil, err
	}
	if err := requireUsage(staging, gputypes.BufferUsageCopyDst, "dispatch"); err != nil {
		return nil, err
	}
	if staging.Size() < size {
		return nil, fmt.Errorf("dispatch: %w: staging has %d bytes, need %d",
			ErrInvalidBufferSize, staging.Size(), size)
	}

	grid := GridFor(w, h)
	if limit := dev.Limits().MaxComputeWorkgroupsPerDimension; limit != 0 && (grid.X > limit || grid.Y > limit) {
		return nil, fmt.Errorf("%w: %dx%d workgroups, limit %d", ErrGridTooLarge, grid.X, grid.Y, limit)
	}

	enc, err := dev.CreateCommandEncoder("gaussian_blur_encoder")
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	pass, err := enc.BeginComputePass("gaussian_blur_pass")
	if err != nil {
		enc.Discard()
		return nil, fmt.Errorf("begin compute pass: %w", err)
	}
	pass.SetPipeline(p.Compute)
	pass.SetBindGroup(0, bindings.Group)
	pass.Dispatch(grid.X, grid.Y, grid.Z)
	if err := pass.End(); err != nil {
		enc.Discard()
		return nil, fmt.Errorf("end compute pass: %w", err)
	}
	enc.CopyBufferToBuffer(bindings.Output, 0, staging, 0, size)

	cmd, err := enc.Finish()
	if err != nil {
		enc.Discard()
		return nil, fmt.Errorf("finish command encoder: %w", err)
	}
	idx, err := queue.Submit(cmd)
	if err != nil {
		// An unsubmitted command buffer must be released explicitly.
		cmd.Release()
		return nil, fmt.Errorf("submit: %w", err)
	}
	slogger().Debug("gpu: dispatched",
		"grid_x", grid.X, "grid_y", grid.Y, "submission", idx)
	return &CommandBatch{Grid: grid, Submission: idx}, nil
}
