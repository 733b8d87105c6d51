package gpu

import (
	"errors"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
)

// Buffer errors.
var (
	// ErrZeroDimension is returned when a buffer is requested for an empty image.
	ErrZeroDimension = errors.New("gpu: image width and height must be positive")

	// ErrInvalidBufferSize is returned when a buffer size is zero, overflows
	// or exceeds the device limit.
	ErrInvalidBufferSize = errors.New("gpu: invalid buffer size")

	// ErrUsageMismatch is returned when a buffer is used in a way its usage
	// flags do not allow.
	ErrUsageMismatch = errors.New("gpu: buffer usage does not allow operation")

	// ErrNilBuffer is returned when an operation receives a nil buffer.
	ErrNilBuffer = errors.New("gpu: buffer is nil")
)

// Usage sets of the three pipeline buffers.
const (
	// InputUsage is read by the kernel and may be a copy source. Its
	// contents are written once at creation.
	InputUsage = gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc

	// OutputUsage is written by the kernel and copied to staging.
	OutputUsage = gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst

	// StagingUsage is host-mappable for reading and receives the output copy.
	StagingUsage = gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst
)

// BytesPerPixel is the size of one RGBA8 pixel.
const BytesPerPixel = 4

// BufferMapAsyncStatus represents the result of an async map operation.
type BufferMapAsyncStatus int

const (
	// BufferMapAsyncStatusSuccess indicates mapping completed successfully.
	BufferMapAsyncStatusSuccess BufferMapAsyncStatus = iota
	// BufferMapAsyncStatusValidationError indicates a validation error.
	BufferMapAsyncStatusValidationError
	// BufferMapAsyncStatusUnknown indicates an unknown error.
	BufferMapAsyncStatusUnknown
	// BufferMapAsyncStatusDeviceLost indicates the device was lost.
	BufferMapAsyncStatusDeviceLost
	// BufferMapAsyncStatusDestroyedBeforeCallback indicates buffer was destroyed.
	BufferMapAsyncStatusDestroyedBeforeCallback
	// BufferMapAsyncStatusUnmappedBeforeCallback indicates buffer was unmapped.
	BufferMapAsyncStatusUnmappedBeforeCallback
)

// String returns the string representation of BufferMapAsyncStatus.
func (s BufferMapAsyncStatus) String() string {
	switch s {
	case BufferMapAsyncStatusSuccess:
		return "Success"
	case BufferMapAsyncStatusValidationError:
		return "ValidationError"
	case BufferMapAsyncStatusUnknown:
		return "Unknown"
	case BufferMapAsyncStatusDeviceLost:
		return "DeviceLost"
	case BufferMapAsyncStatusDestroyedBeforeCallback:
		return "DestroyedBeforeCallback"
	case BufferMapAsyncStatusUnmappedBeforeCallback:
		return "UnmappedBeforeCallback"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// ImageBufferSize returns w*h*4, the byte size of an RGBA8 image.
func ImageBufferSize(w, h uint32) (uint64, error) {
	if w == 0 || h == 0 {
		return 0, fmt.Errorf("%w: %dx%d", ErrZeroDimension, w, h)
	}
	n := uint64(w) * uint64(h)
	if n > math.MaxUint64/BytesPerPixel {
		return 0, fmt.Errorf("%w: %dx%d overflows", ErrInvalidBufferSize, w, h)
	}
	return n * BytesPerPixel, nil
}

// BufferSet holds the three buffers of one blur run.
type BufferSet struct {
	Input   Buffer
	Output  Buffer
	Staging Buffer
}

// Release releases all buffers in the set. Safe on a partially built set.
func (s *BufferSet) Release() {
	if s == nil {
		return
	}
	release(s.Input, s.Output, s.Staging)
	s.Input, s.Output, s.Staging = nil, nil, nil
}

// CreateBuffers allocates input, output and staging buffers for a w×h image
// and uploads pixels into the input buffer.
func CreateBuffers(dev Device, w, h uint32, pixels []byte) (*BufferSet, error) {
	set := &BufferSet{}
	var err error
	if set.Input, err = CreateInputBuffer(dev, w, h, pixels); err != nil {
		return nil, err
	}
	if set.Output, err = CreateOutputBuffer(dev, w, h); err != nil {
		set.Release()
		return nil, err
	}
	if set.Staging, err = CreateStagingBuffer(dev, w, h); err != nil {
		set.Release()
		return nil, err
	}
	slogger().Debug("gpu: buffers created",
		"width", w, "height", h, "bytes", set.Input.Size())
	return set, nil
}

// CreateInputBuffer creates a kernel-readable buffer initialized with pixels.
// len(pixels) must equal w*h*4.
func CreateInputBuffer(dev Device, w, h uint32, pixels []byte) (Buffer, error) {
	size, err := checkedSize(dev, w, h)
	if err != nil {
		return nil, err
	}
	if uint64(len(pixels)) != size {
		return nil, fmt.Errorf("%w: input has %d bytes, want %d for %dx%d",
			ErrInvalidBufferSize, len(pixels), size, w, h)
	}

	buf, err := dev.CreateBuffer(&BufferDescriptor{
		Label:            "blur_input",
		Size:             size,
		Usage:            InputUsage,
		MappedAtCreation: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create input buffer: %w", err)
	}
	dst, err := buf.MappedRange(0, size)
	if err != nil {
		buf.Release()
		return nil, fmt.Errorf("write input buffer: %w", err)
	}
	copy(dst, pixels)
	if err := buf.Unmap(); err != nil {
		buf.Release()
		return nil, fmt.Errorf("write input buffer: %w", err)
	}
	return buf, nil
}

// CreateOutputBuffer creates the kernel-writable result buffer.
func CreateOutputBuffer(dev Device, w, h uint32) (Buffer, error) {
	return createSized(dev, "blur_output", w, h, OutputUsage)
}

// CreateStagingBuffer creates the host-mappable readback buffer.
func CreateStagingBuffer(dev Device, w, h uint32) (Buffer, error) {
	return createSized(dev, "blur_staging", w, h, StagingUsage)
}

func createSized(dev Device, label string, w, h uint32, usage gputypes.BufferUsage) (Buffer, error) {
	size, err := checkedSize(dev, w, h)
	if err != nil {
		return nil, err
	}
	buf, err := dev.CreateBuffer(&BufferDescriptor{Label: label, Size: size, Usage: usage})
	if err != nil {
		return nil, fmt.Errorf("create %s buffer: %w", label, err)
	}
	return buf, nil
}

func checkedSize(dev Device, w, h uint32) (uint64, error) {
	size, err := ImageBufferSize(w, h)
	if err != nil {
		return 0, err
	}
	limits := dev.Limits()
	if limits.MaxBufferSize != 0 && size > limits.MaxBufferSize {
		return 0, fmt.Errorf("%w: %d bytes exceeds device max buffer size %d",
			ErrInvalidBufferSize, size, limits.MaxBufferSize)
	}
	if limits.MaxStorageBufferBindingSize != 0 && size > limits.MaxStorageBufferBindingSize {
		return 0, fmt.Errorf("%w: %d bytes exceeds device max storage binding %d",
			ErrInvalidBufferSize, size, limits.MaxStorageBufferBindingSize)
	}
	return size, nil
}

// requireUsage fails with ErrUsageMismatch unless buf has every flag in want.
func requireUsage(buf Buffer, want gputypes.BufferUsage, op string) error {
	if buf == nil {
		return fmt.Errorf("%s: %w", op, ErrNilBuffer)
	}
	if !buf.Usage().Contains(want) {
		return fmt.Errorf("%s: %w: buffer %q has usage %#x, needs %#x",
			op, ErrUsageMismatch, buf.Label(), uint64(buf.Usage()), uint64(want))
	}
	return nil
}
