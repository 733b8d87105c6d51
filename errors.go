package gpublur

import (
	"errors"

	"github.com/gogpu/gpublur/internal/gpu"
	"github.com/gogpu/gpublur/internal/image"
)

var (
	// ErrClosed is returned by Blur after Close.
	ErrClosed = errors.New("gpublur: device is closed")

	// ErrVerifyFailed is returned when WithVerify is set and the GPU result
	// differs from the CPU reference by more than VerifyTolerance.
	ErrVerifyFailed = errors.New("gpublur: GPU result deviates from CPU reference")
)

// Errors of the GPU and image layers, for classification with errors.Is.
var (
	ErrNoAdapter           = gpu.ErrNoAdapter
	ErrNoDevice            = gpu.ErrNoDevice
	ErrZeroDimension       = gpu.ErrZeroDimension
	ErrInvalidBufferSize   = gpu.ErrInvalidBufferSize
	ErrPlaceholderMissing  = gpu.ErrPlaceholderMissing
	ErrKernelCompile       = gpu.ErrKernelCompile
	ErrKernelContract      = gpu.ErrKernelContract
	ErrInvalidIntensity    = gpu.ErrInvalidIntensity
	ErrBindingSizeMismatch = gpu.ErrBindingSizeMismatch
	ErrMapFailed           = gpu.ErrMapFailed
	ErrMapTimeout          = gpu.ErrMapTimeout
	ErrUnsupportedFormat   = image.ErrUnsupportedFormat
)

// CompileError carries the shader compiler's diagnostic unmodified.
type CompileError = gpu.CompileError
