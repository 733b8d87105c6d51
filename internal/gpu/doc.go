// Package gpu drives the compute half of gpublur on top of gogpu/wgpu.
//
// The package is organized as a straight pipeline of small components, each
// owning one step of a blur run:
//
//   - Context (context.go): instance, adapter, logical device and queue
//   - BufferSet (buffer.go): input, output and staging buffers sized to the image
//   - Compile (kernel.go): placeholder substitution and front-end checks of the WGSL kernel
//   - BuildPipeline / Bind (binder.go): explicit bind group layout and bind group
//   - Dispatch (dispatch.go): one compute pass plus the output-to-staging copy
//   - Read (readback.go): blocking readback of the staging buffer
//
// All components talk to the device through the Device, Queue and Buffer
// interfaces declared in device.go. The production implementation wraps
// *wgpu.Device (wgpu.go); tests use the host-side fake in gputest.
//
// # Errors
//
// Every failure is fatal to the run. Classify with errors.Is against the
// sentinels in this package:
//
//   - ErrNoAdapter, ErrNoDevice: device acquisition failed
//   - ErrZeroDimension, ErrInvalidBufferSize, ErrUsageMismatch: buffer setup
//   - ErrPlaceholderMissing, ErrKernelCompile, ErrKernelContract: kernel compilation
//   - ErrBindingSizeMismatch: binding validation before dispatch
//   - ErrMapFailed, ErrMapTimeout: readback
//
// # Build Tags
//
// Building with -tags nogpu replaces the wgpu-backed Acquire with a stub that
// always reports ErrNoAdapter, which keeps the rest of the module buildable on
// machines without GPU drivers.
package gpu
