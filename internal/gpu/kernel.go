package gpu

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
)

// Kernel compilation errors.
var (
	// ErrPlaceholderMissing is returned when a kernel template lacks one of
	// the required parameter placeholders.
	ErrPlaceholderMissing = errors.New("gpu: kernel template is missing a placeholder")

	// ErrKernelCompile is returned when the shader front-end or the device
	// rejects the kernel source. The diagnostic is carried by CompileError.
	ErrKernelCompile = errors.New("gpu: kernel compilation failed")

	// ErrKernelContract is returned when a kernel compiles but does not
	// match the entry point or binding layout the pipeline expects.
	ErrKernelContract = errors.New("gpu: kernel does not match pipeline contract")

	// ErrInvalidIntensity is returned for an intensity outside [MinIntensity, MaxIntensity].
	ErrInvalidIntensity = errors.New("gpu: intensity out of range")
)

// Template placeholders substituted by Compile.
const (
	PlaceholderWidth     = "{{WIDTH}}"
	PlaceholderHeight    = "{{HEIGHT}}"
	PlaceholderIntensity = "{{INTENSITY}}"
)

// Intensity bounds accepted by the kernel.
const (
	MinIntensity = 1.0
	MaxIntensity = 10.0
)

// KernelParameters are baked into the kernel source at compile time.
type KernelParameters struct {
	Width     uint32
	Height    uint32
	Intensity float64
}

// Validate checks dimensions and intensity range.
func (p KernelParameters) Validate() error {
	if p.Width == 0 || p.Height == 0 {
		return fmt.Errorf("%w: %dx%d", ErrZeroDimension, p.Width, p.Height)
	}
	if math.IsNaN(p.Intensity) || p.Intensity < MinIntensity || p.Intensity > MaxIntensity {
		return fmt.Errorf("%w: %v not in [%v, %v]", ErrInvalidIntensity, p.Intensity, MinIntensity, MaxIntensity)
	}
	return nil
}

// CompileError carries the unmodified diagnostic of the shader front-end
// or backend.
type CompileError struct {
	Stage      string // "parse", "lower" or "device"
	Diagnostic string
	Err        error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("gpu: kernel %s error: %s", e.Stage, e.Diagnostic)
}

// Is reports ErrKernelCompile so callers can classify with errors.Is.
func (e *CompileError) Is(target error) bool { return target == ErrKernelCompile }

func (e *CompileError) Unwrap() error { return e.Err }

// CompiledKernel is a device shader module together with the source it
// was built from.
type CompiledKernel struct {
	Module     ShaderModule
	Source     string
	Params     KernelParameters
	EntryPoint string
	Workgroup  [3]uint32
}

// Release releases the shader module.
func (k *CompiledKernel) Release() {
	if k != nil && k.Module != nil {
		k.Module.Release()
		k.Module = nil
	}
}

// Substitute replaces the three placeholders in template with params.
// Every placeholder must occur at least once.
func Substitute(template string, params KernelParameters) (string, error) {
	var missing []string
	for _, ph := range []string{PlaceholderWidth, PlaceholderHeight, PlaceholderIntensity} {
		if !strings.Contains(template, ph) {
			missing = append(missing, ph)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", ErrPlaceholderMissing, strings.Join(missing, ", "))
	}
	r := strings.NewReplacer(
		PlaceholderWidth, strconv.FormatUint(uint64(params.Width), 10),
		PlaceholderHeight, strconv.FormatUint(uint64(params.Height), 10),
		PlaceholderIntensity, floatLiteral(params.Intensity),
	)
	return r.Replace(template), nil
}

// floatLiteral formats v as a WGSL abstract-float literal. WGSL reads
// "2" as an integer, so a decimal point is always present.
func floatLiteral(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// Compile substitutes params into template, checks the result with the
// naga front-end and hands it to the device.
func Compile(dev Device, template string, params KernelParameters) (*CompiledKernel, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	src, err := Substitute(template, params)
	if err != nil {
		return nil, err
	}

	module, err := checkSource(src)
	if err != nil {
		return nil, err
	}
	wg, err := checkContract(module, EntryPoint)
	if err != nil {
		return nil, err
	}

	sm, err := dev.CreateShaderModule("gaussian_blur", src)
	if err != nil {
		return nil, &CompileError{Stage: "device", Diagnostic: err.Error(), Err: err}
	}
	slogger().Debug("gpu: kernel compiled",
		"width", params.Width, "height", params.Height, "intensity", params.Intensity,
		"bytes", len(src))
	return &CompiledKernel{
		Module:     sm,
		Source:     src,
		Params:     params,
		EntryPoint: EntryPoint,
		Workgroup:  wg,
	}, nil
}

// checkSource runs the naga parser and lowerer over src.
func checkSource(src string) (*ir.Module, error) {
	ast, err := naga.Parse(src)
	if err != nil {
		return nil, &CompileError{Stage: "parse", Diagnostic: err.Error(), Err: err}
	}
	module, err := naga.LowerWithSource(ast, src)
	if err != nil {
		return nil, &CompileError{Stage: "lower", Diagnostic: err.Error(), Err: err}
	}
	return module, nil
}

// checkContract verifies that module has a compute entry point with the
// dispatch workgroup size and the two storage bindings of the blur layout.
func checkContract(module *ir.Module, entry string) ([3]uint32, error) {
	var found *ir.EntryPoint
	for i := range module.EntryPoints {
		if module.EntryPoints[i].Name == entry {
			found = &module.EntryPoints[i]
			break
		}
	}
	if found == nil {
		return [3]uint32{}, fmt.Errorf("%w: no entry point %q", ErrKernelContract, entry)
	}
	if found.Stage != ir.StageCompute {
		return [3]uint32{}, fmt.Errorf("%w: entry point %q is not a compute shader", ErrKernelContract, entry)
	}
	want := [3]uint32{WorkgroupSize, WorkgroupSize, 1}
	if found.Workgroup != want {
		return [3]uint32{}, fmt.Errorf("%w: workgroup size %v, want %v", ErrKernelContract, found.Workgroup, want)
	}

	access := map[uint32]ir.StorageAccessMode{}
	for _, gv := range module.GlobalVariables {
		if gv.Binding == nil || gv.Binding.Group != 0 {
			continue
		}
		if gv.Space != ir.SpaceStorage {
			return [3]uint32{}, fmt.Errorf("%w: binding %d (%s) is not a storage buffer",
				ErrKernelContract, gv.Binding.Binding, gv.Name)
		}
		access[gv.Binding.Binding] = gv.Access
	}
	if a, ok := access[InputBinding]; !ok || a != ir.StorageRead {
		return [3]uint32{}, fmt.Errorf("%w: binding %d must be var<storage, read>", ErrKernelContract, InputBinding)
	}
	if a, ok := access[OutputBinding]; !ok || a != ir.StorageReadWrite {
		return [3]uint32{}, fmt.Errorf("%w: binding %d must be var<storage, read_write>", ErrKernelContract, OutputBinding)
	}
	return found.Workgroup, nil
}
