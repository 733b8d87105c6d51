package gpu

import (
	"errors"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

func TestAdapterType(t *testing.T) {
	tests := []struct {
		in   gputypes.DeviceType
		want gpucontext.AdapterType
	}{
		{gputypes.DeviceTypeDiscreteGPU, gpucontext.AdapterTypeDiscrete},
		{gputypes.DeviceTypeIntegratedGPU, gpucontext.AdapterTypeIntegrated},
		{gputypes.DeviceTypeCPU, gpucontext.AdapterTypeSoftware},
		{gputypes.DeviceTypeVirtualGPU, gpucontext.AdapterTypeUnknown},
	}
	for _, tt := range tests {
		if got := adapterType(tt.in); got != tt.want {
			t.Errorf("adapterType(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestCheckComputeCapable(t *testing.T) {
	tests := []struct {
		name    string
		info    gputypes.AdapterInfo
		wantErr bool
	}{
		{"discrete vulkan", gputypes.AdapterInfo{Name: "gpu", DeviceType: gputypes.DeviceTypeDiscreteGPU, Backend: gputypes.BackendVulkan}, false},
		{"integrated metal", gputypes.AdapterInfo{Name: "igpu", DeviceType: gputypes.DeviceTypeIntegratedGPU, Backend: gputypes.BackendMetal}, false},
		{"software renderer", gputypes.AdapterInfo{Name: "Software Renderer", DeviceType: gputypes.DeviceTypeCPU, Backend: gputypes.BackendEmpty}, true},
		{"cpu on vulkan", gputypes.AdapterInfo{Name: "llvmpipe", DeviceType: gputypes.DeviceTypeCPU, Backend: gputypes.BackendVulkan}, true},
		{"empty backend", gputypes.AdapterInfo{Name: "noop", DeviceType: gputypes.DeviceTypeOther, Backend: gputypes.BackendEmpty}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkComputeCapable(tt.info)
			if (err != nil) != tt.wantErr {
				t.Fatalf("checkComputeCapable() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrNoAdapter) {
				t.Errorf("error %v does not wrap ErrNoAdapter", err)
			}
		})
	}
}
