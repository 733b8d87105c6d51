//go:build !nogpu

package gpu

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gogpu/wgpu"
)

func TestMapStatus(t *testing.T) {
	tests := []struct {
		err  error
		want BufferMapAsyncStatus
	}{
		{nil, BufferMapAsyncStatusSuccess},
		{wgpu.ErrMapAlignment, BufferMapAsyncStatusValidationError},
		{wgpu.ErrMapInvalidMode, BufferMapAsyncStatusValidationError},
		{fmt.Errorf("map: %w", wgpu.ErrMapAlreadyPending), BufferMapAsyncStatusValidationError},
		{wgpu.ErrMapDeviceLost, BufferMapAsyncStatusDeviceLost},
		{wgpu.ErrDeviceLost, BufferMapAsyncStatusDeviceLost},
		{wgpu.ErrBufferDestroyed, BufferMapAsyncStatusDestroyedBeforeCallback},
		{wgpu.ErrMapCanceled, BufferMapAsyncStatusUnmappedBeforeCallback},
		{errors.New("boom"), BufferMapAsyncStatusUnknown},
	}
	for _, tt := range tests {
		if got := mapStatus(tt.err); got != tt.want {
			t.Errorf("mapStatus(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}
