package gpu_test

import (
	"context"
	"testing"

	"github.com/gogpu/gpublur/internal/gpu"
)

// buildPipeline compiles the built-in kernel for w×h and builds its pipeline.
func buildPipeline(t *testing.T, dev gpu.Device, w, h uint32, intensity float64) *gpu.Pipeline {
	t.Helper()
	k, err := gpu.Compile(dev, gpu.GaussianBlurTemplate(), gpu.KernelParameters{Width: w, Height: h, Intensity: intensity})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	t.Cleanup(k.Release)
	p, err := gpu.BuildPipeline(dev, k, gpu.EntryPoint)
	if err != nil {
		t.Fatalf("BuildPipeline: %v", err)
	}
	t.Cleanup(p.Release)
	return p
}

// blurOnDevice runs the whole buffer, compile, bind, dispatch and readback
// sequence and returns the blurred pixels.
func blurOnDevice(t *testing.T, dev gpu.Device, q gpu.Queue, w, h uint32, pixels []byte, intensity float64) []byte {
	t.Helper()
	set, err := gpu.CreateBuffers(dev, w, h, pixels)
	if err != nil {
		t.Fatalf("CreateBuffers: %v", err)
	}
	defer set.Release()

	k, err := gpu.Compile(dev, gpu.GaussianBlurTemplate(), gpu.KernelParameters{Width: w, Height: h, Intensity: intensity})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	defer k.Release()

	p, err := gpu.BuildPipeline(dev, k, gpu.EntryPoint)
	if err != nil {
		t.Fatalf("BuildPipeline: %v", err)
	}
	defer p.Release()

	b, err := gpu.Bind(dev, p, set.Input, set.Output)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	defer b.Release()

	if _, err := gpu.Dispatch(dev, q, b, set.Staging, w, h); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	out, err := gpu.Read(context.Background(), dev, set.Staging)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	return out
}

func uniformImage(w, h int, r, g, b, a byte) []byte {
	pix := make([]byte, w*h*4)
	for i := 0; i < len(pix); i += 4 {
		pix[i], pix[i+1], pix[i+2], pix[i+3] = r, g, b, a
	}
	return pix
}

// gradientImage fills every channel with a different function of x and y.
func gradientImage(w, h int) []byte {
	pix := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 4
			pix[i] = byte(x * 255 / max(w-1, 1))
			pix[i+1] = byte(y * 255 / max(h-1, 1))
			pix[i+2] = byte((x * y) % 256)
			pix[i+3] = 255
		}
	}
	return pix
}

// impulseImage is an opaque black w×h image with one white pixel at (4, 4).
// It returns the pixels and the byte offset of the white pixel.
func impulseImage(w, h int) ([]byte, int) {
	pix := uniformImage(w, h, 0, 0, 0, 255)
	center := (4*w + 4) * 4
	pix[center], pix[center+1], pix[center+2] = 255, 255, 255
	return pix, center
}

// checkChannelSums fails t when an RGB channel of pix does not sum to 255
// within tolerance.
func checkChannelSums(t *testing.T, pix []byte, tolerance int) {
	t.Helper()
	for c := 0; c < 3; c++ {
		sum := 0
		for i := c; i < len(pix); i += 4 {
			sum += int(pix[i])
		}
		if d := sum - 255; d < -tolerance || d > tolerance {
			t.Errorf("channel %d sum = %d, want 255±%d", c, sum, tolerance)
		}
	}
}
