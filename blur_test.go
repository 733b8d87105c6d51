package gpublur

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gogpu/gpublur/internal/gpu"
	"github.com/gogpu/gpublur/internal/gpu/gputest"
	"github.com/gogpu/gpublur/internal/image"
)

func openFake(t *testing.T, opts ...Option) (*Device, *gputest.Device) {
	t.Helper()
	fake, q := gputest.NewDevice()
	d, err := Open(context.Background(), append(opts, withDevice(fake, q))...)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d, fake
}

func uniform(w, h uint32, c [4]byte) *Image {
	m, _ := image.New(w, h)
	for i := 0; i < len(m.Pix); i += 4 {
		copy(m.Pix[i:i+4], c[:])
	}
	return m
}

func TestDeviceBlurUniformFixedPoint(t *testing.T) {
	d, fake := openFake(t)
	src := uniform(16, 16, [4]byte{90, 30, 240, 255})

	out, err := d.Blur(context.Background(), src, 4)
	if err != nil {
		t.Fatalf("Blur: %v", err)
	}
	if out.Width != src.Width || out.Height != src.Height {
		t.Fatalf("size = %dx%d, want %dx%d", out.Width, out.Height, src.Width, src.Height)
	}
	for i := range src.Pix {
		if out.Pix[i] != src.Pix[i] {
			t.Fatalf("byte %d = %d, want %d", i, out.Pix[i], src.Pix[i])
		}
	}
	if fake.Live() != 0 {
		t.Errorf("%d device objects still live after Blur", fake.Live())
	}
	if fake.Submissions() != 1 {
		t.Errorf("submissions = %d, want 1", fake.Submissions())
	}
}

func TestDeviceBlurKeepsSource(t *testing.T) {
	d, _ := openFake(t)
	src := uniform(8, 8, [4]byte{0, 0, 0, 255})
	src.Pix[(4*8+4)*4] = 255

	if _, err := d.Blur(context.Background(), src, 1); err != nil {
		t.Fatalf("Blur: %v", err)
	}
	if src.Pix[(4*8+4)*4] != 255 {
		t.Errorf("Blur modified its input")
	}
}

func TestDeviceBlurErrors(t *testing.T) {
	tests := []struct {
		name      string
		src       *Image
		intensity float64
		wantErr   error
	}{
		{"intensity too low", uniform(4, 4, [4]byte{}), 0.5, ErrInvalidIntensity},
		{"intensity too high", uniform(4, 4, [4]byte{}), 11, ErrInvalidIntensity},
		{"short pixels", &Image{Width: 4, Height: 4, Pix: make([]byte, 63)}, 1, image.ErrPixelSize},
		{"empty image", &Image{}, 1, image.ErrEmptyImage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, fake := openFake(t)
			if _, err := d.Blur(context.Background(), tt.src, tt.intensity); !errors.Is(err, tt.wantErr) {
				t.Errorf("Blur error = %v, want %v", err, tt.wantErr)
			}
			if fake.Live() != 0 {
				t.Errorf("%d device objects leaked", fake.Live())
			}
		})
	}
}

func TestDeviceBlurMapFailure(t *testing.T) {
	d, fake := openFake(t)
	fake.MapStatus = gpu.BufferMapAsyncStatusDeviceLost

	_, err := d.Blur(context.Background(), uniform(4, 4, [4]byte{1, 2, 3, 4}), 1)
	if !errors.Is(err, ErrMapFailed) {
		t.Errorf("Blur error = %v, want ErrMapFailed", err)
	}
}

func TestDeviceBlurMapTimeout(t *testing.T) {
	d, fake := openFake(t, WithMapTimeout(10*time.Millisecond))
	fake.StallMaps = true

	_, err := d.Blur(context.Background(), uniform(4, 4, [4]byte{1, 2, 3, 4}), 1)
	if !errors.Is(err, ErrMapTimeout) {
		t.Errorf("Blur error = %v, want ErrMapTimeout", err)
	}
	if fake.Live() != 0 {
		t.Errorf("%d device objects leaked after timeout", fake.Live())
	}
}

func TestDeviceBlurKernelTemplate(t *testing.T) {
	d, _ := openFake(t, WithKernelTemplate("@compute @workgroup_size(8, 8, 1) fn gaussian_blur() {}"))
	_, err := d.Blur(context.Background(), uniform(4, 4, [4]byte{}), 1)
	if !errors.Is(err, ErrPlaceholderMissing) {
		t.Errorf("Blur error = %v, want ErrPlaceholderMissing", err)
	}
}

func TestDeviceBlurVerify(t *testing.T) {
	d, _ := openFake(t, WithVerify(true))
	src := uniform(9, 7, [4]byte{0, 0, 0, 255})
	src.Pix[(3*9+4)*4] = 255

	_, res, err := d.run(context.Background(), src, 2)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.MaxDeviation != 0 {
		t.Errorf("MaxDeviation = %d, want 0", res.MaxDeviation)
	}
	if want := (DispatchGrid{X: 2, Y: 1, Z: 1}); res.Grid != want {
		t.Errorf("Grid = %+v, want %+v", res.Grid, want)
	}
}

func TestVerifyRejectsDeviation(t *testing.T) {
	src := uniform(4, 4, [4]byte{100, 100, 100, 255})
	out := uniform(4, 4, [4]byte{100, 100, 100, 255})
	out.Pix[5] = 100 + VerifyTolerance + 1

	worst, err := verify(src, out, 1)
	if !errors.Is(err, ErrVerifyFailed) {
		t.Fatalf("verify error = %v, want ErrVerifyFailed", err)
	}
	if worst != VerifyTolerance+1 {
		t.Errorf("worst = %d, want %d", worst, VerifyTolerance+1)
	}

	out.Pix[5] = 100 + VerifyTolerance
	if _, err := verify(src, out, 1); err != nil {
		t.Errorf("verify within tolerance: %v", err)
	}
}

func TestDeviceClose(t *testing.T) {
	d, _ := openFake(t)
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := d.Blur(context.Background(), uniform(2, 2, [4]byte{}), 1); !errors.Is(err, ErrClosed) {
		t.Errorf("Blur after Close error = %v, want ErrClosed", err)
	}
	if d.Provider() != nil {
		t.Errorf("Provider() on an injected device = %v, want nil", d.Provider())
	}
}

func writeInput(t *testing.T, dir string, w, h uint32) string {
	t.Helper()
	src := uniform(w, h, [4]byte{10, 20, 30, 255})
	src.Pix[0] = 250
	path := filepath.Join(dir, "in.png")
	if err := image.Save(path, src); err != nil {
		t.Fatalf("Save input: %v", err)
	}
	return path
}

func TestBlurFile(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, 17, 9)
	out := filepath.Join(dir, "out.png")
	fake, q := gputest.NewDevice()

	res, err := BlurFile(context.Background(), in, out,
		withDevice(fake, q), WithIntensity(3), WithVerify(true))
	if err != nil {
		t.Fatalf("BlurFile: %v", err)
	}
	if res.Output != out || res.Width != 17 || res.Height != 9 || res.Intensity != 3 {
		t.Errorf("Result = %+v", res)
	}
	if want := (DispatchGrid{X: 3, Y: 2, Z: 1}); res.Grid != want {
		t.Errorf("Grid = %+v, want %+v", res.Grid, want)
	}
	if res.MaxDeviation != 0 {
		t.Errorf("MaxDeviation = %d, want 0", res.MaxDeviation)
	}

	got, err := image.Load(out)
	if err != nil {
		t.Fatalf("Load output: %v", err)
	}
	if got.Width != 17 || got.Height != 9 {
		t.Errorf("output size = %dx%d, want 17x9", got.Width, got.Height)
	}
	if got.Pix[0] == 250 {
		t.Errorf("corner pixel unchanged, output was not blurred")
	}
}

func TestBlurFileFailureWritesNothing(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, 8, 8)
	out := filepath.Join(dir, "out.png")
	fake, q := gputest.NewDevice()
	fake.StallMaps = true

	_, err := BlurFile(context.Background(), in, out, withDevice(fake, q), WithMapTimeout(10*time.Millisecond))
	if !errors.Is(err, ErrMapTimeout) {
		t.Fatalf("BlurFile error = %v, want ErrMapTimeout", err)
	}
	if _, err := os.Stat(out); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("output exists after failed run: %v", err)
	}
}

func TestBlurFileErrors(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, 4, 4)
	fake, q := gputest.NewDevice()

	if _, err := BlurFile(context.Background(), in, filepath.Join(dir, "out.xyz"), withDevice(fake, q)); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("unsupported output error = %v, want ErrUnsupportedFormat", err)
	}
	if _, err := BlurFile(context.Background(), filepath.Join(dir, "missing.png"), filepath.Join(dir, "out.png"), withDevice(fake, q)); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing input error = %v, want os.ErrNotExist", err)
	}
	if _, err := BlurFile(context.Background(), in, filepath.Join(dir, "out.png"), withDevice(fake, q), WithIntensity(20)); !errors.Is(err, ErrInvalidIntensity) {
		t.Errorf("unclamped intensity error = %v, want ErrInvalidIntensity", err)
	}
}

func TestOpenHardware(t *testing.T) {
	d, err := Open(context.Background())
	if err != nil {
		t.Skipf("GPU not available: %v", err)
	}
	defer d.Close()

	if d.Info().Name == "" {
		t.Errorf("adapter name is empty")
	}
	if d.Provider() == nil {
		t.Errorf("Provider() = nil for an acquired device")
	}
}
