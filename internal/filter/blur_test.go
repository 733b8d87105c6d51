package filter

import (
	"errors"
	"testing"
)

func solid(w, h int, r, g, b, a byte) []byte {
	pix := make([]byte, w*h*4)
	for i := 0; i < len(pix); i += 4 {
		pix[i], pix[i+1], pix[i+2], pix[i+3] = r, g, b, a
	}
	return pix
}

func TestBlurSizeMismatch(t *testing.T) {
	tests := []struct {
		name string
		src  []byte
		w, h int
	}{
		{"short", make([]byte, 15), 2, 2},
		{"long", make([]byte, 17), 2, 2},
		{"zero width", nil, 0, 2},
		{"negative height", nil, 2, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Blur(tt.src, tt.w, tt.h, 1); !errors.Is(err, ErrSizeMismatch) {
				t.Errorf("Blur error = %v, want ErrSizeMismatch", err)
			}
		})
	}
}

func TestBlurZeroSigmaCopies(t *testing.T) {
	src := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	dst, err := Blur(src, 2, 1, 0)
	if err != nil {
		t.Fatalf("Blur: %v", err)
	}
	if MaxDeviation(src, dst) != 0 {
		t.Errorf("Blur(sigma=0) = %v, want %v", dst, src)
	}
	dst[0] = 99
	if src[0] == 99 {
		t.Errorf("Blur returned its input slice")
	}
}

func TestBlurUniformImage(t *testing.T) {
	src := solid(16, 16, 12, 130, 250, 255)
	for _, sigma := range []float64{1, 2.5, 10} {
		dst, err := Blur(src, 16, 16, sigma)
		if err != nil {
			t.Fatalf("Blur: %v", err)
		}
		if d := MaxDeviation(src, dst); d != 0 {
			t.Errorf("sigma %v: uniform image changed by %d", sigma, d)
		}
	}
}

func TestBlurSpreadsImpulse(t *testing.T) {
	const w, h = 8, 8
	src := solid(w, h, 0, 0, 0, 255)
	c := (4*w + 4) * 4
	src[c] = 255

	dst, err := Blur(src, w, h, 1)
	if err != nil {
		t.Fatalf("Blur: %v", err)
	}

	sum := 0
	for i := 0; i < len(dst); i += 4 {
		sum += int(dst[i])
	}
	if sum < 255-32 || sum > 255+32 {
		t.Errorf("red sum = %d, want ~255", sum)
	}
	if dst[c] >= 255 || dst[c] == 0 {
		t.Errorf("center = %d, want partially spread", dst[c])
	}
	// Symmetric around the impulse.
	left := dst[(4*w+3)*4]
	right := dst[(4*w+5)*4]
	up := dst[(3*w+4)*4]
	down := dst[(5*w+4)*4]
	if left != right || up != down || left != up {
		t.Errorf("neighbors = %d %d %d %d, want equal", left, right, up, down)
	}
	// Alpha is uniform and stays put.
	for i := 3; i < len(dst); i += 4 {
		if dst[i] != 255 {
			t.Fatalf("alpha at %d = %d, want 255", i/4, dst[i])
		}
	}
}

func TestBlurEdgeClamp(t *testing.T) {
	// A left half of white next to a right half of black: the leftmost
	// column sees only white within its footprint at sigma 1.
	const w, h = 16, 4
	src := solid(w, h, 0, 0, 0, 255)
	for y := 0; y < h; y++ {
		for x := 0; x < w/2; x++ {
			src[(y*w+x)*4] = 255
		}
	}
	dst, err := Blur(src, w, h, 1)
	if err != nil {
		t.Fatalf("Blur: %v", err)
	}
	if got := dst[0]; got != 255 {
		t.Errorf("left edge = %d, want 255", got)
	}
	if got := dst[(w-1)*4]; got != 0 {
		t.Errorf("right edge = %d, want 0", got)
	}
}

func TestMaxDeviation(t *testing.T) {
	tests := []struct {
		a, b []byte
		want int
	}{
		{[]byte{1, 2, 3}, []byte{1, 2, 3}, 0},
		{[]byte{1, 2, 3}, []byte{3, 2, 1}, 2},
		{[]byte{0}, []byte{255}, 255},
		{[]byte{0}, []byte{0, 0}, -1},
	}
	for _, tt := range tests {
		if got := MaxDeviation(tt.a, tt.b); got != tt.want {
			t.Errorf("MaxDeviation(%v, %v) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestClampInt(t *testing.T) {
	tests := []struct {
		v, min, max, want int
	}{
		{5, 0, 10, 5},
		{-5, 0, 10, 0},
		{15, 0, 10, 10},
		{10, 0, 10, 10}, // at max
		{0, 0, 10, 0},   // at min
	}

	for _, tt := range tests {
		got := clampInt(tt.v, tt.min, tt.max)
		if got != tt.want {
			t.Errorf("clampInt(%d, %d, %d) = %d, want %d", tt.v, tt.min, tt.max, got, tt.want)
		}
	}
}

func TestClampUint8(t *testing.T) {
	tests := []struct {
		v    float32
		want uint8
	}{
		{0, 0},
		{127.5, 128}, // Rounds up
		{127.4, 127}, // Rounds down
		{255, 255},
		{-10, 0},
		{300, 255},
	}

	for _, tt := range tests {
		got := clampUint8(tt.v)
		if got != tt.want {
			t.Errorf("clampUint8(%v) = %d, want %d", tt.v, got, tt.want)
		}
	}
}

func BenchmarkBlur(b *testing.B) {
	sizes := []struct {
		name string
		w, h int
	}{
		{"64x64", 64, 64},
		{"512x512", 512, 512},
	}
	for _, size := range sizes {
		src := solid(size.w, size.h, 10, 20, 30, 255)
		b.Run(size.name, func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				_, _ = Blur(src, size.w, size.h, 3)
			}
		})
	}
}
