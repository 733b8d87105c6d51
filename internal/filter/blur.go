package filter

import (
	"errors"
	"fmt"
	"sync"
)

// ErrSizeMismatch is returned when a pixel slice does not hold w*h*4 bytes.
var ErrSizeMismatch = errors.New("filter: pixel data does not match dimensions")

// Blur applies a Gaussian blur with standard deviation sigma to the RGBA8
// image src of size w×h and returns a new pixel slice.
//
// The separable algorithm runs a horizontal pass into a float32 buffer and
// a vertical pass back to bytes. Samples outside the image clamp to the
// nearest edge pixel; results are rounded half up. This mirrors the GPU
// kernel and serves as its host-side reference.
func Blur(src []byte, w, h int, sigma float64) ([]byte, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrSizeMismatch, w, h)
	}
	if len(src) != w*h*4 {
		return nil, fmt.Errorf("%w: %d bytes for %dx%d", ErrSizeMismatch, len(src), w, h)
	}

	dst := make([]byte, len(src))
	if sigma <= 0 {
		copy(dst, src)
		return dst, nil
	}

	kernel := CachedGaussianKernel(sigma)

	temp := getTempBuffer(w, h)
	defer putTempBuffer(temp)

	blurHorizontal(src, temp, w, h, kernel)
	blurVertical(temp, dst, w, h, kernel)
	return dst, nil
}

// blurHorizontal convolves each row of src into temp.
func blurHorizontal(src []byte, temp []float32, width, height int, kernel []float32) {
	kernelSize := len(kernel)
	halfKernel := kernelSize / 2

	for y := 0; y < height; y++ {
		row := y * width
		for x := 0; x < width; x++ {
			var r, g, b, a float32

			for k := 0; k < kernelSize; k++ {
				kx := clampInt(x+k-halfKernel, 0, width-1)
				srcIdx := (row + kx) * 4
				weight := kernel[k]

				r += float32(src[srcIdx+0]) * weight
				g += float32(src[srcIdx+1]) * weight
				b += float32(src[srcIdx+2]) * weight
				a += float32(src[srcIdx+3]) * weight
			}

			tempIdx := (row + x) * 4
			temp[tempIdx+0] = r
			temp[tempIdx+1] = g
			temp[tempIdx+2] = b
			temp[tempIdx+3] = a
		}
	}
}

// blurVertical convolves each column of temp into dst.
func blurVertical(temp []float32, dst []byte, width, height int, kernel []float32) {
	kernelSize := len(kernel)
	halfKernel := kernelSize / 2

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var r, g, b, a float32

			for k := 0; k < kernelSize; k++ {
				ky := clampInt(y+k-halfKernel, 0, height-1)
				tempIdx := (ky*width + x) * 4
				weight := kernel[k]

				r += temp[tempIdx+0] * weight
				g += temp[tempIdx+1] * weight
				b += temp[tempIdx+2] * weight
				a += temp[tempIdx+3] * weight
			}

			dstIdx := (y*width + x) * 4
			dst[dstIdx+0] = clampUint8(r)
			dst[dstIdx+1] = clampUint8(g)
			dst[dstIdx+2] = clampUint8(b)
			dst[dstIdx+3] = clampUint8(a)
		}
	}
}

// MaxDeviation returns the largest per-channel absolute difference between
// two equally sized pixel slices, or -1 if their lengths differ.
func MaxDeviation(a, b []byte) int {
	if len(a) != len(b) {
		return -1
	}
	worst := 0
	for i := range a {
		d := int(a[i]) - int(b[i])
		if d < 0 {
			d = -d
		}
		if d > worst {
			worst = d
		}
	}
	return worst
}

// floatBuffer wraps a slice for sync.Pool to avoid allocation warnings.
type floatBuffer struct {
	data []float32
}

var tempBufferPool = sync.Pool{
	New: func() interface{} {
		return &floatBuffer{data: make([]float32, 512*512*4)}
	},
}

// getTempBuffer retrieves a buffer of exactly width*height*4 elements.
// Every element is overwritten by blurHorizontal, so it is not cleared.
func getTempBuffer(width, height int) []float32 {
	size := width * height * 4
	wrapper := tempBufferPool.Get().(*floatBuffer)
	if len(wrapper.data) < size {
		tempBufferPool.Put(wrapper)
		return make([]float32, size)
	}
	return wrapper.data[:size]
}

// putTempBuffer returns a temporary buffer to the pool.
func putTempBuffer(buf []float32) {
	if cap(buf) <= 16*1024*1024 {
		tempBufferPool.Put(&floatBuffer{data: buf[:cap(buf)]})
	}
}

// clampInt clamps v to [minVal, maxVal].
func clampInt(v, minVal, maxVal int) int {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}

// clampUint8 clamps a float32 to [0, 255] and converts to uint8.
func clampUint8(v float32) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5) // Round to nearest
}
