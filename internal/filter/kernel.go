package filter

import (
	"math"
	"sync"
)

// KernelRadius returns ceil(3σ), the half-width of the Gaussian kernel for
// sigma. It returns 0 for sigma <= 0.
func KernelRadius(sigma float64) int {
	if sigma <= 0 {
		return 0
	}
	return int(math.Ceil(sigma * 3))
}

// GaussianKernel generates a 1D Gaussian kernel with standard deviation sigma.
// The kernel is normalized so all values sum to 1.0.
//
// The kernel size is 2*KernelRadius(sigma)+1, which covers 99.7% of the
// distribution (3 standard deviations). This is the same footprint the
// GPU kernel samples.
//
// For sigma <= 0, returns a single-element kernel [1.0] (identity).
func GaussianKernel(sigma float64) []float32 {
	if sigma <= 0 {
		return []float32{1.0}
	}

	halfSize := KernelRadius(sigma)
	size := halfSize*2 + 1
	kernel := make([]float32, size)

	// G(x) = exp(-x²/(2σ²)); the 1/(σ√(2π)) factor cancels on normalization.
	twoSigmaSq := 2 * sigma * sigma
	sum := float64(0)
	weights := make([]float64, size)
	for i := range weights {
		x := float64(i - halfSize)
		weights[i] = math.Exp(-(x * x) / twoSigmaSq)
		sum += weights[i]
	}
	for i, w := range weights {
		kernel[i] = float32(w / sum)
	}
	return kernel
}

// kernelCache caches computed Gaussian kernels to avoid recomputation.
// Keys are the exact bits of sigma; the GPU kernel uses sigma unrounded.
type kernelCache struct {
	mu     sync.RWMutex
	cache  map[uint64][]float32
	maxLen int
}

var defaultKernelCache = newKernelCache(16)

// newKernelCache creates a kernel cache with the given maximum entries.
func newKernelCache(maxLen int) *kernelCache {
	return &kernelCache{
		cache:  make(map[uint64][]float32),
		maxLen: maxLen,
	}
}

// get retrieves a kernel from cache or generates and caches it.
func (c *kernelCache) get(sigma float64) []float32 {
	key := math.Float64bits(sigma)

	c.mu.RLock()
	if kernel, ok := c.cache[key]; ok {
		c.mu.RUnlock()
		return kernel
	}
	c.mu.RUnlock()

	kernel := GaussianKernel(sigma)

	c.mu.Lock()
	if len(c.cache) >= c.maxLen {
		// Drop an arbitrary half; intensities repeat rarely within a process.
		n := 0
		for k := range c.cache {
			delete(c.cache, k)
			n++
			if n >= c.maxLen/2 {
				break
			}
		}
	}
	c.cache[key] = kernel
	c.mu.Unlock()

	return kernel
}

// CachedGaussianKernel returns a cached Gaussian kernel for sigma.
func CachedGaussianKernel(sigma float64) []float32 {
	return defaultKernelCache.get(sigma)
}
