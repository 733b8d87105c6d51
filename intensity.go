package gpublur

import (
	"math"

	"github.com/gogpu/gpublur/internal/gpu"
)

// Intensity bounds. Intensity is the standard deviation of the Gaussian in
// pixels; the kernel samples a radius of ceil(3*intensity).
const (
	MinIntensity     = gpu.MinIntensity
	MaxIntensity     = gpu.MaxIntensity
	DefaultIntensity = 1.0
)

// ClampIntensity limits v to [MinIntensity, MaxIntensity] and reports
// whether it had to change it. NaN clamps to MinIntensity.
func ClampIntensity(v float64) (float64, bool) {
	switch {
	case math.IsNaN(v), v < MinIntensity:
		return MinIntensity, true
	case v > MaxIntensity:
		return MaxIntensity, true
	default:
		return v, false
	}
}
