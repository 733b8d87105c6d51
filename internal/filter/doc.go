// Package filter is the host-side Gaussian blur used to check GPU results.
//
// Blur works on raw RGBA8 pixel slices with the same footprint, edge
// handling and rounding as the compute kernel, so the two agree to within
// floating point rounding (at most one or two levels per channel).
package filter
