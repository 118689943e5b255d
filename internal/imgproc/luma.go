// Package imgproc implements the grayscale image measurements used by the
// keyframe detectors.
package imgproc

import "math"

// Luma converts packed RGB24 pixels to 8-bit luma using BT.601 weights.
func Luma(rgb []byte) []uint8 {
	out := make([]uint8, len(rgb)/3)
	for i, j := 0, 0; j < len(out); i, j = i+3, j+1 {
		y := 0.299*float64(rgb[i]) + 0.587*float64(rgb[i+1]) + 0.114*float64(rgb[i+2])
		out[j] = uint8(math.Min(255, y+0.5))
	}
	return out
}

// MeanAbsDiff returns the mean absolute difference between two equally
// sized luma planes. Mismatched sizes compare the common prefix.
func MeanAbsDiff(a, b []uint8) float64 {
	n := min(len(a), len(b))
	if n == 0 {
		return 0
	}
	var sum uint64
	for i := 0; i < n; i++ {
		d := int(a[i]) - int(b[i])
		if d < 0 {
			d = -d
		}
		sum += uint64(d)
	}
	return float64(sum) / float64(n)
}

// StdDev returns the population standard deviation of a luma plane.
func StdDev(luma []uint8) float64 {
	if len(luma) == 0 {
		return 0
	}
	var sum, sumSq float64
	for _, v := range luma {
		f := float64(v)
		sum += f
		sumSq += f * f
	}
	n := float64(len(luma))
	mean := sum / n
	variance := sumSq/n - mean*mean
	if variance < 0 {
		return 0
	}
	return math.Sqrt(variance)
}
