package imgproc

import "math"

// HistogramBins is the number of grayscale bins used for scene comparison.
const HistogramBins = 64

// Histogram is a normalized grayscale histogram.
type Histogram [HistogramBins]float64

// NewHistogram bins a luma plane into 64 buckets of width 4 and min-max
// normalizes the counts to [0,1]. A histogram whose bins are all equal
// normalizes to all zeros.
func NewHistogram(luma []uint8) Histogram {
	var h Histogram
	for _, v := range luma {
		h[v>>2]++
	}
	lo, hi := h[0], h[0]
	for _, c := range h[1:] {
		lo = math.Min(lo, c)
		hi = math.Max(hi, c)
	}
	span := hi - lo
	for i := range h {
		if span == 0 {
			h[i] = 0
			continue
		}
		h[i] = (h[i] - lo) / span
	}
	return h
}

// Bhattacharyya returns the Bhattacharyya distance between two histograms,
// 0 for identical shapes and 1 for disjoint ones. Two empty histograms are
// identical; one empty histogram is disjoint from any other.
func Bhattacharyya(a, b Histogram) float64 {
	var sa, sb, cross float64
	for i := range a {
		sa += a[i]
		sb += b[i]
		cross += math.Sqrt(a[i] * b[i])
	}
	switch {
	case sa == 0 && sb == 0:
		return 0
	case sa == 0 || sb == 0:
		return 1
	}
	return math.Sqrt(math.Max(1-cross/math.Sqrt(sa*sb), 0))
}
