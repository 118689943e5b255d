package keyframe

import "github.com/five82/keyframes/internal/imgproc"

// HistoryLen is how many recent frame differences the classifier keeps.
const HistoryLen = 5

// Classification is the breakdown behind a transition decision.
type Classification struct {
	LowContrast       bool
	LowEdgeDensity    bool
	TemporalMonotonic bool
	Confidence        float64
	IsTransition      bool
}

// ClassifyTransition scores how likely a frame belongs to a fade or wipe.
// history holds the most recent mean differences, oldest first, including
// the current frame's. The result only annotates a frame.
func ClassifyTransition(luma []uint8, width, height int, history []float64, sensitivity float64) Classification {
	var c Classification

	contrast := imgproc.StdDev(luma) / 128
	c.LowContrast = contrast < 0.1+0.2*sensitivity

	density := imgproc.EdgeDensity(luma, width, height)
	c.LowEdgeDensity = density < 0.01+0.05*sensitivity

	c.TemporalMonotonic = monotonic(history)

	if c.LowContrast {
		c.Confidence += 0.4
	}
	if c.LowEdgeDensity {
		c.Confidence += 0.4
	}
	if c.TemporalMonotonic {
		c.Confidence += 0.2
	}
	c.IsTransition = c.Confidence > sensitivity
	return c
}

// IsTransition reports whether a frame looks like part of a transition.
func IsTransition(luma []uint8, width, height int, history []float64, sensitivity float64) bool {
	return ClassifyTransition(luma, width, height, history, sensitivity).IsTransition
}

// monotonic reports whether the last three values strictly rise or strictly fall.
func monotonic(history []float64) bool {
	if len(history) < 3 {
		return false
	}
	a, b, c := history[len(history)-3], history[len(history)-2], history[len(history)-1]
	return (a < b && b < c) || (a > b && b > c)
}

// diffHistory is a bounded window of recent mean differences.
type diffHistory struct {
	values []float64
}

func (h *diffHistory) push(v float64) {
	if len(h.values) == HistoryLen {
		copy(h.values, h.values[1:])
		h.values = h.values[:HistoryLen-1]
	}
	h.values = append(h.values, v)
}

func (h *diffHistory) snapshot() []float64 {
	return append([]float64(nil), h.values...)
}
