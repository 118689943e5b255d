package keyframe

import "testing"

func flatLuma(w, h int, v uint8) []uint8 {
	luma := make([]uint8, w*h)
	for i := range luma {
		luma[i] = v
	}
	return luma
}

// stepLuma is half black, half white, giving full contrast and one edge per row.
func stepLuma(w, h int) []uint8 {
	luma := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		for x := w / 2; x < w; x++ {
			luma[y*w+x] = 255
		}
	}
	return luma
}

func TestClassifyTransition(t *testing.T) {
	const w, h = 16, 8
	tests := []struct {
		name        string
		luma        []uint8
		history     []float64
		sensitivity float64
		want        Classification
	}{
		{
			name:        "flat frame is a fade",
			luma:        flatLuma(w, h, 40),
			history:     []float64{5, 50, 10},
			sensitivity: 0.4,
			want:        Classification{LowContrast: true, LowEdgeDensity: true, Confidence: 0.8, IsTransition: true},
		},
		{
			name:        "sharp frame is not a transition",
			luma:        stepLuma(w, h),
			history:     []float64{5, 50, 10},
			sensitivity: 0.4,
			want:        Classification{},
		},
		{
			name:        "monotonic history alone does not reach sensitivity",
			luma:        stepLuma(w, h),
			history:     []float64{10, 20, 30},
			sensitivity: 0.4,
			want:        Classification{TemporalMonotonic: true, Confidence: 0.2},
		},
		{
			name:        "strict sensitivity needs all three signals",
			luma:        flatLuma(w, h, 40),
			history:     []float64{5, 50, 10},
			sensitivity: 0.9,
			want:        Classification{LowContrast: true, LowEdgeDensity: true, Confidence: 0.8},
		},
		{
			name:        "all three signals at strict sensitivity",
			luma:        flatLuma(w, h, 40),
			history:     []float64{90, 60, 30},
			sensitivity: 0.9,
			want:        Classification{LowContrast: true, LowEdgeDensity: true, TemporalMonotonic: true, Confidence: 1.0, IsTransition: true},
		},
		{
			name:        "zero sensitivity flags any signal",
			luma:        stepLuma(w, h),
			history:     []float64{1, 2, 3},
			sensitivity: 0,
			want:        Classification{TemporalMonotonic: true, Confidence: 0.2, IsTransition: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyTransition(tt.luma, w, h, tt.history, tt.sensitivity)
			if got.LowContrast != tt.want.LowContrast ||
				got.LowEdgeDensity != tt.want.LowEdgeDensity ||
				got.TemporalMonotonic != tt.want.TemporalMonotonic ||
				got.IsTransition != tt.want.IsTransition {
				t.Errorf("ClassifyTransition() = %+v, want %+v", got, tt.want)
			}
			if d := got.Confidence - tt.want.Confidence; d > 1e-9 || d < -1e-9 {
				t.Errorf("confidence = %g, want %g", got.Confidence, tt.want.Confidence)
			}
			if IsTransition(tt.luma, w, h, tt.history, tt.sensitivity) != got.IsTransition {
				t.Error("IsTransition disagrees with ClassifyTransition")
			}
		})
	}
}

func TestMonotonic(t *testing.T) {
	tests := []struct {
		history []float64
		want    bool
	}{
		{nil, false},
		{[]float64{1, 2}, false},
		{[]float64{1, 2, 3}, true},
		{[]float64{3, 2, 1}, true},
		{[]float64{1, 2, 2}, false},
		{[]float64{9, 1, 2, 3}, true},
		{[]float64{1, 2, 3, 1}, false},
	}

	for _, tt := range tests {
		if got := monotonic(tt.history); got != tt.want {
			t.Errorf("monotonic(%v) = %v, want %v", tt.history, got, tt.want)
		}
	}
}

func TestDiffHistoryKeepsLastFive(t *testing.T) {
	var h diffHistory
	for i := 1; i <= 8; i++ {
		h.push(float64(i))
	}
	got := h.snapshot()
	want := []float64{4, 5, 6, 7, 8}
	if len(got) != len(want) {
		t.Fatalf("snapshot = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("snapshot = %v, want %v", got, want)
		}
	}
}
