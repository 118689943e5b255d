package imgproc

// Canny thresholds used for edge density.
const (
	CannyLow  = 100
	CannyHigh = 200
)

// tan(22.5°) and tan(67.5°) in Q15 fixed point.
const (
	tan22 = 13573
	tan67 = 79109
)

// Canny runs a Canny edge detector over a luma plane with 3x3 Sobel
// gradients and an L1 magnitude. It returns an edge mask of w*h entries.
func Canny(luma []uint8, w, h int, low, high int) []bool {
	edges := make([]bool, w*h)
	if w < 1 || h < 1 || len(luma) < w*h {
		return edges
	}

	gx := make([]int, w*h)
	gy := make([]int, w*h)
	mag := make([]int, w*h)
	at := func(x, y int) int {
		x = min(max(x, 0), w-1)
		y = min(max(y, 0), h-1)
		return int(luma[y*w+x])
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx := at(x+1, y-1) + 2*at(x+1, y) + at(x+1, y+1) -
				at(x-1, y-1) - 2*at(x-1, y) - at(x-1, y+1)
			dy := at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1) -
				at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1)
			i := y*w + x
			gx[i], gy[i] = dx, dy
			mag[i] = abs(dx) + abs(dy)
		}
	}

	m := func(x, y int) int {
		if x < 0 || y < 0 || x >= w || y >= h {
			return 0
		}
		return mag[y*w+x]
	}

	// Non-maximum suppression: 0 suppressed, 1 weak, 2 strong.
	class := make([]uint8, w*h)
	var stack []int
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			v := mag[i]
			if v <= low {
				continue
			}
			ax, ay := abs(gx[i]), abs(gy[i])
			var keep bool
			switch {
			case ay<<15 < ax*tan22:
				keep = v > m(x-1, y) && v >= m(x+1, y)
			case ay<<15 > ax*tan67:
				keep = v > m(x, y-1) && v >= m(x, y+1)
			default:
				s := 1
				if (gx[i] < 0) != (gy[i] < 0) {
					s = -1
				}
				keep = v > m(x-s, y-1) && v > m(x+s, y+1)
			}
			if !keep {
				continue
			}
			if v > high {
				class[i] = 2
				edges[i] = true
				stack = append(stack, i)
			} else {
				class[i] = 1
			}
		}
	}

	// Hysteresis: promote weak pixels 8-connected to a strong one.
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := x+dx, y+dy
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				j := ny*w + nx
				if class[j] == 1 {
					class[j] = 2
					edges[j] = true
					stack = append(stack, j)
				}
			}
		}
	}
	return edges
}

// EdgeDensity returns the fraction of pixels Canny marks as edges.
func EdgeDensity(luma []uint8, w, h int) float64 {
	if w*h == 0 {
		return 0
	}
	n := 0
	for _, e := range Canny(luma, w, h, CannyLow, CannyHigh) {
		if e {
			n++
		}
	}
	return float64(n) / float64(w*h)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
