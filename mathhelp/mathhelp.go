package mathhelp

import "golang.org/x/exp/constraints"

func Bool2int(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Clamp limits v to the closed interval [lo, hi].
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Rescale maps v linearly from [lo, hi] onto [0, 1], clamped.
// A degenerate interval maps everything to 0.
func Rescale(v, lo, hi float64) float64 {
	if hi <= lo {
		return 0
	}
	return Clamp((v-lo)/(hi-lo), 0, 1)
}
