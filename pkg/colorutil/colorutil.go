// Package colorutil provides shared color and intensity helpers for the
// overlay renderer.
package colorutil

import (
	"image/color"
	"math"
)

// Common figure colors.
var (
	Black    = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	White    = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	DarkGray = color.RGBA{R: 40, G: 40, B: 40, A: 255}
	Clear    = color.NRGBA{}
)

// MinMax rescales values linearly onto [0, 1]. Constant input is returned
// unchanged (clamped to [0, 1]) since it has no range to stretch.
func MinMax(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	for i, v := range values {
		if hi == lo {
			out[i] = Clamp01(v)
		} else {
			out[i] = (v - lo) / (hi - lo)
		}
	}
	return out
}

// Clamp01 limits x to [0, 1].
func Clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// Level converts a [0, 1] intensity to an 8-bit level.
func Level(x float64) uint8 {
	return uint8(math.Round(Clamp01(x) * 255))
}
