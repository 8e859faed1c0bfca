// Package response reduces grouped trials to one spatial response map per
// stimulus condition: the per-pixel median, across repetitions, of the mean
// baseline z-score over a response window.
package response

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Window is a half-open frame range [Start, Stop) within an epoch.
type Window struct {
	Start int
	Stop  int
}

// Len is the number of frames in the window.
func (w Window) Len() int { return w.Stop - w.Start }

// ZScore transforms a pixel trace against its first baseline samples using
// the population standard deviation. A flat baseline yields an all-NaN series.
func ZScore(trace []float64, baseline int) []float64 {
	base := trace[:baseline]
	out := make([]float64, len(trace))
	if floats.Max(base) == floats.Min(base) {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}

	mean, std := stat.PopMeanStdDev(base, nil)
	for i, x := range trace {
		out[i] = (x - mean) / std
	}
	return out
}

// WindowMean averages series over w.
func WindowMean(series []float64, w Window) float64 {
	return stat.Mean(series[w.Start:w.Stop], nil)
}

// Median returns the median of values, averaging the two middle values for
// an even count. Any NaN makes the median NaN. values is not modified.
func Median(values []float64) float64 {
	if len(values) == 0 || floats.HasNaN(values) {
		return math.NaN()
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	return medianInPlace(sorted)
}

// medianInPlace sorts buf and returns its median. buf must be non-empty and
// NaN-free.
func medianInPlace(sorted []float64) float64 {
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
