package epoch

import (
	"widefield-mapper/internal/stage"
	"widefield-mapper/pkg/parallel"

	"gonum.org/v1/gonum/floats"
)

// Normalize subtracts, per trial and per pixel, the mean of the first
// baseline frames from every frame of that pixel's trace. Trials are
// independent and processed across workers; the input is not modified.
func Normalize(epochs []*Epoch, baseline, workers int) ([]*Epoch, error) {
	for _, e := range epochs {
		if baseline < 1 || baseline > e.Frames {
			return nil, stage.Errorf(stage.Normalize, stage.ErrMalformedInput,
				"%d baseline frames for an epoch of %d frames", baseline, e.Frames).WithTrial(e.Trial)
		}
	}

	out := make([]*Epoch, len(epochs))
	parallel.Stripes(len(epochs), workers, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			out[i] = subtractBaseline(epochs[i], baseline)
		}
	})
	return out, nil
}

// BaselineMean returns the per-pixel mean of the first n frames.
func BaselineMean(e *Epoch, n int) []float64 {
	mean := make([]float64, e.Pixels())
	for t := 0; t < n; t++ {
		floats.Add(mean, e.Frame(t))
	}
	floats.Scale(1/float64(n), mean)
	return mean
}

func subtractBaseline(e *Epoch, n int) *Epoch {
	mean := BaselineMean(e, n)
	out := e.like()
	for t := 0; t < e.Frames; t++ {
		floats.SubTo(out.Frame(t), e.Frame(t), mean)
	}
	return out
}
