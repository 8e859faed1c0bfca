package response

import (
	"math"
	"sort"
	"sync/atomic"

	"widefield-mapper/internal/conditions"
	"widefield-mapper/internal/epoch"
	"widefield-mapper/internal/stage"
	"widefield-mapper/internal/trials"
	"widefield-mapper/pkg/parallel"

	"gonum.org/v1/gonum/floats"
)

// Map is the response map of one condition, row-major Height×Width.
type Map struct {
	Label  conditions.Label
	Reps   int // repetitions the median was taken over
	Height int
	Width  int
	Data   []float64
}

// At returns the value at row y, column x.
func (m *Map) At(y, x int) float64 { return m.Data[y*m.Width+x] }

// Maps holds one response map per condition.
type Maps map[conditions.Label]*Map

// Labels returns the conditions in ascending order.
func (ms Maps) Labels() []conditions.Label {
	labels := make([]conditions.Label, 0, len(ms))
	for l := range ms {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })
	return labels
}

// Options configures Reduce.
type Options struct {
	Window   Window // response window, frames within the epoch
	Baseline int    // leading frames the z-score is taken against
	Workers  int
	// Strict fails on a zero-variance baseline instead of propagating NaN.
	Strict bool
}

// Stats summarizes what Reduce saw.
type Stats struct {
	// Degenerate counts (trial, pixel) pairs whose baseline was flat and
	// whose response scalar is therefore NaN.
	Degenerate int
}

// Reduce computes one response map per condition. For each repetition and
// pixel the trace is z-scored against its baseline and averaged over the
// response window; each map cell is the median of those scalars across
// repetitions. Pixels are processed in stripes across workers, each writing
// only its own range of the output.
func Reduce(groups trials.Groups, opts Options) (Maps, Stats, error) {
	var stats Stats
	maps := make(Maps, len(groups))

	for _, label := range groups.Labels() {
		m, degenerate, err := reduceGroup(groups[label], opts)
		if err != nil {
			return nil, stats, err
		}
		stats.Degenerate += degenerate
		maps[label] = m
	}
	return maps, stats, nil
}

func reduceGroup(g *trials.Group, opts Options) (*Map, int, error) {
	if g.Count() == 0 {
		return nil, 0, stage.Errorf(stage.Reduce, stage.ErrDegenerateStatistics,
			"no repetitions to take a median over").WithCondition(g.Label)
	}
	if err := checkShapes(g, opts); err != nil {
		return nil, 0, err
	}

	first := g.Rep(1)
	pixels := first.Pixels()
	m := &Map{
		Label:  g.Label,
		Reps:   g.Count(),
		Height: first.Height,
		Width:  first.Width,
		Data:   make([]float64, pixels),
	}

	// scalars[r][p] is the mean window z-score of repetition r at pixel p
	scalars := make([][]float64, g.Count())
	for r := range scalars {
		scalars[r] = make([]float64, pixels)
	}

	var degenerate atomic.Int64
	err := parallel.StripesErr(pixels, opts.Workers, func(lo, hi int) error {
		for r, e := range g.Reps {
			n, p := windowScores(e, lo, hi, opts, scalars[r][lo:hi])
			degenerate.Add(int64(n))
			if n > 0 && opts.Strict {
				return stage.Errorf(stage.Reduce, stage.ErrDegenerateStatistics,
					"baseline standard deviation is zero in repetition %d", r+1).
					WithCondition(g.Label).WithTrial(e.Trial).WithPixel(p, e.Width)
			}
		}

		buf := make([]float64, g.Count())
		for p := lo; p < hi; p++ {
			nan := false
			for r := range scalars {
				buf[r] = scalars[r][p]
				nan = nan || math.IsNaN(buf[r])
			}
			if nan {
				m.Data[p] = math.NaN()
			} else {
				m.Data[p] = medianInPlace(buf)
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return m, int(degenerate.Load()), nil
}

// windowScores fills out with the mean window z-score of pixels [lo, hi) of
// e. Because the z-score is affine in the sample, the mean z over the window
// equals (window mean - baseline mean) / baseline std, which lets whole frame
// stripes be combined with vector operations. It returns the number of flat
// baselines found and the first flat pixel.
func windowScores(e *epoch.Epoch, lo, hi int, opts Options, out []float64) (flat, firstFlat int) {
	n := hi - lo
	mean := make([]float64, n)
	variance := make([]float64, n)
	resp := make([]float64, n)
	tmp := make([]float64, n)

	for t := 0; t < opts.Baseline; t++ {
		floats.Add(mean, e.Frame(t)[lo:hi])
	}
	floats.Scale(1/float64(opts.Baseline), mean)

	for t := 0; t < opts.Baseline; t++ {
		floats.SubTo(tmp, e.Frame(t)[lo:hi], mean)
		floats.Mul(tmp, tmp)
		floats.Add(variance, tmp)
	}
	floats.Scale(1/float64(opts.Baseline), variance)

	for t := opts.Window.Start; t < opts.Window.Stop; t++ {
		floats.Add(resp, e.Frame(t)[lo:hi])
	}
	floats.Scale(1/float64(opts.Window.Len()), resp)

	isFlat := flatBaseline(e, lo, hi, opts.Baseline)
	firstFlat = -1
	for i := range out {
		if isFlat[i] {
			out[i] = math.NaN()
			if firstFlat < 0 {
				firstFlat = lo + i
			}
			flat++
			continue
		}
		out[i] = (resp[i] - mean[i]) / math.Sqrt(variance[i])
	}
	return flat, firstFlat
}

// flatBaseline marks pixels whose baseline samples are all identical. The
// test is exact so that rounding in the mean cannot hide a zero variance.
func flatBaseline(e *epoch.Epoch, lo, hi, baseline int) []bool {
	flat := make([]bool, hi-lo)
	ref := e.Frame(0)[lo:hi]
	for i := range flat {
		flat[i] = true
	}
	for t := 1; t < baseline; t++ {
		f := e.Frame(t)[lo:hi]
		for i, v := range f {
			if v != ref[i] {
				flat[i] = false
			}
		}
	}
	return flat
}

func checkShapes(g *trials.Group, opts Options) error {
	first := g.Rep(1)
	for n := 2; n <= g.Count(); n++ {
		e := g.Rep(n)
		if e.Frames != first.Frames || e.Height != first.Height || e.Width != first.Width {
			return stage.Errorf(stage.Reduce, stage.ErrMalformedInput,
				"repetition %d is %dx%dx%d, repetition 1 is %dx%dx%d", n,
				e.Frames, e.Height, e.Width, first.Frames, first.Height, first.Width).
				WithCondition(g.Label).WithTrial(e.Trial)
		}
	}
	if opts.Baseline < 1 || opts.Baseline > first.Frames {
		return stage.Errorf(stage.Reduce, stage.ErrMalformedInput,
			"%d baseline frames for epochs of %d frames", opts.Baseline, first.Frames).WithCondition(g.Label)
	}
	w := opts.Window
	if w.Start < 0 || w.Stop <= w.Start || w.Stop > first.Frames {
		return stage.Errorf(stage.Reduce, stage.ErrMalformedInput,
			"response window [%d,%d) outside epochs of %d frames", w.Start, w.Stop, first.Frames).WithCondition(g.Label)
	}
	return nil
}
