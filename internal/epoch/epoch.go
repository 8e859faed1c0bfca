// Package epoch cuts fixed-length trial windows out of a recording and
// normalizes each trial to its own pre-stimulus baseline.
package epoch

import (
	"widefield-mapper/internal/config"
	"widefield-mapper/internal/recording"
	"widefield-mapper/internal/stage"
	"widefield-mapper/internal/trigger"
)

// Epoch is one trial's Frames×Height×Width window, frame-major like the
// recording it was cut from.
type Epoch struct {
	Trial  int           // position in the trimmed onset sequence
	Onset  trigger.Onset // onset frame the window is anchored on
	Frames int
	Height int
	Width  int
	Data   []float64
}

// Pixels is the number of samples per frame.
func (e *Epoch) Pixels() int { return e.Height * e.Width }

// Frame returns frame t as a view into Data.
func (e *Epoch) Frame(t int) []float64 {
	size := e.Pixels()
	return e.Data[t*size : (t+1)*size]
}

// Trace copies the time series of pixel p.
func (e *Epoch) Trace(p int) []float64 {
	size := e.Pixels()
	out := make([]float64, e.Frames)
	for t := range out {
		out[t] = e.Data[t*size+p]
	}
	return out
}

// like returns an epoch with the same metadata and a zeroed buffer.
func (e *Epoch) like() *Epoch {
	out := *e
	out.Data = make([]float64, len(e.Data))
	return &out
}

// Extract slices one window per onset out of rec. The final onset is never
// used: its forward window may run past the end of the recording. Windows
// that fall outside the recording are an error, never padded.
func Extract(rec *recording.Recording, onsets []trigger.Onset, cfg config.Config) ([]*Epoch, error) {
	if len(onsets) < 2 {
		return nil, stage.Errorf(stage.Extract, stage.ErrMalformedInput,
			"need at least 2 onsets to extract a trial, got %d", len(onsets))
	}

	length := cfg.TrialLengthFrames()
	startOff, endOff := cfg.EpochOffsets()

	epochs := make([]*Epoch, 0, len(onsets)-1)
	for i, onset := range onsets[:len(onsets)-1] {
		start := onset.Frame() + startOff
		end := onset.Frame() + endOff

		if end-start != length {
			return nil, stage.Errorf(stage.Extract, stage.ErrMalformedInput,
				"window [%d,%d) has %d frames, expected %d", start, end, end-start, length).WithTrial(i)
		}
		if start < 0 || end > rec.Frames {
			return nil, stage.Errorf(stage.Extract, stage.ErrBounds,
				"window [%d,%d) outside recording of %d frames", start, end, rec.Frames).WithTrial(i)
		}

		span := rec.Span(start, end)
		data := make([]float64, len(span))
		copy(data, span)

		epochs = append(epochs, &Epoch{
			Trial:  i,
			Onset:  onset,
			Frames: length,
			Height: rec.Height,
			Width:  rec.Width,
			Data:   data,
		})
	}
	return epochs, nil
}
