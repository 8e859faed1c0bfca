package epoch

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"widefield-mapper/internal/config"
	"widefield-mapper/internal/recording"
	"widefield-mapper/internal/stage"
	"widefield-mapper/internal/trigger"
)

const difTol = 1e-9

// ramp is a 30-frame 2x2 recording where sample (t, p) = 10t + p.
func ramp() *recording.Recording {
	rec := recording.New(30, 2, 2)
	for t := 0; t < rec.Frames; t++ {
		f := rec.Frame(t)
		for p := range f {
			f[p] = float64(10*t + p)
		}
	}
	return rec
}

// msConfig runs the recording at 1 frame per ms with windows [-2, +3) ms.
func msConfig() config.Config {
	cfg := config.Default()
	cfg.RecordingFrameRate = 1000
	cfg.EpochStartMs = -2
	cfg.EpochEndMs = 3
	return cfg
}

func TestExtractSkipsFinalOnset(t *testing.T) {
	epochs, err := Extract(ramp(), []trigger.Onset{5, 12.4, 20}, msConfig())
	require.NoError(t, err)
	require.Len(t, epochs, 2)

	for i, e := range epochs {
		assert.Equal(t, i, e.Trial)
		assert.Equal(t, 5, e.Frames)
		assert.Equal(t, 2, e.Height)
		assert.Equal(t, 2, e.Width)
		assert.Len(t, e.Data, 5*4)
	}

	// onset 5: frames 3..7
	assert.Equal(t, []float64{30, 40, 50, 60, 70}, epochs[0].Trace(0))
	// onset 12.4 rounds to 12: frames 10..14
	assert.Equal(t, []float64{103, 113, 123, 133, 143}, epochs[1].Trace(3))
}

func TestExtractCopiesData(t *testing.T) {
	rec := ramp()
	epochs, err := Extract(rec, []trigger.Onset{5, 12}, msConfig())
	require.NoError(t, err)

	epochs[0].Data[0] = -1
	assert.Equal(t, 30.0, rec.Frame(3)[0])
}

func TestExtractBounds(t *testing.T) {
	tests := []struct {
		name   string
		onsets []trigger.Onset
		trial  int
	}{
		{"before start", []trigger.Onset{1, 10}, 0},
		{"past end", []trigger.Onset{10, 28, 29}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract(ramp(), tt.onsets, msConfig())
			require.Error(t, err)
			assert.True(t, errors.Is(err, stage.ErrBounds))

			var se *stage.Error
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.trial, se.Trial)
		})
	}
}

func TestExtractNeedsTwoOnsets(t *testing.T) {
	_, err := Extract(ramp(), []trigger.Onset{10}, msConfig())
	assert.True(t, errors.Is(err, stage.ErrMalformedInput))
}

func TestExtractRejectsUnevenRounding(t *testing.T) {
	cfg := msConfig()
	cfg.EpochStartMs = -2.5
	cfg.EpochEndMs = 7.5

	_, err := Extract(ramp(), []trigger.Onset{10, 20}, cfg)
	assert.True(t, errors.Is(err, stage.ErrMalformedInput))
}

func TestNormalizeSubtractsBaselineMean(t *testing.T) {
	epochs, err := Extract(ramp(), []trigger.Onset{5, 12}, msConfig())
	require.NoError(t, err)

	norm, err := Normalize(epochs, 2, 4)
	require.NoError(t, err)
	require.Len(t, norm, 1)

	// trace 30,40,50,60,70 with baseline mean 35
	assert.InDeltaSlice(t, []float64{-5, 5, 15, 25, 35}, norm[0].Trace(0), difTol)
	assert.Equal(t, 30.0, epochs[0].Trace(0)[0], "input is not modified")
	assert.Equal(t, epochs[0].Trial, norm[0].Trial)
}

func TestNormalizeIsIdempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	e := &Epoch{Frames: 12, Height: 3, Width: 4}
	e.Data = make([]float64, e.Frames*e.Pixels())
	for i := range e.Data {
		e.Data[i] = 1000 + 50*rng.NormFloat64()
	}

	once, err := Normalize([]*Epoch{e}, 5, 2)
	require.NoError(t, err)
	twice, err := Normalize(once, 5, 2)
	require.NoError(t, err)

	assert.InDeltaSlice(t, once[0].Data, twice[0].Data, 1e-9)
	for _, m := range BaselineMean(once[0], 5) {
		assert.InDelta(t, 0, m, 1e-9)
	}
}

func TestNormalizeRejectsLongBaseline(t *testing.T) {
	e := &Epoch{Trial: 4, Frames: 3, Height: 1, Width: 1, Data: []float64{1, 2, 3}}

	_, err := Normalize([]*Epoch{e}, 4, 1)
	assert.True(t, errors.Is(err, stage.ErrMalformedInput))

	_, err = Normalize([]*Epoch{e}, 0, 1)
	assert.True(t, errors.Is(err, stage.ErrMalformedInput))
}
