package trigger

import (
	"math"

	"widefield-mapper/internal/config"
	"widefield-mapper/internal/stage"
)

// Onset is a stimulus onset expressed as a (fractional) recording frame.
type Onset float64

// Frame is the onset rounded half to even to the nearest recording frame.
func (o Onset) Frame() int { return int(math.RoundToEven(float64(o))) }

// Detect returns the timestamps (ms) of every trigger pulse in the trace.
//
// The trigger level is the trace's maximum voltage. A sample is a candidate
// when its voltage rounds (half to even) to the same integer as the maximum.
// The first candidate starts a pulse; later candidates start a new pulse only
// when they come more than debounceMs after the previous pulse. Spacing is
// measured on raw trigger timestamps, before the trigger delay is applied.
func Detect(trace Trace, debounceMs float64) []float64 {
	if len(trace) == 0 {
		return nil
	}

	maxV := trace[0].Voltage
	for _, s := range trace[1:] {
		if s.Voltage > maxV {
			maxV = s.Voltage
		}
	}
	level := math.RoundToEven(maxV)

	var pulses []float64
	for _, s := range trace {
		if math.RoundToEven(s.Voltage) != level {
			continue
		}
		if len(pulses) == 0 || s.TimeMs-pulses[len(pulses)-1] > debounceMs {
			pulses = append(pulses, s.TimeMs)
		}
	}
	return pulses
}

// Align converts trigger pulses to onset frames, shifting each by the
// configured trigger delay, and discards the leading calibration pulses.
// A trace with no more pulses than calibration triggers is malformed.
func Align(trace Trace, cfg config.Config) ([]Onset, error) {
	if len(trace) == 0 {
		return nil, stage.Errorf(stage.Align, stage.ErrMalformedInput, "trigger trace is empty")
	}

	pulses := Detect(trace, cfg.DebounceMs)
	if len(pulses) <= cfg.CalibrationTriggers {
		return nil, stage.Errorf(stage.Align, stage.ErrMalformedInput,
			"detected %d trigger onsets, need more than %d calibration triggers", len(pulses), cfg.CalibrationTriggers)
	}

	onsets := make([]Onset, 0, len(pulses)-cfg.CalibrationTriggers)
	for _, t := range pulses[cfg.CalibrationTriggers:] {
		sec := (t + cfg.TriggerDelayMs) / 1000
		onsets = append(onsets, Onset(sec*cfg.RecordingFrameRate))
	}
	return onsets, nil
}
