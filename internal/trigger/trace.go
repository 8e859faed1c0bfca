// Package trigger reads the stimulus trigger voltage trace and converts its
// pulses into onset frames in the recording's time base.
package trigger

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"widefield-mapper/internal/stage"
)

// Sample is one reading of the trigger line.
type Sample struct {
	TimeMs  float64
	Voltage float64
}

// Trace is the trigger line sampled at a fixed rate, in chronological order.
type Trace []Sample

// ReadCSV reads a trigger trace from a CSV file whose first row is a header.
// Rows are (timestamp_ms, voltage). Single-column files carry voltage only;
// their timestamps are derived from sampleRate (samples per second).
func ReadCSV(path string, sampleRate float64) (Trace, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trigger CSV: %w", err)
	}
	defer file.Close()

	trace, err := ParseCSV(file, sampleRate)
	if err != nil {
		return nil, err
	}
	fmt.Printf("[Trigger] Loaded %d samples from %s\n", len(trace), path)
	return trace, nil
}

// ParseCSV reads a trigger trace from r; see ReadCSV.
func ParseCSV(r io.Reader, sampleRate float64) (Trace, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return nil, stage.Errorf(stage.Load, stage.ErrMalformedInput, "trigger CSV is empty")
		}
		return nil, fmt.Errorf("failed to read trigger CSV header: %w", err)
	}

	var trace Trace
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read trigger CSV line %d: %w", line, err)
		}
		if len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			continue
		}

		s, err := parseRow(row, len(trace), sampleRate)
		if err != nil {
			return nil, stage.Errorf(stage.Load, stage.ErrMalformedInput, "trigger CSV line %d: %v", line, err)
		}
		trace = append(trace, s)
	}
	return trace, nil
}

func parseRow(row []string, index int, sampleRate float64) (Sample, error) {
	if len(row) == 1 {
		if sampleRate <= 0 {
			return Sample{}, fmt.Errorf("voltage-only row needs a positive trigger sample rate")
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(row[0]), 64)
		if err != nil {
			return Sample{}, fmt.Errorf("invalid voltage: %w", err)
		}
		return Sample{TimeMs: float64(index) / sampleRate * 1000, Voltage: v}, nil
	}

	t, err := strconv.ParseFloat(strings.TrimSpace(row[0]), 64)
	if err != nil {
		return Sample{}, fmt.Errorf("invalid timestamp: %w", err)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
	if err != nil {
		return Sample{}, fmt.Errorf("invalid voltage: %w", err)
	}
	return Sample{TimeMs: t, Voltage: v}, nil
}
