// Package conditions loads the per-trial stimulus condition codes (for
// example stimulus frequency) in presentation order.
package conditions

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"widefield-mapper/internal/stage"
)

// Label is a discrete stimulus condition code.
type Label int

// Load reads condition labels from a CSV or JSON file. Each trial is one row;
// column selects which field of the row is the label.
//
// JSON files may hold a flat array of codes, an array of rows, or an object
// with a "stim_data" array of rows as exported from the stimulus software.
func Load(path string, column int) ([]Label, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read conditions: %w", err)
	}

	var labels []Label
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		labels, err = parseJSON(data, column)
	default:
		labels, err = parseCSV(bytes.NewReader(data), column)
	}
	if err != nil {
		return nil, err
	}
	if len(labels) == 0 {
		return nil, stage.Errorf(stage.Load, stage.ErrMalformedInput, "no condition labels in %s", path)
	}

	fmt.Printf("[Conditions] Loaded %d trial labels from %s\n", len(labels), path)
	return labels, nil
}

// Trim drops the first n labels, which belong to calibration triggers.
func Trim(labels []Label, n int) ([]Label, error) {
	if n < 0 || n > len(labels) {
		return nil, stage.Errorf(stage.Align, stage.ErrMalformedInput,
			"cannot drop %d calibration labels from %d", n, len(labels))
	}
	out := make([]Label, len(labels)-n)
	copy(out, labels[n:])
	return out, nil
}

// CheckAligned reports a malformed input when the trimmed labels and the
// trimmed onsets do not pair up one to one.
func CheckAligned(labels []Label, onsets int) error {
	if len(labels) != onsets {
		return stage.Errorf(stage.Align, stage.ErrMalformedInput,
			"%d condition labels for %d trigger onsets", len(labels), onsets)
	}
	return nil
}

func parseCSV(r io.Reader, column int) ([]Label, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var labels []Label
	line := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read conditions line %d: %w", line, err)
		}
		if line == 1 && !numericAt(row, column) {
			continue // header
		}
		if column >= len(row) {
			return nil, stage.Errorf(stage.Load, stage.ErrMalformedInput,
				"conditions line %d has %d columns, label column is %d", line, len(row), column)
		}

		v, err := strconv.ParseFloat(strings.TrimSpace(row[column]), 64)
		if err != nil {
			return nil, stage.Errorf(stage.Load, stage.ErrMalformedInput, "conditions line %d: invalid label %q", line, row[column])
		}
		l, err := toLabel(v)
		if err != nil {
			return nil, stage.Errorf(stage.Load, stage.ErrMalformedInput, "conditions line %d: %v", line, err)
		}
		labels = append(labels, l)
	}
	return labels, nil
}

// numericAt reports whether row has a number in column.
func numericAt(row []string, column int) bool {
	if column >= len(row) {
		return false
	}
	_, err := strconv.ParseFloat(strings.TrimSpace(row[column]), 64)
	return err == nil
}

func parseJSON(data []byte, column int) ([]Label, error) {
	var doc struct {
		StimData json.RawMessage `json:"stim_data"`
	}
	raw := json.RawMessage(data)
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse conditions JSON: %w", err)
		}
		if doc.StimData == nil {
			return nil, stage.Errorf(stage.Load, stage.ErrMalformedInput, "conditions JSON object has no stim_data")
		}
		raw = doc.StimData
	}

	var flat []float64
	if err := json.Unmarshal(raw, &flat); err == nil {
		if column != 0 {
			return nil, stage.Errorf(stage.Load, stage.ErrMalformedInput, "flat label list has no column %d", column)
		}
		return toLabels(flat)
	}

	var rows [][]float64
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, stage.Errorf(stage.Load, stage.ErrMalformedInput, "conditions JSON is neither a list nor a table: %v", err)
	}
	col := make([]float64, len(rows))
	for i, row := range rows {
		if column >= len(row) {
			return nil, stage.Errorf(stage.Load, stage.ErrMalformedInput,
				"conditions row %d has %d columns, label column is %d", i, len(row), column)
		}
		col[i] = row[column]
	}
	return toLabels(col)
}

func toLabels(values []float64) ([]Label, error) {
	out := make([]Label, len(values))
	for i, v := range values {
		l, err := toLabel(v)
		if err != nil {
			return nil, stage.Errorf(stage.Load, stage.ErrMalformedInput, "trial %d: %v", i, err)
		}
		out[i] = l
	}
	return out, nil
}

func toLabel(v float64) (Label, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
		return 0, fmt.Errorf("label %g is not an integer code", v)
	}
	return Label(v), nil
}
