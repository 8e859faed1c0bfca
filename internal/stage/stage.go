// Package stage names the pipeline stages and carries the error taxonomy
// shared by every stage. Errors abort the run; nothing is retried.
package stage

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedInput is returned when a trigger trace, label file or
	// configuration violates a stated invariant.
	ErrMalformedInput = errors.New("malformed input")

	// ErrBounds is returned when an epoch window extends outside the recording.
	ErrBounds = errors.New("epoch window out of bounds")

	// ErrDegenerateStatistics is returned when a statistic is undefined,
	// e.g. a zero-variance baseline or an empty condition group.
	ErrDegenerateStatistics = errors.New("degenerate statistics")
)

// Name identifies a pipeline stage.
type Name string

const (
	Config    Name = "config"
	Load      Name = "load"
	Align     Name = "align"
	Extract   Name = "extract"
	Normalize Name = "normalize"
	Group     Name = "group"
	Reduce    Name = "reduce"
	Snapshot  Name = "snapshot"
	Render    Name = "render"
)

// Error reports a failure in a stage with whatever trial context is known.
// Trial, Row and Col are -1 when not applicable; Condition is empty.
type Error struct {
	Stage     Name
	Kind      error // one of the Err* sentinels
	Msg       string
	Condition string
	Trial     int
	Row, Col  int
}

// Errorf creates a stage error of the given kind.
func Errorf(name Name, kind error, format string, args ...interface{}) *Error {
	return &Error{
		Stage: name,
		Kind:  kind,
		Msg:   fmt.Sprintf(format, args...),
		Trial: -1,
		Row:   -1,
		Col:   -1,
	}
}

// WithCondition attaches a condition label.
func (e *Error) WithCondition(label interface{}) *Error {
	e.Condition = fmt.Sprint(label)
	return e
}

// WithTrial attaches a trial (or repetition) index.
func (e *Error) WithTrial(trial int) *Error {
	e.Trial = trial
	return e
}

// WithPixel attaches a pixel given as a flat index into a grid of the given width.
func (e *Error) WithPixel(index, width int) *Error {
	if width > 0 {
		e.Row = index / width
		e.Col = index % width
	}
	return e
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Stage))
	if e.Kind != nil {
		b.WriteString(": ")
		b.WriteString(e.Kind.Error())
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}

	var ctx []string
	if e.Condition != "" {
		ctx = append(ctx, "condition "+e.Condition)
	}
	if e.Trial >= 0 {
		ctx = append(ctx, fmt.Sprintf("trial %d", e.Trial))
	}
	if e.Row >= 0 {
		ctx = append(ctx, fmt.Sprintf("pixel (%d,%d)", e.Row, e.Col))
	}
	if len(ctx) > 0 {
		b.WriteString(" [")
		b.WriteString(strings.Join(ctx, ", "))
		b.WriteString("]")
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Kind }

// Wrap attributes err to a stage. Stage errors pass through unchanged so the
// innermost stage is kept; anything else becomes the Kind of a new Error.
func Wrap(name Name, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Stage: name, Kind: err, Trial: -1, Row: -1, Col: -1}
}

// In returns the stage an error came from, or "" if err is not a stage error.
func In(err error) Name {
	var se *Error
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
