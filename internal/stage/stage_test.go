package stage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorUnwrapsToKind(t *testing.T) {
	err := Errorf(Extract, ErrBounds, "end frame %d past %d", 120, 100).WithTrial(7)

	require.True(t, errors.Is(err, ErrBounds))
	assert.False(t, errors.Is(err, ErrMalformedInput))
	assert.Equal(t, "extract: epoch window out of bounds: end frame 120 past 100 [trial 7]", err.Error())
}

func TestErrorContext(t *testing.T) {
	err := Errorf(Reduce, ErrDegenerateStatistics, "zero baseline std").
		WithCondition(8000).
		WithTrial(2).
		WithPixel(13, 5)

	assert.Equal(t, 2, err.Row)
	assert.Equal(t, 3, err.Col)
	assert.Contains(t, err.Error(), "condition 8000, trial 2, pixel (2,3)")
}

func TestInFindsWrappedStage(t *testing.T) {
	inner := Errorf(Align, ErrMalformedInput, "no onsets")
	wrapped := fmt.Errorf("run failed: %w", inner)

	assert.Equal(t, Align, In(wrapped))
	assert.Equal(t, Name(""), In(errors.New("plain")))
}

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap(Load, nil))

	inner := Errorf(Extract, ErrBounds, "late")
	assert.Same(t, inner, Wrap(Load, inner))

	plain := errors.New("failed to read config")
	err := Wrap(Config, plain)
	assert.True(t, errors.Is(err, plain))
	assert.Equal(t, Config, In(err))
	assert.Equal(t, "config: failed to read config", err.Error())
}
