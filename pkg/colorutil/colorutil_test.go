package colorutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMinMax(t *testing.T) {
	assert.Equal(t, []float64{0, 0.5, 1}, MinMax([]float64{2, 3, 4}))
	assert.Equal(t, []float64{0, 0}, MinMax([]float64{0, 0}))
	assert.Equal(t, []float64{1, 1}, MinMax([]float64{3, 3}))
	assert.Empty(t, MinMax(nil))
}

func TestLevel(t *testing.T) {
	assert.Equal(t, uint8(0), Level(-1))
	assert.Equal(t, uint8(128), Level(0.5))
	assert.Equal(t, uint8(255), Level(2))
}
