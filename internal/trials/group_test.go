package trials

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"widefield-mapper/internal/conditions"
	"widefield-mapper/internal/epoch"
	"widefield-mapper/internal/stage"
)

func epochs(n int) []*epoch.Epoch {
	out := make([]*epoch.Epoch, n)
	for i := range out {
		out[i] = &epoch.Epoch{Trial: i, Frames: 1, Height: 1, Width: 1, Data: []float64{float64(i)}}
	}
	return out
}

func TestGroupNumbersRepetitionsInOrder(t *testing.T) {
	const a, b conditions.Label = 4000, 8000
	es := epochs(4)

	groups, err := ByCondition(es, []conditions.Label{a, b, a, a})
	require.NoError(t, err)
	require.Len(t, groups, 2)

	ga := groups[a]
	require.Equal(t, 3, ga.Count())
	assert.Same(t, es[0], ga.Rep(1))
	assert.Same(t, es[2], ga.Rep(2))
	assert.Same(t, es[3], ga.Rep(3))
	assert.Nil(t, ga.Rep(4))
	assert.Nil(t, ga.Rep(0))

	gb := groups[b]
	require.Equal(t, 1, gb.Count())
	assert.Same(t, es[1], gb.Rep(1))
	assert.Equal(t, b, gb.Label)
}

func TestGroupOnlyHasSeenLabels(t *testing.T) {
	groups, err := ByCondition(epochs(3), []conditions.Label{16000, 2000, 16000})
	require.NoError(t, err)

	assert.Equal(t, []conditions.Label{2000, 16000}, groups.Labels())
	_, ok := groups[4000]
	assert.False(t, ok)
}

func TestGroupEmpty(t *testing.T) {
	groups, err := ByCondition(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestGroupRejectsMisalignedLabels(t *testing.T) {
	_, err := ByCondition(epochs(3), []conditions.Label{1, 2})
	assert.True(t, errors.Is(err, stage.ErrMalformedInput))
	assert.Equal(t, stage.Group, stage.In(err))
}
