package parallel

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripesCoverEachIndexOnce(t *testing.T) {
	for _, n := range []int{1, 7, 64, 1000} {
		for _, workers := range []int{0, 1, 3, 8, 2000} {
			t.Run(fmt.Sprintf("n=%d/workers=%d", n, workers), func(t *testing.T) {
				hits := make([]int, n)
				Stripes(n, workers, func(lo, hi int) {
					for i := lo; i < hi; i++ {
						hits[i]++
					}
				})
				for i, h := range hits {
					require.Equal(t, 1, h, "index %d", i)
				}
			})
		}
	}
}

func TestStripesEmpty(t *testing.T) {
	called := false
	Stripes(0, 4, func(lo, hi int) { called = true })
	assert.False(t, called)
}

func TestStripesErrReportsLowestStripe(t *testing.T) {
	errLow := errors.New("low")
	errHigh := errors.New("high")

	err := StripesErr(100, 4, func(lo, hi int) error {
		switch {
		case lo == 0:
			return nil
		case lo < 50:
			return errLow
		default:
			return errHigh
		}
	})
	assert.Equal(t, errLow, err)

	assert.NoError(t, StripesErr(10, 3, func(lo, hi int) error { return nil }))
}
