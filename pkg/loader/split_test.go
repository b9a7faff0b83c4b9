package loader

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesforecast/pkg/errs"
)

func TestTrainTestSplitIsPartition(t *testing.T) {
	for _, n := range []int{2, 3, 10, 57, 200} {
		for _, frac := range []float64{0.01, 0.1, 0.2, 0.3, 0.5, 0.75, 0.99} {
			for seed := int64(0); seed < 5; seed++ {
				s, err := TrainTestSplit(n, frac, seed)
				if err != nil {
					assert.True(t, errors.Is(err, errs.ErrData))
					continue
				}
				assert.Equal(t, n, len(s.Train)+len(s.Test))
				seen := make(map[int]bool, n)
				for _, i := range append(append([]int(nil), s.Train...), s.Test...) {
					assert.False(t, seen[i], "row %d in both partitions", i)
					assert.True(t, i >= 0 && i < n)
					seen[i] = true
				}
				assert.Len(t, seen, n)
			}
		}
	}
}

func TestTrainTestSplitSizes(t *testing.T) {
	s, err := TrainTestSplit(10, 0.2, 42)
	require.NoError(t, err)
	assert.Len(t, s.Test, 2)
	assert.Len(t, s.Train, 8)

	s, err = TrainTestSplit(10, 0.3, 42)
	require.NoError(t, err)
	assert.Len(t, s.Test, 3)

	s, err = TrainTestSplit(7, 0.25, 1)
	require.NoError(t, err)
	assert.Len(t, s.Test, 2)
}

func TestTrainTestSplitDeterministic(t *testing.T) {
	a, err := TrainTestSplit(50, 0.2, 99)
	require.NoError(t, err)
	b, err := TrainTestSplit(50, 0.2, 99)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := TrainTestSplit(50, 0.2, 100)
	require.NoError(t, err)
	assert.NotEqual(t, a.Test, c.Test)
}

func TestTrainTestSplitErrors(t *testing.T) {
	for _, tc := range []struct {
		n    int
		frac float64
	}{
		{0, 0.2}, {1, 0.2}, {10, 0}, {10, 1}, {10, -0.1}, {10, math.NaN()},
	} {
		_, err := TrainTestSplit(tc.n, tc.frac, 1)
		assert.True(t, errors.Is(err, errs.ErrData), "n=%d frac=%v", tc.n, tc.frac)
	}
}

func TestRows(t *testing.T) {
	X := [][]float64{{1}, {2}, {3}}
	y := []float64{10, 20, 30}
	xs, ys := Rows(X, y, []int{2, 0})
	assert.Equal(t, [][]float64{{3}, {1}}, xs)
	assert.Equal(t, []float64{30, 10}, ys)
}
