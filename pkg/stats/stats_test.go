package stats

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesforecast/pkg/errs"
)

func TestBasicStats(t *testing.T) {
	x := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	assert.InDelta(t, 5.0, Mean(x), 1e-12)
	assert.InDelta(t, 2.0, PopStd(x), 1e-12)
	assert.InDelta(t, 4.5, Median(x), 1e-12)
	assert.InDelta(t, 4.0, Median([]float64{9, 1, 4}), 1e-12)
	assert.Equal(t, []float64{2, 4, 4, 4, 5, 5, 7, 9}, x, "Median must not reorder input")

	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 0.0, PopStd(nil))
	assert.Equal(t, 0.0, Median(nil))

	assert.InDelta(t, 2.0, MeanAbs([]float64{-1, 3}), 1e-12)
	assert.Equal(t, 0.0, MeanAbs(nil))
	assert.InDelta(t, 5.0, MeanSquare([]float64{-1, 3}), 1e-12)
}

func TestStandardScalerRoundTrip(t *testing.T) {
	X := [][]float64{
		{2023, 1, 10, 5.5},
		{2023, 2, 15, -3.25},
		{2024, 3, 20, 100},
		{2024, 12, 31, 0},
	}
	s, err := FitStandardScaler(X)
	require.NoError(t, err)
	assert.Equal(t, 4, s.NumFeatures())

	scaled, err := s.Transform(X)
	require.NoError(t, err)
	for j := 0; j < 4; j++ {
		col := ColumnOf(scaled, j)
		assert.InDelta(t, 0.0, Mean(col), 1e-9)
		assert.InDelta(t, 1.0, PopStd(col), 1e-9)
	}

	back, err := s.InverseTransform(scaled)
	require.NoError(t, err)
	for i := range X {
		for j := range X[i] {
			assert.InDelta(t, X[i][j], back[i][j], 1e-9)
		}
	}
	assert.Equal(t, 2023.0, X[0][0], "input untouched")
}

func TestStandardScalerConstantColumn(t *testing.T) {
	s, err := FitStandardScaler([][]float64{{7, 1}, {7, 3}})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1}, s.Scale())

	row, err := s.TransformRow([]float64{7, 2})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, row)
}

func TestStandardScalerErrors(t *testing.T) {
	_, err := FitStandardScaler(nil)
	assert.True(t, errors.Is(err, errs.ErrData))
	_, err = FitStandardScaler([][]float64{{1, 2}, {3}})
	assert.True(t, errors.Is(err, errs.ErrData))

	s, err := FitStandardScaler([][]float64{{1, 2}, {3, 4}})
	require.NoError(t, err)
	_, err = s.TransformRow([]float64{1})
	assert.True(t, errors.Is(err, errs.ErrSchema))
	_, err = s.InverseTransform([][]float64{{1, 2, 3}})
	assert.True(t, errors.Is(err, errs.ErrSchema))
}

func TestStandardScalerAccessorsCopy(t *testing.T) {
	s, err := FitStandardScaler([][]float64{{1}, {3}})
	require.NoError(t, err)
	m := s.Mean()
	m[0] = math.Inf(1)
	assert.Equal(t, []float64{2}, s.Mean())
}

func TestStandardScalerBinaryRoundTrip(t *testing.T) {
	s, err := FitStandardScaler([][]float64{{1, 10}, {3, 30}, {5, 20}})
	require.NoError(t, err)

	raw, err := s.MarshalBinary()
	require.NoError(t, err)

	var restored StandardScaler
	require.NoError(t, restored.UnmarshalBinary(raw))
	assert.Equal(t, s.Mean(), restored.Mean())
	assert.Equal(t, s.Scale(), restored.Scale())
}
