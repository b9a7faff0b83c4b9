package stats

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Mean computes the average of a slice. Empty input yields 0.
func Mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return stat.Mean(x, nil)
}

// PopStd computes the population standard deviation (divides by n).
func PopStd(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	_, std := stat.PopMeanStdDev(x, nil)
	return std
}

// Median returns the median value of the slice (allocates a copy).
// Even-length input averages the two middle values.
func Median(x []float64) float64 {
	n := len(x)
	if n == 0 {
		return 0
	}
	cp := make([]float64, n)
	copy(cp, x)
	sort.Float64s(cp)
	mid := n >> 1
	if n&1 == 0 {
		return (cp[mid-1] + cp[mid]) * 0.5
	}
	return cp[mid]
}

// MeanAbs returns mean(|x|).
func MeanAbs(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return floats.Norm(x, 1) / float64(len(x))
}

// MeanSquare returns mean(x²).
func MeanSquare(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return floats.Dot(x, x) / float64(len(x))
}

// ColumnOf copies column j of a row-major matrix.
func ColumnOf(X [][]float64, j int) []float64 {
	col := make([]float64, len(X))
	for i := range X {
		col[i] = X[i][j]
	}
	return col
}
