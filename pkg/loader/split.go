package loader

import (
	"math"
	"math/rand"

	"salesforecast/pkg/errs"
)

// Split holds the row positions of a train/test partition.
type Split struct {
	Train []int
	Test  []int
}

// TrainTestSplit shuffles n row positions with a generator seeded by seed and
// holds out ceil(n*testRatio) of them for testing. Every position lands in
// exactly one partition; both partitions must be non-empty.
func TrainTestSplit(n int, testRatio float64, seed int64) (Split, error) {
	if math.IsNaN(testRatio) || testRatio <= 0 || testRatio >= 1 {
		return Split{}, errs.Data("test fraction %v must be in (0, 1)", testRatio)
	}
	nTest := int(math.Ceil(float64(n)*testRatio - 1e-9))
	if nTest == 0 || n-nTest == 0 {
		return Split{}, errs.Data("%d rows cannot be split with test fraction %v", n, testRatio).
			With("rows", n)
	}

	indices := rand.New(rand.NewSource(seed)).Perm(n)
	return Split{
		Test:  append([]int(nil), indices[:nTest]...),
		Train: append([]int(nil), indices[nTest:]...),
	}, nil
}

// Rows gathers X and y at the given positions.
func Rows(X [][]float64, y []float64, idx []int) ([][]float64, []float64) {
	xs := make([][]float64, len(idx))
	ys := make([]float64, len(idx))
	for i, j := range idx {
		xs[i] = X[j]
		ys[i] = y[j]
	}
	return xs, ys
}
