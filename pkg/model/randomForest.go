package model

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"salesforecast/pkg/errs"
)

// RandomForestRegressor averages an ensemble of regression trees, each fit on
// its own bootstrap sample.
type RandomForestRegressor struct {
	// Hyperparameters / options
	NEstimators         int
	MaxDepth            int
	MinSamplesSplit     int
	MinSamplesLeaf      int
	MaxFeatures         int
	MinImpurityDecrease float64
	Bootstrap           bool
	RandomState         int64
	Workers             int // concurrent tree fits; 0 => GOMAXPROCS

	// Internal state
	Trees     []*DecisionTreeRegressor
	NFeatures int
}

// RandomForestOption functional config for RandomForestRegressor
type RandomForestOption func(*RandomForestRegressor)

func WithNEstimators(n int) RandomForestOption {
	return func(rf *RandomForestRegressor) { rf.NEstimators = n }
}
func WithBootstrap(b bool) RandomForestOption {
	return func(rf *RandomForestRegressor) { rf.Bootstrap = b }
}
func WithSeed(seed int64) RandomForestOption {
	return func(rf *RandomForestRegressor) { rf.RandomState = seed }
}
func WithTreeMaxDepth(d int) RandomForestOption {
	return func(rf *RandomForestRegressor) { rf.MaxDepth = d }
}
func WithTreeMinSamplesSplit(n int) RandomForestOption {
	return func(rf *RandomForestRegressor) { rf.MinSamplesSplit = n }
}
func WithTreeMinSamplesLeaf(n int) RandomForestOption {
	return func(rf *RandomForestRegressor) { rf.MinSamplesLeaf = n }
}
func WithTreeMaxFeatures(k int) RandomForestOption {
	return func(rf *RandomForestRegressor) { rf.MaxFeatures = k }
}
func WithTreeMinImpurityDecrease(v float64) RandomForestOption {
	return func(rf *RandomForestRegressor) { rf.MinImpurityDecrease = v }
}
func WithWorkers(n int) RandomForestOption {
	return func(rf *RandomForestRegressor) { rf.Workers = n }
}

// NewRandomForestRegressor initializes the forest with sensible defaults.
func NewRandomForestRegressor(opts ...RandomForestOption) *RandomForestRegressor {
	rf := &RandomForestRegressor{
		NEstimators:     100,
		MaxDepth:        0,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		MaxFeatures:     0,
		Bootstrap:       true,
		RandomState:     time.Now().UnixNano(),
	}
	for _, o := range opts {
		o(rf)
	}
	return rf
}

// Fit trains the forest. Trees are fit concurrently, each with a generator
// seeded by RandomState plus its index, and stored by index, so the same
// inputs always produce the same forest. Cancelling ctx stops scheduling new
// trees and returns the context error.
func (rf *RandomForestRegressor) Fit(ctx context.Context, X [][]float64, y []float64) error {
	if rf.Fitted() {
		return ErrAlreadyFitted
	}
	if rf.NEstimators < 1 {
		return fmt.Errorf("randomforest: n_estimators must be positive, got %d", rf.NEstimators)
	}
	p, err := checkTrainingSet(X, y)
	if err != nil {
		return fmt.Errorf("randomforest: %w", err)
	}
	n := len(X)

	workers := rf.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	trees := make([]*DecisionTreeRegressor, rf.NEstimators)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := 0; i < rf.NEstimators; i++ {
		idx := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			seed := rf.RandomState + int64(idx)
			treeRand := rand.New(rand.NewSource(seed))

			// Bootstrap sampling: an index slice, not a copy of the data.
			sampleIndices := make([]int, n)
			for j := 0; j < n; j++ {
				if rf.Bootstrap {
					sampleIndices[j] = treeRand.Intn(n)
				} else {
					sampleIndices[j] = j
				}
			}

			tree := NewDecisionTreeRegressor(
				WithMaxDepth(rf.MaxDepth),
				WithMinSamplesSplit(rf.MinSamplesSplit),
				WithMinSamplesLeaf(rf.MinSamplesLeaf),
				WithMaxFeatures(rf.MaxFeatures),
				WithMinImpurityDecrease(rf.MinImpurityDecrease),
				WithRandomState(seed),
			)
			if err := tree.FitIndices(X, y, sampleIndices); err != nil {
				return fmt.Errorf("randomforest: tree %d: %w", idx, err)
			}
			trees[idx] = tree
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	rf.Trees = trees
	rf.NFeatures = p
	return nil
}

// Fitted reports whether Fit has completed.
func (rf *RandomForestRegressor) Fitted() bool { return len(rf.Trees) > 0 }

// NumFeatures is the width the forest was fitted on.
func (rf *RandomForestRegressor) NumFeatures() int { return rf.NFeatures }

// Predict returns the mean of the tree estimates for every row of X.
func (rf *RandomForestRegressor) Predict(X [][]float64) ([]float64, error) {
	if !rf.Fitted() {
		return nil, ErrNotFitted
	}
	for i := range X {
		if len(X[i]) != rf.NFeatures {
			return nil, errs.Schema("randomforest: row %d has %d features, forest was fitted on %d", i, len(X[i]), rf.NFeatures)
		}
	}

	// Fan out per tree; sum in tree order so the result does not depend on
	// scheduling.
	perTree := make([][]float64, len(rf.Trees))
	var g errgroup.Group
	for ti, tree := range rf.Trees {
		g.Go(func() error {
			preds, err := tree.Predict(X)
			if err != nil {
				return err
			}
			perTree[ti] = preds
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]float64, len(X))
	for _, preds := range perTree {
		for i, v := range preds {
			out[i] += v
		}
	}
	k := float64(len(rf.Trees))
	for i := range out {
		out[i] /= k
	}
	return out, nil
}

// FeatureImportances averages the per-tree importances.
func (rf *RandomForestRegressor) FeatureImportances() []float64 {
	out := make([]float64, rf.NFeatures)
	if !rf.Fitted() {
		return out
	}
	for _, tree := range rf.Trees {
		for j, v := range tree.FeatureImportances() {
			out[j] += v
		}
	}
	k := float64(len(rf.Trees))
	for j := range out {
		out[j] /= k
	}
	return out
}
