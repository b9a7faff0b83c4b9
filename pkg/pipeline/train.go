package pipeline

import (
	"context"
	"fmt"

	"salesforecast/pkg/loader"
	"salesforecast/pkg/model"
)

// TrainOptions controls the split and the forest.
type TrainOptions struct {
	TestFraction    float64
	Seed            int64
	Trees           int
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int
	// MinImpurityDecrease is the per-row squared-error drop a split must reach.
	MinImpurityDecrease float64
	Bootstrap           bool
	Workers             int
}

// DefaultTrainOptions holds out 20% of rows and fits 100 bootstrapped trees.
func DefaultTrainOptions() TrainOptions {
	return TrainOptions{
		TestFraction:    0.2,
		Seed:            42,
		Trees:           100,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Bootstrap:       true,
	}
}

func (o TrainOptions) forestOptions() []model.RandomForestOption {
	return []model.RandomForestOption{
		model.WithNEstimators(o.Trees),
		model.WithBootstrap(o.Bootstrap),
		model.WithSeed(o.Seed),
		model.WithTreeMaxDepth(o.MaxDepth),
		model.WithTreeMinSamplesSplit(o.MinSamplesSplit),
		model.WithTreeMinSamplesLeaf(o.MinSamplesLeaf),
		model.WithTreeMaxFeatures(o.MaxFeatures),
		model.WithTreeMinImpurityDecrease(o.MinImpurityDecrease),
		model.WithWorkers(o.Workers),
	}
}

// Train splits the rows with opts.Seed, fits a forest on the training part
// only and scores it on the held-out part. The same inputs always yield the
// same split, forest and report.
func Train(ctx context.Context, X [][]float64, y []float64, opts TrainOptions) (*model.RandomForestRegressor, *Report, error) {
	if len(X) != len(y) {
		return nil, nil, fmt.Errorf("train: %d feature rows but %d targets", len(X), len(y))
	}
	split, err := loader.TrainTestSplit(len(X), opts.TestFraction, opts.Seed)
	if err != nil {
		return nil, nil, fmt.Errorf("train: %w", err)
	}
	xTrain, yTrain := loader.Rows(X, y, split.Train)
	xTest, yTest := loader.Rows(X, y, split.Test)

	rf := model.NewRandomForestRegressor(opts.forestOptions()...)
	if err := rf.Fit(ctx, xTrain, yTrain); err != nil {
		return nil, nil, fmt.Errorf("train: fit: %w", err)
	}

	pred, err := rf.Predict(xTest)
	if err != nil {
		return nil, nil, fmt.Errorf("train: predict held-out rows: %w", err)
	}
	scores, err := model.Evaluate(yTest, pred)
	if err != nil {
		return nil, nil, fmt.Errorf("train: %w", err)
	}
	return rf, newReport(scores, len(split.Train), len(split.Test), rf.FeatureImportances()), nil
}
