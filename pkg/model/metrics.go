package model

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"salesforecast/pkg/errs"
	"salesforecast/pkg/stats"
)

// Regression metrics. yTrue and yPred must have equal, non-zero length;
// Evaluate checks that for callers that cannot guarantee it.

func residuals(yTrue, yPred []float64) []float64 {
	r := make([]float64, len(yTrue))
	floats.SubTo(r, yTrue, yPred)
	return r
}

func MSE(yTrue, yPred []float64) float64 { return stats.MeanSquare(residuals(yTrue, yPred)) }

func MAE(yTrue, yPred []float64) float64 { return stats.MeanAbs(residuals(yTrue, yPred)) }

func RMSE(yTrue, yPred []float64) float64 { return math.Sqrt(MSE(yTrue, yPred)) }

// R2 is the coefficient of determination. A constant yTrue gives 0.
func R2(yTrue, yPred []float64) float64 {
	if stats.PopStd(yTrue) == 0 {
		return 0
	}
	return stat.RSquaredFrom(yPred, yTrue, nil)
}

// Scores bundles the held-out metrics.
type Scores struct {
	MAE  float64
	RMSE float64
	R2   float64
}

// Evaluate computes Scores after checking the vectors line up.
func Evaluate(yTrue, yPred []float64) (Scores, error) {
	if len(yTrue) == 0 {
		return Scores{}, errs.Data("cannot evaluate on zero rows")
	}
	if len(yTrue) != len(yPred) {
		return Scores{}, errs.Data("%d targets but %d predictions", len(yTrue), len(yPred))
	}
	return Scores{
		MAE:  MAE(yTrue, yPred),
		RMSE: RMSE(yTrue, yPred),
		R2:   R2(yTrue, yPred),
	}, nil
}
