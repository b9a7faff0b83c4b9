package pipeline

import (
	"sort"

	"salesforecast/pkg/model"
)

// Report holds held-out metrics for one training run.
type Report struct {
	MAE         float64   `json:"mae"`
	RMSE        float64   `json:"rmse"`
	R2          float64   `json:"r2"`
	TrainRows   int       `json:"train_rows"`
	TestRows    int       `json:"test_rows"`
	Features    []string  `json:"features,omitempty"`
	Importances []float64 `json:"importances,omitempty"`
}

func newReport(s model.Scores, trainRows, testRows int, importances []float64) *Report {
	return &Report{
		MAE:         s.MAE,
		RMSE:        s.RMSE,
		R2:          s.R2,
		TrainRows:   trainRows,
		TestRows:    testRows,
		Importances: importances,
	}
}

// Metrics is the metric name to value mapping printed after training.
func (r *Report) Metrics() map[string]float64 {
	return map[string]float64{"MAE": r.MAE, "RMSE": r.RMSE, "R2": r.R2}
}

// FeatureImportance pairs a feature name with its importance.
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// TopFeatures returns up to k features by descending importance. k <= 0
// returns all of them. Features must have been named.
func (r *Report) TopFeatures(k int) []FeatureImportance {
	out := make([]FeatureImportance, 0, len(r.Importances))
	for j, v := range r.Importances {
		if j < len(r.Features) {
			out = append(out, FeatureImportance{Feature: r.Features[j], Importance: v})
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Importance > out[b].Importance })
	if k > 0 && k < len(out) {
		out = out[:k]
	}
	return out
}
