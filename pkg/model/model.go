package model

import "errors"

var (
	// ErrAlreadyFitted is returned when Fit is called on a fitted model.
	ErrAlreadyFitted = errors.New("model: already fitted")
	// ErrNotFitted is returned when a model is used before Fit.
	ErrNotFitted = errors.New("model: not fitted")
)

// Regressor is a fitted model that maps feature rows to numeric estimates.
type Regressor interface {
	Predict(X [][]float64) ([]float64, error)
	NumFeatures() int
}

// Importancer exposes per-feature importances.
type Importancer interface {
	FeatureImportances() []float64
}

var (
	_ Regressor   = (*DecisionTreeRegressor)(nil)
	_ Regressor   = (*RandomForestRegressor)(nil)
	_ Importancer = (*RandomForestRegressor)(nil)
)
