package pipeline

import (
	"fmt"

	"salesforecast/pkg/data"
	"salesforecast/pkg/dataprep"
	"salesforecast/pkg/errs"
	"salesforecast/pkg/model"
	"salesforecast/pkg/stats"
)

// Predictor turns new rows into forecasts with the artifacts of one training
// run. It only reads its artifacts and is safe for concurrent use.
type Predictor struct {
	schema *Schema
	scaler *stats.StandardScaler
	model  model.Regressor
}

// NewPredictor checks that the artifacts agree on the feature count.
func NewPredictor(schema *Schema, scaler *stats.StandardScaler, m model.Regressor) (*Predictor, error) {
	if schema == nil || scaler == nil || m == nil {
		return nil, fmt.Errorf("predictor: schema, scaler and model are all required")
	}
	n := schema.NumFeatures()
	if scaler.NumFeatures() != n || m.NumFeatures() != n {
		return nil, errs.Schema("predictor: schema has %d features, scaler %d, model %d",
			n, scaler.NumFeatures(), m.NumFeatures())
	}
	return &Predictor{schema: schema, scaler: scaler, model: m}, nil
}

// Schema returns the recorded feature contract.
func (p *Predictor) Schema() *Schema { return p.schema }

// Predict forecasts one value per row. columns must equal the recorded
// feature names in order, and every row must carry one value per column.
func (p *Predictor) Predict(columns []string, rows [][]float64) ([]float64, error) {
	if err := p.schema.Check(columns); err != nil {
		return nil, err
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, errs.Schema("row %d has %d values, expected %d", i, len(row), len(columns))
		}
	}
	scaled, err := p.scaler.Transform(rows)
	if err != nil {
		return nil, err
	}
	return p.model.Predict(scaled)
}

// PredictTable applies the training-time feature derivation to t before
// predicting: calendar parts from the date column, removal of ignored
// columns, and label encoding with the recorded encoders.
func (p *Predictor) PredictTable(t *data.Table) ([]float64, error) {
	t, err := dataprep.ExtractDateParts(t, p.schema.DateColumn, p.schema.DateLayouts)
	if err != nil {
		return nil, err
	}
	t = t.Drop(p.schema.Ignored...)
	if err := p.schema.Check(t.Names()); err != nil {
		return nil, err
	}
	X, err := dataprep.EncodeRows(t, p.schema.Features, p.schema.Encoders)
	if err != nil {
		return nil, err
	}
	return p.Predict(p.schema.Features, X)
}
