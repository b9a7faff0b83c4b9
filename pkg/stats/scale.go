package stats

import (
	"bytes"
	"encoding/gob"

	"gonum.org/v1/gonum/floats"

	"salesforecast/pkg/errs"
)

// StandardScaler centres each feature on its mean and divides by its
// population standard deviation. A fitted scaler is never modified; fitting
// again means calling FitStandardScaler for a new instance.
type StandardScaler struct {
	mean  []float64
	scale []float64
}

// FitStandardScaler computes per-column statistics over X.
// Columns with zero spread get a scale of 1.
func FitStandardScaler(X [][]float64) (*StandardScaler, error) {
	if len(X) == 0 {
		return nil, errs.Data("cannot fit scaler on zero rows")
	}
	c := len(X[0])
	if c == 0 {
		return nil, errs.Data("cannot fit scaler on zero columns")
	}
	for i := range X {
		if len(X[i]) != c {
			return nil, errs.Data("row %d has %d features, expected %d", i, len(X[i]), c)
		}
	}

	s := &StandardScaler{mean: make([]float64, c), scale: make([]float64, c)}
	for j := 0; j < c; j++ {
		col := ColumnOf(X, j)
		s.mean[j] = Mean(col)
		s.scale[j] = PopStd(col)
		if s.scale[j] == 0 {
			s.scale[j] = 1
		}
	}
	return s, nil
}

// NumFeatures is the width the scaler was fitted on.
func (s *StandardScaler) NumFeatures() int { return len(s.mean) }

// Mean returns a copy of the fitted column means.
func (s *StandardScaler) Mean() []float64 { return append([]float64(nil), s.mean...) }

// Scale returns a copy of the fitted column scales.
func (s *StandardScaler) Scale() []float64 { return append([]float64(nil), s.scale...) }

// TransformRow scales a single row.
func (s *StandardScaler) TransformRow(x []float64) ([]float64, error) {
	if len(x) != len(s.mean) {
		return nil, errs.Schema("row has %d features, scaler was fitted on %d", len(x), len(s.mean))
	}
	out := make([]float64, len(x))
	floats.SubTo(out, x, s.mean)
	floats.Div(out, s.scale)
	return out, nil
}

// Transform scales every row of X into a new matrix.
func (s *StandardScaler) Transform(X [][]float64) ([][]float64, error) {
	out := make([][]float64, len(X))
	for i, row := range X {
		r, err := s.TransformRow(row)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

// InverseTransform maps scaled rows back to the original units.
func (s *StandardScaler) InverseTransform(X [][]float64) ([][]float64, error) {
	out := make([][]float64, len(X))
	for i, row := range X {
		if len(row) != len(s.mean) {
			return nil, errs.Schema("row %d has %d features, scaler was fitted on %d", i, len(row), len(s.mean))
		}
		r := append([]float64(nil), row...)
		floats.Mul(r, s.scale)
		floats.Add(r, s.mean)
		out[i] = r
	}
	return out, nil
}

// MarshalBinary implements encoding.BinaryMarshaler using gob.
func (s *StandardScaler) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(s.mean); err != nil {
		return nil, err
	}
	if err := enc.Encode(s.scale); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler using gob.
func (s *StandardScaler) UnmarshalBinary(data []byte) error {
	dec := gob.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&s.mean); err != nil {
		return err
	}
	if err := dec.Decode(&s.scale); err != nil {
		return err
	}
	if len(s.mean) != len(s.scale) {
		return errs.Data("scaler has %d means and %d scales", len(s.mean), len(s.scale))
	}
	return nil
}
