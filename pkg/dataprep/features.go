package dataprep

import (
	"slices"

	"salesforecast/pkg/data"
	"salesforecast/pkg/errs"
)

// FeatureOptions selects the target and the columns kept out of the features.
type FeatureOptions struct {
	Target            string
	DateColumn        string
	Exclude           []string
	EncodeCategorical bool
}

// FeatureSet is the unscaled model input derived from a cleaned table.
// Names fixes the column order of X; Ignored lists every column left out.
type FeatureSet struct {
	X        [][]float64
	Y        []float64
	Names    []string
	Ignored  []string
	Encoders map[string]*LabelEncoder
}

// BuildFeatures separates the target and derives the numeric feature matrix.
// The raw date column, the target and opts.Exclude never become features.
// Categorical columns are label-encoded when opts.EncodeCategorical is set
// and ignored otherwise.
func BuildFeatures(t *data.Table, opts FeatureOptions) (*FeatureSet, error) {
	kind, ok := t.Kind(opts.Target)
	if !ok {
		return nil, errs.Schema("target column %q not found", opts.Target).With("columns", t.Names())
	}
	if kind != data.Numeric {
		return nil, errs.Schema("target column %q is not numeric", opts.Target)
	}
	if t.NumRows() == 0 {
		return nil, errs.Data("table has no rows")
	}

	fs := &FeatureSet{Encoders: map[string]*LabelEncoder{}}
	for _, col := range t.Columns() {
		switch {
		case col.Name == opts.Target, col.Name == opts.DateColumn, slices.Contains(opts.Exclude, col.Name):
			fs.Ignored = append(fs.Ignored, col.Name)
		case col.Kind == data.Categorical && !opts.EncodeCategorical:
			fs.Ignored = append(fs.Ignored, col.Name)
		default:
			fs.Names = append(fs.Names, col.Name)
			if col.Kind == data.Categorical {
				values, _ := t.Column(col.Name)
				_, fs.Encoders[col.Name] = LabelEncode(values)
			}
		}
	}
	if len(fs.Names) == 0 {
		return nil, errs.Schema("no feature columns left after removing %v", fs.Ignored)
	}

	target := t.Index(opts.Target)
	fs.Y = make([]float64, t.NumRows())
	for r := range fs.Y {
		v, ok := t.Float(r, target)
		if !ok {
			return nil, errs.Data("row %d: target %q is missing", r+1, opts.Target)
		}
		fs.Y[r] = v
	}

	X, err := EncodeRows(t, fs.Names, fs.Encoders)
	if err != nil {
		return nil, err
	}
	fs.X = X
	return fs, nil
}

// EncodeRows converts the named columns of t, in that order, to a numeric
// matrix. Columns with an encoder are mapped through it; all others must parse
// as floats. Missing cells and unknown categories are data errors.
func EncodeRows(t *data.Table, names []string, encoders map[string]*LabelEncoder) ([][]float64, error) {
	idx := make([]int, len(names))
	for k, name := range names {
		idx[k] = t.Index(name)
		if idx[k] < 0 {
			return nil, errs.Schema("feature column %q not found", name)
		}
	}

	X := make([][]float64, t.NumRows())
	for r := range X {
		row := make([]float64, len(names))
		for k, c := range idx {
			cell := t.Cell(r, c)
			if data.IsMissing(cell) {
				return nil, errs.Data("row %d: feature %q is missing", r+1, names[k])
			}
			if enc, ok := encoders[names[k]]; ok {
				code, known := enc.Encode(cell)
				if !known {
					return nil, errs.Data("row %d: unknown category %q for feature %q", r+1, cell, names[k])
				}
				row[k] = float64(code)
				continue
			}
			v, ok := t.Float(r, c)
			if !ok {
				return nil, errs.Data("row %d: feature %q value %q is not numeric", r+1, names[k], cell)
			}
			row[k] = v
		}
		X[r] = row
	}
	return X, nil
}
