package pipeline

import (
	"slices"

	"salesforecast/pkg/dataprep"
	"salesforecast/pkg/errs"
)

// Schema is the feature contract recorded at training time and enforced at
// prediction time.
type Schema struct {
	Features    []string                          `json:"features"`
	Target      string                            `json:"target"`
	DateColumn  string                            `json:"date_column,omitempty"`
	DateLayouts []string                          `json:"date_layouts,omitempty"`
	Ignored     []string                          `json:"ignored,omitempty"`
	Encoders    map[string]*dataprep.LabelEncoder `json:"encoders,omitempty"`
}

// NumFeatures is the width of the feature matrix.
func (s *Schema) NumFeatures() int { return len(s.Features) }

// Check requires columns to equal the recorded features, names and order.
func (s *Schema) Check(columns []string) error {
	if slices.Equal(columns, s.Features) {
		return nil
	}

	var missing, extra []string
	for _, f := range s.Features {
		if !slices.Contains(columns, f) {
			missing = append(missing, f)
		}
	}
	for _, c := range columns {
		if !slices.Contains(s.Features, c) {
			extra = append(extra, c)
		}
	}

	var e *errs.Error
	switch {
	case len(missing) > 0:
		e = errs.Schema("missing feature columns %v", missing)
	case len(extra) > 0:
		e = errs.Schema("unexpected columns %v", extra)
	case len(columns) != len(s.Features):
		e = errs.Schema("got %d columns, expected %d", len(columns), len(s.Features))
	default:
		e = errs.Schema("feature columns out of order")
	}
	return e.With("expected", s.Features).With("got", columns)
}
