package artifact

import (
	"context"
	"encoding/gob"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"salesforecast/pkg/errs"
	"salesforecast/pkg/model"
	"salesforecast/pkg/pipeline"
	"salesforecast/pkg/stats"
)

// LatestRef names the most recently saved bundle in every store.
const LatestRef = "latest"

const formatVersion = 1

// Bundle is everything one training run produced.
type Bundle struct {
	Version   int
	RunID     string
	CreatedAt time.Time
	Schema    *pipeline.Schema
	Scaler    *stats.StandardScaler
	Model     *model.RandomForestRegressor
	Report    *pipeline.Report
}

// NewBundle stamps a training result with a fresh run ID.
func NewBundle(res *pipeline.Result) *Bundle {
	return &Bundle{
		Version:   formatVersion,
		RunID:     uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Schema:    res.Schema,
		Scaler:    res.Scaler,
		Model:     res.Model,
		Report:    res.Report,
	}
}

// Predictor wraps the bundle's artifacts for inference.
func (b *Bundle) Predictor() (*pipeline.Predictor, error) {
	return pipeline.NewPredictor(b.Schema, b.Scaler, b.Model)
}

// Encode writes b as gob.
func Encode(w io.Writer, b *Bundle) error {
	if b.Schema == nil || b.Scaler == nil || b.Model == nil {
		return fmt.Errorf("bundle %s is incomplete", b.RunID)
	}
	return gob.NewEncoder(w).Encode(b)
}

// Decode reads a gob bundle and checks its version.
func Decode(r io.Reader) (*Bundle, error) {
	var b Bundle
	if err := gob.NewDecoder(r).Decode(&b); err != nil {
		return nil, errs.DataWrap(err, "decode bundle")
	}
	if b.Version != formatVersion {
		return nil, errs.Data("bundle %s has format version %d, expected %d", b.RunID, b.Version, formatVersion)
	}
	return &b, nil
}

// Store persists bundles by run ID and tracks the latest one.
type Store interface {
	// Save writes the bundle and points LatestRef at it.
	Save(ctx context.Context, b *Bundle) error
	// Load returns the bundle for runID, or the latest when runID is
	// LatestRef. A missing bundle is an errs.NotFound error.
	Load(ctx context.Context, runID string) (*Bundle, error)
	// Latest returns the run ID LatestRef points at.
	Latest(ctx context.Context) (string, error)
}

// checkRunID keeps arbitrary strings out of file names and object keys.
func checkRunID(runID string) error {
	if _, err := uuid.Parse(runID); err != nil {
		return errs.DataWrap(err, "invalid run id %q", runID)
	}
	return nil
}

func objectName(runID string) string { return runID + ".gob" }
