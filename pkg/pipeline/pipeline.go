package pipeline

import (
	"context"
	"fmt"
	"slices"
	"time"

	"salesforecast/pkg/data"
	"salesforecast/pkg/dataprep"
	"salesforecast/pkg/logger"
	"salesforecast/pkg/model"
	"salesforecast/pkg/stats"
)

// Stage is one named, pure table transformation.
type Stage struct {
	Name  string
	Apply func(*data.Table) (*data.Table, error)
}

// Pipeline chains stages. Each stage sees the output of the previous one.
type Pipeline struct {
	steps []Stage
	log   logger.Logger
}

func NewPipeline(log logger.Logger, steps ...Stage) *Pipeline {
	if log == nil {
		log = logger.NewNop()
	}
	return &Pipeline{steps: steps, log: log}
}

// Stages returns the stage names in run order.
func (p *Pipeline) Stages() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.Name
	}
	return names
}

// Run applies every stage in order. ctx is checked between stages.
func (p *Pipeline) Run(ctx context.Context, t *data.Table) (*data.Table, error) {
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		before := t.NumRows()
		out, err := step.Apply(t)
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", step.Name, err)
		}
		p.log.Debug("stage done",
			logger.String("stage", step.Name),
			logger.Int("rows_in", before),
			logger.Int("rows_out", out.NumRows()),
			logger.Int("missing", out.MissingCount()),
		)
		t = out
	}
	return t, nil
}

// ForecastStages is the forecasting cleaner: dedupe, forward fill, leading
// gap policy, date parts.
func ForecastStages(opts dataprep.CleanOptions) []Stage {
	return []Stage{
		{Name: "drop_duplicates", Apply: infallible(dataprep.DropDuplicates)},
		{Name: "forward_fill", Apply: infallible(dataprep.ForwardFill)},
		{Name: "resolve_leading", Apply: func(t *data.Table) (*data.Table, error) {
			return dataprep.ResolveLeading(t, opts.Leading, opts.Skip...)
		}},
		dateStage(opts),
	}
}

// DescriptiveStages is the descriptive cleaner: dedupe, median/mode fill,
// date parts.
func DescriptiveStages(opts dataprep.CleanOptions) []Stage {
	return []Stage{
		{Name: "drop_duplicates", Apply: infallible(dataprep.DropDuplicates)},
		{Name: "fill_descriptive", Apply: infallible(dataprep.FillDescriptive)},
		dateStage(opts),
	}
}

func dateStage(opts dataprep.CleanOptions) Stage {
	return Stage{Name: "date_parts", Apply: func(t *data.Table) (*data.Table, error) {
		return dataprep.ExtractDateParts(t, opts.DateColumn, opts.DateLayouts)
	}}
}

func infallible(f func(*data.Table) *data.Table) func(*data.Table) (*data.Table, error) {
	return func(t *data.Table) (*data.Table, error) { return f(t), nil }
}

// unusedColumns lists the columns of t that BuildFeatures will leave out:
// excludes, and categorical columns when encoding is off. The target and the
// date column always count.
func unusedColumns(t *data.Table, opts dataprep.FeatureOptions) []string {
	var out []string
	for _, col := range t.Columns() {
		switch {
		case col.Name == opts.Target, col.Name == opts.DateColumn:
		case slices.Contains(opts.Exclude, col.Name):
			out = append(out, col.Name)
		case col.Kind == data.Categorical && !opts.EncodeCategorical:
			out = append(out, col.Name)
		}
	}
	return out
}

// Built is the model-ready output of Build.
type Built struct {
	X      [][]float64
	Y      []float64
	Scaler *stats.StandardScaler
	Schema *Schema
}

// Build derives features from a cleaned table and fits the scaler on every
// row. The split happens later, so held-out rows contribute to the scaler
// statistics; that is logged at warn level.
func Build(t *data.Table, opts dataprep.FeatureOptions, layouts []string, log logger.Logger) (*Built, error) {
	if log == nil {
		log = logger.NewNop()
	}
	fs, err := dataprep.BuildFeatures(t, opts)
	if err != nil {
		return nil, err
	}
	scaler, err := stats.FitStandardScaler(fs.X)
	if err != nil {
		return nil, err
	}
	X, err := scaler.Transform(fs.X)
	if err != nil {
		return nil, err
	}
	for _, name := range fs.Names {
		if enc, ok := fs.Encoders[name]; ok {
			log.Debug("categorical feature encoded", logger.String("feature", name), logger.Int("categories", enc.Len()))
		}
	}
	log.Warn("scaler fitted on all rows before the train/test split",
		logger.Int("rows", len(fs.X)),
		logger.Strings("features", fs.Names),
	)
	return &Built{
		X:      X,
		Y:      fs.Y,
		Scaler: scaler,
		Schema: &Schema{
			Features:    fs.Names,
			Target:      opts.Target,
			DateColumn:  opts.DateColumn,
			DateLayouts: layouts,
			Ignored:     fs.Ignored,
			Encoders:    fs.Encoders,
		},
	}, nil
}

// Options configures a full training run.
type Options struct {
	Clean    dataprep.CleanOptions
	Features dataprep.FeatureOptions
	Train    TrainOptions
}

// Result carries every artifact of a training run.
type Result struct {
	Schema *Schema
	Scaler *stats.StandardScaler
	Model  *model.RandomForestRegressor
	Report *Report
	Rows   int
}

// Predictor wraps the run's artifacts for inference.
func (r *Result) Predictor() (*Predictor, error) {
	return NewPredictor(r.Schema, r.Scaler, r.Model)
}

// Run cleans t with the forecasting stages, builds features, and trains.
func Run(ctx context.Context, t *data.Table, opts Options, log logger.Logger) (*Result, error) {
	if log == nil {
		log = logger.NewNop()
	}
	start := time.Now()
	log.Info("training run started",
		logger.Int("rows", t.NumRows()),
		logger.Int("columns", t.NumCols()),
		logger.String("target", opts.Features.Target),
		logger.Int64("seed", opts.Train.Seed),
		logger.Bool("bootstrap", opts.Train.Bootstrap),
	)

	if opts.Features.DateColumn == "" {
		opts.Features.DateColumn = opts.Clean.DateColumn
	}
	opts.Clean.Skip = append(slices.Clone(opts.Clean.Skip), unusedColumns(t, opts.Features)...)
	cleaned, err := NewPipeline(log.Named("clean"), ForecastStages(opts.Clean)...).Run(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("clean: %w", err)
	}

	built, err := Build(cleaned, opts.Features, opts.Clean.DateLayouts, log)
	if err != nil {
		return nil, fmt.Errorf("features: %w", err)
	}

	rf, report, err := Train(ctx, built.X, built.Y, opts.Train)
	if err != nil {
		return nil, err
	}
	report.Features = built.Schema.Features

	log.Info("training run finished",
		logger.Float64("mae", report.MAE),
		logger.Float64("rmse", report.RMSE),
		logger.Float64("r2", report.R2),
		logger.Int("train_rows", report.TrainRows),
		logger.Int("test_rows", report.TestRows),
		logger.Any("top_features", report.TopFeatures(5)),
		logger.Duration("elapsed", time.Since(start)),
	)
	return &Result{
		Schema: built.Schema,
		Scaler: built.Scaler,
		Model:  rf,
		Report: report,
		Rows:   cleaned.NumRows(),
	}, nil
}
