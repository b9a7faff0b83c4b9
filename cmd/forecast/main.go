package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"salesforecast/pkg/artifact"
	"salesforecast/pkg/config"
	"salesforecast/pkg/data"
	"salesforecast/pkg/logger"
	"salesforecast/pkg/pipeline"
	"salesforecast/pkg/server"
)

//
// ---------------------- CLI FLAGS DOCUMENTATION ----------------------
//
// forecast train   --config cfg.yaml [--data sales.csv]
// forecast predict --config cfg.yaml --input new.csv [--run <id>|latest] [--batch 500] [--output out.txt]
// forecast clean   --config cfg.yaml --input raw.csv --output clean.csv [--mode forecast|descriptive]
// forecast serve   --config cfg.yaml [--run <id>|latest]
//
// --config : YAML config file. Optional; FORECAST_* env vars and a local .env also apply
// --data   : Training CSV. Overrides data.path
// --input  : CSV to read
// --output : Destination file. Default = stdout
// --run    : Run ID of a saved bundle, or "latest"
// --batch  : Rows per prediction batch when streaming input
// --mode   : Cleaning flavour: "forecast" (fill, resolve leading gaps) or "descriptive"
//
// Example:
//   go run ./cmd/forecast train --config forecast.yaml --data Sales.csv
//
// ---------------------------------------------------------------------
//

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1], os.Args[2:], os.Stdout)
	stop()
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "forecast %s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: forecast <train|predict|clean|serve> [flags]")
}

func run(ctx context.Context, cmd string, args []string, stdout io.Writer) error {
	switch cmd {
	case "train":
		return runTrain(ctx, args, stdout)
	case "predict":
		return runPredict(ctx, args, stdout)
	case "clean":
		return runClean(ctx, args, stdout)
	case "serve":
		return runServe(ctx, args)
	case "-h", "--help", "help":
		usage(stdout)
		return nil
	}
	usage(os.Stderr)
	return fmt.Errorf("unknown command %q", cmd)
}

// setup loads the configuration and builds the logger it describes.
func setup(configPath string) (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.LoggerOptions()...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return cfg, log, nil
}

func runTrain(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML config file")
	dataPath := fs.String("data", "", "training CSV, overrides data.path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, log, err := setup(*configPath)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	path := cfg.Data.Path
	if *dataPath != "" {
		path = *dataPath
	}
	if path == "" {
		return errors.New("no training data: set --data or data.path")
	}

	err = func() error {
		tbl, err := data.Load(path, cfg.LoadOptions())
		if err != nil {
			return err
		}
		log.Info("data loaded",
			logger.String("path", path),
			logger.Int("rows", tbl.NumRows()),
			logger.Int("missing", tbl.MissingCount()),
		)

		opts, err := cfg.PipelineOptions()
		if err != nil {
			return err
		}
		res, err := pipeline.Run(ctx, tbl, opts, log)
		if err != nil {
			return err
		}

		store, err := artifact.NewStore(ctx, cfg.Artifacts, log)
		if err != nil {
			return err
		}
		b := artifact.NewBundle(res)
		if err := store.Save(ctx, b); err != nil {
			return err
		}

		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			RunID     string             `json:"run_id"`
			Metrics   map[string]float64 `json:"metrics"`
			TrainRows int                `json:"train_rows"`
			TestRows  int                `json:"test_rows"`
		}{b.RunID, res.Report.Metrics(), res.Report.TrainRows, res.Report.TestRows})
	}()
	if err != nil {
		log.Error("training failed", logger.Error(err))
	}
	return err
}

func runPredict(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("predict", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML config file")
	runID := fs.String("run", artifact.LatestRef, "run ID or latest")
	input := fs.String("input", "", "CSV of rows to forecast")
	output := fs.String("output", "", "forecast destination, default stdout")
	batchSize := fs.Int("batch", 500, "rows per prediction batch")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *input == "" {
		return errors.New("--input is required")
	}

	cfg, log, err := setup(*configPath)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	err = func() error {
		store, err := artifact.NewStore(ctx, cfg.Artifacts, log)
		if err != nil {
			return err
		}
		b, err := store.Load(ctx, *runID)
		if err != nil {
			return err
		}
		p, err := b.Predictor()
		if err != nil {
			return err
		}

		w := stdout
		if *output != "" {
			f, err := os.Create(*output)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}

		n, err := streamForecasts(ctx, p, *input, cfg.LoadOptions(), *batchSize, w)
		if err != nil {
			return err
		}
		log.Info("forecasts written", logger.String("run_id", b.RunID), logger.Int("rows", n))
		return nil
	}()
	if err != nil {
		log.Error("prediction failed", logger.Error(err))
	}
	return err
}

// streamForecasts reads path in batches and writes one forecast per input
// row, in input order.
func streamForecasts(ctx context.Context, p *pipeline.Predictor, path string, opts *data.LoadOptions, batchSize int, w io.Writer) (int, error) {
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	rows := make(chan data.Row, batchSize)
	header, err := data.StreamRows(streamCtx, path, opts, rows)
	if err != nil {
		return 0, err
	}
	batches := make(chan data.Batch)
	data.Batcher(streamCtx, rows, batchSize, batches)

	bw := bufio.NewWriter(w)
	n := 0
	for batch := range batches {
		tbl, err := batch.Table(header)
		if err != nil {
			return n, err
		}
		forecasts, err := p.PredictTable(tbl)
		if err != nil {
			first, last := batch.Rows[0].Line, batch.Rows[len(batch.Rows)-1].Line
			return n, fmt.Errorf("lines %d-%d: %w", first, last, err)
		}
		for _, f := range forecasts {
			if _, err := bw.WriteString(strconv.FormatFloat(f, 'f', -1, 64) + "\n"); err != nil {
				return n, err
			}
		}
		n += len(forecasts)
	}
	if err := ctx.Err(); err != nil {
		return n, err
	}
	return n, bw.Flush()
}

func runClean(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("clean", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML config file")
	input := fs.String("input", "", "CSV to clean")
	output := fs.String("output", "", "cleaned CSV destination, default stdout")
	mode := fs.String("mode", "forecast", "forecast or descriptive")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *input == "" {
		return errors.New("--input is required")
	}

	cfg, log, err := setup(*configPath)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	err = func() error {
		opts, err := cfg.CleanOptions()
		if err != nil {
			return err
		}
		var stages []pipeline.Stage
		switch *mode {
		case "forecast":
			stages = pipeline.ForecastStages(opts)
		case "descriptive":
			stages = pipeline.DescriptiveStages(opts)
		default:
			return fmt.Errorf("unknown mode %q", *mode)
		}

		loadOpts := cfg.LoadOptions()
		tbl, err := data.Load(*input, loadOpts)
		if err != nil {
			return err
		}
		cleaned, err := pipeline.NewPipeline(log, stages...).Run(ctx, tbl)
		if err != nil {
			return err
		}

		w := stdout
		if *output != "" {
			f, err := os.Create(*output)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		if err := cleaned.WriteCSV(w, loadOpts.Delimiter); err != nil {
			return err
		}
		log.Info("cleaned",
			logger.String("mode", *mode),
			logger.Int("rows_in", tbl.NumRows()),
			logger.Int("rows_out", cleaned.NumRows()),
		)
		return nil
	}()
	if err != nil {
		log.Error("cleaning failed", logger.Error(err))
	}
	return err
}

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML config file")
	runID := fs.String("run", artifact.LatestRef, "run ID or latest to serve at startup")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, log, err := setup(*configPath)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	store, err := artifact.NewStore(ctx, cfg.Artifacts, log)
	if err != nil {
		log.Error("artifact store unavailable", logger.Error(err))
		return err
	}
	srv := server.New(cfg.Server, store, log, nil)
	if _, err := srv.Reload(ctx, *runID); err != nil {
		log.Warn("starting without a model", logger.String("run", *runID), logger.Error(err))
	}
	if err := srv.Run(ctx); err != nil {
		log.Error("server failed", logger.Error(err))
		return err
	}
	return nil
}
