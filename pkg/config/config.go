package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"salesforecast/pkg/data"
	"salesforecast/pkg/dataprep"
	"salesforecast/pkg/logger"
	"salesforecast/pkg/pipeline"
)

// EnvPrefix prefixes every environment variable, e.g. FORECAST_TRAINING_SEED.
const EnvPrefix = "FORECAST"

// Config represents the complete application configuration
type Config struct {
	Data      DataConfig      `yaml:"data" envconfig:"DATA"`
	Cleaning  CleaningConfig  `yaml:"cleaning" envconfig:"CLEANING"`
	Training  TrainingConfig  `yaml:"training" envconfig:"TRAINING"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Artifacts ArtifactsConfig `yaml:"artifacts" envconfig:"ARTIFACTS"`
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
}

// DataConfig describes the input table.
type DataConfig struct {
	Path       string   `yaml:"path" envconfig:"PATH"`
	Delimiter  string   `yaml:"delimiter" envconfig:"DELIMITER" default:"," validate:"len=1"`
	TrimSpace  bool     `yaml:"trim_space" envconfig:"TRIM_SPACE" default:"true"`
	Target     string   `yaml:"target" envconfig:"TARGET" default:"Sales" validate:"required"`
	DateColumn string   `yaml:"date_column" envconfig:"DATE_COLUMN" default:"Date"`
	Exclude    []string `yaml:"exclude" envconfig:"EXCLUDE"`
}

// CleaningConfig controls the cleaner.
type CleaningConfig struct {
	Leading           string   `yaml:"leading" envconfig:"LEADING" default:"drop" validate:"oneof=drop error backfill"`
	DateLayouts       DateLayouts `yaml:"date_layouts" envconfig:"DATE_LAYOUTS"`
	EncodeCategorical bool        `yaml:"encode_categorical" envconfig:"ENCODE_CATEGORICAL" default:"false"`
}

// DateLayouts lists time layouts in the order they are tried. In the
// environment the layouts are separated by ";" since a layout such as
// "Jan 2, 2006" contains a comma.
type DateLayouts []string

// Decode implements envconfig.Decoder.
func (d *DateLayouts) Decode(value string) error {
	var out DateLayouts
	for _, l := range strings.Split(value, ";") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	*d = out
	return nil
}

// TrainingConfig controls the split and the forest.
type TrainingConfig struct {
	TestFraction        float64 `yaml:"test_fraction" envconfig:"TEST_FRACTION" default:"0.2" validate:"gt=0,lt=1"`
	Seed                int64   `yaml:"seed" envconfig:"SEED" default:"42"`
	Trees               int     `yaml:"trees" envconfig:"TREES" default:"100" validate:"min=1"`
	MaxDepth            int     `yaml:"max_depth" envconfig:"MAX_DEPTH" default:"0" validate:"min=0"`
	MinSamplesSplit     int     `yaml:"min_samples_split" envconfig:"MIN_SAMPLES_SPLIT" default:"2" validate:"min=2"`
	MinSamplesLeaf      int     `yaml:"min_samples_leaf" envconfig:"MIN_SAMPLES_LEAF" default:"1" validate:"min=1"`
	MaxFeatures         int     `yaml:"max_features" envconfig:"MAX_FEATURES" default:"0" validate:"min=0"`
	MinImpurityDecrease float64 `yaml:"min_impurity_decrease" envconfig:"MIN_IMPURITY_DECREASE" default:"0" validate:"min=0"`
	Bootstrap           bool    `yaml:"bootstrap" envconfig:"BOOTSTRAP" default:"true"`
	Workers             int     `yaml:"workers" envconfig:"WORKERS" default:"0" validate:"min=0"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level" envconfig:"LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Format     string `yaml:"format" envconfig:"FORMAT" default:"console" validate:"oneof=json console"`
	Output     string `yaml:"output" envconfig:"OUTPUT" default:"stderr"`
	MaxSizeMB  int    `yaml:"max_size_mb" envconfig:"MAX_SIZE_MB" default:"100" validate:"min=1"`
	MaxBackups int    `yaml:"max_backups" envconfig:"MAX_BACKUPS" default:"3" validate:"min=0"`
	MaxAgeDays int    `yaml:"max_age_days" envconfig:"MAX_AGE_DAYS" default:"28" validate:"min=0"`
}

// ArtifactsConfig selects where training bundles live.
type ArtifactsConfig struct {
	Store string      `yaml:"store" envconfig:"STORE" default:"file" validate:"oneof=file minio"`
	Dir   string      `yaml:"dir" envconfig:"DIR" default:"artifacts" validate:"required_if=Store file"`
	Minio MinioConfig `yaml:"minio" envconfig:"MINIO"`
}

// MinioConfig holds the object store connection.
type MinioConfig struct {
	Endpoint  string `yaml:"endpoint" envconfig:"ENDPOINT"`
	AccessKey string `yaml:"access_key" envconfig:"ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" envconfig:"SECRET_KEY"`
	UseSSL    bool   `yaml:"use_ssl" envconfig:"USE_SSL" default:"false"`
	Region    string `yaml:"region" envconfig:"REGION"`
	Bucket    string `yaml:"bucket" envconfig:"BUCKET" default:"forecasts"`
	Prefix    string `yaml:"prefix" envconfig:"PREFIX"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Addr            string        `yaml:"addr" envconfig:"ADDR" default:":8080" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"10s" validate:"gt=0"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" envconfig:"MAX_BODY_BYTES" default:"1048576" validate:"min=1"`
	ReloadInterval  time.Duration `yaml:"reload_interval" envconfig:"RELOAD_INTERVAL" default:"0s"`
}

// Load builds the configuration in layers: a .env file in the working
// directory (when present) feeds the environment, envconfig applies defaults
// and FORECAST_* variables, the YAML file at path (when non-empty) overrides
// the keys it sets, and the result is validated.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every field constraint.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}
	if c.Artifacts.Store == "minio" && (c.Artifacts.Minio.Endpoint == "" || c.Artifacts.Minio.Bucket == "") {
		return errors.New("artifacts.minio: endpoint and bucket are required for the minio store")
	}
	return nil
}

// LoadOptions maps the data section to loader options.
func (c *Config) LoadOptions() *data.LoadOptions {
	return &data.LoadOptions{Delimiter: []rune(c.Data.Delimiter)[0], TrimSpace: c.Data.TrimSpace}
}

// CleanOptions maps the cleaning section to cleaner options.
func (c *Config) CleanOptions() (dataprep.CleanOptions, error) {
	policy, err := dataprep.ParseLeadingPolicy(c.Cleaning.Leading)
	if err != nil {
		return dataprep.CleanOptions{}, err
	}
	return dataprep.CleanOptions{
		DateColumn:  c.Data.DateColumn,
		DateLayouts: []string(c.Cleaning.DateLayouts),
		Leading:     policy,
		Skip:        c.Data.Exclude,
	}, nil
}

// PipelineOptions assembles everything a training run needs.
func (c *Config) PipelineOptions() (pipeline.Options, error) {
	clean, err := c.CleanOptions()
	if err != nil {
		return pipeline.Options{}, err
	}
	t := c.Training
	return pipeline.Options{
		Clean: clean,
		Features: dataprep.FeatureOptions{
			Target:            c.Data.Target,
			DateColumn:        c.Data.DateColumn,
			Exclude:           c.Data.Exclude,
			EncodeCategorical: c.Cleaning.EncodeCategorical,
		},
		Train: pipeline.TrainOptions{
			TestFraction:        t.TestFraction,
			Seed:                t.Seed,
			Trees:               t.Trees,
			MaxDepth:            t.MaxDepth,
			MinSamplesSplit:     t.MinSamplesSplit,
			MinSamplesLeaf:      t.MinSamplesLeaf,
			MaxFeatures:         t.MaxFeatures,
			MinImpurityDecrease: t.MinImpurityDecrease,
			Bootstrap:           t.Bootstrap,
			Workers:             t.Workers,
		},
	}, nil
}

// LoggerOptions maps the logging section to logger options. Output is a
// comma separated list of stdout, stderr or file paths.
func (c *Config) LoggerOptions() []logger.Option {
	var outputs []string
	for _, o := range strings.Split(c.Logging.Output, ",") {
		if o = strings.TrimSpace(o); o != "" {
			outputs = append(outputs, o)
		}
	}
	return []logger.Option{logger.WithConfig(logger.Config{
		Level:       c.Logging.Level,
		Encoding:    c.Logging.Format,
		OutputPaths: outputs,
		MaxSize:     c.Logging.MaxSizeMB,
		MaxBackups:  c.Logging.MaxBackups,
		MaxAge:      c.Logging.MaxAgeDays,
	})}
}
