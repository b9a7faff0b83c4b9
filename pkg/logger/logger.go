package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Field type
type Field = zapcore.Field

// Logger is the structured logger every pipeline component takes.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
	Named(name string) Logger
	Sync() error
}

// Config defines logger configuration
type Config struct {
	Level       string   `yaml:"level"`
	Encoding    string   `yaml:"encoding"`
	OutputPaths []string `yaml:"output_paths"`
	MaxSize     int      `yaml:"max_size"` // MB
	MaxBackups  int      `yaml:"max_backups"`
	MaxAge      int      `yaml:"max_age"` // days
	Compress    bool     `yaml:"compress"`
	Development bool     `yaml:"development"`
}

type logger struct {
	zap *zap.Logger
}

// Option defines logger option function
type Option func(*Config)

func WithLevel(level string) Option { return func(c *Config) { c.Level = level } }

func WithEncoding(encoding string) Option { return func(c *Config) { c.Encoding = encoding } }

func WithOutputPaths(paths ...string) Option { return func(c *Config) { c.OutputPaths = paths } }

// WithConfig replaces the whole configuration; zero fields keep their defaults.
func WithConfig(in Config) Option {
	return func(c *Config) {
		if in.Level != "" {
			c.Level = in.Level
		}
		if in.Encoding != "" {
			c.Encoding = in.Encoding
		}
		if len(in.OutputPaths) > 0 {
			c.OutputPaths = in.OutputPaths
		}
		if in.MaxSize > 0 {
			c.MaxSize = in.MaxSize
		}
		if in.MaxBackups > 0 {
			c.MaxBackups = in.MaxBackups
		}
		if in.MaxAge > 0 {
			c.MaxAge = in.MaxAge
		}
		c.Compress = in.Compress
		c.Development = in.Development
	}
}

// New builds a zap-backed logger. File outputs rotate through lumberjack.
func New(opts ...Option) (Logger, error) {
	cfg := &Config{
		Level:       "info",
		Encoding:    "console",
		OutputPaths: []string{"stderr"},
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      7,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("can't parse log level: %w", err)
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var cores []zapcore.Core
	for _, path := range cfg.OutputPaths {
		var writer zapcore.WriteSyncer
		switch path {
		case "stdout":
			writer = zapcore.AddSync(os.Stdout)
		case "stderr":
			writer = zapcore.AddSync(os.Stderr)
		default:
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, fmt.Errorf("can't create log directory: %w", err)
			}
			writer = zapcore.AddSync(&lumberjack.Logger{
				Filename:   path,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   cfg.Compress,
			})
		}

		var encoder zapcore.Encoder
		if cfg.Encoding == "json" {
			encoder = zapcore.NewJSONEncoder(encoderConfig)
		} else {
			encoder = zapcore.NewConsoleEncoder(encoderConfig)
		}
		cores = append(cores, zapcore.NewCore(encoder, writer, level))
	}

	options := []zap.Option{zap.AddCaller(), zap.AddCallerSkip(1)}
	if cfg.Development {
		options = append(options, zap.Development())
	}

	return &logger{zap: zap.New(zapcore.NewTee(cores...), options...)}, nil
}

// NewFromZap adapts an existing zap logger, e.g. one from zaptest.
func NewFromZap(z *zap.Logger) Logger {
	return &logger{zap: z.WithOptions(zap.AddCallerSkip(1))}
}

// NewNop returns a logger that discards everything.
func NewNop() Logger {
	return &logger{zap: zap.NewNop()}
}

func String(key string, val string) Field          { return zap.String(key, val) }
func Strings(key string, val []string) Field       { return zap.Strings(key, val) }
func Int(key string, val int) Field                { return zap.Int(key, val) }
func Int64(key string, val int64) Field            { return zap.Int64(key, val) }
func Float64(key string, val float64) Field        { return zap.Float64(key, val) }
func Bool(key string, val bool) Field              { return zap.Bool(key, val) }
func Any(key string, val any) Field                { return zap.Any(key, val) }
func Error(err error) Field                        { return zap.Error(err) }
func Duration(key string, val time.Duration) Field { return zap.Duration(key, val) }

func (l *logger) Debug(msg string, fields ...Field) { l.zap.Debug(msg, fields...) }
func (l *logger) Info(msg string, fields ...Field)  { l.zap.Info(msg, fields...) }
func (l *logger) Warn(msg string, fields ...Field)  { l.zap.Warn(msg, fields...) }
func (l *logger) Error(msg string, fields ...Field) { l.zap.Error(msg, fields...) }

func (l *logger) With(fields ...Field) Logger {
	return &logger{zap: l.zap.With(fields...)}
}

func (l *logger) Named(name string) Logger {
	return &logger{zap: l.zap.Named(name)}
}

func (l *logger) Sync() error {
	return l.zap.Sync()
}
