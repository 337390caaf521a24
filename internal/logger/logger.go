package logger

import (
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/xerrors"
)

// Options select the level and encoding of the process logger
type Options struct {
	Level  string // debug, info, warn, error
	Format string // console or json
}

// New builds the logger handed to every component of a run
func New(opts Options) (*zap.Logger, error) {
	var level zapcore.Level
	if opts.Level == "" {
		level = zapcore.DebugLevel
	} else if err := level.UnmarshalText([]byte(strings.ToLower(opts.Level))); err != nil {
		return nil, xerrors.Errorf("unknown log level %q: %w", opts.Level, err)
	}

	var cfg zap.Config
	switch opts.Format {
	case "", "console":
		cfg = ConsoleConfig(level)
	case "json":
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(level)
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	default:
		return nil, xerrors.Errorf("unknown log format %q", opts.Format)
	}

	return cfg.Build()
}

// ConsoleConfig is a human readable config; levels are coloured only when
// both stdout and stderr are terminals
func ConsoleConfig(level zapcore.Level) zap.Config {
	encoder := zapcore.CapitalColorLevelEncoder
	if !isatty.IsTerminal(os.Stdout.Fd()) || !isatty.IsTerminal(os.Stderr.Fd()) {
		encoder = zapcore.CapitalLevelEncoder
	}

	return zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Encoding:         "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey:     "msg",
			LevelKey:       "level",
			TimeKey:        "ts",
			CallerKey:      "caller",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    encoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
	}
}

// Timing logs the start of an operation at debug level and returns a func
// that logs its completion with the elapsed time
func Timing(log *zap.Logger, operation string) func() {
	if !log.Core().Enabled(zapcore.DebugLevel) {
		return func() {}
	}

	start := time.Now()
	log.Debug("Starting", zap.String("operation", operation))

	return func() {
		log.Debug("Completed", zap.String("operation", operation), zap.Duration("took", time.Since(start)))
	}
}

// OrNop returns log, or a no-op logger when log is nil
func OrNop(log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}
