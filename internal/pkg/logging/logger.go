// Package logging builds the process zap logger.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// systemID marks records written outside any request or event.
const systemID = "system"

type Options struct {
	Service string
	Env     string
	Level   string
	// File, when set, receives a copy of every record. On a kiosk it is the
	// log a field technician pulls from the device.
	File string
	// VID is the device id stamped on every record.
	VID string
}

// New creates a JSON logger writing to stdout and, optionally, to Options.File.
func New(opts Options) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	if opts.Level != "" {
		lvl, err := zapcore.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("logging: level %q: %w", opts.Level, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, fmt.Errorf("logging: log directory: %w", err)
		}
		cfg.OutputPaths = append(cfg.OutputPaths, opts.File)
		cfg.ErrorOutputPaths = append(cfg.ErrorOutputPaths, opts.File)
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.MessageKey = "msg"
	cfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder

	cfg.InitialFields = map[string]any{
		"service": opts.Service,
		"env":     opts.Env,
	}
	if opts.VID != "" {
		cfg.InitialFields["vid"] = opts.VID
	}
	return cfg.Build()
}

// System tags a logger used for process lifecycle records so they still carry
// the trace_id and span_id keys every other record has.
func System(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		logger = zap.L()
	}
	return logger.With(
		zap.String("trace_id", systemID),
		zap.String("span_id", systemID),
	)
}
