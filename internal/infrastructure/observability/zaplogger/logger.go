// Package zaplogger adapts zap to the logging port.
package zaplogger

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/yuguanpei/vending-machine/internal/observability"
)

type logger struct{ l *zap.Logger }

// New wraps base (zap.L() when nil) and binds the fixed fields once.
func New(base *zap.Logger, fixed ...observability.Field) observability.Logger {
	if base == nil {
		base = zap.L()
	}
	return &logger{l: base.With(fields(fixed)...)}
}

func (z *logger) With(fs ...observability.Field) observability.Logger {
	if len(fs) == 0 {
		return z
	}
	return &logger{l: z.l.With(fields(fs)...)}
}

func (z *logger) Debug(msg string, fs ...observability.Field) { z.write(zap.DebugLevel, msg, fs) }
func (z *logger) Info(msg string, fs ...observability.Field)  { z.write(zap.InfoLevel, msg, fs) }
func (z *logger) Warn(msg string, fs ...observability.Field)  { z.write(zap.WarnLevel, msg, fs) }
func (z *logger) Error(msg string, fs ...observability.Field) { z.write(zap.ErrorLevel, msg, fs) }

func (z *logger) write(lvl zapcore.Level, msg string, fs []observability.Field) {
	// Skip field conversion for disabled levels; debug records are frequent.
	if ce := z.l.Check(lvl, msg); ce != nil {
		ce.Write(fields(fs)...)
	}
}

func fields(fs []observability.Field) []zap.Field {
	out := make([]zap.Field, 0, len(fs))
	for _, f := range fs {
		out = append(out, field(f))
	}
	return out
}

func field(f observability.Field) zap.Field {
	switch v := f.Value.(type) {
	case nil:
		return zap.Skip()
	case error:
		return zap.NamedError(f.Key, v)
	case string:
		return zap.String(f.Key, v)
	case time.Duration:
		return zap.Duration(f.Key, v)
	case time.Time:
		return zap.Time(f.Key, v)
	case fmt.Stringer:
		return zap.Stringer(f.Key, v)
	default:
		return zap.Any(f.Key, v)
	}
}
