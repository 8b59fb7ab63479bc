// Package logctx carries a request- or event-scoped logger on the context.
package logctx

import (
	"context"

	"github.com/yuguanpei/vending-machine/internal/observability"
)

type loggerKey struct{}

func With(ctx context.Context, logger observability.Logger) context.Context {
	if ctx == nil || logger == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// From returns the context logger or nil.
func From(ctx context.Context) observability.Logger {
	if ctx == nil {
		return nil
	}
	logger, _ := ctx.Value(loggerKey{}).(observability.Logger)
	return logger
}

// FromOr returns the context logger, or fallback when the context has none.
func FromOr(ctx context.Context, fallback observability.Logger) observability.Logger {
	if logger := From(ctx); logger != nil {
		return logger
	}
	if fallback == nil {
		return observability.NopLogger()
	}
	return fallback
}

// WithFields binds extra fields to the context logger (or fallback) and stores the result.
func WithFields(ctx context.Context, fallback observability.Logger, fields ...observability.Field) context.Context {
	return With(ctx, FromOr(ctx, fallback).With(fields...))
}
