package logging

import (
	"context"
	"log/slog"
)

type loggerKey struct{}

// IntoContext stores logger in ctx for retrieval by FromContext.
func IntoContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext retrieves a logger previously stored with IntoContext,
// augmented with any job id/stage/workflow/request id fields present on
// ctx. Falls back to a no-op logger so callers never need a nil check.
func FromContext(ctx context.Context) *slog.Logger {
	logger, _ := ctx.Value(loggerKey{}).(*slog.Logger)
	if logger == nil {
		logger = NewNop()
	}
	return WithContext(ctx, logger)
}
