// Package logging provides the dual-destination structured logger every
// core component uses: a console or JSON handler for the process's own
// output stream, and a fan-out handler StageIO uses to mirror INFO+
// records into the main pipeline log owned by the orchestrator.
package logging

import (
	"context"
	"log/slog"
	"time"

	"reelflow/internal/pipectx"
)

type Attr = slog.Attr

func Any(key string, value any) Attr { return slog.Any(key, value) }

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

func Float64(key string, value float64) Attr { return slog.Float64(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func Int64(key string, value int64) Attr { return slog.Int64(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

func attrsToArgs(attrs []Attr) []any {
	args := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		args = append(args, attr)
	}
	return args
}

func Args(attrs ...Attr) []any {
	return attrsToArgs(attrs)
}

// Standardized structured logging keys shared across the core components.
const (
	FieldComponent = "component"
	FieldJobID     = "job_id"
	FieldStage     = "stage"
	FieldWorkflow  = "workflow"
	FieldRequestID = "request_id"
	FieldEventType = "event_type"
	FieldErrorKind = "error_kind"
	FieldSizeBytes = "size_bytes"
)

// NewNop returns a logger that discards all output.
func NewNop() *slog.Logger {
	return slog.New(NoopHandler{})
}

// NoopHandler discards all log output.
type NoopHandler struct{}

func (NoopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (NoopHandler) Handle(context.Context, slog.Record) error { return nil }
func (NoopHandler) WithAttrs([]slog.Attr) slog.Handler        { return NoopHandler{} }
func (NoopHandler) WithGroup(string) slog.Handler             { return NoopHandler{} }

// ContextFields extracts standardized slog attributes from ctx.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if jobID, ok := pipectx.JobID(ctx); ok {
		fields = append(fields, slog.String(FieldJobID, jobID))
	}
	if stage, ok := pipectx.Stage(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if workflow, ok := pipectx.Workflow(ctx); ok {
		fields = append(fields, slog.String(FieldWorkflow, workflow))
	}
	if rid, ok := pipectx.RequestID(ctx); ok {
		fields = append(fields, slog.String(FieldRequestID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with fields derived from ctx.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
