// Package pipectx annotates context.Context with the identifiers every
// core component threads through logging and error reporting: job id,
// stage name, and a per-stage-execution request id.
package pipectx

import "context"

type contextKey string

const (
	jobIDKey    contextKey = "job_id"
	stageKey    contextKey = "stage"
	requestKey  contextKey = "request_id"
	workflowKey contextKey = "workflow"
)

// WithJobID annotates ctx with the job identifier.
func WithJobID(ctx context.Context, jobID string) context.Context {
	if jobID == "" {
		return ctx
	}
	return context.WithValue(ctx, jobIDKey, jobID)
}

// JobID extracts the job identifier if present.
func JobID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(jobIDKey).(string)
	return v, ok && v != ""
}

// WithStage annotates ctx with the active stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// Stage extracts the active stage name if present.
func Stage(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(stageKey).(string)
	return v, ok && v != ""
}

// WithRequestID annotates ctx with a correlation id for one stage execution.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestKey, id)
}

// RequestID extracts the correlation id if present.
func RequestID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(requestKey).(string)
	return v, ok && v != ""
}

// WithWorkflow annotates ctx with the workflow kind.
func WithWorkflow(ctx context.Context, workflow string) context.Context {
	if workflow == "" {
		return ctx
	}
	return context.WithValue(ctx, workflowKey, workflow)
}

// Workflow extracts the workflow kind if present.
func Workflow(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(workflowKey).(string)
	return v, ok && v != ""
}
