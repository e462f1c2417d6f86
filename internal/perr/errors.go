// Package perr defines the error taxonomy shared by every core component.
package perr

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers for the error kinds named in the pipeline's error taxonomy.
var (
	ErrConfigInvalid      = errors.New("config invalid")
	ErrAllocationFailure  = errors.New("allocation failure")
	ErrStageMissingInput  = errors.New("stage missing input")
	ErrStageExecFailure   = errors.New("stage execution failure")
	ErrStageTimeout       = errors.New("stage timeout")
	ErrManifestCorruption = errors.New("manifest corruption")
	ErrCancelled          = errors.New("cancelled")
	ErrResourceExhausted  = errors.New("resource exhausted")
)

// Kind captures the taxonomy of pipeline errors, independent of any
// particular wrapped Go error value.
type Kind string

const (
	KindConfigInvalid      Kind = "ConfigInvalid"
	KindAllocationFailure  Kind = "AllocationFailure"
	KindStageMissingInput  Kind = "StageMissingInput"
	KindStageExecFailure   Kind = "StageExecutionFailure"
	KindStageTimeout       Kind = "StageTimeout"
	KindManifestCorruption Kind = "ManifestCorruption"
	KindCancelled          Kind = "Cancelled"
	KindResourceExhausted  Kind = "ResourceExhausted"
)

// PipelineError carries structured context for a failure surfaced by any
// core component, in addition to satisfying the standard error interface.
type PipelineError struct {
	Marker    error
	Kind      Kind
	Stage     string
	Operation string
	Message   string
	Cause     error
}

func (e *PipelineError) Error() string {
	if e == nil {
		return ""
	}
	parts := make([]string, 0, 3)
	if e.Stage != "" {
		parts = append(parts, e.Stage)
	}
	if e.Operation != "" {
		parts = append(parts, e.Operation)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	detail := strings.Join(parts, ": ")
	if detail == "" {
		detail = "pipeline failure"
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", detail, e.Cause)
	}
	return detail
}

func (e *PipelineError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func (e *PipelineError) Is(target error) bool {
	if e == nil || target == nil {
		return false
	}
	if e.Marker != nil && errors.Is(e.Marker, target) {
		return true
	}
	return errors.Is(e.Cause, target)
}

// Wrap builds a PipelineError tagged with marker (one of the sentinels
// above) for later classification by callers such as the orchestrator.
func Wrap(marker error, stage, operation, message string, cause error) error {
	if marker == nil {
		marker = ErrStageExecFailure
	}
	return &PipelineError{
		Marker:    marker,
		Kind:      kindOf(marker),
		Stage:     strings.TrimSpace(stage),
		Operation: strings.TrimSpace(operation),
		Message:   strings.TrimSpace(message),
		Cause:     cause,
	}
}

func kindOf(marker error) Kind {
	switch {
	case errors.Is(marker, ErrConfigInvalid):
		return KindConfigInvalid
	case errors.Is(marker, ErrAllocationFailure):
		return KindAllocationFailure
	case errors.Is(marker, ErrStageMissingInput):
		return KindStageMissingInput
	case errors.Is(marker, ErrStageTimeout):
		return KindStageTimeout
	case errors.Is(marker, ErrManifestCorruption):
		return KindManifestCorruption
	case errors.Is(marker, ErrCancelled):
		return KindCancelled
	case errors.Is(marker, ErrResourceExhausted):
		return KindResourceExhausted
	default:
		return KindStageExecFailure
	}
}

// KindOf extracts the taxonomy Kind from any error, defaulting to
// StageExecutionFailure when err carries no PipelineError.
func KindOf(err error) Kind {
	var pe *PipelineError
	if errors.As(err, &pe) && pe != nil {
		return pe.Kind
	}
	return KindStageExecFailure
}

// Message extracts a human-readable message from err, preferring the
// PipelineError's own message over the generic Error() text.
func Message(err error) string {
	var pe *PipelineError
	if errors.As(err, &pe) && pe != nil {
		if pe.Message != "" {
			return pe.Message
		}
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
