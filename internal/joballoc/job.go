// Package joballoc implements the Job Allocator (C2): job identity and
// canonical directory assignment under a date-partitioned output root, and
// the Job record data model itself.
package joballoc

import (
	"fmt"
	"time"

	"reelflow/internal/config"
	"reelflow/internal/perr"
	"reelflow/internal/registry"
)

// FeatureFlags are the per-job toggles that influence which optional
// stages the Workflow Planner selects.
type FeatureFlags struct {
	SourceSeparation bool `json:"source_separation" toml:"source_separation"`
	VAD              bool `json:"vad" toml:"vad"`
	MultiPass        bool `json:"multi_pass" toml:"multi_pass"`
	SpeakerBias      bool `json:"speaker_bias" toml:"speaker_bias"`
	LyricsDetection  bool `json:"lyrics_detection" toml:"lyrics_detection"`
}

// Job is the immutable-after-creation record identifying one pipeline
// invocation.
type Job struct {
	JobID                string               `json:"job_id"`
	Workflow             registry.WorkflowKind `json:"workflow"`
	InputMedia           string               `json:"input_media"`
	SourceLanguage       string               `json:"source_language"`
	TargetLanguages      []string             `json:"target_languages"`
	ProcessingMode       config.ProcessingMode `json:"media_processing_mode"`
	MediaStartTime       string               `json:"media_start_time"`
	MediaEndTime         string               `json:"media_end_time"`
	TwoStepTranscription bool                 `json:"two_step_transcription"`
	Features             FeatureFlags         `json:"features"`
	LogLevel             string               `json:"log_level"`
	Tenant               string               `json:"tenant"`
	CreatedAt            time.Time            `json:"created_at"`

	// ConfigOverrides holds the subset of PipelineConfig fields this job
	// record pins, layered over pipeline defaults and under environment
	// overrides when C1 resolves this job's PipelineConfig.
	ConfigOverrides map[string]any `json:"config_overrides,omitempty"`
}

// Validate enforces the Job invariants from the data model: workflow is
// recognized, target languages are present and distinct from the source
// for translate/subtitle workflows, and the clip window (if any) is
// ordered.
func (j Job) Validate() error {
	switch j.Workflow {
	case registry.Transcribe, registry.Translate, registry.Subtitle:
	default:
		return configInvalid("workflow", fmt.Sprintf("unrecognized workflow %q", j.Workflow))
	}

	if j.Workflow == registry.Translate || j.Workflow == registry.Subtitle {
		if len(j.TargetLanguages) == 0 {
			return configInvalid("target_languages", "must be non-empty for translate/subtitle workflows")
		}
		for _, target := range j.TargetLanguages {
			if target == j.SourceLanguage {
				return configInvalid("target_languages", fmt.Sprintf("target language %q equals source language", target))
			}
		}
	}

	if j.ProcessingMode == config.ModeClip {
		if j.MediaStartTime == "" || j.MediaEndTime == "" || j.MediaStartTime == config.Unset || j.MediaEndTime == config.Unset {
			return configInvalid("media_start_time/media_end_time", "clip mode requires both start and end times")
		}
		start, err := config.ParseClipTime(j.MediaStartTime)
		if err != nil {
			return configInvalid("media_start_time", err.Error())
		}
		end, err := config.ParseClipTime(j.MediaEndTime)
		if err != nil {
			return configInvalid("media_end_time", err.Error())
		}
		if !(start < end) {
			return configInvalid("media_start_time/media_end_time", "start must be strictly before end")
		}
	}

	if j.InputMedia == "" {
		return configInvalid("input_media", "must be set")
	}
	return nil
}

func configInvalid(key, detail string) error {
	return perr.Wrap(perr.ErrConfigInvalid, "", "job.validate", fmt.Sprintf("%s: %s", key, detail), nil)
}
