// Package workflow implements the Workflow Planner (C7): it translates a
// job's (workflow, source language, target languages, clip window, feature
// flags) request into a concrete ordered stage list drawn from the Stage
// Registry.
package workflow

import (
	"fmt"

	"reelflow/internal/joballoc"
	"reelflow/internal/registry"
)

// PlannedStage is one entry in the ordered execution plan: the registry
// descriptor plus any per-stage iteration data the orchestrator and the
// stage module itself need (currently only Translation iterates, once per
// target language, while remaining a single node in the sequence).
type PlannedStage struct {
	Descriptor      registry.Descriptor
	TargetLanguages []string
}

// Plan returns the ordered stage list for job:
// transcribe is the base stage set; translate appends translation;
// subtitle appends subtitle_generation and mux after translation.
// Optional stages are included iff their feature flag is set.
func Plan(job joballoc.Job) ([]PlannedStage, error) {
	switch job.Workflow {
	case registry.Transcribe, registry.Translate, registry.Subtitle:
	default:
		return nil, fmt.Errorf("workflow: unrecognized workflow %q", job.Workflow)
	}

	plan := transcribeStages(job)

	if job.Workflow == registry.Translate || job.Workflow == registry.Subtitle {
		translation, _ := registry.Lookup(registry.Translation)
		plan = append(plan, PlannedStage{Descriptor: translation, TargetLanguages: job.TargetLanguages})
	}

	if job.Workflow == registry.Subtitle {
		subgen, _ := registry.Lookup(registry.SubtitleGeneration)
		mux, _ := registry.Lookup(registry.Mux)
		plan = append(plan, PlannedStage{Descriptor: subgen}, PlannedStage{Descriptor: mux})
	}

	return plan, nil
}

// transcribeStages returns the base stage set shared by every workflow:
// {demux, tmdb, glossary_load, source_separation?, pyannote_vad?, asr,
// alignment, lyrics_detection?}, where stages marked "?" are included iff
// their feature flag is set. The two-step-transcription flag changes the
// internal ASR/translation contract (see StageIO config snapshots) but
// never changes which stages appear here.
func transcribeStages(job joballoc.Job) []PlannedStage {
	plan := make([]PlannedStage, 0, 8)
	add := func(name registry.StageName) {
		if d, ok := registry.Lookup(name); ok {
			plan = append(plan, PlannedStage{Descriptor: d})
		}
	}

	add(registry.Demux)
	add(registry.TMDB)
	add(registry.GlossaryLoad)
	if job.Features.SourceSeparation {
		add(registry.SourceSeparation)
	}
	if job.Features.VAD {
		add(registry.PyannoteVAD)
	}
	add(registry.ASR)
	add(registry.Alignment)
	if job.Features.LyricsDetection {
		add(registry.LyricsDetection)
	}
	return plan
}

// StageNames projects a plan down to the bare ordered stage name list.
func StageNames(plan []PlannedStage) []registry.StageName {
	names := make([]registry.StageName, len(plan))
	for i, p := range plan {
		names[i] = p.Descriptor.Name
	}
	return names
}
