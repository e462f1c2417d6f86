// Package registry implements the Stage Registry (C3): a fixed, ordered
// table of stage descriptors that is the single source of truth for stage
// numbers, directory names, required environments, and fatal/optional
// semantics. No other component computes these by any other means.
package registry

import "fmt"

// StageName identifies one of the fixed, ordered stages. Values are stable
// across the repository's lifetime; renaming one is a breaking change to
// every on-disk job directory.
type StageName string

const (
	Demux              StageName = "demux"
	TMDB               StageName = "tmdb"
	GlossaryLoad       StageName = "glossary_load"
	SourceSeparation   StageName = "source_separation"
	PyannoteVAD        StageName = "pyannote_vad"
	ASR                StageName = "asr"
	Alignment          StageName = "alignment"
	LyricsDetection    StageName = "lyrics_detection"
	Translation        StageName = "translation"
	SubtitleGeneration StageName = "subtitle_generation"
	Mux                StageName = "mux"
)

// WorkflowKind is the user-chosen end goal, which determines which stages
// the Workflow Planner selects.
type WorkflowKind string

const (
	Transcribe WorkflowKind = "transcribe"
	Translate  WorkflowKind = "translate"
	Subtitle   WorkflowKind = "subtitle"
)

// Fatality captures whether a stage's failure aborts the pipeline:
// Always for stages fatal in every workflow they appear in, Never for
// stages whose failure is always recorded as a warning, and Conditional
// for stages that are fatal only in the workflows named in Descriptor.Workflows.
type Fatality int

const (
	Never Fatality = iota
	Always
	Conditional
)

// Descriptor is one row of the Stage Registry.
type Descriptor struct {
	Name      StageName
	Number    int
	Env       string
	Fatal     Fatality
	Workflows []WorkflowKind
	Notes     string
}

// Directory returns the stage's canonical directory name, "NN_<name>".
func (d Descriptor) Directory() string {
	return fmt.Sprintf("%02d_%s", d.Number, d.Name)
}

// InWorkflow reports whether the stage participates in the given workflow.
func (d Descriptor) InWorkflow(kind WorkflowKind) bool {
	for _, w := range d.Workflows {
		if w == kind {
			return true
		}
	}
	return false
}

// IsFatal reports whether a failure of this stage should abort the
// pipeline for the given workflow.
func (d Descriptor) IsFatal(kind WorkflowKind) bool {
	switch d.Fatal {
	case Always:
		return true
	case Conditional:
		return d.InWorkflow(kind)
	default:
		return false
	}
}

// stages is the canonical, ordered stage list. Names, numbers, and order
// MUST NOT change; every stage directory on disk is derived from this
// table and nothing else.
var stages = []Descriptor{
	{Name: Demux, Number: 1, Env: "common", Fatal: Always,
		Workflows: []WorkflowKind{Transcribe, Translate, Subtitle},
		Notes:     "Extracts audio track(s) from input media; honors clip window."},
	{Name: TMDB, Number: 2, Env: "common", Fatal: Never,
		Workflows: []WorkflowKind{Transcribe, Translate, Subtitle},
		Notes:     "External metadata enrichment; failure degrades to empty enrichment."},
	{Name: GlossaryLoad, Number: 3, Env: "common", Fatal: Never,
		Workflows: []WorkflowKind{Transcribe, Translate, Subtitle},
		Notes:     "Prepares bias term list; failure degrades to empty glossary."},
	{Name: SourceSeparation, Number: 4, Env: "demucs", Fatal: Never,
		Workflows: []WorkflowKind{Transcribe, Translate, Subtitle},
		Notes:     "Isolates vocals from music; failure allows fallback to raw audio."},
	{Name: PyannoteVAD, Number: 5, Env: "pyannote", Fatal: Never,
		Workflows: []WorkflowKind{Transcribe, Translate, Subtitle},
		Notes:     "Produces speech regions; failure falls back to ASR built-in VAD."},
	{Name: ASR, Number: 6, Env: "whisperx_or_mlx", Fatal: Always,
		Workflows: []WorkflowKind{Transcribe, Translate, Subtitle},
		Notes:     "Produces time-stamped transcript segments in source language."},
	{Name: Alignment, Number: 7, Env: "whisperx", Fatal: Never,
		Workflows: []WorkflowKind{Transcribe, Translate, Subtitle},
		Notes:     "Word-level timestamp refinement."},
	{Name: LyricsDetection, Number: 8, Env: "demucs", Fatal: Never,
		Workflows: []WorkflowKind{Transcribe, Translate, Subtitle},
		Notes:     "Classifies segments as dialogue vs song."},
	{Name: Translation, Number: 9, Env: "indictrans2_or_nllb", Fatal: Conditional,
		Workflows: []WorkflowKind{Translate, Subtitle},
		Notes:     "Fatal only if workflow requires translation."},
	{Name: SubtitleGeneration, Number: 10, Env: "common", Fatal: Conditional,
		Workflows: []WorkflowKind{Subtitle},
		Notes:     "Fatal only if workflow produces subtitles."},
	{Name: Mux, Number: 11, Env: "common", Fatal: Conditional,
		Workflows: []WorkflowKind{Subtitle},
		Notes:     "Fatal only if workflow produces a muxed container."},
}

var byName = func() map[StageName]Descriptor {
	m := make(map[StageName]Descriptor, len(stages))
	for _, s := range stages {
		m[s.Name] = s
	}
	return m
}()

// StagesInOrder returns the full registry in canonical order.
func StagesInOrder() []Descriptor {
	out := make([]Descriptor, len(stages))
	copy(out, stages)
	return out
}

// Lookup returns the descriptor for name.
func Lookup(name StageName) (Descriptor, bool) {
	d, ok := byName[name]
	return d, ok
}

// StageNumber returns the stable stage number for name.
func StageNumber(name StageName) (int, error) {
	d, ok := byName[name]
	if !ok {
		return 0, fmt.Errorf("registry: unknown stage %q", name)
	}
	return d.Number, nil
}

// StageDirectory returns the canonical "NN_name" directory for name.
func StageDirectory(name StageName) (string, error) {
	d, ok := byName[name]
	if !ok {
		return "", fmt.Errorf("registry: unknown stage %q", name)
	}
	return d.Directory(), nil
}

// EnvironmentFor returns the dependency environment identifier for name.
func EnvironmentFor(name StageName) (string, error) {
	d, ok := byName[name]
	if !ok {
		return "", fmt.Errorf("registry: unknown stage %q", name)
	}
	return d.Env, nil
}

// Fatal reports whether name's failure should abort the pipeline under kind.
func Fatal(name StageName, kind WorkflowKind) (bool, error) {
	d, ok := byName[name]
	if !ok {
		return false, fmt.Errorf("registry: unknown stage %q", name)
	}
	return d.IsFatal(kind), nil
}

// Preceding returns the stage immediately before name in registry order, or
// ok=false if name is the first stage. This is the default StageIO.get_input_path
// "from_stage" target.
func Preceding(name StageName) (Descriptor, bool) {
	d, ok := byName[name]
	if !ok || d.Number <= 1 {
		return Descriptor{}, false
	}
	for _, s := range stages {
		if s.Number == d.Number-1 {
			return s, true
		}
	}
	return Descriptor{}, false
}
