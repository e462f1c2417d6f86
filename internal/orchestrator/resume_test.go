package orchestrator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reelflow/internal/config"
	"reelflow/internal/joballoc"
	"reelflow/internal/registry"
	"reelflow/internal/stageio"
	"reelflow/internal/workflow"
)

func TestResumePredicate_SuccessWithMatchingOutputsAndConfig(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "out.wav")
	require.NoError(t, os.WriteFile(outPath, []byte("data"), 0o644))

	manifest := stageio.StageManifest{
		Status:  stageio.StatusSuccess,
		Outputs: []stageio.FileRecord{{Type: "audio", Path: outPath}},
		Config:  map[string]any{"media_processing_mode": "full"},
	}
	current := map[string]any{"media_processing_mode": "full"}

	assert.True(t, ResumePredicate(manifest, current))
}

func TestResumePredicate_RejectsNonSuccessStatus(t *testing.T) {
	manifest := stageio.StageManifest{Status: stageio.StatusFailed}
	assert.False(t, ResumePredicate(manifest, nil))
}

func TestResumePredicate_RejectsMissingOutput(t *testing.T) {
	dir := t.TempDir()
	manifest := stageio.StageManifest{
		Status:  stageio.StatusSuccess,
		Outputs: []stageio.FileRecord{{Type: "audio", Path: filepath.Join(dir, "missing.wav")}},
	}
	assert.False(t, ResumePredicate(manifest, nil))
}

func TestResumePredicate_RejectsChangedConfig(t *testing.T) {
	manifest := stageio.StageManifest{
		Status: stageio.StatusSuccess,
		Config: map[string]any{"asr_model_id": "large-v3"},
	}
	current := map[string]any{"asr_model_id": "medium"}
	assert.False(t, ResumePredicate(manifest, current))
}

func TestConfigSnapshotsEqual_TreatsNumericTypesConsistently(t *testing.T) {
	a := map[string]any{"asr_batch_size": 16}
	b := map[string]any{"asr_batch_size": float64(16)}
	assert.True(t, configSnapshotsEqual(a, b))
}

func TestAggregateTerminalStatus(t *testing.T) {
	cases := []struct {
		name           string
		outcomes       []StageOutcome
		abortedOnFatal bool
		want           stageio.JobStatus
	}{
		{
			name: "all fatal succeed",
			outcomes: []StageOutcome{
				{Name: "demux", Status: stageio.StatusSuccess, Fatal: true},
				{Name: "asr", Status: stageio.StatusSuccess, Fatal: true},
			},
			want: stageio.JobSuccess,
		},
		{
			name: "optional stage failed",
			outcomes: []StageOutcome{
				{Name: "demux", Status: stageio.StatusSuccess, Fatal: true},
				{Name: "tmdb", Status: stageio.StatusFailed, Fatal: false},
			},
			want: stageio.JobPartial,
		},
		{
			name: "fatal stage failed",
			outcomes: []StageOutcome{
				{Name: "demux", Status: stageio.StatusSuccess, Fatal: true},
				{Name: "asr", Status: stageio.StatusFailed, Fatal: true},
			},
			want: stageio.JobFailed,
		},
		{
			name:           "aborted on fatal stops the run early",
			outcomes:       []StageOutcome{{Name: "demux", Status: stageio.StatusSuccess, Fatal: true}},
			abortedOnFatal: true,
			want:           stageio.JobFailed,
		},
		{
			name: "optional stage skipped does not count against status",
			outcomes: []StageOutcome{
				{Name: "demux", Status: stageio.StatusSuccess, Fatal: true},
				{Name: "source_separation", Status: stageio.StatusSkipped, Fatal: false},
			},
			want: stageio.JobSuccess,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := AggregateTerminalStatus(tc.outcomes, tc.abortedOnFatal)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestManifestPath_UsesRegistryDirectory(t *testing.T) {
	path := manifestPath("/jobs/job-1", "demux")
	assert.Equal(t, filepath.Join("/jobs/job-1", "01_demux", "manifest.json"), path)
}

func TestStageConfigSnapshot_IncludesStageSpecificKeysForASR(t *testing.T) {
	cfg := &config.PipelineConfig{
		MediaProcessingMode: config.ModeFull,
		ASRModelID:          "large-v3",
		ComputeDevice:       config.DeviceAuto,
	}
	job := joballoc.Job{TwoStepTranscription: true}
	planned := workflow.PlannedStage{Descriptor: mustLookup(t, registry.ASR)}

	snapshot := stageConfigSnapshot(cfg, planned, job)

	assert.Equal(t, "large-v3", snapshot["asr_model_id"])
	assert.Equal(t, true, snapshot["two_step_transcription"])
}

func mustLookup(t *testing.T, name registry.StageName) registry.Descriptor {
	t.Helper()
	descriptor, ok := registry.Lookup(name)
	require.True(t, ok)
	return descriptor
}
