package orchestrator

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reelflow/internal/config"
	"reelflow/internal/envmanager"
	"reelflow/internal/hwreport"
	"reelflow/internal/joballoc"
	"reelflow/internal/registry"
	"reelflow/internal/stageio"
)

func writeJobRecord(t *testing.T, jobDir string, job joballoc.Job) {
	t.Helper()
	data, err := json.MarshalIndent(job, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(jobDir, "job.json"), data, 0o644))
}

func transcribeJob() joballoc.Job {
	return joballoc.Job{
		JobID:          "job-20260305-acme-0001",
		Workflow:       registry.Transcribe,
		InputMedia:     "/media/input.mkv",
		SourceLanguage: "hi",
		ProcessingMode: config.ModeFull,
		Tenant:         "acme",
	}
}

// scriptManager builds an Environment Manager whose every environment runs
// the given shell script in place of a real stage binary.
func scriptManager(t *testing.T, script string) *envmanager.Manager {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "stage.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))

	environments := map[string]envmanager.Environment{}
	for _, id := range []string{"common", "demucs", "pyannote", envmanager.EnvWhisperX, envmanager.EnvMLX, envmanager.EnvIndicTrans2, envmanager.EnvNLLB} {
		environments[id] = envmanager.Environment{Root: dir, Entrypoint: path}
	}
	return envmanager.NewManager(environments, nil, hwreport.Report{})
}

// successScript finalizes a bare success manifest for whichever stage the
// prepared environment block names, the minimum a well-behaved child owes
// the orchestrator.
const successScript = `
case "$REELFLOW_STAGE" in
  demux) num=1 ;;
  tmdb) num=2 ;;
  glossary_load) num=3 ;;
  asr) num=6 ;;
  alignment) num=7 ;;
  *) exit 1 ;;
esac
d="$REELFLOW_JOB_DIR/$(printf '%02d' "$num")_$REELFLOW_STAGE"
mkdir -p "$d"
cat > "$d/manifest.json" <<EOF
{"stage_name":"$REELFLOW_STAGE","stage_number":$num,"status":"success","inputs":[],"outputs":[],"intermediates":[],"errors":[],"warnings":[]}
EOF
exit 0
`

func TestRunAllStagesSucceedYieldsSuccess(t *testing.T) {
	jobDir := t.TempDir()
	writeJobRecord(t, jobDir, transcribeJob())

	o := NewOrchestrator(scriptManager(t, successScript), "")
	manifest, err := o.Run(context.Background(), jobDir)
	require.NoError(t, err)

	assert.Equal(t, stageio.JobSuccess, manifest.TerminalStatus)
	require.Len(t, manifest.Stages, 5)
	for _, s := range manifest.Stages {
		assert.Equal(t, stageio.StatusSuccess, s.Status, s.StageName)
	}
	assert.FileExists(t, filepath.Join(jobDir, "manifest.json"))
}

func TestRunFatalStageFailureAbortsWithFailed(t *testing.T) {
	jobDir := t.TempDir()
	writeJobRecord(t, jobDir, transcribeJob())

	// A child that exits without ever finalizing a manifest: the cleanup
	// rule must record the stage as failed, and demux being fatal must
	// abort the run before any later stage is attempted.
	o := NewOrchestrator(scriptManager(t, "exit 1\n"), "")
	manifest, err := o.Run(context.Background(), jobDir)
	require.NoError(t, err)

	assert.Equal(t, stageio.JobFailed, manifest.TerminalStatus)
	require.Len(t, manifest.Stages, 1)
	assert.Equal(t, string(registry.Demux), manifest.Stages[0].StageName)
	assert.Equal(t, stageio.StatusFailed, manifest.Stages[0].Status)

	cleaned, err := stageio.ReadManifest(jobDir, registry.Demux)
	require.NoError(t, err)
	assert.Equal(t, stageio.StatusFailed, cleaned.Status)
	require.NotEmpty(t, cleaned.Errors)
}

func TestRunOptionalStageFailureContinuesToPartial(t *testing.T) {
	jobDir := t.TempDir()
	writeJobRecord(t, jobDir, transcribeJob())

	script := `
if [ "$REELFLOW_STAGE" = "tmdb" ]; then
  exit 1
fi
` + successScript
	o := NewOrchestrator(scriptManager(t, script), "")
	manifest, err := o.Run(context.Background(), jobDir)
	require.NoError(t, err)

	assert.Equal(t, stageio.JobPartial, manifest.TerminalStatus)
	require.Len(t, manifest.Stages, 5)
	assert.Equal(t, stageio.StatusFailed, manifest.Stages[1].Status)
	assert.Equal(t, stageio.StatusSuccess, manifest.Stages[4].Status)
	require.NotEmpty(t, manifest.Warnings)
}

func TestRunResumesFinalizedStagesWithoutRecomputation(t *testing.T) {
	jobDir := t.TempDir()
	job := transcribeJob()
	writeJobRecord(t, jobDir, job)

	// Pre-finalize every stage with the exact config snapshot the current
	// run would produce, so the resume predicate holds for all of them.
	base := map[string]any{"media_processing_mode": "full"}
	snapshots := map[registry.StageName]map[string]any{
		registry.Demux: {
			"media_processing_mode": "full",
			"media_start_time":      config.Unset,
			"media_end_time":        config.Unset,
		},
		registry.TMDB:         base,
		registry.GlossaryLoad: base,
		registry.ASR: {
			"media_processing_mode":  "full",
			"asr_model_id":           "large-v3",
			"compute_device":         "auto",
			"two_step_transcription": false,
		},
		registry.Alignment: base,
	}
	start := time.Now().Add(-time.Hour)
	for stage, snapshot := range snapshots {
		descriptor, ok := registry.Lookup(stage)
		require.True(t, ok)
		dir := filepath.Join(jobDir, descriptor.Directory())
		require.NoError(t, os.MkdirAll(dir, 0o755))
		data, err := json.Marshal(stageio.StageManifest{
			StageName:   string(stage),
			StageNumber: descriptor.Number,
			StartTime:   start,
			EndTime:     start.Add(time.Minute),
			Status:      stageio.StatusSuccess,
			Config:      snapshot,
		})
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.json"), data, 0o644))
	}

	// Any actual stage invocation would fail loudly, proving the resumed
	// run performs zero new computation.
	o := NewOrchestrator(scriptManager(t, "echo 'must not run' >&2; exit 1\n"), "")
	manifest, err := o.Run(context.Background(), jobDir)
	require.NoError(t, err)

	assert.Equal(t, stageio.JobSuccess, manifest.TerminalStatus)
	require.Len(t, manifest.Stages, 5)
	for _, s := range manifest.Stages {
		assert.True(t, s.Resumed, s.StageName)
		assert.Equal(t, stageio.StatusSuccess, s.Status, s.StageName)
	}
}
