package stagerunner

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reelflow/internal/config"
	"reelflow/internal/envmanager"
	"reelflow/internal/joballoc"
	"reelflow/internal/registry"
	"reelflow/internal/stageio"
)

// prepareStageEnv stands in for the Environment Manager's environment
// block: a job directory with a valid job.json, exported through the same
// variables a real stage child would see.
func prepareStageEnv(t *testing.T) string {
	t.Helper()
	jobDir := t.TempDir()

	job := joballoc.Job{
		JobID:          "job-20260305-acme-0001",
		Workflow:       registry.Transcribe,
		InputMedia:     "/media/input.mkv",
		SourceLanguage: "hi",
		ProcessingMode: config.ModeFull,
		Tenant:         "acme",
	}
	data, err := json.MarshalIndent(job, "", "  ")
	require.NoError(t, err)
	configPath := filepath.Join(jobDir, "job.json")
	require.NoError(t, os.WriteFile(configPath, data, 0o644))

	t.Setenv(envmanager.EnvJobDir, jobDir)
	t.Setenv(envmanager.EnvJobConfig, configPath)
	t.Setenv(envmanager.EnvLogLevel, "debug")
	return jobDir
}

func TestRunFinalizesSuccessManifest(t *testing.T) {
	jobDir := prepareStageEnv(t)

	exitCode := run(registry.Demux, func(ctx context.Context, rt *Runtime) error {
		outPath, err := rt.IO.GetOutputPath("audio.wav")
		if err != nil {
			return err
		}
		if err := os.WriteFile(outPath, []byte("audio"), 0o644); err != nil {
			return err
		}
		rt.IO.TrackOutput(outPath, "audio", nil)
		return nil
	})
	require.Equal(t, 0, exitCode)

	manifest, err := stageio.ReadManifest(jobDir, registry.Demux)
	require.NoError(t, err)
	assert.Equal(t, stageio.StatusSuccess, manifest.Status)
	require.Len(t, manifest.Outputs, 1)
	assert.Equal(t, int64(len("audio")), manifest.Outputs[0].SizeBytes)
}

func TestRunConvertsHandlerErrorToFailedManifest(t *testing.T) {
	jobDir := prepareStageEnv(t)

	exitCode := run(registry.Demux, func(ctx context.Context, rt *Runtime) error {
		return errors.New("tool exploded")
	})
	require.Equal(t, 1, exitCode)

	manifest, err := stageio.ReadManifest(jobDir, registry.Demux)
	require.NoError(t, err)
	assert.Equal(t, stageio.StatusFailed, manifest.Status)
	require.NotEmpty(t, manifest.Errors)
	assert.Contains(t, manifest.Errors[0].Message, "tool exploded")
}

func TestRunConvertsPanicToFailedManifest(t *testing.T) {
	jobDir := prepareStageEnv(t)

	exitCode := run(registry.Demux, func(ctx context.Context, rt *Runtime) error {
		panic("boom")
	})
	require.Equal(t, 1, exitCode)

	manifest, err := stageio.ReadManifest(jobDir, registry.Demux)
	require.NoError(t, err)
	assert.Equal(t, stageio.StatusFailed, manifest.Status)
	require.NotEmpty(t, manifest.Errors)
	assert.Contains(t, manifest.Errors[0].Message, "boom")
}

func TestRunExitsNonZeroWhenEnvironmentBlockMissing(t *testing.T) {
	t.Setenv(envmanager.EnvJobDir, "")
	t.Setenv(envmanager.EnvJobConfig, "")

	exitCode := run(registry.Demux, func(ctx context.Context, rt *Runtime) error {
		t.Fatal("handler must not run without an environment block")
		return nil
	})
	assert.Equal(t, 1, exitCode)
}
