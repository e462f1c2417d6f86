package stageio

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reelflow/internal/registry"
)

func TestStageIOFinalizeWritesManifestAndCreatesDirectory(t *testing.T) {
	jobDir := t.TempDir()
	sio, err := New(context.Background(), Options{
		StageName:      registry.Demux,
		JobDir:         jobDir,
		EnableManifest: true,
		LogLevel:       "debug",
	})
	require.NoError(t, err)

	outPath, err := sio.GetOutputPath("audio.wav")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(outPath, []byte("fake-audio"), 0o644))
	sio.TrackOutput(outPath, "audio", map[string]any{"sample_rate": 16000})

	manifest, err := sio.Finalize(StatusSuccess, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, manifest.Status)
	assert.Len(t, manifest.Outputs, 1)
	assert.Equal(t, int64(len("fake-audio")), manifest.Outputs[0].SizeBytes)

	manifestPath := filepath.Join(jobDir, "01_demux", "manifest.json")
	assert.FileExists(t, manifestPath)
}

func TestStageIOFinalizeDowngradesToFailedWhenOutputMissing(t *testing.T) {
	jobDir := t.TempDir()
	sio, err := New(context.Background(), Options{StageName: registry.Demux, JobDir: jobDir, EnableManifest: true})
	require.NoError(t, err)

	missingPath, err := sio.GetOutputPath("missing.wav")
	require.NoError(t, err)
	sio.TrackOutput(missingPath, "audio", nil)

	manifest, err := sio.Finalize(StatusSuccess, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, manifest.Status)
	assert.NotEmpty(t, manifest.Errors)
}

func TestStageIOFinalizeRejectsSecondCall(t *testing.T) {
	jobDir := t.TempDir()
	sio, err := New(context.Background(), Options{StageName: registry.Demux, JobDir: jobDir, EnableManifest: true})
	require.NoError(t, err)

	_, err = sio.Finalize(StatusSuccess, nil)
	require.NoError(t, err)
	_, err = sio.Finalize(StatusSuccess, nil)
	assert.Error(t, err)
}

func TestGetOutputPathRejectsEscapingPath(t *testing.T) {
	jobDir := t.TempDir()
	sio, err := New(context.Background(), Options{StageName: registry.Demux, JobDir: jobDir, EnableManifest: true})
	require.NoError(t, err)

	_, err = sio.GetOutputPath("../escape.txt")
	assert.Error(t, err)
}

func TestGetInputPathResolvesFromPrecedingStageByDefault(t *testing.T) {
	jobDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(jobDir, "01_demux"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(jobDir, "01_demux", "audio.wav"), []byte("x"), 0o644))

	sio, err := New(context.Background(), Options{StageName: registry.TMDB, JobDir: jobDir, EnableManifest: true})
	require.NoError(t, err)

	path, err := sio.GetInputPath("audio.wav")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(jobDir, "01_demux", "audio.wav"), path)
}

func TestTrackOutputRepeatedCallLastWriterWins(t *testing.T) {
	jobDir := t.TempDir()
	sio, err := New(context.Background(), Options{StageName: registry.Demux, JobDir: jobDir, EnableManifest: true})
	require.NoError(t, err)

	path, err := sio.GetOutputPath("out.bin")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o644))
	sio.TrackOutput(path, "audio", map[string]any{"pass": 1})
	sio.TrackOutput(path, "audio", map[string]any{"pass": 2})

	manifest, err := sio.Finalize(StatusSuccess, nil)
	require.NoError(t, err)
	require.Len(t, manifest.Outputs, 1)
	assert.Equal(t, 2, manifest.Outputs[0].Extra["pass"])
}
