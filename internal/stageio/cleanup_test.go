package stageio

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reelflow/internal/registry"
)

func writeStageManifest(t *testing.T, jobDir string, stage registry.StageName, manifest StageManifest) string {
	t.Helper()
	descriptor, ok := registry.Lookup(stage)
	require.True(t, ok)
	dir := filepath.Join(jobDir, descriptor.Directory())
	require.NoError(t, os.MkdirAll(dir, 0o755))
	data, err := json.Marshal(manifest)
	require.NoError(t, err)
	path := filepath.Join(dir, "manifest.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestMarkStaleRunningAsFailedRewritesRunningManifest(t *testing.T) {
	jobDir := t.TempDir()
	writeStageManifest(t, jobDir, registry.ASR, StageManifest{
		StageName:   string(registry.ASR),
		StageNumber: 6,
		StartTime:   time.Now().Add(-time.Minute),
		Status:      StatusRunning,
	})

	cleaned, err := MarkStaleRunningAsFailed(jobDir, registry.ASR, "stage terminated without finalization")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, cleaned.Status)
	require.NotEmpty(t, cleaned.Errors)
	assert.Equal(t, "stage terminated without finalization", cleaned.Errors[0].Message)

	onDisk, err := ReadManifest(jobDir, registry.ASR)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, onDisk.Status)
	assert.False(t, onDisk.EndTime.IsZero())
}

func TestMarkStaleRunningAsFailedSynthesizesWhenManifestMissing(t *testing.T) {
	jobDir := t.TempDir()

	cleaned, err := MarkStaleRunningAsFailed(jobDir, registry.Demux, "cancelled")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, cleaned.Status)
	assert.Equal(t, string(registry.Demux), cleaned.StageName)
	assert.Equal(t, 1, cleaned.StageNumber)

	onDisk, err := ReadManifest(jobDir, registry.Demux)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, onDisk.Status)
}

func TestMarkStaleRunningAsFailedLeavesFinalizedManifestAlone(t *testing.T) {
	jobDir := t.TempDir()
	writeStageManifest(t, jobDir, registry.Demux, StageManifest{
		StageName:   string(registry.Demux),
		StageNumber: 1,
		Status:      StatusSuccess,
	})

	cleaned, err := MarkStaleRunningAsFailed(jobDir, registry.Demux, "should not apply")
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, cleaned.Status)
	assert.Empty(t, cleaned.Errors)
}
