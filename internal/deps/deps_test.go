package deps

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reelflow/internal/registry"
)

func writeExecutable(t *testing.T, dir, name string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755))
	return path
}

func TestResolvePrefersEnvironmentBinOverPath(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on unix executable permissions")
	}
	envRoot := t.TempDir()
	expected := writeExecutable(t, filepath.Join(envRoot, "demucs", "bin"), "demucs")

	status := Resolver{EnvRoot: envRoot}.Resolve(Tool{Name: "Demucs", Command: "demucs", Env: "demucs"})
	assert.True(t, status.Available)
	assert.Equal(t, expected, status.ResolvedPath)
}

func TestResolveFallsBackToAmbientPath(t *testing.T) {
	// "sh" is not in the empty environment root, but every host running
	// these tests has it on PATH.
	status := Resolver{EnvRoot: t.TempDir()}.Resolve(Tool{Name: "Shell", Command: "sh", Env: "common"})
	assert.True(t, status.Available)
	assert.NotEmpty(t, status.ResolvedPath)
}

func TestResolveUnavailableToolNamesSearchedLocations(t *testing.T) {
	envRoot := t.TempDir()
	status := Resolver{EnvRoot: envRoot}.Resolve(Tool{Name: "Ghost", Command: "definitely-not-a-real-tool", Env: "pyannote"})
	assert.False(t, status.Available)
	assert.Contains(t, status.Detail, filepath.Join(envRoot, "pyannote", "bin"))
}

func TestResolveUnconfiguredCommand(t *testing.T) {
	status := Resolver{}.Resolve(Tool{Name: "Muxer", Command: "   "})
	assert.False(t, status.Available)
	assert.Equal(t, "command not configured", status.Detail)
}

func TestResolveMuxerKeepsConfiguredCommandWhenPresent(t *testing.T) {
	status := ResolveMuxer("sh")
	assert.True(t, status.Available)
	assert.Empty(t, status.Detail)
}

func TestEnvironmentToolsCoverEveryRegistryEnvironment(t *testing.T) {
	covered := map[string]bool{}
	for _, tool := range EnvironmentTools("ffmpeg") {
		covered[tool.Env] = true
	}
	for _, d := range registry.StagesInOrder() {
		switch d.Env {
		case "whisperx_or_mlx":
			assert.True(t, covered["whisperx"], d.Name)
			assert.True(t, covered["mlx"], d.Name)
		case "indictrans2_or_nllb":
			assert.True(t, covered["indictrans2"], d.Name)
			assert.True(t, covered["nllb"], d.Name)
		default:
			assert.True(t, covered[d.Env], d.Name)
		}
	}
}
