package envmanager

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"reelflow/internal/hwreport"
	"reelflow/internal/registry"
)

// writeScript drops an executable shell script into dir and returns its
// path, standing in for a real stage binary without a network- or
// model-dependent process.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestRunStage_SuccessExitCode(t *testing.T) {
	dir := t.TempDir()
	entrypoint := writeScript(t, dir, "stage-ok.sh", "exit 0\n")

	m := NewManager(map[string]Environment{"common": {Root: dir, Entrypoint: entrypoint}}, nil, hwreport.Report{})
	exitCode, err := m.RunStage(context.Background(), RunOptions{
		Stage:  registry.Demux,
		JobDir: t.TempDir(),
	})
	require.NoError(t, err)
	require.Equal(t, 0, exitCode)
}

func TestRunStage_NonZeroExitSurfacedVerbatim(t *testing.T) {
	dir := t.TempDir()
	entrypoint := writeScript(t, dir, "stage-fail.sh", "exit 7\n")

	m := NewManager(map[string]Environment{"common": {Root: dir, Entrypoint: entrypoint}}, nil, hwreport.Report{})
	exitCode, err := m.RunStage(context.Background(), RunOptions{
		Stage:  registry.Demux,
		JobDir: t.TempDir(),
	})
	require.NoError(t, err)
	require.Equal(t, 7, exitCode)
}

// TestRunStage_CancellationKillsChildAfterGracePeriod exercises the
// cancellation contract: a child that ignores the initial graceful signal
// must still be gone by the time RunStage returns, once its GracePeriod
// elapses. RunStage itself only surfaces the exit code verbatim; it is
// the orchestrator, inspecting its own stage context, that classifies the
// outcome as cancellation (see internal/orchestrator.runOneStage).
func TestRunStage_CancellationKillsChildAfterGracePeriod(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "still-running")
	entrypoint := writeScript(t, dir, "stage-stubborn.sh", `
trap '' INT TERM
touch `+marker+`
sleep 30
`)

	m := NewManager(map[string]Environment{"common": {Root: dir, Entrypoint: entrypoint}}, nil, hwreport.Report{})

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	start := time.Now()
	exitCode, err := m.RunStage(ctx, RunOptions{
		Stage:       registry.Demux,
		JobDir:      t.TempDir(),
		GracePeriod: 200 * time.Millisecond,
	})
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.NotEqual(t, 0, exitCode, "a signal-killed child must not be surfaced as a clean exit")
	require.Less(t, elapsed, 5*time.Second, "RunStage should return once WaitDelay forcibly kills the child, not block on sleep 30")
	require.FileExists(t, marker, "the child must have actually started before being killed")
	require.Error(t, ctx.Err(), "the orchestrator classifies this as cancellation via its own stage context")
}
