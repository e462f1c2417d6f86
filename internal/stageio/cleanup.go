package stageio

import (
	"os"
	"path/filepath"
	"time"

	"reelflow/internal/registry"
)

// MarkStaleRunningAsFailed implements the orchestrator's cleanup rule: a
// stage manifest still showing Running after its child has exited (crash,
// cancellation, or a forgotten Finalize call) is rewritten to Failed with
// reason as the error message. If no manifest exists yet, a minimal one is
// synthesized so the job directory always has a manifest for every stage
// the orchestrator attempted.
func MarkStaleRunningAsFailed(jobDir string, stage registry.StageName, reason string) (StageManifest, error) {
	descriptor, ok := registry.Lookup(stage)
	if !ok {
		return StageManifest{}, os.ErrInvalid
	}
	path := filepath.Join(jobDir, descriptor.Directory(), "manifest.json")

	manifest, err := ReadManifest(jobDir, stage)
	if err != nil {
		now := time.Now()
		manifest = StageManifest{
			StageName:   string(descriptor.Name),
			StageNumber: descriptor.Number,
			StartTime:   now,
			EndTime:     now,
			Status:      StatusRunning,
		}
	}
	if manifest.Status != StatusRunning && manifest.Status != "" {
		return manifest, nil
	}

	manifest.Status = StatusFailed
	manifest.EndTime = time.Now()
	manifest.DurationSeconds = manifest.EndTime.Sub(manifest.StartTime).Seconds()
	manifest.Errors = append(manifest.Errors, ErrorRecord{Message: reason, Timestamp: time.Now()})

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return manifest, err
	}
	return manifest, writeManifestAtomic(path, manifest)
}
