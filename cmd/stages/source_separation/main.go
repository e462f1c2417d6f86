// Command source_separation is stage 4's module: it isolates vocal audio
// from the demuxed track so downstream VAD and ASR decode speech cleanly
// off noisy or music-heavy sources. The isolation model itself is an
// external collaborator; this module's job is
// the StageIO contract around it — locate the demuxed audio, invoke the
// environment-selected separation entrypoint, and track the vocal stem it
// produces, or skip cleanly when the feature flag is off.
package main

import (
	"context"
	"fmt"
	"os/exec"

	"reelflow/internal/joballoc"
	"reelflow/internal/registry"
	"reelflow/internal/stagerunner"
)

func main() {
	stagerunner.Main(registry.SourceSeparation, run)
}

func run(ctx context.Context, rt *stagerunner.Runtime) error {
	io := rt.IO

	if !rt.Job.Features.SourceSeparation {
		io.AddWarning("source separation feature disabled for this job; skipping")
		return nil
	}

	inputPath, err := io.GetInputPath("audio.wav", registry.Demux)
	if err != nil {
		return fmt.Errorf("source_separation: locate demuxed audio: %w", err)
	}
	io.TrackInput(inputPath, "audio", nil)

	outputPath, err := io.GetOutputPath("vocals.wav")
	if err != nil {
		return fmt.Errorf("source_separation: resolve output path: %w", err)
	}

	binary := extraString(rt.Job, "source_separation_command", "demucs")
	cmd := exec.CommandContext(ctx, binary, "--two-stems=vocals", "-o", io.StageDir(), inputPath)
	io.Logger().Info("running source separation", "command", binary, "input", inputPath)
	if out, runErr := cmd.CombinedOutput(); runErr != nil {
		io.Logger().Debug("source separation tool output", "output", string(out))
		return fmt.Errorf("source_separation: %s failed: %w", binary, runErr)
	}

	io.TrackOutput(outputPath, "audio", map[string]any{"role": "vocals"})
	return nil
}

func extraString(job joballoc.Job, key, fallback string) string {
	if job.ConfigOverrides == nil {
		return fallback
	}
	if v, ok := job.ConfigOverrides[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return fallback
}
