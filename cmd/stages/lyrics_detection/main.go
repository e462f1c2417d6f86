// Command lyrics_detection is stage 8's module: it tags transcript
// segments that are sung lyrics rather than spoken dialogue, so
// translation and subtitle generation can apply lyric-specific styling.
// The classifier itself is an external collaborator this module only
// invokes; this is an optional stage gated by the job's lyrics_detection feature
// flag, degrading to an untagged pass-through when disabled.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	"reelflow/internal/registry"
	"reelflow/internal/stagerunner"
)

func main() {
	stagerunner.Main(registry.LyricsDetection, run)
}

func run(ctx context.Context, rt *stagerunner.Runtime) error {
	io := rt.IO

	transcriptPath, err := io.GetInputPath("aligned_transcript.json", registry.Alignment)
	if err != nil {
		return fmt.Errorf("lyrics_detection: locate aligned transcript: %w", err)
	}
	io.TrackInput(transcriptPath, "transcript", nil)

	outputPath, err := io.GetOutputPath("lyrics_tags.json")
	if err != nil {
		return fmt.Errorf("lyrics_detection: resolve output path: %w", err)
	}

	if !rt.Job.Features.LyricsDetection {
		io.AddWarning("lyrics detection feature disabled for this job; passing transcript through untagged")
		if err := copyTranscript(transcriptPath, outputPath); err != nil {
			return fmt.Errorf("lyrics_detection: pass-through copy: %w", err)
		}
		io.TrackOutput(outputPath, "transcript", map[string]any{"lyrics_tagged": false})
		return nil
	}

	binary := extraString(rt, "lyrics_detection_command", "lyrics-tagger")
	args := []string{"--transcript", transcriptPath, "--output", outputPath}
	cmd := exec.CommandContext(ctx, binary, args...)
	io.Logger().Info("running lyrics detection", "command", binary, "transcript", transcriptPath)
	if out, runErr := cmd.CombinedOutput(); runErr != nil {
		io.Logger().Debug("lyrics detection tool output", "output", string(out))
		return fmt.Errorf("lyrics_detection: %s failed: %w", binary, runErr)
	}

	io.TrackOutput(outputPath, "transcript", map[string]any{"lyrics_tagged": true})
	return nil
}

func copyTranscript(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func extraString(rt *stagerunner.Runtime, key, fallback string) string {
	if rt.Config == nil || rt.Config.Extra == nil {
		return fallback
	}
	if v, ok := rt.Config.Extra[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return fallback
}
