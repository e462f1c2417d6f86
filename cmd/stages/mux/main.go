// Command mux is stage 11's module, the pipeline's final step: it
// attaches every generated subtitle track onto the original input media
// container, producing the job's deliverable output. It is fatal only
// for the subtitle workflow. The container tool is the same external
// demux/mux collaborator stage 1 uses.
package main

import (
	"context"
	"fmt"
	"os/exec"

	"reelflow/internal/deps"
	"reelflow/internal/registry"
	"reelflow/internal/stagerunner"
)

func main() {
	stagerunner.Main(registry.Mux, run)
}

func run(ctx context.Context, rt *stagerunner.Runtime) error {
	io := rt.IO

	muxerCommand := extraString(rt, "muxer_command", "ffmpeg")
	status := deps.ResolveMuxer(muxerCommand)
	if !status.Available {
		return fmt.Errorf("mux: muxer tool not available (%s)", status.Detail)
	}
	if status.Detail != "" {
		io.AddWarning(status.Detail)
	}

	io.TrackInput(rt.Job.InputMedia, "media", map[string]any{"role": "source"})

	if len(rt.Job.TargetLanguages) == 0 {
		return fmt.Errorf("mux: job has no target languages")
	}

	args := []string{"-y", "-i", rt.Job.InputMedia}
	subtitlePaths := make([]string, 0, len(rt.Job.TargetLanguages))
	for _, target := range rt.Job.TargetLanguages {
		subtitlePath, err := io.GetInputPath(fmt.Sprintf("subtitle_%s.srt", target), registry.SubtitleGeneration)
		if err != nil {
			return fmt.Errorf("mux: locate subtitle for %s: %w", target, err)
		}
		io.TrackInput(subtitlePath, "subtitle", map[string]any{"target_language": target})
		args = append(args, "-i", subtitlePath)
		subtitlePaths = append(subtitlePaths, subtitlePath)
	}

	args = append(args, "-map", "0:v", "-map", "0:a")
	for i, target := range rt.Job.TargetLanguages {
		args = append(args, "-map", fmt.Sprintf("%d:s", i+1))
		args = append(args, fmt.Sprintf("-metadata:s:s:%d", i), fmt.Sprintf("language=%s", target))
	}
	args = append(args, "-c:v", "copy", "-c:a", "copy", "-c:s", "mov_text")

	outputPath, err := io.GetOutputPath("output.mp4")
	if err != nil {
		return fmt.Errorf("mux: resolve output path: %w", err)
	}
	args = append(args, outputPath)

	cmd := exec.CommandContext(ctx, status.ResolvedPath, args...)
	io.Logger().Info("running mux", "command", status.ResolvedPath, "subtitles", subtitlePaths)
	if out, runErr := cmd.CombinedOutput(); runErr != nil {
		io.Logger().Debug("mux tool output", "output", string(out))
		return fmt.Errorf("mux: %s failed: %w", status.Command, runErr)
	}

	io.TrackOutput(outputPath, "media", map[string]any{
		"target_languages": rt.Job.TargetLanguages,
	})
	return nil
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
