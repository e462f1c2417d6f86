// Command demux is stage 1's module: it extracts the audio track from the
// job's input media, honoring the configured clip window, shelling out to
// the out-of-scope demux/mux tool (ffmpeg) rather than implementing any
// container parsing itself.
package main

import (
	"context"
	"fmt"
	"os/exec"

	"reelflow/internal/config"
	"reelflow/internal/deps"
	"reelflow/internal/registry"
	"reelflow/internal/stagerunner"
)

func main() {
	stagerunner.Main(registry.Demux, run)
}

func run(ctx context.Context, rt *stagerunner.Runtime) error {
	io := rt.IO
	muxerCommand := extraString(rt.Config, "muxer_command", "ffmpeg")
	status := deps.ResolveMuxer(muxerCommand)
	if !status.Available {
		return fmt.Errorf("demux: muxer tool not available (%s)", status.Detail)
	}
	if status.Detail != "" {
		io.AddWarning(status.Detail)
	}

	io.TrackInput(rt.Job.InputMedia, "media", map[string]any{"role": "source"})

	outputPath, err := io.GetOutputPath("audio.wav")
	if err != nil {
		return fmt.Errorf("demux: resolve output path: %w", err)
	}

	args := []string{"-y", "-i", rt.Job.InputMedia}
	if rt.Config.MediaProcessingMode == config.ModeClip {
		start, startErr := config.ParseClipTime(rt.Config.MediaStartTime)
		end, endErr := config.ParseClipTime(rt.Config.MediaEndTime)
		if startErr != nil || endErr != nil {
			return fmt.Errorf("demux: invalid clip window %q/%q", rt.Config.MediaStartTime, rt.Config.MediaEndTime)
		}
		args = append(args, "-ss", fmt.Sprintf("%.3f", start), "-to", fmt.Sprintf("%.3f", end))
		io.AddConfig("media_start_time", rt.Config.MediaStartTime)
		io.AddConfig("media_end_time", rt.Config.MediaEndTime)
	}
	args = append(args, "-vn", "-acodec", "pcm_s16le", "-ar", "16000", "-ac", "1", outputPath)

	cmd := exec.CommandContext(ctx, status.ResolvedPath, args...)
	io.Logger().Info("running demux", "command", status.ResolvedPath, "args", args)
	if out, runErr := cmd.CombinedOutput(); runErr != nil {
		io.Logger().Debug("demux tool output", "output", string(out))
		return fmt.Errorf("demux: %s failed: %w", status.Command, runErr)
	}

	io.TrackOutput(outputPath, "audio", map[string]any{
		"sample_rate": 16000,
		"channels":    1,
		"format":      "wav",
	})
	return nil
}

func extraString(cfg *config.PipelineConfig, key, fallback string) string {
	if cfg == nil || cfg.Extra == nil {
		return fallback
	}
	if v, ok := cfg.Extra[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return fallback
}
