// Command subtitle_generation is stage 10's module: it renders a
// translated transcript into timed subtitle cues, one file per target
// language, ready for the mux stage to attach as subtitle tracks. This
// stage is fatal only for the subtitle workflow (absent entirely from
// transcribe and translate). The cue-rendering algorithm follows SRT
// timing conventions directly rather than shelling out, since it is
// pure formatting with no external-model dependency.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"reelflow/internal/registry"
	"reelflow/internal/stagerunner"
)

type cue struct {
	StartSeconds float64 `json:"start_seconds"`
	EndSeconds   float64 `json:"end_seconds"`
	Text         string  `json:"text"`
}

type translatedTranscript struct {
	Segments []cue `json:"segments"`
}

func main() {
	stagerunner.Main(registry.SubtitleGeneration, run)
}

func run(_ context.Context, rt *stagerunner.Runtime) error {
	io := rt.IO

	if len(rt.Job.TargetLanguages) == 0 {
		return fmt.Errorf("subtitle_generation: job has no target languages")
	}

	for _, target := range rt.Job.TargetLanguages {
		transcriptPath, err := io.GetInputPath(fmt.Sprintf("transcript_%s.json", target), registry.Translation)
		if err != nil {
			return fmt.Errorf("subtitle_generation: locate translated transcript for %s: %w", target, err)
		}
		io.TrackInput(transcriptPath, "transcript", map[string]any{"target_language": target})

		segments, err := readTranscript(transcriptPath)
		if err != nil {
			return fmt.Errorf("subtitle_generation: read transcript for %s: %w", target, err)
		}

		outputPath, err := io.GetOutputPath(fmt.Sprintf("subtitle_%s.srt", target))
		if err != nil {
			return fmt.Errorf("subtitle_generation: resolve output path for %s: %w", target, err)
		}
		if err := writeSRT(outputPath, segments); err != nil {
			return fmt.Errorf("subtitle_generation: write srt for %s: %w", target, err)
		}

		io.TrackOutput(outputPath, "subtitle", map[string]any{
			"target_language": target,
			"cue_count":       len(segments),
		})
	}

	return nil
}

func readTranscript(path string) ([]cue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var t translatedTranscript
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	return t.Segments, nil
}

func writeSRT(path string, segments []cue) error {
	var b strings.Builder
	for i, seg := range segments {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", i+1, srtTimestamp(seg.StartSeconds), srtTimestamp(seg.EndSeconds), seg.Text)
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

func srtTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	totalMillis := int64(seconds*1000 + 0.5)
	hours := totalMillis / 3_600_000
	totalMillis -= hours * 3_600_000
	minutes := totalMillis / 60_000
	totalMillis -= minutes * 60_000
	secs := totalMillis / 1000
	millis := totalMillis - secs*1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, millis)
}
