// Command pyannote_vad is stage 5's module: voice activity detection and
// speaker diarization. The detection model itself is an external
// collaborator this module only invokes; it prefers the source-separated
// vocal stem when that stage ran, falls back to the raw demuxed audio
// otherwise, and emits the speech-region list downstream stages key off.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"reelflow/internal/registry"
	"reelflow/internal/stagerunner"
	"reelflow/internal/stageio"
)

type speechRegion struct {
	StartSeconds float64 `json:"start_seconds"`
	EndSeconds   float64 `json:"end_seconds"`
	Speaker      string  `json:"speaker,omitempty"`
}

func main() {
	stagerunner.Main(registry.PyannoteVAD, run)
}

func run(ctx context.Context, rt *stagerunner.Runtime) error {
	io := rt.IO

	inputPath, inputStage, err := resolveAudioInput(io)
	if err != nil {
		return fmt.Errorf("pyannote_vad: locate input audio: %w", err)
	}
	io.TrackInput(inputPath, "audio", map[string]any{"source_stage": inputStage})

	outputPath, err := io.GetOutputPath("speech_regions.json")
	if err != nil {
		return fmt.Errorf("pyannote_vad: resolve output path: %w", err)
	}

	speakerBias := rt.Job.Features.SpeakerBias
	binary := "pyannote-vad"
	args := []string{"--input", inputPath, "--output", outputPath}
	if speakerBias {
		args = append(args, "--diarize")
	}
	cmd := exec.CommandContext(ctx, binary, args...)
	io.Logger().Info("running voice activity detection", "command", binary, "input", inputPath, "diarize", speakerBias)
	if out, runErr := cmd.CombinedOutput(); runErr != nil {
		io.Logger().Debug("vad tool output", "output", string(out))
		return fmt.Errorf("pyannote_vad: %s failed: %w", binary, runErr)
	}

	if _, statErr := os.Stat(outputPath); statErr != nil {
		// The external tool is expected to write its own output file; if it
		// didn't, fall back to an empty region list rather than leaving no
		// manifest-tracked output at all.
		empty, marshalErr := json.MarshalIndent([]speechRegion{}, "", "  ")
		if marshalErr != nil {
			return marshalErr
		}
		if writeErr := os.WriteFile(outputPath, empty, 0o644); writeErr != nil {
			return writeErr
		}
	}

	io.TrackOutput(outputPath, "speech_regions", map[string]any{"diarized": speakerBias})
	return nil
}

func resolveAudioInput(io *stageio.StageIO) (string, registry.StageName, error) {
	if path, err := io.GetInputPath("vocals.wav", registry.SourceSeparation); err == nil {
		return path, registry.SourceSeparation, nil
	}
	path, err := io.GetInputPath("audio.wav", registry.Demux)
	if err != nil {
		return "", "", err
	}
	return path, registry.Demux, nil
}
