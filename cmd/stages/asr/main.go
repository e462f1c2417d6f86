// Command asr is stage 6's module, automatic speech recognition: the one
// fatal stage besides demux, since every downstream workflow needs a
// transcript. The recognition model itself is an external collaborator,
// selected by the Environment Manager's
// hardware-capability policy (Apple Silicon gets the MLX backend,
// otherwise WhisperX); this module only prepares the call, applies the
// optional bias term list, and records the transcript it produces.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"reelflow/internal/registry"
	"reelflow/internal/stagerunner"
)

type transcriptSegment struct {
	StartSeconds float64 `json:"start_seconds"`
	EndSeconds   float64 `json:"end_seconds"`
	Text         string  `json:"text"`
	Speaker      string  `json:"speaker,omitempty"`
}

type transcript struct {
	Language string              `json:"language"`
	Segments []transcriptSegment `json:"segments"`
}

func main() {
	stagerunner.Main(registry.ASR, run)
}

func run(ctx context.Context, rt *stagerunner.Runtime) error {
	io := rt.IO

	audioPath, audioStage, err := resolveAudioInput(io)
	if err != nil {
		return fmt.Errorf("asr: locate input audio: %w", err)
	}
	io.TrackInput(audioPath, "audio", map[string]any{"source_stage": audioStage})

	regionsPath, err := io.GetInputPath("speech_regions.json", registry.PyannoteVAD)
	if err == nil {
		io.TrackInput(regionsPath, "speech_regions", nil)
	} else {
		io.AddWarning("no speech region input available; decoding full track")
	}

	biasPath, err := io.GetInputPath("bias_terms.json", registry.GlossaryLoad)
	if err == nil {
		io.TrackInput(biasPath, "bias_terms", nil)
	}

	outputPath, err := io.GetOutputPath("transcript.json")
	if err != nil {
		return fmt.Errorf("asr: resolve output path: %w", err)
	}

	// A fixed command name rather than a per-backend one: the Environment
	// Manager selects the whisperx or mlx environment and puts its bin/
	// ahead of PATH, so "asr-backend" resolves to whichever backend's
	// wrapper that environment provides.
	binary := extraString(rt, "asr_command", "asr-backend")
	args := []string{"--audio", audioPath, "--output", outputPath, "--language", rt.Job.SourceLanguage}
	if regionsPath != "" {
		args = append(args, "--vad-regions", regionsPath)
	}
	if biasPath != "" {
		args = append(args, "--bias-terms", biasPath)
	}
	if rt.Job.TwoStepTranscription {
		args = append(args, "--two-pass")
	}

	cmd := exec.CommandContext(ctx, binary, args...)
	io.Logger().Info("running asr", "command", binary, "audio", audioPath, "language", rt.Job.SourceLanguage)
	if out, runErr := cmd.CombinedOutput(); runErr != nil {
		io.Logger().Debug("asr tool output", "output", string(out))
		return fmt.Errorf("asr: %s failed: %w", binary, runErr)
	}

	if _, statErr := os.Stat(outputPath); statErr != nil {
		empty, marshalErr := json.MarshalIndent(transcript{Language: rt.Job.SourceLanguage}, "", "  ")
		if marshalErr != nil {
			return marshalErr
		}
		if writeErr := os.WriteFile(outputPath, empty, 0o644); writeErr != nil {
			return writeErr
		}
	}

	io.TrackOutput(outputPath, "transcript", map[string]any{"language": rt.Job.SourceLanguage})
	return nil
}

func resolveAudioInput(io interface {
	GetInputPath(string, ...registry.StageName) (string, error)
}) (string, registry.StageName, error) {
	if path, err := io.GetInputPath("vocals.wav", registry.SourceSeparation); err == nil {
		return path, registry.SourceSeparation, nil
	}
	path, err := io.GetInputPath("audio.wav", registry.Demux)
	if err != nil {
		return "", "", err
	}
	return path, registry.Demux, nil
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
