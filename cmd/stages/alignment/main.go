// Command alignment is stage 7's module: forced alignment that refines
// the ASR transcript's word-level timestamps against the source audio.
// The alignment model itself is an external collaborator this module
// only invokes; this module degrades to passing the ASR transcript through
// unmodified when alignment is not configured, since downstream stages
// only require that aligned_transcript.json exist.
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
	stagerunner.Main(registry.Alignment, run)
}

func run(ctx context.Context, rt *stagerunner.Runtime) error {
	io := rt.IO

	audioPath, audioStage, err := resolveAudioInput(io)
	if err != nil {
		return fmt.Errorf("alignment: locate input audio: %w", err)
	}
	io.TrackInput(audioPath, "audio", map[string]any{"source_stage": audioStage})

	transcriptPath, err := io.GetInputPath("transcript.json", registry.ASR)
	if err != nil {
		return fmt.Errorf("alignment: locate transcript: %w", err)
	}
	io.TrackInput(transcriptPath, "transcript", nil)

	outputPath, err := io.GetOutputPath("aligned_transcript.json")
	if err != nil {
		return fmt.Errorf("alignment: resolve output path: %w", err)
	}

	binary := extraString(rt, "alignment_command", "")
	if binary == "" {
		io.AddWarning("no alignment_command configured; passing transcript through unmodified")
		if err := copyTranscript(transcriptPath, outputPath); err != nil {
			return fmt.Errorf("alignment: pass-through copy: %w", err)
		}
	} else {
		args := []string{"--audio", audioPath, "--transcript", transcriptPath, "--output", outputPath, "--language", rt.Job.SourceLanguage}
		cmd := exec.CommandContext(ctx, binary, args...)
		io.Logger().Info("running alignment", "command", binary, "audio", audioPath)
		if out, runErr := cmd.CombinedOutput(); runErr != nil {
			io.Logger().Debug("alignment tool output", "output", string(out))
			return fmt.Errorf("alignment: %s failed: %w", binary, runErr)
		}
	}

	io.TrackOutput(outputPath, "transcript", map[string]any{"aligned": binary != ""})
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
