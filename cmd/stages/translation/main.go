// Command translation is stage 9's module. It is a single node in the
// execution plan but iterates internally once per job.TargetLanguages
// entry, producing one translated transcript per target language. It is
// fatal for the translate and subtitle workflows and absent from
// transcribe, per the registry's conditional fatality for this stage.
// The translation model itself is an external collaborator this module
// only invokes; the Environment Manager's hardware/language policy picks
// IndicTrans2 for Indic language pairs and NLLB otherwise, so this module
// only shells out to whichever entrypoint the environment provided.
package main

import (
	"context"
	"fmt"
	"os/exec"

	"reelflow/internal/registry"
	"reelflow/internal/stagerunner"
)

func main() {
	stagerunner.Main(registry.Translation, run)
}

func run(ctx context.Context, rt *stagerunner.Runtime) error {
	io := rt.IO

	transcriptPath, err := io.GetInputPath("lyrics_tags.json", registry.LyricsDetection)
	if err != nil {
		transcriptPath, err = io.GetInputPath("aligned_transcript.json", registry.Alignment)
	}
	if err != nil {
		return fmt.Errorf("translation: locate source transcript: %w", err)
	}
	io.TrackInput(transcriptPath, "transcript", nil)

	if len(rt.Job.TargetLanguages) == 0 {
		return fmt.Errorf("translation: job has no target languages")
	}

	// A fixed command name: the Environment Manager selects the indictrans2
	// or nllb environment per the source/target language pair and puts its
	// bin/ ahead of PATH, so "translate-backend" resolves to whichever
	// backend that environment provides.
	binary := extraString(rt, "translation_command", "translate-backend")
	for _, target := range rt.Job.TargetLanguages {
		outputPath, err := io.GetOutputPath(fmt.Sprintf("transcript_%s.json", target))
		if err != nil {
			return fmt.Errorf("translation: resolve output path for %s: %w", target, err)
		}

		args := []string{
			"--transcript", transcriptPath,
			"--output", outputPath,
			"--source-language", rt.Job.SourceLanguage,
			"--target-language", target,
		}
		cmd := exec.CommandContext(ctx, binary, args...)
		io.Logger().Info("running translation", "command", binary, "source", rt.Job.SourceLanguage, "target", target)
		if out, runErr := cmd.CombinedOutput(); runErr != nil {
			io.Logger().Debug("translation tool output", "output", string(out))
			return fmt.Errorf("translation: %s failed for target %s: %w", binary, target, runErr)
		}

		io.TrackOutput(outputPath, "transcript", map[string]any{
			"source_language": rt.Job.SourceLanguage,
			"target_language": target,
		})
	}

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
