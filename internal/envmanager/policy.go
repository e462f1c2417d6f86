package envmanager

import (
	"golang.org/x/text/language"

	"reelflow/internal/hwreport"
	"reelflow/internal/registry"
)

// ASR backend identifiers the environment-selection policy resolves to.
const (
	EnvMLX      = "mlx"
	EnvWhisperX = "whisperx"
)

// Translation backend identifiers the environment-selection policy
// resolves to.
const (
	EnvIndicTrans2 = "indictrans2"
	EnvNLLB        = "nllb"
)

// indicLanguages are the languages IndicTrans2 specializes in; any pair
// drawn exclusively from this set, or paired with English, prefers
// IndicTrans2 over the general-purpose NLLB backend.
var indicLanguages = map[string]bool{
	"hi": true, "bn": true, "ta": true, "te": true, "mr": true, "gu": true,
	"pa": true, "ur": true, "ml": true, "kn": true, "or": true, "as": true, "ne": true,
}

// IsIndic reports whether code names a language IndicTrans2 specializes in.
func IsIndic(code string) bool {
	tag, err := language.Parse(code)
	if err != nil {
		return false
	}
	base, _ := tag.Base()
	return indicLanguages[base.String()]
}

// ResolveASREnvironment implements the ASR environment-selection policy:
// Apple-Silicon with an optimized backend available selects MLX; every
// other host selects the portable WhisperX backend.
func ResolveASREnvironment(report hwreport.Report) string {
	if report.SupportsOptimizedASRBackend() {
		return EnvMLX
	}
	return EnvWhisperX
}

// ResolveTranslationEnvironment implements the translation
// environment-selection policy: an Indic↔Indic or Indic↔English pair
// selects IndicTrans2; every other pair selects NLLB.
func ResolveTranslationEnvironment(sourceLanguage, targetLanguage string) string {
	sourceIndic := IsIndic(sourceLanguage)
	targetIndic := IsIndic(targetLanguage)
	if sourceIndic && (targetIndic || targetLanguage == "en") {
		return EnvIndicTrans2
	}
	if targetIndic && sourceLanguage == "en" {
		return EnvIndicTrans2
	}
	return EnvNLLB
}

// ResolveEnvironment resolves the concrete dependency-environment identity
// for name, consulting the hardware report and language pair only for the
// two stages whose environment the registry leaves as a policy
// ("whisperx_or_mlx", "indictrans2_or_nllb"); every other stage's
// environment is exactly what the registry declares.
func ResolveEnvironment(name registry.StageName, report hwreport.Report, sourceLanguage, targetLanguage string) (string, error) {
	env, err := registry.EnvironmentFor(name)
	if err != nil {
		return "", err
	}
	switch env {
	case "whisperx_or_mlx":
		return ResolveASREnvironment(report), nil
	case "indictrans2_or_nllb":
		return ResolveTranslationEnvironment(sourceLanguage, targetLanguage), nil
	default:
		return env, nil
	}
}
