// Package config implements the Configuration Resolver: it layers pipeline
// defaults, a job record, and process-environment overrides into a single
// immutable PipelineConfig every stage module consults instead of reading
// arbitrary environment variables directly.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Unset is the normalized sentinel for an explicitly empty time/path option,
// distinguishing "process full media" from "process a zero-length clip".
const Unset = "unset"

// PipelineConfig carries resolved, typed values for every option a stage may
// consult. It is built once by Resolve and must not be mutated afterward;
// callers that need a different value must resolve a new config.
type PipelineConfig struct {
	LogLevel string `toml:"log_level"`

	MediaProcessingMode ProcessingMode `toml:"media_processing_mode"`
	MediaStartTime      string         `toml:"media_start_time"`
	MediaEndTime        string         `toml:"media_end_time"`

	ASRModelID          string           `toml:"asr_model_id"`
	ComputeDevice       ComputeDevice    `toml:"compute_device"`
	ComputePrecision    ComputePrecision `toml:"compute_precision"`
	ASRBatchSize        int              `toml:"asr_batch_size"`
	ASRBeamWidth        int              `toml:"asr_beam_width"`
	ASRBestOf           int              `toml:"asr_best_of"`
	ASRTemperatures     []float64        `toml:"asr_temperature_schedule"`
	ConditionOnPrevious bool             `toml:"condition_on_previous"`
	TwoStepTranscription bool            `toml:"two_step_transcription"`

	AntiHallucination AntiHallucinationParams `toml:"anti_hallucination"`
	VAD               VADParams              `toml:"vad"`
	Bias              BiasParams             `toml:"bias"`
	MultiPass         MultiPassParams        `toml:"multi_pass"`

	DiarizationEnabled       bool    `toml:"diarization_enabled"`
	LyricsDetectionThreshold float64 `toml:"lyrics_detection_threshold"`

	// CacheRoots maps an ML-framework identifier (e.g. "torch", "hf",
	// "whisperx") to the project-local cache directory the Environment
	// Manager must export for every stage.
	CacheRoots map[string]string `toml:"cache_roots"`

	// Extra retains every raw key from the defaults file and the job record
	// that matches no PipelineConfig field, for manifest snapshotting. Unknown
	// keys never become struct fields, so a misspelled option can't
	// silently succeed at a call site, but they stay auditable here.
	Extra map[string]any `toml:"-"`

	resolved bool
}

// Default returns the pipeline's built-in defaults, the lowest-precedence
// layer Resolve starts from.
func Default() *PipelineConfig {
	return &PipelineConfig{
		LogLevel:             "info",
		MediaProcessingMode:  ModeFull,
		MediaStartTime:       Unset,
		MediaEndTime:         Unset,
		ASRModelID:           "large-v3",
		ComputeDevice:        DeviceAuto,
		ComputePrecision:     PrecisionFloat16,
		ASRBatchSize:         16,
		ASRBeamWidth:         5,
		ASRBestOf:            5,
		ASRTemperatures:      []float64{0, 0.2, 0.4, 0.6, 0.8, 1.0},
		ConditionOnPrevious:  true,
		TwoStepTranscription: false,
		AntiHallucination: AntiHallucinationParams{
			NoSpeechThreshold:         0.6,
			LogProbThreshold:          -1.0,
			CompressionRatioThreshold: 2.4,
		},
		VAD: VADParams{
			OnsetThreshold:     0.5,
			OffsetThreshold:    0.35,
			MinSpeechDuration:  250,
			MinSilenceDuration: 100,
			MergeGap:           200,
		},
		Bias: BiasParams{
			Strategy: BiasWindowed,
			Window:   30,
			Stride:   10,
			TopK:     20,
		},
		MultiPass: MultiPassParams{
			ConfidenceThreshold: 0.55,
			MaxIterations:       2,
			BeamIncrement:       5,
		},
		DiarizationEnabled:       false,
		LyricsDetectionThreshold: 0.5,
		CacheRoots: map[string]string{
			"torch":     ".cache/torch",
			"hf":        ".cache/huggingface",
			"whisperx":  ".cache/whisperx",
			"demucs":    ".cache/demucs",
			"pyannote":  ".cache/pyannote",
			"indictrans": ".cache/indictrans2",
			"nllb":      ".cache/nllb",
		},
		Extra: map[string]any{},
	}
}

// DefaultsPathEnv names the process-environment variable that, when set,
// overrides the well-known pipeline-defaults file location.
const DefaultsPathEnv = "REELFLOW_DEFAULTS_PATH"

// DefaultDefaultsPath is the well-known location Resolve reads pipeline
// defaults from absent an explicit path.
const DefaultDefaultsPath = "/etc/reelflow/defaults.toml"

// LoadDefaultsFile decodes a pipeline-defaults TOML file on top of the
// built-in Default(), returning the merged config and any unrecognized
// top-level keys retained for auditability. A missing file is not an
// error: the built-in defaults apply unchanged.
func LoadDefaultsFile(path string) (*PipelineConfig, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read defaults file %s: %w", path, err)
	}

	raw := map[string]any{}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: parse defaults file %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: decode defaults file %s: %w", path, err)
	}
	applyUnknown(cfg, raw, knownTopLevelKeys())
	return cfg, nil
}

// applyUnknown copies any key in raw not present in known into cfg.Extra.
func applyUnknown(cfg *PipelineConfig, raw map[string]any, known map[string]bool) {
	if cfg.Extra == nil {
		cfg.Extra = map[string]any{}
	}
	for k, v := range raw {
		if !known[k] {
			cfg.Extra[k] = v
		}
	}
}

func knownTopLevelKeys() map[string]bool {
	return map[string]bool{
		"log_level": true, "media_processing_mode": true, "media_start_time": true,
		"media_end_time": true, "asr_model_id": true, "compute_device": true,
		"compute_precision": true, "asr_batch_size": true, "asr_beam_width": true,
		"asr_best_of": true, "asr_temperature_schedule": true, "condition_on_previous": true,
		"two_step_transcription": true, "anti_hallucination": true, "vad": true,
		"bias": true, "multi_pass": true, "diarization_enabled": true,
		"lyrics_detection_threshold": true, "cache_roots": true,
	}
}

// ResolveOptions bundles the three precedence layers Resolve merges.
type ResolveOptions struct {
	// DefaultsPath points at the pipeline-defaults TOML file. Empty uses
	// DefaultDefaultsPath unless overridden by DefaultsPathEnv.
	DefaultsPath string
	// JobRecord holds the job-embedded configuration overrides (the subset
	// of job.json relevant to PipelineConfig fields), lowest of the two
	// job-scoped layers.
	JobRecord map[string]any
	// EnvOverrides holds process-environment overrides, keyed exactly as
	// Environ() reports them ("REELFLOW_ASR_MODEL_ID=..."). Highest
	// precedence.
	EnvOverrides []string
}

// Resolve merges pipeline defaults, a job record, and process-environment
// overrides into an immutable PipelineConfig, per the precedence pipeline
// defaults ◁ job record ◁ environment overrides. Missing keys fall through
// to the lower layer; explicit empty strings on time/path options are
// normalized to Unset.
func Resolve(opts ResolveOptions) (*PipelineConfig, error) {
	defaultsPath := opts.DefaultsPath
	if defaultsPath == "" {
		if envPath := os.Getenv(DefaultsPathEnv); envPath != "" {
			defaultsPath = envPath
		} else {
			defaultsPath = DefaultDefaultsPath
		}
	}

	cfg, err := LoadDefaultsFile(defaultsPath)
	if err != nil {
		return nil, err
	}

	if err := applyJobRecord(cfg, opts.JobRecord); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg, opts.EnvOverrides)
	normalize(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	cfg.resolved = true
	return cfg, nil
}

// IsResolved reports whether cfg was produced by Resolve (as opposed to a
// bare Default()), primarily so stage code can assert it never received an
// unvalidated config by accident.
func (c *PipelineConfig) IsResolved() bool {
	return c != nil && c.resolved
}

func applyJobRecord(cfg *PipelineConfig, record map[string]any) error {
	if len(record) == 0 {
		return nil
	}
	for key, value := range record {
		if err := assignField(cfg, key, value); err != nil {
			return fmt.Errorf("config: job record key %q: %w", key, err)
		}
	}
	return nil
}

// envPrefix namespaces every recognized environment override.
const envPrefix = "REELFLOW_"

func applyEnvOverrides(cfg *PipelineConfig, environ []string) {
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, envPrefix) {
			continue
		}
		field := strings.ToLower(strings.TrimPrefix(key, envPrefix))
		_ = assignField(cfg, field, value)
	}
}

// assignField maps a flat key to a PipelineConfig field. Dotted keys are
// not split, so they match no field; like any other unknown key they are
// retained in cfg.Extra rather than rejected, per the "config as a
// free-form open dictionary" design note: misspellings are auditable, not
// silently accepted as real fields.
func assignField(cfg *PipelineConfig, key string, value any) error {
	switch key {
	case "log_level":
		cfg.LogLevel = toStr(value)
	case "media_processing_mode":
		cfg.MediaProcessingMode = ProcessingMode(toStr(value))
	case "media_start_time":
		cfg.MediaStartTime = toStr(value)
	case "media_end_time":
		cfg.MediaEndTime = toStr(value)
	case "asr_model_id":
		cfg.ASRModelID = toStr(value)
	case "compute_device":
		cfg.ComputeDevice = ComputeDevice(toStr(value))
	case "compute_precision":
		cfg.ComputePrecision = ComputePrecision(toStr(value))
	case "asr_batch_size":
		n, err := toInt(value)
		if err != nil {
			return err
		}
		cfg.ASRBatchSize = n
	case "asr_beam_width":
		n, err := toInt(value)
		if err != nil {
			return err
		}
		cfg.ASRBeamWidth = n
	case "asr_best_of":
		n, err := toInt(value)
		if err != nil {
			return err
		}
		cfg.ASRBestOf = n
	case "condition_on_previous":
		b, err := toBool(value)
		if err != nil {
			return err
		}
		cfg.ConditionOnPrevious = b
	case "two_step_transcription":
		b, err := toBool(value)
		if err != nil {
			return err
		}
		cfg.TwoStepTranscription = b
	case "diarization_enabled":
		b, err := toBool(value)
		if err != nil {
			return err
		}
		cfg.DiarizationEnabled = b
	case "lyrics_detection_threshold":
		f, err := toFloat(value)
		if err != nil {
			return err
		}
		cfg.LyricsDetectionThreshold = f
	case "bias_strategy":
		cfg.Bias.Strategy = BiasStrategy(toStr(value))
	case "bias_window":
		n, err := toInt(value)
		if err != nil {
			return err
		}
		cfg.Bias.Window = n
	case "bias_stride":
		n, err := toInt(value)
		if err != nil {
			return err
		}
		cfg.Bias.Stride = n
	case "bias_top_k":
		n, err := toInt(value)
		if err != nil {
			return err
		}
		cfg.Bias.TopK = n
	default:
		if cfg.Extra == nil {
			cfg.Extra = map[string]any{}
		}
		cfg.Extra[key] = value
	}
	return nil
}

func toStr(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func toInt(v any) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case float64:
		return int(t), nil
	case string:
		n, err := strconv.Atoi(t)
		if err != nil {
			return 0, fmt.Errorf("not an integer: %q", t)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("not an integer: %v", v)
	}
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, fmt.Errorf("not a float: %q", t)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("not a float: %v", v)
	}
}

func toBool(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		b, err := strconv.ParseBool(t)
		if err != nil {
			return false, fmt.Errorf("not a bool: %q", t)
		}
		return b, nil
	default:
		return false, fmt.Errorf("not a bool: %v", v)
	}
}
