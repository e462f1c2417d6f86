package config

// ProcessingMode selects whether a job processes the full input media or a
// clipped window of it.
type ProcessingMode string

const (
	ModeFull ProcessingMode = "full"
	ModeClip ProcessingMode = "clip"
)

// ComputeDevice selects the accelerator a stage's ML framework targets.
type ComputeDevice string

const (
	DeviceAuto ComputeDevice = "auto"
	DeviceCPU  ComputeDevice = "cpu"
	DeviceCUDA ComputeDevice = "cuda"
	DeviceMPS  ComputeDevice = "mps"
)

// ComputePrecision selects the numeric precision a stage's ML framework runs at.
type ComputePrecision string

const (
	PrecisionInt8    ComputePrecision = "int8"
	PrecisionFloat16 ComputePrecision = "float16"
	PrecisionFloat32 ComputePrecision = "float32"
)

// BiasStrategy selects how glossary/bias terms are applied to ASR decoding.
type BiasStrategy string

const (
	BiasGlobal   BiasStrategy = "global"
	BiasWindowed BiasStrategy = "windowed"
	BiasHybrid   BiasStrategy = "hybrid"
)

// VADParams configures the voice-activity-detection stage's segmentation.
type VADParams struct {
	OnsetThreshold     float64 `toml:"onset_threshold"`
	OffsetThreshold    float64 `toml:"offset_threshold"`
	MinSpeechDuration  float64 `toml:"min_speech_duration_ms"`
	MinSilenceDuration float64 `toml:"min_silence_duration_ms"`
	MergeGap           float64 `toml:"merge_gap_ms"`
}

// AntiHallucinationParams configures ASR decoding guards against repetition
// and silence-induced hallucination.
type AntiHallucinationParams struct {
	NoSpeechThreshold         float64 `toml:"no_speech_threshold"`
	LogProbThreshold          float64 `toml:"log_prob_threshold"`
	CompressionRatioThreshold float64 `toml:"compression_ratio_threshold"`
}

// MultiPassParams configures iterative refinement passes over low-confidence
// ASR segments.
type MultiPassParams struct {
	ConfidenceThreshold float64 `toml:"confidence_threshold"`
	MaxIterations       int     `toml:"max_iterations"`
	BeamIncrement       int     `toml:"beam_increment"`
}

// BiasParams configures glossary/bias-term weighting during ASR decoding.
type BiasParams struct {
	Strategy BiasStrategy `toml:"strategy"`
	Window   int          `toml:"window"`
	Stride   int          `toml:"stride"`
	TopK     int          `toml:"top_k"`
}
