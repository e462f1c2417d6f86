package config

import "strings"

// normalize applies the mandatory post-merge normalizations: explicit empty
// strings on time options become Unset (distinguishing "process full
// media" from "process a zero-length clip"), and enum-shaped string fields
// are lower-cased so callers may write "CUDA" or "cuda" interchangeably.
func normalize(cfg *PipelineConfig) {
	if strings.TrimSpace(cfg.MediaStartTime) == "" {
		cfg.MediaStartTime = Unset
	}
	if strings.TrimSpace(cfg.MediaEndTime) == "" {
		cfg.MediaEndTime = Unset
	}
	cfg.MediaProcessingMode = ProcessingMode(strings.ToLower(string(cfg.MediaProcessingMode)))
	cfg.ComputeDevice = ComputeDevice(strings.ToLower(string(cfg.ComputeDevice)))
	cfg.ComputePrecision = ComputePrecision(strings.ToLower(string(cfg.ComputePrecision)))
	cfg.Bias.Strategy = BiasStrategy(strings.ToLower(string(cfg.Bias.Strategy)))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))

	if cfg.MediaProcessingMode == ModeFull {
		cfg.MediaStartTime = Unset
		cfg.MediaEndTime = Unset
	}
}
