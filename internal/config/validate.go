package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"reelflow/internal/perr"
)

// clipTimePattern matches the three accepted clip-timestamp shapes:
// HH:MM:SS, HH:MM:SS.mmm, or fractional seconds SS.mmm.
var clipTimePattern = regexp.MustCompile(`^(?:(\d{1,}):([0-5]\d):([0-5]\d)(\.\d+)?|(\d+(?:\.\d+)?))$`)

var validModes = map[ProcessingMode]bool{ModeFull: true, ModeClip: true}
var validDevices = map[ComputeDevice]bool{DeviceAuto: true, DeviceCPU: true, DeviceCUDA: true, DeviceMPS: true}
var validPrecisions = map[ComputePrecision]bool{PrecisionInt8: true, PrecisionFloat16: true, PrecisionFloat32: true}
var validBiasStrategies = map[BiasStrategy]bool{BiasGlobal: true, BiasWindowed: true, BiasHybrid: true}

// Validate enforces the declared types and allowed values for every
// recognized option, returning a ConfigInvalid error naming the offending
// key on the first violation found.
func Validate(cfg *PipelineConfig) error {
	if cfg == nil {
		return perr.Wrap(perr.ErrConfigInvalid, "", "validate", "config is nil", nil)
	}

	if !validModes[cfg.MediaProcessingMode] {
		return invalid("media_processing_mode", fmt.Sprintf("unrecognized value %q", cfg.MediaProcessingMode))
	}
	if !validDevices[cfg.ComputeDevice] {
		return invalid("compute_device", fmt.Sprintf("unrecognized value %q", cfg.ComputeDevice))
	}
	if !validPrecisions[cfg.ComputePrecision] {
		return invalid("compute_precision", fmt.Sprintf("unrecognized value %q", cfg.ComputePrecision))
	}
	if !validBiasStrategies[cfg.Bias.Strategy] {
		return invalid("bias.strategy", fmt.Sprintf("unrecognized value %q", cfg.Bias.Strategy))
	}

	if cfg.MediaProcessingMode == ModeClip {
		if cfg.MediaStartTime == Unset || cfg.MediaEndTime == Unset {
			return invalid("media_start_time/media_end_time", "clip mode requires both start and end times")
		}
		start, err := ParseClipTime(cfg.MediaStartTime)
		if err != nil {
			return invalid("media_start_time", err.Error())
		}
		end, err := ParseClipTime(cfg.MediaEndTime)
		if err != nil {
			return invalid("media_end_time", err.Error())
		}
		if !(start < end) {
			return invalid("media_start_time/media_end_time", "start must be strictly before end")
		}
	}

	if cfg.ASRBatchSize <= 0 {
		return invalid("asr_batch_size", "must be positive")
	}
	if cfg.ASRBeamWidth <= 0 {
		return invalid("asr_beam_width", "must be positive")
	}
	if cfg.ASRBestOf <= 0 {
		return invalid("asr_best_of", "must be positive")
	}
	if cfg.Bias.Window <= 0 || cfg.Bias.Stride <= 0 || cfg.Bias.TopK <= 0 {
		return invalid("bias", "window, stride, and top_k must all be positive")
	}
	if cfg.MultiPass.MaxIterations < 0 {
		return invalid("multi_pass.max_iterations", "must not be negative")
	}

	return nil
}

func invalid(key, detail string) error {
	return perr.Wrap(perr.ErrConfigInvalid, "", "validate", fmt.Sprintf("%s: %s", key, detail), nil)
}

// ParseClipTime parses a clip timestamp in one of the accepted shapes
// (HH:MM:SS, HH:MM:SS.mmm, or fractional seconds SS.mmm) into a seconds
// offset. Any other shape is rejected.
func ParseClipTime(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	m := clipTimePattern.FindStringSubmatch(raw)
	if m == nil {
		return 0, fmt.Errorf("invalid clip time format %q, want HH:MM:SS[.mmm] or SS.mmm", raw)
	}
	if m[5] != "" {
		return strconv.ParseFloat(m[5], 64)
	}
	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	seconds, _ := strconv.Atoi(m[3])
	frac := 0.0
	if m[4] != "" {
		frac, _ = strconv.ParseFloat(m[4], 64)
	}
	return float64(hours*3600+minutes*60+seconds) + frac, nil
}
