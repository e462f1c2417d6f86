package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reelflow/internal/perr"
)

func TestResolveAppliesJobRecordOverDefaults(t *testing.T) {
	cfg, err := Resolve(ResolveOptions{
		JobRecord: map[string]any{
			"asr_model_id":   "large-v3-turbo",
			"asr_batch_size": 8,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "large-v3-turbo", cfg.ASRModelID)
	assert.Equal(t, 8, cfg.ASRBatchSize)
	assert.True(t, cfg.IsResolved())
}

func TestResolveEnvOverridesBeatJobRecord(t *testing.T) {
	cfg, err := Resolve(ResolveOptions{
		JobRecord:    map[string]any{"asr_model_id": "large-v3-turbo"},
		EnvOverrides: []string{"REELFLOW_ASR_MODEL_ID=tiny"},
	})
	require.NoError(t, err)
	assert.Equal(t, "tiny", cfg.ASRModelID)
}

func TestResolveEmptyClipTimesNormalizeToUnset(t *testing.T) {
	cfg, err := Resolve(ResolveOptions{
		JobRecord: map[string]any{
			"media_processing_mode": "full",
			"media_start_time":      "",
			"media_end_time":        "",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, Unset, cfg.MediaStartTime)
	assert.Equal(t, Unset, cfg.MediaEndTime)
}

func TestResolveClipModeRequiresOrderedWindow(t *testing.T) {
	_, err := Resolve(ResolveOptions{
		JobRecord: map[string]any{
			"media_processing_mode": "clip",
			"media_start_time":      "00:08:30",
			"media_end_time":        "00:06:00",
		},
	})
	require.Error(t, err)
	assert.Equal(t, perr.KindConfigInvalid, perr.KindOf(err))
}

func TestResolveRejectsUnrecognizedDevice(t *testing.T) {
	_, err := Resolve(ResolveOptions{
		JobRecord: map[string]any{"compute_device": "tpu"},
	})
	require.Error(t, err)
	assert.Equal(t, perr.KindConfigInvalid, perr.KindOf(err))
}

func TestResolveUnknownKeyRetainedInExtra(t *testing.T) {
	cfg, err := Resolve(ResolveOptions{
		JobRecord: map[string]any{"totally_unrecognized_option": "xyz"},
	})
	require.NoError(t, err)
	assert.Equal(t, "xyz", cfg.Extra["totally_unrecognized_option"])
}

func TestParseClipTime(t *testing.T) {
	cases := []struct {
		raw     string
		want    float64
		wantErr bool
	}{
		{"00:06:00", 360, false},
		{"00:08:30.500", 510.5, false},
		{"12.25", 12.25, false},
		{"not-a-time", 0, true},
		{"1:2:3:4", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseClipTime(tc.raw)
		if tc.wantErr {
			assert.Error(t, err, tc.raw)
			continue
		}
		require.NoError(t, err, tc.raw)
		assert.InDelta(t, tc.want, got, 0.001, tc.raw)
	}
}
