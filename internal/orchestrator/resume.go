package orchestrator

import (
	"bytes"
	"encoding/json"
	"os"

	"reelflow/internal/stageio"
)

// ResumePredicate reports whether stage's previously finalized manifest is
// still authoritative and the stage may be skipped on a re-run: its status
// was Success, every tracked output still exists on disk, and the
// configuration snapshot it recorded matches the one the current run would
// produce for this stage.
func ResumePredicate(manifest stageio.StageManifest, currentSnapshot map[string]any) bool {
	if manifest.Status != stageio.StatusSuccess {
		return false
	}
	for _, out := range manifest.Outputs {
		if _, err := os.Stat(out.Path); err != nil {
			return false
		}
	}
	return configSnapshotsEqual(manifest.Config, currentSnapshot)
}

// configSnapshotsEqual compares two config snapshots value-for-value via a
// JSON round trip, which sidesteps the type mismatch between a
// json.Unmarshal-produced map (float64s, generic interfaces) and a
// caller-built map of native Go types.
func configSnapshotsEqual(a, b map[string]any) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	encodedA, errA := json.Marshal(normalizeSnapshot(a))
	encodedB, errB := json.Marshal(normalizeSnapshot(b))
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(encodedA, encodedB)
}

// normalizeSnapshot round-trips through JSON once so both sides of the
// comparison use identical Go types for equivalent values.
func normalizeSnapshot(m map[string]any) map[string]any {
	data, err := json.Marshal(m)
	if err != nil {
		return m
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return m
	}
	return out
}
