package stageio

import (
	"encoding/json"
	"os"
	"path/filepath"

	"reelflow/internal/perr"
)

// WriteJobManifestAtomic serializes the aggregate job manifest to path via
// a temp-file-then-rename, the same durability discipline StageIO uses for
// per-stage manifests.
func WriteJobManifestAtomic(path string, manifest JobManifest) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return perr.Wrap(perr.ErrManifestCorruption, "", "write_job_manifest", err.Error(), err)
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-job-manifest-*")
	if err != nil {
		return perr.Wrap(perr.ErrManifestCorruption, "", "write_job_manifest", err.Error(), err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return perr.Wrap(perr.ErrManifestCorruption, "", "write_job_manifest", err.Error(), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return perr.Wrap(perr.ErrManifestCorruption, "", "write_job_manifest", err.Error(), err)
	}
	if err := tmp.Close(); err != nil {
		return perr.Wrap(perr.ErrManifestCorruption, "", "write_job_manifest", err.Error(), err)
	}
	return os.Rename(tmpPath, path)
}
