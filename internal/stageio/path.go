package stageio

import (
	"path/filepath"
	"strings"

	"reelflow/internal/perr"
)

// resolveWithin joins base and name, rejecting any result that would
// escape base — the hard contract GetOutputPath (and GetInputPath)
// MUST enforce.
func resolveWithin(base, name string) (string, error) {
	cleanBase := filepath.Clean(base)
	joined := filepath.Join(cleanBase, name)
	if joined != cleanBase && !strings.HasPrefix(joined, cleanBase+string(filepath.Separator)) {
		return "", perr.Wrap(perr.ErrStageMissingInput, "", "resolve_path",
			"path escapes its owning directory: "+name, nil)
	}
	return joined, nil
}
