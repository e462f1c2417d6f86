// Command glossary_load is stage 3's module: it prepares the bias term
// list ASR decoding consults, reading the glossary authoring file (YAML;
// how the glossary gets authored is someone else's concern, only the
// loader lives here) and re-emitting it as the JSON the ASR
// stage's bias strategy expects. A missing or unconfigured glossary
// degrades to an empty term list, matching this stage's optional status.
package main

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"reelflow/internal/registry"
	"reelflow/internal/stagerunner"
)

// glossaryFile is the on-disk authoring format: a flat list of terms, each
// optionally pinned to a language and carrying a bias weight.
type glossaryFile struct {
	Terms []glossaryTerm `yaml:"terms"`
}

type glossaryTerm struct {
	Term     string  `yaml:"term" json:"term"`
	Language string  `yaml:"language,omitempty" json:"language,omitempty"`
	Weight   float64 `yaml:"weight,omitempty" json:"weight,omitempty"`
}

type biasTermList struct {
	Terms []glossaryTerm `json:"terms"`
}

func main() {
	stagerunner.Main(registry.GlossaryLoad, run)
}

func run(_ context.Context, rt *stagerunner.Runtime) error {
	io := rt.IO

	path := extraString(rt.Job.ConfigOverrides, "glossary_path")
	var terms []glossaryTerm

	if strings.TrimSpace(path) == "" {
		io.AddWarning("no glossary_path configured; degrading to empty glossary")
	} else {
		raw, err := os.ReadFile(path)
		if err != nil {
			io.AddWarning("glossary file unreadable; degrading to empty glossary: " + err.Error())
		} else {
			var parsed glossaryFile
			if err := yaml.Unmarshal(raw, &parsed); err != nil {
				io.AddWarning("glossary file malformed; degrading to empty glossary: " + err.Error())
			} else {
				terms = parsed.Terms
				io.TrackInput(path, "glossary", map[string]any{"term_count": len(terms)})
			}
		}
	}

	outputPath, err := io.GetOutputPath("bias_terms.json")
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(biasTermList{Terms: terms}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return err
	}
	io.TrackOutput(outputPath, "bias_terms", map[string]any{"term_count": len(terms)})
	return nil
}

func extraString(record map[string]any, key string) string {
	if record == nil {
		return ""
	}
	if v, ok := record[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
