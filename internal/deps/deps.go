// Package deps reports the availability of the external command-line
// tools reelflow's stage modules shell out to. Availability is judged the
// way the Environment Manager's child process would see it: the tool's
// dependency environment's bin/ directory is searched before the ambient
// PATH, so the report answers "would this stage find its tool at launch",
// not merely "is it installed somewhere on this host".
package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// Tool is one external command a stage module invokes, tied to the
// dependency environment whose bin/ is expected to provide it.
type Tool struct {
	Name        string
	Command     string
	Env         string
	Description string
	Optional    bool
}

// Status is the resolution result for one Tool.
type Status struct {
	Tool
	Available    bool
	ResolvedPath string
	Detail       string
}

// EnvironmentTools enumerates the commands each dependency environment is
// expected to provide, keyed by the environment identifiers the stage
// registry declares. The two policy-resolved environments (ASR,
// translation) are listed per concrete backend, since either may be
// selected at run time. muxerCommand parameterizes the container tool the
// common environment's demux and mux stages invoke.
func EnvironmentTools(muxerCommand string) []Tool {
	return []Tool{
		{Name: "Muxer", Command: muxerCommand, Env: "common", Description: "Container demux/mux tool"},
		{Name: "Demucs", Command: "demucs", Env: "demucs", Description: "Source separation model runner", Optional: true},
		{Name: "Lyrics tagger", Command: "lyrics-tagger", Env: "demucs", Description: "Dialogue-vs-song classifier", Optional: true},
		{Name: "VAD", Command: "pyannote-vad", Env: "pyannote", Description: "Voice activity detection runner", Optional: true},
		{Name: "ASR backend", Command: "asr-backend", Env: "whisperx", Description: "Portable speech recognition wrapper"},
		{Name: "ASR backend", Command: "asr-backend", Env: "mlx", Description: "Apple-Silicon speech recognition wrapper", Optional: true},
		{Name: "Translator", Command: "translate-backend", Env: "indictrans2", Description: "Indic-pair translation wrapper", Optional: true},
		{Name: "Translator", Command: "translate-backend", Env: "nllb", Description: "General translation wrapper", Optional: true},
	}
}

// Resolver resolves Tools against a concrete environment-root layout, the
// same <EnvRoot>/<env>/bin/ convention the Environment Manager prepends
// to each child's PATH.
type Resolver struct {
	EnvRoot string
}

// Resolve locates tool: the owning environment's bin/ first, the ambient
// PATH second. A tool found only on the ambient PATH is still Available —
// the child's PATH includes it after the environment prefix — but
// ResolvedPath makes the difference visible to the operator.
func (r Resolver) Resolve(tool Tool) Status {
	status := Status{Tool: tool}
	command := strings.TrimSpace(tool.Command)
	if command == "" {
		status.Detail = "command not configured"
		return status
	}
	status.Command = command

	if r.EnvRoot != "" && tool.Env != "" && !filepath.IsAbs(command) {
		candidate := filepath.Join(r.EnvRoot, tool.Env, "bin", exeName(command))
		if isExecutable(candidate) {
			status.Available = true
			status.ResolvedPath = candidate
			return status
		}
	}
	if resolved, err := exec.LookPath(command); err == nil {
		status.Available = true
		status.ResolvedPath = resolved
		return status
	}

	if r.EnvRoot != "" && tool.Env != "" {
		status.Detail = fmt.Sprintf("%q not in %s or on PATH", command, filepath.Join(r.EnvRoot, tool.Env, "bin"))
	} else {
		status.Detail = fmt.Sprintf("%q not found on PATH", command)
	}
	return status
}

// ResolveAll resolves every tool, preserving order.
func (r Resolver) ResolveAll(tools []Tool) []Status {
	statuses := make([]Status, 0, len(tools))
	for _, tool := range tools {
		statuses = append(statuses, r.Resolve(tool))
	}
	return statuses
}

// ResolveMuxer resolves the container demux/mux tool from inside a running
// stage, where the Environment Manager has already prepared PATH. The
// configured command wins; when a custom command is configured but absent,
// plain "ffmpeg" is accepted as a fallback, since every environment
// bootstrap ships one.
func ResolveMuxer(command string) Status {
	tool := Tool{Name: "Muxer", Command: command, Env: "common", Description: "Container demux/mux tool"}
	status := Resolver{}.Resolve(tool)
	if status.Available || strings.TrimSpace(command) == "ffmpeg" {
		return status
	}
	fallback := Resolver{}.Resolve(Tool{Name: tool.Name, Command: "ffmpeg", Env: tool.Env, Description: tool.Description})
	if fallback.Available {
		fallback.Detail = fmt.Sprintf("configured command %q not found; using ffmpeg", strings.TrimSpace(command))
		return fallback
	}
	return status
}

func exeName(command string) string {
	if runtime.GOOS == "windows" && !strings.HasSuffix(command, ".exe") {
		return command + ".exe"
	}
	return command
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
