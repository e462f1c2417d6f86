package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"reelflow/internal/envmanager"
	"reelflow/internal/hwreport"
	"reelflow/internal/joballoc"
)

// commandContext bundles the flags every subcommand needs and lazily
// constructs the shared, expensive-to-build collaborators (the job
// allocator opens a sqlite ledger; the hardware report probes the host)
// exactly once per invocation.
type commandContext struct {
	outputRootFlag  *string
	defaultsFlag    *string
	binDirFlag      *string
	envRootFlag     *string
	logLevelFlag    *string
	jsonOutput      *bool

	allocatorOnce sync.Once
	allocator     *joballoc.Allocator
	allocatorErr  error

	hardwareOnce sync.Once
	hardware     hwreport.Report
}

func newCommandContext(outputRootFlag, defaultsFlag, binDirFlag, envRootFlag, logLevelFlag *string, jsonOutput *bool) *commandContext {
	return &commandContext{
		outputRootFlag: outputRootFlag,
		defaultsFlag:   defaultsFlag,
		binDirFlag:     binDirFlag,
		envRootFlag:    envRootFlag,
		logLevelFlag:   logLevelFlag,
		jsonOutput:     jsonOutput,
	}
}

func (c *commandContext) jsonMode() bool {
	return c != nil && c.jsonOutput != nil && *c.jsonOutput
}

func (c *commandContext) outputRoot() string {
	if c.outputRootFlag != nil && strings.TrimSpace(*c.outputRootFlag) != "" {
		return *c.outputRootFlag
	}
	return defaultOutputRoot()
}

func defaultOutputRoot() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "reelflow", "jobs")
	}
	return filepath.Join(os.TempDir(), "reelflow-jobs")
}

func (c *commandContext) defaultsPath() string {
	if c.defaultsFlag != nil {
		return strings.TrimSpace(*c.defaultsFlag)
	}
	return ""
}

func (c *commandContext) logLevel() string {
	if c.logLevelFlag != nil {
		return strings.TrimSpace(*c.logLevelFlag)
	}
	return ""
}

// projectRoot is the parent of the output root, the anchor for the shared,
// job-independent ML cache tree (<project>/.cache/<framework>/). Keeping
// caches outside any job directory is what lets a model downloaded by one
// job be visible to every later job sharing the framework.
func (c *commandContext) projectRoot() string {
	return filepath.Dir(c.outputRoot())
}

func (c *commandContext) ensureAllocator() (*joballoc.Allocator, error) {
	c.allocatorOnce.Do(func() {
		root := c.outputRoot()
		if err := os.MkdirAll(root, 0o755); err != nil {
			c.allocatorErr = fmt.Errorf("ensure output root %s: %w", root, err)
			return
		}
		c.allocator, c.allocatorErr = joballoc.NewAllocator(root)
	})
	return c.allocator, c.allocatorErr
}

func (c *commandContext) ensureHardware(ctx context.Context) hwreport.Report {
	c.hardwareOnce.Do(func() {
		c.hardware = hwreport.Detect(ctx)
	})
	return c.hardware
}

// binDir is the directory holding every cmd/stages/* binary plus the
// reelflowstage dispatcher, conventionally installed alongside reelflowctl
// itself unless overridden.
func (c *commandContext) binDir() (string, error) {
	if c.binDirFlag != nil && strings.TrimSpace(*c.binDirFlag) != "" {
		return *c.binDirFlag, nil
	}
	self, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve reelflowctl's own path: %w", err)
	}
	return filepath.Dir(self), nil
}

// envRoot is the parent directory under which each isolated dependency
// environment's own subdirectory (bin/, venv/, model caches, ...) lives.
func (c *commandContext) envRoot() string {
	if c.envRootFlag != nil && strings.TrimSpace(*c.envRootFlag) != "" {
		return *c.envRootFlag
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "reelflow", "envs")
	}
	return filepath.Join(os.TempDir(), "reelflow-envs")
}

// environmentIDs lists every dependency-environment identity the registry
// and the ASR/translation environment-selection policy can resolve to.
var environmentIDs = []string{
	"common", "demucs", "pyannote",
	envmanager.EnvWhisperX, envmanager.EnvMLX,
	envmanager.EnvIndicTrans2, envmanager.EnvNLLB,
}

// buildEnvironments constructs the Environment Manager's environment
// table: every environment shares the same reelflowstage dispatcher
// entrypoint (it forwards to the real cmd/stages/<name> binary by
// inspecting REELFLOW_STAGE at run time), but each gets its own Root so
// its dependency tree's bin/ is what actually varies per environment.
func (c *commandContext) buildEnvironments() (map[string]envmanager.Environment, error) {
	binDir, err := c.binDir()
	if err != nil {
		return nil, err
	}
	dispatcher := filepath.Join(binDir, "reelflowstage")
	envRoot := c.envRoot()

	environments := make(map[string]envmanager.Environment, len(environmentIDs))
	for _, id := range environmentIDs {
		environments[id] = envmanager.Environment{
			Root:       filepath.Join(envRoot, id),
			Entrypoint: dispatcher,
		}
	}
	return environments, nil
}
