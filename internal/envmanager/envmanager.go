// Package envmanager implements the Environment Manager (C4): it maps a
// stage name to its isolated dependency environment and executes the
// stage's module inside that environment with a prepared environment
// block (paths, cache roots, job config path, log level).
package envmanager

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"reelflow/internal/config"
	"reelflow/internal/hwreport"
	"reelflow/internal/logging"
	"reelflow/internal/perr"
	"reelflow/internal/registry"
)

// Names of the process-environment variables the manager exports into
// every stage child; stage modules read their operating parameters
// through these rather than ad-hoc variables of their own.
const (
	EnvJobDir       = "REELFLOW_JOB_DIR"
	EnvJobConfig    = "REELFLOW_JOB_CONFIG"
	EnvLogLevel     = "REELFLOW_LOG_LEVEL"
	EnvStageName    = "REELFLOW_STAGE"
	EnvPipelineLog  = "REELFLOW_PIPELINE_LOG"
	EnvRequestID    = "REELFLOW_REQUEST_ID"
	cacheRootPrefix = "REELFLOW_CACHE_ROOT_"
)

// Environment describes one isolated dependency tree: a root directory
// whose layout is produced by an out-of-scope bootstrap step, and the
// stage entry point to execute within it.
type Environment struct {
	// Root is the dependency tree's root; its bin/ directory is placed at
	// the front of the child's PATH, so its executables take precedence.
	// The parent's PATH entries follow it and stay visible to the child.
	Root string
	// Entrypoint is the absolute path to the executable that implements
	// the stage module for this environment.
	Entrypoint string
}

// Manager resolves and launches stage modules. Environments is keyed by
// the concrete environment identifier (e.g. "common", "demucs", "mlx",
// "whisperx", "nllb") as produced by ResolveEnvironment, not by stage name,
// since several stages share one environment and ASR/translation resolve
// to one of two environments at run time.
type Manager struct {
	Environments map[string]Environment
	CacheRoots   map[string]string
	Hardware     hwreport.Report
}

// NewManager constructs a Manager. cacheRoots should be absolute,
// project-local paths (see config.PipelineConfig.CacheRoots); the manager
// exports them unconditionally to every stage regardless of whether that
// stage needs them, so a model downloaded in one stage is visible to a
// later stage sharing the framework.
func NewManager(environments map[string]Environment, cacheRoots map[string]string, hardware hwreport.Report) *Manager {
	return &Manager{Environments: environments, CacheRoots: cacheRoots, Hardware: hardware}
}

// RunStage launches stage's module as a child process rooted at jobDir,
// inside the environment the registry (and, for ASR/translation, the
// environment-selection policy) names. It returns the child's exit code
// verbatim; a non-zero exit code is not itself an error return — the
// orchestrator interprets exit codes alongside the stage's manifest.
func (m *Manager) RunStage(ctx context.Context, opts RunOptions) (int, error) {
	envID, err := ResolveEnvironment(opts.Stage, m.Hardware, opts.SourceLanguage, opts.TargetLanguage)
	if err != nil {
		return -1, perr.Wrap(perr.ErrStageExecFailure, string(opts.Stage), "resolve_environment", err.Error(), err)
	}
	env, ok := m.Environments[envID]
	if !ok {
		return -1, perr.Wrap(perr.ErrStageExecFailure, string(opts.Stage), "resolve_environment",
			fmt.Sprintf("no dependency environment registered for %q", envID), nil)
	}

	cmd := exec.CommandContext(ctx, env.Entrypoint)
	cmd.Dir = opts.JobDir
	cmd.Env = m.prepareEnvironment(env, opts)
	if opts.GracePeriod > 0 {
		// On ctx cancellation, ask the child to terminate gracefully first;
		// the runtime escalates to Kill if it hasn't exited by WaitDelay.
		cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
		cmd.WaitDelay = opts.GracePeriod
	}

	logger := logging.FromContext(ctx)
	logger.Info("launching stage child",
		logging.String(logging.FieldStage, string(opts.Stage)),
		logging.String("environment", envID),
		logging.String("entrypoint", env.Entrypoint))

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return -1, perr.Wrap(perr.ErrStageExecFailure, string(opts.Stage), "run_stage", err.Error(), err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return -1, perr.Wrap(perr.ErrStageExecFailure, string(opts.Stage), "run_stage", err.Error(), err)
	}

	go drainChildEvents(logger, opts.Stage, stdout)

	err = cmd.Wait()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if ok := asExitError(err, &exitErr); ok {
		return exitErr.ExitCode(), nil
	}
	if ctx.Err() != nil {
		return -1, perr.Wrap(perr.ErrCancelled, string(opts.Stage), "run_stage", "context cancelled", ctx.Err())
	}
	return -1, perr.Wrap(perr.ErrStageExecFailure, string(opts.Stage), "run_stage", err.Error(), err)
}

func asExitError(err error, target **exec.ExitError) bool {
	if ee, ok := err.(*exec.ExitError); ok {
		*target = ee
		return true
	}
	return false
}

// drainChildEvents reads the child's stdout line by line, surfacing it at
// DEBUG so operators can inspect raw stage output without it polluting the
// structured pipeline log. Stage modules report their real progress via
// their own StageIO-backed stage.log, not stdout.
func drainChildEvents(logger *slog.Logger, stage registry.StageName, stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		logger.Debug("stage stdout", logging.String(logging.FieldStage, string(stage)), logging.String("line", scanner.Text()))
	}
}

// RunOptions parameterizes one RunStage call.
type RunOptions struct {
	Stage           registry.StageName
	JobDir          string
	JobConfigPath   string
	PipelineLogPath string
	LogLevel        string
	RequestID       string
	SourceLanguage  string
	TargetLanguage  string
	// DefaultsPath, if set, is exported to the child so its Configuration
	// Resolver reads the same pipeline-defaults file the orchestrator did.
	DefaultsPath string
	// GracePeriod, if positive, is how long the child is given to exit
	// after ctx is cancelled before the runtime force-kills it.
	GracePeriod time.Duration
}

func (m *Manager) prepareEnvironment(env Environment, opts RunOptions) []string {
	environ := []string{
		fmt.Sprintf("%s=%s", EnvJobDir, opts.JobDir),
		fmt.Sprintf("%s=%s", EnvJobConfig, opts.JobConfigPath),
		fmt.Sprintf("%s=%s", EnvLogLevel, opts.LogLevel),
		fmt.Sprintf("%s=%s", EnvStageName, opts.Stage),
		fmt.Sprintf("%s=%s", EnvPipelineLog, opts.PipelineLogPath),
		fmt.Sprintf("%s=%s", EnvRequestID, opts.RequestID),
	}
	if opts.DefaultsPath != "" {
		environ = append(environ, fmt.Sprintf("%s=%s", config.DefaultsPathEnv, opts.DefaultsPath))
	}
	for framework, root := range m.CacheRoots {
		environ = append(environ, fmt.Sprintf("%s%s=%s", cacheRootPrefix, upper(framework), root))
	}
	if env.Root != "" {
		path := filepath.Join(env.Root, "bin") + string(os.PathListSeparator) + os.Getenv("PATH")
		environ = append(environ, "PATH="+path)
	}
	return environ
}

func upper(s string) string {
	out := []rune(s)
	for i, r := range out {
		if r >= 'a' && r <= 'z' {
			out[i] = r - ('a' - 'A')
		}
	}
	return string(out)
}

// ResolveCacheRoots converts a PipelineConfig's configured cache roots into
// absolute paths rooted at projectRoot, per the "single project-local
// root" cache policy.
func ResolveCacheRoots(cfg *config.PipelineConfig, projectRoot string) map[string]string {
	out := make(map[string]string, len(cfg.CacheRoots))
	for framework, rel := range cfg.CacheRoots {
		if filepath.IsAbs(rel) {
			out[framework] = rel
			continue
		}
		out[framework] = filepath.Join(projectRoot, rel)
	}
	return out
}

// EnsureCacheRoots creates every configured cache root directory.
func EnsureCacheRoots(roots map[string]string) error {
	for _, path := range roots {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return perr.Wrap(perr.ErrAllocationFailure, "", "ensure_cache_roots", err.Error(), err)
		}
	}
	return nil
}
