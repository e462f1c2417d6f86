// Package stagerunner is the small amount of bootstrap every cmd/stages/*
// binary shares: reading the environment block the Environment Manager
// (C4) prepared, constructing a StageIO (C5) and a resolved
// PipelineConfig, and converting a panic or returned error into the
// "catch broadly, AddError, Finalize(failed), exit non-zero" contract
// every stage author is expected to follow, so a manifest exists no
// matter how the stage body dies.
package stagerunner

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"reelflow/internal/config"
	"reelflow/internal/envmanager"
	"reelflow/internal/joballoc"
	"reelflow/internal/registry"
	"reelflow/internal/stageio"
)

// Runtime bundles everything a stage module's Handler needs: the StageIO
// facade, the resolved pipeline configuration, the job record (the source
// of source/target languages and feature flags, since the Environment
// Manager does not thread those through environment variables), and the
// job directory path.
type Runtime struct {
	IO     *stageio.StageIO
	Config *config.PipelineConfig
	Job    joballoc.Job
	JobDir string
}

// Handler is the per-stage body. A returned error is recorded via
// StageIO.AddError and finalized as StatusFailed; a nil error finalizes
// StatusSuccess (subject to StageIO.Finalize's own output-existence
// downgrade).
type Handler func(ctx context.Context, rt *Runtime) error

// Main is the common entry point every cmd/stages/<name>/main.go calls.
// It never returns: it calls os.Exit with 0 on success or 1 on any
// failure, the exit-code contract the Environment Manager reads back.
func Main(stage registry.StageName, handler Handler) {
	os.Exit(run(stage, handler))
}

func run(stage registry.StageName, handler Handler) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	jobDir := os.Getenv(envmanager.EnvJobDir)
	jobConfigPath := os.Getenv(envmanager.EnvJobConfig)
	logLevel := os.Getenv(envmanager.EnvLogLevel)
	pipelineLog := os.Getenv(envmanager.EnvPipelineLog)
	requestID := os.Getenv(envmanager.EnvRequestID)

	if jobDir == "" || jobConfigPath == "" {
		fmt.Fprintf(os.Stderr, "%s: missing %s or %s in environment\n", stage, envmanager.EnvJobDir, envmanager.EnvJobConfig)
		return 1
	}

	io, err := stageio.New(ctx, stageio.Options{
		StageName:       stage,
		JobDir:          jobDir,
		EnableManifest:  true,
		LogLevel:        logLevel,
		PipelineLogPath: pipelineLog,
		RequestID:       requestID,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: construct stageio: %v\n", stage, err)
		return 1
	}

	job, err := joballoc.ReadJobRecordFromPath(jobConfigPath)
	if err != nil {
		io.AddError("read job record", err)
		_, _ = io.Finalize(stageio.StatusFailed, nil)
		return 1
	}

	cfg, err := config.Resolve(config.ResolveOptions{
		JobRecord:    job.ConfigOverrides,
		EnvOverrides: os.Environ(),
	})
	if err != nil {
		io.AddError("resolve pipeline config", err)
		_, _ = io.Finalize(stageio.StatusFailed, nil)
		return 1
	}
	io.AddConfig("media_processing_mode", string(cfg.MediaProcessingMode))
	switch stage {
	case registry.Demux:
		io.AddConfig("media_start_time", cfg.MediaStartTime)
		io.AddConfig("media_end_time", cfg.MediaEndTime)
	case registry.ASR:
		io.AddConfig("asr_model_id", cfg.ASRModelID)
		io.AddConfig("compute_device", string(cfg.ComputeDevice))
		io.AddConfig("two_step_transcription", job.TwoStepTranscription)
	case registry.Translation:
		io.AddConfig("target_languages", job.TargetLanguages)
	}

	rt := &Runtime{IO: io, Config: cfg, Job: job, JobDir: jobDir}

	exitCode := 0
	func() {
		defer func() {
			if r := recover(); r != nil {
				io.AddError(fmt.Sprintf("panic: %v", r), nil)
				exitCode = 1
			}
		}()
		if handlerErr := handler(ctx, rt); handlerErr != nil {
			io.AddError(handlerErr.Error(), handlerErr)
			exitCode = 1
		}
	}()

	status := stageio.StatusSuccess
	if exitCode != 0 {
		status = stageio.StatusFailed
	}
	if ctx.Err() != nil {
		io.AddError("cancelled", ctx.Err())
		status = stageio.StatusFailed
		exitCode = 1
	}

	manifest, finalizeErr := io.Finalize(status, nil)
	if finalizeErr != nil {
		fmt.Fprintf(os.Stderr, "%s: finalize manifest: %v\n", stage, finalizeErr)
		return 1
	}
	if manifest.Status != stageio.StatusSuccess {
		return 1
	}
	return exitCode
}
