// Package orchestrator implements the Pipeline Orchestrator (C6): it
// selects the stage sequence for a workflow via the Workflow Planner,
// runs stages strictly sequentially, enforces fatal-vs-optional
// semantics, writes the main pipeline log, and produces a terminal job
// status.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"reelflow/internal/config"
	"reelflow/internal/envmanager"
	"reelflow/internal/joballoc"
	"reelflow/internal/logging"
	"reelflow/internal/pipectx"
	"reelflow/internal/registry"
	"reelflow/internal/stageio"
	"reelflow/internal/workflow"
)

// Orchestrator runs one job to completion, single-threaded and sequential.
type Orchestrator struct {
	Manager *envmanager.Manager
	// DefaultsPath points at the pipeline-defaults TOML file; it is used for
	// the orchestrator's own config resolution and exported to every stage
	// child so both resolve against the same defaults layer.
	DefaultsPath   string
	StageTimeout   map[registry.StageName]time.Duration
	DefaultTimeout time.Duration
	GracePeriod    time.Duration
}

// defaultStageTimeouts scales each ceiling to what the stage actually does:
// container work takes minutes, model inference can take hours.
func defaultStageTimeouts() map[registry.StageName]time.Duration {
	return map[registry.StageName]time.Duration{
		registry.Demux:              10 * time.Minute,
		registry.TMDB:               2 * time.Minute,
		registry.GlossaryLoad:       2 * time.Minute,
		registry.SourceSeparation:   45 * time.Minute,
		registry.PyannoteVAD:        20 * time.Minute,
		registry.ASR:                6 * time.Hour,
		registry.Alignment:          30 * time.Minute,
		registry.LyricsDetection:    15 * time.Minute,
		registry.Translation:        2 * time.Hour,
		registry.SubtitleGeneration: 10 * time.Minute,
		registry.Mux:                15 * time.Minute,
	}
}

// NewOrchestrator constructs an Orchestrator with sensible per-stage
// timeout defaults and a 30-second cancellation grace period.
func NewOrchestrator(manager *envmanager.Manager, defaultsPath string) *Orchestrator {
	return &Orchestrator{
		Manager:        manager,
		DefaultsPath:   defaultsPath,
		StageTimeout:   defaultStageTimeouts(),
		DefaultTimeout: 30 * time.Minute,
		GracePeriod:    30 * time.Second,
	}
}

// Run executes jobDir's job to a terminal status: it loads the job record,
// resolves configuration, plans the stage sequence, and dispatches each
// stage in order with resume checks and fatal/optional handling.
func (o *Orchestrator) Run(ctx context.Context, jobDir string) (stageio.JobManifest, error) {
	job, err := joballoc.ReadJobRecordFromDir(jobDir)
	if err != nil {
		return stageio.JobManifest{}, err
	}

	cfg, err := config.Resolve(config.ResolveOptions{
		DefaultsPath: o.DefaultsPath,
		JobRecord:    job.ConfigOverrides,
		EnvOverrides: os.Environ(),
	})
	if err != nil {
		return stageio.JobManifest{}, err
	}

	plan, err := workflow.Plan(job)
	if err != nil {
		return stageio.JobManifest{}, err
	}

	pipelineLogPath := filepath.Join(jobDir, "logs", fmt.Sprintf("99_pipeline_%s.log", time.Now().Format("20060102T150405")))
	pipelineLogger, closeLog, err := logging.New(logging.Options{
		Component:   "orchestrator",
		Level:       cfg.LogLevel,
		Format:      logging.FormatConsole,
		Writer:      os.Stdout,
		LogFilePath: pipelineLogPath,
	})
	if err != nil {
		return stageio.JobManifest{}, err
	}
	defer closeLog()

	ctx = pipectx.WithJobID(ctx, job.JobID)
	ctx = pipectx.WithWorkflow(ctx, string(job.Workflow))
	ctx = logging.IntoContext(ctx, pipelineLogger)
	log := logging.FromContext(ctx)

	jobManifest := stageio.JobManifest{
		JobID:     job.JobID,
		Workflow:  string(job.Workflow),
		StartTime: time.Now(),
	}

	abortedOnFatal := false
	var outcomes []StageOutcome

	for _, planned := range plan {
		stageName := planned.Descriptor.Name
		fatal := planned.Descriptor.IsFatal(job.Workflow)
		snapshot := stageConfigSnapshot(cfg, planned, job)

		if prior, readErr := stageio.ReadManifest(jobDir, stageName); readErr == nil && ResumePredicate(prior, snapshot) {
			log.Info(fmt.Sprintf("stage %s: RESUMED", stageName))
			jobManifest.Stages = append(jobManifest.Stages, stageio.StageSummary{
				StageName: string(stageName), Status: stageio.StatusSuccess,
				DurationSeconds: prior.DurationSeconds, ManifestPath: manifestPath(jobDir, stageName), Resumed: true,
			})
			outcomes = append(outcomes, StageOutcome{Name: stageName, Status: stageio.StatusSuccess, Fatal: fatal})
			continue
		}

		log.Info(fmt.Sprintf("stage %s: STARTING", stageName))
		status := o.runOneStage(ctx, jobDir, pipelineLogPath, cfg, job, planned)

		label := "COMPLETED"
		switch status {
		case stageio.StatusFailed:
			if fatal {
				label = "FAILED"
			} else {
				label = "FAILED (optional)"
			}
		case stageio.StatusSkipped:
			label = "SKIPPED"
		}
		manifest, readErr := stageio.ReadManifest(jobDir, stageName)
		duration := 0.0
		if readErr == nil {
			duration = manifest.DurationSeconds
		}
		log.Info(fmt.Sprintf("stage %s: %s", stageName, label), logging.Duration("duration", time.Duration(duration*float64(time.Second))))

		jobManifest.Stages = append(jobManifest.Stages, stageio.StageSummary{
			StageName: string(stageName), Status: status, DurationSeconds: duration, ManifestPath: manifestPath(jobDir, stageName),
		})
		outcomes = append(outcomes, StageOutcome{Name: stageName, Status: status, Fatal: fatal})

		if status != stageio.StatusSuccess {
			if fatal {
				abortedOnFatal = true
				break
			}
			jobManifest.Warnings = append(jobManifest.Warnings, stageio.WarningRecord{
				Message: fmt.Sprintf("optional stage %s failed", stageName), Timestamp: time.Now(),
			})
		}
	}

	jobManifest.EndTime = time.Now()
	jobManifest.TerminalStatus = AggregateTerminalStatus(outcomes, abortedOnFatal)

	if err := writeJobManifest(jobDir, jobManifest); err != nil {
		return jobManifest, err
	}
	return jobManifest, nil
}

// runOneStage invokes the Environment Manager for one stage and returns
// its finalized (or cleaned-up) status.
func (o *Orchestrator) runOneStage(ctx context.Context, jobDir, pipelineLogPath string, cfg *config.PipelineConfig, job joballoc.Job, planned workflow.PlannedStage) stageio.Status {
	timeout := o.DefaultTimeout
	if t, ok := o.StageTimeout[planned.Descriptor.Name]; ok {
		timeout = t
	}
	stageCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	target := ""
	if len(planned.TargetLanguages) > 0 {
		target = planned.TargetLanguages[0]
	}

	exitCode, runErr := o.Manager.RunStage(stageCtx, envmanager.RunOptions{
		Stage:           planned.Descriptor.Name,
		JobDir:          jobDir,
		JobConfigPath:   filepath.Join(jobDir, "job.json"),
		PipelineLogPath: pipelineLogPath,
		LogLevel:        cfg.LogLevel,
		RequestID:       uuid.NewString(),
		SourceLanguage:  job.SourceLanguage,
		TargetLanguage:  target,
		DefaultsPath:    o.DefaultsPath,
		GracePeriod:     o.GracePeriod,
	})

	manifest, readErr := stageio.ReadManifest(jobDir, planned.Descriptor.Name)
	if readErr != nil {
		reason := "stage manifest missing after execution"
		if stageCtx.Err() != nil {
			reason = "cancelled"
		}
		cleaned, _ := stageio.MarkStaleRunningAsFailed(jobDir, planned.Descriptor.Name, reason)
		return cleaned.Status
	}
	if manifest.Status == stageio.StatusRunning {
		reason := "stage terminated without finalization"
		if stageCtx.Err() != nil {
			reason = "cancelled"
		}
		cleaned, _ := stageio.MarkStaleRunningAsFailed(jobDir, planned.Descriptor.Name, reason)
		return cleaned.Status
	}
	if runErr != nil && manifest.Status != stageio.StatusFailed {
		return stageio.StatusFailed
	}
	if exitCode != 0 && manifest.Status == stageio.StatusSuccess {
		return stageio.StatusFailed
	}
	return manifest.Status
}

// stageConfigSnapshot builds the subset of configuration keys relevant to
// one stage, the same keys stagerunner records into the stage's manifest
// via StageIO.AddConfig, so the Resume Predicate can compare like with
// like.
func stageConfigSnapshot(cfg *config.PipelineConfig, planned workflow.PlannedStage, job joballoc.Job) map[string]any {
	snapshot := map[string]any{
		"media_processing_mode": string(cfg.MediaProcessingMode),
	}
	switch planned.Descriptor.Name {
	case registry.Demux:
		snapshot["media_start_time"] = cfg.MediaStartTime
		snapshot["media_end_time"] = cfg.MediaEndTime
	case registry.ASR:
		snapshot["asr_model_id"] = cfg.ASRModelID
		snapshot["compute_device"] = string(cfg.ComputeDevice)
		snapshot["two_step_transcription"] = job.TwoStepTranscription
	case registry.Translation:
		snapshot["target_languages"] = job.TargetLanguages
	}
	return snapshot
}

func manifestPath(jobDir string, stage registry.StageName) string {
	descriptor, ok := registry.Lookup(stage)
	if !ok {
		return ""
	}
	return filepath.Join(jobDir, descriptor.Directory(), "manifest.json")
}

func writeJobManifest(jobDir string, manifest stageio.JobManifest) error {
	return stageio.WriteJobManifestAtomic(filepath.Join(jobDir, "manifest.json"), manifest)
}
