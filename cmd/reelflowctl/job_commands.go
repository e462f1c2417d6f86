package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"reelflow/internal/config"
	"reelflow/internal/envmanager"
	"reelflow/internal/joballoc"
	"reelflow/internal/orchestrator"
	"reelflow/internal/registry"
	"reelflow/internal/stageio"
)

func newJobCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Allocate, run, and inspect pipeline jobs",
	}
	cmd.AddCommand(newJobPrepareCommand(ctx))
	cmd.AddCommand(newJobRunCommand(ctx))
	cmd.AddCommand(newJobStatusCommand(ctx))
	return cmd
}

func newJobPrepareCommand(ctx *commandContext) *cobra.Command {
	var (
		workflow         string
		inputMedia       string
		sourceLanguage   string
		targetLanguages  []string
		tenant           string
		startTime        string
		endTime          string
		twoStep          bool
		sourceSeparation bool
		vad              bool
		multiPass        bool
		speakerBias      bool
		lyricsDetection  bool
	)

	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Allocate a job directory and write its job record",
		RunE: func(cmd *cobra.Command, args []string) error {
			allocator, err := ctx.ensureAllocator()
			if err != nil {
				return err
			}

			mode := config.ModeFull
			if startTime != "" || endTime != "" {
				mode = config.ModeClip
			}

			record := joballoc.Job{
				Workflow:             registry.WorkflowKind(workflow),
				InputMedia:           inputMedia,
				SourceLanguage:       sourceLanguage,
				TargetLanguages:      targetLanguages,
				ProcessingMode:       mode,
				MediaStartTime:       orUnset(startTime),
				MediaEndTime:         orUnset(endTime),
				TwoStepTranscription: twoStep,
				Features: joballoc.FeatureFlags{
					SourceSeparation: sourceSeparation,
					VAD:              vad,
					MultiPass:        multiPass,
					SpeakerBias:      speakerBias,
					LyricsDetection:  lyricsDetection,
				},
				LogLevel: "info",
			}

			dir, err := allocator.Allocate(cmd.Context(), tenant, record)
			if err != nil {
				return fmt.Errorf("allocate job: %w", err)
			}

			if ctx.jsonMode() {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{
					"job_id":  dir.JobID(),
					"job_dir": dir.Path(),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "allocated job %s at %s\n", dir.JobID(), dir.Path())
			return nil
		},
	}

	cmd.Flags().StringVar(&workflow, "workflow", string(registry.Transcribe), "Workflow kind: transcribe, translate, or subtitle")
	cmd.Flags().StringVar(&inputMedia, "input", "", "Path to the input media file")
	cmd.Flags().StringVar(&sourceLanguage, "source-language", "", "Source language BCP-47 code")
	cmd.Flags().StringSliceVar(&targetLanguages, "target-language", nil, "Target language BCP-47 code (repeatable)")
	cmd.Flags().StringVar(&tenant, "tenant", "default", "Tenant identifier partitioning the output root")
	cmd.Flags().StringVar(&startTime, "start", "", "Clip window start (HH:MM:SS.mmm); omit for full media")
	cmd.Flags().StringVar(&endTime, "end", "", "Clip window end (HH:MM:SS.mmm); omit for full media")
	cmd.Flags().BoolVar(&twoStep, "two-step-transcription", false, "Run ASR in two passes")
	cmd.Flags().BoolVar(&sourceSeparation, "source-separation", false, "Enable the source separation stage")
	cmd.Flags().BoolVar(&vad, "vad", false, "Enable the voice activity detection stage")
	cmd.Flags().BoolVar(&multiPass, "multi-pass", false, "Enable iterative low-confidence refinement")
	cmd.Flags().BoolVar(&speakerBias, "speaker-bias", false, "Enable diarization during voice activity detection")
	cmd.Flags().BoolVar(&lyricsDetection, "lyrics-detection", false, "Enable the lyrics detection stage")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("source-language")

	return cmd
}

func orUnset(raw string) string {
	if raw == "" {
		return config.Unset
	}
	return raw
}

func newJobRunCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <job-dir>",
		Short: "Run a prepared job to a terminal status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobDir, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}

			environments, err := ctx.buildEnvironments()
			if err != nil {
				return err
			}
			hardware := ctx.ensureHardware(cmd.Context())

			if lvl := ctx.logLevel(); lvl != "" {
				// Threaded as an environment override so the orchestrator's
				// own Resolve and every stage child see the same level.
				if err := os.Setenv("REELFLOW_LOG_LEVEL", lvl); err != nil {
					return err
				}
			}

			job, err := joballoc.ReadJobRecordFromDir(jobDir)
			if err != nil {
				return fmt.Errorf("read job record: %w", err)
			}
			cfg, err := config.Resolve(config.ResolveOptions{
				DefaultsPath: ctx.defaultsPath(),
				JobRecord:    job.ConfigOverrides,
				EnvOverrides: os.Environ(),
			})
			if err != nil {
				return fmt.Errorf("resolve config: %w", err)
			}
			cacheRoots := envmanager.ResolveCacheRoots(cfg, ctx.projectRoot())
			if err := envmanager.EnsureCacheRoots(cacheRoots); err != nil {
				return err
			}

			manager := envmanager.NewManager(environments, cacheRoots, hardware)
			o := orchestrator.NewOrchestrator(manager, ctx.defaultsPath())

			manifest, err := o.Run(cmd.Context(), jobDir)
			if ctx.jsonMode() {
				encodeErr := json.NewEncoder(cmd.OutOrStdout()).Encode(manifest)
				if encodeErr != nil {
					return encodeErr
				}
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "job %s terminal status: %s\n", manifest.JobID, manifest.TerminalStatus)
			}
			if err != nil {
				return fmt.Errorf("run job: %w", err)
			}
			if manifest.TerminalStatus == stageio.JobFailed {
				return fmt.Errorf("job %s failed", manifest.JobID)
			}
			return nil
		},
	}
	return cmd
}

func newJobStatusCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <job-dir>",
		Short: "Render a job's stage-by-stage status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobDir, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			manifestPath := filepath.Join(jobDir, "manifest.json")
			manifest, err := readJobManifest(manifestPath)
			if err != nil {
				return fmt.Errorf("read job manifest: %w", err)
			}

			if ctx.jsonMode() {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(manifest)
			}

			cols := []col{leftCol("Stage"), leftCol("Status"), rightCol("Duration"), rightCol("Output Size"), rightCol("Resumed")}
			rows := make([][]string, 0, len(manifest.Stages))
			for _, s := range manifest.Stages {
				rows = append(rows, []string{
					s.StageName,
					statusCell(string(s.Status)),
					time.Duration(s.DurationSeconds * float64(time.Second)).Round(time.Second).String(),
					humanize.Bytes(uint64(stageOutputBytes(s.ManifestPath))),
					strconv.FormatBool(s.Resumed),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "job %s (%s) — terminal status: %s\n\n", manifest.JobID, manifest.Workflow, statusCell(string(manifest.TerminalStatus)))
			fmt.Fprintln(cmd.OutOrStdout(), renderColumns(cols, rows))
			return nil
		},
	}
	return cmd
}

// stageOutputBytes sums the tracked output sizes recorded in one stage's
// own manifest, for the human-readable size column; a stage whose
// manifest can't be read (skipped, never ran) contributes zero.
func stageOutputBytes(manifestPath string) int64 {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return 0
	}
	var stageManifest stageio.StageManifest
	if err := json.Unmarshal(data, &stageManifest); err != nil {
		return 0
	}
	var total int64
	for _, out := range stageManifest.Outputs {
		total += out.SizeBytes
	}
	return total
}

func readJobManifest(path string) (stageio.JobManifest, error) {
	var manifest stageio.JobManifest
	data, err := os.ReadFile(path)
	if err != nil {
		return manifest, err
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return manifest, err
	}
	return manifest, nil
}
