// Package stageio implements StageIO (C5), the per-stage facade every
// stage module consumes: path resolution against the Stage Registry, a
// dual logger, and manifest authoring with atomic finalization.
package stageio

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"reelflow/internal/logging"
	"reelflow/internal/perr"
	"reelflow/internal/pipectx"
	"reelflow/internal/registry"
)

// Options configures a StageIO instance.
type Options struct {
	StageName      registry.StageName
	JobDir         string
	EnableManifest bool
	LogLevel       string
	// PipelineLogPath, if set, is the main pipeline log INFO+ records are
	// mirrored into, satisfying the dual-logging contract.
	PipelineLogPath string
	RequestID       string
}

// StageIO is the facade bound to one (stage, job directory) pair.
type StageIO struct {
	descriptor registry.Descriptor
	jobDir     string
	stageDir   string
	logger     *slog.Logger
	closers    []func() error

	mu           sync.Mutex
	manifest     StageManifest
	enableManifest bool
	outputsByPath  map[string]int
	finalized      bool
}

// New constructs a StageIO for stageName scoped to jobDir: it derives the
// stage directory from the registry, creates it if absent, opens
// stage.log for append, and initializes an empty running manifest.
func New(ctx context.Context, opts Options) (*StageIO, error) {
	descriptor, ok := registry.Lookup(opts.StageName)
	if !ok {
		return nil, perr.Wrap(perr.ErrStageMissingInput, string(opts.StageName), "new_stageio",
			fmt.Sprintf("unknown stage %q", opts.StageName), nil)
	}

	stageDir := filepath.Join(opts.JobDir, descriptor.Directory())
	if err := os.MkdirAll(stageDir, 0o755); err != nil {
		return nil, perr.Wrap(perr.ErrStageExecFailure, string(opts.StageName), "new_stageio", err.Error(), err)
	}

	logPath := filepath.Join(stageDir, "stage.log")
	logOpts := logging.Options{
		Component:   string(opts.StageName),
		Level:       opts.LogLevel,
		Format:      logging.FormatJSON,
		LogFilePath: logPath,
	}
	logger, closer, err := logging.New(logOpts)
	if err != nil {
		return nil, err
	}

	closers := []func() error{closer}
	if opts.PipelineLogPath != "" {
		pipelineLogger, pipelineCloser, perr2 := logging.New(logging.Options{
			Component:   "pipeline",
			Level:       "info",
			Format:      logging.FormatJSON,
			LogFilePath: opts.PipelineLogPath,
		})
		if perr2 != nil {
			return nil, perr2
		}
		logger = logging.TeeLogger(logger, pipelineLogger, slog.LevelInfo)
		closers = append(closers, pipelineCloser)
	}

	ctx = pipectx.WithStage(ctx, string(opts.StageName))
	if opts.RequestID != "" {
		ctx = pipectx.WithRequestID(ctx, opts.RequestID)
	}
	logger = logging.WithContext(ctx, logger)

	now := time.Now()
	sio := &StageIO{
		descriptor:     descriptor,
		jobDir:         opts.JobDir,
		stageDir:       stageDir,
		logger:         logger,
		closers:        closers,
		enableManifest: opts.EnableManifest,
		outputsByPath:  map[string]int{},
		manifest: StageManifest{
			StageName:   string(descriptor.Name),
			StageNumber: descriptor.Number,
			StartTime:   now,
			Status:      StatusRunning,
			Inputs:      []FileRecord{},
			Outputs:     []FileRecord{},
			Intermediates: []IntermediateRecord{},
			Errors:      []ErrorRecord{},
			Warnings:    []WarningRecord{},
		},
	}
	return sio, nil
}

// Logger returns the stage's dual logger: DEBUG routes only to stage.log;
// INFO and above also reach the main pipeline log.
func (s *StageIO) Logger() *slog.Logger { return s.logger }

// StageDir returns this stage's own directory.
func (s *StageIO) StageDir() string { return s.stageDir }

// GetInputPath resolves an absolute path beneath an upstream stage's
// directory. fromStage defaults to the immediately preceding stage in
// registry order.
func (s *StageIO) GetInputPath(name string, fromStage ...registry.StageName) (string, error) {
	var source registry.Descriptor
	if len(fromStage) > 0 && fromStage[0] != "" {
		d, ok := registry.Lookup(fromStage[0])
		if !ok {
			return "", perr.Wrap(perr.ErrStageMissingInput, string(s.descriptor.Name), "get_input_path",
				fmt.Sprintf("unknown stage %q", fromStage[0]), nil)
		}
		source = d
	} else {
		prev, ok := registry.Preceding(s.descriptor.Name)
		if !ok {
			return "", perr.Wrap(perr.ErrStageMissingInput, string(s.descriptor.Name), "get_input_path",
				"no preceding stage and no from_stage given", nil)
		}
		source = prev
	}

	sourceDir := filepath.Join(s.jobDir, source.Directory())
	path, err := resolveWithin(sourceDir, name)
	if err != nil {
		return "", err
	}
	if _, statErr := os.Stat(path); statErr != nil {
		return "", perr.Wrap(perr.ErrStageMissingInput, string(s.descriptor.Name), "get_input_path",
			fmt.Sprintf("input %q not found under %s", name, source.Name), statErr)
	}
	return path, nil
}

// GetOutputPath resolves an absolute path within this stage's own
// directory, rejecting any name that would escape it.
func (s *StageIO) GetOutputPath(name string) (string, error) {
	return resolveWithin(s.stageDir, name)
}

// TrackInput records an input file this stage consumed.
func (s *StageIO) TrackInput(path, typ string, extra map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manifest.Inputs = append(s.manifest.Inputs, FileRecord{Type: typ, Path: path, Extra: extra})
}

// TrackOutput records an output file this stage produced. Repeated calls
// on the same path are allowed; the last call wins.
func (s *StageIO) TrackOutput(path, typ string, extra map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record := FileRecord{Type: typ, Path: path, Extra: extra}
	if idx, ok := s.outputsByPath[path]; ok {
		s.manifest.Outputs[idx] = record
		return
	}
	s.manifest.Outputs = append(s.manifest.Outputs, record)
	s.outputsByPath[path] = len(s.manifest.Outputs) - 1
}

// TrackIntermediate records a non-declared-output file, tagged retained or
// not with a free-text reason.
func (s *StageIO) TrackIntermediate(path string, retained bool, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manifest.Intermediates = append(s.manifest.Intermediates, IntermediateRecord{
		FileRecord: FileRecord{Path: path},
		Retained:   retained,
		Reason:     reason,
	})
}

// SetConfig replaces the stage's configuration snapshot wholesale.
func (s *StageIO) SetConfig(cfg map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manifest.Config = cfg
}

// AddConfig records one configuration key relevant to this stage.
func (s *StageIO) AddConfig(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.manifest.Config == nil {
		s.manifest.Config = map[string]any{}
	}
	s.manifest.Config[key] = value
}

// AddWarning records a warning without failing the stage.
func (s *StageIO) AddWarning(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manifest.Warnings = append(s.manifest.Warnings, WarningRecord{Message: msg, Timestamp: time.Now()})
	s.logger.Warn(msg)
}

// AddError records an error. Stage authors are expected to catch broadly
// around their main body, call AddError with the cause, then call
// Finalize(StatusFailed, ...) and exit non-zero.
func (s *StageIO) AddError(msg string, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kind := ""
	if cause != nil {
		kind = string(perr.KindOf(cause))
	}
	s.manifest.Errors = append(s.manifest.Errors, ErrorRecord{Message: msg, Kind: kind, Timestamp: time.Now()})
	if cause != nil {
		s.logger.Error(msg, logging.Error(cause))
	} else {
		s.logger.Error(msg)
	}
}

// Finalize stamps end timestamp and duration, refreshes byte sizes for
// every tracked file that still exists, and serializes the manifest to
// <stage dir>/manifest.json atomically. It must be called exactly once.
// Requesting StatusSuccess while a declared output is missing downgrades
// the manifest to StatusFailed with an error record, preserving the
// invariant that a success manifest's outputs all exist.
func (s *StageIO) Finalize(status Status, extra map[string]any) (StageManifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return s.manifest, perr.Wrap(perr.ErrManifestCorruption, string(s.descriptor.Name), "finalize",
			"finalize called more than once", nil)
	}

	refreshSizes(s.manifest.Inputs)
	refreshSizes(s.manifest.Outputs)
	refreshIntermediateSizes(s.manifest.Intermediates)

	if status == StatusSuccess {
		for _, out := range s.manifest.Outputs {
			if _, err := os.Stat(out.Path); err != nil {
				status = StatusFailed
				s.manifest.Errors = append(s.manifest.Errors, ErrorRecord{
					Message:   fmt.Sprintf("declared output missing at finalize: %s", out.Path),
					Kind:      string(perr.KindStageExecFailure),
					Timestamp: time.Now(),
				})
			}
		}
	}

	now := time.Now()
	s.manifest.EndTime = now
	s.manifest.DurationSeconds = now.Sub(s.manifest.StartTime).Seconds()
	s.manifest.Status = status
	if extra != nil {
		if s.manifest.ResourceUsage == nil {
			s.manifest.ResourceUsage = map[string]any{}
		}
		for k, v := range extra {
			s.manifest.ResourceUsage[k] = v
		}
	}
	s.finalized = true

	if s.enableManifest {
		if err := writeManifestAtomic(filepath.Join(s.stageDir, "manifest.json"), s.manifest); err != nil {
			return s.manifest, err
		}
	}

	for _, closer := range s.closers {
		if closer != nil {
			_ = closer()
		}
	}
	return s.manifest, nil
}

func refreshSizes(records []FileRecord) {
	for i := range records {
		if info, err := os.Stat(records[i].Path); err == nil {
			records[i].SizeBytes = info.Size()
		}
	}
}

func refreshIntermediateSizes(records []IntermediateRecord) {
	for i := range records {
		if info, err := os.Stat(records[i].Path); err == nil {
			records[i].SizeBytes = info.Size()
		}
	}
}

func writeManifestAtomic(path string, manifest StageManifest) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return perr.Wrap(perr.ErrManifestCorruption, manifest.StageName, "finalize", err.Error(), err)
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-manifest-*")
	if err != nil {
		return perr.Wrap(perr.ErrManifestCorruption, manifest.StageName, "finalize", err.Error(), err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return perr.Wrap(perr.ErrManifestCorruption, manifest.StageName, "finalize", err.Error(), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return perr.Wrap(perr.ErrManifestCorruption, manifest.StageName, "finalize", err.Error(), err)
	}
	if err := tmp.Close(); err != nil {
		return perr.Wrap(perr.ErrManifestCorruption, manifest.StageName, "finalize", err.Error(), err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return perr.Wrap(perr.ErrManifestCorruption, manifest.StageName, "finalize", err.Error(), err)
	}
	return nil
}

// ReadManifest loads a stage's manifest.json from its directory within
// jobDir, for the orchestrator's resume-predicate scan.
func ReadManifest(jobDir string, stage registry.StageName) (StageManifest, error) {
	descriptor, ok := registry.Lookup(stage)
	if !ok {
		return StageManifest{}, perr.Wrap(perr.ErrStageMissingInput, string(stage), "read_manifest",
			fmt.Sprintf("unknown stage %q", stage), nil)
	}
	path := filepath.Join(jobDir, descriptor.Directory(), "manifest.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return StageManifest{}, err
		}
		return StageManifest{}, perr.Wrap(perr.ErrManifestCorruption, string(stage), "read_manifest", err.Error(), err)
	}
	var manifest StageManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return StageManifest{}, perr.Wrap(perr.ErrManifestCorruption, string(stage), "read_manifest", err.Error(), err)
	}
	return manifest, nil
}
