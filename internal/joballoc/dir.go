package joballoc

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"reelflow/internal/perr"
)

// JobDirectory is the canonical on-disk location of one job's state:
// <output_root>/YYYY/MM/DD/<tenant>/<sequence>/.
type JobDirectory struct {
	OutputRoot string
	Date       time.Time
	Tenant     string
	Sequence   int
}

// Path returns the job directory's absolute path.
func (d JobDirectory) Path() string {
	return filepath.Join(d.OutputRoot,
		d.Date.Format("2006"), d.Date.Format("01"), d.Date.Format("02"),
		d.Tenant, fmt.Sprintf("%d", d.Sequence))
}

// TenantDayPath returns the <output_root>/YYYY/MM/DD/<tenant>/ directory
// the allocator scans for the next free sequence number.
func (d JobDirectory) TenantDayPath() string {
	return filepath.Join(d.OutputRoot,
		d.Date.Format("2006"), d.Date.Format("01"), d.Date.Format("02"), d.Tenant)
}

// JobID formats the stable identifier "job-YYYYMMDD-<tenant>-NNNN".
func (d JobDirectory) JobID() string {
	return fmt.Sprintf("job-%s-%s-%04d", d.Date.Format("20060102"), d.Tenant, d.Sequence)
}

// LogsDir returns the job directory's main-pipeline-log directory.
func (d JobDirectory) LogsDir() string {
	return filepath.Join(d.Path(), "logs")
}

// JobRecordPath returns the path to job.json.
func (d JobDirectory) JobRecordPath() string {
	return filepath.Join(d.Path(), "job.json")
}

// ManifestPath returns the path to the aggregate job manifest.
func (d JobDirectory) ManifestPath() string {
	return filepath.Join(d.Path(), "manifest.json")
}

// Create materializes the job directory tree (job dir + logs/), but not
// the per-stage subdirectories, which StageIO creates lazily.
func (d JobDirectory) Create() error {
	if err := os.MkdirAll(d.Path(), 0o755); err != nil {
		return perr.Wrap(perr.ErrAllocationFailure, "", "create_job_dir", err.Error(), err)
	}
	if err := os.MkdirAll(d.LogsDir(), 0o755); err != nil {
		return perr.Wrap(perr.ErrAllocationFailure, "", "create_logs_dir", err.Error(), err)
	}
	return nil
}

// WriteJobRecord serializes job as job.json atomically: write to a sibling
// temp file, then rename over the final path.
func WriteJobRecord(dir JobDirectory, job Job) error {
	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return perr.Wrap(perr.ErrAllocationFailure, "", "marshal_job_record", err.Error(), err)
	}
	return atomicWrite(dir.JobRecordPath(), data)
}

// ReadJobRecord loads job.json from dir.
func ReadJobRecord(dir JobDirectory) (Job, error) {
	return ReadJobRecordFromPath(dir.JobRecordPath())
}

// ReadJobRecordFromDir loads job.json given only the job directory's
// absolute path, for callers (such as the orchestrator) that only know
// the directory, not the date/tenant/sequence that produced it.
func ReadJobRecordFromDir(jobDir string) (Job, error) {
	return ReadJobRecordFromPath(filepath.Join(jobDir, "job.json"))
}

// ReadJobRecordFromPath loads and parses a job.json file at an explicit path.
func ReadJobRecordFromPath(path string) (Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Job{}, perr.Wrap(perr.ErrAllocationFailure, "", "read_job_record", err.Error(), err)
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return Job{}, perr.Wrap(perr.ErrManifestCorruption, "", "parse_job_record", err.Error(), err)
	}
	return job, nil
}

func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
