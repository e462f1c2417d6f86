package joballoc

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gofrs/flock"

	"reelflow/internal/perr"
)

// MaxAllocationAttempts bounds how many candidate sequence numbers the
// allocator tries before giving up with a ResourceExhausted error, per the
// contract that the allocator never retries past a configured ceiling.
const MaxAllocationAttempts = 10_000

// Allocator implements C2: it assigns a unique job identifier and
// canonical job directory under a date-partitioned output root, and
// persists job.json.
type Allocator struct {
	OutputRoot string
	Ledger     *Ledger
	Clock      func() time.Time
}

// NewAllocator constructs an Allocator rooted at outputRoot, opening (or
// creating) its sequence ledger.
func NewAllocator(outputRoot string) (*Allocator, error) {
	ledger, err := OpenLedger(outputRoot)
	if err != nil {
		return nil, err
	}
	return &Allocator{OutputRoot: outputRoot, Ledger: ledger, Clock: time.Now}, nil
}

// Allocate assigns a job directory and identifier for tenant, and writes
// job.json for the given record (job.JobID/Tenant/CreatedAt are populated
// before the record is written). Directory creation is the critical
// section: it is guarded by an flock on the tenant-day directory, the
// smallest free sequence number is found by scanning that directory (so a
// number freed by external tooling deleting an earlier job is reused),
// and the actual claim is an atomic os.Mkdir create-if-not-exists, so a
// concurrent allocator that loses the race observes os.ErrExist and
// retries the next candidate.
func (a *Allocator) Allocate(ctx context.Context, tenant string, record Job) (JobDirectory, error) {
	now := time.Now()
	if a.Clock != nil {
		now = a.Clock()
	}
	dateKey := now.Format("20060102")

	// Validate before touching the filesystem: a ConfigInvalid record must
	// never leave a job directory behind.
	record.Tenant = tenant
	record.CreatedAt = now
	if err := record.Validate(); err != nil {
		return JobDirectory{}, err
	}

	tenantDay := JobDirectory{OutputRoot: a.OutputRoot, Date: now, Tenant: tenant}
	if err := os.MkdirAll(tenantDay.TenantDayPath(), 0o755); err != nil {
		return JobDirectory{}, perr.Wrap(perr.ErrAllocationFailure, "", "allocate", err.Error(), err)
	}

	lockPath := filepath.Join(tenantDay.TenantDayPath(), ".alloc.lock")
	lock := flock.New(lockPath)
	locked, err := lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil || !locked {
		return JobDirectory{}, perr.Wrap(perr.ErrAllocationFailure, "", "allocate",
			"could not acquire allocation lock", err)
	}
	defer lock.Unlock()

	start, observedMax, err := scanSequences(tenantDay.TenantDayPath())
	if err != nil {
		return JobDirectory{}, perr.Wrap(perr.ErrAllocationFailure, "", "allocate", err.Error(), err)
	}
	if a.Ledger != nil {
		// Repair the ledger row against what the tree actually holds, so a
		// row left stale by external tooling deleting job directories never
		// misleads reporting.
		_ = a.Ledger.Sync(ctx, dateKey, tenant, observedMax)
	}

	var sequence int
	found := false
	for candidate := start; candidate < start+MaxAllocationAttempts; candidate++ {
		dir := JobDirectory{OutputRoot: a.OutputRoot, Date: now, Tenant: tenant, Sequence: candidate}
		if err := os.Mkdir(dir.Path(), 0o755); err != nil {
			if errors.Is(err, os.ErrExist) {
				continue
			}
			return JobDirectory{}, perr.Wrap(perr.ErrAllocationFailure, "", "allocate", err.Error(), err)
		}
		sequence = candidate
		found = true
		break
	}
	if !found {
		return JobDirectory{}, perr.Wrap(perr.ErrResourceExhausted, "", "allocate",
			"no unused sequence number within allocation ceiling", nil)
	}

	dir := JobDirectory{OutputRoot: a.OutputRoot, Date: now, Tenant: tenant, Sequence: sequence}
	if err := dir.Create(); err != nil {
		return JobDirectory{}, err
	}
	if a.Ledger != nil {
		_ = a.Ledger.Record(ctx, dateKey, tenant, sequence)
	}

	record.JobID = dir.JobID()
	if err := WriteJobRecord(dir, record); err != nil {
		return JobDirectory{}, err
	}
	return dir, nil
}

// scanSequences reads the tenant-day directory and returns the smallest
// positive integer with no subdirectory, plus the largest sequence
// observed. The scan is what keeps "choose the smallest positive integer
// whose subdirectory does not yet exist" true even after external tooling
// deletes an earlier job directory, freeing its number.
func scanSequences(dir string) (smallestFree, observedMax int, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0, err
	}
	used := make(map[int]bool, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		n, convErr := strconv.Atoi(entry.Name())
		if convErr != nil || n <= 0 {
			continue
		}
		used[n] = true
		if n > observedMax {
			observedMax = n
		}
	}
	smallestFree = 1
	for used[smallestFree] {
		smallestFree++
	}
	return smallestFree, observedMax, nil
}
