package joballoc

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reelflow/internal/config"
	"reelflow/internal/perr"
	"reelflow/internal/registry"
)

func testJob() Job {
	return Job{
		Workflow:       registry.Transcribe,
		InputMedia:     "/media/input.mkv",
		SourceLanguage: "hi",
		ProcessingMode: config.ModeFull,
	}
}

func TestAllocateAssignsDistinctSequenceNumbersSameDayTenant(t *testing.T) {
	root := t.TempDir()
	alloc, err := NewAllocator(root)
	require.NoError(t, err)
	defer alloc.Ledger.Close()
	alloc.Clock = func() time.Time { return time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC) }

	dirA, err := alloc.Allocate(context.Background(), "acme", testJob())
	require.NoError(t, err)
	dirB, err := alloc.Allocate(context.Background(), "acme", testJob())
	require.NoError(t, err)

	assert.NotEqual(t, dirA.Path(), dirB.Path())
	assert.Equal(t, 1, dirA.Sequence)
	assert.Equal(t, 2, dirB.Sequence)
}

func TestAllocateWritesReadableJobRecord(t *testing.T) {
	root := t.TempDir()
	alloc, err := NewAllocator(root)
	require.NoError(t, err)
	defer alloc.Ledger.Close()
	alloc.Clock = func() time.Time { return time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC) }

	dir, err := alloc.Allocate(context.Background(), "acme", testJob())
	require.NoError(t, err)

	job, err := ReadJobRecord(dir)
	require.NoError(t, err)
	assert.Equal(t, dir.JobID(), job.JobID)
	assert.Equal(t, "acme", job.Tenant)
}

func TestAllocateReusesSequenceFreedByExternalTooling(t *testing.T) {
	root := t.TempDir()
	alloc, err := NewAllocator(root)
	require.NoError(t, err)
	defer alloc.Ledger.Close()
	alloc.Clock = func() time.Time { return time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC) }

	_, err = alloc.Allocate(context.Background(), "acme", testJob())
	require.NoError(t, err)
	dir2, err := alloc.Allocate(context.Background(), "acme", testJob())
	require.NoError(t, err)
	_, err = alloc.Allocate(context.Background(), "acme", testJob())
	require.NoError(t, err)

	// External tooling deletes job 2; the next allocation must take the
	// smallest free number, not continue past the highest issued.
	require.NoError(t, os.RemoveAll(dir2.Path()))

	reused, err := alloc.Allocate(context.Background(), "acme", testJob())
	require.NoError(t, err)
	assert.Equal(t, 2, reused.Sequence)
}

func TestLedgerSyncRepairsStaleRow(t *testing.T) {
	ledger, err := OpenLedger(t.TempDir())
	require.NoError(t, err)
	defer ledger.Close()

	require.NoError(t, ledger.Record(context.Background(), "20260305", "acme", 5))
	require.NoError(t, ledger.Sync(context.Background(), "20260305", "acme", 2))

	last, err := ledger.Hint(context.Background(), "20260305", "acme")
	require.NoError(t, err)
	assert.Equal(t, 2, last)
}

func TestAllocateRejectsInvalidRecordBeforeCreatingAnyDirectory(t *testing.T) {
	root := t.TempDir()
	alloc, err := NewAllocator(root)
	require.NoError(t, err)
	defer alloc.Ledger.Close()
	clock := func() time.Time { return time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC) }
	alloc.Clock = clock

	invalid := testJob()
	invalid.Workflow = registry.Translate
	invalid.TargetLanguages = nil

	_, err = alloc.Allocate(context.Background(), "acme", invalid)
	require.Error(t, err)
	assert.ErrorIs(t, err, perr.ErrConfigInvalid)

	tenantDay := JobDirectory{OutputRoot: root, Date: clock(), Tenant: "acme"}
	assert.NoDirExists(t, tenantDay.TenantDayPath())
}

func TestJobValidateRejectsEmptyTargetsForTranslate(t *testing.T) {
	job := testJob()
	job.Workflow = registry.Translate
	job.TargetLanguages = nil
	assert.Error(t, job.Validate())
}

func TestJobValidateRejectsTargetEqualToSource(t *testing.T) {
	job := testJob()
	job.Workflow = registry.Translate
	job.TargetLanguages = []string{"hi"}
	assert.Error(t, job.Validate())
}

func TestJobValidateAcceptsWellFormedTranscribeJob(t *testing.T) {
	assert.NoError(t, testJob().Validate())
}
