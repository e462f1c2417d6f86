package joballoc

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"reelflow/internal/perr"
)

// Ledger is a local, file-backed record of the highest sequence number
// observed per (date, tenant), letting reporting tools read allocation
// history without walking the output tree. The directory tree is the sole
// source of truth for allocation itself: every Allocate call repairs this
// ledger's row against the tree (Sync), so a row left stale by external
// tooling creating or deleting job directories is corrected on the next
// allocation rather than trusted.
type Ledger struct {
	db *sql.DB
}

// OpenLedger opens (creating if absent) the sqlite-backed sequence cache
// at <output_root>/.reelflow/ledger.db.
func OpenLedger(outputRoot string) (*Ledger, error) {
	dir := filepath.Join(outputRoot, ".reelflow")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, perr.Wrap(perr.ErrAllocationFailure, "", "open_ledger", err.Error(), err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)",
		filepath.Join(dir, "ledger.db"))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, perr.Wrap(perr.ErrAllocationFailure, "", "open_ledger", err.Error(), err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sequences (
			job_date TEXT NOT NULL,
			tenant   TEXT NOT NULL,
			last_sequence INTEGER NOT NULL,
			PRIMARY KEY (job_date, tenant)
		)`); err != nil {
		db.Close()
		return nil, perr.Wrap(perr.ErrAllocationFailure, "", "migrate_ledger", err.Error(), err)
	}
	return &Ledger{db: db}, nil
}

// Close releases the underlying database handle.
func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Hint returns the last-recorded sequence for (date, tenant), or 0 if none
// is known yet.
func (l *Ledger) Hint(ctx context.Context, date, tenant string) (int, error) {
	var last int
	err := l.db.QueryRowContext(ctx,
		`SELECT last_sequence FROM sequences WHERE job_date = ? AND tenant = ?`, date, tenant).Scan(&last)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, perr.Wrap(perr.ErrAllocationFailure, "", "ledger_hint", err.Error(), err)
	}
	return last, nil
}

// Sync force-sets the recorded sequence for (date, tenant) to what the
// directory tree actually shows, superseding whatever the row held. This
// is the rebuild-from-tree repair Allocate applies under its lock before
// claiming a new number.
func (l *Ledger) Sync(ctx context.Context, date, tenant string, observedMax int) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO sequences (job_date, tenant, last_sequence) VALUES (?, ?, ?)
		ON CONFLICT(job_date, tenant) DO UPDATE SET last_sequence = excluded.last_sequence
	`, date, tenant, observedMax)
	if err != nil {
		return perr.Wrap(perr.ErrAllocationFailure, "", "ledger_sync", err.Error(), err)
	}
	return nil
}

// Record upserts the last-issued sequence for (date, tenant), keeping the
// highest value seen.
func (l *Ledger) Record(ctx context.Context, date, tenant string, sequence int) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO sequences (job_date, tenant, last_sequence) VALUES (?, ?, ?)
		ON CONFLICT(job_date, tenant) DO UPDATE SET last_sequence = excluded.last_sequence
		WHERE excluded.last_sequence > sequences.last_sequence
	`, date, tenant, sequence)
	if err != nil {
		return perr.Wrap(perr.ErrAllocationFailure, "", "ledger_record", err.Error(), err)
	}
	return nil
}
