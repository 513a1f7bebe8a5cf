package aggregation

import (
	"context"

	"github.com/ea7klk/bm-lh-react-sub000/internal/core/summary"
)

// SummaryStore is the interface for durable hourly-summary persistence.
//
// Contract: MergeBatch and the cursor advance are atomically linked — a
// single database transaction. This prevents the crash scenario where the
// merge commits but the cursor is not written (double-counting on replay),
// and the inverse where the cursor advances past events that were never
// merged (silent gaps).
//
// Cursor Invariant: "Cursor (t, id) on a run's log entry means: the summary
// store includes every event up to and including (t, id), and none after."
type SummaryStore interface {
	// MergeBatch upserts all partials into the summary table and writes the
	// batch cursor + running counters onto the run's processing-log row, all
	// in one transaction. The merge per key is the commutative combine in
	// summary.Merge. Stale cursors (not strictly ahead of the run row's
	// durable cursor) are rejected without writing.
	MergeBatch(
		ctx context.Context,
		runID int64,
		partials map[summary.Key]*summary.Summary,
		cursor summary.Cursor,
		eventCount int64,
	) error
}

// ProcessingLog is the append-only audit trail of aggregation runs. The
// cursor is a view over this log: its authoritative value is the maximum
// durable (timestamp, id) pair across all entries, so batches committed by a
// later-failed run are never replayed.
type ProcessingLog interface {
	// LatestCursor derives the resumption watermark from the log.
	// Returns the zero cursor when no run has ever made progress.
	LatestCursor(ctx context.Context) (summary.Cursor, error)

	// ActiveRun returns the newest in_progress entry, or nil if none.
	ActiveRun(ctx context.Context) (*summary.RunRecord, error)

	// AbandonRun marks an orphaned in_progress entry as failed so it cannot
	// block future runs. Its durable cursor remains valid.
	AbandonRun(ctx context.Context, runID int64, reason string) error

	// StartRun inserts a new in_progress entry snapshotting the cursor the
	// run resumes from, and returns it with ID and UID populated.
	StartRun(ctx context.Context, cursor summary.Cursor) (*summary.RunRecord, error)

	// CompleteRun finalizes the entry: status completed, completion timestamp.
	CompleteRun(ctx context.Context, runID int64) error

	// FailRun marks the entry failed and records the error message.
	FailRun(ctx context.Context, runID int64, message string) error
}
