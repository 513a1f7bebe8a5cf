package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/ea7klk/bm-lh-react-sub000/internal/core/summary"
)

// SummaryAdapter implements aggregation.SummaryStore using PostgreSQL.
// The upserts and the cursor advance for one batch are a single transaction —
// the atomicity contract that makes crash recovery safe: the cursor never
// reflects events whose contribution is not durably visible, and vice versa.
type SummaryAdapter struct {
	db *sql.DB
}

// NewSummaryAdapter creates a SummaryAdapter sharing the given connection.
func NewSummaryAdapter(db *sql.DB) *SummaryAdapter {
	return &SummaryAdapter{db: db}
}

// MergeBatch upserts all partial summaries and advances the run's log-row
// cursor in one transaction.
//
// The run row is locked first and the incoming cursor checked against the
// durable one; a flush that would not move the watermark forward is skipped
// without writing. That makes a replayed or out-of-order flush harmless.
func (a *SummaryAdapter) MergeBatch(
	ctx context.Context,
	runID int64,
	partials map[summary.Key]*summary.Summary,
	cursor summary.Cursor,
	eventCount int64,
) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("summary merge: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var durable summary.Cursor
	err = tx.QueryRowContext(ctx, querySelectRunForUpdate, runID).
		Scan(&durable.LastTimestamp, &durable.LastRecordID)
	if err == sql.ErrNoRows {
		return fmt.Errorf("summary merge: run %d has no processing_log row", runID)
	}
	if err != nil {
		return fmt.Errorf("summary merge: lock run row: %w", err)
	}

	if !cursor.After(durable) {
		slog.Warn("[SummaryAdapter] Skipping stale/no-op merge",
			"run_id", runID,
			"cursor_timestamp", cursor.LastTimestamp,
			"cursor_record_id", cursor.LastRecordID,
			"durable_timestamp", durable.LastTimestamp,
			"durable_record_id", durable.LastRecordID,
			"partials", len(partials))
		return nil
	}

	upsertStmt, err := tx.PrepareContext(ctx, queryUpsertSummary)
	if err != nil {
		return fmt.Errorf("summary merge: prepare upsert: %w", err)
	}
	defer upsertStmt.Close()

	for key, partial := range partials {
		if err := partial.Validate(); err != nil {
			return fmt.Errorf("summary merge: refuse corrupt partial %v: %w", key, err)
		}
		if _, err := upsertStmt.ExecContext(ctx,
			partial.HourStart,
			partial.HourEnd,
			partial.SourceID,
			partial.DestinationID,
			nullString(partial.SourceCall),
			nullString(partial.SourceName),
			nullString(partial.DestinationCall),
			nullString(partial.DestinationName),
			partial.TotalCalls,
			partial.TotalDuration,
			partial.AvgDuration,
			partial.MinDuration,
			partial.MaxDuration,
			partial.FirstCallStart,
			partial.LastCallStart,
			partial.UpdatedAt,
		); err != nil {
			return fmt.Errorf("summary merge: upsert %v: %w", key, err)
		}
	}

	// Advance the run's watermark — same transaction as the upserts.
	result, err := tx.ExecContext(ctx, queryAdvanceRun,
		cursor.LastTimestamp,
		cursor.LastRecordID,
		eventCount,
		time.Now().UTC(),
		runID,
	)
	if err != nil {
		return fmt.Errorf("summary merge: advance cursor: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("summary merge: check cursor write: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("summary merge: processing_log row missing (run=%d)", runID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("summary merge: commit: %w", err)
	}

	slog.Info("[SummaryAdapter] Merged batch",
		"run_id", runID,
		"groups", len(partials),
		"events", eventCount,
		"cursor_timestamp", cursor.LastTimestamp,
		"cursor_record_id", cursor.LastRecordID,
	)
	return nil
}
