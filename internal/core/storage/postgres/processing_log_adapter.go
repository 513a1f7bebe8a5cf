package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/ea7klk/bm-lh-react-sub000/internal/core/summary"
	"github.com/google/uuid"
)

// ProcessingLogAdapter implements aggregation.ProcessingLog using PostgreSQL.
//
// The aggregation cursor has no table of its own: it is derived from this
// log, which keeps one source of truth. Cursor fields on a row only ever
// change inside a merge transaction, so any durable value is a safe
// resumption point — including rows from runs that later failed.
type ProcessingLogAdapter struct {
	db *sql.DB
}

// NewProcessingLogAdapter creates a ProcessingLogAdapter sharing the given connection.
func NewProcessingLogAdapter(db *sql.DB) *ProcessingLogAdapter {
	return &ProcessingLogAdapter{db: db}
}

// LatestCursor returns the maximum durable (timestamp, record id) watermark
// across all log entries. The zero cursor means "scan from the beginning".
func (a *ProcessingLogAdapter) LatestCursor(ctx context.Context) (summary.Cursor, error) {
	var cursor summary.Cursor
	err := a.db.QueryRowContext(ctx, queryLatestCursor).
		Scan(&cursor.LastTimestamp, &cursor.LastRecordID)
	if err == sql.ErrNoRows {
		return summary.Cursor{}, nil
	}
	if err != nil {
		return summary.Cursor{}, fmt.Errorf("derive latest cursor: %w", err)
	}
	return cursor, nil
}

// ActiveRun returns the newest in_progress entry, or nil when no run is active.
func (a *ProcessingLogAdapter) ActiveRun(ctx context.Context) (*summary.RunRecord, error) {
	run, err := scanRunRecord(a.db.QueryRowContext(ctx, queryActiveRun))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query active run: %w", err)
	}
	return run, nil
}

// AbandonRun marks an orphaned in_progress entry as failed. Its cursor
// fields stay untouched: any batches it committed remain part of the
// derived watermark.
func (a *ProcessingLogAdapter) AbandonRun(ctx context.Context, runID int64, reason string) error {
	return a.failRun(ctx, runID, reason)
}

// StartRun inserts a new in_progress entry snapshotting the resumption cursor.
func (a *ProcessingLogAdapter) StartRun(ctx context.Context, cursor summary.Cursor) (*summary.RunRecord, error) {
	now := time.Now().UTC()
	run := &summary.RunRecord{
		UID:                   uuid.NewString(),
		LastProcessedTime:     cursor.LastTimestamp,
		LastProcessedRecordID: cursor.LastRecordID,
		StartedAt:             now,
		HeartbeatAt:           now,
		Status:                summary.RunInProgress,
	}

	err := a.db.QueryRowContext(ctx, queryStartRun,
		run.UID,
		run.LastProcessedTime,
		run.LastProcessedRecordID,
		now,
	).Scan(&run.ID)
	if err != nil {
		return nil, fmt.Errorf("insert processing_log entry: %w", err)
	}

	slog.Info("[ProcessingLog] Run started",
		"run_id", run.ID,
		"run_uid", run.UID,
		"cursor_timestamp", cursor.LastTimestamp,
		"cursor_record_id", cursor.LastRecordID,
	)
	return run, nil
}

// CompleteRun finalizes the entry as completed.
func (a *ProcessingLogAdapter) CompleteRun(ctx context.Context, runID int64) error {
	result, err := a.db.ExecContext(ctx, queryCompleteRun, time.Now().UTC(), runID)
	if err != nil {
		return fmt.Errorf("complete run %d: %w", runID, err)
	}
	return checkOneRow(result, runID)
}

// FailRun marks the entry failed and records the error message.
func (a *ProcessingLogAdapter) FailRun(ctx context.Context, runID int64, message string) error {
	return a.failRun(ctx, runID, message)
}

func (a *ProcessingLogAdapter) failRun(ctx context.Context, runID int64, message string) error {
	result, err := a.db.ExecContext(ctx, queryFailRun, message, time.Now().UTC(), runID)
	if err != nil {
		return fmt.Errorf("fail run %d: %w", runID, err)
	}
	return checkOneRow(result, runID)
}

// RecentRuns returns the newest log entries, most recent first.
// Serves the admin/ops surface.
func (a *ProcessingLogAdapter) RecentRuns(ctx context.Context, limit int) ([]summary.RunRecord, error) {
	rows, err := a.db.QueryContext(ctx, queryRecentRuns, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent runs: %w", err)
	}
	defer rows.Close()

	var runs []summary.RunRecord
	for rows.Next() {
		run, err := scanRunRecord(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	return runs, nil
}

func scanRunRecord(row scanner) (*summary.RunRecord, error) {
	var run summary.RunRecord
	err := row.Scan(
		&run.ID,
		&run.UID,
		&run.LastProcessedTime,
		&run.LastProcessedRecordID,
		&run.StartedAt,
		&run.HeartbeatAt,
		&run.CompletedAt,
		&run.RecordsProcessed,
		&run.Status,
		&run.ErrorMessage,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan processing_log row: %w", err)
	}
	return &run, nil
}

func checkOneRow(result sql.Result, runID int64) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check update of run %d: %w", runID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("processing_log row missing (run=%d)", runID)
	}
	return nil
}
