package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ea7klk/bm-lh-react-sub000/internal/core/summary"
)

// ReportAdapter serves the read side: grouped queries over hourly_summaries.
// It never touches raw events — reports scale with the number of summary
// rows, not with event volume.
type ReportAdapter struct {
	db  *sql.DB
	log *ProcessingLogAdapter
}

// NewReportAdapter creates a ReportAdapter sharing the given connection.
func NewReportAdapter(db *sql.DB) *ReportAdapter {
	return &ReportAdapter{db: db, log: NewProcessingLogAdapter(db)}
}

// ActivityByDestination returns the busiest talkgroups for [start, end),
// at most limit rows, ordered by total calls descending.
func (a *ReportAdapter) ActivityByDestination(ctx context.Context, start, end int64, limit int) ([]summary.DestinationActivity, error) {
	rows, err := a.db.QueryContext(ctx, queryActivityByDestination, start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("query activity by destination: %w", err)
	}
	defer rows.Close()

	var activities []summary.DestinationActivity
	for rows.Next() {
		var row summary.DestinationActivity
		err := rows.Scan(
			&row.DestinationID,
			&row.DestinationCall,
			&row.DestinationName,
			&row.TotalCalls,
			&row.TotalDuration,
			&row.DistinctSources,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan destination activity row: %w", err)
		}
		activities = append(activities, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate destination activity: %w", err)
	}

	return activities, nil
}

// SourcesByDestination breaks one talkgroup's activity down per source
// for [start, end), most active source first.
func (a *ReportAdapter) SourcesByDestination(ctx context.Context, destinationID, start, end int64) ([]summary.SourceActivity, error) {
	rows, err := a.db.QueryContext(ctx, querySourcesByDestination, destinationID, start, end)
	if err != nil {
		return nil, fmt.Errorf("query sources for destination %d: %w", destinationID, err)
	}
	defer rows.Close()

	var activities []summary.SourceActivity
	for rows.Next() {
		var row summary.SourceActivity
		err := rows.Scan(
			&row.SourceID,
			&row.SourceCall,
			&row.SourceName,
			&row.TotalCalls,
			&row.TotalDuration,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source activity row: %w", err)
		}
		activities = append(activities, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate source activity: %w", err)
	}

	return activities, nil
}

// HourlyBreakdown returns per-hour volume for [start, end). A non-nil
// destinationID restricts the breakdown to that talkgroup. Hours with no
// summary rows are simply absent.
func (a *ReportAdapter) HourlyBreakdown(ctx context.Context, start, end int64, destinationID *int64) ([]summary.HourlyActivity, error) {
	var rows *sql.Rows
	var err error
	if destinationID != nil {
		rows, err = a.db.QueryContext(ctx, queryHourlyBreakdownForDestination, start, end, *destinationID)
	} else {
		rows, err = a.db.QueryContext(ctx, queryHourlyBreakdown, start, end)
	}
	if err != nil {
		return nil, fmt.Errorf("query hourly breakdown: %w", err)
	}
	defer rows.Close()

	var buckets []summary.HourlyActivity
	for rows.Next() {
		var row summary.HourlyActivity
		err := rows.Scan(
			&row.HourStart,
			&row.TotalCalls,
			&row.TotalDuration,
			&row.DistinctDestinations,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan hourly activity row: %w", err)
		}
		buckets = append(buckets, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hourly breakdown: %w", err)
	}

	return buckets, nil
}

// Statistics returns store-wide totals plus the most recent processing run.
// LastRun is nil on a virgin database.
func (a *ReportAdapter) Statistics(ctx context.Context) (*summary.StoreStatistics, error) {
	var stats summary.StoreStatistics
	err := a.db.QueryRowContext(ctx, queryStoreStatistics).Scan(
		&stats.SummaryRows,
		&stats.TotalCalls,
		&stats.TotalDuration,
		&stats.DistinctDestinations,
		&stats.EarliestHour,
		&stats.LatestHour,
	)
	if err != nil {
		return nil, fmt.Errorf("query store statistics: %w", err)
	}

	runs, err := a.log.RecentRuns(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) > 0 {
		stats.LastRun = &runs[0]
	}

	return &stats, nil
}

// RecentRuns exposes the processing log for the admin surface.
func (a *ReportAdapter) RecentRuns(ctx context.Context, limit int) ([]summary.RunRecord, error) {
	return a.log.RecentRuns(ctx, limit)
}
