package summary

import "database/sql"

// Read-side projections over the hourly summary table. These are pure
// grouping/summation results; all computation happens in SQL.

// DestinationActivity is one leaderboard row: total volume for a talkgroup
// across a time range, summed over all sources.
type DestinationActivity struct {
	DestinationID   int64
	DestinationCall string
	DestinationName string
	TotalCalls      int64
	TotalDuration   int64
	DistinctSources int64
}

// SourceActivity is one row of the per-destination breakdown: volume for a
// single source within one talkgroup.
type SourceActivity struct {
	SourceID      int64
	SourceCall    string
	SourceName    string
	TotalCalls    int64
	TotalDuration int64
}

// HourlyActivity is one hour bucket of network-wide (or per-destination)
// volume.
type HourlyActivity struct {
	HourStart            int64
	TotalCalls           int64
	TotalDuration        int64
	DistinctDestinations int64
}

// StoreStatistics describes the summary store as a whole, plus the most
// recent processing run so callers can judge data staleness.
type StoreStatistics struct {
	SummaryRows          int64
	TotalCalls           int64
	TotalDuration        int64
	DistinctDestinations int64
	EarliestHour         sql.NullInt64
	LatestHour           sql.NullInt64
	LastRun              *RunRecord
}
