package summary

import (
	"database/sql"
	"time"
)

// HourSeconds is the fixed width of a rollup bucket.
const HourSeconds = 3600

// Run status values recorded in the processing log.
const (
	RunInProgress = "in_progress"
	RunCompleted  = "completed"
	RunFailed     = "failed"
)

// Cursor is the aggregation watermark: the highest (start, id) pair known to
// be fully folded into the summary store. It is a view over the processing
// log, not separate mutable state — the authoritative value is derived from
// the log's durable rows.
type Cursor struct {
	LastTimestamp int64
	LastRecordID  int64
}

// Precedes reports whether an event at (start, id) sorts strictly after the
// cursor. The id tie-break makes multiple events sharing one start second
// safe: nothing is re-delivered, nothing is skipped.
func (c Cursor) Precedes(start, id int64) bool {
	if start != c.LastTimestamp {
		return start > c.LastTimestamp
	}
	return id > c.LastRecordID
}

// After reports whether this cursor is strictly ahead of other.
func (c Cursor) After(other Cursor) bool {
	return other.Precedes(c.LastTimestamp, c.LastRecordID)
}

// Key uniquely identifies one hourly rollup row.
type Key struct {
	HourStart     int64
	SourceID      int64
	DestinationID int64
}

// Summary is an hourly rollup for one (hour, source, destination) group.
// A partial Summary is the in-memory fold of a single batch; the durable row
// is produced by merging partials with the combine rules in Merge.
//
// MinDuration/MaxDuration track extrema over events with duration > 0 and
// stay absent (Valid=false) until the first qualifying event. FirstCallStart/
// LastCallStart track start-time extrema over all events unconditionally.
type Summary struct {
	HourStart     int64
	HourEnd       int64
	SourceID      int64
	DestinationID int64

	// Last-known display strings, overwritten on every merge.
	SourceCall      string
	SourceName      string
	DestinationCall string
	DestinationName string

	TotalCalls    int64
	TotalDuration int64
	AvgDuration   int64

	MinDuration    sql.NullInt64
	MaxDuration    sql.NullInt64
	FirstCallStart sql.NullInt64
	LastCallStart  sql.NullInt64

	UpdatedAt time.Time
}

// RunRecord is one processing-log entry: the audit trail of a single
// aggregation run attempt.
type RunRecord struct {
	ID                    int64
	UID                   string
	LastProcessedTime     int64
	LastProcessedRecordID int64
	StartedAt             time.Time
	HeartbeatAt           time.Time
	CompletedAt           sql.NullTime
	RecordsProcessed      int64
	Status                string
	ErrorMessage          sql.NullString
}

// Cursor returns the watermark recorded on this log entry.
func (r RunRecord) Cursor() Cursor {
	return Cursor{LastTimestamp: r.LastProcessedTime, LastRecordID: r.LastProcessedRecordID}
}
