package reporting

import "time"

// ActivityQueryRequest carries the common time-range parameters. Start and End
// are unix epoch seconds; the range is half-open [start, end).
type ActivityQueryRequest struct {
	Start int64 `form:"start" binding:"required"`
	End   int64 `form:"end" binding:"required"`
	Limit int   `form:"limit"` // leaderboard only; default 50
}

// TalkgroupActivity is one leaderboard entry.
type TalkgroupActivity struct {
	DestinationID   int64  `json:"destination_id"`
	DestinationCall string `json:"destination_call,omitempty"`
	DestinationName string `json:"destination_name,omitempty"`
	TotalCalls      int64  `json:"total_calls"`
	TotalDuration   int64  `json:"total_duration"`
	AvgDuration     int64  `json:"avg_duration"`
	DistinctSources int64  `json:"distinct_sources"`
}

// TalkgroupActivityResponse is the talkgroup leaderboard for a time range.
type TalkgroupActivityResponse struct {
	Start      int64               `json:"start"`
	End        int64               `json:"end"`
	Talkgroups []TalkgroupActivity `json:"talkgroups"`
}

// SourceActivityItem is one source's share of a talkgroup's activity.
type SourceActivityItem struct {
	SourceID      int64  `json:"source_id"`
	SourceCall    string `json:"source_call,omitempty"`
	SourceName    string `json:"source_name,omitempty"`
	TotalCalls    int64  `json:"total_calls"`
	TotalDuration int64  `json:"total_duration"`
	AvgDuration   int64  `json:"avg_duration"`
}

// SourceBreakdownResponse lists the sources active on one talkgroup.
type SourceBreakdownResponse struct {
	DestinationID int64                `json:"destination_id"`
	Start         int64                `json:"start"`
	End           int64                `json:"end"`
	Sources       []SourceActivityItem `json:"sources"`
}

// HourlyBucket is one hour of activity. Hours with no traffic are absent.
type HourlyBucket struct {
	HourStart            int64 `json:"hour_start"`
	HourEnd              int64 `json:"hour_end"`
	TotalCalls           int64 `json:"total_calls"`
	TotalDuration        int64 `json:"total_duration"`
	DistinctDestinations int64 `json:"distinct_destinations"`
}

// HourlyActivityResponse is the per-hour breakdown for a time range,
// optionally scoped to a single talkgroup.
type HourlyActivityResponse struct {
	Start         int64          `json:"start"`
	End           int64          `json:"end"`
	DestinationID *int64         `json:"destination_id,omitempty"`
	Hours         []HourlyBucket `json:"hours"`
}

// RunInfo is one processing-log entry as exposed on the admin surface.
type RunInfo struct {
	RunUID           string     `json:"run_uid"`
	Status           string     `json:"status"`
	CursorTimestamp  int64      `json:"cursor_timestamp"`
	CursorRecordID   int64      `json:"cursor_record_id"`
	StartedAt        time.Time  `json:"started_at"`
	HeartbeatAt      time.Time  `json:"heartbeat_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	RecordsProcessed int64      `json:"records_processed"`
	Error            string     `json:"error,omitempty"`
}

// RunsResponse lists recent aggregation runs, newest first.
type RunsResponse struct {
	Runs []RunInfo `json:"runs"`
}

// StatisticsResponse summarizes the whole summary store.
type StatisticsResponse struct {
	SummaryRows          int64    `json:"summary_rows"`
	TotalCalls           int64    `json:"total_calls"`
	TotalDuration        int64    `json:"total_duration"`
	DistinctDestinations int64    `json:"distinct_destinations"`
	EarliestHour         *int64   `json:"earliest_hour,omitempty"`
	LatestHour           *int64   `json:"latest_hour,omitempty"`
	LastRun              *RunInfo `json:"last_run,omitempty"`
}
