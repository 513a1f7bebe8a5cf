package reporting

import (
	"context"
	"errors"
	"fmt"

	"github.com/ea7klk/bm-lh-react-sub000/internal/core/summary"
)

const (
	maxRangeSeconds = 366 * 24 * 3600

	defaultLeaderboardLimit = 50
	maxLeaderboardLimit     = 500

	defaultRunsLimit = 20
	maxRunsLimit     = 100
)

// ErrInvalidQuery marks request validation errors that should return HTTP 400.
var ErrInvalidQuery = errors.New("invalid activity query")

// ReportStore is the read-side storage the reporting service queries.
// All methods operate on the summary rollups, never on raw events.
type ReportStore interface {
	ActivityByDestination(ctx context.Context, start, end int64, limit int) ([]summary.DestinationActivity, error)
	SourcesByDestination(ctx context.Context, destinationID, start, end int64) ([]summary.SourceActivity, error)
	HourlyBreakdown(ctx context.Context, start, end int64, destinationID *int64) ([]summary.HourlyActivity, error)
	Statistics(ctx context.Context) (*summary.StoreStatistics, error)
	RecentRuns(ctx context.Context, limit int) ([]summary.RunRecord, error)
}

// Service implements the reporting/query layer over the hourly rollups.
type Service struct {
	store ReportStore
}

// NewService creates a new reporting service.
func NewService(store ReportStore) *Service {
	return &Service{store: store}
}

// TalkgroupLeaderboard returns the busiest talkgroups in [start, end).
func (s *Service) TalkgroupLeaderboard(ctx context.Context, req ActivityQueryRequest) (*TalkgroupActivityResponse, error) {
	if err := validateRange(req.Start, req.End); err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit == 0 {
		limit = defaultLeaderboardLimit
	}
	if limit < 1 || limit > maxLeaderboardLimit {
		return nil, invalidQueryf("limit must be between 1 and %d", maxLeaderboardLimit)
	}

	rows, err := s.store.ActivityByDestination(ctx, req.Start, req.End, limit)
	if err != nil {
		return nil, fmt.Errorf("query talkgroup leaderboard: %w", err)
	}

	talkgroups := make([]TalkgroupActivity, 0, len(rows))
	for _, row := range rows {
		talkgroups = append(talkgroups, TalkgroupActivity{
			DestinationID:   row.DestinationID,
			DestinationCall: row.DestinationCall,
			DestinationName: row.DestinationName,
			TotalCalls:      row.TotalCalls,
			TotalDuration:   row.TotalDuration,
			AvgDuration:     summary.RoundedAverage(row.TotalDuration, row.TotalCalls),
			DistinctSources: row.DistinctSources,
		})
	}

	return &TalkgroupActivityResponse{
		Start:      req.Start,
		End:        req.End,
		Talkgroups: talkgroups,
	}, nil
}

// SourcesForTalkgroup breaks one talkgroup's activity down per source.
func (s *Service) SourcesForTalkgroup(ctx context.Context, destinationID int64, req ActivityQueryRequest) (*SourceBreakdownResponse, error) {
	if destinationID <= 0 {
		return nil, invalidQueryf("destination_id must be positive")
	}
	if err := validateRange(req.Start, req.End); err != nil {
		return nil, err
	}

	rows, err := s.store.SourcesByDestination(ctx, destinationID, req.Start, req.End)
	if err != nil {
		return nil, fmt.Errorf("query sources for talkgroup %d: %w", destinationID, err)
	}

	sources := make([]SourceActivityItem, 0, len(rows))
	for _, row := range rows {
		sources = append(sources, SourceActivityItem{
			SourceID:      row.SourceID,
			SourceCall:    row.SourceCall,
			SourceName:    row.SourceName,
			TotalCalls:    row.TotalCalls,
			TotalDuration: row.TotalDuration,
			AvgDuration:   summary.RoundedAverage(row.TotalDuration, row.TotalCalls),
		})
	}

	return &SourceBreakdownResponse{
		DestinationID: destinationID,
		Start:         req.Start,
		End:           req.End,
		Sources:       sources,
	}, nil
}

// HourlyActivity returns per-hour buckets in [start, end), optionally scoped
// to one talkgroup.
func (s *Service) HourlyActivity(ctx context.Context, req ActivityQueryRequest, destinationID *int64) (*HourlyActivityResponse, error) {
	if err := validateRange(req.Start, req.End); err != nil {
		return nil, err
	}
	if destinationID != nil && *destinationID <= 0 {
		return nil, invalidQueryf("destination_id must be positive")
	}

	rows, err := s.store.HourlyBreakdown(ctx, req.Start, req.End, destinationID)
	if err != nil {
		return nil, fmt.Errorf("query hourly breakdown: %w", err)
	}

	hours := make([]HourlyBucket, 0, len(rows))
	for _, row := range rows {
		hours = append(hours, HourlyBucket{
			HourStart:            row.HourStart,
			HourEnd:              row.HourStart + summary.HourSeconds - 1,
			TotalCalls:           row.TotalCalls,
			TotalDuration:        row.TotalDuration,
			DistinctDestinations: row.DistinctDestinations,
		})
	}

	return &HourlyActivityResponse{
		Start:         req.Start,
		End:           req.End,
		DestinationID: destinationID,
		Hours:         hours,
	}, nil
}

// RecentRuns lists the newest processing-log entries.
func (s *Service) RecentRuns(ctx context.Context, limit int) (*RunsResponse, error) {
	if limit == 0 {
		limit = defaultRunsLimit
	}
	if limit < 1 || limit > maxRunsLimit {
		return nil, invalidQueryf("limit must be between 1 and %d", maxRunsLimit)
	}

	records, err := s.store.RecentRuns(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent runs: %w", err)
	}

	runs := make([]RunInfo, 0, len(records))
	for i := range records {
		runs = append(runs, runInfoFrom(&records[i]))
	}

	return &RunsResponse{Runs: runs}, nil
}

// Statistics returns store-wide totals plus the latest run.
func (s *Service) Statistics(ctx context.Context) (*StatisticsResponse, error) {
	stats, err := s.store.Statistics(ctx)
	if err != nil {
		return nil, fmt.Errorf("query store statistics: %w", err)
	}

	resp := &StatisticsResponse{
		SummaryRows:          stats.SummaryRows,
		TotalCalls:           stats.TotalCalls,
		TotalDuration:        stats.TotalDuration,
		DistinctDestinations: stats.DistinctDestinations,
	}
	if stats.EarliestHour.Valid {
		resp.EarliestHour = &stats.EarliestHour.Int64
	}
	if stats.LatestHour.Valid {
		resp.LatestHour = &stats.LatestHour.Int64
	}
	if stats.LastRun != nil {
		info := runInfoFrom(stats.LastRun)
		resp.LastRun = &info
	}

	return resp, nil
}

func runInfoFrom(record *summary.RunRecord) RunInfo {
	info := RunInfo{
		RunUID:           record.UID,
		Status:           record.Status,
		CursorTimestamp:  record.LastProcessedTime,
		CursorRecordID:   record.LastProcessedRecordID,
		StartedAt:        record.StartedAt,
		HeartbeatAt:      record.HeartbeatAt,
		RecordsProcessed: record.RecordsProcessed,
	}
	if record.CompletedAt.Valid {
		completed := record.CompletedAt.Time
		info.CompletedAt = &completed
	}
	if record.ErrorMessage.Valid {
		info.Error = record.ErrorMessage.String
	}
	return info
}

func validateRange(start, end int64) error {
	if start < 0 {
		return invalidQueryf("start must not be negative")
	}
	if end <= start {
		return invalidQueryf("end must be after start")
	}
	if end-start > maxRangeSeconds {
		return invalidQueryf("time range must not exceed 366 days")
	}
	return nil
}

func invalidQueryf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidQuery, fmt.Sprintf(format, args...))
}
