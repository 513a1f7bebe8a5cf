package summary

import (
	"database/sql"
	"time"

	v1 "github.com/ea7klk/bm-lh-react-sub000/internal/api/v1"
	"github.com/shopspring/decimal"
)

// HourFor truncates a unix-second timestamp to its hour bucket boundary.
func HourFor(start int64) int64 {
	return (start / HourSeconds) * HourSeconds
}

// AggregateByHour folds a batch of events into partial summaries keyed by
// (hour bucket, source, destination). The fold is order-independent: folding
// any permutation of the batch, or folding it as several sub-batches merged
// afterwards, yields identical results. That property is what makes the
// upsert merge in the summary store correct across batch boundaries.
func AggregateByHour(events []*v1.Event, now time.Time) map[Key]*Summary {
	partials := make(map[Key]*Summary)

	for _, evt := range events {
		hourStart := HourFor(evt.Start)
		key := Key{
			HourStart:     hourStart,
			SourceID:      evt.SourceID,
			DestinationID: evt.DestinationID,
		}

		s, ok := partials[key]
		if !ok {
			s = &Summary{
				HourStart:     hourStart,
				HourEnd:       hourStart + HourSeconds - 1,
				SourceID:      evt.SourceID,
				DestinationID: evt.DestinationID,
				UpdatedAt:     now,
			}
			partials[key] = s
		}

		foldEvent(s, evt)
	}

	for _, s := range partials {
		s.AvgDuration = RoundedAverage(s.TotalDuration, s.TotalCalls)
	}

	return partials
}

// foldEvent applies one event to a partial summary.
func foldEvent(s *Summary, evt *v1.Event) {
	duration := evt.Duration
	if duration < 0 {
		duration = 0
	}

	s.TotalCalls++
	s.TotalDuration += duration

	// Zero-duration sessions count toward volume but are excluded from the
	// duration extrema so they cannot corrupt "shortest call" statistics.
	if duration > 0 {
		if !s.MinDuration.Valid || duration < s.MinDuration.Int64 {
			s.MinDuration = sql.NullInt64{Int64: duration, Valid: true}
		}
		if !s.MaxDuration.Valid || duration > s.MaxDuration.Int64 {
			s.MaxDuration = sql.NullInt64{Int64: duration, Valid: true}
		}
	}

	if !s.FirstCallStart.Valid || evt.Start < s.FirstCallStart.Int64 {
		s.FirstCallStart = sql.NullInt64{Int64: evt.Start, Valid: true}
	}
	if !s.LastCallStart.Valid || evt.Start > s.LastCallStart.Int64 {
		s.LastCallStart = sql.NullInt64{Int64: evt.Start, Valid: true}
	}

	// Display fields take the newest observed values, overwritten
	// unconditionally so stale call signs don't stick.
	s.SourceCall = evt.SourceCall
	s.SourceName = evt.SourceName
	s.DestinationCall = evt.DestinationCall
	s.DestinationName = evt.DestinationName
}

// RoundedAverage computes round(totalDuration / totalCalls) with half-away-
// from-zero rounding. Returns 0 when the group is empty.
func RoundedAverage(totalDuration, totalCalls int64) int64 {
	if totalCalls <= 0 {
		return 0
	}
	return decimal.NewFromInt(totalDuration).
		Div(decimal.NewFromInt(totalCalls)).
		Round(0).
		IntPart()
}
