package summary

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrInvariantViolation marks a summary whose internal state could not have
// been produced by a correct fold. Merging such a row would silently corrupt
// statistics, so callers abort the batch instead.
var ErrInvariantViolation = errors.New("summary invariant violation")

// Validate checks the structural invariants a correctly folded summary holds.
func (s *Summary) Validate() error {
	if s.TotalCalls < 0 || s.TotalDuration < 0 {
		return fmt.Errorf("%w: negative totals (calls=%d duration=%d)",
			ErrInvariantViolation, s.TotalCalls, s.TotalDuration)
	}
	if s.TotalCalls > 0 && !s.FirstCallStart.Valid {
		return fmt.Errorf("%w: %d calls but no first_call_start", ErrInvariantViolation, s.TotalCalls)
	}
	if s.TotalCalls > 0 && !s.LastCallStart.Valid {
		return fmt.Errorf("%w: %d calls but no last_call_start", ErrInvariantViolation, s.TotalCalls)
	}
	if s.MinDuration.Valid != s.MaxDuration.Valid {
		return fmt.Errorf("%w: duration extrema half-set", ErrInvariantViolation)
	}
	if s.MinDuration.Valid && s.MinDuration.Int64 > s.MaxDuration.Int64 {
		return fmt.Errorf("%w: min_duration %d exceeds max_duration %d",
			ErrInvariantViolation, s.MinDuration.Int64, s.MaxDuration.Int64)
	}
	return nil
}

// Merge folds the incoming partial into the existing row, following the same
// combine rules the SQL upsert applies: additive counters, min/max extrema
// with absent/adopt/combine semantics, unconditional display overwrite, and
// the average recomputed from post-merge totals.
//
// Merge is commutative and associative over partials but NOT deduplicating:
// folding the same event into two partials double counts. Exactly-once
// delivery is the cursor's job, not the merge's.
func Merge(existing, incoming *Summary, now time.Time) {
	existing.TotalCalls += incoming.TotalCalls
	existing.TotalDuration += incoming.TotalDuration
	existing.AvgDuration = RoundedAverage(existing.TotalDuration, existing.TotalCalls)

	existing.MinDuration = combineMin(existing.MinDuration, incoming.MinDuration)
	existing.MaxDuration = combineMax(existing.MaxDuration, incoming.MaxDuration)
	existing.FirstCallStart = combineMin(existing.FirstCallStart, incoming.FirstCallStart)
	existing.LastCallStart = combineMax(existing.LastCallStart, incoming.LastCallStart)

	existing.SourceCall = incoming.SourceCall
	existing.SourceName = incoming.SourceName
	existing.DestinationCall = incoming.DestinationCall
	existing.DestinationName = incoming.DestinationName

	existing.UpdatedAt = now
}

func combineMin(a, b sql.NullInt64) sql.NullInt64 {
	switch {
	case !a.Valid:
		return b
	case !b.Valid:
		return a
	case b.Int64 < a.Int64:
		return b
	default:
		return a
	}
}

func combineMax(a, b sql.NullInt64) sql.NullInt64 {
	switch {
	case !a.Valid:
		return b
	case !b.Valid:
		return a
	case b.Int64 > a.Int64:
		return b
	default:
		return a
	}
}
