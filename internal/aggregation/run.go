package aggregation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ea7klk/bm-lh-react-sub000/internal/core/storage"
	"github.com/ea7klk/bm-lh-react-sub000/internal/core/summary"
)

const (
	defaultBatchSize     = 5000
	defaultStaleRunAfter = 10 * time.Minute

	failRunTimeout = 10 * time.Second
)

// ErrRunSkipped is returned by Run when another run is already in progress
// and its heartbeat is fresh. Advisory: the scheduler treats it as a no-op.
var ErrRunSkipped = errors.New("aggregation run skipped: another run in progress")

// RunnerOptions controls throughput and the concurrency guard.
// Batch size only affects commit granularity, never correctness.
type RunnerOptions struct {
	BatchSize     int
	StaleRunAfter time.Duration
}

// DefaultRunnerOptions returns safe defaults for cron-based processing.
func DefaultRunnerOptions() RunnerOptions {
	return RunnerOptions{
		BatchSize:     defaultBatchSize,
		StaleRunAfter: defaultStaleRunAfter,
	}
}

func (o RunnerOptions) normalized() RunnerOptions {
	n := o
	if n.BatchSize <= 0 {
		n.BatchSize = defaultBatchSize
	}
	if n.StaleRunAfter <= 0 {
		n.StaleRunAfter = defaultStaleRunAfter
	}
	return n
}

// RunResult reports what one invocation of the run loop did.
type RunResult struct {
	RunID            int64
	Batches          int
	RecordsProcessed int64
	Cursor           summary.Cursor
}

// Runner executes the incremental aggregation loop: read cursor, fetch a
// bounded batch, fold it into hourly partials, merge + advance atomically,
// repeat until a fetch comes back empty.
type Runner struct {
	events    storage.EventStore
	summaries SummaryStore
	log       ProcessingLog
	opts      RunnerOptions
	nowFn     func() time.Time
}

// NewRunner wires a runner from its three storage dependencies.
func NewRunner(events storage.EventStore, summaries SummaryStore, log ProcessingLog, opts RunnerOptions) *Runner {
	return &Runner{
		events:    events,
		summaries: summaries,
		log:       log,
		opts:      opts.normalized(),
		nowFn:     func() time.Time { return time.Now().UTC() },
	}
}

// RunIncrementalAggregation processes all events since the last checkpoint
// with default options. Safe to call repeatedly: with nothing new it
// completes immediately without touching the summary table.
func RunIncrementalAggregation(
	ctx context.Context,
	events storage.EventStore,
	summaries SummaryStore,
	log ProcessingLog,
) (*RunResult, error) {
	return NewRunner(events, summaries, log, DefaultRunnerOptions()).Run(ctx)
}

// Run executes one aggregation run. Cancellation is honored between batches
// only: a batch's fetch+fold+merge is an uninterruptible unit so readers
// never observe a partially merged batch.
func (r *Runner) Run(ctx context.Context) (*RunResult, error) {
	if err := r.guardConcurrentRun(ctx); err != nil {
		return nil, err
	}

	cursor, err := r.log.LatestCursor(ctx)
	if err != nil {
		return nil, fmt.Errorf("derive cursor: %w", err)
	}

	run, err := r.log.StartRun(ctx, cursor)
	if err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}

	slog.Info("[Runner] Starting aggregation run",
		"run_id", run.ID,
		"run_uid", run.UID,
		"cursor_timestamp", cursor.LastTimestamp,
		"cursor_record_id", cursor.LastRecordID,
		"batch_size", r.opts.BatchSize,
	)

	result := &RunResult{RunID: run.ID, Cursor: cursor}

	for {
		select {
		case <-ctx.Done():
			r.failRun(run.ID, fmt.Sprintf("run cancelled between batches: %v", ctx.Err()))
			return result, ctx.Err()
		default:
		}

		events, err := r.events.FetchBatchAfter(ctx, result.Cursor, r.opts.BatchSize)
		if err != nil {
			r.failRun(run.ID, fmt.Sprintf("fetch batch: %v", err))
			return result, fmt.Errorf("fetch batch: %w", err)
		}

		if len(events) == 0 {
			if err := r.log.CompleteRun(ctx, run.ID); err != nil {
				return result, fmt.Errorf("complete run: %w", err)
			}
			slog.Info("[Runner] Run complete",
				"run_id", run.ID,
				"batches", result.Batches,
				"records_processed", result.RecordsProcessed,
				"cursor_timestamp", result.Cursor.LastTimestamp,
				"cursor_record_id", result.Cursor.LastRecordID,
			)
			return result, nil
		}

		partials := summary.AggregateByHour(events, r.nowFn())
		if err := validatePartials(partials); err != nil {
			r.failRun(run.ID, err.Error())
			return result, err
		}

		last := events[len(events)-1]
		newCursor := summary.Cursor{LastTimestamp: last.Start, LastRecordID: last.ID}

		if err := r.summaries.MergeBatch(ctx, run.ID, partials, newCursor, int64(len(events))); err != nil {
			r.failRun(run.ID, fmt.Sprintf("merge batch: %v", err))
			return result, fmt.Errorf("merge batch: %w", err)
		}

		result.Cursor = newCursor
		result.Batches++
		result.RecordsProcessed += int64(len(events))

		slog.Info("[Runner] Batch merged",
			"run_id", run.ID,
			"events", len(events),
			"groups", len(partials),
			"cursor_timestamp", newCursor.LastTimestamp,
			"cursor_record_id", newCursor.LastRecordID,
		)
	}
}

// guardConcurrentRun enforces the single-active-run rule. A fresh in_progress
// entry means another runner owns the watermark: skip. A stale one is an
// orphan from a crashed run and is abandoned so it cannot block forever.
func (r *Runner) guardConcurrentRun(ctx context.Context) error {
	active, err := r.log.ActiveRun(ctx)
	if err != nil {
		return fmt.Errorf("check active run: %w", err)
	}
	if active == nil {
		return nil
	}

	age := r.nowFn().Sub(active.HeartbeatAt)
	if age < r.opts.StaleRunAfter {
		slog.Info("[Runner] Skipping: run already in progress",
			"active_run_id", active.ID,
			"heartbeat_age", age,
		)
		return ErrRunSkipped
	}

	slog.Warn("[Runner] Abandoning stale run",
		"run_id", active.ID,
		"heartbeat_age", age,
		"stale_after", r.opts.StaleRunAfter,
	)
	if err := r.log.AbandonRun(ctx, active.ID, fmt.Sprintf("abandoned: no heartbeat for %s", age.Truncate(time.Second))); err != nil {
		return fmt.Errorf("abandon stale run: %w", err)
	}
	return nil
}

// validatePartials rejects fold output that violates summary invariants
// before it can reach the durable store.
func validatePartials(partials map[summary.Key]*summary.Summary) error {
	for key, partial := range partials {
		if err := partial.Validate(); err != nil {
			return fmt.Errorf("partial for hour=%d src=%d dst=%d: %w",
				key.HourStart, key.SourceID, key.DestinationID, err)
		}
	}
	return nil
}

// failRun records the failure on the log entry. Uses a fresh context so the
// failure is recorded even when the run's context is already cancelled.
func (r *Runner) failRun(runID int64, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), failRunTimeout)
	defer cancel()

	if err := r.log.FailRun(ctx, runID, message); err != nil {
		slog.Error("[Runner] Failed to record run failure", "run_id", runID, "error", err)
	}
}
