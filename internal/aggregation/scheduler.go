package aggregation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ea7klk/bm-lh-react-sub000/internal/core/storage"
)

const shutdownDrainTimeout = 30 * time.Second

// Scheduler invokes the incremental aggregation run on a fixed interval.
// It is stateless: each tick independently resumes from the durable cursor,
// and the run loop itself drains the whole backlog batch by batch.
type Scheduler struct {
	interval time.Duration
	runner   *Runner
}

// NewScheduler creates a periodic scheduler around a runner.
func NewScheduler(interval time.Duration, events storage.EventStore, summaries SummaryStore, log ProcessingLog, opts RunnerOptions) *Scheduler {
	return &Scheduler{
		interval: interval,
		runner:   NewRunner(events, summaries, log, opts),
	}
}

// Start begins periodic aggregation and blocks until the context is
// cancelled. A final catch-up run happens on shutdown so events ingested
// during the last interval are not left unaggregated longer than needed.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("[Scheduler] Starting aggregation scheduler", "interval", s.interval)

	// Initial run to catch up with any backlog from downtime.
	s.runOnce(ctx)

	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx)
		case <-ctx.Done():
			slog.Info("[Scheduler] Stopping (context cancelled)")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownDrainTimeout)
			defer cancel()

			slog.Info("[Scheduler] Running final drain before shutdown...")
			s.runOnce(shutdownCtx)
			slog.Info("[Scheduler] Final drain complete")

			return nil
		}
	}
}

// runOnce executes one run and logs the outcome. Errors are not propagated:
// the failed run is recorded in the processing log and the next tick retries
// from the last durable checkpoint.
func (s *Scheduler) runOnce(ctx context.Context) {
	result, err := s.runner.Run(ctx)
	if err != nil {
		if errors.Is(err, ErrRunSkipped) {
			return
		}
		slog.Error("[Scheduler] Aggregation run failed", "error", err)
		return
	}

	if result.RecordsProcessed > 0 {
		slog.Info("[Scheduler] Aggregation run finished",
			"run_id", result.RunID,
			"batches", result.Batches,
			"records_processed", result.RecordsProcessed,
		)
	}
}
