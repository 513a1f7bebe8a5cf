package aggregation

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	v1 "github.com/ea7klk/bm-lh-react-sub000/internal/api/v1"
	"github.com/ea7klk/bm-lh-react-sub000/internal/core/summary"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEventStore serves events in (start, id) order using the cursor
// predicate, like the postgres adapter does with its keyset query.
type fakeEventStore struct {
	events []*v1.Event
}

func (f *fakeEventStore) InsertEvent(ctx context.Context, event *v1.Event) error {
	event.ID = int64(len(f.events) + 1)
	f.events = append(f.events, event)
	return nil
}

func (f *fakeEventStore) FetchBatchAfter(ctx context.Context, cursor summary.Cursor, limit int) ([]*v1.Event, error) {
	var result []*v1.Event
	for _, evt := range f.events {
		if cursor.Precedes(evt.Start, evt.ID) {
			result = append(result, evt)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Start != result[j].Start {
			return result[i].Start < result[j].Start
		}
		return result[i].ID < result[j].ID
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// fakeProcessingLog keeps run records in memory and derives the cursor the
// same way the postgres adapter does: max durable watermark over all rows.
type fakeProcessingLog struct {
	runs []*summary.RunRecord
	now  func() time.Time
}

func (f *fakeProcessingLog) LatestCursor(ctx context.Context) (summary.Cursor, error) {
	var best summary.Cursor
	for _, run := range f.runs {
		if run.Cursor().After(best) {
			best = run.Cursor()
		}
	}
	return best, nil
}

func (f *fakeProcessingLog) ActiveRun(ctx context.Context) (*summary.RunRecord, error) {
	for i := len(f.runs) - 1; i >= 0; i-- {
		if f.runs[i].Status == summary.RunInProgress {
			return f.runs[i], nil
		}
	}
	return nil, nil
}

func (f *fakeProcessingLog) AbandonRun(ctx context.Context, runID int64, reason string) error {
	return f.finish(runID, summary.RunFailed, reason)
}

func (f *fakeProcessingLog) StartRun(ctx context.Context, cursor summary.Cursor) (*summary.RunRecord, error) {
	run := &summary.RunRecord{
		ID:                    int64(len(f.runs) + 1),
		UID:                   uuid.NewString(),
		LastProcessedTime:     cursor.LastTimestamp,
		LastProcessedRecordID: cursor.LastRecordID,
		StartedAt:             f.now(),
		HeartbeatAt:           f.now(),
		Status:                summary.RunInProgress,
	}
	f.runs = append(f.runs, run)
	return run, nil
}

func (f *fakeProcessingLog) CompleteRun(ctx context.Context, runID int64) error {
	return f.finish(runID, summary.RunCompleted, "")
}

func (f *fakeProcessingLog) FailRun(ctx context.Context, runID int64, message string) error {
	return f.finish(runID, summary.RunFailed, message)
}

func (f *fakeProcessingLog) finish(runID int64, status, message string) error {
	for _, run := range f.runs {
		if run.ID == runID {
			run.Status = status
			if message != "" {
				run.ErrorMessage.String = message
				run.ErrorMessage.Valid = true
			}
			run.CompletedAt.Time = f.now()
			run.CompletedAt.Valid = true
			return nil
		}
	}
	return fmt.Errorf("run %d not found", runID)
}

// fakeSummaryStore mirrors the postgres MergeBatch contract: upsert the
// partials and advance the run row's cursor/counters as one unit, rejecting
// stale cursors.
type fakeSummaryStore struct {
	summaries map[summary.Key]*summary.Summary
	log       *fakeProcessingLog
	now       func() time.Time

	merges      int
	failAtMerge int // 1-based merge call to fail on; 0 disables
}

func (f *fakeSummaryStore) MergeBatch(
	ctx context.Context,
	runID int64,
	partials map[summary.Key]*summary.Summary,
	cursor summary.Cursor,
	eventCount int64,
) error {
	f.merges++
	if f.failAtMerge > 0 && f.merges == f.failAtMerge {
		return fmt.Errorf("injected storage failure")
	}

	var run *summary.RunRecord
	for _, r := range f.log.runs {
		if r.ID == runID {
			run = r
		}
	}
	if run == nil {
		return fmt.Errorf("run %d not found", runID)
	}
	if !cursor.After(run.Cursor()) {
		return fmt.Errorf("stale cursor")
	}

	for key, partial := range partials {
		existing, ok := f.summaries[key]
		if !ok {
			clone := *partial
			f.summaries[key] = &clone
			continue
		}
		summary.Merge(existing, partial, f.now())
	}

	run.LastProcessedTime = cursor.LastTimestamp
	run.LastProcessedRecordID = cursor.LastRecordID
	run.RecordsProcessed += eventCount
	run.HeartbeatAt = f.now()
	return nil
}

func newFixture() (*fakeEventStore, *fakeSummaryStore, *fakeProcessingLog) {
	now := func() time.Time { return time.Now().UTC() }
	events := &fakeEventStore{}
	log := &fakeProcessingLog{now: now}
	store := &fakeSummaryStore{summaries: make(map[summary.Key]*summary.Summary), log: log, now: now}
	return events, store, log
}

func testEvent(id, start, stop, src, dst int64) *v1.Event {
	return &v1.Event{ID: id, SourceID: src, DestinationID: dst, Start: start, Stop: stop, Duration: stop - start}
}

func TestRunner_NoEvents(t *testing.T) {
	events, store, log := newFixture()

	result, err := RunIncrementalAggregation(context.Background(), events, store, log)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Batches)
	assert.Equal(t, int64(0), result.RecordsProcessed)
	assert.Empty(t, store.summaries)

	require.Len(t, log.runs, 1)
	assert.Equal(t, summary.RunCompleted, log.runs[0].Status)
}

func TestRunner_ConcreteScenario(t *testing.T) {
	events, store, log := newFixture()
	events.events = []*v1.Event{
		testEvent(1, 100, 110, 5, 9000),
		testEvent(2, 200, 230, 5, 9000),
		testEvent(3, 5000, 5000, 5, 9000),
	}

	result, err := RunIncrementalAggregation(context.Background(), events, store, log)
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.RecordsProcessed)
	assert.Equal(t, summary.Cursor{LastTimestamp: 5000, LastRecordID: 3}, result.Cursor)

	s := store.summaries[summary.Key{HourStart: 0, SourceID: 5, DestinationID: 9000}]
	require.NotNil(t, s)
	assert.Equal(t, int64(3), s.TotalCalls)
	assert.Equal(t, int64(40), s.TotalDuration)
	assert.Equal(t, int64(13), s.AvgDuration)
	assert.Equal(t, int64(10), s.MinDuration.Int64)
	assert.Equal(t, int64(30), s.MaxDuration.Int64)
	assert.Equal(t, int64(100), s.FirstCallStart.Int64)
	assert.Equal(t, int64(5000), s.LastCallStart.Int64)
}

func TestRunner_Idempotence(t *testing.T) {
	events, store, log := newFixture()
	events.events = []*v1.Event{
		testEvent(1, 100, 110, 5, 9000),
		testEvent(2, 200, 230, 5, 9000),
	}

	_, err := RunIncrementalAggregation(context.Background(), events, store, log)
	require.NoError(t, err)

	key := summary.Key{HourStart: 0, SourceID: 5, DestinationID: 9000}
	before := *store.summaries[key]
	cursorBefore, err := log.LatestCursor(context.Background())
	require.NoError(t, err)

	// No new events: second invocation must be a no-op.
	result, err := RunIncrementalAggregation(context.Background(), events, store, log)
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.RecordsProcessed)

	after := *store.summaries[key]
	assert.Equal(t, before.TotalCalls, after.TotalCalls)
	assert.Equal(t, before.TotalDuration, after.TotalDuration)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)

	cursorAfter, err := log.LatestCursor(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cursorBefore, cursorAfter)
}

func TestRunner_MultiBatchMatchesSingleBatch(t *testing.T) {
	var all []*v1.Event
	for i := int64(1); i <= 10; i++ {
		all = append(all, testEvent(i, i*400, i*400+i, 5, 9000+(i%2)))
	}

	eventsA, storeA, logA := newFixture()
	eventsA.events = all
	runnerA := NewRunner(eventsA, storeA, logA, RunnerOptions{BatchSize: 4})
	_, err := runnerA.Run(context.Background())
	require.NoError(t, err)

	eventsB, storeB, logB := newFixture()
	eventsB.events = all
	runnerB := NewRunner(eventsB, storeB, logB, RunnerOptions{BatchSize: 100})
	_, err = runnerB.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, len(storeB.summaries), len(storeA.summaries))
	for key, want := range storeB.summaries {
		got := storeA.summaries[key]
		require.NotNil(t, got, "missing group %+v", key)
		assert.Equal(t, want.TotalCalls, got.TotalCalls)
		assert.Equal(t, want.TotalDuration, got.TotalDuration)
		assert.Equal(t, want.AvgDuration, got.AvgDuration)
		assert.Equal(t, want.MinDuration, got.MinDuration)
		assert.Equal(t, want.MaxDuration, got.MaxDuration)
		assert.Equal(t, want.FirstCallStart, got.FirstCallStart)
		assert.Equal(t, want.LastCallStart, got.LastCallStart)
	}
}

func TestRunner_ResumesAfterFailureWithoutGapOrDuplicate(t *testing.T) {
	events, store, log := newFixture()
	for i := int64(1); i <= 10; i++ {
		events.events = append(events.events, testEvent(i, 100+i, 100+i+5, 5, 9000))
	}

	// First run dies on its third merge: batches 1-2 (events 1..6) commit,
	// events 7..10 do not.
	store.failAtMerge = 3
	runner := NewRunner(events, store, log, RunnerOptions{BatchSize: 3})
	_, err := runner.Run(context.Background())
	require.Error(t, err)

	require.Len(t, log.runs, 1)
	assert.Equal(t, summary.RunFailed, log.runs[0].Status)
	assert.Equal(t, int64(6), log.runs[0].RecordsProcessed)

	// Next invocation resumes from the failed run's durable watermark and
	// processes exactly the remaining four events.
	store.failAtMerge = 0
	result, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), result.RecordsProcessed)

	s := store.summaries[summary.Key{HourStart: 0, SourceID: 5, DestinationID: 9000}]
	require.NotNil(t, s)
	assert.Equal(t, int64(10), s.TotalCalls, "all 10 events folded exactly once")
	assert.Equal(t, int64(50), s.TotalDuration)
}

func TestRunner_TieBreakResumption(t *testing.T) {
	events, store, log := newFixture()
	events.events = []*v1.Event{
		testEvent(7, 100, 110, 5, 9000),
		testEvent(8, 100, 112, 5, 9000),
	}

	// Simulate a previous run checkpointed mid-second at (100, 7).
	_, err := log.StartRun(context.Background(), summary.Cursor{})
	require.NoError(t, err)
	log.runs[0].LastProcessedTime = 100
	log.runs[0].LastProcessedRecordID = 7
	require.NoError(t, log.CompleteRun(context.Background(), log.runs[0].ID))

	result, err := RunIncrementalAggregation(context.Background(), events, store, log)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.RecordsProcessed)

	s := store.summaries[summary.Key{HourStart: 0, SourceID: 5, DestinationID: 9000}]
	require.NotNil(t, s)
	assert.Equal(t, int64(1), s.TotalCalls, "id 7 must not be re-processed, id 8 must not be skipped")
	assert.Equal(t, int64(12), s.TotalDuration)
}

func TestRunner_SkipsWhenFreshRunActive(t *testing.T) {
	events, store, log := newFixture()
	events.events = []*v1.Event{testEvent(1, 100, 110, 5, 9000)}

	_, err := log.StartRun(context.Background(), summary.Cursor{})
	require.NoError(t, err)

	_, err = RunIncrementalAggregation(context.Background(), events, store, log)
	require.ErrorIs(t, err, ErrRunSkipped)
	assert.Empty(t, store.summaries)
}

func TestRunner_AbandonsStaleRun(t *testing.T) {
	events, store, log := newFixture()
	events.events = []*v1.Event{testEvent(1, 100, 110, 5, 9000)}

	_, err := log.StartRun(context.Background(), summary.Cursor{})
	require.NoError(t, err)
	log.runs[0].HeartbeatAt = time.Now().UTC().Add(-time.Hour)

	result, err := RunIncrementalAggregation(context.Background(), events, store, log)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.RecordsProcessed)

	assert.Equal(t, summary.RunFailed, log.runs[0].Status)
	require.True(t, log.runs[0].ErrorMessage.Valid)
	assert.Contains(t, log.runs[0].ErrorMessage.String, "abandoned")
	assert.Equal(t, summary.RunCompleted, log.runs[1].Status)
}

func TestRunner_CancelledBetweenBatches(t *testing.T) {
	events, store, log := newFixture()
	events.events = []*v1.Event{testEvent(1, 100, 110, 5, 9000)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RunIncrementalAggregation(ctx, events, store, log)
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, log.runs, 1)
	assert.Equal(t, summary.RunFailed, log.runs[0].Status)
}
