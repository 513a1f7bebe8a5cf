package postgres

// SQL for the last-heard event table, the hourly summary merge, the
// processing log, and the read-side report queries.

const (
	// queryInsertEvent appends one raw voice-session event.
	// RETURNING id feeds the monotonic sequence back for cursor tracking.
	queryInsertEvent = `
		INSERT INTO lastheard_events (
			source_id, destination_id, source_call, source_name,
			destination_call, destination_name, start_time, stop_time, duration
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	// queryFetchBatchAfter is the cursor's keyset scan: strictly after
	// (start_time, id) in that total order. The id tie-break makes events
	// sharing one start second safe across batch boundaries.
	queryFetchBatchAfter = `
		SELECT
			id, source_id, destination_id, source_call, source_name,
			destination_call, destination_name, start_time, stop_time, duration
		FROM lastheard_events
		WHERE start_time > $1 OR (start_time = $1 AND id > $2)
		ORDER BY start_time ASC, id ASC
		LIMIT $3
	`

	// querySelectRunForUpdate locks the run's log row and reads its durable
	// cursor. Locking first enforces monotonic cursor writes: a stale or
	// replayed flush can never overwrite newer durable state.
	querySelectRunForUpdate = `
		SELECT last_processed_timestamp, last_processed_record_id
		FROM processing_log
		WHERE id = $1
		FOR UPDATE
	`

	// queryUpsertSummary merges one partial into its hourly row. Counters
	// are additive, extrema combine via LEAST/GREATEST (SQL NULL gives the
	// absent/adopt rule for free), display fields are last-writer-wins, and
	// the average is recomputed from the post-merge totals.
	queryUpsertSummary = `
		INSERT INTO hourly_summaries (
			hour_start, hour_end, source_id, destination_id,
			source_call, source_name, destination_call, destination_name,
			total_calls, total_duration, avg_duration,
			min_duration, max_duration, first_call_start, last_call_start, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (hour_start, source_id, destination_id)
		DO UPDATE SET
			total_calls      = hourly_summaries.total_calls + EXCLUDED.total_calls,
			total_duration   = hourly_summaries.total_duration + EXCLUDED.total_duration,
			avg_duration     = COALESCE(ROUND(
				(hourly_summaries.total_duration + EXCLUDED.total_duration)::numeric /
				NULLIF(hourly_summaries.total_calls + EXCLUDED.total_calls, 0)
			), 0)::bigint,
			min_duration     = LEAST(hourly_summaries.min_duration, EXCLUDED.min_duration),
			max_duration     = GREATEST(hourly_summaries.max_duration, EXCLUDED.max_duration),
			first_call_start = LEAST(hourly_summaries.first_call_start, EXCLUDED.first_call_start),
			last_call_start  = GREATEST(hourly_summaries.last_call_start, EXCLUDED.last_call_start),
			source_call      = EXCLUDED.source_call,
			source_name      = EXCLUDED.source_name,
			destination_call = EXCLUDED.destination_call,
			destination_name = EXCLUDED.destination_name,
			updated_at       = EXCLUDED.updated_at
	`

	// queryAdvanceRun writes the batch's cursor and counters onto the run's
	// log row — same transaction as the upserts. heartbeat_at doubles as the
	// staleness signal for the concurrency guard.
	queryAdvanceRun = `
		UPDATE processing_log
		SET last_processed_timestamp = $1,
			last_processed_record_id = $2,
			records_processed = records_processed + $3,
			heartbeat_at = $4
		WHERE id = $5
	`

	queryLatestCursor = `
		SELECT last_processed_timestamp, last_processed_record_id
		FROM processing_log
		ORDER BY last_processed_timestamp DESC, last_processed_record_id DESC
		LIMIT 1
	`

	queryActiveRun = `
		SELECT
			id, run_uid, last_processed_timestamp, last_processed_record_id,
			processing_started_at, heartbeat_at, processing_completed_at,
			records_processed, status, error_message
		FROM processing_log
		WHERE status = 'in_progress'
		ORDER BY id DESC
		LIMIT 1
	`

	queryStartRun = `
		INSERT INTO processing_log (
			run_uid, last_processed_timestamp, last_processed_record_id,
			processing_started_at, heartbeat_at, records_processed, status
		)
		VALUES ($1, $2, $3, $4, $4, 0, 'in_progress')
		RETURNING id
	`

	queryCompleteRun = `
		UPDATE processing_log
		SET status = 'completed', processing_completed_at = $1, heartbeat_at = $1
		WHERE id = $2
	`

	queryFailRun = `
		UPDATE processing_log
		SET status = 'failed', error_message = $1, processing_completed_at = $2
		WHERE id = $3
	`

	queryRecentRuns = `
		SELECT
			id, run_uid, last_processed_timestamp, last_processed_record_id,
			processing_started_at, heartbeat_at, processing_completed_at,
			records_processed, status, error_message
		FROM processing_log
		ORDER BY id DESC
		LIMIT $1
	`

	// queryActivityByDestination is the talkgroup leaderboard: volume per
	// destination across the range, busiest first.
	queryActivityByDestination = `
		SELECT
			destination_id,
			MAX(COALESCE(destination_call, '')) AS destination_call,
			MAX(COALESCE(destination_name, '')) AS destination_name,
			SUM(total_calls) AS total_calls,
			SUM(total_duration) AS total_duration,
			COUNT(DISTINCT source_id) AS distinct_sources
		FROM hourly_summaries
		WHERE hour_start >= $1 AND hour_start < $2
		GROUP BY destination_id
		ORDER BY SUM(total_calls) DESC, destination_id ASC
		LIMIT $3
	`

	querySourcesByDestination = `
		SELECT
			source_id,
			MAX(COALESCE(source_call, '')) AS source_call,
			MAX(COALESCE(source_name, '')) AS source_name,
			SUM(total_calls) AS total_calls,
			SUM(total_duration) AS total_duration
		FROM hourly_summaries
		WHERE destination_id = $1 AND hour_start >= $2 AND hour_start < $3
		GROUP BY source_id
		ORDER BY SUM(total_calls) DESC, source_id ASC
	`

	queryHourlyBreakdown = `
		SELECT
			hour_start,
			SUM(total_calls) AS total_calls,
			SUM(total_duration) AS total_duration,
			COUNT(DISTINCT destination_id) AS distinct_destinations
		FROM hourly_summaries
		WHERE hour_start >= $1 AND hour_start < $2
		GROUP BY hour_start
		ORDER BY hour_start ASC
	`

	queryHourlyBreakdownForDestination = `
		SELECT
			hour_start,
			SUM(total_calls) AS total_calls,
			SUM(total_duration) AS total_duration,
			COUNT(DISTINCT destination_id) AS distinct_destinations
		FROM hourly_summaries
		WHERE hour_start >= $1 AND hour_start < $2 AND destination_id = $3
		GROUP BY hour_start
		ORDER BY hour_start ASC
	`

	queryStoreStatistics = `
		SELECT
			COUNT(*) AS summary_rows,
			COALESCE(SUM(total_calls), 0) AS total_calls,
			COALESCE(SUM(total_duration), 0) AS total_duration,
			COUNT(DISTINCT destination_id) AS distinct_destinations,
			MIN(hour_start) AS earliest_hour,
			MAX(hour_start) AS latest_hour
		FROM hourly_summaries
	`
)
