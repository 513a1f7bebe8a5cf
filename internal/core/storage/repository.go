package storage

import (
	"context"

	v1 "github.com/ea7klk/bm-lh-react-sub000/internal/api/v1"
	"github.com/ea7klk/bm-lh-react-sub000/internal/core/summary"
)

// EventStore defines the interface for persisting and scanning raw
// voice-session events.
type EventStore interface {
	// InsertEvent appends one event and populates event.ID from the
	// database sequence.
	InsertEvent(ctx context.Context, event *v1.Event) error

	// FetchBatchAfter returns at most limit events strictly after the cursor
	// in (start, id) ascending order. The id tie-break handles events that
	// share a start second without re-delivery or gaps. An empty result is
	// the batch loop's termination signal, not an error.
	FetchBatchAfter(ctx context.Context, cursor summary.Cursor, limit int) ([]*v1.Event, error)
}
