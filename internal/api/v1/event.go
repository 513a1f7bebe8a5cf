package v1

import (
	"fmt"
)

// Event is one completed voice session as reported by the live network feed.
// Rows are immutable once written: the listener inserts them and the
// aggregation pipeline only ever reads them.
type Event struct {
	// ID is assigned by the database at insert time (BIGSERIAL) and is
	// strictly monotonic. Together with Start it forms the total order the
	// aggregation cursor walks.
	ID int64 `json:"id"`

	// SourceID is the DMR ID of the transmitting station.
	SourceID int64 `json:"source_id"`

	// DestinationID is the talkgroup (or private destination) the session
	// was addressed to. This is the primary grouping dimension.
	DestinationID int64 `json:"destination_id"`

	// Display strings from the feed. Any of them may be absent.
	SourceCall      string `json:"source_call,omitempty"`
	SourceName      string `json:"source_name,omitempty"`
	DestinationCall string `json:"destination_call,omitempty"`
	DestinationName string `json:"destination_name,omitempty"`

	// Start and Stop are unix-second timestamps with Stop >= Start.
	Start int64 `json:"start"`
	Stop  int64 `json:"stop"`

	// Duration is Stop - Start, denormalized at insert time.
	Duration int64 `json:"duration"`
}

// Validate ensures the event envelope is complete and internally consistent.
func (e *Event) Validate() error {
	if e.SourceID <= 0 {
		return fmt.Errorf("source_id must be positive")
	}

	if e.DestinationID <= 0 {
		return fmt.Errorf("destination_id must be positive")
	}

	if e.Start <= 0 {
		return fmt.Errorf("start is required")
	}

	if e.Stop < e.Start {
		return fmt.Errorf("stop must not precede start")
	}

	return nil
}
