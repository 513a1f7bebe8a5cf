package postgres

import (
	"database/sql"
	"fmt"

	v1 "github.com/ea7klk/bm-lh-react-sub000/internal/api/v1"
)

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanEventRow scans a database row into an Event. Display columns are
// nullable; NULL becomes the empty string on the record.
// Compatible with both sql.Row (single) and sql.Rows (multiple).
func scanEventRow(row scanner) (*v1.Event, error) {
	var evt v1.Event
	var sourceCall, sourceName, destinationCall, destinationName sql.NullString

	err := row.Scan(
		&evt.ID,
		&evt.SourceID,
		&evt.DestinationID,
		&sourceCall,
		&sourceName,
		&destinationCall,
		&destinationName,
		&evt.Start,
		&evt.Stop,
		&evt.Duration,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan event row: %w", err)
	}

	evt.SourceCall = sourceCall.String
	evt.SourceName = sourceName.String
	evt.DestinationCall = destinationCall.String
	evt.DestinationName = destinationName.String

	return &evt, nil
}

// nullString maps the empty string to SQL NULL so absent display fields stay
// absent in storage instead of becoming empty strings.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
