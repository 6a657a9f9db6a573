package store

import (
	"database/sql"
	"fmt"

	"github.com/BTreeMap/CallPipe/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// scanTurn scans a TurnRecord from sql.Rows.
func scanTurn(rows *sql.Rows) (models.TurnRecord, error) {
	var rec models.TurnRecord
	err := rows.Scan(
		&rec.ID, &rec.Caller, &rec.Sequence, &rec.Label,
		&rec.UserText, &rec.ReplyText, &rec.Sentiment, &rec.Time,
	)
	if err != nil {
		return rec, fmt.Errorf("scan turn failed: %w", err)
	}
	return rec, nil
}

// scanSessionEvent scans a SessionEvent from sql.Rows.
func scanSessionEvent(rows *sql.Rows) (models.SessionEvent, error) {
	var ev models.SessionEvent
	var reason sql.NullString
	if err := rows.Scan(&ev.Caller, &ev.Kind, &reason, &ev.Time); err != nil {
		return ev, fmt.Errorf("scan session event failed: %w", err)
	}
	ev.Reason = reason.String
	return ev, nil
}
