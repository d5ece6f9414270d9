package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/BTreeMap/TaxPro/internal/models"
)

// appointmentColumns is the select list shared by both SQL backends.
const appointmentColumns = "id, name, email, scheduled_at, status, idempotency_key, session_id, created_at"

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// renderMigrations substitutes the configured appointments table into a migration script.
func renderMigrations(script, table string) string {
	return strings.ReplaceAll(script, "{{appointments}}", table)
}

// scanAppointment scans an AppointmentRequest from sql.Rows.
func scanAppointment(rows *sql.Rows) (models.AppointmentRequest, error) {
	var a models.AppointmentRequest
	var status string
	var idempotencyKey, sessionID sql.NullString
	err := rows.Scan(&a.ID, &a.Name, &a.Email, &a.ScheduledAt, &status, &idempotencyKey, &sessionID, &a.CreatedAt)
	if err != nil {
		return a, fmt.Errorf("scan appointment failed: %w", err)
	}
	a.Status = models.AppointmentStatus(status)
	a.IdempotencyKey = idempotencyKey.String
	a.SessionID = sessionID.String
	return a, nil
}

// findAppointmentByKey runs query (which selects appointmentColumns filtered by
// idempotency key) and returns the first row, or nil.
func findAppointmentByKey(ctx context.Context, db *sql.DB, query, key string) (*models.AppointmentRequest, error) {
	if key == "" {
		return nil, nil
	}
	rows, err := db.QueryContext(ctx, query, key)
	if err != nil {
		return nil, fmt.Errorf("failed to query appointment by idempotency key: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	a, err := scanAppointment(rows)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// decodeSession unmarshals a stored session document.
func decodeSession(id string, data []byte) (*models.SessionState, error) {
	var state models.SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &state, nil
}
