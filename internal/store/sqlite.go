// Package store provides storage backends for TaxPro.
//
// This file implements an SQLite-backed store for appointments and sessions.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "embed"

	"github.com/BTreeMap/TaxPro/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db    *sql.DB
	table string
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	cfg := applyOpts(opts)
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "", "table", cfg.AppointmentsTable)

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}
	if err := ValidateTableName(cfg.AppointmentsTable); err != nil {
		return nil, err
	}

	var dir string
	if path := sqliteFilePath(dsn); path != "" {
		dir = filepath.Dir(path)
		if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
			slog.Error("Failed to create database directory", "error", err, "dir", dir)
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	// SQLite allows one writer; a single connection avoids "database is locked".
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(renderMigrations(sqliteMigrations, cfg.AppointmentsTable)); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully", "dir", dir)

	return &SQLiteStore{db: db, table: cfg.AppointmentsTable}, nil
}

// sqliteFilePath returns the database file named by a plain path or a "file:"
// URI DSN, or "" for in-memory databases.
func sqliteFilePath(dsn string) string {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		if strings.Contains(path[i:], "mode=memory") {
			return ""
		}
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return ""
	}
	return path
}

// InsertAppointment writes a single appointment row.
func (s *SQLiteStore) InsertAppointment(ctx context.Context, a models.AppointmentRequest) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT DO NOTHING`, s.table, appointmentColumns)
	res, err := s.db.ExecContext(ctx, query,
		a.ID, a.Name, a.Email, a.ScheduledAt.UTC(), string(a.Status),
		nilIfEmpty(a.IdempotencyKey), nilIfEmpty(a.SessionID), a.CreatedAt.UTC())
	if err != nil {
		slog.Error("SQLiteStore.InsertAppointment failed", "error", err, "id", a.ID)
		return fmt.Errorf("failed to insert appointment %s: %w", a.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		slog.Debug("SQLiteStore.InsertAppointment: conflict, nothing written", "id", a.ID)
		if a.IdempotencyKey != "" {
			return models.ErrDuplicateSubmission
		}
		return fmt.Errorf("appointment %s already exists", a.ID)
	}
	slog.Debug("SQLiteStore.InsertAppointment succeeded", "id", a.ID, "status", a.Status)
	return nil
}

// ListAppointments returns all appointments ordered by creation time.
func (s *SQLiteStore) ListAppointments(ctx context.Context) ([]models.AppointmentRequest, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT %s FROM %s ORDER BY created_at, id`, appointmentColumns, s.table))
	if err != nil {
		slog.Error("SQLiteStore.ListAppointments query failed", "error", err)
		return nil, fmt.Errorf("failed to query appointments: %w", err)
	}
	defer rows.Close()

	var out []models.AppointmentRequest
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			slog.Error("SQLiteStore.ListAppointments scan failed", "error", err)
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate appointment rows: %w", err)
	}
	slog.Debug("SQLiteStore.ListAppointments succeeded", "count", len(out))
	return out, nil
}

// FindAppointmentByIdempotencyKey returns the appointment recorded under key, or nil.
func (s *SQLiteStore) FindAppointmentByIdempotencyKey(ctx context.Context, key string) (*models.AppointmentRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE idempotency_key = ?`, appointmentColumns, s.table)
	a, err := findAppointmentByKey(ctx, s.db, query, key)
	if err != nil {
		slog.Error("SQLiteStore.FindAppointmentByIdempotencyKey failed", "error", err)
		return nil, err
	}
	return a, nil
}

// SaveSession stores or replaces the state document for a session.
func (s *SQLiteStore) SaveSession(ctx context.Context, state models.SessionState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", state.SessionID, err)
	}
	updated := state.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO sessions (session_id, state_data, updated_at) VALUES (?, ?, ?)`,
		state.SessionID, string(data), updated.UTC())
	if err != nil {
		slog.Error("SQLiteStore.SaveSession failed", "error", err, "sessionID", state.SessionID)
		return err
	}
	slog.Debug("SQLiteStore.SaveSession succeeded", "sessionID", state.SessionID, "service", state.CurrentService, "step", state.CurrentStep)
	return nil
}

// LoadSession retrieves the state document for a session, or nil if absent.
func (s *SQLiteStore) LoadSession(ctx context.Context, id string) (*models.SessionState, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT state_data FROM sessions WHERE session_id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore.LoadSession not found", "sessionID", id)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore.LoadSession failed", "error", err, "sessionID", id)
		return nil, err
	}
	return decodeSession(id, []byte(data))
}

// DeleteSession removes the state document for a session.
func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, id); err != nil {
		slog.Error("SQLiteStore.DeleteSession failed", "error", err, "sessionID", id)
		return err
	}
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}

var (
	_ AppointmentStore = (*SQLiteStore)(nil)
	_ SessionStore     = (*SQLiteStore)(nil)
)
