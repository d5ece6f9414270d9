// Package store provides storage backends for TaxPro.
//
// This file implements a PostgreSQL-backed store for appointments and sessions.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/BTreeMap/TaxPro/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db    *sql.DB
	table string
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	cfg := applyOpts(opts)
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "", "table", cfg.AppointmentsTable)
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}
	if err := ValidateTableName(cfg.AppointmentsTable); err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(renderMigrations(postgresMigrations, cfg.AppointmentsTable)); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db, table: cfg.AppointmentsTable}, nil
}

// InsertAppointment writes a single appointment row.
func (s *PostgresStore) InsertAppointment(ctx context.Context, a models.AppointmentRequest) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8) ON CONFLICT DO NOTHING`, s.table, appointmentColumns)
	res, err := s.db.ExecContext(ctx, query,
		a.ID, a.Name, a.Email, a.ScheduledAt, string(a.Status),
		nilIfEmpty(a.IdempotencyKey), nilIfEmpty(a.SessionID), a.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore.InsertAppointment failed", "error", err, "id", a.ID)
		return fmt.Errorf("failed to insert appointment %s: %w", a.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		if a.IdempotencyKey != "" {
			return models.ErrDuplicateSubmission
		}
		return fmt.Errorf("appointment %s already exists", a.ID)
	}
	slog.Debug("PostgresStore.InsertAppointment succeeded", "id", a.ID, "status", a.Status)
	return nil
}

// ListAppointments returns all appointments ordered by creation time.
func (s *PostgresStore) ListAppointments(ctx context.Context) ([]models.AppointmentRequest, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT %s FROM %s ORDER BY created_at, id`, appointmentColumns, s.table))
	if err != nil {
		slog.Error("PostgresStore.ListAppointments query failed", "error", err)
		return nil, fmt.Errorf("failed to query appointments: %w", err)
	}
	defer rows.Close()
	var out []models.AppointmentRequest
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore.ListAppointments rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate appointment rows: %w", err)
	}
	return out, nil
}

// FindAppointmentByIdempotencyKey returns the appointment recorded under key, or nil.
func (s *PostgresStore) FindAppointmentByIdempotencyKey(ctx context.Context, key string) (*models.AppointmentRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE idempotency_key = $1`, appointmentColumns, s.table)
	a, err := findAppointmentByKey(ctx, s.db, query, key)
	if err != nil {
		slog.Error("PostgresStore.FindAppointmentByIdempotencyKey failed", "error", err)
		return nil, err
	}
	return a, nil
}

// SaveSession stores or updates the state document for a session.
func (s *PostgresStore) SaveSession(ctx context.Context, state models.SessionState) error {
	query := `
		INSERT INTO sessions (session_id, state_data, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_id)
		DO UPDATE SET
			state_data = EXCLUDED.state_data,
			updated_at = EXCLUDED.updated_at`

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", state.SessionID, err)
	}
	updated := state.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	if _, err := s.db.ExecContext(ctx, query, state.SessionID, data, updated); err != nil {
		slog.Error("PostgresStore.SaveSession failed", "error", err, "sessionID", state.SessionID)
		return err
	}
	slog.Debug("PostgresStore.SaveSession succeeded", "sessionID", state.SessionID, "service", state.CurrentService, "step", state.CurrentStep)
	return nil
}

// LoadSession retrieves the state document for a session, or nil if absent.
func (s *PostgresStore) LoadSession(ctx context.Context, id string) (*models.SessionState, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT state_data FROM sessions WHERE session_id = $1`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore.LoadSession failed", "error", err, "sessionID", id)
		return nil, err
	}
	return decodeSession(id, data)
}

// DeleteSession removes the state document for a session.
func (s *PostgresStore) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = $1`, id); err != nil {
		slog.Error("PostgresStore.DeleteSession failed", "error", err, "sessionID", id)
		return err
	}
	return nil
}

// Close closes the PostgreSQL database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing PostgreSQL database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close PostgreSQL database", "error", err)
	}
	return err
}

var (
	_ AppointmentStore = (*PostgresStore)(nil)
	_ SessionStore     = (*PostgresStore)(nil)
)
