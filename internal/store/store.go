// Package store provides storage backends for TaxPro.
//
// Appointments are written once and never updated. Session state is a single
// JSON document per session that is overwritten on every action.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BTreeMap/TaxPro/internal/models"
)

// DefaultAppointmentsTable is the table name used when none is configured.
const DefaultAppointmentsTable = "appointments"

// AppointmentStore persists consultation requests.
type AppointmentStore interface {
	// InsertAppointment writes a single record. A record whose non-empty
	// IdempotencyKey already exists is not written again and
	// models.ErrDuplicateSubmission is returned.
	InsertAppointment(ctx context.Context, a models.AppointmentRequest) error
	// ListAppointments returns every record ordered by creation time.
	ListAppointments(ctx context.Context) ([]models.AppointmentRequest, error)
	// FindAppointmentByIdempotencyKey returns the record stored under key, or
	// nil if there is none.
	FindAppointmentByIdempotencyKey(ctx context.Context, key string) (*models.AppointmentRequest, error)
	Close() error
}

// SessionStore persists session state between requests.
type SessionStore interface {
	// LoadSession returns nil, nil when no state exists for id.
	LoadSession(ctx context.Context, id string) (*models.SessionState, error)
	SaveSession(ctx context.Context, state models.SessionState) error
	DeleteSession(ctx context.Context, id string) error
}

// Opts holds configuration options for stores.
type Opts struct {
	DSN               string // database connection string
	AppointmentsTable string // appointments table name
}

// Option configures a store.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithAppointmentsTable overrides the appointments table name.
func WithAppointmentsTable(name string) Option {
	return func(o *Opts) {
		o.AppointmentsTable = name
	}
}

func applyOpts(opts []Option) Opts {
	cfg := Opts{AppointmentsTable: DefaultAppointmentsTable}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AppointmentsTable == "" {
		cfg.AppointmentsTable = DefaultAppointmentsTable
	}
	return cfg
}

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// ValidateTableName rejects names that cannot be interpolated into SQL safely.
func ValidateTableName(name string) error {
	if !tableNamePattern.MatchString(name) {
		return fmt.Errorf("invalid table name %q", name)
	}
	return nil
}

// DetectDSNType returns the database/sql driver name for dsn: "postgres" for
// URLs and keyword/value connection strings, "sqlite3" for everything else.
func DetectDSNType(dsn string) string {
	d := strings.TrimSpace(dsn)
	if strings.HasPrefix(d, "postgres://") || strings.HasPrefix(d, "postgresql://") {
		return "postgres"
	}
	if strings.Contains(d, "host=") || strings.Contains(d, "dbname=") || strings.Contains(d, "user=") {
		return "postgres"
	}
	return "sqlite3"
}

// InMemoryStore keeps appointments and sessions in process memory.
type InMemoryStore struct {
	mu           sync.Mutex
	appointments []models.AppointmentRequest
	keys         map[string]int // idempotency key -> index into appointments
	sessions     map[string]models.SessionState
	inbound      map[string]*DedupRecord
	lastSweep    time.Time
	now          func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		keys:     make(map[string]int),
		sessions: make(map[string]models.SessionState),
		inbound:  make(map[string]*DedupRecord),
		now:      time.Now,
	}
}

func (s *InMemoryStore) InsertAppointment(ctx context.Context, a models.AppointmentRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.IdempotencyKey != "" {
		if _, ok := s.keys[a.IdempotencyKey]; ok {
			slog.Debug("InMemoryStore.InsertAppointment: duplicate idempotency key", "id", a.ID)
			return models.ErrDuplicateSubmission
		}
		s.keys[a.IdempotencyKey] = len(s.appointments)
	}
	s.appointments = append(s.appointments, a)
	slog.Debug("InMemoryStore.InsertAppointment: stored", "id", a.ID, "count", len(s.appointments))
	return nil
}

func (s *InMemoryStore) ListAppointments(ctx context.Context) ([]models.AppointmentRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.AppointmentRequest, len(s.appointments))
	copy(out, s.appointments)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) FindAppointmentByIdempotencyKey(ctx context.Context, key string) (*models.AppointmentRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.keys[key]
	if !ok || key == "" {
		return nil, nil
	}
	a := s.appointments[i]
	return &a, nil
}

func (s *InMemoryStore) LoadSession(ctx context.Context, id string) (*models.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

func (s *InMemoryStore) SaveSession(ctx context.Context, state models.SessionState) error {
	if state.SessionID == "" {
		return fmt.Errorf("session id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[state.SessionID] = state
	return nil
}

func (s *InMemoryStore) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *InMemoryStore) Close() error { return nil }

var (
	_ AppointmentStore = (*InMemoryStore)(nil)
	_ SessionStore     = (*InMemoryStore)(nil)
)
