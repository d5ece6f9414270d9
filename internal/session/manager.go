package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BTreeMap/TaxPro/internal/models"
	"github.com/BTreeMap/TaxPro/internal/store"
	"github.com/google/uuid"
)

// Opts holds configuration for a Manager.
type Opts struct {
	Now   func() time.Time
	NewID func() string
}

// Option configures a Manager.
type Option func(*Opts)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *Opts) {
		o.Now = now
	}
}

// WithIDGenerator overrides session id generation.
func WithIDGenerator(f func() string) Option {
	return func(o *Opts) {
		o.NewID = f
	}
}

// Manager loads and saves session state and serializes work per session id.
type Manager struct {
	store store.SessionStore
	now   func() time.Time
	newID func() string

	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// NewManager creates a Manager backed by st.
func NewManager(st store.SessionStore, opts ...Option) *Manager {
	cfg := Opts{Now: time.Now, NewID: uuid.NewString}
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("Creating session Manager")
	return &Manager{store: st, now: cfg.Now, newID: cfg.NewID, locks: make(map[string]*sessionLock)}
}

func (m *Manager) lock(id string) func() {
	m.mu.Lock()
	l, ok := m.locks[id]
	if !ok {
		l = &sessionLock{}
		m.locks[id] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, id)
		}
		m.mu.Unlock()
	}
}

// Create starts and persists a new session.
func (m *Manager) Create(ctx context.Context) (models.SessionState, error) {
	state := New(m.newID(), m.now())
	if err := m.store.SaveSession(ctx, state); err != nil {
		slog.Error("Manager.Create: save failed", "error", err, "sessionID", state.SessionID)
		return models.SessionState{}, fmt.Errorf("save session: %w", err)
	}
	slog.Debug("Manager.Create: session started", "sessionID", state.SessionID)
	return state, nil
}

// Load returns the stored state for id, or a fresh default state when none exists.
func (m *Manager) Load(ctx context.Context, id string) (models.SessionState, error) {
	state, err := m.store.LoadSession(ctx, id)
	if err != nil {
		slog.Error("Manager.Load: load failed", "error", err, "sessionID", id)
		return models.SessionState{}, fmt.Errorf("load session: %w", err)
	}
	if state == nil {
		slog.Debug("Manager.Load: no stored state, using defaults", "sessionID", id)
		return New(id, m.now()), nil
	}
	return *state, nil
}

// Update runs fn on the current state while holding the session's lock and
// saves the result. When fn fails nothing is saved and the prior state is returned
// with fn's error.
func (m *Manager) Update(ctx context.Context, id string, fn func(models.SessionState) (models.SessionState, error)) (models.SessionState, error) {
	unlock := m.lock(id)
	defer unlock()

	current, err := m.Load(ctx, id)
	if err != nil {
		return models.SessionState{}, err
	}
	next, err := fn(current)
	if err != nil {
		return current, err
	}
	next.SessionID = id
	next.UpdatedAt = m.now()
	if err := m.store.SaveSession(ctx, next); err != nil {
		slog.Error("Manager.Update: save failed", "error", err, "sessionID", id)
		return current, fmt.Errorf("save session: %w", err)
	}
	slog.Debug("Manager.Update: saved", "sessionID", id, "service", next.CurrentService, "step", next.CurrentStep)
	return next, nil
}

// Delete discards the session.
func (m *Manager) Delete(ctx context.Context, id string) error {
	unlock := m.lock(id)
	defer unlock()
	return m.store.DeleteSession(ctx, id)
}

// Require loads id and fails with models.ErrSessionNotFound if it was never created.
func (m *Manager) Require(ctx context.Context, id string) (models.SessionState, error) {
	state, err := m.store.LoadSession(ctx, id)
	if err != nil {
		return models.SessionState{}, fmt.Errorf("load session: %w", err)
	}
	if state == nil {
		return models.SessionState{}, fmt.Errorf("%w: %s", models.ErrSessionNotFound, id)
	}
	return *state, nil
}
