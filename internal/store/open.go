package store

import "log/slog"

// Backend is a store that holds appointments, sessions and inbound message ids.
type Backend interface {
	AppointmentStore
	SessionStore
	DedupRepo
}

// Open picks the SQL backend for dsn. An empty dsn selects the in-memory store.
func Open(dsn string, opts ...Option) (Backend, error) {
	if dsn == "" {
		slog.Warn("store.Open: no DATABASE_URL set, appointments are kept in memory only")
		return NewInMemoryStore(), nil
	}
	opts = append([]Option{WithSQLiteDSN(dsn)}, opts...)
	switch DetectDSNType(dsn) {
	case "postgres":
		slog.Debug("store.Open: using Postgres backend")
		return NewPostgresStore(opts...)
	default:
		slog.Debug("store.Open: using SQLite backend")
		return NewSQLiteStore(opts...)
	}
}
