// Package store provides storage backends for CallPipe.
//
// It persists completed dialogue turns and session lifecycle events, with an
// in-memory store for tests and development and SQLite/Postgres for
// deployments.
package store

import (
	"strings"
	"sync"

	"github.com/BTreeMap/CallPipe/internal/models"
)

// Store is the persistence interface for dialogue transcripts.
type Store interface {
	AddTurn(rec models.TurnRecord) error
	GetTurns(caller string) ([]models.TurnRecord, error)
	AddSessionEvent(ev models.SessionEvent) error
	GetSessionEvents(caller string) ([]models.SessionEvent, error)
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithDSN sets the database DSN.
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets a PostgreSQL DSN.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithSQLiteDSN sets an SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// New creates the store backend matching the DSN: Postgres for Postgres
// DSNs, SQLite for file paths, in-memory when no DSN is configured.
func New(opts ...Option) (Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		return NewInMemoryStore(), nil
	}
	if DetectDSNType(cfg.DSN) == "postgres" {
		return NewPostgresStore(opts...)
	}
	return NewSQLiteStore(opts...)
}

// DetectDSNType reports the database driver a DSN addresses: "postgres" for
// postgres:// URLs and key=value connection strings, "sqlite3" for anything
// else (treated as a file path).
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	if strings.Contains(dsn, "=") && (strings.Contains(dsn, "host=") || strings.Contains(dsn, "user=") || strings.Contains(dsn, "dbname=")) {
		return "postgres"
	}
	return "sqlite3"
}

// InMemoryStore is a simple in-memory store for turns and session events.
type InMemoryStore struct {
	mu     sync.Mutex
	turns  []models.TurnRecord
	events []models.SessionEvent
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) AddTurn(rec models.TurnRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, rec)
	return nil
}

func (s *InMemoryStore) GetTurns(caller string) ([]models.TurnRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.TurnRecord
	for _, rec := range s.turns {
		if caller == "" || rec.Caller == caller {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *InMemoryStore) AddSessionEvent(ev models.SessionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *InMemoryStore) GetSessionEvents(caller string) ([]models.SessionEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SessionEvent
	for _, ev := range s.events {
		if caller == "" || ev.Caller == caller {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *InMemoryStore) Close() error {
	return nil
}
