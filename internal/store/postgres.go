// Package store provides storage backends for CallPipe.
//
// This file implements a PostgreSQL-backed store for turns and session events.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	_ "github.com/lib/pq"

	"github.com/BTreeMap/CallPipe/internal/models"
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
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
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
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) AddTurn(rec models.TurnRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO turns (id, caller, sequence, label, user_text, reply_text, sentiment, time) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.Caller, rec.Sequence, rec.Label, rec.UserText, rec.ReplyText, rec.Sentiment, rec.Time,
	)
	if err != nil {
		slog.Error("PostgresStore AddTurn failed", "error", err, "caller", rec.Caller)
		return fmt.Errorf("failed to insert turn for %s: %w", rec.Caller, err)
	}
	slog.Debug("PostgresStore AddTurn succeeded", "caller", rec.Caller, "sequence", rec.Sequence)
	return nil
}

func (s *PostgresStore) GetTurns(caller string) ([]models.TurnRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, caller, sequence, label, user_text, reply_text, sentiment, time FROM turns WHERE ($1 = '' OR caller = $1) ORDER BY time, sequence`,
		caller,
	)
	if err != nil {
		slog.Error("PostgresStore GetTurns query failed", "error", err)
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	var turns []models.TurnRecord
	for rows.Next() {
		rec, err := scanTurn(rows)
		if err != nil {
			slog.Error("PostgresStore GetTurns scan failed", "error", err)
			return nil, err
		}
		turns = append(turns, rec)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore GetTurns rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate turn rows: %w", err)
	}
	slog.Debug("PostgresStore GetTurns succeeded", "count", len(turns))
	return turns, nil
}

func (s *PostgresStore) AddSessionEvent(ev models.SessionEvent) error {
	_, err := s.db.Exec(
		`INSERT INTO session_events (caller, kind, reason, time) VALUES ($1, $2, $3, $4)`,
		ev.Caller, ev.Kind, nilIfEmpty(ev.Reason), ev.Time,
	)
	if err != nil {
		slog.Error("PostgresStore AddSessionEvent failed", "error", err, "caller", ev.Caller)
		return fmt.Errorf("failed to insert session event for %s: %w", ev.Caller, err)
	}
	return nil
}

func (s *PostgresStore) GetSessionEvents(caller string) ([]models.SessionEvent, error) {
	rows, err := s.db.Query(
		`SELECT caller, kind, reason, time FROM session_events WHERE ($1 = '' OR caller = $1) ORDER BY time`,
		caller,
	)
	if err != nil {
		slog.Error("PostgresStore GetSessionEvents query failed", "error", err)
		return nil, fmt.Errorf("failed to query session events: %w", err)
	}
	defer rows.Close()

	var events []models.SessionEvent
	for rows.Next() {
		ev, err := scanSessionEvent(rows)
		if err != nil {
			slog.Error("PostgresStore GetSessionEvents scan failed", "error", err)
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore GetSessionEvents rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate session event rows: %w", err)
	}
	return events, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
