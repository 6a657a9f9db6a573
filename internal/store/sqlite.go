// Package store provides storage backends for CallPipe.
//
// This file implements an SQLite-backed store for turns and session events.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"

	"github.com/BTreeMap/CallPipe/internal/models"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) AddTurn(rec models.TurnRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO turns (id, caller, sequence, label, user_text, reply_text, sentiment, time) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Caller, rec.Sequence, rec.Label, rec.UserText, rec.ReplyText, rec.Sentiment, rec.Time,
	)
	if err != nil {
		slog.Error("SQLiteStore AddTurn failed", "error", err, "caller", rec.Caller)
		return fmt.Errorf("failed to insert turn for %s: %w", rec.Caller, err)
	}
	slog.Debug("SQLiteStore AddTurn succeeded", "caller", rec.Caller, "sequence", rec.Sequence)
	return nil
}

func (s *SQLiteStore) GetTurns(caller string) ([]models.TurnRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, caller, sequence, label, user_text, reply_text, sentiment, time FROM turns WHERE (? = '' OR caller = ?) ORDER BY time, sequence`,
		caller, caller,
	)
	if err != nil {
		slog.Error("SQLiteStore GetTurns query failed", "error", err)
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	var turns []models.TurnRecord
	for rows.Next() {
		rec, err := scanTurn(rows)
		if err != nil {
			slog.Error("SQLiteStore GetTurns scan failed", "error", err)
			return nil, err
		}
		turns = append(turns, rec)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore GetTurns rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate turn rows: %w", err)
	}
	slog.Debug("SQLiteStore GetTurns succeeded", "count", len(turns))
	return turns, nil
}

func (s *SQLiteStore) AddSessionEvent(ev models.SessionEvent) error {
	_, err := s.db.Exec(
		`INSERT INTO session_events (caller, kind, reason, time) VALUES (?, ?, ?, ?)`,
		ev.Caller, ev.Kind, nilIfEmpty(ev.Reason), ev.Time,
	)
	if err != nil {
		slog.Error("SQLiteStore AddSessionEvent failed", "error", err, "caller", ev.Caller)
		return fmt.Errorf("failed to insert session event for %s: %w", ev.Caller, err)
	}
	slog.Debug("SQLiteStore AddSessionEvent succeeded", "caller", ev.Caller, "kind", ev.Kind)
	return nil
}

func (s *SQLiteStore) GetSessionEvents(caller string) ([]models.SessionEvent, error) {
	rows, err := s.db.Query(
		`SELECT caller, kind, reason, time FROM session_events WHERE (? = '' OR caller = ?) ORDER BY time`,
		caller, caller,
	)
	if err != nil {
		slog.Error("SQLiteStore GetSessionEvents query failed", "error", err)
		return nil, fmt.Errorf("failed to query session events: %w", err)
	}
	defer rows.Close()

	var events []models.SessionEvent
	for rows.Next() {
		ev, err := scanSessionEvent(rows)
		if err != nil {
			slog.Error("SQLiteStore GetSessionEvents scan failed", "error", err)
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore GetSessionEvents rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate session event rows: %w", err)
	}
	return events, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
