package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"aurionplan/internal/model"
)

// SQLiteStore keeps records in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path. ":memory:" is
// accepted for a private in-process database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	memory := path == ":memory:" || strings.Contains(path, "mode=memory")
	if !memory {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("create cache dir: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite cache: %w", err)
	}
	// Every connection to ":memory:" is a different database.
	if memory {
		db.SetMaxOpenConns(1)
	}

	s := &SQLiteStore{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS user_events (
  username TEXT PRIMARY KEY,
  events TEXT NOT NULL,
  last_updated TEXT NOT NULL
);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create user_events table: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, owner string) (*Record, error) {
	var events, updated string
	err := s.db.QueryRowContext(ctx,
		`SELECT events, last_updated FROM user_events WHERE username = ?`, owner,
	).Scan(&events, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read cached events: %w", err)
	}

	at, err := time.Parse(time.RFC3339Nano, updated)
	if err != nil {
		return nil, fmt.Errorf("parse last_updated %q: %w", updated, err)
	}
	return decodeRecord(owner, []byte(events), at)
}

func (s *SQLiteStore) Save(ctx context.Context, owner string, events []model.NormalizedEvent, at time.Time) error {
	data, err := encodeEvents(events)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO user_events (username, events, last_updated) VALUES (?, ?, ?)
ON CONFLICT(username) DO UPDATE SET events = excluded.events, last_updated = excluded.last_updated`,
		owner, string(data), at.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save cached events: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func encodeEvents(events []model.NormalizedEvent) ([]byte, error) {
	if events == nil {
		events = []model.NormalizedEvent{}
	}
	data, err := json.Marshal(events)
	if err != nil {
		return nil, fmt.Errorf("encode events: %w", err)
	}
	return data, nil
}

func decodeRecord(owner string, data []byte, at time.Time) (*Record, error) {
	var events []model.NormalizedEvent
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("decode cached events: %w", err)
	}
	if events == nil {
		events = []model.NormalizedEvent{}
	}
	return &Record{Owner: owner, Events: events, LastUpdatedAt: at}, nil
}
