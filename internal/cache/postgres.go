package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"aurionplan/internal/model"
)

// PostgresStore keeps records in the user_events table of a PostgreSQL
// database, one row per username.
type PostgresStore struct {
	db *sql.DB
}

func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres cache: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) createTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS user_events (
		username TEXT PRIMARY KEY,
		events JSONB NOT NULL,
		last_updated TIMESTAMPTZ NOT NULL
	);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create user_events table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, owner string) (*Record, error) {
	var (
		events  []byte
		updated time.Time
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT events, last_updated FROM user_events WHERE username = $1`, owner,
	).Scan(&events, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read cached events: %w", err)
	}
	return decodeRecord(owner, events, updated)
}

func (s *PostgresStore) Save(ctx context.Context, owner string, events []model.NormalizedEvent, at time.Time) error {
	data, err := encodeEvents(events)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_events (username, events, last_updated)
		VALUES ($1, $2::jsonb, $3)
		ON CONFLICT (username) DO UPDATE SET events = EXCLUDED.events, last_updated = EXCLUDED.last_updated
	`, owner, string(data), at)
	if err != nil {
		return fmt.Errorf("save cached events: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }
