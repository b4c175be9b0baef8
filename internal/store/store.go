// Package store persists per-light state across restarts.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps the SQLite database connection
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// LightState is the persisted view of one light.
type LightState struct {
	EntityID       string
	LastBrightness int
	Brightness     int
	UpdatedAt      time.Time
}

// Open opens the database and initializes the schema
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS light_state (
			entity_id TEXT PRIMARY KEY,
			last_brightness INTEGER NOT NULL DEFAULT 0,
			brightness INTEGER NOT NULL DEFAULT 0,
			updated_at INTEGER NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create light_state table: %w", err)
	}
	return nil
}

// SaveState upserts the state of one light.
func (s *Store) SaveState(ctx context.Context, entityID string, lastBrightness, brightness int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO light_state (entity_id, last_brightness, brightness, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(entity_id) DO UPDATE SET
			last_brightness = excluded.last_brightness,
			brightness = excluded.brightness,
			updated_at = excluded.updated_at
	`, entityID, lastBrightness, brightness, s.now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("failed to save state for %s: %w", entityID, err)
	}
	return nil
}

// LoadState returns the stored state of a light, or nil if there is none.
func (s *Store) LoadState(ctx context.Context, entityID string) (*LightState, error) {
	state := LightState{EntityID: entityID}
	var updatedAt int64
	err := s.db.QueryRowContext(ctx, `
		SELECT last_brightness, brightness, updated_at FROM light_state
		WHERE entity_id = ?
	`, entityID).Scan(&state.LastBrightness, &state.Brightness, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load state for %s: %w", entityID, err)
	}
	state.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &state, nil
}

// LoadLastBrightness returns the remembered brightness of a light, 0 if unknown.
func (s *Store) LoadLastBrightness(ctx context.Context, entityID string) (int, error) {
	state, err := s.LoadState(ctx, entityID)
	if err != nil || state == nil {
		return 0, err
	}
	return state.LastBrightness, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}
