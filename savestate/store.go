// Package savestate persists save-state blobs per game and slot and keeps
// an in-memory rewind history.
package savestate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ResumeSlot is the slot used for the automatic resume state.
const ResumeSlot = -1

// ErrNoState is returned when a slot holds no state.
var ErrNoState = errors.New("no state in slot")

// Entry describes a stored state.
type Entry struct {
	GameCRC uint32
	Slot    int
	Size    int
	SavedAt time.Time
}

// Store keeps state blobs in a SQLite database keyed by game CRC and slot.
type Store struct {
	conn *sql.DB
}

// Open opens or creates the database at path and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory %q: %w", dir, err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %q: %w", path, err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &Store{conn: conn}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// Put stores blob in the slot, replacing any previous state.
func (s *Store) Put(ctx context.Context, gameCRC uint32, slot int, blob []byte) error {
	_, err := s.conn.ExecContext(ctx, `
INSERT INTO states (game_crc, slot, data, saved_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(game_crc, slot) DO UPDATE SET data = excluded.data, saved_at = excluded.saved_at
`, int64(gameCRC), slot, blob, formatTimestamp(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to store state %08X/%d: %w", gameCRC, slot, err)
	}
	return nil
}

// Get returns the blob in the slot or ErrNoState.
func (s *Store) Get(ctx context.Context, gameCRC uint32, slot int) ([]byte, error) {
	var blob []byte
	err := s.conn.QueryRowContext(ctx, `
SELECT data FROM states WHERE game_crc = ? AND slot = ?
`, int64(gameCRC), slot).Scan(&blob)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNoState
		}
		return nil, fmt.Errorf("failed to get state %08X/%d: %w", gameCRC, slot, err)
	}
	return blob, nil
}

// Has reports whether the slot holds a state.
func (s *Store) Has(ctx context.Context, gameCRC uint32, slot int) (bool, error) {
	var count int
	err := s.conn.QueryRowContext(ctx, `
SELECT count(1) FROM states WHERE game_crc = ? AND slot = ?
`, int64(gameCRC), slot).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check state %08X/%d: %w", gameCRC, slot, err)
	}
	return count > 0, nil
}

// Delete removes the state in the slot. Deleting an empty slot is not an
// error.
func (s *Store) Delete(ctx context.Context, gameCRC uint32, slot int) error {
	_, err := s.conn.ExecContext(ctx, `DELETE FROM states WHERE game_crc = ? AND slot = ?`, int64(gameCRC), slot)
	if err != nil {
		return fmt.Errorf("failed to delete state %08X/%d: %w", gameCRC, slot, err)
	}
	return nil
}

// List returns the stored states of a game ordered by slot, the resume
// slot first.
func (s *Store) List(ctx context.Context, gameCRC uint32) ([]Entry, error) {
	rows, err := s.conn.QueryContext(ctx, `
SELECT slot, length(data), saved_at FROM states WHERE game_crc = ? ORDER BY slot
`, int64(gameCRC))
	if err != nil {
		return nil, fmt.Errorf("failed to list states: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e := Entry{GameCRC: gameCRC}
		var savedAtRaw string
		if err := rows.Scan(&e.Slot, &e.Size, &savedAtRaw); err != nil {
			return nil, fmt.Errorf("failed to scan state: %w", err)
		}
		e.SavedAt, err = parseTimestamp(savedAtRaw)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed while iterating states: %w", err)
	}
	return entries, nil
}

func formatTimestamp(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339Nano)
}

func parseTimestamp(v string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", v, err)
	}
	return ts, nil
}
