// Package store persists playlists in sqlite and tracks queued locations
// for duplicate detection.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	// sqlite3 driver
	_ "github.com/mattn/go-sqlite3"

	"jukebox/internal/playlist"
)

const initTimeout = 10 * time.Second

var pragmas = []string{
	"PRAGMA journal_mode=WAL;",
	"PRAGMA synchronous=NORMAL;",
	"PRAGMA busy_timeout=5000;",
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS playlist_tracks (
		playlist TEXT NOT NULL,
		position INTEGER NOT NULL,
		id TEXT NOT NULL,
		location TEXT NOT NULL,
		name TEXT NOT NULL,
		length_ms INTEGER,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (playlist, position)
	)`,
}

// PlaylistStore saves and loads track lists by playlist name.
type PlaylistStore struct {
	db *sql.DB
}

// OpenPlaylistStore opens or creates the database at path.
func OpenPlaylistStore(ctx context.Context, path string) (*PlaylistStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	initCtx, cancel := context.WithTimeout(ctx, initTimeout)
	defer cancel()

	for _, p := range pragmas {
		if _, err := db.ExecContext(initCtx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %q: %w", p, err)
		}
	}
	for _, q := range schema {
		if _, err := db.ExecContext(initCtx, q); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}

	return &PlaylistStore{db: db}, nil
}

// Save replaces the stored tracks of name with records.
func (s *PlaylistStore) Save(ctx context.Context, name string, records []playlist.Record) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			err = errors.Join(err, rbErr)
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM playlist_tracks WHERE playlist = ?", name); err != nil {
		return fmt.Errorf("clear playlist %s: %w", name, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO playlist_tracks (playlist, position, id, location, name, length_ms)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range records {
		var length sql.NullInt64
		if r.Known {
			length = sql.NullInt64{Int64: r.Length.Milliseconds(), Valid: true}
		}
		if _, err = stmt.ExecContext(ctx, name, i, r.ID, r.Location, r.Name, length); err != nil {
			return fmt.Errorf("insert track %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// Load returns the stored tracks of name in play order.
func (s *PlaylistStore) Load(ctx context.Context, name string) ([]playlist.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, location, name, length_ms FROM playlist_tracks
		WHERE playlist = ? ORDER BY position`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []playlist.Record
	for rows.Next() {
		var r playlist.Record
		var length sql.NullInt64
		if err := rows.Scan(&r.ID, &r.Location, &r.Name, &length); err != nil {
			return nil, err
		}
		if length.Valid {
			r.Length = time.Duration(length.Int64) * time.Millisecond
			r.Known = true
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Close closes the database.
func (s *PlaylistStore) Close() error {
	return s.db.Close()
}
