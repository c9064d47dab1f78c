// Package library persists the track list, liked flags and the current
// track id in SQLite.
package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jfmyers9/murmur/internal/music"
	"github.com/samber/lo"
	_ "modernc.org/sqlite"
)

var (
	// ErrExists is returned when adding a track whose id is already stored
	ErrExists = errors.New("track already exists")

	// ErrAmbiguous is returned when a reference matches more than one track
	ErrAmbiguous = errors.New("ambiguous track reference")
)

const currentKey = "current_id"

// Library is the SQLite-backed track list
type Library struct {
	db *sql.DB
}

// Entry is a stored track with its bookkeeping columns
type Entry struct {
	music.Track
	Position int
	AddedAt  time.Time
}

// Open opens (or creates) the library database at dbPath
func Open(dbPath string) (*Library, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps :memory: databases consistent
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA journal_mode = WAL",
		"PRAGMA temp_store = MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS tracks (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			url TEXT NOT NULL,
			liked BOOLEAN NOT NULL DEFAULT 0,
			position INTEGER NOT NULL,
			added_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
		);

		CREATE INDEX IF NOT EXISTS idx_position ON tracks(position);

		CREATE TABLE IF NOT EXISTS state (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Library{db: db}, nil
}

// Close closes the database connection
func (l *Library) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}

// Add appends a track to the end of the list. An empty id gets a generated
// one and an empty name is derived from the URL.
func (l *Library) Add(ctx context.Context, track music.Track) (music.Track, error) {
	if strings.TrimSpace(track.URL) == "" {
		return music.Track{}, errors.New("track url is required")
	}
	if track.ID == "" {
		track.ID = uuid.NewString()
	}
	if track.Name == "" {
		track.Name = nameFromURL(track.URL)
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return music.Track{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM tracks WHERE id = ?", track.ID).Scan(&exists); err != nil {
		return music.Track{}, fmt.Errorf("failed to check track: %w", err)
	}
	if exists > 0 {
		return music.Track{}, fmt.Errorf("%w: %s", ErrExists, track.ID)
	}

	query := `
		INSERT INTO tracks (id, name, url, liked, position)
		VALUES (?, ?, ?, ?, (SELECT COALESCE(MAX(position), -1) + 1 FROM tracks))
	`
	if _, err := tx.ExecContext(ctx, query, track.ID, track.Name, track.URL, track.Liked); err != nil {
		return music.Track{}, fmt.Errorf("failed to insert track: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return music.Track{}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return track, nil
}

// Entries returns every stored track in list order
func (l *Library) Entries(ctx context.Context) ([]Entry, error) {
	query := `
		SELECT id, name, url, liked, position, added_at
		FROM tracks
		ORDER BY position ASC
	`

	rows, err := l.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var addedUnix int64

		err := rows.Scan(
			&e.ID,
			&e.Name,
			&e.URL,
			&e.Liked,
			&e.Position,
			&addedUnix,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan track: %w", err)
		}

		e.AddedAt = time.Unix(addedUnix, 0)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tracks: %w", err)
	}

	return entries, nil
}

// Tracks returns the track list snapshot the player navigates
func (l *Library) Tracks(ctx context.Context) ([]music.Track, error) {
	entries, err := l.Entries(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Map(entries, func(e Entry, _ int) music.Track { return e.Track }), nil
}

// Get returns the track with the given id
func (l *Library) Get(ctx context.Context, id string) (music.Track, error) {
	var t music.Track
	err := l.db.QueryRowContext(ctx,
		"SELECT id, name, url, liked FROM tracks WHERE id = ?", id,
	).Scan(&t.ID, &t.Name, &t.URL, &t.Liked)
	if errors.Is(err, sql.ErrNoRows) {
		return music.Track{}, fmt.Errorf("%w: %s", music.ErrNoTrack, id)
	}
	if err != nil {
		return music.Track{}, fmt.Errorf("failed to get track: %w", err)
	}
	return t, nil
}

// Resolve finds a track by exact id, unique id prefix, or case-insensitive name
func (l *Library) Resolve(ctx context.Context, ref string) (music.Track, error) {
	tracks, err := l.Tracks(ctx)
	if err != nil {
		return music.Track{}, err
	}

	if t, ok := lo.Find(tracks, func(t music.Track) bool { return t.ID == ref }); ok {
		return t, nil
	}

	matches := lo.Filter(tracks, func(t music.Track, _ int) bool {
		return strings.HasPrefix(t.ID, ref) || strings.EqualFold(t.Name, ref)
	})
	switch len(matches) {
	case 0:
		return music.Track{}, fmt.Errorf("%w: %s", music.ErrNoTrack, ref)
	case 1:
		return matches[0], nil
	default:
		return music.Track{}, fmt.Errorf("%w: %q matches %d tracks", ErrAmbiguous, ref, len(matches))
	}
}

// SetLiked updates the liked flag of a track
func (l *Library) SetLiked(ctx context.Context, id string, liked bool) error {
	result, err := l.db.ExecContext(ctx, "UPDATE tracks SET liked = ? WHERE id = ?", liked, id)
	if err != nil {
		return fmt.Errorf("failed to update track: %w", err)
	}
	return expectRow(result, id)
}

// Remove deletes a track, clearing the current id if it pointed at it
func (l *Library) Remove(ctx context.Context, id string) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, "DELETE FROM tracks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete track: %w", err)
	}
	if err := expectRow(result, id); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM state WHERE key = ? AND value = ?", currentKey, id,
	); err != nil {
		return fmt.Errorf("failed to clear current track: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CurrentID returns the persisted current track id, or "" when none is set
func (l *Library) CurrentID(ctx context.Context) (string, error) {
	var id string
	err := l.db.QueryRowContext(ctx, "SELECT value FROM state WHERE key = ?", currentKey).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read current track: %w", err)
	}
	return id, nil
}

// SetCurrentID persists the current track id
func (l *Library) SetCurrentID(ctx context.Context, id string) error {
	if _, err := l.Get(ctx, id); err != nil {
		return err
	}

	query := `
		INSERT INTO state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	if _, err := l.db.ExecContext(ctx, query, currentKey, id); err != nil {
		return fmt.Errorf("failed to set current track: %w", err)
	}
	return nil
}

// Count returns the number of stored tracks, optionally only liked ones
func (l *Library) Count(ctx context.Context, likedOnly bool) (int, error) {
	query := "SELECT COUNT(*) FROM tracks"
	if likedOnly {
		query += " WHERE liked = 1"
	}

	var count int
	if err := l.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count tracks: %w", err)
	}
	return count, nil
}

func expectRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", music.ErrNoTrack, id)
	}
	return nil
}

// nameFromURL derives a display name from the last path element
func nameFromURL(locator string) string {
	base := path.Base(strings.TrimRight(locator, "/"))
	if ext := path.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	if base == "." || base == "/" || base == "" {
		return locator
	}
	return base
}
