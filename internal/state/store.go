// Package state manages the on-device SQLite database that holds the local
// copy of the application state.
//
// The database is a plain key/value table. Hospitals and visits live under two
// fixed keys, each holding a JSON array, so either collection can be present
// or absent independently. Only this package may open or query the database.
package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/njoerd114/medtrack/internal/model"
)

// Fixed keys under which the two collections are stored.
const (
	KeyHospitals = "medtrack_hospitals"
	KeyVisits    = "medtrack_visits"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at TEXT NOT NULL DEFAULT ''
);
`

// ErrNotFound is returned by [Store.Get] when the key has never been written.
var ErrNotFound = errors.New("key not found")

// Store is the SQLite-backed local store.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// DefaultDBPath returns the default path for the local database:
// ~/.local/share/medtrack/medtrack.db
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "medtrack", "medtrack.db"), nil
}

// Open opens (or creates) the SQLite database at path, applies the schema, and
// configures WAL mode.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening database %q: %w", path, err)
	}

	// Single writer to avoid SQLITE_BUSY under WAL.
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Store{db: db, log: logger}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies the schema DDL idempotently (CREATE IF NOT EXISTS).
func migrate(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}

// Get returns the raw value stored under key, or [ErrNotFound].
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading key %q: %w", key, err)
	}
	return []byte(value), nil
}

// Put stores value under key, replacing any previous value.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	const q = `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
		    value      = excluded.value,
		    updated_at = excluded.updated_at`
	if _, err := s.db.ExecContext(ctx, q, key, string(value), formatTime(time.Now())); err != nil {
		return fmt.Errorf("writing key %q: %w", key, err)
	}
	return nil
}

// LoadHospitals returns the stored hospital list. ok is false when the key is
// absent or its payload cannot be decoded; a corrupt payload is treated the
// same as a missing one so a bad write never locks the user out.
func (s *Store) LoadHospitals(ctx context.Context) (hospitals []model.Hospital, ok bool, err error) {
	ok, err = s.load(ctx, KeyHospitals, &hospitals)
	if !ok {
		hospitals = nil
	}
	return hospitals, ok, err
}

// LoadVisits returns the stored visit list with the same absent/corrupt
// semantics as [Store.LoadHospitals].
func (s *Store) LoadVisits(ctx context.Context) (visits []model.PatientVisit, ok bool, err error) {
	ok, err = s.load(ctx, KeyVisits, &visits)
	if !ok {
		visits = nil
	}
	return visits, ok, err
}

// SaveSnapshot writes both collections in a single transaction.
func (s *Store) SaveSnapshot(ctx context.Context, snap model.Snapshot) error {
	snap = snap.Normalize()
	hospitals, err := json.Marshal(snap.Hospitals)
	if err != nil {
		return fmt.Errorf("encoding hospitals: %w", err)
	}
	visits, err := json.Marshal(snap.Visits)
	if err != nil {
		return fmt.Errorf("encoding visits: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := formatTime(time.Now())
	const q = `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
		    value      = excluded.value,
		    updated_at = excluded.updated_at`
	if _, err := tx.ExecContext(ctx, q, KeyHospitals, string(hospitals), now); err != nil {
		return fmt.Errorf("writing hospitals: %w", err)
	}
	if _, err := tx.ExecContext(ctx, q, KeyVisits, string(visits), now); err != nil {
		return fmt.Errorf("writing visits: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing snapshot: %w", err)
	}
	return nil
}

// SaveHospitals writes only the hospital collection. Used when seeding the
// default hospitals during hydration.
func (s *Store) SaveHospitals(ctx context.Context, hospitals []model.Hospital) error {
	if hospitals == nil {
		hospitals = []model.Hospital{}
	}
	b, err := json.Marshal(hospitals)
	if err != nil {
		return fmt.Errorf("encoding hospitals: %w", err)
	}
	return s.Put(ctx, KeyHospitals, b)
}

// LastWrite returns the most recent write time across both keys, or the zero
// time if nothing has been written yet.
func (s *Store) LastWrite(ctx context.Context) (time.Time, error) {
	var raw sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT MAX(updated_at) FROM kv WHERE key IN (?, ?)`, KeyHospitals, KeyVisits).Scan(&raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("reading last write time: %w", err)
	}
	if !raw.Valid {
		return time.Time{}, nil
	}
	return parseTime(raw.String)
}

// --- helpers -----------------------------------------------------------------

func (s *Store) load(ctx context.Context, key string, dst any) (bool, error) {
	raw, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		s.log.Warn("ignoring malformed local payload", "key", key, "error", err)
		return false, nil
	}
	return true, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
