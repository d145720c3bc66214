package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/njoerd114/medtrack/internal/model"
)

// DataStore holds the backend's single document.
type DataStore interface {
	Load(ctx context.Context) (model.Snapshot, error)
	Save(ctx context.Context, snap model.Snapshot) error
	Close() error
}

// FileStore keeps the document in a JSON file on disk. Writes go to a
// temporary file that is renamed over the original, so readers never see a
// partial document.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore opens the document at path, creating it with empty
// collections if it does not exist.
func NewFileStore(path string) (*FileStore, error) {
	fst := &FileStore{path: path}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		if err := fst.write(model.Snapshot{}.Normalize()); err != nil {
			return nil, fmt.Errorf("initialising data file: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("checking data file %q: %w", path, err)
	}
	return fst, nil
}

// Path returns the location of the document.
func (f *FileStore) Path() string { return f.path }

func (f *FileStore) Load(_ context.Context) (model.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, err := os.ReadFile(f.path)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("reading data file: %w", err)
	}
	var snap model.Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return model.Snapshot{}, fmt.Errorf("decoding data file: %w", err)
	}
	return snap.Normalize(), nil
}

func (f *FileStore) Save(_ context.Context, snap model.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.write(snap.Normalize())
}

func (f *FileStore) Close() error { return nil }

func (f *FileStore) write(snap model.Snapshot) error {
	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".medtrack-*.json")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replacing data file: %w", err)
	}
	return nil
}
