package server

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/njoerd114/medtrack/internal/model"
)

func TestNewFileStore_InitialisesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "db.json")
	if _, err := NewFileStore(path); err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(b), `"hospitals": []`) || !strings.Contains(string(b), `"visits": []`) {
		t.Errorf("initial document = %s, want empty collections", b)
	}
}

func TestNewFileStore_KeepsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	doc := `{"hospitals":[{"id":"7","name":"Kept"}],"visits":[]}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	fst, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	snap, err := fst.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(snap.Hospitals) != 1 || snap.Hospitals[0].Name != "Kept" {
		t.Errorf("Hospitals = %+v, want existing document", snap.Hospitals)
	}
}

func TestFileStore_SaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	fst, err := NewFileStore(filepath.Join(dir, "db.json"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	snap := model.Snapshot{Hospitals: model.DefaultHospitals(time.Now())}
	if err := fst.Save(context.Background(), snap); err != nil {
		t.Fatalf("Save: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("directory = %v, want only db.json", names)
	}
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	if err := os.WriteFile(path, []byte("{oops"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	fst, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if _, err := fst.Load(context.Background()); err == nil {
		t.Error("Load of corrupt file returned nil error")
	}
}

// TestRedisStore runs against a real Redis when MEDTRACK_TEST_REDIS_ADDR is
// set, e.g. MEDTRACK_TEST_REDIS_ADDR=localhost:6379.
func TestRedisStore(t *testing.T) {
	addr := os.Getenv("MEDTRACK_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("MEDTRACK_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	key := "medtrack:test:" + strings.ReplaceAll(t.Name(), "/", "_")

	rs, err := NewRedisStore(ctx, addr, key)
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	t.Cleanup(func() {
		_ = rs.client.Del(context.Background(), key).Err()
		_ = rs.Close()
	})

	snap, err := rs.Load(ctx)
	if err != nil {
		t.Fatalf("Load (missing key): %v", err)
	}
	if !snap.IsEmpty() || snap.Hospitals == nil {
		t.Errorf("missing key = %+v, want normalized empty document", snap)
	}

	want := model.Snapshot{Hospitals: model.DefaultHospitals(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))}
	if err := rs.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := rs.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.ContentHash() != want.Normalize().ContentHash() {
		t.Errorf("Load = %+v, want %+v", got, want)
	}
}

func TestNewRedisStore_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := NewRedisStore(ctx, "127.0.0.1:1", "k"); err == nil {
		t.Error("NewRedisStore to a closed port returned nil error")
	}
}
