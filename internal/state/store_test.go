package state

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/njoerd114/medtrack/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test-medtrack.db")
	s, err := Open(path, slog.Default())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleSnapshot() model.Snapshot {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return model.Snapshot{
		Hospitals: []model.Hospital{{ID: "h1", Name: "City Central Hospital", Location: "Main Street", CreatedAt: now}},
		Visits: []model.PatientVisit{{
			ID:          "v1",
			HospitalID:  "h1",
			VisitDate:   "2026-01-02",
			PatientName: "Jane Doe",
			PhoneNumber: "555-0100",
			Disease:     "Flu",
			LastUpdated: now,
		}},
	}
}

func TestOpen_CreatesSchema(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get(context.Background(), KeyHospitals)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get on fresh store: err = %v, want ErrNotFound", err)
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "medtrack.db")
	s1, err := Open(path, slog.Default())
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	if err := s1.SaveSnapshot(context.Background(), sampleSnapshot()); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if err := s1.Close(); err != nil {
		t.Fatalf("s1.Close: %v", err)
	}

	// Re-opening the same file must not fail or wipe data.
	s2, err := Open(path, slog.Default())
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer func() { _ = s2.Close() }()

	visits, ok, err := s2.LoadVisits(context.Background())
	if err != nil || !ok {
		t.Fatalf("LoadVisits after reopen: ok=%v err=%v", ok, err)
	}
	if len(visits) != 1 {
		t.Errorf("visits = %d, want 1", len(visits))
	}
}

func TestSaveSnapshotAndLoad(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	snap := sampleSnapshot()

	if err := s.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	hospitals, ok, err := s.LoadHospitals(ctx)
	if err != nil || !ok {
		t.Fatalf("LoadHospitals: ok=%v err=%v", ok, err)
	}
	if len(hospitals) != 1 || hospitals[0].Name != "City Central Hospital" {
		t.Errorf("hospitals = %+v", hospitals)
	}
	if !hospitals[0].CreatedAt.Equal(snap.Hospitals[0].CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", hospitals[0].CreatedAt, snap.Hospitals[0].CreatedAt)
	}

	visits, ok, err := s.LoadVisits(ctx)
	if err != nil || !ok {
		t.Fatalf("LoadVisits: ok=%v err=%v", ok, err)
	}
	if len(visits) != 1 || visits[0].PhoneNumber != "555-0100" {
		t.Errorf("visits = %+v", visits)
	}
}

func TestSaveSnapshot_Overwrites(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.SaveSnapshot(ctx, sampleSnapshot()); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if err := s.SaveSnapshot(ctx, model.Snapshot{Hospitals: sampleSnapshot().Hospitals}); err != nil {
		t.Fatalf("second SaveSnapshot: %v", err)
	}

	visits, ok, err := s.LoadVisits(ctx)
	if err != nil {
		t.Fatalf("LoadVisits: %v", err)
	}
	if !ok {
		t.Fatal("visits key should be present (written as empty array)")
	}
	if len(visits) != 0 {
		t.Errorf("visits = %d, want 0", len(visits))
	}
}

func TestLoad_AbsentKeysIndependent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.SaveHospitals(ctx, sampleSnapshot().Hospitals); err != nil {
		t.Fatalf("SaveHospitals: %v", err)
	}

	if _, ok, err := s.LoadHospitals(ctx); err != nil || !ok {
		t.Errorf("LoadHospitals: ok=%v err=%v, want present", ok, err)
	}
	if _, ok, err := s.LoadVisits(ctx); err != nil || ok {
		t.Errorf("LoadVisits: ok=%v err=%v, want absent", ok, err)
	}
}

func TestLoad_CorruptPayloadTreatedAsAbsent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, KeyVisits, []byte("{not json")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	visits, ok, err := s.LoadVisits(ctx)
	if err != nil {
		t.Fatalf("LoadVisits: unexpected error %v", err)
	}
	if ok || visits != nil {
		t.Errorf("corrupt payload: ok=%v visits=%v, want absent", ok, visits)
	}
}

func TestLastWrite(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ts, err := s.LastWrite(ctx)
	if err != nil {
		t.Fatalf("LastWrite on empty store: %v", err)
	}
	if !ts.IsZero() {
		t.Errorf("LastWrite = %v, want zero", ts)
	}

	before := time.Now().Add(-time.Second)
	if err := s.SaveSnapshot(ctx, sampleSnapshot()); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	ts, err = s.LastWrite(ctx)
	if err != nil {
		t.Fatalf("LastWrite: %v", err)
	}
	if ts.Before(before) {
		t.Errorf("LastWrite = %v, want after %v", ts, before)
	}
}
