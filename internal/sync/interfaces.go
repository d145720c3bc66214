// Package sync implements the local-first synchronization layer for MedTrack.
// It keeps the in-memory records, the local SQLite store and the remote
// backend consistent.
//
// The package contains one main component, the [Orchestrator], which:
//
//   - hydrates the in-memory state once at startup (remote first, local
//     store as fallback, default hospitals as a last resort);
//   - writes every committed change through to the local store;
//   - pushes the full snapshot to the backend after a quiet period
//     (debounce), gated by connectivity.
package sync

import (
	"context"
	"time"

	"github.com/njoerd114/medtrack/internal/model"
)

// LocalStore provides durable on-device persistence.
// Implemented by [state.Store].
type LocalStore interface {
	LoadHospitals(ctx context.Context) ([]model.Hospital, bool, error)
	LoadVisits(ctx context.Context) ([]model.PatientVisit, bool, error)
	SaveSnapshot(ctx context.Context, snap model.Snapshot) error
	SaveHospitals(ctx context.Context, hospitals []model.Hospital) error
}

// RemoteStore provides whole-document access to the backend.
// Implemented by [remote.Client].
type RemoteStore interface {
	FetchAll(ctx context.Context) (model.Snapshot, error)
	ReplaceAll(ctx context.Context, snap model.Snapshot) error
}

// Connectivity reports whether the machine is online.
// Implemented by [connectivity.Monitor].
type Connectivity interface {
	Online() bool
}

// Timer is a pending scheduled call that can be cancelled.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d. The production implementation wraps
// [time.AfterFunc]; tests substitute a manual scheduler.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// NopLocalStore is used when the local database cannot be opened. Loads find
// nothing and saves are discarded, so the application keeps running in
// memory.
type NopLocalStore struct{}

func (NopLocalStore) LoadHospitals(context.Context) ([]model.Hospital, bool, error) {
	return nil, false, nil
}

func (NopLocalStore) LoadVisits(context.Context) ([]model.PatientVisit, bool, error) {
	return nil, false, nil
}

func (NopLocalStore) SaveSnapshot(context.Context, model.Snapshot) error { return nil }

func (NopLocalStore) SaveHospitals(context.Context, []model.Hospital) error { return nil }
