package sync

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/njoerd114/medtrack/internal/model"
)

// --- Mock Local Store --------------------------------------------------------

type mockLocal struct {
	mu        sync.Mutex
	hospitals []model.Hospital // nil = absent
	visits    []model.PatientVisit
	saves     int
	saveErr   error
}

func newMockLocal() *mockLocal { return &mockLocal{} }

func (m *mockLocal) LoadHospitals(context.Context) ([]model.Hospital, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hospitals == nil {
		return nil, false, nil
	}
	return append([]model.Hospital(nil), m.hospitals...), true, nil
}

func (m *mockLocal) LoadVisits(context.Context) ([]model.PatientVisit, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.visits == nil {
		return nil, false, nil
	}
	return append([]model.PatientVisit(nil), m.visits...), true, nil
}

func (m *mockLocal) SaveSnapshot(_ context.Context, snap model.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	snap = snap.Clone().Normalize()
	m.hospitals = snap.Hospitals
	m.visits = snap.Visits
	return nil
}

func (m *mockLocal) SaveHospitals(_ context.Context, hospitals []model.Hospital) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hospitals = append([]model.Hospital{}, hospitals...)
	return nil
}

func (m *mockLocal) snapshot() model.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return model.Snapshot{Hospitals: m.hospitals, Visits: m.visits}.Clone().Normalize()
}

// --- Mock Remote Store -------------------------------------------------------

type mockRemote struct {
	mu       sync.Mutex
	doc      model.Snapshot
	fetchErr error
	pushErr  error
	// hang makes FetchAll block until its context is done.
	hang   bool
	pushes []model.Snapshot
	// gate, if set, is received from before each ReplaceAll returns.
	gate chan struct{}
}

func newMockRemote() *mockRemote { return &mockRemote{} }

func (m *mockRemote) FetchAll(ctx context.Context) (model.Snapshot, error) {
	m.mu.Lock()
	hang, err, doc := m.hang, m.fetchErr, m.doc.Clone()
	m.mu.Unlock()

	if hang {
		<-ctx.Done()
		return model.Snapshot{}, ctx.Err()
	}
	if err != nil {
		return model.Snapshot{}, err
	}
	return doc, nil
}

func (m *mockRemote) ReplaceAll(ctx context.Context, snap model.Snapshot) error {
	m.mu.Lock()
	gate := m.gate
	m.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.pushes = append(m.pushes, snap.Clone())
	if m.pushErr != nil {
		return m.pushErr
	}
	m.doc = snap.Clone()
	return nil
}

func (m *mockRemote) pushCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pushes)
}

func (m *mockRemote) lastPush() model.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pushes) == 0 {
		return model.Snapshot{}
	}
	return m.pushes[len(m.pushes)-1]
}

// --- Mock Connectivity -------------------------------------------------------

type mockConn struct {
	mu     sync.Mutex
	online bool
}

func (m *mockConn) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

func (m *mockConn) set(online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.online = online
}

// --- Manual Scheduler --------------------------------------------------------

// manualScheduler records scheduled callbacks; tests advance its clock to
// fire them synchronously.
type manualScheduler struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*manualTimer
}

type manualTimer struct {
	s       *manualScheduler
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{s: s, at: s.now + d, f: f}
	s.timers = append(s.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// advance moves the clock forward by d and runs every due, unstopped
// callback in deadline order on the calling goroutine.
func (s *manualScheduler) advance(d time.Duration) {
	s.mu.Lock()
	s.now += d
	var due []*manualTimer
	for _, t := range s.timers {
		if !t.stopped && !t.fired && t.at <= s.now {
			t.fired = true
			due = append(due, t)
		}
	}
	s.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at < due[j].at })
	for _, t := range due {
		t.f()
	}
}

// active returns the number of scheduled callbacks that are neither stopped
// nor fired.
func (s *manualScheduler) active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

var errBackendDown = errors.New("backend down")
