// Package connectivity tracks whether the local machine is online.
//
// The signal reflects local network-interface state only. It says nothing
// about whether the backend is reachable: a client can be online and still
// fail to push, which the sync orchestrator handles as an ordinary push
// failure.
package connectivity

import (
	"log/slog"
	"sync"
)

// Monitor holds the current online/offline signal and notifies subscribers
// on transitions. The zero value is not usable; create one with [NewMonitor].
type Monitor struct {
	mu     sync.Mutex
	online bool
	nextID int
	subs   map[int]func(online bool)
	log    *slog.Logger
}

// NewMonitor creates a Monitor with the given initial state.
func NewMonitor(initial bool, logger *slog.Logger) *Monitor {
	return &Monitor{
		online: initial,
		subs:   make(map[int]func(bool)),
		log:    logger,
	}
}

// Online reports the current signal.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// SetOnline records a transition. Subscribers are called synchronously, after
// the lock is released, only when the value actually changes.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	subs := make([]func(bool), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	if online {
		m.log.Info("connectivity restored")
	} else {
		m.log.Warn("connectivity lost, working offline")
	}
	for _, fn := range subs {
		fn(online)
	}
}

// Subscribe registers fn for transition notifications and returns a function
// that removes the subscription.
func (m *Monitor) Subscribe(fn func(online bool)) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}
