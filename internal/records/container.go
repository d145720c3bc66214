// Package records holds the in-memory application state and the domain
// mutation handlers that change it.
//
// [Container] owns the current [model.Snapshot]. Mutations are applied one at
// a time and every committed change is announced to subscribers with a copy of
// the new snapshot, in commit order. [Handlers] implements the add hospital,
// save visit and delete visit operations on top of a Container.
package records

import (
	"sync"

	"github.com/njoerd114/medtrack/internal/model"
)

// Container is a mutex-protected snapshot with change notification.
type Container struct {
	// writeMu serializes commit + notify so subscribers observe snapshots in
	// mutation order.
	writeMu sync.Mutex

	mu     sync.RWMutex
	snap   model.Snapshot
	nextID int
	subs   map[int]func(model.Snapshot)
	order  []int
}

// NewContainer creates an empty Container.
func NewContainer() *Container {
	return &Container{
		snap: model.Snapshot{}.Normalize(),
		subs: make(map[int]func(model.Snapshot)),
	}
}

// Snapshot returns a copy of the current state.
func (c *Container) Snapshot() model.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap.Clone()
}

// Load replaces the state without notifying subscribers. It is used for
// hydration, which populates the state but is not itself a mutation.
func (c *Container) Load(snap model.Snapshot) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.mu.Lock()
	c.snap = snap.Clone().Normalize()
	c.mu.Unlock()
}

// Subscribe registers fn to receive every committed snapshot. Subscribers run
// synchronously on the mutating goroutine, in registration order, and must
// not mutate the container themselves.
func (c *Container) Subscribe(fn func(model.Snapshot)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.order = append(c.order, id)
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
		for i, o := range c.order {
			if o == id {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
	}
}

// update applies fn to a working copy of the snapshot. If fn reports a change
// the copy becomes the new state and subscribers are notified.
func (c *Container) update(fn func(s *model.Snapshot) bool) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	next := c.snap.Clone()
	if !fn(&next) {
		c.mu.Unlock()
		return
	}
	c.snap = next
	subs := make([]func(model.Snapshot), 0, len(c.order))
	for _, id := range c.order {
		subs = append(subs, c.subs[id])
	}
	c.mu.Unlock()

	for _, sub := range subs {
		sub(next.Clone())
	}
}
