package sync

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/njoerd114/medtrack/internal/model"
)

// Source identifies where hydrated state came from.
type Source string

const (
	SourceRemote Source = "remote"
	SourceLocal  Source = "local"
)

// Hydrate populates the records container exactly once. Later calls return
// the first result without doing any work.
//
// The remote backend is tried first, bounded by the hydrate timeout. A
// non-empty remote document is adopted and written through to the local
// store. Otherwise hospitals and visits are read from the local store
// independently; missing hospitals are replaced by the default seed list,
// which is persisted. Hydration never fails and never schedules a push.
func (o *Orchestrator) Hydrate(ctx context.Context) Source {
	o.hydrateOnce.Do(func() {
		o.hydrated = o.hydrate(ctx)
	})
	return o.hydrated
}

func (o *Orchestrator) hydrate(ctx context.Context) Source {
	ctx, span := o.tracer.Start(ctx, spanHydrate)
	defer span.End()

	if snap, ok := o.fetchRemote(ctx); ok {
		o.records.Load(snap)
		if err := o.local.SaveSnapshot(ctx, snap); err != nil {
			o.log.Warn("writing hydrated state to local store", "error", err)
		}
		o.mu.Lock()
		o.remoteHash = snap.ContentHash()
		o.mu.Unlock()
		o.setStatus(func(s *Status) { s.RemoteSynced = true })
		o.cntHydrations.Add(ctx, 1, metric.WithAttributes(attribute.String("source", string(SourceRemote))))
		span.SetAttributes(
			attribute.String("sync.source", string(SourceRemote)),
			attribute.Int("sync.hospitals", len(snap.Hospitals)),
			attribute.Int("sync.visits", len(snap.Visits)),
		)
		o.log.Info("hydrated from backend", "hospitals", len(snap.Hospitals), "visits", len(snap.Visits))
		return SourceRemote
	}

	snap := o.loadLocal(ctx)
	o.records.Load(snap)
	o.setStatus(func(s *Status) { s.RemoteSynced = false })
	o.cntHydrations.Add(ctx, 1, metric.WithAttributes(attribute.String("source", string(SourceLocal))))
	span.SetAttributes(
		attribute.String("sync.source", string(SourceLocal)),
		attribute.Int("sync.hospitals", len(snap.Hospitals)),
		attribute.Int("sync.visits", len(snap.Visits)),
	)
	o.log.Info("hydrated from local store", "hospitals", len(snap.Hospitals), "visits", len(snap.Visits))
	return SourceLocal
}

// fetchRemote returns the backend document when it is usable for hydration:
// the fetch succeeded within the timeout and at least one collection is
// non-empty.
func (o *Orchestrator) fetchRemote(ctx context.Context) (model.Snapshot, bool) {
	if o.remote == nil {
		o.log.Debug("no backend configured, hydrating locally")
		return model.Snapshot{}, false
	}
	if !o.conn.Online() {
		o.log.Debug("offline, hydrating locally")
		return model.Snapshot{}, false
	}

	fetchCtx, cancel := context.WithTimeout(ctx, o.hydrateTimeout)
	defer cancel()

	start := time.Now()
	snap, err := o.remote.FetchAll(fetchCtx)
	if err != nil {
		o.log.Warn("fetching from backend failed, using local data", "error", err, "elapsed", time.Since(start).Round(time.Millisecond))
		return model.Snapshot{}, false
	}
	if snap.IsEmpty() {
		o.log.Info("backend is empty, using local data")
		return model.Snapshot{}, false
	}
	return snap.Normalize(), true
}

func (o *Orchestrator) loadLocal(ctx context.Context) model.Snapshot {
	snap := model.Snapshot{}.Normalize()

	hospitals, ok, err := o.local.LoadHospitals(ctx)
	if err != nil {
		o.log.Warn("reading hospitals from local store", "error", err)
	}
	if ok {
		snap.Hospitals = hospitals
	} else {
		snap.Hospitals = model.DefaultHospitals(o.now())
		if err := o.local.SaveHospitals(ctx, snap.Hospitals); err != nil {
			o.log.Warn("persisting default hospitals", "error", err)
		}
		o.log.Info("seeded default hospitals", "count", len(snap.Hospitals))
	}

	visits, ok, err := o.local.LoadVisits(ctx)
	if err != nil {
		o.log.Warn("reading visits from local store", "error", err)
	}
	if ok {
		snap.Visits = visits
	}
	return snap.Normalize()
}
