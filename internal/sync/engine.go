package sync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"github.com/njoerd114/medtrack/internal/model"
	"github.com/njoerd114/medtrack/internal/records"
	"github.com/njoerd114/medtrack/internal/remote"
)

const (
	otelScope        = "medtrack/sync"
	spanHydrate      = "sync.hydrate"
	spanPush         = "sync.push"
	metricPushes     = "medtrack.sync.pushes"
	metricFailures   = "medtrack.sync.push_failures"
	metricSkipped    = "medtrack.sync.push_skipped_offline"
	metricHydrations = "medtrack.sync.hydrations"
)

// Defaults applied by [NewOrchestrator] for zero [Options] values.
const (
	DefaultDebounce       = 1500 * time.Millisecond
	DefaultHydrateTimeout = 5 * time.Second
)

var (
	// ErrOffline is returned by [Orchestrator.Flush] when the push was skipped
	// because the machine is offline. The change is safe in the local store.
	ErrOffline = errors.New("offline, change kept locally")

	// ErrClosed is returned by [Orchestrator.Flush] after [Orchestrator.Close].
	ErrClosed = errors.New("orchestrator closed")

	errSuperseded = errors.New("superseded by a newer change")
)

// Status is the user-visible sync state.
type Status struct {
	// Saving is true while a push is scheduled or running.
	Saving bool
	// RemoteSynced is true when the last completed push (or hydration)
	// reached the backend.
	RemoteSynced bool
}

// Options configures an [Orchestrator]. Zero values select defaults.
type Options struct {
	Debounce       time.Duration
	HydrateTimeout time.Duration
	Scheduler      Scheduler
	Now            func() time.Time
	// OnStatus, if set, is called after every status change.
	OnStatus func(Status)
}

// Orchestrator keeps the records container, the local store and the backend
// consistent. Create one with [NewOrchestrator], call [Orchestrator.Hydrate]
// once, then mutate the container through [records.Handlers]; every committed
// change is written locally and pushed after the debounce interval.
type Orchestrator struct {
	records *records.Container
	local   LocalStore
	remote  RemoteStore // nil in local-only mode
	conn    Connectivity
	log     *slog.Logger

	debounce       time.Duration
	hydrateTimeout time.Duration
	sched          Scheduler
	now            func() time.Time
	onStatus       func(Status)

	hydrateOnce sync.Once
	hydrated    Source

	// baseCtx bounds timer-driven pushes; Close cancels it.
	baseCtx context.Context
	cancel  context.CancelFunc
	unsub   func()

	// pushMu is held for the whole of a push so the backend receives
	// snapshots in generation order.
	pushMu sync.Mutex

	mu         sync.Mutex
	status     Status
	latest     model.Snapshot
	pending    Timer
	gen        uint64 // generation of the most recent scheduled change
	doneGen    uint64 // newest generation whose push outcome was recorded
	running    int    // pushes started and not yet finished
	remoteHash string // content hash of what the backend last accepted
	closed     bool
	inflight   sync.WaitGroup

	// OTel instruments. Always non-nil (no-op when telemetry is disabled).
	tracer        trace.Tracer
	cntPushes     metric.Int64Counter
	cntFailures   metric.Int64Counter
	cntSkipped    metric.Int64Counter
	cntHydrations metric.Int64Counter
}

// NewOrchestrator creates an Orchestrator and subscribes it to container
// commits. remote may be nil, in which case the orchestrator runs local-only.
func NewOrchestrator(container *records.Container, local LocalStore, remote RemoteStore, conn Connectivity, opts Options, logger *slog.Logger) *Orchestrator {
	tracer := otel.Tracer(otelScope)
	meter := otel.Meter(otelScope)

	mustCounter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			logger.Error("creating OTel counter", "name", name, "error", err)
			return noop.Int64Counter{}
		}
		return c
	}

	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.HydrateTimeout <= 0 {
		opts.HydrateTimeout = DefaultHydrateTimeout
	}
	if opts.Scheduler == nil {
		opts.Scheduler = realScheduler{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if local == nil {
		local = NopLocalStore{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		records:        container,
		local:          local,
		remote:         remote,
		conn:           conn,
		log:            logger,
		debounce:       opts.Debounce,
		hydrateTimeout: opts.HydrateTimeout,
		sched:          opts.Scheduler,
		now:            opts.Now,
		onStatus:       opts.OnStatus,
		baseCtx:        ctx,
		cancel:         cancel,

		tracer:        tracer,
		cntPushes:     mustCounter(metricPushes, "Number of successful snapshot pushes to the backend"),
		cntFailures:   mustCounter(metricFailures, "Number of failed snapshot pushes"),
		cntSkipped:    mustCounter(metricSkipped, "Number of pushes skipped because the machine was offline"),
		cntHydrations: mustCounter(metricHydrations, "Number of startup hydrations by source"),
	}
	o.unsub = container.Subscribe(o.OnChange)
	return o
}

// Status returns the current sync status.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// OnChange runs the write-through procedure for a committed snapshot: write
// it to the local store, mark the state as saving and (re)start the debounce
// timer. Snapshots with no hospitals and no visits are ignored.
func (o *Orchestrator) OnChange(snap model.Snapshot) {
	if snap.IsEmpty() {
		return
	}

	if err := o.local.SaveSnapshot(o.baseCtx, snap); err != nil {
		o.log.Warn("writing to local store failed, keeping change in memory", "error", err)
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.latest = snap
	o.gen++
	gen := o.gen
	if o.pending != nil {
		o.pending.Stop()
	}
	o.pending = o.sched.AfterFunc(o.debounce, func() { o.fire(gen) })
	changed := !o.status.Saving
	o.status.Saving = true
	st := o.status
	o.mu.Unlock()

	o.log.Debug("change written locally, push scheduled", "generation", gen, "debounce", o.debounce)
	if changed {
		o.notify(st)
	}
}

// fire is the debounce callback. A callback whose generation has been
// superseded (its timer was stopped too late) does nothing.
func (o *Orchestrator) fire(gen uint64) {
	o.mu.Lock()
	if o.closed || gen != o.gen || o.pending == nil {
		o.mu.Unlock()
		return
	}
	o.pending = nil
	snap := o.latest
	o.running++
	o.inflight.Add(1)
	o.mu.Unlock()

	defer o.inflight.Done()
	_ = o.push(o.baseCtx, gen, snap)
}

// Flush cancels the pending debounce timer and pushes the latest snapshot
// immediately. A push already in progress completes (or gives up) first. It returns nil when
// nothing was pending, [ErrOffline] when the push was skipped, or the push
// error.
func (o *Orchestrator) Flush(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	if o.pending == nil {
		o.mu.Unlock()
		o.inflight.Wait()
		return nil
	}
	o.pending.Stop()
	o.pending = nil
	gen := o.gen
	snap := o.latest
	o.running++
	o.mu.Unlock()

	err := o.push(ctx, gen, snap)
	o.inflight.Wait()
	return err
}

// Close stops the pending timer, cancels in-flight pushes and detaches from
// the records container. A change still waiting for its debounce interval is
// not pushed; it remains in the local store. Call [Orchestrator.Flush] first
// to push it.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	if o.pending != nil {
		o.pending.Stop()
		o.pending = nil
	}
	o.mu.Unlock()

	o.unsub()
	o.cancel()
	o.inflight.Wait()
}

// push sends snap to the backend and records the outcome for gen. Pushes
// run one at a time; a push that is overtaken by a newer change while it
// waits or retries gives up without touching the status flags.
func (o *Orchestrator) push(ctx context.Context, gen uint64, snap model.Snapshot) error {
	if o.remote == nil {
		o.finish(gen, false)
		return nil
	}
	if !o.conn.Online() {
		o.cntSkipped.Add(ctx, 1)
		o.log.Info("offline, push skipped", "generation", gen)
		o.finish(gen, false)
		return ErrOffline
	}

	o.pushMu.Lock()
	defer o.pushMu.Unlock()

	hash := snap.ContentHash()
	o.mu.Lock()
	unchanged := o.status.RemoteSynced && hash == o.remoteHash
	o.mu.Unlock()
	if unchanged {
		o.log.Debug("backend already holds this snapshot, push skipped", "generation", gen)
		o.finish(gen, true)
		return nil
	}

	ctx, span := o.tracer.Start(ctx, spanPush)
	defer span.End()
	span.SetAttributes(
		attribute.Int64("sync.generation", int64(gen)),
		attribute.Int("sync.hospitals", len(snap.Hospitals)),
		attribute.Int("sync.visits", len(snap.Visits)),
	)

	ctx = remote.WithPrecondition(ctx, func() error {
		if o.superseded(gen) {
			return errSuperseded
		}
		return nil
	})

	start := time.Now()
	err := o.remote.ReplaceAll(ctx, snap)
	switch {
	case errors.Is(err, errSuperseded):
		span.SetAttributes(attribute.Bool("sync.superseded", true))
		o.log.Debug("push abandoned, a newer change is on its way", "generation", gen)
		o.abandon()
		return nil
	case err != nil:
		o.cntFailures.Add(ctx, 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.log.Error("pushing to backend failed", "generation", gen, "error", err)
		o.finish(gen, false)
		return err
	}

	o.cntPushes.Add(ctx, 1)
	o.log.Info("pushed to backend", "generation", gen,
		"hospitals", len(snap.Hospitals), "visits", len(snap.Visits),
		"elapsed", time.Since(start).Round(time.Millisecond))
	o.mu.Lock()
	if gen >= o.doneGen {
		o.remoteHash = hash
	}
	o.mu.Unlock()
	o.finish(gen, true)
	return nil
}

// superseded reports whether a change newer than gen has been scheduled or
// pushed.
func (o *Orchestrator) superseded(gen uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.gen > gen || o.doneGen > gen
}

// finish records a push outcome. Outcomes older than one already recorded
// are dropped so a slow push cannot overwrite the result of a newer one.
func (o *Orchestrator) finish(gen uint64, synced bool) {
	o.settle(func() {
		if gen < o.doneGen {
			o.log.Debug("dropping stale push outcome", "generation", gen, "newest", o.doneGen)
			return
		}
		o.doneGen = gen
		o.status.RemoteSynced = synced
		if !synced {
			o.remoteHash = ""
		}
	})
}

// abandon ends a push that has nothing to record.
func (o *Orchestrator) abandon() {
	o.settle(func() {})
}

// settle ends one running push, applies record and recomputes Saving, which
// stays true while another push is scheduled or running.
func (o *Orchestrator) settle(record func()) {
	o.mu.Lock()
	prev := o.status
	if o.running > 0 {
		o.running--
	}
	record()
	o.status.Saving = o.pending != nil || o.running > 0
	st := o.status
	o.mu.Unlock()

	if st != prev {
		o.notify(st)
	}
}

func (o *Orchestrator) setStatus(fn func(*Status)) {
	o.mu.Lock()
	prev := o.status
	fn(&o.status)
	st := o.status
	o.mu.Unlock()
	if st != prev {
		o.notify(st)
	}
}

func (o *Orchestrator) notify(st Status) {
	if o.onStatus != nil {
		o.onStatus(st)
	}
}
