package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/njoerd114/medtrack/internal/config"
	"github.com/njoerd114/medtrack/internal/connectivity"
	"github.com/njoerd114/medtrack/internal/insight"
	"github.com/njoerd114/medtrack/internal/records"
	"github.com/njoerd114/medtrack/internal/remote"
	"github.com/njoerd114/medtrack/internal/state"
	syncp "github.com/njoerd114/medtrack/internal/sync"
	"github.com/njoerd114/medtrack/internal/telemetry"
)

const telemetryFlushTimeout = 5 * time.Second

// session is everything a client command needs: hydrated records, the
// handlers that mutate them and the orchestrator that persists and pushes
// every change.
type session struct {
	cfg     *config.Config
	cfgPath string
	log     *slog.Logger

	store  *state.Store // nil when the local database could not be opened
	dbPath string
	remote *remote.Client // nil in local-only mode

	monitor  *connectivity.Monitor
	records  *records.Container
	handlers *records.Handlers
	orch     *syncp.Orchestrator
	source   syncp.Source
	insight  *insight.Client // nil when AI insights are not configured

	shutdownTel telemetry.ShutdownFunc
}

// newLogger builds the stderr logger. base is the level used without
// --verbose.
func (g *globals) newLogger(w io.Writer, base slog.Level) (*slog.Logger, error) {
	level := base
	if g.verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	switch g.logFormat {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid --log-format %q (want text or json)", g.logFormat)
	}
}

// loadConfig reads the config file. A missing file at the default location
// yields the defaults; a missing file named with --config is an error.
func (g *globals) loadConfig() (*config.Config, string, error) {
	if g.configPath != "" {
		cfg, err := config.Load(g.configPath)
		return cfg, g.configPath, err
	}
	path, err := config.DefaultPath()
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.LoadOrDefault(path)
	return cfg, path, err
}

func (g *globals) resolveDBPath(cfg *config.Config) (string, error) {
	switch {
	case g.dbPath != "":
		return g.dbPath, nil
	case cfg.DBPath != "":
		return cfg.DBPath, nil
	default:
		return state.DefaultDBPath()
	}
}

// openSession wires the client stack and hydrates the records. The local
// database is opened best-effort: without it the session keeps working in
// memory.
func (g *globals) openSession(cmd *cobra.Command, base slog.Level, onStatus func(syncp.Status)) (*session, error) {
	ctx := cmd.Context()

	logger, err := g.newLogger(cmd.ErrOrStderr(), base)
	if err != nil {
		return nil, err
	}

	cfg, cfgPath, err := g.loadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	s := &session{cfg: cfg, cfgPath: cfgPath, log: logger}

	if tc, ok := telemetry.FromConfig(cfg.Telemetry, Version, "client"); ok {
		shutdown, err := telemetry.Setup(ctx, tc)
		if err != nil {
			logger.Error("telemetry setup failed, continuing without telemetry", "error", err)
		} else {
			s.shutdownTel = shutdown
		}
	}

	s.dbPath, err = g.resolveDBPath(cfg)
	if err != nil {
		return nil, fmt.Errorf("resolving local database path: %w", err)
	}
	var local syncp.LocalStore = syncp.NopLocalStore{}
	if st, err := state.Open(s.dbPath, logger); err != nil {
		logger.Warn("local database unavailable, changes will be kept in memory only", "path", s.dbPath, "error", err)
	} else {
		s.store = st
		local = st
	}

	// A nil *remote.Client must not reach the orchestrator as a non-nil
	// interface value.
	var rs syncp.RemoteStore
	if cfg.RemoteURL != "" {
		s.remote = remote.New(cfg.RemoteURL,
			remote.WithPushAttempts(cfg.PushAttempts),
			remote.WithLogger(logger),
		)
		rs = s.remote
	}

	s.monitor = connectivity.NewMonitor(!g.offline, logger)
	if !g.offline {
		connectivity.NewInterfaceWatcher(s.monitor, g.interfaces, 0, logger).Check()
	}

	s.records = records.NewContainer()
	s.handlers = records.NewHandlers(s.records)
	s.orch = syncp.NewOrchestrator(s.records, local, rs, s.monitor, syncp.Options{
		Debounce:       cfg.Debounce,
		HydrateTimeout: cfg.HydrateTimeout,
		OnStatus:       onStatus,
	}, logger)

	if cfg.AIEnabled() {
		s.insight = insight.New(insight.Config{
			APIKey:  cfg.Gemini.APIKey,
			Model:   cfg.Gemini.Model,
			BaseURL: cfg.Gemini.BaseURL,
		}, s.monitor, logger)
	}

	s.source = s.orch.Hydrate(ctx)
	return s, nil
}

// flush pushes any pending change before the command exits. Push problems
// are reported on w but never fail the command: the change is already in the
// local store.
func (s *session) flush(ctx context.Context, w io.Writer) {
	err := s.orch.Flush(ctx)
	switch {
	case err == nil:
	case errors.Is(err, syncp.ErrOffline):
		fmt.Fprintln(w, "Offline: changes saved on this machine only.")
	default:
		fmt.Fprintf(w, "Backend unreachable, changes saved on this machine only: %v\n", err)
	}
}

// close releases every resource. Errors are logged.
func (s *session) close() {
	s.orch.Close()
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.log.Error("closing local database", "error", err)
		}
	}
	if s.shutdownTel != nil {
		ctx, cancel := context.WithTimeout(context.Background(), telemetryFlushTimeout)
		defer cancel()
		if err := s.shutdownTel(ctx); err != nil {
			s.log.Error("telemetry shutdown error", "error", err)
		}
	}
}

// run executes fn against the active watch session, or against a fresh
// session that is flushed and closed afterwards.
func (g *globals) run(cmd *cobra.Command, fn func(s *session) error) error {
	if g.active != nil {
		return fn(g.active)
	}

	s, err := g.openSession(cmd, slog.LevelWarn, nil)
	if err != nil {
		return err
	}
	defer s.close()

	runErr := fn(s)
	s.flush(cmd.Context(), cmd.ErrOrStderr())
	return runErr
}
