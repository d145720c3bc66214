// Package server is the MedTrack data backend: an HTTP service holding one
// JSON document with the hospital and visit collections.
//
// Routes:
//
//	GET  /api/data  returns {"hospitals": [...], "visits": [...]}
//	POST /api/data  replaces the whole document, returns {"success": true}
//	GET  /health    liveness probe
//
// Failures are reported as {"error": "..."}. There is no authentication, no
// partial update and no version check; the last successful POST wins.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/njoerd114/medtrack/internal/model"
)

const (
	maxBodySize     = "20M"
	shutdownTimeout = 10 * time.Second
)

// Options configures a [Server].
type Options struct {
	// CORSOrigins lists the allowed origins. Empty allows any origin.
	CORSOrigins []string
	// Version is reported by the health endpoint.
	Version string
}

// Server serves the data document from a [DataStore].
type Server struct {
	e     *echo.Echo
	store DataStore
	log   *slog.Logger
	opts  Options
}

// New creates a Server backed by store.
func New(store DataStore, opts Options, logger *slog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(logger)

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	e.Use(requestLogger(logger))
	e.Use(recovery(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType},
	}))
	e.Use(echomw.BodyLimit(maxBodySize))

	s := &Server{e: e, store: store, log: logger, opts: opts}
	e.GET("/health", s.health)
	e.GET("/api/data", s.getData)
	e.POST("/api/data", s.postData)
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.e }

// Run listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting server", "addr", addr)
		if err := s.e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.log.Info("server stopped")
	return nil
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.opts.Version,
	})
}

func (s *Server) getData(c echo.Context) error {
	snap, err := s.store.Load(c.Request().Context())
	if err != nil {
		s.log.Error("reading data", "error", err)
		return c.JSON(http.StatusInternalServerError, errorBody{Error: "Failed to read data"})
	}
	return c.JSON(http.StatusOK, snap)
}

func (s *Server) postData(c echo.Context) error {
	var snap model.Snapshot
	if err := c.Bind(&snap); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "Invalid request body"})
	}
	if err := s.store.Save(c.Request().Context(), snap); err != nil {
		s.log.Error("saving data", "error", err)
		return c.JSON(http.StatusInternalServerError, errorBody{Error: "Failed to save data"})
	}
	s.log.Debug("document replaced", "hospitals", len(snap.Hospitals), "visits", len(snap.Visits))
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

// errorHandler renders echo errors (unknown route, oversized body, panics)
// in the same {"error": ...} envelope as the handlers.
func errorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code := http.StatusInternalServerError
		msg := http.StatusText(code)
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if m, ok := he.Message.(string); ok {
				msg = m
			} else {
				msg = http.StatusText(code)
			}
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, errorBody{Error: msg})
		}
		if err != nil {
			logger.Error("writing error response", "error", err)
		}
	}
}
