// Package remote is the HTTP client for the MedTrack data backend. The
// backend holds one JSON document and exposes exactly two operations: fetch
// the whole document and replace the whole document. There are no partial
// updates and no version checks; the last successful replace wins.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/njoerd114/medtrack/internal/model"
)

const (
	dataPath   = "/api/data"
	healthPath = "/health"

	defaultTimeout = 10 * time.Second
)

// StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend returned %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("backend returned %d %s", e.Code, http.StatusText(e.Code))
}

type preconditionKey struct{}

// WithPrecondition returns a copy of ctx carrying check. [Client.ReplaceAll]
// calls check before every attempt and stops, returning the wrapped error,
// as soon as check fails. No request is sent for that attempt.
func WithPrecondition(ctx context.Context, check func() error) context.Context {
	return context.WithValue(ctx, preconditionKey{}, check)
}

func checkPrecondition(ctx context.Context) error {
	if check, ok := ctx.Value(preconditionKey{}).(func() error); ok && check != nil {
		return check()
	}
	return nil
}

// Client talks to a MedTrack backend. Create one with [New].
type Client struct {
	baseURL    string
	httpClient *http.Client
	attempts   int
	logger     *slog.Logger
}

// Option configures a [Client].
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client (10s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithPushAttempts sets how many times [Client.ReplaceAll] tries before
// giving up.
func WithPushAttempts(n int) Option {
	return func(c *Client) { c.attempts = n }
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client for the backend at baseURL (e.g. "http://localhost:3001").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		attempts:   DefaultPushAttempts,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend URL the client was created with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FetchAll returns the complete remote-held snapshot. It makes a single
// attempt; callers bound it with ctx so that a hanging backend cannot stall
// startup.
func (c *Client) FetchAll(ctx context.Context) (model.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+dataPath, nil)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("creating fetch request: %w", err)
	}

	body, err := c.do(req)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("fetching remote data: %w", err)
	}

	var snap model.Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return model.Snapshot{}, fmt.Errorf("decoding remote data: %w", err)
	}
	return snap.Normalize(), nil
}

// ReplaceAll overwrites the complete remote-held snapshot. Transient failures
// are retried with backoff; 4xx responses are not. A precondition attached
// with [WithPrecondition] is checked before each attempt.
func (c *Client) ReplaceAll(ctx context.Context, snap model.Snapshot) error {
	payload, err := json.Marshal(snap.Normalize())
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	attempt := 0
	err = Retry(ctx, c.attempts, func() error {
		attempt++
		if err := checkPrecondition(ctx); err != nil {
			return Permanent(err)
		}
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+dataPath, bytes.NewReader(payload))
		if reqErr != nil {
			return Permanent(fmt.Errorf("creating replace request: %w", reqErr))
		}
		req.Header.Set("Content-Type", "application/json")

		_, doErr := c.do(req)
		var se *StatusError
		if errors.As(doErr, &se) && se.Code >= 400 && se.Code < 500 {
			return Permanent(doErr)
		}
		if doErr != nil {
			c.logger.Debug("remote replace attempt failed", "attempt", attempt, "error", doErr)
		}
		return doErr
	})
	if err != nil {
		return fmt.Errorf("replacing remote data: %w", err)
	}
	return nil
}

// Ping checks that the backend is reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, nil)
	if err != nil {
		return fmt.Errorf("creating ping request: %w", err)
	}
	if _, err := c.do(req); err != nil {
		return fmt.Errorf("pinging backend: %w", err)
	}
	return nil
}

// do executes req and returns the response body, converting non-2xx
// responses into a [*StatusError].
func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		se := &StatusError{Code: resp.StatusCode}
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &errResp) == nil {
			se.Message = errResp.Error
		}
		return nil, se
	}
	return body, nil
}
