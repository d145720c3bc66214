// Package insight produces AI-generated clinical suggestions for a visit from
// its diagnosis and findings, using the Gemini generative-language API.
//
// [Client.Suggest] never fails: every problem is turned into a short
// placeholder message the user can read in place of a suggestion.
package insight

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"google.golang.org/genai"
)

// Placeholder messages returned instead of a suggestion.
const (
	MsgOffline    = "AI Insights require an internet connection."
	MsgIncomplete = "Please enter Diagnosis and Clinical Findings first."
	MsgError      = "Error generating AI insights. Please try manual entry."
	MsgEmpty      = "No insights available."
)

const (
	DefaultModel = "gemini-2.0-flash"

	otelScope      = "medtrack/insight"
	metricRequests = "medtrack.insight.requests"
	temperature    = 0.7
	requestTimeout = 20 * time.Second
)

// Connectivity reports whether the machine is online.
type Connectivity interface {
	Online() bool
}

// Config holds the API settings.
type Config struct {
	APIKey string
	Model  string
	// BaseURL overrides the Gemini API root. Empty uses the SDK default.
	BaseURL string
}

// Client calls the Gemini API.
type Client struct {
	sdk      *genai.Client
	initErr  error // set when the SDK client could not be built
	model    string
	conn     Connectivity
	log      *slog.Logger
	requests metric.Int64Counter
}

// New creates a Client. conn may be nil, in which case the client assumes it
// is online and lets the request fail on its own.
func New(cfg Config, conn Connectivity, logger *slog.Logger) *Client {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	counter, err := otel.Meter(otelScope).Int64Counter(metricRequests,
		metric.WithDescription("Number of AI insight requests by outcome"))
	if err != nil {
		logger.Error("creating OTel counter", "name", metricRequests, "error", err)
		counter = noop.Int64Counter{}
	}

	gc, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  &http.Client{Timeout: requestTimeout},
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		logger.Error("creating Gemini client", "error", err)
		err = fmt.Errorf("creating Gemini client: %w", err)
	}

	return &Client{
		sdk:      gc,
		initErr:  err,
		model:    model,
		conn:     conn,
		log:      logger,
		requests: counter,
	}
}

// Suggest returns a short bulleted list of suggested doctor's comments for
// the given diagnosis and findings, or one of the placeholder messages.
func (c *Client) Suggest(ctx context.Context, disease, findings string) string {
	if c.conn != nil && !c.conn.Online() {
		c.record(ctx, "offline")
		return MsgOffline
	}
	if strings.TrimSpace(disease) == "" || strings.TrimSpace(findings) == "" {
		c.record(ctx, "incomplete")
		return MsgIncomplete
	}

	text, err := c.generate(ctx, prompt(disease, findings))
	if err != nil {
		c.log.Error("generating clinical insight", "model", c.model, "error", err)
		c.record(ctx, "error")
		return MsgError
	}
	text = strings.TrimSpace(text)
	if text == "" {
		c.record(ctx, "empty")
		return MsgEmpty
	}
	c.record(ctx, "ok")
	return text
}

func (c *Client) record(ctx context.Context, outcome string) {
	c.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("model", c.model),
	))
}

func prompt(disease, findings string) string {
	return fmt.Sprintf(`Provide a brief medical insight and suggested next steps for a patient with the following:
Diagnosis: %s
Findings: %s

Format the response as a short bulleted list of suggested doctor's comments.`, disease, findings)
}

// generate sends one generateContent request and returns the text of the
// first candidate.
func (c *Client) generate(ctx context.Context, text string) (string, error) {
	if c.initErr != nil {
		return "", c.initErr
	}
	start := time.Now()
	resp, err := c.sdk.Models.GenerateContent(ctx, c.model,
		genai.Text(text),
		&genai.GenerateContentConfig{Temperature: genai.Ptr[float32](temperature)},
	)
	if err != nil {
		return "", fmt.Errorf("calling Gemini: %w", err)
	}
	c.log.Debug("Gemini response", "model", c.model, "elapsed", time.Since(start).Round(time.Millisecond))
	return resp.Text(), nil
}

// AppendSuggestion merges an accepted suggestion into existing comments.
func AppendSuggestion(existing, suggestion string) string {
	if existing == "" {
		return suggestion
	}
	return existing + "\n\nAI Suggested:\n" + suggestion
}
