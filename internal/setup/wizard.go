package setup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"time"

	"github.com/njoerd114/medtrack/internal/config"
	"github.com/njoerd114/medtrack/internal/remote"
)

const (
	defaultRemoteURL = "http://localhost:3001"
	pingTimeout      = 5 * time.Second
)

// PingFunc checks that a backend answers at baseURL.
type PingFunc func(ctx context.Context, baseURL string) error

// PingBackend pings baseURL with a [remote.Client].
func PingBackend(ctx context.Context, baseURL string) error {
	return remote.New(baseURL).Ping(ctx)
}

// Wizard walks the user through writing a config file.
type Wizard struct {
	prompt *Prompter
	logger *slog.Logger
	w      io.Writer
	path   string
	ping   PingFunc
}

// NewWizard creates a Wizard that writes to cfgPath. A nil ping uses
// [PingBackend].
func NewWizard(r io.Reader, w io.Writer, cfgPath string, ping PingFunc, logger *slog.Logger) *Wizard {
	if ping == nil {
		ping = PingBackend
	}
	return &Wizard{
		prompt: NewPrompter(r, w),
		logger: logger,
		w:      w,
		path:   cfgPath,
		ping:   ping,
	}
}

// Run executes the wizard. Answers default to the existing config when there
// is one. The file is only written in the final step.
func (wiz *Wizard) Run(ctx context.Context) error {
	fmt.Fprintf(wiz.w, "\nWelcome to MedTrack Setup!\n")
	fmt.Fprintf(wiz.w, "This wizard writes %s.\n\n", wiz.path)

	cfg, err := config.Load(wiz.path)
	switch {
	case err == nil:
		fmt.Fprintf(wiz.w, "  Existing config found at %s\n", wiz.path)
		if !wiz.prompt.Confirm("Update existing configuration?", true) {
			fmt.Fprintf(wiz.w, "\n  Keeping existing config.\n")
			return nil
		}
		fmt.Fprintf(wiz.w, "\n")
	case errors.Is(err, fs.ErrNotExist):
		cfg = config.Default()
	default:
		wiz.logger.Warn("existing config is unreadable, starting from defaults", "path", wiz.path, "error", err)
		cfg = config.Default()
	}

	fmt.Fprintf(wiz.w, "Step 1/5: Backend\n")
	if err := wiz.askRemote(ctx, cfg); err != nil {
		return err
	}

	fmt.Fprintf(wiz.w, "Step 2/5: Sync timing\n")
	cfg.Debounce = wiz.prompt.Duration("Wait after the last change before pushing", cfg.Debounce, 100*time.Millisecond, 30*time.Second)
	cfg.HydrateTimeout = wiz.prompt.Duration("Give up on the backend at startup after", cfg.HydrateTimeout, time.Second, time.Minute)
	fmt.Fprintf(wiz.w, "\n")

	fmt.Fprintf(wiz.w, "Step 3/5: AI clinical insights\n")
	wiz.askGemini(cfg)

	fmt.Fprintf(wiz.w, "Step 4/5: Server storage (medtrack serve)\n")
	if err := wiz.askStorage(cfg); err != nil {
		return err
	}

	fmt.Fprintf(wiz.w, "Step 5/5: Save configuration\n")
	if err := cfg.Write(wiz.path); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	fmt.Fprintf(wiz.w, "  ✓ Config written to %s\n\n", wiz.path)
	fmt.Fprintf(wiz.w, "Setup complete! Try: medtrack status\n\n")
	return nil
}

func (wiz *Wizard) askRemote(ctx context.Context, cfg *config.Config) error {
	if !wiz.prompt.Confirm("Sync with a MedTrack backend?", true) {
		cfg.RemoteURL = ""
		fmt.Fprintf(wiz.w, "  Data will be kept on this machine only.\n\n")
		return nil
	}

	current := cfg.RemoteURL
	if current == "" {
		current = defaultRemoteURL
	}
	cfg.RemoteURL = wiz.prompt.String("Backend URL", current, true)

	fmt.Fprintf(wiz.w, "  Connecting to backend...")
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := wiz.ping(pingCtx, cfg.RemoteURL); err != nil {
		fmt.Fprintf(wiz.w, " ✗\n")
		wiz.logger.Debug("backend ping failed", "url", cfg.RemoteURL, "error", err)
		if !wiz.prompt.Confirm("Backend is unreachable. Keep this URL anyway?", false) {
			return fmt.Errorf("cannot reach backend at %s: %w", cfg.RemoteURL, err)
		}
		fmt.Fprintf(wiz.w, "\n")
		return nil
	}
	fmt.Fprintf(wiz.w, " ✓\n\n")
	return nil
}

func (wiz *Wizard) askGemini(cfg *config.Config) {
	if !wiz.prompt.Confirm("Enable AI suggestions for doctor's comments?", cfg.AIEnabled()) {
		cfg.Gemini = nil
		fmt.Fprintf(wiz.w, "\n")
		return
	}

	g := cfg.Gemini
	if g == nil {
		g = &config.GeminiConfig{Model: config.DefaultGeminiModel}
	}
	g.APIKey = wiz.prompt.Secret("Gemini API key", g.APIKey)
	if g.APIKey == "" {
		fmt.Fprintf(wiz.w, "  No key given, AI suggestions stay disabled.\n\n")
		cfg.Gemini = nil
		return
	}
	g.Model = wiz.prompt.String("Model", g.Model, true)
	cfg.Gemini = g
	fmt.Fprintf(wiz.w, "\n")
}

func (wiz *Wizard) askStorage(cfg *config.Config) error {
	options := []string{"JSON file", "Redis"}
	def := 0
	if cfg.Server.Storage == config.StorageRedis {
		def = 1
	}
	idx, err := wiz.prompt.Select("Where should the server keep its document", options, def)
	if err != nil {
		return fmt.Errorf("selecting storage: %w", err)
	}

	if idx == 1 {
		cfg.Server.Storage = config.StorageRedis
		cfg.Server.RedisAddr = wiz.prompt.String("Redis address", orDefault(cfg.Server.RedisAddr, "localhost:6379"), true)
	} else {
		cfg.Server.Storage = config.StorageFile
		cfg.Server.DataFile = wiz.prompt.String("Data file", orDefault(cfg.Server.DataFile, config.DefaultDataFile), true)
	}
	fmt.Fprintf(wiz.w, "\n")
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
