// Package config loads and validates the MedTrack YAML configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied by validate when a field is left unset.
const (
	DefaultDebounce       = 1500 * time.Millisecond
	DefaultHydrateTimeout = 5 * time.Second
	DefaultPushAttempts   = 3
	DefaultGeminiModel    = "gemini-2.0-flash"
	DefaultServerAddr     = ":3001"
	DefaultDataFile       = "db.json"
	DefaultRedisKey       = "medtrack:data"
)

// Storage backends for the serve command.
const (
	StorageFile  = "file"
	StorageRedis = "redis"
)

// Config holds the full application configuration loaded from YAML.
type Config struct {
	// RemoteURL is the base URL of the MedTrack backend
	// (e.g. "http://localhost:3001"). Empty runs the client local-only.
	RemoteURL string `yaml:"remote_url,omitempty"`

	// DBPath overrides the location of the local SQLite database.
	// Defaults to ~/.local/share/medtrack/medtrack.db.
	DBPath string `yaml:"db_path,omitempty"`

	// Debounce is the quiet period after the last change before the full
	// state is pushed to the backend. Minimum 100ms, maximum 30s.
	// Defaults to 1.5s if unset.
	Debounce time.Duration `yaml:"debounce,omitempty"`

	// HydrateTimeout bounds the startup fetch from the backend before the
	// client falls back to local data. Minimum 1s, maximum 1m. Defaults to 5s.
	HydrateTimeout time.Duration `yaml:"hydrate_timeout,omitempty"`

	// PushAttempts is the number of tries for each push. 1 to 10, default 3.
	PushAttempts int `yaml:"push_attempts,omitempty"`

	// Gemini configures AI clinical insights. Omit to disable them.
	Gemini *GeminiConfig `yaml:"gemini,omitempty"`

	// Server configures the backend started by "medtrack serve".
	Server ServerConfig `yaml:"server,omitempty"`

	// Telemetry configures optional OpenTelemetry export via OTLP gRPC.
	// Omit the block entirely to disable telemetry.
	Telemetry *TelemetryConfig `yaml:"telemetry,omitempty"`
}

// GeminiConfig holds the generative-language API settings.
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`

	// Model defaults to "gemini-2.0-flash".
	Model string `yaml:"model,omitempty"`

	// BaseURL overrides the API endpoint. Used by tests and proxies.
	BaseURL string `yaml:"base_url,omitempty"`
}

// ServerConfig holds the backend settings.
type ServerConfig struct {
	// Addr is the listen address. Defaults to ":3001".
	Addr string `yaml:"addr,omitempty"`

	// Storage selects the document store: "file" (default) or "redis".
	Storage string `yaml:"storage,omitempty"`

	// DataFile is the JSON document used by the file store. Defaults to db.json.
	DataFile string `yaml:"data_file,omitempty"`

	// RedisAddr is the host:port of the Redis server for the redis store.
	RedisAddr string `yaml:"redis_addr,omitempty"`

	// RedisKey is the key holding the document. Defaults to "medtrack:data".
	RedisKey string `yaml:"redis_key,omitempty"`

	// CORSOrigins lists allowed origins. Empty allows any origin.
	CORSOrigins []string `yaml:"cors_origins,omitempty"`
}

// TelemetryConfig holds optional OpenTelemetry settings.
type TelemetryConfig struct {
	// OTLPEndpoint is the gRPC host:port of the OTLP collector (e.g. "localhost:4317").
	OTLPEndpoint string `yaml:"otlp_endpoint"`

	// Insecure disables TLS for the collector connection. Use for local collectors.
	Insecure bool `yaml:"insecure,omitempty"`

	// ServiceName overrides the OTel service.name attribute. Defaults to "medtrack".
	ServiceName string `yaml:"service_name,omitempty"`

	// Headers contains key-value pairs sent as gRPC metadata on every OTLP
	// request, e.g. Authorization: "Bearer <token>".
	Headers map[string]string `yaml:"headers,omitempty"`
}

// DefaultPath returns the default config file path: ~/.config/medtrack/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "medtrack", "config.yaml"), nil
}

// Default returns a validated configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	_ = cfg.validate() // defaults alone always validate
	return cfg
}

// Load reads and validates the configuration file at the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config file %q: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true) // reject unknown keys to catch typos early
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config file %q: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// LoadOrDefault is [Load], except that a missing file yields [Default].
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Write validates c and writes it as YAML to path, creating parent
// directories. The file is readable by the owner only since it may hold an
// API key.
func (c *Config) Write(path string) error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config file %q: %w", path, err)
	}
	return nil
}

// AIEnabled reports whether AI insights are configured.
func (c *Config) AIEnabled() bool {
	return c.Gemini != nil && c.Gemini.APIKey != ""
}

// validate checks that all fields are well-formed and applies defaults.
func (c *Config) validate() error {
	if c.RemoteURL != "" {
		u, err := url.ParseRequestURI(c.RemoteURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("remote_url %q must be a valid http or https URL", c.RemoteURL)
		}
		c.RemoteURL = strings.TrimRight(c.RemoteURL, "/")
	}

	if c.Debounce == 0 {
		c.Debounce = DefaultDebounce
	}
	if c.Debounce < 100*time.Millisecond {
		return fmt.Errorf("debounce %v is too short (minimum 100ms)", c.Debounce)
	}
	if c.Debounce > 30*time.Second {
		return fmt.Errorf("debounce %v is too long (maximum 30s)", c.Debounce)
	}

	if c.HydrateTimeout == 0 {
		c.HydrateTimeout = DefaultHydrateTimeout
	}
	if c.HydrateTimeout < time.Second {
		return fmt.Errorf("hydrate_timeout %v is too short (minimum 1s)", c.HydrateTimeout)
	}
	if c.HydrateTimeout > time.Minute {
		return fmt.Errorf("hydrate_timeout %v is too long (maximum 1m)", c.HydrateTimeout)
	}

	if c.PushAttempts == 0 {
		c.PushAttempts = DefaultPushAttempts
	}
	if c.PushAttempts < 1 || c.PushAttempts > 10 {
		return fmt.Errorf("push_attempts %d must be between 1 and 10", c.PushAttempts)
	}

	if c.Gemini != nil {
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("gemini.api_key is required when gemini is configured")
		}
		if c.Gemini.Model == "" {
			c.Gemini.Model = DefaultGeminiModel
		}
		if c.Gemini.BaseURL != "" {
			if _, err := url.ParseRequestURI(c.Gemini.BaseURL); err != nil {
				return fmt.Errorf("gemini.base_url %q is not a valid URL", c.Gemini.BaseURL)
			}
		}
	}

	if err := c.Server.validate(); err != nil {
		return err
	}

	if c.Telemetry != nil {
		if c.Telemetry.OTLPEndpoint == "" {
			return fmt.Errorf("telemetry.otlp_endpoint is required when telemetry is configured")
		}
	}

	return nil
}

func (s *ServerConfig) validate() error {
	if s.Addr == "" {
		s.Addr = DefaultServerAddr
	}
	if s.Storage == "" {
		s.Storage = StorageFile
	}
	switch s.Storage {
	case StorageFile:
		if s.DataFile == "" {
			s.DataFile = DefaultDataFile
		}
	case StorageRedis:
		if s.RedisAddr == "" {
			return fmt.Errorf("server.redis_addr is required when server.storage is %q", StorageRedis)
		}
		if s.RedisKey == "" {
			s.RedisKey = DefaultRedisKey
		}
	default:
		return fmt.Errorf("server.storage %q must be %q or %q", s.Storage, StorageFile, StorageRedis)
	}
	return nil
}
