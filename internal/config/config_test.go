package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "config-*.yaml")
	if err != nil {
		t.Fatalf("creating temp config: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}
	f.Close()
	return f.Name()
}

func TestLoad_Valid(t *testing.T) {
	path := writeConfig(t, `
remote_url: "http://clinic-server.local:3001/"
db_path: "/tmp/medtrack.db"
debounce: 2s
hydrate_timeout: 10s
push_attempts: 5
gemini:
  api_key: "key-123"
server:
  addr: ":8080"
  data_file: "/var/lib/medtrack/db.json"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.RemoteURL != "http://clinic-server.local:3001" {
		t.Errorf("RemoteURL = %q, want trailing slash trimmed", cfg.RemoteURL)
	}
	if cfg.DBPath != "/tmp/medtrack.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "/tmp/medtrack.db")
	}
	if cfg.Debounce != 2*time.Second {
		t.Errorf("Debounce = %v, want 2s", cfg.Debounce)
	}
	if cfg.HydrateTimeout != 10*time.Second {
		t.Errorf("HydrateTimeout = %v, want 10s", cfg.HydrateTimeout)
	}
	if cfg.PushAttempts != 5 {
		t.Errorf("PushAttempts = %d, want 5", cfg.PushAttempts)
	}
	if !cfg.AIEnabled() {
		t.Error("AIEnabled() = false, want true")
	}
	if cfg.Gemini.Model != DefaultGeminiModel {
		t.Errorf("Gemini.Model = %q, want default %q", cfg.Gemini.Model, DefaultGeminiModel)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("Server.Addr = %q, want :8080", cfg.Server.Addr)
	}
	if cfg.Server.Storage != StorageFile {
		t.Errorf("Server.Storage = %q, want %q", cfg.Server.Storage, StorageFile)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `remote_url: "https://medtrack.example.com"`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Debounce != DefaultDebounce {
		t.Errorf("Debounce = %v, want default %v", cfg.Debounce, DefaultDebounce)
	}
	if cfg.HydrateTimeout != DefaultHydrateTimeout {
		t.Errorf("HydrateTimeout = %v, want default %v", cfg.HydrateTimeout, DefaultHydrateTimeout)
	}
	if cfg.PushAttempts != DefaultPushAttempts {
		t.Errorf("PushAttempts = %d, want default %d", cfg.PushAttempts, DefaultPushAttempts)
	}
	if cfg.Server.Addr != DefaultServerAddr || cfg.Server.DataFile != DefaultDataFile {
		t.Errorf("Server = %+v, want defaults", cfg.Server)
	}
	if cfg.AIEnabled() {
		t.Error("AIEnabled() = true without a gemini block")
	}
}

func TestLoad_EmptyFileUsesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.RemoteURL != "" {
		t.Errorf("RemoteURL = %q, want empty (local-only)", cfg.RemoteURL)
	}
	if cfg.Debounce != DefaultDebounce {
		t.Errorf("Debounce = %v, want default", cfg.Debounce)
	}
}

func TestLoad_InvalidRemoteURL(t *testing.T) {
	path := writeConfig(t, `remote_url: "not-a-url"`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid remote_url, got nil")
	}
}

func TestLoad_RangeChecks(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"debounce too short", "debounce: 10ms"},
		{"debounce too long", "debounce: 1m"},
		{"hydrate timeout too short", "hydrate_timeout: 500ms"},
		{"hydrate timeout too long", "hydrate_timeout: 2m"},
		{"push attempts too many", "push_attempts: 11"},
		{"push attempts negative", "push_attempts: -1"},
	}
	for _, tt := range tests {
		if _, err := Load(writeConfig(t, tt.content)); err == nil {
			t.Errorf("%s: expected error, got nil", tt.name)
		}
	}
}

func TestLoad_GeminiMissingKey(t *testing.T) {
	path := writeConfig(t, `
gemini:
  model: "gemini-1.5-pro"
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for gemini missing api_key, got nil")
	}
}

func TestLoad_ServerStorage(t *testing.T) {
	path := writeConfig(t, `
server:
  storage: redis
  redis_addr: "localhost:6379"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.RedisKey != DefaultRedisKey {
		t.Errorf("RedisKey = %q, want default %q", cfg.Server.RedisKey, DefaultRedisKey)
	}

	if _, err := Load(writeConfig(t, "server:\n  storage: redis\n")); err == nil {
		t.Error("expected error for redis storage without redis_addr")
	}
	if _, err := Load(writeConfig(t, "server:\n  storage: postgres\n")); err == nil {
		t.Error("expected error for unknown storage")
	}
}

func TestLoad_UnknownKey(t *testing.T) {
	path := writeConfig(t, `
remote_url: "http://localhost:3001"
unknown_field: oops
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for unknown config key, got nil")
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Debounce != DefaultDebounce {
		t.Errorf("Debounce = %v, want default", cfg.Debounce)
	}
}

func TestLoadOrDefault_InvalidFileStillFails(t *testing.T) {
	if _, err := LoadOrDefault(writeConfig(t, "debounce: 1h")); err == nil {
		t.Fatal("expected error for invalid config, got nil")
	}
}

func TestDefaultPath(t *testing.T) {
	path, err := DefaultPath()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(path, filepath.Join("medtrack", "config.yaml")) {
		t.Errorf("DefaultPath = %q, want .../medtrack/config.yaml", path)
	}
}

func TestWrite_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := &Config{
		RemoteURL: "http://localhost:3001",
		Debounce:  3 * time.Second,
		Gemini:    &GeminiConfig{APIKey: "secret"},
	}
	if err := cfg.Write(path); err != nil {
		t.Fatalf("Write: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("permissions = %o, want 600", perm)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load after Write: %v", err)
	}
	if got.RemoteURL != cfg.RemoteURL || got.Debounce != cfg.Debounce {
		t.Errorf("loaded = %+v, want %+v", got, cfg)
	}
	if got.Gemini == nil || got.Gemini.APIKey != "secret" {
		t.Errorf("Gemini = %+v, want api key preserved", got.Gemini)
	}
}

func TestWrite_RejectsInvalid(t *testing.T) {
	cfg := &Config{PushAttempts: 99}
	if err := cfg.Write(filepath.Join(t.TempDir(), "config.yaml")); err == nil {
		t.Fatal("expected error writing invalid config, got nil")
	}
}

func TestLoad_TelemetryValid(t *testing.T) {
	path := writeConfig(t, `
telemetry:
  otlp_endpoint: "localhost:4317"
  insecure: true
  service_name: "medtrack-clinic-a"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Telemetry == nil {
		t.Fatal("expected Telemetry to be non-nil")
	}
	if cfg.Telemetry.OTLPEndpoint != "localhost:4317" {
		t.Errorf("OTLPEndpoint = %q, want %q", cfg.Telemetry.OTLPEndpoint, "localhost:4317")
	}
	if !cfg.Telemetry.Insecure {
		t.Error("Insecure = false, want true")
	}
	if cfg.Telemetry.ServiceName != "medtrack-clinic-a" {
		t.Errorf("ServiceName = %q, want %q", cfg.Telemetry.ServiceName, "medtrack-clinic-a")
	}
}

func TestLoad_TelemetryMissingEndpoint(t *testing.T) {
	path := writeConfig(t, `
telemetry:
  insecure: true
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for telemetry missing otlp_endpoint, got nil")
	}
}

func TestLoad_TelemetryHeaders(t *testing.T) {
	path := writeConfig(t, `
telemetry:
  otlp_endpoint: "otelcol.example.com:4317"
  headers:
    Authorization: "Bearer secret"
    x-dataset: "test"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Telemetry.Headers) != 2 {
		t.Fatalf("Headers len = %d, want 2", len(cfg.Telemetry.Headers))
	}
	if cfg.Telemetry.Headers["Authorization"] != "Bearer secret" {
		t.Errorf("Authorization header = %q, want %q", cfg.Telemetry.Headers["Authorization"], "Bearer secret")
	}
}
