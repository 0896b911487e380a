package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	if cfg.Server.Port != 4250 {
		t.Errorf("expected default port 4250, got %d", cfg.Server.Port)
	}
	if cfg.Spec.URL != "https://grch38.togovar.org/api/v1.yml" {
		t.Errorf("unexpected default spec url %s", cfg.Spec.URL)
	}
	if cfg.Spec.LocalPath != "api_v1.yml" {
		t.Errorf("expected default local path api_v1.yml, got %s", cfg.Spec.LocalPath)
	}
	if cfg.Backend.BaseURL != "https://grch38.togovar.org/api" {
		t.Errorf("unexpected default base url %s", cfg.Backend.BaseURL)
	}
	if len(cfg.Forbidden.Names) != 2 || cfg.Forbidden.Location != "query" {
		t.Errorf("unexpected forbidden defaults %+v", cfg.Forbidden)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected default log level info, got %s", cfg.Logging.Level)
	}
}

func TestLoadFromFiles_NoFiles(t *testing.T) {
	cfg, err := LoadFromFiles()
	if err != nil {
		t.Fatalf("LoadFromFiles with no files should not error: %v", err)
	}
	if cfg.Server.Port != 4250 {
		t.Errorf("expected default port 4250, got %d", cfg.Server.Port)
	}
}

func TestLoadFromFiles_ValidTOML(t *testing.T) {
	dir := t.TempDir()
	tomlPath := filepath.Join(dir, "bridge.toml")

	content := `
[server]
port = 9090
host = "0.0.0.0"

[spec]
url = "https://example.org/openapi.json"
local_path = "/etc/bridge/openapi.yml"
fetch_timeout = "30s"

[backend]
base_url = "https://example.org/v1"
timeout = "5s"

[forbidden]
names = ["pretty"]
path_scope = "/api/"

[mcp]
name = "Example"
naming = "operation_id"

[logging]
level = "debug"
`
	if err := os.WriteFile(tomlPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFiles(tomlPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Spec.URL != "https://example.org/openapi.json" {
		t.Errorf("unexpected spec url %s", cfg.Spec.URL)
	}
	if cfg.Spec.GetFetchTimeout() != 30*time.Second {
		t.Errorf("expected 30s fetch timeout, got %s", cfg.Spec.GetFetchTimeout())
	}
	if cfg.Backend.GetTimeout() != 5*time.Second {
		t.Errorf("expected 5s backend timeout, got %s", cfg.Backend.GetTimeout())
	}
	if cfg.Forbidden.PathScope != "/api/" {
		t.Errorf("expected path scope /api/, got %q", cfg.Forbidden.PathScope)
	}
	if cfg.Forbidden.Location != "query" {
		t.Errorf("expected location to keep default query, got %q", cfg.Forbidden.Location)
	}
	if cfg.MCP.Naming != "operation_id" {
		t.Errorf("expected naming operation_id, got %s", cfg.MCP.Naming)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Logging.Level)
	}
}

func TestLoadFromFiles_LaterFileWins(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a.toml")
	second := filepath.Join(dir, "b.toml")
	os.WriteFile(first, []byte("[backend]\nbase_url = \"https://first\"\n"), 0644)
	os.WriteFile(second, []byte("[backend]\nbase_url = \"https://second\"\n"), 0644)

	cfg, err := LoadFromFiles(first, second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Backend.BaseURL != "https://second" {
		t.Errorf("expected second file to win, got %s", cfg.Backend.BaseURL)
	}
}

func TestLoadFromFiles_MissingFile(t *testing.T) {
	_, err := LoadFromFiles(filepath.Join(t.TempDir(), "missing.toml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadFromFiles_InvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	os.WriteFile(path, []byte("[server\nport = "), 0644)

	if _, err := LoadFromFiles(path); err == nil {
		t.Fatal("expected parse error for invalid TOML")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SPEC_URL", "https://env.example/spec.yml")
	t.Setenv("LOCAL_SPEC_PATH", "/tmp/spec.yml")
	t.Setenv("BASE_URL", "https://env.example/api")
	t.Setenv("BRIDGE_FORBIDDEN_PARAMS", "pretty, debug ,")
	t.Setenv("BRIDGE_FORBIDDEN_SCOPE", "/api/")
	t.Setenv("BRIDGE_PORT", "7000")
	t.Setenv("BRIDGE_LOG_LEVEL", "warn")
	t.Setenv("BRIDGE_BACKEND_TIMEOUT", "2s")

	cfg, err := LoadFromFiles()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Spec.URL != "https://env.example/spec.yml" {
		t.Errorf("SPEC_URL not applied: %s", cfg.Spec.URL)
	}
	if cfg.Spec.LocalPath != "/tmp/spec.yml" {
		t.Errorf("LOCAL_SPEC_PATH not applied: %s", cfg.Spec.LocalPath)
	}
	if cfg.Backend.BaseURL != "https://env.example/api" {
		t.Errorf("BASE_URL not applied: %s", cfg.Backend.BaseURL)
	}
	if len(cfg.Forbidden.Names) != 2 || cfg.Forbidden.Names[0] != "pretty" || cfg.Forbidden.Names[1] != "debug" {
		t.Errorf("unexpected forbidden names %v", cfg.Forbidden.Names)
	}
	if cfg.Forbidden.PathScope != "/api/" {
		t.Errorf("BRIDGE_FORBIDDEN_SCOPE not applied: %q", cfg.Forbidden.PathScope)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("BRIDGE_PORT not applied: %d", cfg.Server.Port)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("BRIDGE_LOG_LEVEL not applied: %s", cfg.Logging.Level)
	}
	if cfg.Backend.GetTimeout() != 2*time.Second {
		t.Errorf("BRIDGE_BACKEND_TIMEOUT not applied: %s", cfg.Backend.GetTimeout())
	}
}

func TestEnvOverrides_EmptySpecURLDisablesRemoteTier(t *testing.T) {
	t.Setenv("SPEC_URL", "")

	cfg, err := LoadFromFiles()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Spec.URL != "" {
		t.Errorf("expected empty spec url, got %s", cfg.Spec.URL)
	}
}

func TestEnvOverrides_InvalidPortIgnored(t *testing.T) {
	t.Setenv("BRIDGE_PORT", "not-a-number")

	cfg, err := LoadFromFiles()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 4250 {
		t.Errorf("expected default port to survive invalid env, got %d", cfg.Server.Port)
	}
}

func TestMalformedTimeoutsFallBack(t *testing.T) {
	spec := SpecConfig{FetchTimeout: "soon"}
	if spec.GetFetchTimeout() != 15*time.Second {
		t.Errorf("expected 15s fallback, got %s", spec.GetFetchTimeout())
	}
	backend := BackendConfig{Timeout: "-3s"}
	if backend.GetTimeout() != 15*time.Second {
		t.Errorf("expected 15s fallback for negative duration, got %s", backend.GetTimeout())
	}
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := NewDefaultConfig()
	ApplyFlagOverrides(cfg, 8123, "0.0.0.0")
	if cfg.Server.Port != 8123 || cfg.Server.Host != "0.0.0.0" {
		t.Errorf("flag overrides not applied: %+v", cfg.Server)
	}

	ApplyFlagOverrides(cfg, 0, "")
	if cfg.Server.Port != 8123 || cfg.Server.Host != "0.0.0.0" {
		t.Errorf("zero flags must not override: %+v", cfg.Server)
	}
}

func TestValidate(t *testing.T) {
	cfg := NewDefaultConfig()
	if issues := cfg.Validate(); len(issues) != 0 {
		t.Fatalf("default config should be valid, got %v", issues)
	}

	cfg.MCP.Naming = "random"
	cfg.Forbidden.Location = "body"
	cfg.Server.Port = 70000
	if issues := cfg.Validate(); len(issues) != 3 {
		t.Errorf("expected 3 issues, got %v", issues)
	}
}

func TestValidate_ForbiddenLocationQueryOnly(t *testing.T) {
	for _, loc := range []string{"", "query"} {
		cfg := NewDefaultConfig()
		cfg.Forbidden.Location = loc
		if issues := cfg.Validate(); len(issues) != 0 {
			t.Errorf("location %q should be accepted, got %v", loc, issues)
		}
	}
	for _, loc := range []string{"header", "cookie", "path"} {
		cfg := NewDefaultConfig()
		cfg.Forbidden.Location = loc
		issues := cfg.Validate()
		if len(issues) != 1 || !strings.Contains(issues[0], "forbidden.location") {
			t.Errorf("location %q should be rejected, got %v", loc, issues)
		}
	}
}
