package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	common "github.com/bobmcallan/openapi-bridge/internal/common"
)

// Config represents the application configuration.
type Config struct {
	Server    ServerConfig         `toml:"server"`
	Spec      SpecConfig           `toml:"spec"`
	Backend   BackendConfig        `toml:"backend"`
	Forbidden ForbiddenConfig      `toml:"forbidden"`
	MCP       MCPConfig            `toml:"mcp"`
	Logging   common.LoggingConfig `toml:"logging"`
}

// ServerConfig contains HTTP server settings for the streamable MCP transport.
type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

// SpecConfig controls where the API description is acquired from.
type SpecConfig struct {
	URL          string `toml:"url"`
	LocalPath    string `toml:"local_path"`
	FetchTimeout string `toml:"fetch_timeout"`
}

// BackendConfig describes the downstream HTTP API.
type BackendConfig struct {
	BaseURL string `toml:"base_url"`
	Timeout string `toml:"timeout"`
}

// ForbiddenConfig names the query parameters that must never reach the backend.
type ForbiddenConfig struct {
	Names     []string `toml:"names"`
	Location  string   `toml:"location"` // only "query" is enforced on the wire
	PathScope string   `toml:"path_scope"`
}

// MCPConfig contains tool-server identity and tool naming settings.
type MCPConfig struct {
	Name   string `toml:"name"`
	Naming string `toml:"naming"` // "path" or "operation_id"
}

// GetFetchTimeout parses the spec fetch timeout, falling back to the default.
func (c *SpecConfig) GetFetchTimeout() time.Duration {
	return parseDuration(c.FetchTimeout, defaultTimeout)
}

// GetTimeout parses the per-request backend timeout, falling back to the default.
func (c *BackendConfig) GetTimeout() time.Duration {
	return parseDuration(c.Timeout, defaultTimeout)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// LoadFromFile loads configuration with priority: defaults -> file -> env.
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files with priority:
// defaults -> file1 -> file2 -> ... -> env.
// Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		err = toml.Unmarshal(data, config)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config.
// SPEC_URL, LOCAL_SPEC_PATH and BASE_URL keep their unprefixed names so
// existing deployments of the bridge keep working.
func applyEnvOverrides(config *Config) {
	if v, ok := os.LookupEnv("SPEC_URL"); ok {
		config.Spec.URL = strings.TrimSpace(v)
	}
	if v := os.Getenv("LOCAL_SPEC_PATH"); v != "" {
		config.Spec.LocalPath = v
	}
	if v := os.Getenv("BASE_URL"); v != "" {
		config.Backend.BaseURL = strings.TrimSpace(v)
	}
	if v := os.Getenv("BRIDGE_SPEC_TIMEOUT"); v != "" {
		config.Spec.FetchTimeout = v
	}
	if v := os.Getenv("BRIDGE_BACKEND_TIMEOUT"); v != "" {
		config.Backend.Timeout = v
	}
	if v := os.Getenv("BRIDGE_FORBIDDEN_PARAMS"); v != "" {
		config.Forbidden.Names = splitList(v)
	}
	if v, ok := os.LookupEnv("BRIDGE_FORBIDDEN_SCOPE"); ok {
		config.Forbidden.PathScope = strings.TrimSpace(v)
	}
	if v := os.Getenv("BRIDGE_MCP_NAME"); v != "" {
		config.MCP.Name = v
	}
	if v := os.Getenv("BRIDGE_TOOL_NAMING"); v != "" {
		config.MCP.Naming = v
	}
	if port := os.Getenv("BRIDGE_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("BRIDGE_HOST"); host != "" {
		config.Server.Host = host
	}
	if level := os.Getenv("BRIDGE_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config.
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate returns human-readable problems that would make the bridge unusable.
// Malformed spec sources are deliberately absent: the spec fallback chain handles them.
func (c *Config) Validate() []string {
	var issues []string
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		issues = append(issues, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
	}
	switch c.MCP.Naming {
	case "", "path", "operation_id":
	default:
		issues = append(issues, fmt.Sprintf("mcp.naming %q must be \"path\" or \"operation_id\"", c.MCP.Naming))
	}
	// The outbound hook strips query keys only, so no other location can be
	// enforced on the wire.
	if c.Forbidden.Location != "" && c.Forbidden.Location != "query" {
		issues = append(issues, fmt.Sprintf("forbidden.location %q is not supported, only \"query\" is", c.Forbidden.Location))
	}
	return issues
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
