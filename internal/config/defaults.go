package config

import (
	"time"

	common "github.com/bobmcallan/openapi-bridge/internal/common"
)

const defaultTimeout = 15 * time.Second

// NewDefaultConfig creates a configuration with default values.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 4250,
			Host: "localhost",
		},
		Spec: SpecConfig{
			URL:          "https://grch38.togovar.org/api/v1.yml",
			LocalPath:    "api_v1.yml",
			FetchTimeout: "15s",
		},
		Backend: BackendConfig{
			BaseURL: "https://grch38.togovar.org/api",
			Timeout: "15s",
		},
		Forbidden: ForbiddenConfig{
			Names:     []string{"pretty", "Pretty"},
			Location:  "query",
			PathScope: "",
		},
		MCP: MCPConfig{
			Name:   "TogoVar API Server",
			Naming: "path",
		},
		Logging: common.LoggingConfig{
			Level:   "info",
			Outputs: []string{"console"},
		},
	}
}
