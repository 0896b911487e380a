// Package mcp exposes the bridge's compiled tools over the Model Context Protocol.
package mcp

import (
	"net/http"

	mcpserver "github.com/mark3labs/mcp-go/server"

	common "github.com/bobmcallan/openapi-bridge/internal/common"
)

// NewServer creates an MCP server with one tool per compiled operation plus
// bridge_info, unless a compiled tool already uses that name.
func NewServer(b Bridge, name string, logger *common.Logger) *mcpserver.MCPServer {
	mcpSrv := mcpserver.NewMCPServer(
		name,
		common.GetVersion(),
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithRecovery(),
	)

	toolCount := RegisterTools(mcpSrv, b, logger)

	infoTaken := false
	for _, def := range b.ListTools() {
		if def.Name == InfoToolName {
			infoTaken = true
			break
		}
	}
	if infoTaken {
		logger.Warn().Str("tool", InfoToolName).Msg("compiled tool shadows the built-in info tool, skipping it")
	} else {
		mcpSrv.AddTool(InfoTool(), InfoToolHandler(b))
	}

	logger.Info().
		Str("name", name).
		Int("tools", toolCount).
		Msg("MCP server initialized")
	return mcpSrv
}

// Handler is the HTTP handler for the MCP endpoint.
// It wraps mcp-go's StreamableHTTPServer and delegates to it.
type Handler struct {
	streamable *mcpserver.StreamableHTTPServer
	logger     *common.Logger
}

// NewHandler wraps s in a stateless streamable HTTP transport.
func NewHandler(s *mcpserver.MCPServer, logger *common.Logger) *Handler {
	return &Handler{
		streamable: mcpserver.NewStreamableHTTPServer(s, mcpserver.WithStateLess(true)),
		logger:     logger,
	}
}

// ServeHTTP delegates to the mcp-go StreamableHTTPServer.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.streamable.ServeHTTP(w, r)
}
