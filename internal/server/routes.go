package server

import (
	"net/http"

	"github.com/bobmcallan/openapi-bridge/internal/bridge"
	common "github.com/bobmcallan/openapi-bridge/internal/common"
)

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// MCP endpoint (streamable HTTP, stateless)
	if s.mcp != nil {
		mux.Handle("/mcp", s.mcp)
	}

	if s.metrics != nil {
		mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
			if !RequireMethod(w, r, http.MethodGet) {
				return
			}
			s.metrics.ServeHTTP(w, r)
		})
	}

	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.handleNotFound)

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// versionResponse is the /api/version payload.
type versionResponse struct {
	Version   string       `json:"version"`
	Build     string       `json:"build"`
	GitCommit string       `json:"git_commit"`
	API       *bridge.Info `json:"api,omitempty"`
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	out := versionResponse{
		Version:   common.GetVersion(),
		Build:     common.GetBuild(),
		GitCommit: common.GetGitCommit(),
	}
	if s.status != nil {
		info := s.status.Info()
		out.API = &info
	}
	WriteJSON(w, http.StatusOK, out)
}

// handleNotFound returns a JSON 404 for unmatched API routes.
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	WriteError(w, http.StatusNotFound, "the requested endpoint does not exist")
}
