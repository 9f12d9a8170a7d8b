package api

import (
	"net/http"

	"github.com/seenimoa/marketbrief/internal/config"
)

// ConfigResponse is the JSON envelope returned by GET /api/v1/config.
type ConfigResponse struct {
	Config  *config.Config `json:"config"`
	Backend string         `json:"backend"`
	Error   string         `json:"backend_error,omitempty"`
}

// handleGetConfig returns the running configuration and the backend it
// resolves to. API keys are excluded via json:"-" tags.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	resp := ConfigResponse{Config: s.cfg}
	if b, err := s.cfg.LLM.ResolveBackend(); err != nil {
		resp.Error = err.Error()
	} else {
		resp.Backend = string(b)
	}
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    resp,
	})
}

// handleGetConfigKeys returns the status of all backend credentials.
func (s *Server) handleGetConfigKeys(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    config.CheckAPIKeys(s.cfg),
	})
}
