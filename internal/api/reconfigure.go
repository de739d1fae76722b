package api

import (
	"encoding/json"
	"net/http"

	"github.com/banshee-data/camerad/internal/camera"
)

// ReconfigureRequest is a configuration snapshot plus an optional disruption
// level. When the level is omitted the server derives it by diffing against
// the active configuration, the way a reconfigure transport would.
type ReconfigureRequest struct {
	camera.Config
	Level *camera.DisruptionLevel `json:"level"`
}

// handleReconfigure posts the configuration to the node and reports the
// node's Result. Reconfiguration failures are recoverable and come back in
// the result body with a 200; only a dead node is an HTTP error.
func (s *Server) handleReconfigure(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req ReconfigureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var level camera.DisruptionLevel
	if req.Level != nil {
		level = *req.Level
	} else {
		status, err := s.node.Snapshot(r.Context())
		if err != nil {
			s.writeJSONError(w, http.StatusServiceUnavailable, "Node not responding")
			return
		}
		level = req.Config.DiffLevel(status.Config)
	}

	result, err := s.node.Reconfigure(r.Context(), req.Config, level)
	if err != nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "Node not responding")
		return
	}

	if err := json.NewEncoder(w).Encode(result); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write result")
		return
	}
}
