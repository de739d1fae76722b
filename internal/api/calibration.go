package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/banshee-data/camerad/internal/calib"
)

func (s *Server) showCalibration(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	rec, err := s.node.Record(r.Context())
	if err != nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "Node not responding")
		return
	}

	if err := json.NewEncoder(w).Encode(rec); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write calibration")
		return
	}
}

// CalibrationLoadRequest names a calibration source to check.
type CalibrationLoadRequest struct {
	URL string `json:"url"`
}

// CalibrationLoadResponse carries the parsed document for a valid source.
type CalibrationLoadResponse struct {
	Valid  bool         `json:"valid"`
	Record calib.Record `json:"record"`
}

// handleCalibrationLoad validates and loads a calibration URL without
// touching the running camera. Operators use it to check a source before
// committing to a reconfiguration that points the camera at it.
func (s *Server) handleCalibrationLoad(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req CalibrationLoadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := calib.ValidateURL(req.URL); err != nil {
		if errors.Is(err, calib.ErrInvalidURL) {
			s.writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	rec, err := calib.LoadURL(r.Context(), req.URL)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := json.NewEncoder(w).Encode(CalibrationLoadResponse{Valid: true, Record: rec}); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write record")
		return
	}
}

func (s *Server) showCalibrationHistory(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.store == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "No calibration store configured")
		return
	}

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	rec, err := s.node.Record(r.Context())
	if err != nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "Node not responding")
		return
	}

	entries, err := s.store.History(rec.Name, limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to read history")
		return
	}

	if err := json.NewEncoder(w).Encode(entries); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write history")
		return
	}
}
