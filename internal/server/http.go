package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/alfredjeanlab/scanline/internal/session"
)

// maxBodyBytes bounds request bodies; every control payload is tiny.
const maxBodyBytes = 4 << 10

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests (except GET /v1/health) must include
// a valid Authorization: Bearer <token> header.
func (s *Server) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/session/start", s.handleStart)
	mux.HandleFunc("POST /v1/session/stop", s.handleStop)
	mux.HandleFunc("PUT /v1/torch", s.handleSetTorch)
	mux.HandleFunc("POST /v1/torch/toggle", s.handleToggleTorch)
	mux.HandleFunc("POST /v1/focus", s.handleFocus)
	mux.HandleFunc("GET /v1/status", s.handleStatus)
	mux.HandleFunc("GET /v1/stats", s.handleStats)
	mux.HandleFunc("GET /v1/events/stream", s.handleEventStream)
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	return AuthMiddleware(authToken, RecoveryMiddleware(s.logger, mux))
}

// TorchRequest is the body of PUT /v1/torch.
type TorchRequest struct {
	Enabled *bool `json:"enabled"`
}

// TorchResponse reports the torch after a change.
type TorchResponse struct {
	Enabled bool `json:"enabled"`
	TorchOn bool `json:"torch_on"`
}

// FocusRequest is the body of POST /v1/focus, in preview coordinates.
type FocusRequest struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

// handleStart handles POST /v1/session/start.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Start(r.Context()); err != nil {
		s.writeControlError(w, "start", err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

// handleStop handles POST /v1/session/stop.
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Stop(r.Context()); err != nil {
		s.writeControlError(w, "stop", err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

// handleSetTorch handles PUT /v1/torch.
func (s *Server) handleSetTorch(w http.ResponseWriter, r *http.Request) {
	var req TorchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Enabled == nil {
		writeError(w, http.StatusBadRequest, "enabled is required")
		return
	}
	if err := s.ctrl.SetTorch(r.Context(), *req.Enabled); err != nil {
		s.writeControlError(w, "torch", err)
		return
	}
	st := s.ctrl.Status()
	writeJSON(w, http.StatusOK, TorchResponse{Enabled: st.TorchRequested, TorchOn: st.TorchOn})
}

// handleToggleTorch handles POST /v1/torch/toggle.
func (s *Server) handleToggleTorch(w http.ResponseWriter, r *http.Request) {
	enabled, err := s.ctrl.ToggleTorch(r.Context())
	if err != nil {
		s.writeControlError(w, "torch toggle", err)
		return
	}
	writeJSON(w, http.StatusOK, TorchResponse{Enabled: enabled, TorchOn: s.ctrl.Status().TorchOn})
}

// handleFocus handles POST /v1/focus.
func (s *Server) handleFocus(w http.ResponseWriter, r *http.Request) {
	var req FocusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.X == nil || req.Y == nil {
		writeError(w, http.StatusBadRequest, "x and y are required")
		return
	}
	if err := s.ctrl.FocusAt(r.Context(), *req.X, *req.Y); err != nil {
		s.writeControlError(w, "focus", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleStatus handles GET /v1/status.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

// handleStats handles GET /v1/stats.
func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	if s.stats == nil {
		writeError(w, http.StatusNotFound, "stats not enabled")
		return
	}
	writeJSON(w, http.StatusOK, s.stats.Snapshot())
}

// handleHealth handles GET /v1/health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"state":  s.ctrl.Status().State.String(),
	})
}

// writeControlError maps controller errors to HTTP status codes.
func (s *Server) writeControlError(w http.ResponseWriter, op string, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrPermissionDenied):
		code = http.StatusForbidden
	case errors.Is(err, session.ErrAcquisitionFailed), errors.Is(err, session.ErrClosed):
		code = http.StatusServiceUnavailable
	}
	s.logger.Warn("server: "+op+" failed", "status", code, "err", err)
	writeError(w, code, err.Error())
}

// decodeBody reads a JSON body into v, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
