package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSession exchanges the static API key for a short-lived session JWT.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if !s.bearerMatchesKey(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	tok, err := s.auth.Mint(w)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to mint session token")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": tok})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"gateway":         s.gw.Stats(r.Context()),
		"cost_today_usd":  s.ledger.CostToday(),
		"disabled_models": s.ledger.DisabledModels(),
	})
}

// handleUsage replays the usage log over [since, until). Defaults to the
// current UTC day when no window is given.
func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	since := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	until := now.Add(time.Second)

	q := r.URL.Query()
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since: expected RFC3339")
			return
		}
		since = t
	}
	if v := q.Get("until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid until: expected RFC3339")
			return
		}
		until = t
	}

	stats, err := s.ledger.Stats(r.Context(), since, until)
	if err != nil {
		s.logger.Error().Err(err).Msg("usage replay failed")
		writeError(w, http.StatusInternalServerError, "usage replay failed")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleModelEnable(w http.ResponseWriter, r *http.Request) {
	m := chi.URLParam(r, "model")
	if m == "" {
		writeError(w, http.StatusBadRequest, "missing model")
		return
	}
	s.ledger.EnableModel(m)
	writeJSON(w, http.StatusOK, map[string]any{"model": m, "available": true})
}

func (s *Server) handleModelDisable(w http.ResponseWriter, r *http.Request) {
	m := chi.URLParam(r, "model")
	if m == "" {
		writeError(w, http.StatusBadRequest, "missing model")
		return
	}
	s.ledger.DisableModel(m)
	writeJSON(w, http.StatusOK, map[string]any{"model": m, "available": false})
}

type invalidateRequest struct {
	SubjectID          string `json:"subject_id"`
	DocumentTypePrefix string `json:"document_type_prefix"`
}

func (s *Server) handleCacheInvalidate(w http.ResponseWriter, r *http.Request) {
	var req invalidateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.SubjectID == "" {
		writeError(w, http.StatusBadRequest, "missing subject_id")
		return
	}
	n := s.analysis.Invalidate(r.Context(), req.SubjectID, req.DocumentTypePrefix)
	writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}

func (s *Server) handleCacheCleanup(w http.ResponseWriter, r *http.Request) {
	n := s.analysis.CleanupExpired(r.Context())
	writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}
