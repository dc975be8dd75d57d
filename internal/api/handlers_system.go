// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/mediatranscoding/internal/domain/session/model"
	"github.com/ManuGH/mediatranscoding/internal/history"
	"github.com/ManuGH/mediatranscoding/internal/log"
)

// ForegroundRequest is the body of PUT /v1/uids/foreground.
type ForegroundRequest struct {
	UIDs []model.UID `json:"uids"`
}

func (s *Server) handleSetForeground(w http.ResponseWriter, r *http.Request) {
	if s.deps.Foreground == nil {
		writeServiceUnavailable(w, "uid policy")
		return
	}
	var req ForegroundRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}
	for _, uid := range req.UIDs {
		if uid < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid uid %d", uid))
			return
		}
	}

	s.deps.Foreground.SetForeground(req.UIDs...)
	logger := log.WithComponentFromContext(r.Context(), "api")
	logger.Info().
		Str("uids", model.NewUIDSet(req.UIDs...).String()).
		Msg("foreground uids set")

	writeJSON(w, http.StatusOK, map[string]any{"top": s.deps.Foreground.GetTopUids().Sorted()})
}

// ResourceStatus is the resource oracle state.
type ResourceStatus struct {
	Lost              bool    `json:"lost"`
	Forced            bool    `json:"forced"`
	AvailableMemoryMB uint64  `json:"availableMemoryMB"`
	CPUPercent        float64 `json:"cpuPercent"`
}

func (s *Server) resourceStatus() ResourceStatus {
	lost, forced, last := s.deps.Resources.Status()
	return ResourceStatus{
		Lost:              lost,
		Forced:            forced,
		AvailableMemoryMB: last.AvailableMemoryMB,
		CPUPercent:        last.CPUPercent,
	}
}

// handleResources forces resources lost, or clears the override. Host
// pressure may keep resources lost after the override is cleared.
func (s *Server) handleResources(w http.ResponseWriter, r *http.Request) {
	if s.deps.Resources == nil {
		writeServiceUnavailable(w, "resource policy")
		return
	}
	switch state := chi.URLParam(r, "state"); state {
	case "lost":
		s.deps.Resources.ForceLost()
	case "available":
		s.deps.Resources.ClearForced()
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown resource state %q", state))
		return
	}
	writeJSON(w, http.StatusOK, s.resourceStatus())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		writeServiceUnavailable(w, "history")
		return
	}
	q := r.URL.Query()
	var f history.Filter
	if raw := q.Get("client"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid client %q", raw))
			return
		}
		client := model.ClientID(id)
		f.Client = &client
	}
	switch kind := model.OutcomeKind(q.Get("kind")); kind {
	case "", model.OutcomeFinished, model.OutcomeFailed, model.OutcomeCancelled:
		f.Kind = kind
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown outcome kind %q", kind))
		return
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))
			return
		}
		f.Limit = n
	}

	records, err := s.deps.History.List(r.Context(), f)
	if err != nil {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).Msg("history query failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "history query failed"})
		return
	}
	if records == nil {
		records = []history.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"outcomes": records})
}

// handleDumpSessions writes the scheduler dump as text, or the structured
// snapshot with ?format=json.
func (s *Server) handleDumpSessions(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("format") == "json" {
		writeJSON(w, http.StatusOK, s.deps.Sessions.Snapshot())
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := s.deps.Sessions.DumpAllSessions(w); err != nil {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Warn().Err(err).Msg("dump sessions failed")
	}
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status       string            `json:"status"`
	Version      string            `json:"version,omitempty"`
	Sessions     int               `json:"sessions"`
	Current      *model.SessionKey `json:"current,omitempty"`
	ResourceLost bool              `json:"resourceLost"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	snap := s.deps.Sessions.Snapshot()
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:       "ok",
		Version:      s.cfg.Version,
		Sessions:     snap.Total,
		Current:      snap.Current,
		ResourceLost: snap.ResourceLost,
	})
}
