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
	"github.com/ManuGH/mediatranscoding/internal/domain/session/ports"
	"github.com/ManuGH/mediatranscoding/internal/log"
	"github.com/ManuGH/mediatranscoding/internal/validate"
)

const maxBodyBytes = 64 << 10

// SubmitRequest is the body of POST /v1/sessions.
type SubmitRequest struct {
	ClientID  model.ClientID  `json:"clientId"`
	SessionID model.SessionID `json:"sessionId"`
	UID       model.UID       `json:"uid"`
	Request   model.Request   `json:"request"`
}

// SessionResponse describes an accepted or looked-up session.
type SessionResponse struct {
	ClientID  model.ClientID  `json:"clientId"`
	SessionID model.SessionID `json:"sessionId"`
	Request   model.Request   `json:"request"`
}

func (r *SubmitRequest) validate() error {
	v := validate.New()
	v.NonNegative("sessionId", int(r.SessionID))
	v.NotEmpty("request.sourcePath", r.Request.SourcePath)
	v.NotEmpty("request.destinationPath", r.Request.DestinationPath)
	v.NonNegative("request.bitrateBps", int(r.Request.BitrateBps))
	v.NonNegative("request.width", int(r.Request.Width))
	v.NonNegative("request.height", int(r.Request.Height))

	p, err := model.ParsePriority(string(r.Request.Priority))
	if err != nil {
		v.AddError("request.priority", err.Error(), r.Request.Priority)
	} else {
		r.Request.Priority = p
	}
	if p == model.PriorityRealtime && r.UID < 0 {
		v.AddError("uid", "realtime sessions need a non-negative uid", r.UID)
	}
	return v.Err()
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	cb := ports.StrongCallback(s.events.For(req.ClientID))
	if !s.deps.Sessions.SubmitContext(r.Context(), req.ClientID, req.SessionID, req.UID, req.Request, cb) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "session already exists"})
		return
	}

	logger := log.WithComponentFromContext(r.Context(), "api")
	logger.Info().
		Int64(log.FieldClientID, int64(req.ClientID)).
		Int32(log.FieldSessionID, int32(req.SessionID)).
		Int32(log.FieldUID, int32(req.UID)).
		Str(log.FieldPriority, string(req.Request.Priority)).
		Msg("session submitted")

	writeJSON(w, http.StatusCreated, SessionResponse{
		ClientID:  req.ClientID,
		SessionID: req.SessionID,
		Request:   req.Request,
	})
}

func parseClient(r *http.Request) (model.ClientID, error) {
	raw := chi.URLParam(r, "client")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid client id %q", raw)
	}
	return model.ClientID(id), nil
}

func parseSessionKey(r *http.Request) (model.ClientID, model.SessionID, error) {
	client, err := parseClient(r)
	if err != nil {
		return 0, 0, err
	}
	raw := chi.URLParam(r, "session")
	id, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid session id %q", raw)
	}
	return client, model.SessionID(id), nil
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	client, sessionID, err := parseSessionKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	req, ok := s.deps.Sessions.GetSession(client, sessionID)
	if !ok {
		writeNotFound(w)
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{ClientID: client, SessionID: sessionID, Request: req})
}

// handleCancel removes one session, or every realtime session of the
// client when the session id is negative.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	client, sessionID, err := parseSessionKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !s.deps.Sessions.CancelContext(r.Context(), client, sessionID) {
		writeNotFound(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClientEvents(w http.ResponseWriter, r *http.Request) {
	client, err := parseClient(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var after uint64
	if raw := r.URL.Query().Get("after"); raw != "" {
		after, err = strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid after %q", raw))
			return
		}
	}
	events := []Event{}
	if l, ok := s.events.Lookup(client); ok {
		events = l.Since(after)
	}
	writeJSON(w, http.StatusOK, map[string]any{"clientId": client, "events": events})
}
