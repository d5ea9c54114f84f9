package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/famousai/pitchlive/internal/auth"
	"github.com/famousai/pitchlive/internal/observe"
	"github.com/famousai/pitchlive/internal/store"
)

// escalationView is the wire shape of a moderation ticket.
type escalationView struct {
	ID             string     `json:"id"`
	LiveID         string     `json:"liveId"`
	UserID         string     `json:"userId"`
	Question       string     `json:"question"`
	Reason         string     `json:"reason"`
	Status         string     `json:"status"`
	ResolutionNote *string    `json:"resolutionNote,omitempty"`
	ResolvedBy     *string    `json:"resolvedBy,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	ResolvedAt     *time.Time `json:"resolvedAt,omitempty"`
}

// escalationListResponse is the GET /api/live-ai/escalations body.
type escalationListResponse struct {
	Escalations []escalationView `json:"escalations"`
}

func (s *Server) handleEscalationList(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	if !s.verifier.IsModerator(p) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	status := r.URL.Query().Get("status")
	switch status {
	case "", store.EscalationOpen, store.EscalationResolved:
	default:
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}
	if status == "" {
		status = store.EscalationOpen
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	if limit < 1 {
		limit = 1
	}
	if limit > maxEscalationPage {
		limit = maxEscalationPage
	}

	views := []escalationView{}
	if s.db != nil {
		rows, err := s.db.Escalations(r.Context(), status, limit)
		if err != nil {
			// A degraded database yields an empty queue, not an error.
			observe.Logger(r.Context()).Debug("escalation queue unavailable", "error", err)
		}
		for _, e := range rows {
			views = append(views, escalationView{
				ID:             e.ID.String(),
				LiveID:         e.LiveID,
				UserID:         e.UserID,
				Question:       e.Question,
				Reason:         e.Reason,
				Status:         e.Status,
				ResolutionNote: e.ResolutionNote,
				ResolvedBy:     e.ResolvedBy,
				CreatedAt:      e.CreatedAt,
				ResolvedAt:     e.ResolvedAt,
			})
		}
	}

	writeJSON(w, http.StatusOK, escalationListResponse{Escalations: views})
}

// escalationUpdateRequest is the PATCH /api/live-ai/escalations body.
type escalationUpdateRequest struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	ResolutionNote string `json:"resolutionNote"`
}

func (s *Server) handleEscalationUpdate(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	if !s.verifier.IsModerator(p) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	var body escalationUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.ID == "" {
		writeError(w, http.StatusBadRequest, "id required")
		return
	}
	id, err := uuid.Parse(body.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if body.Status != store.EscalationOpen && body.Status != store.EscalationResolved {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}
	if s.db == nil {
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}

	err = s.db.UpdateEscalation(r.Context(), id, body.Status, body.ResolutionNote, p.Email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "escalation not found")
		return
	case err != nil:
		observe.Logger(r.Context()).Error("escalation update failed", "id", body.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
