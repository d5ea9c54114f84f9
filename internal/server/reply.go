package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/famousai/pitchlive/internal/agent"
	"github.com/famousai/pitchlive/internal/auth"
	"github.com/famousai/pitchlive/internal/budget"
	"github.com/famousai/pitchlive/internal/live"
	"github.com/famousai/pitchlive/internal/observe"
	"github.com/famousai/pitchlive/internal/reply"
	"github.com/famousai/pitchlive/internal/store"
)

// replyRequest is the POST /api/live-ai/reply body. The viewer identity
// comes from the bearer token, never from the body.
type replyRequest struct {
	LiveID           string              `json:"liveId"`
	Message          string              `json:"message"`
	History          []reply.HistoryItem `json:"history"`
	PreferredAgentID string              `json:"preferredAgentId"`
}

// agentView is the wire shape of a persona.
type agentView struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Gender string `json:"gender"`
}

// budgetView is the wire shape of the monthly budget state. Answered
// replies carry softLimited, hard-capped ones carry hardLimited.
type budgetView struct {
	Month       string  `json:"month"`
	SpentUsd    float64 `json:"spentUsd"`
	LimitUsd    float64 `json:"limitUsd"`
	Ratio       float64 `json:"ratio"`
	SoftLimited *bool   `json:"softLimited,omitempty"`
	HardLimited *bool   `json:"hardLimited,omitempty"`
}

// replyResponse is the 200 body of POST /api/live-ai/reply.
type replyResponse struct {
	LiveID       string      `json:"liveId"`
	Reply        string      `json:"reply"`
	Disclosure   string      `json:"disclosure"`
	Confidence   float64     `json:"confidence"`
	Escalated    bool        `json:"escalated"`
	Agent        *agentView  `json:"agent,omitempty"`
	ActiveAgents []agentView `json:"activeAgents,omitempty"`
	Budget       *budgetView `json:"budget,omitempty"`
	ModelUsed    string      `json:"modelUsed,omitempty"`
}

// refusalResponse is the 200 body when an input guard blocks the message.
// Hard refusals expose nothing but the canned reply; moderation refusals
// also report the fixed confidence so clients can style the turn.
type refusalResponse struct {
	Reply      string   `json:"reply"`
	Confidence *float64 `json:"confidence,omitempty"`
	Escalated  *bool    `json:"escalated,omitempty"`
}

// rateLimitedResponse is the 429 body.
type rateLimitedResponse struct {
	Reply        string `json:"reply"`
	RetryAfterMs int64  `json:"retryAfterMs"`
}

func (s *Server) handleReply(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	var body replyRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.service.Handle(r.Context(), reply.Request{
		UserID:           p.ID,
		LiveID:           body.LiveID,
		Message:          body.Message,
		History:          body.History,
		PreferredAgentID: body.PreferredAgentID,
	})
	if err != nil {
		switch {
		case errors.Is(err, reply.ErrLiveIDRequired):
			writeError(w, http.StatusBadRequest, "liveId required")
		case errors.Is(err, reply.ErrMessageRequired):
			writeError(w, http.StatusBadRequest, "message required")
		case errors.Is(err, reply.ErrMessageTooLong):
			writeError(w, http.StatusBadRequest, "message too long")
		default:
			observe.Logger(r.Context()).Error("reply pipeline failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	switch result.Outcome {
	case reply.OutcomeRateLimited:
		writeJSON(w, http.StatusTooManyRequests, rateLimitedResponse{
			Reply:        result.Reply,
			RetryAfterMs: result.RetryAfter.Milliseconds(),
		})

	case reply.OutcomeRefused:
		resp := refusalResponse{Reply: result.Reply}
		if result.Confidence > 0 {
			resp.Confidence = &result.Confidence
			resp.Escalated = &result.Escalated
		}
		writeJSON(w, http.StatusOK, resp)

	case reply.OutcomeBudgetCapped:
		s.broadcast(body.LiveID, p.ID, body.Message, result)
		writeJSON(w, http.StatusOK, replyResponse{
			LiveID:     body.LiveID,
			Reply:      result.Reply,
			Disclosure: reply.Disclosure,
			Confidence: result.Confidence,
			Escalated:  result.Escalated,
			Agent:      agentViewOf(result.Agent),
			Budget:     budgetViewOf(result.Budget, budget.MonthKey(s.now()), false),
		})

	default:
		s.broadcast(body.LiveID, p.ID, body.Message, result)
		writeJSON(w, http.StatusOK, replyResponse{
			LiveID:       body.LiveID,
			Reply:        result.Reply,
			Disclosure:   reply.Disclosure,
			Confidence:   result.Confidence,
			Escalated:    result.Escalated,
			Agent:        agentViewOf(result.Agent),
			ActiveAgents: agentViews(result.ActiveAgents),
			Budget:       budgetViewOf(result.Budget, budget.MonthKey(s.now()), result.Outcome == reply.OutcomeAnswered),
			ModelUsed:    result.ModelUsed,
		})
	}
}

// broadcast pushes the settled turn to the live's websocket viewers.
func (s *Server) broadcast(liveID, userID, message string, result *reply.Result) {
	if s.hub == nil {
		return
	}

	var eventType string
	switch result.Outcome {
	case reply.OutcomeAnswered, reply.OutcomeBudgetCapped:
		eventType = live.EventReply
	case reply.OutcomeEscalated:
		eventType = live.EventEscalated
	default:
		return
	}

	event := live.Event{
		Type:       eventType,
		LiveID:     liveID,
		UserID:     userID,
		Message:    message,
		Reply:      result.Reply,
		Confidence: result.Confidence,
		CreatedAt:  s.now().UTC(),
	}
	if result.Agent != nil {
		event.AgentID = result.Agent.ID
		event.AgentName = result.Agent.Name
	}
	s.hub.Publish(liveID, event)
}

// messageView is one transcript entry on the wire.
type messageView struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// historyResponse is the GET /api/live-ai/reply body.
type historyResponse struct {
	LiveID       string        `json:"liveId"`
	Messages     []messageView `json:"messages"`
	ActiveAgents []agentView   `json:"activeAgents"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request, _ auth.Principal) {
	liveID := r.URL.Query().Get("liveId")
	if liveID == "" {
		writeError(w, http.StatusBadRequest, "liveId required")
		return
	}

	messages := []messageView{}
	if s.db != nil {
		rows, err := s.db.History(r.Context(), liveID, historyLimit)
		if err != nil {
			// A degraded database yields an empty transcript; anything
			// else is a real failure and surfaces as one.
			if !store.IsDegraded(err) {
				observe.Logger(r.Context()).Error("history fetch failed", "liveId", liveID, "error", err)
				writeError(w, http.StatusInternalServerError, "history fetch failed")
				return
			}
			observe.Logger(r.Context()).Debug("transcript unavailable", "liveId", liveID, "error", err)
		}
		for _, m := range rows {
			messages = append(messages, messageView{
				ID:        m.ID.String(),
				Role:      m.Role,
				Content:   m.Content,
				CreatedAt: m.CreatedAt,
			})
		}
	}

	writeJSON(w, http.StatusOK, historyResponse{
		LiveID:       liveID,
		Messages:     messages,
		ActiveAgents: agentViews(s.service.ActiveRoster(liveID)),
	})
}

func agentViewOf(p *agent.Profile) *agentView {
	if p == nil {
		return nil
	}
	return &agentView{ID: p.ID, Name: p.Name, Gender: string(p.Gender)}
}

func agentViews(profiles []agent.Profile) []agentView {
	views := make([]agentView, 0, len(profiles))
	for _, p := range profiles {
		views = append(views, agentView{ID: p.ID, Name: p.Name, Gender: string(p.Gender)})
	}
	return views
}

// budgetViewOf renders the budget for the wire. soft selects which limit
// flag the view exposes: answered replies report the soft limit, capped
// ones report the hard limit.
func budgetViewOf(st *budget.Status, month string, soft bool) *budgetView {
	if st == nil {
		return nil
	}
	view := &budgetView{
		Month:    month,
		SpentUsd: st.SpentUsd,
		LimitUsd: st.LimitUsd,
		Ratio:    st.Ratio,
	}
	if soft {
		view.SoftLimited = &st.SoftLimited
	} else {
		view.HardLimited = &st.HardLimited
	}
	return view
}
