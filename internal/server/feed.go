package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/famousai/pitchlive/internal/auth"
	"github.com/famousai/pitchlive/internal/observe"
	"github.com/famousai/pitchlive/internal/store"
)

// liveView is the wire shape of one feed row.
type liveView struct {
	ID                 string    `json:"id"`
	Title              string    `json:"title"`
	Status             string    `json:"status"`
	CreatorID          string    `json:"creatorId"`
	CreatorVerified    bool      `json:"creatorVerified"`
	CreatorIsCertified bool      `json:"creatorIsCertified"`
	IsCertified        bool      `json:"isCertified"`
	CreatedAt          time.Time `json:"createdAt"`
}

// feedResponse is the GET /api/lives/feed body.
type feedResponse struct {
	Rows     []liveView `json:"rows"`
	LiveOnly bool       `json:"liveOnly"`
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request, _ auth.Principal) {
	query := r.URL.Query()

	offset := 0
	if raw := query.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		offset = n
	}

	limit := defaultFeedLimit
	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	if limit > maxFeedLimit {
		limit = maxFeedLimit
	}

	liveOnly := true
	if raw := query.Get("liveOnly"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid liveOnly")
			return
		}
		liveOnly = v
	}

	rows := []liveView{}
	if s.db != nil {
		lives, err := s.db.Feed(r.Context(), store.FeedOptions{
			Offset:   offset,
			Limit:    limit,
			LiveOnly: liveOnly,
		})
		if err != nil {
			// A degraded database yields an empty feed, not an error.
			observe.Logger(r.Context()).Debug("feed unavailable", "error", err)
		}
		for _, l := range lives {
			rows = append(rows, liveView{
				ID:                 l.ID.String(),
				Title:              l.Title,
				Status:             l.Status,
				CreatorID:          l.CreatorID,
				CreatorVerified:    l.CreatorVerified,
				CreatorIsCertified: l.CreatorIsCertified,
				IsCertified:        l.IsCertified,
				CreatedAt:          l.CreatedAt,
			})
		}
	}

	writeJSON(w, http.StatusOK, feedResponse{Rows: rows, LiveOnly: liveOnly})
}
