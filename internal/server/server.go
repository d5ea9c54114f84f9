// Package server exposes the reply pipeline, the moderation API, the
// lives feed and the websocket event stream over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/famousai/pitchlive/internal/auth"
	"github.com/famousai/pitchlive/internal/health"
	"github.com/famousai/pitchlive/internal/live"
	"github.com/famousai/pitchlive/internal/observe"
	"github.com/famousai/pitchlive/internal/reply"
	"github.com/famousai/pitchlive/internal/store"
)

// historyLimit is the number of transcript entries returned per live.
const historyLimit = 80

// Feed pagination bounds.
const (
	defaultFeedLimit = 8
	maxFeedLimit     = 30
)

// maxEscalationPage bounds the moderation list endpoint.
const maxEscalationPage = 200

// Store is the slice of the database the HTTP layer reads and writes
// directly, without going through the reply pipeline.
type Store interface {
	History(ctx context.Context, liveID string, limit int) ([]store.Message, error)
	Escalations(ctx context.Context, status string, limit int) ([]store.Escalation, error)
	UpdateEscalation(ctx context.Context, id uuid.UUID, status, resolutionNote, resolvedBy string) error
	Feed(ctx context.Context, opts store.FeedOptions) ([]store.Live, error)
}

// Server holds the HTTP handler set and its dependencies.
type Server struct {
	service  *reply.Service
	db       Store
	hub      *live.Hub
	verifier *auth.Verifier
	health   *health.Handler
	metrics  *observe.Metrics
	now      func() time.Time
}

// Option customizes a Server.
type Option func(*Server)

// WithNow overrides the server clock. Useful in tests.
func WithNow(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// New assembles the HTTP layer. db may be nil when the service runs
// without a database; the transcript, moderation and feed endpoints then
// serve empty results.
func New(service *reply.Service, db Store, hub *live.Hub, verifier *auth.Verifier, healthHandler *health.Handler, metrics *observe.Metrics, opts ...Option) *Server {
	s := &Server{
		service:  service,
		db:       db,
		hub:      hub,
		verifier: verifier,
		health:   healthHandler,
		metrics:  metrics,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the full route table:
//
//	POST  /api/live-ai/reply          — run one viewer message through the pipeline
//	GET   /api/live-ai/reply          — transcript for a live (?liveId=)
//	GET   /api/live-ai/escalations    — moderation queue (?status=&limit=)
//	PATCH /api/live-ai/escalations    — resolve or reopen a ticket
//	GET   /api/lives/feed             — paginated live feed
//	GET   /api/lives/{liveID}/events  — websocket stream of accepted turns
//	GET   /healthz, /readyz           — probes
//	GET   /metrics                    — Prometheus scrape endpoint
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /api/live-ai/reply", s.authenticated(s.handleReply))
	mux.Handle("GET /api/live-ai/reply", s.authenticated(s.handleHistory))
	mux.Handle("GET /api/live-ai/escalations", s.authenticated(s.handleEscalationList))
	mux.Handle("PATCH /api/live-ai/escalations", s.authenticated(s.handleEscalationUpdate))
	mux.Handle("GET /api/lives/feed", s.authenticated(s.handleFeed))
	mux.Handle("GET /api/lives/{liveID}/events", s.authenticated(s.handleEvents))
	if s.health != nil {
		s.health.Register(mux)
	}
	mux.Handle("GET /metrics", promhttp.Handler())
	return observe.Middleware(s.metrics)(mux)
}

// authenticated verifies the bearer token and passes the Principal to next.
func (s *Server) authenticated(next func(w http.ResponseWriter, r *http.Request, p auth.Principal)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.FromAuthorizationHeader(r.Header.Get("Authorization"))
		principal, err := s.verifier.Verify(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, principal)
	})
}

// handleEvents upgrades the request and streams the live's accepted turns.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request, _ auth.Principal) {
	liveID := r.PathValue("liveID")
	if liveID == "" {
		writeError(w, http.StatusBadRequest, "liveId required")
		return
	}
	_ = s.hub.Serve(w, r, liveID)
}
