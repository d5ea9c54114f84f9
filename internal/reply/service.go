// Package reply implements the live AI reply pipeline: rate limiting,
// input guarding, escalation detection, budget enforcement, persona
// selection and LLM generation, with transcript persistence around it.
package reply

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/famousai/pitchlive/internal/agent"
	"github.com/famousai/pitchlive/internal/budget"
	"github.com/famousai/pitchlive/internal/guard"
	"github.com/famousai/pitchlive/internal/observe"
	"github.com/famousai/pitchlive/internal/persona"
	"github.com/famousai/pitchlive/internal/ratelimit"
	"github.com/famousai/pitchlive/internal/store"
)

// MaxMessageChars bounds the length of an accepted viewer message.
const MaxMessageChars = 500

// escalationReason is recorded on tickets opened by the detector.
const escalationReason = "requires_human_review"

// Validation errors surfaced to the transport layer as 400s.
var (
	ErrLiveIDRequired  = errors.New("reply: liveId required")
	ErrMessageRequired = errors.New("reply: message required")
	ErrMessageTooLong  = errors.New("reply: message too long")
)

// Outcome labels how the pipeline settled a message.
type Outcome string

const (
	// OutcomeAnswered means a reply was generated (or served from the
	// local fallback set).
	OutcomeAnswered Outcome = "answered"

	// OutcomeRateLimited means the viewer must retry later.
	OutcomeRateLimited Outcome = "rate_limited"

	// OutcomeRefused means an input guard blocked the message.
	OutcomeRefused Outcome = "refused"

	// OutcomeEscalated means the question was handed to a moderator.
	OutcomeEscalated Outcome = "escalated"

	// OutcomeBudgetCapped means the monthly budget is exhausted.
	OutcomeBudgetCapped Outcome = "budget_capped"
)

// Request is one viewer message entering the pipeline.
type Request struct {
	UserID           string
	LiveID           string
	Message          string
	History          []HistoryItem
	PreferredAgentID string
}

// Result is the pipeline's answer for a single message.
type Result struct {
	Outcome    Outcome
	Reply      string
	Confidence float64
	Escalated  bool

	// RetryAfter is set only for OutcomeRateLimited.
	RetryAfter time.Duration

	// Agent and ActiveAgents are set once selection ran.
	Agent        *agent.Profile
	ActiveAgents []agent.Profile

	// Budget is set once the budget tracker was consulted.
	Budget *budget.Status

	// ModelUsed names the model behind an answered reply.
	ModelUsed string
}

// Persistence is the slice of the store the pipeline writes to. A degraded
// database (missing tables, denied permissions) never blocks a reply.
type Persistence interface {
	SaveMessage(ctx context.Context, msg *store.Message) error
	SaveEscalation(ctx context.Context, esc *store.Escalation) error
	Persona(ctx context.Context, liveID string) (persona.LivePersona, error)
	FreshViewerMemory(ctx context.Context, userID, liveID string, threshold time.Time) (persona.ViewerMemory, error)
	UpsertViewerMemory(ctx context.Context, userID, liveID string, m persona.ViewerMemory) error
}

// Service runs the full reply pipeline.
type Service struct {
	limiter   *ratelimit.Limiter
	selector  *agent.Selector
	tracker   *budget.Tracker
	generator *Generator
	db        Persistence
	metrics   *observe.Metrics
	now       func() time.Time
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithNow overrides the service clock. Useful in tests.
func WithNow(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewService wires the pipeline stages together.
func NewService(limiter *ratelimit.Limiter, selector *agent.Selector, tracker *budget.Tracker, generator *Generator, db Persistence, metrics *observe.Metrics, opts ...ServiceOption) *Service {
	s := &Service{
		limiter:   limiter,
		selector:  selector,
		tracker:   tracker,
		generator: generator,
		db:        db,
		metrics:   metrics,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle runs req through the pipeline stages in order. Only validation
// failures and non-degraded persistence failures return an error; every
// other path produces a Result the caller can render.
func (s *Service) Handle(ctx context.Context, req Request) (*Result, error) {
	ctx, span := observe.StartSpan(ctx, "reply.handle")
	defer span.End()

	start := s.now()
	res, err := s.handle(ctx, req)
	if err == nil {
		s.metrics.ReplyDuration.Record(ctx, time.Since(start).Seconds())
	}
	return res, err
}

// ActiveRoster exposes the current persona rotation for a live, for
// surfaces that list the roster without submitting a message.
func (s *Service) ActiveRoster(liveID string) []agent.Profile {
	return s.selector.ActiveRoster(liveID)
}

func (s *Service) handle(ctx context.Context, req Request) (*Result, error) {
	if req.LiveID == "" {
		return nil, ErrLiveIDRequired
	}
	message := guard.Normalize(req.Message)
	if message == "" {
		return nil, ErrMessageRequired
	}
	if utf8.RuneCountInString(message) > MaxMessageChars {
		return nil, ErrMessageTooLong
	}

	log := observe.Logger(ctx).With("live_id", req.LiveID, "user_id", req.UserID)

	// Rate limiter.
	if decision := s.limiter.Check(req.UserID, req.LiveID); !decision.Allowed {
		s.metrics.RateLimited.Add(ctx, 1)
		return &Result{
			Outcome:    OutcomeRateLimited,
			Reply:      Disclosure + " Beaucoup de messages reçus. Réessaie dans quelques secondes.",
			RetryAfter: decision.RetryAfter,
		}, nil
	}

	// Input guards.
	if guard.HasForbiddenPattern(message) {
		s.metrics.RecordRefusal(ctx, "forbidden")
		return &Result{
			Outcome: OutcomeRefused,
			Reply:   Disclosure + " Je ne peux pas traiter cette requête. Reformule ta question simplement.",
		}, nil
	}
	if guard.HasModerationPattern(message) {
		s.metrics.RecordRefusal(ctx, "moderation")
		return &Result{
			Outcome:    OutcomeRefused,
			Reply:      Disclosure + " Je ne peux pas répondre à ce type de message. Pose une question sur le live ou la plateforme.",
			Confidence: ModerationConfidence,
		}, nil
	}

	// Escalation detector.
	if guard.ShouldEscalateToHuman(message) {
		return s.escalate(ctx, req, message, log)
	}

	selection := s.selector.Pick(req.LiveID, message, req.PreferredAgentID)
	status := s.tracker.Status()

	// Hard budget cap: short canned reply, transcript still recorded.
	if status.HardLimited {
		reply := Disclosure + " Le quota IA mensuel est atteint. Je passe en mode réponse courte jusqu'au prochain cycle."
		if err := s.saveTurn(ctx, req, message, reply); err != nil {
			return nil, err
		}
		s.metrics.RecordReply(ctx, string(OutcomeBudgetCapped), "")
		return &Result{
			Outcome:      OutcomeBudgetCapped,
			Reply:        reply,
			Confidence:   BudgetConfidence,
			Agent:        &selection.Agent,
			ActiveAgents: selection.Active,
			Budget:       &status,
		}, nil
	}

	personaPrompt, memoryPrompt := s.loadContext(ctx, req.UserID, req.LiveID, log)

	generation := s.generator.Generate(ctx, message, filterHistory(req.History), personaPrompt, memoryPrompt, selection.Agent, status.SoftLimited)

	after := s.tracker.Charge(generation.EstimatedCostUsd)
	s.metrics.BudgetSpend.Add(ctx, generation.EstimatedCostUsd)

	// Memory writer. Best effort: a degraded store loses personalisation,
	// not the reply.
	if s.db != nil {
		if err := s.db.UpsertViewerMemory(ctx, req.UserID, req.LiveID, persona.Summarize(message, s.now())); err != nil {
			if !store.IsDegraded(err) {
				return nil, fmt.Errorf("reply: upsert viewer memory: %w", err)
			}
			log.Debug("viewer memory skipped, store degraded", "error", err)
		}
	}

	if err := s.saveTurn(ctx, req, message, generation.Reply); err != nil {
		return nil, err
	}

	s.metrics.RecordReply(ctx, string(OutcomeAnswered), generation.ModelUsed)

	return &Result{
		Outcome:      OutcomeAnswered,
		Reply:        generation.Reply,
		Confidence:   EstimateConfidence(message, generation.Reply),
		Agent:        &selection.Agent,
		ActiveAgents: selection.Active,
		Budget:       &after,
		ModelUsed:    generation.ModelUsed,
	}, nil
}

// escalate records the exchange, opens a ticket and answers with the
// handoff reply.
func (s *Service) escalate(ctx context.Context, req Request, message string, log *slog.Logger) (*Result, error) {
	reply := Disclosure + " Ta question nécessite une vérification humaine. Je la transmets à un modérateur."

	if err := s.saveTurn(ctx, req, message, reply); err != nil {
		return nil, err
	}

	if s.db != nil {
		esc := &store.Escalation{
			LiveID:   req.LiveID,
			UserID:   req.UserID,
			Question: message,
			Reason:   escalationReason,
		}
		if err := s.db.SaveEscalation(ctx, esc); err != nil {
			if !store.IsDegraded(err) {
				return nil, fmt.Errorf("reply: save escalation: %w", err)
			}
			log.Debug("escalation ticket skipped, store degraded", "error", err)
		}
	}

	s.metrics.Escalations.Add(ctx, 1)
	log.Info("question escalated for human review")

	return &Result{
		Outcome:    OutcomeEscalated,
		Reply:      reply,
		Confidence: EscalationConfidence,
		Escalated:  true,
	}, nil
}

// loadContext fetches the live persona and the viewer's fresh memory
// concurrently. Both degrade to empty prompts on any store trouble.
func (s *Service) loadContext(ctx context.Context, userID, liveID string, log *slog.Logger) (personaPrompt, memoryPrompt string) {
	if s.db == nil {
		return "", ""
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		p, err := s.db.Persona(gctx, liveID)
		if err != nil {
			if !store.IsDegraded(err) && !errors.Is(err, store.ErrNotFound) {
				log.Debug("persona lookup failed", "error", err)
			}
			return nil
		}
		personaPrompt = p.Prompt()
		return nil
	})
	g.Go(func() error {
		m, err := s.db.FreshViewerMemory(gctx, userID, liveID, s.now().Add(-persona.MemoryTTL))
		if err != nil {
			if !store.IsDegraded(err) && !errors.Is(err, store.ErrNotFound) {
				log.Debug("viewer memory lookup failed", "error", err)
			}
			return nil
		}
		memoryPrompt = m.Prompt()
		return nil
	})

	// Goroutines never return errors; Wait only synchronises them.
	_ = g.Wait()
	return personaPrompt, memoryPrompt
}

// filterHistory keeps only user and assistant turns. History comes from
// the client; anything else, a "system" role above all, would let callers
// smuggle instructions ahead of the real system prompts.
func filterHistory(items []HistoryItem) []HistoryItem {
	kept := make([]HistoryItem, 0, len(items))
	for _, item := range items {
		if item.Role == store.RoleUser || item.Role == store.RoleAssistant {
			kept = append(kept, item)
		}
	}
	return kept
}

// saveTurn appends the viewer message and the assistant reply to the
// transcript. Degraded stores are tolerated; real failures are not.
func (s *Service) saveTurn(ctx context.Context, req Request, message, reply string) error {
	if s.db == nil {
		return nil
	}

	for _, msg := range []*store.Message{
		{LiveID: req.LiveID, UserID: req.UserID, Role: store.RoleUser, Content: message},
		{LiveID: req.LiveID, UserID: req.UserID, Role: store.RoleAssistant, Content: reply},
	} {
		if err := s.db.SaveMessage(ctx, msg); err != nil {
			if store.IsDegraded(err) {
				continue
			}
			return fmt.Errorf("reply: save message: %w", err)
		}
	}
	return nil
}
