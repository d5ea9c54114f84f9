package reply

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/famousai/pitchlive/internal/agent"
	"github.com/famousai/pitchlive/internal/budget"
	"github.com/famousai/pitchlive/internal/guard"
	"github.com/famousai/pitchlive/internal/observe"
	"github.com/famousai/pitchlive/pkg/provider/llm"
)

// Disclosure is the AI transparency sentence every assistant reply must
// carry, in one form or another.
const Disclosure = "Je suis un assistant virtuel IA en direct."

// FallbackModel is reported as the model when the provider is unreachable
// and a canned reply is served instead.
const FallbackModel = "fallback-local"

// Generation parameters for chat replies.
const (
	generationTemperature = 0.6
	generationMaxTokens   = 220

	// historyWindow bounds how many prior turns are replayed to the model.
	historyWindow = 8

	// historyTurnMaxChars truncates each replayed turn.
	historyTurnMaxChars = 600
)

// platformPrompt is the global system prompt, always first in the context.
const platformPrompt = "Tu es l'assistant virtuel IA officiel de Famous AI. Tu dois répondre en français, de manière concise, polie et utile. Tu dois toujours rester transparent sur le fait que tu es une IA virtuelle."

// HistoryItem is one prior turn supplied by the client.
type HistoryItem struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerationResult is the outcome of one LLM (or fallback) generation.
type GenerationResult struct {
	// Reply is the final assistant text with the disclosure guaranteed.
	Reply string

	// EstimatedCostUsd is the estimated spend of this generation, zero
	// for fallbacks.
	EstimatedCostUsd float64

	// ModelUsed is the model that produced the reply, or [FallbackModel].
	ModelUsed string
}

// Generator turns a prepared prompt context into an assistant reply,
// degrading to canned local replies when the provider fails.
type Generator struct {
	provider     llm.Provider
	providerName string
	baseModel    string
	complexModel string
	metrics      *observe.Metrics
}

// NewGenerator returns a Generator over the given provider. providerName
// labels provider error metrics. The provider may be nil, in which case
// every generation serves a local fallback.
func NewGenerator(provider llm.Provider, providerName, baseModel, complexModel string, metrics *observe.Metrics) *Generator {
	return &Generator{
		provider:     provider,
		providerName: providerName,
		baseModel:    baseModel,
		complexModel: complexModel,
		metrics:      metrics,
	}
}

// IsComplexQuery reports whether a message warrants the stronger model:
// long messages or ones asking for analysis or strategy.
func IsComplexQuery(message string) bool {
	lowered := strings.ToLower(message)
	return utf8.RuneCountInString(lowered) > 220 ||
		strings.Contains(lowered, "stratég") ||
		strings.Contains(lowered, "analyse") ||
		strings.Contains(lowered, "compare") ||
		strings.Contains(lowered, "plan détaillé")
}

// Generate produces an assistant reply for message. forceBudgetMode pins
// the base model regardless of message complexity. Provider failures never
// surface as errors; the generator answers from the local fallback set.
func (g *Generator) Generate(ctx context.Context, message string, history []HistoryItem, personaPrompt, memoryPrompt string, selected agent.Profile, forceBudgetMode bool) GenerationResult {
	model := g.baseModel
	if !forceBudgetMode && IsComplexQuery(message) {
		model = g.complexModel
	}

	if g.provider == nil {
		return GenerationResult{Reply: fallbackReply(message), ModelUsed: FallbackModel}
	}

	messages := assembleContext(message, history, personaPrompt, memoryPrompt, selected)

	ctx, span := observe.StartSpan(ctx, "reply.generate")
	defer span.End()

	start := time.Now()
	resp, err := g.provider.Complete(ctx, llm.CompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: generationTemperature,
		MaxTokens:   generationMaxTokens,
	})
	g.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())

	if err != nil {
		g.metrics.RecordProviderError(ctx, g.providerName)
		observe.Logger(ctx).Warn("llm completion failed, serving fallback", "error", err, "model", model)
		return GenerationResult{Reply: fallbackReply(message), ModelUsed: FallbackModel}
	}
	if resp == nil {
		return GenerationResult{Reply: fallbackReply(message), ModelUsed: FallbackModel}
	}

	content := guard.Normalize(resp.Content)
	if content == "" {
		return GenerationResult{Reply: fallbackReply(message), ModelUsed: FallbackModel}
	}

	return GenerationResult{
		Reply:            withDisclosure(content),
		EstimatedCostUsd: budget.EstimateCost(resp.Usage.PromptTokens, resp.Usage.CompletionTokens),
		ModelUsed:        model,
	}
}

// assembleContext builds the chat context in fixed order: platform prompt,
// persona host prompt, optional live persona, optional viewer memory,
// recent history, then the user message.
func assembleContext(message string, history []HistoryItem, personaPrompt, memoryPrompt string, selected agent.Profile) []llm.Message {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: platformPrompt},
		{Role: llm.RoleSystem, Content: selected.SystemPrompt + " Ton identité affichée est: " + selected.Name + "."},
	}
	if personaPrompt != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: personaPrompt})
	}
	if memoryPrompt != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: memoryPrompt})
	}

	recent := history
	if len(recent) > historyWindow {
		recent = recent[len(recent)-historyWindow:]
	}
	for _, item := range recent {
		messages = append(messages, llm.Message{
			Role:    item.Role,
			Content: truncate(guard.Normalize(item.Content), historyTurnMaxChars),
		})
	}

	return append(messages, llm.Message{Role: llm.RoleUser, Content: message})
}

// withDisclosure prefixes the disclosure unless the reply already carries
// one in some wording.
func withDisclosure(reply string) string {
	if strings.Contains(reply, "assistant virtuel IA") ||
		strings.Contains(strings.ToLower(reply), "je suis une ia") {
		return reply
	}
	return Disclosure + " " + reply
}

// fallbackReply answers locally when no model is available, keyed on a few
// frequent topics.
func fallbackReply(message string) string {
	lowered := strings.ToLower(message)

	if strings.Contains(lowered, "prix") || strings.Contains(lowered, "coût") || strings.Contains(lowered, "tarif") {
		return Disclosure + " Les tarifs peuvent évoluer selon les options choisies. Je peux t'expliquer les packs de démarrage si tu veux."
	}
	if strings.Contains(lowered, "live") || strings.Contains(lowered, "stream") {
		return Disclosure + " Le live fonctionne en temps réel avec modération et publication encadrée."
	}
	return Disclosure + " Merci pour ta question. Je peux t'aider sur le fonctionnement de la plateforme, les lives et l'onboarding créateur."
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
