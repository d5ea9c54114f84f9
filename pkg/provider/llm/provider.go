// Package llm defines the Provider interface for Large Language Model
// backends.
//
// A provider wraps a remote model API (e.g. OpenAI, Groq, Mistral) and
// exposes a uniform completion interface so the reply pipeline never couples
// to a specific SDK. Implementors must be safe for concurrent use.
package llm

import "context"

// Chat roles understood by every backend.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a chat conversation sent to the model.
type Message struct {
	// Role is "system", "user", or "assistant".
	Role string

	// Content is the message text.
	Content string
}

// Usage holds token accounting information returned by the LLM backend.
// Counts are in the model's native token unit; they drive the monthly spend
// estimate, so implementations should surface the provider's real numbers
// rather than approximating.
type Usage struct {
	// PromptTokens is the number of tokens consumed by the input messages.
	PromptTokens int

	// CompletionTokens is the number of tokens generated in the response.
	CompletionTokens int

	// TotalTokens is PromptTokens + CompletionTokens.
	TotalTokens int
}

// CompletionRequest carries everything the model needs to produce a reply.
// Messages must be non-empty; the last message is typically the live user
// turn.
type CompletionRequest struct {
	// Model overrides the provider's configured default model for this
	// request. Empty means use the default.
	Model string

	// Messages is the ordered conversation, system context first.
	Messages []Message

	// Temperature controls output randomness in [0.0, 2.0]. Zero means
	// use the provider default.
	Temperature float64

	// MaxTokens caps the number of completion tokens. Zero means the
	// provider default.
	MaxTokens int
}

// CompletionResponse is returned by Complete.
type CompletionResponse struct {
	// Content is the full text of the assistant's reply.
	Content string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Provider is the abstraction over any LLM backend.
//
// Implementations must be safe for concurrent use from multiple goroutines
// and must propagate context cancellation promptly.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	// Returns an error if the request fails, if the model returns no
	// choices, or if ctx is cancelled first.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// CountTokens estimates how many tokens the given messages would
	// consume in the model's context window. The result need not be exact
	// but should not undercount.
	CountTokens(messages []Message) (int, error)
}
