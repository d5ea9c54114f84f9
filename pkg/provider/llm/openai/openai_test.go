package openai

import (
	"testing"

	"github.com/famousai/pitchlive/pkg/provider/llm"
)

// TestNew_RequiresAPIKey checks that an empty API key is rejected.
func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New("", "gpt-4.1-mini")
	if err == nil {
		t.Fatal("expected error for empty apiKey, got nil")
	}
}

// TestNew_RequiresModel checks that an empty model is rejected.
func TestNew_RequiresModel(t *testing.T) {
	_, err := New("sk-test", "")
	if err == nil {
		t.Fatal("expected error for empty model, got nil")
	}
}

// TestBuildParams_DefaultModel checks that an empty request model falls
// back to the provider's configured model.
func TestBuildParams_DefaultModel(t *testing.T) {
	p := &Provider{model: "gpt-4.1-mini"}
	params := p.buildParams(llm.CompletionRequest{})
	if params.Model != "gpt-4.1-mini" {
		t.Errorf("expected model gpt-4.1-mini, got %s", params.Model)
	}
}

// TestBuildParams_ModelOverride checks that a per-request model wins over
// the configured default.
func TestBuildParams_ModelOverride(t *testing.T) {
	p := &Provider{model: "gpt-4.1-mini"}
	params := p.buildParams(llm.CompletionRequest{Model: "gpt-4.1"})
	if params.Model != "gpt-4.1" {
		t.Errorf("expected model gpt-4.1, got %s", params.Model)
	}
}

// TestBuildParams_RoleMapping checks system/assistant/user conversion.
func TestBuildParams_RoleMapping(t *testing.T) {
	p := &Provider{model: "gpt-4.1-mini"}
	params := p.buildParams(llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "Tu incarnes Alex."},
			{Role: llm.RoleAssistant, Content: "Bienvenue !"},
			{Role: llm.RoleUser, Content: "salut"},
		},
	})
	if len(params.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(params.Messages))
	}
	if params.Messages[0].OfSystem == nil {
		t.Error("expected OfSystem to be set")
	}
	if params.Messages[1].OfAssistant == nil {
		t.Error("expected OfAssistant to be set")
	}
	if params.Messages[2].OfUser == nil {
		t.Error("expected OfUser to be set")
	}
}

// TestBuildParams_OmitsUnsetTunables checks that zero temperature and max
// tokens stay unset instead of being sent as zeroes.
func TestBuildParams_OmitsUnsetTunables(t *testing.T) {
	p := &Provider{model: "gpt-4.1-mini"}
	params := p.buildParams(llm.CompletionRequest{})
	if params.Temperature.Valid() {
		t.Error("expected Temperature to be unset")
	}
	if params.MaxCompletionTokens.Valid() {
		t.Error("expected MaxCompletionTokens to be unset")
	}
}

// TestBuildParams_SetsTunables checks temperature and max token passthrough.
func TestBuildParams_SetsTunables(t *testing.T) {
	p := &Provider{model: "gpt-4.1-mini"}
	params := p.buildParams(llm.CompletionRequest{Temperature: 0.6, MaxTokens: 220})
	if !params.Temperature.Valid() || params.Temperature.Value != 0.6 {
		t.Errorf("expected Temperature 0.6, got %+v", params.Temperature)
	}
	if !params.MaxCompletionTokens.Valid() || params.MaxCompletionTokens.Value != 220 {
		t.Errorf("expected MaxCompletionTokens 220, got %+v", params.MaxCompletionTokens)
	}
}

// TestCountTokens checks the character-based approximation.
func TestCountTokens(t *testing.T) {
	p := &Provider{model: "gpt-4.1-mini"}
	// 8 chars → 2 content tokens + 4 overhead.
	got, err := p.CountTokens([]llm.Message{{Role: llm.RoleUser, Content: "bonjour!"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 6 {
		t.Errorf("expected 6 tokens, got %d", got)
	}
}
