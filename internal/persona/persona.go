// Package persona renders the per-live persona prompt and the short-lived
// viewer memory that personalises replies.
package persona

import (
	"regexp"
	"strings"
	"time"
)

// Defaults used when a live's persona row leaves a field empty.
const (
	DefaultName     = "Assistant Live IA"
	DefaultTone     = "pro, chaleureux"
	DefaultNiche    = "plateforme live"
	DefaultLanguage = "français"
)

// MemoryTTL bounds how far back viewer memory is considered fresh.
const MemoryTTL = 24 * time.Hour

// LivePersona is the creator-configured persona for a live. All fields are
// optional; an explicit SystemPrompt overrides the synthesized one.
type LivePersona struct {
	Name         string
	Language     string
	Tone         string
	Niche        string
	SystemPrompt string
}

// Prompt renders the persona's system fragment. An explicit system prompt
// wins; otherwise the fragment is synthesized from the descriptive fields
// with platform defaults filling the gaps.
func (p LivePersona) Prompt() string {
	if custom := strings.TrimSpace(p.SystemPrompt); custom != "" {
		return custom
	}

	name := fallback(p.Name, DefaultName)
	tone := fallback(p.Tone, DefaultTone)
	niche := fallback(p.Niche, DefaultNiche)
	language := fallback(p.Language, DefaultLanguage)

	return "Tu incarnes " + name + ". Tu réponds en " + language + " avec un ton " + tone + ". Ton univers principal est: " + niche + "."
}

func fallback(value, def string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return def
}

// ViewerMemory is the per-viewer, per-live summary refreshed on every
// accepted message.
type ViewerMemory struct {
	Preferences    string
	FrequentTopics string
	LastIntent     string
	UpdatedAt      time.Time
}

// Prompt renders the memory as a system fragment, or "" when nothing is
// known about the viewer.
func (m ViewerMemory) Prompt() string {
	var chunks []string
	if m.Preferences != "" {
		chunks = append(chunks, "Préférences viewer: "+m.Preferences)
	}
	if m.FrequentTopics != "" {
		chunks = append(chunks, "Sujets fréquents: "+m.FrequentTopics)
	}
	if m.LastIntent != "" {
		chunks = append(chunks, "Intention récente: "+m.LastIntent)
	}
	if len(chunks) == 0 {
		return ""
	}
	return "Contexte session viewer (24h): " + strings.Join(chunks, " | ")
}

// Fresh reports whether the memory was updated within MemoryTTL of now.
func (m ViewerMemory) Fresh(now time.Time) bool {
	return !m.UpdatedAt.IsZero() && now.Sub(m.UpdatedAt) <= MemoryTTL
}

// ClassifyIntent maps a viewer message onto a coarse intent label used for
// memory and analytics. First match wins.
func ClassifyIntent(message string) string {
	lowered := strings.ToLower(message)
	switch {
	case containsAny(lowered, "prix", "coût", "tarif"):
		return "pricing"
	case containsAny(lowered, "compte", "inscri", "connexion"):
		return "account"
	case containsAny(lowered, "live", "stream", "direct"):
		return "live"
	case containsAny(lowered, "créateur", "creator"):
		return "creator"
	default:
		return "general"
	}
}

// InferPreferences extracts style and language preferences from a message
// as a comma-joined list, "" when none apply.
func InferPreferences(message string) string {
	lowered := strings.ToLower(message)
	var prefs []string
	if containsAny(lowered, "français", "francais") {
		prefs = append(prefs, "fr")
	}
	if containsAny(lowered, "anglais", "english") {
		prefs = append(prefs, "en")
	}
	if containsAny(lowered, "rapide", "court") {
		prefs = append(prefs, "short-answers")
	}
	if containsAny(lowered, "détail", "detail") {
		prefs = append(prefs, "detailed-answers")
	}
	return strings.Join(prefs, ",")
}

// topicCharset keeps French letters, whitespace and hyphens; everything
// else is stripped before tokenizing.
var topicCharset = regexp.MustCompile(`[^a-zàâçéèêëîïôûùüÿñæœ\s-]`)

// ExtractTopics pulls up to six significant tokens (longer than four
// characters) from a lowercased message, comma-joined. Returns "" when the
// message carries no usable tokens.
func ExtractTopics(message string) string {
	cleaned := topicCharset.ReplaceAllString(strings.ToLower(message), "")
	var topics []string
	for _, token := range strings.Fields(cleaned) {
		if len([]rune(token)) > 4 {
			topics = append(topics, token)
			if len(topics) == 6 {
				break
			}
		}
	}
	return strings.Join(topics, ",")
}

// Summarize builds the memory payload for an accepted viewer message.
func Summarize(message string, now time.Time) ViewerMemory {
	return ViewerMemory{
		Preferences:    InferPreferences(message),
		FrequentTopics: ExtractTopics(message),
		LastIntent:     ClassifyIntent(message),
		UpdatedAt:      now,
	}
}

func containsAny(haystack string, needles ...string) bool {
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}
