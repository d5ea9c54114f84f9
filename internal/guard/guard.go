// Package guard provides the input safety checks that run ahead of every
// AI reply: prompt-injection detection, content moderation, and escalation
// to a human moderator.
//
// All checks are pure, case-insensitive substring matches against static
// keyword lists. They deliberately avoid model calls so the safety gate is
// deterministic and runs in microseconds, and so that a refusal can never
// depend on persona or history context.
package guard

import "strings"

// forbiddenPatterns are prompt-injection phrases. A hit yields a fixed
// refusal reply, never an error.
var forbiddenPatterns = []string{
	"ignore previous instructions",
	"bypass",
	"jailbreak",
}

// moderationPatterns cover hate, explicit, violence, self-harm, and doxxing
// content. A hit yields a fixed refusal with a depressed confidence score.
var moderationPatterns = []string{
	"haine",
	"raciste",
	"porn",
	"violent",
	"terror",
	"dox",
	"suicide",
}

// escalationPatterns flag sensitive topics (legal, medical, financial
// credentials, self-harm, hacking) that must be forwarded to a human
// moderator instead of answered by the model.
var escalationPatterns = []string{
	"problème légal",
	"avocat",
	"urgence",
	"suicide",
	"pirater",
	"hacker",
	"mot de passe",
	"bank",
	"banque",
	"medical",
	"ordonnance",
	"diagnostic",
}

// Normalize trims text and collapses internal whitespace runs to single
// spaces. Every inbound message is normalised before any check or
// persistence.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// HasForbiddenPattern reports whether text contains a prompt-injection
// phrase.
func HasForbiddenPattern(text string) bool {
	return containsAny(text, forbiddenPatterns)
}

// HasModerationPattern reports whether text contains a moderated-content
// keyword.
func HasModerationPattern(text string) bool {
	return containsAny(text, moderationPatterns)
}

// ShouldEscalateToHuman reports whether text touches a sensitive topic that
// requires human review. Escalated messages never reach the model.
func ShouldEscalateToHuman(text string) bool {
	return containsAny(text, escalationPatterns)
}

// containsAny reports whether the lowercased text contains any of the
// patterns as a substring.
func containsAny(text string, patterns []string) bool {
	lowered := strings.ToLower(text)
	for _, p := range patterns {
		if strings.Contains(lowered, p) {
			return true
		}
	}
	return false
}
