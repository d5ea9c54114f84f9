package reply

import (
	"math"
	"strings"
	"unicode/utf8"
)

// Fixed confidence levels for replies that bypass generation.
const (
	// ModerationConfidence is attached to moderation refusals.
	ModerationConfidence = 0.28

	// EscalationConfidence is attached to human-handoff replies.
	EscalationConfidence = 0.35

	// BudgetConfidence is attached to hard-capped budget replies.
	BudgetConfidence = 0.62
)

// EstimateConfidence scores a generated reply with a cheap heuristic.
// A base score of 0.82 is nudged by signals from the message and the
// reply, then clamped to [0.2, 0.98] and rounded to two decimals.
func EstimateConfidence(message, reply string) float64 {
	score := 0.82
	loweredMessage := strings.ToLower(message)
	loweredReply := strings.ToLower(reply)

	if utf8.RuneCountInString(loweredMessage) < 8 {
		score -= 0.12
	}
	if strings.Contains(loweredMessage, "?") && utf8.RuneCountInString(loweredReply) > 40 {
		score += 0.04
	}
	if strings.Contains(loweredReply, "je ne peux pas") || strings.Contains(loweredReply, "réessaie") {
		score -= 0.22
	}
	if strings.Contains(loweredReply, "assistant virtuel ia") {
		score += 0.04
	}

	score = math.Round(score*100) / 100
	return math.Max(0.2, math.Min(0.98, score))
}
