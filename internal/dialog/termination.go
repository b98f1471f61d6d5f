package dialog

import (
	"strings"
	"time"

	"github.com/ClareAI/astra-campaign-service/internal/config"
	"github.com/ClareAI/astra-campaign-service/internal/domain"
)

// closingPhrases are farewell and order-confirmation markers in the agent's
// reply that signal the dialogue has run its course.
var closingPhrases = []string{
	"до свидания",
	"всего доброго",
	"хорошего дня",
	"спасибо за уделенное время",
	"спасибо за разговор",
	"заказ оформлен",
}

// TerminationPolicy decides after each turn whether a call should end. The
// caps bound pathological loops and respect a declining customer without
// depending on the reply agent's judgment.
type TerminationPolicy struct {
	MaxTurns    int
	MaxDuration time.Duration
	Now         func() time.Time
}

// NewTerminationPolicy builds a policy with the canonical defaults.
func NewTerminationPolicy() *TerminationPolicy {
	return &TerminationPolicy{
		MaxTurns:    config.DefaultMaxTurns,
		MaxDuration: config.DefaultMaxCallDuration,
		Now:         time.Now,
	}
}

// ShouldEnd reports whether the call should end after the current turn.
// True if the agent said a closing phrase, the customer declined, the
// transcript exceeds the turn cap, or the call exceeds the duration cap.
func (p *TerminationPolicy) ShouldEnd(conv *domain.Conversation, agentReply string) bool {
	reply := strings.ToLower(agentReply)
	for _, phrase := range closingPhrases {
		if strings.Contains(reply, phrase) {
			return true
		}
	}

	if conv.Stage == domain.StageRejection {
		return true
	}

	if len(conv.Messages) > p.MaxTurns {
		return true
	}

	if conv.Duration(p.Now()) > p.MaxDuration {
		return true
	}

	return false
}
