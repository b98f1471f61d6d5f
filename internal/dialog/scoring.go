package dialog

import (
	"strings"
	"time"

	"github.com/ClareAI/astra-campaign-service/internal/domain"
)

// keywordBonus is one transcript scan category of the scoring model.
type keywordBonus struct {
	Points   int
	Keywords []string
}

// Scoring is intentionally a crude additive heuristic rather than a model:
// sales staff must be able to see why a lead scored what it did.
var keywordBonuses = []keywordBonus{
	{Points: 30, Keywords: []string{"интерес", "расскажите", "подробнее"}}, // interest
	{Points: 20, Keywords: []string{"emme3d", "3d", "принтер"}},            // brand/product
	{Points: 25, Keywords: []string{"запчаст", "деталь", "бампер"}},        // domain need
	{Points: 50, Keywords: []string{"куп", "заказ", "оформ", "беру"}},      // purchase intent
}

var stageDeltas = map[domain.Stage]int{
	domain.StageInterested:      40,
	domain.StageDiscussingNeeds: 60,
	domain.StageOrderCreated:    100,
	domain.StageRejection:       -20,
}

// Score computes the lead score for a finished conversation, clamped to
// [0,100]. Duration and message-count bonuses are cumulative; keyword
// bonuses are independent; exactly one stage delta (the final stage) applies.
func Score(conv *domain.Conversation, now time.Time) int {
	score := 0

	duration := conv.Duration(now)
	if duration > 60*time.Second {
		score += 20
	}
	if duration > 120*time.Second {
		score += 30
	}

	if len(conv.Messages) > 4 {
		score += 25
	}
	if len(conv.Messages) > 8 {
		score += 25
	}

	var b strings.Builder
	for _, msg := range conv.Messages {
		b.WriteString(msg.Text)
		b.WriteString(" ")
	}
	transcript := strings.ToLower(b.String())

	for _, bonus := range keywordBonuses {
		for _, kw := range bonus.Keywords {
			if strings.Contains(transcript, kw) {
				score += bonus.Points
				break
			}
		}
	}

	score += stageDeltas[conv.Stage]

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
