package dialog

import (
	"testing"

	"github.com/ClareAI/astra-campaign-service/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestClassifyStages(t *testing.T) {
	tests := []struct {
		name       string
		current    domain.Stage
		utterance  string
		agentReply string
		want       domain.Stage
	}{
		{"decline phrase", domain.StageGreeting, "Мне это не интересно", "", domain.StageRejection},
		{"decline wins over interest substring", domain.StageInterested, "не интересно, спасибо", "", domain.StageRejection},
		{"interest", domain.StageGreeting, "Да, расскажите подробнее", "", domain.StageInterested},
		{"price question is interest", domain.StageGreeting, "А сколько стоит?", "", domain.StageInterested},
		{"needs", domain.StageInterested, "Мне нужна заглушка на бампер", "", domain.StageDiscussingNeeds},
		{"deferral", domain.StageGreeting, "Давайте позже, я занят", "", domain.StageMaybeLater},
		{"deferral wins over callback", domain.StageGreeting, "перезвоните позже", "", domain.StageMaybeLater},
		{"callback", domain.StageGreeting, "Наберите меня завтра", "", domain.StageCallbackRequested},
		{"order phrase in agent reply", domain.StageDiscussingNeeds, "хорошо", "Отлично, оформляю ваш заказ", domain.StageOrderProcess},
		{"order phrase in user speech does not count", domain.StageGreeting, "оформляйте", "Секунду", domain.StageGreeting},
		{"no match is sticky", domain.StageInterested, "ммм понятно", "Хорошо", domain.StageInterested},
		{"case insensitive", domain.StageGreeting, "НЕ ЗВОНИТЕ МНЕ", "", domain.StageRejection},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.current, tt.utterance, tt.agentReply))
		})
	}
}

func TestClassifyIsPure(t *testing.T) {
	first := Classify(domain.StageGreeting, "расскажите", "")
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, Classify(domain.StageGreeting, "расскажите", ""))
	}
}

func TestClassifyNeverRevertsToGreeting(t *testing.T) {
	utterances := []string{
		"не интересно", "расскажите", "нужна деталь", "позже",
		"перезвоните", "ммм", "",
	}
	for _, u := range utterances {
		got := Classify(domain.StageInterested, u, "Хорошо")
		assert.NotEqual(t, domain.StageGreeting, got, "utterance %q", u)
	}
}

func TestClassifyNeverEmitsOrderCreated(t *testing.T) {
	for _, rule := range StageRules {
		assert.NotEqual(t, domain.StageOrderCreated, rule.Stage)
	}
}

func TestStageRulePriorityOrder(t *testing.T) {
	// The table encodes the priority contract: rejection first, agent-side
	// order markers last.
	assert.Equal(t, domain.StageRejection, StageRules[0].Stage)
	last := StageRules[len(StageRules)-1]
	assert.Equal(t, domain.StageOrderProcess, last.Stage)
	assert.Equal(t, SourceAgent, last.Source)
}
