package dialog

import (
	"strings"

	"github.com/ClareAI/astra-campaign-service/internal/domain"
)

// RuleSource selects which side of the turn a rule inspects.
type RuleSource int

const (
	SourceUser RuleSource = iota
	SourceAgent
)

// StageRule maps a keyword set to a target stage. Rules are evaluated in
// slice order; the first match wins.
type StageRule struct {
	Stage    domain.Stage
	Source   RuleSource
	Keywords []string
}

// StageRules is the classification table, ordered by priority: decline
// phrases shadow interest phrases ("не интересно" contains "интересно"),
// deferrals shadow callback requests, and order-completion markers are looked
// for in the agent's reply rather than the customer's words.
var StageRules = []StageRule{
	{
		Stage:  domain.StageRejection,
		Source: SourceUser,
		Keywords: []string{
			"не интересно", "неинтересно", "не надо", "не нужно",
			"не звоните", "больше не звоните", "отстаньте",
			"не хочу", "нет спасибо", "нет, спасибо",
		},
	},
	{
		Stage:  domain.StageInterested,
		Source: SourceUser,
		Keywords: []string{
			"интересно", "интересует", "расскажите", "подробнее",
			"сколько стоит", "какая цена", "стоимость",
		},
	},
	{
		Stage:  domain.StageDiscussingNeeds,
		Source: SourceUser,
		Keywords: []string{
			"запчаст", "деталь", "бампер", "решетка", "кронштейн",
			"заглушка", "печать", "принтер", "пластик",
		},
	},
	{
		Stage:  domain.StageMaybeLater,
		Source: SourceUser,
		Keywords: []string{
			"позже", "потом", "подумаю", "не сейчас",
			"через месяц", "через неделю",
		},
	},
	{
		Stage:  domain.StageCallbackRequested,
		Source: SourceUser,
		Keywords: []string{
			"перезвон", "наберите", "свяжитесь со мной",
		},
	},
	{
		Stage:  domain.StageOrderProcess,
		Source: SourceAgent,
		Keywords: []string{
			"оформ", "заказ принят", "менеджер свяжется", "выставлю счет",
		},
	},
}

// Classify maps one turn onto a conversation stage. It is a pure function of
// (current stage, customer utterance, agent reply): when no rule matches the
// stage is unchanged. domain.StageOrderCreated has no rule here; it is
// reserved for an explicit confirmation transition.
func Classify(current domain.Stage, utterance, agentReply string) domain.Stage {
	user := strings.ToLower(utterance)
	agent := strings.ToLower(agentReply)

	for _, rule := range StageRules {
		text := user
		if rule.Source == SourceAgent {
			text = agent
		}
		for _, kw := range rule.Keywords {
			if strings.Contains(text, kw) {
				return rule.Stage
			}
		}
	}
	return current
}
