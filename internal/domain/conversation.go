package domain

import (
	"sync"
	"time"
)

// Stage is the classified phase of a sales conversation.
type Stage string

const (
	StageGreeting          Stage = "greeting"
	StageInterested        Stage = "interested"
	StageDiscussingNeeds   Stage = "discussing_needs"
	StageRejection         Stage = "rejection"
	StageCallbackRequested Stage = "callback_requested"
	StageMaybeLater        Stage = "maybe_later"
	StageOrderProcess      Stage = "order_process"

	// StageOrderCreated is never produced by the classifier today; it is
	// reserved for an explicit confirmation transition (e.g. a CRM webhook)
	// and participates in scoring.
	StageOrderCreated Stage = "order_created"
)

// Message is one turn in a live conversation transcript.
type Message struct {
	Role      string    `json:"role"` // user, agent
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is the in-memory state of one live call leg, keyed by the
// telephony call ID. It exists from call answer until finalization.
type Conversation struct {
	CallID      string
	ContactID   string // empty for ad-hoc calls
	Phone       string
	DisplayName string
	CampaignTag string

	Stage     Stage
	Messages  []Message
	StartedAt time.Time

	// Mutex serializes turn processing per call. Webhook delivery for one
	// call is effectively single-threaded, but a status callback can race a
	// speech callback; holding this keeps message order and stage
	// transitions consistent.
	Mutex sync.Mutex
}

// Append adds a message to the transcript. Callers hold Mutex during a turn.
func (c *Conversation) Append(role, text string) {
	c.Messages = append(c.Messages, Message{Role: role, Text: text, Timestamp: time.Now()})
}

// Duration reports how long the call has been running at the given instant.
func (c *Conversation) Duration(now time.Time) time.Duration {
	return now.Sub(c.StartedAt)
}
