package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/ClareAI/astra-campaign-service/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
	PubID     string `mapstructure:"pub_id"`
}

type PubSubService struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	config *PubSubConfig
}

// CallOutcomeEvent models the outcome of one finished campaign call.
// Consumers (CRM sync, reporting) subscribe on the configured topic.
type CallOutcomeEvent struct {
	ID         string    `json:"id"`
	CallID     string    `json:"call_id"`
	ContactID  string    `json:"contact_id,omitempty"`
	Campaign   string    `json:"campaign,omitempty"`
	Phone      string    `json:"phone"`
	Stage      string    `json:"stage"`
	LeadScore  int       `json:"lead_score"`
	CallStatus string    `json:"call_status"`
	Duration   int       `json:"duration"`
	TurnCount  int       `json:"turn_count"`
	StartAt    time.Time `json:"start_at"`
	EndAt      time.Time `json:"end_at"`
	CreatedAt  time.Time `json:"created_at"`
}

func NewPubSubService(ctx context.Context, cfg *PubSubConfig) (*PubSubService, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("PubSub project ID is required")
	}
	if cfg.TopicName == "" {
		return nil, fmt.Errorf("PubSub topic name is required")
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create PubSub client: %w", err)
	}

	return &PubSubService{
		client: client,
		topic:  client.Topic(cfg.TopicName),
		config: cfg,
	}, nil
}

// PublishCallOutcomeEvent publishes one call outcome to the configured topic.
// The event ID is assigned here if the caller left it empty.
func (s *PubSubService) PublishCallOutcomeEvent(ctx context.Context, event CallOutcomeEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal call outcome event: %w", err)
	}

	result := s.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event_type": "call_outcome",
			"publisher":  s.config.PubID,
			"campaign":   event.Campaign,
		},
	})

	msgID, err := result.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to publish call outcome event: %w", err)
	}

	logger.Base().Info("Published call outcome event",
		zap.String("message_id", msgID),
		zap.String("call_id", event.CallID),
		zap.String("stage", event.Stage),
		zap.Int("lead_score", event.LeadScore))
	return nil
}

// Close releases the topic and the underlying client.
func (s *PubSubService) Close() error {
	s.topic.Stop()
	return s.client.Close()
}
