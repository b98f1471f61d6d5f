package call

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/ClareAI/astra-campaign-service/internal/campaign"
	"github.com/ClareAI/astra-campaign-service/internal/config"
	"github.com/ClareAI/astra-campaign-service/internal/core/registry"
	"github.com/ClareAI/astra-campaign-service/internal/core/session"
	"github.com/ClareAI/astra-campaign-service/internal/dialog"
	"github.com/ClareAI/astra-campaign-service/internal/domain"
	twilioadapter "github.com/ClareAI/astra-campaign-service/internal/adapters/twilio"
	"github.com/ClareAI/astra-campaign-service/internal/repository"
	"github.com/ClareAI/astra-campaign-service/pkg/logger"
	"github.com/ClareAI/astra-campaign-service/pkg/pubsub"
	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"go.uber.org/zap"
)

// Greeting is the scripted opener for every cold call. The reply agent takes
// over from the customer's first utterance onwards.
const Greeting = "Здравствуйте! Меня зовут Анна, компания ЭММЕ 3Д. Мы печатаем на 3D-принтере запчасти для автомобилей: кронштейны, заглушки, элементы решеток. Подскажите, вам актуальны такие детали?"

// AgentReplier produces the next agent utterance for a turn.
type AgentReplier interface {
	GetReply(ctx context.Context, utterance, sessionID, phoneNumber, name string) (string, error)
}

// OutcomePublisher emits finalized call outcomes to downstream consumers.
type OutcomePublisher interface {
	PublishCallOutcomeEvent(ctx context.Context, event pubsub.CallOutcomeEvent) error
}

// CampaignCallService drives the webhook side of a call: greeting on answer,
// one classify-and-reply cycle per speech result, and finalization when the
// dialogue or the carrier ends the leg.
type CampaignCallService struct {
	cfg         *config.CampaignCallConfig
	registry    *registry.Registry
	agent       AgentReplier
	termination *dialog.TerminationPolicy
	retries     *campaign.RetrySchedule
	repos       repository.RepositoryManager
	sessions    *session.Manager
	publisher   OutcomePublisher
}

// NewCampaignCallService creates a new campaign call service. sessions and
// publisher may be nil when Redis / Pub/Sub are not configured.
func NewCampaignCallService(
	cfg *config.CampaignCallConfig,
	reg *registry.Registry,
	agent AgentReplier,
	termination *dialog.TerminationPolicy,
	retries *campaign.RetrySchedule,
	repos repository.RepositoryManager,
	sessions *session.Manager,
	publisher OutcomePublisher,
) *CampaignCallService {
	return &CampaignCallService{
		cfg:         cfg,
		registry:    reg,
		agent:       agent,
		termination: termination,
		retries:     retries,
		repos:       repos,
		sessions:    sessions,
		publisher:   publisher,
	}
}

// Registry exposes the live conversation registry for dispatch wiring.
func (s *CampaignCallService) Registry() *registry.Registry {
	return s.registry
}

// HandleCallAnswer starts the dialogue for an answered leg: registers the
// conversation, speaks the greeting and opens the first listen window.
// Returns the TwiML document to render.
func (s *CampaignCallService) HandleCallAnswer(ctx context.Context, callID, contactID, phone, name, campaignTag string) (string, error) {
	conv, err := s.registry.Create(callID, contactID, phone, name, campaignTag)
	if err != nil {
		if errors.Is(err, registry.ErrDuplicateCall) {
			// Retried answer webhook: replay the same greeting document
			// without touching the transcript.
			return twilioadapter.SpeakAndGather(Greeting, s.turnURL(callID))
		}
		return "", fmt.Errorf("failed to register conversation: %w", err)
	}

	conv.Mutex.Lock()
	conv.Append(config.MessageRoleAgent, Greeting)
	conv.Mutex.Unlock()

	if s.sessions != nil {
		go func() {
			regCtx, cancel := context.WithTimeout(context.Background(), config.DefaultStoreTimeout)
			defer cancel()
			if err := s.sessions.Register(regCtx, session.SessionInfo{
				CallID:    callID,
				ContactID: contactID,
				Campaign:  campaignTag,
			}); err != nil {
				logger.Base().Warn("Failed to register call session", zap.String("call_id", callID), zap.Error(err))
			}
		}()
	}

	logger.Base().Info("Call answered",
		zap.String("call_id", callID),
		zap.String("contact_id", contactID),
		zap.String("campaign", campaignTag))

	return twilioadapter.SpeakAndGather(Greeting, s.turnURL(callID))
}

// HandleCustomerSpeech runs one dialogue turn for a recognized utterance.
// Low-confidence or empty recognition yields a re-prompt without touching
// conversation state. Returns the TwiML document to render.
func (s *CampaignCallService) HandleCustomerSpeech(ctx context.Context, callID, speech string, confidence float64) (string, error) {
	conv, err := s.registry.Get(callID)
	if err != nil {
		// Expected race: a stray speech webhook after hangup. Logged and
		// answered with a benign not-found, never fatal.
		logger.Base().Info("Speech webhook for unknown conversation",
			zap.String("call_id", callID))
		return "", fmt.Errorf("conversation %s: %w", callID, err)
	}

	if speech == "" || confidence < s.cfg.ConfidenceThreshold {
		logger.Base().Debug("Discarding low-confidence utterance",
			zap.String("call_id", callID),
			zap.Float64("confidence", confidence))
		return twilioadapter.Reprompt(s.turnURL(callID))
	}

	conv.Mutex.Lock()
	conv.Append(config.MessageRoleUser, speech)

	agentCtx, cancel := context.WithTimeout(ctx, s.cfg.AgentTimeout)
	reply, agentErr := s.agent.GetReply(agentCtx, speech, callID, conv.Phone, conv.DisplayName)
	cancel()
	if agentErr != nil {
		logger.Base().Error("Reply agent unavailable, degrading to scripted fallback",
			zap.String("call_id", callID), zap.Error(agentErr))
		reply = config.FallbackReply
	}

	conv.Append(config.MessageRoleAgent, reply)
	conv.Stage = dialog.Classify(conv.Stage, speech, reply)
	terminal := agentErr != nil || s.termination.ShouldEnd(conv, reply)
	stage := conv.Stage
	conv.Mutex.Unlock()

	logger.Base().Info("Dialogue turn completed",
		zap.String("call_id", callID),
		zap.String("stage", string(stage)),
		zap.Bool("terminal", terminal))

	if terminal {
		s.FinalizeCall(callID, domain.CallStatusCompleted)
		return twilioadapter.SpeakAndHangup(reply)
	}
	return twilioadapter.SpeakAndGather(reply, s.turnURL(callID))
}

// HandleCallStatus processes a terminal status callback from the carrier.
// For legs that never connected it schedules the retry directly from the
// contact identity carried in the callback.
func (s *CampaignCallService) HandleCallStatus(ctx context.Context, callID, callStatus, contactID, phone, campaignTag string) {
	status := normalizeCallStatus(callStatus)
	if status == "" {
		// Interim statuses (ringing, in-progress) are not subscribed to,
		// but ignore them if they arrive.
		return
	}

	if _, err := s.registry.Get(callID); err == nil {
		s.FinalizeCall(callID, status)
		return
	}

	if status == domain.CallStatusCompleted {
		// Already finalized through the dialogue path.
		return
	}

	// Leg never connected: no conversation exists, but the contact still
	// needs a cooldown so the dispatcher retries later.
	nextDate := s.retries.NextCallDate(time.Now().UTC(), domain.StageGreeting, status)
	logger.Base().Info("Call not connected",
		zap.String("call_id", callID),
		zap.String("status", status),
		zap.Time("next_call_date", nextDate))

	go s.persistOutcome(&domain.CallRecord{
		CallID:       callID,
		ContactID:    contactID,
		Phone:        phone,
		Campaign:     campaignTag,
		Status:       status,
		Stage:        string(domain.StageGreeting),
		NextCallDate: &nextDate,
		StartedAt:    time.Now().UTC(),
		EndedAt:      time.Now().UTC(),
	}, nil)
}

// FinalizeCall removes the conversation from the registry, scores it and
// persists the outcome. Safe to call more than once per call; only the
// first caller does the work.
func (s *CampaignCallService) FinalizeCall(callID, status string) {
	conv, err := s.registry.Finalize(callID)
	if err != nil {
		return
	}

	now := time.Now().UTC()

	conv.Mutex.Lock()
	score := dialog.Score(conv, now)
	stage := conv.Stage
	var transcript []domain.Message
	if err := copier.CopyWithOption(&transcript, conv.Messages, copier.Option{DeepCopy: true}); err != nil {
		logger.Base().Error("Failed to snapshot transcript", zap.String("call_id", callID), zap.Error(err))
		transcript = nil
	}
	conv.Mutex.Unlock()

	var nextDate *time.Time
	if s.retries.ShouldReschedule(stage, status) {
		t := s.retries.NextCallDate(now, stage, status)
		nextDate = &t
	}

	record := &domain.CallRecord{
		CallID:       callID,
		ContactID:    conv.ContactID,
		Phone:        conv.Phone,
		ContactName:  conv.DisplayName,
		Campaign:     conv.CampaignTag,
		Status:       status,
		Stage:        string(stage),
		LeadScore:    score,
		NextCallDate: nextDate,
		Transcript:   domain.JSONB{"messages": transcript},
		StartedAt:    conv.StartedAt,
		EndedAt:      now,
	}

	logger.Base().Info("Call finalized",
		zap.String("call_id", callID),
		zap.String("status", status),
		zap.String("stage", string(stage)),
		zap.Int("lead_score", score),
		zap.Int("turns", len(transcript)))

	event := &pubsub.CallOutcomeEvent{
		ID:         uuid.New().String(),
		CallID:     callID,
		ContactID:  conv.ContactID,
		Campaign:   conv.CampaignTag,
		Phone:      conv.Phone,
		Stage:      string(stage),
		LeadScore:  score,
		CallStatus: status,
		Duration:   int(now.Sub(conv.StartedAt).Seconds()),
		TurnCount:  len(transcript),
		StartAt:    conv.StartedAt,
		EndAt:      now,
		CreatedAt:  now,
	}

	go s.persistOutcome(record, event)
}

// persistOutcome writes the call record, updates the contact row and emits
// the outcome event. Persistence is log-and-drop: the dialogue must never
// stall on the store.
func (s *CampaignCallService) persistOutcome(record *domain.CallRecord, event *pubsub.CallOutcomeEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), config.DefaultStoreTimeout)
	defer cancel()

	if s.repos != nil {
		if err := s.repos.CallRecord().Upsert(ctx, record); err != nil {
			logger.Base().Error("Failed to persist call record",
				zap.String("call_id", record.CallID), zap.Error(err))
		}
		if record.ContactID != "" {
			if err := s.repos.Contact().UpdateCallResult(ctx, record.ContactID,
				record.Status, record.Stage, record.LeadScore, record.NextCallDate); err != nil {
				logger.Base().Error("Failed to update contact call result",
					zap.String("contact_id", record.ContactID), zap.Error(err))
			}
		}
	}

	if s.publisher != nil && event != nil {
		if err := s.publisher.PublishCallOutcomeEvent(ctx, *event); err != nil {
			logger.Base().Error("Failed to publish call outcome event",
				zap.String("call_id", record.CallID), zap.Error(err))
		}
	}

	if s.sessions != nil {
		if err := s.sessions.Unregister(ctx, record.CallID); err != nil {
			logger.Base().Warn("Failed to unregister call session",
				zap.String("call_id", record.CallID), zap.Error(err))
		}
	}
}

func (s *CampaignCallService) turnURL(callID string) string {
	q := url.Values{}
	q.Set("call_id", callID)
	return fmt.Sprintf("%s/voice/turn?%s", s.cfg.PublicBaseURL, q.Encode())
}

// normalizeCallStatus maps carrier status strings onto the stored set.
// Returns "" for interim statuses.
func normalizeCallStatus(callStatus string) string {
	switch callStatus {
	case "completed":
		return domain.CallStatusCompleted
	case "no-answer":
		return domain.CallStatusNoAnswer
	case "busy":
		return domain.CallStatusBusy
	case "failed", "canceled":
		return domain.CallStatusFailed
	default:
		return ""
	}
}
