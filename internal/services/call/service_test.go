package call

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ClareAI/astra-campaign-service/internal/campaign"
	"github.com/ClareAI/astra-campaign-service/internal/config"
	"github.com/ClareAI/astra-campaign-service/internal/core/registry"
	"github.com/ClareAI/astra-campaign-service/internal/dialog"
	"github.com/ClareAI/astra-campaign-service/internal/domain"
	"github.com/ClareAI/astra-campaign-service/internal/repository"
	"github.com/ClareAI/astra-campaign-service/pkg/pubsub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAgent struct {
	reply string
	err   error
	calls int
}

func (f *fakeAgent) GetReply(ctx context.Context, utterance, sessionID, phoneNumber, name string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type fakeContactRepo struct {
	mu      sync.Mutex
	results []contactResult
}

type contactResult struct {
	ContactID    string
	Status       string
	Stage        string
	LeadScore    int
	NextCallDate *time.Time
}

func (f *fakeContactRepo) GetByID(ctx context.Context, id string) (*domain.Contact, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeContactRepo) FindEligible(ctx context.Context, priority string, limit int) ([]*domain.Contact, error) {
	return nil, nil
}

func (f *fakeContactRepo) MarkInitiated(ctx context.Context, contact *domain.Contact, callID, campaign string) error {
	return nil
}

func (f *fakeContactRepo) UpdateCallResult(ctx context.Context, contactID, status, stage string, leadScore int, nextCallDate *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, contactResult{contactID, status, stage, leadScore, nextCallDate})
	return nil
}

func (f *fakeContactRepo) lastResult() (contactResult, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.results) == 0 {
		return contactResult{}, false
	}
	return f.results[len(f.results)-1], true
}

type fakeCallRecordRepo struct {
	mu      sync.Mutex
	records []*domain.CallRecord
}

func (f *fakeCallRecordRepo) GetByCallID(ctx context.Context, callID string) (*domain.CallRecord, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeCallRecordRepo) GetByContactID(ctx context.Context, contactID string, limit int) ([]*domain.CallRecord, error) {
	return nil, nil
}

func (f *fakeCallRecordRepo) Upsert(ctx context.Context, record *domain.CallRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, record)
	return nil
}

func (f *fakeCallRecordRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

type fakeRepoManager struct {
	contacts *fakeContactRepo
	records  *fakeCallRecordRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{contacts: &fakeContactRepo{}, records: &fakeCallRecordRepo{}}
}

func (f *fakeRepoManager) Contact() repository.ContactRepository       { return f.contacts }
func (f *fakeRepoManager) CallRecord() repository.CallRecordRepository { return f.records }
func (f *fakeRepoManager) Ping(ctx context.Context) error              { return nil }
func (f *fakeRepoManager) Close() error                                { return nil }

type fakePublisher struct {
	mu     sync.Mutex
	events []pubsub.CallOutcomeEvent
}

func (f *fakePublisher) PublishCallOutcomeEvent(ctx context.Context, event pubsub.CallOutcomeEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakePublisher) lastEvent() (pubsub.CallOutcomeEvent, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.events) == 0 {
		return pubsub.CallOutcomeEvent{}, false
	}
	return f.events[len(f.events)-1], true
}

func newTestService(agent AgentReplier) (*CampaignCallService, *fakeRepoManager, *fakePublisher) {
	cfg := &config.CampaignCallConfig{
		PublicBaseURL:       "https://calls.example.com",
		ConfidenceThreshold: config.DefaultConfidenceThreshold,
		AgentTimeout:        time.Second,
		MaxTurns:            config.DefaultMaxTurns,
		MaxCallDuration:     config.DefaultMaxCallDuration,
	}
	repos := newFakeRepoManager()
	publisher := &fakePublisher{}
	svc := NewCampaignCallService(cfg, registry.New(), agent,
		dialog.NewTerminationPolicy(), campaign.NewRetrySchedule(),
		repos, nil, publisher)
	return svc, repos, publisher
}

func TestHandleCallAnswer(t *testing.T) {
	svc, _, _ := newTestService(&fakeAgent{reply: "Отлично!"})

	doc, err := svc.HandleCallAnswer(context.Background(), "CA100", "c-1", "501234567", "Иван", "cold_outreach")
	require.NoError(t, err)

	assert.Contains(t, doc, "<Gather")
	assert.Contains(t, doc, Greeting)
	assert.Contains(t, doc, "call_id=CA100")

	conv, err := svc.Registry().Get("CA100")
	require.NoError(t, err)
	assert.Equal(t, domain.StageGreeting, conv.Stage)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, config.MessageRoleAgent, conv.Messages[0].Role)
}

func TestHandleCallAnswerDuplicateWebhook(t *testing.T) {
	svc, _, _ := newTestService(&fakeAgent{})

	_, err := svc.HandleCallAnswer(context.Background(), "CA100", "c-1", "501234567", "", "cold_outreach")
	require.NoError(t, err)
	doc, err := svc.HandleCallAnswer(context.Background(), "CA100", "c-1", "501234567", "", "cold_outreach")
	require.NoError(t, err)
	assert.Contains(t, doc, "<Gather")

	conv, err := svc.Registry().Get("CA100")
	require.NoError(t, err)
	assert.Len(t, conv.Messages, 1, "retried webhook must not duplicate the greeting")
}

func TestHandleCustomerSpeechLowConfidence(t *testing.T) {
	agent := &fakeAgent{reply: "Ответ"}
	svc, _, _ := newTestService(agent)
	_, err := svc.HandleCallAnswer(context.Background(), "CA200", "c-1", "501234567", "", "cold_outreach")
	require.NoError(t, err)

	doc, err := svc.HandleCustomerSpeech(context.Background(), "CA200", "что-то невнятное", 0.2)
	require.NoError(t, err)

	assert.Contains(t, doc, config.ApologyReply)
	assert.Zero(t, agent.calls, "agent must not be consulted for discarded utterances")

	conv, err := svc.Registry().Get("CA200")
	require.NoError(t, err)
	assert.Len(t, conv.Messages, 1, "discarded utterance must not enter the transcript")
}

func TestHandleCustomerSpeechTurn(t *testing.T) {
	svc, _, _ := newTestService(&fakeAgent{reply: "Конечно, расскажу подробнее о наших деталях."})
	_, err := svc.HandleCallAnswer(context.Background(), "CA300", "c-1", "501234567", "", "cold_outreach")
	require.NoError(t, err)

	doc, err := svc.HandleCustomerSpeech(context.Background(), "CA300", "да, интересно, расскажите", 0.9)
	require.NoError(t, err)

	assert.Contains(t, doc, "<Gather")
	assert.Contains(t, doc, "Конечно, расскажу")

	conv, err := svc.Registry().Get("CA300")
	require.NoError(t, err)
	assert.Equal(t, domain.StageInterested, conv.Stage)
	require.Len(t, conv.Messages, 3)
	assert.Equal(t, config.MessageRoleUser, conv.Messages[1].Role)
	assert.Equal(t, config.MessageRoleAgent, conv.Messages[2].Role)
}

func TestHandleCustomerSpeechRejectionEndsCall(t *testing.T) {
	svc, repos, publisher := newTestService(&fakeAgent{reply: "Понял вас, извините за беспокойство."})
	_, err := svc.HandleCallAnswer(context.Background(), "CA400", "c-1", "501234567", "", "cold_outreach")
	require.NoError(t, err)

	doc, err := svc.HandleCustomerSpeech(context.Background(), "CA400", "не интересно, не звоните", 0.95)
	require.NoError(t, err)

	assert.Contains(t, doc, "<Hangup")
	assert.NotContains(t, doc, "<Gather")

	_, err = svc.Registry().Get("CA400")
	assert.ErrorIs(t, err, registry.ErrNotFound)

	require.Eventually(t, func() bool { return repos.records.count() > 0 },
		time.Second, 10*time.Millisecond)

	result, ok := repos.contacts.lastResult()
	require.True(t, ok)
	assert.Equal(t, "c-1", result.ContactID)
	assert.Equal(t, domain.CallStatusCompleted, result.Status)
	assert.Equal(t, string(domain.StageRejection), result.Stage)
	require.NotNil(t, result.NextCallDate)
	assert.WithinDuration(t, time.Now().UTC().Add(config.DefaultRetryRejection), *result.NextCallDate, time.Minute)

	event, ok := publisher.lastEvent()
	require.True(t, ok)
	assert.Equal(t, "CA400", event.CallID)
	assert.Equal(t, string(domain.StageRejection), event.Stage)
}

func TestHandleCustomerSpeechAgentFailure(t *testing.T) {
	svc, repos, _ := newTestService(&fakeAgent{err: errors.New("agent timeout")})
	_, err := svc.HandleCallAnswer(context.Background(), "CA500", "c-1", "501234567", "", "cold_outreach")
	require.NoError(t, err)

	doc, err := svc.HandleCustomerSpeech(context.Background(), "CA500", "да, слушаю", 0.9)
	require.NoError(t, err)

	assert.Contains(t, doc, config.FallbackReply)
	assert.Contains(t, doc, "<Hangup")

	_, err = svc.Registry().Get("CA500")
	assert.ErrorIs(t, err, registry.ErrNotFound)

	require.Eventually(t, func() bool { return repos.records.count() > 0 },
		time.Second, 10*time.Millisecond)
}

func TestHandleCustomerSpeechUnknownCall(t *testing.T) {
	svc, _, _ := newTestService(&fakeAgent{})

	doc, err := svc.HandleCustomerSpeech(context.Background(), "CA999", "алло", 0.9)
	assert.ErrorIs(t, err, registry.ErrNotFound)
	assert.Empty(t, doc)
}

func TestHandleCallStatusNoAnswer(t *testing.T) {
	svc, repos, _ := newTestService(&fakeAgent{})

	svc.HandleCallStatus(context.Background(), "CA600", "no-answer", "c-7", "501234567", "cold_outreach")

	require.Eventually(t, func() bool { return repos.records.count() > 0 },
		time.Second, 10*time.Millisecond)

	result, ok := repos.contacts.lastResult()
	require.True(t, ok)
	assert.Equal(t, "c-7", result.ContactID)
	assert.Equal(t, domain.CallStatusNoAnswer, result.Status)
	require.NotNil(t, result.NextCallDate)
	assert.WithinDuration(t, time.Now().UTC().Add(config.DefaultRetryNoAnswer), *result.NextCallDate, time.Minute)
}

func TestHandleCallStatusCompletedAfterFinalize(t *testing.T) {
	svc, repos, _ := newTestService(&fakeAgent{reply: "Понял, всего доброго!"})
	_, err := svc.HandleCallAnswer(context.Background(), "CA700", "c-1", "501234567", "", "cold_outreach")
	require.NoError(t, err)
	_, err = svc.HandleCustomerSpeech(context.Background(), "CA700", "не интересно", 0.9)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return repos.records.count() > 0 },
		time.Second, 10*time.Millisecond)
	before := repos.records.count()

	svc.HandleCallStatus(context.Background(), "CA700", "completed", "c-1", "501234567", "cold_outreach")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, before, repos.records.count(), "completed status after finalize must be a no-op")
}

func TestHandleCallStatusMidCallFailure(t *testing.T) {
	svc, repos, _ := newTestService(&fakeAgent{reply: "Ответ"})
	_, err := svc.HandleCallAnswer(context.Background(), "CA800", "c-1", "501234567", "", "cold_outreach")
	require.NoError(t, err)

	svc.HandleCallStatus(context.Background(), "CA800", "failed", "c-1", "501234567", "cold_outreach")

	_, err = svc.Registry().Get("CA800")
	assert.ErrorIs(t, err, registry.ErrNotFound)

	require.Eventually(t, func() bool { return repos.records.count() > 0 },
		time.Second, 10*time.Millisecond)

	result, ok := repos.contacts.lastResult()
	require.True(t, ok)
	assert.Equal(t, domain.CallStatusFailed, result.Status)
}
