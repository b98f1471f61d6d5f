package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/ClareAI/astra-campaign-service/internal/campaign"
	"github.com/ClareAI/astra-campaign-service/internal/config"
	"github.com/ClareAI/astra-campaign-service/internal/core/registry"
	"github.com/ClareAI/astra-campaign-service/internal/dialog"
	"github.com/ClareAI/astra-campaign-service/internal/services/call"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedAgent struct {
	reply string
}

func (a *scriptedAgent) GetReply(ctx context.Context, utterance, sessionID, phoneNumber, name string) (string, error) {
	return a.reply, nil
}

func newTestRouter(agentReply string) (*mux.Router, *call.CampaignCallService) {
	cfg := &config.CampaignCallConfig{
		PublicBaseURL:       "https://calls.example.com",
		ConfidenceThreshold: config.DefaultConfidenceThreshold,
		AgentTimeout:        time.Second,
		MaxTurns:            config.DefaultMaxTurns,
		MaxCallDuration:     config.DefaultMaxCallDuration,
	}
	service := call.NewCampaignCallService(cfg, registry.New(), &scriptedAgent{reply: agentReply},
		dialog.NewTerminationPolicy(), campaign.NewRetrySchedule(), nil, nil, nil)

	router := mux.NewRouter()
	voiceRouter := router.PathPrefix("/voice").Subrouter()
	NewVoiceWebhookHandler(service).SetupVoiceRoutes(voiceRouter)
	return router, service
}

func postForm(router *mux.Router, target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestVoiceAnswerWebhook(t *testing.T) {
	router, service := newTestRouter("Ответ")

	rec := postForm(router, "/voice/answer?contact_id=c-1&phone=501234567&name=%D0%98%D0%B2%D0%B0%D0%BD&campaign=cold_outreach",
		url.Values{"CallSid": {"CA100"}})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/xml")
	assert.Contains(t, rec.Body.String(), "<Gather")
	assert.Contains(t, rec.Body.String(), call.Greeting)

	conv, err := service.Registry().Get("CA100")
	require.NoError(t, err)
	assert.Equal(t, "c-1", conv.ContactID)
	assert.Equal(t, "cold_outreach", conv.CampaignTag)
}

func TestVoiceAnswerWebhookMissingCallSid(t *testing.T) {
	router, _ := newTestRouter("Ответ")

	rec := postForm(router, "/voice/answer", url.Values{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVoiceTurnWebhook(t *testing.T) {
	router, _ := newTestRouter("Конечно, с удовольствием расскажу.")

	postForm(router, "/voice/answer?contact_id=c-1&phone=501234567&campaign=cold_outreach",
		url.Values{"CallSid": {"CA200"}})

	rec := postForm(router, "/voice/turn", url.Values{
		"CallSid":      {"CA200"},
		"SpeechResult": {"расскажите подробнее"},
		"Confidence":   {"0.87"},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Конечно, с удовольствием расскажу.")
	assert.Contains(t, rec.Body.String(), "<Gather")
}

func TestVoiceTurnWebhookLowConfidence(t *testing.T) {
	router, _ := newTestRouter("Ответ")

	postForm(router, "/voice/answer?contact_id=c-1&phone=501234567&campaign=cold_outreach",
		url.Values{"CallSid": {"CA300"}})

	rec := postForm(router, "/voice/turn", url.Values{
		"CallSid":      {"CA300"},
		"SpeechResult": {"шум"},
		"Confidence":   {"0.1"},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), config.ApologyReply)
}

func TestVoiceTurnWebhookBadConfidence(t *testing.T) {
	router, _ := newTestRouter("Ответ")

	postForm(router, "/voice/answer?contact_id=c-1&phone=501234567&campaign=cold_outreach",
		url.Values{"CallSid": {"CA400"}})

	rec := postForm(router, "/voice/turn", url.Values{
		"CallSid":      {"CA400"},
		"SpeechResult": {"алло"},
		"Confidence":   {"not-a-number"},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), config.ApologyReply)
}

func TestVoiceTurnWebhookUnknownCall(t *testing.T) {
	router, _ := newTestRouter("Ответ")

	rec := postForm(router, "/voice/turn", url.Values{
		"CallSid":      {"CA999"},
		"SpeechResult": {"алло"},
		"Confidence":   {"0.9"},
	})

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Разговор не найден")
}

func TestWriteTwiMLFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	writeTwiMLFailure(rec)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/xml")
	assert.Contains(t, rec.Body.String(), config.FallbackReply)
	assert.Contains(t, rec.Body.String(), "<Hangup")
	assert.NotContains(t, rec.Body.String(), "<Gather")
}

func TestVoiceStatusWebhook(t *testing.T) {
	router, service := newTestRouter("Ответ")

	postForm(router, "/voice/answer?contact_id=c-1&phone=501234567&campaign=cold_outreach",
		url.Values{"CallSid": {"CA500"}})

	rec := postForm(router, "/voice/status?contact_id=c-1&phone=501234567&campaign=cold_outreach",
		url.Values{"CallSid": {"CA500"}, "CallStatus": {"completed"}})

	assert.Equal(t, http.StatusOK, rec.Code)
	_, err := service.Registry().Get("CA500")
	assert.ErrorIs(t, err, registry.ErrNotFound)
}
