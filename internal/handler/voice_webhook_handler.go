package handler

import (
	"errors"
	"net/http"
	"strconv"

	twilioadapter "github.com/ClareAI/astra-campaign-service/internal/adapters/twilio"
	"github.com/ClareAI/astra-campaign-service/internal/config"
	"github.com/ClareAI/astra-campaign-service/internal/core/registry"
	"github.com/ClareAI/astra-campaign-service/internal/services/call"
	"github.com/ClareAI/astra-campaign-service/pkg/logger"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// VoiceWebhookHandler receives the telephony provider's webhooks. All three
// endpoints are form-encoded POSTs; the answer and status callbacks also
// carry contact identity in the query string, set when the leg was placed.
type VoiceWebhookHandler struct {
	service *call.CampaignCallService
}

// NewVoiceWebhookHandler creates a new voice webhook handler
func NewVoiceWebhookHandler(service *call.CampaignCallService) *VoiceWebhookHandler {
	return &VoiceWebhookHandler{service: service}
}

// SetupVoiceRoutes registers the webhook routes on the /voice subrouter
func (h *VoiceWebhookHandler) SetupVoiceRoutes(router *mux.Router) {
	router.HandleFunc("/answer", h.handleAnswer).Methods("POST")
	router.HandleFunc("/turn", h.handleTurn).Methods("POST")
	router.HandleFunc("/status", h.handleStatus).Methods("POST")
}

func (h *VoiceWebhookHandler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	callID := r.PostFormValue("CallSid")
	if callID == "" {
		http.Error(w, "missing CallSid", http.StatusBadRequest)
		return
	}

	q := r.URL.Query()
	doc, err := h.service.HandleCallAnswer(r.Context(), callID,
		q.Get("contact_id"), q.Get("phone"), q.Get("name"), q.Get("campaign"))
	if err != nil {
		logger.Base().Error("Failed to handle call answer",
			zap.String("call_id", callID), zap.Error(err))
		writeTwiMLFailure(w)
		return
	}

	writeTwiML(w, doc)
}

func (h *VoiceWebhookHandler) handleTurn(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	callID := r.PostFormValue("CallSid")
	if callID == "" {
		callID = r.URL.Query().Get("call_id")
	}
	if callID == "" {
		http.Error(w, "missing CallSid", http.StatusBadRequest)
		return
	}

	speech := r.PostFormValue("SpeechResult")
	// Unparseable confidence counts as unrecognized speech.
	confidence, err := strconv.ParseFloat(r.PostFormValue("Confidence"), 64)
	if err != nil {
		confidence = 0
	}

	doc, err := h.service.HandleCustomerSpeech(r.Context(), callID, speech, confidence)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			// A stray webhook after hangup gets a benign not-found body.
			http.Error(w, "Разговор не найден", http.StatusNotFound)
			return
		}
		logger.Base().Error("Failed to handle customer speech",
			zap.String("call_id", callID), zap.Error(err))
		writeTwiMLFailure(w)
		return
	}

	writeTwiML(w, doc)
}

func (h *VoiceWebhookHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	callID := r.PostFormValue("CallSid")
	if callID == "" {
		http.Error(w, "missing CallSid", http.StatusBadRequest)
		return
	}

	q := r.URL.Query()
	h.service.HandleCallStatus(r.Context(), callID, r.PostFormValue("CallStatus"),
		q.Get("contact_id"), q.Get("phone"), q.Get("campaign"))

	w.WriteHeader(http.StatusOK)
}

func writeTwiML(w http.ResponseWriter, doc string) {
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(doc))
}

// writeTwiMLFailure speaks the scripted degradation and hangs up; the caller
// must always hear something rather than the carrier's default error tone.
func writeTwiMLFailure(w http.ResponseWriter) {
	doc, err := twilioadapter.SpeakAndHangup(config.FallbackReply)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeTwiML(w, doc)
}
