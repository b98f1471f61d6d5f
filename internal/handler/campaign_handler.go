package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ClareAI/astra-campaign-service/internal/campaign"
	"github.com/ClareAI/astra-campaign-service/internal/core/registry"
	"github.com/ClareAI/astra-campaign-service/internal/core/session"
	"github.com/ClareAI/astra-campaign-service/internal/repository"
	"github.com/ClareAI/astra-campaign-service/pkg/logger"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const (
	defaultBatchSize = 20
	maxBatchSize     = 100
)

// CampaignHandler exposes the campaign control API: start a batch, pause,
// resume, and inspect status.
type CampaignHandler struct {
	dispatcher *campaign.Dispatcher
	registry   *registry.Registry
	sessions   *session.Manager
	repos      repository.RepositoryManager
}

// NewCampaignHandler creates a new campaign handler
func NewCampaignHandler(dispatcher *campaign.Dispatcher, reg *registry.Registry, sessions *session.Manager, repos repository.RepositoryManager) *CampaignHandler {
	return &CampaignHandler{
		dispatcher: dispatcher,
		registry:   reg,
		sessions:   sessions,
		repos:      repos,
	}
}

// SetupCampaignRoutes registers the campaign control routes
func (h *CampaignHandler) SetupCampaignRoutes(router *mux.Router) {
	router.HandleFunc("/campaign/start", h.handleStart).Methods("POST")
	router.HandleFunc("/campaign/pause", h.handlePause).Methods("POST")
	router.HandleFunc("/campaign/resume", h.handleResume).Methods("POST")
	router.HandleFunc("/campaign/status", h.handleStatus).Methods("GET")
}

// StartBatchRequest is the payload for starting a campaign batch
type StartBatchRequest struct {
	Campaign string `json:"campaign"`
	Priority string `json:"priority,omitempty"`
	MaxCalls int    `json:"max_calls,omitempty"`
}

func (h *CampaignHandler) handleStart(w http.ResponseWriter, r *http.Request) {
	var req StartBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Campaign == "" {
		writeJSONError(w, http.StatusBadRequest, "campaign is required")
		return
	}
	if req.MaxCalls <= 0 {
		req.MaxCalls = defaultBatchSize
	}
	if req.MaxCalls > maxBatchSize {
		req.MaxCalls = maxBatchSize
	}

	if h.dispatcher.Running() {
		writeJSONError(w, http.StatusConflict, "a batch is already running")
		return
	}

	h.dispatcher.Resume()
	go func() {
		result, err := h.dispatcher.RunBatch(context.Background(), req.Campaign, req.MaxCalls, req.Priority)
		if err != nil {
			logger.Base().Error("Campaign batch failed",
				zap.String("campaign", req.Campaign), zap.Error(err))
			return
		}
		logger.Base().Info("Campaign batch finished",
			zap.String("batch_id", result.BatchID),
			zap.Int("considered", result.Considered),
			zap.Int("initiated", result.Initiated),
			zap.Int("failed", result.Failed))
	}()

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"status":    "accepted",
		"campaign":  req.Campaign,
		"max_calls": req.MaxCalls,
	})
}

func (h *CampaignHandler) handlePause(w http.ResponseWriter, r *http.Request) {
	h.dispatcher.Pause(r.Context())

	// Other pods stop their batches and hang up legs they own.
	if h.sessions != nil {
		campaignName := r.URL.Query().Get("campaign")
		if err := h.sessions.NotifyPause(r.Context(), campaignName); err != nil {
			logger.Base().Warn("Failed to broadcast pause", zap.Error(err))
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "paused",
	})
}

func (h *CampaignHandler) handleResume(w http.ResponseWriter, r *http.Request) {
	h.dispatcher.Resume()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "resumed",
	})
}

func (h *CampaignHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"running":      h.dispatcher.Running(),
		"paused":       h.dispatcher.Paused(),
		"active_calls": h.registry.Count(),
	}
	if result := h.dispatcher.LastResult(); result != nil {
		status["last_batch"] = result
	}
	writeJSON(w, http.StatusOK, status)
}

// HandleHealth reports service and database health
func (h *CampaignHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":       "ok",
		"active_calls": h.registry.Count(),
	}
	if h.repos != nil {
		if err := h.repos.Ping(r.Context()); err != nil {
			health["status"] = "degraded"
			health["database"] = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, health)
			return
		}
		health["database"] = "ok"
	}
	writeJSON(w, http.StatusOK, health)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Base().Error("Failed to encode response", zap.Error(err))
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
