package handler

import (
	"context"
	"os"

	httpadapter "github.com/ClareAI/astra-campaign-service/internal/adapters/http"
	twilioadapter "github.com/ClareAI/astra-campaign-service/internal/adapters/twilio"
	"github.com/ClareAI/astra-campaign-service/internal/campaign"
	"github.com/ClareAI/astra-campaign-service/internal/config"
	"github.com/ClareAI/astra-campaign-service/internal/core/registry"
	"github.com/ClareAI/astra-campaign-service/internal/core/session"
	"github.com/ClareAI/astra-campaign-service/internal/dialog"
	"github.com/ClareAI/astra-campaign-service/internal/repository"
	"github.com/ClareAI/astra-campaign-service/internal/services/call"
	"github.com/ClareAI/astra-campaign-service/pkg/logger"
	"github.com/ClareAI/astra-campaign-service/pkg/pubsub"
	"github.com/ClareAI/astra-campaign-service/pkg/redis"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// HandlerManager manages all handlers and their initialization
type HandlerManager struct {
	config      *config.CampaignCallConfig
	service     *call.CampaignCallService
	dispatcher  *campaign.Dispatcher
	repoManager repository.RepositoryManager
	sessions    *session.Manager
	publisher   *pubsub.PubSubService
}

// NewHandlerManager creates and initializes all handlers and services
func NewHandlerManager(cfg *config.CampaignCallConfig) (*HandlerManager, error) {
	// Initialize database connection
	repoManager, err := repository.NewRepositoryManager()
	if err != nil {
		logger.Base().Error("failed to connect to database", zap.Error(err))
		return nil, err
	}

	// Initialize Redis service for cross-pod session coordination
	redisHost := os.Getenv("REDIS_HOST")
	if redisHost == "" {
		redisHost = "localhost"
	}
	redisPort := os.Getenv("REDIS_PORT")
	if redisPort == "" {
		redisPort = "6379"
	}
	redisConfig := &redis.RedisConfig{
		Host:     redisHost,
		Port:     redisPort,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
	}
	redisSvc, err := redis.NewRedisService(redisConfig)
	if err != nil {
		logger.Base().Warn("failed to initialize redis service, running without session manager", zap.Error(err))
	}

	var sessionManager *session.Manager
	if redisSvc != nil {
		podID := cfg.InstanceID
		if podID == "" {
			podID = "default-pod"
		}
		sessionManager = session.NewManager(redisSvc, podID)
		logger.Base().Info("session manager initialized", zap.String("pod_id", podID))
	}

	// Initialize outcome event publisher if configured
	var publisher *pubsub.PubSubService
	if projectID := os.Getenv("PUBSUB_PROJECT_ID"); projectID != "" {
		publisher, err = pubsub.NewPubSubService(context.Background(), &pubsub.PubSubConfig{
			ProjectID: projectID,
			TopicName: os.Getenv("PUBSUB_TOPIC_NAME"),
			PubID:     cfg.InstanceID,
		})
		if err != nil {
			logger.Base().Warn("failed to initialize pubsub, running without outcome events", zap.Error(err))
			publisher = nil
		}
	}

	reg := registry.New()
	agentClient := httpadapter.NewAgentClient(cfg.AgentWebhookURL, cfg.AgentTimeout)
	dialer := twilioadapter.NewDialer(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber)

	termination := dialog.NewTerminationPolicy()
	termination.MaxTurns = cfg.MaxTurns
	termination.MaxDuration = cfg.MaxCallDuration

	retries := &campaign.RetrySchedule{
		Rejection:  cfg.RetryRejection,
		MaybeLater: cfg.RetryMaybeLater,
		NoAnswer:   cfg.RetryNoAnswer,
		Fallback:   cfg.RetryFallback,
	}

	var outcomePublisher call.OutcomePublisher
	if publisher != nil {
		outcomePublisher = publisher
	}
	service := call.NewCampaignCallService(cfg, reg, agentClient, termination, retries,
		repoManager, sessionManager, outcomePublisher)

	pacer := campaign.NewPacer(cfg.PacingMin, cfg.PacingMax)
	dispatcher := campaign.NewDispatcher(cfg, repoManager.Contact(), dialer, pacer, reg)

	hm := &HandlerManager{
		config:      cfg,
		service:     service,
		dispatcher:  dispatcher,
		repoManager: repoManager,
		sessions:    sessionManager,
		publisher:   publisher,
	}

	// A pause issued on any pod stops batches everywhere.
	if sessionManager != nil {
		if err := sessionManager.SubscribeToPause(context.Background(), func(campaignName string) {
			logger.Base().Info("pause broadcast received", zap.String("campaign", campaignName))
			dispatcher.Pause(context.Background())
		}); err != nil {
			logger.Base().Warn("failed to subscribe to pause broadcasts", zap.Error(err))
		}
	}

	return hm, nil
}

// SetupAllRoutes sets up all routes with middleware
func (hm *HandlerManager) SetupAllRoutes(router *mux.Router) {
	if hm.config.EnableCORS {
		router.Use(CORSMiddleware)
	}

	campaignHandler := NewCampaignHandler(hm.dispatcher, hm.service.Registry(), hm.sessions, hm.repoManager)
	router.HandleFunc("/health", campaignHandler.HandleHealth).Methods("GET")

	// Telephony webhooks: rate limited per source IP, no API key (the
	// carrier cannot send custom headers).
	voiceRouter := router.PathPrefix("/voice").Subrouter()
	voiceRouter.Use(LoggingMiddleware)
	webhookLimiter := NewIPRateLimiter(rate.Limit(50), 100)
	voiceRouter.Use(webhookLimiter.Middleware)

	voiceHandler := NewVoiceWebhookHandler(hm.service)
	voiceHandler.SetupVoiceRoutes(voiceRouter)

	// Campaign control API behind the API key.
	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.Use(LoggingMiddleware)
	apiRouter.Use(APIKeyMiddleware(hm.config.APISecretKey))
	campaignHandler.SetupCampaignRoutes(apiRouter)

	logger.Base().Info("all application routes registered")
}

// Close releases handler-owned resources
func (hm *HandlerManager) Close() {
	if hm.publisher != nil {
		hm.publisher.Close()
	}
	if hm.repoManager != nil {
		if err := hm.repoManager.Close(); err != nil {
			logger.Base().Warn("failed to close database", zap.Error(err))
		}
	}
}
