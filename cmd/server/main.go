package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/ClareAI/astra-campaign-service/internal/config"
	"github.com/ClareAI/astra-campaign-service/internal/handler"
	"github.com/ClareAI/astra-campaign-service/pkg/logger"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Server represents the campaign call service server
type Server struct {
	config         *config.CampaignCallConfig
	router         *mux.Router
	handlerManager *handler.HandlerManager
}

// NewServer creates a new campaign call service server
func NewServer(cfg *config.CampaignCallConfig) *Server {
	// Initialize zap logger and redirect stdlib log to it
	if _, err := logger.Init(os.Getenv("LOG_ENV")); err != nil {
		logger.Base().Error("Failed to initialize zap logger, falling back to std log")
	}

	router := mux.NewRouter()

	// Initialize handler manager - it will create all services internally
	handlerManager, err := handler.NewHandlerManager(cfg)
	if err != nil {
		logger.Base().Error("Failed to initialize handler manager", zap.Error(err))
		return nil
	}

	handlerManager.SetupAllRoutes(router)

	return &Server{
		config:         cfg,
		router:         router,
		handlerManager: handlerManager,
	}
}

// Start starts the campaign call service server
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%s", s.config.Port)

	server := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Base().Info("Starting server", zap.String("addr", addr))
	return server.ListenAndServe()
}

// LoadConfigFromEnv loads campaign call service configuration from environment
func LoadConfigFromEnv() *config.CampaignCallConfig {
	return &config.CampaignCallConfig{
		Port:          getEnvOrDefault("CAMPAIGN_CALL_PORT", "8083"),
		PublicBaseURL: getEnvOrDefault("PUBLIC_BASE_URL", ""),

		// Twilio configuration
		TwilioAccountSID: getEnvOrDefault("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:  getEnvOrDefault("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber: getEnvOrDefault("TWILIO_FROM_NUMBER", ""),

		// Reply agent configuration
		AgentWebhookURL: getEnvOrDefault("AGENT_WEBHOOK_URL", ""),
		AgentTimeout:    getEnvAsDurationOrDefault("AGENT_TIMEOUT", config.DefaultAgentTimeout),

		// Dialogue thresholds
		ConfidenceThreshold: getEnvAsFloatOrDefault("SPEECH_CONFIDENCE_THRESHOLD", config.DefaultConfidenceThreshold),
		MaxTurns:            getEnvAsIntOrDefault("MAX_DIALOGUE_TURNS", config.DefaultMaxTurns),
		MaxCallDuration:     getEnvAsDurationOrDefault("MAX_CALL_DURATION", config.DefaultMaxCallDuration),

		// Batch pacing
		PacingMin: getEnvAsDurationOrDefault("PACING_MIN", config.DefaultPacingMin),
		PacingMax: getEnvAsDurationOrDefault("PACING_MAX", config.DefaultPacingMax),

		// Retry cooldowns
		RetryRejection:  getEnvAsDurationOrDefault("RETRY_REJECTION", config.DefaultRetryRejection),
		RetryMaybeLater: getEnvAsDurationOrDefault("RETRY_MAYBE_LATER", config.DefaultRetryMaybeLater),
		RetryNoAnswer:   getEnvAsDurationOrDefault("RETRY_NO_ANSWER", config.DefaultRetryNoAnswer),
		RetryFallback:   getEnvAsDurationOrDefault("RETRY_FALLBACK", config.DefaultRetryFallback),

		// API protection
		APISecretKey: getEnvOrDefault("API_SECRET_KEY", ""),
		EnableCORS:   getEnvAsBoolOrDefault("ENABLE_CORS", true),

		// Instance identifier for multi-pod monitoring and routing
		InstanceID: getDynamicInstanceID(),
	}
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsFloatOrDefault gets environment variable as float64 or returns default
func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvAsBoolOrDefault gets environment variable as bool or returns default
func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDurationOrDefault gets environment variable as duration or returns default
func getEnvAsDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getDynamicInstanceID generates a unique identifier for this service instance.
// It first tries the system hostname (pod name in K8s), then falls back to a
// timestamp-based ID.
func getDynamicInstanceID() string {
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		return hostname
	}
	return fmt.Sprintf("campaign-service-%d", time.Now().UnixNano())
}

func main() {
	// Load .env file for local development if it exists.
	// This will not override environment variables set by Helm/Docker.
	if err := godotenv.Load(); err != nil {
		log.Printf("Info: .env file not found or skipped (expected in production): %v", err)
	}

	cfg := LoadConfigFromEnv()
	fmt.Printf("Starting Astra Campaign Service (Instance: %s)\n", cfg.InstanceID)

	server := NewServer(cfg)
	if server == nil {
		log.Fatal("Failed to create server")
	}
	logger.Base().Info("Server initialized successfully",
		zap.String("port", cfg.Port),
		zap.String("instance_id", cfg.InstanceID))

	if err := server.Start(); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
