package config

import "time"

const (
	// Dialogue Constants
	DefaultConfidenceThreshold = 0.4
	DefaultMaxTurns            = 10
	DefaultMaxCallDuration     = 3 * time.Minute

	// Message roles
	MessageRoleUser  = "user"
	MessageRoleAgent = "agent"

	// Voice Constants
	DefaultVoice    = "Polly.Tatyana"
	DefaultLanguage = "ru-RU"

	// Gather Constants
	DefaultSpeechTimeout = "auto"
	DefaultGatherTimeout = 10 * time.Second
	DefaultSpeechModel   = "experimental_conversations"

	// Pacing Constants
	DefaultPacingMin = 30 * time.Second
	DefaultPacingMax = 60 * time.Second

	// Retry Constants
	DefaultRetryRejection  = 30 * 24 * time.Hour
	DefaultRetryMaybeLater = 7 * 24 * time.Hour
	DefaultRetryNoAnswer   = 3 * 24 * time.Hour
	DefaultRetryFallback   = 14 * 24 * time.Hour

	// Collaborator Constants
	DefaultAgentTimeout = 15 * time.Second
	DefaultStoreTimeout = 5 * time.Second

	// ApologyReply is spoken when the customer's utterance was not
	// recognized confidently or the reply agent returned a blank answer.
	ApologyReply = "Простите, я вас не расслышала. Можете повторить?"

	// FallbackReply is the scripted degradation spoken when the reply
	// agent is unreachable or errors out.
	FallbackReply = "Простите, у нас небольшие технические неполадки. Наш менеджер перезвонит вам позже. Хорошего дня!"
)

// CampaignCallConfig represents configuration for the campaign call service
type CampaignCallConfig struct {
	Port string

	// Public base URL for Twilio webhook callbacks
	PublicBaseURL string

	// Twilio configuration
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	// Reply agent (n8n webhook) configuration
	AgentWebhookURL string
	AgentTimeout    time.Duration

	// Dialogue thresholds
	ConfidenceThreshold float64
	MaxTurns            int
	MaxCallDuration     time.Duration

	// Batch pacing (jittered inter-call delay)
	PacingMin time.Duration
	PacingMax time.Duration

	// Retry cooldowns written back on finalization
	RetryRejection  time.Duration
	RetryMaybeLater time.Duration
	RetryNoAnswer   time.Duration
	RetryFallback   time.Duration

	// API protection
	APISecretKey string
	EnableCORS   bool

	// Instance identifier for multi-pod monitoring and routing
	InstanceID string
}
