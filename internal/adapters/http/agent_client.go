package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ClareAI/astra-campaign-service/internal/config"
	"github.com/ClareAI/astra-campaign-service/pkg/logger"
	"go.uber.org/zap"
)

// ApologyReply is substituted when the reply agent returns a blank answer.
const ApologyReply = config.ApologyReply

// FallbackReply is the scripted degradation when the reply agent is
// unreachable or over its time budget; the caller must always hear something.
const FallbackReply = config.FallbackReply

// AgentClient talks to the reply-generation service (an n8n agent webhook).
// It is an opaque text-in/text-out collaborator with a bounded time budget.
type AgentClient struct {
	WebhookURL string
	HTTPClient *http.Client
}

// AgentRequest is the payload sent to the reply agent for one turn.
type AgentRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
	Phone     string `json:"phone"`
	Name      string `json:"name"`
}

// AgentResponse is the reply agent's answer. Some deployments wrap the text
// in {"output": ...}, older ones in {"reply": ...}.
type AgentResponse struct {
	Output string `json:"output"`
	Reply  string `json:"reply"`
}

// NewAgentClient creates a reply agent client with the given time budget.
func NewAgentClient(webhookURL string, timeout time.Duration) *AgentClient {
	return &AgentClient{
		WebhookURL: webhookURL,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// GetReply asks the agent for the next thing to say. A blank answer is
// replaced with the apology string; transport errors are returned for the
// caller to degrade to the scripted fallback.
func (c *AgentClient) GetReply(ctx context.Context, utterance, sessionID, phoneNumber, name string) (string, error) {
	request := AgentRequest{
		Message:   utterance,
		SessionID: sessionID,
		Phone:     phoneNumber,
		Name:      name,
	}

	jsonData, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal agent request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.WebhookURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to reach reply agent: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read agent response: %w", err)
	}

	logger.Base().Debug("Reply agent responded",
		zap.String("session_id", sessionID),
		zap.Int("status_code", resp.StatusCode),
		zap.Duration("latency", time.Since(start)))

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("reply agent error: status=%d body=%s", resp.StatusCode, string(bodyBytes))
	}

	var response AgentResponse
	if err := json.Unmarshal(bodyBytes, &response); err != nil {
		// Some agent flows answer with bare text.
		text := strings.TrimSpace(string(bodyBytes))
		if text == "" {
			return ApologyReply, nil
		}
		return text, nil
	}

	text := strings.TrimSpace(response.Output)
	if text == "" {
		text = strings.TrimSpace(response.Reply)
	}
	if text == "" {
		logger.Base().Warn("Reply agent returned blank answer", zap.String("session_id", sessionID))
		return ApologyReply, nil
	}
	return text, nil
}
