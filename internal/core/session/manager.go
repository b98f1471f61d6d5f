package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ClareAI/astra-campaign-service/pkg/logger"
	"github.com/ClareAI/astra-campaign-service/pkg/redis"
	"go.uber.org/zap"
)

const (
	PauseChannel     = "astra:campaign:pause"
	SessionKeyPrefix = "astra:campaign:call:info"
	SessionTTL       = 1 * time.Hour
)

// SessionInfo represents monitoring data for an in-flight call leg
type SessionInfo struct {
	CallID    string    `json:"callId"`
	PodID     string    `json:"podId"`
	ContactID string    `json:"contactId"`
	Campaign  string    `json:"campaign"`
	StartTime time.Time `json:"startTime"`
}

// PauseMessage is the payload for pause broadcasts. Every pod that receives
// it stops its running batch and hangs up calls it owns.
type PauseMessage struct {
	Campaign    string `json:"campaign"`
	RequestedBy string `json:"requestedBy"`
}

type Manager struct {
	redisSvc redis.RedisServiceInterface
	podID    string
}

func NewManager(redisSvc redis.RedisServiceInterface, podID string) *Manager {
	return &Manager{
		redisSvc: redisSvc,
		podID:    podID,
	}
}

// Register call session for monitoring
func (m *Manager) Register(ctx context.Context, info SessionInfo) error {
	info.PodID = m.podID
	if info.StartTime.IsZero() {
		info.StartTime = time.Now()
	}

	data, _ := json.Marshal(info)
	key := fmt.Sprintf("%s:%s", SessionKeyPrefix, info.CallID)

	err := m.redisSvc.SetValue(ctx, key, string(data), SessionTTL)
	if err == nil {
		logger.Base().Info("Call session registered in Redis", zap.String("call_id", info.CallID), zap.String("pod_id", m.podID))
	}
	return err
}

// Unregister call session from monitoring
func (m *Manager) Unregister(ctx context.Context, callID string) error {
	key := fmt.Sprintf("%s:%s", SessionKeyPrefix, callID)
	return m.redisSvc.DelValue(ctx, key)
}

// NotifyPause broadcasts a campaign pause request to all pods
func (m *Manager) NotifyPause(ctx context.Context, campaign string) error {
	logger.Base().Info("Broadcasting campaign pause", zap.String("campaign", campaign))
	return m.redisSvc.Publish(ctx, PauseChannel, PauseMessage{Campaign: campaign, RequestedBy: m.podID})
}

// SubscribeToPause listens for pause broadcasts
func (m *Manager) SubscribeToPause(ctx context.Context, handler func(campaign string)) error {
	return m.redisSvc.Subscribe(ctx, PauseChannel, func(payload string) {
		var msg PauseMessage
		if err := json.Unmarshal([]byte(payload), &msg); err != nil {
			logger.Base().Error("Failed to unmarshal pause message", zap.Error(err))
			return
		}
		handler(msg.Campaign)
	})
}
