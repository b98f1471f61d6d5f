package registry

import (
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/ClareAI/astra-campaign-service/internal/domain"
	"github.com/ClareAI/astra-campaign-service/pkg/logger"
	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned for an unknown or already finalized call ID.
	// A webhook arriving after hangup is an expected race; callers answer it
	// with a benign not-found response.
	ErrNotFound = errors.New("conversation not found")

	// ErrDuplicateCall is returned when a call ID is created twice, which
	// signals a duplicate telephony callback.
	ErrDuplicateCall = errors.New("conversation already exists")
)

const shardCount = 16

type shard struct {
	mu            sync.RWMutex
	conversations map[string]*domain.Conversation
}

// Registry is the in-memory store of active calls keyed by call ID. Exactly
// one conversation exists per call ID between answer and finalization.
type Registry struct {
	shards [shardCount]*shard
}

// New creates an empty registry.
func New() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i] = &shard{conversations: make(map[string]*domain.Conversation)}
	}
	return r
}

func (r *Registry) shardFor(callID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(callID))
	return r.shards[h.Sum32()%shardCount]
}

// Create registers a new conversation for a call ID. Fails with
// ErrDuplicateCall if the call ID is already present.
func (r *Registry) Create(callID, contactID, phone, name, campaignTag string) (*domain.Conversation, error) {
	s := r.shardFor(callID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.conversations[callID]; exists {
		return nil, ErrDuplicateCall
	}

	conv := &domain.Conversation{
		CallID:      callID,
		ContactID:   contactID,
		Phone:       phone,
		DisplayName: name,
		CampaignTag: campaignTag,
		Stage:       domain.StageGreeting,
		StartedAt:   time.Now(),
	}
	s.conversations[callID] = conv

	logger.Base().Info("Conversation registered",
		zap.String("call_id", callID),
		zap.String("contact_id", contactID),
		zap.String("campaign", campaignTag))
	return conv, nil
}

// Get returns the active conversation for a call ID.
func (r *Registry) Get(callID string) (*domain.Conversation, error) {
	s := r.shardFor(callID)
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[callID]
	if !ok {
		return nil, ErrNotFound
	}
	return conv, nil
}

// AppendMessage appends one message to an active conversation. Reports
// ErrNotFound if the conversation was already finalized; the message is
// dropped rather than resurrecting the call.
func (r *Registry) AppendMessage(callID, role, text string) error {
	conv, err := r.Get(callID)
	if err != nil {
		return err
	}

	conv.Mutex.Lock()
	conv.Append(role, text)
	conv.Mutex.Unlock()
	return nil
}

// Finalize atomically removes and returns the conversation. A second call
// for the same call ID reports ErrNotFound so a result is never processed
// twice.
func (r *Registry) Finalize(callID string) (*domain.Conversation, error) {
	s := r.shardFor(callID)
	s.mu.Lock()
	conv, ok := s.conversations[callID]
	if ok {
		delete(s.conversations, callID)
	}
	s.mu.Unlock()

	if !ok {
		return nil, ErrNotFound
	}

	logger.Base().Info("Conversation finalized",
		zap.String("call_id", callID),
		zap.String("stage", string(conv.Stage)),
		zap.Int("messages", len(conv.Messages)))
	return conv, nil
}

// Count reports the number of active conversations.
func (r *Registry) Count() int {
	total := 0
	for _, s := range r.shards {
		s.mu.RLock()
		total += len(s.conversations)
		s.mu.RUnlock()
	}
	return total
}

// ActiveCallIDs returns a snapshot of the call IDs currently registered.
// Used by campaign pause to best-effort terminate in-flight legs.
func (r *Registry) ActiveCallIDs() []string {
	var ids []string
	for _, s := range r.shards {
		s.mu.RLock()
		for id := range s.conversations {
			ids = append(ids, id)
		}
		s.mu.RUnlock()
	}
	return ids
}
