package campaign

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ClareAI/astra-campaign-service/internal/config"
	"github.com/ClareAI/astra-campaign-service/internal/core/registry"
	"github.com/ClareAI/astra-campaign-service/internal/domain"
	"github.com/ClareAI/astra-campaign-service/internal/phone"
	"github.com/ClareAI/astra-campaign-service/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ContactSource supplies eligible contacts and records initiation.
type ContactSource interface {
	FindEligible(ctx context.Context, priority string, limit int) ([]*domain.Contact, error)
	MarkInitiated(ctx context.Context, contact *domain.Contact, callID, campaign string) error
}

// Dialer places and tears down call legs with the telephony provider.
type Dialer interface {
	StartCall(ctx context.Context, to, callbackURL, statusCallbackURL string) (string, error)
	EndCall(ctx context.Context, callID string) error
}

// ContactOutcome is the per-contact line of a batch result.
type ContactOutcome struct {
	ContactID string `json:"contact_id"`
	Phone     string `json:"phone"`
	CallID    string `json:"call_id,omitempty"`
	Status    string `json:"status"` // initiated, failed
	Reason    string `json:"reason,omitempty"`
}

// BatchResult aggregates one dispatcher run.
type BatchResult struct {
	BatchID    string           `json:"batch_id"`
	Campaign   string           `json:"campaign"`
	Priority   string           `json:"priority"`
	Considered int              `json:"considered"`
	Initiated  int              `json:"initiated"`
	Failed     int              `json:"failed"`
	Outcomes   []ContactOutcome `json:"outcomes"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
}

// Dispatcher drives one campaign batch at a time: it pulls a bounded set of
// eligible contacts and dials them strictly sequentially with a jittered
// inter-call delay. The single-worker model is a deliberate self-imposed
// rate limit, not a resource constraint.
type Dispatcher struct {
	cfg      *config.CampaignCallConfig
	contacts ContactSource
	dialer   Dialer
	pacer    *Pacer
	registry *registry.Registry

	paused atomic.Bool

	mu         sync.Mutex
	running    bool
	lastResult *BatchResult
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(cfg *config.CampaignCallConfig, contacts ContactSource, dialer Dialer, pacer *Pacer, reg *registry.Registry) *Dispatcher {
	return &Dispatcher{
		cfg:      cfg,
		contacts: contacts,
		dialer:   dialer,
		pacer:    pacer,
		registry: reg,
	}
}

// RunBatch executes one campaign batch. Per-contact failures are captured in
// the result; the batch itself only errors when the contact query fails or a
// batch is already running.
func (d *Dispatcher) RunBatch(ctx context.Context, campaignName string, maxCalls int, priority string) (*BatchResult, error) {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return nil, fmt.Errorf("a batch is already running")
	}
	d.running = true
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()
	}()

	result := &BatchResult{
		BatchID:   uuid.New().String(),
		Campaign:  campaignName,
		Priority:  priority,
		StartedAt: time.Now(),
	}

	eligible, err := d.contacts.FindEligible(ctx, priority, maxCalls)
	if err != nil {
		return nil, fmt.Errorf("failed to query eligible contacts: %w", err)
	}
	result.Considered = len(eligible)

	logger.Base().Info("Campaign batch started",
		zap.String("batch_id", result.BatchID),
		zap.String("campaign", campaignName),
		zap.String("priority", priority),
		zap.Int("eligible", len(eligible)))

	for i, contact := range eligible {
		if d.paused.Load() {
			logger.Base().Info("Campaign paused, stopping batch",
				zap.String("batch_id", result.BatchID),
				zap.Int("dispatched", i))
			break
		}
		if err := ctx.Err(); err != nil {
			logger.Base().Warn("Batch context cancelled", zap.String("batch_id", result.BatchID))
			break
		}

		outcome := d.dispatchContact(ctx, campaignName, contact)
		result.Outcomes = append(result.Outcomes, outcome)
		if outcome.Status == domain.CallStatusInitiated {
			result.Initiated++
			// Pace only between attempted calls, never after the last one.
			if i < len(eligible)-1 {
				if err := d.pacer.Wait(ctx); err != nil {
					break
				}
			}
		} else {
			result.Failed++
		}
	}

	result.FinishedAt = time.Now()

	d.mu.Lock()
	d.lastResult = result
	d.mu.Unlock()

	logger.Base().Info("Campaign batch finished",
		zap.String("batch_id", result.BatchID),
		zap.Int("initiated", result.Initiated),
		zap.Int("failed", result.Failed))
	return result, nil
}

// dispatchContact attempts a single call leg. Validation and collaborator
// failures are folded into the outcome so the batch continues.
func (d *Dispatcher) dispatchContact(ctx context.Context, campaignName string, contact *domain.Contact) ContactOutcome {
	outcome := ContactOutcome{ContactID: contact.ID, Phone: contact.PhoneNumber}

	national := phone.Normalize(contact.PhoneNumber)
	if national == "" {
		outcome.Status = domain.CallStatusFailed
		outcome.Reason = fmt.Sprintf("invalid phone number: %q", contact.PhoneNumber)
		logger.Base().Warn("Skipping contact with invalid phone",
			zap.String("contact_id", contact.ID),
			zap.String("phone", contact.PhoneNumber))
		return outcome
	}

	dest, err := phone.Dialable(national)
	if err != nil {
		outcome.Status = domain.CallStatusFailed
		outcome.Reason = err.Error()
		return outcome
	}

	callID, err := d.dialer.StartCall(ctx, dest, d.answerURL(contact, campaignName), d.statusURL(contact, campaignName))
	if err != nil {
		outcome.Status = domain.CallStatusFailed
		outcome.Reason = fmt.Sprintf("failed to start call: %v", err)
		logger.Base().Error("Failed to start call leg",
			zap.String("contact_id", contact.ID),
			zap.Error(err))
		return outcome
	}

	if err := d.contacts.MarkInitiated(ctx, contact, callID, campaignName); err != nil {
		// Persistence is best effort; the call is already ringing.
		logger.Base().Error("Failed to persist initiated status",
			zap.String("contact_id", contact.ID),
			zap.String("call_id", callID),
			zap.Error(err))
	}

	outcome.Status = domain.CallStatusInitiated
	outcome.CallID = callID
	logger.Base().Info("Call initiated",
		zap.String("contact_id", contact.ID),
		zap.String("call_id", callID),
		zap.String("campaign", campaignName))
	return outcome
}

func (d *Dispatcher) answerURL(contact *domain.Contact, campaignName string) string {
	q := url.Values{}
	q.Set("contact_id", contact.ID)
	q.Set("phone", contact.PhoneNumber)
	q.Set("name", contact.ContactName)
	q.Set("campaign", campaignName)
	return fmt.Sprintf("%s/voice/answer?%s", d.cfg.PublicBaseURL, q.Encode())
}

// statusURL carries the same contact identity as the answer URL so a leg
// that never connects (no-answer, busy) can still be rescheduled.
func (d *Dispatcher) statusURL(contact *domain.Contact, campaignName string) string {
	q := url.Values{}
	q.Set("contact_id", contact.ID)
	q.Set("phone", contact.PhoneNumber)
	q.Set("campaign", campaignName)
	return fmt.Sprintf("%s/voice/status?%s", d.cfg.PublicBaseURL, q.Encode())
}

// Pause immediately stops issuing new calls and best-effort terminates the
// in-flight legs. Conversations that cannot be stopped reach the termination
// policy's own caps; registry state stays consistent either way.
func (d *Dispatcher) Pause(ctx context.Context) {
	d.paused.Store(true)

	for _, callID := range d.registry.ActiveCallIDs() {
		if err := d.dialer.EndCall(ctx, callID); err != nil {
			logger.Base().Warn("Failed to terminate in-flight call",
				zap.String("call_id", callID),
				zap.Error(err))
		}
	}
	logger.Base().Info("Campaign paused")
}

// Resume lifts a pause.
func (d *Dispatcher) Resume() {
	d.paused.Store(false)
	logger.Base().Info("Campaign resumed")
}

// Paused reports the pause flag.
func (d *Dispatcher) Paused() bool {
	return d.paused.Load()
}

// Running reports whether a batch is currently executing.
func (d *Dispatcher) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// LastResult returns the most recent batch result, or nil.
func (d *Dispatcher) LastResult() *BatchResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastResult
}
