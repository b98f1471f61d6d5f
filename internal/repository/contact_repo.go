package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/ClareAI/astra-campaign-service/internal/domain"
	"gorm.io/gorm"
)

// GormContactRepository implements ContactRepository using GORM
type GormContactRepository struct {
	db *gorm.DB
}

// NewGormContactRepository creates a new GORM contact repository
func NewGormContactRepository(db *gorm.DB) *GormContactRepository {
	return &GormContactRepository{db: db}
}

// GetByID retrieves a campaign contact by ID
func (r *GormContactRepository) GetByID(ctx context.Context, id string) (*domain.Contact, error) {
	var contact domain.Contact
	if err := r.db.WithContext(ctx).First(&contact, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("contact not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}

	return &contact, nil
}

// FindEligible retrieves contacts that may be dialed right now: never called,
// previously failed, or whose cooldown window has elapsed. A contact with a
// future next_call_date is never returned.
func (r *GormContactRepository) FindEligible(ctx context.Context, priority string, limit int) ([]*domain.Contact, error) {
	var contacts []*domain.Contact
	query := r.db.WithContext(ctx).
		Where("call_status IS NULL OR call_status = ? OR next_call_date <= ?",
			domain.CallStatusFailed, time.Now().UTC())

	if priority != "" {
		query = query.Where("priority = ?", priority)
	}

	if err := query.Order("created_at ASC").Limit(limit).Find(&contacts).Error; err != nil {
		return nil, fmt.Errorf("failed to find eligible contacts: %w", err)
	}

	return contacts, nil
}

// MarkInitiated records that a call leg was placed towards the contact. The
// cooldown is cleared so a crash mid-call does not leave the contact stuck
// behind a stale next_call_date.
func (r *GormContactRepository) MarkInitiated(ctx context.Context, contact *domain.Contact, callID, campaign string) error {
	status := domain.CallStatusInitiated
	updates := map[string]interface{}{
		"call_status":    status,
		"next_call_date": nil,
		"updated_at":     time.Now().UTC(),
		"metadata": domain.JSONB{
			"last_call_id":  callID,
			"last_campaign": campaign,
		},
	}

	if err := r.db.WithContext(ctx).Model(&domain.Contact{}).
		Where("id = ?", contact.ID).
		Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to mark contact initiated: %w", err)
	}

	contact.CallStatus = &status
	contact.NextCallDate = nil
	return nil
}

// UpdateCallResult writes the finalized dialogue outcome back onto the
// contact row: terminal status, last known conversation state, the lead
// score, and the retry cooldown (nil when the contact should not be
// re-dialed automatically).
func (r *GormContactRepository) UpdateCallResult(ctx context.Context, contactID, status, stage string, leadScore int, nextCallDate *time.Time) error {
	updates := map[string]interface{}{
		"call_status":        status,
		"conversation_state": stage,
		"lead_score":         leadScore,
		"next_call_date":     nextCallDate,
		"updated_at":         time.Now().UTC(),
	}

	result := r.db.WithContext(ctx).Model(&domain.Contact{}).
		Where("id = ?", contactID).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update call result: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("contact not found: %s", contactID)
	}

	return nil
}
