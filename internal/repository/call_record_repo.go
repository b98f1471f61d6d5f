package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/ClareAI/astra-campaign-service/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCallRecordRepository implements CallRecordRepository using GORM
type GormCallRecordRepository struct {
	db *gorm.DB
}

// NewGormCallRecordRepository creates a new GORM call record repository
func NewGormCallRecordRepository(db *gorm.DB) *GormCallRecordRepository {
	return &GormCallRecordRepository{db: db}
}

// GetByCallID retrieves a call record by the provider call ID
func (r *GormCallRecordRepository) GetByCallID(ctx context.Context, callID string) (*domain.CallRecord, error) {
	var record domain.CallRecord
	if err := r.db.WithContext(ctx).First(&record, "call_id = ?", callID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("call record not found: %s", callID)
		}
		return nil, fmt.Errorf("failed to get call record: %w", err)
	}

	return &record, nil
}

// GetByContactID retrieves the most recent call records for a contact
func (r *GormCallRecordRepository) GetByContactID(ctx context.Context, contactID string, limit int) ([]*domain.CallRecord, error) {
	var records []*domain.CallRecord
	if err := r.db.WithContext(ctx).
		Where("contact_id = ?", contactID).
		Order("started_at DESC").
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to get call records for contact: %w", err)
	}

	return records, nil
}

// Upsert inserts a call record keyed by call_id, updating the dialogue
// outcome columns on conflict. Status callbacks and dialogue finalization
// can race for the same call, so the write must be idempotent.
func (r *GormCallRecordRepository) Upsert(ctx context.Context, record *domain.CallRecord) error {
	now := time.Now().UTC()
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "call_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"status", "stage", "lead_score", "next_call_date",
			"transcript", "ended_at", "updated_at",
		}),
	}).Create(record).Error; err != nil {
		return fmt.Errorf("failed to upsert call record: %w", err)
	}

	return nil
}
