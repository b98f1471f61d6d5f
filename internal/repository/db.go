package repository

import (
	"context"
	"time"

	"github.com/ClareAI/astra-campaign-service/internal/domain"
	"gorm.io/gorm"
)

// ContactRepository defines the interface for campaign contact operations
type ContactRepository interface {
	// Read operations
	GetByID(ctx context.Context, id string) (*domain.Contact, error)
	FindEligible(ctx context.Context, priority string, limit int) ([]*domain.Contact, error)

	// Update operations
	MarkInitiated(ctx context.Context, contact *domain.Contact, callID, campaign string) error
	UpdateCallResult(ctx context.Context, contactID, status, stage string, leadScore int, nextCallDate *time.Time) error
}

// CallRecordRepository defines the interface for call record operations
type CallRecordRepository interface {
	GetByCallID(ctx context.Context, callID string) (*domain.CallRecord, error)
	GetByContactID(ctx context.Context, contactID string, limit int) ([]*domain.CallRecord, error)
	Upsert(ctx context.Context, record *domain.CallRecord) error
}

// RepositoryManager combines all repositories
type RepositoryManager interface {
	Contact() ContactRepository
	CallRecord() CallRecordRepository

	// Health check
	Ping(ctx context.Context) error

	// Close connection
	Close() error
}

// GormRepositoryManager implements RepositoryManager using GORM
type GormRepositoryManager struct {
	db             *gorm.DB
	contactRepo    *GormContactRepository
	callRecordRepo *GormCallRecordRepository
}

// NewGormRepositoryManager creates a new GORM repository manager
func NewGormRepositoryManager(db *gorm.DB) *GormRepositoryManager {
	return &GormRepositoryManager{
		db:             db,
		contactRepo:    NewGormContactRepository(db),
		callRecordRepo: NewGormCallRecordRepository(db),
	}
}

// Contact returns the campaign contact repository
func (m *GormRepositoryManager) Contact() ContactRepository {
	return m.contactRepo
}

// CallRecord returns the call record repository
func (m *GormRepositoryManager) CallRecord() CallRecordRepository {
	return m.callRecordRepo
}

// Ping checks the database connection
func (m *GormRepositoryManager) Ping(ctx context.Context) error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (m *GormRepositoryManager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
