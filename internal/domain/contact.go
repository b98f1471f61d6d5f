package domain

import (
	"time"
)

// Contact is one row of the campaign contact list. The dispatcher only reads
// and writes the subset of columns below; the rest belongs to the CRM.
type Contact struct {
	ID                string     `json:"id" db:"id" gorm:"column:id;primaryKey"`
	PhoneNumber       string     `json:"phone_number" db:"phone_number" gorm:"column:phone_number"`
	ContactName       string     `json:"contact_name" db:"contact_name" gorm:"column:contact_name"`
	Priority          string     `json:"priority" db:"priority" gorm:"column:priority;index"`
	CallStatus        *string    `json:"call_status" db:"call_status" gorm:"column:call_status"`
	NextCallDate      *time.Time `json:"next_call_date" db:"next_call_date" gorm:"column:next_call_date"`
	ConversationState string     `json:"conversation_state" db:"conversation_state" gorm:"column:conversation_state"`
	LeadScore         int        `json:"lead_score" db:"lead_score" gorm:"column:lead_score"`
	Metadata          JSONB      `json:"metadata" db:"metadata" gorm:"column:metadata;type:jsonb"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at" gorm:"column:created_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at" gorm:"column:updated_at"`
}

func (Contact) TableName() string {
	return "campaign_contacts"
}

// CallRecord is the durable trace of one call attempt.
type CallRecord struct {
	ID           string     `json:"id" db:"id" gorm:"column:id;primaryKey"`
	CallID       string     `json:"call_id" db:"call_id" gorm:"column:call_id;unique"`
	ContactID    string     `json:"contact_id" db:"contact_id" gorm:"column:contact_id;index"`
	Phone        string     `json:"phone" db:"phone" gorm:"column:phone"`
	ContactName  string     `json:"contact_name" db:"contact_name" gorm:"column:contact_name"`
	Campaign     string     `json:"campaign" db:"campaign" gorm:"column:campaign;index"`
	Status       string     `json:"status" db:"status" gorm:"column:status"`
	Stage        string     `json:"stage" db:"stage" gorm:"column:stage"`
	LeadScore    int        `json:"lead_score" db:"lead_score" gorm:"column:lead_score"`
	NextCallDate *time.Time `json:"next_call_date" db:"next_call_date" gorm:"column:next_call_date"`
	Transcript   JSONB      `json:"transcript" db:"transcript" gorm:"column:transcript;type:jsonb"`
	StartedAt    time.Time  `json:"started_at" db:"started_at" gorm:"column:started_at"`
	EndedAt      time.Time  `json:"ended_at" db:"ended_at" gorm:"column:ended_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at" gorm:"column:created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at" gorm:"column:updated_at"`
}

func (CallRecord) TableName() string {
	return "campaign_call_records"
}
