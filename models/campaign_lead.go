package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// EntryStatus represents the delivery state of a single roster entry
type EntryStatus string

const (
	EntryStatusPending EntryStatus = "pending"
	EntryStatusSending EntryStatus = "sending"
	EntryStatusSent    EntryStatus = "sent"
	EntryStatusFailed  EntryStatus = "failed"
	EntryStatusSkipped EntryStatus = "skipped"
)

// Valid checks if the status is valid
func (s EntryStatus) Valid() bool {
	switch s {
	case EntryStatusPending, EntryStatusSending, EntryStatusSent,
		EntryStatusFailed, EntryStatusSkipped:
		return true
	default:
		return false
	}
}

// String returns the string representation of the status
func (s EntryStatus) String() string {
	return string(s)
}

// CanTransitionTo checks if the entry can transition to the given status.
// Legal paths: pending->sending->{sent|failed}, pending->skipped.
func (s EntryStatus) CanTransitionTo(newStatus EntryStatus) bool {
	switch s {
	case EntryStatusPending:
		return newStatus == EntryStatusSending || newStatus == EntryStatusSkipped
	case EntryStatusSending:
		return newStatus == EntryStatusSent || newStatus == EntryStatusFailed ||
			newStatus == EntryStatusPending // restart recovery only
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for EntryStatus
func (s *EntryStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = EntryStatus(v)
	case []byte:
		*s = EntryStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into EntryStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for EntryStatus
func (s EntryStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid EntryStatus: %s", s)
	}
	return string(s), nil
}

// CampaignLead is one recipient row of a campaign roster. SendOrder is a
// permutation of 1..N assigned once at audience-population time.
type CampaignLead struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	CampaignID  uint        `gorm:"not null;index:idx_campaign_leads_campaign;uniqueIndex:uk_campaign_leads_order,priority:1" json:"campaign_id"`
	LeadID      int64       `gorm:"not null;index:idx_campaign_leads_lead" json:"lead_id"`
	Phone       string      `gorm:"type:varchar(32);not null" json:"phone"`
	Name        string      `gorm:"type:varchar(255)" json:"name"`
	Status      EntryStatus `gorm:"type:varchar(16);not null;default:'pending';index:idx_campaign_leads_status" json:"status"`
	SendOrder   int         `gorm:"not null;uniqueIndex:uk_campaign_leads_order,priority:2" json:"send_order"`
	ErrorDetail *string     `gorm:"type:varchar(512)" json:"error_detail,omitempty"`
	SentAt      *time.Time  `json:"sent_at,omitempty"`
	CreatedAt   time.Time   `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt   *time.Time  `json:"updated_at,omitempty"`

	// Relations
	Campaign *Campaign `gorm:"foreignKey:CampaignID;references:ID" json:"campaign,omitempty"`
}

// TableName returns the table name for the model
func (CampaignLead) TableName() string {
	return "campaign_leads"
}

// CampaignLeadFilter represents filter criteria for campaign roster entries
type CampaignLeadFilter struct {
	ID         *uint        `json:"id,omitempty"`
	CampaignID *uint        `json:"campaign_id,omitempty"`
	LeadID     *int64       `json:"lead_id,omitempty"`
	Status     *EntryStatus `json:"status,omitempty"`
}

// StatusCount is a per-status tally of roster entries
type StatusCount struct {
	Status EntryStatus `json:"status"`
	Count  int64       `json:"count"`
}
