package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BatchStatus is the coarse progress marker of an instant batch. The
// per-entry rows carry the authoritative delivery state.
type BatchStatus string

const (
	BatchStatusRunning   BatchStatus = "running"
	BatchStatusCompleted BatchStatus = "completed"
	BatchStatusFailed    BatchStatus = "failed"
)

// Valid checks if the status is valid
func (s BatchStatus) Valid() bool {
	return s == BatchStatusRunning || s == BatchStatusCompleted || s == BatchStatusFailed
}

// Scan implements the sql.Scanner interface for BatchStatus
func (s *BatchStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = BatchStatus(v)
	case []byte:
		*s = BatchStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into BatchStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for BatchStatus
func (s BatchStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid BatchStatus: %s", s)
	}
	return string(s), nil
}

// InstantBatch is an ephemeral send-now job over an explicit recipient
// list. It skips the campaign lifecycle entirely but still persists
// per-recipient status for auditability and resumption of partial failures.
type InstantBatch struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	UUID         uuid.UUID   `gorm:"type:uuid;not null;uniqueIndex:uk_instant_batches_uuid" json:"uuid"`
	OwnerUserID  uint        `gorm:"not null;index:idx_instant_batches_owner" json:"owner_user_id"`
	BranchID     int64       `gorm:"not null;default:0;index:idx_instant_batches_branch" json:"branch_id"`
	MessageType  MessageType `gorm:"type:varchar(16);not null;default:'text'" json:"message_type"`
	Message      string      `gorm:"type:text;not null" json:"message"`
	MediaPath    *string     `gorm:"type:text" json:"media_path,omitempty"`
	MediaCaption *string     `gorm:"type:text" json:"media_caption,omitempty"`
	Status       BatchStatus `gorm:"type:varchar(16);not null;default:'running'" json:"status"`

	TotalLeads  int `gorm:"not null;default:0" json:"total_leads"`
	SentCount   int `gorm:"not null;default:0" json:"sent_count"`
	FailedCount int `gorm:"not null;default:0" json:"failed_count"`

	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_instant_batches_created_at" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (InstantBatch) TableName() string {
	return "instant_batches"
}

// BeforeCreate is called before creating a new record
func (b *InstantBatch) BeforeCreate() error {
	if b.UUID == uuid.Nil {
		b.UUID = uuid.New()
	}
	if b.Status == "" {
		b.Status = BatchStatusRunning
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	return nil
}

// InstantBatchEntry is one recipient row of an instant batch, same shape
// and invariants as CampaignLead.
type InstantBatchEntry struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	BatchID     uint        `gorm:"not null;index:idx_instant_entries_batch;uniqueIndex:uk_instant_entries_order,priority:1" json:"batch_id"`
	LeadID      int64       `gorm:"not null" json:"lead_id"`
	Phone       string      `gorm:"type:varchar(32);not null" json:"phone"`
	Name        string      `gorm:"type:varchar(255)" json:"name"`
	Status      EntryStatus `gorm:"type:varchar(16);not null;default:'pending';index:idx_instant_entries_status" json:"status"`
	SendOrder   int         `gorm:"not null;uniqueIndex:uk_instant_entries_order,priority:2" json:"send_order"`
	ErrorDetail *string     `gorm:"type:varchar(512)" json:"error_detail,omitempty"`
	SentAt      *time.Time  `json:"sent_at,omitempty"`
	CreatedAt   time.Time   `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt   *time.Time  `json:"updated_at,omitempty"`

	// Relations
	Batch *InstantBatch `gorm:"foreignKey:BatchID;references:ID" json:"batch,omitempty"`
}

// TableName returns the table name for the model
func (InstantBatchEntry) TableName() string {
	return "instant_batch_entries"
}

// InstantBatchFilter represents filter criteria for instant batches
type InstantBatchFilter struct {
	ID          *uint        `json:"id,omitempty"`
	UUID        *uuid.UUID   `json:"uuid,omitempty"`
	OwnerUserID *uint        `json:"owner_user_id,omitempty"`
	BranchID    *int64       `json:"branch_id,omitempty"`
	Status      *BatchStatus `json:"status,omitempty"`
}

// InstantBatchEntryFilter represents filter criteria for instant batch entries
type InstantBatchEntryFilter struct {
	ID      *uint        `json:"id,omitempty"`
	BatchID *uint        `json:"batch_id,omitempty"`
	Status  *EntryStatus `json:"status,omitempty"`
}
