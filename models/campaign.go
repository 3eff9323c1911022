package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// CampaignStatus represents the lifecycle state of a messaging campaign
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusScheduled CampaignStatus = "scheduled"
	CampaignStatusRunning   CampaignStatus = "running"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusCancelled CampaignStatus = "cancelled"
	CampaignStatusFailed    CampaignStatus = "failed"
)

// String returns the string representation of the status
func (s CampaignStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignStatusDraft, CampaignStatusScheduled, CampaignStatusRunning,
		CampaignStatusPaused, CampaignStatusCompleted, CampaignStatusCancelled,
		CampaignStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status is a terminal state
func (s CampaignStatus) Terminal() bool {
	return s == CampaignStatusCompleted || s == CampaignStatusCancelled || s == CampaignStatusFailed
}

// Scan implements the sql.Scanner interface for CampaignStatus
func (s *CampaignStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = CampaignStatus(v)
	case []byte:
		*s = CampaignStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into CampaignStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for CampaignStatus
func (s CampaignStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid CampaignStatus: %s", s)
	}
	return string(s), nil
}

// MessageType represents the kind of message a campaign delivers
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeMedia MessageType = "media"
)

// Valid checks if the message type is valid
func (t MessageType) Valid() bool {
	return t == MessageTypeText || t == MessageTypeMedia
}

// Scan implements the sql.Scanner interface for MessageType
func (t *MessageType) Scan(value any) error {
	if value == nil {
		*t = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*t = MessageType(v)
	case []byte:
		*t = MessageType(string(v))
	default:
		return fmt.Errorf("cannot scan %T into MessageType", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for MessageType
func (t MessageType) Value() (driver.Value, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid MessageType: %s", t)
	}
	return string(t), nil
}

// AudienceMode selects how a campaign audience is resolved
type AudienceMode string

const (
	AudienceModeExplicit AudienceMode = "explicit"
	AudienceModeFilter   AudienceMode = "filter"
)

// AudienceFilterSpec describes the optional lead directory dimensions,
// combined with logical AND. Every field is independently optional.
type AudienceFilterSpec struct {
	Status        *string    `json:"status,omitempty"`
	Source        *string    `json:"source,omitempty"`
	Priority      *string    `json:"priority,omitempty"`
	CityLike      *string    `json:"city_like,omitempty"`
	CreatedAfter  *time.Time `json:"created_after,omitempty"`
	CreatedBefore *time.Time `json:"created_before,omitempty"`
	AssignedTo    *uint      `json:"assigned_to,omitempty"`
	BranchID      *int64     `json:"branch_id,omitempty"`
}

// AudienceSpec is the tagged union selecting either an explicit lead id list
// or a lead directory filter. Persisted as jsonb.
type AudienceSpec struct {
	Mode    AudienceMode        `json:"mode"`
	LeadIDs []int64             `json:"lead_ids,omitempty"`
	Filter  *AudienceFilterSpec `json:"filter,omitempty"`
}

// Validate checks the structural consistency of the spec
func (s AudienceSpec) Validate() error {
	switch s.Mode {
	case AudienceModeExplicit:
		if len(s.LeadIDs) == 0 {
			return fmt.Errorf("explicit audience requires at least one lead id")
		}
	case AudienceModeFilter:
		if s.Filter == nil {
			return fmt.Errorf("filter audience requires a filter spec")
		}
	default:
		return fmt.Errorf("unknown audience mode: %q", s.Mode)
	}
	return nil
}

// Value implements the driver.Valuer interface for AudienceSpec
func (s AudienceSpec) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements the sql.Scanner interface for AudienceSpec
func (s *AudienceSpec) Scan(value any) error {
	if value == nil {
		*s = AudienceSpec{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into AudienceSpec", value)
	}

	return json.Unmarshal(bytes, s)
}

// PacingConfig holds the per-campaign delay and quota tunables
type PacingConfig struct {
	MinDelaySeconds int  `gorm:"not null;default:20" json:"min_delay_seconds"`
	MaxDelaySeconds int  `gorm:"not null;default:45" json:"max_delay_seconds"`
	HourlyLimit     int  `gorm:"not null;default:40" json:"hourly_limit"`
	DailyLimit      int  `gorm:"not null;default:300" json:"daily_limit"`
	WarmUp          bool `gorm:"not null;default:false" json:"warm_up"`
}

// DefaultPacing returns the conservative out-of-the-box throttle
func DefaultPacing() PacingConfig {
	return PacingConfig{
		MinDelaySeconds: 20,
		MaxDelaySeconds: 45,
		HourlyLimit:     40,
		DailyLimit:      300,
	}
}

// Campaign represents a persisted, schedulable bulk-messaging job.
// BranchID 0 is reserved for the general/shared session, not a fleet location.
type Campaign struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	UUID         uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uk_campaigns_uuid" json:"uuid"`
	OwnerUserID  uint           `gorm:"not null;index:idx_campaigns_owner" json:"owner_user_id"`
	Name         string         `gorm:"type:varchar(255);not null" json:"name"`
	BranchID     int64          `gorm:"not null;default:0;index:idx_campaigns_branch" json:"branch_id"`
	MessageType  MessageType    `gorm:"type:varchar(16);not null;default:'text'" json:"message_type"`
	Message      string         `gorm:"type:text;not null" json:"message"`
	MediaPath    *string        `gorm:"type:text" json:"media_path,omitempty"`
	MediaCaption *string        `gorm:"type:text" json:"media_caption,omitempty"`
	Audience     AudienceSpec   `gorm:"type:jsonb;not null" json:"audience"`
	Pacing       PacingConfig   `gorm:"embedded" json:"pacing"`
	Status       CampaignStatus `gorm:"type:varchar(16);not null;default:'draft';index:idx_campaigns_status" json:"status"`
	ScheduledAt  *time.Time     `gorm:"index:idx_campaigns_scheduled_at" json:"scheduled_at,omitempty"`

	// Roster snapshot captured at population time, kept for audit and stats rebuild
	LeadIDs pq.Int64Array `gorm:"type:bigint[]" json:"lead_ids,omitempty"`

	TotalLeads     int `gorm:"not null;default:0" json:"total_leads"`
	SentCount      int `gorm:"not null;default:0" json:"sent_count"`
	FailedCount    int `gorm:"not null;default:0" json:"failed_count"`
	DeliveredCount int `gorm:"not null;default:0" json:"delivered_count"`
	ReadCount      int `gorm:"not null;default:0" json:"read_count"`

	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_campaigns_created_at" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (Campaign) TableName() string {
	return "campaigns"
}

// BeforeCreate is called before creating a new record
func (c *Campaign) BeforeCreate() error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	if c.Status == "" {
		c.Status = CampaignStatusDraft
	}
	if c.MessageType == "" {
		c.MessageType = MessageTypeText
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	return nil
}

// IsEditable checks if the campaign definition can be modified
func (c *Campaign) IsEditable() bool {
	return c.Status == CampaignStatusDraft || c.Status == CampaignStatusPaused
}

// IsDeletable checks if the campaign can be deleted
func (c *Campaign) IsDeletable() bool {
	return c.Status.Terminal()
}

// CanTransitionTo checks if the campaign can transition to the given status
func (c *Campaign) CanTransitionTo(newStatus CampaignStatus) bool {
	// Any non-terminal state may escalate to failed on an unrecoverable error
	if newStatus == CampaignStatusFailed {
		return !c.Status.Terminal()
	}

	switch c.Status {
	case CampaignStatusDraft:
		return newStatus == CampaignStatusRunning || newStatus == CampaignStatusScheduled
	case CampaignStatusScheduled:
		return newStatus == CampaignStatusRunning
	case CampaignStatusRunning:
		return newStatus == CampaignStatusPaused ||
			newStatus == CampaignStatusCancelled ||
			newStatus == CampaignStatusCompleted
	case CampaignStatusPaused:
		return newStatus == CampaignStatusRunning || newStatus == CampaignStatusCancelled
	default:
		return false
	}
}

// CampaignFilter represents filter criteria for campaigns
type CampaignFilter struct {
	ID            *uint           `json:"id,omitempty"`
	UUID          *uuid.UUID      `json:"uuid,omitempty"`
	OwnerUserID   *uint           `json:"owner_user_id,omitempty"`
	BranchID      *int64          `json:"branch_id,omitempty"`
	Status        *CampaignStatus `json:"status,omitempty"`
	NameLike      *string         `json:"name_like,omitempty"`
	CreatedAfter  *time.Time      `json:"created_after,omitempty"`
	CreatedBefore *time.Time      `json:"created_before,omitempty"`
	DueBefore     *time.Time      `json:"due_before,omitempty"`
}
