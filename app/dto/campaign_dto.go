package dto

import (
	"time"
)

// AudienceFilterDTO mirrors the lead directory dimensions a filter-mode
// audience can select on.
type AudienceFilterDTO struct {
	Status        *string    `json:"status,omitempty" validate:"omitempty,max=64"`
	Source        *string    `json:"source,omitempty" validate:"omitempty,max=64"`
	Priority      *string    `json:"priority,omitempty" validate:"omitempty,max=64"`
	CityLike      *string    `json:"city_like,omitempty" validate:"omitempty,max=128"`
	CreatedAfter  *time.Time `json:"created_after,omitempty"`
	CreatedBefore *time.Time `json:"created_before,omitempty"`
	AssignedTo    *uint      `json:"assigned_to,omitempty"`
	BranchID      *int64     `json:"branch_id,omitempty"`
}

// AudienceDTO is the tagged union selecting recipients either by explicit
// lead ids or by a directory filter.
type AudienceDTO struct {
	Mode    string             `json:"mode" validate:"required,oneof=explicit filter"`
	LeadIDs []int64            `json:"lead_ids,omitempty" validate:"omitempty,min=1,dive,gt=0"`
	Filter  *AudienceFilterDTO `json:"filter,omitempty"`
}

// PacingDTO carries the per-campaign throttle knobs
type PacingDTO struct {
	MinDelaySeconds int  `json:"min_delay_seconds" validate:"gte=0,lte=3600"`
	MaxDelaySeconds int  `json:"max_delay_seconds" validate:"gte=0,lte=3600,gtefield=MinDelaySeconds"`
	HourlyLimit     int  `json:"hourly_limit" validate:"gte=0,lte=1000"`
	DailyLimit      int  `json:"daily_limit" validate:"gte=0,lte=10000"`
	WarmUp          bool `json:"warm_up"`
}

// CreateCampaignRequest represents the request to create a new campaign
type CreateCampaignRequest struct {
	UserID       uint        `json:"-"`
	Name         string      `json:"name" validate:"required,min=1,max=255"`
	BranchID     int64       `json:"branch_id" validate:"gte=0"`
	MessageType  string      `json:"message_type" validate:"required,oneof=text media"`
	Message      string      `json:"message" validate:"required_if=MessageType text,max=4096"`
	MediaPath    *string     `json:"media_path,omitempty" validate:"required_if=MessageType media,omitempty,max=1024"`
	MediaCaption *string     `json:"media_caption,omitempty" validate:"omitempty,max=1024"`
	Audience     AudienceDTO `json:"audience" validate:"required"`
	Pacing       *PacingDTO  `json:"pacing,omitempty"`
	ScheduledAt  *time.Time  `json:"scheduled_at,omitempty"`
}

// CreateCampaignResponse represents the response to create a new campaign
type CreateCampaignResponse struct {
	UUID      string `json:"uuid"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// UpdateCampaignRequest represents the request to update an editable campaign
type UpdateCampaignRequest struct {
	UUID         string       `json:"-"`
	UserID       uint         `json:"-"`
	Name         *string      `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	MessageType  *string      `json:"message_type,omitempty" validate:"omitempty,oneof=text media"`
	Message      *string      `json:"message,omitempty" validate:"omitempty,max=4096"`
	MediaPath    *string      `json:"media_path,omitempty" validate:"omitempty,max=1024"`
	MediaCaption *string      `json:"media_caption,omitempty" validate:"omitempty,max=1024"`
	Audience     *AudienceDTO `json:"audience,omitempty"`
	Pacing       *PacingDTO   `json:"pacing,omitempty"`
}

// CampaignActionRequest identifies a campaign for a lifecycle action
type CampaignActionRequest struct {
	UUID   string `json:"-"`
	UserID uint   `json:"-"`
}

// CampaignActionResponse reports the status after a lifecycle action
type CampaignActionResponse struct {
	UUID   string `json:"uuid"`
	Status string `json:"status"`
}

// StartCampaignRequest starts a campaign immediately or at a future time
type StartCampaignRequest struct {
	UUID        string     `json:"-"`
	UserID      uint       `json:"-"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
}

// PopulateAudienceResponse reports the roster built for a campaign
type PopulateAudienceResponse struct {
	UUID       string `json:"uuid"`
	TotalLeads int    `json:"total_leads"`
}

// DuplicateCampaignRequest clones an existing campaign as a fresh draft
type DuplicateCampaignRequest struct {
	UUID   string  `json:"-"`
	UserID uint    `json:"-"`
	Name   *string `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
}

// ListCampaignsRequest represents the campaign listing query
type ListCampaignsRequest struct {
	UserID   uint    `json:"-"`
	Status   *string `json:"status,omitempty" validate:"omitempty,oneof=draft scheduled running paused completed cancelled failed"`
	Search   *string `json:"search,omitempty" validate:"omitempty,max=255"`
	BranchID *int64  `json:"branch_id,omitempty"`
	Page     int     `json:"page" validate:"gte=1"`
	PageSize int     `json:"page_size" validate:"gte=1,lte=100"`
}

// CampaignSummary is one row of the campaign list
type CampaignSummary struct {
	UUID        string     `json:"uuid"`
	Name        string     `json:"name"`
	BranchID    int64      `json:"branch_id"`
	MessageType string     `json:"message_type"`
	Status      string     `json:"status"`
	TotalLeads  int        `json:"total_leads"`
	SentCount   int        `json:"sent_count"`
	FailedCount int        `json:"failed_count"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ListCampaignsResponse represents the paginated campaign list
type ListCampaignsResponse struct {
	Items      []CampaignSummary `json:"items"`
	Pagination Pagination        `json:"pagination"`
}

// CampaignDetailResponse is the full campaign view with roster breakdown
type CampaignDetailResponse struct {
	UUID         string           `json:"uuid"`
	Name         string           `json:"name"`
	BranchID     int64            `json:"branch_id"`
	MessageType  string           `json:"message_type"`
	Message      string           `json:"message"`
	MediaPath    *string          `json:"media_path,omitempty"`
	MediaCaption *string          `json:"media_caption,omitempty"`
	Audience     AudienceDTO      `json:"audience"`
	Pacing       PacingDTO        `json:"pacing"`
	Status       string           `json:"status"`
	ScheduledAt  *time.Time       `json:"scheduled_at,omitempty"`
	TotalLeads   int              `json:"total_leads"`
	SentCount    int              `json:"sent_count"`
	FailedCount  int              `json:"failed_count"`
	EntryCounts  map[string]int64 `json:"entry_counts"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    *time.Time       `json:"updated_at,omitempty"`
}

// ListRecipientsRequest pages through a campaign's roster
type ListRecipientsRequest struct {
	UUID     string  `json:"-"`
	UserID   uint    `json:"-"`
	Status   *string `json:"status,omitempty" validate:"omitempty,oneof=pending sending sent failed skipped"`
	Page     int     `json:"page" validate:"gte=1"`
	PageSize int     `json:"page_size" validate:"gte=1,lte=200"`
}

// RecipientDTO is one roster entry in responses
type RecipientDTO struct {
	LeadID      int64      `json:"lead_id"`
	Phone       string     `json:"phone"`
	Name        string     `json:"name,omitempty"`
	Status      string     `json:"status"`
	SendOrder   int        `json:"send_order"`
	ErrorDetail *string    `json:"error_detail,omitempty"`
	SentAt      *time.Time `json:"sent_at,omitempty"`
}

// ListRecipientsResponse represents the paginated roster view
type ListRecipientsResponse struct {
	Items      []RecipientDTO `json:"items"`
	Pagination Pagination     `json:"pagination"`
}

// DashboardResponse summarizes campaign counts and send totals for a user
type DashboardResponse struct {
	CampaignsByStatus map[string]int64 `json:"campaigns_by_status"`
	TotalSent         int64            `json:"total_sent"`
	TotalFailed       int64            `json:"total_failed"`
}
