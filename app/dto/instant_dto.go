package dto

import (
	"time"
)

// SendInstantRequest queues an immediate batch to explicit leads
type SendInstantRequest struct {
	UserID       uint    `json:"-"`
	BranchID     int64   `json:"branch_id" validate:"gte=0"`
	LeadIDs      []int64 `json:"lead_ids" validate:"required,min=1,max=500,dive,gt=0"`
	MessageType  string  `json:"message_type" validate:"required,oneof=text media"`
	Message      string  `json:"message" validate:"required_if=MessageType text,max=4096"`
	MediaPath    *string `json:"media_path,omitempty" validate:"required_if=MessageType media,omitempty,max=1024"`
	MediaCaption *string `json:"media_caption,omitempty" validate:"omitempty,max=1024"`
}

// SendInstantResponse acknowledges the queued batch; delivery is async
type SendInstantResponse struct {
	UUID       string `json:"uuid"`
	Status     string `json:"status"`
	TotalLeads int    `json:"total_leads"`
}

// GetBatchRequest identifies an instant batch
type GetBatchRequest struct {
	UUID   string `json:"-"`
	UserID uint   `json:"-"`
}

// BatchDetailResponse is the instant batch progress view
type BatchDetailResponse struct {
	UUID        string           `json:"uuid"`
	BranchID    int64            `json:"branch_id"`
	MessageType string           `json:"message_type"`
	Message     string           `json:"message"`
	Status      string           `json:"status"`
	TotalLeads  int              `json:"total_leads"`
	SentCount   int              `json:"sent_count"`
	FailedCount int              `json:"failed_count"`
	EntryCounts map[string]int64 `json:"entry_counts"`
	CreatedAt   time.Time        `json:"created_at"`
}
