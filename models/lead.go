package models

import (
	"time"
)

// Lead is the read-only view of a contact in the lead directory. The CRM
// side owns these rows; the engine only queries them when building rosters.
type Lead struct {
	ID         int64      `gorm:"primaryKey" json:"id"`
	Name       string     `gorm:"type:varchar(255);not null" json:"name"`
	Company    *string    `gorm:"type:varchar(255)" json:"company,omitempty"`
	City       *string    `gorm:"type:varchar(128)" json:"city,omitempty"`
	Phone      *string    `gorm:"type:varchar(32);index:idx_leads_phone" json:"phone,omitempty"`
	Status     *string    `gorm:"type:varchar(64);index:idx_leads_status" json:"status,omitempty"`
	Source     *string    `gorm:"type:varchar(64)" json:"source,omitempty"`
	Priority   *string    `gorm:"type:varchar(32)" json:"priority,omitempty"`
	AssignedTo *uint      `gorm:"index:idx_leads_assigned_to" json:"assigned_to,omitempty"`
	BranchID   int64      `gorm:"not null;default:0;index:idx_leads_branch" json:"branch_id"`
	CreatedAt  time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (Lead) TableName() string {
	return "leads"
}

// HasUsablePhone reports whether the lead can receive a message
func (l *Lead) HasUsablePhone() bool {
	return l.Phone != nil && *l.Phone != ""
}

// LeadFilter represents filter criteria for the lead directory
type LeadFilter struct {
	IDs           []int64    `json:"ids,omitempty"`
	Status        *string    `json:"status,omitempty"`
	Source        *string    `json:"source,omitempty"`
	Priority      *string    `json:"priority,omitempty"`
	CityLike      *string    `json:"city_like,omitempty"`
	CreatedAfter  *time.Time `json:"created_after,omitempty"`
	CreatedBefore *time.Time `json:"created_before,omitempty"`
	AssignedTo    *uint      `json:"assigned_to,omitempty"`
	BranchID      *int64     `json:"branch_id,omitempty"`
	WithPhoneOnly bool       `json:"with_phone_only,omitempty"`
}
