package models

import (
	"time"
)

// SendingStat is an append-only counter bucket keyed by (date, hour, branch).
// Buckets are only ever incremented by the stats aggregator and can be
// rebuilt from the per-recipient audit rows.
type SendingStat struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	Date           string     `gorm:"type:varchar(10);not null;uniqueIndex:uk_sending_stats_bucket,priority:1" json:"date"`
	Hour           int        `gorm:"not null;uniqueIndex:uk_sending_stats_bucket,priority:2" json:"hour"`
	BranchID       int64      `gorm:"not null;default:0;uniqueIndex:uk_sending_stats_bucket,priority:3" json:"branch_id"`
	MessagesSent   int64      `gorm:"not null;default:0" json:"messages_sent"`
	MessagesFailed int64      `gorm:"not null;default:0" json:"messages_failed"`
	CreatedAt      time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (SendingStat) TableName() string {
	return "sending_stats"
}

// StatDateLayout is the bucket date format
const StatDateLayout = "2006-01-02"

// BucketFor returns the (date, hour) bucket key for an event time
func BucketFor(t time.Time) (string, int) {
	utc := t.UTC()
	return utc.Format(StatDateLayout), utc.Hour()
}

// SendingStatFilter represents filter criteria for stats buckets
type SendingStatFilter struct {
	DateFrom *string `json:"date_from,omitempty"`
	DateTo   *string `json:"date_to,omitempty"`
	BranchID *int64  `json:"branch_id,omitempty"`
}
