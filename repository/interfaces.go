// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/retailops/messaging-engine/models"
)

// contextKey is the key type for transaction propagation in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
}

// CampaignRepository defines operations for campaigns
type CampaignRepository interface {
	Repository[models.Campaign, models.CampaignFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Campaign, error)
	Update(ctx context.Context, campaign *models.Campaign) error
	// UpdateStatus performs a guarded compare-and-set on the status column and
	// reports whether the row was actually transitioned.
	UpdateStatus(ctx context.Context, id uint, from, to models.CampaignStatus) (bool, error)
	IncrementCounters(ctx context.Context, id uint, sent, failed int) error
	ResetCounters(ctx context.Context, id uint, totalLeads int) error
	ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]*models.Campaign, error)
	ListByStatus(ctx context.Context, status models.CampaignStatus, limit int) ([]*models.Campaign, error)
	Delete(ctx context.Context, id uint) error
	CountByStatus(ctx context.Context, ownerUserID *uint) (map[models.CampaignStatus]int64, error)
}

// CampaignLeadRepository defines operations for campaign roster entries.
// The send worker is the sole mutator of entry status.
type CampaignLeadRepository interface {
	Repository[models.CampaignLead, models.CampaignLeadFilter]
	NextPending(ctx context.Context, campaignID uint) (*models.CampaignLead, error)
	// MarkSending performs the pending->sending compare-and-set that upholds
	// the at-most-once dispatch guarantee.
	MarkSending(ctx context.Context, entryID uint) (bool, error)
	MarkSent(ctx context.Context, entryID uint, at time.Time) error
	MarkFailed(ctx context.Context, entryID uint, detail string, at time.Time) error
	SkipPending(ctx context.Context, campaignID uint) (int64, error)
	ResetSending(ctx context.Context, campaignID uint) (int64, error)
	CountByStatus(ctx context.Context, campaignID uint) ([]models.StatusCount, error)
	DeleteByCampaign(ctx context.Context, campaignID uint) error
}

// InstantBatchRepository defines operations for instant batches
type InstantBatchRepository interface {
	Repository[models.InstantBatch, models.InstantBatchFilter]
	ByUUID(ctx context.Context, uuid string) (*models.InstantBatch, error)
	UpdateStatus(ctx context.Context, id uint, to models.BatchStatus) error
	IncrementCounters(ctx context.Context, id uint, sent, failed int) error
	ListUnfinished(ctx context.Context, limit int) ([]*models.InstantBatch, error)
}

// InstantBatchEntryRepository defines operations for instant batch entries
type InstantBatchEntryRepository interface {
	Repository[models.InstantBatchEntry, models.InstantBatchEntryFilter]
	NextPending(ctx context.Context, batchID uint) (*models.InstantBatchEntry, error)
	MarkSending(ctx context.Context, entryID uint) (bool, error)
	MarkSent(ctx context.Context, entryID uint, at time.Time) error
	MarkFailed(ctx context.Context, entryID uint, detail string, at time.Time) error
	ResetSending(ctx context.Context, batchID uint) (int64, error)
	CountByStatus(ctx context.Context, batchID uint) ([]models.StatusCount, error)
}

// LeadRepository is the read-only query surface over the lead directory
type LeadRepository interface {
	ByIDs(ctx context.Context, ids []int64) ([]*models.Lead, error)
	ByFilter(ctx context.Context, filter models.LeadFilter, orderBy string, limit, offset int) ([]*models.Lead, error)
	Count(ctx context.Context, filter models.LeadFilter) (int64, error)
}

// SendingStatRepository defines operations for the hour/day counter buckets
type SendingStatRepository interface {
	Increment(ctx context.Context, date string, hour int, branchID int64, sent, failed int64) error
	ListRange(ctx context.Context, filter models.SendingStatFilter) ([]*models.SendingStat, error)
	Totals(ctx context.Context, filter models.SendingStatFilter) (sent int64, failed int64, err error)
	Truncate(ctx context.Context) error
}
