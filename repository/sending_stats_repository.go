package repository

import (
	"context"
	"fmt"

	"github.com/retailops/messaging-engine/models"
	"github.com/retailops/messaging-engine/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SendingStatRepositoryImpl implements the SendingStatRepository interface
type SendingStatRepositoryImpl struct {
	db *gorm.DB
}

// NewSendingStatRepository creates a new sending stats repository
func NewSendingStatRepository(db *gorm.DB) SendingStatRepository {
	return &SendingStatRepositoryImpl{db: db}
}

func (r *SendingStatRepositoryImpl) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(TxContextKey).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.db
}

// Increment upserts the (date, hour, branch) bucket, adding the deltas to
// its counters
func (r *SendingStatRepositoryImpl) Increment(ctx context.Context, date string, hour int, branchID int64, sent, failed int64) error {
	db := r.getDB(ctx)

	row := models.SendingStat{
		Date:           date,
		Hour:           hour,
		BranchID:       branchID,
		MessagesSent:   sent,
		MessagesFailed: failed,
	}

	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "date"}, {Name: "hour"}, {Name: "branch_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"messages_sent":   gorm.Expr("sending_stats.messages_sent + ?", sent),
			"messages_failed": gorm.Expr("sending_stats.messages_failed + ?", failed),
			"updated_at":      utils.UTCNow(),
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to increment sending stats bucket: %w", err)
	}
	return nil
}

func (r *SendingStatRepositoryImpl) applyFilter(db *gorm.DB, f models.SendingStatFilter) *gorm.DB {
	if f.DateFrom != nil {
		db = db.Where("date >= ?", *f.DateFrom)
	}
	if f.DateTo != nil {
		db = db.Where("date <= ?", *f.DateTo)
	}
	if f.BranchID != nil {
		db = db.Where("branch_id = ?", *f.BranchID)
	}
	return db
}

// ListRange returns the buckets in the filtered range ordered by time
func (r *SendingStatRepositoryImpl) ListRange(ctx context.Context, filter models.SendingStatFilter) ([]*models.SendingStat, error) {
	db := r.getDB(ctx)

	var rows []*models.SendingStat
	err := r.applyFilter(db.Model(&models.SendingStat{}), filter).
		Order("date ASC, hour ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sending stats: %w", err)
	}
	return rows, nil
}

// Totals sums the counters over the filtered range
func (r *SendingStatRepositoryImpl) Totals(ctx context.Context, filter models.SendingStatFilter) (int64, int64, error) {
	db := r.getDB(ctx)

	var agg struct {
		Sent   int64
		Failed int64
	}
	err := r.applyFilter(db.Model(&models.SendingStat{}), filter).
		Select("COALESCE(SUM(messages_sent), 0) AS sent, COALESCE(SUM(messages_failed), 0) AS failed").
		Scan(&agg).Error
	if err != nil {
		return 0, 0, fmt.Errorf("failed to total sending stats: %w", err)
	}
	return agg.Sent, agg.Failed, nil
}

// Truncate wipes all buckets. Only used before a rebuild from the
// per-recipient audit rows.
func (r *SendingStatRepositoryImpl) Truncate(ctx context.Context) error {
	db := r.getDB(ctx)

	if err := db.Where("1 = 1").Delete(&models.SendingStat{}).Error; err != nil {
		return fmt.Errorf("failed to truncate sending stats: %w", err)
	}
	return nil
}
