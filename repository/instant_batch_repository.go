package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/retailops/messaging-engine/models"
	"github.com/retailops/messaging-engine/utils"
	"gorm.io/gorm"
)

// InstantBatchRepositoryImpl implements the InstantBatchRepository interface
type InstantBatchRepositoryImpl struct {
	*BaseRepository[models.InstantBatch, models.InstantBatchFilter]
}

// NewInstantBatchRepository creates a new instant batch repository
func NewInstantBatchRepository(db *gorm.DB) InstantBatchRepository {
	return &InstantBatchRepositoryImpl{
		BaseRepository: NewBaseRepository[models.InstantBatch, models.InstantBatchFilter](db),
	}
}

func (r *InstantBatchRepositoryImpl) applyFilter(db *gorm.DB, f models.InstantBatchFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.UUID != nil {
		db = db.Where("uuid = ?", *f.UUID)
	}
	if f.OwnerUserID != nil {
		db = db.Where("owner_user_id = ?", *f.OwnerUserID)
	}
	if f.BranchID != nil {
		db = db.Where("branch_id = ?", *f.BranchID)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	return db
}

// ByFilter retrieves instant batches matching the filter criteria
func (r *InstantBatchRepositoryImpl) ByFilter(ctx context.Context, filter models.InstantBatchFilter, orderBy string, limit, offset int) ([]*models.InstantBatch, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.InstantBatch{}), filter)

	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.InstantBatch
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find instant batches by filter: %w", err)
	}
	return rows, nil
}

// Count returns the number of instant batches matching the filter
func (r *InstantBatchRepositoryImpl) Count(ctx context.Context, filter models.InstantBatchFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	if err := r.applyFilter(db.Model(&models.InstantBatch{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count instant batches: %w", err)
	}
	return count, nil
}

// ByUUID retrieves an instant batch by its generated batch id
func (r *InstantBatchRepositoryImpl) ByUUID(ctx context.Context, raw string) (*models.InstantBatch, error) {
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid UUID format: %w", err)
	}

	rows, err := r.ByFilter(ctx, models.InstantBatchFilter{UUID: &parsed}, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// UpdateStatus sets the coarse progress marker of the batch
func (r *InstantBatchRepositoryImpl) UpdateStatus(ctx context.Context, id uint, to models.BatchStatus) error {
	db := r.getDB(ctx)

	err := db.Model(&models.InstantBatch{}).Where("id = ?", id).Updates(map[string]any{
		"status":     to,
		"updated_at": utils.UTCNow(),
	}).Error
	if err != nil {
		return fmt.Errorf("failed to update instant batch status: %w", err)
	}
	return nil
}

// IncrementCounters bumps the sent/failed counters atomically
func (r *InstantBatchRepositoryImpl) IncrementCounters(ctx context.Context, id uint, sent, failed int) error {
	db := r.getDB(ctx)

	updates := map[string]any{"updated_at": utils.UTCNow()}
	if sent != 0 {
		updates["sent_count"] = gorm.Expr("sent_count + ?", sent)
	}
	if failed != 0 {
		updates["failed_count"] = gorm.Expr("failed_count + ?", failed)
	}

	if err := db.Model(&models.InstantBatch{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to increment instant batch counters: %w", err)
	}
	return nil
}

// ListUnfinished returns batches still marked running, used by the restart
// recovery pass to resume partially processed batches
func (r *InstantBatchRepositoryImpl) ListUnfinished(ctx context.Context, limit int) ([]*models.InstantBatch, error) {
	status := models.BatchStatusRunning
	return r.ByFilter(ctx, models.InstantBatchFilter{Status: &status}, "id ASC", limit, 0)
}

// InstantBatchEntryRepositoryImpl implements the InstantBatchEntryRepository interface
type InstantBatchEntryRepositoryImpl struct {
	*BaseRepository[models.InstantBatchEntry, models.InstantBatchEntryFilter]
}

// NewInstantBatchEntryRepository creates a new instant batch entry repository
func NewInstantBatchEntryRepository(db *gorm.DB) InstantBatchEntryRepository {
	return &InstantBatchEntryRepositoryImpl{
		BaseRepository: NewBaseRepository[models.InstantBatchEntry, models.InstantBatchEntryFilter](db),
	}
}

func (r *InstantBatchEntryRepositoryImpl) applyFilter(db *gorm.DB, f models.InstantBatchEntryFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.BatchID != nil {
		db = db.Where("batch_id = ?", *f.BatchID)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	return db
}

// ByFilter retrieves batch entries matching the filter criteria
func (r *InstantBatchEntryRepositoryImpl) ByFilter(ctx context.Context, filter models.InstantBatchEntryFilter, orderBy string, limit, offset int) ([]*models.InstantBatchEntry, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.InstantBatchEntry{}), filter)

	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.InstantBatchEntry
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find instant batch entries by filter: %w", err)
	}
	return rows, nil
}

// Count returns the number of batch entries matching the filter
func (r *InstantBatchEntryRepositoryImpl) Count(ctx context.Context, filter models.InstantBatchEntryFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	if err := r.applyFilter(db.Model(&models.InstantBatchEntry{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count instant batch entries: %w", err)
	}
	return count, nil
}

// NextPending returns the pending entry with the lowest send_order
func (r *InstantBatchEntryRepositoryImpl) NextPending(ctx context.Context, batchID uint) (*models.InstantBatchEntry, error) {
	db := r.getDB(ctx)

	var entry models.InstantBatchEntry
	err := db.Where("batch_id = ? AND status = ?", batchID, models.EntryStatusPending).
		Order("send_order ASC").
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find next pending batch entry: %w", err)
	}
	return &entry, nil
}

// MarkSending transitions pending->sending with a compare-and-set
func (r *InstantBatchEntryRepositoryImpl) MarkSending(ctx context.Context, entryID uint) (bool, error) {
	db := r.getDB(ctx)

	res := db.Model(&models.InstantBatchEntry{}).
		Where("id = ? AND status = ?", entryID, models.EntryStatusPending).
		Updates(map[string]any{
			"status":     models.EntryStatusSending,
			"updated_at": utils.UTCNow(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to mark batch entry sending: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// MarkSent records a successful dispatch
func (r *InstantBatchEntryRepositoryImpl) MarkSent(ctx context.Context, entryID uint, at time.Time) error {
	db := r.getDB(ctx)

	err := db.Model(&models.InstantBatchEntry{}).
		Where("id = ? AND status = ?", entryID, models.EntryStatusSending).
		Updates(map[string]any{
			"status":     models.EntryStatusSent,
			"sent_at":    at,
			"updated_at": utils.UTCNow(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark batch entry sent: %w", err)
	}
	return nil
}

// MarkFailed records a failed dispatch with the provider error text
func (r *InstantBatchEntryRepositoryImpl) MarkFailed(ctx context.Context, entryID uint, detail string, at time.Time) error {
	db := r.getDB(ctx)

	err := db.Model(&models.InstantBatchEntry{}).
		Where("id = ? AND status = ?", entryID, models.EntryStatusSending).
		Updates(map[string]any{
			"status":       models.EntryStatusFailed,
			"error_detail": detail,
			"sent_at":      at,
			"updated_at":   utils.UTCNow(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark batch entry failed: %w", err)
	}
	return nil
}

// ResetSending returns entries stranded in sending back to pending
func (r *InstantBatchEntryRepositoryImpl) ResetSending(ctx context.Context, batchID uint) (int64, error) {
	db := r.getDB(ctx)

	res := db.Model(&models.InstantBatchEntry{}).
		Where("batch_id = ? AND status = ?", batchID, models.EntryStatusSending).
		Updates(map[string]any{
			"status":     models.EntryStatusPending,
			"updated_at": utils.UTCNow(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to reset sending batch entries: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// CountByStatus tallies batch entries per status
func (r *InstantBatchEntryRepositoryImpl) CountByStatus(ctx context.Context, batchID uint) ([]models.StatusCount, error) {
	db := r.getDB(ctx)

	var rows []models.StatusCount
	err := db.Model(&models.InstantBatchEntry{}).
		Select("status, COUNT(*) AS count").
		Where("batch_id = ?", batchID).
		Group("status").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count batch entries by status: %w", err)
	}
	return rows, nil
}
