package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/retailops/messaging-engine/models"
	"github.com/retailops/messaging-engine/utils"
	"gorm.io/gorm"
)

// CampaignRepositoryImpl implements the CampaignRepository interface
type CampaignRepositoryImpl struct {
	*BaseRepository[models.Campaign, models.CampaignFilter]
}

// NewCampaignRepository creates a new campaign repository
func NewCampaignRepository(db *gorm.DB) CampaignRepository {
	return &CampaignRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Campaign, models.CampaignFilter](db),
	}
}

func (r *CampaignRepositoryImpl) applyFilter(db *gorm.DB, f models.CampaignFilter) *gorm.DB {
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
	if f.NameLike != nil {
		db = db.Where("name ILIKE ?", "%"+*f.NameLike+"%")
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	if f.DueBefore != nil {
		db = db.Where("scheduled_at IS NOT NULL AND scheduled_at <= ?", *f.DueBefore)
	}
	return db
}

// ByFilter retrieves campaigns matching the filter criteria
func (r *CampaignRepositoryImpl) ByFilter(ctx context.Context, filter models.CampaignFilter, orderBy string, limit, offset int) ([]*models.Campaign, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Campaign{}), filter)

	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.Campaign
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find campaigns by filter: %w", err)
	}
	return rows, nil
}

// Count returns the number of campaigns matching the filter
func (r *CampaignRepositoryImpl) Count(ctx context.Context, filter models.CampaignFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	if err := r.applyFilter(db.Model(&models.Campaign{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count campaigns: %w", err)
	}
	return count, nil
}

// ByUUID retrieves a campaign by UUID
func (r *CampaignRepositoryImpl) ByUUID(ctx context.Context, raw string) (*models.Campaign, error) {
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid UUID format: %w", err)
	}

	rows, err := r.ByFilter(ctx, models.CampaignFilter{UUID: &parsed}, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Update persists the full campaign row
func (r *CampaignRepositoryImpl) Update(ctx context.Context, campaign *models.Campaign) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	campaign.UpdatedAt = utils.UTCNowPtr()
	err = db.Save(campaign).Error
	if err != nil {
		return fmt.Errorf("failed to update campaign: %w", err)
	}

	return nil
}

// UpdateStatus performs a guarded compare-and-set on the status column.
// Returns false when the row was not in the expected source state, which
// callers treat as a lost race rather than an error.
func (r *CampaignRepositoryImpl) UpdateStatus(ctx context.Context, id uint, from, to models.CampaignStatus) (bool, error) {
	db := r.getDB(ctx)

	res := db.Model(&models.Campaign{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{
			"status":     to,
			"updated_at": utils.UTCNow(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to update campaign status: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// IncrementCounters bumps the sent/failed counters atomically
func (r *CampaignRepositoryImpl) IncrementCounters(ctx context.Context, id uint, sent, failed int) error {
	db := r.getDB(ctx)

	updates := map[string]any{"updated_at": utils.UTCNow()}
	if sent != 0 {
		updates["sent_count"] = gorm.Expr("sent_count + ?", sent)
	}
	if failed != 0 {
		updates["failed_count"] = gorm.Expr("failed_count + ?", failed)
	}

	if err := db.Model(&models.Campaign{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to increment campaign counters: %w", err)
	}
	return nil
}

// ResetCounters zeroes the delivery counters and sets the roster size.
// Used when an audience is (re)populated.
func (r *CampaignRepositoryImpl) ResetCounters(ctx context.Context, id uint, totalLeads int) error {
	db := r.getDB(ctx)

	err := db.Model(&models.Campaign{}).Where("id = ?", id).Updates(map[string]any{
		"total_leads":     totalLeads,
		"sent_count":      0,
		"failed_count":    0,
		"delivered_count": 0,
		"read_count":      0,
		"updated_at":      utils.UTCNow(),
	}).Error
	if err != nil {
		return fmt.Errorf("failed to reset campaign counters: %w", err)
	}
	return nil
}

// ListDueScheduled returns scheduled campaigns whose fire time has passed
func (r *CampaignRepositoryImpl) ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]*models.Campaign, error) {
	status := models.CampaignStatusScheduled
	return r.ByFilter(ctx, models.CampaignFilter{Status: &status, DueBefore: &now}, "scheduled_at ASC", limit, 0)
}

// ListByStatus returns campaigns in the given status
func (r *CampaignRepositoryImpl) ListByStatus(ctx context.Context, status models.CampaignStatus, limit int) ([]*models.Campaign, error) {
	return r.ByFilter(ctx, models.CampaignFilter{Status: &status}, "id ASC", limit, 0)
}

// Delete removes a campaign row and its roster entries. Eligibility
// (terminal status only) is enforced by the business flow.
func (r *CampaignRepositoryImpl) Delete(ctx context.Context, id uint) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	err = db.Where("campaign_id = ?", id).Delete(&models.CampaignLead{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete campaign roster: %w", err)
	}

	err = db.Delete(&models.Campaign{}, id).Error
	if err != nil {
		return fmt.Errorf("failed to delete campaign: %w", err)
	}

	return nil
}

// CountByStatus tallies campaigns per status, optionally scoped to an owner
func (r *CampaignRepositoryImpl) CountByStatus(ctx context.Context, ownerUserID *uint) (map[models.CampaignStatus]int64, error) {
	db := r.getDB(ctx)

	query := db.Model(&models.Campaign{}).Select("status, COUNT(*) AS count").Group("status")
	if ownerUserID != nil {
		query = query.Where("owner_user_id = ?", *ownerUserID)
	}

	var rows []struct {
		Status models.CampaignStatus
		Count  int64
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count campaigns by status: %w", err)
	}

	out := make(map[models.CampaignStatus]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}
