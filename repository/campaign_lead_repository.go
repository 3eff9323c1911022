package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/retailops/messaging-engine/models"
	"github.com/retailops/messaging-engine/utils"
	"gorm.io/gorm"
)

// CampaignLeadRepositoryImpl implements the CampaignLeadRepository interface
type CampaignLeadRepositoryImpl struct {
	*BaseRepository[models.CampaignLead, models.CampaignLeadFilter]
}

// NewCampaignLeadRepository creates a new campaign roster repository
func NewCampaignLeadRepository(db *gorm.DB) CampaignLeadRepository {
	return &CampaignLeadRepositoryImpl{
		BaseRepository: NewBaseRepository[models.CampaignLead, models.CampaignLeadFilter](db),
	}
}

func (r *CampaignLeadRepositoryImpl) applyFilter(db *gorm.DB, f models.CampaignLeadFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.CampaignID != nil {
		db = db.Where("campaign_id = ?", *f.CampaignID)
	}
	if f.LeadID != nil {
		db = db.Where("lead_id = ?", *f.LeadID)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	return db
}

// ByFilter retrieves roster entries matching the filter criteria
func (r *CampaignLeadRepositoryImpl) ByFilter(ctx context.Context, filter models.CampaignLeadFilter, orderBy string, limit, offset int) ([]*models.CampaignLead, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.CampaignLead{}), filter)

	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.CampaignLead
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find campaign leads by filter: %w", err)
	}
	return rows, nil
}

// Count returns the number of roster entries matching the filter
func (r *CampaignLeadRepositoryImpl) Count(ctx context.Context, filter models.CampaignLeadFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	if err := r.applyFilter(db.Model(&models.CampaignLead{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count campaign leads: %w", err)
	}
	return count, nil
}

// NextPending returns the pending entry with the lowest send_order, or nil
// when the roster is drained
func (r *CampaignLeadRepositoryImpl) NextPending(ctx context.Context, campaignID uint) (*models.CampaignLead, error) {
	db := r.getDB(ctx)

	var entry models.CampaignLead
	err := db.Where("campaign_id = ? AND status = ?", campaignID, models.EntryStatusPending).
		Order("send_order ASC").
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find next pending entry: %w", err)
	}
	return &entry, nil
}

// MarkSending transitions pending->sending with a compare-and-set. The
// status write happens before the network call; a false return means the
// entry was already claimed and must not be dispatched again.
func (r *CampaignLeadRepositoryImpl) MarkSending(ctx context.Context, entryID uint) (bool, error) {
	db := r.getDB(ctx)

	res := db.Model(&models.CampaignLead{}).
		Where("id = ? AND status = ?", entryID, models.EntryStatusPending).
		Updates(map[string]any{
			"status":     models.EntryStatusSending,
			"updated_at": utils.UTCNow(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to mark entry sending: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// MarkSent records a successful dispatch
func (r *CampaignLeadRepositoryImpl) MarkSent(ctx context.Context, entryID uint, at time.Time) error {
	db := r.getDB(ctx)

	err := db.Model(&models.CampaignLead{}).
		Where("id = ? AND status = ?", entryID, models.EntryStatusSending).
		Updates(map[string]any{
			"status":     models.EntryStatusSent,
			"sent_at":    at,
			"updated_at": utils.UTCNow(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark entry sent: %w", err)
	}
	return nil
}

// MarkFailed records a failed dispatch with the provider error text
func (r *CampaignLeadRepositoryImpl) MarkFailed(ctx context.Context, entryID uint, detail string, at time.Time) error {
	db := r.getDB(ctx)

	err := db.Model(&models.CampaignLead{}).
		Where("id = ? AND status = ?", entryID, models.EntryStatusSending).
		Updates(map[string]any{
			"status":       models.EntryStatusFailed,
			"error_detail": detail,
			"sent_at":      at,
			"updated_at":   utils.UTCNow(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark entry failed: %w", err)
	}
	return nil
}

// SkipPending marks every remaining pending entry skipped in one batch
// operation. Used on cancel; already sent/failed rows are untouched.
func (r *CampaignLeadRepositoryImpl) SkipPending(ctx context.Context, campaignID uint) (int64, error) {
	db := r.getDB(ctx)

	res := db.Model(&models.CampaignLead{}).
		Where("campaign_id = ? AND status = ?", campaignID, models.EntryStatusPending).
		Updates(map[string]any{
			"status":     models.EntryStatusSkipped,
			"updated_at": utils.UTCNow(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to skip pending entries: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// ResetSending returns entries stranded in sending back to pending. The
// transport call for such an entry may or may not have completed; retrying
// is the documented recovery behavior after a crash.
func (r *CampaignLeadRepositoryImpl) ResetSending(ctx context.Context, campaignID uint) (int64, error) {
	db := r.getDB(ctx)

	res := db.Model(&models.CampaignLead{}).
		Where("campaign_id = ? AND status = ?", campaignID, models.EntryStatusSending).
		Updates(map[string]any{
			"status":     models.EntryStatusPending,
			"updated_at": utils.UTCNow(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to reset sending entries: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// CountByStatus tallies roster entries per status
func (r *CampaignLeadRepositoryImpl) CountByStatus(ctx context.Context, campaignID uint) ([]models.StatusCount, error) {
	db := r.getDB(ctx)

	var rows []models.StatusCount
	err := db.Model(&models.CampaignLead{}).
		Select("status, COUNT(*) AS count").
		Where("campaign_id = ?", campaignID).
		Group("status").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count entries by status: %w", err)
	}
	return rows, nil
}

// DeleteByCampaign removes the whole roster of a campaign. Used by the
// destructive re-population path.
func (r *CampaignLeadRepositoryImpl) DeleteByCampaign(ctx context.Context, campaignID uint) error {
	db := r.getDB(ctx)

	if err := db.Where("campaign_id = ?", campaignID).Delete(&models.CampaignLead{}).Error; err != nil {
		return fmt.Errorf("failed to delete campaign roster: %w", err)
	}
	return nil
}
