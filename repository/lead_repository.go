package repository

import (
	"context"
	"fmt"

	"github.com/retailops/messaging-engine/models"
	"gorm.io/gorm"
)

// LeadRepositoryImpl is the read-only query surface over the lead directory.
// The CRM side of the application owns lead rows; the engine never writes them.
type LeadRepositoryImpl struct {
	db *gorm.DB
}

// NewLeadRepository creates a new lead directory repository
func NewLeadRepository(db *gorm.DB) LeadRepository {
	return &LeadRepositoryImpl{db: db}
}

func (r *LeadRepositoryImpl) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(TxContextKey).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.db
}

func (r *LeadRepositoryImpl) applyFilter(db *gorm.DB, f models.LeadFilter) *gorm.DB {
	if len(f.IDs) > 0 {
		db = db.Where("id IN ?", f.IDs)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	if f.Source != nil {
		db = db.Where("source = ?", *f.Source)
	}
	if f.Priority != nil {
		db = db.Where("priority = ?", *f.Priority)
	}
	if f.CityLike != nil {
		db = db.Where("city ILIKE ?", "%"+*f.CityLike+"%")
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	if f.AssignedTo != nil {
		db = db.Where("assigned_to = ?", *f.AssignedTo)
	}
	if f.BranchID != nil {
		db = db.Where("branch_id = ?", *f.BranchID)
	}
	if f.WithPhoneOnly {
		db = db.Where("phone IS NOT NULL AND phone <> ''")
	}
	return db
}

// ByIDs fetches the given leads. Missing ids are ignored silently; callers
// filter for usable phone numbers themselves.
func (r *LeadRepositoryImpl) ByIDs(ctx context.Context, ids []int64) ([]*models.Lead, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.ByFilter(ctx, models.LeadFilter{IDs: ids}, "id ASC", 0, 0)
}

// ByFilter retrieves leads matching the filter criteria
func (r *LeadRepositoryImpl) ByFilter(ctx context.Context, filter models.LeadFilter, orderBy string, limit, offset int) ([]*models.Lead, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Lead{}), filter)

	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.Lead
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find leads by filter: %w", err)
	}
	return rows, nil
}

// Count returns the number of leads matching the filter
func (r *LeadRepositoryImpl) Count(ctx context.Context, filter models.LeadFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	if err := r.applyFilter(db.Model(&models.Lead{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count leads: %w", err)
	}
	return count, nil
}
