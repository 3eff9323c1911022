package engine

import (
	"context"
	"fmt"

	"github.com/retailops/messaging-engine/models"
	"github.com/retailops/messaging-engine/repository"
	"github.com/retailops/messaging-engine/utils"
	"gorm.io/gorm"
)

// StatsRecorder receives the outcome of every dispatched message
type StatsRecorder interface {
	Recorded(ctx context.Context, branchID int64, succeeded bool) error
}

// Aggregator maintains the (date, hour, branch) sending counters that back
// the hourly and daily usage reports.
type Aggregator struct {
	stats repository.SendingStatRepository
	db    *gorm.DB
}

// NewAggregator creates a stats aggregator
func NewAggregator(stats repository.SendingStatRepository, db *gorm.DB) *Aggregator {
	return &Aggregator{stats: stats, db: db}
}

// Recorded bumps the counter bucket for the current hour
func (a *Aggregator) Recorded(ctx context.Context, branchID int64, succeeded bool) error {
	date, hour := models.BucketFor(utils.UTCNow())
	var sent, failed int64
	if succeeded {
		sent = 1
	} else {
		failed = 1
	}
	return a.stats.Increment(ctx, date, hour, branchID, sent, failed)
}

// Rebuild drops all buckets and recomputes them from the per-recipient
// send records. Used after manual data surgery; normal operation never
// calls this.
func (a *Aggregator) Rebuild(ctx context.Context) error {
	return repository.WithTransaction(ctx, a.db, func(txCtx context.Context) error {
		if err := a.stats.Truncate(txCtx); err != nil {
			return fmt.Errorf("failed to truncate sending stats: %w", err)
		}

		tx := a.db.WithContext(txCtx)
		if v := txCtx.Value(repository.TxContextKey); v != nil {
			if txDB, ok := v.(*gorm.DB); ok {
				tx = txDB.WithContext(txCtx)
			}
		}

		type row struct {
			Date     string
			Hour     int
			BranchID int64
			Sent     int64
			Failed   int64
		}
		scan := func(query string, dest *[]row) error {
			return tx.Raw(query).Scan(dest).Error
		}

		queries := []string{
			`SELECT to_char(e.sent_at, 'YYYY-MM-DD') AS date,
			        EXTRACT(HOUR FROM e.sent_at)::int AS hour,
			        c.branch_id AS branch_id,
			        COUNT(*) FILTER (WHERE e.status = 'sent') AS sent,
			        COUNT(*) FILTER (WHERE e.status = 'failed') AS failed
			 FROM campaign_leads e
			 JOIN campaigns c ON c.id = e.campaign_id
			 WHERE e.sent_at IS NOT NULL
			 GROUP BY 1, 2, 3`,
			`SELECT to_char(e.sent_at, 'YYYY-MM-DD') AS date,
			        EXTRACT(HOUR FROM e.sent_at)::int AS hour,
			        b.branch_id AS branch_id,
			        COUNT(*) FILTER (WHERE e.status = 'sent') AS sent,
			        COUNT(*) FILTER (WHERE e.status = 'failed') AS failed
			 FROM instant_batch_entries e
			 JOIN instant_batches b ON b.id = e.batch_id
			 WHERE e.sent_at IS NOT NULL
			 GROUP BY 1, 2, 3`,
		}

		for _, q := range queries {
			var rows []row
			if err := scan(q, &rows); err != nil {
				return fmt.Errorf("failed to aggregate send records: %w", err)
			}
			for _, r := range rows {
				if err := a.stats.Increment(txCtx, r.Date, r.Hour, r.BranchID, r.Sent, r.Failed); err != nil {
					return fmt.Errorf("failed to rebuild stats bucket: %w", err)
				}
			}
		}
		return nil
	})
}
