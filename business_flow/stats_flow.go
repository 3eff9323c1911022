package businessflow

import (
	"context"
	"sort"

	"github.com/retailops/messaging-engine/app/dto"
	"github.com/retailops/messaging-engine/models"
	"github.com/retailops/messaging-engine/repository"
)

// StatsFlow serves the hourly and daily sending reports
type StatsFlow interface {
	Hourly(ctx context.Context, req *dto.StatsRequest) (*dto.HourlyStatsResponse, error)
	Daily(ctx context.Context, req *dto.StatsRequest) (*dto.DailyStatsResponse, error)
	Rebuild(ctx context.Context) error
}

// Rebuilder recomputes the counter buckets from the per-recipient send
// records. The engine's stats aggregator implements it.
type Rebuilder interface {
	Rebuild(ctx context.Context) error
}

// StatsFlowImpl implements the stats business flow
type StatsFlowImpl struct {
	statRepo  repository.SendingStatRepository
	rebuilder Rebuilder
}

// NewStatsFlow creates a new stats flow instance
func NewStatsFlow(statRepo repository.SendingStatRepository, rebuilder Rebuilder) StatsFlow {
	return &StatsFlowImpl{statRepo: statRepo, rebuilder: rebuilder}
}

func statFilter(req *dto.StatsRequest) (models.SendingStatFilter, error) {
	filter := models.SendingStatFilter{BranchID: req.BranchID}
	if req.DateFrom != "" {
		filter.DateFrom = &req.DateFrom
	}
	if req.DateTo != "" {
		filter.DateTo = &req.DateTo
	}
	if filter.DateFrom != nil && filter.DateTo != nil && *filter.DateFrom > *filter.DateTo {
		return models.SendingStatFilter{}, ErrInvalidDateRange
	}
	return filter, nil
}

// Hourly returns the raw (date, hour, branch) buckets in the range
func (f *StatsFlowImpl) Hourly(ctx context.Context, req *dto.StatsRequest) (*dto.HourlyStatsResponse, error) {
	filter, err := statFilter(req)
	if err != nil {
		return nil, NewBusinessError("STATS_RANGE_INVALID", "Requested date range is invalid", err)
	}

	rows, err := f.statRepo.ListRange(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("STATS_QUERY_FAILED", "Failed to load sending stats", err)
	}

	sent, failed, err := f.statRepo.Totals(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("STATS_QUERY_FAILED", "Failed to total sending stats", err)
	}

	resp := &dto.HourlyStatsResponse{
		Buckets:     make([]dto.HourlyBucket, 0, len(rows)),
		TotalSent:   sent,
		TotalFailed: failed,
	}
	for _, r := range rows {
		resp.Buckets = append(resp.Buckets, dto.HourlyBucket{
			Date:     r.Date,
			Hour:     r.Hour,
			BranchID: r.BranchID,
			Sent:     r.MessagesSent,
			Failed:   r.MessagesFailed,
		})
	}
	return resp, nil
}

// Daily folds the hourly buckets of each date together
func (f *StatsFlowImpl) Daily(ctx context.Context, req *dto.StatsRequest) (*dto.DailyStatsResponse, error) {
	filter, err := statFilter(req)
	if err != nil {
		return nil, NewBusinessError("STATS_RANGE_INVALID", "Requested date range is invalid", err)
	}

	rows, err := f.statRepo.ListRange(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("STATS_QUERY_FAILED", "Failed to load sending stats", err)
	}

	byDate := make(map[string]*dto.DailyBucket)
	for _, r := range rows {
		b, ok := byDate[r.Date]
		if !ok {
			b = &dto.DailyBucket{Date: r.Date}
			byDate[r.Date] = b
		}
		b.Sent += r.MessagesSent
		b.Failed += r.MessagesFailed
	}

	sent, failed, err := f.statRepo.Totals(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("STATS_QUERY_FAILED", "Failed to total sending stats", err)
	}

	resp := &dto.DailyStatsResponse{
		Buckets:     make([]dto.DailyBucket, 0, len(byDate)),
		TotalSent:   sent,
		TotalFailed: failed,
	}
	for _, b := range byDate {
		resp.Buckets = append(resp.Buckets, *b)
	}
	sort.Slice(resp.Buckets, func(i, j int) bool { return resp.Buckets[i].Date < resp.Buckets[j].Date })
	return resp, nil
}

// Rebuild recomputes all counter buckets from the send records. Exposed as
// an admin operation for use after manual data surgery.
func (f *StatsFlowImpl) Rebuild(ctx context.Context) error {
	if err := f.rebuilder.Rebuild(ctx); err != nil {
		return NewBusinessError("STATS_REBUILD_FAILED", "Failed to rebuild sending stats", err)
	}
	return nil
}
