package businessflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailops/messaging-engine/app/dto"
)

func seededStatRepo() *fakeStatRepo {
	repo := &fakeStatRepo{}
	ctx := context.Background()
	_ = repo.Increment(ctx, "2026-08-01", 9, 1, 10, 1)
	_ = repo.Increment(ctx, "2026-08-01", 10, 1, 5, 0)
	_ = repo.Increment(ctx, "2026-08-01", 10, 2, 7, 2)
	_ = repo.Increment(ctx, "2026-08-02", 14, 1, 20, 3)
	return repo
}

func TestStatsHourly(t *testing.T) {
	flow := NewStatsFlow(seededStatRepo(), &fakeRebuilder{})

	resp, err := flow.Hourly(context.Background(), &dto.StatsRequest{})
	require.NoError(t, err)
	assert.Len(t, resp.Buckets, 4)
	assert.Equal(t, int64(42), resp.TotalSent)
	assert.Equal(t, int64(6), resp.TotalFailed)

	first := resp.Buckets[0]
	assert.Equal(t, "2026-08-01", first.Date)
	assert.Equal(t, 9, first.Hour)
	assert.Equal(t, int64(10), first.Sent)
}

func TestStatsHourlyFilteredByBranch(t *testing.T) {
	flow := NewStatsFlow(seededStatRepo(), &fakeRebuilder{})

	resp, err := flow.Hourly(context.Background(), &dto.StatsRequest{BranchID: int64p(2)})
	require.NoError(t, err)
	require.Len(t, resp.Buckets, 1)
	assert.Equal(t, int64(7), resp.TotalSent)
	assert.Equal(t, int64(2), resp.TotalFailed)
}

func TestStatsHourlyDateRange(t *testing.T) {
	flow := NewStatsFlow(seededStatRepo(), &fakeRebuilder{})

	resp, err := flow.Hourly(context.Background(), &dto.StatsRequest{DateFrom: "2026-08-02", DateTo: "2026-08-02"})
	require.NoError(t, err)
	require.Len(t, resp.Buckets, 1)
	assert.Equal(t, int64(20), resp.TotalSent)
}

func TestStatsDailyFoldsHours(t *testing.T) {
	flow := NewStatsFlow(seededStatRepo(), &fakeRebuilder{})

	resp, err := flow.Daily(context.Background(), &dto.StatsRequest{})
	require.NoError(t, err)
	require.Len(t, resp.Buckets, 2)

	assert.Equal(t, "2026-08-01", resp.Buckets[0].Date)
	assert.Equal(t, int64(22), resp.Buckets[0].Sent)
	assert.Equal(t, int64(3), resp.Buckets[0].Failed)
	assert.Equal(t, "2026-08-02", resp.Buckets[1].Date)
	assert.Equal(t, int64(20), resp.Buckets[1].Sent)
	assert.Equal(t, int64(42), resp.TotalSent)
}

func TestStatsRebuildDelegatesToAggregator(t *testing.T) {
	rb := &fakeRebuilder{}
	flow := NewStatsFlow(seededStatRepo(), rb)

	require.NoError(t, flow.Rebuild(context.Background()))
	assert.Equal(t, 1, rb.calls)
}

func TestStatsRebuildWrapsFailure(t *testing.T) {
	rb := &fakeRebuilder{err: errors.New("truncate blocked")}
	flow := NewStatsFlow(seededStatRepo(), rb)

	err := flow.Rebuild(context.Background())
	require.Error(t, err)
	var be *BusinessError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "STATS_REBUILD_FAILED", be.Code)
}

func TestStatsRejectsInvertedRange(t *testing.T) {
	flow := NewStatsFlow(&fakeStatRepo{}, &fakeRebuilder{})

	_, err := flow.Hourly(context.Background(), &dto.StatsRequest{DateFrom: "2026-08-05", DateTo: "2026-08-01"})
	assert.ErrorIs(t, err, ErrInvalidDateRange)

	_, err = flow.Daily(context.Background(), &dto.StatsRequest{DateFrom: "2026-08-05", DateTo: "2026-08-01"})
	assert.ErrorIs(t, err, ErrInvalidDateRange)
}
