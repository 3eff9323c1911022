package engine

import (
	"context"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailops/messaging-engine/models"
)

// fakeLeadDirectory serves leads from a map, in ascending id order, the way
// the real repository does.
type fakeLeadDirectory struct {
	leads map[int64]*models.Lead

	lastFilter models.LeadFilter
}

func (f *fakeLeadDirectory) ByIDs(ctx context.Context, ids []int64) ([]*models.Lead, error) {
	out := make([]*models.Lead, 0, len(ids))
	for _, id := range ids {
		if l, ok := f.leads[id]; ok {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeLeadDirectory) ByFilter(ctx context.Context, filter models.LeadFilter, orderBy string, limit, offset int) ([]*models.Lead, error) {
	f.lastFilter = filter
	out := make([]*models.Lead, 0, len(f.leads))
	for _, l := range f.leads {
		if filter.BranchID != nil && l.BranchID != *filter.BranchID {
			continue
		}
		if filter.WithPhoneOnly && !l.HasUsablePhone() {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeLeadDirectory) Count(ctx context.Context, filter models.LeadFilter) (int64, error) {
	leads, _ := f.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(leads)), nil
}

func strp(s string) *string { return &s }

func int64p(v int64) *int64 { return &v }

func directoryWith(leads ...*models.Lead) *fakeLeadDirectory {
	m := make(map[int64]*models.Lead, len(leads))
	for _, l := range leads {
		m[l.ID] = l
	}
	return &fakeLeadDirectory{leads: m}
}

func TestAudienceBuilderExplicitDedupeAndMissing(t *testing.T) {
	dir := directoryWith(
		&models.Lead{ID: 1, Name: "A", Phone: strp("+111")},
		&models.Lead{ID: 2, Name: "B", Phone: strp("+222")},
	)
	b := NewAudienceBuilder(dir, rand.NewSource(7))

	// duplicate and unknown ids are tolerated
	roster, err := b.Build(context.Background(), models.AudienceSpec{
		Mode:    models.AudienceModeExplicit,
		LeadIDs: []int64{2, 1, 2, 99, 1},
	}, 0)
	require.NoError(t, err)
	assert.Len(t, roster, 2)

	ids := []int64{roster[0].LeadID, roster[1].LeadID}
	assert.ElementsMatch(t, []int64{1, 2}, ids)
}

func TestAudienceBuilderSkipsLeadsWithoutPhone(t *testing.T) {
	dir := directoryWith(
		&models.Lead{ID: 1, Name: "A", Phone: strp("+111")},
		&models.Lead{ID: 2, Name: "B"},
		&models.Lead{ID: 3, Name: "C", Phone: strp("")},
	)
	b := NewAudienceBuilder(dir, rand.NewSource(7))

	roster, err := b.Build(context.Background(), models.AudienceSpec{
		Mode:    models.AudienceModeExplicit,
		LeadIDs: []int64{1, 2, 3},
	}, 0)
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.Equal(t, int64(1), roster[0].LeadID)
}

func TestAudienceBuilderEmptyRoster(t *testing.T) {
	dir := directoryWith(&models.Lead{ID: 1, Name: "A"})
	b := NewAudienceBuilder(dir, rand.NewSource(7))

	_, err := b.Build(context.Background(), models.AudienceSpec{
		Mode:    models.AudienceModeExplicit,
		LeadIDs: []int64{1},
	}, 0)
	assert.ErrorIs(t, err, ErrEmptyAudience)
}

func TestAudienceBuilderInvalidSpec(t *testing.T) {
	b := NewAudienceBuilder(directoryWith(), rand.NewSource(7))

	_, err := b.Build(context.Background(), models.AudienceSpec{Mode: "bogus"}, 0)
	assert.Error(t, err)
}

func TestAudienceBuilderSendOrderIsPermutation(t *testing.T) {
	leads := make([]*models.Lead, 0, 50)
	for i := int64(1); i <= 50; i++ {
		leads = append(leads, &models.Lead{ID: i, Name: "L", Phone: strp("+1")})
	}
	b := NewAudienceBuilder(directoryWith(leads...), rand.NewSource(99))

	ids := make([]int64, 0, 50)
	for i := int64(1); i <= 50; i++ {
		ids = append(ids, i)
	}
	roster, err := b.Build(context.Background(), models.AudienceSpec{
		Mode:    models.AudienceModeExplicit,
		LeadIDs: ids,
	}, 0)
	require.NoError(t, err)
	require.Len(t, roster, 50)

	// send order is the contiguous sequence 1..N
	orders := make([]int, 0, 50)
	seen := make(map[int64]bool)
	shuffled := false
	for i, r := range roster {
		orders = append(orders, r.SendOrder)
		assert.False(t, seen[r.LeadID], "lead %d appears twice", r.LeadID)
		seen[r.LeadID] = true
		if r.LeadID != int64(i+1) {
			shuffled = true
		}
	}
	sort.Ints(orders)
	for i, o := range orders {
		assert.Equal(t, i+1, o)
	}
	assert.True(t, shuffled, "expected the roster to differ from directory order")
}

func TestAudienceBuilderFilterScopedToBranch(t *testing.T) {
	dir := directoryWith(
		&models.Lead{ID: 1, Name: "A", Phone: strp("+111"), BranchID: 1},
		&models.Lead{ID: 2, Name: "B", Phone: strp("+222"), BranchID: 2},
	)
	b := NewAudienceBuilder(dir, rand.NewSource(7))

	roster, err := b.Build(context.Background(), models.AudienceSpec{
		Mode:   models.AudienceModeFilter,
		Filter: &models.AudienceFilterSpec{},
	}, 2)
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.Equal(t, int64(2), roster[0].LeadID)
	assert.True(t, dir.lastFilter.WithPhoneOnly)
}

func TestAudienceBuilderFilterExplicitBranchWins(t *testing.T) {
	dir := directoryWith(
		&models.Lead{ID: 1, Name: "A", Phone: strp("+111"), BranchID: 1},
		&models.Lead{ID: 2, Name: "B", Phone: strp("+222"), BranchID: 2},
	)
	b := NewAudienceBuilder(dir, rand.NewSource(7))

	roster, err := b.Build(context.Background(), models.AudienceSpec{
		Mode:   models.AudienceModeFilter,
		Filter: &models.AudienceFilterSpec{BranchID: int64p(1)},
	}, 2)
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.Equal(t, int64(1), roster[0].LeadID)
}
