package businessflow

import (
	"context"
	"os"
	"sort"
	"testing"
	"time"

	"github.com/retailops/messaging-engine/models"
	"gorm.io/gorm"
)

// The flows wrap multi-write operations in a database transaction. The fakes
// below have no database, so the wrapper just runs the function.
func TestMain(m *testing.M) {
	runInTx = func(ctx context.Context, _ *gorm.DB, fn func(context.Context) error) error {
		return fn(ctx)
	}
	os.Exit(m.Run())
}

func strp(s string) *string { return &s }

func int64p(v int64) *int64 { return &v }

// fakeCampaignRepo keeps campaigns in a map and mimics the guarded status
// update of the real repository.
type fakeCampaignRepo struct {
	nextID    uint
	campaigns map[uint]*models.Campaign
}

func newFakeCampaignRepo() *fakeCampaignRepo {
	return &fakeCampaignRepo{campaigns: make(map[uint]*models.Campaign)}
}

func (r *fakeCampaignRepo) ByID(ctx context.Context, id uint) (*models.Campaign, error) {
	c, ok := r.campaigns[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *fakeCampaignRepo) ByUUID(ctx context.Context, uuidStr string) (*models.Campaign, error) {
	for _, c := range r.campaigns {
		if c.UUID.String() == uuidStr {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeCampaignRepo) ByFilter(ctx context.Context, filter models.CampaignFilter, orderBy string, limit, offset int) ([]*models.Campaign, error) {
	out := make([]*models.Campaign, 0, len(r.campaigns))
	for _, c := range r.campaigns {
		if filter.OwnerUserID != nil && c.OwnerUserID != *filter.OwnerUserID {
			continue
		}
		if filter.Status != nil && c.Status != *filter.Status {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if offset > 0 && offset < len(out) {
		out = out[offset:]
	} else if offset >= len(out) {
		out = nil
	}
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeCampaignRepo) Save(ctx context.Context, c *models.Campaign) error {
	r.nextID++
	c.ID = r.nextID
	cp := *c
	r.campaigns[c.ID] = &cp
	return nil
}

func (r *fakeCampaignRepo) SaveBatch(ctx context.Context, cs []*models.Campaign) error {
	for _, c := range cs {
		if err := r.Save(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeCampaignRepo) Count(ctx context.Context, filter models.CampaignFilter) (int64, error) {
	rows, _ := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(rows)), nil
}

func (r *fakeCampaignRepo) Update(ctx context.Context, c *models.Campaign) error {
	cp := *c
	r.campaigns[c.ID] = &cp
	return nil
}

func (r *fakeCampaignRepo) UpdateStatus(ctx context.Context, id uint, from, to models.CampaignStatus) (bool, error) {
	c, ok := r.campaigns[id]
	if !ok || c.Status != from {
		return false, nil
	}
	c.Status = to
	return true, nil
}

func (r *fakeCampaignRepo) IncrementCounters(ctx context.Context, id uint, sent, failed int) error {
	if c, ok := r.campaigns[id]; ok {
		c.SentCount += sent
		c.FailedCount += failed
	}
	return nil
}

func (r *fakeCampaignRepo) ResetCounters(ctx context.Context, id uint, totalLeads int) error {
	if c, ok := r.campaigns[id]; ok {
		c.TotalLeads = totalLeads
		c.SentCount = 0
		c.FailedCount = 0
	}
	return nil
}

func (r *fakeCampaignRepo) ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]*models.Campaign, error) {
	var out []*models.Campaign
	for _, c := range r.campaigns {
		if c.Status == models.CampaignStatusScheduled && c.ScheduledAt != nil && !c.ScheduledAt.After(now) {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeCampaignRepo) ListByStatus(ctx context.Context, status models.CampaignStatus, limit int) ([]*models.Campaign, error) {
	var out []*models.Campaign
	for _, c := range r.campaigns {
		if c.Status == status {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeCampaignRepo) Delete(ctx context.Context, id uint) error {
	delete(r.campaigns, id)
	return nil
}

func (r *fakeCampaignRepo) CountByStatus(ctx context.Context, ownerUserID *uint) (map[models.CampaignStatus]int64, error) {
	out := make(map[models.CampaignStatus]int64)
	for _, c := range r.campaigns {
		if ownerUserID != nil && c.OwnerUserID != *ownerUserID {
			continue
		}
		out[c.Status]++
	}
	return out, nil
}

// fakeEntryRepo keeps campaign roster rows in a slice
type fakeEntryRepo struct {
	nextID  uint
	entries []*models.CampaignLead
}

func (r *fakeEntryRepo) ByID(ctx context.Context, id uint) (*models.CampaignLead, error) {
	for _, e := range r.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, nil
}

func (r *fakeEntryRepo) ByFilter(ctx context.Context, filter models.CampaignLeadFilter, orderBy string, limit, offset int) ([]*models.CampaignLead, error) {
	out := make([]*models.CampaignLead, 0, len(r.entries))
	for _, e := range r.entries {
		if filter.CampaignID != nil && e.CampaignID != *filter.CampaignID {
			continue
		}
		if filter.Status != nil && e.Status != *filter.Status {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SendOrder < out[j].SendOrder })
	if offset > 0 && offset < len(out) {
		out = out[offset:]
	} else if offset >= len(out) {
		out = nil
	}
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeEntryRepo) Save(ctx context.Context, e *models.CampaignLead) error {
	r.nextID++
	e.ID = r.nextID
	r.entries = append(r.entries, e)
	return nil
}

func (r *fakeEntryRepo) SaveBatch(ctx context.Context, es []*models.CampaignLead) error {
	for _, e := range es {
		if err := r.Save(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeEntryRepo) Count(ctx context.Context, filter models.CampaignLeadFilter) (int64, error) {
	rows, _ := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(rows)), nil
}

func (r *fakeEntryRepo) NextPending(ctx context.Context, campaignID uint) (*models.CampaignLead, error) {
	rows, _ := r.ByFilter(ctx, models.CampaignLeadFilter{CampaignID: &campaignID}, "send_order ASC", 0, 0)
	for _, e := range rows {
		if e.Status == models.EntryStatusPending {
			return e, nil
		}
	}
	return nil, nil
}

func (r *fakeEntryRepo) MarkSending(ctx context.Context, entryID uint) (bool, error) {
	for _, e := range r.entries {
		if e.ID == entryID && e.Status == models.EntryStatusPending {
			e.Status = models.EntryStatusSending
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeEntryRepo) MarkSent(ctx context.Context, entryID uint, at time.Time) error {
	for _, e := range r.entries {
		if e.ID == entryID {
			e.Status = models.EntryStatusSent
			e.SentAt = &at
		}
	}
	return nil
}

func (r *fakeEntryRepo) MarkFailed(ctx context.Context, entryID uint, detail string, at time.Time) error {
	for _, e := range r.entries {
		if e.ID == entryID {
			e.Status = models.EntryStatusFailed
			e.ErrorDetail = &detail
		}
	}
	return nil
}

func (r *fakeEntryRepo) SkipPending(ctx context.Context, campaignID uint) (int64, error) {
	var n int64
	for _, e := range r.entries {
		if e.CampaignID == campaignID && e.Status == models.EntryStatusPending {
			e.Status = models.EntryStatusSkipped
			n++
		}
	}
	return n, nil
}

func (r *fakeEntryRepo) ResetSending(ctx context.Context, campaignID uint) (int64, error) {
	var n int64
	for _, e := range r.entries {
		if e.CampaignID == campaignID && e.Status == models.EntryStatusSending {
			e.Status = models.EntryStatusPending
			n++
		}
	}
	return n, nil
}

func (r *fakeEntryRepo) CountByStatus(ctx context.Context, campaignID uint) ([]models.StatusCount, error) {
	counts := make(map[models.EntryStatus]int64)
	for _, e := range r.entries {
		if e.CampaignID == campaignID {
			counts[e.Status]++
		}
	}
	out := make([]models.StatusCount, 0, len(counts))
	for status, n := range counts {
		out = append(out, models.StatusCount{Status: status, Count: n})
	}
	return out, nil
}

func (r *fakeEntryRepo) DeleteByCampaign(ctx context.Context, campaignID uint) error {
	kept := r.entries[:0]
	for _, e := range r.entries {
		if e.CampaignID != campaignID {
			kept = append(kept, e)
		}
	}
	r.entries = kept
	return nil
}

// fakeBatchRepo keeps instant batches in a map
type fakeBatchRepo struct {
	nextID  uint
	batches map[uint]*models.InstantBatch
}

func newFakeBatchRepo() *fakeBatchRepo {
	return &fakeBatchRepo{batches: make(map[uint]*models.InstantBatch)}
}

func (r *fakeBatchRepo) ByID(ctx context.Context, id uint) (*models.InstantBatch, error) {
	b, ok := r.batches[id]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (r *fakeBatchRepo) ByUUID(ctx context.Context, uuidStr string) (*models.InstantBatch, error) {
	for _, b := range r.batches {
		if b.UUID.String() == uuidStr {
			cp := *b
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeBatchRepo) ByFilter(ctx context.Context, filter models.InstantBatchFilter, orderBy string, limit, offset int) ([]*models.InstantBatch, error) {
	out := make([]*models.InstantBatch, 0, len(r.batches))
	for _, b := range r.batches {
		cp := *b
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeBatchRepo) Save(ctx context.Context, b *models.InstantBatch) error {
	r.nextID++
	b.ID = r.nextID
	cp := *b
	r.batches[b.ID] = &cp
	return nil
}

func (r *fakeBatchRepo) SaveBatch(ctx context.Context, bs []*models.InstantBatch) error {
	for _, b := range bs {
		if err := r.Save(ctx, b); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeBatchRepo) Count(ctx context.Context, filter models.InstantBatchFilter) (int64, error) {
	return int64(len(r.batches)), nil
}

func (r *fakeBatchRepo) UpdateStatus(ctx context.Context, id uint, to models.BatchStatus) error {
	if b, ok := r.batches[id]; ok {
		b.Status = to
	}
	return nil
}

func (r *fakeBatchRepo) IncrementCounters(ctx context.Context, id uint, sent, failed int) error {
	if b, ok := r.batches[id]; ok {
		b.SentCount += sent
		b.FailedCount += failed
	}
	return nil
}

func (r *fakeBatchRepo) ListUnfinished(ctx context.Context, limit int) ([]*models.InstantBatch, error) {
	var out []*models.InstantBatch
	for _, b := range r.batches {
		if b.Status == models.BatchStatusRunning {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, nil
}

// fakeBatchEntryRepo keeps instant batch rows in a slice
type fakeBatchEntryRepo struct {
	nextID  uint
	entries []*models.InstantBatchEntry
}

func (r *fakeBatchEntryRepo) ByID(ctx context.Context, id uint) (*models.InstantBatchEntry, error) {
	for _, e := range r.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, nil
}

func (r *fakeBatchEntryRepo) ByFilter(ctx context.Context, filter models.InstantBatchEntryFilter, orderBy string, limit, offset int) ([]*models.InstantBatchEntry, error) {
	return r.entries, nil
}

func (r *fakeBatchEntryRepo) Save(ctx context.Context, e *models.InstantBatchEntry) error {
	r.nextID++
	e.ID = r.nextID
	r.entries = append(r.entries, e)
	return nil
}

func (r *fakeBatchEntryRepo) SaveBatch(ctx context.Context, es []*models.InstantBatchEntry) error {
	for _, e := range es {
		if err := r.Save(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeBatchEntryRepo) Count(ctx context.Context, filter models.InstantBatchEntryFilter) (int64, error) {
	return int64(len(r.entries)), nil
}

func (r *fakeBatchEntryRepo) NextPending(ctx context.Context, batchID uint) (*models.InstantBatchEntry, error) {
	for _, e := range r.entries {
		if e.BatchID == batchID && e.Status == models.EntryStatusPending {
			return e, nil
		}
	}
	return nil, nil
}

func (r *fakeBatchEntryRepo) MarkSending(ctx context.Context, entryID uint) (bool, error) {
	for _, e := range r.entries {
		if e.ID == entryID && e.Status == models.EntryStatusPending {
			e.Status = models.EntryStatusSending
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeBatchEntryRepo) MarkSent(ctx context.Context, entryID uint, at time.Time) error {
	for _, e := range r.entries {
		if e.ID == entryID {
			e.Status = models.EntryStatusSent
			e.SentAt = &at
		}
	}
	return nil
}

func (r *fakeBatchEntryRepo) MarkFailed(ctx context.Context, entryID uint, detail string, at time.Time) error {
	for _, e := range r.entries {
		if e.ID == entryID {
			e.Status = models.EntryStatusFailed
			e.ErrorDetail = &detail
		}
	}
	return nil
}

func (r *fakeBatchEntryRepo) ResetSending(ctx context.Context, batchID uint) (int64, error) {
	var n int64
	for _, e := range r.entries {
		if e.BatchID == batchID && e.Status == models.EntryStatusSending {
			e.Status = models.EntryStatusPending
			n++
		}
	}
	return n, nil
}

func (r *fakeBatchEntryRepo) CountByStatus(ctx context.Context, batchID uint) ([]models.StatusCount, error) {
	counts := make(map[models.EntryStatus]int64)
	for _, e := range r.entries {
		if e.BatchID == batchID {
			counts[e.Status]++
		}
	}
	out := make([]models.StatusCount, 0, len(counts))
	for status, n := range counts {
		out = append(out, models.StatusCount{Status: status, Count: n})
	}
	return out, nil
}

// fakeLeadRepo serves the lead directory for audience building
type fakeLeadRepo struct {
	leads map[int64]*models.Lead
}

func newFakeLeadRepo(leads ...*models.Lead) *fakeLeadRepo {
	m := make(map[int64]*models.Lead, len(leads))
	for _, l := range leads {
		m[l.ID] = l
	}
	return &fakeLeadRepo{leads: m}
}

func (r *fakeLeadRepo) ByIDs(ctx context.Context, ids []int64) ([]*models.Lead, error) {
	out := make([]*models.Lead, 0, len(ids))
	for _, id := range ids {
		if l, ok := r.leads[id]; ok {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeLeadRepo) ByFilter(ctx context.Context, filter models.LeadFilter, orderBy string, limit, offset int) ([]*models.Lead, error) {
	out := make([]*models.Lead, 0, len(r.leads))
	for _, l := range r.leads {
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

func (r *fakeLeadRepo) Count(ctx context.Context, filter models.LeadFilter) (int64, error) {
	rows, _ := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(rows)), nil
}

// fakeStatRepo keeps counter buckets in a slice
type fakeStatRepo struct {
	rows []*models.SendingStat
}

func (r *fakeStatRepo) Increment(ctx context.Context, date string, hour int, branchID int64, sent, failed int64) error {
	for _, row := range r.rows {
		if row.Date == date && row.Hour == hour && row.BranchID == branchID {
			row.MessagesSent += sent
			row.MessagesFailed += failed
			return nil
		}
	}
	r.rows = append(r.rows, &models.SendingStat{
		Date: date, Hour: hour, BranchID: branchID,
		MessagesSent: sent, MessagesFailed: failed,
	})
	return nil
}

func (r *fakeStatRepo) ListRange(ctx context.Context, filter models.SendingStatFilter) ([]*models.SendingStat, error) {
	out := make([]*models.SendingStat, 0, len(r.rows))
	for _, row := range r.rows {
		if filter.DateFrom != nil && row.Date < *filter.DateFrom {
			continue
		}
		if filter.DateTo != nil && row.Date > *filter.DateTo {
			continue
		}
		if filter.BranchID != nil && row.BranchID != *filter.BranchID {
			continue
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Hour < out[j].Hour
	})
	return out, nil
}

func (r *fakeStatRepo) Totals(ctx context.Context, filter models.SendingStatFilter) (int64, int64, error) {
	rows, _ := r.ListRange(ctx, filter)
	var sent, failed int64
	for _, row := range rows {
		sent += row.MessagesSent
		failed += row.MessagesFailed
	}
	return sent, failed, nil
}

func (r *fakeStatRepo) Truncate(ctx context.Context) error {
	r.rows = nil
	return nil
}

// fakeRebuilder stands in for the engine's stats aggregator
type fakeRebuilder struct {
	calls int
	err   error
}

func (r *fakeRebuilder) Rebuild(ctx context.Context) error {
	r.calls++
	return r.err
}

// fakeDispatcher records which runs were handed to the engine
type fakeDispatcher struct {
	campaigns []uint
	batches   []uint
}

func (d *fakeDispatcher) KickCampaign(c *models.Campaign) {
	d.campaigns = append(d.campaigns, c.ID)
}

func (d *fakeDispatcher) KickBatch(b *models.InstantBatch) {
	d.batches = append(d.batches, b.ID)
}
