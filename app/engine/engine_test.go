package engine

import (
	"context"
	"io"
	"log"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailops/messaging-engine/models"
	"github.com/retailops/messaging-engine/repository"
)

// The recovery fakes embed the repository interfaces so only the methods
// the sweep touches need bodies.

type recoveryCampaignRepo struct {
	repository.CampaignRepository
	byStatus map[models.CampaignStatus][]*models.Campaign
	listed   []models.CampaignStatus
}

func (r *recoveryCampaignRepo) ListByStatus(ctx context.Context, status models.CampaignStatus, limit int) ([]*models.Campaign, error) {
	r.listed = append(r.listed, status)
	return r.byStatus[status], nil
}

type recoveryEntryRepo struct {
	repository.CampaignLeadRepository
	resetFor []uint
}

func (r *recoveryEntryRepo) ResetSending(ctx context.Context, campaignID uint) (int64, error) {
	r.resetFor = append(r.resetFor, campaignID)
	return 1, nil
}

type recoveryBatchRepo struct {
	repository.InstantBatchRepository
	unfinished []*models.InstantBatch
}

func (r *recoveryBatchRepo) ListUnfinished(ctx context.Context, limit int) ([]*models.InstantBatch, error) {
	return r.unfinished, nil
}

type recoveryBatchEntryRepo struct {
	repository.InstantBatchEntryRepository
	resetFor []uint
}

func (r *recoveryBatchEntryRepo) ResetSending(ctx context.Context, batchID uint) (int64, error) {
	r.resetFor = append(r.resetFor, batchID)
	return 1, nil
}

func TestRecoverResetsRunningAndPausedCampaigns(t *testing.T) {
	running := &models.Campaign{ID: 11, UUID: uuid.New(), Status: models.CampaignStatusRunning}
	paused := &models.Campaign{ID: 22, UUID: uuid.New(), Status: models.CampaignStatusPaused}

	campaigns := &recoveryCampaignRepo{byStatus: map[models.CampaignStatus][]*models.Campaign{
		models.CampaignStatusRunning: {running},
		models.CampaignStatusPaused:  {paused},
	}}
	entries := &recoveryEntryRepo{}
	batches := &recoveryBatchRepo{unfinished: []*models.InstantBatch{{ID: 33, UUID: uuid.New()}}}
	batchEntries := &recoveryBatchEntryRepo{}

	e := &Engine{
		campaigns:     campaigns,
		campaignLeads: entries,
		batches:       batches,
		batchEntries:  batchEntries,
		cfg:           Config{BatchLimit: 10},
		logger:        log.New(io.Discard, "", 0),
		busy:          map[int64]bool{},
	}

	e.recover(context.Background())

	// a campaign paused mid-send before a crash is swept like a running one
	require.ElementsMatch(t, []models.CampaignStatus{models.CampaignStatusRunning, models.CampaignStatusPaused}, campaigns.listed)
	assert.ElementsMatch(t, []uint{11, 22}, entries.resetFor)
	assert.Equal(t, []uint{33}, batchEntries.resetFor)
}
