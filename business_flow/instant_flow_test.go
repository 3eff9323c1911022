package businessflow

import (
	"context"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailops/messaging-engine/app/dto"
	"github.com/retailops/messaging-engine/app/engine"
	"github.com/retailops/messaging-engine/models"
)

type instantFixture struct {
	flow       InstantFlow
	batches    *fakeBatchRepo
	entries    *fakeBatchEntryRepo
	dispatcher *fakeDispatcher
}

func newInstantFixture(leads ...*models.Lead) *instantFixture {
	if len(leads) == 0 {
		leads = []*models.Lead{
			{ID: 1, Name: "Alice", Phone: strp("+111")},
			{ID: 2, Name: "Bob", Phone: strp("+222")},
		}
	}
	batches := newFakeBatchRepo()
	entries := &fakeBatchEntryRepo{}
	dispatcher := &fakeDispatcher{}
	flow := NewInstantFlow(
		batches,
		entries,
		engine.NewAudienceBuilder(newFakeLeadRepo(leads...), rand.NewSource(1)),
		dispatcher,
		nil,
	)
	return &instantFixture{flow: flow, batches: batches, entries: entries, dispatcher: dispatcher}
}

func TestInstantSendQueuesBatch(t *testing.T) {
	fx := newInstantFixture()

	resp, err := fx.flow.Send(context.Background(), &dto.SendInstantRequest{
		UserID:      7,
		BranchID:    1,
		LeadIDs:     []int64{1, 2},
		MessageType: "text",
		Message:     "Flash sale today",
	})
	require.NoError(t, err)
	assert.Equal(t, "running", resp.Status)
	assert.Equal(t, 2, resp.TotalLeads)

	stored, err := fx.batches.ByUUID(context.Background(), resp.UUID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, models.BatchStatusRunning, stored.Status)

	// the roster is queued and the run handed to the delivery loop
	assert.Len(t, fx.entries.entries, 2)
	for _, e := range fx.entries.entries {
		assert.Equal(t, stored.ID, e.BatchID)
		assert.Equal(t, models.EntryStatusPending, e.Status)
	}
	assert.Equal(t, []uint{stored.ID}, fx.dispatcher.batches)
}

func TestInstantSendSkipsUnknownAndPhonelessLeads(t *testing.T) {
	fx := newInstantFixture(
		&models.Lead{ID: 1, Name: "Alice", Phone: strp("+111")},
		&models.Lead{ID: 2, Name: "NoPhone"},
	)

	resp, err := fx.flow.Send(context.Background(), &dto.SendInstantRequest{
		UserID:      7,
		LeadIDs:     []int64{1, 2, 99},
		MessageType: "text",
		Message:     "hi",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.TotalLeads)
}

func TestInstantSendNoUsableLeads(t *testing.T) {
	fx := newInstantFixture(&models.Lead{ID: 1, Name: "NoPhone"})

	_, err := fx.flow.Send(context.Background(), &dto.SendInstantRequest{
		UserID:      7,
		LeadIDs:     []int64{1},
		MessageType: "text",
		Message:     "hi",
	})
	assert.ErrorIs(t, err, ErrNoUsableLeads)
	assert.Empty(t, fx.dispatcher.batches)
}

func TestInstantSendValidatesMessage(t *testing.T) {
	fx := newInstantFixture()

	_, err := fx.flow.Send(context.Background(), &dto.SendInstantRequest{
		UserID:      7,
		LeadIDs:     []int64{1},
		MessageType: "media",
		Message:     "caption only",
	})
	assert.ErrorIs(t, err, ErrMediaPathRequired)
}

func TestInstantGetBatch(t *testing.T) {
	fx := newInstantFixture()
	batch := &models.InstantBatch{
		UUID:        uuid.New(),
		OwnerUserID: 7,
		BranchID:    1,
		MessageType: models.MessageTypeText,
		Message:     "hi",
		Status:      models.BatchStatusCompleted,
		TotalLeads:  2,
		SentCount:   2,
	}
	_ = fx.batches.Save(context.Background(), batch)
	_ = fx.entries.SaveBatch(context.Background(), []*models.InstantBatchEntry{
		{BatchID: batch.ID, LeadID: 1, Phone: "+111", Status: models.EntryStatusSent, SendOrder: 1},
		{BatchID: batch.ID, LeadID: 2, Phone: "+222", Status: models.EntryStatusSent, SendOrder: 2},
	})

	resp, err := fx.flow.GetBatch(context.Background(), &dto.GetBatchRequest{UUID: batch.UUID.String(), UserID: 7})
	require.NoError(t, err)
	assert.Equal(t, "completed", resp.Status)
	assert.Equal(t, 2, resp.SentCount)
	assert.Equal(t, int64(2), resp.EntryCounts["sent"])
}

func TestInstantGetBatchOwnership(t *testing.T) {
	fx := newInstantFixture()
	batch := &models.InstantBatch{UUID: uuid.New(), OwnerUserID: 7, Status: models.BatchStatusRunning}
	_ = fx.batches.Save(context.Background(), batch)

	_, err := fx.flow.GetBatch(context.Background(), &dto.GetBatchRequest{UUID: batch.UUID.String(), UserID: 99})
	assert.ErrorIs(t, err, ErrBatchAccessDenied)

	_, err = fx.flow.GetBatch(context.Background(), &dto.GetBatchRequest{UUID: uuid.NewString(), UserID: 7})
	assert.ErrorIs(t, err, ErrBatchNotFound)
}
