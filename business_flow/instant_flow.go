package businessflow

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/retailops/messaging-engine/app/dto"
	"github.com/retailops/messaging-engine/app/engine"
	"github.com/retailops/messaging-engine/models"
	"github.com/retailops/messaging-engine/repository"
	"github.com/retailops/messaging-engine/utils"
	"gorm.io/gorm"
)

// InstantFlow handles the fire-and-forget instant batch logic
type InstantFlow interface {
	Send(ctx context.Context, req *dto.SendInstantRequest) (*dto.SendInstantResponse, error)
	GetBatch(ctx context.Context, req *dto.GetBatchRequest) (*dto.BatchDetailResponse, error)
}

// InstantFlowImpl implements the instant batch business flow
type InstantFlowImpl struct {
	batchRepo  repository.InstantBatchRepository
	entryRepo  repository.InstantBatchEntryRepository
	audience   *engine.AudienceBuilder
	dispatcher Dispatcher
	db         *gorm.DB
}

// NewInstantFlow creates a new instant flow instance
func NewInstantFlow(
	batchRepo repository.InstantBatchRepository,
	entryRepo repository.InstantBatchEntryRepository,
	audience *engine.AudienceBuilder,
	dispatcher Dispatcher,
	db *gorm.DB,
) InstantFlow {
	return &InstantFlowImpl{
		batchRepo:  batchRepo,
		entryRepo:  entryRepo,
		audience:   audience,
		dispatcher: dispatcher,
		db:         db,
	}
}

// Send queues an instant batch to the selected leads and returns
// immediately; delivery proceeds in the background at the default cadence.
func (f *InstantFlowImpl) Send(ctx context.Context, req *dto.SendInstantRequest) (*dto.SendInstantResponse, error) {
	if err := validateMessage(req.MessageType, req.Message, req.MediaPath); err != nil {
		return nil, NewBusinessError("BATCH_VALIDATION_FAILED", "Message specification is invalid", err)
	}

	spec := models.AudienceSpec{Mode: models.AudienceModeExplicit, LeadIDs: req.LeadIDs}
	recipients, err := f.audience.Build(ctx, spec, req.BranchID)
	if err != nil {
		if err == engine.ErrEmptyAudience {
			return nil, NewBusinessError("BATCH_NO_USABLE_LEADS", "None of the selected leads has a usable phone", ErrNoUsableLeads)
		}
		return nil, NewBusinessError("BATCH_AUDIENCE_FAILED", "Failed to resolve batch recipients", err)
	}

	batch := &models.InstantBatch{
		UUID:         uuid.New(),
		OwnerUserID:  req.UserID,
		BranchID:     req.BranchID,
		MessageType:  models.MessageType(req.MessageType),
		Message:      req.Message,
		MediaPath:    req.MediaPath,
		MediaCaption: req.MediaCaption,
		Status:       models.BatchStatusRunning,
		TotalLeads:   len(recipients),
		CreatedAt:    utils.UTCNow(),
	}

	err = runInTx(ctx, f.db, func(txCtx context.Context) error {
		if err := f.batchRepo.Save(txCtx, batch); err != nil {
			return fmt.Errorf("failed to save batch: %w", err)
		}
		entries := make([]*models.InstantBatchEntry, 0, len(recipients))
		for _, r := range recipients {
			entries = append(entries, &models.InstantBatchEntry{
				BatchID:   batch.ID,
				LeadID:    r.LeadID,
				Phone:     r.Phone,
				Name:      r.Name,
				Status:    models.EntryStatusPending,
				SendOrder: r.SendOrder,
				CreatedAt: utils.UTCNow(),
			})
		}
		return f.entryRepo.SaveBatch(txCtx, entries)
	})
	if err != nil {
		return nil, NewBusinessError("BATCH_CREATION_FAILED", "Failed to queue instant batch", err)
	}

	f.dispatcher.KickBatch(batch)

	return &dto.SendInstantResponse{
		UUID:       batch.UUID.String(),
		Status:     string(batch.Status),
		TotalLeads: batch.TotalLeads,
	}, nil
}

// GetBatch returns the progress view of one batch
func (f *InstantFlowImpl) GetBatch(ctx context.Context, req *dto.GetBatchRequest) (*dto.BatchDetailResponse, error) {
	if req.UUID == "" {
		return nil, NewBusinessError("BATCH_UUID_REQUIRED", "Batch UUID is required", ErrBatchNotFound)
	}
	batch, err := f.batchRepo.ByUUID(ctx, req.UUID)
	if err != nil {
		return nil, NewBusinessError("BATCH_LOOKUP_FAILED", "Failed to lookup batch", err)
	}
	if batch == nil {
		return nil, NewBusinessError("BATCH_NOT_FOUND", "Instant batch not found", ErrBatchNotFound)
	}
	if batch.OwnerUserID != req.UserID {
		return nil, NewBusinessError("BATCH_ACCESS_DENIED", "Instant batch belongs to another user", ErrBatchAccessDenied)
	}

	counts, err := f.entryRepo.CountByStatus(ctx, batch.ID)
	if err != nil {
		return nil, NewBusinessError("BATCH_DETAIL_FAILED", "Failed to load batch breakdown", err)
	}
	entryCounts := make(map[string]int64, len(counts))
	for _, c := range counts {
		entryCounts[string(c.Status)] = c.Count
	}

	return &dto.BatchDetailResponse{
		UUID:        batch.UUID.String(),
		BranchID:    batch.BranchID,
		MessageType: string(batch.MessageType),
		Message:     batch.Message,
		Status:      string(batch.Status),
		TotalLeads:  batch.TotalLeads,
		SentCount:   batch.SentCount,
		FailedCount: batch.FailedCount,
		EntryCounts: entryCounts,
		CreatedAt:   batch.CreatedAt,
	}, nil
}
