// Package businessflow contains the core business logic and use cases for campaign workflows
package businessflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/retailops/messaging-engine/app/dto"
	"github.com/retailops/messaging-engine/app/engine"
	"github.com/retailops/messaging-engine/models"
	"github.com/retailops/messaging-engine/repository"
	"github.com/retailops/messaging-engine/utils"
	"gorm.io/gorm"
)

// runInTx wraps multi-write operations in one transaction. Swappable so
// flow tests can run against in-memory repositories.
var runInTx = repository.WithTransaction

// Dispatcher lets flows hand a run to the delivery loop without waiting for
// the next scheduler tick.
type Dispatcher interface {
	KickCampaign(c *models.Campaign)
	KickBatch(b *models.InstantBatch)
}

// CampaignFlow handles the campaign lifecycle business logic
type CampaignFlow interface {
	Create(ctx context.Context, req *dto.CreateCampaignRequest) (*dto.CreateCampaignResponse, error)
	Update(ctx context.Context, req *dto.UpdateCampaignRequest) (*dto.CampaignActionResponse, error)
	Delete(ctx context.Context, req *dto.CampaignActionRequest) error
	PopulateAudience(ctx context.Context, req *dto.CampaignActionRequest) (*dto.PopulateAudienceResponse, error)
	Start(ctx context.Context, req *dto.StartCampaignRequest) (*dto.CampaignActionResponse, error)
	Pause(ctx context.Context, req *dto.CampaignActionRequest) (*dto.CampaignActionResponse, error)
	Resume(ctx context.Context, req *dto.CampaignActionRequest) (*dto.CampaignActionResponse, error)
	Cancel(ctx context.Context, req *dto.CampaignActionRequest) (*dto.CampaignActionResponse, error)
	Duplicate(ctx context.Context, req *dto.DuplicateCampaignRequest) (*dto.CreateCampaignResponse, error)
	List(ctx context.Context, req *dto.ListCampaignsRequest) (*dto.ListCampaignsResponse, error)
	Detail(ctx context.Context, req *dto.CampaignActionRequest) (*dto.CampaignDetailResponse, error)
	ListRecipients(ctx context.Context, req *dto.ListRecipientsRequest) (*dto.ListRecipientsResponse, error)
	Dashboard(ctx context.Context, userID uint) (*dto.DashboardResponse, error)
}

// CampaignFlowImpl implements the campaign business flow
type CampaignFlowImpl struct {
	campaignRepo repository.CampaignRepository
	entryRepo    repository.CampaignLeadRepository
	audience     *engine.AudienceBuilder
	dispatcher   Dispatcher
	db           *gorm.DB
}

// NewCampaignFlow creates a new campaign flow instance
func NewCampaignFlow(
	campaignRepo repository.CampaignRepository,
	entryRepo repository.CampaignLeadRepository,
	audience *engine.AudienceBuilder,
	dispatcher Dispatcher,
	db *gorm.DB,
) CampaignFlow {
	return &CampaignFlowImpl{
		campaignRepo: campaignRepo,
		entryRepo:    entryRepo,
		audience:     audience,
		dispatcher:   dispatcher,
		db:           db,
	}
}

// Create persists a new draft campaign
func (f *CampaignFlowImpl) Create(ctx context.Context, req *dto.CreateCampaignRequest) (*dto.CreateCampaignResponse, error) {
	spec, err := audienceFromDTO(req.Audience)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_VALIDATION_FAILED", "Audience specification is invalid", err)
	}
	if err := validateMessage(req.MessageType, req.Message, req.MediaPath); err != nil {
		return nil, NewBusinessError("CAMPAIGN_VALIDATION_FAILED", "Message specification is invalid", err)
	}

	pacing := pacingFromDTO(req.Pacing)
	if pacing.MaxDelaySeconds < pacing.MinDelaySeconds {
		return nil, NewBusinessError("CAMPAIGN_VALIDATION_FAILED", "Pacing is invalid", ErrPacingDelayWindow)
	}

	campaign := &models.Campaign{
		UUID:         uuid.New(),
		OwnerUserID:  req.UserID,
		Name:         req.Name,
		BranchID:     req.BranchID,
		MessageType:  models.MessageType(req.MessageType),
		Message:      req.Message,
		MediaPath:    req.MediaPath,
		MediaCaption: req.MediaCaption,
		Audience:     spec,
		Pacing:       pacing,
		Status:       models.CampaignStatusDraft,
		ScheduledAt:  req.ScheduledAt,
		CreatedAt:    utils.UTCNow(),
	}
	if err := f.campaignRepo.Save(ctx, campaign); err != nil {
		return nil, NewBusinessError("CAMPAIGN_CREATION_FAILED", "Failed to save campaign", err)
	}

	return &dto.CreateCampaignResponse{
		UUID:      campaign.UUID.String(),
		Status:    string(campaign.Status),
		CreatedAt: campaign.CreatedAt.Format(time.RFC3339),
	}, nil
}

// Update modifies a draft or paused campaign. A changed audience does not
// touch an existing roster until the next repopulation.
func (f *CampaignFlowImpl) Update(ctx context.Context, req *dto.UpdateCampaignRequest) (*dto.CampaignActionResponse, error) {
	campaign, err := f.ownedCampaign(ctx, req.UUID, req.UserID)
	if err != nil {
		return nil, err
	}
	if !campaign.IsEditable() {
		return nil, NewBusinessError("CAMPAIGN_NOT_EDITABLE", "Campaign cannot be edited in its current status", ErrCampaignNotEditable)
	}

	if req.Name != nil {
		campaign.Name = *req.Name
	}
	if req.MessageType != nil {
		campaign.MessageType = models.MessageType(*req.MessageType)
	}
	if req.Message != nil {
		campaign.Message = *req.Message
	}
	if req.MediaPath != nil {
		campaign.MediaPath = req.MediaPath
	}
	if req.MediaCaption != nil {
		campaign.MediaCaption = req.MediaCaption
	}
	if req.Audience != nil {
		spec, err := audienceFromDTO(*req.Audience)
		if err != nil {
			return nil, NewBusinessError("CAMPAIGN_VALIDATION_FAILED", "Audience specification is invalid", err)
		}
		campaign.Audience = spec
	}
	if req.Pacing != nil {
		pacing := pacingFromDTO(req.Pacing)
		if pacing.MaxDelaySeconds < pacing.MinDelaySeconds {
			return nil, NewBusinessError("CAMPAIGN_VALIDATION_FAILED", "Pacing is invalid", ErrPacingDelayWindow)
		}
		campaign.Pacing = pacing
	}
	if err := validateMessage(string(campaign.MessageType), campaign.Message, campaign.MediaPath); err != nil {
		return nil, NewBusinessError("CAMPAIGN_VALIDATION_FAILED", "Message specification is invalid", err)
	}

	campaign.UpdatedAt = utils.UTCNowPtr()
	if err := f.campaignRepo.Update(ctx, campaign); err != nil {
		return nil, NewBusinessError("CAMPAIGN_UPDATE_FAILED", "Failed to update campaign", err)
	}
	return actionResponse(campaign), nil
}

// Delete removes a finished campaign and its roster
func (f *CampaignFlowImpl) Delete(ctx context.Context, req *dto.CampaignActionRequest) error {
	campaign, err := f.ownedCampaign(ctx, req.UUID, req.UserID)
	if err != nil {
		return err
	}
	if !campaign.IsDeletable() {
		return NewBusinessError("CAMPAIGN_NOT_DELETABLE", "Only completed, cancelled or failed campaigns can be deleted", ErrCampaignNotDeletable)
	}
	if err := f.campaignRepo.Delete(ctx, campaign.ID); err != nil {
		return NewBusinessError("CAMPAIGN_DELETE_FAILED", "Failed to delete campaign", err)
	}
	return nil
}

// PopulateAudience resolves the audience spec into a fresh roster. Any
// previous roster and its progress are discarded.
func (f *CampaignFlowImpl) PopulateAudience(ctx context.Context, req *dto.CampaignActionRequest) (*dto.PopulateAudienceResponse, error) {
	campaign, err := f.ownedCampaign(ctx, req.UUID, req.UserID)
	if err != nil {
		return nil, err
	}
	if !campaign.IsEditable() {
		return nil, NewBusinessError("CAMPAIGN_NOT_EDITABLE", "Audience can only be repopulated on draft or paused campaigns", ErrCampaignNotEditable)
	}

	recipients, err := f.audience.Build(ctx, campaign.Audience, campaign.BranchID)
	if err != nil {
		if err == engine.ErrEmptyAudience {
			return nil, NewBusinessError("AUDIENCE_EMPTY", "Audience selection matched no sendable leads", ErrAudienceEmpty)
		}
		return nil, NewBusinessError("AUDIENCE_BUILD_FAILED", "Failed to build audience", err)
	}

	entries := make([]*models.CampaignLead, 0, len(recipients))
	leadIDs := make(pq.Int64Array, 0, len(recipients))
	for _, r := range recipients {
		entries = append(entries, &models.CampaignLead{
			CampaignID: campaign.ID,
			LeadID:     r.LeadID,
			Phone:      r.Phone,
			Name:       r.Name,
			Status:     models.EntryStatusPending,
			SendOrder:  r.SendOrder,
			CreatedAt:  utils.UTCNow(),
		})
		leadIDs = append(leadIDs, r.LeadID)
	}

	err = runInTx(ctx, f.db, func(txCtx context.Context) error {
		if err := f.entryRepo.DeleteByCampaign(txCtx, campaign.ID); err != nil {
			return fmt.Errorf("failed to clear previous roster: %w", err)
		}
		if err := f.entryRepo.SaveBatch(txCtx, entries); err != nil {
			return fmt.Errorf("failed to save roster: %w", err)
		}
		if err := f.campaignRepo.ResetCounters(txCtx, campaign.ID, len(entries)); err != nil {
			return fmt.Errorf("failed to reset counters: %w", err)
		}
		campaign.LeadIDs = leadIDs
		campaign.TotalLeads = len(entries)
		campaign.SentCount = 0
		campaign.FailedCount = 0
		campaign.UpdatedAt = utils.UTCNowPtr()
		return f.campaignRepo.Update(txCtx, campaign)
	})
	if err != nil {
		return nil, NewBusinessError("AUDIENCE_POPULATE_FAILED", "Failed to populate audience", err)
	}

	return &dto.PopulateAudienceResponse{
		UUID:       campaign.UUID.String(),
		TotalLeads: len(entries),
	}, nil
}

// Start moves a populated campaign to running, or to scheduled when a
// future time is given.
func (f *CampaignFlowImpl) Start(ctx context.Context, req *dto.StartCampaignRequest) (*dto.CampaignActionResponse, error) {
	campaign, err := f.ownedCampaign(ctx, req.UUID, req.UserID)
	if err != nil {
		return nil, err
	}
	if campaign.TotalLeads == 0 {
		return nil, NewBusinessError("CAMPAIGN_ROSTER_EMPTY", "Populate the audience before starting", ErrCampaignRosterEmpty)
	}

	target := models.CampaignStatusRunning
	if req.ScheduledAt != nil {
		if !req.ScheduledAt.After(utils.UTCNow()) {
			return nil, NewBusinessError("CAMPAIGN_SCHEDULE_INVALID", "Schedule time must be in the future", ErrScheduleTimeInPast)
		}
		target = models.CampaignStatusScheduled
	}
	if !campaign.CanTransitionTo(target) {
		return nil, NewBusinessError("CAMPAIGN_TRANSITION_DENIED", "Campaign cannot be started from its current status",
			&StateTransitionError{From: campaign.Status, To: target})
	}

	if target == models.CampaignStatusScheduled {
		campaign.ScheduledAt = req.ScheduledAt
		campaign.Status = target
		campaign.UpdatedAt = utils.UTCNowPtr()
		if err := f.campaignRepo.Update(ctx, campaign); err != nil {
			return nil, NewBusinessError("CAMPAIGN_START_FAILED", "Failed to schedule campaign", err)
		}
		return actionResponse(campaign), nil
	}

	moved, err := f.campaignRepo.UpdateStatus(ctx, campaign.ID, campaign.Status, target)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_START_FAILED", "Failed to start campaign", err)
	}
	if !moved {
		return nil, NewBusinessError("CAMPAIGN_TRANSITION_DENIED", "Campaign status changed concurrently",
			&StateTransitionError{From: campaign.Status, To: target})
	}
	campaign.Status = target
	f.dispatcher.KickCampaign(campaign)
	return actionResponse(campaign), nil
}

// Pause stops dispatching after the in-flight message
func (f *CampaignFlowImpl) Pause(ctx context.Context, req *dto.CampaignActionRequest) (*dto.CampaignActionResponse, error) {
	return f.transition(ctx, req, models.CampaignStatusPaused, "CAMPAIGN_PAUSE_FAILED")
}

// Resume continues a paused campaign from the next pending recipient. Rows
// stranded in sending by a crash while the campaign was paused are queued
// again first, so no recipient is lost across the pause.
func (f *CampaignFlowImpl) Resume(ctx context.Context, req *dto.CampaignActionRequest) (*dto.CampaignActionResponse, error) {
	resp, err := f.transition(ctx, req, models.CampaignStatusRunning, "CAMPAIGN_RESUME_FAILED")
	if err != nil {
		return nil, err
	}
	campaign, err := f.ownedCampaign(ctx, req.UUID, req.UserID)
	if err == nil {
		if _, err := f.entryRepo.ResetSending(ctx, campaign.ID); err != nil {
			return nil, NewBusinessError("CAMPAIGN_RESUME_FAILED", "Failed to requeue interrupted recipients", err)
		}
		f.dispatcher.KickCampaign(campaign)
	}
	return resp, nil
}

// Cancel permanently stops the campaign and writes off the remaining
// pending recipients as skipped.
func (f *CampaignFlowImpl) Cancel(ctx context.Context, req *dto.CampaignActionRequest) (*dto.CampaignActionResponse, error) {
	campaign, err := f.ownedCampaign(ctx, req.UUID, req.UserID)
	if err != nil {
		return nil, err
	}
	if !campaign.CanTransitionTo(models.CampaignStatusCancelled) {
		return nil, NewBusinessError("CAMPAIGN_TRANSITION_DENIED", "Campaign cannot be cancelled from its current status",
			&StateTransitionError{From: campaign.Status, To: models.CampaignStatusCancelled})
	}

	err = runInTx(ctx, f.db, func(txCtx context.Context) error {
		moved, err := f.campaignRepo.UpdateStatus(txCtx, campaign.ID, campaign.Status, models.CampaignStatusCancelled)
		if err != nil {
			return err
		}
		if !moved {
			return &StateTransitionError{From: campaign.Status, To: models.CampaignStatusCancelled}
		}
		_, err = f.entryRepo.SkipPending(txCtx, campaign.ID)
		return err
	})
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_CANCEL_FAILED", "Failed to cancel campaign", err)
	}

	campaign.Status = models.CampaignStatusCancelled
	return actionResponse(campaign), nil
}

// Duplicate clones the campaign spec as a fresh draft without any roster
func (f *CampaignFlowImpl) Duplicate(ctx context.Context, req *dto.DuplicateCampaignRequest) (*dto.CreateCampaignResponse, error) {
	source, err := f.ownedCampaign(ctx, req.UUID, req.UserID)
	if err != nil {
		return nil, err
	}

	name := source.Name + " (copy)"
	if req.Name != nil {
		name = *req.Name
	}
	clone := &models.Campaign{
		UUID:         uuid.New(),
		OwnerUserID:  source.OwnerUserID,
		Name:         name,
		BranchID:     source.BranchID,
		MessageType:  source.MessageType,
		Message:      source.Message,
		MediaPath:    source.MediaPath,
		MediaCaption: source.MediaCaption,
		Audience:     source.Audience,
		Pacing:       source.Pacing,
		Status:       models.CampaignStatusDraft,
		CreatedAt:    utils.UTCNow(),
	}
	if err := f.campaignRepo.Save(ctx, clone); err != nil {
		return nil, NewBusinessError("CAMPAIGN_DUPLICATE_FAILED", "Failed to duplicate campaign", err)
	}

	return &dto.CreateCampaignResponse{
		UUID:      clone.UUID.String(),
		Status:    string(clone.Status),
		CreatedAt: clone.CreatedAt.Format(time.RFC3339),
	}, nil
}

// List returns the owner's campaigns, newest first
func (f *CampaignFlowImpl) List(ctx context.Context, req *dto.ListCampaignsRequest) (*dto.ListCampaignsResponse, error) {
	filter := models.CampaignFilter{
		OwnerUserID: &req.UserID,
		NameLike:    req.Search,
		BranchID:    req.BranchID,
	}
	if req.Status != nil {
		status := models.CampaignStatus(*req.Status)
		filter.Status = &status
	}

	total, err := f.campaignRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LIST_FAILED", "Failed to count campaigns", err)
	}

	offset := (req.Page - 1) * req.PageSize
	rows, err := f.campaignRepo.ByFilter(ctx, filter, "created_at DESC", req.PageSize, offset)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LIST_FAILED", "Failed to list campaigns", err)
	}

	items := make([]dto.CampaignSummary, 0, len(rows))
	for _, c := range rows {
		items = append(items, dto.CampaignSummary{
			UUID:        c.UUID.String(),
			Name:        c.Name,
			BranchID:    c.BranchID,
			MessageType: string(c.MessageType),
			Status:      string(c.Status),
			TotalLeads:  c.TotalLeads,
			SentCount:   c.SentCount,
			FailedCount: c.FailedCount,
			ScheduledAt: c.ScheduledAt,
			CreatedAt:   c.CreatedAt,
		})
	}
	return &dto.ListCampaignsResponse{
		Items:      items,
		Pagination: dto.Pagination{Page: req.Page, PageSize: req.PageSize, Total: total},
	}, nil
}

// Detail returns the full campaign view including the roster breakdown
func (f *CampaignFlowImpl) Detail(ctx context.Context, req *dto.CampaignActionRequest) (*dto.CampaignDetailResponse, error) {
	campaign, err := f.ownedCampaign(ctx, req.UUID, req.UserID)
	if err != nil {
		return nil, err
	}

	counts, err := f.entryRepo.CountByStatus(ctx, campaign.ID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_DETAIL_FAILED", "Failed to load roster breakdown", err)
	}
	entryCounts := make(map[string]int64, len(counts))
	for _, c := range counts {
		entryCounts[string(c.Status)] = c.Count
	}

	return &dto.CampaignDetailResponse{
		UUID:         campaign.UUID.String(),
		Name:         campaign.Name,
		BranchID:     campaign.BranchID,
		MessageType:  string(campaign.MessageType),
		Message:      campaign.Message,
		MediaPath:    campaign.MediaPath,
		MediaCaption: campaign.MediaCaption,
		Audience:     audienceToDTO(campaign.Audience),
		Pacing:       pacingToDTO(campaign.Pacing),
		Status:       string(campaign.Status),
		ScheduledAt:  campaign.ScheduledAt,
		TotalLeads:   campaign.TotalLeads,
		SentCount:    campaign.SentCount,
		FailedCount:  campaign.FailedCount,
		EntryCounts:  entryCounts,
		CreatedAt:    campaign.CreatedAt,
		UpdatedAt:    campaign.UpdatedAt,
	}, nil
}

// ListRecipients pages through the campaign roster in send order
func (f *CampaignFlowImpl) ListRecipients(ctx context.Context, req *dto.ListRecipientsRequest) (*dto.ListRecipientsResponse, error) {
	campaign, err := f.ownedCampaign(ctx, req.UUID, req.UserID)
	if err != nil {
		return nil, err
	}

	filter := models.CampaignLeadFilter{CampaignID: &campaign.ID}
	if req.Status != nil {
		status := models.EntryStatus(*req.Status)
		filter.Status = &status
	}

	total, err := f.entryRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("RECIPIENT_LIST_FAILED", "Failed to count recipients", err)
	}
	offset := (req.Page - 1) * req.PageSize
	rows, err := f.entryRepo.ByFilter(ctx, filter, "send_order ASC", req.PageSize, offset)
	if err != nil {
		return nil, NewBusinessError("RECIPIENT_LIST_FAILED", "Failed to list recipients", err)
	}

	items := make([]dto.RecipientDTO, 0, len(rows))
	for _, e := range rows {
		items = append(items, dto.RecipientDTO{
			LeadID:      e.LeadID,
			Phone:       e.Phone,
			Name:        e.Name,
			Status:      string(e.Status),
			SendOrder:   e.SendOrder,
			ErrorDetail: e.ErrorDetail,
			SentAt:      e.SentAt,
		})
	}
	return &dto.ListRecipientsResponse{
		Items:      items,
		Pagination: dto.Pagination{Page: req.Page, PageSize: req.PageSize, Total: total},
	}, nil
}

// Dashboard summarizes the owner's campaigns and lifetime send totals
func (f *CampaignFlowImpl) Dashboard(ctx context.Context, userID uint) (*dto.DashboardResponse, error) {
	byStatus, err := f.campaignRepo.CountByStatus(ctx, &userID)
	if err != nil {
		return nil, NewBusinessError("DASHBOARD_FAILED", "Failed to count campaigns", err)
	}

	counts := make(map[string]int64, len(byStatus))
	for status, n := range byStatus {
		counts[string(status)] = n
	}

	var totalSent, totalFailed int64
	rows, err := f.campaignRepo.ByFilter(ctx, models.CampaignFilter{OwnerUserID: &userID}, "created_at DESC", 0, 0)
	if err != nil {
		return nil, NewBusinessError("DASHBOARD_FAILED", "Failed to load campaigns", err)
	}
	for _, c := range rows {
		totalSent += int64(c.SentCount)
		totalFailed += int64(c.FailedCount)
	}

	return &dto.DashboardResponse{
		CampaignsByStatus: counts,
		TotalSent:         totalSent,
		TotalFailed:       totalFailed,
	}, nil
}

// transition performs a guarded status change after the ownership check
func (f *CampaignFlowImpl) transition(ctx context.Context, req *dto.CampaignActionRequest, target models.CampaignStatus, failCode string) (*dto.CampaignActionResponse, error) {
	campaign, err := f.ownedCampaign(ctx, req.UUID, req.UserID)
	if err != nil {
		return nil, err
	}
	if !campaign.CanTransitionTo(target) {
		return nil, NewBusinessError("CAMPAIGN_TRANSITION_DENIED", "Campaign cannot change to the requested status",
			&StateTransitionError{From: campaign.Status, To: target})
	}

	moved, err := f.campaignRepo.UpdateStatus(ctx, campaign.ID, campaign.Status, target)
	if err != nil {
		return nil, NewBusinessError(failCode, "Failed to change campaign status", err)
	}
	if !moved {
		return nil, NewBusinessError("CAMPAIGN_TRANSITION_DENIED", "Campaign status changed concurrently",
			&StateTransitionError{From: campaign.Status, To: target})
	}
	campaign.Status = target
	return actionResponse(campaign), nil
}

// ownedCampaign loads the campaign and enforces ownership
func (f *CampaignFlowImpl) ownedCampaign(ctx context.Context, uuidStr string, userID uint) (*models.Campaign, error) {
	if uuidStr == "" {
		return nil, NewBusinessError("CAMPAIGN_UUID_REQUIRED", "Campaign UUID is required", ErrCampaignUUIDRequired)
	}
	campaign, err := f.campaignRepo.ByUUID(ctx, uuidStr)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to lookup campaign", err)
	}
	if campaign == nil {
		return nil, NewBusinessError("CAMPAIGN_NOT_FOUND", "Campaign not found", ErrCampaignNotFound)
	}
	if campaign.OwnerUserID != userID {
		return nil, NewBusinessError("CAMPAIGN_ACCESS_DENIED", "Campaign belongs to another user", ErrCampaignAccessDenied)
	}
	return campaign, nil
}

func actionResponse(c *models.Campaign) *dto.CampaignActionResponse {
	return &dto.CampaignActionResponse{UUID: c.UUID.String(), Status: string(c.Status)}
}

func audienceFromDTO(in dto.AudienceDTO) (models.AudienceSpec, error) {
	spec := models.AudienceSpec{
		Mode:    models.AudienceMode(in.Mode),
		LeadIDs: in.LeadIDs,
	}
	if in.Filter != nil {
		spec.Filter = &models.AudienceFilterSpec{
			Status:        in.Filter.Status,
			Source:        in.Filter.Source,
			Priority:      in.Filter.Priority,
			CityLike:      in.Filter.CityLike,
			CreatedAfter:  in.Filter.CreatedAfter,
			CreatedBefore: in.Filter.CreatedBefore,
			AssignedTo:    in.Filter.AssignedTo,
			BranchID:      in.Filter.BranchID,
		}
	}
	if err := spec.Validate(); err != nil {
		return models.AudienceSpec{}, err
	}
	return spec, nil
}

func audienceToDTO(spec models.AudienceSpec) dto.AudienceDTO {
	out := dto.AudienceDTO{
		Mode:    string(spec.Mode),
		LeadIDs: spec.LeadIDs,
	}
	if spec.Filter != nil {
		out.Filter = &dto.AudienceFilterDTO{
			Status:        spec.Filter.Status,
			Source:        spec.Filter.Source,
			Priority:      spec.Filter.Priority,
			CityLike:      spec.Filter.CityLike,
			CreatedAfter:  spec.Filter.CreatedAfter,
			CreatedBefore: spec.Filter.CreatedBefore,
			AssignedTo:    spec.Filter.AssignedTo,
			BranchID:      spec.Filter.BranchID,
		}
	}
	return out
}

func pacingFromDTO(in *dto.PacingDTO) models.PacingConfig {
	if in == nil {
		return models.DefaultPacing()
	}
	return models.PacingConfig{
		MinDelaySeconds: in.MinDelaySeconds,
		MaxDelaySeconds: in.MaxDelaySeconds,
		HourlyLimit:     in.HourlyLimit,
		DailyLimit:      in.DailyLimit,
		WarmUp:          in.WarmUp,
	}
}

func pacingToDTO(in models.PacingConfig) dto.PacingDTO {
	return dto.PacingDTO{
		MinDelaySeconds: in.MinDelaySeconds,
		MaxDelaySeconds: in.MaxDelaySeconds,
		HourlyLimit:     in.HourlyLimit,
		DailyLimit:      in.DailyLimit,
		WarmUp:          in.WarmUp,
	}
}

func validateMessage(messageType, message string, mediaPath *string) error {
	switch models.MessageType(messageType) {
	case models.MessageTypeText:
		if message == "" {
			return ErrMessageRequired
		}
	case models.MessageTypeMedia:
		if mediaPath == nil || *mediaPath == "" {
			return ErrMediaPathRequired
		}
	default:
		return fmt.Errorf("unknown message type: %q", messageType)
	}
	return nil
}
