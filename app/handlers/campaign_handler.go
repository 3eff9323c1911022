package handlers

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/retailops/messaging-engine/app/dto"
	businessflow "github.com/retailops/messaging-engine/business_flow"
)

// populateTimeout allows large directory scans during roster builds
const populateTimeout = 2 * time.Minute

// CampaignHandlerInterface defines the contract for campaign handlers
type CampaignHandlerInterface interface {
	Create(c fiber.Ctx) error
	Update(c fiber.Ctx) error
	Delete(c fiber.Ctx) error
	PopulateAudience(c fiber.Ctx) error
	Start(c fiber.Ctx) error
	Pause(c fiber.Ctx) error
	Resume(c fiber.Ctx) error
	Cancel(c fiber.Ctx) error
	Duplicate(c fiber.Ctx) error
	List(c fiber.Ctx) error
	Detail(c fiber.Ctx) error
	ListRecipients(c fiber.Ctx) error
	Dashboard(c fiber.Ctx) error
}

// CampaignHandler handles campaign-related HTTP requests
type CampaignHandler struct {
	campaignFlow businessflow.CampaignFlow
	validator    *validator.Validate
}

// NewCampaignHandler creates a new campaign handler
func NewCampaignHandler(campaignFlow businessflow.CampaignFlow) *CampaignHandler {
	return &CampaignHandler{
		campaignFlow: campaignFlow,
		validator:    validator.New(),
	}
}

// Create handles the campaign creation process
func (h *CampaignHandler) Create(c fiber.Ctx) error {
	var req dto.CreateCampaignRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors(err))
	}

	uid, ok := userID(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}
	req.UserID = uid

	result, err := h.campaignFlow.Create(createRequestContext(c, "/api/v1/campaigns"), &req)
	if err != nil {
		return h.businessError(c, err, "Campaign creation failed")
	}
	return successResponse(c, fiber.StatusCreated, "Campaign created successfully", result)
}

// Update handles edits to a draft or paused campaign
func (h *CampaignHandler) Update(c fiber.Ctx) error {
	var req dto.UpdateCampaignRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors(err))
	}

	uid, ok := userID(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}
	req.UserID = uid
	req.UUID = c.Params("uuid")

	result, err := h.campaignFlow.Update(createRequestContext(c, "/api/v1/campaigns/"+req.UUID), &req)
	if err != nil {
		return h.businessError(c, err, "Campaign update failed")
	}
	return successResponse(c, fiber.StatusOK, "Campaign updated successfully", result)
}

// Delete removes a finished campaign
func (h *CampaignHandler) Delete(c fiber.Ctx) error {
	req, err := h.actionRequest(c)
	if err != nil {
		return err
	}
	if err := h.campaignFlow.Delete(createRequestContext(c, "/api/v1/campaigns/"+req.UUID), req); err != nil {
		return h.businessError(c, err, "Campaign deletion failed")
	}
	return successResponse(c, fiber.StatusOK, "Campaign deleted successfully", nil)
}

// PopulateAudience builds the campaign roster from its audience spec
func (h *CampaignHandler) PopulateAudience(c fiber.Ctx) error {
	req, err := h.actionRequest(c)
	if err != nil {
		return err
	}
	result, err := h.campaignFlow.PopulateAudience(createRequestContextWithTimeout(c, "/api/v1/campaigns/"+req.UUID+"/audience", populateTimeout), req)
	if err != nil {
		return h.businessError(c, err, "Audience population failed")
	}
	return successResponse(c, fiber.StatusOK, "Audience populated successfully", result)
}

// Start launches a campaign immediately or at the given schedule time
func (h *CampaignHandler) Start(c fiber.Ctx) error {
	var req dto.StartCampaignRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	uid, ok := userID(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}
	req.UserID = uid
	req.UUID = c.Params("uuid")

	result, err := h.campaignFlow.Start(createRequestContext(c, "/api/v1/campaigns/"+req.UUID+"/start"), &req)
	if err != nil {
		return h.businessError(c, err, "Campaign start failed")
	}
	return successResponse(c, fiber.StatusOK, "Campaign started successfully", result)
}

// Pause stops dispatching after the in-flight message
func (h *CampaignHandler) Pause(c fiber.Ctx) error {
	return h.lifecycle(c, "pause", h.campaignFlow.Pause, "Campaign paused successfully", "Campaign pause failed")
}

// Resume continues a paused campaign
func (h *CampaignHandler) Resume(c fiber.Ctx) error {
	return h.lifecycle(c, "resume", h.campaignFlow.Resume, "Campaign resumed successfully", "Campaign resume failed")
}

// Cancel permanently stops a campaign
func (h *CampaignHandler) Cancel(c fiber.Ctx) error {
	return h.lifecycle(c, "cancel", h.campaignFlow.Cancel, "Campaign cancelled successfully", "Campaign cancel failed")
}

// Duplicate clones a campaign as a fresh draft
func (h *CampaignHandler) Duplicate(c fiber.Ctx) error {
	var req dto.DuplicateCampaignRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors(err))
	}

	uid, ok := userID(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}
	req.UserID = uid
	req.UUID = c.Params("uuid")

	result, err := h.campaignFlow.Duplicate(createRequestContext(c, "/api/v1/campaigns/"+req.UUID+"/duplicate"), &req)
	if err != nil {
		return h.businessError(c, err, "Campaign duplication failed")
	}
	return successResponse(c, fiber.StatusCreated, "Campaign duplicated successfully", result)
}

// List returns the caller's campaigns, newest first
func (h *CampaignHandler) List(c fiber.Ctx) error {
	uid, ok := userID(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	req := dto.ListCampaignsRequest{
		UserID:   uid,
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 20),
	}
	if s := c.Query("status"); s != "" {
		req.Status = &s
	}
	if s := c.Query("search"); s != "" {
		req.Search = &s
	}
	if s := c.Query("branch_id"); s != "" {
		if branchID, err := strconv.ParseInt(s, 10, 64); err == nil {
			req.BranchID = &branchID
		}
	}
	if err := h.validator.Struct(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors(err))
	}

	result, err := h.campaignFlow.List(createRequestContext(c, "/api/v1/campaigns"), &req)
	if err != nil {
		return h.businessError(c, err, "Campaign listing failed")
	}
	return successResponse(c, fiber.StatusOK, "Campaigns retrieved successfully", result)
}

// Detail returns the full campaign view
func (h *CampaignHandler) Detail(c fiber.Ctx) error {
	req, err := h.actionRequest(c)
	if err != nil {
		return err
	}
	result, err := h.campaignFlow.Detail(createRequestContext(c, "/api/v1/campaigns/"+req.UUID), req)
	if err != nil {
		return h.businessError(c, err, "Campaign lookup failed")
	}
	return successResponse(c, fiber.StatusOK, "Campaign retrieved successfully", result)
}

// ListRecipients pages through the campaign roster
func (h *CampaignHandler) ListRecipients(c fiber.Ctx) error {
	uid, ok := userID(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	req := dto.ListRecipientsRequest{
		UUID:     c.Params("uuid"),
		UserID:   uid,
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 50),
	}
	if s := c.Query("status"); s != "" {
		req.Status = &s
	}
	if err := h.validator.Struct(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors(err))
	}

	result, err := h.campaignFlow.ListRecipients(createRequestContext(c, "/api/v1/campaigns/"+req.UUID+"/recipients"), &req)
	if err != nil {
		return h.businessError(c, err, "Recipient listing failed")
	}
	return successResponse(c, fiber.StatusOK, "Recipients retrieved successfully", result)
}

// Dashboard summarizes the caller's campaigns
func (h *CampaignHandler) Dashboard(c fiber.Ctx) error {
	uid, ok := userID(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}
	result, err := h.campaignFlow.Dashboard(createRequestContext(c, "/api/v1/campaigns/dashboard"), uid)
	if err != nil {
		return h.businessError(c, err, "Dashboard lookup failed")
	}
	return successResponse(c, fiber.StatusOK, "Dashboard retrieved successfully", result)
}

type lifecycleFunc func(ctx context.Context, req *dto.CampaignActionRequest) (*dto.CampaignActionResponse, error)

func (h *CampaignHandler) lifecycle(c fiber.Ctx, action string, fn lifecycleFunc, okMsg, failMsg string) error {
	req, err := h.actionRequest(c)
	if err != nil {
		return err
	}
	result, err := fn(createRequestContext(c, "/api/v1/campaigns/"+req.UUID+"/"+action), req)
	if err != nil {
		return h.businessError(c, err, failMsg)
	}
	return successResponse(c, fiber.StatusOK, okMsg, result)
}

func (h *CampaignHandler) actionRequest(c fiber.Ctx) (*dto.CampaignActionRequest, error) {
	uid, ok := userID(c)
	if !ok {
		return nil, errorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}
	uuid := c.Params("uuid")
	if uuid == "" {
		return nil, errorResponse(c, fiber.StatusBadRequest, "Campaign UUID is required", "MISSING_UUID", nil)
	}
	return &dto.CampaignActionRequest{UUID: uuid, UserID: uid}, nil
}

func (h *CampaignHandler) businessError(c fiber.Ctx, err error, fallback string) error {
	switch {
	case businessflow.IsCampaignNotFound(err):
		return errorResponse(c, fiber.StatusNotFound, "Campaign not found", "CAMPAIGN_NOT_FOUND", nil)
	case businessflow.IsCampaignAccessDenied(err):
		return errorResponse(c, fiber.StatusForbidden, "Campaign belongs to another user", "CAMPAIGN_ACCESS_DENIED", nil)
	case businessflow.IsCampaignNotEditable(err):
		return errorResponse(c, fiber.StatusConflict, "Campaign cannot be edited in its current status", "CAMPAIGN_NOT_EDITABLE", nil)
	case businessflow.IsCampaignNotDeletable(err):
		return errorResponse(c, fiber.StatusConflict, "Only finished campaigns can be deleted", "CAMPAIGN_NOT_DELETABLE", nil)
	case businessflow.IsAudienceEmpty(err):
		return errorResponse(c, fiber.StatusUnprocessableEntity, "Audience selection matched no sendable leads", "AUDIENCE_EMPTY", nil)
	case businessflow.IsStateTransitionError(err):
		return errorResponse(c, fiber.StatusConflict, "Campaign cannot change to the requested status", "CAMPAIGN_TRANSITION_DENIED", nil)
	}
	if be, ok := err.(*businessflow.BusinessError); ok && be.Code == "CAMPAIGN_VALIDATION_FAILED" {
		return errorResponse(c, fiber.StatusBadRequest, be.Message, be.Code, nil)
	}

	log.Println(fallback, err)
	return errorResponse(c, fiber.StatusInternalServerError, fallback, "INTERNAL_ERROR", nil)
}

func queryInt(c fiber.Ctx, key string, def int) int {
	if s := c.Query(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return def
}
