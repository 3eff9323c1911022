package handlers

import (
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/retailops/messaging-engine/app/dto"
	businessflow "github.com/retailops/messaging-engine/business_flow"
)

// InstantHandlerInterface defines the contract for instant batch handlers
type InstantHandlerInterface interface {
	Send(c fiber.Ctx) error
	GetBatch(c fiber.Ctx) error
}

// InstantHandler handles instant batch HTTP requests
type InstantHandler struct {
	instantFlow businessflow.InstantFlow
	validator   *validator.Validate
}

// NewInstantHandler creates a new instant batch handler
func NewInstantHandler(instantFlow businessflow.InstantFlow) *InstantHandler {
	return &InstantHandler{
		instantFlow: instantFlow,
		validator:   validator.New(),
	}
}

// Send queues an instant batch; the response returns before delivery starts
func (h *InstantHandler) Send(c fiber.Ctx) error {
	var req dto.SendInstantRequest
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

	result, err := h.instantFlow.Send(createRequestContext(c, "/api/v1/messages/instant"), &req)
	if err != nil {
		if be, ok := err.(*businessflow.BusinessError); ok {
			switch be.Code {
			case "BATCH_VALIDATION_FAILED":
				return errorResponse(c, fiber.StatusBadRequest, be.Message, be.Code, nil)
			case "BATCH_NO_USABLE_LEADS":
				return errorResponse(c, fiber.StatusUnprocessableEntity, be.Message, be.Code, nil)
			}
		}
		log.Println("Instant batch failed", err)
		return errorResponse(c, fiber.StatusInternalServerError, "Instant batch failed", "INTERNAL_ERROR", nil)
	}
	return successResponse(c, fiber.StatusAccepted, "Instant batch queued successfully", result)
}

// GetBatch returns the progress of one instant batch
func (h *InstantHandler) GetBatch(c fiber.Ctx) error {
	uid, ok := userID(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}
	req := dto.GetBatchRequest{UUID: c.Params("uuid"), UserID: uid}

	result, err := h.instantFlow.GetBatch(createRequestContext(c, "/api/v1/messages/instant/"+req.UUID), &req)
	if err != nil {
		if businessflow.IsBatchNotFound(err) {
			return errorResponse(c, fiber.StatusNotFound, "Instant batch not found", "BATCH_NOT_FOUND", nil)
		}
		if be, ok := err.(*businessflow.BusinessError); ok && be.Code == "BATCH_ACCESS_DENIED" {
			return errorResponse(c, fiber.StatusForbidden, be.Message, be.Code, nil)
		}
		log.Println("Instant batch lookup failed", err)
		return errorResponse(c, fiber.StatusInternalServerError, "Instant batch lookup failed", "INTERNAL_ERROR", nil)
	}
	return successResponse(c, fiber.StatusOK, "Instant batch retrieved successfully", result)
}
