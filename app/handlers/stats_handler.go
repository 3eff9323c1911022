package handlers

import (
	"log"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/retailops/messaging-engine/app/dto"
	businessflow "github.com/retailops/messaging-engine/business_flow"
)

// StatsHandlerInterface defines the contract for sending stats handlers
type StatsHandlerInterface interface {
	Hourly(c fiber.Ctx) error
	Daily(c fiber.Ctx) error
	Rebuild(c fiber.Ctx) error
}

// StatsHandler handles sending stats HTTP requests
type StatsHandler struct {
	statsFlow businessflow.StatsFlow
	validator *validator.Validate
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(statsFlow businessflow.StatsFlow) *StatsHandler {
	return &StatsHandler{
		statsFlow: statsFlow,
		validator: validator.New(),
	}
}

func (h *StatsHandler) request(c fiber.Ctx) (*dto.StatsRequest, error) {
	req := dto.StatsRequest{
		DateFrom: c.Query("date_from"),
		DateTo:   c.Query("date_to"),
	}
	if s := c.Query("branch_id"); s != "" {
		if branchID, err := strconv.ParseInt(s, 10, 64); err == nil {
			req.BranchID = &branchID
		}
	}
	if err := h.validator.Struct(&req); err != nil {
		return nil, errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors(err))
	}
	return &req, nil
}

// Hourly returns the raw hourly counter buckets
func (h *StatsHandler) Hourly(c fiber.Ctx) error {
	req, err := h.request(c)
	if err != nil {
		return err
	}
	result, err := h.statsFlow.Hourly(createRequestContext(c, "/api/v1/stats/hourly"), req)
	if err != nil {
		return h.businessError(c, err)
	}
	return successResponse(c, fiber.StatusOK, "Hourly stats retrieved successfully", result)
}

// Daily returns the per-date rollup
func (h *StatsHandler) Daily(c fiber.Ctx) error {
	req, err := h.request(c)
	if err != nil {
		return err
	}
	result, err := h.statsFlow.Daily(createRequestContext(c, "/api/v1/stats/daily"), req)
	if err != nil {
		return h.businessError(c, err)
	}
	return successResponse(c, fiber.StatusOK, "Daily stats retrieved successfully", result)
}

// Rebuild recomputes the counter buckets from the send records
func (h *StatsHandler) Rebuild(c fiber.Ctx) error {
	if err := h.statsFlow.Rebuild(createRequestContext(c, "/api/v1/stats/rebuild")); err != nil {
		return h.businessError(c, err)
	}
	return successResponse(c, fiber.StatusOK, "Sending stats rebuilt successfully", nil)
}

func (h *StatsHandler) businessError(c fiber.Ctx, err error) error {
	if be, ok := err.(*businessflow.BusinessError); ok && be.Code == "STATS_RANGE_INVALID" {
		return errorResponse(c, fiber.StatusBadRequest, be.Message, be.Code, nil)
	}
	log.Println("Stats lookup failed", err)
	return errorResponse(c, fiber.StatusInternalServerError, "Stats lookup failed", "INTERNAL_ERROR", nil)
}
