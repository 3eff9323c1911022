// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/retailops/messaging-engine/app/dto"
	"github.com/retailops/messaging-engine/app/handlers"
	"github.com/retailops/messaging-engine/app/middleware"
	"github.com/retailops/messaging-engine/utils"
)

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	Shutdown() error
	GetApp() *fiber.App
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app             *fiber.App
	campaignHandler handlers.CampaignHandlerInterface
	instantHandler  handlers.InstantHandlerInterface
	statsHandler    handlers.StatsHandlerInterface
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(
	campaignHandler handlers.CampaignHandlerInterface,
	instantHandler handlers.InstantHandlerInterface,
	statsHandler handlers.StatsHandlerInterface,
) Router {
	app := fiber.New(fiber.Config{
		AppName:      "Messaging Engine API",
		ServerHeader: "messaging-engine",
		ErrorHandler: errorHandler,
		BodyLimit:    4 * 1024 * 1024,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})

	return &FiberRouter{
		app:             app,
		campaignHandler: campaignHandler,
		instantHandler:  instantHandler,
		statsHandler:    statsHandler,
	}
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	r.setupMiddleware()

	r.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := r.app.Group("/api/v1")
	api.Get("/health", r.healthCheck)

	api.Use(middleware.Identity())

	campaigns := api.Group("/campaigns")
	campaigns.Post("/", r.campaignHandler.Create)
	campaigns.Get("/", r.campaignHandler.List)
	campaigns.Get("/dashboard", r.campaignHandler.Dashboard)
	campaigns.Get("/:uuid", r.campaignHandler.Detail)
	campaigns.Put("/:uuid", r.campaignHandler.Update)
	campaigns.Delete("/:uuid", r.campaignHandler.Delete)
	campaigns.Post("/:uuid/audience", r.campaignHandler.PopulateAudience)
	campaigns.Get("/:uuid/recipients", r.campaignHandler.ListRecipients)
	campaigns.Post("/:uuid/start", r.campaignHandler.Start)
	campaigns.Post("/:uuid/pause", r.campaignHandler.Pause)
	campaigns.Post("/:uuid/resume", r.campaignHandler.Resume)
	campaigns.Post("/:uuid/cancel", r.campaignHandler.Cancel)
	campaigns.Post("/:uuid/duplicate", r.campaignHandler.Duplicate)

	messages := api.Group("/messages")
	messages.Post("/instant", r.instantHandler.Send)
	messages.Get("/instant/:uuid", r.instantHandler.GetBatch)

	stats := api.Group("/stats")
	stats.Get("/hourly", r.statsHandler.Hourly)
	stats.Get("/daily", r.statsHandler.Daily)
	stats.Post("/rebuild", r.statsHandler.Rebuild)
}

func (r *FiberRouter) setupMiddleware() {
	r.app.Use(requestid.New(requestid.Config{
		Header: "X-Request-ID",
		Generator: func() string {
			return generateRequestID()
		},
	}))

	r.app.Use(recover.New())

	r.app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	r.app.Use(middleware.Metrics())
}

// Start begins listening on the given address
func (r *FiberRouter) Start(address string) error {
	log.Printf("Starting server on %s", address)
	return r.app.Listen(address)
}

// Shutdown gracefully stops the server
func (r *FiberRouter) Shutdown() error {
	return r.app.Shutdown()
}

// GetApp returns the Fiber app instance
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

// Health check endpoint
func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Service is healthy",
		Data: fiber.Map{
			"status":    "ok",
			"timestamp": utils.UTCNow().Unix(),
			"service":   "messaging-engine",
		},
	})
}

func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	log.Printf("Error %d: %v", code, err)

	requestID := c.Locals("requestid")
	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: "An internal server error occurred",
		Error: dto.ErrorDetail{
			Code: "INTERNAL_ERROR",
			Details: fiber.Map{
				"timestamp":  utils.UTCNow().Unix(),
				"request_id": requestID,
			},
		},
	})
}

// generateRequestID creates a unique request ID
func generateRequestID() string {
	bytes := make([]byte, 8)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
