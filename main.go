// Package main is the entry point for the messaging engine service
package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"github.com/retailops/messaging-engine/app/engine"
	"github.com/retailops/messaging-engine/app/handlers"
	"github.com/retailops/messaging-engine/app/router"
	businessflow "github.com/retailops/messaging-engine/business_flow"
	"github.com/retailops/messaging-engine/config"
	"github.com/retailops/messaging-engine/models"
	"github.com/retailops/messaging-engine/repository"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Application holds the wired components
type Application struct {
	router    router.Router
	server    *fiber.App
	config    *config.Config
	stopFuncs []func()
}

func main() {
	log.Println("Starting messaging engine...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.server.Listen(cfg.Server.Address()); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-sigChan
	log.Println("Shutting down gracefully...")

	for _, fn := range app.stopFuncs {
		fn()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

func initializeApplication(cfg *config.Config) (*Application, error) {
	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("database initialization failed: %w", err)
	}

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Addr(),
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping failed: %w", err)
		}
	}

	// Repositories
	campaignRepo := repository.NewCampaignRepository(db)
	campaignLeadRepo := repository.NewCampaignLeadRepository(db)
	batchRepo := repository.NewInstantBatchRepository(db)
	batchEntryRepo := repository.NewInstantBatchEntryRepository(db)
	leadRepo := repository.NewLeadRepository(db)
	statRepo := repository.NewSendingStatRepository(db)

	// Engine components
	var counterStore engine.CounterStore
	var notifier engine.ProgressNotifier = engine.NoopNotifier{}
	if redisClient != nil {
		counterStore = engine.NewRedisCounterStore(redisClient, "pacer")
		notifier = engine.NewRedisProgressNotifier(redisClient, "engine")
	} else {
		counterStore = engine.NewMemoryCounterStore()
	}

	pacer := engine.NewPacer(counterStore, engine.PacerConfig{
		InstantMinDelay:    cfg.Engine.InstantMinDelay,
		InstantMaxDelay:    cfg.Engine.InstantMaxDelay,
		DefaultHourlyLimit: cfg.Engine.DefaultHourlyLimit,
		DefaultDailyLimit:  cfg.Engine.DefaultDailyLimit,
		WarmUpFactor:       cfg.Engine.WarmUpFactor,
	}, rand.NewSource(time.Now().UnixNano()))

	resolver := engine.NewTemplateResolver(rand.NewSource(time.Now().UnixNano()), cfg.Engine.VaryMessages)
	audienceBuilder := engine.NewAudienceBuilder(leadRepo, rand.NewSource(time.Now().UnixNano()))
	gateway := engine.NewHTTPSessionGateway(cfg.Gateway)
	aggregator := engine.NewAggregator(statRepo, db)

	worker := engine.NewWorker(gateway, pacer, resolver, leadRepo, aggregator, notifier, log.Default(), engine.WorkerConfig{
		SendTimeout:   cfg.Engine.SendTimeout,
		FollowUpDelay: cfg.Engine.FollowUpDelay,
		BranchNames:   cfg.Engine.BranchNames,
	})

	eng := engine.New(campaignRepo, campaignLeadRepo, batchRepo, batchEntryRepo, worker, engine.Config{
		TickInterval: cfg.Engine.TickInterval,
		BatchLimit:   cfg.Engine.BatchLimit,
	})

	var stopFuncs []func()
	stopEngine := eng.Start(context.Background())
	stopFuncs = append(stopFuncs, stopEngine)

	// Business flows
	campaignFlow := businessflow.NewCampaignFlow(campaignRepo, campaignLeadRepo, audienceBuilder, eng, db)
	instantFlow := businessflow.NewInstantFlow(batchRepo, batchEntryRepo, audienceBuilder, eng, db)
	statsFlow := businessflow.NewStatsFlow(statRepo, aggregator)

	// HTTP surface
	campaignHandler := handlers.NewCampaignHandler(campaignFlow)
	instantHandler := handlers.NewInstantHandler(instantFlow)
	statsHandler := handlers.NewStatsHandler(statsFlow)

	appRouter := router.NewFiberRouter(campaignHandler, instantHandler, statsHandler)

	return &Application{
		router:    appRouter,
		server:    appRouter.GetApp(),
		config:    cfg,
		stopFuncs: stopFuncs,
	}, nil
}

func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := db.AutoMigrate(
		&models.Campaign{},
		&models.CampaignLead{},
		&models.InstantBatch{},
		&models.InstantBatchEntry{},
		&models.SendingStat{},
	); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}
