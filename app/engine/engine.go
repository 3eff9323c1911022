package engine

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/retailops/messaging-engine/models"
	"github.com/retailops/messaging-engine/repository"
)

// Config carries the engine loop tunables
type Config struct {
	TickInterval time.Duration
	BatchLimit   int
}

// Engine owns the delivery loop: every tick it promotes due scheduled
// campaigns, then hands each running campaign and unfinished instant batch
// to a send worker. At most one worker drains a given branch session at a
// time; runs sharing a session wait for the next tick.
type Engine struct {
	campaigns     repository.CampaignRepository
	campaignLeads repository.CampaignLeadRepository
	batches       repository.InstantBatchRepository
	batchEntries  repository.InstantBatchEntryRepository
	worker        *Worker
	cfg           Config

	logger  *log.Logger
	logFile *os.File

	runCtx context.Context

	mu   sync.Mutex
	busy map[int64]bool
}

// New creates the engine. The logger writes to both stdout and a persistent
// file under data/ (or /data in containers).
func New(
	campaigns repository.CampaignRepository,
	campaignLeads repository.CampaignLeadRepository,
	batches repository.InstantBatchRepository,
	batchEntries repository.InstantBatchEntryRepository,
	worker *Worker,
	cfg Config,
) *Engine {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 30 * time.Second
	}
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = 100
	}
	e := &Engine{
		campaigns:     campaigns,
		campaignLeads: campaignLeads,
		batches:       batches,
		batchEntries:  batchEntries,
		worker:        worker,
		cfg:           cfg,
		busy:          make(map[int64]bool),
	}
	if err := e.initLogger(); err != nil {
		e.logger = log.New(os.Stdout, "engine ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
		e.logger.Printf("engine: file logging unavailable: %v", err)
	}
	return e
}

func (e *Engine) initLogger() error {
	candidates := []string{
		filepath.Join("data"),
		"/data",
	}
	for _, dir := range candidates {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			continue
		}
		f, err := os.OpenFile(filepath.Join(dir, "engine.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			continue
		}
		e.logFile = f
		mw := io.MultiWriter(os.Stdout, f)
		e.logger = log.New(mw, "engine ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
		return nil
	}
	return fmt.Errorf("could not create engine log file in any candidate directory")
}

// Logger exposes the engine log sink so sibling components share one file
func (e *Engine) Logger() *log.Logger {
	return e.logger
}

// Start launches the engine loop in a background goroutine and returns a
// stop function. Interrupted sends from a previous process are reset to
// pending before the first tick.
func (e *Engine) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)
	e.runCtx = ctx

	go func() {
		e.recover(ctx)

		ticker := time.NewTicker(e.cfg.TickInterval)
		defer ticker.Stop()

		e.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				e.Close()
				return
			case <-ticker.C:
				e.runOnce(ctx)
			}
		}
	}()

	return cancel
}

// Close releases the log file
func (e *Engine) Close() {
	if e.logFile != nil {
		_ = e.logFile.Close()
		e.logFile = nil
	}
}

// recover resets rows stuck in sending after a crash. Those messages may or
// may not have reached the phone; re-queueing them is the documented
// trade-off of crash recovery. Paused campaigns are swept too: a crash can
// land between the pause write and the in-flight outcome write, and the
// stranded row must be pending again by the time the campaign resumes.
func (e *Engine) recover(ctx context.Context) {
	for _, status := range []models.CampaignStatus{models.CampaignStatusRunning, models.CampaignStatusPaused} {
		interrupted, err := e.campaigns.ListByStatus(ctx, status, e.cfg.BatchLimit)
		if err != nil {
			e.logger.Printf("engine: recovery campaign scan failed: %v", err)
			continue
		}
		for _, c := range interrupted {
			n, err := e.campaignLeads.ResetSending(ctx, c.ID)
			if err != nil {
				e.logger.Printf("engine: recovery reset failed for campaign %s: %v", c.UUID, err)
				continue
			}
			if n > 0 {
				e.logger.Printf("engine: reset %d interrupted sends of campaign %s", n, c.UUID)
			}
		}
	}

	unfinished, err := e.batches.ListUnfinished(ctx, e.cfg.BatchLimit)
	if err != nil {
		e.logger.Printf("engine: recovery batch scan failed: %v", err)
	}
	for _, b := range unfinished {
		n, err := e.batchEntries.ResetSending(ctx, b.ID)
		if err != nil {
			e.logger.Printf("engine: recovery reset failed for batch %s: %v", b.UUID, err)
			continue
		}
		if n > 0 {
			e.logger.Printf("engine: reset %d interrupted sends of batch %s", n, b.UUID)
		}
	}
}

func (e *Engine) runOnce(ctx context.Context) {
	e.promoteScheduled(ctx)

	running, err := e.campaigns.ListByStatus(ctx, models.CampaignStatusRunning, e.cfg.BatchLimit)
	if err != nil {
		e.logger.Printf("engine: list running campaigns failed: %v", err)
		return
	}
	for _, c := range running {
		e.DispatchCampaign(ctx, c)
	}

	unfinished, err := e.batches.ListUnfinished(ctx, e.cfg.BatchLimit)
	if err != nil {
		e.logger.Printf("engine: list unfinished batches failed: %v", err)
		return
	}
	for _, b := range unfinished {
		e.DispatchBatch(ctx, b)
	}
}

// promoteScheduled flips due scheduled campaigns to running
func (e *Engine) promoteScheduled(ctx context.Context) {
	due, err := e.campaigns.ListDueScheduled(ctx, time.Now().UTC(), e.cfg.BatchLimit)
	if err != nil {
		e.logger.Printf("engine: list due campaigns failed: %v", err)
		return
	}
	for _, c := range due {
		moved, err := e.campaigns.UpdateStatus(ctx, c.ID, models.CampaignStatusScheduled, models.CampaignStatusRunning)
		if err != nil {
			e.logger.Printf("engine: promote campaign %s failed: %v", c.UUID, err)
			continue
		}
		if moved {
			e.logger.Printf("engine: campaign %s promoted to running", c.UUID)
		}
	}
}

// DispatchCampaign starts a worker for the campaign unless its session is
// already being drained. Safe to call from HTTP flows for an immediate kick.
func (e *Engine) DispatchCampaign(ctx context.Context, c *models.Campaign) {
	if !e.acquire(c.BranchID) {
		return
	}
	job := newCampaignJob(c, e.campaigns, e.campaignLeads)
	go e.drain(ctx, c.BranchID, job)
}

// DispatchBatch starts a worker for the instant batch unless its session is
// already being drained.
func (e *Engine) DispatchBatch(ctx context.Context, b *models.InstantBatch) {
	if !e.acquire(b.BranchID) {
		return
	}
	job := newInstantJob(b, e.batches, e.batchEntries)
	go e.drain(ctx, b.BranchID, job)
}

func (e *Engine) drain(ctx context.Context, sessionID int64, job sendJob) {
	defer e.release(sessionID)

	err := e.worker.Run(ctx, job)
	switch {
	case err == nil:
	case err == ErrQuotaExhausted:
		e.logger.Printf("engine: %s %s parked, session %d quota exhausted", job.Kind(), job.Ref(), sessionID)
	case err == ErrSessionOffline:
		e.logger.Printf("engine: %s %s parked, session %d offline", job.Kind(), job.Ref(), sessionID)
	case ctx.Err() != nil:
	default:
		e.logger.Printf("engine: %s %s aborted: %v", job.Kind(), job.Ref(), err)
	}
}

// KickCampaign dispatches a campaign on the engine's own lifecycle context
// so the worker outlives the HTTP request that triggered it. No-op before
// Start.
func (e *Engine) KickCampaign(c *models.Campaign) {
	if e.runCtx == nil {
		return
	}
	e.DispatchCampaign(e.runCtx, c)
}

// KickBatch dispatches an instant batch on the engine's lifecycle context
func (e *Engine) KickBatch(b *models.InstantBatch) {
	if e.runCtx == nil {
		return
	}
	e.DispatchBatch(e.runCtx, b)
}

func (e *Engine) acquire(sessionID int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.busy[sessionID] {
		return false
	}
	e.busy[sessionID] = true
	return true
}

func (e *Engine) release(sessionID int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.busy, sessionID)
}
