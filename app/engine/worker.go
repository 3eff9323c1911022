package engine

import (
	"context"
	"fmt"
	"log"
	"path"
	"strings"
	"time"

	"github.com/retailops/messaging-engine/models"
	"github.com/retailops/messaging-engine/repository"
	"github.com/retailops/messaging-engine/utils"
)

const errorDetailMax = 500

// rosterEntry is the worker's view of one recipient row, independent of
// whether it came from a campaign roster or an instant batch.
type rosterEntry struct {
	ID        uint
	LeadID    int64
	Phone     string
	Name      string
	SendOrder int
}

// sendJob abstracts the two run kinds the worker can drain. Implementations
// wrap the repositories; the worker itself never touches gorm.
type sendJob interface {
	Kind() string
	Ref() string
	Owner() uint
	Session() int64
	Pacing() models.PacingConfig
	MessageType() models.MessageType
	Body() string
	MediaPath() string
	MediaCaption() string

	// Live re-reads the run and reports whether the worker should keep
	// draining it. A false return with nil error is a clean stop (pause or
	// cancel observed).
	Live(ctx context.Context) (bool, error)
	NextPending(ctx context.Context) (*rosterEntry, error)
	MarkSending(ctx context.Context, entryID uint) (bool, error)
	MarkSent(ctx context.Context, entryID uint, at time.Time) error
	MarkFailed(ctx context.Context, entryID uint, detail string, at time.Time) error
	IncrementCounters(ctx context.Context, sent, failed int) error
	Snapshot() (sent, failed, total int)

	// Complete transitions the run to its success terminal status
	Complete(ctx context.Context) error
	// Fail transitions the run to failed. Only datastore breakage gets here;
	// per-recipient gateway errors never do.
	Fail(ctx context.Context) error
}

// WorkerConfig carries the per-dispatch tunables
type WorkerConfig struct {
	SendTimeout   time.Duration
	FollowUpDelay time.Duration
	BranchNames   map[int64]string
}

// Worker drains one run at a time: pick the next pending recipient, reserve
// quota, claim the row, dispatch, record the outcome, sleep, repeat.
type Worker struct {
	gateway  SessionGateway
	pacer    *Pacer
	resolver *TemplateResolver
	leads    repository.LeadRepository
	stats    StatsRecorder
	notifier ProgressNotifier
	logger   *log.Logger
	cfg      WorkerConfig
}

// NewWorker creates a send worker
func NewWorker(
	gateway SessionGateway,
	pacer *Pacer,
	resolver *TemplateResolver,
	leads repository.LeadRepository,
	stats StatsRecorder,
	notifier ProgressNotifier,
	logger *log.Logger,
	cfg WorkerConfig,
) *Worker {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 90 * time.Second
	}
	if cfg.FollowUpDelay <= 0 {
		cfg.FollowUpDelay = 2 * time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Worker{
		gateway:  gateway,
		pacer:    pacer,
		resolver: resolver,
		leads:    leads,
		stats:    stats,
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
	}
}

// Run drains the job until its roster is empty, its quota is spent, its
// session drops, or the run is paused/cancelled. Returns ErrQuotaExhausted
// or ErrSessionOffline for the two parked outcomes; both leave the run
// resumable on the next scheduler tick.
func (w *Worker) Run(ctx context.Context, job sendJob) error {
	metricActiveWorkers.Inc()
	defer metricActiveWorkers.Dec()

	sent, failed, total := job.Snapshot()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		live, err := job.Live(ctx)
		if err != nil {
			return fmt.Errorf("failed to refresh %s %s: %w", job.Kind(), job.Ref(), err)
		}
		if !live {
			w.logger.Printf("%s %s no longer running, parking worker", job.Kind(), job.Ref())
			return nil
		}

		connected, err := w.gateway.IsConnected(ctx, job.Session())
		if err != nil {
			w.logger.Printf("session %d status check failed for %s %s: %v", job.Session(), job.Kind(), job.Ref(), err)
			metricSessionOffline.Inc()
			return ErrSessionOffline
		}
		if !connected {
			metricSessionOffline.Inc()
			return ErrSessionOffline
		}

		entry, err := job.NextPending(ctx)
		if err != nil {
			w.failJob(ctx, job)
			return fmt.Errorf("failed to fetch next recipient of %s %s: %w", job.Kind(), job.Ref(), err)
		}
		if entry == nil {
			if err := job.Complete(ctx); err != nil {
				return fmt.Errorf("failed to complete %s %s: %w", job.Kind(), job.Ref(), err)
			}
			w.notifyCompleted(ctx, job, sent, failed, total)
			w.logger.Printf("%s %s completed: %d sent, %d failed, %d total", job.Kind(), job.Ref(), sent, failed, total)
			return nil
		}

		ok, err := w.pacer.Reserve(ctx, job.Session(), job.Pacing())
		if err != nil {
			return fmt.Errorf("failed to reserve quota for %s %s: %w", job.Kind(), job.Ref(), err)
		}
		if !ok {
			metricQuotaDeferrals.Inc()
			return ErrQuotaExhausted
		}

		claimed, err := job.MarkSending(ctx, entry.ID)
		if err != nil {
			w.failJob(ctx, job)
			return fmt.Errorf("failed to claim recipient %d of %s %s: %w", entry.ID, job.Kind(), job.Ref(), err)
		}
		if !claimed {
			// the reserved slot was never spent; hand it back
			if err := w.pacer.Release(ctx, job.Session()); err != nil {
				w.logger.Printf("failed to release quota slot for %s %s: %v", job.Kind(), job.Ref(), err)
			}
			continue
		}

		sendErr := w.dispatch(ctx, job, entry)
		now := utils.UTCNow()
		if sendErr == nil {
			if err := job.MarkSent(ctx, entry.ID, now); err != nil {
				w.failJob(ctx, job)
				return fmt.Errorf("failed to record sent recipient %d of %s %s: %w", entry.ID, job.Kind(), job.Ref(), err)
			}
			if err := job.IncrementCounters(ctx, 1, 0); err != nil {
				w.failJob(ctx, job)
				return fmt.Errorf("failed to bump counters of %s %s: %w", job.Kind(), job.Ref(), err)
			}
			sent++
			metricMessagesSent.WithLabelValues(job.Kind()).Inc()
		} else {
			detail := utils.Truncate(sendErr.Error(), errorDetailMax)
			if err := job.MarkFailed(ctx, entry.ID, detail, now); err != nil {
				w.failJob(ctx, job)
				return fmt.Errorf("failed to record failed recipient %d of %s %s: %w", entry.ID, job.Kind(), job.Ref(), err)
			}
			if err := job.IncrementCounters(ctx, 0, 1); err != nil {
				w.failJob(ctx, job)
				return fmt.Errorf("failed to bump counters of %s %s: %w", job.Kind(), job.Ref(), err)
			}
			failed++
			metricMessagesFailed.WithLabelValues(job.Kind()).Inc()
			w.logger.Printf("send to %s failed for %s %s: %v", entry.Phone, job.Kind(), job.Ref(), sendErr)
		}

		if err := w.stats.Recorded(ctx, job.Session(), sendErr == nil); err != nil {
			w.logger.Printf("failed to record sending stats for %s %s: %v", job.Kind(), job.Ref(), err)
		}
		w.notifyProgress(ctx, job, entry, sendErr == nil, sent, failed, total)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.pacer.NextDelay(job.Pacing())):
		}
	}
}

// dispatch resolves the message for the recipient and pushes it through the
// gateway. Media runs carry the attachment first; a distinct non-empty body
// follows as a second text message after a short pause.
func (w *Worker) dispatch(ctx context.Context, job sendJob, entry *rosterEntry) error {
	rc := w.recipientContext(ctx, job, entry)

	start := time.Now()
	defer func() {
		metricSendDuration.Observe(time.Since(start).Seconds())
	}()

	sendCtx, cancel := context.WithTimeout(ctx, w.cfg.SendTimeout)
	defer cancel()

	if job.MessageType() == models.MessageTypeMedia {
		media := Media{
			Type:    mediaTypeFor(job.MediaPath()),
			Path:    job.MediaPath(),
			Caption: w.resolver.Resolve(job.MediaCaption(), rc),
		}
		if err := w.gateway.SendMedia(sendCtx, job.Session(), entry.Phone, media); err != nil {
			return err
		}

		body := job.Body()
		if body == "" || body == job.MediaCaption() {
			return nil
		}
		select {
		case <-sendCtx.Done():
			return sendCtx.Err()
		case <-time.After(w.cfg.FollowUpDelay):
		}
		return w.gateway.SendMessage(sendCtx, job.Session(), entry.Phone, w.resolver.Resolve(body, rc))
	}

	return w.gateway.SendMessage(sendCtx, job.Session(), entry.Phone, w.resolver.Resolve(job.Body(), rc))
}

// recipientContext enriches the roster row with directory attributes. A
// directory miss only costs the optional placeholders, never the send.
func (w *Worker) recipientContext(ctx context.Context, job sendJob, entry *rosterEntry) RecipientContext {
	rc := RecipientContext{
		Name:   entry.Name,
		Phone:  entry.Phone,
		Branch: w.cfg.BranchNames[job.Session()],
	}
	leads, err := w.leads.ByIDs(ctx, []int64{entry.LeadID})
	if err != nil {
		w.logger.Printf("lead lookup failed for %d: %v", entry.LeadID, err)
		return rc
	}
	if len(leads) == 1 {
		lead := leads[0]
		if lead.Company != nil {
			rc.Company = *lead.Company
		}
		if lead.City != nil {
			rc.City = *lead.City
		}
	}
	return rc
}

func (w *Worker) failJob(ctx context.Context, job sendJob) {
	if err := job.Fail(ctx); err != nil {
		w.logger.Printf("failed to mark %s %s as failed: %v", job.Kind(), job.Ref(), err)
	}
}

func (w *Worker) notifyProgress(ctx context.Context, job sendJob, entry *rosterEntry, succeeded bool, sent, failed, total int) {
	status := models.EntryStatusFailed
	if succeeded {
		status = models.EntryStatusSent
	}
	event := ProgressEvent{
		Kind:        job.Kind(),
		Ref:         job.Ref(),
		OwnerUserID: job.Owner(),
		BranchID:    job.Session(),
		LeadID:      entry.LeadID,
		Phone:       entry.Phone,
		Index:       entry.SendOrder,
		Status:      status.String(),
		Succeeded:   succeeded,
		SentCount:   sent,
		FailedCount: failed,
		TotalLeads:  total,
	}
	if err := w.notifier.Progress(ctx, event); err != nil {
		w.logger.Printf("failed to publish progress for %s %s: %v", job.Kind(), job.Ref(), err)
	}
}

func (w *Worker) notifyCompleted(ctx context.Context, job sendJob, sent, failed, total int) {
	event := CompletionEvent{
		Kind:        job.Kind(),
		Ref:         job.Ref(),
		OwnerUserID: job.Owner(),
		Status:      "completed",
		SentCount:   sent,
		FailedCount: failed,
		TotalLeads:  total,
	}
	if err := w.notifier.Completed(ctx, event); err != nil {
		w.logger.Printf("failed to publish completion for %s %s: %v", job.Kind(), job.Ref(), err)
	}
}

func mediaTypeFor(mediaPath string) MediaType {
	switch strings.ToLower(path.Ext(mediaPath)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return MediaTypeImage
	default:
		return MediaTypeDocument
	}
}

// campaignJob adapts a running campaign to the worker loop
type campaignJob struct {
	campaign  *models.Campaign
	campaigns repository.CampaignRepository
	entries   repository.CampaignLeadRepository
}

func newCampaignJob(campaign *models.Campaign, campaigns repository.CampaignRepository, entries repository.CampaignLeadRepository) *campaignJob {
	return &campaignJob{campaign: campaign, campaigns: campaigns, entries: entries}
}

func (j *campaignJob) Kind() string                    { return "campaign" }
func (j *campaignJob) Ref() string                     { return j.campaign.UUID.String() }
func (j *campaignJob) Owner() uint                     { return j.campaign.OwnerUserID }
func (j *campaignJob) Session() int64                  { return j.campaign.BranchID }
func (j *campaignJob) Pacing() models.PacingConfig     { return j.campaign.Pacing }
func (j *campaignJob) MessageType() models.MessageType { return j.campaign.MessageType }
func (j *campaignJob) Body() string                    { return j.campaign.Message }

func (j *campaignJob) MediaPath() string {
	if j.campaign.MediaPath == nil {
		return ""
	}
	return *j.campaign.MediaPath
}

func (j *campaignJob) MediaCaption() string {
	if j.campaign.MediaCaption == nil {
		return ""
	}
	return *j.campaign.MediaCaption
}

func (j *campaignJob) Live(ctx context.Context) (bool, error) {
	fresh, err := j.campaigns.ByID(ctx, j.campaign.ID)
	if err != nil {
		return false, err
	}
	if fresh == nil {
		return false, nil
	}
	j.campaign = fresh
	return fresh.Status == models.CampaignStatusRunning, nil
}

func (j *campaignJob) NextPending(ctx context.Context) (*rosterEntry, error) {
	row, err := j.entries.NextPending(ctx, j.campaign.ID)
	if err != nil || row == nil {
		return nil, err
	}
	return &rosterEntry{ID: row.ID, LeadID: row.LeadID, Phone: row.Phone, Name: row.Name, SendOrder: row.SendOrder}, nil
}

func (j *campaignJob) MarkSending(ctx context.Context, entryID uint) (bool, error) {
	return j.entries.MarkSending(ctx, entryID)
}

func (j *campaignJob) MarkSent(ctx context.Context, entryID uint, at time.Time) error {
	return j.entries.MarkSent(ctx, entryID, at)
}

func (j *campaignJob) MarkFailed(ctx context.Context, entryID uint, detail string, at time.Time) error {
	return j.entries.MarkFailed(ctx, entryID, detail, at)
}

func (j *campaignJob) IncrementCounters(ctx context.Context, sent, failed int) error {
	return j.campaigns.IncrementCounters(ctx, j.campaign.ID, sent, failed)
}

func (j *campaignJob) Snapshot() (int, int, int) {
	return j.campaign.SentCount, j.campaign.FailedCount, j.campaign.TotalLeads
}

func (j *campaignJob) Complete(ctx context.Context) error {
	_, err := j.campaigns.UpdateStatus(ctx, j.campaign.ID, models.CampaignStatusRunning, models.CampaignStatusCompleted)
	return err
}

func (j *campaignJob) Fail(ctx context.Context) error {
	_, err := j.campaigns.UpdateStatus(ctx, j.campaign.ID, models.CampaignStatusRunning, models.CampaignStatusFailed)
	return err
}

// instantJob adapts an instant batch to the worker loop. Batches use the
// engine's default pacing and cannot be paused, only observed to finish.
type instantJob struct {
	batch   *models.InstantBatch
	batches repository.InstantBatchRepository
	entries repository.InstantBatchEntryRepository
}

func newInstantJob(batch *models.InstantBatch, batches repository.InstantBatchRepository, entries repository.InstantBatchEntryRepository) *instantJob {
	return &instantJob{batch: batch, batches: batches, entries: entries}
}

func (j *instantJob) Kind() string                    { return "instant" }
func (j *instantJob) Ref() string                     { return j.batch.UUID.String() }
func (j *instantJob) Owner() uint                     { return j.batch.OwnerUserID }
func (j *instantJob) Session() int64                  { return j.batch.BranchID }
func (j *instantJob) Pacing() models.PacingConfig     { return models.PacingConfig{} }
func (j *instantJob) MessageType() models.MessageType { return j.batch.MessageType }
func (j *instantJob) Body() string                    { return j.batch.Message }

func (j *instantJob) MediaPath() string {
	if j.batch.MediaPath == nil {
		return ""
	}
	return *j.batch.MediaPath
}

func (j *instantJob) MediaCaption() string {
	if j.batch.MediaCaption == nil {
		return ""
	}
	return *j.batch.MediaCaption
}

func (j *instantJob) Live(ctx context.Context) (bool, error) {
	fresh, err := j.batches.ByID(ctx, j.batch.ID)
	if err != nil {
		return false, err
	}
	if fresh == nil {
		return false, nil
	}
	j.batch = fresh
	return fresh.Status == models.BatchStatusRunning, nil
}

func (j *instantJob) NextPending(ctx context.Context) (*rosterEntry, error) {
	row, err := j.entries.NextPending(ctx, j.batch.ID)
	if err != nil || row == nil {
		return nil, err
	}
	return &rosterEntry{ID: row.ID, LeadID: row.LeadID, Phone: row.Phone, Name: row.Name, SendOrder: row.SendOrder}, nil
}

func (j *instantJob) MarkSending(ctx context.Context, entryID uint) (bool, error) {
	return j.entries.MarkSending(ctx, entryID)
}

func (j *instantJob) MarkSent(ctx context.Context, entryID uint, at time.Time) error {
	return j.entries.MarkSent(ctx, entryID, at)
}

func (j *instantJob) MarkFailed(ctx context.Context, entryID uint, detail string, at time.Time) error {
	return j.entries.MarkFailed(ctx, entryID, detail, at)
}

func (j *instantJob) IncrementCounters(ctx context.Context, sent, failed int) error {
	return j.batches.IncrementCounters(ctx, j.batch.ID, sent, failed)
}

func (j *instantJob) Snapshot() (int, int, int) {
	return j.batch.SentCount, j.batch.FailedCount, j.batch.TotalLeads
}

func (j *instantJob) Complete(ctx context.Context) error {
	return j.batches.UpdateStatus(ctx, j.batch.ID, models.BatchStatusCompleted)
}

func (j *instantJob) Fail(ctx context.Context) error {
	return j.batches.UpdateStatus(ctx, j.batch.ID, models.BatchStatusFailed)
}
