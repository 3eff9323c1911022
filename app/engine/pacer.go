package engine

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/retailops/messaging-engine/models"
	"github.com/retailops/messaging-engine/utils"
)

// CounterStore tracks send attempts per branch session. The hourly quota
// uses a true rolling 60-minute window, the daily quota a calendar-day
// counter (UTC).
type CounterStore interface {
	Record(ctx context.Context, sessionID int64) error
	// Forget drops the most recent recorded attempt, undoing a Record
	// whose send never happened.
	Forget(ctx context.Context, sessionID int64) error
	RollingCount(ctx context.Context, sessionID int64, window time.Duration) (int64, error)
	DayCount(ctx context.Context, sessionID int64) (int64, error)
}

// PacerConfig holds the engine-level pacing tunables applied when a job
// carries no pacing of its own (instant batches) and the warm-up factor.
type PacerConfig struct {
	InstantMinDelay    time.Duration
	InstantMaxDelay    time.Duration
	DefaultHourlyLimit int
	DefaultDailyLimit  int
	WarmUpFactor       float64
}

// Quota is the remaining send budget of a session
type Quota struct {
	Hourly int64 `json:"hourly"`
	Daily  int64 `json:"daily"`
}

// Pacer enforces per-session hourly/daily quotas and the randomized
// inter-message delay window. The check-then-record step is serialized per
// session so two campaigns sharing a session cannot both consume the last
// quota slot.
type Pacer struct {
	store CounterStore
	cfg   PacerConfig

	mu       sync.Mutex
	sessions map[int64]*sync.Mutex

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewPacer creates a pacer over the given counter store
func NewPacer(store CounterStore, cfg PacerConfig, src rand.Source) *Pacer {
	if cfg.WarmUpFactor <= 0 || cfg.WarmUpFactor > 1 {
		cfg.WarmUpFactor = 0.5
	}
	return &Pacer{
		store:    store,
		cfg:      cfg,
		sessions: make(map[int64]*sync.Mutex),
		rng:      rand.New(src),
	}
}

func (p *Pacer) sessionLock(sessionID int64) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()

	m, ok := p.sessions[sessionID]
	if !ok {
		m = &sync.Mutex{}
		p.sessions[sessionID] = m
	}
	return m
}

// effectiveLimits applies campaign pacing, engine defaults and the warm-up
// factor. Warm-up never drops a limit below one send.
func (p *Pacer) effectiveLimits(pacing models.PacingConfig) (int64, int64) {
	hourly := pacing.HourlyLimit
	daily := pacing.DailyLimit
	if hourly <= 0 {
		hourly = p.cfg.DefaultHourlyLimit
	}
	if daily <= 0 {
		daily = p.cfg.DefaultDailyLimit
	}
	if pacing.WarmUp {
		hourly = int(float64(hourly) * p.cfg.WarmUpFactor)
		daily = int(float64(daily) * p.cfg.WarmUpFactor)
		if hourly < 1 {
			hourly = 1
		}
		if daily < 1 {
			daily = 1
		}
	}
	return int64(hourly), int64(daily)
}

// Reserve consumes one quota slot for the session, returning false when
// either limit is spent. Callers must only dispatch after a true return.
func (p *Pacer) Reserve(ctx context.Context, sessionID int64, pacing models.PacingConfig) (bool, error) {
	lock := p.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	hourlyLimit, dailyLimit := p.effectiveLimits(pacing)

	hourly, err := p.store.RollingCount(ctx, sessionID, time.Hour)
	if err != nil {
		return false, fmt.Errorf("failed to read hourly counter: %w", err)
	}
	if hourly >= hourlyLimit {
		return false, nil
	}

	daily, err := p.store.DayCount(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to read daily counter: %w", err)
	}
	if daily >= dailyLimit {
		return false, nil
	}

	if err := p.store.Record(ctx, sessionID); err != nil {
		return false, fmt.Errorf("failed to record send: %w", err)
	}
	return true, nil
}

// Release returns a reserved slot that was never spent on a send, such as
// when the recipient claim is lost to a concurrent state change.
func (p *Pacer) Release(ctx context.Context, sessionID int64) error {
	lock := p.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	if err := p.store.Forget(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to release quota slot: %w", err)
	}
	return nil
}

// QuotaRemaining reports the remaining hourly/daily budget for a session
func (p *Pacer) QuotaRemaining(ctx context.Context, sessionID int64, pacing models.PacingConfig) (Quota, error) {
	hourlyLimit, dailyLimit := p.effectiveLimits(pacing)

	hourly, err := p.store.RollingCount(ctx, sessionID, time.Hour)
	if err != nil {
		return Quota{}, fmt.Errorf("failed to read hourly counter: %w", err)
	}
	daily, err := p.store.DayCount(ctx, sessionID)
	if err != nil {
		return Quota{}, fmt.Errorf("failed to read daily counter: %w", err)
	}

	q := Quota{Hourly: hourlyLimit - hourly, Daily: dailyLimit - daily}
	if q.Hourly < 0 {
		q.Hourly = 0
	}
	if q.Daily < 0 {
		q.Daily = 0
	}
	return q, nil
}

// NextDelay picks a random delay inside the campaign window, or inside the
// fixed instant window when the pacing carries no delay bounds.
func (p *Pacer) NextDelay(pacing models.PacingConfig) time.Duration {
	minDelay := time.Duration(pacing.MinDelaySeconds) * time.Second
	maxDelay := time.Duration(pacing.MaxDelaySeconds) * time.Second
	if minDelay <= 0 && maxDelay <= 0 {
		minDelay = p.cfg.InstantMinDelay
		maxDelay = p.cfg.InstantMaxDelay
	}
	if maxDelay <= minDelay {
		return minDelay
	}

	p.rngMu.Lock()
	defer p.rngMu.Unlock()
	return minDelay + time.Duration(p.rng.Int63n(int64(maxDelay-minDelay)))
}

// RedisCounterStore keeps per-session send timestamps in a sorted set (for
// the rolling hour) and a calendar-day counter key. Keys expire on their
// own so the store needs no sweeper.
type RedisCounterStore struct {
	client *redis.Client
	prefix string
}

// NewRedisCounterStore creates a redis-backed counter store
func NewRedisCounterStore(client *redis.Client, prefix string) *RedisCounterStore {
	if prefix == "" {
		prefix = "pacer"
	}
	return &RedisCounterStore{client: client, prefix: prefix}
}

func (s *RedisCounterStore) rollingKey(sessionID int64) string {
	return fmt.Sprintf("%s:session:%d:sends", s.prefix, sessionID)
}

func (s *RedisCounterStore) dayKey(sessionID int64, day string) string {
	return fmt.Sprintf("%s:session:%d:day:%s", s.prefix, sessionID, day)
}

// Record appends one send attempt at the current time
func (s *RedisCounterStore) Record(ctx context.Context, sessionID int64) error {
	now := utils.UTCNow()
	member := fmt.Sprintf("%d", now.UnixNano())

	pipe := s.client.TxPipeline()
	rk := s.rollingKey(sessionID)
	pipe.ZAdd(ctx, rk, redis.Z{Score: float64(now.UnixNano()), Member: member})
	pipe.Expire(ctx, rk, 2*time.Hour)

	dk := s.dayKey(sessionID, now.Format(models.StatDateLayout))
	pipe.Incr(ctx, dk)
	pipe.Expire(ctx, dk, 25*time.Hour)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record send in redis: %w", err)
	}
	return nil
}

// Forget removes the newest recorded attempt and rolls the day counter back
func (s *RedisCounterStore) Forget(ctx context.Context, sessionID int64) error {
	now := utils.UTCNow()

	pipe := s.client.TxPipeline()
	pipe.ZPopMax(ctx, s.rollingKey(sessionID), 1)
	pipe.Decr(ctx, s.dayKey(sessionID, now.Format(models.StatDateLayout)))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to forget send in redis: %w", err)
	}
	return nil
}

// RollingCount returns the number of sends inside the trailing window
func (s *RedisCounterStore) RollingCount(ctx context.Context, sessionID int64, window time.Duration) (int64, error) {
	now := utils.UTCNow()
	cutoff := now.Add(-window).UnixNano()
	rk := s.rollingKey(sessionID)

	pipe := s.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, rk, "-inf", fmt.Sprintf("%d", cutoff))
	card := pipe.ZCard(ctx, rk)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to read rolling counter from redis: %w", err)
	}
	return card.Val(), nil
}

// DayCount returns the calendar-day counter for today (UTC)
func (s *RedisCounterStore) DayCount(ctx context.Context, sessionID int64) (int64, error) {
	dk := s.dayKey(sessionID, utils.UTCNow().Format(models.StatDateLayout))
	n, err := s.client.Get(ctx, dk).Int64()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read daily counter from redis: %w", err)
	}
	return n, nil
}

// MemoryCounterStore is an in-process counter store used in tests and as a
// fallback when no cache is configured. Now is swappable so tests can roll
// the clock forward.
type MemoryCounterStore struct {
	mu    sync.Mutex
	sends map[int64][]time.Time

	Now func() time.Time
}

// NewMemoryCounterStore creates an in-memory counter store
func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{
		sends: make(map[int64][]time.Time),
		Now:   utils.UTCNow,
	}
}

// Record appends one send attempt at the current time
func (s *MemoryCounterStore) Record(ctx context.Context, sessionID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sends[sessionID] = append(s.sends[sessionID], s.Now())
	return nil
}

// Forget removes the newest recorded attempt
func (s *MemoryCounterStore) Forget(ctx context.Context, sessionID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ts := s.sends[sessionID]; len(ts) > 0 {
		s.sends[sessionID] = ts[:len(ts)-1]
	}
	return nil
}

// RollingCount returns the number of sends inside the trailing window
func (s *MemoryCounterStore) RollingCount(ctx context.Context, sessionID int64, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.Now().Add(-window)
	var n int64
	for _, t := range s.sends[sessionID] {
		if t.After(cutoff) {
			n++
		}
	}
	return n, nil
}

// DayCount returns the calendar-day counter for today
func (s *MemoryCounterStore) DayCount(ctx context.Context, sessionID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	day := s.Now().Format(models.StatDateLayout)
	var n int64
	for _, t := range s.sends[sessionID] {
		if t.Format(models.StatDateLayout) == day {
			n++
		}
	}
	return n, nil
}
