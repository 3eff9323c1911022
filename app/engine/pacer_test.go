package engine

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailops/messaging-engine/models"
)

func testPacerConfig() PacerConfig {
	return PacerConfig{
		InstantMinDelay:    5 * time.Second,
		InstantMaxDelay:    15 * time.Second,
		DefaultHourlyLimit: 40,
		DefaultDailyLimit:  300,
		WarmUpFactor:       0.5,
	}
}

func TestPacerReserveHourlyLimit(t *testing.T) {
	store := NewMemoryCounterStore()
	p := NewPacer(store, testPacerConfig(), rand.NewSource(1))
	ctx := context.Background()

	pacing := models.PacingConfig{HourlyLimit: 3, DailyLimit: 100}
	for i := 0; i < 3; i++ {
		ok, err := p.Reserve(ctx, 1, pacing)
		require.NoError(t, err)
		assert.True(t, ok, "send %d should pass", i+1)
	}

	ok, err := p.Reserve(ctx, 1, pacing)
	require.NoError(t, err)
	assert.False(t, ok, "fourth send inside the hour should be refused")
}

func TestPacerRollingWindowFreesOldSends(t *testing.T) {
	store := NewMemoryCounterStore()
	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	store.Now = func() time.Time { return now }

	p := NewPacer(store, testPacerConfig(), rand.NewSource(1))
	ctx := context.Background()
	pacing := models.PacingConfig{HourlyLimit: 2, DailyLimit: 100}

	ok, err := p.Reserve(ctx, 1, pacing)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = p.Reserve(ctx, 1, pacing)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = p.Reserve(ctx, 1, pacing)
	require.NoError(t, err)
	require.False(t, ok)

	// 61 minutes later the window has rolled past both sends
	now = now.Add(61 * time.Minute)
	ok, err = p.Reserve(ctx, 1, pacing)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPacerDailyLimitOutlastsTheHour(t *testing.T) {
	store := NewMemoryCounterStore()
	now := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	store.Now = func() time.Time { return now }

	p := NewPacer(store, testPacerConfig(), rand.NewSource(1))
	ctx := context.Background()
	pacing := models.PacingConfig{HourlyLimit: 100, DailyLimit: 3}

	for i := 0; i < 3; i++ {
		ok, err := p.Reserve(ctx, 1, pacing)
		require.NoError(t, err)
		require.True(t, ok)
	}

	// the rolling hour clears but the day counter does not
	now = now.Add(2 * time.Hour)
	ok, err := p.Reserve(ctx, 1, pacing)
	require.NoError(t, err)
	assert.False(t, ok)

	// next calendar day the budget is back
	now = time.Date(2026, 6, 2, 0, 30, 0, 0, time.UTC)
	ok, err = p.Reserve(ctx, 1, pacing)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPacerReleaseReturnsUnspentSlot(t *testing.T) {
	store := NewMemoryCounterStore()
	p := NewPacer(store, testPacerConfig(), rand.NewSource(1))
	ctx := context.Background()
	pacing := models.PacingConfig{HourlyLimit: 1, DailyLimit: 1}

	ok, err := p.Reserve(ctx, 1, pacing)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = p.Reserve(ctx, 1, pacing)
	require.NoError(t, err)
	require.False(t, ok)

	// the slot went unused, so handing it back restores the budget
	require.NoError(t, p.Release(ctx, 1))
	ok, err = p.Reserve(ctx, 1, pacing)
	require.NoError(t, err)
	assert.True(t, ok)

	// releasing with nothing recorded is harmless
	require.NoError(t, p.Release(ctx, 2))
}

func TestPacerSessionsAreIndependent(t *testing.T) {
	store := NewMemoryCounterStore()
	p := NewPacer(store, testPacerConfig(), rand.NewSource(1))
	ctx := context.Background()
	pacing := models.PacingConfig{HourlyLimit: 1, DailyLimit: 10}

	ok, err := p.Reserve(ctx, 1, pacing)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = p.Reserve(ctx, 1, pacing)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = p.Reserve(ctx, 2, pacing)
	require.NoError(t, err)
	assert.True(t, ok, "session 2 has its own budget")
}

func TestPacerZeroLimitsFallBackToDefaults(t *testing.T) {
	cfg := testPacerConfig()
	cfg.DefaultHourlyLimit = 2
	store := NewMemoryCounterStore()
	p := NewPacer(store, cfg, rand.NewSource(1))
	ctx := context.Background()

	var pacing models.PacingConfig
	for i := 0; i < 2; i++ {
		ok, err := p.Reserve(ctx, 1, pacing)
		require.NoError(t, err)
		require.True(t, ok)
	}
	ok, err := p.Reserve(ctx, 1, pacing)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPacerWarmUpHalvesLimits(t *testing.T) {
	store := NewMemoryCounterStore()
	p := NewPacer(store, testPacerConfig(), rand.NewSource(1))
	ctx := context.Background()

	pacing := models.PacingConfig{HourlyLimit: 4, DailyLimit: 100, WarmUp: true}
	for i := 0; i < 2; i++ {
		ok, err := p.Reserve(ctx, 1, pacing)
		require.NoError(t, err)
		require.True(t, ok)
	}
	ok, err := p.Reserve(ctx, 1, pacing)
	require.NoError(t, err)
	assert.False(t, ok, "warm-up halves the hourly limit to 2")
}

func TestPacerWarmUpFloorIsOneSend(t *testing.T) {
	store := NewMemoryCounterStore()
	p := NewPacer(store, testPacerConfig(), rand.NewSource(1))
	ctx := context.Background()

	pacing := models.PacingConfig{HourlyLimit: 1, DailyLimit: 1, WarmUp: true}
	ok, err := p.Reserve(ctx, 1, pacing)
	require.NoError(t, err)
	assert.True(t, ok, "warm-up never reduces a limit below one send")
}

func TestPacerConcurrentReserveNeverOvershoots(t *testing.T) {
	store := NewMemoryCounterStore()
	p := NewPacer(store, testPacerConfig(), rand.NewSource(1))
	ctx := context.Background()
	pacing := models.PacingConfig{HourlyLimit: 10, DailyLimit: 100}

	// two runs sharing one session race for the last quota slots
	var granted int64
	var wg sync.WaitGroup
	for g := 0; g < 2; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				ok, err := p.Reserve(ctx, 1, pacing)
				if err == nil && ok {
					atomic.AddInt64(&granted, 1)
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(10), granted)
}

func TestPacerQuotaRemaining(t *testing.T) {
	store := NewMemoryCounterStore()
	p := NewPacer(store, testPacerConfig(), rand.NewSource(1))
	ctx := context.Background()
	pacing := models.PacingConfig{HourlyLimit: 5, DailyLimit: 10}

	for i := 0; i < 3; i++ {
		_, err := p.Reserve(ctx, 1, pacing)
		require.NoError(t, err)
	}

	q, err := p.QuotaRemaining(ctx, 1, pacing)
	require.NoError(t, err)
	assert.Equal(t, int64(2), q.Hourly)
	assert.Equal(t, int64(7), q.Daily)
}

func TestPacerNextDelayBounds(t *testing.T) {
	p := NewPacer(NewMemoryCounterStore(), testPacerConfig(), rand.NewSource(1))

	pacing := models.PacingConfig{MinDelaySeconds: 20, MaxDelaySeconds: 45}
	for i := 0; i < 100; i++ {
		d := p.NextDelay(pacing)
		assert.GreaterOrEqual(t, d, 20*time.Second)
		assert.Less(t, d, 45*time.Second)
	}
}

func TestPacerNextDelayInstantDefaults(t *testing.T) {
	p := NewPacer(NewMemoryCounterStore(), testPacerConfig(), rand.NewSource(1))

	var pacing models.PacingConfig
	for i := 0; i < 100; i++ {
		d := p.NextDelay(pacing)
		assert.GreaterOrEqual(t, d, 5*time.Second)
		assert.Less(t, d, 15*time.Second)
	}
}

func TestPacerNextDelayDegenerateWindow(t *testing.T) {
	p := NewPacer(NewMemoryCounterStore(), testPacerConfig(), rand.NewSource(1))

	pacing := models.PacingConfig{MinDelaySeconds: 30, MaxDelaySeconds: 30}
	assert.Equal(t, 30*time.Second, p.NextDelay(pacing))
}
