package service

import (
	"context"
	"testing"
	"time"

	"github.com/webzeppelin/angry-birdman-sub002/internal/domain"
	"github.com/webzeppelin/angry-birdman-sub002/internal/gametime"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gameTimeMidnight is the UTC instant of Game-Time midnight on the date.
func gameTimeMidnight(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, gametime.Location).UTC()
}

func TestCheckAndAdvanceCreatesBattle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	next := gameTimeMidnight(2025, 11, 8)
	env.seedSchedule(t, next, true)
	env.scheduler.now = func() time.Time { return next.Add(time.Hour) }

	env.scheduler.CheckAndAdvance(ctx)

	mb, err := env.masters.GetByID(ctx, "20251108")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 11, 8, 5, 0, 0, 0, time.UTC), mb.StartAt.UTC())
	assert.Equal(t, time.Date(2025, 11, 10, 4, 59, 59, 999_000_000, time.UTC), mb.EndAt.UTC())
	assert.Empty(t, mb.CreatedBy)

	setting, err := env.schedule.Get(ctx)
	require.NoError(t, err)
	assert.True(t, setting.NextBattleAt.Equal(gameTimeMidnight(2025, 11, 11)))
}

func TestCheckAndAdvanceIdempotentUnderRepeatedTicks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	next := gameTimeMidnight(2025, 11, 8)
	env.seedSchedule(t, next, true)
	env.scheduler.now = func() time.Time { return next.Add(time.Hour) }

	env.scheduler.CheckAndAdvance(ctx)
	env.scheduler.CheckAndAdvance(ctx)

	battles, err := env.masters.List(ctx, 10)
	require.NoError(t, err)
	// The second tick sees the advanced date in the future and no-ops.
	require.Len(t, battles, 1)
	assert.Equal(t, "20251108", battles[0].BattleID)

	setting, err := env.schedule.Get(ctx)
	require.NoError(t, err)
	assert.True(t, setting.NextBattleAt.Equal(gameTimeMidnight(2025, 11, 11)))
}

func TestCheckAndAdvanceSkipsExistingBattleButAdvances(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedMasterBattle(t, "20251108")
	next := gameTimeMidnight(2025, 11, 8)
	env.seedSchedule(t, next, true)
	env.scheduler.now = func() time.Time { return next.Add(time.Hour) }

	env.scheduler.CheckAndAdvance(ctx)

	battles, err := env.masters.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, battles, 1)

	setting, err := env.schedule.Get(ctx)
	require.NoError(t, err)
	assert.True(t, setting.NextBattleAt.Equal(gameTimeMidnight(2025, 11, 11)))
}

func TestCheckAndAdvanceDisabled(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	next := gameTimeMidnight(2025, 11, 8)
	env.seedSchedule(t, next, false)
	env.scheduler.now = func() time.Time { return next.Add(time.Hour) }

	env.scheduler.CheckAndAdvance(ctx)

	battles, err := env.masters.List(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, battles)

	setting, err := env.schedule.Get(ctx)
	require.NoError(t, err)
	assert.True(t, setting.NextBattleAt.Equal(next))
}

func TestCheckAndAdvanceBeforeNextDate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	next := gameTimeMidnight(2025, 11, 8)
	env.seedSchedule(t, next, true)
	env.scheduler.now = func() time.Time { return next.Add(-time.Minute) }

	env.scheduler.CheckAndAdvance(ctx)

	battles, err := env.masters.List(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, battles)
}

func TestCheckAndAdvanceUnconfiguredSchedule(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// No schedule row saved; the check must be a silent no-op.
	env.scheduler.CheckAndAdvance(ctx)

	battles, err := env.masters.List(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, battles)
}

func TestCheckAndAdvanceCadenceAcrossMonthBoundary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	next := gameTimeMidnight(2025, 11, 29)
	env.seedSchedule(t, next, true)
	env.scheduler.now = func() time.Time { return next }

	env.scheduler.CheckAndAdvance(ctx)

	setting, err := env.schedule.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "20251202", gametime.BattleID(setting.NextBattleAt))
}

func TestCreateManualBattle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	date := gameTimeMidnight(2025, 12, 25)
	mb, err := env.scheduler.CreateManualBattle(ctx, date, "admin-7")
	require.NoError(t, err)
	assert.Equal(t, "20251225", mb.BattleID)
	assert.Equal(t, "admin-7", mb.CreatedBy)

	_, err = env.scheduler.CreateManualBattle(ctx, date, "admin-7")
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestUpdateBattleNotes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	date := gameTimeMidnight(2025, 11, 8)
	created, err := env.scheduler.CreateManualBattle(ctx, date, "admin-7")
	require.NoError(t, err)

	updated, err := env.scheduler.UpdateBattleNotes(ctx, "20251108", "double rewards weekend")
	require.NoError(t, err)
	assert.Equal(t, "double rewards weekend", updated.Notes)
	// Only metadata changes; the window is untouched.
	assert.True(t, updated.StartAt.Equal(created.StartAt))
	assert.True(t, updated.EndAt.Equal(created.EndAt))

	_, err = env.scheduler.UpdateBattleNotes(ctx, "19990101", "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestScheduleAccessors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.scheduler.GetNextBattleDate(ctx)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Override normalizes to Game-Time midnight of the given day.
	require.NoError(t, env.scheduler.UpdateNextBattleDate(ctx, time.Date(2025, 11, 8, 17, 30, 0, 0, time.UTC), true))

	next, err := env.scheduler.GetNextBattleDate(ctx)
	require.NoError(t, err)
	assert.True(t, next.Equal(gameTimeMidnight(2025, 11, 8)))

	info, err := env.scheduler.GetScheduleInfo(ctx)
	require.NoError(t, err)
	assert.True(t, info.Enabled)
	assert.Equal(t, "20251108", info.NextBattleID)
}
