package service

import (
	"context"
	"testing"

	"github.com/webzeppelin/angry-birdman-sub002/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedPeriodBattles records one win, one loss and one tie in 202511.
func seedPeriodBattles(t *testing.T, env *testEnv) {
	t.Helper()
	ctx := context.Background()

	cases := []struct {
		battleID      string
		score         float64
		opponentScore float64
	}{
		{"20251102", 6000, 4500}, // won
		{"20251105", 4000, 5000}, // lost
		{"20251108", 5000, 5000}, // tied
	}
	for _, c := range cases {
		env.seedMasterBattle(t, c.battleID)
		input := battleInput(c.battleID)
		input.Score = c.score
		input.OpponentScore = c.opponentScore
		_, err := env.battleSvc.CreateBattle(ctx, "clan-1", input)
		require.NoError(t, err)
	}
}

func TestMonthlySummaryCounts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedPeriodBattles(t, env)

	perf, err := env.perf.Get(ctx, domain.PeriodMonth, "clan-1", "202511")
	require.NoError(t, err)
	assert.Equal(t, 3, perf.BattleCount)
	assert.Equal(t, 1, perf.WonCount)
	assert.Equal(t, 1, perf.LostCount)
	assert.Equal(t, 1, perf.TiedCount)

	battles, err := env.battles.ListByPeriod(ctx, "clan-1", "202511", domain.PeriodMonth)
	require.NoError(t, err)
	require.Len(t, battles, 3)
	var ratioSum, scoreSum float64
	for _, b := range battles {
		ratioSum += b.Ratio
		scoreSum += b.Score
	}
	assert.InDelta(t, ratioSum/3, perf.AvgRatio, 1e-9)
	assert.InDelta(t, scoreSum/3, perf.AvgScore, 1e-9)
}

func TestYearlySummaryTracksMonthly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedPeriodBattles(t, env)

	perf, err := env.perf.Get(ctx, domain.PeriodYear, "clan-1", "2025")
	require.NoError(t, err)
	assert.Equal(t, 3, perf.BattleCount)
	assert.Equal(t, 1, perf.WonCount)
	assert.Equal(t, 1, perf.LostCount)
	assert.Equal(t, 1, perf.TiedCount)
}

func TestRecomputeIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedPeriodBattles(t, env)

	first, err := env.perf.Get(ctx, domain.PeriodMonth, "clan-1", "202511")
	require.NoError(t, err)

	require.NoError(t, env.agg.RecomputePeriod(ctx, "clan-1", "202511", domain.PeriodMonth))

	second, err := env.perf.Get(ctx, domain.PeriodMonth, "clan-1", "202511")
	require.NoError(t, err)

	// Identical output modulo the write timestamp.
	first.UpdatedAt = second.UpdatedAt
	assert.Equal(t, first, second)
}

func TestDeletingLastBattleRemovesSummaries(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedMasterBattle(t, "20251108")
	_, err := env.battleSvc.CreateBattle(ctx, "clan-1", battleInput("20251108"))
	require.NoError(t, err)

	_, err = env.perf.Get(ctx, domain.PeriodMonth, "clan-1", "202511")
	require.NoError(t, err)

	require.NoError(t, env.battleSvc.DeleteBattle(ctx, "clan-1", "20251108"))

	_, err = env.perf.Get(ctx, domain.PeriodMonth, "clan-1", "202511")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = env.perf.Get(ctx, domain.PeriodYear, "clan-1", "2025")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeletionLeavesOtherPeriodBattles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedPeriodBattles(t, env)

	require.NoError(t, env.battleSvc.DeleteBattle(ctx, "clan-1", "20251105"))

	perf, err := env.perf.Get(ctx, domain.PeriodMonth, "clan-1", "202511")
	require.NoError(t, err)
	assert.Equal(t, 2, perf.BattleCount)
	assert.Equal(t, 0, perf.LostCount)
}

func TestCompletedFlagSurvivesRecompute(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedPeriodBattles(t, env)

	require.NoError(t, env.perf.SetCompleted(ctx, domain.PeriodMonth, "clan-1", "202511", true))

	// An update re-triggers the recompute for the period.
	score := 9000.0
	_, err := env.battleSvc.UpdateBattle(ctx, "clan-1", "20251102", &BattleUpdateInput{Score: &score})
	require.NoError(t, err)

	perf, err := env.perf.Get(ctx, domain.PeriodMonth, "clan-1", "202511")
	require.NoError(t, err)
	assert.True(t, perf.Completed)
	// ratios are now 30, 13.33, 16.67 against the 3000 baseline
	assert.InDelta(t, 20.0, perf.AvgRatio, 1e-6)
}

func TestUpdateRetriggersAggregation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedMasterBattle(t, "20251108")
	_, err := env.battleSvc.CreateBattle(ctx, "clan-1", battleInput("20251108"))
	require.NoError(t, err)

	// Flip the single battle from a win to a loss.
	opponentScore := 9000.0
	_, err = env.battleSvc.UpdateBattle(ctx, "clan-1", "20251108", &BattleUpdateInput{OpponentScore: &opponentScore})
	require.NoError(t, err)

	perf, err := env.perf.Get(ctx, domain.PeriodMonth, "clan-1", "202511")
	require.NoError(t, err)
	assert.Equal(t, 1, perf.BattleCount)
	assert.Equal(t, 0, perf.WonCount)
	assert.Equal(t, 1, perf.LostCount)
}
