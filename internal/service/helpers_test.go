package service

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/webzeppelin/angry-birdman-sub002/internal/config"
	"github.com/webzeppelin/angry-birdman-sub002/internal/database"
	"github.com/webzeppelin/angry-birdman-sub002/internal/domain"
	"github.com/webzeppelin/angry-birdman-sub002/internal/gametime"
	"github.com/webzeppelin/angry-birdman-sub002/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	db        *sql.DB
	masters   *repository.MasterBattleRepository
	schedule  *repository.ScheduleRepository
	battles   *repository.ClanBattleRepository
	perf      *repository.PerformanceRepository
	members   *repository.ClanMemberRepository
	agg       *AggregationService
	battleSvc *BattleService
	scheduler *SchedulerService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := zerolog.Nop()
	cfg := &config.Config{DBPath: filepath.Join(t.TempDir(), "test.db")}
	db, err := database.New(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	env := &testEnv{
		db:       db,
		masters:  repository.NewMasterBattleRepository(db, logger),
		schedule: repository.NewScheduleRepository(db, logger),
		battles:  repository.NewClanBattleRepository(db, logger),
		perf:     repository.NewPerformanceRepository(db, logger),
		members:  repository.NewClanMemberRepository(db, logger),
	}
	env.agg = NewAggregationService(env.battles, env.perf, logger)
	env.battleSvc = NewBattleService(env.battles, env.masters, env.members, env.agg, logger)
	env.scheduler = NewSchedulerService(env.schedule, env.masters, logger)
	return env
}

// seedMasterBattle creates the schedule entry a clan battle validates
// against.
func (env *testEnv) seedMasterBattle(t *testing.T, battleID string) {
	t.Helper()

	date, err := gametime.ParseBattleID(battleID)
	require.NoError(t, err)
	start, end := gametime.BattleWindow(date)
	require.NoError(t, env.masters.Create(context.Background(), &domain.MasterBattle{
		BattleID: battleID,
		StartAt:  start,
		EndAt:    end,
	}))
}

func (env *testEnv) seedSchedule(t *testing.T, nextBattleAt time.Time, enabled bool) {
	t.Helper()
	require.NoError(t, env.schedule.Save(context.Background(), &domain.ScheduleSetting{
		NextBattleAt: nextBattleAt,
		Enabled:      enabled,
	}))
}

// battleInput is a baseline valid input tests tweak per case.
func battleInput(battleID string) *BattleInput {
	return &BattleInput{
		BattleID:      battleID,
		OpponentName:  "Rival Flock",
		Score:         6000,
		BaselineFP:    3000,
		OpponentScore: 4500,
		OpponentFP:    2500,
		Players: []PlayerInput{
			{PlayerID: "p1", Name: "Alpha", Rank: 1, Score: 3000, FP: 1000},
			{PlayerID: "p2", Name: "Bravo", Rank: 2, Score: 1500, FP: 1000},
			{PlayerID: "p3", Name: "Charlie", Rank: 3, Score: 1500, FP: 750},
		},
		Nonplayers: []NonplayerInput{
			{PlayerID: "p4", Name: "Delta", FP: 500},
			{PlayerID: "p5", Name: "Echo", FP: 250, Reserve: true},
		},
	}
}
