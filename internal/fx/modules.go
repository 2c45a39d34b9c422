package fx

import (
	"github.com/webzeppelin/angry-birdman-sub002/internal/config"
	"github.com/webzeppelin/angry-birdman-sub002/internal/database"
	"github.com/webzeppelin/angry-birdman-sub002/internal/logger"
	"github.com/webzeppelin/angry-birdman-sub002/internal/repository"
	"github.com/webzeppelin/angry-birdman-sub002/internal/server"
	"github.com/webzeppelin/angry-birdman-sub002/internal/service"

	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(database.New),
	// repos
	fx.Provide(repository.NewMasterBattleRepository),
	fx.Provide(repository.NewScheduleRepository),
	fx.Provide(repository.NewClanBattleRepository),
	fx.Provide(repository.NewPerformanceRepository),
	fx.Provide(repository.NewClanMemberRepository),
	// svc
	fx.Provide(service.NewAggregationService),
	fx.Provide(service.NewBattleService),
	fx.Provide(service.NewSchedulerService),
	// server
	fx.Provide(server.New),
)
