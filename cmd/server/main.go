package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/webzeppelin/angry-birdman-sub002/internal/config"
	"github.com/webzeppelin/angry-birdman-sub002/internal/constants"
	fxmodules "github.com/webzeppelin/angry-birdman-sub002/internal/fx"
	"github.com/webzeppelin/angry-birdman-sub002/internal/server"
	"github.com/webzeppelin/angry-birdman-sub002/internal/service"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		fxmodules.Module,
		fx.Invoke(runServer),
	).Run()
}

func runServer(
	lc fx.Lifecycle,
	srv *server.Server,
	schedulerSvc *service.SchedulerService,
	cfg *config.Config,
	db *sql.DB,
	logger zerolog.Logger,
) error {
	e := srv.Echo()

	c := cron.New()
	if _, err := c.AddFunc(cfg.SchedulerSpec, func() {
		schedulerSvc.CheckAndAdvance(context.Background())
	}); err != nil {
		return fmt.Errorf("failed to register schedule check: %w", err)
	}

	addr := fmt.Sprintf(":%s", cfg.ServerPort)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			c.Start()
			logger.Info().Str("spec", cfg.SchedulerSpec).Msg("battle scheduler started")

			go func() {
				logger.Info().Str("addr", addr).Msg("server starting")
				if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
					logger.Fatal().Err(err).Msg("server failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()

			cronCtx := c.Stop()
			<-cronCtx.Done()

			if err := e.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("server shutdown failed")
				return err
			}

			if err := db.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing database connection")
			}

			logger.Info().Msg("server stopped gracefully")
			return nil
		},
	})
	return nil
}
