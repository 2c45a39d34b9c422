package service

import (
	"context"

	"github.com/webzeppelin/angry-birdman-sub002/internal/domain"
	"github.com/webzeppelin/angry-birdman-sub002/internal/gametime"
	"github.com/webzeppelin/angry-birdman-sub002/internal/repository"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// AggregationService maintains the monthly and yearly performance
// projections. Summaries are a pure function of the clan's current
// battle set for the period: every recompute starts from scratch, so
// repeating it without intervening writes yields identical rows.
type AggregationService struct {
	battles *repository.ClanBattleRepository
	perf    *repository.PerformanceRepository
	logger  zerolog.Logger
}

func NewAggregationService(battles *repository.ClanBattleRepository, perf *repository.PerformanceRepository, logger zerolog.Logger) *AggregationService {
	return &AggregationService{battles: battles, perf: perf, logger: logger}
}

// RecomputePeriod rebuilds one summary row. An empty battle set deletes
// the row entirely.
func (s *AggregationService) RecomputePeriod(ctx context.Context, clanID, periodID string, kind domain.PeriodKind) error {
	battles, err := s.battles.ListByPeriod(ctx, clanID, periodID, kind)
	if err != nil {
		return err
	}

	if len(battles) == 0 {
		s.logger.Debug().
			Str("clan_id", clanID).
			Str("period_id", periodID).
			Str("kind", string(kind)).
			Msg("no battles left in period, removing summary")
		return s.perf.Delete(ctx, kind, clanID, periodID)
	}

	perf := summarize(clanID, periodID, battles)
	if err := s.perf.Upsert(ctx, kind, perf); err != nil {
		return err
	}

	s.logger.Debug().
		Str("clan_id", clanID).
		Str("period_id", periodID).
		Str("kind", string(kind)).
		Int("battle_count", perf.BattleCount).
		Msg("period summary recomputed")
	return nil
}

// RecomputeForBattle rebuilds the month and year summaries affected by a
// battle write. Called after the triggering transaction has committed;
// both periods are recomputed concurrently.
func (s *AggregationService) RecomputeForBattle(ctx context.Context, clanID, battleID string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.RecomputePeriod(ctx, clanID, gametime.MonthIDOf(battleID), domain.PeriodMonth)
	})
	g.Go(func() error {
		return s.RecomputePeriod(ctx, clanID, gametime.YearIDOf(battleID), domain.PeriodYear)
	})
	return g.Wait()
}

func summarize(clanID, periodID string, battles []domain.ClanBattle) *domain.PeriodPerformance {
	perf := &domain.PeriodPerformance{
		ClanID:      clanID,
		PeriodID:    periodID,
		BattleCount: len(battles),
	}

	for _, b := range battles {
		switch {
		case b.Result > 0:
			perf.WonCount++
		case b.Result < 0:
			perf.LostCount++
		default:
			perf.TiedCount++
		}
		perf.AvgScore += b.Score
		perf.AvgRatio += b.Ratio
		perf.AvgAverageRatio += b.AverageRatio
		perf.AvgProjectedScore += b.ProjectedScore
		perf.AvgMarginRatio += b.MarginRatio
		perf.AvgFPMargin += b.FPMargin
		perf.AvgNonplayingFPRatio += b.NonplayingFPRatio
		perf.AvgReserveFPRatio += b.ReserveFPRatio
	}

	n := float64(len(battles))
	perf.AvgScore /= n
	perf.AvgRatio /= n
	perf.AvgAverageRatio /= n
	perf.AvgProjectedScore /= n
	perf.AvgMarginRatio /= n
	perf.AvgFPMargin /= n
	perf.AvgNonplayingFPRatio /= n
	perf.AvgReserveFPRatio /= n
	return perf
}
