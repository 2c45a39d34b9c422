package service

import (
	"context"
	"errors"
	"time"

	"github.com/webzeppelin/angry-birdman-sub002/internal/constants"
	"github.com/webzeppelin/angry-birdman-sub002/internal/domain"
	"github.com/webzeppelin/angry-birdman-sub002/internal/gametime"
	"github.com/webzeppelin/angry-birdman-sub002/internal/repository"

	"github.com/rs/zerolog"
)

// SchedulerService advances the global battle schedule. It is built to
// tolerate at-least-once invocation from its cron host: the master
// battle existence check is the sole guard against duplicate creation
// from overlapping or repeated ticks.
type SchedulerService struct {
	schedule *repository.ScheduleRepository
	masters  *repository.MasterBattleRepository
	logger   zerolog.Logger
	now      func() time.Time
}

func NewSchedulerService(schedule *repository.ScheduleRepository, masters *repository.MasterBattleRepository, logger zerolog.Logger) *SchedulerService {
	return &SchedulerService{
		schedule: schedule,
		masters:  masters,
		logger:   logger,
		now:      time.Now,
	}
}

// ScheduleInfo is the read model for the schedule accessors.
type ScheduleInfo struct {
	NextBattleAt  time.Time
	NextBattleID  string
	Enabled       bool
	CurrentBattle *domain.MasterBattle
	RecentBattles []domain.MasterBattle
}

// CheckAndAdvance runs one scheduled check. Any failure is logged and
// swallowed so the cron host never sees an error; the next tick retries
// from the persisted state.
func (s *SchedulerService) CheckAndAdvance(ctx context.Context) {
	if err := s.checkAndAdvance(ctx); err != nil {
		s.logger.Error().Err(err).Msg("schedule check failed, will retry on next tick")
	}
}

func (s *SchedulerService) checkAndAdvance(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	setting, err := s.schedule.Get(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		s.logger.Debug().Msg("schedule not configured, skipping check")
		return nil
	}
	if err != nil {
		return err
	}
	if !setting.Enabled {
		s.logger.Debug().Msg("scheduler disabled, skipping check")
		return nil
	}

	now := gametime.ToGameTime(s.now())
	next := gametime.ToGameTime(setting.NextBattleAt)
	if now.Before(next) {
		return nil
	}

	battleID := gametime.BattleID(setting.NextBattleAt)
	created, err := s.createIfMissing(ctx, battleID, setting.NextBattleAt, "")
	if err != nil {
		return err
	}
	if created {
		s.logger.Info().
			Str("battle_id", battleID).
			Msg("scheduled battle created")
	} else {
		// Another tick won the race; still advance the date.
		s.logger.Info().
			Str("battle_id", battleID).
			Msg("battle already exists, advancing schedule")
	}

	setting.NextBattleAt = gametime.AddDays(setting.NextBattleAt, constants.ScheduleCadenceDays)
	if err := s.schedule.Save(ctx, setting); err != nil {
		return err
	}

	s.logger.Info().
		Time("next_battle_at", setting.NextBattleAt).
		Msg("schedule advanced")
	return nil
}

// CreateManualBattle creates a master battle for an arbitrary date,
// outside the automatic cadence, on behalf of the given actor.
func (s *SchedulerService) CreateManualBattle(ctx context.Context, date time.Time, actor string) (*domain.MasterBattle, error) {
	battleID := gametime.BattleID(date)
	created, err := s.createIfMissing(ctx, battleID, date, actor)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, domain.ErrConflict
	}

	s.logger.Info().
		Str("battle_id", battleID).
		Str("actor", actor).
		Msg("manual battle created")
	return s.masters.GetByID(ctx, battleID)
}

// createIfMissing is the shared idempotence backstop: it reports whether
// this call created the battle. A lost race on the battle_id uniqueness
// constraint counts as "already exists".
func (s *SchedulerService) createIfMissing(ctx context.Context, battleID string, date time.Time, actor string) (bool, error) {
	exists, err := s.masters.Exists(ctx, battleID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	start, end := gametime.BattleWindow(date)
	err = s.masters.Create(ctx, &domain.MasterBattle{
		BattleID:  battleID,
		StartAt:   start,
		EndAt:     end,
		CreatedBy: actor,
	})
	if errors.Is(err, domain.ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// UpdateBattleNotes edits master battle metadata. The window itself
// stays immutable.
func (s *SchedulerService) UpdateBattleNotes(ctx context.Context, battleID, notes string) (*domain.MasterBattle, error) {
	if err := s.masters.UpdateNotes(ctx, battleID, notes); err != nil {
		return nil, err
	}
	return s.masters.GetByID(ctx, battleID)
}

func (s *SchedulerService) GetScheduleInfo(ctx context.Context) (*ScheduleInfo, error) {
	setting, err := s.schedule.Get(ctx)
	if err != nil {
		return nil, err
	}

	info := &ScheduleInfo{
		NextBattleAt: setting.NextBattleAt,
		NextBattleID: gametime.BattleID(setting.NextBattleAt),
		Enabled:      setting.Enabled,
	}

	current, err := s.masters.GetActiveAt(ctx, s.now())
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	info.CurrentBattle = current

	recent, err := s.masters.List(ctx, constants.ScheduleInfoBattleLimit)
	if err != nil {
		return nil, err
	}
	info.RecentBattles = recent
	return info, nil
}

func (s *SchedulerService) GetNextBattleDate(ctx context.Context) (time.Time, error) {
	setting, err := s.schedule.Get(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return setting.NextBattleAt, nil
}

// UpdateNextBattleDate is the manual override for the schedule state.
// The date is normalized to the Game-Time midnight of its calendar day.
func (s *SchedulerService) UpdateNextBattleDate(ctx context.Context, date time.Time, enabled bool) error {
	start, _ := gametime.BattleWindow(date)
	setting := &domain.ScheduleSetting{
		NextBattleAt: start,
		Enabled:      enabled,
	}
	if err := s.schedule.Save(ctx, setting); err != nil {
		return err
	}

	s.logger.Info().
		Time("next_battle_at", setting.NextBattleAt).
		Bool("enabled", enabled).
		Msg("schedule overridden")
	return nil
}
