package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/webzeppelin/angry-birdman-sub002/internal/domain"

	"github.com/rs/zerolog"
)

// ScheduleRepository persists the singleton scheduler state. The row is
// created by the first save; until then Get returns ErrNotFound and the
// scheduler stays idle.
type ScheduleRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewScheduleRepository(sqlDB *sql.DB, logger zerolog.Logger) *ScheduleRepository {
	return &ScheduleRepository{db: sqlDB, logger: logger}
}

func (r *ScheduleRepository) Get(ctx context.Context) (*domain.ScheduleSetting, error) {
	var s domain.ScheduleSetting
	err := r.db.QueryRowContext(ctx,
		`SELECT next_battle_at, enabled, updated_at FROM schedule_settings WHERE id = 1`).
		Scan(&s.NextBattleAt, &s.Enabled, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.NextBattleAt = s.NextBattleAt.UTC()
	return &s, nil
}

func (r *ScheduleRepository) Save(ctx context.Context, s *domain.ScheduleSetting) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO schedule_settings (id, next_battle_at, enabled, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			next_battle_at = excluded.next_battle_at,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at`,
		s.NextBattleAt.UTC(), s.Enabled, now)
	if err != nil {
		return fmt.Errorf("failed to save schedule setting: %w", err)
	}
	s.UpdatedAt = now
	return nil
}
