package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/webzeppelin/angry-birdman-sub002/internal/domain"

	"github.com/rs/zerolog"
)

type PerformanceRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewPerformanceRepository(sqlDB *sql.DB, logger zerolog.Logger) *PerformanceRepository {
	return &PerformanceRepository{db: sqlDB, logger: logger}
}

func performanceTable(kind domain.PeriodKind) string {
	if kind == domain.PeriodYear {
		return "yearly_performance"
	}
	return "monthly_performance"
}

// Upsert writes a freshly recomputed summary. The completed flag is set
// independently and is deliberately left out of the update set.
func (r *PerformanceRepository) Upsert(ctx context.Context, kind domain.PeriodKind, p *domain.PeriodPerformance) error {
	now := time.Now().UTC()
	query := fmt.Sprintf(`
		INSERT INTO %s (
			clan_id, period_id, battle_count, won_count, lost_count, tied_count,
			avg_score, avg_ratio, avg_average_ratio, avg_projected_score,
			avg_margin_ratio, avg_fp_margin, avg_nonplaying_fp_ratio, avg_reserve_fp_ratio,
			completed, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT (clan_id, period_id) DO UPDATE SET
			battle_count = excluded.battle_count,
			won_count = excluded.won_count,
			lost_count = excluded.lost_count,
			tied_count = excluded.tied_count,
			avg_score = excluded.avg_score,
			avg_ratio = excluded.avg_ratio,
			avg_average_ratio = excluded.avg_average_ratio,
			avg_projected_score = excluded.avg_projected_score,
			avg_margin_ratio = excluded.avg_margin_ratio,
			avg_fp_margin = excluded.avg_fp_margin,
			avg_nonplaying_fp_ratio = excluded.avg_nonplaying_fp_ratio,
			avg_reserve_fp_ratio = excluded.avg_reserve_fp_ratio,
			updated_at = excluded.updated_at`, performanceTable(kind))
	_, err := r.db.ExecContext(ctx, query,
		p.ClanID, p.PeriodID, p.BattleCount, p.WonCount, p.LostCount, p.TiedCount,
		p.AvgScore, p.AvgRatio, p.AvgAverageRatio, p.AvgProjectedScore,
		p.AvgMarginRatio, p.AvgFPMargin, p.AvgNonplayingFPRatio, p.AvgReserveFPRatio,
		now)
	if err != nil {
		return fmt.Errorf("failed to upsert %s %s/%s: %w", performanceTable(kind), p.ClanID, p.PeriodID, err)
	}
	p.UpdatedAt = now
	return nil
}

func (r *PerformanceRepository) Get(ctx context.Context, kind domain.PeriodKind, clanID, periodID string) (*domain.PeriodPerformance, error) {
	query := fmt.Sprintf(`
		SELECT clan_id, period_id, battle_count, won_count, lost_count, tied_count,
			avg_score, avg_ratio, avg_average_ratio, avg_projected_score,
			avg_margin_ratio, avg_fp_margin, avg_nonplaying_fp_ratio, avg_reserve_fp_ratio,
			completed, updated_at
		FROM %s WHERE clan_id = ? AND period_id = ?`, performanceTable(kind))

	var p domain.PeriodPerformance
	err := r.db.QueryRowContext(ctx, query, clanID, periodID).Scan(
		&p.ClanID, &p.PeriodID, &p.BattleCount, &p.WonCount, &p.LostCount, &p.TiedCount,
		&p.AvgScore, &p.AvgRatio, &p.AvgAverageRatio, &p.AvgProjectedScore,
		&p.AvgMarginRatio, &p.AvgFPMargin, &p.AvgNonplayingFPRatio, &p.AvgReserveFPRatio,
		&p.Completed, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PerformanceRepository) Delete(ctx context.Context, kind domain.PeriodKind, clanID, periodID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE clan_id = ? AND period_id = ?`, performanceTable(kind))
	_, err := r.db.ExecContext(ctx, query, clanID, periodID)
	return err
}

// SetCompleted flips the independently-owned period-complete flag.
func (r *PerformanceRepository) SetCompleted(ctx context.Context, kind domain.PeriodKind, clanID, periodID string, completed bool) error {
	query := fmt.Sprintf(`UPDATE %s SET completed = ?, updated_at = ? WHERE clan_id = ? AND period_id = ?`, performanceTable(kind))
	res, err := r.db.ExecContext(ctx, query, completed, time.Now().UTC(), clanID, periodID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
