package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/webzeppelin/angry-birdman-sub002/internal/domain"

	"github.com/rs/zerolog"
)

type ClanBattleRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewClanBattleRepository(sqlDB *sql.DB, logger zerolog.Logger) *ClanBattleRepository {
	return &ClanBattleRepository{db: sqlDB, logger: logger}
}

// BattleWithStats is a clan battle enriched with its stat rows.
type BattleWithStats struct {
	Battle     domain.ClanBattle
	Players    []domain.PlayerStat
	Nonplayers []domain.NonplayerStat
}

// Create persists the battle, every stat row and the roster mutations in
// one transaction. A concurrent create for the same (clan, battle) pair
// loses on the UNIQUE constraint and surfaces as ErrConflict.
func (r *ClanBattleRepository) Create(ctx context.Context, battle *domain.ClanBattle, players []domain.PlayerStat, nonplayers []domain.NonplayerStat, mutations []RosterMutation) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO clan_battles (
			id, clan_id, battle_id, month_id, year_id, opponent_name, notes,
			score, baseline_fp, opponent_score, opponent_fp,
			result, total_fp, ratio, average_ratio, projected_score,
			margin_ratio, fp_margin, nonplaying_fp_ratio, reserve_fp_ratio,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		battle.ID, battle.ClanID, battle.BattleID, battle.MonthID, battle.YearID,
		battle.OpponentName, battle.Notes,
		battle.Score, battle.BaselineFP, battle.OpponentScore, battle.OpponentFP,
		battle.Result, battle.TotalFP, battle.Ratio, battle.AverageRatio, battle.ProjectedScore,
		battle.MarginRatio, battle.FPMargin, battle.NonplayingFPRatio, battle.ReserveFPRatio,
		now, now)
	if isConstraintErr(err) {
		return domain.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to insert clan battle %s/%s: %w", battle.ClanID, battle.BattleID, err)
	}

	if err := insertStats(ctx, tx, players, nonplayers); err != nil {
		return err
	}
	if err := applyRosterMutations(ctx, tx, battle.ClanID, mutations); err != nil {
		return err
	}

	battle.CreatedAt = now
	battle.UpdatedAt = now
	return tx.Commit()
}

// Replace rewrites the battle row and all of its stat rows from a full
// recompute, inside one transaction. The row itself is updated in place
// so readers never observe a transient gap.
func (r *ClanBattleRepository) Replace(ctx context.Context, battle *domain.ClanBattle, players []domain.PlayerStat, nonplayers []domain.NonplayerStat, mutations []RosterMutation) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		UPDATE clan_battles SET
			opponent_name = ?, notes = ?,
			score = ?, baseline_fp = ?, opponent_score = ?, opponent_fp = ?,
			result = ?, total_fp = ?, ratio = ?, average_ratio = ?, projected_score = ?,
			margin_ratio = ?, fp_margin = ?, nonplaying_fp_ratio = ?, reserve_fp_ratio = ?,
			updated_at = ?
		WHERE clan_id = ? AND battle_id = ?`,
		battle.OpponentName, battle.Notes,
		battle.Score, battle.BaselineFP, battle.OpponentScore, battle.OpponentFP,
		battle.Result, battle.TotalFP, battle.Ratio, battle.AverageRatio, battle.ProjectedScore,
		battle.MarginRatio, battle.FPMargin, battle.NonplayingFPRatio, battle.ReserveFPRatio,
		now, battle.ClanID, battle.BattleID)
	if err != nil {
		return fmt.Errorf("failed to update clan battle %s/%s: %w", battle.ClanID, battle.BattleID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}

	if err := deleteStats(ctx, tx, battle.ClanID, battle.BattleID); err != nil {
		return err
	}
	if err := insertStats(ctx, tx, players, nonplayers); err != nil {
		return err
	}
	if err := applyRosterMutations(ctx, tx, battle.ClanID, mutations); err != nil {
		return err
	}

	battle.UpdatedAt = now
	return tx.Commit()
}

func (r *ClanBattleRepository) Delete(ctx context.Context, clanID, battleID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM clan_battles WHERE clan_id = ? AND battle_id = ?`, clanID, battleID)
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

	if err := deleteStats(ctx, tx, clanID, battleID); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *ClanBattleRepository) Get(ctx context.Context, clanID, battleID string) (*domain.ClanBattle, error) {
	row := r.db.QueryRowContext(ctx, selectClanBattle+` WHERE clan_id = ? AND battle_id = ?`, clanID, battleID)
	battle, err := scanClanBattleRow(row)
	if err != nil {
		return nil, err
	}
	return battle, nil
}

// GetWithStats loads the battle and its stat rows. Players come back in
// input order so a recompute preserves the original tiebreaks.
func (r *ClanBattleRepository) GetWithStats(ctx context.Context, clanID, battleID string) (*BattleWithStats, error) {
	battle, err := r.Get(ctx, clanID, battleID)
	if err != nil {
		return nil, err
	}

	result := &BattleWithStats{Battle: *battle}

	rows, err := r.db.QueryContext(ctx, `
		SELECT clan_id, battle_id, player_id, player_name, position, rank, score, fp, ratio, ratio_rank
		FROM player_stats WHERE clan_id = ? AND battle_id = ? ORDER BY position`, clanID, battleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var p domain.PlayerStat
		if err := rows.Scan(&p.ClanID, &p.BattleID, &p.PlayerID, &p.PlayerName, &p.Position, &p.Rank, &p.Score, &p.FP, &p.Ratio, &p.RatioRank); err != nil {
			return nil, err
		}
		result.Players = append(result.Players, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	npRows, err := r.db.QueryContext(ctx, `
		SELECT clan_id, battle_id, player_id, player_name, fp, reserve
		FROM nonplayer_stats WHERE clan_id = ? AND battle_id = ? ORDER BY player_id`, clanID, battleID)
	if err != nil {
		return nil, err
	}
	defer npRows.Close()
	for npRows.Next() {
		var np domain.NonplayerStat
		if err := npRows.Scan(&np.ClanID, &np.BattleID, &np.PlayerID, &np.PlayerName, &np.FP, &np.Reserve); err != nil {
			return nil, err
		}
		result.Nonplayers = append(result.Nonplayers, np)
	}
	return result, npRows.Err()
}

func (r *ClanBattleRepository) ListByClan(ctx context.Context, clanID string) ([]domain.ClanBattle, error) {
	rows, err := r.db.QueryContext(ctx, selectClanBattle+` WHERE clan_id = ? ORDER BY battle_id DESC`, clanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanClanBattles(rows)
}

// ListByPeriod fetches every battle of the clan inside one month or year,
// using the indexed period columns.
func (r *ClanBattleRepository) ListByPeriod(ctx context.Context, clanID, periodID string, kind domain.PeriodKind) ([]domain.ClanBattle, error) {
	column := "month_id"
	if kind == domain.PeriodYear {
		column = "year_id"
	}
	rows, err := r.db.QueryContext(ctx, selectClanBattle+` WHERE clan_id = ? AND `+column+` = ? ORDER BY battle_id`, clanID, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanClanBattles(rows)
}

const selectClanBattle = `
	SELECT id, clan_id, battle_id, month_id, year_id, opponent_name, notes,
		score, baseline_fp, opponent_score, opponent_fp,
		result, total_fp, ratio, average_ratio, projected_score,
		margin_ratio, fp_margin, nonplaying_fp_ratio, reserve_fp_ratio,
		created_at, updated_at
	FROM clan_battles`

func insertStats(ctx context.Context, tx *sql.Tx, players []domain.PlayerStat, nonplayers []domain.NonplayerStat) error {
	for _, p := range players {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO player_stats (clan_id, battle_id, player_id, player_name, position, rank, score, fp, ratio, ratio_rank)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ClanID, p.BattleID, p.PlayerID, p.PlayerName, p.Position, p.Rank, p.Score, p.FP, p.Ratio, p.RatioRank)
		if isConstraintErr(err) {
			return domain.NewValidationError("duplicate player %q", p.PlayerID)
		}
		if err != nil {
			return fmt.Errorf("failed to insert player stat %s: %w", p.PlayerID, err)
		}
	}
	for _, np := range nonplayers {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO nonplayer_stats (clan_id, battle_id, player_id, player_name, fp, reserve)
			VALUES (?, ?, ?, ?, ?, ?)`,
			np.ClanID, np.BattleID, np.PlayerID, np.PlayerName, np.FP, np.Reserve)
		if isConstraintErr(err) {
			return domain.NewValidationError("duplicate nonplayer %q", np.PlayerID)
		}
		if err != nil {
			return fmt.Errorf("failed to insert nonplayer stat %s: %w", np.PlayerID, err)
		}
	}
	return nil
}

func deleteStats(ctx context.Context, tx *sql.Tx, clanID, battleID string) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM player_stats WHERE clan_id = ? AND battle_id = ?`, clanID, battleID); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx,
		`DELETE FROM nonplayer_stats WHERE clan_id = ? AND battle_id = ?`, clanID, battleID)
	return err
}

func scanClanBattleRow(row *sql.Row) (*domain.ClanBattle, error) {
	var b domain.ClanBattle
	err := row.Scan(
		&b.ID, &b.ClanID, &b.BattleID, &b.MonthID, &b.YearID, &b.OpponentName, &b.Notes,
		&b.Score, &b.BaselineFP, &b.OpponentScore, &b.OpponentFP,
		&b.Result, &b.TotalFP, &b.Ratio, &b.AverageRatio, &b.ProjectedScore,
		&b.MarginRatio, &b.FPMargin, &b.NonplayingFPRatio, &b.ReserveFPRatio,
		&b.CreatedAt, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func scanClanBattles(rows *sql.Rows) ([]domain.ClanBattle, error) {
	var battles []domain.ClanBattle
	for rows.Next() {
		var b domain.ClanBattle
		if err := rows.Scan(
			&b.ID, &b.ClanID, &b.BattleID, &b.MonthID, &b.YearID, &b.OpponentName, &b.Notes,
			&b.Score, &b.BaselineFP, &b.OpponentScore, &b.OpponentFP,
			&b.Result, &b.TotalFP, &b.Ratio, &b.AverageRatio, &b.ProjectedScore,
			&b.MarginRatio, &b.FPMargin, &b.NonplayingFPRatio, &b.ReserveFPRatio,
			&b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		battles = append(battles, b)
	}
	return battles, rows.Err()
}
