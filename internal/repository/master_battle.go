package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/webzeppelin/angry-birdman-sub002/internal/domain"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// isConstraintErr reports whether err is a sqlite uniqueness/constraint
// violation, which the service layer surfaces as a conflict.
func isConstraintErr(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.Code == sqlite3.ErrConstraint
}

type MasterBattleRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewMasterBattleRepository(sqlDB *sql.DB, logger zerolog.Logger) *MasterBattleRepository {
	return &MasterBattleRepository{db: sqlDB, logger: logger}
}

func (r *MasterBattleRepository) Create(ctx context.Context, mb *domain.MasterBattle) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO master_battles (battle_id, start_at, end_at, created_by, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		mb.BattleID, mb.StartAt.UTC(), mb.EndAt.UTC(), mb.CreatedBy, mb.Notes, now, now)
	if isConstraintErr(err) {
		return domain.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to insert master battle %s: %w", mb.BattleID, err)
	}
	mb.CreatedAt = now
	mb.UpdatedAt = now
	return nil
}

func (r *MasterBattleRepository) GetByID(ctx context.Context, battleID string) (*domain.MasterBattle, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT battle_id, start_at, end_at, created_by, notes, created_at, updated_at
		FROM master_battles WHERE battle_id = ?`, battleID)
	return scanMasterBattle(row)
}

func (r *MasterBattleRepository) Exists(ctx context.Context, battleID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM master_battles WHERE battle_id = ?`, battleID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetActiveAt returns the battle whose window contains the instant, or
// ErrNotFound when no window is open.
func (r *MasterBattleRepository) GetActiveAt(ctx context.Context, at time.Time) (*domain.MasterBattle, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT battle_id, start_at, end_at, created_by, notes, created_at, updated_at
		FROM master_battles WHERE start_at <= ? AND end_at >= ?
		ORDER BY battle_id DESC LIMIT 1`, at.UTC(), at.UTC())
	return scanMasterBattle(row)
}

func (r *MasterBattleRepository) List(ctx context.Context, limit int) ([]domain.MasterBattle, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT battle_id, start_at, end_at, created_by, notes, created_at, updated_at
		FROM master_battles ORDER BY battle_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var battles []domain.MasterBattle
	for rows.Next() {
		var mb domain.MasterBattle
		if err := rows.Scan(&mb.BattleID, &mb.StartAt, &mb.EndAt, &mb.CreatedBy, &mb.Notes, &mb.CreatedAt, &mb.UpdatedAt); err != nil {
			return nil, err
		}
		battles = append(battles, mb)
	}
	return battles, rows.Err()
}

// UpdateNotes changes battle metadata. The window itself is immutable.
func (r *MasterBattleRepository) UpdateNotes(ctx context.Context, battleID, notes string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE master_battles SET notes = ?, updated_at = ? WHERE battle_id = ?`,
		notes, time.Now().UTC(), battleID)
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

func scanMasterBattle(row *sql.Row) (*domain.MasterBattle, error) {
	var mb domain.MasterBattle
	err := row.Scan(&mb.BattleID, &mb.StartAt, &mb.EndAt, &mb.CreatedBy, &mb.Notes, &mb.CreatedAt, &mb.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &mb, nil
}
