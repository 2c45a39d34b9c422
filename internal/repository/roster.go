package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/webzeppelin/angry-birdman-sub002/internal/domain"

	"github.com/rs/zerolog"
)

type ClanMemberRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewClanMemberRepository(sqlDB *sql.DB, logger zerolog.Logger) *ClanMemberRepository {
	return &ClanMemberRepository{db: sqlDB, logger: logger}
}

func (r *ClanMemberRepository) Upsert(ctx context.Context, m *domain.ClanMember) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO clan_members (clan_id, player_id, name, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (clan_id, player_id) DO UPDATE SET
			name = excluded.name,
			active = excluded.active,
			updated_at = excluded.updated_at`,
		m.ClanID, m.PlayerID, m.Name, m.Active, now, now)
	return err
}

func (r *ClanMemberRepository) Get(ctx context.Context, clanID, playerID string) (*domain.ClanMember, error) {
	var m domain.ClanMember
	err := r.db.QueryRowContext(ctx, `
		SELECT clan_id, player_id, name, active, created_at, updated_at
		FROM clan_members WHERE clan_id = ? AND player_id = ?`, clanID, playerID).
		Scan(&m.ClanID, &m.PlayerID, &m.Name, &m.Active, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *ClanMemberRepository) ListActive(ctx context.Context, clanID string) ([]domain.ClanMember, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT clan_id, player_id, name, active, created_at, updated_at
		FROM clan_members WHERE clan_id = ? AND active = 1 ORDER BY player_id`, clanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []domain.ClanMember
	for rows.Next() {
		var m domain.ClanMember
		if err := rows.Scan(&m.ClanID, &m.PlayerID, &m.Name, &m.Active, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// RosterMutation is a post-battle disposition applied to one roster
// member inside the battle transaction.
type RosterMutation struct {
	PlayerID string
	Action   string
}

// rosterActions dispatches an action code to the mutation it applies.
// Mutations on players missing from the roster are silent no-ops: battle
// inputs may include players the roster does not track.
var rosterActions = map[string]func(ctx context.Context, tx *sql.Tx, clanID, playerID string, now time.Time) error{
	domain.ActionKick: kickMember,
}

func kickMember(ctx context.Context, tx *sql.Tx, clanID, playerID string, now time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE clan_members SET active = 0, updated_at = ? WHERE clan_id = ? AND player_id = ?`,
		now, clanID, playerID)
	return err
}

func applyRosterMutations(ctx context.Context, tx *sql.Tx, clanID string, mutations []RosterMutation) error {
	now := time.Now().UTC()
	for _, m := range mutations {
		if m.Action == domain.ActionNone {
			continue
		}
		apply, ok := rosterActions[m.Action]
		if !ok {
			return domain.NewValidationError("unknown action code %q", m.Action)
		}
		if err := apply(ctx, tx, clanID, m.PlayerID, now); err != nil {
			return err
		}
	}
	return nil
}
