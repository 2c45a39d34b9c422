package service

import (
	"context"
	"sort"

	"github.com/webzeppelin/angry-birdman-sub002/internal/constants"
	"github.com/webzeppelin/angry-birdman-sub002/internal/domain"
	"github.com/webzeppelin/angry-birdman-sub002/internal/gametime"
	"github.com/webzeppelin/angry-birdman-sub002/internal/repository"

	"github.com/go-playground/validator/v10"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

type PlayerInput struct {
	PlayerID   string  `json:"playerId" validate:"required"`
	Name       string  `json:"name"`
	Rank       int     `json:"rank" validate:"gte=0"`
	Score      float64 `json:"score" validate:"gte=0"`
	FP         float64 `json:"fp" validate:"gt=0"`
	ActionCode string  `json:"actionCode" validate:"omitempty,oneof=kick"`
}

type NonplayerInput struct {
	PlayerID   string  `json:"playerId" validate:"required"`
	Name       string  `json:"name"`
	FP         float64 `json:"fp" validate:"gte=0"`
	Reserve    bool    `json:"reserve"`
	ActionCode string  `json:"actionCode" validate:"omitempty,oneof=kick"`
}

type BattleInput struct {
	BattleID      string           `json:"battleId" validate:"required,len=8,numeric"`
	OpponentName  string           `json:"opponentName"`
	Notes         string           `json:"notes"`
	Score         float64          `json:"score" validate:"gt=0"`
	BaselineFP    float64          `json:"baselineFp" validate:"gt=0"`
	OpponentScore float64          `json:"opponentScore" validate:"gte=0"`
	OpponentFP    float64          `json:"opponentFp" validate:"gte=0"`
	Players       []PlayerInput    `json:"players" validate:"required,min=1,dive"`
	Nonplayers    []NonplayerInput `json:"nonplayers" validate:"dive"`
}

// BattleUpdateInput carries a partial battle update. Nil fields keep the
// persisted value; the battle id and window are immutable.
type BattleUpdateInput struct {
	OpponentName  *string          `json:"opponentName"`
	Notes         *string          `json:"notes"`
	Score         *float64         `json:"score"`
	BaselineFP    *float64         `json:"baselineFp"`
	OpponentScore *float64         `json:"opponentScore"`
	OpponentFP    *float64         `json:"opponentFp"`
	Players       []PlayerInput    `json:"players"`
	Nonplayers    []NonplayerInput `json:"nonplayers"`
}

// BattleService is the battle record engine: it validates inputs against
// the master schedule, derives every calculated metric and persists the
// battle with its stat rows atomically.
type BattleService struct {
	battles  *repository.ClanBattleRepository
	masters  *repository.MasterBattleRepository
	members  *repository.ClanMemberRepository
	agg      *AggregationService
	validate *validator.Validate
	logger   zerolog.Logger
}

func NewBattleService(battles *repository.ClanBattleRepository, masters *repository.MasterBattleRepository, members *repository.ClanMemberRepository, agg *AggregationService, logger zerolog.Logger) *BattleService {
	return &BattleService{
		battles:  battles,
		masters:  masters,
		members:  members,
		agg:      agg,
		validate: validator.New(),
		logger:   logger,
	}
}

func (s *BattleService) CreateBattle(ctx context.Context, clanID string, input *BattleInput) (*repository.BattleWithStats, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	if err := s.validateInput(clanID, input); err != nil {
		return nil, err
	}

	exists, err := s.masters.Exists(ctx, input.BattleID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrNotFound
	}
	if _, err := s.battles.Get(ctx, clanID, input.BattleID); err == nil {
		return nil, domain.ErrConflict
	} else if err != domain.ErrNotFound {
		return nil, err
	}

	id, err := gonanoid.New()
	if err != nil {
		return nil, err
	}

	battle, players, nonplayers := computeBattle(id, clanID, input)
	mutations := collectMutations(input)

	// The pre-check above is advisory; the UNIQUE constraint inside
	// Create settles concurrent attempts to exactly one winner.
	if err := s.battles.Create(ctx, battle, players, nonplayers, mutations); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("clan_id", clanID).
		Str("battle_id", input.BattleID).
		Int("players", len(players)).
		Int("nonplayers", len(nonplayers)).
		Msg("clan battle recorded")

	s.triggerAggregation(ctx, clanID, input.BattleID)
	return &repository.BattleWithStats{Battle: *battle, Players: players, Nonplayers: nonplayers}, nil
}

// UpdateBattle merges the supplied fields over the persisted inputs and
// performs a full recompute-and-replace: derived values can never drift
// from their inputs, and readers never observe a transient empty state.
func (s *BattleService) UpdateBattle(ctx context.Context, clanID, battleID string, input *BattleUpdateInput) (*repository.BattleWithStats, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	existing, err := s.battles.GetWithStats(ctx, clanID, battleID)
	if err != nil {
		return nil, err
	}

	merged := mergeInput(existing, input)
	if err := s.validateInput(clanID, merged); err != nil {
		return nil, err
	}

	battle, players, nonplayers := computeBattle(existing.Battle.ID, clanID, merged)
	battle.CreatedAt = existing.Battle.CreatedAt
	mutations := collectMutations(merged)

	if err := s.battles.Replace(ctx, battle, players, nonplayers, mutations); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("clan_id", clanID).
		Str("battle_id", battleID).
		Msg("clan battle recomputed")

	s.triggerAggregation(ctx, clanID, battleID)
	return &repository.BattleWithStats{Battle: *battle, Players: players, Nonplayers: nonplayers}, nil
}

func (s *BattleService) DeleteBattle(ctx context.Context, clanID, battleID string) error {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	if err := s.battles.Delete(ctx, clanID, battleID); err != nil {
		return err
	}

	s.logger.Info().
		Str("clan_id", clanID).
		Str("battle_id", battleID).
		Msg("clan battle deleted")

	s.triggerAggregation(ctx, clanID, battleID)
	return nil
}

func (s *BattleService) GetBattles(ctx context.Context, clanID string) ([]domain.ClanBattle, error) {
	return s.battles.ListByClan(ctx, clanID)
}

func (s *BattleService) GetBattleByID(ctx context.Context, clanID, battleID string) (*repository.BattleWithStats, error) {
	return s.battles.GetWithStats(ctx, clanID, battleID)
}

// GetMembers lists the clan's active roster.
func (s *BattleService) GetMembers(ctx context.Context, clanID string) ([]domain.ClanMember, error) {
	return s.members.ListActive(ctx, clanID)
}

// UpsertMember registers or reactivates a roster member.
func (s *BattleService) UpsertMember(ctx context.Context, member *domain.ClanMember) error {
	if member.ClanID == "" || member.PlayerID == "" {
		return domain.NewValidationError("clan id and player id are required")
	}
	return s.members.Upsert(ctx, member)
}

func (s *BattleService) validateInput(clanID string, input *BattleInput) error {
	if clanID == "" {
		return domain.NewValidationError("clan id is required")
	}
	if err := s.validate.Struct(input); err != nil {
		return &domain.ValidationError{Detail: err.Error()}
	}
	if _, err := gametime.ParseBattleID(input.BattleID); err != nil {
		return err
	}
	return nil
}

// triggerAggregation recomputes the affected month and year summaries
// after the battle transaction has committed. Best-effort: a failure is
// logged and the next write re-triggers the same recompute.
func (s *BattleService) triggerAggregation(ctx context.Context, clanID, battleID string) {
	if err := s.agg.RecomputeForBattle(ctx, clanID, battleID); err != nil {
		s.logger.Warn().
			Err(err).
			Str("clan_id", clanID).
			Str("battle_id", battleID).
			Msg("aggregation recompute failed, will retry on next write")
	}
}

// computeBattle derives every calculated field from the raw inputs.
func computeBattle(id, clanID string, input *BattleInput) (*domain.ClanBattle, []domain.PlayerStat, []domain.NonplayerStat) {
	var playingFP, nonplayingFP, reserveFP float64
	for _, p := range input.Players {
		playingFP += p.FP
	}
	for _, np := range input.Nonplayers {
		if np.Reserve {
			reserveFP += np.FP
		} else {
			nonplayingFP += np.FP
		}
	}
	// Reserves are deliberately excluded from the FP pool.
	totalFP := playingFP + nonplayingFP

	players := make([]domain.PlayerStat, len(input.Players))
	for i, p := range input.Players {
		players[i] = domain.PlayerStat{
			ClanID:     clanID,
			BattleID:   input.BattleID,
			PlayerID:   p.PlayerID,
			PlayerName: p.Name,
			Position:   i,
			Rank:       p.Rank,
			Score:      p.Score,
			FP:         p.FP,
			Ratio:      p.Score / p.FP * 10,
		}
	}
	rankByRatio(players)

	nonplayers := make([]domain.NonplayerStat, len(input.Nonplayers))
	for i, np := range input.Nonplayers {
		nonplayers[i] = domain.NonplayerStat{
			ClanID:     clanID,
			BattleID:   input.BattleID,
			PlayerID:   np.PlayerID,
			PlayerName: np.Name,
			FP:         np.FP,
			Reserve:    np.Reserve,
		}
	}

	nonplayingFrac := 0.0
	reserveFrac := 0.0
	if totalFP > 0 {
		nonplayingFrac = nonplayingFP / totalFP
		reserveFrac = reserveFP / totalFP
	}

	battle := &domain.ClanBattle{
		ID:                id,
		ClanID:            clanID,
		BattleID:          input.BattleID,
		MonthID:           gametime.MonthIDOf(input.BattleID),
		YearID:            gametime.YearIDOf(input.BattleID),
		OpponentName:      input.OpponentName,
		Notes:             input.Notes,
		Score:             input.Score,
		BaselineFP:        input.BaselineFP,
		OpponentScore:     input.OpponentScore,
		OpponentFP:        input.OpponentFP,
		Result:            sign(input.Score - input.OpponentScore),
		TotalFP:           totalFP,
		Ratio:             input.Score / input.BaselineFP * 10,
		AverageRatio:      input.Score / totalFP * 10,
		ProjectedScore:    input.Score * (1 + nonplayingFrac),
		MarginRatio:       (input.Score - input.OpponentScore) / input.Score * 100,
		FPMargin:          (input.BaselineFP - input.OpponentFP) / input.BaselineFP * 100,
		NonplayingFPRatio: nonplayingFrac * 100,
		ReserveFPRatio:    reserveFrac * 100,
	}
	return battle, players, nonplayers
}

// rankByRatio assigns ratio ranks by descending ratio; ties keep the
// stable input order.
func rankByRatio(players []domain.PlayerStat) {
	order := make([]int, len(players))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return players[order[a]].Ratio > players[order[b]].Ratio
	})
	for rank, idx := range order {
		players[idx].RatioRank = rank + 1
	}
}

func collectMutations(input *BattleInput) []repository.RosterMutation {
	var mutations []repository.RosterMutation
	for _, p := range input.Players {
		if p.ActionCode != domain.ActionNone {
			mutations = append(mutations, repository.RosterMutation{PlayerID: p.PlayerID, Action: p.ActionCode})
		}
	}
	for _, np := range input.Nonplayers {
		if np.ActionCode != domain.ActionNone {
			mutations = append(mutations, repository.RosterMutation{PlayerID: np.PlayerID, Action: np.ActionCode})
		}
	}
	return mutations
}

// mergeInput overlays the supplied update fields on the persisted raw
// inputs, rebuilding the full input set the recompute runs on.
func mergeInput(existing *repository.BattleWithStats, input *BattleUpdateInput) *BattleInput {
	merged := &BattleInput{
		BattleID:      existing.Battle.BattleID,
		OpponentName:  existing.Battle.OpponentName,
		Notes:         existing.Battle.Notes,
		Score:         existing.Battle.Score,
		BaselineFP:    existing.Battle.BaselineFP,
		OpponentScore: existing.Battle.OpponentScore,
		OpponentFP:    existing.Battle.OpponentFP,
	}
	if input.OpponentName != nil {
		merged.OpponentName = *input.OpponentName
	}
	if input.Notes != nil {
		merged.Notes = *input.Notes
	}
	if input.Score != nil {
		merged.Score = *input.Score
	}
	if input.BaselineFP != nil {
		merged.BaselineFP = *input.BaselineFP
	}
	if input.OpponentScore != nil {
		merged.OpponentScore = *input.OpponentScore
	}
	if input.OpponentFP != nil {
		merged.OpponentFP = *input.OpponentFP
	}

	if input.Players != nil {
		merged.Players = input.Players
	} else {
		merged.Players = make([]PlayerInput, len(existing.Players))
		for i, p := range existing.Players {
			merged.Players[i] = PlayerInput{
				PlayerID: p.PlayerID,
				Name:     p.PlayerName,
				Rank:     p.Rank,
				Score:    p.Score,
				FP:       p.FP,
			}
		}
	}

	if input.Nonplayers != nil {
		merged.Nonplayers = input.Nonplayers
	} else {
		merged.Nonplayers = make([]NonplayerInput, len(existing.Nonplayers))
		for i, np := range existing.Nonplayers {
			merged.Nonplayers[i] = NonplayerInput{
				PlayerID: np.PlayerID,
				Name:     np.PlayerName,
				FP:       np.FP,
				Reserve:  np.Reserve,
			}
		}
	}
	return merged
}

func sign(x float64) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}
