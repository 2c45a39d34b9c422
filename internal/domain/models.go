package domain

import (
	"time"
)

// MasterBattle is the global, clan-independent schedule entry for one
// battle window. The window is immutable once created; only metadata
// (notes) may change, and rows are never deleted because clan battles
// reference them.
type MasterBattle struct {
	BattleID  string // 8-digit YYYYMMDD in Game Time
	StartAt   time.Time
	EndAt     time.Time
	CreatedBy string // empty for scheduler-created battles
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ScheduleSetting is the singleton scheduler state.
type ScheduleSetting struct {
	NextBattleAt time.Time // UTC instant of the next Game-Time midnight start
	Enabled      bool
	UpdatedAt    time.Time
}

type ClanBattle struct {
	ID           string // nanoid
	ClanID       string
	BattleID     string
	MonthID      string // 6-digit prefix of BattleID
	YearID       string // 4-digit prefix of BattleID
	OpponentName string
	Notes        string

	// raw inputs
	Score         float64
	BaselineFP    float64
	OpponentScore float64
	OpponentFP    float64

	// derived, recomputed in full on every write
	Result            int // 1 won, 0 tied, -1 lost
	TotalFP           float64
	Ratio             float64
	AverageRatio      float64
	ProjectedScore    float64
	MarginRatio       float64
	FPMargin          float64
	NonplayingFPRatio float64
	ReserveFPRatio    float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

type PlayerStat struct {
	ClanID     string
	BattleID   string
	PlayerID   string
	PlayerName string
	Position   int // input ordinal, tiebreaker for RatioRank
	Rank       int // in-game rank as reported
	Score      float64
	FP         float64
	Ratio      float64
	RatioRank  int
}

type NonplayerStat struct {
	ClanID     string
	BattleID   string
	PlayerID   string
	PlayerName string
	FP         float64
	Reserve    bool
}

type ClanMember struct {
	ClanID    string
	PlayerID  string
	Name      string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PeriodKind selects the monthly or yearly summary table.
type PeriodKind string

const (
	PeriodMonth PeriodKind = "month"
	PeriodYear  PeriodKind = "year"
)

// PeriodPerformance is a pure projection of the clan's battles in one
// period. Always recomputed from scratch, never patched incrementally.
type PeriodPerformance struct {
	ClanID   string
	PeriodID string // 6-digit month id or 4-digit year id

	BattleCount int
	WonCount    int
	LostCount   int
	TiedCount   int

	AvgScore             float64
	AvgRatio             float64
	AvgAverageRatio      float64
	AvgProjectedScore    float64
	AvgMarginRatio       float64
	AvgFPMargin          float64
	AvgNonplayingFPRatio float64
	AvgReserveFPRatio    float64

	Completed bool // set independently, preserved across recomputes
	UpdatedAt time.Time
}

// Roster action codes applied with a battle write.
const (
	ActionNone = ""
	ActionKick = "kick"
)
