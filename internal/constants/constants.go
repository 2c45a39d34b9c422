package constants

import "time"

const (
	// ScheduleCadenceDays is the fixed gap between battle starts.
	ScheduleCadenceDays = 3
)

const (
	DatabaseTimeout = 5 * time.Second
	RequestTimeout  = 30 * time.Second
)

const (
	DBMaxOpenConns    = 100
	DBMaxIdleConns    = 10
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	ScheduleInfoBattleLimit = 10
)
