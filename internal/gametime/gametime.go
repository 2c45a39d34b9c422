// Package gametime is the single source of truth for Game-Time
// arithmetic. Game Time is a fixed UTC-5 zone with no DST; every
// schedule identifier is derived from calendar fields observed in it,
// while all persisted instants stay in UTC.
package gametime

import (
	"time"

	"github.com/webzeppelin/angry-birdman-sub002/internal/domain"
)

// Location is the fixed Game-Time zone. Deliberately not a tzdata zone:
// the schedule never observes DST.
var Location = time.FixedZone("GMT-5", -5*60*60)

const (
	battleIDLayout = "20060102"
	monthIDLayout  = "200601"
	yearIDLayout   = "2006"
)

// ToGameTime returns t viewed in Game Time. The instant is unchanged, so
// ToUTC(ToGameTime(t)) == t for all t.
func ToGameTime(t time.Time) time.Time {
	return t.In(Location)
}

// ToUTC returns t viewed in UTC.
func ToUTC(t time.Time) time.Time {
	return t.UTC()
}

// Now is the current instant viewed in Game Time.
func Now() time.Time {
	return time.Now().In(Location)
}

// BattleID derives the canonical 8-digit YYYYMMDD identifier from the
// calendar date of t observed in Game Time.
func BattleID(t time.Time) string {
	return t.In(Location).Format(battleIDLayout)
}

// MonthID derives the 6-digit YYYYMM identifier; it is always a textual
// prefix of the BattleID for the same instant.
func MonthID(t time.Time) string {
	return t.In(Location).Format(monthIDLayout)
}

// YearID derives the 4-digit YYYY identifier.
func YearID(t time.Time) string {
	return t.In(Location).Format(yearIDLayout)
}

// ParseBattleID returns the Game-Time midnight for an 8-digit battle id.
func ParseBattleID(id string) (time.Time, error) {
	t, err := time.ParseInLocation(battleIDLayout, id, Location)
	if err != nil {
		return time.Time{}, domain.NewValidationError("battle id %q is not an 8-digit date", id)
	}
	return t, nil
}

// MonthIDOf returns the 6-digit month prefix of a battle id.
func MonthIDOf(battleID string) string {
	return battleID[:6]
}

// YearIDOf returns the 4-digit year prefix of a battle id.
func YearIDOf(battleID string) string {
	return battleID[:4]
}

// BattleWindow returns the UTC storage bounds of the battle starting on
// the Game-Time date of t: midnight Game Time through 23:59:59.999 Game
// Time one calendar day later. The end is computed with calendar-day
// addition so the window stays correct across month and year boundaries.
func BattleWindow(t time.Time) (start, end time.Time) {
	g := t.In(Location)
	start = time.Date(g.Year(), g.Month(), g.Day(), 0, 0, 0, 0, Location)
	lastDay := start.AddDate(0, 0, 1)
	end = time.Date(lastDay.Year(), lastDay.Month(), lastDay.Day(), 23, 59, 59, 999_000_000, Location)
	return start.UTC(), end.UTC()
}

// AddDays advances t by whole Game-Time calendar days and returns the
// resulting UTC instant.
func AddDays(t time.Time, days int) time.Time {
	return t.In(Location).AddDate(0, 0, days).UTC()
}
