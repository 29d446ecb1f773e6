// This file implements the Strategy Pattern for plan refresh cadences.
// Each cadence has its own checker deciding whether a plan is due for a new
// projection.

package services

import (
	"fmt"
	"time"

	"patrimonio/internal/core"
)

// CadenceChecker decides whether a plan is due given when it was last
// projected and when it was created.
type CadenceChecker interface {
	IsDue(lastProjection, now, anchor time.Time) bool
}

// NeverChecker is used for plans that are only projected on demand.
type NeverChecker struct{}

func (NeverChecker) IsDue(_, _, _ time.Time) bool {
	return false
}

// DailyChecker returns true if the last projection was before today.
type DailyChecker struct{}

func (DailyChecker) IsDue(lastProjection, now, _ time.Time) bool {
	if lastProjection.IsZero() {
		return true
	}
	return lastProjection.Format(time.DateOnly) != now.Format(time.DateOnly)
}

// WeeklyChecker returns true if 7 or more days have passed.
type WeeklyChecker struct{}

func (WeeklyChecker) IsDue(lastProjection, now, _ time.Time) bool {
	if lastProjection.IsZero() {
		return true
	}
	return now.Sub(lastProjection) >= 7*24*time.Hour
}

// MonthlyChecker returns true once per calendar month, on or after the day
// of month the plan was created.
type MonthlyChecker struct{}

func (MonthlyChecker) IsDue(lastProjection, now, anchor time.Time) bool {
	if lastProjection.IsZero() {
		return true
	}

	// Already projected this month?
	if lastProjection.Year() == now.Year() && lastProjection.Month() == now.Month() {
		return false
	}

	// Clamp to the last day for short months (e.g. created on the 31st)
	targetDay := anchor.Day()
	lastDayOfMonth := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if targetDay > lastDayOfMonth {
		targetDay = lastDayOfMonth
	}
	return now.Day() >= targetDay
}

var cadenceStrategies = map[core.RefreshCadence]CadenceChecker{
	core.Never:   NeverChecker{},
	core.Daily:   DailyChecker{},
	core.Weekly:  WeeklyChecker{},
	core.Monthly: MonthlyChecker{},
}

// GetCadenceChecker returns the checker for a cadence. The empty cadence
// behaves like core.Never.
func GetCadenceChecker(cadence core.RefreshCadence) (CadenceChecker, error) {
	if cadence == "" {
		cadence = core.Never
	}
	checker, ok := cadenceStrategies[cadence]
	if !ok {
		return nil, fmt.Errorf("unknown refresh cadence: %s", cadence)
	}
	return checker, nil
}
