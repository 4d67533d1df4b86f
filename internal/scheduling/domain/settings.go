package domain

import "time"

// PenaltyMultipliers scales the baseline soft-penalty weights. The retry
// controller shrinks this vector on INFEASIBLE; one entry per soft category.
type PenaltyMultipliers struct {
	ConsecutiveDays float64
	WeeklyDays      float64
	DailyHours      float64
	StaffShortage   float64
}

// DefaultPenaltyMultipliers returns the 1.0 baseline used on the first attempt.
func DefaultPenaltyMultipliers() PenaltyMultipliers {
	return PenaltyMultipliers{
		ConsecutiveDays: 1.0,
		WeeklyDays:      1.0,
		DailyHours:      1.0,
		StaffShortage:   1.0,
	}
}

// Scaled returns a copy with every entry multiplied by factor.
func (m PenaltyMultipliers) Scaled(factor float64) PenaltyMultipliers {
	return PenaltyMultipliers{
		ConsecutiveDays: m.ConsecutiveDays * factor,
		WeeklyDays:      m.WeeklyDays * factor,
		DailyHours:      m.DailyHours * factor,
		StaffShortage:   m.StaffShortage * factor,
	}
}

// Settings holds the planning-horizon parameters and tunable penalty weights.
type Settings struct {
	PlanningStartDate time.Time
	NumDays           int
	DaysOfWeekOrder   []string

	CleaningStartHour int
	CleaningEndHour   int

	MaxWeeklyHours int // hard cap, default 40
	MinRestHours   int // hard cap, default 8

	MaxConsecutiveWorkDays int

	ConsecutiveDaysPenalty float64
	WeeklyDaysPenalty      float64
	DailyHoursPenalty      float64
	StaffShortagePenalty   float64
	DifficultyFairnessWeight float64

	BaseScorePerHour                float64
	NightHourMultiplier             float64
	WeekendDayMultiplier            float64
	GlobalDifficultyCostMultiplier  float64
	NightHourRangeStart             int
	NightHourRangeEnd               int

	TimeLimitSec int

	MaxRetryAttempts       int
	PenaltyReductionFactor float64
	MaxSearchWorkers       int
}

// CleaningHoursDuration returns the width of the cleaning window in hours.
func (s Settings) CleaningHoursDuration() int {
	return s.CleaningEndHour - s.CleaningStartHour
}

// InCleaningWindow reports whether hour h falls in [CleaningStartHour, CleaningEndHour).
func (s Settings) InCleaningWindow(h int) bool {
	return h >= s.CleaningStartHour && h < s.CleaningEndHour
}

// DefaultSettings returns settings with spec-mandated hard caps and the
// original system's baseline soft-penalty weights.
func DefaultSettings() Settings {
	return Settings{
		DaysOfWeekOrder:                 DefaultDaysOfWeekOrder[:],
		CleaningStartHour:               10,
		CleaningEndHour:                 15,
		MaxWeeklyHours:                  40,
		MinRestHours:                    8,
		MaxConsecutiveWorkDays:          5,
		ConsecutiveDaysPenalty:          50000,
		WeeklyDaysPenalty:               40000,
		DailyHoursPenalty:               30000,
		StaffShortagePenalty:            100000,
		DifficultyFairnessWeight:        1,
		BaseScorePerHour:                1,
		NightHourMultiplier:             1.5,
		WeekendDayMultiplier:            1.25,
		GlobalDifficultyCostMultiplier:  1,
		NightHourRangeStart:             22,
		NightHourRangeEnd:               6,
		TimeLimitSec:                    60,
		MaxRetryAttempts:                3,
		PenaltyReductionFactor:          0.2,
		MaxSearchWorkers:                8,
	}
}
