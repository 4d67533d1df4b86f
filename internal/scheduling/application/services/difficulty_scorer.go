package services

import "github.com/shiftsat/engine/internal/scheduling/domain"

// DifficultyScaleFactor converts a floating-point difficulty score into an
// integer suitable for the CP-SAT objective, which only accepts integer
// coefficients.
const DifficultyScaleFactor = 1000

// DifficultyScoreSource computes a per-(day,hour) difficulty score. The
// built-in DifficultyScorer satisfies it; an external scoring plugin can
// be adapted to it too (see infrastructure/scoring and the command
// handler's plugin adapter). The model builder scales whichever source is
// in use to integer coefficients itself, so a plugin only has to return
// float64.
type DifficultyScoreSource interface {
	Score(dayOfWeek string, hour int) float64
}

// DifficultyScorer computes the per-(day,hour) difficulty of a work cell,
// used both as a fairness signal and a direct tie-breaker in the objective.
type DifficultyScorer struct {
	settings domain.Settings
}

// NewDifficultyScorer creates a scorer bound to settings' scoring parameters.
func NewDifficultyScorer(settings domain.Settings) *DifficultyScorer {
	return &DifficultyScorer{settings: settings}
}

// Score returns the raw difficulty of working hour h of dayOfWeek. It does
// not apply the settings' global difficulty cost multiplier: that factor
// scopes to the direct per-hour tie-breaker term only (spec section 4.6),
// not to every consumer of this score, so callers that feed the staff
// shortage penalty or the fairness spread apply Score unscaled.
func (s *DifficultyScorer) Score(dayOfWeek string, hour int) float64 {
	score := s.settings.BaseScorePerHour

	if inNightRange(hour, s.settings.NightHourRangeStart, s.settings.NightHourRangeEnd) {
		score *= s.settings.NightHourMultiplier
	}
	if dayOfWeek == "Sat" || dayOfWeek == "Sun" {
		score *= s.settings.WeekendDayMultiplier
	}

	return score
}

// ScaledScore returns Score rounded to an integer coefficient via
// DifficultyScaleFactor. Like Score, it excludes the global difficulty cost
// multiplier.
func (s *DifficultyScorer) ScaledScore(dayOfWeek string, hour int) int64 {
	return int64(s.Score(dayOfWeek, hour)*DifficultyScaleFactor + 0.5)
}

// inNightRange reports whether hour falls in [start, end), wrapping past
// midnight when start > end (e.g. 22..6 covers 22,23,0,1,...,5).
func inNightRange(hour, start, end int) bool {
	if start == end {
		return false
	}
	if start < end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}
