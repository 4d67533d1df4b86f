package services

import (
	"log/slog"

	"github.com/shiftsat/engine/internal/scheduling/domain"
)

// NightShiftDetail records that an employee's overnight slot starts on a
// given day, so the model builder can enforce cross-midnight continuity.
type NightShiftDetail struct {
	StartHour int // hour on the starting day
	EndHour   int // hour on the following day
}

// Availability is the dense per-(employee,day,hour) bitmap produced by
// expanding employees' recurring weekly slots over the planning horizon.
type Availability struct {
	bitmap     map[[3]int]bool
	nightShift map[[2]int]NightShiftDetail
}

// Get reports whether employee empIdx can work planning-day day at hour h.
func (a *Availability) Get(empIdx, day, hour int) bool {
	return a.bitmap[[3]int{empIdx, day, hour}]
}

// NightShift returns the overnight slot detail starting at (empIdx, day), if any.
func (a *Availability) NightShift(empIdx, day int) (NightShiftDetail, bool) {
	d, ok := a.nightShift[[2]int{empIdx, day}]
	return d, ok
}

// AvailabilityExpander expands recurring weekly availability slots into a
// dense bitmap over the planning horizon, splitting overnight slots across
// the two calendar days they span.
type AvailabilityExpander struct {
	logger *slog.Logger
}

// NewAvailabilityExpander creates an expander that logs skipped slots to logger.
func NewAvailabilityExpander(logger *slog.Logger) *AvailabilityExpander {
	if logger == nil {
		logger = slog.Default()
	}
	return &AvailabilityExpander{logger: logger}
}

// Expand builds the availability bitmap and night-shift detail map for every
// employee over the planning horizon described by settings.
func (e *AvailabilityExpander) Expand(employees []domain.Employee, settings domain.Settings) *Availability {
	order := domain.DayOfWeekOrder(settings.DaysOfWeekOrder)

	result := &Availability{
		bitmap:     make(map[[3]int]bool),
		nightShift: make(map[[2]int]NightShiftDetail),
	}

	for empIdx, emp := range employees {
		for _, slot := range emp.Availability {
			startHour, err := domain.ParseHour(slot.StartTime)
			if err != nil {
				e.logger.Warn("skipping availability slot: unparseable start time",
					"employee_id", emp.ID, "start_time", slot.StartTime, "error", err)
				continue
			}
			endHour, err := domain.ParseHour(slot.EndTime)
			if err != nil {
				e.logger.Warn("skipping availability slot: unparseable end time",
					"employee_id", emp.ID, "end_time", slot.EndTime, "error", err)
				continue
			}

			for day := 0; day < settings.NumDays; day++ {
				date := domain.PlanningDate(settings.PlanningStartDate, day)
				if domain.DayOfWeekLabel(date, order) != slot.DayOfWeek {
					continue
				}

				overnight := slot.IsNightShift && endHour < startHour
				if !overnight {
					for h := startHour; h < endHour; h++ {
						if h >= 0 && h < domain.HoursInDay {
							result.bitmap[[3]int{empIdx, day, h}] = true
						}
					}
					continue
				}

				for h := startHour; h < domain.HoursInDay; h++ {
					result.bitmap[[3]int{empIdx, day, h}] = true
				}
				if day+1 < settings.NumDays {
					for h := 0; h < endHour; h++ {
						result.bitmap[[3]int{empIdx, day + 1, h}] = true
					}
				}
				result.nightShift[[2]int{empIdx, day}] = NightShiftDetail{
					StartHour: startHour,
					EndHour:   endHour,
				}
			}
		}
	}

	return result
}
