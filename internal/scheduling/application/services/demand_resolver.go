package services

import "github.com/shiftsat/engine/internal/scheduling/domain"

// DemandResolver turns a facility's cleaning-task volume for a given day
// into the minimum employee headcount required to clear it within the
// facility's cleaning window.
type DemandResolver struct{}

// NewDemandResolver creates a DemandResolver.
func NewDemandResolver() *DemandResolver {
	return &DemandResolver{}
}

// TasksFor returns the cleaning-task volume for (facility, date), consulting
// the date-specific entry before the day-of-week default.
func (r *DemandResolver) TasksFor(tasks domain.CleaningTaskTable, facilityID, dayOfWeek, dateStr string) int {
	return tasks.TasksFor(facilityID, dayOfWeek, dateStr)
}

// RequiredDuringCleaning computes the minimum headcount needed during the
// cleaning window to clear taskCount tasks given the facility's throughput
// and the window's duration in hours. Outside the cleaning window, or when
// there is nothing to clean, the baseline requirement of 1 applies instead
// (see RequiredStaffing).
func (r *DemandResolver) RequiredDuringCleaning(facility domain.Facility, taskCount, cleaningHoursDuration int) int {
	if cleaningHoursDuration <= 0 || taskCount <= 0 {
		return 1
	}
	capacity := facility.NormalizedThroughput() * cleaningHoursDuration
	required := (taskCount + capacity - 1) / capacity
	if required < 1 {
		return 1
	}
	return required
}

// RequiredStaffing returns the required headcount for hour h of a given day,
// given that day's task count at facility. Baseline is 1; the cleaning
// window raises it per RequiredDuringCleaning.
func (r *DemandResolver) RequiredStaffing(settings domain.Settings, facility domain.Facility, taskCount, hour int) int {
	if !settings.InCleaningWindow(hour) {
		return 1
	}
	return r.RequiredDuringCleaning(facility, taskCount, settings.CleaningHoursDuration())
}
