package services_test

import (
	"testing"
	"time"

	"github.com/shiftsat/engine/internal/scheduling/application/services"
	"github.com/shiftsat/engine/internal/scheduling/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trivialFeasibleScenario() (domain.Settings, []domain.Facility, []domain.Employee, domain.CleaningTaskTable) {
	settings := domain.DefaultSettings()
	settings.PlanningStartDate = time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC)
	settings.NumDays = 1
	settings.CleaningStartHour = 10
	settings.CleaningEndHour = 15

	facilities := []domain.Facility{{ID: "f1", TasksPerHourPerEmployee: 5}}
	employees := []domain.Employee{{
		ID: "e1",
		Availability: []domain.AvailabilitySlot{
			{DayOfWeek: "Mon", StartTime: "09:00", EndTime: "17:00"},
		},
	}}
	tasks := domain.CleaningTaskTable{}

	return settings, facilities, employees, tasks
}

func TestModelBuilder_SparseVariableAllocation(t *testing.T) {
	settings, facilities, employees, tasks := trivialFeasibleScenario()
	avail := services.NewAvailabilityExpander(nil).Expand(employees, settings)

	builder := services.NewModelBuilder(settings, facilities, employees, tasks, avail)
	built, err := builder.Build(domain.DefaultPenaltyMultipliers())
	require.NoError(t, err)

	count := 0
	for range built.X {
		count++
	}
	assert.Equal(t, 8, count, "exactly the 8 available hours should get a decision variable")

	assert.Contains(t, built.HardConstraints, "overnight_continuity")
	assert.Greater(t, built.Stats.NumVariables, 0)
}

func TestModelBuilder_PreferenceRestrictsFacilities(t *testing.T) {
	settings, _, _, tasks := trivialFeasibleScenario()
	facilities := []domain.Facility{{ID: "f1"}, {ID: "f2"}}
	employees := []domain.Employee{{
		ID:                  "e1",
		PreferredFacilities: []string{"f2"},
		Availability: []domain.AvailabilitySlot{
			{DayOfWeek: "Mon", StartTime: "09:00", EndTime: "10:00"},
		},
	}}
	avail := services.NewAvailabilityExpander(nil).Expand(employees, settings)

	builder := services.NewModelBuilder(settings, facilities, employees, tasks, avail)
	built, err := builder.Build(domain.DefaultPenaltyMultipliers())
	require.NoError(t, err)

	count := 0
	for range built.X {
		count++
	}
	assert.Equal(t, 1, count, "only the preferred facility should get a variable")
}

func TestModelBuilder_RequiredStaffingReflectsCleaningDemand(t *testing.T) {
	settings, facilities, employees, _ := trivialFeasibleScenario()
	tasks := domain.CleaningTaskTable{
		"f1": domain.FacilityTaskTable{
			DefaultTasksForDayOfWeek: map[string]int{"Mon": 40},
		},
	}
	avail := services.NewAvailabilityExpander(nil).Expand(employees, settings)

	builder := services.NewModelBuilder(settings, facilities, employees, tasks, avail)
	built, err := builder.Build(domain.DefaultPenaltyMultipliers())
	require.NoError(t, err)

	// 40 tasks / (5 capacity * 5-hour window) = 2 required during cleaning hours.
	assert.Equal(t, 2, built.RequiredStaffingAt[0][0][12])
	// Outside the cleaning window, baseline requirement is 1.
	assert.Equal(t, 1, built.RequiredStaffingAt[0][0][20])
}

// TestModelBuilder_OvernightContinuityChainsTheWholeSpan covers scenario D:
// an employee with a single overnight slot must have every hour of the span
// tied, by implication, to the facility assigned for the span's first hour.
func TestModelBuilder_OvernightContinuityChainsTheWholeSpan(t *testing.T) {
	settings := domain.DefaultSettings()
	settings.PlanningStartDate = time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC) // Monday
	settings.NumDays = 7                                                    // Fri is day index 4, Sat is 5

	facilities := []domain.Facility{{ID: "f1"}, {ID: "f2"}}
	employees := []domain.Employee{{
		ID: "e1",
		Availability: []domain.AvailabilitySlot{
			{DayOfWeek: "Fri", StartTime: "22:00", EndTime: "09:00", IsNightShift: true},
		},
	}}
	tasks := domain.CleaningTaskTable{}

	avail := services.NewAvailabilityExpander(nil).Expand(employees, settings)
	builder := services.NewModelBuilder(settings, facilities, employees, tasks, avail)
	built, err := builder.Build(domain.DefaultPenaltyMultipliers())
	require.NoError(t, err)

	// The employee expresses no facility preference, so every hour of the
	// overnight span (Fri 22,23 + Sat 0..8 = 11 hours) gets a decision
	// variable for both facilities; the continuity implication installed by
	// buildOvernightContinuity is what forces them onto one facility
	// together at solve time, rather than the variable count itself.
	count := 0
	for range built.X {
		count++
	}
	assert.Equal(t, 22, count)
	assert.Contains(t, built.HardConstraints, "overnight_continuity")
}
