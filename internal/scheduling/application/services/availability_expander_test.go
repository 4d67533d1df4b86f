package services_test

import (
	"testing"
	"time"

	"github.com/shiftsat/engine/internal/scheduling/application/services"
	"github.com/shiftsat/engine/internal/scheduling/domain"
	"github.com/stretchr/testify/assert"
)

func horizonSettings(numDays int) domain.Settings {
	s := domain.DefaultSettings()
	s.PlanningStartDate = time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC) // Monday
	s.NumDays = numDays
	return s
}

func TestAvailabilityExpander_StandardSlot(t *testing.T) {
	employees := []domain.Employee{{
		ID: "e1",
		Availability: []domain.AvailabilitySlot{
			{DayOfWeek: "Mon", StartTime: "09:00", EndTime: "17:00"},
		},
	}}

	expander := services.NewAvailabilityExpander(nil)
	avail := expander.Expand(employees, horizonSettings(1))

	for h := 9; h < 17; h++ {
		assert.True(t, avail.Get(0, 0, h), "hour %d should be available", h)
	}
	assert.False(t, avail.Get(0, 0, 8))
	assert.False(t, avail.Get(0, 0, 17))
}

func TestAvailabilityExpander_OvernightSlotSplitsAcrossDays(t *testing.T) {
	employees := []domain.Employee{{
		ID: "e1",
		Availability: []domain.AvailabilitySlot{
			{DayOfWeek: "Fri", StartTime: "22:00", EndTime: "09:00", IsNightShift: true},
		},
	}}

	settings := horizonSettings(7) // Mon..Sun, so Fri is day index 4
	expander := services.NewAvailabilityExpander(nil)
	avail := expander.Expand(employees, settings)

	assert.True(t, avail.Get(0, 4, 22))
	assert.True(t, avail.Get(0, 4, 23))
	assert.True(t, avail.Get(0, 5, 0))
	assert.True(t, avail.Get(0, 5, 8))
	assert.False(t, avail.Get(0, 5, 9))

	detail, ok := avail.NightShift(0, 4)
	assert.True(t, ok)
	assert.Equal(t, 22, detail.StartHour)
	assert.Equal(t, 9, detail.EndHour)
}

func TestAvailabilityExpander_OvernightSlotAtHorizonEndIsTruncated(t *testing.T) {
	employees := []domain.Employee{{
		ID: "e1",
		Availability: []domain.AvailabilitySlot{
			{DayOfWeek: "Sun", StartTime: "22:00", EndTime: "06:00", IsNightShift: true},
		},
	}}

	settings := horizonSettings(7) // Sun is the last day, index 6
	expander := services.NewAvailabilityExpander(nil)
	avail := expander.Expand(employees, settings)

	assert.True(t, avail.Get(0, 6, 22))
	// No day 7 to spill into; nothing should panic, and no next-day hours exist.
	_, ok := avail.NightShift(0, 6)
	assert.True(t, ok)
}

func TestAvailabilityExpander_MalformedSlotSkipped(t *testing.T) {
	employees := []domain.Employee{{
		ID: "e1",
		Availability: []domain.AvailabilitySlot{
			{DayOfWeek: "Mon", StartTime: "bad-time", EndTime: "17:00"},
			{DayOfWeek: "Tue", StartTime: "09:00", EndTime: "17:00"},
		},
	}}

	expander := services.NewAvailabilityExpander(nil)
	avail := expander.Expand(employees, horizonSettings(2))

	// Malformed Monday slot contributes nothing.
	for h := 0; h < domain.HoursInDay; h++ {
		assert.False(t, avail.Get(0, 0, h))
	}
	// Tuesday slot still parses fine.
	assert.True(t, avail.Get(0, 1, 9))
}
