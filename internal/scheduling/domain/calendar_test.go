package domain_test

import (
	"testing"
	"time"

	"github.com/shiftsat/engine/internal/scheduling/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHour(t *testing.T) {
	h, err := domain.ParseHour("09:30")
	require.NoError(t, err)
	assert.Equal(t, 9, h)

	h, err = domain.ParseHour("00:00")
	require.NoError(t, err)
	assert.Equal(t, 0, h)
}

func TestParseHour_Malformed(t *testing.T) {
	_, err := domain.ParseHour("not-a-time")
	assert.Error(t, err)

	_, err = domain.ParseHour("")
	assert.Error(t, err)
}

func TestDayOfWeekOrder_FallsBackToDefault(t *testing.T) {
	order := domain.DayOfWeekOrder(nil)
	assert.Equal(t, domain.DefaultDaysOfWeekOrder[:], order)

	custom := []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}
	assert.Equal(t, custom, domain.DayOfWeekOrder(custom))
}

func TestDayOfWeekLabel(t *testing.T) {
	order := domain.DefaultDaysOfWeekOrder[:]

	monday := time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "Mon", domain.DayOfWeekLabel(monday, order))

	sunday := monday.AddDate(0, 0, 6)
	assert.Equal(t, "Sun", domain.DayOfWeekLabel(sunday, order))
}

func TestPlanningDate(t *testing.T) {
	start := time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, start, domain.PlanningDate(start, 0))
	assert.Equal(t, start.AddDate(0, 0, 3), domain.PlanningDate(start, 3))
}

func TestDateString(t *testing.T) {
	d := time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-06-09", domain.DateString(d))
}
