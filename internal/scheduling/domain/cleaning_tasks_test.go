package domain_test

import (
	"testing"

	"github.com/shiftsat/engine/internal/scheduling/domain"
	"github.com/stretchr/testify/assert"
)

func TestCleaningTaskTable_TasksFor(t *testing.T) {
	table := domain.CleaningTaskTable{
		"facility-1": domain.FacilityTaskTable{
			ByDayOfWeekAndDate: map[string]map[string]int{
				"Mon": {"2025-06-09": 40},
			},
			DefaultTasksForDayOfWeek: map[string]int{
				"Mon": 10,
				"Tue": 5,
			},
		},
	}

	// Date-specific entry wins.
	assert.Equal(t, 40, table.TasksFor("facility-1", "Mon", "2025-06-09"))
	// Falls back to day-of-week default when the date isn't listed.
	assert.Equal(t, 10, table.TasksFor("facility-1", "Mon", "2025-06-16"))
	assert.Equal(t, 5, table.TasksFor("facility-1", "Tue", "2025-06-10"))
	// No entry at all -> zero.
	assert.Equal(t, 0, table.TasksFor("facility-1", "Wed", "2025-06-11"))
	assert.Equal(t, 0, table.TasksFor("unknown-facility", "Mon", "2025-06-09"))
}
