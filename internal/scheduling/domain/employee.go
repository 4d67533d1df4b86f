package domain

// AvailabilitySlot is a recurring weekly window during which an employee
// can be scheduled.
type AvailabilitySlot struct {
	DayOfWeek    string
	StartTime    string // "HH:MM"
	EndTime      string // "HH:MM"
	IsNightShift bool
}

// Employee is a schedulable worker with per-day availability and
// contractual limits.
type Employee struct {
	ID                     string
	PreferredFacilities    []string // empty means no preference
	Availability           []AvailabilitySlot
	ContractMaxDaysPerWeek int
	ContractMaxHoursPerDay int

	// CostPerHour is a diagnostic field reported alongside per-employee
	// results; the objective does not minimize wage cost.
	CostPerHour float64
}

// HasPreferences reports whether the employee restricts itself to a
// facility subset.
func (e Employee) HasPreferences() bool {
	return len(e.PreferredFacilities) > 0
}

// Prefers reports whether facilityID is an acceptable assignment target.
func (e Employee) Prefers(facilityID string) bool {
	if !e.HasPreferences() {
		return true
	}
	for _, id := range e.PreferredFacilities {
		if id == facilityID {
			return true
		}
	}
	return false
}

// EffectiveMaxDaysPerWeek returns ContractMaxDaysPerWeek, defaulting to 7.
func (e Employee) EffectiveMaxDaysPerWeek() int {
	if e.ContractMaxDaysPerWeek <= 0 {
		return 7
	}
	return e.ContractMaxDaysPerWeek
}

// EffectiveMaxHoursPerDay returns ContractMaxHoursPerDay, defaulting to 24.
func (e Employee) EffectiveMaxHoursPerDay() int {
	if e.ContractMaxHoursPerDay <= 0 {
		return HoursInDay
	}
	return e.ContractMaxHoursPerDay
}
