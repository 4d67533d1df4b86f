// Package application wires the scheduling domain and its CP-SAT services
// together behind the wire-format input/output objects section 6 of the
// specification describes.
package application

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shiftsat/engine/internal/scheduling/domain"
)

// ScheduleRequest is the top-level input object: the schedule_input payload
// plus the cleaning_tasks_input table, exactly as callers POST it.
type ScheduleRequest struct {
	ScheduleInput      *ScheduleInputDTO           `json:"schedule_input"`
	CleaningTasksInput map[string]FacilityTasksDTO `json:"cleaning_tasks_input"`
}

// ScheduleInputDTO is schedule_input: settings, facilities, employees.
type ScheduleInputDTO struct {
	Settings   *SettingsDTO   `json:"settings"`
	Facilities []FacilityDTO  `json:"facilities"`
	Employees  []EmployeeDTO  `json:"employees"`
}

// SettingsDTO mirrors domain.Settings in wire form.
type SettingsDTO struct {
	PlanningStartDate string   `json:"planning_start_date"`
	NumDays           int      `json:"num_days"`
	DaysOfWeekOrder   []string `json:"days_of_week_order,omitempty"`

	CleaningStartHour int `json:"cleaning_start_h"`
	CleaningEndHour   int `json:"cleaning_end_h"`

	MaxWeeklyHours int `json:"max_weekly_hours,omitempty"`
	MinRestHours   int `json:"min_rest_hours,omitempty"`

	MaxConsecutiveWorkDays int `json:"max_consecutive_work_days,omitempty"`

	ConsecutiveDaysPenalty   *float64 `json:"consecutive_days_penalty,omitempty"`
	WeeklyDaysPenalty        *float64 `json:"weekly_days_penalty,omitempty"`
	DailyHoursPenalty        *float64 `json:"daily_hours_penalty,omitempty"`
	StaffShortagePenalty     *float64 `json:"staff_shortage_penalty,omitempty"`
	DifficultyFairnessWeight *float64 `json:"difficulty_fairness_weight,omitempty"`

	BaseScorePerHour               *float64 `json:"base_score_per_hour,omitempty"`
	NightHourMultiplier            *float64 `json:"night_hour_multiplier,omitempty"`
	WeekendDayMultiplier           *float64 `json:"weekend_day_multiplier,omitempty"`
	GlobalDifficultyCostMultiplier *float64 `json:"global_difficulty_cost_multiplier,omitempty"`
	NightHourRangeStart            *int     `json:"night_hour_range_start,omitempty"`
	NightHourRangeEnd              *int     `json:"night_hour_range_end,omitempty"`

	TimeLimitSec           int     `json:"time_limit_sec,omitempty"`
	MaxRetryAttempts       int     `json:"max_retry_attempts,omitempty"`
	PenaltyReductionFactor float64 `json:"penalty_reduction_factor,omitempty"`
	MaxSearchWorkers       int     `json:"max_search_workers,omitempty"`
}

// FacilityDTO mirrors domain.Facility.
type FacilityDTO struct {
	ID                        string   `json:"id"`
	TasksPerHourPerEmployee   int      `json:"tasks_per_hour_per_employee"`
	ShortagePenaltyOverride   *float64 `json:"shortage_penalty_override,omitempty"`
	ShortagePenaltyMultiplier *float64 `json:"shortage_penalty_multiplier,omitempty"`
}

// EmployeeDTO mirrors domain.Employee.
type EmployeeDTO struct {
	ID                     string                `json:"id"`
	PreferredFacilities    []string              `json:"preferred_facilities,omitempty"`
	Availability           []AvailabilitySlotDTO `json:"availability"`
	ContractMaxDaysPerWeek int                   `json:"contract_max_days_per_week,omitempty"`
	ContractMaxHoursPerDay int                   `json:"contract_max_hours_per_day,omitempty"`
	CostPerHour            float64               `json:"cost_per_hour,omitempty"`
}

// AvailabilitySlotDTO mirrors domain.AvailabilitySlot.
type AvailabilitySlotDTO struct {
	DayOfWeek    string `json:"day_of_week"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	IsNightShift bool   `json:"is_night_shift,omitempty"`
}

// FacilityTasksDTO is one facility's entry in cleaning_tasks_input: a
// day-of-week keyed map of date->count, plus an optional default.
type FacilityTasksDTO struct {
	ByDayOfWeek              map[string]map[string]int `json:"-"`
	DefaultTasksForDayOfWeek map[string]int            `json:"default_tasks_for_day_of_week,omitempty"`
}

// UnmarshalJSON accepts the flattened shape where each day-of-week label is
// itself a top-level key alongside the reserved
// "default_tasks_for_day_of_week" key.
func (f *FacilityTasksDTO) UnmarshalJSON(data []byte) error {
	raw := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	f.ByDayOfWeek = make(map[string]map[string]int)
	for key, value := range raw {
		if key == "default_tasks_for_day_of_week" {
			if err := json.Unmarshal(value, &f.DefaultTasksForDayOfWeek); err != nil {
				return fmt.Errorf("default_tasks_for_day_of_week: %w", err)
			}
			continue
		}
		byDate := make(map[string]int)
		if err := json.Unmarshal(value, &byDate); err != nil {
			return fmt.Errorf("day %q: %w", key, err)
		}
		f.ByDayOfWeek[key] = byDate
	}
	return nil
}

// MarshalJSON re-flattens ByDayOfWeek alongside the default entry.
func (f FacilityTasksDTO) MarshalJSON() ([]byte, error) {
	raw := make(map[string]any, len(f.ByDayOfWeek)+1)
	for day, byDate := range f.ByDayOfWeek {
		raw[day] = byDate
	}
	if f.DefaultTasksForDayOfWeek != nil {
		raw["default_tasks_for_day_of_week"] = f.DefaultTasksForDayOfWeek
	}
	return json.Marshal(raw)
}

// ToDomain validates and converts the request into the engine's internal
// domain types. ErrInputShape is returned for missing required keys or an
// invalid planning start date / num_days, ErrNoFacilities and
// ErrNoEmployees for empty facility or employee lists; these are the only
// errors it returns (InputValue defects are recovered per-slot inside the
// availability expander, see services package).
func (req *ScheduleRequest) ToDomain() (domain.Settings, []domain.Facility, []domain.Employee, domain.CleaningTaskTable, error) {
	if req.ScheduleInput == nil {
		return domain.Settings{}, nil, nil, nil, fmt.Errorf("%w: missing schedule_input", domain.ErrInputShape)
	}
	if req.ScheduleInput.Settings == nil {
		return domain.Settings{}, nil, nil, nil, fmt.Errorf("%w: missing schedule_input.settings", domain.ErrInputShape)
	}
	if len(req.ScheduleInput.Facilities) == 0 {
		return domain.Settings{}, nil, nil, nil, domain.ErrNoFacilities
	}
	if len(req.ScheduleInput.Employees) == 0 {
		return domain.Settings{}, nil, nil, nil, domain.ErrNoEmployees
	}
	if req.CleaningTasksInput == nil {
		return domain.Settings{}, nil, nil, nil, fmt.Errorf("%w: missing cleaning_tasks_input", domain.ErrInputShape)
	}

	settings, err := req.ScheduleInput.Settings.toDomain()
	if err != nil {
		return domain.Settings{}, nil, nil, nil, err
	}

	facilities := make([]domain.Facility, len(req.ScheduleInput.Facilities))
	for i, f := range req.ScheduleInput.Facilities {
		facilities[i] = domain.Facility{
			ID:                        f.ID,
			TasksPerHourPerEmployee:   f.TasksPerHourPerEmployee,
			ShortagePenaltyOverride:   f.ShortagePenaltyOverride,
			ShortagePenaltyMultiplier: f.ShortagePenaltyMultiplier,
		}
	}

	employees := make([]domain.Employee, len(req.ScheduleInput.Employees))
	for i, e := range req.ScheduleInput.Employees {
		slots := make([]domain.AvailabilitySlot, len(e.Availability))
		for j, s := range e.Availability {
			slots[j] = domain.AvailabilitySlot{
				DayOfWeek:    s.DayOfWeek,
				StartTime:    s.StartTime,
				EndTime:      s.EndTime,
				IsNightShift: s.IsNightShift,
			}
		}
		employees[i] = domain.Employee{
			ID:                     e.ID,
			PreferredFacilities:    e.PreferredFacilities,
			Availability:           slots,
			ContractMaxDaysPerWeek: e.ContractMaxDaysPerWeek,
			ContractMaxHoursPerDay: e.ContractMaxHoursPerDay,
			CostPerHour:            e.CostPerHour,
		}
	}

	tasks := make(domain.CleaningTaskTable, len(req.CleaningTasksInput))
	for facilityID, dto := range req.CleaningTasksInput {
		tasks[facilityID] = domain.FacilityTaskTable{
			ByDayOfWeekAndDate:       dto.ByDayOfWeek,
			DefaultTasksForDayOfWeek: dto.DefaultTasksForDayOfWeek,
		}
	}

	return settings, facilities, employees, tasks, nil
}

func (s *SettingsDTO) toDomain() (domain.Settings, error) {
	defaults := domain.DefaultSettings()

	start, err := time.Parse("2006-01-02", s.PlanningStartDate)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("%w: invalid settings.planning_start_date %q: %v", domain.ErrInputShape, s.PlanningStartDate, err)
	}
	if s.NumDays <= 0 {
		return domain.Settings{}, fmt.Errorf("%w: settings.num_days must be positive", domain.ErrInputShape)
	}

	settings := defaults
	settings.PlanningStartDate = start
	settings.NumDays = s.NumDays
	if len(s.DaysOfWeekOrder) == 7 {
		settings.DaysOfWeekOrder = s.DaysOfWeekOrder
	}
	settings.CleaningStartHour = s.CleaningStartHour
	settings.CleaningEndHour = s.CleaningEndHour

	if s.MaxWeeklyHours > 0 {
		settings.MaxWeeklyHours = s.MaxWeeklyHours
	}
	if s.MinRestHours > 0 {
		settings.MinRestHours = s.MinRestHours
	}
	if s.MaxConsecutiveWorkDays > 0 {
		settings.MaxConsecutiveWorkDays = s.MaxConsecutiveWorkDays
	}

	overrideFloat(&settings.ConsecutiveDaysPenalty, s.ConsecutiveDaysPenalty)
	overrideFloat(&settings.WeeklyDaysPenalty, s.WeeklyDaysPenalty)
	overrideFloat(&settings.DailyHoursPenalty, s.DailyHoursPenalty)
	overrideFloat(&settings.StaffShortagePenalty, s.StaffShortagePenalty)
	overrideFloat(&settings.DifficultyFairnessWeight, s.DifficultyFairnessWeight)
	overrideFloat(&settings.BaseScorePerHour, s.BaseScorePerHour)
	overrideFloat(&settings.NightHourMultiplier, s.NightHourMultiplier)
	overrideFloat(&settings.WeekendDayMultiplier, s.WeekendDayMultiplier)
	overrideFloat(&settings.GlobalDifficultyCostMultiplier, s.GlobalDifficultyCostMultiplier)
	overrideInt(&settings.NightHourRangeStart, s.NightHourRangeStart)
	overrideInt(&settings.NightHourRangeEnd, s.NightHourRangeEnd)

	if s.TimeLimitSec > 0 {
		settings.TimeLimitSec = s.TimeLimitSec
	}
	if s.MaxRetryAttempts > 0 {
		settings.MaxRetryAttempts = s.MaxRetryAttempts
	}
	if s.PenaltyReductionFactor > 0 {
		settings.PenaltyReductionFactor = s.PenaltyReductionFactor
	}
	if s.MaxSearchWorkers > 0 {
		settings.MaxSearchWorkers = s.MaxSearchWorkers
	}

	return settings, nil
}

func overrideFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

func overrideInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

// ScheduleResultEnvelope is the top-level output object.
type ScheduleResultEnvelope struct {
	ScheduleResult             ScheduleResultDTO `json:"schedule_result"`
	AppliedConstraintsHistory  []AttemptDTO      `json:"applied_constraints_history"`
}

// ScheduleResultDTO mirrors domain.ScheduleResult in wire form.
type ScheduleResultDTO struct {
	Status      string   `json:"status"`
	Objective   *float64 `json:"objective,omitempty"`
	WallTimeSec *float64 `json:"wall_time_sec,omitempty"`

	Assignments           []AssignmentDTO     `json:"assignments"`
	ShortageShiftsDetails []ShortageShiftDTO  `json:"shortage_shifts_details"`
	Diagnostics           DiagnosticsDTO      `json:"diagnostics"`
	AppliedConstraints    PenaltyMultipliersDTO `json:"applied_constraints_settings"`

	RunID   string `json:"run_id"`
	Message string `json:"message,omitempty"`
}

// AssignmentDTO is one coalesced assignment block.
type AssignmentDTO struct {
	EmployeeID         string  `json:"employee_id"`
	FacilityID         string  `json:"facility_id"`
	Date               string  `json:"date"`
	StartHour          int     `json:"start_hour"`
	EndHour            int     `json:"end_hour"`
	DifficultyScoreAvg float64 `json:"difficulty_score_avg"`
}

// ShortageShiftDTO is one understaffed cell.
type ShortageShiftDTO struct {
	FacilityID string  `json:"facility_id"`
	Date       string  `json:"date"`
	Hour       int     `json:"hour"`
	Required   int     `json:"required"`
	Assigned   int     `json:"assigned"`
	Difficulty float64 `json:"difficulty"`
}

// DiagnosticsDTO is the per-employee diagnostics section.
type DiagnosticsDTO struct {
	HoursWorkedPerEmployee         map[string]int     `json:"hours_worked_per_employee"`
	DaysWorkedPerEmployee          map[string]int     `json:"days_worked_per_employee"`
	TotalDifficultyScorePerEmployee map[string]float64 `json:"total_difficulty_score_per_employee"`
	CostPerHourPerEmployee         map[string]float64 `json:"cost_per_hour_per_employee,omitempty"`
}

// PenaltyMultipliersDTO mirrors domain.PenaltyMultipliers.
type PenaltyMultipliersDTO struct {
	ConsecutiveDays float64 `json:"consecutive_days"`
	WeeklyDays      float64 `json:"weekly_days"`
	DailyHours      float64 `json:"daily_hours"`
	StaffShortage   float64 `json:"staff_shortage"`
}

// AttemptDTO is one entry in the append-only retry history.
type AttemptDTO struct {
	RunID           string                `json:"run_id"`
	RetryAttempt    int                   `json:"retry_attempt"`
	Status          string                `json:"status"`
	Multipliers     PenaltyMultipliersDTO `json:"multipliers"`
	HardConstraints []string              `json:"hard_constraints"`
	NumVariables    int                   `json:"num_variables"`
	NumConstraints  int                   `json:"num_constraints"`
}

// ToAttemptDTO converts one persisted attempt into its wire form, used both
// by FromResult and by the HTTP history endpoint reading persisted runs.
func ToAttemptDTO(a domain.Attempt) AttemptDTO {
	return AttemptDTO{
		RunID:           a.RunID,
		RetryAttempt:    a.RetryAttempt,
		Status:          string(a.Status),
		Multipliers:     toPenaltyMultipliersDTO(a.Multipliers),
		HardConstraints: a.HardConstraints,
		NumVariables:    a.Stats.NumVariables,
		NumConstraints:  a.Stats.NumConstraints,
	}
}

// FromResult converts the internal ScheduleResult into its wire envelope.
func FromResult(result *domain.ScheduleResult) ScheduleResultEnvelope {
	assignments := make([]AssignmentDTO, len(result.Assignments))
	for i, a := range result.Assignments {
		assignments[i] = AssignmentDTO{
			EmployeeID:         a.EmployeeID,
			FacilityID:         a.FacilityID,
			Date:               a.Date,
			StartHour:          a.StartHour,
			EndHour:            a.EndHour,
			DifficultyScoreAvg: a.DifficultyScoreAvg,
		}
	}

	shortages := make([]ShortageShiftDTO, len(result.ShortageShifts))
	for i, s := range result.ShortageShifts {
		shortages[i] = ShortageShiftDTO{
			FacilityID: s.FacilityID,
			Date:       s.Date,
			Hour:       s.Hour,
			Required:   s.Required,
			Assigned:   s.Assigned,
			Difficulty: s.Difficulty,
		}
	}

	history := make([]AttemptDTO, len(result.History))
	for i, a := range result.History {
		history[i] = ToAttemptDTO(a)
	}

	return ScheduleResultEnvelope{
		ScheduleResult: ScheduleResultDTO{
			Status:                string(result.Status),
			Objective:             result.Objective,
			WallTimeSec:           result.WallTimeSec,
			Assignments:           assignments,
			ShortageShiftsDetails: shortages,
			Diagnostics: DiagnosticsDTO{
				HoursWorkedPerEmployee:          result.HoursWorkedByEmployee,
				DaysWorkedPerEmployee:           result.DaysWorkedByEmployee,
				TotalDifficultyScorePerEmployee: result.DifficultyByEmployee,
				CostPerHourPerEmployee:          result.CostPerHourByEmployee,
			},
			AppliedConstraints: toPenaltyMultipliersDTO(result.AppliedMultipliers),
			RunID:              result.RunID,
			Message:            result.Message,
		},
		AppliedConstraintsHistory: history,
	}
}

func toPenaltyMultipliersDTO(m domain.PenaltyMultipliers) PenaltyMultipliersDTO {
	return PenaltyMultipliersDTO{
		ConsecutiveDays: m.ConsecutiveDays,
		WeeklyDays:      m.WeeklyDays,
		DailyHours:      m.DailyHours,
		StaffShortage:   m.StaffShortage,
	}
}
