package services

import (
	"fmt"
	"math"

	"github.com/google/or-tools/ortools/sat/go/cpmodel"

	"github.com/shiftsat/engine/internal/scheduling/domain"
)

// IntegerScale converts real-valued penalty coefficients into the integer
// coefficients CP-SAT requires.
const IntegerScale = 1000

type xKey struct {
	F, E, D, H int
}

type dayKey struct {
	E, D int
}

// BuiltModel is the output of one ModelBuilder.Build call: a CP-SAT model
// together with the indexing metadata the solver driver and result
// extractor need to read back a solution.
type BuiltModel struct {
	Model      *cpmodel.CpModelBuilder
	X          map[xKey]cpmodel.BoolVar
	WorksOnDay map[dayKey]cpmodel.BoolVar

	FacilityIDs []string
	EmployeeIDs []string
	Dates       []string
	DayLabels   []string

	// DifficultyAt[d][h] is the unscaled difficulty score for planning day d,
	// hour h (difficulty does not vary by facility in this model).
	DifficultyAt [][]float64

	// RequiredStaffingAt[f][d][h] is the headcount required at that cell,
	// precomputed once so the shortage constraint and the result extractor
	// agree on the same numbers.
	RequiredStaffingAt [][][]int

	HardConstraints []string
	Stats           domain.ModelStats
}

// ModelBuilder translates a scheduling request into a CP-SAT model: sparse
// decision variables, hard feasibility constraints, and a soft-penalty
// objective scaled by a penalty-multiplier vector.
type ModelBuilder struct {
	settings   domain.Settings
	facilities []domain.Facility
	employees  []domain.Employee
	tasks      domain.CleaningTaskTable
	avail      *Availability
	scorer     DifficultyScoreSource
	demand     *DemandResolver
}

// NewModelBuilder creates a builder over one solve's fixed input data.
// avail must already have been produced by AvailabilityExpander.Expand.
func NewModelBuilder(
	settings domain.Settings,
	facilities []domain.Facility,
	employees []domain.Employee,
	tasks domain.CleaningTaskTable,
	avail *Availability,
) *ModelBuilder {
	return &ModelBuilder{
		settings:   settings,
		facilities: facilities,
		employees:  employees,
		tasks:      tasks,
		avail:      avail,
		scorer:     NewDifficultyScorer(settings),
		demand:     NewDemandResolver(),
	}
}

// WithDifficultyScorer overrides the built-in difficulty scorer, used to
// wire in an external scoring plugin (infrastructure/scoring) when one is
// configured. Passing nil leaves the built-in scorer in place.
func (b *ModelBuilder) WithDifficultyScorer(scorer DifficultyScoreSource) *ModelBuilder {
	if scorer != nil {
		b.scorer = scorer
	}
	return b
}

// scaledDifficulty returns the raw difficulty of (dayOfWeek, hour) as an
// integer CP-SAT coefficient, regardless of which DifficultyScoreSource is
// in use. It excludes the global difficulty cost multiplier, which applies
// only to the direct per-hour term built by directDifficultyCoeff.
func (b *ModelBuilder) scaledDifficulty(dayOfWeek string, hour int) int64 {
	return int64(b.scorer.Score(dayOfWeek, hour)*DifficultyScaleFactor + 0.5)
}

// directDifficultyCoeff scales (dayOfWeek, hour)'s difficulty by both
// DifficultyScaleFactor and the settings' global difficulty cost
// multiplier. Per spec section 4.6, the global multiplier applies only to
// this direct per-hour tie-breaker term in the objective, not to the
// staff-shortage penalty or the fairness spread.
func (b *ModelBuilder) directDifficultyCoeff(dayOfWeek string, hour int) int64 {
	return int64(b.scorer.Score(dayOfWeek, hour)*DifficultyScaleFactor*b.settings.GlobalDifficultyCostMultiplier + 0.5)
}

// Build constructs a fresh CP-SAT model with multipliers applied to the
// soft-penalty baselines. Each call starts from a clean CpModelBuilder;
// nothing is shared across attempts.
func (b *ModelBuilder) Build(multipliers domain.PenaltyMultipliers) (*BuiltModel, error) {
	model := cpmodel.NewCpModelBuilder()

	order := domain.DayOfWeekOrder(b.settings.DaysOfWeekOrder)
	numDays := b.settings.NumDays
	numFacilities := len(b.facilities)
	numEmployees := len(b.employees)

	facilityIDs := make([]string, numFacilities)
	for i, f := range b.facilities {
		facilityIDs[i] = f.ID
	}
	employeeIDs := make([]string, numEmployees)
	for i, e := range b.employees {
		employeeIDs[i] = e.ID
	}
	dates := make([]string, numDays)
	dayLabels := make([]string, numDays)
	for d := 0; d < numDays; d++ {
		date := domain.PlanningDate(b.settings.PlanningStartDate, d)
		dates[d] = domain.DateString(date)
		dayLabels[d] = domain.DayOfWeekLabel(date, order)
	}

	difficulty := make([][]float64, numDays)
	for d := 0; d < numDays; d++ {
		difficulty[d] = make([]float64, domain.HoursInDay)
		for h := 0; h < domain.HoursInDay; h++ {
			difficulty[d][h] = b.scorer.Score(dayLabels[d], h)
		}
	}

	required := make([][][]int, numFacilities)
	for fIdx, facility := range b.facilities {
		required[fIdx] = make([][]int, numDays)
		for d := 0; d < numDays; d++ {
			taskCount := b.demand.TasksFor(b.tasks, facility.ID, dayLabels[d], dates[d])
			required[fIdx][d] = make([]int, domain.HoursInDay)
			for h := 0; h < domain.HoursInDay; h++ {
				required[fIdx][d][h] = b.demand.RequiredStaffing(b.settings, facility, taskCount, h)
			}
		}
	}

	built := &BuiltModel{
		Model:              model,
		X:                  make(map[xKey]cpmodel.BoolVar),
		WorksOnDay:         make(map[dayKey]cpmodel.BoolVar),
		FacilityIDs:        facilityIDs,
		EmployeeIDs:        employeeIDs,
		Dates:              dates,
		DayLabels:          dayLabels,
		DifficultyAt:       difficulty,
		RequiredStaffingAt: required,
		HardConstraints: []string{
			"availability_and_preferred_facility",
			"one_facility_at_a_time",
			"works_on_day_definition",
			"weekly_hour_cap",
			"rest_interval",
			"overnight_continuity",
		},
	}

	b.buildVariables(built)
	b.buildWorksOnDayLink(built)
	b.buildWeeklyHourCap(built)
	worksAtHour, endOfShift := b.buildRestInterval(built)
	_ = worksAtHour
	_ = endOfShift
	b.buildOvernightContinuity(built)

	objective := cpmodel.NewLinearExpr()
	b.addConsecutiveDayExcess(built, multipliers, objective)
	b.addWeeklyDayExcess(built, multipliers, objective)
	b.addDailyHourExcess(built, multipliers, objective)
	b.addStaffShortage(built, multipliers, objective)
	b.addDifficultyFairnessAndDirectCost(built, objective)

	model.Minimize(objective)

	built.Stats = domain.ModelStats{
		NumVariables:   len(built.X) + len(built.WorksOnDay),
		NumConstraints: len(built.HardConstraints),
	}

	return built, nil
}

// buildVariables allocates x[f,e,d,h] sparsely: only where the employee is
// available and, if the employee restricts itself, only for preferred
// facilities.
func (b *ModelBuilder) buildVariables(built *BuiltModel) {
	for eIdx, emp := range b.employees {
		for fIdx, facility := range b.facilities {
			if emp.HasPreferences() && !emp.Prefers(facility.ID) {
				continue
			}
			for d := 0; d < b.settings.NumDays; d++ {
				for h := 0; h < domain.HoursInDay; h++ {
					if !b.avail.Get(eIdx, d, h) {
						continue
					}
					name := fmt.Sprintf("x_f%d_e%d_d%d_h%d", fIdx, eIdx, d, h)
					built.X[xKey{F: fIdx, E: eIdx, D: d, H: h}] = built.Model.NewBoolVar().WithName(name)
				}
			}
		}
	}

	for eIdx := range b.employees {
		for d := 0; d < b.settings.NumDays; d++ {
			name := fmt.Sprintf("works_e%d_d%d", eIdx, d)
			built.WorksOnDay[dayKey{E: eIdx, D: d}] = built.Model.NewBoolVar().WithName(name)
		}
	}
}

// hoursWorkedExpr returns Σ_f x[f,e,d,h] as a linear expression (H2's
// at-most-one is enforced directly; this helper builds the sum used by
// several other constraints).
func (b *ModelBuilder) hoursWorkedExpr(built *BuiltModel, eIdx, d, h int) *cpmodel.LinearExpr {
	expr := cpmodel.NewLinearExpr()
	for fIdx := range b.facilities {
		if v, ok := built.X[xKey{F: fIdx, E: eIdx, D: d, H: h}]; ok {
			expr.Add(v)
		}
	}
	return expr
}

// dayHoursExpr returns Σ_{f,h} x[f,e,d,h], the hours worked by e on day d.
func (b *ModelBuilder) dayHoursExpr(built *BuiltModel, eIdx, d int) *cpmodel.LinearExpr {
	expr := cpmodel.NewLinearExpr()
	for fIdx := range b.facilities {
		for h := 0; h < domain.HoursInDay; h++ {
			if v, ok := built.X[xKey{F: fIdx, E: eIdx, D: d, H: h}]; ok {
				expr.Add(v)
			}
		}
	}
	return expr
}

// buildWorksOnDayLink enforces H2 (at-most-one facility per hour) and H3
// (works_on_day biconditional).
func (b *ModelBuilder) buildWorksOnDayLink(built *BuiltModel) {
	for eIdx := range b.employees {
		for d := 0; d < b.settings.NumDays; d++ {
			for h := 0; h < domain.HoursInDay; h++ {
				var cellVars []cpmodel.BoolVar
				for fIdx := range b.facilities {
					if v, ok := built.X[xKey{F: fIdx, E: eIdx, D: d, H: h}]; ok {
						cellVars = append(cellVars, v)
					}
				}
				if len(cellVars) > 1 {
					built.Model.AddAtMostOne(cellVars...)
				}
			}

			worked := dayKey{E: eIdx, D: d}
			hours := b.dayHoursExpr(built, eIdx, d)
			works := built.WorksOnDay[worked]
			built.Model.AddGreaterOrEqual(hours, cpmodel.NewConstant(1)).OnlyEnforceIf(works)
			built.Model.AddEquality(hours, cpmodel.NewConstant(0)).OnlyEnforceIf(works.Not())
		}
	}
}

// buildWeeklyHourCap enforces H4: Σ hours over each 7-day aligned window
// must not exceed MaxWeeklyHours.
func (b *ModelBuilder) buildWeeklyHourCap(built *BuiltModel) {
	if b.settings.MaxWeeklyHours <= 0 {
		return
	}
	for eIdx := range b.employees {
		for weekStart := 0; weekStart < b.settings.NumDays; weekStart += 7 {
			weekEnd := weekStart + 7
			if weekEnd > b.settings.NumDays {
				weekEnd = b.settings.NumDays
			}
			expr := cpmodel.NewLinearExpr()
			for d := weekStart; d < weekEnd; d++ {
				expr.Add(b.dayHoursExpr(built, eIdx, d))
			}
			built.Model.AddLessOrEqual(expr, cpmodel.NewConstant(int64(b.settings.MaxWeeklyHours)))
		}
	}
}

// buildRestInterval installs H5, the end-of-shift predicate and the 8-hour
// rest window it enforces. Returns the per-employee works/end-of-shift
// variables, keyed by flat hour index, in case callers need them (none do
// today, but they document the construction that feeds the rest window).
func (b *ModelBuilder) buildRestInterval(built *BuiltModel) (map[int]map[int]cpmodel.BoolVar, map[int]map[int]cpmodel.BoolVar) {
	worksAtHour := make(map[int]map[int]cpmodel.BoolVar)
	endOfShift := make(map[int]map[int]cpmodel.BoolVar)

	totalHours := b.settings.NumDays * domain.HoursInDay
	if totalHours == 0 {
		return worksAtHour, endOfShift
	}

	for eIdx := range b.employees {
		works := make(map[int]cpmodel.BoolVar, totalHours)
		for t := 0; t < totalHours; t++ {
			d, h := t/domain.HoursInDay, t%domain.HoursInDay
			hours := b.hoursWorkedExpr(built, eIdx, d, h)
			v := built.Model.NewBoolVar().WithName(fmt.Sprintf("works_at_e%d_t%d", eIdx, t))
			built.Model.AddGreaterOrEqual(hours, cpmodel.NewConstant(1)).OnlyEnforceIf(v)
			built.Model.AddEquality(hours, cpmodel.NewConstant(0)).OnlyEnforceIf(v.Not())
			works[t] = v
		}
		worksAtHour[eIdx] = works

		ends := make(map[int]cpmodel.BoolVar, totalHours)
		for t := 0; t < totalHours; t++ {
			if t == totalHours-1 {
				ends[t] = works[t]
				continue
			}
			end := built.Model.NewBoolVar().WithName(fmt.Sprintf("end_shift_e%d_t%d", eIdx, t))
			built.Model.AddBoolAnd(works[t], works[t+1].Not()).OnlyEnforceIf(end)
			built.Model.AddBoolOr(works[t].Not(), works[t+1], end)
			ends[t] = end
		}
		endOfShift[eIdx] = ends

		rest := b.settings.MinRestHours
		if rest <= 0 {
			continue
		}
		for t := 0; t < totalHours; t++ {
			limit := t + rest
			if limit >= totalHours {
				limit = totalHours - 1
			}
			for t2 := t + 1; t2 <= limit; t2++ {
				built.Model.AddImplication(ends[t], works[t2].Not())
			}
		}
	}

	return worksAtHour, endOfShift
}

// buildOvernightContinuity enforces H6: once the first hour of a recorded
// overnight slot is assigned to a facility, every remaining hour of the
// slot must be assigned to that same facility too. H2's at-most-one-facility
// constraint, already installed, rules out any other facility being used
// during the same span, so a single implication chain per facility suffices.
func (b *ModelBuilder) buildOvernightContinuity(built *BuiltModel) {
	for eIdx := range b.employees {
		for d := 0; d < b.settings.NumDays; d++ {
			detail, ok := b.avail.NightShift(eIdx, d)
			if !ok {
				continue
			}

			var span []struct{ d, h int }
			for h := detail.StartHour; h < domain.HoursInDay; h++ {
				span = append(span, struct{ d, h int }{d, h})
			}
			if d+1 < b.settings.NumDays {
				for h := 0; h < detail.EndHour; h++ {
					span = append(span, struct{ d, h int }{d + 1, h})
				}
			}
			if len(span) < 2 {
				continue
			}

			first := span[0]
			for fIdx := range b.facilities {
				startVar, ok := built.X[xKey{F: fIdx, E: eIdx, D: first.d, H: first.h}]
				if !ok {
					continue
				}
				for _, cell := range span[1:] {
					if cellVar, ok := built.X[xKey{F: fIdx, E: eIdx, D: cell.d, H: cell.h}]; ok {
						built.Model.AddImplication(startVar, cellVar)
					}
				}
			}
		}
	}
}

// excessVariable installs the standard "excess over a cap" idiom: a
// nonnegative IntVar equal to max(0, actual-cap), built from two conditional
// equalities gated on an is_exceeding boolean. Returns the excess IntVar.
func excessVariable(model *cpmodel.CpModelBuilder, actual *cpmodel.LinearExpr, cap int64, upperBound int64, name string) cpmodel.IntVar {
	excess := model.NewIntVar(0, upperBound).WithName("ex_" + name)
	isExceeding := model.NewBoolVar().WithName("is_ex_" + name)

	capConst := cpmodel.NewConstant(cap)
	model.AddGreaterThan(actual, capConst).OnlyEnforceIf(isExceeding)
	model.AddLessOrEqual(actual, capConst).OnlyEnforceIf(isExceeding.Not())

	diff := cpmodel.NewLinearExpr()
	diff.Add(actual)
	diff.Add(cpmodel.NewConstant(-cap))
	model.AddEquality(excess, diff).OnlyEnforceIf(isExceeding)
	model.AddEquality(excess, cpmodel.NewConstant(0)).OnlyEnforceIf(isExceeding.Not())

	return excess
}

func (b *ModelBuilder) addConsecutiveDayExcess(built *BuiltModel, mult domain.PenaltyMultipliers, objective *cpmodel.LinearExpr) {
	k := b.settings.MaxConsecutiveWorkDays
	if k <= 0 || b.settings.NumDays <= k {
		return
	}
	penalty := scaledPenalty(b.settings.ConsecutiveDaysPenalty, mult.ConsecutiveDays)
	if penalty == 0 {
		return
	}

	for eIdx := range b.employees {
		for start := 0; start <= b.settings.NumDays-k-1; start++ {
			window := cpmodel.NewLinearExpr()
			for d := start; d <= start+k; d++ {
				window.Add(built.WorksOnDay[dayKey{E: eIdx, D: d}])
			}
			name := fmt.Sprintf("consec_e%d_d%d", eIdx, start)
			excess := excessVariable(built.Model, window, int64(k), int64(k+2), name)
			objective.AddTerm(excess, penalty)
		}
	}
}

func (b *ModelBuilder) addWeeklyDayExcess(built *BuiltModel, mult domain.PenaltyMultipliers, objective *cpmodel.LinearExpr) {
	penalty := scaledPenalty(b.settings.WeeklyDaysPenalty, mult.WeeklyDays)
	if penalty == 0 {
		return
	}

	for eIdx, emp := range b.employees {
		maxDays := emp.EffectiveMaxDaysPerWeek()
		for weekStart := 0; weekStart < b.settings.NumDays; weekStart += 7 {
			weekEnd := weekStart + 7
			if weekEnd > b.settings.NumDays {
				weekEnd = b.settings.NumDays
			}
			window := cpmodel.NewLinearExpr()
			for d := weekStart; d < weekEnd; d++ {
				window.Add(built.WorksOnDay[dayKey{E: eIdx, D: d}])
			}
			name := fmt.Sprintf("week_e%d_wk%d", eIdx, weekStart)
			excess := excessVariable(built.Model, window, int64(maxDays), 8, name)
			objective.AddTerm(excess, penalty)
		}
	}
}

func (b *ModelBuilder) addDailyHourExcess(built *BuiltModel, mult domain.PenaltyMultipliers, objective *cpmodel.LinearExpr) {
	penalty := scaledPenalty(b.settings.DailyHoursPenalty, mult.DailyHours)
	if penalty == 0 {
		return
	}

	for eIdx, emp := range b.employees {
		maxHours := emp.EffectiveMaxHoursPerDay()
		for d := 0; d < b.settings.NumDays; d++ {
			hours := b.dayHoursExpr(built, eIdx, d)
			name := fmt.Sprintf("day_e%d_d%d", eIdx, d)
			excess := excessVariable(built.Model, hours, int64(maxHours), int64(domain.HoursInDay+1), name)
			objective.AddTerm(excess, penalty)
		}
	}
}

func (b *ModelBuilder) addStaffShortage(built *BuiltModel, mult domain.PenaltyMultipliers, objective *cpmodel.LinearExpr) {
	baselineMultiplier := mult.StaffShortage

	for fIdx, facility := range b.facilities {
		for d := 0; d < b.settings.NumDays; d++ {
			for h := 0; h < domain.HoursInDay; h++ {
				required := built.RequiredStaffingAt[fIdx][d][h]

				staffCount := cpmodel.NewLinearExpr()
				for eIdx := range b.employees {
					if v, ok := built.X[xKey{F: fIdx, E: eIdx, D: d, H: h}]; ok {
						staffCount.Add(v)
					}
				}

				name := fmt.Sprintf("short_f%d_d%d_h%d", fIdx, d, h)
				excess := excessVariable(built.Model, negated(staffCount), -int64(required), int64(maxInt(1, required)), name)
				// excessVariable computes max(0, actual-cap); shortage = max(0, required-staffCount)
				// is obtained by negating staffCount and the cap symmetrically above.

				penaltyBase := facility.EffectiveShortagePenalty(b.settings.StaffShortagePenalty) * baselineMultiplier
				difficultyWeight := built.DifficultyAt[d][h]
				coeff := int64(math.Round(penaltyBase * difficultyWeight * IntegerScale))
				objective.AddTerm(excess, coeff)
			}
		}
	}
}

// addDifficultyFairnessAndDirectCost adds the fairness penalty (spread
// between the hardest-hit and lightest-hit employee's total scaled
// difficulty) and the direct per-hour difficulty tie-breaker term.
func (b *ModelBuilder) addDifficultyFairnessAndDirectCost(built *BuiltModel, objective *cpmodel.LinearExpr) {
	numEmployees := len(b.employees)
	totalDifficulty := make([]*cpmodel.LinearExpr, numEmployees)

	maxPossible := int64(b.settings.NumDays) * int64(domain.HoursInDay) * int64(len(b.facilities)+1) * IntegerScale

	for eIdx := range b.employees {
		expr := cpmodel.NewLinearExpr()
		for fIdx := range b.facilities {
			for d := 0; d < b.settings.NumDays; d++ {
				for h := 0; h < domain.HoursInDay; h++ {
					v, ok := built.X[xKey{F: fIdx, E: eIdx, D: d, H: h}]
					if !ok {
						continue
					}
					scaled := b.scaledDifficulty(built.DayLabels[d], h)
					expr.AddTerm(v, scaled)
					objective.AddTerm(v, b.directDifficultyCoeff(built.DayLabels[d], h))
				}
			}
		}
		totalDifficulty[eIdx] = expr
	}

	if numEmployees == 0 || b.settings.DifficultyFairnessWeight == 0 {
		return
	}

	maxVar := built.Model.NewIntVar(0, maxPossible).WithName("difficulty_max")
	minVar := built.Model.NewIntVar(0, maxPossible).WithName("difficulty_min")
	for eIdx := range b.employees {
		built.Model.AddLessOrEqual(totalDifficulty[eIdx], maxVar)
		built.Model.AddGreaterOrEqual(totalDifficulty[eIdx], minVar)
	}

	gap := cpmodel.NewLinearExpr()
	gap.Add(maxVar)
	gap.AddTerm(minVar, -1)

	weight := int64(math.Round(b.settings.DifficultyFairnessWeight))
	if weight == 0 {
		weight = 1
	}
	objective.AddTerm(gap, weight)
}

func scaledPenalty(baseline float64, multiplier float64) int64 {
	return int64(math.Round(baseline * multiplier))
}

func negated(expr *cpmodel.LinearExpr) *cpmodel.LinearExpr {
	result := cpmodel.NewLinearExpr()
	result.AddTerm(expr, -1)
	return result
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
