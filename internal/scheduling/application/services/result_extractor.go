package services

import (
	"github.com/google/or-tools/ortools/sat/go/cpmodel"

	"github.com/shiftsat/engine/internal/scheduling/domain"
)

// ResultExtractor walks a solved CP-SAT model and turns it into the
// structured result object callers consume: coalesced assignment blocks,
// shortage cells, and per-employee diagnostics.
type ResultExtractor struct {
	employees []domain.Employee
}

// NewResultExtractor creates an extractor bound to the employee list (for
// per-employee cost diagnostics).
func NewResultExtractor(employees []domain.Employee) *ResultExtractor {
	return &ResultExtractor{employees: employees}
}

// Extract reads the solver response against built, in (employee, day,
// facility) order as specified, coalescing contiguous assigned hours into
// blocks.
func (x *ResultExtractor) Extract(built *BuiltModel, response *cpmodel.CpSolverResponse) ([]domain.AssignmentBlock, []domain.ShortageShift, map[string]domain.EmployeeDiagnostics) {
	var assignments []domain.AssignmentBlock
	diagnostics := make(map[string]domain.EmployeeDiagnostics, len(built.EmployeeIDs))

	for eIdx, empID := range built.EmployeeIDs {
		var hoursWorked, daysWorked int
		var totalDifficulty float64

		for d := 0; d < len(built.Dates); d++ {
			dayHasWork := false

			for fIdx, facilityID := range built.FacilityIDs {
				blockStart := -1

				for h := 0; h <= domain.HoursInDay; h++ {
					assigned := h < domain.HoursInDay && x.isAssigned(built, response, fIdx, eIdx, d, h)

					if assigned {
						if blockStart == -1 {
							blockStart = h
						}
						hoursWorked++
						dayHasWork = true
						totalDifficulty += built.DifficultyAt[d][h]
						continue
					}

					if blockStart != -1 {
						assignments = append(assignments, x.buildBlock(built, empID, facilityID, d, blockStart, h))
						blockStart = -1
					}
				}
			}

			if dayHasWork {
				daysWorked++
			}
		}

		diag := domain.EmployeeDiagnostics{
			HoursWorked:          hoursWorked,
			DaysWorked:           daysWorked,
			TotalDifficultyScore: totalDifficulty,
		}
		if eIdx < len(x.employees) {
			diag.CostPerHour = x.employees[eIdx].CostPerHour
		}
		diagnostics[empID] = diag
	}

	var shortages []domain.ShortageShift
	for fIdx, facilityID := range built.FacilityIDs {
		for d := 0; d < len(built.Dates); d++ {
			for h := 0; h < domain.HoursInDay; h++ {
				required := built.RequiredStaffingAt[fIdx][d][h]
				assignedCount := 0
				for eIdx := range built.EmployeeIDs {
					if x.isAssigned(built, response, fIdx, eIdx, d, h) {
						assignedCount++
					}
				}
				if assignedCount < required {
					shortages = append(shortages, domain.ShortageShift{
						FacilityID: facilityID,
						Date:       built.Dates[d],
						Hour:       h,
						Required:   required,
						Assigned:   assignedCount,
						Difficulty: built.DifficultyAt[d][h],
					})
				}
			}
		}
	}

	return assignments, shortages, diagnostics
}

func (x *ResultExtractor) isAssigned(built *BuiltModel, response *cpmodel.CpSolverResponse, fIdx, eIdx, d, h int) bool {
	v, ok := built.X[xKey{F: fIdx, E: eIdx, D: d, H: h}]
	if !ok {
		return false
	}
	return cpmodel.SolutionBooleanValue(response, v)
}

func (x *ResultExtractor) buildBlock(built *BuiltModel, empID, facilityID string, d, startHour, endHour int) domain.AssignmentBlock {
	var sum float64
	for h := startHour; h < endHour; h++ {
		sum += built.DifficultyAt[d][h]
	}
	avg := sum / float64(endHour-startHour)

	return domain.AssignmentBlock{
		EmployeeID:         empID,
		FacilityID:         facilityID,
		Date:               built.Dates[d],
		StartHour:          startHour,
		EndHour:            endHour,
		DifficultyScoreAvg: avg,
	}
}
