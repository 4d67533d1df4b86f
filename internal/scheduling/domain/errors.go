package domain

import "errors"

var (
	// ErrInputShape is returned when the top-level input object is
	// missing schedule_input/cleaning_tasks_input or their required keys.
	ErrInputShape = errors.New("malformed schedule input")

	// ErrNoFacilities means the input named zero facilities; nothing
	// can be staffed.
	ErrNoFacilities = errors.New("no facilities in input")

	// ErrNoEmployees means the input named zero employees.
	ErrNoEmployees = errors.New("no employees in input")
)
