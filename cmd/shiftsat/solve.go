package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shiftsat/engine/internal/scheduling/application"
	"github.com/shiftsat/engine/internal/scheduling/application/commands"
	"github.com/shiftsat/engine/internal/shared/infrastructure/security"
)

var solveTimeLimitSec int

var solveCmd = &cobra.Command{
	Use:   "solve <schedule_input.json> <cleaning_tasks_input.json>",
	Short: "Solve one schedule against local JSON input files",
	Args:  cobra.ExactArgs(2),
	RunE:  runSolve,
}

func init() {
	solveCmd.Flags().IntVar(&solveTimeLimitSec, "time-limit-sec", 0, "override the configured solver time limit")
}

func runSolve(cmd *cobra.Command, args []string) error {
	inputPath, tasksPath := args[0], args[1]

	inputBytes, err := security.SafeReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("read schedule input: %w", err)
	}
	tasksBytes, err := security.SafeReadFile(tasksPath)
	if err != nil {
		return fmt.Errorf("read cleaning tasks input: %w", err)
	}

	var scheduleInput application.ScheduleInputDTO
	if err := json.Unmarshal(inputBytes, &scheduleInput); err != nil {
		return fmt.Errorf("parse schedule input: %w", err)
	}

	var tasksInput map[string]application.FacilityTasksDTO
	if err := json.Unmarshal(tasksBytes, &tasksInput); err != nil {
		return fmt.Errorf("parse cleaning tasks input: %w", err)
	}

	req := application.ScheduleRequest{
		ScheduleInput:      &scheduleInput,
		CleaningTasksInput: tasksInput,
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	c, err := newContainer(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize container: %w", err)
	}
	defer c.Close()

	result, err := c.Handler.Handle(ctx, commands.SolveScheduleCommand{Request: req, TimeLimitSec: solveTimeLimitSec})
	if err != nil {
		return fmt.Errorf("solve schedule: %w", err)
	}

	envelope := application.FromResult(result)
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(envelope)
}
