// Command shiftsat is the CLI and HTTP entry point for the scheduling
// engine: `shiftsat solve` runs one solve in-process against local JSON
// files, `shiftsat serve` exposes the same use case over HTTP.
package main

import (
	"fmt"
	"os"

	"github.com/shiftsat/engine/pkg/config"
	"github.com/shiftsat/engine/pkg/observability"
)

func main() {
	logger := observability.LoggerFromEnv()
	setLogger(logger)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}
	setConfig(cfg)

	addCommand(solveCmd)
	addCommand(serveCmd)

	execute()
}
