package simulate

import (
	"fmt"
	"os"

	"github.com/okian/crease/pkg/logger"
)

// SetupLogging initialises the logger; verbose lowers the level to debug.
func SetupLogging(verbose bool) error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		return logger.SetLevelString("debug")
	}
	return nil
}

// ShowHelp prints usage information for the simulator.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`Crease innings simulator
========================

Plays a random innings against a running scoring service, answering its
prompts for new batters and bowlers, then checks the server's final score
against a local replay of the same deliveries.

Usage:
  go run ./cmd/simulate [options]

Options:
  -url string        Base URL of the service (default "http://localhost:9080")
  -match string      Match id (default: a fresh sim-<uuid>)
  -team string       Batting team id (default "home")
  -overs int         Innings length in overs (default 5)
  -seed uint         Generator seed; equal seeds play equal innings (default: time based)
  -undo float        Chance of undoing an accepted ball (default 0.02)
  -retry float       Chance of resending an accepted ball (default 0.05)
  -timeout duration  HTTP request timeout (default 10s)
  -output string     Write the ball log as JSON to this file
  -verbose           Log every delivery
  -help              Show this help message

Examples:
  go run ./cmd/simulate -overs 20 -seed 42
  go run ./cmd/simulate -url http://localhost:8080 -output balls.json
`)
}
