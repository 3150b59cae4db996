package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/okian/crease/internal/simulate"
)

// Default configuration constants.
const (
	defaultOvers     = 5
	defaultUndoRate  = 0.02
	defaultRetryRate = 0.05
	defaultTimeout   = 10 * time.Second
	defaultRunLimit  = 10 * time.Minute
)

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:9080", "Base URL of the service")
		matchID   = flag.String("match", "", "Match id (default: a fresh sim-<uuid>)")
		teamID    = flag.String("team", "home", "Batting team id")
		overs     = flag.Int("overs", defaultOvers, "Innings length in overs")
		seed      = flag.Uint64("seed", uint64(time.Now().UnixNano()), "Generator seed")
		undoRate  = flag.Float64("undo", defaultUndoRate, "Chance of undoing an accepted ball")
		retryRate = flag.Float64("retry", defaultRetryRate, "Chance of resending an accepted ball")
		timeout   = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		output    = flag.String("output", "", "Write the ball log as JSON to this file")
		verbose   = flag.Bool("verbose", false, "Log every delivery")
		help      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulate.ShowHelp()
		return
	}

	if err := simulate.SetupLogging(*verbose); err != nil {
		_, _ = os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunLimit)
	defer cancel()

	cfg := &simulate.Config{
		BaseURL:    *baseURL,
		MatchID:    *matchID,
		TeamID:     *teamID,
		Overs:      *overs,
		Seed:       *seed,
		UndoRate:   *undoRate,
		RetryRate:  *retryRate,
		Timeout:    *timeout,
		OutputFile: *output,
		Verbose:    *verbose,
	}
	if _, err := simulate.Run(ctx, cfg); err != nil {
		_, _ = os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
