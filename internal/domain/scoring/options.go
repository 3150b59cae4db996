package scoring

import "time"

// DefaultHistoryDepth is the number of undo steps kept per match.
const DefaultHistoryDepth = 20

// Rules collects the scoring conventions that are configurable per
// deployment.
type Rules struct {
	// NoBallCountsAsBallFaced adds a ball faced to the striker on a no-ball.
	NoBallCountsAsBallFaced bool
	// WideOddRunsRotate changes ends when an odd number of runs is run on a wide.
	WideOddRunsRotate bool
	// CompletingBallVisibleInOldOver keeps the over-completing ball's tag in
	// LastOver. When false the tag only appears in the ball-by-ball log.
	CompletingBallVisibleInOldOver bool
	// AllOutGuard rejects balls once the batting side has lost ten wickets.
	AllOutGuard bool
}

// DefaultRules returns the conventions used when nothing is configured.
func DefaultRules() Rules {
	return Rules{
		WideOddRunsRotate: true,
		AllOutGuard:       true,
	}
}

// Option applies a configuration option to the Machine.
type Option func(*Machine)

// WithRules replaces the scoring rules.
func WithRules(r Rules) Option {
	return func(m *Machine) {
		m.rules = r
	}
}

// WithClock sets the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

// WithHistoryDepth bounds the undo stack. Non-positive values are ignored.
func WithHistoryDepth(n int) Option {
	return func(m *Machine) {
		if n > 0 {
			m.depth = n
		}
	}
}
