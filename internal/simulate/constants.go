package simulate

import "time"

// Innings limits.
const (
	defaultOvers     = 5
	ballsPerOver     = 6
	squadSize        = 11
	bowlersInAttack  = 5
	maxWickets       = squadSize - 1
	defaultTimeout   = 10 * time.Second
	outputPermission = 0o600
)
