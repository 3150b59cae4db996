// Package types contains common types used across the application.
package types

// Op names a scoring operation. It labels broadcasts, metrics and logs.
type Op string

// Scoring operations.
const (
	OpRecordBall     Op = "record_ball"
	OpUndo           Op = "undo"
	OpSetPlayer      Op = "set_player"
	OpSetBattingTeam Op = "set_batting_team"
)

// Mutating reports whether the op adds or removes an undo step.
func (o Op) Mutating() bool {
	return o == OpRecordBall || o == OpUndo
}

// Stats is the service snapshot served on /stats.
type Stats struct {
	Started      bool   `json:"started"`
	WorkerCount  int    `json:"workerCount"`
	QueueSize    int    `json:"queueSize"`
	QueueLength  int    `json:"queueLength"`
	DedupeSize   int64  `json:"dedupeSize"`
	Matches      int    `json:"matches"`
	Subscribers  int    `json:"subscribers"`
	StoreBackend string `json:"storeBackend"`
}
