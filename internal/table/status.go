package table

import "time"

// Status is the lifecycle status of a table. A table moves NEW -> STARTED ->
// ENDED or ABANDONED, and the last two are terminal.
type Status string

const (
	StatusNew       Status = "NEW"
	StatusStarted   Status = "STARTED"
	StatusEnded     Status = "ENDED"
	StatusAbandoned Status = "ABANDONED"
)

// IsActive reports whether the status still allows play.
func (s Status) IsActive() bool {
	return s == StatusNew || s == StatusStarted
}

// Visibility controls who may join a new table.
type Visibility string

const (
	VisibilityPrivate Visibility = "PRIVATE"
	VisibilityPublic  Visibility = "PUBLIC"
)

// Type is the pace of a table, which decides its turn limit.
type Type string

const (
	TypeRealtime  Type = "REALTIME"
	TypeTurnBased Type = "TURN_BASED"
)

const (
	realtimeTurnLimit  = 10 * time.Minute
	turnBasedTurnLimit = 12 * time.Hour

	retentionNew             = 2 * 24 * time.Hour
	retentionAfterEnded      = 5 * 365 * 24 * time.Hour
	retentionAfterAbandoned  = 24 * time.Hour
	minProgressToKeepHistory = 25

	logRetention = 365 * 24 * time.Hour
)

// TurnLimit is how long a player may hold the turn on a table of this type.
func (t Type) TurnLimit() time.Duration {
	if t == TypeTurnBased {
		return turnBasedTurnLimit
	}
	return realtimeTurnLimit
}

func (t Type) valid() bool {
	return t == TypeRealtime || t == TypeTurnBased
}
