package types

import "time"

// Trip is one completed journey. Created exactly once, when the
// reconciler closes an onboard entry, and immutable afterwards.
type Trip struct {
	ID              string
	DisplayName     string
	Namespace       Namespace
	EntryTime       time.Time
	ExitTime        time.Time
	DurationMinutes float64
	Fare            float64
}
