// Package realtime carries change notifications from the write paths to
// subscribed dashboards. Subscribers never inspect payloads beyond the kind:
// an event only means "re-fetch that state".
package realtime

import "time"

// Kind names the record collection a change event refers to.
type Kind string

const (
	KindBalance    Kind = "balance"
	KindGeneration Kind = "generation"
)

// Event is one change notification scoped to a single user.
type Event struct {
	Kind   Kind      `json:"kind"`
	UserID string    `json:"user_id"`
	At     time.Time `json:"at"`
}
