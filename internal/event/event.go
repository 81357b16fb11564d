// Package event defines the change-event envelope that travels over
// the bus and the builders that construct it from trigger snapshots.
package event

import (
	"time"
)

// SpecVersion is the envelope schema version stamped on every event.
const SpecVersion = "1.0"

// Operation is the kind of mutation an event records.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"

	// opUnknown never appears on a built event; builders return nil
	// instead of constructing a degenerate envelope.
	opUnknown Operation = "unknown"
)

// Envelope is the unit of transport and the unit of idempotent
// application on the relational side.
type Envelope struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Source      string    `json:"source"`
	SpecVersion string    `json:"specversion"`
	Time        time.Time `json:"time"`
	Data        Data      `json:"data"`
}

// Data is the event body. Document is nil exactly when the operation is
// a delete; PreviousDocument is nil exactly when it is a create.
type Data struct {
	Operation        Operation      `json:"operation"`
	Document         map[string]any `json:"document"`
	PreviousDocument map[string]any `json:"previousDocument"`
	ConversationID   string         `json:"conversationId,omitempty"`
	MessageID        string         `json:"messageId,omitempty"`
	FollowerID       string         `json:"followerId,omitempty"`
	FolloweeID       string         `json:"followeeId,omitempty"`
}

// CorrelationID picks the most specific business identifier available:
// conversation id, then acting user id, then the event id itself.
func (e *Envelope) CorrelationID() string {
	switch {
	case e.Data.ConversationID != "":
		return e.Data.ConversationID
	case e.Data.FollowerID != "":
		return e.Data.FollowerID
	default:
		return e.ID
	}
}
