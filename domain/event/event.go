package event

import (
	"chatwire/domain"
)

// Event is anything pushed to a connected client over its live channel.
// Name matches the outbound wire event name.
type Event interface {
	Name() string
}

// MessageStored carries a persisted message, either as the fan-out to the
// recipient or as the acknowledgment to the sender's own connection.
// Both copies carry the same canonical id.
type MessageStored struct {
	Message domain.Message
}

func (MessageStored) Name() string { return "message" }

// RosterSnapshot is the full set of online user ids, broadcast wholesale
// on every online/offline transition. Clients rebuild, never diff.
type RosterSnapshot struct {
	IDs []string
}

func (RosterSnapshot) Name() string { return "online-users" }

// SendFailed is the user-visible failure notice for a dropped send.
type SendFailed struct {
	Code   string
	Reason string
}

func (SendFailed) Name() string { return "error" }
