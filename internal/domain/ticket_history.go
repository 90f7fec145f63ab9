package domain

import (
	"encoding/json"
	"time"
)

// TicketHistory is an immutable audit entry for one lifecycle event of a ticket.
type TicketHistory struct {
	EventID   string
	ChannelID string
	EventType string
	ActorID   string
	ActorName string
	Payload   json.RawMessage
	CreatedAt time.Time
}
