package events

import (
	"time"

	"github.com/spec-kit/support-bot/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated   EventType = "ticket_created"
	EventTicketClaimed   EventType = "ticket_claimed"
	EventTicketUnclaimed EventType = "ticket_unclaimed"
	EventTicketClosed    EventType = "ticket_closed"
	EventAIEscalated     EventType = "ai_escalated"
)

// Actor identifies who caused an event. ID is a Discord user id, "AI", or an operator name.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	ChannelID string      `json:"channel_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Type      domain.TicketType `json:"type"`
	CreatorID string            `json:"creator_id"`
	Reason    string            `json:"reason"`
	AIClaimed bool              `json:"ai_claimed"`
}

// TicketClaimedPayload payload.
type TicketClaimedPayload struct {
	ClaimedBy string `json:"claimed_by"`
}

// TicketUnclaimedPayload payload.
type TicketUnclaimedPayload struct {
	PreviousClaimer string `json:"previous_claimer"`
}

// TicketClosedPayload payload.
type TicketClosedPayload struct {
	Type           domain.TicketType `json:"type"`
	Label          string            `json:"label"`
	CreatorID      string            `json:"creator_id"`
	ClaimedBy      *string           `json:"claimed_by,omitempty"`
	Reason         string            `json:"reason"`
	Trigger        string            `json:"trigger"`
	MessageCount   int               `json:"message_count"`
	TranscriptSent bool              `json:"transcript_sent"`
	ArchivedAt     string            `json:"archived_at,omitempty"`
}

// AIEscalatedPayload payload.
type AIEscalatedPayload struct {
	WarningsGiven int `json:"warnings_given"`
}
