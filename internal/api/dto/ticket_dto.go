package dto

import (
	"encoding/json"
	"time"

	"github.com/spec-kit/support-bot/internal/domain"
)

// TicketSummary response.
type TicketSummary struct {
	ChannelID   string              `json:"channel_id"`
	Type        domain.TicketType   `json:"type"`
	Label       string              `json:"label"`
	ChannelName string              `json:"channel_name"`
	CreatorID   string              `json:"creator_id"`
	ClaimedBy   *string             `json:"claimed_by"`
	Status      domain.TicketStatus `json:"status"`
	AIActive    bool                `json:"ai_active"`
	AIStopped   bool                `json:"ai_stopped"`
	Messages    int                 `json:"message_count"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// TicketDetailResponse provides the full record including the AI conversation.
type TicketDetailResponse struct {
	TicketSummary
	Reason            string                `json:"reason"`
	CreatorName       string                `json:"creator_name"`
	AIPausedOtherUser bool                  `json:"ai_paused_other_user"`
	AIWarningsGiven   int                   `json:"ai_warnings_given"`
	CloseRequested    bool                  `json:"close_requested"`
	ClosedBy          *string               `json:"closed_by"`
	CloseReason       *string               `json:"close_reason"`
	Resolved          bool                  `json:"resolved"`
	ClaimedAt         *time.Time            `json:"claimed_at"`
	ClosedAt          *time.Time            `json:"closed_at"`
	Conversation      []ConversationMessage `json:"conversation"`
}

// ConversationMessage is one stored AI conversation turn.
type ConversationMessage struct {
	Role      domain.MessageRole `json:"role"`
	AuthorID  string             `json:"author_id,omitempty"`
	Content   string             `json:"content"`
	Timestamp *time.Time         `json:"timestamp"`
}

// CloseTicketRequest payload.
type CloseTicketRequest struct {
	Reason   string `json:"reason" validate:"max=512"`
	Resolved bool   `json:"resolved"`
}

// HistoryEntry is one audit trail event of a ticket.
type HistoryEntry struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	ActorID   string          `json:"actor_id"`
	ActorName string          `json:"actor_name,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}
