package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusUnclaimed TicketStatus = "unclaimed"
	TicketStatusClaimed   TicketStatus = "claimed"
	TicketStatusClosed    TicketStatus = "closed"
)

// TicketType identifies the ticket panel option the creator picked.
type TicketType string

const (
	TicketTypeSupport        TicketType = "support"
	TicketTypeContentCreator TicketType = "content_creator"
	TicketTypeReport         TicketType = "report"
	TicketTypeAppeal         TicketType = "appeal"
)

// AIClaimer is the claimer id recorded when the assistant claims a ticket.
const AIClaimer = "AI"

// ParseTicketType accepts the canonical names plus the short aliases used in chat commands.
func ParseTicketType(raw string) (TicketType, bool) {
	switch raw {
	case "support", "help":
		return TicketTypeSupport, true
	case "content_creator", "cc", "creator":
		return TicketTypeContentCreator, true
	case "report":
		return TicketTypeReport, true
	case "appeal":
		return TicketTypeAppeal, true
	}
	return "", false
}

// Label is the human readable name of the ticket type.
func (t TicketType) Label() string {
	switch t {
	case TicketTypeContentCreator:
		return "Content Creator Request"
	case TicketTypeReport:
		return "User Report"
	case TicketTypeAppeal:
		return "Warning Appeal"
	default:
		return "Support Ticket"
	}
}

// ChannelSuffix is appended to the creator name when naming the ticket channel.
func (t TicketType) ChannelSuffix() string {
	switch t {
	case TicketTypeContentCreator:
		return "creator-request"
	case TicketTypeReport:
		return "report-player"
	case TicketTypeAppeal:
		return "warning-appeal"
	default:
		return "support"
	}
}

// ClaimedTitle is the word used in the channel name once the assistant claims it.
func (t TicketType) ClaimedTitle() string {
	switch t {
	case TicketTypeContentCreator:
		return "request"
	case TicketTypeAppeal:
		return "warning-appeal"
	case TicketTypeReport:
		return "report"
	default:
		return "support"
	}
}

// Emoji marks the unclaimed channel name.
func (t TicketType) Emoji() string {
	switch t {
	case TicketTypeContentCreator:
		return "🟣"
	case TicketTypeReport:
		return "🔴"
	case TicketTypeAppeal:
		return "🟡"
	default:
		return "🔵"
	}
}

// MessageRole distinguishes creator turns from assistant turns.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// ConversationMessage is a single turn of the AI conversation stored on a ticket.
type ConversationMessage struct {
	Role      MessageRole `json:"role"`
	AuthorID  string      `json:"author_id,omitempty"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
}

// Ticket is the durable record of one ticket channel.
type Ticket struct {
	ChannelID   string
	GuildID     string
	Type        TicketType
	Label       string
	ChannelName string
	CreatorID   string
	CreatorName string
	ClaimedBy   *string
	Status      TicketStatus
	Reason      string
	Messages    []ConversationMessage

	AIActive          bool
	AIStopped         bool
	AIPausedOtherUser bool
	AIWarningsGiven   int
	CloseRequested    bool

	ClosedBy    *string
	CloseReason *string
	Resolved    bool

	CreatedAt time.Time
	ClaimedAt *time.Time
	ClosedAt  *time.Time
	UpdatedAt time.Time
}

// IsOpen reports whether the ticket still accepts changes.
func (t *Ticket) IsOpen() bool {
	return t.Status != TicketStatusClosed
}

// IsClaimed reports whether someone, human or AI, owns the ticket.
func (t *Ticket) IsClaimed() bool {
	return t.ClaimedBy != nil && *t.ClaimedBy != ""
}

// ClaimedByAI reports whether the assistant holds the claim.
func (t *Ticket) ClaimedByAI() bool {
	return t.IsClaimed() && *t.ClaimedBy == AIClaimer
}

// OpenKey identifies the open-ticket slot the ticket occupies.
func (t *Ticket) OpenKey() string {
	return OpenTicketKey(t.GuildID, t.CreatorID, t.Type)
}

// OpenTicketKey builds the guild:creator:type key enforcing one open ticket per type.
func OpenTicketKey(guildID, creatorID string, ticketType TicketType) string {
	return guildID + ":" + creatorID + ":" + string(ticketType)
}

// LastActivity returns the timestamp of the latest message, falling back to creation time.
// A zero result means the record carries no usable timestamp.
func (t *Ticket) LastActivity() time.Time {
	for i := len(t.Messages) - 1; i >= 0; i-- {
		if ts := t.Messages[i].Timestamp; !ts.IsZero() {
			return ts
		}
	}
	return t.CreatedAt
}

// RecentMessages returns at most n of the latest messages, oldest first.
func (t *Ticket) RecentMessages(n int) []ConversationMessage {
	if n <= 0 || len(t.Messages) == 0 {
		return nil
	}
	start := len(t.Messages) - n
	if start < 0 {
		start = 0
	}
	out := make([]ConversationMessage, len(t.Messages)-start)
	copy(out, t.Messages[start:])
	return out
}

// AppendMessage adds a turn to the conversation history.
func (t *Ticket) AppendMessage(role MessageRole, authorID, content string, at time.Time) {
	t.Messages = append(t.Messages, ConversationMessage{
		Role:      role,
		AuthorID:  authorID,
		Content:   content,
		Timestamp: at,
	})
}

// Clone returns a deep copy so stores never share mutable state with callers.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	cp := *t
	cp.Messages = append([]ConversationMessage(nil), t.Messages...)
	cp.ClaimedBy = cloneString(t.ClaimedBy)
	cp.ClosedBy = cloneString(t.ClosedBy)
	cp.CloseReason = cloneString(t.CloseReason)
	cp.ClaimedAt = cloneTime(t.ClaimedAt)
	cp.ClosedAt = cloneTime(t.ClosedAt)
	return &cp
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(ts *time.Time) *time.Time {
	if ts == nil {
		return nil
	}
	v := *ts
	return &v
}
