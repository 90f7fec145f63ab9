package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-bot/internal/domain"
)

// TicketFilter captures listing parameters.
type TicketFilter struct {
	Statuses  []domain.TicketStatus
	Type      *domain.TicketType
	CreatorID *string
	Limit     int
	Offset    int
}

// TicketRepository encapsulates ticket persistence.
// Create enforces one open ticket per guild, creator and type; Update rejects closed tickets.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByChannelID(ctx context.Context, channelID string) (*domain.Ticket, error)
	FindOpen(ctx context.Context, guildID, creatorID string, ticketType domain.TicketType) (*domain.Ticket, error)
	ListOpen(ctx context.Context) ([]domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates the postgres repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `channel_id, guild_id, ticket_type, label, channel_name, creator_id, creator_name,
        claimed_by, status, reason, messages, ai_active, ai_stopped, ai_paused_other_user,
        ai_warnings_given, close_requested, closed_by, close_reason, resolved,
        created_at, claimed_at, closed_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = time.Now().UTC()
	}
	messages, err := encodeMessages(ticket.Messages)
	if err != nil {
		return err
	}

	const query = `
        INSERT INTO tickets (` + ticketColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,NOW())
        RETURNING updated_at`
	err = r.pool.QueryRow(ctx, query,
		ticket.ChannelID,
		ticket.GuildID,
		ticket.Type,
		ticket.Label,
		ticket.ChannelName,
		ticket.CreatorID,
		ticket.CreatorName,
		ticket.ClaimedBy,
		ticket.Status,
		ticket.Reason,
		messages,
		ticket.AIActive,
		ticket.AIStopped,
		ticket.AIPausedOtherUser,
		ticket.AIWarningsGiven,
		ticket.CloseRequested,
		ticket.ClosedBy,
		ticket.CloseReason,
		ticket.Resolved,
		ticket.CreatedAt,
		ticket.ClaimedAt,
		ticket.ClosedAt,
	).Scan(&ticket.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrOpenTicketExists
	}
	return err
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	messages, err := encodeMessages(ticket.Messages)
	if err != nil {
		return err
	}

	const query = `
        UPDATE tickets SET label=$1, channel_name=$2, claimed_by=$3, status=$4, reason=$5, messages=$6,
            ai_active=$7, ai_stopped=$8, ai_paused_other_user=$9, ai_warnings_given=$10, close_requested=$11,
            closed_by=$12, close_reason=$13, resolved=$14, claimed_at=$15, closed_at=$16, updated_at=NOW()
        WHERE channel_id=$17 AND status <> 'closed'
        RETURNING updated_at`
	err = r.pool.QueryRow(ctx, query,
		ticket.Label,
		ticket.ChannelName,
		ticket.ClaimedBy,
		ticket.Status,
		ticket.Reason,
		messages,
		ticket.AIActive,
		ticket.AIStopped,
		ticket.AIPausedOtherUser,
		ticket.AIWarningsGiven,
		ticket.CloseRequested,
		ticket.ClosedBy,
		ticket.CloseReason,
		ticket.Resolved,
		ticket.ClaimedAt,
		ticket.ClosedAt,
		ticket.ChannelID,
	).Scan(&ticket.UpdatedAt)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	var status domain.TicketStatus
	if err := r.pool.QueryRow(ctx, `SELECT status FROM tickets WHERE channel_id=$1`, ticket.ChannelID).Scan(&status); err != nil {
		return mapNoRows(err)
	}
	return ErrTicketClosed
}

func (r *ticketRepository) GetByChannelID(ctx context.Context, channelID string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE channel_id=$1`
	return r.fetchSingle(ctx, query, channelID)
}

func (r *ticketRepository) FindOpen(ctx context.Context, guildID, creatorID string, ticketType domain.TicketType) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets
        WHERE guild_id=$1 AND creator_id=$2 AND ticket_type=$3 AND status <> 'closed'`
	return r.fetchSingle(ctx, query, guildID, creatorID, ticketType)
}

func (r *ticketRepository) ListOpen(ctx context.Context) ([]domain.Ticket, error) {
	return r.ListWithFilter(ctx, TicketFilter{
		Statuses: []domain.TicketStatus{domain.TicketStatusUnclaimed, domain.TicketStatusClaimed},
	})
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := `SELECT ` + ticketColumns + ` FROM tickets`
	clauses := []string{"1=1"}
	args := []any{}

	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, st := range filter.Statuses {
			statuses = append(statuses, string(st))
		}
		args = append(args, statuses)
		clauses = append(clauses, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if filter.Type != nil {
		args = append(args, string(*filter.Type))
		clauses = append(clauses, fmt.Sprintf("ticket_type = $%d", len(args)))
	}
	if filter.CreatorID != nil {
		args = append(args, *filter.CreatorID)
		clauses = append(clauses, fmt.Sprintf("creator_id = $%d", len(args)))
	}

	query := base + " WHERE " + strings.Join(clauses, " AND ") + " ORDER BY created_at ASC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tickets := []domain.Ticket{}
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, *ticket)
	}
	return tickets, rows.Err()
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Ticket, error) {
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return ticket, nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		ticket   domain.Ticket
		messages []byte
	)
	if err := row.Scan(
		&ticket.ChannelID,
		&ticket.GuildID,
		&ticket.Type,
		&ticket.Label,
		&ticket.ChannelName,
		&ticket.CreatorID,
		&ticket.CreatorName,
		&ticket.ClaimedBy,
		&ticket.Status,
		&ticket.Reason,
		&messages,
		&ticket.AIActive,
		&ticket.AIStopped,
		&ticket.AIPausedOtherUser,
		&ticket.AIWarningsGiven,
		&ticket.CloseRequested,
		&ticket.ClosedBy,
		&ticket.CloseReason,
		&ticket.Resolved,
		&ticket.CreatedAt,
		&ticket.ClaimedAt,
		&ticket.ClosedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	decoded, err := decodeMessages(messages)
	if err != nil {
		return nil, fmt.Errorf("decode messages for %s: %w", ticket.ChannelID, err)
	}
	ticket.Messages = decoded
	return &ticket, nil
}

// storedMessage is the JSONB shape of a conversation turn. Timestamps are kept as
// strings so legacy rows with odd formats still load.
type storedMessage struct {
	Role      domain.MessageRole `json:"role"`
	AuthorID  string             `json:"author_id,omitempty"`
	Content   string             `json:"content"`
	Timestamp string             `json:"timestamp"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// parseTimestamp returns the zero time for anything unparsable, which the
// inactivity sweep treats as very old.
func parseTimestamp(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC()
		}
	}
	return time.Time{}
}

func encodeMessages(messages []domain.ConversationMessage) ([]byte, error) {
	stored := make([]storedMessage, 0, len(messages))
	for _, m := range messages {
		sm := storedMessage{Role: m.Role, AuthorID: m.AuthorID, Content: m.Content}
		if !m.Timestamp.IsZero() {
			sm.Timestamp = m.Timestamp.UTC().Format(time.RFC3339Nano)
		}
		stored = append(stored, sm)
	}
	return json.Marshal(stored)
}

func decodeMessages(raw []byte) ([]domain.ConversationMessage, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var stored []storedMessage
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, err
	}
	out := make([]domain.ConversationMessage, 0, len(stored))
	for _, sm := range stored {
		out = append(out, domain.ConversationMessage{
			Role:      sm.Role,
			AuthorID:  sm.AuthorID,
			Content:   sm.Content,
			Timestamp: parseTimestamp(sm.Timestamp),
		})
	}
	return out, nil
}
