package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-bot/internal/api/dto"
	"github.com/spec-kit/support-bot/internal/auth"
	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/repository"
	"github.com/spec-kit/support-bot/internal/service"
	apperrors "github.com/spec-kit/support-bot/pkg/util"
)

const operatorCloseReason = "Closed by operator"

// TicketsHandler exposes ticket records to operators.
type TicketsHandler struct {
	tickets *service.TicketService
	history *service.HistoryService
}

// NewTicketsHandler constructs handler. history may be nil.
func NewTicketsHandler(ticketService *service.TicketService, history *service.HistoryService) *TicketsHandler {
	return &TicketsHandler{tickets: ticketService, history: history}
}

// ListTickets GET /admin/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	filter, err := parseTicketFilter(c)
	if err != nil {
		return err
	}
	tickets, err := h.tickets.ListTickets(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /admin/tickets/:channel_id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.tickets.GetTicket(c.UserContext(), c.Params("channel_id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket)})
}

// History GET /admin/tickets/:channel_id/history.
func (h *TicketsHandler) History(c *fiber.Ctx) error {
	channelID := c.Params("channel_id")
	if _, err := h.tickets.GetTicket(c.UserContext(), channelID); err != nil {
		return err
	}
	items := []dto.HistoryEntry{}
	if h.history != nil {
		entries, err := h.history.List(c.UserContext(), channelID)
		if err != nil {
			return err
		}
		for _, e := range entries {
			items = append(items, dto.HistoryEntry{
				EventID:   e.EventID,
				EventType: e.EventType,
				ActorID:   e.ActorID,
				ActorName: e.ActorName,
				Payload:   e.Payload,
				CreatedAt: e.CreatedAt,
			})
		}
	}
	return c.JSON(fiber.Map{"data": items})
}

// Summary GET /admin/tickets/:channel_id/summary.
func (h *TicketsHandler) Summary(c *fiber.Ctx) error {
	summary, err := h.tickets.Summarize(c.UserContext(), c.Params("channel_id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"summary": summary}})
}

// CloseTicket POST /admin/tickets/:channel_id/close.
func (h *TicketsHandler) CloseTicket(c *fiber.Ctx) error {
	var req dto.CloseTicketRequest
	if len(c.Body()) > 0 {
		if err := bindJSON(c, &req); err != nil {
			return err
		}
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = operatorCloseReason
	}

	ticket, err := h.tickets.CloseTicket(c.UserContext(), service.CloseInput{
		ChannelID: c.Params("channel_id"),
		Closer:    operatorParticipant(c),
		Reason:    reason,
		Trigger:   service.CloseTriggerAPI,
		Resolved:  req.Resolved,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// ReactivateAI POST /admin/tickets/:channel_id/ai/reactivate.
func (h *TicketsHandler) ReactivateAI(c *fiber.Ctx) error {
	ticket, err := h.tickets.ReactivateAI(c.UserContext(), c.Params("channel_id"), operatorParticipant(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

func operatorParticipant(c *fiber.Ctx) service.Participant {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return service.Participant{ID: "operator", Name: "operator"}
	}
	return service.Participant{ID: "operator:" + principal.Username, Name: principal.Username}
}

func parseTicketFilter(c *fiber.Ctx) (repository.TicketFilter, error) {
	var filter repository.TicketFilter
	if raw := c.Query("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			status := domain.TicketStatus(strings.TrimSpace(strings.ToLower(part)))
			switch status {
			case domain.TicketStatusUnclaimed, domain.TicketStatusClaimed, domain.TicketStatusClosed:
				filter.Statuses = append(filter.Statuses, status)
			default:
				return filter, apperrors.NewValidationError("unknown status", map[string]any{"status": part})
			}
		}
	}
	if raw := c.Query("type"); raw != "" {
		ticketType, ok := domain.ParseTicketType(raw)
		if !ok {
			return filter, apperrors.NewValidationError("unknown ticket type", map[string]any{"type": raw})
		}
		filter.Type = &ticketType
	}
	if creator := c.Query("creator_id"); creator != "" {
		filter.CreatorID = &creator
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter, nil
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func ticketSummary(ticket *domain.Ticket) dto.TicketSummary {
	return dto.TicketSummary{
		ChannelID:   ticket.ChannelID,
		Type:        ticket.Type,
		Label:       ticket.Label,
		ChannelName: ticket.ChannelName,
		CreatorID:   ticket.CreatorID,
		ClaimedBy:   ticket.ClaimedBy,
		Status:      ticket.Status,
		AIActive:    ticket.AIActive,
		AIStopped:   ticket.AIStopped,
		Messages:    len(ticket.Messages),
		CreatedAt:   ticket.CreatedAt,
		UpdatedAt:   ticket.UpdatedAt,
	}
}

func ticketDetail(ticket *domain.Ticket) dto.TicketDetailResponse {
	conversation := make([]dto.ConversationMessage, 0, len(ticket.Messages))
	for _, m := range ticket.Messages {
		msg := dto.ConversationMessage{Role: m.Role, AuthorID: m.AuthorID, Content: m.Content}
		if !m.Timestamp.IsZero() {
			ts := m.Timestamp
			msg.Timestamp = &ts
		}
		conversation = append(conversation, msg)
	}
	return dto.TicketDetailResponse{
		TicketSummary:     ticketSummary(ticket),
		Reason:            ticket.Reason,
		CreatorName:       ticket.CreatorName,
		AIPausedOtherUser: ticket.AIPausedOtherUser,
		AIWarningsGiven:   ticket.AIWarningsGiven,
		CloseRequested:    ticket.CloseRequested,
		ClosedBy:          ticket.ClosedBy,
		CloseReason:       ticket.CloseReason,
		Resolved:          ticket.Resolved,
		ClaimedAt:         ticket.ClaimedAt,
		ClosedAt:          ticket.ClosedAt,
		Conversation:      conversation,
	}
}
