package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/support-bot/internal/conversation"
	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/events"
	"github.com/spec-kit/support-bot/internal/intent"
	"github.com/spec-kit/support-bot/internal/lock"
	"github.com/spec-kit/support-bot/internal/observability"
	"github.com/spec-kit/support-bot/internal/repository"
	apperrors "github.com/spec-kit/support-bot/pkg/util"
)

// Close triggers recorded in metrics and events.
const (
	CloseTriggerCommand    = "command"
	CloseTriggerAI         = "ai_close_request"
	CloseTriggerInactivity = "inactivity"
	CloseTriggerAPI        = "api"
)

const (
	maxChannelNameLength = 100
	summaryRecent        = 5
	summaryPreview       = 150
	defaultTranscriptCap = 500

	msgCreationFailed   = "Your ticket could not be created. Please contact an administrator."
	aiCloseReason       = "User confirmed the issue is resolved"
	inactivityReason    = "Auto-closed due to inactivity (24h no reply)"
	defaultReason       = "No reason provided"
	defaultCloseReason  = "User requested closure"
	inactivityNoticeFmt = "⚠️ This ticket has been inactive for %d hours and will now be automatically closed.\nIf you need further assistance, please open a new ticket."
)

// ErrNotTicket is returned for messages in channels that hold no ticket record.
var ErrNotTicket = errors.New("channel is not a ticket")

// Conversation runs AI turns for a ticket.
type Conversation interface {
	Handle(ctx context.Context, ticket *domain.Ticket, in conversation.Inbound) (conversation.TurnResult, error)
	Greet(ctx context.Context, ticket *domain.Ticket) error
}

// TicketSettings configures lifecycle behaviour.
type TicketSettings struct {
	Categories        map[domain.TicketType]string
	StaffRoleIDs      []string
	LogsChannelID     string
	Bot               Participant
	InactivityTimeout time.Duration
	TranscriptLimit   int
}

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets      repository.TicketRepository
	conversation Conversation
	gate         *conversation.Gate
	ops          *OpsService
	memory       *MemoryService
	assignments  *AssignmentService
	platform     Platform
	archive      TranscriptArchive
	locker       lock.Locker
	dispatcher   events.Dispatcher
	metrics      *observability.Metrics
	logger       *zap.Logger
	settings     TicketSettings
	now          func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo   repository.TicketRepository
	Conversation Conversation
	Gate         *conversation.Gate
	Ops          *OpsService
	Memory       *MemoryService
	Assignments  *AssignmentService
	Platform     Platform
	// Archive is optional.
	Archive    TranscriptArchive
	Locker     lock.Locker
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Settings   TicketSettings
}

// CreateTicketInput describes a ticket opened by a member.
type CreateTicketInput struct {
	GuildID     string
	CreatorID   string
	CreatorName string
	Type        domain.TicketType
	Reason      string
}

// CloseInput describes a closure request.
type CloseInput struct {
	ChannelID string
	Closer    Participant
	Reason    string
	Trigger   string
	Resolved  bool
}

// InboundMessage is a message posted in a guild channel.
type InboundMessage struct {
	ChannelID  string
	AuthorName string
	Content    string
	Facts      conversation.Facts
	At         time.Time
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = observability.NewMetrics()
	}
	settings := deps.Settings
	if settings.InactivityTimeout <= 0 {
		settings.InactivityTimeout = 24 * time.Hour
	}
	if settings.TranscriptLimit <= 0 {
		settings.TranscriptLimit = defaultTranscriptCap
	}
	return &TicketService{
		tickets:      deps.TicketRepo,
		conversation: deps.Conversation,
		gate:         deps.Gate,
		ops:          deps.Ops,
		memory:       deps.Memory,
		assignments:  deps.Assignments,
		platform:     deps.Platform,
		archive:      deps.Archive,
		locker:       deps.Locker,
		dispatcher:   deps.Dispatcher,
		metrics:      metrics,
		logger:       logger,
		settings:     settings,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// CreateTicket opens a ticket channel for a member. A second open ticket of the same type is rejected.
func (s *TicketService) CreateTicket(ctx context.Context, in CreateTicketInput) (*domain.Ticket, error) {
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		reason = defaultReason
	}

	unlock, err := lockTicket(ctx, s.locker, domain.OpenTicketKey(in.GuildID, in.CreatorID, in.Type))
	if err != nil {
		return nil, err
	}
	defer unlock()

	if existing, err := s.tickets.FindOpen(ctx, in.GuildID, in.CreatorID, in.Type); err == nil {
		return nil, apperrors.NewTicketExists(existing.ChannelID, existing.Label)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.MapError(err)
	}

	categoryID := s.settings.Categories[in.Type]
	name := ticketChannelName(in.Type, in.CreatorName)
	channelID, err := s.platform.CreateTicketChannel(ctx, ChannelSpec{
		GuildID:      in.GuildID,
		CategoryID:   categoryID,
		Name:         name,
		Topic:        fmt.Sprintf("Ticket by %s | Status: UNCLAIMED", in.CreatorName),
		CreatorID:    in.CreatorID,
		StaffRoleIDs: s.settings.StaffRoleIDs,
	})
	if err != nil {
		s.logger.Error("failed to create ticket channel",
			zap.String("creator_id", in.CreatorID),
			zap.String("type", string(in.Type)),
			zap.Error(err),
		)
		return nil, apperrors.NewPlatformFailure(msgCreationFailed, err)
	}

	aiEligible := s.gate != nil && s.gate.InAICategory(categoryID)
	ticket := &domain.Ticket{
		ChannelID:   channelID,
		GuildID:     in.GuildID,
		Type:        in.Type,
		Label:       in.Type.Label(),
		ChannelName: name,
		CreatorID:   in.CreatorID,
		CreatorName: in.CreatorName,
		Status:      domain.TicketStatusUnclaimed,
		Reason:      reason,
		AIActive:    aiEligible && s.ops.AIOpsEnabled(ctx),
		CreatedAt:   s.now(),
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		s.deleteChannel(ctx, channelID, "ticket record could not be saved")
		if errors.Is(err, repository.ErrOpenTicketExists) {
			if existing, findErr := s.tickets.FindOpen(ctx, in.GuildID, in.CreatorID, in.Type); findErr == nil {
				return nil, apperrors.NewTicketExists(existing.ChannelID, existing.Label)
			}
		}
		return nil, apperrors.MapError(err)
	}

	s.send(ctx, channelID, fmt.Sprintf("Welcome <@%s>! Your %s has been created.\n**Reason:** %s", in.CreatorID, ticket.Label, reason))
	publishEvent(ctx, s.dispatcher, events.Event{
		Type:      events.EventTicketCreated,
		ChannelID: channelID,
		Actor:     events.Actor{ID: in.CreatorID, Name: in.CreatorName},
		Payload: events.TicketCreatedPayload{
			Type:      ticket.Type,
			CreatorID: ticket.CreatorID,
			Reason:    ticket.Reason,
			AIClaimed: ticket.AIActive,
		},
	})

	if ticket.AIActive {
		s.startAI(ctx, ticket)
	}
	return ticket, nil
}

// startAI claims the new ticket for the assistant and greets the creator.
func (s *TicketService) startAI(ctx context.Context, ticket *domain.Ticket) {
	unlock, err := lockTicket(ctx, s.locker, ticket.ChannelID)
	if err != nil {
		s.logger.Warn("failed to lock new ticket", zap.String("channel_id", ticket.ChannelID), zap.Error(err))
		return
	}
	defer unlock()

	if err := s.assignments.claimLocked(ctx, ticket, AIParticipant); err != nil {
		s.logger.Warn("ai auto-claim failed", zap.String("channel_id", ticket.ChannelID), zap.Error(err))
		return
	}
	if err := s.conversation.Greet(ctx, ticket); err != nil {
		s.logger.Warn("ai greeting failed", zap.String("channel_id", ticket.ChannelID), zap.Error(err))
	}
}

// HandleInbound routes a message posted in a ticket channel through the gate and the
// conversation controller. ErrNotTicket is returned for channels without a ticket.
func (s *TicketService) HandleInbound(ctx context.Context, msg InboundMessage) (conversation.TurnResult, error) {
	silent := conversation.TurnResult{Intent: intent.None, Action: conversation.ActionSilent}

	ticket, err := s.tickets.GetByChannelID(ctx, msg.ChannelID)
	if errors.Is(err, repository.ErrNotFound) {
		return silent, ErrNotTicket
	}
	if err != nil {
		return silent, apperrors.MapError(err)
	}
	if !ticket.IsOpen() {
		return silent, nil
	}

	if verdict := s.gate.Admit(msg.Facts, s.ops.AIOpsEnabled(ctx)); verdict != conversation.Admitted {
		s.logger.Debug("message not admitted",
			zap.String("channel_id", msg.ChannelID),
			zap.String("verdict", string(verdict)),
		)
		return silent, nil
	}

	at := msg.At
	if at.IsZero() {
		at = s.now()
	}
	if s.memory != nil {
		s.memory.Record(ctx, domain.MemoryEntry{
			GuildID:   ticket.GuildID,
			ChannelID: msg.ChannelID,
			UserID:    msg.Facts.AuthorID,
			Username:  msg.AuthorName,
			Content:   msg.Content,
			CreatedAt: at,
		})
	}

	unlock, err := lockTicket(ctx, s.locker, msg.ChannelID)
	if err != nil {
		return silent, err
	}
	defer unlock()

	ticket, err = s.tickets.GetByChannelID(ctx, msg.ChannelID)
	if err != nil {
		return silent, mapTicketError(err, msg.ChannelID)
	}
	if !ticket.IsOpen() {
		return silent, nil
	}

	result, err := s.conversation.Handle(ctx, ticket, conversation.Inbound{
		AuthorID: msg.Facts.AuthorID,
		Content:  msg.Content,
		At:       at,
	})
	if err != nil {
		s.logger.Error("ticket turn failed", zap.String("channel_id", msg.ChannelID), zap.Error(err))
		return result, mapTicketError(err, msg.ChannelID)
	}

	if result.Intent == intent.DisrespectEscalate {
		publishEvent(ctx, s.dispatcher, events.Event{
			Type:      events.EventAIEscalated,
			ChannelID: msg.ChannelID,
			Actor:     events.Actor{ID: msg.Facts.AuthorID, Name: msg.AuthorName},
			Payload:   events.AIEscalatedPayload{WarningsGiven: ticket.AIWarningsGiven},
		})
	}

	if result.Action == conversation.ActionClose {
		s.send(ctx, msg.ChannelID, conversation.CloseAcknowledgement)
		_, err := s.closeLocked(ctx, ticket, CloseInput{
			ChannelID: msg.ChannelID,
			Closer:    Participant{ID: ticket.CreatorID, Name: msg.AuthorName},
			Reason:    aiCloseReason,
			Trigger:   CloseTriggerAI,
			Resolved:  true,
		})
		if err != nil {
			s.logger.Error("ai requested closure failed", zap.String("channel_id", msg.ChannelID), zap.Error(err))
		}
	}
	return result, nil
}

// CloseTicket closes a ticket: transcript, record update, channel deletion.
func (s *TicketService) CloseTicket(ctx context.Context, in CloseInput) (*domain.Ticket, error) {
	unlock, err := lockTicket(ctx, s.locker, in.ChannelID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ticket, err := s.tickets.GetByChannelID(ctx, in.ChannelID)
	if err != nil {
		return nil, mapTicketError(err, in.ChannelID)
	}
	return s.closeLocked(ctx, ticket, in)
}

// closeLocked requires the caller to hold the ticket lock.
func (s *TicketService) closeLocked(ctx context.Context, ticket *domain.Ticket, in CloseInput) (*domain.Ticket, error) {
	if !ticket.IsOpen() {
		return nil, apperrors.NewTicketClosed(ticket.ChannelID)
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		reason = defaultCloseReason
	}
	trigger := in.Trigger
	if trigger == "" {
		trigger = CloseTriggerCommand
	}

	history, fetchErr := s.platform.FetchHistory(ctx, ticket.ChannelID, s.settings.TranscriptLimit)
	if fetchErr != nil {
		s.logger.Warn("failed to fetch ticket history", zap.String("channel_id", ticket.ChannelID), zap.Error(fetchErr))
	}
	transcript := BuildTranscript(ticket, in.Closer, reason, history, fetchErr)
	delivered := s.deliverTranscript(ctx, ticket, transcript, reason)

	now := s.now()
	archivedAt := s.archiveTranscript(ctx, ticket, transcript, now)
	closedBy := in.Closer.ID
	ticket.Status = domain.TicketStatusClosed
	ticket.ClosedBy = &closedBy
	ticket.CloseReason = &reason
	ticket.ClosedAt = &now
	ticket.Resolved = in.Resolved
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, mapTicketError(err, ticket.ChannelID)
	}

	s.deleteChannel(ctx, ticket.ChannelID, reason)
	s.metrics.RecordClosure(trigger)
	s.logger.Info("ticket closed",
		zap.String("channel_id", ticket.ChannelID),
		zap.String("trigger", trigger),
		zap.String("closed_by", closedBy),
	)

	publishEvent(ctx, s.dispatcher, events.Event{
		Type:      events.EventTicketClosed,
		ChannelID: ticket.ChannelID,
		Actor:     actorOf(in.Closer),
		Payload: events.TicketClosedPayload{
			Type:           ticket.Type,
			Label:          ticket.Label,
			CreatorID:      ticket.CreatorID,
			ClaimedBy:      ticket.ClaimedBy,
			Reason:         reason,
			Trigger:        trigger,
			MessageCount:   len(ticket.Messages),
			TranscriptSent: delivered,
			ArchivedAt:     archivedAt,
		},
	})
	return ticket, nil
}

func (s *TicketService) deliverTranscript(ctx context.Context, ticket *domain.Ticket, transcript, reason string) bool {
	if s.settings.LogsChannelID == "" {
		return false
	}
	content := fmt.Sprintf("Ticket closed: %s (%s)", ticket.ChannelName, reason)
	err := s.platform.SendFile(ctx, s.settings.LogsChannelID, content, TranscriptFilename(ticket.ChannelID), []byte(transcript))
	if err != nil {
		s.logger.Warn("failed to deliver transcript", zap.String("channel_id", ticket.ChannelID), zap.Error(err))
		return false
	}
	return true
}

func (s *TicketService) archiveTranscript(ctx context.Context, ticket *domain.Ticket, transcript string, closedAt time.Time) string {
	if s.archive == nil {
		return ""
	}
	location, err := s.archive.Store(ctx, TranscriptArchiveKey(ticket.ChannelID, closedAt), []byte(transcript))
	if err != nil {
		s.logger.Warn("failed to archive transcript", zap.String("channel_id", ticket.ChannelID), zap.Error(err))
		return ""
	}
	return location
}

// SweepInactive closes every open ticket whose last activity is at least the inactivity timeout old.
func (s *TicketService) SweepInactive(ctx context.Context) (int, error) {
	open, err := s.tickets.ListOpen(ctx)
	if err != nil {
		return 0, apperrors.MapError(err)
	}

	cutoff := s.now().Add(-s.settings.InactivityTimeout)
	closed := 0
	for i := range open {
		if ctx.Err() != nil {
			return closed, ctx.Err()
		}
		if !isStale(&open[i], cutoff) {
			continue
		}
		if s.sweepOne(ctx, open[i].ChannelID, cutoff) {
			closed++
		}
	}
	return closed, nil
}

func (s *TicketService) sweepOne(ctx context.Context, channelID string, cutoff time.Time) bool {
	unlock, err := lockTicket(ctx, s.locker, channelID)
	if err != nil {
		s.logger.Warn("sweep could not lock ticket", zap.String("channel_id", channelID), zap.Error(err))
		return false
	}
	defer unlock()

	ticket, err := s.tickets.GetByChannelID(ctx, channelID)
	if err != nil || !ticket.IsOpen() || !isStale(ticket, cutoff) {
		return false
	}

	s.send(ctx, channelID, fmt.Sprintf(inactivityNoticeFmt, int(s.settings.InactivityTimeout.Hours())))
	if _, err := s.closeLocked(ctx, ticket, CloseInput{
		ChannelID: channelID,
		Closer:    s.settings.Bot,
		Reason:    inactivityReason,
		Trigger:   CloseTriggerInactivity,
	}); err != nil {
		s.logger.Warn("inactivity close failed", zap.String("channel_id", channelID), zap.Error(err))
		return false
	}
	return true
}

// isStale treats a ticket without any usable timestamp as very old.
func isStale(ticket *domain.Ticket, cutoff time.Time) bool {
	last := ticket.LastActivity()
	return last.IsZero() || !last.After(cutoff)
}

// ReactivateAI lifts an escalation or stop. It is the human action that re-enables the assistant.
func (s *TicketService) ReactivateAI(ctx context.Context, channelID string, actor Participant) (*domain.Ticket, error) {
	unlock, err := lockTicket(ctx, s.locker, channelID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ticket, err := s.tickets.GetByChannelID(ctx, channelID)
	if err != nil {
		return nil, mapTicketError(err, channelID)
	}
	if !ticket.IsOpen() {
		return nil, apperrors.NewTicketClosed(channelID)
	}

	ticket.AIActive = true
	ticket.AIStopped = false
	ticket.AIPausedOtherUser = false
	ticket.AIWarningsGiven = 0
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, mapTicketError(err, channelID)
	}
	s.logger.Info("ai reactivated", zap.String("channel_id", channelID), zap.String("actor", actor.ID))
	s.send(ctx, channelID, fmt.Sprintf("AI assistance has been re-enabled for this ticket by %s.", actor.Name))
	return ticket, nil
}

// Summarize renders a staff-facing overview of the ticket.
func (s *TicketService) Summarize(ctx context.Context, channelID string) (string, error) {
	ticket, err := s.tickets.GetByChannelID(ctx, channelID)
	if err != nil {
		return "", mapTicketError(err, channelID)
	}

	claimed := "Unclaimed"
	if ticket.IsClaimed() {
		claimed = "<@" + *ticket.ClaimedBy + ">"
		if ticket.ClaimedByAI() {
			claimed = "AI assistant"
		}
	}
	aiState := "engaged"
	switch {
	case !ticket.AIActive:
		aiState = "disabled"
	case ticket.AIStopped:
		aiState = "stopped"
	}

	var users, assistant int
	for _, m := range ticket.Messages {
		if m.Role == domain.RoleAssistant {
			assistant++
		} else {
			users++
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "**Ticket Summary - %s**\n", ticket.Label)
	fmt.Fprintf(&sb, "Type: %s | Status: %s\n", ticket.Type, ticket.Status)
	fmt.Fprintf(&sb, "Created: %s\n", ticket.CreatedAt.UTC().Format("2006-01-02 15:04 UTC"))
	fmt.Fprintf(&sb, "Creator: <@%s> | Claimed by: %s\n", ticket.CreatorID, claimed)
	fmt.Fprintf(&sb, "AI: %s (warnings: %d)\n", aiState, ticket.AIWarningsGiven)
	fmt.Fprintf(&sb, "Initial reason: %s\n", ticket.Reason)
	if len(ticket.Messages) == 0 {
		sb.WriteString("No messages yet.")
		return sb.String(), nil
	}
	fmt.Fprintf(&sb, "Messages: %d (user %d, AI %d)\n", len(ticket.Messages), users, assistant)
	sb.WriteString("Recent conversation:\n")
	for _, m := range ticket.RecentMessages(summaryRecent) {
		role := "User"
		if m.Role == domain.RoleAssistant {
			role = "AI"
		}
		fmt.Fprintf(&sb, "• **%s:** %s\n", role, preview(m.Content, summaryPreview))
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

// GetTicket returns one ticket.
func (s *TicketService) GetTicket(ctx context.Context, channelID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByChannelID(ctx, channelID)
	if err != nil {
		return nil, mapTicketError(err, channelID)
	}
	return ticket, nil
}

// ListTickets lists tickets matching filter.
func (s *TicketService) ListTickets(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

func (s *TicketService) send(ctx context.Context, channelID, text string) {
	if err := s.platform.SendText(ctx, channelID, text); err != nil {
		s.logger.Warn("failed to send ticket message", zap.String("channel_id", channelID), zap.Error(err))
	}
}

func (s *TicketService) deleteChannel(ctx context.Context, channelID, reason string) {
	if err := s.platform.DeleteChannel(ctx, channelID, reason); err != nil {
		s.logger.Warn("failed to delete ticket channel", zap.String("channel_id", channelID), zap.Error(err))
	}
}

func lockTicket(ctx context.Context, locker lock.Locker, key string) (func(), error) {
	unlock, err := locker.Lock(ctx, key)
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("lock %s: %w", key, err))
	}
	return unlock, nil
}

func mapTicketError(err error, channelID string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound("ticket", map[string]any{"channel_id": channelID})
	case errors.Is(err, repository.ErrTicketClosed):
		return apperrors.NewTicketClosed(channelID)
	}
	return apperrors.MapError(err)
}

func publishEvent(ctx context.Context, dispatcher events.Dispatcher, event events.Event) {
	if dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = dispatcher.Publish(ctx, event)
}

func actorOf(p Participant) events.Actor {
	return events.Actor{ID: p.ID, Name: p.Name}
}

func ticketChannelName(ticketType domain.TicketType, username string) string {
	return truncateRunes(fmt.Sprintf("《%s》・%s-%s", ticketType.Emoji(), strings.ToLower(username), ticketType.ChannelSuffix()), maxChannelNameLength)
}

func aiClaimedChannelName(ticket *domain.Ticket) string {
	return truncateRunes(fmt.Sprintf("《🟢》・%s-%s", strings.ToLower(ticket.CreatorName), ticket.Type.ClaimedTitle()), maxChannelNameLength)
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

func preview(body string, max int) string {
	body = strings.TrimSpace(body)
	if utf8.RuneCountInString(body) <= max {
		return body
	}
	return string([]rune(body)[:max]) + "..."
}
