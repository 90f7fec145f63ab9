package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/events"
	"github.com/spec-kit/support-bot/internal/lock"
	"github.com/spec-kit/support-bot/internal/repository"
	apperrors "github.com/spec-kit/support-bot/pkg/util"
)

// AIParticipant is the assistant acting as a claimer.
var AIParticipant = Participant{ID: domain.AIClaimer, Name: "AI"}

// AssignmentService handles ticket claim operations.
type AssignmentService struct {
	tickets    repository.TicketRepository
	platform   Platform
	locker     lock.Locker
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// AssignmentDependencies bundles collaborators.
type AssignmentDependencies struct {
	TicketRepo repository.TicketRepository
	Platform   Platform
	Locker     lock.Locker
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		tickets:    deps.TicketRepo,
		platform:   deps.Platform,
		locker:     deps.Locker,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Claim assigns the ticket to claimer. Claiming a claimed ticket is rejected.
func (s *AssignmentService) Claim(ctx context.Context, channelID string, claimer Participant) (*domain.Ticket, error) {
	unlock, err := lockTicket(ctx, s.locker, channelID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ticket, err := s.tickets.GetByChannelID(ctx, channelID)
	if err != nil {
		return nil, mapTicketError(err, channelID)
	}
	if err := s.claimLocked(ctx, ticket, claimer); err != nil {
		return nil, err
	}
	if claimer.ID != domain.AIClaimer {
		s.notify(ctx, channelID, fmt.Sprintf("This ticket has been claimed by <@%s>", claimer.ID))
	}
	return ticket, nil
}

// claimLocked requires the caller to hold the ticket lock.
func (s *AssignmentService) claimLocked(ctx context.Context, ticket *domain.Ticket, claimer Participant) error {
	if !ticket.IsOpen() {
		return apperrors.NewTicketClosed(ticket.ChannelID)
	}
	if ticket.IsClaimed() {
		return apperrors.NewAlreadyClaimed(*ticket.ClaimedBy)
	}

	now := s.now()
	claimedBy := claimer.ID
	ticket.ClaimedBy = &claimedBy
	ticket.ClaimedAt = &now
	ticket.Status = domain.TicketStatusClaimed

	topic := "Ticket claimed by " + claimer.Name
	if claimer.ID == domain.AIClaimer {
		ticket.ChannelName = aiClaimedChannelName(ticket)
		topic = fmt.Sprintf("Ticket by %s | Status: CLAIMED (AI)", ticket.CreatorName)
	}
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return mapTicketError(err, ticket.ChannelID)
	}
	if err := s.platform.RenameChannel(ctx, ticket.ChannelID, ticket.ChannelName, topic); err != nil {
		s.logger.Warn("failed to update claimed channel",
			zap.String("channel_id", ticket.ChannelID),
			zap.Error(err),
		)
	}

	publishEvent(ctx, s.dispatcher, events.Event{
		Type:      events.EventTicketClaimed,
		ChannelID: ticket.ChannelID,
		Actor:     actorOf(claimer),
		Payload:   events.TicketClaimedPayload{ClaimedBy: claimer.ID},
	})
	return nil
}

// Unclaim clears the claimer and returns the ticket to the unclaimed queue.
func (s *AssignmentService) Unclaim(ctx context.Context, channelID string, actor Participant) (*domain.Ticket, error) {
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
	if !ticket.IsClaimed() {
		return nil, apperrors.NewNotClaimed()
	}

	previous := *ticket.ClaimedBy
	if previous == domain.AIClaimer {
		ticket.ChannelName = ticketChannelName(ticket.Type, ticket.CreatorName)
	}
	ticket.ClaimedBy = nil
	ticket.ClaimedAt = nil
	ticket.Status = domain.TicketStatusUnclaimed
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, mapTicketError(err, channelID)
	}
	if err := s.platform.RenameChannel(ctx, channelID, ticket.ChannelName, "Ticket - Status: UNCLAIMED"); err != nil {
		s.logger.Warn("failed to update unclaimed channel",
			zap.String("channel_id", channelID),
			zap.Error(err),
		)
	}
	s.notify(ctx, channelID, fmt.Sprintf("<@%s> unclaimed this ticket.", actor.ID))

	publishEvent(ctx, s.dispatcher, events.Event{
		Type:      events.EventTicketUnclaimed,
		ChannelID: channelID,
		Actor:     actorOf(actor),
		Payload:   events.TicketUnclaimedPayload{PreviousClaimer: previous},
	})
	return ticket, nil
}

func (s *AssignmentService) notify(ctx context.Context, channelID, text string) {
	if err := s.platform.SendText(ctx, channelID, text); err != nil {
		s.logger.Warn("failed to post claim notice", zap.String("channel_id", channelID), zap.Error(err))
	}
}
