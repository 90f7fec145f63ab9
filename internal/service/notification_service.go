package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/support-bot/internal/events"
)

// Notifier posts text to a channel.
type Notifier interface {
	SendText(ctx context.Context, channelID, text string) error
}

// NotificationService handles emitting notifications for domain events.
type NotificationService struct {
	dispatcher    events.Dispatcher
	notifier      Notifier
	logger        *zap.Logger
	logsChannelID string
}

// NewNotificationService creates the service. An empty logsChannelID only logs events.
func NewNotificationService(dispatcher events.Dispatcher, notifier Notifier, logger *zap.Logger, logsChannelID string) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher:    dispatcher,
		notifier:      notifier,
		logger:        logger,
		logsChannelID: logsChannelID,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.logEvent)
	n.dispatcher.Subscribe(events.EventTicketClaimed, n.logEvent)
	n.dispatcher.Subscribe(events.EventTicketUnclaimed, n.logEvent)
	n.dispatcher.Subscribe(events.EventAIEscalated, n.handleEscalated)
	n.dispatcher.Subscribe(events.EventTicketClosed, n.handleTicketClosed)
}

func (n *NotificationService) logEvent(_ context.Context, event events.Event) error {
	n.logger.Info(string(event.Type),
		zap.String("channel_id", event.ChannelID),
		zap.String("actor_id", event.Actor.ID),
		zap.Any("payload", event.Payload),
	)
	return nil
}

func (n *NotificationService) handleEscalated(ctx context.Context, event events.Event) error {
	_ = n.logEvent(ctx, event)
	return n.post(ctx, fmt.Sprintf("⚠️ AI escalated ticket <#%s> to staff after repeated disrespect from <@%s>.", event.ChannelID, event.Actor.ID))
}

func (n *NotificationService) handleTicketClosed(ctx context.Context, event events.Event) error {
	_ = n.logEvent(ctx, event)
	payload, ok := event.Payload.(events.TicketClosedPayload)
	if !ok {
		return nil
	}
	return n.post(ctx, closureSummary(event, payload))
}

func (n *NotificationService) post(ctx context.Context, text string) error {
	if strings.TrimSpace(n.logsChannelID) == "" || n.notifier == nil {
		return nil
	}
	return n.notifier.SendText(ctx, n.logsChannelID, text)
}

func closureSummary(event events.Event, payload events.TicketClosedPayload) string {
	claimed := "Unclaimed"
	if payload.ClaimedBy != nil {
		claimed = *payload.ClaimedBy
		if claimed != AIParticipant.ID {
			claimed = "<@" + claimed + ">"
		}
	}
	closer := event.Actor.Name
	if closer == "" {
		closer = event.Actor.ID
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "**Ticket Closed** - %s (%s)\n", payload.Label, event.ChannelID)
	fmt.Fprintf(&sb, "Creator: <@%s> | Claimed by: %s | Closed by: %s\n", payload.CreatorID, claimed, closer)
	fmt.Fprintf(&sb, "Reason: %s\n", payload.Reason)
	fmt.Fprintf(&sb, "Messages: %d | Trigger: %s", payload.MessageCount, payload.Trigger)
	if !payload.TranscriptSent {
		sb.WriteString(" | Transcript unavailable")
	}
	return sb.String()
}
