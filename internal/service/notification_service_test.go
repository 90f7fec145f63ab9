package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/events"
)

func TestNotificationServicePostsClosureSummary(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher(nil)
	platform := newFakePlatform()
	NewNotificationService(dispatcher, platform, nil, logsChannel).RegisterHandlers()

	claimer := "staff-1"
	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{
		Type:      events.EventTicketClosed,
		ChannelID: "chan-1",
		Actor:     events.Actor{ID: "staff-1", Name: "Bob"},
		Payload: events.TicketClosedPayload{
			Type:         domain.TicketTypeSupport,
			Label:        "Support Ticket",
			CreatorID:    "u1",
			ClaimedBy:    &claimer,
			Reason:       "resolved",
			Trigger:      CloseTriggerCommand,
			MessageCount: 4,
		},
	}))

	texts := platform.textsIn(logsChannel)
	require.Len(t, texts, 1)
	assert.Equal(t,
		"**Ticket Closed** - Support Ticket (chan-1)\n"+
			"Creator: <@u1> | Claimed by: <@staff-1> | Closed by: Bob\n"+
			"Reason: resolved\n"+
			"Messages: 4 | Trigger: command | Transcript unavailable",
		texts[0])
}

func TestNotificationServiceEscalation(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher(nil)
	platform := newFakePlatform()
	NewNotificationService(dispatcher, platform, nil, logsChannel).RegisterHandlers()

	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{
		Type:      events.EventAIEscalated,
		ChannelID: "chan-9",
		Actor:     events.Actor{ID: "u1"},
		Payload:   events.AIEscalatedPayload{WarningsGiven: 2},
	}))

	texts := platform.textsIn(logsChannel)
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "<#chan-9>")
	assert.Contains(t, texts[0], "<@u1>")
}

func TestNotificationServiceWithoutLogsChannel(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher(nil)
	platform := newFakePlatform()
	NewNotificationService(dispatcher, platform, nil, "").RegisterHandlers()

	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{
		Type:    events.EventTicketClosed,
		Payload: events.TicketClosedPayload{Label: "User Report"},
	}))
	assert.Empty(t, platform.texts)
}

func TestClosureSummaryAIClaim(t *testing.T) {
	ai := AIParticipant.ID
	out := closureSummary(
		events.Event{ChannelID: "c", Actor: events.Actor{ID: "bot"}},
		events.TicketClosedPayload{Label: "Support Ticket", CreatorID: "u1", ClaimedBy: &ai, TranscriptSent: true, Trigger: CloseTriggerInactivity},
	)
	assert.Contains(t, out, "Claimed by: AI | Closed by: bot")
	assert.NotContains(t, out, "Transcript unavailable")
}
