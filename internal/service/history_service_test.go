package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/events"
	"github.com/spec-kit/support-bot/internal/repository"
)

func TestHistoryRecordsLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	history := NewHistoryService(repository.NewInMemoryTicketHistoryRepository(), nil)
	history.RegisterHandlers(f.svc.dispatcher)

	ticket := f.create(t, domain.TicketTypeSupport)
	_, err := f.svc.CloseTicket(ctx, CloseInput{
		ChannelID: ticket.ChannelID,
		Closer:    Participant{ID: "u1", Name: "Alice"},
		Reason:    "fixed",
	})
	require.NoError(t, err)

	entries, err := history.List(ctx, ticket.ChannelID)
	require.NoError(t, err)
	types := make([]string, 0, len(entries))
	for _, e := range entries {
		types = append(types, e.EventType)
	}
	assert.Equal(t, []string{
		string(events.EventTicketCreated),
		string(events.EventTicketClaimed),
		string(events.EventTicketClosed),
	}, types)

	assert.Equal(t, "AI", entries[1].ActorID)

	var closed events.TicketClosedPayload
	require.NoError(t, json.Unmarshal(entries[2].Payload, &closed))
	assert.Equal(t, "fixed", closed.Reason)
	assert.Equal(t, CloseTriggerCommand, closed.Trigger)
}

func TestHistoryIgnoresDuplicateEvents(t *testing.T) {
	ctx := context.Background()
	dispatcher := events.NewInMemoryDispatcher(nil)
	history := NewHistoryService(repository.NewInMemoryTicketHistoryRepository(), nil)
	history.RegisterHandlers(dispatcher)

	event := events.Event{ID: "evt-1", Type: events.EventTicketClaimed, ChannelID: "chan", Actor: events.Actor{ID: "staff"}}
	require.NoError(t, dispatcher.Publish(ctx, event))
	require.NoError(t, dispatcher.Publish(ctx, event))

	entries, err := history.List(ctx, "chan")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "staff", entries[0].ActorID)
	assert.JSONEq(t, `null`, string(entries[0].Payload))
}
