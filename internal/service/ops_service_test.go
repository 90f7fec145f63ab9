package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/repository"
)

func TestOpsServiceSwitchAndStatus(t *testing.T) {
	ctx := context.Background()
	tickets := repository.NewInMemoryTicketRepository()
	ops := NewOpsService(repository.NewInMemorySettingsRepository(), tickets, true, nil)

	assert.True(t, ops.AIOpsEnabled(ctx))
	require.NoError(t, ops.SetAIOps(ctx, false, "op"))
	assert.False(t, ops.AIOpsEnabled(ctx))

	ai := domain.AIClaimer
	seed := []*domain.Ticket{
		{ChannelID: "a", GuildID: "g", CreatorID: "u1", Type: domain.TicketTypeSupport, Status: domain.TicketStatusClaimed, ClaimedBy: &ai, AIActive: true},
		{ChannelID: "b", GuildID: "g", CreatorID: "u2", Type: domain.TicketTypeSupport, Status: domain.TicketStatusClaimed, ClaimedBy: &ai, AIActive: true, AIStopped: true},
		{ChannelID: "c", GuildID: "g", CreatorID: "u3", Type: domain.TicketTypeSupport, Status: domain.TicketStatusUnclaimed},
		{ChannelID: "e", GuildID: "g", CreatorID: "u5", Type: domain.TicketTypeSupport, Status: domain.TicketStatusClaimed, ClaimedBy: &ai},
		{ChannelID: "d", GuildID: "g", CreatorID: "u4", Type: domain.TicketTypeSupport, Status: domain.TicketStatusClosed},
	}
	for _, tk := range seed {
		require.NoError(t, tickets.Create(ctx, tk))
	}

	status, err := ops.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, AIStatus{Enabled: false, OpenTickets: 4, AIClaimed: 3, Stopped: 1, Escalated: 1}, *status)
}

func TestMemoryServicePruneAndStats(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	svc := NewMemoryService(repository.NewInMemoryMemoryRepository(), 3, 48*time.Hour, nil)
	svc.now = func() time.Time { return now }

	for i, age := range []time.Duration{96 * time.Hour, 72 * time.Hour, time.Hour, time.Minute} {
		svc.Record(ctx, domain.MemoryEntry{ChannelID: "c", UserID: "u", Content: string(rune('a' + i)), CreatedAt: now.Add(-age)})
	}

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)

	removed, err := svc.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	stats, err = svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	require.NotNil(t, stats.Oldest)
	assert.Equal(t, now.Add(-time.Hour), *stats.Oldest)
}
