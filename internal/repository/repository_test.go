package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-bot/internal/domain"
)

func newOpenTicket(channelID string, ticketType domain.TicketType) *domain.Ticket {
	return &domain.Ticket{
		ChannelID: channelID,
		GuildID:   "guild",
		Type:      ticketType,
		Label:     ticketType.Label(),
		CreatorID: "creator",
		Status:    domain.TicketStatusUnclaimed,
		AIActive:  true,
	}
}

func TestTicketRepositoryOneOpenTicketPerType(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryTicketRepository()

	require.NoError(t, repo.Create(ctx, newOpenTicket("c1", domain.TicketTypeSupport)))
	err := repo.Create(ctx, newOpenTicket("c2", domain.TicketTypeSupport))
	assert.ErrorIs(t, err, ErrOpenTicketExists)

	require.NoError(t, repo.Create(ctx, newOpenTicket("c3", domain.TicketTypeAppeal)))

	found, err := repo.FindOpen(ctx, "guild", "creator", domain.TicketTypeSupport)
	require.NoError(t, err)
	assert.Equal(t, "c1", found.ChannelID)
}

func TestTicketRepositoryClosingFreesSlotAndFreezesRecord(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryTicketRepository()
	require.NoError(t, repo.Create(ctx, newOpenTicket("c1", domain.TicketTypeSupport)))

	ticket, err := repo.GetByChannelID(ctx, "c1")
	require.NoError(t, err)
	now := time.Now().UTC()
	ticket.Status = domain.TicketStatusClosed
	ticket.ClosedAt = &now
	require.NoError(t, repo.Update(ctx, ticket))

	ticket.Reason = "changed after close"
	assert.ErrorIs(t, repo.Update(ctx, ticket), ErrTicketClosed)

	_, err = repo.FindOpen(ctx, "guild", "creator", domain.TicketTypeSupport)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, repo.Create(ctx, newOpenTicket("c2", domain.TicketTypeSupport)))

	open, err := repo.ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "c2", open[0].ChannelID)
}

func TestTicketRepositoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryTicketRepository()
	require.NoError(t, repo.Create(ctx, newOpenTicket("c1", domain.TicketTypeSupport)))

	ticket, err := repo.GetByChannelID(ctx, "c1")
	require.NoError(t, err)
	ticket.AppendMessage(domain.RoleUser, "creator", "hello", time.Now())

	stored, err := repo.GetByChannelID(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, stored.Messages)
}

func TestTeachRepositoryUpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryTeachRepository()

	first, created, err := repo.Upsert(ctx, "how to join", "Click play.", "op")
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := repo.Upsert(ctx, "how to join", "Click play.", "op")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	_, _, err = repo.Upsert(ctx, "how to join", "Use the launcher.", "op")
	require.NoError(t, err)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Use the launcher.", all[0].Response)
}

func TestTeachRepositoryDeleteAndUsage(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryTeachRepository()
	entry, _, err := repo.Upsert(ctx, "rules", "Read #rules.", "op")
	require.NoError(t, err)

	require.NoError(t, repo.IncrementUsage(ctx, entry.ID))
	got, err := repo.GetByTrigger(ctx, "rules")
	require.NoError(t, err)
	assert.Equal(t, 1, got.UsageCount)

	require.NoError(t, repo.DeleteByTrigger(ctx, "rules"))
	assert.ErrorIs(t, repo.DeleteByID(ctx, entry.ID), ErrNotFound)
	_, err = repo.GetByID(ctx, entry.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRepositoryCapAndPrune(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryMemoryRepository()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Append(ctx, &domain.MemoryEntry{
			UserID:    "u",
			Content:   "msg",
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}, 3))
	}

	stats, err := repo.Stats(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, base.Add(2*time.Hour), *stats.Oldest)
	require.Len(t, stats.Recent, 2)
	assert.Equal(t, base.Add(4*time.Hour), stats.Recent[0].CreatedAt)

	removed, err := repo.PruneOlderThan(ctx, base.Add(4*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)
}

func TestSettingsRepositoryFallback(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemorySettingsRepository()

	enabled, err := repo.AIOpsEnabled(ctx, true)
	require.NoError(t, err)
	assert.True(t, enabled)

	require.NoError(t, repo.SetAIOpsEnabled(ctx, false))
	enabled, err = repo.AIOpsEnabled(ctx, true)
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestParseTimestampLayouts(t *testing.T) {
	cases := map[string]time.Time{
		"2024-05-01T10:20:30Z":       time.Date(2024, 5, 1, 10, 20, 30, 0, time.UTC),
		"2024-05-01T10:20:30.123456": time.Date(2024, 5, 1, 10, 20, 30, 123456000, time.UTC),
		"2024-05-01 10:20:30":        time.Date(2024, 5, 1, 10, 20, 30, 0, time.UTC),
		"not a time":                 {},
		"":                           {},
	}
	for raw, want := range cases {
		assert.True(t, want.Equal(parseTimestamp(raw)), raw)
	}
}

func TestDecodeMessagesKeepsUnparsableTimestampsAsZero(t *testing.T) {
	raw := []byte(`[{"role":"user","content":"hi","timestamp":"yesterday"},{"role":"assistant","content":"hello","timestamp":"2024-05-01T10:20:30Z"}]`)
	msgs, err := decodeMessages(raw)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.True(t, msgs[0].Timestamp.IsZero())
	assert.Equal(t, domain.RoleAssistant, msgs[1].Role)
}
