package prompt

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-bot/internal/domain"
)

func testBuilder() *Builder {
	return NewBuilder(Settings{
		CommunityName: "Test Server",
		AICategoryIDs: map[domain.TicketType]string{
			domain.TicketTypeSupport:        "10",
			domain.TicketTypeContentCreator: "20",
			domain.TicketTypeAppeal:         "30",
		},
		TicketManagerRoleID: "900",
		AppealManagerRoleID: "901",
		OwnerIDs:            []string{"1", "2"},
	})
}

func TestBuildSectionOrder(t *testing.T) {
	knowledge := []domain.TaughtResponse{{Trigger: "release date", Response: "Sometime next month."}}

	for _, tt := range []domain.TicketType{domain.TicketTypeSupport, domain.TicketTypeContentCreator, domain.TicketTypeReport, domain.TicketTypeAppeal} {
		t.Run(string(tt), func(t *testing.T) {
			out := testBuilder().Build(tt, tt.Label(), "My payment didn't go through.", knowledge)

			rules := strings.Index(out, "CRITICAL BEHAVIOR RULES")
			know := strings.Index(out, knowledgeHeader)
			block := strings.Index(out, typeHeader)
			reminder := strings.Index(out, reminderPrefix)

			require.GreaterOrEqual(t, rules, 0)
			require.Greater(t, know, rules)
			require.Greater(t, block, know)
			require.Greater(t, reminder, block)
			assert.Contains(t, out[reminder:], "My payment didn't go through.")
			assert.Contains(t, out[reminder:], tt.Label())
		})
	}
}

func TestBuildWithoutKnowledgeOmitsExcerpt(t *testing.T) {
	out := testBuilder().Build(domain.TicketTypeSupport, "", "help", nil)
	assert.NotContains(t, out, knowledgeHeader)
	assert.Less(t, strings.Index(out, "CRITICAL BEHAVIOR RULES"), strings.Index(out, typeHeader))
}

func TestBuildUnknownTypeFallsBackToSupport(t *testing.T) {
	out := testBuilder().Build(domain.TicketType("bug"), "Bug Report", "crash", nil)
	assert.Contains(t, out, "TICKET TYPE: Support Ticket")
	assert.Contains(t, out, "If it's a game question")
}

func TestBuildKnowledgeIsTruncated(t *testing.T) {
	long := strings.Repeat("a", 150)
	entries := make([]domain.TaughtResponse, 0, 12)
	for i := 0; i < 12; i++ {
		entries = append(entries, domain.TaughtResponse{Trigger: "t" + string(rune('a'+i)), Response: long})
	}

	out := testBuilder().Build(domain.TicketTypeSupport, "", "help", entries)

	assert.Equal(t, 10, strings.Count(out, "- When asked about"))
	assert.NotContains(t, out, long)
	assert.Contains(t, out, strings.Repeat("a", 100)+"...")
	assert.Contains(t, out, "NEVER copy the taught responses word-for-word")
}

func TestBuildContentCreatorListsOwners(t *testing.T) {
	out := testBuilder().Build(domain.TicketTypeContentCreator, "", "partnership", nil)
	assert.Contains(t, out, "<@1>")
	assert.Contains(t, out, "<@2>")
}

type stubProvider struct {
	calls   int
	entries []domain.TaughtResponse
	err     error
}

func (s *stubProvider) ListRecent(_ context.Context, _ int) ([]domain.TaughtResponse, error) {
	s.calls++
	return s.entries, s.err
}

func TestKnowledgeCacheRefreshesAfterTTL(t *testing.T) {
	provider := &stubProvider{entries: []domain.TaughtResponse{{Trigger: "a", Response: "b"}}}
	cache := NewKnowledgeCache(provider, 5*time.Minute, nil)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	ctx := context.Background()
	require.Len(t, cache.Entries(ctx), 1)
	provider.entries = append(provider.entries, domain.TaughtResponse{Trigger: "c", Response: "d"})

	now = now.Add(4 * time.Minute)
	assert.Len(t, cache.Entries(ctx), 1)
	assert.Equal(t, 1, provider.calls)

	now = now.Add(time.Minute)
	assert.Len(t, cache.Entries(ctx), 2)
	assert.Equal(t, 2, provider.calls)

	cache.Invalidate()
	cache.Entries(ctx)
	assert.Equal(t, 3, provider.calls)
}

func TestKnowledgeCacheKeepsPreviousOnError(t *testing.T) {
	provider := &stubProvider{entries: []domain.TaughtResponse{{Trigger: "a", Response: "b"}}}
	cache := NewKnowledgeCache(provider, time.Minute, nil)
	now := time.Now()
	cache.now = func() time.Time { return now }

	ctx := context.Background()
	require.Len(t, cache.Entries(ctx), 1)

	provider.err = errors.New("db down")
	provider.entries = nil
	now = now.Add(2 * time.Minute)
	assert.Len(t, cache.Entries(ctx), 1)
}

func TestComposerUsesTicketFields(t *testing.T) {
	composer := NewComposer(testBuilder(), nil)
	out := composer.SystemPrompt(context.Background(), &domain.Ticket{
		Type:   domain.TicketTypeAppeal,
		Label:  "Warning Appeal",
		Reason: "wrongly warned",
	})
	assert.Contains(t, out, "TICKET TYPE: Warning Appeal")
	assert.Contains(t, out, ContextReminder("Warning Appeal", "wrongly warned"))
}
