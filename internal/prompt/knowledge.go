package prompt

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-bot/internal/domain"
)

// DefaultKnowledgeTTL bounds how often the knowledge provider is consulted.
const DefaultKnowledgeTTL = 5 * time.Minute

// KnowledgeProvider lists the most recently taught responses, newest first.
type KnowledgeProvider interface {
	ListRecent(ctx context.Context, limit int) ([]domain.TaughtResponse, error)
}

// KnowledgeCache serves the knowledge excerpt and refreshes it at most once per TTL.
// Writes to the provider are not observed until the TTL expires or Invalidate is called.
type KnowledgeCache struct {
	provider KnowledgeProvider
	ttl      time.Duration
	logger   *zap.Logger
	now      func() time.Time

	mu        sync.Mutex
	entries   []domain.TaughtResponse
	fetchedAt time.Time
	loaded    bool
}

// NewKnowledgeCache constructs a cache. A non-positive ttl falls back to DefaultKnowledgeTTL.
func NewKnowledgeCache(provider KnowledgeProvider, ttl time.Duration, logger *zap.Logger) *KnowledgeCache {
	if ttl <= 0 {
		ttl = DefaultKnowledgeTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KnowledgeCache{provider: provider, ttl: ttl, logger: logger, now: time.Now}
}

// Entries returns the cached excerpt, refreshing it when stale.
// A failed refresh keeps serving the previous excerpt.
func (c *KnowledgeCache) Entries(ctx context.Context) []domain.TaughtResponse {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.loaded && now.Sub(c.fetchedAt) < c.ttl {
		return c.entries
	}

	entries, err := c.provider.ListRecent(ctx, maxKnowledgeEntries)
	c.fetchedAt = now
	c.loaded = true
	if err != nil {
		c.logger.Warn("knowledge refresh failed", zap.Error(err))
		return c.entries
	}
	c.entries = entries
	return c.entries
}

// Invalidate forces the next Entries call to hit the provider.
func (c *KnowledgeCache) Invalidate() {
	c.mu.Lock()
	c.loaded = false
	c.mu.Unlock()
}

// Composer joins the builder with the knowledge cache for a ticket.
type Composer struct {
	builder   *Builder
	knowledge *KnowledgeCache
}

// NewComposer constructs a Composer. knowledge may be nil.
func NewComposer(builder *Builder, knowledge *KnowledgeCache) *Composer {
	return &Composer{builder: builder, knowledge: knowledge}
}

// SystemPrompt builds the prompt for the ticket using the current knowledge excerpt.
func (c *Composer) SystemPrompt(ctx context.Context, ticket *domain.Ticket) string {
	var knowledge []domain.TaughtResponse
	if c.knowledge != nil {
		knowledge = c.knowledge.Entries(ctx)
	}
	return c.builder.Build(ticket.Type, ticket.Label, ticket.Reason, knowledge)
}
