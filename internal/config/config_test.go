package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-bot/internal/domain"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AI_API_KEY", "")
	t.Setenv("HUGGINGFACE_API_KEY", "hf-key")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("TRANSCRIPT_S3_ENDPOINT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "hf-key", cfg.AI.APIKey)
	assert.Equal(t, 400, cfg.AI.MaxTokens)
	assert.Equal(t, 30*time.Second, cfg.AI.Timeout())
	assert.Equal(t, 5*time.Minute, cfg.AI.KnowledgeTTL())
	assert.Equal(t, 1, cfg.AI.MaxWarnings)
	assert.Equal(t, 24*time.Hour, cfg.Tickets.InactivityTimeout())
	assert.Equal(t, time.Hour, cfg.Tickets.SweepInterval())
	assert.Equal(t, 500, cfg.Tickets.TranscriptLimit)
	assert.Equal(t, 30*24*time.Hour, cfg.Memory.Retention())
	assert.Equal(t, 10000, cfg.Memory.MaxEntries)
	assert.Empty(t, cfg.Redis.Addr)
	assert.False(t, cfg.Storage.Enabled())
	assert.Equal(t, "ticket-transcripts", cfg.Storage.Bucket)

	assert.True(t, cfg.Discord.IsAICategory("1436498409153626213"))
	assert.True(t, cfg.Discord.IsAICategory("1436498528544227428"))
	assert.False(t, cfg.Discord.IsAICategory(cfg.Discord.TicketCategories[domain.TicketTypeReport]))
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DISCORD_AI_CATEGORY_IDS", " 1, 2 ,,3")
	t.Setenv("AI_TEMPERATURE", "0.2")
	t.Setenv("AI_MAX_WARNINGS", "not-a-number")
	t.Setenv("TRANSCRIPT_S3_ENDPOINT", "minio:9000")
	t.Setenv("TRANSCRIPT_S3_USE_SSL", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, cfg.Discord.AICategoryIDs)
	assert.InDelta(t, 0.2, cfg.AI.Temperature, 0.0001)
	assert.Equal(t, 1, cfg.AI.MaxWarnings)
	assert.True(t, cfg.Storage.Enabled())
	assert.False(t, cfg.Storage.UseSSL)
}

func TestLoadRejectsBadRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "x")
	_, err := Load()
	assert.Error(t, err)
}

func TestParseOperators(t *testing.T) {
	ops, err := parseOperators("alice:owner:$2a$10$abc; bob:viewer:$2a$10$def")
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, domain.Operator{Username: "alice", Role: domain.OperatorRoleOwner, PasswordHash: "$2a$10$abc"}, ops[0])
	assert.Equal(t, domain.OperatorRoleViewer, ops[1].Role)

	_, err = parseOperators("carol:admin:$2a$10$x")
	assert.Error(t, err)
	_, err = parseOperators("broken")
	assert.Error(t, err)

	ops, err = parseOperators("  ")
	require.NoError(t, err)
	assert.Empty(t, ops)
}
