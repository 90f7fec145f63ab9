package discord

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-bot/internal/domain"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    command
		ok      bool
	}{
		{name: "bare", content: "!claim", want: command{name: "claim"}, ok: true},
		{name: "args", content: "  !Ticket support  my game crashes ", want: command{name: "ticket", args: "support  my game crashes"}, ok: true},
		{name: "not a command", content: "hello !claim"},
		{name: "prefix only", content: "!"},
		{name: "empty", content: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseCommand(tt.content, "!")
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTeach(t *testing.T) {
	trigger, response, ok := parseTeach("store link | Visit <https://store.example> <user>")
	require.True(t, ok)
	assert.Equal(t, "store link", trigger)
	assert.Equal(t, "Visit <https://store.example> <user>", response)

	_, _, ok = parseTeach("no separator here")
	assert.False(t, ok)
	_, _, ok = parseTeach(" | response only")
	assert.False(t, ok)
	_, _, ok = parseTeach("trigger only |")
	assert.False(t, ok)
}

func TestFormatTeaches(t *testing.T) {
	assert.Equal(t, msgNoTeaches, formatTeaches(nil, ""))

	entries := make([]domain.TaughtResponse, 0, 23)
	for i := 1; i <= 23; i++ {
		entries = append(entries, domain.TaughtResponse{
			ID:         int64(i),
			Trigger:    fmt.Sprintf("trigger %d", i),
			Response:   "response",
			UsageCount: i,
		})
	}
	entries[0].Trigger = strings.Repeat("t", 70)
	entries[0].Response = strings.Repeat("r", 120)

	first := formatTeaches(entries, "")
	lines := strings.Split(first, "\n")
	require.Len(t, lines, 11)
	assert.Equal(t, "**Taught responses** (page 1/3, 23 total)", lines[0])
	assert.Equal(t, "#1 `"+strings.Repeat("t", 47)+"...` → "+strings.Repeat("r", 77)+"... (used 1)", lines[1])

	last := formatTeaches(entries, "9")
	lines = strings.Split(last, "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "**Taught responses** (page 3/3, 23 total)", lines[0])
	assert.Equal(t, "#21 `trigger 21` → response (used 21)", lines[1])

	assert.Contains(t, formatTeaches(entries, "abc"), "page 1/3")
}
