package service

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/support-bot/internal/domain"
)

func TestBuildTranscript(t *testing.T) {
	ticket := &domain.Ticket{
		ChannelID:   "123",
		ChannelName: "《🔵》・alice-support",
		Type:        domain.TicketTypeSupport,
		CreatorID:   "u1",
		CreatedAt:   time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC),
	}
	history := []domain.ChannelMessage{
		{AuthorName: "Alice", Content: "hi", CreatedAt: time.Date(2024, 5, 1, 9, 31, 0, 0, time.UTC)},
		{
			AuthorName:  "SupportBot",
			Content:     "",
			CreatedAt:   time.Date(2024, 5, 1, 9, 32, 5, 0, time.UTC),
			Embeds:      []string{"Rules", ""},
			Attachments: []domain.AttachmentReference{{FileName: "log.txt", URL: "https://cdn.example/log.txt"}},
		},
	}

	out := BuildTranscript(ticket, Participant{ID: "staff-1", Name: "Bob"}, "done", history, nil)
	lines := strings.Split(out, "\n")

	assert.Equal(t, "Ticket Transcript - 《🔵》・alice-support", lines[0])
	assert.Equal(t, "Ticket ID: 123", lines[1])
	assert.Equal(t, "Type: Support Ticket", lines[2])
	assert.Equal(t, "Creator: <@u1>", lines[3])
	assert.Equal(t, "Created: 2024-05-01T09:30:00Z", lines[4])
	assert.Equal(t, "Closed by: Bob (staff-1)", lines[5])
	assert.Equal(t, "Close Reason: done", lines[6])
	assert.Equal(t, strings.Repeat("=", 80), lines[7])
	assert.Contains(t, out, "[2024-05-01 09:31:00] Alice: hi\n")
	assert.Contains(t, out, "  [Embed: Rules]\n  [Embed: No title]\n")
	assert.Contains(t, out, "  [Attachment: log.txt - https://cdn.example/log.txt]\n")
}

func TestBuildTranscriptFetchError(t *testing.T) {
	ticket := &domain.Ticket{ChannelID: "123", Type: domain.TicketTypeReport}
	out := BuildTranscript(ticket, Participant{ID: "bot", Name: "SupportBot"}, "x", nil, errors.New("forbidden"))

	assert.Contains(t, out, "Ticket Transcript - 123\n")
	assert.Contains(t, out, "Type: User Report\n")
	assert.Contains(t, out, "Created: Unknown\n")
	assert.True(t, strings.HasSuffix(out, "[Error fetching message history]\n"))
}
