package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/support-bot/internal/domain"
)

const (
	transcriptTimeLayout = "2006-01-02 15:04:05"
	transcriptSeparator  = 80
)

// Participant identifies a person (or the assistant) acting on a ticket.
type Participant struct {
	ID   string
	Name string
}

// BuildTranscript renders the plain-text export of a ticket channel.
// A non-nil fetchErr replaces the message section with an error marker.
func BuildTranscript(ticket *domain.Ticket, closer Participant, reason string, history []domain.ChannelMessage, fetchErr error) string {
	var sb strings.Builder

	channelName := ticket.ChannelName
	if channelName == "" {
		channelName = ticket.ChannelID
	}
	label := ticket.Label
	if label == "" {
		label = ticket.Type.Label()
	}
	created := "Unknown"
	if !ticket.CreatedAt.IsZero() {
		created = ticket.CreatedAt.UTC().Format(time.RFC3339)
	}

	fmt.Fprintf(&sb, "Ticket Transcript - %s\n", channelName)
	fmt.Fprintf(&sb, "Ticket ID: %s\n", ticket.ChannelID)
	fmt.Fprintf(&sb, "Type: %s\n", label)
	fmt.Fprintf(&sb, "Creator: <@%s>\n", ticket.CreatorID)
	fmt.Fprintf(&sb, "Created: %s\n", created)
	fmt.Fprintf(&sb, "Closed by: %s (%s)\n", closer.Name, closer.ID)
	fmt.Fprintf(&sb, "Close Reason: %s\n", reason)
	sb.WriteString(strings.Repeat("=", transcriptSeparator))
	sb.WriteString("\n\n")

	if fetchErr != nil {
		sb.WriteString("[Error fetching message history]\n")
		return sb.String()
	}

	for _, msg := range history {
		fmt.Fprintf(&sb, "[%s] %s: %s\n", msg.CreatedAt.UTC().Format(transcriptTimeLayout), msg.AuthorName, msg.Content)
		for _, title := range msg.Embeds {
			if title == "" {
				title = "No title"
			}
			fmt.Fprintf(&sb, "  [Embed: %s]\n", title)
		}
		for _, att := range msg.Attachments {
			fmt.Fprintf(&sb, "  [Attachment: %s - %s]\n", att.FileName, att.URL)
		}
	}
	return sb.String()
}

// TranscriptFilename names the transcript file delivered to the logs channel.
func TranscriptFilename(channelID string) string {
	return "ticket-" + channelID + "-transcript.txt"
}

// TranscriptArchiveKey names the archived object, grouped by close date.
func TranscriptArchiveKey(channelID string, closedAt time.Time) string {
	return "transcripts/" + closedAt.UTC().Format("2006/01/02") + "/" + TranscriptFilename(channelID)
}
