package service

import (
	"context"

	"github.com/spec-kit/support-bot/internal/domain"
)

// ChannelSpec describes a private ticket channel to create.
type ChannelSpec struct {
	GuildID      string
	CategoryID   string
	Name         string
	Topic        string
	CreatorID    string
	StaffRoleIDs []string
}

// Platform is the slice of the chat platform the ticket workflows need.
type Platform interface {
	SendText(ctx context.Context, channelID, text string) error
	SendFile(ctx context.Context, channelID, content, filename string, data []byte) error
	CreateTicketChannel(ctx context.Context, spec ChannelSpec) (string, error)
	RenameChannel(ctx context.Context, channelID, name, topic string) error
	DeleteChannel(ctx context.Context, channelID, reason string) error
	// FetchHistory returns up to limit messages, oldest first.
	FetchHistory(ctx context.Context, channelID string, limit int) ([]domain.ChannelMessage, error)
}

// TranscriptArchive keeps a durable copy of closed ticket transcripts.
type TranscriptArchive interface {
	// Store saves data under key and returns where it was written.
	Store(ctx context.Context, key string, data []byte) (string, error)
}
