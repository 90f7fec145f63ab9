package discord

import (
	"bytes"
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/service"
)

const (
	historyPageSize = 100
	// snowflake preceding every message, used to page from the start of a channel
	oldestMessageID = "0"
)

const (
	creatorAllow = discordgo.PermissionViewChannel | discordgo.PermissionSendMessages |
		discordgo.PermissionReadMessageHistory | discordgo.PermissionAttachFiles
	staffAllow = creatorAllow | discordgo.PermissionManageMessages
	botAllow   = staffAllow | discordgo.PermissionManageChannels
)

// channelAPI is the part of *discordgo.Session the platform needs.
type channelAPI interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	GuildChannelCreateComplex(guildID string, data discordgo.GuildChannelCreateData, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelEditComplex(channelID string, data *discordgo.ChannelEdit, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelDelete(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
}

// Platform implements service.Platform on the Discord REST API.
type Platform struct {
	api    channelAPI
	botID  func() string
	logger *zap.Logger
}

var _ service.Platform = (*Platform)(nil)

// NewPlatform wraps a session. botID is resolved lazily because the gateway fills it on connect.
func NewPlatform(api channelAPI, botID func() string, logger *zap.Logger) *Platform {
	if logger == nil {
		logger = zap.NewNop()
	}
	if botID == nil {
		botID = func() string { return "" }
	}
	return &Platform{api: api, botID: botID, logger: logger}
}

// BotIDFromSession prefers the configured id and falls back to the connected user.
func BotIDFromSession(session *discordgo.Session, configured string) func() string {
	return func() string {
		if configured != "" {
			return configured
		}
		if session != nil && session.State != nil && session.State.User != nil {
			return session.State.User.ID
		}
		return ""
	}
}

// allowedMentions never lets the bot ping @everyone or @here.
func allowedMentions() *discordgo.MessageAllowedMentions {
	return &discordgo.MessageAllowedMentions{
		Parse: []discordgo.AllowedMentionType{
			discordgo.AllowedMentionTypeUsers,
			discordgo.AllowedMentionTypeRoles,
		},
	}
}

func (p *Platform) SendText(ctx context.Context, channelID, text string) error {
	_, err := p.api.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content:         text,
		AllowedMentions: allowedMentions(),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("send message to %s: %w", channelID, err)
	}
	return nil
}

func (p *Platform) SendFile(ctx context.Context, channelID, content, filename string, data []byte) error {
	_, err := p.api.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content:         content,
		AllowedMentions: allowedMentions(),
		Files: []*discordgo.File{{
			Name:        filename,
			ContentType: "text/plain",
			Reader:      bytes.NewReader(data),
		}},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("send file to %s: %w", channelID, err)
	}
	return nil
}

// CreateTicketChannel creates a private text channel visible to the creator, staff and the bot.
func (p *Platform) CreateTicketChannel(ctx context.Context, spec service.ChannelSpec) (string, error) {
	overwrites := []*discordgo.PermissionOverwrite{
		{ID: spec.GuildID, Type: discordgo.PermissionOverwriteTypeRole, Deny: discordgo.PermissionViewChannel},
		{ID: spec.CreatorID, Type: discordgo.PermissionOverwriteTypeMember, Allow: creatorAllow},
	}
	if botID := p.botID(); botID != "" {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{ID: botID, Type: discordgo.PermissionOverwriteTypeMember, Allow: botAllow})
	}
	for _, roleID := range spec.StaffRoleIDs {
		if roleID == "" {
			continue
		}
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{ID: roleID, Type: discordgo.PermissionOverwriteTypeRole, Allow: staffAllow})
	}

	channel, err := p.api.GuildChannelCreateComplex(spec.GuildID, discordgo.GuildChannelCreateData{
		Name:                 spec.Name,
		Type:                 discordgo.ChannelTypeGuildText,
		Topic:                spec.Topic,
		ParentID:             spec.CategoryID,
		PermissionOverwrites: overwrites,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("create ticket channel %q: %w", spec.Name, err)
	}
	return channel.ID, nil
}

func (p *Platform) RenameChannel(ctx context.Context, channelID, name, topic string) error {
	_, err := p.api.ChannelEditComplex(channelID, &discordgo.ChannelEdit{Name: name, Topic: topic}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("edit channel %s: %w", channelID, err)
	}
	return nil
}

func (p *Platform) DeleteChannel(ctx context.Context, channelID, reason string) error {
	_, err := p.api.ChannelDelete(channelID, discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
	if err != nil {
		return fmt.Errorf("delete channel %s: %w", channelID, err)
	}
	return nil
}

// FetchHistory pages forward from the start of the channel and returns its first limit
// messages oldest first. Each page arrives newest first.
func (p *Platform) FetchHistory(ctx context.Context, channelID string, limit int) ([]domain.ChannelMessage, error) {
	if limit <= 0 {
		return nil, nil
	}
	out := make([]domain.ChannelMessage, 0, min(limit, historyPageSize))
	after := oldestMessageID
	for len(out) < limit {
		page := min(limit-len(out), historyPageSize)
		msgs, err := p.api.ChannelMessages(channelID, page, "", after, "", discordgo.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("fetch history of %s: %w", channelID, err)
		}
		if len(msgs) == 0 {
			break
		}
		for i := len(msgs) - 1; i >= 0; i-- {
			out = append(out, convertMessage(msgs[i]))
		}
		if len(msgs) < page {
			break
		}
		after = msgs[0].ID
	}
	return out, nil
}

func convertMessage(m *discordgo.Message) domain.ChannelMessage {
	msg := domain.ChannelMessage{
		ID:        m.ID,
		Content:   m.Content,
		CreatedAt: m.Timestamp,
	}
	if m.Author != nil {
		msg.AuthorID = m.Author.ID
		msg.AuthorName = m.Author.Username
	}
	for _, e := range m.Embeds {
		if e == nil {
			continue
		}
		msg.Embeds = append(msg.Embeds, e.Title)
	}
	for _, a := range m.Attachments {
		if a == nil {
			continue
		}
		msg.Attachments = append(msg.Attachments, domain.AttachmentReference{FileName: a.Filename, URL: a.URL})
	}
	return msg
}
