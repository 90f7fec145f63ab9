package discord

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const defaultHandlerTimeout = 2 * time.Minute

// NewSession creates a gateway session with the intents the bot relies on.
func NewSession(token string) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent |
		discordgo.IntentsGuildMembers
	return session, nil
}

// Bot connects gateway events to the router.
type Bot struct {
	session        *discordgo.Session
	router         *Router
	guildID        string
	handlerTimeout time.Duration
	logger         *zap.Logger
	removers       []func()
}

// NewBot wires the router to session. guildID restricts handling to one guild when set.
func NewBot(session *discordgo.Session, router *Router, guildID string, handlerTimeout time.Duration, logger *zap.Logger) *Bot {
	if logger == nil {
		logger = zap.NewNop()
	}
	if handlerTimeout <= 0 {
		handlerTimeout = defaultHandlerTimeout
	}
	return &Bot{
		session:        session,
		router:         router,
		guildID:        guildID,
		handlerTimeout: handlerTimeout,
		logger:         logger,
	}
}

// Start registers handlers and opens the gateway connection.
func (b *Bot) Start() error {
	b.removers = append(b.removers,
		b.session.AddHandler(b.onReady),
		b.session.AddHandler(b.onMessageCreate),
	)
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	return nil
}

// Close detaches handlers and closes the gateway connection.
func (b *Bot) Close() error {
	for _, remove := range b.removers {
		remove()
	}
	b.removers = nil
	return b.session.Close()
}

func (b *Bot) onReady(_ *discordgo.Session, event *discordgo.Ready) {
	name := ""
	if event.User != nil {
		name = event.User.Username
	}
	b.logger.Info("discord ready", zap.String("user", name), zap.Int("guilds", len(event.Guilds)))
}

func (b *Bot) onMessageCreate(session *discordgo.Session, msg *discordgo.MessageCreate) {
	if msg.Message == nil || msg.Author == nil || msg.Author.Bot {
		return
	}
	if msg.GuildID == "" {
		return
	}
	if b.guildID != "" && msg.GuildID != b.guildID {
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			b.logger.Error("panic while handling message",
				zap.Any("panic", rec),
				zap.String("channel_id", msg.ChannelID),
				zap.ByteString("stack", debug.Stack()),
			)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), b.handlerTimeout)
	defer cancel()

	b.router.Route(ctx, b.incoming(session, msg.Message))
}

func (b *Bot) incoming(session *discordgo.Session, m *discordgo.Message) Incoming {
	in := Incoming{
		GuildID:          m.GuildID,
		ChannelID:        m.ChannelID,
		CategoryID:       b.categoryOf(session, m.ChannelID),
		AuthorID:         m.Author.ID,
		AuthorName:       m.Author.Username,
		Content:          m.Content,
		MentionsEveryone: m.MentionEveryone,
		HasRoleMentions:  len(m.MentionRoles) > 0,
		At:               m.Timestamp.UTC(),
	}
	if m.Member != nil {
		in.RoleIDs = m.Member.Roles
	}
	return in
}

// categoryOf resolves the parent category from the state cache, then the REST API.
func (b *Bot) categoryOf(session *discordgo.Session, channelID string) string {
	if session.State != nil {
		if ch, err := session.State.Channel(channelID); err == nil && ch != nil {
			return ch.ParentID
		}
	}
	ch, err := session.Channel(channelID)
	if err != nil {
		b.logger.Warn("failed to resolve channel category", zap.String("channel_id", channelID), zap.Error(err))
		return ""
	}
	return ch.ParentID
}
