package discord

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-bot/internal/conversation"
	"github.com/spec-kit/support-bot/internal/service"
)

// Incoming is a guild message reduced to what the bot acts on.
type Incoming struct {
	GuildID          string
	ChannelID        string
	CategoryID       string
	AuthorID         string
	AuthorName       string
	Content          string
	RoleIDs          []string
	MentionsEveryone bool
	HasRoleMentions  bool
	At               time.Time
}

// Access configures who may run which command.
type Access struct {
	Prefix            string
	PrivilegedRoleIDs []string
	StaffRoleID       string
	OwnerIDs          []string
}

// Replier posts plain text to a channel.
type Replier interface {
	SendText(ctx context.Context, channelID, text string) error
}

// RouterDependencies bundles the services behind the chat surface.
type RouterDependencies struct {
	Tickets     *service.TicketService
	Assignments *service.AssignmentService
	Teach       *service.TeachService
	Ops         *service.OpsService
	Replier     Replier
	Access      Access
	Logger      *zap.Logger
}

// Router dispatches guild messages to commands, ticket conversations and taught replies.
type Router struct {
	tickets     *service.TicketService
	assignments *service.AssignmentService
	teach       *service.TeachService
	ops         *service.OpsService
	replier     Replier
	access      Access
	privileged  map[string]struct{}
	owners      map[string]struct{}
	handlers    map[string]commandHandler
	logger      *zap.Logger
}

// NewRouter builds the router. An empty prefix defaults to "!".
func NewRouter(deps RouterDependencies) *Router {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	access := deps.Access
	if access.Prefix == "" {
		access.Prefix = "!"
	}
	r := &Router{
		tickets:     deps.Tickets,
		assignments: deps.Assignments,
		teach:       deps.Teach,
		ops:         deps.Ops,
		replier:     deps.Replier,
		access:      access,
		privileged:  idSet(access.PrivilegedRoleIDs),
		owners:      idSet(access.OwnerIDs),
		logger:      logger,
	}
	r.handlers = r.commands()
	return r
}

// Route handles one message. Commands win; other text goes to the ticket conversation,
// and outside tickets to the taught-response matcher.
func (r *Router) Route(ctx context.Context, in Incoming) {
	if cmd, ok := parseCommand(in.Content, r.access.Prefix); ok {
		if handler, known := r.handlers[cmd.name]; known {
			r.logger.Debug("command received",
				zap.String("command", cmd.name),
				zap.String("channel_id", in.ChannelID),
				zap.String("author_id", in.AuthorID),
			)
			handler(ctx, in, cmd.args)
		}
		return
	}

	_, err := r.tickets.HandleInbound(ctx, service.InboundMessage{
		ChannelID:  in.ChannelID,
		AuthorName: in.AuthorName,
		Content:    in.Content,
		At:         in.At,
		Facts: conversation.Facts{
			AuthorID:         in.AuthorID,
			RoleIDs:          in.RoleIDs,
			MentionsEveryone: in.MentionsEveryone,
			HasRoleMentions:  in.HasRoleMentions,
			CategoryID:       in.CategoryID,
		},
	})
	switch {
	case errors.Is(err, service.ErrNotTicket):
		r.autoReply(ctx, in)
	case err != nil:
		r.logger.Warn("ticket message not handled", zap.String("channel_id", in.ChannelID), zap.Error(err))
	}
}

func (r *Router) autoReply(ctx context.Context, in Incoming) {
	if r.teach == nil {
		return
	}
	reply, ok := r.teach.Match(ctx, in.Content, "<@"+in.AuthorID+">")
	if !ok {
		return
	}
	r.reply(ctx, in.ChannelID, reply)
}

func (r *Router) reply(ctx context.Context, channelID, text string) {
	if text == "" {
		return
	}
	if err := r.replier.SendText(ctx, channelID, text); err != nil {
		r.logger.Warn("failed to reply", zap.String("channel_id", channelID), zap.Error(err))
	}
}

func (r *Router) isPrivileged(in Incoming) bool {
	for _, id := range in.RoleIDs {
		if _, ok := r.privileged[id]; ok {
			return true
		}
	}
	return false
}

// isAdmin covers privileged roles and bot owners.
func (r *Router) isAdmin(in Incoming) bool {
	if _, ok := r.owners[in.AuthorID]; ok {
		return true
	}
	return r.isPrivileged(in)
}

func (r *Router) isStaff(in Incoming) bool {
	if r.isAdmin(in) {
		return true
	}
	if r.access.StaffRoleID == "" {
		return false
	}
	for _, id := range in.RoleIDs {
		if id == r.access.StaffRoleID {
			return true
		}
	}
	return false
}

func idSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			set[id] = struct{}{}
		}
	}
	return set
}
