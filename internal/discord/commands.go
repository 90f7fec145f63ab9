package discord

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/service"
	apperrors "github.com/spec-kit/support-bot/pkg/util"
)

const (
	teachesPerPage       = 10
	teachTriggerPreview  = 50
	teachResponsePreview = 80

	msgTicketOnly     = "This command can only be used in a ticket channel."
	msgNoPermission   = "You do not have permission to use this command."
	msgUnknownType    = "Unknown ticket type. Use one of: support, content_creator, report, appeal."
	msgTeachUsage     = "Usage: `%steach trigger | response`"
	msgUnteachUsage   = "Usage: `%sunteach <id or trigger>`"
	msgNoTeaches      = "No taught responses yet."
	msgAIStarted      = "AI operations started."
	msgAIStopped      = "AI operations stopped. The assistant will stay silent until restarted."
	msgCommandFailure = "Something went wrong. Please try again later."
)

type command struct {
	name string
	args string
}

// parseCommand splits "!name rest" into a lower-cased name and the trimmed remainder.
func parseCommand(content, prefix string) (command, bool) {
	content = strings.TrimSpace(content)
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return command{}, false
	}
	body := strings.TrimSpace(content[len(prefix):])
	if body == "" {
		return command{}, false
	}
	name, args, _ := strings.Cut(body, " ")
	return command{name: strings.ToLower(name), args: strings.TrimSpace(args)}, true
}

// parseTeach splits "trigger | response".
func parseTeach(args string) (trigger, response string, ok bool) {
	trigger, response, found := strings.Cut(args, "|")
	trigger = strings.TrimSpace(trigger)
	response = strings.TrimSpace(response)
	if !found || trigger == "" || response == "" {
		return "", "", false
	}
	return trigger, response, true
}

type commandHandler func(ctx context.Context, in Incoming, args string)

func (r *Router) commands() map[string]commandHandler {
	return map[string]commandHandler{
		"ticket":    r.cmdTicket,
		"claim":     r.cmdClaim,
		"unclaim":   r.cmdUnclaim,
		"close":     r.cmdClose,
		"summarize": r.cmdSummarize,
		"aireset":   r.cmdAIReset,
		"teach":     r.cmdTeach,
		"unteach":   r.cmdUnteach,
		"forget":    r.cmdUnteach,
		"teaches":   r.cmdTeaches,
		"aistart":   r.cmdAIStart,
		"aistop":    r.cmdAIStop,
		"aistatus":  r.cmdAIStatus,
	}
}

func (r *Router) cmdTicket(ctx context.Context, in Incoming, args string) {
	rawType, reason, _ := strings.Cut(args, " ")
	ticketType, ok := domain.ParseTicketType(strings.ToLower(strings.TrimSpace(rawType)))
	if !ok {
		r.reply(ctx, in.ChannelID, msgUnknownType)
		return
	}
	ticket, err := r.tickets.CreateTicket(ctx, service.CreateTicketInput{
		GuildID:     in.GuildID,
		CreatorID:   in.AuthorID,
		CreatorName: in.AuthorName,
		Type:        ticketType,
		Reason:      reason,
	})
	if err != nil {
		r.fail(ctx, in, "ticket", err)
		return
	}
	r.reply(ctx, in.ChannelID, fmt.Sprintf("<@%s> your %s has been created: <#%s>", in.AuthorID, ticket.Label, ticket.ChannelID))
}

func (r *Router) cmdClaim(ctx context.Context, in Incoming, _ string) {
	if !r.isStaff(in) {
		r.reply(ctx, in.ChannelID, msgNoPermission)
		return
	}
	if _, ok := r.ticketFor(ctx, in); !ok {
		return
	}
	if _, err := r.assignments.Claim(ctx, in.ChannelID, participantOf(in)); err != nil {
		r.fail(ctx, in, "claim", err)
	}
}

func (r *Router) cmdUnclaim(ctx context.Context, in Incoming, _ string) {
	if !r.isStaff(in) {
		r.reply(ctx, in.ChannelID, msgNoPermission)
		return
	}
	if _, ok := r.ticketFor(ctx, in); !ok {
		return
	}
	if _, err := r.assignments.Unclaim(ctx, in.ChannelID, participantOf(in)); err != nil {
		r.fail(ctx, in, "unclaim", err)
	}
}

func (r *Router) cmdClose(ctx context.Context, in Incoming, args string) {
	ticket, ok := r.ticketFor(ctx, in)
	if !ok {
		return
	}
	if ticket.CreatorID != in.AuthorID && !r.isStaff(in) {
		r.reply(ctx, in.ChannelID, msgNoPermission)
		return
	}
	_, err := r.tickets.CloseTicket(ctx, service.CloseInput{
		ChannelID: in.ChannelID,
		Closer:    participantOf(in),
		Reason:    args,
		Trigger:   service.CloseTriggerCommand,
	})
	if err != nil {
		r.fail(ctx, in, "close", err)
	}
}

func (r *Router) cmdSummarize(ctx context.Context, in Incoming, _ string) {
	if !r.isPrivileged(in) {
		r.reply(ctx, in.ChannelID, msgNoPermission)
		return
	}
	if _, ok := r.ticketFor(ctx, in); !ok {
		return
	}
	summary, err := r.tickets.Summarize(ctx, in.ChannelID)
	if err != nil {
		r.fail(ctx, in, "summarize", err)
		return
	}
	r.reply(ctx, in.ChannelID, summary)
}

func (r *Router) cmdAIReset(ctx context.Context, in Incoming, _ string) {
	if !r.isPrivileged(in) {
		r.reply(ctx, in.ChannelID, msgNoPermission)
		return
	}
	if _, ok := r.ticketFor(ctx, in); !ok {
		return
	}
	if _, err := r.tickets.ReactivateAI(ctx, in.ChannelID, participantOf(in)); err != nil {
		r.fail(ctx, in, "aireset", err)
	}
}

func (r *Router) cmdTeach(ctx context.Context, in Incoming, args string) {
	if !r.isAdmin(in) {
		r.reply(ctx, in.ChannelID, msgNoPermission)
		return
	}
	trigger, response, ok := parseTeach(args)
	if !ok {
		r.reply(ctx, in.ChannelID, fmt.Sprintf(msgTeachUsage, r.access.Prefix))
		return
	}
	entry, created, err := r.teach.Teach(ctx, trigger, response, in.AuthorID)
	if err != nil {
		r.fail(ctx, in, "teach", err)
		return
	}
	verb := "Updated"
	if created {
		verb = "Learned"
	}
	r.reply(ctx, in.ChannelID, fmt.Sprintf("%s response #%d for `%s`.", verb, entry.ID, entry.Trigger))
}

func (r *Router) cmdUnteach(ctx context.Context, in Incoming, args string) {
	if !r.isAdmin(in) {
		r.reply(ctx, in.ChannelID, msgNoPermission)
		return
	}
	if args == "" {
		r.reply(ctx, in.ChannelID, fmt.Sprintf(msgUnteachUsage, r.access.Prefix))
		return
	}
	entry, err := r.teach.Unteach(ctx, args)
	if err != nil {
		r.fail(ctx, in, "unteach", err)
		return
	}
	r.reply(ctx, in.ChannelID, fmt.Sprintf("Forgot response #%d for `%s`.", entry.ID, entry.Trigger))
}

func (r *Router) cmdTeaches(ctx context.Context, in Incoming, args string) {
	if !r.isAdmin(in) {
		r.reply(ctx, in.ChannelID, msgNoPermission)
		return
	}
	entries, err := r.teach.List(ctx)
	if err != nil {
		r.fail(ctx, in, "teaches", err)
		return
	}
	r.reply(ctx, in.ChannelID, formatTeaches(entries, args))
}

// formatTeaches renders one page of taught responses. Out-of-range pages clamp to the last page.
func formatTeaches(entries []domain.TaughtResponse, pageArg string) string {
	if len(entries) == 0 {
		return msgNoTeaches
	}
	pages := (len(entries) + teachesPerPage - 1) / teachesPerPage
	page, err := strconv.Atoi(strings.TrimSpace(pageArg))
	if err != nil || page < 1 {
		page = 1
	}
	if page > pages {
		page = pages
	}

	start := (page - 1) * teachesPerPage
	end := start + teachesPerPage
	if end > len(entries) {
		end = len(entries)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "**Taught responses** (page %d/%d, %d total)\n", page, pages, len(entries))
	for _, e := range entries[start:end] {
		fmt.Fprintf(&sb, "#%d `%s` → %s (used %d)\n",
			e.ID,
			clip(e.Trigger, teachTriggerPreview),
			clip(e.Response, teachResponsePreview),
			e.UsageCount,
		)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (r *Router) cmdAIStart(ctx context.Context, in Incoming, _ string) {
	r.setAIOps(ctx, in, true, msgAIStarted)
}

func (r *Router) cmdAIStop(ctx context.Context, in Incoming, _ string) {
	r.setAIOps(ctx, in, false, msgAIStopped)
}

func (r *Router) setAIOps(ctx context.Context, in Incoming, enabled bool, confirmation string) {
	if !r.isAdmin(in) {
		r.reply(ctx, in.ChannelID, msgNoPermission)
		return
	}
	if err := r.ops.SetAIOps(ctx, enabled, in.AuthorID); err != nil {
		r.fail(ctx, in, "aiops", err)
		return
	}
	r.reply(ctx, in.ChannelID, confirmation)
}

func (r *Router) cmdAIStatus(ctx context.Context, in Incoming, _ string) {
	if !r.isAdmin(in) {
		r.reply(ctx, in.ChannelID, msgNoPermission)
		return
	}
	status, err := r.ops.Status(ctx)
	if err != nil {
		r.fail(ctx, in, "aistatus", err)
		return
	}
	state := "running"
	if !status.Enabled {
		state = "stopped"
	}
	r.reply(ctx, in.ChannelID, fmt.Sprintf(
		"**AI operations:** %s\nOpen tickets: %d | AI claimed: %d | Stopped: %d | Escalated: %d",
		state, status.OpenTickets, status.AIClaimed, status.Stopped, status.Escalated,
	))
}

// ticketFor loads the ticket behind the invoking channel, replying when there is none.
func (r *Router) ticketFor(ctx context.Context, in Incoming) (*domain.Ticket, bool) {
	ticket, err := r.tickets.GetTicket(ctx, in.ChannelID)
	if apperrors.IsCode(err, apperrors.CodeNotFound) {
		r.reply(ctx, in.ChannelID, msgTicketOnly)
		return nil, false
	}
	if err != nil {
		r.fail(ctx, in, "lookup", err)
		return nil, false
	}
	return ticket, true
}

func (r *Router) fail(ctx context.Context, in Incoming, name string, err error) {
	r.logger.Warn("command failed",
		zap.String("command", name),
		zap.String("channel_id", in.ChannelID),
		zap.String("author_id", in.AuthorID),
		zap.Error(err),
	)
	msg := apperrors.UserMessage(err)
	if msg == "" {
		msg = msgCommandFailure
	}
	r.reply(ctx, in.ChannelID, msg)
}

func participantOf(in Incoming) service.Participant {
	return service.Participant{ID: in.AuthorID, Name: in.AuthorName}
}

func clip(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max-3]) + "..."
}
