package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/intent"
	"github.com/spec-kit/support-bot/internal/observability"
	"github.com/spec-kit/support-bot/internal/prompt"
)

// historyWindow is how many stored turns accompany a completion request.
const historyWindow = 10

var errBlankReply = errors.New("completion returned a blank reply")

// Completer produces an assistant reply.
type Completer interface {
	Complete(ctx context.Context, systemPrompt string, history []domain.ConversationMessage, newMessage string) (string, error)
}

// PromptSource builds the system prompt for a ticket.
type PromptSource interface {
	SystemPrompt(ctx context.Context, ticket *domain.Ticket) string
}

// Messenger posts text into a channel.
type Messenger interface {
	SendText(ctx context.Context, channelID, text string) error
}

// TicketWriter persists ticket state.
type TicketWriter interface {
	Update(ctx context.Context, ticket *domain.Ticket) error
}

// Action is what the caller must do after a turn.
type Action string

const (
	// ActionSilent means nothing further was sent.
	ActionSilent Action = "silent"
	// ActionReplied means the controller posted a reply.
	ActionReplied Action = "replied"
	// ActionClose means the caller must acknowledge and close the ticket.
	ActionClose Action = "close"
)

// Inbound is one message posted in a ticket channel.
type Inbound struct {
	AuthorID string
	Content  string
	At       time.Time
}

// TurnResult reports the outcome of a turn.
type TurnResult struct {
	Intent intent.Intent
	Action Action
	Reply  string
}

// Options configures a Controller.
type Options struct {
	MaxWarnings         int
	TicketManagerRoleID string
}

// Controller runs the per-ticket AI conversation state machine.
// Callers must serialize Handle calls for the same ticket.
type Controller struct {
	tickets    TicketWriter
	classifier *intent.Classifier
	prompts    PromptSource
	completer  Completer
	messenger  Messenger
	metrics    *observability.Metrics
	logger     *zap.Logger
	opts       Options
	now        func() time.Time
}

// NewController wires the controller's collaborators.
func NewController(
	tickets TicketWriter,
	classifier *intent.Classifier,
	prompts PromptSource,
	completer Completer,
	messenger Messenger,
	metrics *observability.Metrics,
	logger *zap.Logger,
	opts Options,
) *Controller {
	if metrics == nil {
		metrics = observability.NewMetrics()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		tickets:    tickets,
		classifier: classifier,
		prompts:    prompts,
		completer:  completer,
		messenger:  messenger,
		metrics:    metrics,
		logger:     logger,
		opts:       opts,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Handle applies one inbound message to ticket, persisting every state change.
// The ticket is mutated in place.
func (c *Controller) Handle(ctx context.Context, ticket *domain.Ticket, in Inbound) (TurnResult, error) {
	result, err := c.handle(ctx, ticket, in)
	c.metrics.RecordTurn(string(result.Intent), string(result.Action))
	return result, err
}

func (c *Controller) handle(ctx context.Context, ticket *domain.Ticket, in Inbound) (TurnResult, error) {
	silent := TurnResult{Intent: intent.None, Action: ActionSilent}
	if in.At.IsZero() {
		in.At = c.now()
	}
	fromCreator := in.AuthorID == ticket.CreatorID

	if !ticket.AIActive {
		if !fromCreator {
			if ticket.AIPausedOtherUser {
				return silent, nil
			}
			// escalated tickets get no notice, but the pause is still recorded
			ticket.AIPausedOtherUser = true
			ticket.AIStopped = true
			return silent, c.tickets.Update(ctx, ticket)
		}
		ticket.AppendMessage(domain.RoleUser, in.AuthorID, in.Content, in.At)
		return silent, c.tickets.Update(ctx, ticket)
	}

	if !fromCreator {
		if ticket.AIPausedOtherUser {
			return silent, nil
		}
		ticket.AIPausedOtherUser = true
		ticket.AIStopped = true
		if err := c.tickets.Update(ctx, ticket); err != nil {
			return silent, err
		}
		c.send(ctx, ticket.ChannelID, msgAnotherUserJoined)
		return TurnResult{Intent: intent.None, Action: ActionReplied, Reply: msgAnotherUserJoined}, nil
	}

	if ticket.AIStopped {
		if !c.classifier.IsResume(in.Content) {
			ticket.AppendMessage(domain.RoleUser, in.AuthorID, in.Content, in.At)
			return silent, c.tickets.Update(ctx, ticket)
		}
		ticket.AIStopped = false
		ticket.AIPausedOtherUser = false
	}

	classified := c.classifier.Classify(in.Content, ticket.AIWarningsGiven, c.opts.MaxWarnings)

	switch classified.Intent {
	case intent.CloseRequest:
		ticket.CloseRequested = true

	case intent.Stop:
		ticket.AIStopped = true
		return c.reply(ctx, ticket, classified.Intent, msgStopped)

	case intent.HumanRequest:
		ticket.AIStopped = true
		text := msgHumanHandoff
		if ping := roleMention(c.opts.TicketManagerRoleID); ping != "" {
			text += "\n" + ping
		}
		return c.reply(ctx, ticket, classified.Intent, text)

	case intent.DisallowedTopic:
		return c.reply(ctx, ticket, classified.Intent, topicDisallowed(classified.Redirect))

	case intent.DisrespectEscalate:
		ticket.AIStopped = true
		ticket.AIActive = false
		c.logger.Info("ticket escalated to staff",
			zap.String("channel_id", ticket.ChannelID),
			zap.Int("warnings", ticket.AIWarningsGiven),
		)
		return c.reply(ctx, ticket, classified.Intent, withPrefix(roleMention(c.opts.TicketManagerRoleID), msgEscalation))

	case intent.DisrespectWarning:
		ticket.AIWarningsGiven++
		if err := c.tickets.Update(ctx, ticket); err != nil {
			return TurnResult{Intent: classified.Intent, Action: ActionSilent}, err
		}
		c.send(ctx, ticket.ChannelID, msgDisrespectWarning)
	}

	turnIntent := classified.Intent
	if turnIntent == intent.Resume {
		turnIntent = intent.None
	}
	return c.converse(ctx, ticket, turnIntent, in)
}

// converse runs a normal AI turn.
func (c *Controller) converse(ctx context.Context, ticket *domain.Ticket, turnIntent intent.Intent, in Inbound) (TurnResult, error) {
	result := TurnResult{Intent: turnIntent, Action: ActionSilent}

	history := ticket.RecentMessages(historyWindow)
	ticket.AppendMessage(domain.RoleUser, in.AuthorID, in.Content, in.At)
	if err := c.tickets.Update(ctx, ticket); err != nil {
		return result, err
	}

	reply, ok := c.complete(ctx, ticket, history, in.Content)
	if !ok {
		return result, nil
	}

	ticket.AppendMessage(domain.RoleAssistant, "", reply, c.now())
	if err := c.tickets.Update(ctx, ticket); err != nil {
		return result, err
	}

	if ticket.CloseRequested {
		result.Action = ActionClose
		return result, nil
	}

	text := withPrefix(userMention(ticket.CreatorID), Sanitize(reply))
	c.send(ctx, ticket.ChannelID, text)
	result.Action = ActionReplied
	result.Reply = text
	return result, nil
}

// Greet announces a new AI-claimed ticket and posts a greeting addressing its reason.
func (c *Controller) Greet(ctx context.Context, ticket *domain.Ticket) error {
	c.send(ctx, ticket.ChannelID, withPrefix(roleMention(c.opts.TicketManagerRoleID), msgNewTicket))

	request := prompt.GreetingRequest(ticket.Label, ticket.Reason)
	reply, ok := c.complete(ctx, ticket, ticket.RecentMessages(historyWindow), request)
	if !ok {
		c.send(ctx, ticket.ChannelID, withPrefix(userMention(ticket.CreatorID), Sanitize(fmt.Sprintf(msgGreetingFallback, ticket.Reason))))
		return nil
	}

	ticket.AppendMessage(domain.RoleAssistant, "", reply, c.now())
	if err := c.tickets.Update(ctx, ticket); err != nil {
		return err
	}
	c.send(ctx, ticket.ChannelID, withPrefix(userMention(ticket.CreatorID), Sanitize(reply)))
	return nil
}

func (c *Controller) complete(ctx context.Context, ticket *domain.Ticket, history []domain.ConversationMessage, message string) (string, bool) {
	started := time.Now()
	reply, err := c.completer.Complete(ctx, c.prompts.SystemPrompt(ctx, ticket), history, message)
	if err == nil && strings.TrimSpace(reply) == "" {
		err = errBlankReply
	}
	c.metrics.RecordCompletion(err == nil, time.Since(started))
	if err != nil {
		c.logger.Warn("ai completion failed",
			zap.String("channel_id", ticket.ChannelID),
			zap.Error(err),
		)
		return "", false
	}
	return reply, true
}

func (c *Controller) reply(ctx context.Context, ticket *domain.Ticket, turnIntent intent.Intent, text string) (TurnResult, error) {
	if err := c.tickets.Update(ctx, ticket); err != nil {
		return TurnResult{Intent: turnIntent, Action: ActionSilent}, err
	}
	c.send(ctx, ticket.ChannelID, text)
	return TurnResult{Intent: turnIntent, Action: ActionReplied, Reply: text}, nil
}

// send is best effort; platform failures never alter ticket state.
func (c *Controller) send(ctx context.Context, channelID, text string) {
	if err := c.messenger.SendText(ctx, channelID, text); err != nil {
		c.logger.Warn("failed to send ticket message",
			zap.String("channel_id", channelID),
			zap.Error(err),
		)
	}
}
