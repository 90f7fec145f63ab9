package conversation

import (
	"fmt"
	"strings"
)

const (
	msgAnotherUserJoined = "Another user has joined the conversation. I'll pause my responses unless the ticket creator asks me to continue."
	msgStopped           = "I've stopped responding. Ping me or say 'you can reply now' if you need me again."
	msgHumanHandoff      = "Understood. I'll notify a Ticket Manager to take over."
	msgDisrespectWarning = "Please maintain a respectful tone. Continued disrespectful behavior may result in ticket escalation to staff."
	msgEscalation        = "user is being uncooperative."
	msgTopicDisallowed   = "This ticket type is not supported through the ticket system. %s"
	msgNewTicket         = "New ticket opened!"
	msgGreetingFallback  = "Hello! I've claimed your ticket and will assist you. You wrote: \"%s\". Please describe your issue in as much detail as you can."

	// CloseAcknowledgement is posted before an AI-requested closure runs.
	CloseAcknowledgement = "Alright!"
)

var mentionDefuser = strings.NewReplacer(
	"@everyone", "@ everyone",
	"@here", "@ here",
	"@Everyone", "@ Everyone",
	"@Here", "@ Here",
)

// Sanitize defuses broadcast mentions in generated text.
func Sanitize(text string) string {
	return mentionDefuser.Replace(text)
}

func userMention(id string) string {
	return "<@" + id + ">"
}

func roleMention(id string) string {
	if id == "" {
		return ""
	}
	return "<@&" + id + ">"
}

// withPrefix joins a mention and a message, dropping the mention when empty.
func withPrefix(mention, text string) string {
	if mention == "" {
		return text
	}
	return mention + " " + text
}

func topicDisallowed(redirect string) string {
	return fmt.Sprintf(msgTopicDisallowed, redirect)
}
