package intent

import "strings"

// Intent is the classification of a single inbound ticket message.
type Intent string

const (
	None               Intent = "none"
	Stop               Intent = "stop"
	Resume             Intent = "resume"
	HumanRequest       Intent = "human_request"
	DisrespectWarning  Intent = "disrespect_warning"
	DisrespectEscalate Intent = "disrespect_escalate"
	DisallowedTopic    Intent = "disallowed_topic"
	CloseRequest       Intent = "close_request"
)

// Result carries the intent plus the redirect text for disallowed topics.
type Result struct {
	Intent   Intent
	Topic    string
	Redirect string
}

// Topic is a subject the ticket system refuses, with the text pointing the user elsewhere.
type Topic struct {
	Name     string
	Keywords []string
	Redirect string
}

// Classifier holds the phrase lists. It performs no I/O.
type Classifier struct {
	closePhrases      []string
	stopPhrases       []string
	resumePhrases     []string
	humanPhrases      []string
	disrespectPhrases []string
	topics            []Topic
}

// Redirects configures the channel references used by the disallowed topic replies.
type Redirects struct {
	FAQChannelID         string
	InfoChannelID        string
	SuggestionsChannelID string
}

// NewClassifier builds a classifier with the default phrase lists.
func NewClassifier(redirects Redirects) *Classifier {
	return &Classifier{
		closePhrases:      closePhrases,
		stopPhrases:       stopPhrases,
		resumePhrases:     resumePhrases,
		humanPhrases:      humanRequestPhrases,
		disrespectPhrases: disrespectPhrases,
		topics:            defaultTopics(redirects),
	}
}

// Classify returns the first matching intent in priority order:
// close, stop, resume, human request, disallowed topic, disrespect.
// Disrespect escalates once currentWarnings reaches maxWarnings.
func (c *Classifier) Classify(text string, currentWarnings, maxWarnings int) Result {
	lower := strings.ToLower(text)

	if containsAny(lower, c.closePhrases) {
		return Result{Intent: CloseRequest}
	}
	if containsAny(lower, c.stopPhrases) {
		return Result{Intent: Stop}
	}
	if containsAny(lower, c.resumePhrases) {
		return Result{Intent: Resume}
	}
	if containsAny(lower, c.humanPhrases) {
		return Result{Intent: HumanRequest}
	}
	for _, topic := range c.topics {
		if containsAny(lower, topic.Keywords) {
			return Result{Intent: DisallowedTopic, Topic: topic.Name, Redirect: topic.Redirect}
		}
	}
	if containsAny(lower, c.disrespectPhrases) {
		if currentWarnings >= maxWarnings {
			return Result{Intent: DisrespectEscalate}
		}
		return Result{Intent: DisrespectWarning}
	}
	return Result{Intent: None}
}

// IsResume reports whether text contains a resume phrase.
func (c *Classifier) IsResume(text string) bool {
	return containsAny(strings.ToLower(text), c.resumePhrases)
}

func containsAny(text string, phrases []string) bool {
	for _, phrase := range phrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}
